// internal/models/template.go
package models

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

type Template struct {
	BaseModel
	Title           string           `json:"title" gorm:"size:100;not null"`
	Slug            string           `json:"slug" gorm:"uniqueIndex;size:120;not null"`
	Description     string           `json:"description" gorm:"size:300;not null"`
	LongDescription string           `json:"longDescription,omitempty" gorm:"type:text"`
	SellerID        uuid.UUID        `json:"sellerId" gorm:"type:uuid;not null;index"`
	Category        TemplateCategory `json:"category" gorm:"type:varchar(20);not null;index"`
	Subcategory     string           `json:"subcategory,omitempty" gorm:"size:50"`
	Tags            pq.StringArray   `json:"tags" gorm:"type:text[]"`
	Technologies    pq.StringArray   `json:"technologies" gorm:"type:text[]"`
	Pricing         TemplatePricing  `json:"pricing" gorm:"embedded;embeddedPrefix:pricing_"`
	Images          TemplateImages   `json:"images" gorm:"embedded;embeddedPrefix:image_"`
	Files           TemplateFiles    `json:"files" gorm:"embedded;embeddedPrefix:file_"`
	Metadata        TemplateMetadata `json:"metadata" gorm:"type:jsonb;serializer:json"`
	Stats           TemplateStats    `json:"stats" gorm:"embedded;embeddedPrefix:stats_"`
	SEO             TemplateSEO      `json:"seo" gorm:"type:jsonb;serializer:json"`
	Status          TemplateStatus   `json:"status" gorm:"type:varchar(20);not null;default:'draft';index"`
	ModerationNotes string           `json:"moderationNotes,omitempty" gorm:"type:text"`
	FeaturedUntil   *time.Time       `json:"featuredUntil,omitempty"`
	PublishedAt     *time.Time       `json:"publishedAt,omitempty"`
	LastUpdated     time.Time        `json:"lastUpdated"`
}

type TemplatePricing struct {
	Type     PricingType     `json:"type" gorm:"type:varchar(20);not null;default:'paid'"`
	Price    decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null;default:0"`
	Currency Currency        `json:"currency" gorm:"type:varchar(3);not null;default:'USD'"`
	Discount *PriceDiscount  `json:"discount,omitempty" gorm:"type:jsonb;serializer:json"`
}

// PriceDiscount is a percentage discount, optionally bounded in time.
type PriceDiscount struct {
	Percentage decimal.Decimal `json:"percentage"`
	StartDate  *time.Time      `json:"startDate,omitempty"`
	EndDate    *time.Time      `json:"endDate,omitempty"`
}

type TemplateImages struct {
	Thumbnail string         `json:"thumbnail" gorm:"size:500"`
	Gallery   pq.StringArray `json:"gallery" gorm:"type:text[]"`
	Preview   string         `json:"preview,omitempty" gorm:"size:500"`
}

type TemplateFiles struct {
	MainFile      string `json:"mainFile" gorm:"size:500;not null"`
	Documentation string `json:"documentation,omitempty" gorm:"size:500"`
	Changelog     string `json:"changelog,omitempty" gorm:"size:500"`
	License       string `json:"license" gorm:"size:50;default:'MIT'"`
}

type TemplateMetadata struct {
	Version        string   `json:"version"`
	Compatibility  []string `json:"compatibility,omitempty"`
	Requirements   []string `json:"requirements,omitempty"`
	FileSize       int64    `json:"fileSize,omitempty"`
	IncludesSource bool     `json:"includesSource"`
	Framework      string   `json:"framework,omitempty"`
	Language       string   `json:"language,omitempty"`
}

type TemplateStats struct {
	Views     int64         `json:"views" gorm:"not null;default:0"`
	Downloads int64         `json:"downloads" gorm:"not null;default:0"`
	Sales     int64         `json:"sales" gorm:"not null;default:0"`
	Favorites int64         `json:"favorites" gorm:"not null;default:0"`
	Rating    RatingSummary `json:"rating" gorm:"embedded;embeddedPrefix:rating_"`
}

type TemplateSEO struct {
	MetaTitle       string   `json:"metaTitle,omitempty"`
	MetaDescription string   `json:"metaDescription,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

// TemplateStat names a counter column that can be incremented atomically.
type TemplateStat string

const (
	StatViews     TemplateStat = "views"
	StatDownloads TemplateStat = "downloads"
	StatSales     TemplateStat = "sales"
	StatFavorites TemplateStat = "favorites"
)

// Column returns the database column backing the counter.
func (s TemplateStat) Column() string {
	return "stats_" + string(s)
}

// allowed moderation transitions; approved is reachable from pending and suspended only.
var templateTransitions = map[TemplateStatus][]TemplateStatus{
	TemplateStatusDraft:     {TemplateStatusPending},
	TemplateStatusPending:   {TemplateStatusApproved, TemplateStatusRejected},
	TemplateStatusRejected:  {TemplateStatusPending},
	TemplateStatusApproved:  {TemplateStatusSuspended},
	TemplateStatusSuspended: {TemplateStatusApproved},
}

// Slugify lower-cases a title and collapses everything that is not a letter
// or digit into single hyphens.
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// ApplyDefaults fills the defaults a newly created template starts with.
func (t *Template) ApplyDefaults(now time.Time) {
	if t.Status == "" {
		t.Status = TemplateStatusDraft
	}
	if t.Pricing.Type == "" {
		t.Pricing.Type = PricingPaid
	}
	if t.Pricing.Currency == "" {
		t.Pricing.Currency = CurrencyUSD
	}
	if t.Pricing.Type == PricingFree {
		t.Pricing.Price = decimal.Zero
	}
	if t.Files.License == "" {
		t.Files.License = "MIT"
	}
	if t.Metadata.Version == "" {
		t.Metadata.Version = "1.0.0"
	}
	t.LastUpdated = now
}

// DiscountActive reports whether the template's discount applies at the given time.
func (t *Template) DiscountActive(now time.Time) bool {
	d := t.Pricing.Discount
	if d == nil || !d.Percentage.IsPositive() {
		return false
	}
	if d.StartDate != nil && now.Before(*d.StartDate) {
		return false
	}
	if d.EndDate != nil && now.After(*d.EndDate) {
		return false
	}
	return true
}

// EffectivePrice returns the price a buyer pays at the given time, before tax.
func (t *Template) EffectivePrice(now time.Time) decimal.Decimal {
	if t.Pricing.Type == PricingFree {
		return decimal.Zero
	}
	price := t.Pricing.Price
	if t.DiscountActive(now) {
		off := price.Mul(t.Pricing.Discount.Percentage).Div(decimal.NewFromInt(100))
		price = price.Sub(off).Round(2)
	}
	return price
}

func (t *Template) IsPurchasable() bool {
	return t.Status == TemplateStatusApproved
}

func (t *Template) IsFeatured(now time.Time) bool {
	return t.FeaturedUntil != nil && t.FeaturedUntil.After(now)
}

// TransitionTo moves the template through moderation. PublishedAt is set the
// first time the template becomes approved and never changes afterwards.
func (t *Template) TransitionTo(next TemplateStatus, notes string, now time.Time) error {
	allowed := false
	for _, s := range templateTransitions[t.Status] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperrors.InvalidState("Cannot move template from " + string(t.Status) + " to " + string(next))
	}

	t.Status = next
	if notes != "" {
		t.ModerationNotes = notes
	}
	if next == TemplateStatusApproved && t.PublishedAt == nil {
		t.PublishedAt = &now
	}
	t.LastUpdated = now
	return nil
}
