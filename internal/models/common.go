// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EnsureID assigns a fresh identifier when the record has none yet.
func (b *BaseModel) EnsureID() {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserRole string

const (
	UserRoleBuyer  UserRole = "buyer"
	UserRoleSeller UserRole = "seller"
	UserRoleAdmin  UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleBuyer, UserRoleSeller, UserRoleAdmin:
		return true
	}
	return false
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusPending   UserStatus = "pending"
	UserStatusBanned    UserStatus = "banned"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusSuspended, UserStatusPending, UserStatusBanned:
		return true
	}
	return false
}

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyVND Currency = "VND"
	CurrencyEUR Currency = "EUR"
)

type Language string

const (
	LanguageVietnamese Language = "vi"
	LanguageEnglish    Language = "en"
	LanguageChinese    Language = "zh"
	LanguageHindi      Language = "hi"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

type TemplateCategory string

const (
	CategoryWeb       TemplateCategory = "web"
	CategoryMobile    TemplateCategory = "mobile"
	CategoryBackend   TemplateCategory = "backend"
	CategoryFullstack TemplateCategory = "fullstack"
	CategoryUIKit     TemplateCategory = "ui-kit"
	CategoryOther     TemplateCategory = "other"
)

type PricingType string

const (
	PricingFree         PricingType = "free"
	PricingPaid         PricingType = "paid"
	PricingSubscription PricingType = "subscription"
)

type TemplateStatus string

const (
	TemplateStatusDraft     TemplateStatus = "draft"
	TemplateStatusPending   TemplateStatus = "pending"
	TemplateStatusApproved  TemplateStatus = "approved"
	TemplateStatusRejected  TemplateStatus = "rejected"
	TemplateStatusSuspended TemplateStatus = "suspended"
)

type PaymentMethod string

const (
	PaymentMethodStripe       PaymentMethod = "stripe"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodFree         PaymentMethod = "free"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusDisputed   OrderStatus = "disputed"
)

type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "pending"
	FulfillmentProcessing FulfillmentStatus = "processing"
	FulfillmentFulfilled  FulfillmentStatus = "fulfilled"
	FulfillmentFailed     FulfillmentStatus = "failed"
)

type DisputeStatus string

const (
	DisputeOpen          DisputeStatus = "open"
	DisputeInvestigating DisputeStatus = "investigating"
	DisputeResolved      DisputeStatus = "resolved"
	DisputeClosed        DisputeStatus = "closed"
)

type OrderSource string

const (
	OrderSourceWeb    OrderSource = "web"
	OrderSourceMobile OrderSource = "mobile"
	OrderSourceAPI    OrderSource = "api"
)

type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
	ReviewStatusFlagged  ReviewStatus = "flagged"
)

type FlagReason string

const (
	FlagReasonSpam          FlagReason = "spam"
	FlagReasonInappropriate FlagReason = "inappropriate"
	FlagReasonFake          FlagReason = "fake"
	FlagReasonOffensive     FlagReason = "offensive"
	FlagReasonOther         FlagReason = "other"
)

// RatingSummary is the derived {average, count} stored on templates and sellers.
type RatingSummary struct {
	Average float64 `json:"average" gorm:"type:decimal(2,1);not null;default:0"`
	Count   int64   `json:"count" gorm:"not null;default:0"`
}

// RoundRating rounds a mean rating to one decimal place.
func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

// SummarizeRatings computes the rounded mean and count of the given ratings.
func SummarizeRatings(ratings []int) RatingSummary {
	if len(ratings) == 0 {
		return RatingSummary{}
	}
	total := 0
	for _, r := range ratings {
		total += r
	}
	return RatingSummary{
		Average: RoundRating(float64(total) / float64(len(ratings))),
		Count:   int64(len(ratings)),
	}
}

// RatingBreakdown adds the per-star distribution to a summary.
type RatingBreakdown struct {
	RatingSummary
	Distribution map[int]int64 `json:"distribution"`
}

func NewRatingBreakdown(ratings []int) RatingBreakdown {
	b := RatingBreakdown{
		RatingSummary: SummarizeRatings(ratings),
		Distribution:  map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}
	for _, r := range ratings {
		b.Distribution[r]++
	}
	return b
}
