// internal/services/template_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/repository"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

const (
	defaultShowcaseLimit = 8
	maxShowcaseLimit     = 50
)

type TemplateService struct {
	templates repository.TemplateRepository
	now       Clock
}

type PricingInput struct {
	Type     models.PricingType `json:"type" validate:"required,oneof=free paid subscription"`
	Price    decimal.Decimal    `json:"price"`
	Currency models.Currency    `json:"currency" validate:"omitempty,oneof=VND USD EUR"`
	Discount *DiscountInput     `json:"discount,omitempty"`
}

type DiscountInput struct {
	Percentage decimal.Decimal `json:"percentage"`
	StartDate  *time.Time      `json:"startDate,omitempty"`
	EndDate    *time.Time      `json:"endDate,omitempty"`
}

type ImagesInput struct {
	Thumbnail string   `json:"thumbnail" validate:"required,url"`
	Gallery   []string `json:"gallery" validate:"max=10,dive,url"`
	Preview   string   `json:"preview" validate:"omitempty,url"`
}

type FilesInput struct {
	MainFile      string `json:"mainFile" validate:"required,max=500"`
	Documentation string `json:"documentation" validate:"omitempty,max=500"`
	Changelog     string `json:"changelog" validate:"omitempty,max=500"`
	License       string `json:"license" validate:"omitempty,max=50"`
}

type CreateTemplateRequest struct {
	Title           string                  `json:"title" validate:"required,min=3,max=100"`
	Description     string                  `json:"description" validate:"required,min=10,max=300"`
	LongDescription string                  `json:"longDescription" validate:"max=5000"`
	Category        models.TemplateCategory `json:"category" validate:"required,oneof=web mobile backend fullstack ui-kit other"`
	Subcategory     string                  `json:"subcategory" validate:"max=50"`
	Tags            []string                `json:"tags" validate:"max=10,dive,min=1,max=30"`
	Technologies    []string                `json:"technologies" validate:"max=20,dive,min=1,max=30"`
	Pricing         PricingInput            `json:"pricing"`
	Images          ImagesInput             `json:"images"`
	Files           FilesInput              `json:"files"`
	Metadata        models.TemplateMetadata `json:"metadata"`
	SEO             models.TemplateSEO      `json:"seo"`
}

type UpdateTemplateRequest struct {
	Title           *string                  `json:"title,omitempty" validate:"omitempty,min=3,max=100"`
	Description     *string                  `json:"description,omitempty" validate:"omitempty,min=10,max=300"`
	LongDescription *string                  `json:"longDescription,omitempty" validate:"omitempty,max=5000"`
	Category        *models.TemplateCategory `json:"category,omitempty" validate:"omitempty,oneof=web mobile backend fullstack ui-kit other"`
	Subcategory     *string                  `json:"subcategory,omitempty" validate:"omitempty,max=50"`
	Tags            []string                 `json:"tags,omitempty" validate:"omitempty,max=10,dive,min=1,max=30"`
	Technologies    []string                 `json:"technologies,omitempty" validate:"omitempty,max=20,dive,min=1,max=30"`
	Pricing         *PricingInput            `json:"pricing,omitempty"`
	Images          *ImagesInput             `json:"images,omitempty"`
	Files           *FilesInput              `json:"files,omitempty"`
	Metadata        *models.TemplateMetadata `json:"metadata,omitempty"`
	SEO             *models.TemplateSEO      `json:"seo,omitempty"`
}

type ModerateTemplateRequest struct {
	Status        models.TemplateStatus `json:"status" validate:"required,oneof=approved rejected suspended"`
	Notes         string                `json:"notes" validate:"max=1000"`
	FeaturedUntil *time.Time            `json:"featuredUntil,omitempty"`
}

type TemplateSearchRequest struct {
	utils.PaginationParams
	PricingType models.PricingType
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	Tags        []string
}

func NewTemplateService(templates repository.TemplateRepository) *TemplateService {
	return &TemplateService{
		templates: templates,
		now:       systemClock,
	}
}

func validatePricing(p PricingInput) error {
	fields := map[string]string{}
	if p.Price.IsNegative() {
		fields["pricing.price"] = "Price cannot be negative"
	}
	if p.Type != models.PricingFree && !p.Price.IsPositive() {
		fields["pricing.price"] = "Paid templates need a price greater than 0"
	}
	if d := p.Discount; d != nil {
		if d.Percentage.IsNegative() || d.Percentage.GreaterThan(decimal.NewFromInt(100)) {
			fields["pricing.discount.percentage"] = "Discount must be between 0 and 100"
		}
		if d.StartDate != nil && d.EndDate != nil && d.EndDate.Before(*d.StartDate) {
			fields["pricing.discount.endDate"] = "Discount end date must be after the start date"
		}
	}
	if len(fields) > 0 {
		return apperrors.Validation(fields)
	}
	return nil
}

func (p PricingInput) toModel() models.TemplatePricing {
	pricing := models.TemplatePricing{
		Type:     p.Type,
		Price:    p.Price,
		Currency: p.Currency,
	}
	if p.Discount != nil {
		pricing.Discount = &models.PriceDiscount{
			Percentage: p.Discount.Percentage,
			StartDate:  p.Discount.StartDate,
			EndDate:    p.Discount.EndDate,
		}
	}
	return pricing
}

func normalizeTags(tags []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func slugExists() error {
	return apperrors.New(apperrors.CodeSlugExists, "A template with this title already exists")
}

// Create stores a new draft template owned by the seller.
func (s *TemplateService) Create(ctx context.Context, actor Actor, req *CreateTemplateRequest) (*models.Template, error) {
	if actor.Role != models.UserRoleSeller && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Only sellers can create templates")
	}
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}
	if err := validatePricing(req.Pricing); err != nil {
		return nil, err
	}

	slug := models.Slugify(req.Title)
	if !models.ValidSlug(slug) {
		return nil, apperrors.Validation(map[string]string{
			"title": "Title must contain letters or digits",
		})
	}
	if _, err := s.templates.FindBySlug(ctx, slug); err == nil {
		return nil, slugExists()
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Database(err)
	}

	tpl := &models.Template{
		Title:           strings.TrimSpace(req.Title),
		Slug:            slug,
		Description:     strings.TrimSpace(req.Description),
		LongDescription: req.LongDescription,
		SellerID:        actor.ID,
		Category:        req.Category,
		Subcategory:     req.Subcategory,
		Tags:            normalizeTags(req.Tags),
		Technologies:    pq.StringArray(req.Technologies),
		Pricing:         req.Pricing.toModel(),
		Images: models.TemplateImages{
			Thumbnail: req.Images.Thumbnail,
			Gallery:   pq.StringArray(req.Images.Gallery),
			Preview:   req.Images.Preview,
		},
		Files: models.TemplateFiles{
			MainFile:      req.Files.MainFile,
			Documentation: req.Files.Documentation,
			Changelog:     req.Files.Changelog,
			License:       req.Files.License,
		},
		Metadata: req.Metadata,
		SEO:      req.SEO,
	}
	tpl.ApplyDefaults(s.now())

	if err := s.templates.Create(ctx, tpl); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, slugExists()
		}
		return nil, apperrors.Database(err)
	}

	logrus.WithFields(logrus.Fields{
		"template_id": tpl.ID,
		"seller_id":   tpl.SellerID,
		"slug":        tpl.Slug,
	}).Info("Template created")

	return tpl, nil
}

func canManage(actor Actor, tpl *models.Template) bool {
	return actor.IsAdmin() || tpl.SellerID == actor.ID
}

// Update edits the listing. Only the owning seller or an admin may do so.
func (s *TemplateService) Update(ctx context.Context, actor Actor, id uuid.UUID, req *UpdateTemplateRequest) (*models.Template, error) {
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}
	if req.Pricing != nil {
		if err := utils.ValidationError(req.Pricing); err != nil {
			return nil, err
		}
		if err := validatePricing(*req.Pricing); err != nil {
			return nil, err
		}
	}

	tpl, err := s.templates.Update(ctx, id, func(t *models.Template) error {
		if !canManage(actor, t) {
			return apperrors.Forbidden("You can only edit your own templates")
		}
		if req.Title != nil {
			t.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			t.Description = strings.TrimSpace(*req.Description)
		}
		if req.LongDescription != nil {
			t.LongDescription = *req.LongDescription
		}
		if req.Category != nil {
			t.Category = *req.Category
		}
		if req.Subcategory != nil {
			t.Subcategory = *req.Subcategory
		}
		if req.Tags != nil {
			t.Tags = normalizeTags(req.Tags)
		}
		if req.Technologies != nil {
			t.Technologies = pq.StringArray(req.Technologies)
		}
		if req.Pricing != nil {
			t.Pricing = req.Pricing.toModel()
		}
		if req.Images != nil {
			t.Images = models.TemplateImages{
				Thumbnail: req.Images.Thumbnail,
				Gallery:   pq.StringArray(req.Images.Gallery),
				Preview:   req.Images.Preview,
			}
		}
		if req.Files != nil {
			t.Files = models.TemplateFiles{
				MainFile:      req.Files.MainFile,
				Documentation: req.Files.Documentation,
				Changelog:     req.Files.Changelog,
				License:       req.Files.License,
			}
		}
		if req.Metadata != nil {
			t.Metadata = *req.Metadata
		}
		if req.SEO != nil {
			t.SEO = *req.SEO
		}
		t.ApplyDefaults(s.now())
		return nil
	})
	if err != nil {
		return nil, repoError(err, "Template")
	}
	return tpl, nil
}

// Submit sends a draft or rejected template to moderation.
func (s *TemplateService) Submit(ctx context.Context, actor Actor, id uuid.UUID) (*models.Template, error) {
	tpl, err := s.templates.Update(ctx, id, func(t *models.Template) error {
		if t.SellerID != actor.ID {
			return apperrors.Forbidden("You can only submit your own templates")
		}
		return t.TransitionTo(models.TemplateStatusPending, "", s.now())
	})
	if err != nil {
		return nil, repoError(err, "Template")
	}
	return tpl, nil
}

// Moderate applies an admin decision.
func (s *TemplateService) Moderate(ctx context.Context, actor Actor, id uuid.UUID, req *ModerateTemplateRequest) (*models.Template, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("")
	}
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	tpl, err := s.templates.Update(ctx, id, func(t *models.Template) error {
		if err := t.TransitionTo(req.Status, req.Notes, s.now()); err != nil {
			return err
		}
		if req.FeaturedUntil != nil {
			t.FeaturedUntil = req.FeaturedUntil
		}
		return nil
	})
	if err != nil {
		return nil, repoError(err, "Template")
	}

	logrus.WithFields(logrus.Fields{
		"template_id": tpl.ID,
		"status":      tpl.Status,
		"admin_id":    actor.ID,
	}).Info("Template moderated")

	return tpl, nil
}

// GetBySlug returns a template and counts the view. Unapproved templates are
// only visible to their seller and to admins.
func (s *TemplateService) GetBySlug(ctx context.Context, viewer *Actor, slug string) (*models.Template, error) {
	tpl, err := s.templates.FindBySlug(ctx, slug)
	if err != nil {
		return nil, repoError(err, "Template")
	}

	if !tpl.IsPurchasable() {
		if viewer == nil || !canManage(*viewer, tpl) {
			return nil, apperrors.NotFound("Template")
		}
		return tpl, nil
	}

	if err := s.templates.IncrementStat(ctx, tpl.ID, models.StatViews, 1); err != nil {
		logrus.WithError(err).WithField("template_id", tpl.ID).Warn("Failed to count template view")
	} else {
		tpl.Stats.Views++
	}
	return tpl, nil
}

// Search lists approved templates matching the filters.
func (s *TemplateService) Search(ctx context.Context, req *TemplateSearchRequest) (utils.PaginationResult, error) {
	params := utils.NormalizePagination(req.PaginationParams)

	if req.MinPrice != nil && req.MaxPrice != nil && req.MinPrice.GreaterThan(*req.MaxPrice) {
		return utils.PaginationResult{}, apperrors.Validation(map[string]string{
			"minPrice": "minPrice cannot be greater than maxPrice",
		})
	}

	templates, total, err := s.templates.Search(ctx, repository.TemplateQuery{
		PaginationParams: params,
		Status:           models.TemplateStatusApproved,
		PricingType:      req.PricingType,
		MinPrice:         req.MinPrice,
		MaxPrice:         req.MaxPrice,
		Tags:             normalizeTags(req.Tags),
	})
	if err != nil {
		return utils.PaginationResult{}, repoError(err, "Template")
	}
	return utils.CreatePaginationResult(templates, total, params), nil
}

// ListBySeller lists every template of one seller regardless of status.
func (s *TemplateService) ListBySeller(ctx context.Context, sellerID uuid.UUID, params utils.PaginationParams) (utils.PaginationResult, error) {
	params = utils.NormalizePagination(params)
	templates, total, err := s.templates.Search(ctx, repository.TemplateQuery{
		PaginationParams: params,
		SellerID:         &sellerID,
	})
	if err != nil {
		return utils.PaginationResult{}, repoError(err, "Template")
	}
	return utils.CreatePaginationResult(templates, total, params), nil
}

func clampShowcase(limit int) int {
	if limit < 1 {
		return defaultShowcaseLimit
	}
	if limit > maxShowcaseLimit {
		return maxShowcaseLimit
	}
	return limit
}

func (s *TemplateService) Featured(ctx context.Context, limit int) ([]models.Template, error) {
	templates, err := s.templates.Featured(ctx, s.now(), clampShowcase(limit))
	if err != nil {
		return nil, repoError(err, "Template")
	}
	return templates, nil
}

func (s *TemplateService) Popular(ctx context.Context, limit int) ([]models.Template, error) {
	templates, err := s.templates.Popular(ctx, clampShowcase(limit))
	if err != nil {
		return nil, repoError(err, "Template")
	}
	return templates, nil
}
