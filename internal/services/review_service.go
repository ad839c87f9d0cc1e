// internal/services/review_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
	"github.com/DevViTien/devshop-web-app/internal/event"
	"github.com/DevViTien/devshop-web-app/internal/metrics"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/repository"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

type ReviewService struct {
	reviews   repository.ReviewRepository
	orders    repository.OrderRepository
	templates repository.TemplateRepository
	users     repository.UserRepository
	events    event.Publisher
	metrics   *metrics.Metrics
	now       Clock
}

type CreateReviewRequest struct {
	OrderID    uuid.UUID `json:"orderId" validate:"required"`
	TemplateID uuid.UUID `json:"templateId" validate:"required"`
	Rating     int       `json:"rating" validate:"required,min=1,max=5"`
	Title      string    `json:"title" validate:"max=100"`
	Content    string    `json:"content" validate:"required,min=10,max=2000"`
	Pros       []string  `json:"pros" validate:"max=10,dive,max=200"`
	Cons       []string  `json:"cons" validate:"max=10,dive,max=200"`
}

type EditReviewRequest struct {
	Content string `json:"content" validate:"required,min=10,max=2000"`
	Rating  *int   `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Reason  string `json:"reason" validate:"max=200"`
}

type VoteReviewRequest struct {
	Helpful *bool `json:"helpful" validate:"required"`
}

type FlagReviewRequest struct {
	Reason      models.FlagReason `json:"reason" validate:"required,oneof=spam inappropriate fake offensive other"`
	Description string            `json:"description" validate:"max=500"`
}

type SellerResponseRequest struct {
	Content string `json:"content" validate:"required,min=1,max=1000"`
}

type ModerateReviewRequest struct {
	Status models.ReviewStatus `json:"status" validate:"required,oneof=approved rejected pending"`
	Notes  string              `json:"notes" validate:"max=500"`
}

// ReviewResult reports the written review and whether the derived ratings
// were brought up to date afterwards.
type ReviewResult struct {
	Review          *models.Review        `json:"review"`
	RatingRefreshed bool                  `json:"ratingRefreshed"`
	TemplateRating  *models.RatingSummary `json:"templateRating,omitempty"`
}

func NewReviewService(store *repository.Store, events event.Publisher, m *metrics.Metrics) *ReviewService {
	return &ReviewService{
		reviews:   store.Reviews,
		orders:    store.Orders,
		templates: store.Templates,
		users:     store.Users,
		events:    events,
		metrics:   m,
		now:       systemClock,
	}
}

func trimmed(items []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Create stores a verified-purchase review and then recomputes the template
// and seller ratings.
func (s *ReviewService) Create(ctx context.Context, reviewer Actor, req *CreateReviewRequest) (result *ReviewResult, err error) {
	ctx, span := startSpan(ctx, "ReviewService.Create",
		attribute.String("reviewer.id", reviewer.ID.String()),
		attribute.String("template.id", req.TemplateID.String()))
	defer func() { endSpan(span, err) }()

	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	order, err := s.orders.FindCompletedPurchase(ctx, req.OrderID, reviewer.ID, req.TemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodePurchaseRequired, "You can only review templates you have purchased")
		}
		return nil, apperrors.Database(err)
	}

	review := &models.Review{
		TemplateID:         req.TemplateID,
		ReviewerID:         reviewer.ID,
		OrderID:            order.ID,
		Rating:             req.Rating,
		Title:              strings.TrimSpace(req.Title),
		Content:            strings.TrimSpace(req.Content),
		Pros:               trimmed(req.Pros),
		Cons:               trimmed(req.Cons),
		IsVerifiedPurchase: true,
	}
	review.ApplyDefaults()

	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.New(apperrors.CodeAlreadyReviewed, "You have already reviewed this order")
		}
		return nil, apperrors.Database(err)
	}

	s.metrics.ReviewsCreated.Inc()
	publish(ctx, s.events, s.metrics, event.ReviewCreated, map[string]interface{}{
		"reviewId":   review.ID,
		"templateId": review.TemplateID,
		"reviewerId": review.ReviewerID,
		"rating":     review.Rating,
	})

	result = &ReviewResult{Review: review}
	result.RatingRefreshed, result.TemplateRating = s.refreshRatings(ctx, review.TemplateID, order.SellerID)
	return result, nil
}

// refreshRatings recomputes the template rating and the seller rating from
// approved reviews. It never fails the caller: errors are logged, counted
// and reported through the returned flag.
func (s *ReviewService) refreshRatings(ctx context.Context, templateID, sellerID uuid.UUID) (bool, *models.RatingSummary) {
	ctx, span := startSpan(ctx, "ReviewService.refreshRatings", attribute.String("template.id", templateID.String()))
	defer span.End()

	log := logrus.WithFields(logrus.Fields{
		"template_id": templateID,
		"seller_id":   sellerID,
	})

	breakdown, err := s.reviews.TemplateRating(ctx, templateID)
	if err == nil {
		err = s.templates.SetRating(ctx, templateID, breakdown.RatingSummary)
	}
	if err != nil {
		span.RecordError(err)
		s.metrics.RatingRefreshFailures.WithLabelValues("template").Inc()
		log.WithError(err).Error("Failed to refresh template rating")
		return false, nil
	}
	summary := breakdown.RatingSummary

	refreshed := true
	sellerRating, err := s.reviews.SellerRating(ctx, sellerID)
	if err == nil {
		_, err = s.users.Update(ctx, sellerID, func(u *models.User) error {
			if u.SellerInfo != nil {
				u.SellerInfo.Rating = sellerRating
			}
			return nil
		})
	}
	if err != nil {
		span.RecordError(err)
		s.metrics.RatingRefreshFailures.WithLabelValues("seller").Inc()
		log.WithError(err).Error("Failed to refresh seller rating")
		refreshed = false
	}

	publish(ctx, s.events, s.metrics, event.TemplateRatingUpdated, map[string]interface{}{
		"templateId": templateID,
		"average":    summary.Average,
		"count":      summary.Count,
	})

	return refreshed, &summary
}

// refreshFor recomputes ratings for the template a review belongs to.
func (s *ReviewService) refreshFor(ctx context.Context, review *models.Review) (bool, *models.RatingSummary) {
	tpl, err := s.templates.FindByID(ctx, review.TemplateID)
	if err != nil {
		s.metrics.RatingRefreshFailures.WithLabelValues("template").Inc()
		logrus.WithError(err).WithField("template_id", review.TemplateID).Error("Failed to load template for rating refresh")
		return false, nil
	}
	return s.refreshRatings(ctx, tpl.ID, tpl.SellerID)
}

// VoteHelpful records one helpfulness vote per user.
func (s *ReviewService) VoteHelpful(ctx context.Context, voter Actor, reviewID uuid.UUID, req *VoteReviewRequest) (*models.Review, error) {
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	review, err := s.reviews.Update(ctx, reviewID, func(r *models.Review) error {
		return r.VoteHelpful(voter.ID, *req.Helpful)
	})
	if err != nil {
		return nil, repoError(err, "Review")
	}
	return review, nil
}

// Edit lets the reviewer rewrite the review. A changed rating on an approved
// review refreshes the ratings.
func (s *ReviewService) Edit(ctx context.Context, reviewer Actor, reviewID uuid.UUID, req *EditReviewRequest) (result *ReviewResult, err error) {
	ctx, span := startSpan(ctx, "ReviewService.Edit", attribute.String("review.id", reviewID.String()))
	defer func() { endSpan(span, err) }()

	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	var ratingChanged bool
	review, err := s.reviews.Update(ctx, reviewID, func(r *models.Review) error {
		if r.ReviewerID != reviewer.ID {
			return apperrors.Forbidden("You can only edit your own reviews")
		}
		previous := r.Rating
		if err := r.Edit(strings.TrimSpace(req.Content), req.Rating, req.Reason, s.now()); err != nil {
			return err
		}
		ratingChanged = r.Rating != previous && r.Status == models.ReviewStatusApproved
		return nil
	})
	if err != nil {
		return nil, repoError(err, "Review")
	}

	result = &ReviewResult{Review: review, RatingRefreshed: true}
	if ratingChanged {
		result.RatingRefreshed, result.TemplateRating = s.refreshFor(ctx, review)
	}
	return result, nil
}

// Flag reports a review. Each user may flag a review once.
func (s *ReviewService) Flag(ctx context.Context, reporter Actor, reviewID uuid.UUID, req *FlagReviewRequest) (*ReviewResult, error) {
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	var wasApproved bool
	review, err := s.reviews.Update(ctx, reviewID, func(r *models.Review) error {
		if r.ReviewerID == reporter.ID {
			return apperrors.Forbidden("You cannot flag your own review")
		}
		if r.HasFlagFrom(reporter.ID) {
			return apperrors.InvalidState("You have already flagged this review")
		}
		wasApproved = r.Status == models.ReviewStatusApproved
		r.Flag(req.Reason, reporter.ID, req.Description, s.now())
		return nil
	})
	if err != nil {
		return nil, repoError(err, "Review")
	}

	logrus.WithFields(logrus.Fields{
		"review_id":   review.ID,
		"reason":      req.Reason,
		"reported_by": reporter.ID,
	}).Warn("Review flagged")

	result := &ReviewResult{Review: review, RatingRefreshed: true}
	if wasApproved {
		result.RatingRefreshed, result.TemplateRating = s.refreshFor(ctx, review)
	}
	return result, nil
}

// Respond sets the seller's public reply. Only the template's seller may respond.
func (s *ReviewService) Respond(ctx context.Context, seller Actor, reviewID uuid.UUID, req *SellerResponseRequest) (*models.Review, error) {
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	existing, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return nil, repoError(err, "Review")
	}
	tpl, err := s.templates.FindByID(ctx, existing.TemplateID)
	if err != nil {
		return nil, repoError(err, "Template")
	}
	if tpl.SellerID != seller.ID {
		return nil, apperrors.Forbidden("Only the template's seller can respond to this review")
	}

	review, err := s.reviews.Update(ctx, reviewID, func(r *models.Review) error {
		r.AddSellerResponse(strings.TrimSpace(req.Content), s.now())
		return nil
	})
	if err != nil {
		return nil, repoError(err, "Review")
	}
	return review, nil
}

// Moderate applies an admin decision and refreshes ratings when the review
// enters or leaves the approved set.
func (s *ReviewService) Moderate(ctx context.Context, admin Actor, reviewID uuid.UUID, req *ModerateReviewRequest) (*ReviewResult, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.Forbidden("")
	}
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	var approvalChanged bool
	review, err := s.reviews.Update(ctx, reviewID, func(r *models.Review) error {
		wasApproved := r.Status == models.ReviewStatusApproved
		if err := r.Moderate(req.Status, req.Notes); err != nil {
			return err
		}
		approvalChanged = wasApproved != (r.Status == models.ReviewStatusApproved)
		return nil
	})
	if err != nil {
		return nil, repoError(err, "Review")
	}

	result := &ReviewResult{Review: review, RatingRefreshed: true}
	if approvalChanged {
		result.RatingRefreshed, result.TemplateRating = s.refreshFor(ctx, review)
	}
	return result, nil
}

// ListByTemplate returns the approved reviews of the template with the given slug.
func (s *ReviewService) ListByTemplate(ctx context.Context, slug string, params utils.PaginationParams) (utils.PaginationResult, error) {
	tpl, err := s.templates.FindBySlug(ctx, slug)
	if err != nil {
		return utils.PaginationResult{}, repoError(err, "Template")
	}
	params = utils.NormalizePagination(params)
	reviews, total, err := s.reviews.ListByTemplate(ctx, tpl.ID, params)
	if err != nil {
		return utils.PaginationResult{}, repoError(err, "Review")
	}
	return utils.CreatePaginationResult(reviews, total, params), nil
}

func (s *ReviewService) ListByReviewer(ctx context.Context, reviewerID uuid.UUID, params utils.PaginationParams) (utils.PaginationResult, error) {
	params = utils.NormalizePagination(params)
	reviews, total, err := s.reviews.ListByReviewer(ctx, reviewerID, params)
	if err != nil {
		return utils.PaginationResult{}, repoError(err, "Review")
	}
	return utils.CreatePaginationResult(reviews, total, params), nil
}

func (s *ReviewService) ListPendingModeration(ctx context.Context, params utils.PaginationParams) (utils.PaginationResult, error) {
	params = utils.NormalizePagination(params)
	reviews, total, err := s.reviews.ListPendingModeration(ctx, params)
	if err != nil {
		return utils.PaginationResult{}, repoError(err, "Review")
	}
	return utils.CreatePaginationResult(reviews, total, params), nil
}

// TemplateRating returns the rating summary and star distribution of a template.
func (s *ReviewService) TemplateRating(ctx context.Context, slug string) (*models.RatingBreakdown, error) {
	tpl, err := s.templates.FindBySlug(ctx, slug)
	if err != nil {
		return nil, repoError(err, "Template")
	}
	breakdown, err := s.reviews.TemplateRating(ctx, tpl.ID)
	if err != nil {
		return nil, repoError(err, "Review")
	}
	return &breakdown, nil
}
