package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
	"github.com/DevViTien/devshop-web-app/internal/event"
	"github.com/DevViTien/devshop-web-app/internal/metrics"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/repository"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

func (f *fixture) review(t *testing.T, buyer *models.User, rating int) *ReviewResult {
	t.Helper()
	order := f.completedOrder(t, buyer, f.tpl)
	result, err := f.reviews.Create(f.ctx, actorOf(buyer), &CreateReviewRequest{
		OrderID:    order.ID,
		TemplateID: f.tpl.ID,
		Rating:     rating,
		Content:    "Clean code and good documentation.",
		Pros:       []string{" typed ", ""},
	})
	require.NoError(t, err)
	return result
}

func (f *fixture) templateRating(t *testing.T) models.RatingSummary {
	t.Helper()
	tpl, err := f.store.Templates.FindByID(f.ctx, f.tpl.ID)
	require.NoError(t, err)
	return tpl.Stats.Rating
}

func TestCreateReviewRequiresPurchase(t *testing.T) {
	f := newFixture(t)

	_, err := f.reviews.Create(f.ctx, actorOf(f.buyer), &CreateReviewRequest{
		OrderID:    uuid.New(),
		TemplateID: f.tpl.ID,
		Rating:     5,
		Content:    "Never bought it but it looks nice.",
	})
	requireCode(t, err, apperrors.CodePurchaseRequired)

	// A pending order is not a purchase.
	pending, err := f.orders.Create(f.ctx, actorOf(f.buyer), &CreateOrderRequest{TemplateID: f.tpl.ID}, RequestMeta{})
	require.NoError(t, err)
	_, err = f.reviews.Create(f.ctx, actorOf(f.buyer), &CreateReviewRequest{
		OrderID:    pending.Order.ID,
		TemplateID: f.tpl.ID,
		Rating:     5,
		Content:    "Still waiting for payment to clear.",
	})
	requireCode(t, err, apperrors.CodePurchaseRequired)

	// Another buyer's order does not count either.
	other := f.user(t, "other@example.com", models.UserRoleBuyer)
	order := f.completedOrder(t, other, f.tpl)
	_, err = f.reviews.Create(f.ctx, actorOf(f.buyer), &CreateReviewRequest{
		OrderID:    order.ID,
		TemplateID: f.tpl.ID,
		Rating:     5,
		Content:    "Borrowed my friend's receipt.",
	})
	requireCode(t, err, apperrors.CodePurchaseRequired)
}

func TestCreateReviewRefreshesRatings(t *testing.T) {
	f := newFixture(t)
	second := f.user(t, "second@example.com", models.UserRoleBuyer)

	first := f.review(t, f.buyer, 4)
	assert.True(t, first.RatingRefreshed)
	require.NotNil(t, first.TemplateRating)
	assert.Equal(t, models.RatingSummary{Average: 4.0, Count: 1}, *first.TemplateRating)
	assert.Equal(t, models.RatingSummary{Average: 4.0, Count: 1}, f.templateRating(t))
	assert.True(t, first.Review.IsVerifiedPurchase)
	assert.Equal(t, models.ReviewStatusApproved, first.Review.Status)
	assert.Equal(t, []string{"typed"}, []string(first.Review.Pros))

	next := f.review(t, second, 5)
	assert.True(t, next.RatingRefreshed)
	assert.Equal(t, models.RatingSummary{Average: 4.5, Count: 2}, f.templateRating(t))

	seller, err := f.store.Users.FindByID(f.ctx, f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RatingSummary{Average: 4.5, Count: 2}, seller.SellerInfo.Rating)

	assert.Contains(t, f.events.events, event.ReviewCreated)
	assert.Contains(t, f.events.events, event.TemplateRatingUpdated)

	breakdown, err := f.reviews.TemplateRating(f.ctx, f.tpl.Slug)
	require.NoError(t, err)
	assert.EqualValues(t, 1, breakdown.Distribution[4])
	assert.EqualValues(t, 1, breakdown.Distribution[5])
}

func TestCreateReviewOncePerOrder(t *testing.T) {
	f := newFixture(t)
	first := f.review(t, f.buyer, 4)

	_, err := f.reviews.Create(f.ctx, actorOf(f.buyer), &CreateReviewRequest{
		OrderID:    first.Review.OrderID,
		TemplateID: f.tpl.ID,
		Rating:     1,
		Content:    "Changed my mind about this one.",
	})
	requireCode(t, err, apperrors.CodeAlreadyReviewed)
	assert.Equal(t, models.RatingSummary{Average: 4.0, Count: 1}, f.templateRating(t))
}

func TestCreateReviewValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.reviews.Create(f.ctx, actorOf(f.buyer), &CreateReviewRequest{
		OrderID:    uuid.New(),
		TemplateID: f.tpl.ID,
		Rating:     6,
		Content:    "short",
	})
	requireCode(t, err, apperrors.CodeValidation)
	appErr, _ := apperrors.As(err)
	assert.Contains(t, appErr.Fields, "rating")
	assert.Contains(t, appErr.Fields, "content")
}

type failingRatings struct {
	repository.ReviewRepository
}

func (failingRatings) TemplateRating(ctx context.Context, templateID uuid.UUID) (models.RatingBreakdown, error) {
	return models.RatingBreakdown{}, errors.New("aggregate timed out")
}

func TestRatingFailureKeepsReview(t *testing.T) {
	f := newFixture(t)
	order := f.completedOrder(t, f.buyer, f.tpl)

	store := *f.store
	store.Reviews = failingRatings{f.store.Reviews}
	svc := NewReviewService(&store, f.events, metrics.NewMetrics())

	result, err := svc.Create(f.ctx, actorOf(f.buyer), &CreateReviewRequest{
		OrderID:    order.ID,
		TemplateID: f.tpl.ID,
		Rating:     3,
		Content:    "Works, but the docs are thin.",
	})
	require.NoError(t, err)
	assert.False(t, result.RatingRefreshed)
	assert.Nil(t, result.TemplateRating)

	stored, err := f.store.Reviews.FindByID(f.ctx, result.Review.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Rating)
	assert.Equal(t, models.RatingSummary{}, f.templateRating(t))
}

func TestVoteHelpfulOncePerUser(t *testing.T) {
	f := newFixture(t)
	voter := f.user(t, "voter@example.com", models.UserRoleBuyer)
	review := f.review(t, f.buyer, 5).Review

	yes := true
	voted, err := f.reviews.VoteHelpful(f.ctx, actorOf(voter), review.ID, &VoteReviewRequest{Helpful: &yes})
	require.NoError(t, err)
	assert.Equal(t, 1, voted.HelpfulVotes.Helpful)

	no := false
	_, err = f.reviews.VoteHelpful(f.ctx, actorOf(voter), review.ID, &VoteReviewRequest{Helpful: &no})
	requireCode(t, err, apperrors.CodeAlreadyVoted)

	_, err = f.reviews.VoteHelpful(f.ctx, actorOf(f.buyer), review.ID, &VoteReviewRequest{Helpful: &yes})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.reviews.VoteHelpful(f.ctx, actorOf(voter), review.ID, &VoteReviewRequest{})
	requireCode(t, err, apperrors.CodeValidation)

	stored, err := f.store.Reviews.FindByID(f.ctx, review.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.HelpfulVotes.Helpful)
	assert.Equal(t, 0, stored.HelpfulVotes.NotHelpful)
	assert.Len(t, stored.HelpfulVotes.Voters, 1)
}

func TestEditReview(t *testing.T) {
	f := newFixture(t)
	review := f.review(t, f.buyer, 4).Review

	two := 2
	_, err := f.reviews.Edit(f.ctx, actorOf(f.seller), review.ID, &EditReviewRequest{
		Content: "Rewriting someone else's review.",
		Rating:  &two,
	})
	requireCode(t, err, apperrors.CodeForbidden)

	result, err := f.reviews.Edit(f.ctx, actorOf(f.buyer), review.ID, &EditReviewRequest{
		Content: "Found a few bugs after a week of use.",
		Rating:  &two,
		Reason:  "more experience",
	})
	require.NoError(t, err)
	assert.True(t, result.Review.IsEdited)
	require.Len(t, result.Review.EditHistory, 1)
	assert.Equal(t, "Clean code and good documentation.", result.Review.EditHistory[0].Content)
	assert.True(t, result.RatingRefreshed)
	assert.Equal(t, models.RatingSummary{Average: 2.0, Count: 1}, f.templateRating(t))
}

func TestFlagAndModerate(t *testing.T) {
	f := newFixture(t)
	reporter := f.user(t, "reporter@example.com", models.UserRoleBuyer)
	review := f.review(t, f.buyer, 4).Review

	_, err := f.reviews.Flag(f.ctx, actorOf(f.buyer), review.ID, &FlagReviewRequest{Reason: models.FlagReasonSpam})
	requireCode(t, err, apperrors.CodeForbidden)

	flagged, err := f.reviews.Flag(f.ctx, actorOf(reporter), review.ID, &FlagReviewRequest{
		Reason:      models.FlagReasonFake,
		Description: "reads like an ad",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusFlagged, flagged.Review.Status)
	assert.Equal(t, models.RatingSummary{}, f.templateRating(t))

	_, err = f.reviews.Flag(f.ctx, actorOf(reporter), review.ID, &FlagReviewRequest{Reason: models.FlagReasonSpam})
	requireCode(t, err, apperrors.CodeInvalidState)

	queue, err := f.reviews.ListPendingModeration(f.ctx, utils.PaginationParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, queue.Total)

	_, err = f.reviews.Moderate(f.ctx, actorOf(reporter), review.ID, &ModerateReviewRequest{Status: models.ReviewStatusApproved})
	requireCode(t, err, apperrors.CodeForbidden)

	moderated, err := f.reviews.Moderate(f.ctx, actorOf(f.admin), review.ID, &ModerateReviewRequest{
		Status: models.ReviewStatusApproved,
		Notes:  "legitimate purchase",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusApproved, moderated.Review.Status)
	assert.Equal(t, models.RatingSummary{Average: 4.0, Count: 1}, f.templateRating(t))

	listed, err := f.reviews.ListByTemplate(f.ctx, f.tpl.Slug, utils.PaginationParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, listed.Total)
}

func TestSellerResponse(t *testing.T) {
	f := newFixture(t)
	review := f.review(t, f.buyer, 5).Review

	_, err := f.reviews.Respond(f.ctx, actorOf(f.buyer), review.ID, &SellerResponseRequest{Content: "Thanks me!"})
	requireCode(t, err, apperrors.CodeForbidden)

	responded, err := f.reviews.Respond(f.ctx, actorOf(f.seller), review.ID, &SellerResponseRequest{Content: "Thanks for the kind words."})
	require.NoError(t, err)
	require.NotNil(t, responded.SellerResponse)
	assert.Equal(t, f.now, responded.SellerResponse.RespondedAt)
	assert.False(t, responded.SellerResponse.IsEdited)

	edited, err := f.reviews.Respond(f.ctx, actorOf(f.seller), review.ID, &SellerResponseRequest{Content: "Version 2 fixes the layout bug."})
	require.NoError(t, err)
	assert.True(t, edited.SellerResponse.IsEdited)
	assert.Equal(t, "Version 2 fixes the layout bug.", edited.SellerResponse.Content)
}

func TestListByReviewer(t *testing.T) {
	f := newFixture(t)
	f.review(t, f.buyer, 5)

	mine, err := f.reviews.ListByReviewer(f.ctx, f.buyer.ID, utils.PaginationParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, mine.Total)

	_, err = f.reviews.ListByTemplate(f.ctx, "no-such-template", utils.PaginationParams{})
	requireCode(t, err, apperrors.CodeNotFound)
}
