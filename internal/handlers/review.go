package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/DevViTien/devshop-web-app/internal/i18n"
	"github.com/DevViTien/devshop-web-app/internal/services"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

type ReviewHandler struct {
	reviewService *services.ReviewService
}

func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
	}
}

// POST /api/reviews
func (h *ReviewHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.CreateReviewRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	result, err := h.reviewService.Create(c.Request.Context(), actor, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, i18n.KeyReviewCreated, result)
}

// GET /api/reviews/mine
func (h *ReviewHandler) Mine(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.reviewService.ListByReviewer(c.Request.Context(), actor.ID, utils.GetPaginationParams(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, result)
}

// GET /api/templates/:slug/reviews
func (h *ReviewHandler) ListByTemplate(c *gin.Context) {
	result, err := h.reviewService.ListByTemplate(c.Request.Context(), c.Param("slug"), utils.GetPaginationParams(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, result)
}

// GET /api/templates/:slug/rating
func (h *ReviewHandler) TemplateRating(c *gin.Context) {
	rating, err := h.reviewService.TemplateRating(c.Request.Context(), c.Param("slug"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeySuccess, rating)
}

// PUT /api/reviews/:id
func (h *ReviewHandler) Edit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req services.EditReviewRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	result, err := h.reviewService.Edit(c.Request.Context(), actor, id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyReviewUpdated, result)
}

// POST /api/reviews/:id/vote
func (h *ReviewHandler) Vote(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req services.VoteReviewRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	review, err := h.reviewService.VoteHelpful(c.Request.Context(), actor, id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyReviewVoted, review)
}

// POST /api/reviews/:id/flag
func (h *ReviewHandler) Flag(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req services.FlagReviewRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	result, err := h.reviewService.Flag(c.Request.Context(), actor, id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyReviewFlagged, result)
}

// POST /api/reviews/:id/response
func (h *ReviewHandler) Respond(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req services.SellerResponseRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	review, err := h.reviewService.Respond(c.Request.Context(), actor, id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyReviewResponded, review)
}
