package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
	"github.com/DevViTien/devshop-web-app/internal/i18n"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/services"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

type TemplateHandler struct {
	templateService *services.TemplateService
}

func NewTemplateHandler(templateService *services.TemplateService) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
	}
}

func queryDecimal(c *gin.Context, name string) (*decimal.Decimal, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperrors.Validation(map[string]string{name: name + " must be a number"})
	}
	return &d, nil
}

// GET /api/templates
func (h *TemplateHandler) Search(c *gin.Context) {
	req := services.TemplateSearchRequest{
		PaginationParams: utils.GetPaginationParams(c),
		PricingType:      models.PricingType(c.Query("pricingType")),
	}

	var err error
	if req.MinPrice, err = queryDecimal(c, "minPrice"); err != nil {
		utils.HandleError(c, err)
		return
	}
	if req.MaxPrice, err = queryDecimal(c, "maxPrice"); err != nil {
		utils.HandleError(c, err)
		return
	}
	if tags := c.Query("tags"); tags != "" {
		req.Tags = strings.Split(tags, ",")
	}

	result, err := h.templateService.Search(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, result)
}

// GET /api/templates/featured
func (h *TemplateHandler) Featured(c *gin.Context) {
	templates, err := h.templateService.Featured(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, i18n.KeySuccess, templates)
}

// GET /api/templates/popular
func (h *TemplateHandler) Popular(c *gin.Context) {
	templates, err := h.templateService.Popular(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, i18n.KeySuccess, templates)
}

// GET /api/templates/mine
func (h *TemplateHandler) Mine(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.templateService.ListBySeller(c.Request.Context(), actor.ID, utils.GetPaginationParams(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, result)
}

// GET /api/templates/:slug
func (h *TemplateHandler) GetBySlug(c *gin.Context) {
	viewer, _ := optionalActor(c)

	tpl, err := h.templateService.GetBySlug(c.Request.Context(), viewer, c.Param("slug"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeySuccess, tpl)
}

// POST /api/templates
func (h *TemplateHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.CreateTemplateRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	tpl, err := h.templateService.Create(c.Request.Context(), actor, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, i18n.KeyTemplateCreated, tpl)
}

// PUT /api/templates/:id
func (h *TemplateHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req services.UpdateTemplateRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	tpl, err := h.templateService.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyTemplateUpdated, tpl)
}

// POST /api/templates/:id/submit
func (h *TemplateHandler) Submit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	tpl, err := h.templateService.Submit(c.Request.Context(), actor, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyTemplateSubmitted, tpl)
}
