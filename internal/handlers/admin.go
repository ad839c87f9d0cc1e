// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/DevViTien/devshop-web-app/internal/i18n"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/services"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

// AdminHandler serves the /api/admin routes. Every route sits behind
// AdminRequired; the services check the role again.
type AdminHandler struct {
	adminService    *services.AdminService
	userService     *services.UserService
	templateService *services.TemplateService
	orderService    *services.OrderService
	reviewService   *services.ReviewService
}

func NewAdminHandler(
	adminService *services.AdminService,
	userService *services.UserService,
	templateService *services.TemplateService,
	orderService *services.OrderService,
	reviewService *services.ReviewService,
) *AdminHandler {
	return &AdminHandler{
		adminService:    adminService,
		userService:     userService,
		templateService: templateService,
		orderService:    orderService,
		reviewService:   reviewService,
	}
}

// GET /api/admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeySuccess, stats)
}

// GET /api/admin/users
func (h *AdminHandler) GetUsers(c *gin.Context) {
	req := services.UserListRequest{
		PaginationParams: utils.GetPaginationParams(c),
		Role:             models.UserRole(c.Query("role")),
		Status:           models.UserStatus(c.Query("status")),
	}

	result, err := h.userService.ListUsers(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, result)
}

// PUT /api/admin/users/:id/role
func (h *AdminHandler) ChangeUserRole(c *gin.Context) {
	userID, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req services.ChangeRoleRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	profile, err := h.userService.ChangeRole(c.Request.Context(), userID, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyUserUpdated, profile)
}

// PUT /api/admin/users/:id/status
func (h *AdminHandler) ChangeUserStatus(c *gin.Context) {
	userID, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req services.ChangeStatusRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	profile, err := h.userService.ChangeStatus(c.Request.Context(), userID, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyUserUpdated, profile)
}

// PUT /api/admin/users/:id/verify-seller
func (h *AdminHandler) VerifySeller(c *gin.Context) {
	userID, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	profile, err := h.userService.VerifySeller(c.Request.Context(), userID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyUserUpdated, profile)
}

// PUT /api/admin/templates/:id/status
func (h *AdminHandler) ModerateTemplate(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req services.ModerateTemplateRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	tpl, err := h.templateService.Moderate(c.Request.Context(), actor, id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyTemplateModerated, tpl)
}

// GET /api/admin/orders/recent
func (h *AdminHandler) RecentSales(c *gin.Context) {
	orders, err := h.orderService.RecentSales(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeySuccess, orders)
}

// POST /api/admin/orders/:id/refund
func (h *AdminHandler) RefundOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req services.RefundOrderRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	order, err := h.orderService.Refund(c.Request.Context(), actor, id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyOrderRefunded, order)
}

// PUT /api/admin/orders/:id/dispute
func (h *AdminHandler) ResolveDispute(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req services.ResolveDisputeRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	order, err := h.orderService.ResolveDispute(c.Request.Context(), actor, id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyOrderDisputeResolved, order)
}

// GET /api/admin/reviews/moderation
func (h *AdminHandler) ReviewModerationQueue(c *gin.Context) {
	result, err := h.reviewService.ListPendingModeration(c.Request.Context(), utils.GetPaginationParams(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, result)
}

// PUT /api/admin/reviews/:id/status
func (h *AdminHandler) ModerateReview(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req services.ModerateReviewRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	result, err := h.reviewService.Moderate(c.Request.Context(), actor, id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyReviewModerated, result)
}
