package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/DevViTien/devshop-web-app/internal/i18n"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/services"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// bindOptionalJSON decodes the body when there is one.
func bindOptionalJSON(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return utils.BindJSON(c, req)
}

func orderListRequest(c *gin.Context) *services.OrderListRequest {
	return &services.OrderListRequest{
		PaginationParams: utils.GetPaginationParams(c),
		Status:           models.OrderStatus(c.Query("status")),
	}
}

// POST /api/orders
func (h *OrderHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.CreateOrderRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	result, err := h.orderService.Create(c.Request.Context(), actor, &req, requestMeta(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, i18n.KeyOrderCreated, result)
}

// GET /api/orders
func (h *OrderHandler) ListPurchases(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.orderService.ListPurchases(c.Request.Context(), actor.ID, orderListRequest(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, result)
}

// GET /api/orders/sales
func (h *OrderHandler) ListSales(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.orderService.ListSales(c.Request.Context(), actor.ID, orderListRequest(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, result)
}

// GET /api/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	order, err := h.orderService.Get(c.Request.Context(), actor, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeySuccess, order)
}

// POST /api/orders/:id/pay
func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req services.ConfirmPaymentRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	order, err := h.orderService.ConfirmPayment(c.Request.Context(), actor, id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyOrderPaid, order)
}

// POST /api/orders/:id/download
func (h *OrderHandler) Download(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	result, err := h.orderService.Download(c.Request.Context(), actor, id, requestMeta(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyOrderDownloadReady, result)
}

// POST /api/orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	order, err := h.orderService.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyOrderCancelled, order)
}

// POST /api/orders/:id/dispute
func (h *OrderHandler) OpenDispute(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var req services.OpenDisputeRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	order, err := h.orderService.OpenDispute(c.Request.Context(), actor, id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, i18n.KeyOrderDisputeOpened, order)
}
