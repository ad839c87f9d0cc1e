// internal/services/order_service.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
	"github.com/DevViTien/devshop-web-app/internal/config"
	"github.com/DevViTien/devshop-web-app/internal/event"
	"github.com/DevViTien/devshop-web-app/internal/metrics"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/repository"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

type OrderService struct {
	orders    repository.OrderRepository
	templates repository.TemplateRepository
	users     repository.UserRepository
	gateway   PaymentGateway
	links     LinkSigner
	events    event.Publisher
	metrics   *metrics.Metrics
	cfg       config.OrderConfig
	taxRate   decimal.Decimal
	now       Clock
}

type CreateOrderRequest struct {
	TemplateID    uuid.UUID            `json:"templateId" validate:"required"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod" validate:"omitempty,oneof=stripe paypal bank_transfer free"`
	CustomerNotes string               `json:"customerNotes" validate:"max=1000"`
	Source        models.OrderSource   `json:"source" validate:"omitempty,oneof=web mobile api"`
	Referrer      string               `json:"referrer" validate:"max=500"`
}

type CreateOrderResult struct {
	Order        *models.Order `json:"order"`
	ClientSecret string        `json:"clientSecret,omitempty"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"omitempty,max=255"`
}

type RefundOrderRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required,min=3,max=500"`
}

type OpenDisputeRequest struct {
	Reason      string `json:"reason" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type ResolveDisputeRequest struct {
	Status     models.DisputeStatus `json:"status" validate:"required,oneof=investigating resolved closed"`
	Resolution string               `json:"resolution" validate:"max=2000"`
}

type OrderListRequest struct {
	utils.PaginationParams
	Status models.OrderStatus `validate:"omitempty,oneof=pending processing completed cancelled refunded disputed"`
}

type DownloadResult struct {
	DownloadURL        string     `json:"downloadUrl"`
	DownloadsRemaining int        `json:"downloadsRemaining"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
}

func NewOrderService(
	store *repository.Store,
	gateway PaymentGateway,
	links LinkSigner,
	events event.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
) *OrderService {
	return &OrderService{
		orders:    store.Orders,
		templates: store.Templates,
		users:     store.Users,
		gateway:   gateway,
		links:     links,
		events:    events,
		metrics:   m,
		cfg:       cfg.Orders,
		taxRate:   decimal.NewFromFloat(cfg.Payment.TaxRatePercent),
		now:       systemClock,
	}
}

func (s *OrderService) pendingExpiry() time.Duration {
	return time.Duration(s.cfg.PendingExpiryMinutes) * time.Minute
}

// snapshot prices the template at the given moment.
func (s *OrderService) snapshot(tpl *models.Template, now time.Time) models.OrderDetails {
	price := tpl.EffectivePrice(now)
	details := models.OrderDetails{
		TemplateTitle:   tpl.Title,
		TemplateSlug:    tpl.Slug,
		TemplateVersion: tpl.Metadata.Version,
		Price:           tpl.Pricing.Price,
		Currency:        tpl.Pricing.Currency,
		FinalPrice:      price,
	}
	if tpl.Pricing.Type == models.PricingFree {
		details.Price = decimal.Zero
	}
	if tpl.DiscountActive(now) {
		details.Discount = &models.OrderDiscount{
			Type:  models.DiscountPercentage,
			Value: tpl.Pricing.Discount.Percentage,
		}
	}
	if s.taxRate.IsPositive() && price.IsPositive() {
		tax := price.Mul(s.taxRate).Div(decimal.NewFromInt(100)).Round(2)
		details.Tax = &models.OrderTax{Rate: s.taxRate, Amount: tax}
		details.FinalPrice = price.Add(tax)
	}
	return details
}

// Create places an order for an approved template. Free templates are
// completed straight away; paid ones get a payment intent and stay pending
// until the payment is confirmed.
func (s *OrderService) Create(ctx context.Context, buyer Actor, req *CreateOrderRequest, meta RequestMeta) (result *CreateOrderResult, err error) {
	ctx, span := startSpan(ctx, "OrderService.Create",
		attribute.String("buyer.id", buyer.ID.String()),
		attribute.String("template.id", req.TemplateID.String()))
	defer func() { endSpan(span, err) }()

	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	tpl, err := s.templates.FindByID(ctx, req.TemplateID)
	if err != nil {
		return nil, repoError(err, "Template")
	}
	if !tpl.IsPurchasable() {
		return nil, apperrors.InvalidState("Template is not available for purchase")
	}
	if tpl.SellerID == buyer.ID {
		return nil, apperrors.InvalidState("You cannot purchase your own template")
	}

	now := s.now()
	details := s.snapshot(tpl, now)
	free := details.FinalPrice.IsZero()

	method := req.PaymentMethod
	switch {
	case free:
		method = models.PaymentMethodFree
	case method == "":
		method = models.PaymentMethodStripe
	case method == models.PaymentMethodFree:
		return nil, apperrors.Validation(map[string]string{
			"paymentMethod": "This template is not free",
		})
	}

	order := &models.Order{
		BuyerID:       buyer.ID,
		SellerID:      tpl.SellerID,
		TemplateID:    tpl.ID,
		Details:       details,
		Payment:       models.OrderPayment{Method: method, RefundAmount: decimal.Zero},
		Download:      models.OrderDownload{MaxDownloads: s.cfg.MaxDownloads},
		CustomerNotes: req.CustomerNotes,
		Metadata: models.OrderMetadata{
			BuyerIP:        meta.IP,
			BuyerUserAgent: meta.UserAgent,
			Source:         req.Source,
			Referrer:       req.Referrer,
		},
	}
	if err := order.PrepareForCreate(now, s.pendingExpiry()); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "Failed to create order", err)
	}

	result = &CreateOrderResult{Order: order}

	if free {
		link, err := s.links.DownloadURL(tpl.Files.MainFile, s.downloadTTL())
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "Failed to prepare download", err)
		}
		if err := order.ProcessPayment("free_"+order.OrderNumber, "", now); err != nil {
			return nil, err
		}
		if err := order.Fulfill(link, s.cfg.DownloadExpiryHours, now); err != nil {
			return nil, err
		}
	} else {
		intent, err := s.gateway.CreateIntent(ctx, order)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodePaymentFailed, "Could not start payment", err)
		}
		order.Payment.PaymentIntentID = intent.ID
		result.ClientSecret = intent.ClientSecret
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, repoError(err, "Order")
	}
	s.metrics.OrderTransitions.WithLabelValues("created").Inc()

	logrus.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"buyer_id":     buyer.ID,
		"template_id":  tpl.ID,
		"amount":       details.FinalPrice.String(),
	}).Info("Order created")

	if free {
		s.recordSale(ctx, order)
	}
	return result, nil
}

func (s *OrderService) downloadTTL() time.Duration {
	hours := s.cfg.DownloadExpiryHours
	if hours <= 0 {
		hours = models.DefaultDownloadExpiryHours
	}
	return time.Duration(hours) * time.Hour
}

// ConfirmPayment checks the payment with the gateway and, once it has
// succeeded, fulfills the order.
func (s *OrderService) ConfirmPayment(ctx context.Context, buyer Actor, orderID uuid.UUID, req *ConfirmPaymentRequest) (order *models.Order, err error) {
	ctx, span := startSpan(ctx, "OrderService.ConfirmPayment", attribute.String("order.id", orderID.String()))
	defer func() { endSpan(span, err) }()

	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	existing, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, repoError(err, "Order")
	}
	if !existing.IsBuyer(buyer.ID) && !buyer.IsAdmin() {
		return nil, apperrors.Forbidden("You can only pay for your own orders")
	}
	if existing.Status != models.OrderStatusPending {
		return nil, apperrors.InvalidState("Order is already " + string(existing.Status))
	}

	intentID := existing.Payment.PaymentIntentID
	if req.PaymentIntentID != "" {
		if intentID != "" && req.PaymentIntentID != intentID {
			return nil, apperrors.Validation(map[string]string{
				"paymentIntentId": "Payment does not belong to this order",
			})
		}
		intentID = req.PaymentIntentID
	}
	if intentID == "" {
		return nil, apperrors.Validation(map[string]string{
			"paymentIntentId": "paymentIntentId is required",
		})
	}

	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePaymentFailed, "Could not verify payment", err)
	}

	switch intent.Status {
	case IntentFailed:
		if _, err := s.orders.Update(ctx, orderID, func(o *models.Order) error {
			return o.MarkPaymentFailed()
		}); err != nil {
			return nil, repoError(err, "Order")
		}
		s.metrics.OrderTransitions.WithLabelValues("payment_failed").Inc()
		return nil, apperrors.New(apperrors.CodePaymentFailed, "Payment failed")
	case IntentPending:
		return nil, apperrors.New(apperrors.CodePaymentFailed, "Payment has not completed yet")
	}

	tpl, err := s.templates.FindByID(ctx, existing.TemplateID)
	if err != nil {
		return nil, repoError(err, "Template")
	}
	link, err := s.links.DownloadURL(tpl.Files.MainFile, s.downloadTTL())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "Failed to prepare download", err)
	}

	now := s.now()
	order, err = s.orders.Update(ctx, orderID, func(o *models.Order) error {
		if err := o.ProcessPayment(intent.ID, intent.ID, now); err != nil {
			return err
		}
		return o.Fulfill(link, s.cfg.DownloadExpiryHours, now)
	})
	if err != nil {
		return nil, repoError(err, "Order")
	}

	s.metrics.OrderTransitions.WithLabelValues("paid").Inc()
	s.recordSale(ctx, order)
	return order, nil
}

// recordSale updates template and seller statistics after an order
// completed. Failures are logged; the order itself is already committed.
func (s *OrderService) recordSale(ctx context.Context, order *models.Order) {
	s.metrics.OrderTransitions.WithLabelValues("completed").Inc()

	if err := s.templates.IncrementStat(ctx, order.TemplateID, models.StatSales, 1); err != nil {
		logrus.WithError(err).WithField("template_id", order.TemplateID).Error("Failed to count template sale")
	}

	earnings := order.Details.FinalPrice
	if order.Details.Tax != nil {
		earnings = earnings.Sub(order.Details.Tax.Amount)
	}
	if _, err := s.users.Update(ctx, order.SellerID, func(u *models.User) error {
		u.RecordSale(earnings)
		return nil
	}); err != nil {
		logrus.WithError(err).WithField("seller_id", order.SellerID).Error("Failed to record seller sale")
	}

	publish(ctx, s.events, s.metrics, event.OrderCompleted, map[string]interface{}{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"buyerId":     order.BuyerID,
		"sellerId":    order.SellerID,
		"templateId":  order.TemplateID,
		"amount":      order.Details.FinalPrice.String(),
		"currency":    order.Details.Currency,
	})
}

func downloadOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.HasCode(err, apperrors.CodeDownloadLimit):
		return "limit"
	case apperrors.HasCode(err, apperrors.CodeDownloadExp):
		return "expired"
	default:
		return "rejected"
	}
}

// Download consumes one of the buyer's downloads.
func (s *OrderService) Download(ctx context.Context, buyer Actor, orderID uuid.UUID, meta RequestMeta) (result *DownloadResult, err error) {
	ctx, span := startSpan(ctx, "OrderService.Download", attribute.String("order.id", orderID.String()))
	defer func() {
		s.metrics.Downloads.WithLabelValues(downloadOutcome(err)).Inc()
		endSpan(span, err)
	}()

	now := s.now()
	order, err := s.orders.Update(ctx, orderID, func(o *models.Order) error {
		if !o.IsBuyer(buyer.ID) {
			return apperrors.Forbidden("Only the buyer can download this order")
		}
		if err := o.CheckDownloadable(now); err != nil {
			return err
		}
		return o.RecordDownload(meta.IP, meta.UserAgent, now)
	})
	if err != nil {
		return nil, repoError(err, "Order")
	}

	if err := s.templates.IncrementStat(ctx, order.TemplateID, models.StatDownloads, 1); err != nil {
		logrus.WithError(err).WithField("template_id", order.TemplateID).Warn("Failed to count template download")
	}

	return &DownloadResult{
		DownloadURL:        order.Download.URL,
		DownloadsRemaining: order.DownloadsRemaining(),
		ExpiresAt:          order.Download.ExpiresAt,
	}, nil
}

// Refund returns money to the buyer through the gateway and marks the order
// refunded. A zero amount refunds the full total.
func (s *OrderService) Refund(ctx context.Context, admin Actor, orderID uuid.UUID, req *RefundOrderRequest) (order *models.Order, err error) {
	ctx, span := startSpan(ctx, "OrderService.Refund", attribute.String("order.id", orderID.String()))
	defer func() { endSpan(span, err) }()

	if !admin.IsAdmin() {
		return nil, apperrors.Forbidden("")
	}
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	// Reserving moves the payment to processing under the row lock, so a
	// concurrent refund fails here instead of reaching the gateway.
	reserved, err := s.orders.Update(ctx, orderID, func(o *models.Order) error {
		return o.ReserveRefund(req.Amount, req.Reason)
	})
	if err != nil {
		return nil, repoError(err, "Order")
	}

	if reserved.Payment.Method != models.PaymentMethodFree && reserved.Payment.PaymentIntentID != "" {
		refundID, err := s.gateway.Refund(ctx, reserved.Payment.PaymentIntentID, reserved.Payment.RefundAmount, reserved.Details.Currency)
		if err != nil {
			if _, relErr := s.orders.Update(ctx, orderID, func(o *models.Order) error {
				o.ReleaseRefund()
				return nil
			}); relErr != nil {
				logrus.WithError(relErr).WithField("order_id", orderID).Error("Failed to release refund reservation")
			}
			return nil, apperrors.Wrap(apperrors.CodePaymentFailed, "Refund was declined", err)
		}
		logrus.WithFields(logrus.Fields{
			"order_id":  orderID,
			"refund_id": refundID,
		}).Info("Gateway refund issued")
	}

	now := s.now()
	order, err = s.orders.Update(ctx, orderID, func(o *models.Order) error {
		return o.CompleteRefund(now)
	})
	if err != nil {
		return nil, repoError(err, "Order")
	}

	s.metrics.OrderTransitions.WithLabelValues("refunded").Inc()
	publish(ctx, s.events, s.metrics, event.OrderRefunded, map[string]interface{}{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"buyerId":     order.BuyerID,
		"amount":      order.Payment.RefundAmount.String(),
		"currency":    order.Details.Currency,
		"reason":      order.Payment.RefundReason,
	})
	return order, nil
}

func (s *OrderService) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.Update(ctx, orderID, func(o *models.Order) error {
		if !o.IsBuyer(actor.ID) && !actor.IsAdmin() {
			return apperrors.Forbidden("You can only cancel your own orders")
		}
		return o.Cancel()
	})
	if err != nil {
		return nil, repoError(err, "Order")
	}
	s.metrics.OrderTransitions.WithLabelValues("cancelled").Inc()
	return order, nil
}

func (s *OrderService) OpenDispute(ctx context.Context, buyer Actor, orderID uuid.UUID, req *OpenDisputeRequest) (*models.Order, error) {
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	order, err := s.orders.Update(ctx, orderID, func(o *models.Order) error {
		if !o.IsBuyer(buyer.ID) {
			return apperrors.Forbidden("Only the buyer can dispute this order")
		}
		return o.OpenDispute(req.Reason, req.Description, s.now())
	})
	if err != nil {
		return nil, repoError(err, "Order")
	}
	s.metrics.OrderTransitions.WithLabelValues("disputed").Inc()

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"reason":   req.Reason,
	}).Warn("Order disputed")
	return order, nil
}

func (s *OrderService) ResolveDispute(ctx context.Context, admin Actor, orderID uuid.UUID, req *ResolveDisputeRequest) (*models.Order, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.Forbidden("")
	}
	if err := utils.ValidationError(req); err != nil {
		return nil, err
	}

	order, err := s.orders.Update(ctx, orderID, func(o *models.Order) error {
		return o.ResolveDispute(req.Status, req.Resolution, s.now())
	})
	if err != nil {
		return nil, repoError(err, "Order")
	}
	return order, nil
}

// Get returns an order visible to its buyer, its seller or an admin.
func (s *OrderService) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, repoError(err, "Order")
	}
	if !order.IsBuyer(actor.ID) && !order.IsSeller(actor.ID) && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("You do not have access to this order")
	}
	return order, nil
}

func (s *OrderService) ListPurchases(ctx context.Context, buyerID uuid.UUID, req *OrderListRequest) (utils.PaginationResult, error) {
	if err := utils.ValidationError(req); err != nil {
		return utils.PaginationResult{}, err
	}
	params := utils.NormalizePagination(req.PaginationParams)
	orders, total, err := s.orders.ListByBuyer(ctx, buyerID, repository.OrderQuery{PaginationParams: params, Status: req.Status})
	if err != nil {
		return utils.PaginationResult{}, repoError(err, "Order")
	}
	return utils.CreatePaginationResult(orders, total, params), nil
}

func (s *OrderService) ListSales(ctx context.Context, sellerID uuid.UUID, req *OrderListRequest) (utils.PaginationResult, error) {
	if err := utils.ValidationError(req); err != nil {
		return utils.PaginationResult{}, err
	}
	params := utils.NormalizePagination(req.PaginationParams)
	orders, total, err := s.orders.ListBySeller(ctx, sellerID, repository.OrderQuery{PaginationParams: params, Status: req.Status})
	if err != nil {
		return utils.PaginationResult{}, repoError(err, "Order")
	}
	return utils.CreatePaginationResult(orders, total, params), nil
}

func (s *OrderService) RecentSales(ctx context.Context, limit int) ([]models.Order, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	orders, err := s.orders.RecentSales(ctx, limit)
	if err != nil {
		return nil, repoError(err, "Order")
	}
	return orders, nil
}

// ExpireAbandoned removes pending orders whose payment window has passed.
func (s *OrderService) ExpireAbandoned(ctx context.Context) (int64, error) {
	removed, err := s.orders.DeleteExpiredPending(ctx, s.now())
	if err != nil {
		return 0, repoError(err, "Order")
	}
	if removed > 0 {
		s.metrics.OrderTransitions.WithLabelValues("expired").Add(float64(removed))
		logrus.WithField("count", removed).Info("Expired abandoned orders")
	}
	return removed, nil
}

// StartSweeper runs ExpireAbandoned every interval until ctx is cancelled.
func (s *OrderService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ExpireAbandoned(ctx); err != nil {
					logrus.WithError(err).Error("Order sweeper failed")
				}
			}
		}
	}()
}
