// internal/models/order.go
package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

const (
	DefaultMaxDownloads        = 10
	DefaultDownloadExpiryHours = 72
	DefaultPendingOrderExpiry  = 30 * time.Minute
)

var (
	ErrDownloadLimitReached = apperrors.New(apperrors.CodeDownloadLimit, "Download limit reached for this order")
	ErrDownloadExpired      = apperrors.New(apperrors.CodeDownloadExp, "Download link has expired")
	ErrNotFulfilled         = apperrors.InvalidState("Order has not been fulfilled yet")
)

type Order struct {
	BaseModel
	OrderNumber       string            `json:"orderNumber" gorm:"uniqueIndex;size:40;not null"`
	BuyerID           uuid.UUID         `json:"buyerId" gorm:"type:uuid;not null;index"`
	SellerID          uuid.UUID         `json:"sellerId" gorm:"type:uuid;not null;index"`
	TemplateID        uuid.UUID         `json:"templateId" gorm:"type:uuid;not null;index"`
	Details           OrderDetails      `json:"orderDetails" gorm:"type:jsonb;serializer:json;not null"`
	Payment           OrderPayment      `json:"payment" gorm:"embedded;embeddedPrefix:payment_"`
	Download          OrderDownload     `json:"download" gorm:"embedded;embeddedPrefix:download_"`
	Status            OrderStatus       `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillmentStatus" gorm:"type:varchar(20);not null;default:'pending'"`
	CustomerNotes     string            `json:"customerNotes,omitempty" gorm:"type:text"`
	SellerNotes       string            `json:"sellerNotes,omitempty" gorm:"type:text"`
	Dispute           *OrderDispute     `json:"dispute,omitempty" gorm:"type:jsonb;serializer:json"`
	Metadata          OrderMetadata     `json:"metadata" gorm:"type:jsonb;serializer:json"`
	ExpiresAt         *time.Time        `json:"expiresAt,omitempty" gorm:"index"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty"`
}

// OrderDetails is the pricing snapshot captured when the order is placed.
type OrderDetails struct {
	TemplateTitle   string          `json:"templateTitle"`
	TemplateSlug    string          `json:"templateSlug"`
	TemplateVersion string          `json:"templateVersion"`
	Price           decimal.Decimal `json:"price"`
	Currency        Currency        `json:"currency"`
	Discount        *OrderDiscount  `json:"discount,omitempty"`
	FinalPrice      decimal.Decimal `json:"finalPrice"`
	Tax             *OrderTax       `json:"tax,omitempty"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type OrderDiscount struct {
	Type  DiscountType    `json:"type"`
	Value decimal.Decimal `json:"value"`
	Code  string          `json:"code,omitempty"`
}

type OrderTax struct {
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

type OrderPayment struct {
	Method          PaymentMethod   `json:"method" gorm:"type:varchar(20);not null"`
	Status          PaymentStatus   `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	TransactionID   string          `json:"transactionId,omitempty" gorm:"size:255"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty" gorm:"size:255"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	RefundedAt      *time.Time      `json:"refundedAt,omitempty"`
	RefundAmount    decimal.Decimal `json:"refundAmount" gorm:"type:decimal(12,2);not null;default:0"`
	RefundReason    string          `json:"refundReason,omitempty" gorm:"type:text"`
}

type OrderDownload struct {
	URL          string          `json:"downloadUrl,omitempty" gorm:"type:text"`
	Count        int             `json:"downloadCount" gorm:"not null;default:0"`
	MaxDownloads int             `json:"maxDownloads" gorm:"not null;default:10"`
	ExpiresAt    *time.Time      `json:"expiresAt,omitempty"`
	History      []DownloadEntry `json:"downloadHistory" gorm:"type:jsonb;serializer:json"`
}

type DownloadEntry struct {
	DownloadedAt time.Time `json:"downloadedAt"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
}

type OrderDispute struct {
	Reason      string        `json:"reason"`
	Description string        `json:"description,omitempty"`
	Status      DisputeStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	ResolvedAt  *time.Time    `json:"resolvedAt,omitempty"`
	Resolution  string        `json:"resolution,omitempty"`
}

type OrderMetadata struct {
	BuyerIP        string      `json:"buyerIp,omitempty"`
	BuyerUserAgent string      `json:"buyerUserAgent,omitempty"`
	Source         OrderSource `json:"source"`
	Referrer       string      `json:"referrer,omitempty"`
}

// GenerateOrderNumber builds ORD-<base36 timestamp>-<6 random base36 chars>, uppercased.
func GenerateOrderNumber(now time.Time) (string, error) {
	suffix, err := utils.RandomString(utils.Base36Alphabet, 6)
	if err != nil {
		return "", err
	}
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	return strings.ToUpper("ORD-" + ts + "-" + suffix), nil
}

// PrepareForCreate assigns the identifiers and defaults a new order is
// persisted with. The order number is only assigned if not already set, and
// pending orders without an explicit expiry expire pendingExpiry after creation.
func (o *Order) PrepareForCreate(now time.Time, pendingExpiry time.Duration) error {
	o.EnsureID()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.OrderNumber == "" {
		number, err := GenerateOrderNumber(now)
		if err != nil {
			return err
		}
		o.OrderNumber = number
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	if o.FulfillmentStatus == "" {
		o.FulfillmentStatus = FulfillmentPending
	}
	if o.Payment.Status == "" {
		o.Payment.Status = PaymentStatusPending
	}
	if o.Download.MaxDownloads < 1 {
		o.Download.MaxDownloads = DefaultMaxDownloads
	}
	if o.Metadata.Source == "" {
		o.Metadata.Source = OrderSourceWeb
	}
	if pendingExpiry <= 0 {
		pendingExpiry = DefaultPendingOrderExpiry
	}
	if o.Status == OrderStatusPending && o.ExpiresAt == nil {
		expires := o.CreatedAt.Add(pendingExpiry)
		o.ExpiresAt = &expires
	}
	return nil
}

func (o *Order) IsBuyer(userID uuid.UUID) bool  { return o.BuyerID == userID }
func (o *Order) IsSeller(userID uuid.UUID) bool { return o.SellerID == userID }

func (o *Order) DownloadsRemaining() int {
	if remaining := o.Download.MaxDownloads - o.Download.Count; remaining > 0 {
		return remaining
	}
	return 0
}

// RecordDownload consumes one download and appends an audit entry. It fails
// once the count has reached the maximum, leaving the count unchanged.
func (o *Order) RecordDownload(ip, userAgent string, now time.Time) error {
	if o.Download.Count >= o.Download.MaxDownloads {
		return ErrDownloadLimitReached
	}
	o.Download.Count++
	o.Download.History = append(o.Download.History, DownloadEntry{
		DownloadedAt: now,
		IPAddress:    ip,
		UserAgent:    userAgent,
	})
	return nil
}

// CheckDownloadable reports whether the buyer may fetch the file right now.
func (o *Order) CheckDownloadable(now time.Time) error {
	if o.Status != OrderStatusCompleted || o.FulfillmentStatus != FulfillmentFulfilled || o.Download.URL == "" {
		return ErrNotFulfilled
	}
	if o.Download.ExpiresAt != nil && now.After(*o.Download.ExpiresAt) {
		return ErrDownloadExpired
	}
	return nil
}

// ProcessPayment marks the payment completed and moves the order to processing.
func (o *Order) ProcessPayment(transactionID, paymentIntentID string, now time.Time) error {
	if o.Status != OrderStatusPending {
		return apperrors.InvalidState("Order is already " + string(o.Status))
	}
	if o.Payment.Status != PaymentStatusPending && o.Payment.Status != PaymentStatusProcessing {
		return apperrors.InvalidState("Payment is already " + string(o.Payment.Status))
	}
	o.Payment.Status = PaymentStatusCompleted
	o.Payment.TransactionID = transactionID
	if paymentIntentID != "" {
		o.Payment.PaymentIntentID = paymentIntentID
	}
	o.Payment.PaidAt = &now
	o.Status = OrderStatusProcessing
	o.ExpiresAt = nil
	return nil
}

// MarkPaymentFailed records a declined payment. The order is cancelled with
// it; the buyer places a new order to try again.
func (o *Order) MarkPaymentFailed() error {
	if o.Status != OrderStatusPending {
		return apperrors.InvalidState("Order is already " + string(o.Status))
	}
	if o.Payment.Status != PaymentStatusPending && o.Payment.Status != PaymentStatusProcessing {
		return apperrors.InvalidState("Payment is already " + string(o.Payment.Status))
	}
	o.Payment.Status = PaymentStatusFailed
	o.Status = OrderStatusCancelled
	o.ExpiresAt = nil
	return nil
}

// Fulfill issues the download link, valid for expiryHours from now.
func (o *Order) Fulfill(downloadURL string, expiryHours int, now time.Time) error {
	if o.Status == OrderStatusRefunded || o.Status == OrderStatusCancelled {
		return apperrors.InvalidState("Cannot fulfill a " + string(o.Status) + " order")
	}
	if expiryHours <= 0 {
		expiryHours = DefaultDownloadExpiryHours
	}
	expires := now.Add(time.Duration(expiryHours) * time.Hour)
	o.Download.URL = downloadURL
	o.Download.ExpiresAt = &expires
	o.FulfillmentStatus = FulfillmentFulfilled
	o.Status = OrderStatusCompleted
	o.CompletedAt = &now
	o.ExpiresAt = nil
	return nil
}

// Refund records a refund against a completed payment. A zero amount refunds
// the full final price.
func (o *Order) Refund(amount decimal.Decimal, reason string, now time.Time) error {
	if err := o.ReserveRefund(amount, reason); err != nil {
		return err
	}
	return o.CompleteRefund(now)
}

// ReserveRefund checks a refund and holds the payment in processing while the
// gateway handles it. A second refund cannot be reserved until this one is
// completed or released.
func (o *Order) ReserveRefund(amount decimal.Decimal, reason string) error {
	if o.Payment.Status != PaymentStatusCompleted {
		return apperrors.InvalidState("Only completed payments can be refunded")
	}
	if amount.IsZero() {
		amount = o.Details.FinalPrice
	}
	if amount.IsNegative() || amount.GreaterThan(o.Details.FinalPrice) {
		return apperrors.Validation(map[string]string{
			"amount": "Refund amount must be between 0 and the order total",
		})
	}
	o.Payment.Status = PaymentStatusProcessing
	o.Payment.RefundAmount = amount
	o.Payment.RefundReason = reason
	return nil
}

// CompleteRefund finalizes a reserved refund.
func (o *Order) CompleteRefund(now time.Time) error {
	if o.Payment.Status != PaymentStatusProcessing || o.Status == OrderStatusPending {
		return apperrors.InvalidState("No refund is in progress for this order")
	}
	o.Payment.Status = PaymentStatusRefunded
	o.Payment.RefundedAt = &now
	o.Status = OrderStatusRefunded
	return nil
}

// ReleaseRefund undoes a reservation after the gateway declined the refund.
func (o *Order) ReleaseRefund() {
	if o.Payment.Status != PaymentStatusProcessing || o.Status == OrderStatusPending {
		return
	}
	o.Payment.Status = PaymentStatusCompleted
	o.Payment.RefundAmount = decimal.Zero
	o.Payment.RefundReason = ""
}

// Cancel abandons an order that has not been paid.
func (o *Order) Cancel() error {
	if o.Status != OrderStatusPending {
		return apperrors.InvalidState("Only pending orders can be cancelled")
	}
	o.Status = OrderStatusCancelled
	o.Payment.Status = PaymentStatusCancelled
	o.ExpiresAt = nil
	return nil
}

func (o *Order) OpenDispute(reason, description string, now time.Time) error {
	if o.Status != OrderStatusCompleted {
		return apperrors.InvalidState("Only completed orders can be disputed")
	}
	o.Dispute = &OrderDispute{
		Reason:      reason,
		Description: description,
		Status:      DisputeOpen,
		CreatedAt:   now,
	}
	o.Status = OrderStatusDisputed
	return nil
}

// ResolveDispute updates the dispute. Resolved or closed disputes return the
// order to completed unless it has been refunded in the meantime.
func (o *Order) ResolveDispute(status DisputeStatus, resolution string, now time.Time) error {
	if o.Dispute == nil {
		return apperrors.InvalidState("Order has no dispute")
	}
	o.Dispute.Status = status
	if resolution != "" {
		o.Dispute.Resolution = resolution
	}
	if status == DisputeResolved || status == DisputeClosed {
		o.Dispute.ResolvedAt = &now
		if o.Status == OrderStatusDisputed {
			o.Status = OrderStatusCompleted
		}
	}
	return nil
}
