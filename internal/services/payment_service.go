// internal/services/payment_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"

	"github.com/DevViTien/devshop-web-app/internal/config"
	"github.com/DevViTien/devshop-web-app/internal/models"
)

type IntentStatus string

const (
	IntentSucceeded IntentStatus = "succeeded"
	IntentPending   IntentStatus = "pending"
	IntentFailed    IntentStatus = "failed"
)

// PaymentIntent is the gateway's view of a charge.
type PaymentIntent struct {
	ID           string       `json:"id"`
	ClientSecret string       `json:"clientSecret,omitempty"`
	Status       IntentStatus `json:"status"`
}

// PaymentGateway charges and refunds orders.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, order *models.Order) (*PaymentIntent, error)
	GetIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
	Refund(ctx context.Context, intentID string, amount decimal.Decimal, currency models.Currency) (string, error)
}

// NewPaymentGateway returns the Stripe gateway when a secret key is
// configured and the manual gateway otherwise.
func NewPaymentGateway(cfg *config.Config) PaymentGateway {
	if cfg.Payment.StripeSecretKey == "" {
		logrus.Warn("STRIPE_SECRET_KEY not set, payments are confirmed manually")
		return NewManualGateway()
	}
	return NewStripeGateway(cfg.Payment.StripeSecretKey)
}

type StripeGateway struct{}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

// zeroDecimal currencies are charged in whole units.
var zeroDecimal = map[models.Currency]bool{
	models.CurrencyVND: true,
}

// MinorUnits converts an amount to the smallest currency unit Stripe expects.
func MinorUnits(amount decimal.Decimal, currency models.Currency) int64 {
	if zeroDecimal[currency] {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func stripeStatus(status stripe.PaymentIntentStatus) IntentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return IntentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return IntentFailed
	default:
		return IntentPending
	}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, order *models.Order) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(order.Details.FinalPrice, order.Details.Currency)),
		Currency: stripe.String(strings.ToLower(string(order.Details.Currency))),
	}
	params.Context = ctx
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("order_number", order.OrderNumber)
	params.AddMetadata("buyer_id", order.BuyerID.String())
	params.AddMetadata("template_id", order.TemplateID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       stripeStatus(pi.Status),
	}, nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	return &PaymentIntent{
		ID:     pi.ID,
		Status: stripeStatus(pi.Status),
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string, amount decimal.Decimal, currency models.Currency) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(MinorUnits(amount, currency)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx

	r, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to process refund: %w", err)
	}
	return r.ID, nil
}

// ManualGateway settles payments without a processor. Every intent it
// created is reported as succeeded, which suits local development and bank
// transfers confirmed by hand.
type ManualGateway struct {
	mu      sync.Mutex
	intents map[string]bool
}

func NewManualGateway() *ManualGateway {
	return &ManualGateway{intents: make(map[string]bool)}
}

func (g *ManualGateway) CreateIntent(ctx context.Context, order *models.Order) (*PaymentIntent, error) {
	id := "manual_" + strings.ToLower(order.OrderNumber)

	g.mu.Lock()
	g.intents[id] = true
	g.mu.Unlock()

	return &PaymentIntent{ID: id, Status: IntentPending}, nil
}

func (g *ManualGateway) GetIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	g.mu.Lock()
	known := g.intents[intentID]
	g.mu.Unlock()

	// Intents survive restarts only in the order record itself.
	if !known && !strings.HasPrefix(intentID, "manual_") {
		return &PaymentIntent{ID: intentID, Status: IntentFailed}, nil
	}
	return &PaymentIntent{ID: intentID, Status: IntentSucceeded}, nil
}

func (g *ManualGateway) Refund(ctx context.Context, intentID string, amount decimal.Decimal, currency models.Currency) (string, error) {
	return "manual_refund_" + strings.TrimPrefix(intentID, "manual_"), nil
}
