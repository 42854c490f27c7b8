package services

import (
	"context"
	"time"

	domain "github.com/meridian-goods/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product               = domain.Product
	Coupon                = domain.Coupon
	Order                 = domain.Order
	OrderItem             = domain.OrderItem
	OrderStatus           = domain.OrderStatus
	Payment               = domain.Payment
	PaymentMethod         = domain.PaymentMethod
	ProviderPaymentStatus = domain.ProviderPaymentStatus
	Address               = domain.Address
	Cents                 = domain.Cents
)

// OrderService encapsulates order placement, reads, fulfilment transitions,
// cancellation with stock restoration, and manual payment confirmation.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	ConfirmBankTransfer(ctx context.Context, cmd ConfirmBankTransferCommand) (Order, error)
}

// PlaceOrderItem selects a product and quantity at checkout.
type PlaceOrderItem struct {
	ProductID string
	Quantity  int
}

// PlaceOrderCommand carries the checkout payload for order placement.
type PlaceOrderCommand struct {
	UserID          string
	Items           []PlaceOrderItem
	CouponCode      string
	PaymentMethod   PaymentMethod
	ShippingAddress Address
	// ShippingFee is the externally quoted shipping cost for this checkout.
	ShippingFee Cents
}

// UpdateOrderStatusCommand requests a fulfilment transition.
type UpdateOrderStatusCommand struct {
	OrderID        string
	TargetStatus   OrderStatus
	TrackingNumber string
	TrackingURL    string
	ActorID        string
}

// CancelOrderCommand cancels an order and restores reserved stock.
type CancelOrderCommand struct {
	OrderID string
	Reason  string
	ActorID string
}

// ConfirmBankTransferCommand records an operator-verified bank transfer.
type ConfirmBankTransferCommand struct {
	OrderID   string
	Reference string
	Notes     string
	ActorID   string
}

// PaymentService owns the payment state machine. Every provider-reported
// outcome, regardless of source, converges on ApplyProviderEvent.
type PaymentService interface {
	CreateIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntent, error)
	DirectCharge(ctx context.Context, cmd DirectChargeCommand) (PaymentReconciliation, error)
	VerifyRedirect(ctx context.Context, cmd VerifyRedirectCommand) (PaymentReconciliation, error)
	ApplyProviderEvent(ctx context.Context, cmd ProviderEventCommand) (PaymentReconciliation, error)
}

// CreatePaymentIntentCommand requests a PSP checkout session for an order.
type CreatePaymentIntentCommand struct {
	OrderID    string
	SuccessURL string
	CancelURL  string
}

// PaymentIntent is returned to the client to continue the PSP flow.
type PaymentIntent struct {
	PaymentID    string
	Provider     string
	PreferenceID string
	ClientSecret string
	RedirectURL  string
	Amount       Cents
	Currency     string
	ExpiresAt    time.Time
}

// DirectChargeCommand confirms a payment synchronously with a client token.
type DirectChargeCommand struct {
	OrderID        string
	TokenID        string
	IdempotencyKey string
}

// VerifyRedirectCommand reconciles the payment after a PSP redirect return.
type VerifyRedirectCommand struct {
	OrderID           string
	ProviderPaymentID string
}

// ProviderEventCommand is a normalised provider-reported payment outcome.
type ProviderEventCommand struct {
	OrderID           string
	Provider          string
	ProviderPaymentID string
	Status            ProviderPaymentStatus
	StatusDetail      string
	Amount            Cents
	Raw               map[string]any
	// Source names the ingestion path (charge, verify, webhook) for logging.
	Source string
}

// PaymentReconciliation reports what an applied provider event changed.
type PaymentReconciliation struct {
	Order      Order
	Payment    Payment
	Applied    bool
	BecamePaid bool
}

// Notifier dispatches customer/admin notifications after commits. Failures
// must never affect the transaction outcome.
type Notifier interface {
	OrderCreated(ctx context.Context, order Order)
	PaymentApproved(ctx context.Context, order Order, payment Payment)
}

// OrderMetrics counts placement outcomes.
type OrderMetrics interface {
	OrderPlaced()
	OrderFailed(reason string)
}

// PaymentMetrics counts provider events by source and dedup outcome.
type PaymentMetrics interface {
	ProviderEvent(source string, applied bool)
}
