package domain

import "time"

// OrderStatus tracks fulfilment progress of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaymentStatus is the order-level projection of the payment outcome.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentMethod identifies how the customer elected to pay.
type PaymentMethod string

const (
	PaymentMethodGateway      PaymentMethod = "gateway"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
)

// ProviderPaymentStatus is the normalised PSP-side payment state recorded
// on the payment row. It is richer than PaymentStatus because providers
// report intermediate and retryable states.
type ProviderPaymentStatus string

const (
	ProviderPaymentPending   ProviderPaymentStatus = "pending"
	ProviderPaymentInProcess ProviderPaymentStatus = "in_process"
	ProviderPaymentApproved  ProviderPaymentStatus = "approved"
	ProviderPaymentRejected  ProviderPaymentStatus = "rejected"
	ProviderPaymentCancelled ProviderPaymentStatus = "cancelled"
	ProviderPaymentRefunded  ProviderPaymentStatus = "refunded"
)

// CouponType selects the discount formula.
type CouponType string

const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeFixed      CouponType = "fixed"
)

// Product is the catalog view this module reads; catalog CRUD lives elsewhere.
type Product struct {
	ID         string
	SKU        string
	Name       string
	Price      Cents
	Stock      int
	SalesCount int
	IsActive   bool
	UpdatedAt  time.Time
}

// Coupon describes a discount code with its validity window and usage caps.
// DiscountValue is whole percentage points for percentage coupons and cents
// for fixed coupons.
type Coupon struct {
	ID            string
	Code          string
	DiscountType  CouponType
	DiscountValue int64
	MinPurchase   Cents
	MaxDiscount   *Cents
	UsageLimit    *int
	UsageCount    int
	StartsAt      *time.Time
	EndsAt        *time.Time
	IsActive      bool
}

// Address is the shipping destination captured at checkout.
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// OrderItem is a priced line snapshot; product name, SKU and unit price are
// copied at placement time so later catalog edits never change the order.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	ProductSKU  string
	UnitPrice   Cents
	Quantity    int
	Total       Cents
}

// BankTransferReceipt records a manual payment confirmation by an operator.
type BankTransferReceipt struct {
	Reference   string
	Notes       string
	ConfirmedBy string
	ConfirmedAt time.Time
}

// Order is the aggregate root of the placement and payment pipeline.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	PaymentMethod   PaymentMethod
	Subtotal        Cents
	Discount        Cents
	ShippingFee     Cents
	Total           Cents
	CouponID        *string
	CouponCode      *string
	ShippingAddress Address
	TrackingNumber  *string
	TrackingURL     *string
	CancelReason    *string
	TransferReceipt *BankTransferReceipt
	Items           []OrderItem
	Payment         *Payment
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PaidAt          *time.Time
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
}

// Payment is the provider-side payment record attached to an order. Raw holds
// the last provider payload applied, kept for reconciliation audits.
type Payment struct {
	ID                   string
	OrderID              string
	Provider             string
	ProviderPreferenceID *string
	ProviderPaymentID    *string
	Status               ProviderPaymentStatus
	StatusDetail         string
	Amount               Cents
	Currency             string
	Raw                  map[string]any
	PaidAt               *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
