package repositories

import (
	"context"

	domain "github.com/meridian-goods/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in a transactional boundary. The
// transaction travels in the context; repository methods join it when present.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CatalogRepository is the narrow read/adjust surface over the product table.
// Stock adjustments are single conditional statements so concurrent checkouts
// never oversell.
type CatalogRepository interface {
	FindProduct(ctx context.Context, productID string) (domain.Product, error)
	// ReserveStock decrements stock and bumps sales_count for an active
	// product, failing with a CatalogError when availability is insufficient.
	ReserveStock(ctx context.Context, productID string, quantity int) error
	// RestoreStock returns quantity to stock and decrements sales_count,
	// flooring sales_count at zero.
	RestoreStock(ctx context.Context, productID string, quantity int) error
}

// CouponRepository reads coupon definitions and performs atomic redemption
// accounting bounded by the usage limit.
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	// Redeem increments usage_count if the limit permits; returns false when
	// the coupon is exhausted or no longer active.
	Redeem(ctx context.Context, couponID string) (bool, error)
}

// OrderRepository persists order headers together with their line items.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// LockByID reads the order header under a row lock inside the ambient
	// transaction.
	LockByID(ctx context.Context, orderID string) (domain.Order, error)
	Update(ctx context.Context, order domain.Order) error
}

// PaymentRepository persists provider payment records, one per order.
type PaymentRepository interface {
	Insert(ctx context.Context, payment domain.Payment) error
	Update(ctx context.Context, payment domain.Payment) error
	FindByOrderID(ctx context.Context, orderID string) (domain.Payment, error)
	// LockByOrderID reads the payment row under a row lock inside the ambient
	// transaction.
	LockByOrderID(ctx context.Context, orderID string) (domain.Payment, error)
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (domain.Payment, error)
}

// HealthRepository reports datastore reachability for readiness probes.
type HealthRepository interface {
	Ping(ctx context.Context) error
}
