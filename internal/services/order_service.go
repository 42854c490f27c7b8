package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/meridian-goods/api/internal/domain"
	"github.com/meridian-goods/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"

	orderIDPrefix     = "ord_"
	orderItemIDPrefix = "itm_"

	orderNumberPrefix      = "MG"
	orderNumberSuffixLen   = 6
	maxOrderNumberAttempts = 3
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates duplicate keys or concurrent modification.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderInsufficientStock indicates a line could not be reserved.
	ErrOrderInsufficientStock = errors.New("order: insufficient stock")
	// ErrOrderProductUnavailable indicates a product is missing or inactive.
	ErrOrderProductUnavailable = errors.New("order: product unavailable")
)

var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusConfirmed},
	domain.OrderStatusConfirmed:  {domain.OrderStatusProcessing, domain.OrderStatusShipped},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered},
}

var cancellableStatuses = []domain.OrderStatus{
	domain.OrderStatusPending,
	domain.OrderStatusConfirmed,
	domain.OrderStatusProcessing,
	domain.OrderStatusShipped,
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus string
	CurrentStatus  string
	PaymentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Catalog     repositories.CatalogRepository
	Coupons     repositories.CouponRepository
	Orders      repositories.OrderRepository
	Payments    repositories.PaymentRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Notifier    Notifier
	Metrics     OrderMetrics
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	catalog    repositories.CatalogRepository
	coupons    repositories.CouponRepository
	orders     repositories.OrderRepository
	payments   repositories.PaymentRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	notifier   Notifier
	metrics    OrderMetrics
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		catalog:    deps.Catalog,
		coupons:    deps.Coupons,
		orders:     deps.Orders,
		payments:   deps.Payments,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		events:   deps.Events,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   logger,
	}, nil
}

func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, s.failPlacement("invalid_input", fmt.Errorf("%w: user id is required", ErrOrderInvalidInput))
	}
	if len(cmd.Items) == 0 {
		return Order{}, s.failPlacement("invalid_input", fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput))
	}
	for _, line := range cmd.Items {
		if strings.TrimSpace(line.ProductID) == "" {
			return Order{}, s.failPlacement("invalid_input", fmt.Errorf("%w: item product id is required", ErrOrderInvalidInput))
		}
		if line.Quantity <= 0 {
			return Order{}, s.failPlacement("invalid_input", fmt.Errorf("%w: item quantity must be positive", ErrOrderInvalidInput))
		}
	}
	if cmd.ShippingFee < 0 {
		return Order{}, s.failPlacement("invalid_input", fmt.Errorf("%w: shipping fee cannot be negative", ErrOrderInvalidInput))
	}
	method, err := parsePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return Order{}, s.failPlacement("invalid_input", err)
	}
	address, err := normalizeAddress(cmd.ShippingAddress)
	if err != nil {
		return Order{}, s.failPlacement("invalid_input", err)
	}

	couponCode := strings.ToUpper(strings.TrimSpace(cmd.CouponCode))

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		now := s.now()
		order := Order{
			ID:              orderIDPrefix + s.newID(),
			OrderNumber:     s.generateOrderNumber(now),
			UserID:          userID,
			Status:          domain.OrderStatusPending,
			PaymentStatus:   domain.PaymentStatusPending,
			PaymentMethod:   method,
			ShippingFee:     cmd.ShippingFee,
			ShippingAddress: address,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		err := s.runInTx(ctx, func(txCtx context.Context) error {
			items, subtotal, err := s.reserveLines(txCtx, order.ID, cmd.Items)
			if err != nil {
				return err
			}

			order.Items = items
			order.Subtotal = subtotal

			if couponCode != "" {
				couponID, discount := s.redeemCoupon(txCtx, couponCode, subtotal, now)
				if couponID != "" {
					order.CouponID = &couponID
					order.CouponCode = &couponCode
					order.Discount = discount
				}
			}

			order.Total = order.Subtotal - order.Discount + order.ShippingFee

			if err := s.orders.Insert(txCtx, order); err != nil {
				return s.mapRepositoryError(err)
			}
			return nil
		})
		if err != nil {
			// Unique order numbers can collide across concurrent checkouts;
			// regenerate and rerun the whole transaction.
			if errors.Is(err, ErrOrderConflict) {
				lastErr = err
				s.logger(ctx, "order.number.conflict", map[string]any{
					"orderNumber": order.OrderNumber,
					"attempt":     attempt + 1,
				})
				continue
			}
			return Order{}, s.failPlacement(placementFailureReason(err), err)
		}

		if s.metrics != nil {
			s.metrics.OrderPlaced()
		}

		s.publishEvent(ctx, OrderEvent{
			Type:          orderEventCreated,
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CurrentStatus: string(order.Status),
			PaymentStatus: string(order.PaymentStatus),
			OccurredAt:    now,
			Metadata: map[string]any{
				"total":         order.Total.String(),
				"paymentMethod": string(order.PaymentMethod),
			},
		})
		if s.notifier != nil {
			s.notifier.OrderCreated(ctx, order)
		}

		return order, nil
	}

	return Order{}, s.failPlacement("number_conflict", lastErr)
}

func (s *orderService) reserveLines(ctx context.Context, orderID string, lines []PlaceOrderItem) ([]OrderItem, Cents, error) {
	items := make([]OrderItem, 0, len(lines))
	var subtotal Cents

	for _, line := range lines {
		productID := strings.TrimSpace(line.ProductID)

		product, err := s.catalog.FindProduct(ctx, productID)
		if err != nil {
			return nil, 0, s.mapCatalogError(err, productID)
		}
		if !product.IsActive {
			return nil, 0, fmt.Errorf("%w: product %s is not active", ErrOrderProductUnavailable, productID)
		}
		if err := s.catalog.ReserveStock(ctx, productID, line.Quantity); err != nil {
			return nil, 0, s.mapCatalogError(err, productID)
		}

		lineTotal := domain.MulQuantity(product.Price, line.Quantity)
		items = append(items, OrderItem{
			ID:          orderItemIDPrefix + s.newID(),
			OrderID:     orderID,
			ProductID:   product.ID,
			ProductName: product.Name,
			ProductSKU:  product.SKU,
			UnitPrice:   product.Price,
			Quantity:    line.Quantity,
			Total:       lineTotal,
		})
		subtotal += lineTotal
	}

	return items, subtotal, nil
}

// redeemCoupon validates and atomically redeems the coupon. Any failure
// degrades to a zero discount; a broken coupon never blocks checkout.
func (s *orderService) redeemCoupon(ctx context.Context, code string, subtotal Cents, now time.Time) (string, Cents) {
	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		s.logger(ctx, "order.coupon.skipped", map[string]any{
			"code":   code,
			"reason": "lookup_failed",
			"error":  err.Error(),
		})
		return "", 0
	}

	if reason := couponIneligibleReason(coupon, subtotal, now); reason != "" {
		s.logger(ctx, "order.coupon.skipped", map[string]any{
			"code":   code,
			"reason": reason,
		})
		return "", 0
	}

	discount := couponDiscount(coupon, subtotal)
	if discount <= 0 {
		s.logger(ctx, "order.coupon.skipped", map[string]any{
			"code":   code,
			"reason": "zero_discount",
		})
		return "", 0
	}

	redeemed, err := s.coupons.Redeem(ctx, coupon.ID)
	if err != nil || !redeemed {
		fields := map[string]any{
			"code":   code,
			"reason": "redeem_failed",
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		s.logger(ctx, "order.coupon.skipped", fields)
		return "", 0
	}

	return coupon.ID, discount
}

func couponIneligibleReason(coupon Coupon, subtotal Cents, now time.Time) string {
	switch {
	case !coupon.IsActive:
		return "inactive"
	case coupon.StartsAt != nil && now.Before(*coupon.StartsAt):
		return "not_started"
	case coupon.EndsAt != nil && now.After(*coupon.EndsAt):
		return "expired"
	case subtotal < coupon.MinPurchase:
		return "below_min_purchase"
	case coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit:
		return "usage_limit_reached"
	default:
		return ""
	}
}

func couponDiscount(coupon Coupon, subtotal Cents) Cents {
	var discount Cents
	switch coupon.DiscountType {
	case domain.CouponTypePercentage:
		discount = domain.PercentOf(subtotal, coupon.DiscountValue)
		if coupon.MaxDiscount != nil && discount > *coupon.MaxDiscount {
			discount = *coupon.MaxDiscount
		}
	case domain.CouponTypeFixed:
		discount = Cents(coupon.DiscountValue)
	default:
		return 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	return discount
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if s.payments != nil {
		payment, err := s.payments.FindByOrderID(ctx, orderID)
		switch {
		case err == nil:
			order.Payment = &payment
		case isNotFoundRepositoryError(err):
			// Orders paid by bank transfer or cash have no payment row.
		default:
			return Order{}, s.mapRepositoryError(err)
		}
	}

	return order, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := domain.OrderStatus(strings.TrimSpace(string(cmd.TargetStatus)))
	if target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}
	if target == domain.OrderStatusCancelled {
		return Order{}, fmt.Errorf("%w: cancellation must go through the cancel operation", ErrOrderInvalidState)
	}

	now := s.now()
	var order Order
	var prevStatus domain.OrderStatus

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.LockByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		prevStatus = order.Status
		if order.Status != target && !canTransition(order.Status, target) {
			return fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, target)
		}

		order.Status = target
		order.UpdatedAt = now
		switch target {
		case domain.OrderStatusShipped:
			if order.ShippedAt == nil {
				order.ShippedAt = &now
			}
			if tn := strings.TrimSpace(cmd.TrackingNumber); tn != "" {
				order.TrackingNumber = &tn
			}
			if tu := strings.TrimSpace(cmd.TrackingURL); tu != "" {
				order.TrackingURL = &tu
			}
		case domain.OrderStatusDelivered:
			if order.DeliveredAt == nil {
				order.DeliveredAt = &now
			}
		}

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if prevStatus != order.Status {
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			PreviousStatus: string(prevStatus),
			CurrentStatus:  string(order.Status),
			PaymentStatus:  string(order.PaymentStatus),
			ActorID:        strings.TrimSpace(cmd.ActorID),
			OccurredAt:     now,
		})
	}

	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	now := s.now()
	reason := strings.TrimSpace(cmd.Reason)

	var order Order
	var prevStatus domain.OrderStatus
	alreadyCancelled := false

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.LockByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		if order.Status == domain.OrderStatusCancelled {
			alreadyCancelled = true
			return nil
		}
		if !slices.Contains(cancellableStatuses, order.Status) {
			return fmt.Errorf("%w: order status %q cannot be cancelled", ErrOrderInvalidState, order.Status)
		}

		for _, item := range order.Items {
			if err := s.catalog.RestoreStock(txCtx, item.ProductID, item.Quantity); err != nil {
				return s.mapCatalogError(err, item.ProductID)
			}
		}

		prevStatus = order.Status
		order.Status = domain.OrderStatusCancelled
		order.CancelledAt = &now
		order.UpdatedAt = now
		order.CancelReason = optionalString(reason)

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if alreadyCancelled {
		return order, nil
	}

	metadata := map[string]any{}
	if reason != "" {
		metadata["reason"] = reason
	}
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		ActorID:        strings.TrimSpace(cmd.ActorID),
		OccurredAt:     now,
		Metadata:       metadata,
	})

	return order, nil
}

func (s *orderService) ConfirmBankTransfer(ctx context.Context, cmd ConfirmBankTransferCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	reference := strings.TrimSpace(cmd.Reference)
	if reference == "" {
		return Order{}, fmt.Errorf("%w: transfer reference is required", ErrOrderInvalidInput)
	}

	now := s.now()
	var order Order
	alreadyPaid := false

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.LockByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		if order.PaymentMethod != domain.PaymentMethodBankTransfer {
			return fmt.Errorf("%w: order is not a bank transfer order", ErrOrderInvalidState)
		}
		if order.Status == domain.OrderStatusCancelled {
			return fmt.Errorf("%w: cancelled orders cannot be confirmed", ErrOrderInvalidState)
		}
		if order.PaymentStatus == domain.PaymentStatusPaid {
			alreadyPaid = true
			return nil
		}

		order.PaymentStatus = domain.PaymentStatusPaid
		order.PaidAt = &now
		order.TransferReceipt = &domain.BankTransferReceipt{
			Reference:   reference,
			Notes:       strings.TrimSpace(cmd.Notes),
			ConfirmedBy: strings.TrimSpace(cmd.ActorID),
			ConfirmedAt: now,
		}
		prev := order.Status
		if prev == domain.OrderStatusPending {
			order.Status = domain.OrderStatusConfirmed
		}
		order.UpdatedAt = now

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if alreadyPaid {
		return order, nil
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventStatusChanged,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CurrentStatus: string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		ActorID:       strings.TrimSpace(cmd.ActorID),
		OccurredAt:    now,
		Metadata: map[string]any{
			"transferReference": reference,
		},
	})

	return order, nil
}

func (s *orderService) failPlacement(reason string, err error) error {
	if s.metrics != nil {
		s.metrics.OrderFailed(reason)
	}
	return err
}

func placementFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrOrderInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrOrderProductUnavailable):
		return "product_unavailable"
	case errors.Is(err, ErrOrderInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrOrderConflict):
		return "conflict"
	default:
		return "internal"
	}
}

func parsePaymentMethod(method PaymentMethod) (PaymentMethod, error) {
	normalized := domain.PaymentMethod(strings.TrimSpace(string(method)))
	switch normalized {
	case domain.PaymentMethodGateway, domain.PaymentMethodBankTransfer, domain.PaymentMethodCash:
		return normalized, nil
	case "":
		return "", fmt.Errorf("%w: payment method is required", ErrOrderInvalidInput)
	default:
		return "", fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, normalized)
	}
}

func normalizeAddress(addr Address) (Address, error) {
	addr.Name = strings.TrimSpace(addr.Name)
	addr.Phone = strings.TrimSpace(addr.Phone)
	addr.Email = strings.TrimSpace(addr.Email)
	addr.Line1 = strings.TrimSpace(addr.Line1)
	addr.Line2 = strings.TrimSpace(addr.Line2)
	addr.City = strings.TrimSpace(addr.City)
	addr.State = strings.TrimSpace(addr.State)
	addr.PostalCode = strings.TrimSpace(addr.PostalCode)
	addr.Country = strings.TrimSpace(addr.Country)

	switch {
	case addr.Name == "":
		return Address{}, fmt.Errorf("%w: shipping address name is required", ErrOrderInvalidInput)
	case addr.Line1 == "":
		return Address{}, fmt.Errorf("%w: shipping address line1 is required", ErrOrderInvalidInput)
	case addr.City == "":
		return Address{}, fmt.Errorf("%w: shipping address city is required", ErrOrderInvalidInput)
	case addr.PostalCode == "":
		return Address{}, fmt.Errorf("%w: shipping address postal code is required", ErrOrderInvalidInput)
	case addr.Country == "":
		return Address{}, fmt.Errorf("%w: shipping address country is required", ErrOrderInvalidInput)
	}
	return addr, nil
}

func (s *orderService) mapCatalogError(err error, productID string) error {
	if err == nil {
		return nil
	}
	var catErr *repositories.CatalogError
	if errors.As(err, &catErr) {
		switch catErr.Code {
		case repositories.CatalogErrorInsufficientStock:
			return fmt.Errorf("%w: product %s: %s", ErrOrderInsufficientStock, catErr.ProductID, catErr.Message)
		case repositories.CatalogErrorProductNotFound, repositories.CatalogErrorProductInactive:
			return fmt.Errorf("%w: product %s: %s", ErrOrderProductUnavailable, catErr.ProductID, catErr.Message)
		}
	}
	return s.mapRepositoryError(err)
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func isNotFoundRepositoryError(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// generateOrderNumber derives a human-facing number from the placement date
// and a fresh ULID tail. Collisions are caught by the unique constraint and
// retried by the caller.
func (s *orderService) generateOrderNumber(now time.Time) string {
	id := s.newID()
	suffix := id
	if len(id) > orderNumberSuffixLen {
		suffix = id[len(id)-orderNumberSuffixLen:]
	}
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, now.Format("20060102"), strings.ToUpper(suffix))
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	ref := v
	return &ref
}

func canTransition(current, target domain.OrderStatus) bool {
	if current == target {
		return true
	}
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}
