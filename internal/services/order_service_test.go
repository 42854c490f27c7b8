package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	domain "github.com/meridian-goods/api/internal/domain"
	"github.com/meridian-goods/api/internal/repositories"
)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string      { return "stub repository error" }
func (e stubRepoError) IsNotFound() bool   { return e.notFound }
func (e stubRepoError) IsConflict() bool   { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

type stubCatalog struct {
	products   map[string]domain.Product
	reserveErr map[string]error
	reserved   map[string]int
	restored   map[string]int
	restoreErr error
}

func newStubCatalog(products ...domain.Product) *stubCatalog {
	c := &stubCatalog{
		products:   map[string]domain.Product{},
		reserveErr: map[string]error{},
		reserved:   map[string]int{},
		restored:   map[string]int{},
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *stubCatalog) FindProduct(_ context.Context, productID string) (domain.Product, error) {
	product, ok := c.products[productID]
	if !ok {
		return domain.Product{}, repositories.NewCatalogError(repositories.CatalogErrorProductNotFound, productID, "product not found", nil)
	}
	return product, nil
}

func (c *stubCatalog) ReserveStock(_ context.Context, productID string, quantity int) error {
	if err := c.reserveErr[productID]; err != nil {
		return err
	}
	c.reserved[productID] += quantity
	return nil
}

func (c *stubCatalog) RestoreStock(_ context.Context, productID string, quantity int) error {
	if c.restoreErr != nil {
		return c.restoreErr
	}
	c.restored[productID] += quantity
	return nil
}

type stubCoupons struct {
	coupon      domain.Coupon
	findErr     error
	redeemOK    bool
	redeemErr   error
	redeemCalls int
}

func (c *stubCoupons) FindByCode(_ context.Context, _ string) (domain.Coupon, error) {
	if c.findErr != nil {
		return domain.Coupon{}, c.findErr
	}
	return c.coupon, nil
}

func (c *stubCoupons) Redeem(_ context.Context, _ string) (bool, error) {
	c.redeemCalls++
	if c.redeemErr != nil {
		return false, c.redeemErr
	}
	return c.redeemOK, nil
}

type stubOrders struct {
	inserted   []domain.Order
	insertErrs []error
	stored     map[string]domain.Order
	updated    []domain.Order
	updateErr  error
}

func newStubOrders(orders ...domain.Order) *stubOrders {
	s := &stubOrders{stored: map[string]domain.Order{}}
	for _, o := range orders {
		s.stored[o.ID] = o
	}
	return s
}

func (s *stubOrders) Insert(_ context.Context, order domain.Order) error {
	if len(s.insertErrs) > 0 {
		err := s.insertErrs[0]
		s.insertErrs = s.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	s.inserted = append(s.inserted, order)
	s.stored[order.ID] = order
	return nil
}

func (s *stubOrders) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := s.stored[orderID]
	if !ok {
		return domain.Order{}, stubRepoError{notFound: true}
	}
	return order, nil
}

func (s *stubOrders) LockByID(ctx context.Context, orderID string) (domain.Order, error) {
	return s.FindByID(ctx, orderID)
}

func (s *stubOrders) Update(_ context.Context, order domain.Order) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = append(s.updated, order)
	s.stored[order.ID] = order
	return nil
}

type stubPayments struct {
	stored map[string]domain.Payment

	inserted []domain.Payment
	updated  []domain.Payment
}

func newStubPayments(payments ...domain.Payment) *stubPayments {
	s := &stubPayments{stored: map[string]domain.Payment{}}
	for _, p := range payments {
		s.stored[p.OrderID] = p
	}
	return s
}

func (s *stubPayments) Insert(_ context.Context, payment domain.Payment) error {
	s.inserted = append(s.inserted, payment)
	s.stored[payment.OrderID] = payment
	return nil
}

func (s *stubPayments) Update(_ context.Context, payment domain.Payment) error {
	s.updated = append(s.updated, payment)
	s.stored[payment.OrderID] = payment
	return nil
}

func (s *stubPayments) FindByOrderID(_ context.Context, orderID string) (domain.Payment, error) {
	payment, ok := s.stored[orderID]
	if !ok {
		return domain.Payment{}, stubRepoError{notFound: true}
	}
	return payment, nil
}

func (s *stubPayments) LockByOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	return s.FindByOrderID(ctx, orderID)
}

func (s *stubPayments) FindByProviderPaymentID(_ context.Context, providerPaymentID string) (domain.Payment, error) {
	for _, payment := range s.stored {
		if payment.ProviderPaymentID != nil && *payment.ProviderPaymentID == providerPaymentID {
			return payment, nil
		}
	}
	return domain.Payment{}, stubRepoError{notFound: true}
}

type recordingOrderPublisher struct {
	events []OrderEvent
	err    error
}

func (p *recordingOrderPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type recordingNotifier struct {
	created  []Order
	approved []Order
}

func (n *recordingNotifier) OrderCreated(_ context.Context, order Order) {
	n.created = append(n.created, order)
}

func (n *recordingNotifier) PaymentApproved(_ context.Context, order Order, _ Payment) {
	n.approved = append(n.approved, order)
}

type recordingOrderMetrics struct {
	placed int
	failed []string
}

func (m *recordingOrderMetrics) OrderPlaced()             { m.placed++ }
func (m *recordingOrderMetrics) OrderFailed(reason string) { m.failed = append(m.failed, reason) }

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%020d", prefix, n)
	}
}

type orderFixture struct {
	catalog  *stubCatalog
	coupons  *stubCoupons
	orders   *stubOrders
	payments *stubPayments
	events   *recordingOrderPublisher
	notifier *recordingNotifier
	metrics  *recordingOrderMetrics
	service  OrderService
}

func newOrderFixture(t *testing.T, mutate func(deps *OrderServiceDeps)) *orderFixture {
	t.Helper()

	f := &orderFixture{
		catalog: newStubCatalog(
			domain.Product{ID: "prod_tea", SKU: "TEA-001", Name: "Oolong Tea", Price: 2500, Stock: 10, IsActive: true},
			domain.Product{ID: "prod_cup", SKU: "CUP-001", Name: "Ceramic Cup", Price: 1200, Stock: 4, IsActive: true},
		),
		coupons:  &stubCoupons{},
		orders:   newStubOrders(),
		payments: newStubPayments(),
		events:   &recordingOrderPublisher{},
		notifier: &recordingNotifier{},
		metrics:  &recordingOrderMetrics{},
	}

	deps := OrderServiceDeps{
		Catalog:     f.catalog,
		Coupons:     f.coupons,
		Orders:      f.orders,
		Payments:    f.payments,
		Clock:       func() time.Time { return testNow },
		IDGenerator: sequentialIDs("TESTID"),
		Events:      f.events,
		Notifier:    f.notifier,
		Metrics:     f.metrics,
	}
	if mutate != nil {
		mutate(&deps)
	}

	service, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("NewOrderService returned error: %v", err)
	}
	f.service = service
	return f
}

func validPlaceCommand() PlaceOrderCommand {
	return PlaceOrderCommand{
		UserID: "user_1",
		Items: []PlaceOrderItem{
			{ProductID: "prod_tea", Quantity: 2},
			{ProductID: "prod_cup", Quantity: 1},
		},
		PaymentMethod: domain.PaymentMethodGateway,
		ShippingFee:   500,
		ShippingAddress: domain.Address{
			Name:       "Ada Example",
			Line1:      "1 Main St",
			City:       "Springfield",
			PostalCode: "12345",
			Country:    "US",
		},
	}
}

func TestPlaceOrderComputesTotals(t *testing.T) {
	f := newOrderFixture(t, nil)

	order, err := f.service.PlaceOrder(context.Background(), validPlaceCommand())
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}

	if order.Subtotal != 6200 {
		t.Fatalf("expected subtotal 6200, got %d", order.Subtotal)
	}
	if order.Discount != 0 {
		t.Fatalf("expected no discount, got %d", order.Discount)
	}
	if order.Total != 6700 {
		t.Fatalf("expected total 6700, got %d", order.Total)
	}
	if order.Status != domain.OrderStatusPending || order.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("unexpected initial statuses: %s/%s", order.Status, order.PaymentStatus)
	}
	if !strings.HasPrefix(order.OrderNumber, "MG-20240315-") {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if order.Items[0].ProductName != "Oolong Tea" || order.Items[0].UnitPrice != 2500 || order.Items[0].Total != 5000 {
		t.Fatalf("unexpected line snapshot: %+v", order.Items[0])
	}

	if f.catalog.reserved["prod_tea"] != 2 || f.catalog.reserved["prod_cup"] != 1 {
		t.Fatalf("unexpected reservations: %v", f.catalog.reserved)
	}
	if f.metrics.placed != 1 {
		t.Fatalf("expected 1 placed metric, got %d", f.metrics.placed)
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != "order.created" {
		t.Fatalf("expected one order.created event, got %+v", f.events.events)
	}
	if len(f.notifier.created) != 1 {
		t.Fatalf("expected one order-created notification, got %d", len(f.notifier.created))
	}
}

func TestPlaceOrderAppliesPercentageCouponWithCap(t *testing.T) {
	maxDiscount := domain.Cents(500)
	f := newOrderFixture(t, nil)
	f.coupons.coupon = domain.Coupon{
		ID:            "cpn_1",
		Code:          "SAVE10",
		DiscountType:  domain.CouponTypePercentage,
		DiscountValue: 10,
		MaxDiscount:   &maxDiscount,
		IsActive:      true,
	}
	f.coupons.redeemOK = true

	cmd := validPlaceCommand()
	cmd.CouponCode = "save10"

	order, err := f.service.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}

	// 10% of 6200 is 620, capped at 500.
	if order.Discount != 500 {
		t.Fatalf("expected discount 500, got %d", order.Discount)
	}
	if order.Total != 6200-500+500 {
		t.Fatalf("expected total 6200, got %d", order.Total)
	}
	if order.CouponCode == nil || *order.CouponCode != "SAVE10" {
		t.Fatalf("expected coupon code recorded upper-cased, got %v", order.CouponCode)
	}
	if f.coupons.redeemCalls != 1 {
		t.Fatalf("expected one redeem call, got %d", f.coupons.redeemCalls)
	}
}

func TestPlaceOrderFixedCouponNeverExceedsSubtotal(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.coupons.coupon = domain.Coupon{
		ID:            "cpn_2",
		Code:          "BIGOFF",
		DiscountType:  domain.CouponTypeFixed,
		DiscountValue: 999999,
		IsActive:      true,
	}
	f.coupons.redeemOK = true

	cmd := validPlaceCommand()
	cmd.CouponCode = "BIGOFF"

	order, err := f.service.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if order.Discount != order.Subtotal {
		t.Fatalf("expected discount capped at subtotal %d, got %d", order.Subtotal, order.Discount)
	}
	if order.Total != order.ShippingFee {
		t.Fatalf("expected total equal to shipping fee, got %d", order.Total)
	}
}

func TestPlaceOrderCouponFailureDegradesToZeroDiscount(t *testing.T) {
	cases := map[string]func(f *orderFixture){
		"lookup error": func(f *orderFixture) {
			f.coupons.findErr = stubRepoError{notFound: true}
		},
		"expired": func(f *orderFixture) {
			past := testNow.Add(-time.Hour)
			f.coupons.coupon = domain.Coupon{ID: "cpn", Code: "OLD", DiscountType: domain.CouponTypeFixed, DiscountValue: 100, IsActive: true, EndsAt: &past}
		},
		"usage limit reached": func(f *orderFixture) {
			limit := 5
			f.coupons.coupon = domain.Coupon{ID: "cpn", Code: "FULL", DiscountType: domain.CouponTypeFixed, DiscountValue: 100, IsActive: true, UsageLimit: &limit, UsageCount: 5}
		},
		"redeem lost race": func(f *orderFixture) {
			f.coupons.coupon = domain.Coupon{ID: "cpn", Code: "RACE", DiscountType: domain.CouponTypeFixed, DiscountValue: 100, IsActive: true}
			f.coupons.redeemOK = false
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			f := newOrderFixture(t, nil)
			setup(f)

			cmd := validPlaceCommand()
			cmd.CouponCode = "ANY"

			order, err := f.service.PlaceOrder(context.Background(), cmd)
			if err != nil {
				t.Fatalf("PlaceOrder returned error: %v", err)
			}
			if order.Discount != 0 {
				t.Fatalf("expected zero discount, got %d", order.Discount)
			}
			if order.CouponID != nil {
				t.Fatalf("expected no coupon recorded, got %v", *order.CouponID)
			}
			if order.Total != order.Subtotal+order.ShippingFee {
				t.Fatalf("unexpected total %d", order.Total)
			}
		})
	}
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.catalog.reserveErr["prod_cup"] = repositories.NewCatalogError(
		repositories.CatalogErrorInsufficientStock, "prod_cup", "requested 1, available 0", nil)

	_, err := f.service.PlaceOrder(context.Background(), validPlaceCommand())
	if !errors.Is(err, ErrOrderInsufficientStock) {
		t.Fatalf("expected ErrOrderInsufficientStock, got %v", err)
	}
	if len(f.orders.inserted) != 0 {
		t.Fatal("expected no order inserted")
	}
	if len(f.metrics.failed) != 1 || f.metrics.failed[0] != "insufficient_stock" {
		t.Fatalf("expected insufficient_stock failure metric, got %v", f.metrics.failed)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	cases := map[string]func(cmd *PlaceOrderCommand){
		"missing user":       func(cmd *PlaceOrderCommand) { cmd.UserID = " " },
		"empty cart":         func(cmd *PlaceOrderCommand) { cmd.Items = nil },
		"zero quantity":      func(cmd *PlaceOrderCommand) { cmd.Items[0].Quantity = 0 },
		"negative shipping":  func(cmd *PlaceOrderCommand) { cmd.ShippingFee = -1 },
		"bad payment method": func(cmd *PlaceOrderCommand) { cmd.PaymentMethod = "crypto" },
		"missing address":    func(cmd *PlaceOrderCommand) { cmd.ShippingAddress.Line1 = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newOrderFixture(t, nil)
			cmd := validPlaceCommand()
			mutate(&cmd)

			_, err := f.service.PlaceOrder(context.Background(), cmd)
			if !errors.Is(err, ErrOrderInvalidInput) {
				t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
			}
		})
	}
}

func TestPlaceOrderRetriesOnOrderNumberConflict(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.insertErrs = []error{stubRepoError{conflict: true}}

	order, err := f.service.PlaceOrder(context.Background(), validPlaceCommand())
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if len(f.orders.inserted) != 1 {
		t.Fatalf("expected one successful insert, got %d", len(f.orders.inserted))
	}
	if order.OrderNumber == "" {
		t.Fatal("expected order number on retried order")
	}
	if f.metrics.placed != 1 {
		t.Fatalf("expected one placed metric, got %d", f.metrics.placed)
	}
}

func TestPlaceOrderGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.insertErrs = []error{
		stubRepoError{conflict: true},
		stubRepoError{conflict: true},
		stubRepoError{conflict: true},
	}

	_, err := f.service.PlaceOrder(context.Background(), validPlaceCommand())
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected ErrOrderConflict, got %v", err)
	}
	if len(f.metrics.failed) != 1 || f.metrics.failed[0] != "number_conflict" {
		t.Fatalf("expected number_conflict failure metric, got %v", f.metrics.failed)
	}
}

func storedOrder(status domain.OrderStatus) domain.Order {
	return domain.Order{
		ID:            "ord_1",
		OrderNumber:   "MG-20240315-ABCDEF",
		UserID:        "user_1",
		Status:        status,
		PaymentStatus: domain.PaymentStatusPending,
		PaymentMethod: domain.PaymentMethodGateway,
		Subtotal:      5000,
		Total:         5500,
		ShippingFee:   500,
		Items: []domain.OrderItem{
			{ID: "itm_1", OrderID: "ord_1", ProductID: "prod_tea", Quantity: 2},
		},
		CreatedAt: testNow.Add(-time.Hour),
		UpdatedAt: testNow.Add(-time.Hour),
	}
}

func TestGetOrderAttachesPayment(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.stored["ord_1"] = storedOrder(domain.OrderStatusPending)
	f.payments.stored["ord_1"] = domain.Payment{ID: "pay_1", OrderID: "ord_1", Status: domain.ProviderPaymentPending}

	order, err := f.service.GetOrder(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("GetOrder returned error: %v", err)
	}
	if order.Payment == nil || order.Payment.ID != "pay_1" {
		t.Fatalf("expected payment attached, got %+v", order.Payment)
	}
}

func TestGetOrderToleratesMissingPayment(t *testing.T) {
	f := newOrderFixture(t, nil)
	order := storedOrder(domain.OrderStatusPending)
	order.PaymentMethod = domain.PaymentMethodBankTransfer
	f.orders.stored["ord_1"] = order

	got, err := f.service.GetOrder(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("GetOrder returned error: %v", err)
	}
	if got.Payment != nil {
		t.Fatalf("expected no payment, got %+v", got.Payment)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	f := newOrderFixture(t, nil)

	_, err := f.service.GetOrder(context.Background(), "ord_missing")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestUpdateStatusShippedStampsTracking(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.stored["ord_1"] = storedOrder(domain.OrderStatusConfirmed)

	order, err := f.service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID:        "ord_1",
		TargetStatus:   domain.OrderStatusShipped,
		TrackingNumber: "TRACK123",
		TrackingURL:    "https://carrier.example/TRACK123",
		ActorID:        "ops_1",
	})
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}

	if order.Status != domain.OrderStatusShipped {
		t.Fatalf("expected shipped, got %s", order.Status)
	}
	if order.ShippedAt == nil || !order.ShippedAt.Equal(testNow) {
		t.Fatalf("expected shipped timestamp %v, got %v", testNow, order.ShippedAt)
	}
	if order.TrackingNumber == nil || *order.TrackingNumber != "TRACK123" {
		t.Fatalf("expected tracking number recorded, got %v", order.TrackingNumber)
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != "order.status.changed" {
		t.Fatalf("expected status change event, got %+v", f.events.events)
	}
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.stored["ord_1"] = storedOrder(domain.OrderStatusPending)

	_, err := f.service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusDelivered,
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState, got %v", err)
	}
	if len(f.orders.updated) != 0 {
		t.Fatal("expected no update on invalid transition")
	}
}

func TestUpdateStatusRejectsCancelTarget(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.stored["ord_1"] = storedOrder(domain.OrderStatusPending)

	_, err := f.service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusCancelled,
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState, got %v", err)
	}
}

func TestUpdateStatusSameStatusEmitsNoEvent(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.stored["ord_1"] = storedOrder(domain.OrderStatusConfirmed)

	_, err := f.service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusConfirmed,
	})
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if len(f.events.events) != 0 {
		t.Fatalf("expected no event for no-op transition, got %+v", f.events.events)
	}
}

func TestCancelRestoresStock(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.stored["ord_1"] = storedOrder(domain.OrderStatusConfirmed)

	order, err := f.service.Cancel(context.Background(), CancelOrderCommand{
		OrderID: "ord_1",
		Reason:  "customer request",
		ActorID: "ops_1",
	})
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}
	if order.CancelledAt == nil || !order.CancelledAt.Equal(testNow) {
		t.Fatalf("expected cancel timestamp, got %v", order.CancelledAt)
	}
	if order.CancelReason == nil || *order.CancelReason != "customer request" {
		t.Fatalf("expected cancel reason recorded, got %v", order.CancelReason)
	}
	if f.catalog.restored["prod_tea"] != 2 {
		t.Fatalf("expected 2 units restored, got %v", f.catalog.restored)
	}
	if len(f.events.events) != 1 {
		t.Fatalf("expected one status change event, got %d", len(f.events.events))
	}
}

func TestCancelAlreadyCancelledIsNoOp(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.stored["ord_1"] = storedOrder(domain.OrderStatusCancelled)

	order, err := f.service.Cancel(context.Background(), CancelOrderCommand{OrderID: "ord_1"})
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}
	if len(f.catalog.restored) != 0 {
		t.Fatalf("expected no stock restoration, got %v", f.catalog.restored)
	}
	if len(f.orders.updated) != 0 {
		t.Fatal("expected no update for already-cancelled order")
	}
	if len(f.events.events) != 0 {
		t.Fatalf("expected no event, got %+v", f.events.events)
	}
}

func TestCancelDeliveredOrderRejected(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.stored["ord_1"] = storedOrder(domain.OrderStatusDelivered)

	_, err := f.service.Cancel(context.Background(), CancelOrderCommand{OrderID: "ord_1"})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState, got %v", err)
	}
	if len(f.catalog.restored) != 0 {
		t.Fatalf("expected no stock restoration, got %v", f.catalog.restored)
	}
}

func TestConfirmBankTransfer(t *testing.T) {
	f := newOrderFixture(t, nil)
	order := storedOrder(domain.OrderStatusPending)
	order.PaymentMethod = domain.PaymentMethodBankTransfer
	f.orders.stored["ord_1"] = order

	got, err := f.service.ConfirmBankTransfer(context.Background(), ConfirmBankTransferCommand{
		OrderID:   "ord_1",
		Reference: "TRX-42",
		Notes:     "verified against statement",
		ActorID:   "ops_1",
	})
	if err != nil {
		t.Fatalf("ConfirmBankTransfer returned error: %v", err)
	}

	if got.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", got.PaymentStatus)
	}
	if got.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got.Status)
	}
	if got.PaidAt == nil || !got.PaidAt.Equal(testNow) {
		t.Fatalf("expected paid timestamp, got %v", got.PaidAt)
	}
	if got.TransferReceipt == nil || got.TransferReceipt.Reference != "TRX-42" || got.TransferReceipt.ConfirmedBy != "ops_1" {
		t.Fatalf("unexpected receipt: %+v", got.TransferReceipt)
	}
}

func TestConfirmBankTransferIdempotent(t *testing.T) {
	f := newOrderFixture(t, nil)
	order := storedOrder(domain.OrderStatusConfirmed)
	order.PaymentMethod = domain.PaymentMethodBankTransfer
	order.PaymentStatus = domain.PaymentStatusPaid
	f.orders.stored["ord_1"] = order

	_, err := f.service.ConfirmBankTransfer(context.Background(), ConfirmBankTransferCommand{
		OrderID:   "ord_1",
		Reference: "TRX-42",
	})
	if err != nil {
		t.Fatalf("ConfirmBankTransfer returned error: %v", err)
	}
	if len(f.orders.updated) != 0 {
		t.Fatal("expected no update for already-paid order")
	}
	if len(f.events.events) != 0 {
		t.Fatalf("expected no event, got %+v", f.events.events)
	}
}

func TestConfirmBankTransferRejectsGatewayOrders(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.stored["ord_1"] = storedOrder(domain.OrderStatusPending)

	_, err := f.service.ConfirmBankTransfer(context.Background(), ConfirmBankTransferCommand{
		OrderID:   "ord_1",
		Reference: "TRX-42",
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState, got %v", err)
	}
}

func TestConfirmBankTransferRequiresReference(t *testing.T) {
	f := newOrderFixture(t, nil)

	_, err := f.service.ConfirmBankTransfer(context.Background(), ConfirmBankTransferCommand{OrderID: "ord_1"})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}
