package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/meridian-goods/api/internal/domain"
	"github.com/meridian-goods/api/internal/payments"
	"github.com/meridian-goods/api/internal/repositories"
)

const (
	paymentIDPrefix = "pay_"

	paymentEventReconciled = "payment.reconciled"

	// Provider event sources, used in logs and metrics labels.
	PaymentSourceCharge   = "charge"
	PaymentSourceVerify   = "verify"
	PaymentSourceWebhook  = "webhook"
	PaymentSourceInternal = "internal"
)

var (
	// ErrPaymentInvalidInput signals the caller provided invalid data.
	ErrPaymentInvalidInput = errors.New("payment: invalid input")
	// ErrPaymentNotFound indicates the payment or its order could not be located.
	ErrPaymentNotFound = errors.New("payment: not found")
	// ErrPaymentInvalidState indicates the order cannot accept the operation.
	ErrPaymentInvalidState = errors.New("payment: invalid state")
	// ErrPaymentProvider wraps PSP-side failures.
	ErrPaymentProvider = errors.New("payment: provider error")
	// ErrPaymentConflict indicates concurrent modification of payment rows.
	ErrPaymentConflict = errors.New("payment: conflict")
)

// statusRank orders provider statuses so stale events never downgrade fresher
// ones. Approved is overwritable only by refunded; refunded is terminal.
var statusRank = map[domain.ProviderPaymentStatus]int{
	domain.ProviderPaymentPending:   1,
	domain.ProviderPaymentInProcess: 2,
	domain.ProviderPaymentRejected:  3,
	domain.ProviderPaymentCancelled: 3,
	domain.ProviderPaymentApproved:  4,
	domain.ProviderPaymentRefunded:  5,
}

// PaymentEvent captures metadata for emitted payment domain events.
type PaymentEvent struct {
	Type              string
	OrderID           string
	OrderNumber       string
	PaymentID         string
	ProviderPaymentID string
	Status            string
	Source            string
	OccurredAt        time.Time
}

// PaymentEventPublisher publishes payment domain events for downstream consumers.
type PaymentEventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event PaymentEvent) error
}

// PaymentProviderGateway is the slice of the payments manager this service uses.
type PaymentProviderGateway interface {
	CreateCheckoutSession(ctx context.Context, paymentCtx payments.PaymentContext, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
	Charge(ctx context.Context, paymentCtx payments.PaymentContext, req payments.ChargeRequest) (payments.PaymentDetails, error)
	LookupPayment(ctx context.Context, paymentCtx payments.PaymentContext, req payments.LookupRequest) (payments.PaymentDetails, error)
}

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Orders      repositories.OrderRepository
	Payments    repositories.PaymentRepository
	UnitOfWork  repositories.UnitOfWork
	Gateway     PaymentProviderGateway
	Currency    string
	Clock       func() time.Time
	IDGenerator func() string
	Events      PaymentEventPublisher
	Notifier    Notifier
	Metrics     PaymentMetrics
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders     repositories.OrderRepository
	payments   repositories.PaymentRepository
	unitOfWork repositories.UnitOfWork
	gateway    PaymentProviderGateway
	currency   string
	clock      func() time.Time
	newID      func() string
	events     PaymentEventPublisher
	notifier   Notifier
	metrics    PaymentMetrics
	logger     func(context.Context, string, map[string]any)
}

// NewPaymentService wires dependencies into a concrete PaymentService implementation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("payment service: payment repository is required")
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

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "USD"
	}

	return &paymentService{
		orders:     deps.Orders,
		payments:   deps.Payments,
		unitOfWork: unit,
		gateway:    deps.Gateway,
		currency:   currency,
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

func (s *paymentService) CreateIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntent, error) {
	if s.gateway == nil {
		return PaymentIntent{}, fmt.Errorf("%w: no payment gateway configured", ErrPaymentProvider)
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return PaymentIntent{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return PaymentIntent{}, s.mapRepositoryError(err)
	}
	if order.PaymentMethod != domain.PaymentMethodGateway {
		return PaymentIntent{}, fmt.Errorf("%w: order is not a gateway payment order", ErrPaymentInvalidState)
	}
	if order.Status == domain.OrderStatusCancelled {
		return PaymentIntent{}, fmt.Errorf("%w: order is cancelled", ErrPaymentInvalidState)
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return PaymentIntent{}, fmt.Errorf("%w: order is already paid", ErrPaymentInvalidState)
	}

	// Check for a settled payment before touching the PSP so a webhook that
	// already approved the order never leaves an orphaned checkout session.
	// The locked re-check inside the transaction covers the remaining window.
	if existing, err := s.payments.FindByOrderID(ctx, order.ID); err == nil {
		if isSettledPaymentStatus(existing.Status) {
			return PaymentIntent{}, fmt.Errorf("%w: payment already settled", ErrPaymentInvalidState)
		}
	} else if !isNotFoundRepositoryError(err) {
		return PaymentIntent{}, s.mapRepositoryError(err)
	}

	items := make([]payments.CheckoutLineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payments.CheckoutLineItem{
			Name:     item.ProductName,
			SKU:      item.ProductSKU,
			Quantity: int64(item.Quantity),
			Amount:   int64(item.UnitPrice),
			Currency: s.currency,
		})
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payments.PaymentContext{}, payments.CheckoutSessionRequest{
		Amount:         int64(order.Total),
		Currency:       s.currency,
		SuccessURL:     strings.TrimSpace(cmd.SuccessURL),
		CancelURL:      strings.TrimSpace(cmd.CancelURL),
		IdempotencyKey: "intent_" + order.ID,
		Metadata: map[string]string{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		},
		Items: items,
	})
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	now := s.now()
	var payment Payment

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.payments.LockByOrderID(txCtx, order.ID)
		switch {
		case err == nil:
			if isSettledPaymentStatus(existing.Status) {
				return fmt.Errorf("%w: payment already settled", ErrPaymentInvalidState)
			}
			existing.Provider = session.Provider
			existing.ProviderPreferenceID = optionalString(session.ID)
			existing.ProviderPaymentID = optionalString(session.PaymentID)
			existing.Status = domain.ProviderPaymentPending
			existing.StatusDetail = "intent_created"
			existing.Amount = order.Total
			existing.Currency = s.currency
			existing.UpdatedAt = now
			if err := s.payments.Update(txCtx, existing); err != nil {
				return s.mapRepositoryError(err)
			}
			payment = existing
			return nil
		case isNotFoundRepositoryError(err):
			payment = Payment{
				ID:                   paymentIDPrefix + s.newID(),
				OrderID:              order.ID,
				Provider:             session.Provider,
				ProviderPreferenceID: optionalString(session.ID),
				ProviderPaymentID:    optionalString(session.PaymentID),
				Status:               domain.ProviderPaymentPending,
				StatusDetail:         "intent_created",
				Amount:               order.Total,
				Currency:             s.currency,
				CreatedAt:            now,
				UpdatedAt:            now,
			}
			if err := s.payments.Insert(txCtx, payment); err != nil {
				return s.mapRepositoryError(err)
			}
			return nil
		default:
			return s.mapRepositoryError(err)
		}
	})
	if err != nil {
		return PaymentIntent{}, err
	}

	s.logger(ctx, "payment.intent.created", map[string]any{
		"order":      order.ID,
		"payment":    payment.ID,
		"provider":   session.Provider,
		"preference": session.ID,
	})

	return PaymentIntent{
		PaymentID:    payment.ID,
		Provider:     session.Provider,
		PreferenceID: session.ID,
		ClientSecret: session.ClientSecret,
		RedirectURL:  session.RedirectURL,
		Amount:       order.Total,
		Currency:     s.currency,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

func (s *paymentService) DirectCharge(ctx context.Context, cmd DirectChargeCommand) (PaymentReconciliation, error) {
	if s.gateway == nil {
		return PaymentReconciliation{}, fmt.Errorf("%w: no payment gateway configured", ErrPaymentProvider)
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return PaymentReconciliation{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}
	token := strings.TrimSpace(cmd.TokenID)
	if token == "" {
		return PaymentReconciliation{}, fmt.Errorf("%w: payment token is required", ErrPaymentInvalidInput)
	}

	payment, err := s.payments.FindByOrderID(ctx, orderID)
	if err != nil {
		return PaymentReconciliation{}, s.mapRepositoryError(err)
	}
	if payment.ProviderPaymentID == nil || strings.TrimSpace(*payment.ProviderPaymentID) == "" {
		return PaymentReconciliation{}, fmt.Errorf("%w: payment intent has not been created", ErrPaymentInvalidState)
	}

	idempotencyKey := strings.TrimSpace(cmd.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = "charge_" + payment.ID
	}

	details, err := s.gateway.Charge(ctx, payments.PaymentContext{PreferredProvider: payment.Provider}, payments.ChargeRequest{
		PaymentID:      *payment.ProviderPaymentID,
		TokenID:        token,
		IdempotencyKey: idempotencyKey,
		Metadata: map[string]string{
			"order_id": orderID,
		},
	})
	if err != nil {
		return PaymentReconciliation{}, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	return s.ApplyProviderEvent(ctx, providerEventFromDetails(orderID, details, PaymentSourceCharge))
}

func (s *paymentService) VerifyRedirect(ctx context.Context, cmd VerifyRedirectCommand) (PaymentReconciliation, error) {
	if s.gateway == nil {
		return PaymentReconciliation{}, fmt.Errorf("%w: no payment gateway configured", ErrPaymentProvider)
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	providerPaymentID := strings.TrimSpace(cmd.ProviderPaymentID)
	if orderID == "" {
		return PaymentReconciliation{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}

	if providerPaymentID == "" {
		payment, err := s.payments.FindByOrderID(ctx, orderID)
		if err != nil {
			return PaymentReconciliation{}, s.mapRepositoryError(err)
		}
		if payment.ProviderPaymentID == nil {
			return PaymentReconciliation{}, fmt.Errorf("%w: no provider payment to verify", ErrPaymentInvalidState)
		}
		providerPaymentID = *payment.ProviderPaymentID
	}

	details, err := s.gateway.LookupPayment(ctx, payments.PaymentContext{}, payments.LookupRequest{
		PaymentID: providerPaymentID,
	})
	if err != nil {
		return PaymentReconciliation{}, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	return s.ApplyProviderEvent(ctx, providerEventFromDetails(orderID, details, PaymentSourceVerify))
}

// ApplyProviderEvent is the single entry point of the payment state machine.
// It locks the payment and order rows, applies the event if it carries newer
// information, projects the result onto the order, and emits side effects only
// when a transition actually happened.
func (s *paymentService) ApplyProviderEvent(ctx context.Context, cmd ProviderEventCommand) (PaymentReconciliation, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	providerPaymentID := strings.TrimSpace(cmd.ProviderPaymentID)
	if orderID == "" && providerPaymentID == "" {
		return PaymentReconciliation{}, fmt.Errorf("%w: order id or provider payment id is required", ErrPaymentInvalidInput)
	}
	if _, ok := statusRank[cmd.Status]; !ok {
		return PaymentReconciliation{}, fmt.Errorf("%w: unknown provider status %q", ErrPaymentInvalidInput, cmd.Status)
	}
	source := cmd.Source
	if source == "" {
		source = PaymentSourceInternal
	}

	now := s.now()
	var result PaymentReconciliation

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		if orderID == "" {
			located, err := s.payments.FindByProviderPaymentID(txCtx, providerPaymentID)
			if err != nil {
				return s.mapRepositoryError(err)
			}
			orderID = located.OrderID
		}

		payment, err := s.payments.LockByOrderID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		order, err := s.orders.LockByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		updated, applied, becamePaid := reconcileProviderEvent(payment, cmd, now)
		result = PaymentReconciliation{
			Order:      order,
			Payment:    updated,
			Applied:    applied,
			BecamePaid: becamePaid,
		}
		if !applied {
			return nil
		}

		if err := s.payments.Update(txCtx, updated); err != nil {
			return s.mapRepositoryError(err)
		}

		order.PaymentStatus = projectPaymentStatus(updated.Status)
		order.UpdatedAt = now
		switch {
		case becamePaid:
			if order.PaidAt == nil {
				order.PaidAt = updated.PaidAt
			}
			if order.Status == domain.OrderStatusPending {
				order.Status = domain.OrderStatusConfirmed
			}
		case updated.Status == domain.ProviderPaymentRefunded:
			order.Status = domain.OrderStatusRefunded
		}

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}

		result.Order = order
		return nil
	})
	if err != nil {
		return PaymentReconciliation{}, err
	}

	if s.metrics != nil {
		s.metrics.ProviderEvent(source, result.Applied)
	}

	if !result.Applied {
		s.logger(ctx, "payment.event.deduplicated", map[string]any{
			"order":           orderID,
			"source":          source,
			"providerPayment": providerPaymentID,
			"status":          string(cmd.Status),
			"current":         string(result.Payment.Status),
		})
		return result, nil
	}

	s.logger(ctx, "payment.event.applied", map[string]any{
		"order":           orderID,
		"source":          source,
		"providerPayment": providerPaymentID,
		"status":          string(result.Payment.Status),
		"becamePaid":      result.BecamePaid,
	})

	s.publishEvent(ctx, PaymentEvent{
		Type:              paymentEventReconciled,
		OrderID:           result.Order.ID,
		OrderNumber:       result.Order.OrderNumber,
		PaymentID:         result.Payment.ID,
		ProviderPaymentID: providerPaymentID,
		Status:            string(result.Payment.Status),
		Source:            source,
		OccurredAt:        now,
	})

	if result.BecamePaid && s.notifier != nil {
		s.notifier.PaymentApproved(ctx, result.Order, result.Payment)
	}

	return result, nil
}

// reconcileProviderEvent decides whether the event carries newer information
// than the stored payment. Duplicates and stale events leave the payment
// untouched; a rejected attempt may still be superseded by a later approval.
func reconcileProviderEvent(payment Payment, ev ProviderEventCommand, now time.Time) (Payment, bool, bool) {
	evPaymentID := strings.TrimSpace(ev.ProviderPaymentID)
	sameAttempt := payment.ProviderPaymentID != nil && evPaymentID != "" &&
		*payment.ProviderPaymentID == evPaymentID

	switch payment.Status {
	case domain.ProviderPaymentRefunded:
		return payment, false, false
	case domain.ProviderPaymentApproved:
		if ev.Status != domain.ProviderPaymentRefunded {
			return payment, false, false
		}
	default:
		if sameAttempt {
			if ev.Status == payment.Status {
				return payment, false, false
			}
			if statusRank[ev.Status] < statusRank[payment.Status] {
				return payment, false, false
			}
		}
	}

	wasPaid := payment.Status == domain.ProviderPaymentApproved

	payment.Status = ev.Status
	payment.StatusDetail = strings.TrimSpace(ev.StatusDetail)
	if evPaymentID != "" {
		payment.ProviderPaymentID = &evPaymentID
	}
	if ev.Provider != "" {
		payment.Provider = ev.Provider
	}
	if ev.Amount > 0 {
		payment.Amount = ev.Amount
	}
	if ev.Raw != nil {
		payment.Raw = ev.Raw
	}
	if ev.Status == domain.ProviderPaymentApproved && payment.PaidAt == nil {
		payment.PaidAt = &now
	}
	payment.UpdatedAt = now

	becamePaid := ev.Status == domain.ProviderPaymentApproved && !wasPaid
	return payment, true, becamePaid
}

func isSettledPaymentStatus(status domain.ProviderPaymentStatus) bool {
	return status == domain.ProviderPaymentApproved || status == domain.ProviderPaymentRefunded
}

func projectPaymentStatus(status domain.ProviderPaymentStatus) domain.PaymentStatus {
	switch status {
	case domain.ProviderPaymentApproved:
		return domain.PaymentStatusPaid
	case domain.ProviderPaymentRejected, domain.ProviderPaymentCancelled:
		return domain.PaymentStatusFailed
	case domain.ProviderPaymentRefunded:
		return domain.PaymentStatusRefunded
	default:
		return domain.PaymentStatusPending
	}
}

func providerEventFromDetails(orderID string, details payments.PaymentDetails, source string) ProviderEventCommand {
	return ProviderEventCommand{
		OrderID:           orderID,
		Provider:          details.Provider,
		ProviderPaymentID: details.PaymentID,
		Status:            domain.ProviderPaymentStatus(details.Status),
		StatusDetail:      details.StatusDetail,
		Amount:            Cents(details.Amount),
		Raw:               details.Raw,
		Source:            source,
	}
}

func (s *paymentService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrPaymentNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrPaymentConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("payment: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *paymentService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *paymentService) now() time.Time {
	return s.clock()
}

func (s *paymentService) publishEvent(ctx context.Context, event PaymentEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishPaymentEvent(ctx, event); err != nil {
		s.logger(ctx, "payment.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.Status,
		})
	}
}
