package services

import (
	"context"
	"time"
)

const defaultNotifyTimeout = 10 * time.Second

// NotificationSender delivers customer-facing messages. Implementations talk
// to mail or messaging backends; failures are logged, never propagated.
type NotificationSender interface {
	SendOrderConfirmation(ctx context.Context, order Order) error
	SendPaymentReceipt(ctx context.Context, order Order, payment Payment) error
}

// NotifierDeps bundles collaborators for the post-commit notifier.
type NotifierDeps struct {
	Sender  NotificationSender
	Timeout time.Duration
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type notifier struct {
	sender  NotificationSender
	timeout time.Duration
	logger  func(context.Context, string, map[string]any)
}

// NewNotifier builds a fire-and-forget Notifier. Each dispatch runs in its own
// goroutine with a bounded deadline, detached from the request context so an
// HTTP cancellation never drops a committed order's notification.
func NewNotifier(deps NotifierDeps) Notifier {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &notifier{
		sender:  deps.Sender,
		timeout: timeout,
		logger:  logger,
	}
}

func (n *notifier) OrderCreated(ctx context.Context, order Order) {
	if n.sender == nil {
		return
	}
	n.dispatch(ctx, "notify.order.created", order.ID, func(sendCtx context.Context) error {
		return n.sender.SendOrderConfirmation(sendCtx, order)
	})
}

func (n *notifier) PaymentApproved(ctx context.Context, order Order, payment Payment) {
	if n.sender == nil {
		return
	}
	n.dispatch(ctx, "notify.payment.approved", order.ID, func(sendCtx context.Context) error {
		return n.sender.SendPaymentReceipt(sendCtx, order, payment)
	})
}

func (n *notifier) dispatch(ctx context.Context, event, orderID string, send func(context.Context) error) {
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if err := send(sendCtx); err != nil {
			n.logger(sendCtx, event+".failed", map[string]any{
				"order": orderID,
				"error": err.Error(),
			})
		}
	}()
}
