package notify

import (
	"context"

	"go.uber.org/zap"

	domain "github.com/meridian-goods/api/internal/domain"
)

// LogSender records outbound notifications in the application log. It stands
// in for a mail or messaging transport in environments without one.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// SendOrderConfirmation logs the order confirmation that would be delivered.
func (s *LogSender) SendOrderConfirmation(ctx context.Context, order domain.Order) error {
	s.logger.Info("notification.order.confirmation",
		zap.String("order", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("user", order.UserID),
		zap.String("total", order.Total.String()),
	)
	return nil
}

// SendPaymentReceipt logs the payment receipt that would be delivered.
func (s *LogSender) SendPaymentReceipt(ctx context.Context, order domain.Order, payment domain.Payment) error {
	s.logger.Info("notification.payment.receipt",
		zap.String("order", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("payment", payment.ID),
		zap.String("amount", payment.Amount.String()),
	)
	return nil
}
