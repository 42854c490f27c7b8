package postgres

import (
	"context"
	"encoding/json"

	domain "github.com/meridian-goods/api/internal/domain"
)

// PaymentRepository implements repositories.PaymentRepository over the payments table.
type PaymentRepository struct {
	provider *Provider
}

// NewPaymentRepository constructs the repository over the shared provider.
func NewPaymentRepository(provider *Provider) *PaymentRepository {
	return &PaymentRepository{provider: provider}
}

const paymentColumns = `id, order_id, provider, provider_preference_id, provider_payment_id,
	status, status_detail, amount_cents, currency, raw, paid_at, created_at, updated_at`

// Insert writes a new payment row.
func (r *PaymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	const op = "payment.insert"

	raw, err := marshalRaw(payment.Raw)
	if err != nil {
		return wrapError(op, err)
	}

	_, err = r.provider.querier(ctx).Exec(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		payment.ID, payment.OrderID, payment.Provider,
		payment.ProviderPreferenceID, payment.ProviderPaymentID,
		string(payment.Status), payment.StatusDetail, int64(payment.Amount),
		payment.Currency, raw, payment.PaidAt, payment.CreatedAt, payment.UpdatedAt)
	if err != nil {
		return wrapError(op, err)
	}
	return nil
}

// Update persists the reconciled payment state.
func (r *PaymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	const op = "payment.update"

	raw, err := marshalRaw(payment.Raw)
	if err != nil {
		return wrapError(op, err)
	}

	tag, err := r.provider.querier(ctx).Exec(ctx,
		`UPDATE payments
		    SET provider_preference_id = $2, provider_payment_id = $3,
		        status = $4, status_detail = $5, amount_cents = $6,
		        currency = $7, raw = $8, paid_at = $9, updated_at = $10
		  WHERE id = $1`,
		payment.ID, payment.ProviderPreferenceID, payment.ProviderPaymentID,
		string(payment.Status), payment.StatusDetail, int64(payment.Amount),
		payment.Currency, raw, payment.PaidAt, payment.UpdatedAt)
	if err != nil {
		return wrapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError(op)
	}
	return nil
}

// FindByOrderID reads the payment attached to an order.
func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	return r.findBy(ctx, "payment.find_by_order", `order_id = $1`, orderID, false)
}

// LockByOrderID reads the payment row under FOR UPDATE within the ambient transaction.
func (r *PaymentRepository) LockByOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	return r.findBy(ctx, "payment.lock_by_order", `order_id = $1`, orderID, true)
}

// FindByProviderPaymentID resolves a payment from the PSP-side identifier.
func (r *PaymentRepository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (domain.Payment, error) {
	return r.findBy(ctx, "payment.find_by_provider_payment", `provider_payment_id = $1`, providerPaymentID, false)
}

func (r *PaymentRepository) findBy(ctx context.Context, op, where, arg string, lock bool) (domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + where
	if lock {
		query += ` FOR UPDATE`
	}

	row := r.provider.querier(ctx).QueryRow(ctx, query, arg)

	var payment domain.Payment
	var status string
	var amount int64
	var raw []byte
	err := row.Scan(&payment.ID, &payment.OrderID, &payment.Provider,
		&payment.ProviderPreferenceID, &payment.ProviderPaymentID,
		&status, &payment.StatusDetail, &amount, &payment.Currency,
		&raw, &payment.PaidAt, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return domain.Payment{}, wrapError(op, err)
	}

	payment.Status = domain.ProviderPaymentStatus(status)
	payment.Amount = domain.Cents(amount)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payment.Raw); err != nil {
			return domain.Payment{}, wrapError(op, err)
		}
	}
	return payment, nil
}

func marshalRaw(raw map[string]any) ([]byte, error) {
	if raw == nil {
		return nil, nil
	}
	return json.Marshal(raw)
}
