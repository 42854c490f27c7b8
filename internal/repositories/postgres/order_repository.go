package postgres

import (
	"context"
	"encoding/json"

	domain "github.com/meridian-goods/api/internal/domain"
)

// OrderRepository implements repositories.OrderRepository over the orders and
// order_items tables. Line items are immutable once inserted; updates touch
// the header only.
type OrderRepository struct {
	provider *Provider
}

// NewOrderRepository constructs the repository over the shared provider.
func NewOrderRepository(provider *Provider) *OrderRepository {
	return &OrderRepository{provider: provider}
}

const orderColumns = `id, order_number, user_id, status, payment_status, payment_method,
	subtotal_cents, discount_cents, shipping_cents, total_cents, coupon_id, coupon_code,
	shipping_address, tracking_number, tracking_url, cancel_reason, transfer_receipt,
	created_at, updated_at, paid_at, shipped_at, delivered_at, cancelled_at`

// Insert writes the order header and all line items.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	const op = "order.insert"
	q := r.provider.querier(ctx)

	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return wrapError(op, err)
	}
	receipt, err := marshalReceipt(order.TransferReceipt)
	if err != nil {
		return wrapError(op, err)
	}

	_, err = q.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		         $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		order.ID, order.OrderNumber, order.UserID, string(order.Status),
		string(order.PaymentStatus), string(order.PaymentMethod),
		int64(order.Subtotal), int64(order.Discount), int64(order.ShippingFee), int64(order.Total),
		order.CouponID, order.CouponCode, address,
		order.TrackingNumber, order.TrackingURL, order.CancelReason, receipt,
		order.CreatedAt, order.UpdatedAt, order.PaidAt, order.ShippedAt,
		order.DeliveredAt, order.CancelledAt)
	if err != nil {
		return wrapError(op, err)
	}

	for _, item := range order.Items {
		_, err = q.Exec(ctx,
			`INSERT INTO order_items
			   (id, order_id, product_id, product_name, product_sku, unit_price_cents, quantity, total_cents)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, order.ID, item.ProductID, item.ProductName, item.ProductSKU,
			int64(item.UnitPrice), item.Quantity, int64(item.Total))
		if err != nil {
			return wrapError(op, err)
		}
	}
	return nil
}

// FindByID reads the order header and its line items.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return r.find(ctx, "order.find_by_id", orderID, false)
}

// LockByID reads the order header under FOR UPDATE within the ambient transaction.
func (r *OrderRepository) LockByID(ctx context.Context, orderID string) (domain.Order, error) {
	return r.find(ctx, "order.lock_by_id", orderID, true)
}

func (r *OrderRepository) find(ctx context.Context, op, orderID string, lock bool) (domain.Order, error) {
	q := r.provider.querier(ctx)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	row := q.QueryRow(ctx, query, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, wrapError(op, err)
	}

	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_id, product_name, product_sku, unit_price_cents, quantity, total_cents
		   FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return domain.Order{}, wrapError(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		var unitPrice, total int64
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.ProductSKU, &unitPrice, &item.Quantity, &total); err != nil {
			return domain.Order{}, wrapError(op, err)
		}
		item.UnitPrice = domain.Cents(unitPrice)
		item.Total = domain.Cents(total)
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, wrapError(op, err)
	}
	return order, nil
}

// Update persists mutable header fields.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	const op = "order.update"

	receipt, err := marshalReceipt(order.TransferReceipt)
	if err != nil {
		return wrapError(op, err)
	}

	tag, err := r.provider.querier(ctx).Exec(ctx,
		`UPDATE orders
		    SET status = $2, payment_status = $3,
		        tracking_number = $4, tracking_url = $5, cancel_reason = $6,
		        transfer_receipt = $7, updated_at = $8, paid_at = $9,
		        shipped_at = $10, delivered_at = $11, cancelled_at = $12
		  WHERE id = $1`,
		order.ID, string(order.Status), string(order.PaymentStatus),
		order.TrackingNumber, order.TrackingURL, order.CancelReason,
		receipt, order.UpdatedAt, order.PaidAt,
		order.ShippedAt, order.DeliveredAt, order.CancelledAt)
	if err != nil {
		return wrapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError(op)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	var status, paymentStatus, paymentMethod string
	var subtotal, discount, shipping, total int64
	var address []byte
	var receipt []byte

	err := row.Scan(&order.ID, &order.OrderNumber, &order.UserID, &status, &paymentStatus,
		&paymentMethod, &subtotal, &discount, &shipping, &total,
		&order.CouponID, &order.CouponCode, &address,
		&order.TrackingNumber, &order.TrackingURL, &order.CancelReason, &receipt,
		&order.CreatedAt, &order.UpdatedAt, &order.PaidAt, &order.ShippedAt,
		&order.DeliveredAt, &order.CancelledAt)
	if err != nil {
		return domain.Order{}, err
	}

	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)
	order.PaymentMethod = domain.PaymentMethod(paymentMethod)
	order.Subtotal = domain.Cents(subtotal)
	order.Discount = domain.Cents(discount)
	order.ShippingFee = domain.Cents(shipping)
	order.Total = domain.Cents(total)

	if len(address) > 0 {
		if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
			return domain.Order{}, err
		}
	}
	if len(receipt) > 0 {
		var tr domain.BankTransferReceipt
		if err := json.Unmarshal(receipt, &tr); err != nil {
			return domain.Order{}, err
		}
		order.TransferReceipt = &tr
	}
	return order, nil
}

func marshalReceipt(receipt *domain.BankTransferReceipt) ([]byte, error) {
	if receipt == nil {
		return nil, nil
	}
	return json.Marshal(receipt)
}
