package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/meridian-goods/api/internal/domain"
)

const defaultMaxBodySize = 64 * 1024

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type orderItemResponse struct {
	ID          string       `json:"id"`
	ProductID   string       `json:"productId"`
	ProductName string       `json:"productName"`
	ProductSKU  string       `json:"productSku"`
	UnitPrice   domain.Cents `json:"unitPrice"`
	Quantity    int          `json:"quantity"`
	Total       domain.Cents `json:"total"`
}

type paymentResponse struct {
	ID                string       `json:"id"`
	Provider          string       `json:"provider"`
	ProviderPaymentID string       `json:"providerPaymentId,omitempty"`
	Status            string       `json:"status"`
	StatusDetail      string       `json:"statusDetail,omitempty"`
	Amount            domain.Cents `json:"amount"`
	Currency          string       `json:"currency"`
	PaidAt            *time.Time   `json:"paidAt,omitempty"`
}

type transferReceiptResponse struct {
	Reference   string    `json:"reference"`
	Notes       string    `json:"notes,omitempty"`
	ConfirmedBy string    `json:"confirmedBy,omitempty"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

type orderResponse struct {
	ID              string                   `json:"id"`
	OrderNumber     string                   `json:"orderNumber"`
	UserID          string                   `json:"userId"`
	Status          string                   `json:"status"`
	PaymentStatus   string                   `json:"paymentStatus"`
	PaymentMethod   string                   `json:"paymentMethod"`
	Subtotal        domain.Cents             `json:"subtotal"`
	Discount        domain.Cents             `json:"discount"`
	ShippingFee     domain.Cents             `json:"shippingFee"`
	Total           domain.Cents             `json:"total"`
	CouponCode      *string                  `json:"couponCode,omitempty"`
	ShippingAddress domain.Address           `json:"shippingAddress"`
	TrackingNumber  *string                  `json:"trackingNumber,omitempty"`
	TrackingURL     *string                  `json:"trackingUrl,omitempty"`
	CancelReason    *string                  `json:"cancelReason,omitempty"`
	TransferReceipt *transferReceiptResponse `json:"transferReceipt,omitempty"`
	Items           []orderItemResponse      `json:"items"`
	Payment         *paymentResponse         `json:"payment,omitempty"`
	CreatedAt       time.Time                `json:"createdAt"`
	UpdatedAt       time.Time                `json:"updatedAt"`
	PaidAt          *time.Time               `json:"paidAt,omitempty"`
	ShippedAt       *time.Time               `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time               `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time               `json:"cancelledAt,omitempty"`
}

func newOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductSKU:  item.ProductSKU,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Total:       item.Total,
		})
	}

	resp := orderResponse{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		PaymentMethod:   string(order.PaymentMethod),
		Subtotal:        order.Subtotal,
		Discount:        order.Discount,
		ShippingFee:     order.ShippingFee,
		Total:           order.Total,
		CouponCode:      order.CouponCode,
		ShippingAddress: order.ShippingAddress,
		TrackingNumber:  order.TrackingNumber,
		TrackingURL:     order.TrackingURL,
		CancelReason:    order.CancelReason,
		Items:           items,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
		PaidAt:          order.PaidAt,
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
	}

	if order.TransferReceipt != nil {
		resp.TransferReceipt = &transferReceiptResponse{
			Reference:   order.TransferReceipt.Reference,
			Notes:       order.TransferReceipt.Notes,
			ConfirmedBy: order.TransferReceipt.ConfirmedBy,
			ConfirmedAt: order.TransferReceipt.ConfirmedAt,
		}
	}
	if order.Payment != nil {
		resp.Payment = newPaymentResponse(*order.Payment)
	}
	return resp
}

func newPaymentResponse(payment domain.Payment) *paymentResponse {
	resp := &paymentResponse{
		ID:           payment.ID,
		Provider:     payment.Provider,
		Status:       string(payment.Status),
		StatusDetail: payment.StatusDetail,
		Amount:       payment.Amount,
		Currency:     payment.Currency,
		PaidAt:       payment.PaidAt,
	}
	if payment.ProviderPaymentID != nil {
		resp.ProviderPaymentID = *payment.ProviderPaymentID
	}
	return resp
}
