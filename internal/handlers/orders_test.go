package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/meridian-goods/api/internal/domain"
	"github.com/meridian-goods/api/internal/services"
)

type stubOrderService struct {
	placeCmd     services.PlaceOrderCommand
	placeResult  domain.Order
	placeErr     error
	getResult    domain.Order
	getErr       error
	statusCmd    services.UpdateOrderStatusCommand
	statusResult domain.Order
	statusErr    error
	cancelCmd    services.CancelOrderCommand
	cancelResult domain.Order
	cancelErr    error
	transferCmd  services.ConfirmBankTransferCommand
	transferErr  error
}

func (s *stubOrderService) PlaceOrder(_ context.Context, cmd services.PlaceOrderCommand) (domain.Order, error) {
	s.placeCmd = cmd
	return s.placeResult, s.placeErr
}

func (s *stubOrderService) GetOrder(_ context.Context, _ string) (domain.Order, error) {
	return s.getResult, s.getErr
}

func (s *stubOrderService) UpdateStatus(_ context.Context, cmd services.UpdateOrderStatusCommand) (domain.Order, error) {
	s.statusCmd = cmd
	return s.statusResult, s.statusErr
}

func (s *stubOrderService) Cancel(_ context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
	s.cancelCmd = cmd
	return s.cancelResult, s.cancelErr
}

func (s *stubOrderService) ConfirmBankTransfer(_ context.Context, cmd services.ConfirmBankTransferCommand) (domain.Order, error) {
	s.transferCmd = cmd
	return s.cancelResult, s.transferErr
}

func sampleOrder() domain.Order {
	created := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	return domain.Order{
		ID:            "ord_1",
		OrderNumber:   "MG-20240315-ABCDEF",
		UserID:        "user_1",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		PaymentMethod: domain.PaymentMethodGateway,
		Subtotal:      6200,
		ShippingFee:   500,
		Total:         6700,
		ShippingAddress: domain.Address{
			Name:       "Ada Example",
			Line1:      "1 Main St",
			City:       "Springfield",
			PostalCode: "12345",
			Country:    "US",
		},
		Items: []domain.OrderItem{
			{ID: "itm_1", OrderID: "ord_1", ProductID: "prod_tea", ProductName: "Oolong Tea", ProductSKU: "TEA-001", UnitPrice: 2500, Quantity: 2, Total: 5000},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func orderRouter(svc services.OrderService) chi.Router {
	h := NewOrderHandlers(svc)
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func TestPlaceOrderHandlerSuccess(t *testing.T) {
	svc := &stubOrderService{placeResult: sampleOrder()}
	router := orderRouter(svc)

	body := `{
		"userId": "user_1",
		"items": [{"productId": "prod_tea", "quantity": 2}],
		"couponCode": "SAVE10",
		"paymentMethod": "gateway",
		"shippingFee": "5.00",
		"shippingAddress": {
			"name": "Ada Example",
			"line1": "1 Main St",
			"city": "Springfield",
			"postalCode": "12345",
			"country": "US"
		}
	}`

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	if svc.placeCmd.UserID != "user_1" {
		t.Fatalf("expected user id forwarded, got %q", svc.placeCmd.UserID)
	}
	if svc.placeCmd.ShippingFee != 500 {
		t.Fatalf("expected shipping fee parsed to 500 cents, got %d", svc.placeCmd.ShippingFee)
	}
	if len(svc.placeCmd.Items) != 1 || svc.placeCmd.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", svc.placeCmd.Items)
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["orderNumber"] != "MG-20240315-ABCDEF" {
		t.Fatalf("unexpected order number: %v", payload["orderNumber"])
	}
	if payload["total"] != "67.00" {
		t.Fatalf("expected total rendered as decimal string, got %v", payload["total"])
	}
}

func TestPlaceOrderHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", services.ErrOrderInvalidInput, http.StatusBadRequest, "invalid_request"},
		{"insufficient stock", services.ErrOrderInsufficientStock, http.StatusConflict, "insufficient_stock"},
		{"product unavailable", services.ErrOrderProductUnavailable, http.StatusUnprocessableEntity, "product_unavailable"},
		{"conflict", services.ErrOrderConflict, http.StatusConflict, "conflict"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrderService{placeErr: tc.err}
			router := orderRouter(svc)

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"userId":"u"}`))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			var payload map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if payload["error"] != tc.wantCode {
				t.Fatalf("expected code %q, got %v", tc.wantCode, payload["error"])
			}
		})
	}
}

func TestPlaceOrderHandlerRejectsEmptyBody(t *testing.T) {
	router := orderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("  "))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetOrderHandler(t *testing.T) {
	order := sampleOrder()
	order.Payment = &domain.Payment{
		ID:       "pay_1",
		OrderID:  "ord_1",
		Provider: "stripe",
		Status:   domain.ProviderPaymentApproved,
		Amount:   6700,
		Currency: "USD",
	}
	router := orderRouter(&stubOrderService{getResult: order})

	req := httptest.NewRequest(http.MethodGet, "/ord_1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		ID      string `json:"id"`
		Payment *struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"payment"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.ID != "ord_1" {
		t.Fatalf("unexpected order id %q", payload.ID)
	}
	if payload.Payment == nil || payload.Payment.Status != "approved" {
		t.Fatalf("expected payment attached, got %+v", payload.Payment)
	}
}

func TestGetOrderHandlerNotFound(t *testing.T) {
	router := orderRouter(&stubOrderService{getErr: services.ErrOrderNotFound})

	req := httptest.NewRequest(http.MethodGet, "/ord_missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAdminUpdateStatusHandler(t *testing.T) {
	shipped := sampleOrder()
	shipped.Status = domain.OrderStatusShipped
	svc := &stubOrderService{statusResult: shipped}

	h := NewAdminHandlers(svc)
	r := chi.NewRouter()
	h.Routes(r)

	body := `{"status": "shipped", "trackingNumber": "TRACK123"}`
	req := httptest.NewRequest(http.MethodPatch, "/orders/ord_1/status", strings.NewReader(body))
	req.Header.Set("X-Actor-Id", "ops_1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.statusCmd.TargetStatus != domain.OrderStatusShipped {
		t.Fatalf("expected shipped target, got %q", svc.statusCmd.TargetStatus)
	}
	if svc.statusCmd.TrackingNumber != "TRACK123" || svc.statusCmd.ActorID != "ops_1" {
		t.Fatalf("unexpected command: %+v", svc.statusCmd)
	}
}

func TestAdminCancelHandlerAllowsEmptyBody(t *testing.T) {
	cancelled := sampleOrder()
	cancelled.Status = domain.OrderStatusCancelled
	svc := &stubOrderService{cancelResult: cancelled}

	h := NewAdminHandlers(svc)
	r := chi.NewRouter()
	h.Routes(r)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1/cancel", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.cancelCmd.OrderID != "ord_1" {
		t.Fatalf("expected order id forwarded, got %q", svc.cancelCmd.OrderID)
	}
}

func TestAdminConfirmTransferHandler(t *testing.T) {
	svc := &stubOrderService{}
	h := NewAdminHandlers(svc)
	r := chi.NewRouter()
	h.Routes(r)

	body := `{"reference": "TRX-42", "notes": "verified"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1/confirm-transfer", strings.NewReader(body))
	req.Header.Set("X-Actor-Id", "ops_1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.transferCmd.Reference != "TRX-42" || svc.transferCmd.ActorID != "ops_1" {
		t.Fatalf("unexpected command: %+v", svc.transferCmd)
	}
}
