package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/meridian-goods/api/internal/domain"
	"github.com/meridian-goods/api/internal/platform/httpx"
	"github.com/meridian-goods/api/internal/services"
)

const maxAdminBodySize = 16 * 1024

type updateOrderStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber"`
	TrackingURL    string `json:"trackingUrl"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type confirmTransferRequest struct {
	Reference string `json:"reference"`
	Notes     string `json:"notes"`
}

// AdminHandlers exposes operator endpoints for fulfilment and manual payments.
type AdminHandlers struct {
	orders services.OrderService
}

// NewAdminHandlers constructs a new AdminHandlers instance.
func NewAdminHandlers(orders services.OrderService) *AdminHandlers {
	return &AdminHandlers{orders: orders}
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Patch("/orders/{orderID}/status", h.updateStatus)
	r.Post("/orders/{orderID}/cancel", h.cancelOrder)
	r.Post("/orders/{orderID}/confirm-transfer", h.confirmTransfer)
}

func (h *AdminHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updateOrderStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID:        orderID,
		TargetStatus:   domain.OrderStatus(strings.TrimSpace(req.Status)),
		TrackingNumber: req.TrackingNumber,
		TrackingURL:    req.TrackingURL,
		ActorID:        actorID(r),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, newOrderResponse(order))
}

func (h *AdminHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	// A bare cancel with no body is allowed.
	var req cancelOrderRequest
	if body, err := readLimitedBody(r, maxAdminBodySize); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	} else if !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		Reason:  req.Reason,
		ActorID: actorID(r),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, newOrderResponse(order))
}

func (h *AdminHandlers) confirmTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req confirmTransferRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	order, err := h.orders.ConfirmBankTransfer(ctx, services.ConfirmBankTransferCommand{
		OrderID:   orderID,
		Reference: req.Reference,
		Notes:     req.Notes,
		ActorID:   actorID(r),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, newOrderResponse(order))
}

// actorID resolves the acting operator from the X-Actor-Id header set by the
// upstream auth proxy.
func actorID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Actor-Id"))
}
