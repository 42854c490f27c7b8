package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/meridian-goods/api/internal/domain"
	"github.com/meridian-goods/api/internal/platform/httpx"
	"github.com/meridian-goods/api/internal/services"
)

const maxChargeBodySize = 16 * 1024

type createIntentRequest struct {
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type paymentIntentResponse struct {
	PaymentID    string       `json:"paymentId"`
	Provider     string       `json:"provider"`
	PreferenceID string       `json:"preferenceId,omitempty"`
	ClientSecret string       `json:"clientSecret,omitempty"`
	RedirectURL  string       `json:"redirectUrl,omitempty"`
	Amount       domain.Cents `json:"amount"`
	Currency     string       `json:"currency"`
	ExpiresAt    time.Time    `json:"expiresAt,omitempty"`
}

type chargeRequest struct {
	TokenID        string `json:"tokenId"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type reconciliationResponse struct {
	Applied    bool             `json:"applied"`
	BecamePaid bool             `json:"becamePaid"`
	Order      orderResponse    `json:"order"`
	Payment    *paymentResponse `json:"payment,omitempty"`
}

func newReconciliationResponse(result services.PaymentReconciliation) reconciliationResponse {
	return reconciliationResponse{
		Applied:    result.Applied,
		BecamePaid: result.BecamePaid,
		Order:      newOrderResponse(result.Order),
		Payment:    newPaymentResponse(result.Payment),
	}
}

// PaymentHandlers exposes the payment endpoints nested under /orders.
type PaymentHandlers struct {
	payments services.PaymentService
}

// NewPaymentHandlers constructs a new PaymentHandlers instance.
func NewPaymentHandlers(payments services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{payments: payments}
}

// Routes registers payment endpoints on the orders route group.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{orderID}/payment-intent", h.createIntent)
	r.Post("/{orderID}/charge", h.charge)
	r.Get("/{orderID}/payment/verify", h.verifyRedirect)
}

func (h *PaymentHandlers) createIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	// Body is optional; callers may rely on configured return URLs.
	var req createIntentRequest
	if body, err := readLimitedBody(r, maxChargeBodySize); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	} else if !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	intent, err := h.payments.CreateIntent(ctx, services.CreatePaymentIntentCommand{
		OrderID:    orderID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, paymentIntentResponse{
		PaymentID:    intent.PaymentID,
		Provider:     intent.Provider,
		PreferenceID: intent.PreferenceID,
		ClientSecret: intent.ClientSecret,
		RedirectURL:  intent.RedirectURL,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		ExpiresAt:    intent.ExpiresAt,
	})
}

func (h *PaymentHandlers) charge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxChargeBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req chargeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.TokenID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "tokenId is required", http.StatusBadRequest))
		return
	}

	result, err := h.payments.DirectCharge(ctx, services.DirectChargeCommand{
		OrderID:        orderID,
		TokenID:        req.TokenID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, newReconciliationResponse(result))
}

func (h *PaymentHandlers) verifyRedirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	result, err := h.payments.VerifyRedirect(ctx, services.VerifyRedirectCommand{
		OrderID:           orderID,
		ProviderPaymentID: strings.TrimSpace(r.URL.Query().Get("paymentId")),
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, newReconciliationResponse(result))
}

func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound), errors.Is(err, services.ErrPaymentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_found", "order or payment not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payment_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "payment could not be saved, try again", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentProvider):
		httpx.WriteError(ctx, w, httpx.NewError("payment_provider_error", "payment provider request failed", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
