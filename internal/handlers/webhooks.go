package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	domain "github.com/meridian-goods/api/internal/domain"
	"github.com/meridian-goods/api/internal/platform/httpx"
	"github.com/meridian-goods/api/internal/services"
)

const maxWebhookBodySize = 256 * 1024

// WebhookVerifier validates a raw webhook payload against its signature header
// and returns the decoded event.
type WebhookVerifier func(payload []byte, signatureHeader string) (stripe.Event, error)

// NewStripeWebhookVerifier builds a verifier bound to the endpoint secret.
func NewStripeWebhookVerifier(secret string) WebhookVerifier {
	return func(payload []byte, signatureHeader string) (stripe.Event, error) {
		return webhook.ConstructEvent(payload, signatureHeader, secret)
	}
}

// WebhookHandlers ingests asynchronous provider notifications.
type WebhookHandlers struct {
	payments services.PaymentService
	verifier WebhookVerifier
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(payments services.PaymentService, verifier WebhookVerifier, logger func(ctx context.Context, event string, fields map[string]any)) *WebhookHandlers {
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &WebhookHandlers{payments: payments, verifier: verifier, logger: logger}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.stripeWebhook)
}

func (h *WebhookHandlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil || h.verifier == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
		return
	}

	event, err := h.verifier(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger(ctx, "webhook.signature.failed", map[string]any{"error": err.Error()})
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	cmd, ok, err := providerEventFromStripe(event)
	if err != nil {
		h.logger(ctx, "webhook.decode.failed", map[string]any{
			"type":  string(event.Type),
			"error": err.Error(),
		})
		writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
		return
	}
	if !ok {
		writeJSONResponse(w, http.StatusOK, map[string]any{"received": true, "ignored": true})
		return
	}

	// Reconciliation is idempotent, so a dropped response costs nothing; the
	// provider retries and the duplicate is deduplicated on arrival. Errors
	// are logged and acknowledged to keep the retry queue clean.
	if _, err := h.payments.ApplyProviderEvent(ctx, cmd); err != nil {
		h.logger(ctx, "webhook.apply.failed", map[string]any{
			"type":  string(event.Type),
			"order": cmd.OrderID,
			"error": err.Error(),
		})
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
}

// providerEventFromStripe normalises a Stripe event into a provider event
// command. The second return value is false for event types this endpoint
// does not consume.
func providerEventFromStripe(event stripe.Event) (services.ProviderEventCommand, bool, error) {
	var status domain.ProviderPaymentStatus
	switch event.Type {
	case "payment_intent.succeeded":
		status = domain.ProviderPaymentApproved
	case "payment_intent.processing":
		status = domain.ProviderPaymentInProcess
	case "payment_intent.payment_failed":
		status = domain.ProviderPaymentRejected
	case "payment_intent.canceled":
		status = domain.ProviderPaymentCancelled
	case "charge.refunded":
		return refundEventFromCharge(event)
	default:
		return services.ProviderEventCommand{}, false, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return services.ProviderEventCommand{}, false, err
	}

	detail := string(intent.Status)
	if intent.LastPaymentError != nil && status == domain.ProviderPaymentRejected {
		detail = string(intent.LastPaymentError.DeclineCode)
		if detail == "" {
			detail = string(intent.LastPaymentError.Code)
		}
	}

	return services.ProviderEventCommand{
		OrderID:           strings.TrimSpace(intent.Metadata["order_id"]),
		Provider:          "stripe",
		ProviderPaymentID: intent.ID,
		Status:            status,
		StatusDetail:      detail,
		Amount:            domain.Cents(intent.Amount),
		Raw:               rawEventPayload(event),
		Source:            services.PaymentSourceWebhook,
	}, true, nil
}

func refundEventFromCharge(event stripe.Event) (services.ProviderEventCommand, bool, error) {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return services.ProviderEventCommand{}, false, err
	}
	// Partial refunds keep the charge refundable; only a full refund flips
	// the payment into its terminal state.
	if !charge.Refunded {
		return services.ProviderEventCommand{}, false, nil
	}

	providerPaymentID := ""
	if charge.PaymentIntent != nil {
		providerPaymentID = charge.PaymentIntent.ID
	}

	return services.ProviderEventCommand{
		OrderID:           strings.TrimSpace(charge.Metadata["order_id"]),
		Provider:          "stripe",
		ProviderPaymentID: providerPaymentID,
		Status:            domain.ProviderPaymentRefunded,
		StatusDetail:      "charge_refunded",
		Amount:            domain.Cents(charge.AmountRefunded),
		Raw:               rawEventPayload(event),
		Source:            services.PaymentSourceWebhook,
	}, true, nil
}

func rawEventPayload(event stripe.Event) map[string]any {
	var raw map[string]any
	if err := json.Unmarshal(event.Data.Raw, &raw); err != nil {
		return nil
	}
	return raw
}
