package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

const MaxRequestBodySize = 1 << 20 // 1 MB

const stripeSignatureHeader = "Stripe-Signature"

// PaymentWebhookProcessor is implemented by app.WebhookReconciler.
type PaymentWebhookProcessor interface {
	HandlePaymentWebhook(ctx context.Context, rawPayload []byte, signature string) error
}

type WebhookHandler struct {
	appService PaymentWebhookProcessor
	logger     *slog.Logger
}

func NewWebhookHandler(appService PaymentWebhookProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		appService: appService,
		logger:     logger.With("component", "webhook_handler"),
	}
}

// HandleStripeWebhook receives Stripe event deliveries. The body must be passed on
// byte for byte since the signature covers the raw payload.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	signature := r.Header.Get(stripeSignatureHeader)
	if signature == "" {
		logger.WarnContext(ctx, "Webhook delivery without signature header")
		respondWithJSON(w, logger, http.StatusBadRequest, webhookErrorDTO{Error: "Missing Stripe signature"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	rawPayload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read webhook request body", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondWithJSON(w, logger, http.StatusRequestEntityTooLarge, webhookErrorDTO{Error: "Request body too large"})
			return
		}
		respondWithJSON(w, logger, http.StatusBadRequest, webhookErrorDTO{Error: "Invalid payload"})
		return
	}

	logger.InfoContext(ctx, "Received Stripe webhook",
		"remote_addr", r.RemoteAddr,
		"payload_size", len(rawPayload))

	if err := h.appService.HandlePaymentWebhook(ctx, rawPayload, signature); err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingSignature):
			respondWithJSON(w, logger, http.StatusBadRequest, webhookErrorDTO{Error: "Missing Stripe signature"})
		case errors.Is(err, domain.ErrInvalidSignature):
			respondWithJSON(w, logger, http.StatusBadRequest, webhookErrorDTO{Error: "Invalid signature"})
		case errors.Is(err, domain.ErrInvalidPayload):
			respondWithJSON(w, logger, http.StatusBadRequest, webhookErrorDTO{Error: "Invalid payload"})
		default:
			logger.ErrorContext(ctx, "Error processing Stripe webhook", "error", err)
			respondWithJSON(w, logger, http.StatusInternalServerError, webhookErrorDTO{Error: "Database update failed"})
		}
		return
	}

	respondWithJSON(w, logger, http.StatusOK, webhookAckDTO{Received: true})
}
