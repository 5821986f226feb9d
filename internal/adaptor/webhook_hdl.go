package adaptor

import (
	"encoding/json"
	"io"
	"net/http"

	"astro-events/internal/gateway"
	"astro-events/internal/usecase"
	"astro-events/pkg/utils"

	"go.uber.org/zap"
)

// maxWebhookBody caps the webhook payload at 1 MiB.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	service  usecase.WebhookService
	verifier gateway.PaymentGateway
	log      *zap.Logger
}

func NewWebhookHandler(service usecase.WebhookService, verifier gateway.PaymentGateway, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service:  service,
		verifier: verifier,
		log:      log.With(zap.String("handler", "webhook")),
	}
}

// HandlePaymentWebhook handles POST /api/webhooks/payment (public,
// signature-verified). The signature covers the raw body, so the body
// must be read before decoding.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		utils.ResponseBadRequest(w, "Failed to read request body", nil)
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")
	if !h.verifier.VerifyWebhookSignature(signature, body) {
		h.log.Warn("Webhook signature verification failed",
			zap.String("remote_addr", r.RemoteAddr))
		utils.ResponseUnauthorized(w, "Invalid webhook signature")
		return
	}

	var event gateway.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		utils.ResponseBadRequest(w, "Invalid webhook payload", nil)
		return
	}

	if event.ID == "" || event.Type == "" {
		utils.ResponseBadRequest(w, "Webhook event id and type are required", nil)
		return
	}

	if err := h.service.HandleEvent(r.Context(), &event); err != nil {
		h.log.Error("Webhook processing failed",
			zap.Error(err),
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type))
		// Non-2xx makes the gateway redeliver.
		utils.ResponseInternalError(w, "Webhook processing failed")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}
