package wire

import (
	"astro-events/internal/adaptor"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireWebhook(
	r chi.Router,
	webhookHandler *adaptor.WebhookHandler,
	log *zap.Logger,
) {
	// POST /api/webhooks/payment - Gateway notifications. No session
	// auth; the HMAC signature is the authentication.
	r.Post("/api/webhooks/payment", webhookHandler.HandlePaymentWebhook)
}
