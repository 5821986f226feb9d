package adaptor

import (
	"astro-events/internal/gateway"
	"astro-events/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Event        *EventHandler
	Registration *RegistrationHandler
	Webhook      *WebhookHandler
	Reaper       *ReaperHandler
}

func NewHandler(service *usecase.Service, gw gateway.PaymentGateway, log *zap.Logger) *Handler {
	return &Handler{
		Event:        NewEventHandler(service.Event, log),
		Registration: NewRegistrationHandler(service.Registration, log),
		Webhook:      NewWebhookHandler(service.Webhook, gw, log),
		Reaper:       NewReaperHandler(service.Reaper, log),
	}
}
