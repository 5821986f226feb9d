package usecase

import (
	"astro-events/internal/clock"
	"astro-events/internal/data/repository"
	"astro-events/internal/gateway"
	"astro-events/internal/notify"
	"astro-events/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Event        EventService
	Registration RegistrationService
	Webhook      WebhookService
	Reaper       ReaperService
}

func NewService(
	repo *repository.Repository,
	gw gateway.PaymentGateway,
	notifier *notify.Notifier,
	clk clock.Clock,
	config *utils.Config,
	log *zap.Logger,
) *Service {
	return &Service{
		Event:        NewEventService(repo, log),
		Registration: NewRegistrationService(repo, gw, notifier, clk, config, log),
		Webhook:      NewWebhookService(repo, clk, log),
		Reaper:       NewReaperService(repo, notifier, clk, config.Reaper.HoldTTL, log),
	}
}
