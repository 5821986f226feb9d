package wire

import (
	"astro-events/internal/adaptor"
	"astro-events/internal/data/repository"
	"astro-events/pkg/middleware"
	"astro-events/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireRegistration(
	r chi.Router,
	registrationHandler *adaptor.RegistrationHandler,
	repo *repository.Repository,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, log))

		// POST /api/registrations - Start checkout (hold + payment intent)
		r.Post("/api/registrations", registrationHandler.CreateRegistration)

		// POST /api/registrations/{id}/capture - Capture after approval
		r.Post("/api/registrations/{id}/capture", registrationHandler.CompleteCheckout)

		// DELETE /api/registrations/{id} - Cancel own hold
		r.Delete("/api/registrations/{id}", registrationHandler.CancelRegistration)

		// GET /api/member/registrations - View own registration history
		r.Get("/api/member/registrations", registrationHandler.GetMemberRegistrations)
	})
}
