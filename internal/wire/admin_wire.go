package wire

import (
	"astro-events/internal/adaptor"
	"astro-events/internal/data/repository"
	"astro-events/pkg/middleware"
	"astro-events/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireAdmin(
	r chi.Router,
	handler *adaptor.Handler,
	repo *repository.Repository,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin", func(r chi.Router) {
		// Require both authentication AND admin role
		r.Use(middleware.AuthSession(repo.Session, log))
		r.Use(middleware.Admin(repo.Member, log))

		// GET /api/admin/registrations/{id} - View any registration
		r.Get("/registrations/{id}", handler.Registration.GetRegistrationByID)

		// POST /api/admin/registrations/{id}/refund - Full or partial refund
		r.Post("/registrations/{id}/refund", handler.Registration.Refund)

		// GET /api/admin/audit/{subjectId} - Audit trail for a registration
		r.Get("/audit/{subjectId}", handler.Registration.GetAuditTrail)

		// POST /api/admin/reaper/sweep - Trigger a sweep on demand
		r.Post("/reaper/sweep", handler.Reaper.Sweep)
	})
}
