package wire

import (
	"astro-events/internal/adaptor"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireEvent(
	r chi.Router,
	eventHandler *adaptor.EventHandler,
	log *zap.Logger,
) {
	// ==================== PUBLIC ROUTES ====================
	// GET /api/events - List upcoming events with remaining capacity
	r.Get("/api/events", eventHandler.ListEvents)

	// GET /api/events/{id} - Event details (public)
	r.Get("/api/events/{id}", eventHandler.GetEvent)
}
