package adaptor

import (
	"net/http"

	"astro-events/internal/usecase"
	"astro-events/pkg/utils"

	"go.uber.org/zap"
)

type ReaperHandler struct {
	service usecase.ReaperService
	log     *zap.Logger
}

func NewReaperHandler(service usecase.ReaperService, log *zap.Logger) *ReaperHandler {
	return &ReaperHandler{
		service: service,
		log:     log.With(zap.String("handler", "reaper")),
	}
}

// Sweep handles POST /api/admin/reaper/sweep (admin only). Runs the
// same sweep as the background worker, on demand.
func (h *ReaperHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Sweep(r.Context())
	if err != nil {
		h.log.Error("Manual sweep failed", zap.Error(err))
		utils.ResponseInternalError(w, "Sweep failed")
		return
	}

	utils.ResponseSuccess(w, "success", result)
}
