package worker

import (
	"context"
	"time"

	"astro-events/internal/usecase"

	"go.uber.org/zap"
)

// Reaper runs the stale-hold sweep on a fixed interval until the
// context is cancelled. The HTTP admin endpoint triggers the same
// sweep on demand; both paths share the service.
type Reaper struct {
	service  usecase.ReaperService
	interval time.Duration
	log      *zap.Logger
}

func NewReaper(service usecase.ReaperService, interval time.Duration, log *zap.Logger) *Reaper {
	return &Reaper{
		service:  service,
		interval: interval,
		log:      log.With(zap.String("worker", "reaper")),
	}
}

func (w *Reaper) Run(ctx context.Context) {
	w.log.Info("Reaper worker started", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Reaper worker stopped")
			return
		case <-ticker.C:
			if _, err := w.service.Sweep(ctx); err != nil {
				w.log.Error("Scheduled sweep failed", zap.Error(err))
			}
		}
	}
}
