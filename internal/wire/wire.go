// internal/wire/wire.go
package wire

import (
	"net/http"

	"astro-events/internal/adaptor"
	"astro-events/internal/clock"
	"astro-events/internal/data/repository"
	"astro-events/internal/gateway"
	"astro-events/internal/notify"
	"astro-events/internal/usecase"
	"astro-events/internal/worker"
	"astro-events/pkg/middleware"
	"astro-events/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// App menyimpan semua dependencies
type App struct {
	Router *chi.Mux
	Reaper *worker.Reaper
}

// Wiring menginisialisasi semua dependencies
func Wiring(repo *repository.Repository, config *utils.Config, logger *zap.Logger) (*App, error) {
	gw := gateway.NewRESTGateway(config.Gateway, logger)

	var bus notify.Bus
	if config.Nats.Enabled {
		var err error
		bus, err = notify.NewNatsBus(config.Nats.URL)
		if err != nil {
			return nil, err
		}
		logger.Info("NATS bus connected", zap.String("url", config.Nats.URL))
	}
	notifier := notify.NewNotifier(bus, logger)

	// Initialize services dan handlers
	service := usecase.NewService(repo, gw, notifier, clock.NewSystem(), config, logger)
	handler := adaptor.NewHandler(service, gw, logger)

	// Setup router
	router := setupRouter(handler, repo, config, logger)

	return &App{
		Router: router,
		Reaper: worker.NewReaper(service.Reaper, config.Reaper.Interval, logger),
	}, nil
}

// setupRouter konfigurasi Chi router
func setupRouter(
	handler *adaptor.Handler,
	repo *repository.Repository,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	// Apply routes
	wireEvent(r, handler.Event, logger)
	wireRegistration(r, handler.Registration, repo, config, logger)
	wireWebhook(r, handler.Webhook, logger)
	wireAdmin(r, handler, repo, config, logger)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
