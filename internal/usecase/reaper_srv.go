package usecase

import (
	"context"
	"fmt"
	"time"

	"astro-events/internal/clock"
	"astro-events/internal/data/entity"
	"astro-events/internal/data/repository"
	"astro-events/internal/dto/response"
	"astro-events/internal/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReaperService interface {
	// Sweep expires every hold older than the TTL and reports counts
	// per event type. Callable concurrently; the bulk update makes
	// overlapping sweeps harmless.
	Sweep(ctx context.Context) (*response.SweepResponse, error)
}

type reaperService struct {
	repo     *repository.Repository
	notifier *notify.Notifier
	clock    clock.Clock
	holdTTL  time.Duration
	log      *zap.Logger
}

func NewReaperService(
	repo *repository.Repository,
	notifier *notify.Notifier,
	clk clock.Clock,
	holdTTL time.Duration,
	log *zap.Logger,
) ReaperService {
	return &reaperService{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		holdTTL:  holdTTL,
		log:      log.With(zap.String("service", "reaper")),
	}
}

func (s *reaperService) Sweep(ctx context.Context) (*response.SweepResponse, error) {
	cutoff := s.clock.Now().Add(-s.holdTTL)

	var expired []repository.ExpiredHold
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		expired, err = s.repo.Registration.ExpireStale(txCtx, cutoff)
		if err != nil {
			return err
		}

		for i := range expired {
			hold := &expired[i]
			err := s.repo.Audit.Create(txCtx, &entity.AuditLog{
				BaseSimple: entity.BaseSimple{
					ID:        uuid.New(),
					CreatedAt: s.clock.Now(),
				},
				SubjectType: "registration",
				SubjectID:   hold.ID,
				Action:      entity.AuditActionExpire,
				Metadata: map[string]any{
					"order_id":    hold.OrderID,
					"event_id":    hold.EventID.String(),
					"guest_count": hold.GuestCount,
					"cutoff":      cutoff,
				},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("Sweep failed", zap.Error(err), zap.Time("cutoff", cutoff))
		return nil, fmt.Errorf("expire stale holds: %w", err)
	}

	counts := make(map[string]int)
	for i := range expired {
		hold := &expired[i]
		counts[string(hold.EventType)]++

		s.notifier.Registration(notify.TopicExpired, &entity.Registration{
			Base:       entity.Base{ID: hold.ID},
			OrderID:    hold.OrderID,
			EventID:    hold.EventID,
			MemberID:   hold.MemberID,
			GuestCount: hold.GuestCount,
			Status:     entity.RegistrationStatusExpired,
		}, 0)
	}

	// Session cleanup rides along on the sweep schedule. Best effort.
	if err := s.repo.Session.CleanExpiredSessions(ctx); err != nil {
		s.log.Warn("Session cleanup failed", zap.Error(err))
	}

	if len(expired) > 0 {
		s.log.Info("Stale holds expired",
			zap.Int("total", len(expired)),
			zap.Any("by_event_type", counts),
			zap.Time("cutoff", cutoff),
		)
	}

	return &response.SweepResponse{
		Expired: counts,
		Total:   len(expired),
	}, nil
}
