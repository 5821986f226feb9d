package usecase

import (
	"context"
	"testing"
	"time"

	"astro-events/internal/clock"
	"astro-events/internal/data/entity"
	"astro-events/internal/data/repository"
	"astro-events/internal/dto/request"
	"astro-events/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newReaperSvc(repo *repository.Repository, bus *fakeBus, ttl time.Duration) ReaperService {
	return NewReaperService(repo, newTestNotifier(bus), clock.NewFixed(testNow), ttl, zap.NewNop())
}

func TestReaperService_Sweep(t *testing.T) {
	t.Parallel()

	ttl := 30 * time.Minute

	t.Run("expires only holds older than TTL", func(t *testing.T) {
		event := testEvent(intPtr(10), 25)
		stale := testRegistration(event.ID, uuid.New(), entity.RegistrationStatusHold, 2)
		stale.CreatedAt = testNow.Add(-40 * time.Minute)
		fresh := testRegistration(event.ID, uuid.New(), entity.RegistrationStatusHold, 1)
		fresh.CreatedAt = testNow.Add(-10 * time.Minute)
		confirmed := testRegistration(event.ID, uuid.New(), entity.RegistrationStatusConfirmed, 1)
		confirmed.CreatedAt = testNow.Add(-2 * time.Hour)

		repo, state := newTestRepo([]*entity.Event{event}, []*entity.Registration{stale, fresh, confirmed})
		bus := &fakeBus{}
		svc := newReaperSvc(repo, bus, ttl)

		result, err := svc.Sweep(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Total != 1 {
			t.Fatalf("expected 1 expired, got %d", result.Total)
		}
		if result.Expired[string(entity.EventTypeStarParty)] != 1 {
			t.Fatalf("expected star_party count 1, got %v", result.Expired)
		}
		if state.registration(stale.ID).Status != entity.RegistrationStatusExpired {
			t.Fatalf("expected stale hold expired")
		}
		if state.registration(fresh.ID).Status != entity.RegistrationStatusHold {
			t.Fatalf("fresh hold must survive the sweep")
		}
		if state.registration(confirmed.ID).Status != entity.RegistrationStatusConfirmed {
			t.Fatalf("confirmed registration must survive the sweep")
		}

		actions := state.auditActions()
		if len(actions) != 1 || actions[0] != entity.AuditActionExpire {
			t.Fatalf("expected one expire audit entry, got %v", actions)
		}
		if len(bus.topics) != 1 || bus.topics[0] != "registrations.expired" {
			t.Fatalf("expected expired notification, got %v", bus.topics)
		}
	})

	t.Run("no stale holds is a clean no-op", func(t *testing.T) {
		event := testEvent(intPtr(10), 25)
		fresh := testRegistration(event.ID, uuid.New(), entity.RegistrationStatusHold, 1)
		fresh.CreatedAt = testNow.Add(-5 * time.Minute)
		repo, _ := newTestRepo([]*entity.Event{event}, []*entity.Registration{fresh})
		svc := newReaperSvc(repo, &fakeBus{}, ttl)

		result, err := svc.Sweep(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Total != 0 {
			t.Fatalf("expected 0 expired, got %d", result.Total)
		}
	})

	t.Run("sweep frees capacity for new admissions", func(t *testing.T) {
		event := testEvent(intPtr(2), 25)
		stale := testRegistration(event.ID, uuid.New(), entity.RegistrationStatusHold, 2)
		stale.CreatedAt = testNow.Add(-time.Hour)
		repo, _ := newTestRepo([]*entity.Event{event}, []*entity.Registration{stale})

		config := &utils.Config{}
		config.Gateway.Currency = "USD"
		registrationSvc := NewRegistrationService(repo, &fakeGateway{}, newTestNotifier(&fakeBus{}), clock.NewFixed(testNow), config, zap.NewNop())

		// Full before the sweep.
		_, err := registrationSvc.StartCheckout(context.Background(), uuid.New().String(), &request.CreateRegistrationRequest{
			EventID:    event.ID.String(),
			GuestCount: 1,
		})
		if err == nil {
			t.Fatalf("expected at-capacity before sweep")
		}

		if _, err := newReaperSvc(repo, &fakeBus{}, 30*time.Minute).Sweep(context.Background()); err != nil {
			t.Fatalf("sweep failed: %v", err)
		}

		_, err = registrationSvc.StartCheckout(context.Background(), uuid.New().String(), &request.CreateRegistrationRequest{
			EventID:    event.ID.String(),
			GuestCount: 2,
		})
		if err != nil {
			t.Fatalf("expected admission after sweep, got %v", err)
		}
	})
}
