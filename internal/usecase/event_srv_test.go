package usecase

import (
	"context"
	"testing"

	"astro-events/internal/data/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestEventService_GetEvent(t *testing.T) {
	t.Parallel()

	t.Run("remaining reflects occupied slots", func(t *testing.T) {
		event := testEvent(intPtr(10), 25)
		hold := testRegistration(event.ID, uuid.New(), entity.RegistrationStatusHold, 3)
		cancelled := testRegistration(event.ID, uuid.New(), entity.RegistrationStatusCancelled, 4)
		repo, _ := newTestRepo([]*entity.Event{event}, []*entity.Registration{hold, cancelled})
		svc := NewEventService(repo, zap.NewNop())

		resp, err := svc.GetEvent(context.Background(), event.ID.String())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Remaining == nil || *resp.Remaining != 7 {
			t.Fatalf("expected remaining 7, got %v", resp.Remaining)
		}
	})

	t.Run("unlimited event has no remaining", func(t *testing.T) {
		event := testEvent(nil, 25)
		repo, _ := newTestRepo([]*entity.Event{event}, nil)
		svc := NewEventService(repo, zap.NewNop())

		resp, err := svc.GetEvent(context.Background(), event.ID.String())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Remaining != nil {
			t.Fatalf("expected nil remaining, got %v", *resp.Remaining)
		}
	})

	t.Run("unknown event is not found", func(t *testing.T) {
		repo, _ := newTestRepo(nil, nil)
		svc := NewEventService(repo, zap.NewNop())

		if _, err := svc.GetEvent(context.Background(), uuid.New().String()); err == nil {
			t.Fatalf("expected not found error")
		}
	})
}
