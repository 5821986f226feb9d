package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"astro-events/internal/clock"
	"astro-events/internal/data/entity"
	"astro-events/internal/data/repository"
	"astro-events/internal/gateway"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WebhookService interface {
	// HandleEvent applies a verified gateway webhook exactly once. A
	// redelivered event id is discarded silently; a processing failure
	// leaves the event unrecorded so the gateway redelivers it.
	HandleEvent(ctx context.Context, event *gateway.WebhookEvent) error
}

type webhookService struct {
	repo  *repository.Repository
	clock clock.Clock
	log   *zap.Logger
}

func NewWebhookService(repo *repository.Repository, clk clock.Clock, log *zap.Logger) WebhookService {
	return &webhookService{
		repo:  repo,
		clock: clk,
		log:   log.With(zap.String("service", "webhook")),
	}
}

// webhookResource is the subset of the gateway's resource payload the
// reconciliation logic reads. Fields are populated per event type.
type webhookResource struct {
	SubscriptionID string  `json:"subscription_id"`
	IntentID       string  `json:"intent_id"`
	Reference      string  `json:"reference"`
	Amount         float64 `json:"amount"`
	PaidThrough    string  `json:"paid_through"`
}

func (s *webhookService) HandleEvent(ctx context.Context, event *gateway.WebhookEvent) error {
	var resource webhookResource
	if len(event.Resource) > 0 {
		if err := json.Unmarshal(event.Resource, &resource); err != nil {
			return fmt.Errorf("decode webhook resource for event %s: %w", event.ID, err)
		}
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		// The ledger insert is the idempotency gate: a duplicate event id
		// hits the primary key and short-circuits before any state change.
		err := s.repo.PaymentEvent.Record(txCtx, &entity.PaymentEvent{
			EventID:    event.ID,
			EventType:  entity.PaymentEventType(event.Type),
			ReceivedAt: s.clock.Now(),
		})
		if err != nil {
			return err
		}

		return s.dispatch(txCtx, event, &resource)
	})
	if err != nil {
		if errors.Is(err, entity.ErrDuplicateEvent) {
			s.log.Info("Webhook redelivery discarded",
				zap.String("event_id", event.ID),
				zap.String("event_type", event.Type),
			)
			return nil
		}
		s.log.Error("Webhook processing failed, event left for redelivery",
			zap.Error(err),
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		return err
	}

	s.log.Info("Webhook processed",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
	)
	return nil
}

func (s *webhookService) dispatch(ctx context.Context, event *gateway.WebhookEvent, resource *webhookResource) error {
	switch entity.PaymentEventType(event.Type) {
	case entity.PaymentEventMembershipActivated:
		return s.activateMembership(ctx, resource)
	case entity.PaymentEventMembershipCancelled:
		return s.updateMembership(ctx, resource, entity.MembershipCancelled)
	case entity.PaymentEventMembershipSuspended:
		return s.updateMembership(ctx, resource, entity.MembershipSuspended)
	case entity.PaymentEventPaymentCompleted:
		return s.paymentCompleted(ctx, resource)
	case entity.PaymentEventPaymentFailed:
		return s.paymentFailed(ctx, resource)
	default:
		// Recorded but unhandled: redelivery stays quiet, the log does not.
		s.log.Warn("Unhandled webhook event type",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		return nil
	}
}

func (s *webhookService) activateMembership(ctx context.Context, resource *webhookResource) error {
	if resource.SubscriptionID == "" {
		return fmt.Errorf("membership activation without subscription_id")
	}

	member, err := s.repo.Member.FindBySubscriptionID(ctx, resource.SubscriptionID)
	if err != nil {
		return err
	}
	if member == nil {
		// First activation: the subscription is not linked yet. Without a
		// member to attach it to there is nothing to do but report it.
		return fmt.Errorf("no member linked to subscription %s", resource.SubscriptionID)
	}

	if err := s.repo.Member.ActivateMembership(ctx, member.ID, resource.SubscriptionID); err != nil {
		return err
	}

	return s.extendPaidThrough(ctx, member, resource)
}

func (s *webhookService) updateMembership(ctx context.Context, resource *webhookResource, status entity.MembershipStatus) error {
	member, err := s.memberBySubscription(ctx, resource)
	if err != nil {
		return err
	}

	if err := s.repo.Member.UpdateMembershipStatus(ctx, member.ID, status); err != nil {
		return err
	}

	s.log.Info("Membership status updated",
		zap.String("member_id", member.ID.String()),
		zap.String("status", string(status)),
	)
	return nil
}

// paymentCompleted covers two shapes: a recurring membership charge
// (subscription_id set) extends the paid-through date, and a server-side
// capture notification (intent_id set) confirms the matching hold.
func (s *webhookService) paymentCompleted(ctx context.Context, resource *webhookResource) error {
	if resource.IntentID != "" {
		return s.confirmFromWebhook(ctx, resource)
	}

	member, err := s.memberBySubscription(ctx, resource)
	if err != nil {
		return err
	}
	return s.extendPaidThrough(ctx, member, resource)
}

func (s *webhookService) paymentFailed(ctx context.Context, resource *webhookResource) error {
	if resource.IntentID != "" {
		registration, err := s.repo.Registration.FindByIntentID(ctx, resource.IntentID)
		if err != nil {
			return err
		}
		if registration == nil {
			s.log.Warn("Payment failure for unknown intent",
				zap.String("intent_id", resource.IntentID),
			)
			return nil
		}

		cancelled, err := s.repo.Registration.CancelHold(ctx, registration.ID)
		if err != nil {
			return err
		}
		if cancelled {
			s.log.Info("Hold cancelled after payment failure",
				zap.String("registration_id", registration.ID.String()),
				zap.String("order_id", registration.OrderID),
			)
		}
		return nil
	}

	member, err := s.memberBySubscription(ctx, resource)
	if err != nil {
		return err
	}

	// A failed recurring charge suspends until the provider retries.
	return s.repo.Member.UpdateMembershipStatus(ctx, member.ID, entity.MembershipSuspended)
}

func (s *webhookService) confirmFromWebhook(ctx context.Context, resource *webhookResource) error {
	registration, err := s.repo.Registration.FindByIntentID(ctx, resource.IntentID)
	if err != nil {
		return err
	}
	if registration == nil {
		s.log.Warn("Payment completion for unknown intent",
			zap.String("intent_id", resource.IntentID),
		)
		return nil
	}

	confirmed, err := s.repo.Registration.ConfirmCapture(ctx, registration.ID, resource.Amount, resource.Reference)
	if err != nil {
		return err
	}
	if !confirmed {
		// Already confirmed via the redirect flow, or reaped. Either way
		// the webhook must not flip the state again.
		s.log.Info("Payment completion for registration not on hold",
			zap.String("registration_id", registration.ID.String()),
			zap.String("order_id", registration.OrderID),
			zap.String("status", string(registration.Status)),
		)
		return nil
	}

	return s.repo.Audit.Create(ctx, &entity.AuditLog{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: s.clock.Now(),
		},
		SubjectType: "registration",
		SubjectID:   registration.ID,
		Action:      entity.AuditActionConfirm,
		Metadata: map[string]any{
			"order_id":          registration.OrderID,
			"amount_paid":       resource.Amount,
			"payment_reference": resource.Reference,
			"source":            "webhook",
		},
	})
}

func (s *webhookService) memberBySubscription(ctx context.Context, resource *webhookResource) (*entity.Member, error) {
	if resource.SubscriptionID == "" {
		return nil, fmt.Errorf("webhook resource without subscription_id")
	}

	member, err := s.repo.Member.FindBySubscriptionID(ctx, resource.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("no member linked to subscription %s", resource.SubscriptionID)
	}
	return member, nil
}

func (s *webhookService) extendPaidThrough(ctx context.Context, member *entity.Member, resource *webhookResource) error {
	paidThrough := s.clock.Now().AddDate(0, 1, 0)
	if resource.PaidThrough != "" {
		parsed, err := time.Parse(time.RFC3339, resource.PaidThrough)
		if err != nil {
			return fmt.Errorf("parse paid_through %q: %w", resource.PaidThrough, err)
		}
		paidThrough = parsed
	}

	if err := s.repo.Member.ExtendPaidThrough(ctx, member.ID, paidThrough); err != nil {
		return err
	}

	s.log.Info("Membership paid-through extended",
		zap.String("member_id", member.ID.String()),
		zap.Time("paid_through", paidThrough),
	)
	return nil
}
