package usecase

import (
	"context"
	"errors"
	"fmt"

	"astro-events/internal/clock"
	"astro-events/internal/data/entity"
	"astro-events/internal/data/repository"
	"astro-events/internal/dto/request"
	"astro-events/internal/dto/response"
	"astro-events/internal/gateway"
	"astro-events/internal/notify"
	"astro-events/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RegistrationService interface {
	// StartCheckout admits the member against event capacity and obtains
	// a payment intent. The hold is cancelled if the gateway call fails.
	StartCheckout(ctx context.Context, memberID string, req *request.CreateRegistrationRequest) (*response.CheckoutResponse, error)
	// CompleteCheckout captures the payment when the member returns from
	// the provider's approval flow. Safe to call more than once.
	CompleteCheckout(ctx context.Context, memberID string, registrationID string) (*response.RegistrationResponse, error)
	CancelRegistration(ctx context.Context, memberID uuid.UUID, registrationID string) error
	GetMemberRegistrations(ctx context.Context, memberID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.RegistrationResponse], error)

	// Admin operations
	GetRegistrationByID(ctx context.Context, registrationID string) (*response.RegistrationResponse, error)
	Refund(ctx context.Context, actorID uuid.UUID, registrationID string, req *request.RefundRequest) (*response.RefundResponse, error)
	GetAuditTrail(ctx context.Context, subjectID string) ([]response.AuditLogResponse, error)
}

type registrationService struct {
	repo     *repository.Repository
	gateway  gateway.PaymentGateway
	notifier *notify.Notifier
	clock    clock.Clock
	currency string
	log      *zap.Logger
}

func NewRegistrationService(
	repo *repository.Repository,
	gw gateway.PaymentGateway,
	notifier *notify.Notifier,
	clk clock.Clock,
	config *utils.Config,
	log *zap.Logger,
) RegistrationService {
	return &registrationService{
		repo:     repo,
		gateway:  gw,
		notifier: notifier,
		clock:    clk,
		currency: config.Gateway.Currency,
		log:      log.With(zap.String("service", "registration")),
	}
}

func (s *registrationService) StartCheckout(ctx context.Context, memberID string, req *request.CreateRegistrationRequest) (*response.CheckoutResponse, error) {
	// Validate request
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Start checkout validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	memberUUID, err := uuid.Parse(memberID)
	if err != nil {
		return nil, fmt.Errorf("invalid member ID format %s: %w", memberID, err)
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, fmt.Errorf("invalid event ID format %s: %w", req.EventID, err)
	}

	event, err := s.repo.Event.FindByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", req.EventID, err)
	}
	if event == nil {
		return nil, fmt.Errorf("event %s: %w", req.EventID, entity.ErrNotFound)
	}

	if !event.IsActive || s.clock.Now().After(event.StartsAt) {
		return nil, fmt.Errorf("registration for event %s is closed", req.EventID)
	}

	registration, err := s.admit(ctx, event, memberUUID, req.GuestCount)
	if err != nil {
		return nil, err
	}

	// Free events skip the gateway entirely.
	if registration.AmountDue == 0 {
		return s.confirmFree(ctx, registration, event)
	}

	// The gateway call runs outside the admission transaction: the hold
	// is already committed, so a failure here needs a compensating
	// cancellation, not a rollback.
	intent, err := s.gateway.CreateIntent(ctx,
		registration.AmountDue,
		s.currency,
		fmt.Sprintf("%s (%d attending)", event.Name, registration.GuestCount),
		map[string]string{
			"registration_id": registration.ID.String(),
			"order_id":        registration.OrderID,
		},
	)
	if err != nil {
		s.rollbackHold(ctx, registration, err)
		return nil, fmt.Errorf("create payment intent for %s: %w", registration.OrderID, entity.ErrGateway)
	}

	if err := s.repo.Registration.SetIntent(ctx, registration.ID, intent.IntentID); err != nil {
		s.rollbackHold(ctx, registration, err)
		return nil, fmt.Errorf("attach intent to %s: %w", registration.OrderID, err)
	}

	s.log.Info("Checkout started",
		zap.String("registration_id", registration.ID.String()),
		zap.String("order_id", registration.OrderID),
		zap.String("intent_id", intent.IntentID),
		zap.Float64("amount_due", registration.AmountDue),
	)

	return &response.CheckoutResponse{
		Registration: response.RegistrationToResponse(registration, event.Name),
		ApprovalURL:  intent.ApprovalURL,
	}, nil
}

// admit creates the hold. The uniqueness check runs before the event
// lock is taken; the capacity check runs under it.
func (s *registrationService) admit(ctx context.Context, event *entity.Event, memberID uuid.UUID, guestCount int) (*entity.Registration, error) {
	existing, err := s.repo.Registration.FindActiveByEventAndMember(ctx, event.ID, memberID)
	if err != nil {
		return nil, fmt.Errorf("check existing registration: %w", err)
	}
	if existing != nil {
		s.log.Warn("Member already registered",
			zap.String("event_id", event.ID.String()),
			zap.String("member_id", memberID.String()),
			zap.String("existing_order_id", existing.OrderID),
		)
		return nil, entity.ErrAlreadyRegistered
	}

	now := s.clock.Now()
	registration := &entity.Registration{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		OrderID:    utils.GenerateOrderID(),
		EventID:    event.ID,
		MemberID:   memberID,
		GuestCount: guestCount,
		AmountDue:  event.Price * float64(guestCount),
		Status:     entity.RegistrationStatusHold,
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		// The exclusive row lock serializes concurrent admissions for
		// this event; occupancy read anywhere else is meaningless.
		locked, err := s.repo.Event.FindByIDForUpdate(txCtx, event.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return fmt.Errorf("event %s: %w", event.ID.String(), entity.ErrNotFound)
		}

		occupied, err := s.repo.Event.CountOccupied(txCtx, event.ID)
		if err != nil {
			return err
		}

		if !locked.HasRoom(occupied, guestCount) {
			return entity.ErrAtCapacity
		}

		if err := s.repo.Registration.Create(txCtx, registration); err != nil {
			return err
		}

		return s.repo.Audit.Create(txCtx, s.auditEntry(&memberID, registration.ID, entity.AuditActionAdmit, map[string]any{
			"order_id":    registration.OrderID,
			"event_id":    event.ID.String(),
			"guest_count": guestCount,
			"amount_due":  registration.AmountDue,
		}))
	})
	if err != nil {
		if errors.Is(err, entity.ErrAtCapacity) {
			s.log.Warn("Event at capacity",
				zap.String("event_id", event.ID.String()),
				zap.String("member_id", memberID.String()),
				zap.Int("guest_count", guestCount),
			)
			return nil, entity.ErrAtCapacity
		}
		s.log.Error("Admission failed",
			zap.Error(err),
			zap.String("event_id", event.ID.String()),
			zap.String("member_id", memberID.String()),
		)
		return nil, fmt.Errorf("admit registration: %w", err)
	}

	s.log.Info("Hold created",
		zap.String("registration_id", registration.ID.String()),
		zap.String("order_id", registration.OrderID),
		zap.String("event_id", event.ID.String()),
		zap.Int("guest_count", guestCount),
	)

	return registration, nil
}

// rollbackHold is the compensating action for a gateway failure after
// the hold has committed. The slot is released immediately instead of
// waiting for the reaper.
func (s *registrationService) rollbackHold(ctx context.Context, registration *entity.Registration, cause error) {
	s.log.Warn("Rolling back hold after gateway failure",
		zap.Error(cause),
		zap.String("registration_id", registration.ID.String()),
		zap.String("order_id", registration.OrderID),
	)

	cancelled, err := s.repo.Registration.CancelHold(ctx, registration.ID)
	if err != nil {
		// The reaper will eventually expire the hold.
		s.log.Error("Compensating cancellation failed, hold left for reaper",
			zap.Error(err),
			zap.String("registration_id", registration.ID.String()),
		)
		return
	}

	if cancelled {
		registration.Status = entity.RegistrationStatusCancelled
		_ = s.repo.Audit.Create(ctx, s.auditEntry(nil, registration.ID, entity.AuditActionCancel, map[string]any{
			"order_id": registration.OrderID,
			"reason":   "gateway intent creation failed",
		}))
		s.notifier.Registration(notify.TopicCancelled, registration, 0)
	}
}

func (s *registrationService) confirmFree(ctx context.Context, registration *entity.Registration, event *entity.Event) (*response.CheckoutResponse, error) {
	confirmed, err := s.repo.Registration.ConfirmCapture(ctx, registration.ID, 0, "")
	if err != nil {
		return nil, fmt.Errorf("confirm free registration %s: %w", registration.OrderID, err)
	}
	if !confirmed {
		return nil, entity.ErrNotCapturable
	}

	registration.Status = entity.RegistrationStatusConfirmed
	_ = s.repo.Audit.Create(ctx, s.auditEntry(&registration.MemberID, registration.ID, entity.AuditActionConfirm, map[string]any{
		"order_id":    registration.OrderID,
		"amount_paid": 0.0,
	}))
	s.notifier.Registration(notify.TopicConfirmed, registration, 0)

	s.log.Info("Free registration confirmed",
		zap.String("registration_id", registration.ID.String()),
		zap.String("order_id", registration.OrderID),
	)

	return &response.CheckoutResponse{
		Registration: response.RegistrationToResponse(registration, event.Name),
	}, nil
}

func (s *registrationService) CompleteCheckout(ctx context.Context, memberID string, registrationID string) (*response.RegistrationResponse, error) {
	memberUUID, err := uuid.Parse(memberID)
	if err != nil {
		return nil, fmt.Errorf("invalid member ID format %s: %w", memberID, err)
	}

	registrationUUID, err := uuid.Parse(registrationID)
	if err != nil {
		return nil, fmt.Errorf("invalid registration ID format %s: %w", registrationID, err)
	}

	registration, err := s.repo.Registration.FindByID(ctx, registrationUUID)
	if err != nil {
		return nil, fmt.Errorf("load registration %s: %w", registrationID, err)
	}
	if registration == nil {
		return nil, fmt.Errorf("registration %s: %w", registrationID, entity.ErrNotFound)
	}

	if registration.MemberID != memberUUID {
		return nil, fmt.Errorf("unauthorized to complete checkout for this registration")
	}

	// Duplicate callback delivery (double redirect, browser back button):
	// already confirmed means success, no second capture.
	if registration.Status == entity.RegistrationStatusConfirmed {
		s.log.Info("Duplicate capture callback, registration already confirmed",
			zap.String("registration_id", registrationID),
			zap.String("order_id", registration.OrderID),
		)
		resp := response.RegistrationToResponse(registration, s.eventName(ctx, registration.EventID))
		return &resp, nil
	}

	if registration.Status != entity.RegistrationStatusHold || registration.IntentID == nil {
		s.log.Warn("Capture attempted on non-capturable registration",
			zap.String("registration_id", registrationID),
			zap.String("order_id", registration.OrderID),
			zap.String("status", string(registration.Status)),
		)
		return nil, entity.ErrNotCapturable
	}

	result, err := s.gateway.CaptureIntent(ctx, *registration.IntentID)
	if err != nil {
		// Provider unreachable: cancel rather than leave a zombie hold.
		s.rollbackHold(ctx, registration, err)
		return nil, fmt.Errorf("capture payment for %s: %w", registration.OrderID, entity.ErrGateway)
	}

	if result.Status != gateway.CaptureCompleted {
		s.log.Warn("Capture declined",
			zap.String("registration_id", registrationID),
			zap.String("order_id", registration.OrderID),
			zap.String("capture_status", string(result.Status)),
		)
		s.rollbackHold(ctx, registration, fmt.Errorf("capture status %s", result.Status))
		return nil, entity.ErrPaymentDeclined
	}

	confirmed, err := s.repo.Registration.ConfirmCapture(ctx, registrationUUID, result.CapturedAmount, result.Reference)
	if err != nil {
		return nil, fmt.Errorf("confirm registration %s: %w", registration.OrderID, err)
	}
	if !confirmed {
		// The hold was reaped between our status check and the capture:
		// money moved but the slot is gone. Never silently re-confirm;
		// this needs a refund and support follow-up.
		s.log.Error("Payment captured for a registration no longer on hold",
			zap.String("registration_id", registrationID),
			zap.String("order_id", registration.OrderID),
			zap.String("payment_reference", result.Reference),
			zap.Float64("captured_amount", result.CapturedAmount),
		)
		return nil, entity.ErrNotCapturable
	}

	registration.Status = entity.RegistrationStatusConfirmed
	registration.AmountPaid = result.CapturedAmount
	registration.PaymentReference = &result.Reference

	_ = s.repo.Audit.Create(ctx, s.auditEntry(&memberUUID, registration.ID, entity.AuditActionConfirm, map[string]any{
		"order_id":          registration.OrderID,
		"amount_paid":       result.CapturedAmount,
		"payment_reference": result.Reference,
	}))
	s.notifier.Registration(notify.TopicConfirmed, registration, result.CapturedAmount)

	s.log.Info("Registration confirmed",
		zap.String("registration_id", registrationID),
		zap.String("order_id", registration.OrderID),
		zap.Float64("amount_paid", result.CapturedAmount),
	)

	resp := response.RegistrationToResponse(registration, s.eventName(ctx, registration.EventID))
	return &resp, nil
}

func (s *registrationService) CancelRegistration(ctx context.Context, memberID uuid.UUID, registrationID string) error {
	registrationUUID, err := uuid.Parse(registrationID)
	if err != nil {
		return fmt.Errorf("invalid registration ID format %s: %w", registrationID, err)
	}

	registration, err := s.repo.Registration.FindByID(ctx, registrationUUID)
	if err != nil {
		return fmt.Errorf("load registration %s: %w", registrationID, err)
	}
	if registration == nil {
		return fmt.Errorf("registration %s: %w", registrationID, entity.ErrNotFound)
	}

	if registration.MemberID != memberID {
		return fmt.Errorf("unauthorized to cancel this registration")
	}

	cancelled, err := s.repo.Registration.CancelHold(ctx, registrationUUID)
	if err != nil {
		return fmt.Errorf("cancel registration %s: %w", registrationID, err)
	}
	if !cancelled {
		// Confirmed registrations go through the refund flow instead.
		return entity.ErrNotCancellable
	}

	registration.Status = entity.RegistrationStatusCancelled
	_ = s.repo.Audit.Create(ctx, s.auditEntry(&memberID, registration.ID, entity.AuditActionCancel, map[string]any{
		"order_id": registration.OrderID,
		"reason":   "cancelled by member",
	}))
	s.notifier.Registration(notify.TopicCancelled, registration, 0)

	s.log.Info("Registration cancelled",
		zap.String("registration_id", registrationID),
		zap.String("order_id", registration.OrderID),
	)

	return nil
}

func (s *registrationService) GetMemberRegistrations(ctx context.Context, memberID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.RegistrationResponse], error) {
	memberUUID, err := uuid.Parse(memberID)
	if err != nil {
		return nil, fmt.Errorf("invalid member ID format %s: %w", memberID, err)
	}

	registrations, err := s.repo.Registration.FindByMemberID(ctx, memberUUID, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to get member registrations",
			zap.Error(err),
			zap.String("member_id", memberID),
		)
		return nil, fmt.Errorf("get member registrations: %w", err)
	}

	total, err := s.repo.Registration.CountByMemberID(ctx, memberUUID)
	if err != nil {
		s.log.Error("Failed to count member registrations", zap.Error(err))
		return nil, fmt.Errorf("count member registrations: %w", err)
	}

	responses := make([]response.RegistrationResponse, len(registrations))
	for i, registration := range registrations {
		responses[i] = response.RegistrationToResponse(registration, s.eventName(ctx, registration.EventID))
	}

	return response.NewPaginatedResponse(responses, req.Page, req.PerPage, total), nil
}

// ==================== ADMIN METHODS ====================

func (s *registrationService) GetRegistrationByID(ctx context.Context, registrationID string) (*response.RegistrationResponse, error) {
	registrationUUID, err := uuid.Parse(registrationID)
	if err != nil {
		return nil, fmt.Errorf("invalid registration ID format %s: %w", registrationID, err)
	}

	registration, err := s.repo.Registration.FindByID(ctx, registrationUUID)
	if err != nil {
		return nil, fmt.Errorf("load registration %s: %w", registrationID, err)
	}
	if registration == nil {
		return nil, fmt.Errorf("registration %s: %w", registrationID, entity.ErrNotFound)
	}

	resp := response.RegistrationToResponse(registration, s.eventName(ctx, registration.EventID))
	return &resp, nil
}

func (s *registrationService) Refund(ctx context.Context, actorID uuid.UUID, registrationID string, req *request.RefundRequest) (*response.RefundResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Refund validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	registrationUUID, err := uuid.Parse(registrationID)
	if err != nil {
		return nil, fmt.Errorf("invalid registration ID format %s: %w", registrationID, err)
	}

	registration, err := s.repo.Registration.FindByID(ctx, registrationUUID)
	if err != nil {
		return nil, fmt.Errorf("load registration %s: %w", registrationID, err)
	}
	if registration == nil {
		return nil, fmt.Errorf("registration %s: %w", registrationID, entity.ErrNotFound)
	}

	switch registration.Status {
	case entity.RegistrationStatusConfirmed, entity.RegistrationStatusPartiallyRefunded:
	case entity.RegistrationStatusRefunded:
		return nil, entity.ErrAlreadyRefunded
	default:
		return nil, entity.ErrNotRefundable
	}

	if registration.PaymentReference == nil {
		return nil, entity.ErrNotRefundable
	}

	// Bound check happens before any gateway call.
	remaining := registration.AmountPaid - registration.AmountRefunded
	if req.Amount > remaining {
		s.log.Warn("Refund exceeds remaining payment",
			zap.String("registration_id", registrationID),
			zap.Float64("requested", req.Amount),
			zap.Float64("remaining", remaining),
		)
		return nil, entity.ErrRefundExceedsPayment
	}

	result, err := s.gateway.Refund(ctx, *registration.PaymentReference, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("refund payment for %s: %w", registration.OrderID, entity.ErrGateway)
	}

	totalRefunded := registration.AmountRefunded + req.Amount
	status := entity.RegistrationStatusPartiallyRefunded
	if totalRefunded >= registration.AmountPaid {
		status = entity.RegistrationStatusRefunded
	}

	// A refund never releases the slot; capacity accounting is unchanged.
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		updated, err := s.repo.Registration.MarkRefunded(txCtx, registrationUUID, totalRefunded, registration.AmountRefunded, status)
		if err != nil {
			return err
		}
		if !updated {
			// A concurrent refund moved amount_refunded between our read
			// and this write. The provider-side refund already happened;
			// this needs reconciliation, not a silent overwrite.
			s.log.Error("Refund issued at provider but registration changed concurrently",
				zap.String("registration_id", registrationID),
				zap.String("order_id", registration.OrderID),
				zap.String("refund_id", result.RefundID),
				zap.Float64("amount", req.Amount),
			)
			return entity.ErrNotRefundable
		}
		return s.repo.Audit.Create(txCtx, s.auditEntry(&actorID, registration.ID, entity.AuditActionRefund, map[string]any{
			"order_id":  registration.OrderID,
			"refund_id": result.RefundID,
			"amount":    req.Amount,
			"reason":    req.Reason,
		}))
	})
	if err != nil {
		if errors.Is(err, entity.ErrNotRefundable) {
			return nil, entity.ErrNotRefundable
		}
		s.log.Error("Failed to record refund",
			zap.Error(err),
			zap.String("registration_id", registrationID),
			zap.String("refund_id", result.RefundID),
		)
		return nil, fmt.Errorf("record refund for %s: %w", registration.OrderID, err)
	}

	registration.Status = status
	registration.AmountRefunded = totalRefunded
	s.notifier.Registration(notify.TopicRefunded, registration, req.Amount)

	s.log.Info("Refund processed",
		zap.String("registration_id", registrationID),
		zap.String("order_id", registration.OrderID),
		zap.String("refund_id", result.RefundID),
		zap.Float64("amount", req.Amount),
		zap.String("status", string(status)),
	)

	resp := response.RegistrationToResponse(registration, s.eventName(ctx, registration.EventID))
	return &response.RefundResponse{
		Registration: resp,
		RefundID:     result.RefundID,
		Amount:       req.Amount,
	}, nil
}

func (s *registrationService) GetAuditTrail(ctx context.Context, subjectID string) ([]response.AuditLogResponse, error) {
	subjectUUID, err := uuid.Parse(subjectID)
	if err != nil {
		return nil, fmt.Errorf("invalid subject ID format %s: %w", subjectID, err)
	}

	logs, err := s.repo.Audit.FindBySubject(ctx, subjectUUID, 100)
	if err != nil {
		return nil, fmt.Errorf("get audit trail for %s: %w", subjectID, err)
	}

	responses := make([]response.AuditLogResponse, len(logs))
	for i, log := range logs {
		responses[i] = response.AuditLogToResponse(log)
	}
	return responses, nil
}

// ==================== HELPER METHODS ====================

func (s *registrationService) eventName(ctx context.Context, eventID uuid.UUID) string {
	event, _ := s.repo.Event.FindByID(ctx, eventID)
	if event == nil {
		return ""
	}
	return event.Name
}

func (s *registrationService) auditEntry(actorID *uuid.UUID, subjectID uuid.UUID, action entity.AuditAction, metadata map[string]any) *entity.AuditLog {
	return &entity.AuditLog{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: s.clock.Now(),
		},
		ActorID:     actorID,
		SubjectType: "registration",
		SubjectID:   subjectID,
		Action:      action,
		Metadata:    metadata,
	}
}
