package repository

import (
	"context"
	"fmt"
	"time"

	"astro-events/internal/data/entity"
	"astro-events/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type RegistrationRepository interface {
	Create(ctx context.Context, registration *entity.Registration) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Registration, error)
	FindByIntentID(ctx context.Context, intentID string) (*entity.Registration, error)
	FindActiveByEventAndMember(ctx context.Context, eventID, memberID uuid.UUID) (*entity.Registration, error)
	FindByMemberID(ctx context.Context, memberID uuid.UUID, limit, offset int) ([]*entity.Registration, error)
	CountByMemberID(ctx context.Context, memberID uuid.UUID) (int64, error)

	SetIntent(ctx context.Context, id uuid.UUID, intentID string) error
	// ConfirmCapture marks a hold confirmed and records the payment,
	// conditional on the row still being in hold state. Returns false
	// when the registration was no longer a hold.
	ConfirmCapture(ctx context.Context, id uuid.UUID, amountPaid float64, reference string) (bool, error)
	// CancelHold cancels a registration only while it is still a hold.
	// Returns false when the row was already in another state.
	CancelHold(ctx context.Context, id uuid.UUID) (bool, error)
	// MarkRefunded records a refund, conditional on the refunded amount
	// still being what the caller validated against. Returns false when
	// a concurrent refund moved it first.
	MarkRefunded(ctx context.Context, id uuid.UUID, amountRefunded, expectedPrior float64, status entity.RegistrationStatus) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.RegistrationStatus) error

	// ExpireStale bulk-expires holds created before cutoff and returns
	// the registrations that were expired.
	ExpireStale(ctx context.Context, cutoff time.Time) ([]ExpiredHold, error)
}

// ExpiredHold identifies a hold released by the reaper.
type ExpiredHold struct {
	ID         uuid.UUID
	OrderID    string
	EventID    uuid.UUID
	MemberID   uuid.UUID
	GuestCount int
	EventType  entity.EventType
}

type registrationRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewRegistrationRepository(db database.PgxIface, log *zap.Logger) RegistrationRepository {
	return &registrationRepository{
		db:  db,
		log: log.With(zap.String("repository", "registration")),
	}
}

const registrationColumns = `id, order_id, event_id, member_id, guest_count, amount_due, amount_paid, amount_refunded, intent_id, payment_reference, status, created_at, updated_at, deleted_at`

func scanRegistration(row pgx.Row) (*entity.Registration, error) {
	var reg entity.Registration
	err := row.Scan(
		&reg.ID,
		&reg.OrderID,
		&reg.EventID,
		&reg.MemberID,
		&reg.GuestCount,
		&reg.AmountDue,
		&reg.AmountPaid,
		&reg.AmountRefunded,
		&reg.IntentID,
		&reg.PaymentReference,
		&reg.Status,
		&reg.CreatedAt,
		&reg.UpdatedAt,
		&reg.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *registrationRepository) Create(ctx context.Context, registration *entity.Registration) error {
	query := `
		INSERT INTO registrations (id, order_id, event_id, member_id, guest_count, amount_due,
		                           amount_paid, amount_refunded, intent_id, payment_reference,
		                           status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Exec(ctx, query,
		registration.ID,
		registration.OrderID,
		registration.EventID,
		registration.MemberID,
		registration.GuestCount,
		registration.AmountDue,
		registration.AmountPaid,
		registration.AmountRefunded,
		registration.IntentID,
		registration.PaymentReference,
		registration.Status,
		registration.CreatedAt,
		registration.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create registration",
			zap.Error(err),
			zap.String("order_id", registration.OrderID),
			zap.String("member_id", registration.MemberID.String()),
		)
		return fmt.Errorf("create registration %s: %w", registration.OrderID, err)
	}

	return nil
}

func (r *registrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`

	reg, err := scanRegistration(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find registration by ID",
			zap.Error(err),
			zap.String("registration_id", id.String()),
		)
		return nil, fmt.Errorf("find registration by ID %s: %w", id.String(), err)
	}

	return reg, nil
}

func (r *registrationRepository) FindByIntentID(ctx context.Context, intentID string) (*entity.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE intent_id = $1`

	reg, err := scanRegistration(r.db.QueryRow(ctx, query, intentID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find registration by intent ID",
			zap.Error(err),
			zap.String("intent_id", intentID),
		)
		return nil, fmt.Errorf("find registration by intent ID %s: %w", intentID, err)
	}

	return reg, nil
}

func (r *registrationRepository) FindActiveByEventAndMember(ctx context.Context, eventID, memberID uuid.UUID) (*entity.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND member_id = $2
		  AND status NOT IN ('cancelled', 'expired')
		LIMIT 1
	`

	reg, err := scanRegistration(r.db.QueryRow(ctx, query, eventID, memberID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find registration by event and member",
			zap.Error(err),
			zap.String("event_id", eventID.String()),
			zap.String("member_id", memberID.String()),
		)
		return nil, fmt.Errorf("find registration for event %s member %s: %w",
			eventID.String(), memberID.String(), err)
	}

	return reg, nil
}

func (r *registrationRepository) FindByMemberID(ctx context.Context, memberID uuid.UUID, limit, offset int) ([]*entity.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE member_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, memberID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find registrations by member ID",
			zap.Error(err),
			zap.String("member_id", memberID.String()),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find registrations by member ID %s: %w", memberID.String(), err)
	}
	defer rows.Close()

	var registrations []*entity.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			r.log.Error("Failed to scan registration row", zap.Error(err))
			return nil, fmt.Errorf("scan registration row: %w", err)
		}
		registrations = append(registrations, reg)
	}

	return registrations, nil
}

func (r *registrationRepository) CountByMemberID(ctx context.Context, memberID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM registrations WHERE member_id = $1`

	var count int64
	err := r.db.QueryRow(ctx, query, memberID).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count registrations by member ID",
			zap.Error(err),
			zap.String("member_id", memberID.String()),
		)
		return 0, fmt.Errorf("count registrations by member ID %s: %w", memberID.String(), err)
	}

	return count, nil
}

func (r *registrationRepository) SetIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	query := `UPDATE registrations SET intent_id = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, intentID)
	if err != nil {
		r.log.Error("Failed to set registration intent",
			zap.Error(err),
			zap.String("registration_id", id.String()),
		)
		return fmt.Errorf("set intent on registration %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("registration %s not found", id.String())
	}

	return nil
}

func (r *registrationRepository) ConfirmCapture(ctx context.Context, id uuid.UUID, amountPaid float64, reference string) (bool, error) {
	// Conditional on status so a hold reaped in the same instant cannot
	// be silently re-confirmed. An empty reference stays NULL so free
	// registrations remain distinguishable from gateway-paid ones.
	query := `
		UPDATE registrations
		SET status = 'confirmed', amount_paid = $2, payment_reference = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1 AND status = 'hold'
	`

	result, err := r.db.Exec(ctx, query, id, amountPaid, reference)
	if err != nil {
		r.log.Error("Failed to confirm registration",
			zap.Error(err),
			zap.String("registration_id", id.String()),
		)
		return false, fmt.Errorf("confirm registration %s: %w", id.String(), err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *registrationRepository) CancelHold(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE registrations
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'hold'
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to cancel hold",
			zap.Error(err),
			zap.String("registration_id", id.String()),
		)
		return false, fmt.Errorf("cancel hold %s: %w", id.String(), err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *registrationRepository) MarkRefunded(ctx context.Context, id uuid.UUID, amountRefunded, expectedPrior float64, status entity.RegistrationStatus) (bool, error) {
	// Conditional on the prior refunded amount: two refunds racing past
	// the bound check cannot both land and together exceed the payment.
	query := `
		UPDATE registrations
		SET status = $2, amount_refunded = $3, updated_at = NOW()
		WHERE id = $1 AND amount_refunded = $4
		  AND status IN ('confirmed', 'partially_refunded')
	`

	result, err := r.db.Exec(ctx, query, id, status, amountRefunded, expectedPrior)
	if err != nil {
		r.log.Error("Failed to mark registration refunded",
			zap.Error(err),
			zap.String("registration_id", id.String()),
			zap.Float64("amount_refunded", amountRefunded),
		)
		return false, fmt.Errorf("mark registration %s refunded: %w", id.String(), err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *registrationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.RegistrationStatus) error {
	query := `UPDATE registrations SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		r.log.Error("Failed to update registration status",
			zap.Error(err),
			zap.String("registration_id", id.String()),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("update registration %s status to %s: %w", id.String(), string(status), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("registration %s not found", id.String())
	}

	return nil
}

func (r *registrationRepository) ExpireStale(ctx context.Context, cutoff time.Time) ([]ExpiredHold, error) {
	query := `
		UPDATE registrations r
		SET status = 'expired', updated_at = NOW()
		FROM events e
		WHERE r.event_id = e.id
		  AND r.status = 'hold'
		  AND r.created_at < $1
		RETURNING r.id, r.order_id, r.event_id, r.member_id, r.guest_count, e.event_type
	`

	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		r.log.Error("Failed to expire stale holds",
			zap.Error(err),
			zap.Time("cutoff", cutoff),
		)
		return nil, fmt.Errorf("expire stale holds before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var expired []ExpiredHold
	for rows.Next() {
		var hold ExpiredHold
		err := rows.Scan(
			&hold.ID,
			&hold.OrderID,
			&hold.EventID,
			&hold.MemberID,
			&hold.GuestCount,
			&hold.EventType,
		)
		if err != nil {
			r.log.Error("Failed to scan expired hold row", zap.Error(err))
			return nil, fmt.Errorf("scan expired hold row: %w", err)
		}
		expired = append(expired, hold)
	}

	return expired, nil
}
