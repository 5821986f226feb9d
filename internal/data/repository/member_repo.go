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

type MemberRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Member, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*entity.Member, error)
	ActivateMembership(ctx context.Context, id uuid.UUID, subscriptionID string) error
	UpdateMembershipStatus(ctx context.Context, id uuid.UUID, status entity.MembershipStatus) error
	ExtendPaidThrough(ctx context.Context, id uuid.UUID, paidThrough time.Time) error
}

type memberRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewMemberRepository(db database.PgxIface, log *zap.Logger) MemberRepository {
	return &memberRepository{
		db:  db,
		log: log.With(zap.String("repository", "member")),
	}
}

const memberColumns = `id, name, email, phone, role, membership_status, membership_paid_through, gateway_subscription_id, is_active, created_at, updated_at, deleted_at`

func scanMember(row pgx.Row) (*entity.Member, error) {
	var member entity.Member
	err := row.Scan(
		&member.ID,
		&member.Name,
		&member.Email,
		&member.Phone,
		&member.Role,
		&member.MembershipStatus,
		&member.MembershipPaidThrough,
		&member.GatewaySubscriptionID,
		&member.IsActive,
		&member.CreatedAt,
		&member.UpdatedAt,
		&member.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1 AND deleted_at IS NULL`

	member, err := scanMember(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find member by ID",
			zap.Error(err),
			zap.String("member_id", id.String()),
		)
		return nil, fmt.Errorf("find member by ID %s: %w", id.String(), err)
	}

	return member, nil
}

func (r *memberRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*entity.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE gateway_subscription_id = $1 AND deleted_at IS NULL`

	member, err := scanMember(r.db.QueryRow(ctx, query, subscriptionID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find member by subscription ID",
			zap.Error(err),
			zap.String("subscription_id", subscriptionID),
		)
		return nil, fmt.Errorf("find member by subscription ID %s: %w", subscriptionID, err)
	}

	return member, nil
}

func (r *memberRepository) ActivateMembership(ctx context.Context, id uuid.UUID, subscriptionID string) error {
	query := `
		UPDATE members
		SET membership_status = 'active', gateway_subscription_id = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, subscriptionID)
	if err != nil {
		r.log.Error("Failed to activate membership",
			zap.Error(err),
			zap.String("member_id", id.String()),
			zap.String("subscription_id", subscriptionID),
		)
		return fmt.Errorf("activate membership for member %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("member %s not found", id.String())
	}

	return nil
}

func (r *memberRepository) UpdateMembershipStatus(ctx context.Context, id uuid.UUID, status entity.MembershipStatus) error {
	query := `UPDATE members SET membership_status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		r.log.Error("Failed to update membership status",
			zap.Error(err),
			zap.String("member_id", id.String()),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("update membership status for member %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("member %s not found", id.String())
	}

	return nil
}

func (r *memberRepository) ExtendPaidThrough(ctx context.Context, id uuid.UUID, paidThrough time.Time) error {
	query := `UPDATE members SET membership_paid_through = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, paidThrough)
	if err != nil {
		r.log.Error("Failed to extend membership paid-through",
			zap.Error(err),
			zap.String("member_id", id.String()),
			zap.Time("paid_through", paidThrough),
		)
		return fmt.Errorf("extend paid-through for member %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("member %s not found", id.String())
	}

	return nil
}
