package repository

import (
	"context"
	"fmt"

	"astro-events/internal/data/entity"
	"astro-events/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type EventRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Event, error)
	// FindByIDForUpdate reads the event row under an exclusive row lock.
	// Must be called inside a transaction; the lock serializes all
	// concurrent admissions for the event until commit.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Event, error)
	// CountOccupied returns the number of slots consumed by registrations
	// that count against capacity. Only meaningful under the row lock.
	CountOccupied(ctx context.Context, eventID uuid.UUID) (int, error)
	FindActive(ctx context.Context, limit, offset int) ([]*entity.Event, error)
	CountActive(ctx context.Context) (int64, error)
}

type eventRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewEventRepository(db database.PgxIface, log *zap.Logger) EventRepository {
	return &eventRepository{
		db:  db,
		log: log.With(zap.String("repository", "event")),
	}
}

const eventColumns = `id, name, event_type, location, starts_at, ends_at, price, capacity, is_active, created_at, updated_at, deleted_at`

func scanEvent(row pgx.Row) (*entity.Event, error) {
	var event entity.Event
	err := row.Scan(
		&event.ID,
		&event.Name,
		&event.EventType,
		&event.Location,
		&event.StartsAt,
		&event.EndsAt,
		&event.Price,
		&event.Capacity,
		&event.IsActive,
		&event.CreatedAt,
		&event.UpdatedAt,
		&event.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 AND deleted_at IS NULL`

	event, err := scanEvent(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find event by ID",
			zap.Error(err),
			zap.String("event_id", id.String()),
		)
		return nil, fmt.Errorf("find event by ID %s: %w", id.String(), err)
	}

	return event, nil
}

func (r *eventRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`

	event, err := scanEvent(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to lock event row",
			zap.Error(err),
			zap.String("event_id", id.String()),
		)
		return nil, fmt.Errorf("lock event %s: %w", id.String(), err)
	}

	return event, nil
}

func (r *eventRepository) CountOccupied(ctx context.Context, eventID uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(SUM(guest_count), 0)
		FROM registrations
		WHERE event_id = $1
		  AND status IN ('hold', 'confirmed', 'refunded', 'partially_refunded')
	`

	var occupied int
	err := r.db.QueryRow(ctx, query, eventID).Scan(&occupied)
	if err != nil {
		r.log.Error("Failed to count occupied slots",
			zap.Error(err),
			zap.String("event_id", eventID.String()),
		)
		return 0, fmt.Errorf("count occupied slots for event %s: %w", eventID.String(), err)
	}

	return occupied, nil
}

func (r *eventRepository) FindActive(ctx context.Context, limit, offset int) ([]*entity.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE is_active = true AND deleted_at IS NULL
		ORDER BY starts_at
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.Error("Failed to find active events",
			zap.Error(err),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find active events: %w", err)
	}
	defer rows.Close()

	var events []*entity.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			r.log.Error("Failed to scan event row", zap.Error(err))
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, event)
	}

	return events, nil
}

func (r *eventRepository) CountActive(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM events WHERE is_active = true AND deleted_at IS NULL`

	var count int64
	err := r.db.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count active events", zap.Error(err))
		return 0, fmt.Errorf("count active events: %w", err)
	}

	return count, nil
}
