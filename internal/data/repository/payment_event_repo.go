package repository

import (
	"context"
	"fmt"

	"astro-events/internal/data/entity"
	"astro-events/pkg/database"

	"go.uber.org/zap"
)

type PaymentEventRepository interface {
	// Record inserts the event id into the idempotency ledger. Returns
	// entity.ErrDuplicateEvent when the id was already recorded; the
	// unique constraint is the concurrency primitive, there is no
	// separate check-then-insert.
	Record(ctx context.Context, event *entity.PaymentEvent) error
}

type paymentEventRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentEventRepository(db database.PgxIface, log *zap.Logger) PaymentEventRepository {
	return &paymentEventRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment_event")),
	}
}

func (r *paymentEventRepository) Record(ctx context.Context, event *entity.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (event_id, event_type, received_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.Exec(ctx, query, event.EventID, event.EventType, event.ReceivedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return entity.ErrDuplicateEvent
		}
		r.log.Error("Failed to record payment event",
			zap.Error(err),
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.EventType)),
		)
		return fmt.Errorf("record payment event %s: %w", event.EventID, err)
	}

	return nil
}
