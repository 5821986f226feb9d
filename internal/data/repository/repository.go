package repository

import (
	"context"

	"astro-events/pkg/database"

	"go.uber.org/zap"
)

// TxRunner runs a function inside one transaction boundary: all-or-nothing,
// with row locks held until it returns.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Repository struct {
	Event        EventRepository
	Registration RegistrationRepository
	PaymentEvent PaymentEventRepository
	Member       MemberRepository
	Session      SessionRepository
	Audit        AuditRepository

	Tx TxRunner
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Event:        NewEventRepository(db, log),
		Registration: NewRegistrationRepository(db, log),
		PaymentEvent: NewPaymentEventRepository(db, log),
		Member:       NewMemberRepository(db, log),
		Session:      NewSessionRepository(db, log),
		Audit:        NewAuditRepository(db, log),
		Tx:           pgxTxRunner{db: db},
	}
}

// WithTx runs fn in a single database transaction. Every repository call
// made with the context fn receives executes inside that transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.Tx.WithTx(ctx, fn)
}

type pgxTxRunner struct {
	db database.PgxIface
}

func (t pgxTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTx(ctx, t.db, fn)
}
