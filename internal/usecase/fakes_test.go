package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"astro-events/internal/data/entity"
	"astro-events/internal/data/repository"
	"astro-events/internal/gateway"
	"astro-events/internal/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// newTestRepo assembles a Repository backed by in-memory fakes. The
// fake transaction runner gives the fakes real boundaries: row locks
// taken by FindByIDForUpdate are held until the callback returns, and
// every mutation made inside a failed callback is rolled back.
func newTestRepo(events []*entity.Event, registrations []*entity.Registration) (*repository.Repository, *fakeState) {
	state := &fakeState{
		events:        make(map[uuid.UUID]*entity.Event),
		registrations: make(map[uuid.UUID]*entity.Registration),
		members:       make(map[uuid.UUID]*entity.Member),
		recorded:      make(map[string]bool),
		rowLocks:      make(map[uuid.UUID]*sync.Mutex),
	}
	for _, event := range events {
		state.events[event.ID] = event
	}
	for _, registration := range registrations {
		state.registrations[registration.ID] = registration
	}

	return &repository.Repository{
		Event:        &fakeEventRepo{state: state},
		Registration: &fakeRegistrationRepo{state: state},
		PaymentEvent: &fakePaymentEventRepo{state: state},
		Member:       &fakeMemberRepo{state: state},
		Session:      &fakeSessionRepo{},
		Audit:        &fakeAuditRepo{state: state},
		Tx:           state,
	}, state
}

type fakeState struct {
	mu            sync.Mutex
	events        map[uuid.UUID]*entity.Event
	registrations map[uuid.UUID]*entity.Registration
	members       map[uuid.UUID]*entity.Member
	recorded      map[string]bool
	audits        []*entity.AuditLog
	rowLocks      map[uuid.UUID]*sync.Mutex
}

type fakeTxKey struct{}

// fakeTx tracks what one transaction touched: row locks to release and
// undo entries to apply on rollback.
type fakeTx struct {
	locks []*sync.Mutex
	held  map[*sync.Mutex]bool
	undo  []func()
}

func txFrom(ctx context.Context) *fakeTx {
	tx, _ := ctx.Value(fakeTxKey{}).(*fakeTx)
	return tx
}

// WithTx implements repository.TxRunner with database-like semantics.
func (s *fakeState) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx := &fakeTx{held: make(map[*sync.Mutex]bool)}
	err := fn(context.WithValue(ctx, fakeTxKey{}, tx))

	s.mu.Lock()
	if err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
	}
	s.mu.Unlock()

	for _, lock := range tx.locks {
		lock.Unlock()
	}
	return err
}

// journal registers an undo for a mutation made inside a transaction.
// Mutations outside any transaction are committed immediately.
func (s *fakeState) journal(ctx context.Context, undo func()) {
	if tx := txFrom(ctx); tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

// lockRow takes the per-event row lock for the duration of the
// transaction, mirroring SELECT ... FOR UPDATE.
func (s *fakeState) lockRow(ctx context.Context, id uuid.UUID) {
	tx := txFrom(ctx)
	if tx == nil {
		return
	}

	s.mu.Lock()
	lock, ok := s.rowLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.rowLocks[id] = lock
	}
	s.mu.Unlock()

	if tx.held[lock] {
		return
	}
	lock.Lock()
	tx.held[lock] = true
	tx.locks = append(tx.locks, lock)
}

func (s *fakeState) registration(id uuid.UUID) *entity.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registrations[id]
}

func (s *fakeState) auditActions() []entity.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]entity.AuditAction, len(s.audits))
	for i, a := range s.audits {
		actions[i] = a.Action
	}
	return actions
}

type fakeEventRepo struct {
	state *fakeState
}

func (r *fakeEventRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Event, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	return r.state.events[id], nil
}

func (r *fakeEventRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Event, error) {
	r.state.lockRow(ctx, id)
	return r.FindByID(ctx, id)
}

func (r *fakeEventRepo) CountOccupied(ctx context.Context, eventID uuid.UUID) (int, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	occupied := 0
	for _, registration := range r.state.registrations {
		if registration.EventID == eventID && registration.Status.ConsumesSlot() {
			occupied += registration.GuestCount
		}
	}
	return occupied, nil
}

func (r *fakeEventRepo) FindActive(ctx context.Context, limit, offset int) ([]*entity.Event, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	var events []*entity.Event
	for _, event := range r.state.events {
		if event.IsActive {
			events = append(events, event)
		}
	}
	return events, nil
}

func (r *fakeEventRepo) CountActive(ctx context.Context) (int64, error) {
	events, _ := r.FindActive(ctx, 0, 0)
	return int64(len(events)), nil
}

type fakeRegistrationRepo struct {
	state *fakeState
}

func (r *fakeRegistrationRepo) Create(ctx context.Context, registration *entity.Registration) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.registrations[registration.ID] = registration
	r.state.journal(ctx, func() { delete(r.state.registrations, registration.ID) })
	return nil
}

func (r *fakeRegistrationRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Registration, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	if registration, ok := r.state.registrations[id]; ok {
		copied := *registration
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeRegistrationRepo) FindByIntentID(ctx context.Context, intentID string) (*entity.Registration, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	for _, registration := range r.state.registrations {
		if registration.IntentID != nil && *registration.IntentID == intentID {
			copied := *registration
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRegistrationRepo) FindActiveByEventAndMember(ctx context.Context, eventID, memberID uuid.UUID) (*entity.Registration, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	for _, registration := range r.state.registrations {
		if registration.EventID == eventID && registration.MemberID == memberID && registration.Status.Active() {
			copied := *registration
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRegistrationRepo) FindByMemberID(ctx context.Context, memberID uuid.UUID, limit, offset int) ([]*entity.Registration, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	var result []*entity.Registration
	for _, registration := range r.state.registrations {
		if registration.MemberID == memberID {
			copied := *registration
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeRegistrationRepo) CountByMemberID(ctx context.Context, memberID uuid.UUID) (int64, error) {
	registrations, _ := r.FindByMemberID(ctx, memberID, 0, 0)
	return int64(len(registrations)), nil
}

func (r *fakeRegistrationRepo) SetIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	registration, ok := r.state.registrations[id]
	if !ok {
		return fmt.Errorf("registration %s not found", id)
	}
	prev := registration.IntentID
	registration.IntentID = &intentID
	r.state.journal(ctx, func() { registration.IntentID = prev })
	return nil
}

func (r *fakeRegistrationRepo) ConfirmCapture(ctx context.Context, id uuid.UUID, amountPaid float64, reference string) (bool, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	registration, ok := r.state.registrations[id]
	if !ok || registration.Status != entity.RegistrationStatusHold {
		return false, nil
	}
	prev := *registration
	registration.Status = entity.RegistrationStatusConfirmed
	registration.AmountPaid = amountPaid
	if reference != "" {
		registration.PaymentReference = &reference
	}
	r.state.journal(ctx, func() { *registration = prev })
	return true, nil
}

func (r *fakeRegistrationRepo) CancelHold(ctx context.Context, id uuid.UUID) (bool, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	registration, ok := r.state.registrations[id]
	if !ok || registration.Status != entity.RegistrationStatusHold {
		return false, nil
	}
	registration.Status = entity.RegistrationStatusCancelled
	r.state.journal(ctx, func() { registration.Status = entity.RegistrationStatusHold })
	return true, nil
}

func (r *fakeRegistrationRepo) MarkRefunded(ctx context.Context, id uuid.UUID, amountRefunded, expectedPrior float64, status entity.RegistrationStatus) (bool, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	registration, ok := r.state.registrations[id]
	if !ok || registration.AmountRefunded != expectedPrior {
		return false, nil
	}
	switch registration.Status {
	case entity.RegistrationStatusConfirmed, entity.RegistrationStatusPartiallyRefunded:
	default:
		return false, nil
	}
	prev := *registration
	registration.AmountRefunded = amountRefunded
	registration.Status = status
	r.state.journal(ctx, func() { *registration = prev })
	return true, nil
}

func (r *fakeRegistrationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.RegistrationStatus) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	registration, ok := r.state.registrations[id]
	if !ok {
		return fmt.Errorf("registration %s not found", id)
	}
	prev := registration.Status
	registration.Status = status
	r.state.journal(ctx, func() { registration.Status = prev })
	return nil
}

func (r *fakeRegistrationRepo) ExpireStale(ctx context.Context, cutoff time.Time) ([]repository.ExpiredHold, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	var expired []repository.ExpiredHold
	for _, registration := range r.state.registrations {
		if registration.Status != entity.RegistrationStatusHold || !registration.CreatedAt.Before(cutoff) {
			continue
		}
		reg := registration
		reg.Status = entity.RegistrationStatusExpired
		r.state.journal(ctx, func() { reg.Status = entity.RegistrationStatusHold })

		eventType := entity.EventTypeEvent
		if event, ok := r.state.events[registration.EventID]; ok {
			eventType = event.EventType
		}
		expired = append(expired, repository.ExpiredHold{
			ID:         registration.ID,
			OrderID:    registration.OrderID,
			EventID:    registration.EventID,
			MemberID:   registration.MemberID,
			GuestCount: registration.GuestCount,
			EventType:  eventType,
		})
	}
	return expired, nil
}

type fakePaymentEventRepo struct {
	state *fakeState
}

func (r *fakePaymentEventRepo) Record(ctx context.Context, event *entity.PaymentEvent) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	if r.state.recorded[event.EventID] {
		return entity.ErrDuplicateEvent
	}
	r.state.recorded[event.EventID] = true
	r.state.journal(ctx, func() { delete(r.state.recorded, event.EventID) })
	return nil
}

type fakeMemberRepo struct {
	state *fakeState
}

func (r *fakeMemberRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Member, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	return r.state.members[id], nil
}

func (r *fakeMemberRepo) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*entity.Member, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	for _, member := range r.state.members {
		if member.GatewaySubscriptionID != nil && *member.GatewaySubscriptionID == subscriptionID {
			return member, nil
		}
	}
	return nil, nil
}

func (r *fakeMemberRepo) ActivateMembership(ctx context.Context, id uuid.UUID, subscriptionID string) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	member, ok := r.state.members[id]
	if !ok {
		return fmt.Errorf("member %s not found", id)
	}
	prev := *member
	member.MembershipStatus = entity.MembershipActive
	member.GatewaySubscriptionID = &subscriptionID
	r.state.journal(ctx, func() { *member = prev })
	return nil
}

func (r *fakeMemberRepo) UpdateMembershipStatus(ctx context.Context, id uuid.UUID, status entity.MembershipStatus) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	member, ok := r.state.members[id]
	if !ok {
		return fmt.Errorf("member %s not found", id)
	}
	prev := member.MembershipStatus
	member.MembershipStatus = status
	r.state.journal(ctx, func() { member.MembershipStatus = prev })
	return nil
}

func (r *fakeMemberRepo) ExtendPaidThrough(ctx context.Context, id uuid.UUID, paidThrough time.Time) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	member, ok := r.state.members[id]
	if !ok {
		return fmt.Errorf("member %s not found", id)
	}
	prev := member.MembershipPaidThrough
	member.MembershipPaidThrough = &paidThrough
	r.state.journal(ctx, func() { member.MembershipPaidThrough = prev })
	return nil
}

type fakeSessionRepo struct{}

func (r *fakeSessionRepo) FindValidSession(ctx context.Context, token string) (*entity.Session, error) {
	return nil, nil
}

func (r *fakeSessionRepo) CleanExpiredSessions(ctx context.Context) error {
	return nil
}

type fakeAuditRepo struct {
	state *fakeState
}

func (r *fakeAuditRepo) Create(ctx context.Context, log *entity.AuditLog) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.audits = append(r.state.audits, log)
	r.state.journal(ctx, func() { r.state.audits = r.state.audits[:len(r.state.audits)-1] })
	return nil
}

func (r *fakeAuditRepo) FindBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]*entity.AuditLog, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	var result []*entity.AuditLog
	for _, log := range r.state.audits {
		if log.SubjectID == subjectID {
			result = append(result, log)
		}
	}
	return result, nil
}

// fakeGateway is scriptable per test: errors and results are set up
// front, calls are counted. The onCapture/onRefund hooks run inside the
// provider call, where tests can interleave concurrent state changes.
type fakeGateway struct {
	mu sync.Mutex

	createErr    error
	captureErr   error
	refundErr    error
	captureState gateway.CaptureStatus
	refundID     string

	onCapture func()
	onRefund  func()

	createCalls  int
	captureCalls int
	refundCalls  int
}

func (g *fakeGateway) CreateIntent(ctx context.Context, amount float64, currency, description string, metadata map[string]string) (*gateway.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &gateway.Intent{
		IntentID:    fmt.Sprintf("intent-%d", g.createCalls),
		ApprovalURL: "https://pay.example.com/approve",
	}, nil
}

func (g *fakeGateway) CaptureIntent(ctx context.Context, intentID string) (*gateway.CaptureResult, error) {
	g.mu.Lock()
	g.captureCalls++
	err := g.captureErr
	status := g.captureState
	hook := g.onCapture
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	if status == "" {
		status = gateway.CaptureCompleted
	}
	return &gateway.CaptureResult{
		Status:         status,
		CapturedAmount: 50,
		Reference:      "ref-" + intentID,
	}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, paymentReference string, amount float64) (*gateway.RefundResult, error) {
	g.mu.Lock()
	g.refundCalls++
	err := g.refundErr
	id := g.refundID
	calls := g.refundCalls
	hook := g.onRefund
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = fmt.Sprintf("refund-%d", calls)
	}
	return &gateway.RefundResult{RefundID: id, Status: "COMPLETED"}, nil
}

func (g *fakeGateway) VerifyWebhookSignature(signature string, body []byte) bool {
	return signature == "valid"
}

// fakeBus collects published topics.
type fakeBus struct {
	mu     sync.Mutex
	topics []string
}

func (b *fakeBus) Publish(topic string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	return nil
}

func newTestNotifier(bus *fakeBus) *notify.Notifier {
	return notify.NewNotifier(bus, zap.NewNop())
}
