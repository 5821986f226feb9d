package notify

import (
	"encoding/json"
	"time"

	"astro-events/internal/data/entity"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	TopicConfirmed = "registrations.confirmed"
	TopicCancelled = "registrations.cancelled"
	TopicRefunded  = "registrations.refunded"
	TopicExpired   = "registrations.expired"
)

// Bus is the transport the notifier publishes over.
type Bus interface {
	Publish(topic string, data []byte) error
}

type natsBus struct {
	conn *nats.Conn
}

func NewNatsBus(url string) (Bus, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &natsBus{conn: conn}, nil
}

func (b *natsBus) Publish(topic string, data []byte) error {
	return b.conn.Publish(topic, data)
}

// RegistrationEvent is the payload the notification layer consumes to
// send member emails. It carries ids only; the consumer resolves details.
type RegistrationEvent struct {
	RegistrationID string    `json:"registration_id"`
	OrderID        string    `json:"order_id"`
	EventID        string    `json:"event_id"`
	MemberID       string    `json:"member_id"`
	Status         string    `json:"status"`
	Amount         float64   `json:"amount"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Notifier publishes registration lifecycle events for the external
// notification layer. A nil bus disables publishing; delivery is
// best-effort and never fails the calling operation.
type Notifier struct {
	bus Bus
	log *zap.Logger
}

func NewNotifier(bus Bus, log *zap.Logger) *Notifier {
	return &Notifier{
		bus: bus,
		log: log.With(zap.String("component", "notifier")),
	}
}

func (n *Notifier) Registration(topic string, reg *entity.Registration, amount float64) {
	if n == nil || n.bus == nil {
		return
	}

	payload := RegistrationEvent{
		RegistrationID: reg.ID.String(),
		OrderID:        reg.OrderID,
		EventID:        reg.EventID.String(),
		MemberID:       reg.MemberID.String(),
		Status:         string(reg.Status),
		Amount:         amount,
		OccurredAt:     time.Now(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("Failed to marshal registration event", zap.Error(err))
		return
	}

	if err := n.bus.Publish(topic, data); err != nil {
		n.log.Error("Failed to publish registration event",
			zap.Error(err),
			zap.String("topic", topic),
			zap.String("registration_id", payload.RegistrationID),
		)
		return
	}

	n.log.Debug("Registration event published",
		zap.String("topic", topic),
		zap.String("registration_id", payload.RegistrationID),
	)
}
