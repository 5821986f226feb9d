package entity

import "time"

type PaymentEventType string

const (
	PaymentEventMembershipActivated PaymentEventType = "membership.activated"
	PaymentEventMembershipCancelled PaymentEventType = "membership.cancelled"
	PaymentEventMembershipSuspended PaymentEventType = "membership.suspended"
	PaymentEventPaymentFailed       PaymentEventType = "payment.failed"
	PaymentEventPaymentCompleted    PaymentEventType = "payment.completed"
)

// PaymentEvent is the idempotency ledger for gateway webhooks. The
// primary key is the event id issued by the gateway; inserting a
// duplicate is how redelivery is detected.
type PaymentEvent struct {
	EventID    string           `db:"event_id"`
	EventType  PaymentEventType `db:"event_type"`
	ReceivedAt time.Time        `db:"received_at"`
}
