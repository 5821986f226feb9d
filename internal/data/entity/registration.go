package entity

import (
	"github.com/google/uuid"
)

type RegistrationStatus string

const (
	RegistrationStatusHold              RegistrationStatus = "hold"
	RegistrationStatusConfirmed         RegistrationStatus = "confirmed"
	RegistrationStatusCancelled         RegistrationStatus = "cancelled"
	RegistrationStatusExpired           RegistrationStatus = "expired"
	RegistrationStatusRefunded          RegistrationStatus = "refunded"
	RegistrationStatusPartiallyRefunded RegistrationStatus = "partially_refunded"
)

// ConsumesSlot reports whether a registration in this status counts
// against event capacity. Refunded registrations keep their slot: a
// refund is a financial operation, not a capacity release.
func (s RegistrationStatus) ConsumesSlot() bool {
	switch s {
	case RegistrationStatusHold, RegistrationStatusConfirmed,
		RegistrationStatusRefunded, RegistrationStatusPartiallyRefunded:
		return true
	}
	return false
}

// Active means the registration blocks the member from registering again
// for the same event.
func (s RegistrationStatus) Active() bool {
	return s != RegistrationStatusCancelled && s != RegistrationStatusExpired
}

type Registration struct {
	Base
	OrderID  string    `db:"order_id"`
	EventID  uuid.UUID `db:"event_id"`
	MemberID uuid.UUID `db:"member_id"`
	// GuestCount is the number of slots this registration consumes
	// (the member plus guests). Fixed once the hold is created.
	GuestCount       int                `db:"guest_count"`
	AmountDue        float64            `db:"amount_due"`
	AmountPaid       float64            `db:"amount_paid"`
	AmountRefunded   float64            `db:"amount_refunded"`
	IntentID         *string            `db:"intent_id"`
	PaymentReference *string            `db:"payment_reference"`
	Status           RegistrationStatus `db:"status"`
}
