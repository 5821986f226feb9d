package entity

import "errors"

// Domain outcomes. AtCapacity and AlreadyRegistered are expected results
// of normal operation, not failures.
var (
	ErrAtCapacity           = errors.New("event is at capacity")
	ErrAlreadyRegistered    = errors.New("member already registered for event")
	ErrNotCapturable        = errors.New("registration is not capturable")
	ErrGateway              = errors.New("payment gateway failure")
	ErrPaymentDeclined      = errors.New("payment was declined")
	ErrRefundExceedsPayment = errors.New("refund amount exceeds payment")
	ErrAlreadyRefunded      = errors.New("registration already fully refunded")
	ErrNotRefundable        = errors.New("registration is not refundable")
	ErrNotCancellable       = errors.New("registration cannot be cancelled")
	ErrNotFound             = errors.New("not found")
	ErrDuplicateEvent       = errors.New("payment event already processed")
)
