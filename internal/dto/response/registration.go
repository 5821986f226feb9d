package response

import (
	"time"

	"astro-events/internal/data/entity"
)

type RegistrationResponse struct {
	ID               string    `json:"id"`
	OrderID          string    `json:"order_id"`
	EventID          string    `json:"event_id"`
	EventName        string    `json:"event_name,omitempty"`
	MemberID         string    `json:"member_id"`
	GuestCount       int       `json:"guest_count"`
	AmountDue        float64   `json:"amount_due"`
	AmountPaid       float64   `json:"amount_paid"`
	AmountRefunded   float64   `json:"amount_refunded,omitempty"`
	PaymentReference *string   `json:"payment_reference,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

func RegistrationToResponse(reg *entity.Registration, eventName string) RegistrationResponse {
	return RegistrationResponse{
		ID:               reg.ID.String(),
		OrderID:          reg.OrderID,
		EventID:          reg.EventID.String(),
		EventName:        eventName,
		MemberID:         reg.MemberID.String(),
		GuestCount:       reg.GuestCount,
		AmountDue:        reg.AmountDue,
		AmountPaid:       reg.AmountPaid,
		AmountRefunded:   reg.AmountRefunded,
		PaymentReference: reg.PaymentReference,
		Status:           string(reg.Status),
		CreatedAt:        reg.CreatedAt,
	}
}

// CheckoutResponse is returned when a hold is created: the registration
// plus the provider URL the member must visit to approve payment.
type CheckoutResponse struct {
	Registration RegistrationResponse `json:"registration"`
	ApprovalURL  string               `json:"approval_url"`
}

type RefundResponse struct {
	Registration RegistrationResponse `json:"registration"`
	RefundID     string               `json:"refund_id"`
	Amount       float64              `json:"amount"`
}

type AuditLogResponse struct {
	ID        string         `json:"id"`
	ActorID   *string        `json:"actor_id,omitempty"`
	SubjectID string         `json:"subject_id"`
	Action    string         `json:"action"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func AuditLogToResponse(log *entity.AuditLog) AuditLogResponse {
	resp := AuditLogResponse{
		ID:        log.ID.String(),
		SubjectID: log.SubjectID.String(),
		Action:    string(log.Action),
		Metadata:  log.Metadata,
		CreatedAt: log.CreatedAt,
	}
	if log.ActorID != nil {
		actor := log.ActorID.String()
		resp.ActorID = &actor
	}
	return resp
}

// SweepResponse reports reaper results per event type.
type SweepResponse struct {
	Expired map[string]int `json:"expired"`
	Total   int            `json:"total"`
}
