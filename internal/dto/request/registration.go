package request

type CreateRegistrationRequest struct {
	EventID string `json:"event_id" validate:"required,uuid"`
	// GuestCount is the total number of slots requested, member included.
	GuestCount int `json:"guest_count" validate:"required,min=1,max=10"`
}
