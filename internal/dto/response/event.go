package response

import (
	"time"

	"astro-events/internal/data/entity"
)

type EventResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	EventType string    `json:"event_type"`
	Location  string    `json:"location"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Price     float64   `json:"price"`
	Capacity  *int      `json:"capacity"`
	// Remaining is nil for unlimited-capacity events.
	Remaining *int `json:"remaining,omitempty"`
}

func EventToResponse(event *entity.Event, occupied int) EventResponse {
	resp := EventResponse{
		ID:        event.ID.String(),
		Name:      event.Name,
		EventType: string(event.EventType),
		Location:  event.Location,
		StartsAt:  event.StartsAt,
		EndsAt:    event.EndsAt,
		Price:     event.Price,
		Capacity:  event.Capacity,
	}

	if event.Capacity != nil {
		remaining := *event.Capacity - occupied
		if remaining < 0 {
			remaining = 0
		}
		resp.Remaining = &remaining
	}

	return resp
}
