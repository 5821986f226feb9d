package entity

import "time"

type EventType string

const (
	EventTypeEvent     EventType = "event"
	EventTypeStarParty EventType = "star_party"
)

type Event struct {
	Base
	Name      string    `db:"name"`
	EventType EventType `db:"event_type"`
	Location  string    `db:"location"`
	StartsAt  time.Time `db:"starts_at"`
	EndsAt    time.Time `db:"ends_at"`
	Price     float64   `db:"price"`
	// Capacity is the maximum number of occupied slots. Nil means unlimited.
	Capacity *int `db:"capacity"`
	IsActive bool `db:"is_active"`
}

// HasRoom reports whether requested additional slots fit under capacity,
// given the current occupied count.
func (e *Event) HasRoom(occupied, requested int) bool {
	if e.Capacity == nil {
		return true
	}
	return occupied+requested <= *e.Capacity
}
