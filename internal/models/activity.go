package models

import "time"

// SendEvent records that a topic was fanned out. It carries counts only,
// never per-target results.
type SendEvent struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Username  string    `json:"-"`
	Channel   string    `json:"channel"`
	Title     string    `json:"title"`
	Targets   int       `json:"targets"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}
