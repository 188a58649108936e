package models

import "time"

// PushSubscription is one registered browser. Subscriptions belong to the
// account, so every topic of the account reaches all of them.
type PushSubscription struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Endpoint  string    `json:"endpoint" db:"endpoint"`
	P256dh    string    `json:"-" db:"p256dh"`
	Auth      string    `json:"-" db:"auth"`
	Username  string    `json:"-" db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
