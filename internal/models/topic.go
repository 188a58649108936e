package models

import "time"

type Topic struct {
	Name      string    `json:"name" db:"name"`
	Username  string    `json:"-" db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
