package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is an account. The username is the primary key.
type User struct {
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Email        string    `json:"email,omitempty" db:"email"`
	TOTPSecret   string    `json:"-" db:"totp_secret"`
	TOTPEnabled  bool      `json:"totp_enabled" db:"totp_enabled"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// HashPassword generates bcrypt hash of the password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares password with hash
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
