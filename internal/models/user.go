package models

import (
	"fmt"
	"strings"
	"time"
)

// User is an internal operator of the gateway. Passwords are stored as
// bcrypt hashes.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks required fields.
func (u *User) Validate() error {
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return fmt.Errorf("a valid email is required")
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("password hash is required")
	}
	return nil
}
