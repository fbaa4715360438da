package domain

import "time"

// User is the domain entity for a user account.
type User struct {
	ID           string
	UserName     string
	PasswordHash string `json:"-"`
	Email        string
	Address      string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserPatch carries the profile fields a user may change after signup.
// Nil fields are left untouched.
type UserPatch struct {
	Email   *string
	Address *string
}
