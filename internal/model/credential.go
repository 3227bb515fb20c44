package model

import "time"

// Credential holds the password hash for one user.
// Exactly one credential exists per user; it is immutable after signup.
type Credential struct {
	UserID       string
	PasswordHash string
	CreatedAt    time.Time
}
