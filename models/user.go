package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user of the application
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  *string   `json:"username,omitempty"` // Use pointer for nullable fields
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Account links a user to one streaming provider. Exactly one row per
// (user, provider).
type Account struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Provider     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // absolute epoch seconds, not a relative duration
	Scope        string
	ExternalID   string // provider-side user id
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the access token should be refreshed before use.
// A token inside the safety margin counts as expired.
func (a *Account) Expired(now time.Time, safetyMargin time.Duration) bool {
	return a.ExpiresAt < now.Add(safetyMargin).Unix()
}
