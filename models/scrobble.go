package models

import (
	"time"

	"github.com/google/uuid"
)

// Scrobble is one recorded play, uniquely keyed by (user, track, played_at).
type Scrobble struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"userId"`
	TrackID          uuid.UUID  `json:"trackId"`
	AlbumID          *uuid.UUID `json:"albumId,omitempty"`
	PlayedAt         time.Time  `json:"playedAt"`
	PlayedDurationMs int64      `json:"playedDurationMs"`
	Skipped          bool       `json:"skipped"`
	Provider         string     `json:"provider"`
	ImportBatchID    *uuid.UUID `json:"importBatchId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// ScrobbleCursor tracks the highest played_at the reconciler has processed
// for one (user, provider). It only moves forward.
type ScrobbleCursor struct {
	UserID       uuid.UUID
	Provider     string
	LastPlayedAt time.Time
	UpdatedAt    time.Time
}
