package models

import (
	"time"

	"github.com/google/uuid"
)

// Job kinds the enrichment worker dispatches on.
const (
	JobArtistResolveMBID       = "artist.resolve_mbid"
	JobArtistSyncRelationships = "artist.sync_relationships"
	JobAlbumResolveMBID        = "album.resolve_mbid"
	JobAlbumSync               = "album.sync"
	JobTrackResolveMBID        = "track.resolve_mbid"
	JobTrackSync               = "track.sync"
)

const (
	EntityArtist = "artist"
	EntityAlbum  = "album"
	EntityTrack  = "track"
)

const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// EnrichmentJob is one unit of queue work. At most one active (pending or
// running) job may exist per (kind, entity_kind, entity_id); terminal jobs
// do not count.
type EnrichmentJob struct {
	ID          uuid.UUID  `json:"id"`
	Kind        string     `json:"kind"`
	EntityKind  string     `json:"entityKind"`
	EntityID    uuid.UUID  `json:"entityId"`
	Status      string     `json:"status"`
	Priority    int        `json:"priority"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"maxAttempts"`
	RunAfter    time.Time  `json:"runAfter"`
	LockedAt    *time.Time `json:"lockedAt,omitempty"`
	LockedBy    *string    `json:"lockedBy,omitempty"`
	LastError   *string    `json:"lastError,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Terminal reports whether the job has reached a final status.
func (j *EnrichmentJob) Terminal() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}
