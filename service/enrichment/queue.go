package enrichment

import (
	"context"

	"github.com/google/uuid"

	"github.com/Ulo03/playbacc/db"
	"github.com/Ulo03/playbacc/models"
)

// EnqueueResult is what sync endpoints report back: a job id, whether a new
// row was created, and why not when it wasn't.
type EnqueueResult struct {
	JobID   uuid.UUID `json:"jobId"`
	Created bool      `json:"created"`
	Reason  string    `json:"reason,omitempty"`
}

// Enqueue inserts a job, or returns the already-active one for the same
// (kind, entity_kind, entity_id).
func Enqueue(ctx context.Context, database *db.DB, kind, entityKind string, entityID uuid.UUID, priority, maxAttempts int) (*EnqueueResult, error) {
	job, created, err := database.EnqueueJob(ctx, kind, entityKind, entityID, priority, maxAttempts)
	if err != nil {
		return nil, err
	}

	result := &EnqueueResult{JobID: job.ID, Created: created}
	if !created {
		result.Reason = "already_active"
	}
	return result, nil
}

// ValidKind reports whether a job kind is one the worker dispatches on.
func ValidKind(kind string) bool {
	switch kind {
	case models.JobArtistResolveMBID, models.JobArtistSyncRelationships,
		models.JobAlbumResolveMBID, models.JobAlbumSync,
		models.JobTrackResolveMBID, models.JobTrackSync:
		return true
	}
	return false
}
