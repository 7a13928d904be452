package db

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Ulo03/playbacc/models"
)

const jobColumns = `id, kind, entity_kind, entity_id, status, priority, attempts, max_attempts,
	run_after, locked_at, locked_by, last_error, created_at, updated_at`

func scanJob(row pgx.Row) (*models.EnrichmentJob, error) {
	j := &models.EnrichmentJob{}
	err := row.Scan(
		&j.ID, &j.Kind, &j.EntityKind, &j.EntityID, &j.Status, &j.Priority,
		&j.Attempts, &j.MaxAttempts, &j.RunAfter, &j.LockedAt, &j.LockedBy,
		&j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// EnqueueJob inserts a job unless an active one for the same
// (kind, entity_kind, entity_id) already exists. The partial unique index
// makes the dedupe atomic; on conflict the existing active job is returned
// with created=false.
func (db *DB) EnqueueJob(ctx context.Context, kind, entityKind string, entityID uuid.UUID, priority, maxAttempts int) (*models.EnrichmentJob, bool, error) {
	id := uuid.New()

	job, err := scanJob(db.QueryRow(ctx, `
	INSERT INTO enrichment_jobs (id, kind, entity_kind, entity_id, priority, max_attempts)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (kind, entity_kind, entity_id) WHERE status IN ('pending', 'running') DO NOTHING
	RETURNING `+jobColumns,
		id, kind, entityKind, entityID, priority, maxAttempts))
	if err != nil {
		return nil, false, err
	}
	if job != nil {
		return job, true, nil
	}

	// Lost the race (or the job was already queued): hand back the active one.
	existing, err := scanJob(db.QueryRow(ctx, `
	SELECT `+jobColumns+`
	FROM enrichment_jobs
	WHERE kind = $1 AND entity_kind = $2 AND entity_id = $3 AND status IN ('pending', 'running')`,
		kind, entityKind, entityID))
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// Active job finished between the insert and the lookup; try again.
		return db.EnqueueJob(ctx, kind, entityKind, entityID, priority, maxAttempts)
	}
	return existing, false, nil
}

// ClaimJobs atomically transitions up to limit jobs to running for this
// worker. Eligible rows are pending ones that are due, plus running ones
// whose lease expired (crashed worker). The inner select locks rows with
// SKIP LOCKED so concurrent workers never block or double-claim.
func (db *DB) ClaimJobs(ctx context.Context, workerID string, limit int, leaseTimeout time.Duration) ([]*models.EnrichmentJob, error) {
	rows, err := db.Query(ctx, `
	UPDATE enrichment_jobs
	SET status = 'running', locked_at = now(), locked_by = $1, updated_at = now()
	WHERE id IN (
		SELECT id FROM enrichment_jobs
		WHERE (status = 'pending' AND run_after <= now())
		   OR (status = 'running' AND locked_at < now() - make_interval(secs => $2))
		ORDER BY priority DESC, created_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	)
	RETURNING `+jobColumns,
		workerID, leaseTimeout.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.EnrichmentJob
	for rows.Next() {
		j := &models.EnrichmentJob{}
		if err := rows.Scan(
			&j.ID, &j.Kind, &j.EntityKind, &j.EntityID, &j.Status, &j.Priority,
			&j.Attempts, &j.MaxAttempts, &j.RunAfter, &j.LockedAt, &j.LockedBy,
			&j.LastError, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// CompleteJob marks the job succeeded and stamps the entity it enriched.
func (db *DB) CompleteJob(ctx context.Context, job *models.EnrichmentJob) error {
	_, err := db.Exec(ctx, `
	UPDATE enrichment_jobs
	SET status = 'succeeded', locked_at = NULL, locked_by = NULL, updated_at = now()
	WHERE id = $1`, job.ID)
	if err != nil {
		return err
	}
	return db.TouchLastEnriched(ctx, job.EntityKind, job.EntityID)
}

// Backoff computes the retry delay for the given attempt count (1-based):
// min(base * multiplier^(attempts-1), cap).
func Backoff(attempts int, base time.Duration, multiplier float64, cap time.Duration) time.Duration {
	d := time.Duration(float64(base) * math.Pow(multiplier, float64(attempts-1)))
	if d > cap || d <= 0 {
		return cap
	}
	return d
}

// FailJob records a failed attempt. Exhausted jobs go terminal; the rest are
// rescheduled with exponential backoff.
func (db *DB) FailJob(ctx context.Context, job *models.EnrichmentJob, jobErr string, base time.Duration, multiplier float64, cap time.Duration) error {
	attempts := job.Attempts + 1

	if attempts >= job.MaxAttempts {
		_, err := db.Exec(ctx, `
		UPDATE enrichment_jobs
		SET status = 'failed', attempts = $1, last_error = $2,
		    locked_at = NULL, locked_by = NULL, updated_at = now()
		WHERE id = $3`, attempts, jobErr, job.ID)
		return err
	}

	runAfter := time.Now().UTC().Add(Backoff(attempts, base, multiplier, cap))
	_, err := db.Exec(ctx, `
	UPDATE enrichment_jobs
	SET status = 'pending', attempts = $1, last_error = $2, run_after = $3,
	    locked_at = NULL, locked_by = NULL, updated_at = now()
	WHERE id = $4`, attempts, jobErr, runAfter, job.ID)
	return err
}

// ReapJobs deletes terminal jobs older than the TTL and reports how many.
func (db *DB) ReapJobs(ctx context.Context, ttl time.Duration) (int64, error) {
	tag, err := db.Exec(ctx, `
	DELETE FROM enrichment_jobs
	WHERE status IN ('succeeded', 'failed') AND updated_at < now() - make_interval(secs => $1)`,
		ttl.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (db *DB) GetJobByID(ctx context.Context, id uuid.UUID) (*models.EnrichmentJob, error) {
	return scanJob(db.QueryRow(ctx, `SELECT `+jobColumns+` FROM enrichment_jobs WHERE id = $1`, id))
}

// QueueStats summarizes the queue for the stats endpoint.
type QueueStats struct {
	Pending          int64      `json:"pending"`
	Running          int64      `json:"running"`
	Succeeded        int64      `json:"succeeded"`
	Failed           int64      `json:"failed"`
	OldestPendingAge *float64   `json:"oldestPendingAgeSeconds,omitempty"`
	OldestPendingAt  *time.Time `json:"oldestPendingAt,omitempty"`
}

func (db *DB) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	stats := &QueueStats{}
	err := db.QueryRow(ctx, `
	SELECT
		count(*) FILTER (WHERE status = 'pending'),
		count(*) FILTER (WHERE status = 'running'),
		count(*) FILTER (WHERE status = 'succeeded'),
		count(*) FILTER (WHERE status = 'failed'),
		min(created_at) FILTER (WHERE status = 'pending')
	FROM enrichment_jobs`).Scan(
		&stats.Pending, &stats.Running, &stats.Succeeded, &stats.Failed, &stats.OldestPendingAt)
	if err != nil {
		return nil, err
	}

	if stats.OldestPendingAt != nil {
		age := time.Since(*stats.OldestPendingAt).Seconds()
		stats.OldestPendingAge = &age
	}
	return stats, nil
}
