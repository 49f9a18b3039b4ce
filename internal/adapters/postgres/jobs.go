package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"recruitpipe/internal/domain"
	"recruitpipe/internal/ports"
)

func (db *DB) Enqueue(ctx context.Context, tenantID, candidateID, kind string) (string, error) {
	id := uuid.NewString()
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO candidate_jobs (id, tenant_id, candidate_id, kind) VALUES ($1, $2, $3, $4)
	`, id, tenantID, candidateID, kind)
	return id, err
}

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.CandidateJob, found bool, err error) {
	err = db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id, tenant_id, candidate_id, kind FROM candidate_jobs
			WHERE status = 'queued'
			ORDER BY queued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		`).Scan(&job.ID, &job.TenantID, &job.CandidateID, &job.Kind)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE candidate_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
		`, job.ID); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return ports.CandidateJob{}, false, err
	}
	return job, found, nil
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.finish(ctx, jobID, "completed", "")
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.finish(ctx, jobID, "failed", reason)
}

func (db *DB) finish(ctx context.Context, jobID, status, reason string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE candidate_jobs SET status=$2, last_error=NULLIF($3, ''), finished_at=now() WHERE id=$1
	`, jobID, status, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// StartJobForCandidate marks the queued job of kind for a candidate as
// running, creating a running job when none is queued.
func (db *DB) StartJobForCandidate(ctx context.Context, tenantID, candidateID, kind string) (job ports.CandidateJob, err error) {
	job = ports.CandidateJob{TenantID: tenantID, CandidateID: candidateID, Kind: kind}
	err = db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id FROM candidate_jobs
			WHERE tenant_id = $1 AND candidate_id = $2 AND kind = $3 AND status = 'queued'
			ORDER BY queued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		`, tenantID, candidateID, kind).Scan(&job.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			job.ID = uuid.NewString()
			_, err = tx.Exec(ctx, `
				INSERT INTO candidate_jobs (id, tenant_id, candidate_id, kind, status, started_at, attempts)
				VALUES ($1, $2, $3, $4, 'running', now(), 1)
			`, job.ID, tenantID, candidateID, kind)
			return err
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE candidate_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1`, job.ID)
		return err
	})
	if err != nil {
		return ports.CandidateJob{}, err
	}
	return job, nil
}
