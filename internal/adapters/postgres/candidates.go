package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"recruitpipe/internal/domain"
	"recruitpipe/internal/ports"
)

// Candidates are stored as a jsonb document with the identity columns
// duplicated alongside it for lookups.

var (
	_ ports.CandidateRepository = (*DB)(nil)
	_ ports.JobRepository       = (*DB)(nil)
	_ ports.CandidateTx         = (*candidateStore)(nil)
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type candidateStore struct {
	q   querier
	now func() time.Time
}

func (db *DB) store(q querier) *candidateStore { return &candidateStore{q: q, now: db.now} }

func (db *DB) FindCandidate(ctx context.Context, tenantID string, by domain.Lookup) (domain.Candidate, bool, error) {
	return db.store(db.Pool).FindCandidate(ctx, tenantID, by)
}

func (db *DB) GetCandidate(ctx context.Context, tenantID, id string) (domain.Candidate, error) {
	return db.store(db.Pool).GetCandidate(ctx, tenantID, id)
}

func (db *DB) InsertCandidate(ctx context.Context, c domain.Candidate) (domain.Candidate, error) {
	return db.store(db.Pool).InsertCandidate(ctx, c)
}

// UpdateCandidate locks the row for the read-modify-write.
func (db *DB) UpdateCandidate(ctx context.Context, tenantID, id string, rec domain.Record) (out domain.Candidate, err error) {
	err = db.inTx(ctx, func(tx pgx.Tx) error {
		out, err = db.store(tx).UpdateCandidate(ctx, tenantID, id, rec)
		return err
	})
	return out, err
}

// WithIdentityLock takes transaction-scoped advisory locks on the identity
// keys, in sorted order, and runs fn inside that transaction.
func (db *DB) WithIdentityLock(ctx context.Context, tenantID string, ids domain.Lookup, fn func(ctx context.Context, tx ports.CandidateTx) error) error {
	return db.inTx(ctx, func(tx pgx.Tx) error {
		for _, key := range ids.LockKeys(tenantID) {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
				return fmt.Errorf("identity lock: %w", err)
			}
		}
		return fn(ctx, db.store(tx))
	})
}

func (s *candidateStore) FindCandidate(ctx context.Context, tenantID string, by domain.Lookup) (domain.Candidate, bool, error) {
	if by.Email == "" && by.LinkedinURL == "" {
		return domain.Candidate{}, false, nil
	}
	query := `SELECT data FROM candidates WHERE tenant_id = $1`
	args := []any{tenantID}
	if by.Email != "" {
		args = append(args, by.Email)
		query += fmt.Sprintf(" AND email = $%d", len(args))
	}
	if by.LinkedinURL != "" {
		args = append(args, by.LinkedinURL)
		query += fmt.Sprintf(" AND linkedin_url = $%d", len(args))
	}
	query += ` ORDER BY created_at LIMIT 1`

	c, err := scanCandidate(s.q.QueryRow(ctx, query, args...))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Candidate{}, false, nil
	}
	if err != nil {
		return domain.Candidate{}, false, err
	}
	return c, true, nil
}

func (s *candidateStore) GetCandidate(ctx context.Context, tenantID, id string) (domain.Candidate, error) {
	return scanCandidate(s.q.QueryRow(ctx, `SELECT data FROM candidates WHERE id = $1 AND tenant_id = $2`, id, tenantID))
}

func (s *candidateStore) InsertCandidate(ctx context.Context, c domain.Candidate) (domain.Candidate, error) {
	if c.TenantID == "" {
		return domain.Candidate{}, domain.ErrTenantRequired
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	data, err := json.Marshal(c)
	if err != nil {
		return domain.Candidate{}, err
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO candidates (id, tenant_id, email, linkedin_url, data, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)
	`, c.ID, c.TenantID, c.Email, c.LinkedinURL, data, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("insert candidate: %w", err)
	}
	return c, nil
}

// LockCandidate takes the row lock that UpdateCandidate would take, so the
// caller merges from the version it is about to overwrite.
func (s *candidateStore) LockCandidate(ctx context.Context, tenantID, id string) (domain.Candidate, error) {
	return scanCandidate(s.q.QueryRow(ctx,
		`SELECT data FROM candidates WHERE id = $1 AND tenant_id = $2 FOR UPDATE`, id, tenantID))
}

// UpdateCandidate must run inside a transaction for the row lock to hold.
func (s *candidateStore) UpdateCandidate(ctx context.Context, tenantID, id string, rec domain.Record) (domain.Candidate, error) {
	c, err := s.LockCandidate(ctx, tenantID, id)
	if err != nil {
		return domain.Candidate{}, err
	}
	if err := c.Apply(rec); err != nil {
		return domain.Candidate{}, err
	}
	c.ID, c.TenantID = id, tenantID
	c.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(c)
	if err != nil {
		return domain.Candidate{}, err
	}
	_, err = s.q.Exec(ctx, `
		UPDATE candidates
		SET email = NULLIF($3, ''), linkedin_url = NULLIF($4, ''), data = $5, updated_at = $6
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID, c.Email, c.LinkedinURL, data, c.UpdatedAt)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("update candidate: %w", err)
	}
	return c, nil
}

func scanCandidate(row pgx.Row) (domain.Candidate, error) {
	var data []byte
	err := row.Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Candidate{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Candidate{}, err
	}
	var c domain.Candidate
	if err := json.Unmarshal(data, &c); err != nil {
		return domain.Candidate{}, fmt.Errorf("decode candidate: %w", err)
	}
	return c, nil
}
