package ports

import (
	"context"

	"recruitpipe/internal/domain"
)

// CandidateReader finds candidates within one tenant. With both Email and
// LinkedinURL set in the lookup, a row must match both.
type CandidateReader interface {
	FindCandidate(ctx context.Context, tenantID string, by domain.Lookup) (c domain.Candidate, found bool, err error)
	GetCandidate(ctx context.Context, tenantID, id string) (domain.Candidate, error)
}

// CandidateWriter persists candidates. UpdateCandidate applies only the keys
// present in rec and always refreshes updatedAt.
type CandidateWriter interface {
	InsertCandidate(ctx context.Context, c domain.Candidate) (domain.Candidate, error)
	UpdateCandidate(ctx context.Context, tenantID, id string, rec domain.Record) (domain.Candidate, error)
}

// CandidateTx is the storage view handed to code running under an identity lock.
type CandidateTx interface {
	CandidateReader
	CandidateWriter

	// LockCandidate locks one candidate until the surrounding transaction
	// ends and returns its current stored version. Uploads that reach the
	// same person through different identifiers serialize here.
	LockCandidate(ctx context.Context, tenantID, id string) (domain.Candidate, error)
}

// CandidateRepository stores candidate records scoped by tenant.
type CandidateRepository interface {
	CandidateReader
	CandidateWriter

	// WithIdentityLock runs fn while holding exclusive locks on the tenant's
	// email and linkedin url keys from ids, so a concurrent upload of the
	// same person cannot resolve to "no match" at the same time. Writes made
	// through tx commit only if fn returns nil.
	WithIdentityLock(ctx context.Context, tenantID string, ids domain.Lookup, fn func(ctx context.Context, tx CandidateTx) error) error
}
