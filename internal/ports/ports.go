package ports

import (
	"context"

	"recruitpipe/internal/domain"
)

// Pipeline resolves, merges and persists incoming candidate data.
type Pipeline interface {
	ProcessCandidate(ctx context.Context, tenantID string, incoming domain.Record) (domain.ProcessResult, error)
	ProcessBatch(ctx context.Context, tenantID string, rows []domain.Record) (domain.BatchSummary, error)
	Get(ctx context.Context, tenantID, id string) (domain.Candidate, error)
	Rescore(ctx context.Context, tenantID, id string) (domain.Candidate, error)
}

// Enricher fetches fresh profile data from a professional network. A nil
// record with a nil error means the profile was not found.
type Enricher interface {
	FetchProfile(ctx context.Context, by domain.Lookup) (domain.Record, error)
}

// Analyst produces an optional model-based assessment of a candidate.
type Analyst interface {
	Assess(ctx context.Context, c domain.Candidate) (domain.Assessment, error)
}
