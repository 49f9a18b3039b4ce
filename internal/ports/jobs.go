package ports

import "context"

const (
	JobEnrich = "enrich"
	JobScore  = "score"
)

type CandidateJob struct {
	ID          string
	TenantID    string
	CandidateID string
	Kind        string
}

// JobRepository supports claiming and updating background candidate jobs.
type JobRepository interface {
	Enqueue(ctx context.Context, tenantID, candidateID, kind string) (jobID string, err error)
	ClaimNext(ctx context.Context) (job CandidateJob, found bool, err error)
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	StartJobForCandidate(ctx context.Context, tenantID, candidateID, kind string) (CandidateJob, error)
}
