package memory

import (
	"context"

	"github.com/google/uuid"

	"recruitpipe/internal/domain"
	"recruitpipe/internal/ports"
)

func (s *Store) Enqueue(ctx context.Context, tenantID, candidateID, kind string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &job{CandidateJob: ports.CandidateJob{ID: uuid.NewString(), TenantID: tenantID, CandidateID: candidateID, Kind: kind}, status: "queued"}
	s.jobs = append(s.jobs, j)
	return j.ID, nil
}

func (s *Store) ClaimNext(ctx context.Context) (ports.CandidateJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.status == "queued" {
			j.status = "running"
			return j.CandidateJob, true, nil
		}
	}
	return ports.CandidateJob{}, false, nil
}

func (s *Store) MarkCompleted(ctx context.Context, jobID string) error {
	return s.setStatus(jobID, "completed", "")
}

func (s *Store) MarkFailed(ctx context.Context, jobID string, reason string) error {
	return s.setStatus(jobID, "failed", reason)
}

// StartJobForCandidate marks the queued job of kind for the candidate as
// running, creating one when none is queued.
func (s *Store) StartJobForCandidate(ctx context.Context, tenantID, candidateID, kind string) (ports.CandidateJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.status == "queued" && j.TenantID == tenantID && j.CandidateID == candidateID && j.Kind == kind {
			j.status = "running"
			return j.CandidateJob, nil
		}
	}
	j := &job{CandidateJob: ports.CandidateJob{ID: uuid.NewString(), TenantID: tenantID, CandidateID: candidateID, Kind: kind}, status: "running"}
	s.jobs = append(s.jobs, j)
	return j.CandidateJob, nil
}

// JobStatus reports the status and failure reason of a job.
func (s *Store) JobStatus(jobID string) (status, reason string, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.ID == jobID {
			return j.status, j.reason, nil
		}
	}
	return "", "", domain.ErrNotFound
}

func (s *Store) setStatus(jobID, status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == jobID {
			j.status, j.reason = status, reason
			return nil
		}
	}
	return domain.ErrNotFound
}
