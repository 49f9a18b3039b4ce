// Package enrichrunner claims background candidate jobs and runs them.
package enrichrunner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"recruitpipe/internal/domain"
	"recruitpipe/internal/ports"
)

// Processor performs the work for one job.
type Processor interface {
	Process(ctx context.Context, job ports.CandidateJob) error
}

// CandidateWorker is the part of the candidate service jobs call into.
type CandidateWorker interface {
	Enrich(ctx context.Context, tenantID, id string) (domain.Candidate, error)
	Rescore(ctx context.Context, tenantID, id string) (domain.Candidate, error)
}

// PipelineProcessor runs enrich and score jobs against the candidate service.
type PipelineProcessor struct{ Candidates CandidateWorker }

func (p PipelineProcessor) Process(ctx context.Context, job ports.CandidateJob) error {
	switch job.Kind {
	case ports.JobEnrich:
		if _, err := p.Candidates.Enrich(ctx, job.TenantID, job.CandidateID); err != nil {
			return err
		}
		_, err := p.Candidates.Rescore(ctx, job.TenantID, job.CandidateID)
		return err
	case ports.JobScore:
		_, err := p.Candidates.Rescore(ctx, job.TenantID, job.CandidateID)
		return err
	}
	return fmt.Errorf("unknown job kind %q", job.Kind)
}

// Run starts a dispatcher that polls for queued jobs and concurrency workers
// that process them. The returned channel is closed once every worker has
// stopped after ctx is cancelled.
func Run(ctx context.Context, repo ports.JobRepository, processor Processor, concurrency int, pollInterval time.Duration, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	if concurrency < 1 {
		close(done)
		return done
	}
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	jobsCh := make(chan ports.CandidateJob, concurrency)

	// dispatcher loop
	go func() {
		defer close(jobsCh)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						if ctx.Err() == nil {
							logger.Error("job claim failed", "error", err)
						}
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						// Claimed but never started; record it so it is not stuck running.
						_ = repo.MarkFailed(context.WithoutCancel(ctx), job.ID, "shutdown before start")
						return
					}
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for job := range jobsCh {
				finish(ctx, repo, processor, job, logger.With("worker", idx))
			}
		}(i)
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

func finish(ctx context.Context, repo ports.JobRepository, processor Processor, job ports.CandidateJob, logger *slog.Logger) {
	log := logger.With("job_id", job.ID, "kind", job.Kind, "tenant_id", job.TenantID, "candidate_id", job.CandidateID)
	if err := processor.Process(ctx, job); err != nil {
		if mErr := repo.MarkFailed(context.WithoutCancel(ctx), job.ID, err.Error()); mErr != nil {
			log.Error("mark job failed", "error", mErr)
		}
		log.Warn("job failed", "error", err)
		return
	}
	if err := repo.MarkCompleted(context.WithoutCancel(ctx), job.ID); err != nil {
		log.Error("mark job completed", "error", err)
	}
}

// ProcessInline runs a job of kind for one candidate synchronously with the
// same processor the background workers use, recording it in the queue.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor Processor, tenantID, candidateID, kind string) error {
	job, err := repo.StartJobForCandidate(ctx, tenantID, candidateID, kind)
	if err != nil {
		return err
	}
	if err := processor.Process(ctx, job); err != nil {
		_ = repo.MarkFailed(context.WithoutCancel(ctx), job.ID, err.Error())
		return err
	}
	return repo.MarkCompleted(ctx, job.ID)
}
