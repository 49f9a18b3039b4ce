package enrichrunner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"recruitpipe/internal/adapters/memory"
	"recruitpipe/internal/domain"
	"recruitpipe/internal/ports"
)

type fakeWorker struct {
	mu        sync.Mutex
	calls     []string
	enrichErr error
}

func (f *fakeWorker) Enrich(_ context.Context, _, id string) (domain.Candidate, error) {
	f.record("enrich:" + id)
	return domain.Candidate{ID: id}, f.enrichErr
}

func (f *fakeWorker) Rescore(_ context.Context, _, id string) (domain.Candidate, error) {
	f.record("score:" + id)
	return domain.Candidate{ID: id}, nil
}

func (f *fakeWorker) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func TestPipelineProcessor(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		want    []string
		wantErr bool
	}{
		{"enrich then rescore", ports.JobEnrich, []string{"enrich:c1", "score:c1"}, false},
		{"score", ports.JobScore, []string{"score:c1"}, false},
		{"unknown kind", "reindex", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWorker{}
			err := PipelineProcessor{Candidates: w}.Process(context.Background(), ports.CandidateJob{TenantID: "t1", CandidateID: "c1", Kind: tt.kind})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Process() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, w.calls); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPipelineProcessorStopsOnEnrichFailure(t *testing.T) {
	w := &fakeWorker{enrichErr: domain.ErrEnrichmentUnavailable}
	err := PipelineProcessor{Candidates: w}.Process(context.Background(), ports.CandidateJob{CandidateID: "c1", Kind: ports.JobEnrich})
	if !errors.Is(err, domain.ErrEnrichmentUnavailable) {
		t.Fatalf("Process() error = %v", err)
	}
	if diff := cmp.Diff([]string{"enrich:c1"}, w.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

type processorFunc func(ctx context.Context, job ports.CandidateJob) error

func (f processorFunc) Process(ctx context.Context, job ports.CandidateJob) error { return f(ctx, job) }

func waitForStatus(t *testing.T, store *memory.Store, jobID, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if status, _, _ := store.JobStatus(jobID); status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	status, reason, _ := store.JobStatus(jobID)
	t.Fatalf("job %s status = %q (%s), want %q", jobID, status, reason, want)
}

func TestRunProcessesQueuedJobs(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	ok, _ := store.Enqueue(ctx, "t1", "c1", ports.JobScore)
	bad, _ := store.Enqueue(ctx, "t1", "c2", ports.JobScore)

	proc := processorFunc(func(_ context.Context, job ports.CandidateJob) error {
		if job.CandidateID == "c2" {
			return errors.New("candidate vanished")
		}
		return nil
	})
	runCtx, cancel := context.WithCancel(ctx)
	done := Run(runCtx, store, proc, 2, 5*time.Millisecond, nil)

	waitForStatus(t, store, ok, "completed")
	waitForStatus(t, store, bad, "failed")
	if _, reason, _ := store.JobStatus(bad); reason != "candidate vanished" {
		t.Errorf("reason = %q", reason)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after cancel")
	}
}

func TestRunWithoutWorkers(t *testing.T) {
	done := Run(context.Background(), memory.New(), processorFunc(nil), 0, time.Second, nil)
	select {
	case <-done:
	default:
		t.Error("Run with no workers should be done immediately")
	}
}

func TestProcessInline(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	var seen ports.CandidateJob
	err := ProcessInline(ctx, store, processorFunc(func(_ context.Context, job ports.CandidateJob) error {
		seen = job
		return nil
	}), "t1", "c1", ports.JobScore)
	if err != nil {
		t.Fatalf("ProcessInline() error = %v", err)
	}
	if seen.ID == "" || seen.Kind != ports.JobScore {
		t.Fatalf("processed job = %+v", seen)
	}
	waitForStatus(t, store, seen.ID, "completed")

	boom := errors.New("boom")
	err = ProcessInline(ctx, store, processorFunc(func(_ context.Context, job ports.CandidateJob) error {
		seen = job
		return boom
	}), "t1", "c1", ports.JobScore)
	if !errors.Is(err, boom) {
		t.Fatalf("ProcessInline() error = %v, want %v", err, boom)
	}
	waitForStatus(t, store, seen.ID, "failed")
}

func TestProcessInlinePicksUpQueuedJob(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	queued, _ := store.Enqueue(ctx, "t1", "c1", ports.JobScore)

	var seen ports.CandidateJob
	if err := ProcessInline(ctx, store, processorFunc(func(_ context.Context, job ports.CandidateJob) error {
		seen = job
		return nil
	}), "t1", "c1", ports.JobScore); err != nil {
		t.Fatal(err)
	}
	if seen.ID != queued {
		t.Errorf("processed job %s, want queued job %s", seen.ID, queued)
	}
}
