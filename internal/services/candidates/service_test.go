package candidates

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"recruitpipe/internal/adapters/memory"
	"recruitpipe/internal/domain"
	"recruitpipe/internal/ports"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeEnricher struct {
	mu    sync.Mutex
	rec   domain.Record
	err   error
	calls int
}

func (f *fakeEnricher) FetchProfile(context.Context, domain.Lookup) (domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rec.Clone(), nil
}

type fakeAnalyst struct {
	a   domain.Assessment
	err error
}

func (f fakeAnalyst) Assess(context.Context, domain.Candidate) (domain.Assessment, error) {
	return f.a, f.err
}

func newService(store *memory.Store, opts ...Option) *Service {
	store.Now = func() time.Time { return now }
	opts = append([]Option{WithJobs(store), WithClock(func() time.Time { return now })}, opts...)
	return New(store, opts...)
}

func TestProcessCandidateCreates(t *testing.T) {
	store := memory.New()
	svc := newService(store, WithEnricher(&fakeEnricher{}))

	res, err := svc.ProcessCandidate(context.Background(), "t1", domain.Record{
		"email":  " Ada@Example.com ",
		"name":   "Ada",
		"skills": []any{"Go", "SQL", "Go"},
	})
	if err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}
	if !res.IsNew || res.CandidateID == "" {
		t.Fatalf("ProcessCandidate() = %+v, want new candidate", res)
	}

	c, err := svc.Get(context.Background(), "t1", res.CandidateID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if c.Email != "ada@example.com" {
		t.Errorf("Email = %q, want normalized", c.Email)
	}
	if c.EnrichmentStatus != domain.EnrichmentPending {
		t.Errorf("EnrichmentStatus = %q, want pending", c.EnrichmentStatus)
	}
	if diff := cmp.Diff([]string{"Go", "SQL"}, c.Skills); diff != "" {
		t.Errorf("skills mismatch (-want +got):\n%s", diff)
	}
	if c.Priority == "" {
		t.Errorf("new candidates should be scored")
	}

	job, found, err := store.ClaimNext(context.Background())
	if err != nil || !found {
		t.Fatalf("ClaimNext() = %v, %v; want queued enrich job", found, err)
	}
	if job.Kind != ports.JobEnrich || job.CandidateID != res.CandidateID {
		t.Errorf("job = %+v, want enrich job for %s", job, res.CandidateID)
	}
}

func TestProcessCandidateMergesAndEnriches(t *testing.T) {
	store := memory.New()
	enricher := &fakeEnricher{rec: domain.Record{"skills": []any{"Go", "Kubernetes"}}}
	svc := newService(store, WithEnricher(enricher))
	ctx := context.Background()

	existing, err := store.InsertCandidate(ctx, domain.Candidate{
		TenantID:    "t1",
		Email:       "j.doe@x.com",
		LinkedinURL: "https://linkedin.com/in/jd",
		Skills:      []string{"Go"},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.ProcessCandidate(ctx, "t1", domain.Record{"email": "J.Doe@x.com", "linkedinUrl": nil})
	if err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}
	if res.IsNew || res.CandidateID != existing.ID {
		t.Fatalf("ProcessCandidate() = %+v, want merge into %s", res, existing.ID)
	}
	if res.MatchedBy != domain.MatchedByEmail || res.Drift != nil || !res.Enriched {
		t.Errorf("ProcessCandidate() = %+v, want enriched email match without drift", res)
	}
	if !slices.Contains(res.Changes, "skills") {
		t.Errorf("Changes = %v, want skills listed", res.Changes)
	}

	got, _ := svc.Get(ctx, "t1", existing.ID)
	if diff := cmp.Diff([]string{"Go", "Kubernetes"}, got.Skills); diff != "" {
		t.Errorf("skills mismatch (-want +got):\n%s", diff)
	}
	if got.LinkedinURL != "https://linkedin.com/in/jd" {
		t.Errorf("LinkedinURL = %q, want unchanged", got.LinkedinURL)
	}
	if got.EnrichmentStatus != domain.EnrichmentCompleted {
		t.Errorf("EnrichmentStatus = %q, want completed", got.EnrichmentStatus)
	}
	if got.LastEnriched == nil || !got.LastEnriched.Equal(now) {
		t.Errorf("LastEnriched = %v, want %v", got.LastEnriched, now)
	}
	if n := len(store.Candidates("t1")); n != 1 {
		t.Errorf("stored candidates = %d, want 1", n)
	}
}

func TestProcessCandidateEnrichmentFailureIsNotFatal(t *testing.T) {
	store := memory.New()
	svc := newService(store, WithEnricher(&fakeEnricher{err: errors.New("vendor down")}))
	ctx := context.Background()
	existing, _ := store.InsertCandidate(ctx, domain.Candidate{TenantID: "t1", Email: "a@x.com", Title: "A"})

	res, err := svc.ProcessCandidate(ctx, "t1", domain.Record{"email": "a@x.com", "title": "B"})
	if err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}
	if res.Enriched {
		t.Errorf("Enriched = true, want false")
	}
	got, _ := svc.Get(ctx, "t1", existing.ID)
	if got.Title != "B" {
		t.Errorf("Title = %q, want B", got.Title)
	}
	if !slices.Contains(res.Changes, "title") {
		t.Errorf("Changes = %v, want title listed", res.Changes)
	}
}

func TestProcessCandidateEmailDrift(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	existing, _ := store.InsertCandidate(ctx, domain.Candidate{TenantID: "t1", Email: "old@x.com", LinkedinURL: "https://linkedin.com/in/a"})

	res, err := svc.ProcessCandidate(ctx, "t1", domain.Record{"email": "new@x.com", "linkedinUrl": "https://linkedin.com/in/a"})
	if err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}
	want := &domain.Drift{Field: "email", Old: "old@x.com", New: "new@x.com"}
	if diff := cmp.Diff(want, res.Drift); diff != "" {
		t.Errorf("drift mismatch (-want +got):\n%s", diff)
	}
	got, _ := svc.Get(ctx, "t1", existing.ID)
	if got.Email != "new@x.com" || got.AlternateEmail != "old@x.com" {
		t.Errorf("Email, AlternateEmail = %q, %q; want new@x.com, old@x.com", got.Email, got.AlternateEmail)
	}
}

func TestProcessCandidateTenantGuard(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	existing, _ := store.InsertCandidate(ctx, domain.Candidate{TenantID: "t1", Email: "a@x.com"})

	if _, err := svc.ProcessCandidate(ctx, "t1", domain.Record{"email": "a@x.com", "tenantId": "t2"}); err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}
	got, err := svc.Get(ctx, "t1", existing.ID)
	if err != nil || got.TenantID != "t1" {
		t.Errorf("Get() = %+v, %v; tenant must not change", got, err)
	}

	res, err := svc.ProcessCandidate(ctx, "t2", domain.Record{"email": "a@x.com"})
	if err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}
	if !res.IsNew {
		t.Errorf("same email in another tenant must create a new candidate")
	}
}

func TestProcessCandidateValidation(t *testing.T) {
	svc := newService(memory.New())
	tests := []struct {
		name   string
		tenant string
		rec    domain.Record
		want   error
	}{
		{"no identifiers", "t1", domain.Record{"name": "Ada"}, domain.ErrNoIdentifier},
		{"blank identifiers", "t1", domain.Record{"email": "  ", "linkedinUrl": ""}, domain.ErrNoIdentifier},
		{"no tenant", "", domain.Record{"email": "a@x.com"}, domain.ErrTenantRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ProcessCandidate(context.Background(), tt.tenant, tt.rec)
			if !errors.Is(err, tt.want) {
				t.Errorf("ProcessCandidate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

type failingStore struct {
	*memory.Store
	err error
}

func (f failingStore) FindCandidate(context.Context, string, domain.Lookup) (domain.Candidate, bool, error) {
	return domain.Candidate{}, false, f.err
}

type lockFailingStore struct {
	*memory.Store
	err error
}

func (f lockFailingStore) WithIdentityLock(context.Context, string, domain.Lookup, func(context.Context, ports.CandidateTx) error) error {
	return f.err
}

func TestProcessCandidateStorageErrorAborts(t *testing.T) {
	boom := errors.New("connection reset")
	store := failingStore{Store: memory.New(), err: boom}
	svc := New(store)

	_, err := svc.ProcessCandidate(context.Background(), "t1", domain.Record{"email": "a@x.com"})
	if !errors.Is(err, boom) {
		t.Fatalf("ProcessCandidate() error = %v, want %v", err, boom)
	}
	if n := len(store.Candidates("t1")); n != 0 {
		t.Errorf("stored candidates = %d, want none after a storage failure", n)
	}
}

func TestProcessCandidateConcurrentUploadsOfOnePerson(t *testing.T) {
	store := memory.New()
	svc := newService(store)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := domain.Record{"email": "same@x.com", "title": fmt.Sprintf("T%d", i)}
			if _, err := svc.ProcessCandidate(context.Background(), "t1", rec); err != nil {
				t.Errorf("ProcessCandidate() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if n := len(store.Candidates("t1")); n != 1 {
		t.Errorf("stored candidates = %d, want 1", n)
	}
}

// pausingStore holds the first candidate update made under an email-only
// identity lock until release is closed.
type pausingStore struct {
	*memory.Store
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausingStore) WithIdentityLock(ctx context.Context, tenantID string, ids domain.Lookup, fn func(context.Context, ports.CandidateTx) error) error {
	return p.Store.WithIdentityLock(ctx, tenantID, ids, func(ctx context.Context, tx ports.CandidateTx) error {
		if ids.LinkedinURL == "" {
			tx = pausingTx{CandidateTx: tx, p: p}
		}
		return fn(ctx, tx)
	})
}

type pausingTx struct {
	ports.CandidateTx
	p *pausingStore
}

func (t pausingTx) UpdateCandidate(ctx context.Context, tenantID, id string, rec domain.Record) (domain.Candidate, error) {
	t.p.once.Do(func() {
		close(t.p.reached)
		<-t.p.release
	})
	return t.CandidateTx.UpdateCandidate(ctx, tenantID, id, rec)
}

func TestProcessCandidateUploadsByDifferentIdentifiersKeepBothUpdates(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	store := &pausingStore{Store: mem, reached: make(chan struct{}), release: make(chan struct{})}
	svc := New(store, WithClock(func() time.Time { return now }))
	seed, err := mem.InsertCandidate(ctx, domain.Candidate{
		TenantID:    "t1",
		Email:       "a@x.com",
		LinkedinURL: "https://linkedin.com/in/a",
		Skills:      []string{"Go"},
	})
	if err != nil {
		t.Fatal(err)
	}

	byEmail := make(chan error, 1)
	go func() {
		_, err := svc.ProcessCandidate(ctx, "t1", domain.Record{"email": "a@x.com", "skills": []any{"Rust"}})
		byEmail <- err
	}()
	<-store.reached

	byLinkedin := make(chan error, 1)
	go func() {
		_, err := svc.ProcessCandidate(ctx, "t1", domain.Record{"linkedinUrl": "https://linkedin.com/in/a", "skills": []any{"Kubernetes"}})
		byLinkedin <- err
	}()
	select {
	case err := <-byLinkedin:
		t.Fatalf("linkedin upload finished while the email upload held the candidate (err = %v)", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(store.release)

	if err := <-byEmail; err != nil {
		t.Fatalf("email upload error = %v", err)
	}
	if err := <-byLinkedin; err != nil {
		t.Fatalf("linkedin upload error = %v", err)
	}
	got, err := svc.Get(ctx, "t1", seed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Go", "Rust", "Kubernetes"}, got.Skills); diff != "" {
		t.Errorf("skills mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessCandidateCoercesLooseFieldTypes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(store)

	res, err := svc.ProcessCandidate(ctx, "t1", domain.Record{"email": "a@x.com", "skills": "Go"})
	if err != nil {
		t.Fatalf("create error = %v", err)
	}
	if _, err := svc.ProcessCandidate(ctx, "t1", domain.Record{
		"email":               "a@x.com",
		"linkedinConnections": "500+",
		"experience":          "CTO at Acme",
	}); err != nil {
		t.Fatalf("merge error = %v", err)
	}

	got, err := svc.Get(ctx, "t1", res.CandidateID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LinkedinConnections != 500 {
		t.Errorf("LinkedinConnections = %d, want 500", got.LinkedinConnections)
	}
	if diff := cmp.Diff([]string{"Go"}, got.Skills); diff != "" {
		t.Errorf("skills mismatch (-want +got):\n%s", diff)
	}
	if len(got.Experience) != 0 {
		t.Errorf("Experience = %+v, want the unreadable value dropped", got.Experience)
	}
}

func TestProcessCandidateKeepsStoredExperience(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newService(store)
	exp := []domain.Experience{{Title: "CTO", Company: "Acme", Description: "Team lead"}}
	c, err := store.InsertCandidate(ctx, domain.Candidate{TenantID: "t1", Email: "a@x.com", Experience: exp})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ProcessCandidate(ctx, "t1", domain.Record{"email": "a@x.com", "location": "Paris"}); err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}
	got, _ := svc.Get(ctx, "t1", c.ID)
	if diff := cmp.Diff(exp, got.Experience); diff != "" {
		t.Errorf("experience mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessBatch(t *testing.T) {
	store := memory.New()
	enricher := &fakeEnricher{rec: domain.Record{"linkedinHeadline": "Builder"}}
	svc := newService(store, WithEnricher(enricher))
	ctx := context.Background()
	if _, err := store.InsertCandidate(ctx, domain.Candidate{TenantID: "t1", Email: "known@x.com", LinkedinURL: "https://linkedin.com/in/k"}); err != nil {
		t.Fatal(err)
	}

	rows := []domain.Record{
		{"email": "known@x.com", "name": "Known"},
		{"email": "new@x.com"},
		{"name": "No identifiers"},
		{"linkedinUrl": "https://linkedin.com/in/k", "name": "Known Again"},
	}
	sum, err := svc.ProcessBatch(ctx, "t1", rows)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if sum.Created != 1 || sum.Merged != 2 || sum.Skipped != 1 || sum.Failed != 0 {
		t.Errorf("ProcessBatch() = %+v", sum)
	}
	if len(sum.Errors) != 1 || sum.Errors[0].Row != 3 {
		t.Errorf("Errors = %+v, want row 3 reported", sum.Errors)
	}
	if enricher.calls != 1 {
		t.Errorf("vendor calls = %d, want 1 for a person seen twice in one batch", enricher.calls)
	}
}

func TestProcessBatchCancelled(t *testing.T) {
	svc := newService(memory.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.ProcessBatch(ctx, "t1", []domain.Record{{"email": "a@x.com"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ProcessBatch() error = %v, want context.Canceled", err)
	}
}

func TestRescore(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		analyst ports.Analyst
		wantH   float64 // 0 means the heuristic value
		wantAI  string
	}{
		{"heuristic", nil, 0, ""},
		{"analyst overrides", fakeAnalyst{a: domain.Assessment{Hireability: 72, Summary: "Strong backend"}}, 72, "Strong backend"},
		{"analyst failure keeps heuristic", fakeAnalyst{err: errors.New("quota")}, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			var opts []Option
			if tt.analyst != nil {
				opts = append(opts, WithAnalyst(tt.analyst))
			}
			svc := newService(store, opts...)
			ago := now.Add(-24 * time.Hour)
			c, _ := store.InsertCandidate(ctx, domain.Candidate{
				TenantID:            "t1",
				Email:               "a@x.com",
				OpenToWork:          true,
				LinkedinLastActive:  &ago,
				LinkedinConnections: 800,
				LinkedinNotes:       string(make([]byte, 600)),
				Summary:             "Backend engineer with a decade of distributed systems and platform work.",
				Skills:              []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n", "o"},
			})

			wantH := tt.wantH
			if wantH == 0 {
				wantH = svc.ComputeScores(c).Hireability
			}
			got, err := svc.Rescore(ctx, "t1", c.ID)
			if err != nil {
				t.Fatalf("Rescore() error = %v", err)
			}
			if got.HireabilityScore != wantH {
				t.Errorf("HireabilityScore = %v, want %v", got.HireabilityScore, wantH)
			}
			if got.AISummary != tt.wantAI {
				t.Errorf("AISummary = %q, want %q", got.AISummary, tt.wantAI)
			}
			if got.Priority != domain.PriorityHigh {
				t.Errorf("Priority = %q, want High", got.Priority)
			}
		})
	}
}

func TestEnrich(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		store := memory.New()
		svc := newService(store, WithEnricher(&fakeEnricher{rec: domain.Record{"linkedinHeadline": "Builder", "linkedinConnections": 300.0}}))
		c, _ := store.InsertCandidate(ctx, domain.Candidate{TenantID: "t1", LinkedinURL: "https://linkedin.com/in/a", EnrichmentStatus: domain.EnrichmentPending})

		got, err := svc.Enrich(ctx, "t1", c.ID)
		if err != nil {
			t.Fatalf("Enrich() error = %v", err)
		}
		if got.EnrichmentStatus != domain.EnrichmentCompleted || got.LinkedinHeadline != "Builder" || got.LinkedinConnections != 300 {
			t.Errorf("Enrich() = %+v", got)
		}
	})

	t.Run("merge fails", func(t *testing.T) {
		boom := errors.New("deadlock detected")
		mem := memory.New()
		svc := New(lockFailingStore{Store: mem, err: boom}, WithEnricher(&fakeEnricher{rec: domain.Record{"linkedinHeadline": "Builder"}}))
		c, _ := mem.InsertCandidate(ctx, domain.Candidate{TenantID: "t1", Email: "a@x.com", EnrichmentStatus: domain.EnrichmentPending})

		if _, err := svc.Enrich(ctx, "t1", c.ID); !errors.Is(err, boom) {
			t.Fatalf("Enrich() error = %v, want %v", err, boom)
		}
		got, _ := svc.Get(ctx, "t1", c.ID)
		if got.EnrichmentStatus != domain.EnrichmentFailed {
			t.Errorf("EnrichmentStatus = %q, want failed", got.EnrichmentStatus)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		store := memory.New()
		svc := newService(store, WithEnricher(&fakeEnricher{}))
		c, _ := store.InsertCandidate(ctx, domain.Candidate{TenantID: "t1", Email: "a@x.com", EnrichmentStatus: domain.EnrichmentPending})

		if _, err := svc.Enrich(ctx, "t1", c.ID); !errors.Is(err, domain.ErrEnrichmentUnavailable) {
			t.Fatalf("Enrich() error = %v, want ErrEnrichmentUnavailable", err)
		}
		got, _ := svc.Get(ctx, "t1", c.ID)
		if got.EnrichmentStatus != domain.EnrichmentFailed {
			t.Errorf("EnrichmentStatus = %q, want failed", got.EnrichmentStatus)
		}
	})
}

func TestGetOtherTenantIsNotFound(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	c, _ := store.InsertCandidate(context.Background(), domain.Candidate{TenantID: "t1", Email: "a@x.com"})
	if _, err := svc.Get(context.Background(), "t2", c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
