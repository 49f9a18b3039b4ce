// Package candidates runs incoming candidate data through identity
// resolution, enrichment, merging and scoring.
package candidates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"recruitpipe/internal/domain"
	"recruitpipe/internal/ports"
	"recruitpipe/internal/services/enrichment"
	"recruitpipe/internal/services/identity"
	"recruitpipe/internal/services/merge"
	"recruitpipe/internal/services/sanitize"
	"recruitpipe/internal/services/scoring"
)

type Service struct {
	store    ports.CandidateRepository
	jobs     ports.JobRepository
	enricher ports.Enricher
	analyst  ports.Analyst
	scorer   *scoring.Engine
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithJobs(jobs ports.JobRepository) Option { return func(s *Service) { s.jobs = jobs } }

func WithEnricher(e ports.Enricher) Option { return func(s *Service) { s.enricher = e } }

func WithAnalyst(a ports.Analyst) Option { return func(s *Service) { s.analyst = a } }

func WithScorer(e *scoring.Engine) Option { return func(s *Service) { s.scorer = e } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(store ports.CandidateRepository, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.scorer == nil {
		s.scorer = scoring.New(scoring.WithClock(s.now))
	}
	return s
}

var _ ports.Pipeline = (*Service)(nil)

// ProcessCandidate resolves incoming against the tenant's candidates and
// either merges it into the match or creates a new record.
func (s *Service) ProcessCandidate(ctx context.Context, tenantID string, incoming domain.Record) (domain.ProcessResult, error) {
	return s.process(ctx, tenantID, incoming, enrichment.NewScratch(s.enricher, s.logger))
}

// ProcessBatch processes rows in order, sharing one enrichment memo. A row
// that fails is recorded and the batch continues; only cancellation stops it.
func (s *Service) ProcessBatch(ctx context.Context, tenantID string, rows []domain.Record) (domain.BatchSummary, error) {
	if tenantID == "" {
		return domain.BatchSummary{}, domain.ErrTenantRequired
	}
	scratch := enrichment.NewScratch(s.enricher, s.logger)
	sum := domain.BatchSummary{Results: []domain.ProcessResult{}}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := s.process(ctx, tenantID, row, scratch)
		switch {
		case errors.Is(err, domain.ErrNoIdentifier):
			sum.Skipped++
			sum.Errors = append(sum.Errors, domain.RowError{Row: i + 1, Message: err.Error()})
			continue
		case err != nil:
			sum.Failed++
			sum.Errors = append(sum.Errors, domain.RowError{Row: i + 1, Message: err.Error()})
			s.logger.Error("batch row failed", "tenant_id", tenantID, "row", i+1, "error", err)
			continue
		}
		if res.IsNew {
			sum.Created++
		} else {
			sum.Merged++
		}
		sum.Results = append(sum.Results, res)
	}
	s.logger.Info("batch processed", "tenant_id", tenantID, "created", sum.Created, "merged", sum.Merged,
		"failed", sum.Failed, "skipped", sum.Skipped, "enrichment_calls", scratch.Calls())
	return sum, nil
}

func (s *Service) process(ctx context.Context, tenantID string, incoming domain.Record, scratch *enrichment.Scratch) (domain.ProcessResult, error) {
	if tenantID == "" {
		return domain.ProcessResult{}, domain.ErrTenantRequired
	}
	rec := s.coerce(tenantID, "incoming", incoming)
	rec.NormalizeIdentity()
	ids := rec.Lookup()
	if ids.Email == "" && ids.LinkedinURL == "" {
		return domain.ProcessResult{}, domain.ErrNoIdentifier
	}

	// Look once without the lock so the vendor call happens outside any
	// transaction. The locked resolve below is authoritative.
	pre, err := identity.New(s.store).Resolve(ctx, ids.Email, ids.LinkedinURL, tenantID)
	if err != nil {
		return domain.ProcessResult{}, err
	}
	var enriched domain.Record
	if pre.Matched {
		enriched = s.coerce(tenantID, "enrichment", scratch.Fetch(ctx, enrichLookup(pre.Candidate, ids)))
	}

	var res domain.ProcessResult
	err = s.store.WithIdentityLock(ctx, tenantID, ids, func(ctx context.Context, tx ports.CandidateTx) error {
		found, err := identity.New(tx).Resolve(ctx, ids.Email, ids.LinkedinURL, tenantID)
		if err != nil {
			return err
		}
		if !found.Matched {
			c, err := s.create(ctx, tx, tenantID, rec)
			if err != nil {
				return err
			}
			res = domain.ProcessResult{CandidateID: c.ID, IsNew: true}
			return nil
		}
		if !pre.Matched || pre.Candidate.ID != found.Candidate.ID {
			enriched = nil
		}
		// The identity lock only covers the identifiers this record carries;
		// another upload may reach the same person through the other one.
		current, err := tx.LockCandidate(ctx, tenantID, found.Candidate.ID)
		if err != nil {
			return err
		}
		updated, err := s.mergeInto(ctx, tx, current, rec, enriched, found.MatchedBy)
		if err != nil {
			return err
		}
		changes, err := merge.Changes(current, updated)
		if err != nil {
			return err
		}
		res = domain.ProcessResult{
			CandidateID: updated.ID,
			MatchedBy:   found.MatchedBy,
			Drift:       found.Drift,
			Changes:     changes,
			Enriched:    len(enriched) > 0,
		}
		return nil
	})
	if err != nil {
		return domain.ProcessResult{}, fmt.Errorf("process candidate: %w", err)
	}

	if res.IsNew {
		s.enqueue(ctx, tenantID, res.CandidateID, ports.JobEnrich)
		s.logger.Info("candidate created", "tenant_id", tenantID, "candidate_id", res.CandidateID)
	} else {
		s.logger.Info("candidate merged", "tenant_id", tenantID, "candidate_id", res.CandidateID,
			"matched_by", res.MatchedBy, "enriched", res.Enriched, "changes", len(res.Changes))
	}
	return res, nil
}

func (s *Service) create(ctx context.Context, tx ports.CandidateTx, tenantID string, rec domain.Record) (domain.Candidate, error) {
	var c domain.Candidate
	if err := c.Apply(sanitize.Dates(rec)); err != nil {
		return domain.Candidate{}, err
	}
	c.ID = ""
	c.TenantID = tenantID
	c.AlternateEmail = ""
	c.EnrichmentStatus = domain.EnrichmentPending
	c.LastEnriched = nil
	c.EnrichedData = nil
	c.Skills = dedupe(c.Skills)
	applyScores(&c, s.scorer.Compute(c))
	return tx.InsertCandidate(ctx, c)
}

func (s *Service) mergeInto(ctx context.Context, tx ports.CandidateTx, existing domain.Candidate, incoming, enriched domain.Record, matchedBy domain.MatchedBy) (domain.Candidate, error) {
	merged, err := merge.Merge(existing, incoming, enriched, matchedBy, s.now())
	if err != nil {
		return domain.Candidate{}, err
	}
	updated, err := tx.UpdateCandidate(ctx, existing.TenantID, existing.ID, merged)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("update candidate: %w", err)
	}
	return tx.UpdateCandidate(ctx, existing.TenantID, existing.ID, scoring.Apply(s.scorer.Compute(updated)))
}

// Enrich fetches fresh profile data for a stored candidate and merges it in.
// The candidate is marked failed when nothing could be fetched.
func (s *Service) Enrich(ctx context.Context, tenantID, id string) (domain.Candidate, error) {
	c, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return domain.Candidate{}, err
	}
	if _, err := s.store.UpdateCandidate(ctx, tenantID, id, domain.Record{
		domain.FieldEnrichmentStatus: string(domain.EnrichmentInProgress),
	}); err != nil {
		return domain.Candidate{}, err
	}

	ids := domain.Lookup{Email: c.Email, LinkedinURL: c.LinkedinURL}
	enriched := s.coerce(tenantID, "enrichment", enrichment.NewScratch(s.enricher, s.logger).Fetch(ctx, enrichLookup(c, ids)))
	if len(enriched) == 0 {
		if err := s.markFailed(ctx, tenantID, id); err != nil {
			return domain.Candidate{}, err
		}
		return domain.Candidate{}, domain.ErrEnrichmentUnavailable
	}

	var out domain.Candidate
	err = s.store.WithIdentityLock(ctx, tenantID, ids, func(ctx context.Context, tx ports.CandidateTx) error {
		current, err := tx.LockCandidate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		out, err = s.mergeInto(ctx, tx, current, nil, enriched, "")
		return err
	})
	if err != nil {
		if ferr := s.markFailed(context.WithoutCancel(ctx), tenantID, id); ferr != nil {
			s.logger.Error("mark enrichment failed", "tenant_id", tenantID, "candidate_id", id, "error", ferr)
		}
		return domain.Candidate{}, fmt.Errorf("enrich candidate: %w", err)
	}
	s.logger.Info("candidate enriched", "tenant_id", tenantID, "candidate_id", id)
	return out, nil
}

func (s *Service) markFailed(ctx context.Context, tenantID, id string) error {
	_, err := s.store.UpdateCandidate(ctx, tenantID, id, domain.Record{
		domain.FieldEnrichmentStatus: string(domain.EnrichmentFailed),
	})
	return err
}

// coerce keeps the fields of rec that can be stored and logs the rest.
func (s *Service) coerce(tenantID, source string, rec domain.Record) domain.Record {
	if len(rec) == 0 {
		return rec
	}
	out, dropped := sanitize.Dates(rec).Coerce()
	if len(dropped) > 0 {
		s.logger.Warn("dropped mistyped fields", "tenant_id", tenantID, "source", source, "fields", dropped)
	}
	return out
}

// Get returns one candidate of the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id string) (domain.Candidate, error) {
	if tenantID == "" {
		return domain.Candidate{}, domain.ErrTenantRequired
	}
	return s.store.GetCandidate(ctx, tenantID, id)
}

// ComputeScores scores c without persisting anything.
func (s *Service) ComputeScores(c domain.Candidate) domain.Scores {
	return s.scorer.Compute(c)
}

// Rescore recomputes and stores the scoring fields of a candidate. When an
// analyst is configured its hireability replaces the heuristic one.
func (s *Service) Rescore(ctx context.Context, tenantID, id string) (domain.Candidate, error) {
	c, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return domain.Candidate{}, err
	}
	rec := scoring.Apply(s.scorer.Compute(c))
	if s.analyst != nil {
		a, err := s.analyst.Assess(ctx, c)
		if err != nil {
			s.logger.Warn("candidate analysis failed", "tenant_id", tenantID, "candidate_id", id, "error", err)
		} else {
			rec["hireabilityScore"] = a.Hireability
			if a.Summary != "" {
				rec["aiSummary"] = a.Summary
			}
		}
	}
	return s.store.UpdateCandidate(ctx, tenantID, id, rec)
}

// EnqueueRescore schedules a background rescore and returns the job id.
func (s *Service) EnqueueRescore(ctx context.Context, tenantID, id string) (string, error) {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return "", err
	}
	if s.jobs == nil {
		return "", errors.New("no job queue configured")
	}
	return s.jobs.Enqueue(ctx, tenantID, id, ports.JobScore)
}

func (s *Service) enqueue(ctx context.Context, tenantID, id, kind string) {
	if s.jobs == nil || (kind == ports.JobEnrich && s.enricher == nil) {
		return
	}
	if _, err := s.jobs.Enqueue(ctx, tenantID, id, kind); err != nil {
		s.logger.Warn("enqueue job failed", "tenant_id", tenantID, "candidate_id", id, "kind", kind, "error", err)
	}
}

// enrichLookup prefers the freshest identifiers: incoming first, then stored.
func enrichLookup(c domain.Candidate, ids domain.Lookup) domain.Lookup {
	by := domain.Lookup{Email: ids.Email, LinkedinURL: ids.LinkedinURL, Name: ids.Name, Company: ids.Company}
	if by.LinkedinURL == "" {
		by.LinkedinURL = c.LinkedinURL
	}
	if by.Email == "" {
		by.Email = c.Email
	}
	if by.Name == "" {
		by.Name = c.Name
	}
	if by.Company == "" {
		by.Company = c.Company
	}
	return by
}

func applyScores(c *domain.Candidate, s domain.Scores) {
	c.OpenToWorkScore = s.OpenToWork
	c.JobStabilityScore = s.JobStability
	c.PlatformEngagementScore = s.PlatformEngagement
	c.SkillMatchScore = s.SkillMatch
	c.Priority = s.Priority
	c.HireabilityScore = s.Hireability
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, 0, len(in))
	for _, v := range merge.Union(in) {
		out = append(out, v.(string))
	}
	return out
}
