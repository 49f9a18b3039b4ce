// Package enrichment wraps a profile source with a short-lived memo so one
// operation never asks the vendor for the same person twice.
package enrichment

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"recruitpipe/internal/domain"
	"recruitpipe/internal/ports"
)

// Scratch memoizes FetchProfile results for the lifetime of a single
// operation, such as one upload. Create a new Scratch per operation; it must
// not be shared across requests.
type Scratch struct {
	src    ports.Enricher
	logger *slog.Logger

	mu    sync.Mutex
	seen  map[string]domain.Record
	calls int
}

// NewScratch returns a memo over src. A nil src yields no enrichment.
func NewScratch(src ports.Enricher, logger *slog.Logger) *Scratch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scratch{src: src, logger: logger, seen: map[string]domain.Record{}}
}

// Fetch returns enrichment data for by, or nil when none could be obtained.
// Vendor failures are logged and memoized as "no data"; they never surface
// as errors.
func (s *Scratch) Fetch(ctx context.Context, by domain.Lookup) domain.Record {
	if s == nil || s.src == nil {
		return nil
	}
	key := memoKey(by)
	if key == "" {
		return nil
	}

	s.mu.Lock()
	if rec, ok := s.seen[key]; ok {
		s.mu.Unlock()
		if rec == nil {
			return nil
		}
		return rec.Clone()
	}
	s.mu.Unlock()

	rec, err := s.src.FetchProfile(ctx, by)
	if err != nil {
		s.logger.Warn("enrichment failed", "key", key, "error", err)
		rec = nil
	}
	if ctx.Err() != nil {
		// A cancelled fetch says nothing about the profile.
		return nil
	}

	s.mu.Lock()
	s.seen[key] = rec
	s.calls++
	s.mu.Unlock()

	if rec == nil {
		return nil
	}
	return rec.Clone()
}

// Calls reports how many vendor requests were made.
func (s *Scratch) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func memoKey(by domain.Lookup) string {
	switch {
	case by.LinkedinURL != "":
		return "url:" + by.LinkedinURL
	case by.Email != "":
		return "email:" + by.Email
	case by.Name != "":
		return "name:" + strings.ToLower(by.Name) + "|" + strings.ToLower(by.Company)
	}
	return ""
}
