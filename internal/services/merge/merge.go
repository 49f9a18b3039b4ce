// Package merge combines a stored candidate with newly supplied and freshly
// enriched data.
package merge

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"recruitpipe/internal/domain"
	"recruitpipe/internal/services/sanitize"
)

// unionFields are merged as ordered sets across all three sources. Other
// lists (experience, education) follow plain precedence because their
// entries carry no identity of their own.
var unionFields = []string{domain.FieldSkills, domain.FieldCertifications}

// protected keys cannot be set by incoming or enriched data.
var protected = map[string]bool{
	domain.FieldID:               true,
	domain.FieldTenantID:         true,
	domain.FieldAlternateEmail:   true,
	domain.FieldCreatedAt:        true,
	domain.FieldUpdatedAt:        true,
	domain.FieldEnrichmentStatus: true,
	domain.FieldLastEnriched:     true,
	domain.FieldEnrichedData:     true,
}

// Merge overlays incoming and then enriched onto existing, so the freshest
// source wins field by field. Identity drift is applied afterwards according
// to how the record was matched, the tenant is pinned to the existing one,
// and the result is sanitized. enriched may be nil.
func Merge(existing domain.Candidate, incoming, enriched domain.Record, matchedBy domain.MatchedBy, now time.Time) (domain.Record, error) {
	base, err := domain.RecordOf(existing)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	out := base.Clone()
	overlay(out, incoming)
	overlay(out, enriched)

	applyDrift(out, existing, incoming, matchedBy)

	out[domain.FieldID] = existing.ID
	out[domain.FieldTenantID] = existing.TenantID

	for _, field := range unionFields {
		if u := Union(base[field], incoming[field], enriched[field]); len(u) > 0 {
			out[field] = u
		}
	}

	if len(enriched) > 0 {
		out[domain.FieldLastEnriched] = now.UTC()
		out[domain.FieldEnrichmentStatus] = string(domain.EnrichmentCompleted)
		out[domain.FieldEnrichedData] = map[string]any(enriched.Clone())
	}

	return sanitize.Record(out), nil
}

func overlay(dst, src domain.Record) {
	for k, v := range src {
		if protected[k] || !domain.IsPresent(v) {
			continue
		}
		dst[k] = v
	}
}

func applyDrift(out domain.Record, existing domain.Candidate, incoming domain.Record, matchedBy domain.MatchedBy) {
	switch matchedBy {
	case domain.MatchedByLinkedIn:
		email := domain.NormalizeEmail(incoming.String(domain.FieldEmail))
		if email == "" || email == existing.Email {
			return
		}
		if existing.Email != "" {
			out[domain.FieldAlternateEmail] = existing.Email
		}
		out[domain.FieldEmail] = email
	case domain.MatchedByEmail:
		url := domain.NormalizeLinkedinURL(incoming.String(domain.FieldLinkedinURL))
		if url == "" || url == existing.LinkedinURL {
			return
		}
		out[domain.FieldLinkedinURL] = url
	}
}

// Union returns the distinct items of lists in first-seen order. Strings are
// compared exactly; structured items by deep equality.
func Union(lists ...any) []any {
	var out []any
	seen := map[string]bool{}
	for _, l := range lists {
		for _, item := range toList(l) {
			if s, ok := item.(string); ok {
				if seen[s] {
					continue
				}
				seen[s] = true
				out = append(out, s)
				continue
			}
			if !containsDeep(out, item) {
				out = append(out, item)
			}
		}
	}
	return out
}

func toList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []any{t}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func containsDeep(list []any, item any) bool {
	for _, have := range list {
		if reflect.DeepEqual(have, item) {
			return true
		}
	}
	return false
}

// Changes lists the top-level fields that differ between two versions of a
// candidate, ignoring updatedAt.
func Changes(before, after domain.Candidate) ([]string, error) {
	b, err := domain.RecordOf(before)
	if err != nil {
		return nil, err
	}
	a, err := domain.RecordOf(after)
	if err != nil {
		return nil, err
	}
	var changed []string
	for k, v := range a {
		if k == domain.FieldUpdatedAt {
			continue
		}
		if !reflect.DeepEqual(b[k], v) {
			changed = append(changed, k)
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok && k != domain.FieldUpdatedAt {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed, nil
}
