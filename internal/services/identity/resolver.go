// Package identity finds the stored candidate an incoming record belongs to.
package identity

import (
	"context"
	"fmt"

	"recruitpipe/internal/domain"
	"recruitpipe/internal/ports"
)

// Resolution is the outcome of one lookup. Drift is reported, never applied.
type Resolution struct {
	Matched   bool
	Candidate domain.Candidate
	MatchedBy domain.MatchedBy
	Drift     *domain.Drift
}

type Resolver struct {
	store ports.CandidateReader
}

func New(store ports.CandidateReader) *Resolver { return &Resolver{store: store} }

// Resolve tries, in order: email and linkedin url together, email alone,
// linkedin url alone. The first hit wins. A miss is not an error; storage
// failures are.
func (r *Resolver) Resolve(ctx context.Context, email, linkedinURL, tenantID string) (Resolution, error) {
	if tenantID == "" {
		return Resolution{}, domain.ErrTenantRequired
	}
	email = domain.NormalizeEmail(email)
	linkedinURL = domain.NormalizeLinkedinURL(linkedinURL)

	if email != "" && linkedinURL != "" {
		c, found, err := r.store.FindCandidate(ctx, tenantID, domain.Lookup{Email: email, LinkedinURL: linkedinURL})
		if err != nil {
			return Resolution{}, fmt.Errorf("find by email and linkedin: %w", err)
		}
		if found {
			return Resolution{Matched: true, Candidate: c, MatchedBy: domain.MatchedByEmailAndLinkedIn}, nil
		}
	}

	if email != "" {
		c, found, err := r.store.FindCandidate(ctx, tenantID, domain.Lookup{Email: email})
		if err != nil {
			return Resolution{}, fmt.Errorf("find by email: %w", err)
		}
		if found {
			res := Resolution{Matched: true, Candidate: c, MatchedBy: domain.MatchedByEmail}
			if linkedinURL != "" && linkedinURL != c.LinkedinURL {
				res.Drift = &domain.Drift{Field: domain.FieldLinkedinURL, Old: c.LinkedinURL, New: linkedinURL}
			}
			return res, nil
		}
	}

	if linkedinURL != "" {
		c, found, err := r.store.FindCandidate(ctx, tenantID, domain.Lookup{LinkedinURL: linkedinURL})
		if err != nil {
			return Resolution{}, fmt.Errorf("find by linkedin: %w", err)
		}
		if found {
			res := Resolution{Matched: true, Candidate: c, MatchedBy: domain.MatchedByLinkedIn}
			if email != "" && email != c.Email {
				res.Drift = &domain.Drift{Field: domain.FieldEmail, Old: c.Email, New: email}
			}
			return res, nil
		}
	}

	return Resolution{}, nil
}
