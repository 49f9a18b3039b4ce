// Package scoring rates candidates on a 0-10 scale across independent signals
// and classifies them into a recruiter priority.
package scoring

import (
	"math"
	"time"

	"recruitpipe/internal/domain"
)

// StabilityAnalyzer turns a work history into a pre-scaled 0-10 score.
type StabilityAnalyzer interface {
	Stability(experience []domain.Experience, now time.Time) float64
}

type Engine struct {
	stability StabilityAnalyzer
	now       func() time.Time
}

type Option func(*Engine)

// WithStability replaces the default tenure-based analyzer.
func WithStability(a StabilityAnalyzer) Option {
	return func(e *Engine) { e.stability = a }
}

// WithClock fixes the time used for recency and tenure calculations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(opts ...Option) *Engine {
	e := &Engine{stability: Tenure{}, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute scores c. Sub-scores without data (stability with no experience,
// skill match with no skills) are reported as 0 and left out of the average.
func (e *Engine) Compute(c domain.Candidate) domain.Scores {
	now := e.now()
	s := domain.Scores{
		OpenToWork:         OpenToWorkScore(c.OpenToWork, c.Summary, c.LinkedinSummary),
		PlatformEngagement: PlatformEngagementScore(c, now),
	}
	avail := []float64{s.OpenToWork, s.PlatformEngagement}

	s.JobStability = e.JobStabilityScore(c.Experience)
	if len(c.Experience) > 0 {
		avail = append(avail, s.JobStability)
	}
	s.SkillMatch = SkillMatchScore(c.Skills)
	if len(c.Skills) > 0 {
		avail = append(avail, s.SkillMatch)
	}

	var sum float64
	for _, v := range avail {
		sum += v
	}
	avg := sum / float64(len(avail))

	s.Priority = PriorityFor(avg)
	s.Average = round2(avg)
	s.Hireability = round2(avg * 10)
	return s
}

// JobStabilityScore is 0 for an empty history.
func (e *Engine) JobStabilityScore(experience []domain.Experience) float64 {
	if len(experience) == 0 {
		return 0
	}
	return round2(clamp(e.stability.Stability(experience, e.now())))
}

// SkillMatchScore buckets the raw skill count. It is a placeholder that does
// not look at any job description.
func SkillMatchScore(skills []string) float64 {
	n := len(skills)
	switch {
	case n >= 15:
		return 10
	case n >= 10:
		return 8
	case n >= 5:
		return 6
	case n >= 1:
		return 4
	}
	return 0
}

// PriorityFor maps an average sub-score to a priority. Boundaries are
// inclusive: 7 is High, 5 is Medium.
func PriorityFor(avg float64) domain.Priority {
	switch {
	case avg >= 7:
		return domain.PriorityHigh
	case avg >= 5:
		return domain.PriorityMedium
	}
	return domain.PriorityLow
}

// Apply copies s onto the scoring fields of a record update.
func Apply(s domain.Scores) domain.Record {
	return domain.Record{
		"openToWorkScore":         s.OpenToWork,
		"jobStabilityScore":       s.JobStability,
		"platformEngagementScore": s.PlatformEngagement,
		"skillMatchScore":         s.SkillMatch,
		"priority":                string(s.Priority),
		"hireabilityScore":        s.Hireability,
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(10, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
