package scoring

import (
	"time"

	"recruitpipe/internal/domain"
)

const (
	weightRecency      = 0.4
	weightConnections  = 0.2
	weightNotes        = 0.2
	weightCompleteness = 0.2
)

// PlatformEngagementScore is a weighted sum of the engagement factors that
// have data. With none it returns a neutral 5.
func PlatformEngagementScore(c domain.Candidate, now time.Time) float64 {
	var score float64
	factors := 0

	if c.LinkedinLastActive != nil {
		score += weightRecency * recencyScore(now.Sub(*c.LinkedinLastActive))
		factors++
	}
	if c.LinkedinConnections > 0 {
		score += weightConnections * connectionsScore(c.LinkedinConnections)
		factors++
	}
	if len(c.LinkedinNotes) > 0 {
		score += weightNotes * notesScore(len(c.LinkedinNotes))
		factors++
	}
	if v, ok := completenessScore(c); ok {
		score += weightCompleteness * v
		factors++
	}

	if factors == 0 {
		return 5
	}
	return round2(clamp(score))
}

func recencyScore(since time.Duration) float64 {
	days := since.Hours() / 24
	switch {
	case days <= 7:
		return 10
	case days <= 30:
		return 8
	case days <= 90:
		return 6
	case days <= 180:
		return 4
	}
	return 2
}

func connectionsScore(n int) float64 {
	switch {
	case n >= 500:
		return 10
	case n >= 200:
		return 8
	case n >= 100:
		return 6
	case n >= 50:
		return 4
	}
	return 2
}

func notesScore(n int) float64 {
	switch {
	case n > 500:
		return 10
	case n > 200:
		return 8
	case n > 100:
		return 6
	case n > 0:
		return 4
	}
	return 2
}

// completenessScore averages the points of the profile checks that apply and
// doubles the result. ok is false when no profile data exists at all.
func completenessScore(c domain.Candidate) (float64, bool) {
	var points []float64
	if c.Summary != "" {
		if len(c.Summary) > 50 {
			points = append(points, 3)
		} else {
			points = append(points, 1)
		}
	}
	if len(c.Experience) > 0 {
		points = append(points, 3)
	}
	if len(c.Skills) > 0 {
		points = append(points, 2)
	}
	if c.Email != "" {
		points = append(points, 2)
	}
	if len(points) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range points {
		sum += p
	}
	return clamp(sum / float64(len(points)) * 2), true
}
