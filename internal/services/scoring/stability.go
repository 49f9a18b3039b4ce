package scoring

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"recruitpipe/internal/domain"
	"recruitpipe/internal/services/sanitize"
)

// Tenure is the default StabilityAnalyzer. It rewards long average tenure and
// penalizes frequent moves in the last five years.
type Tenure struct{}

var (
	yearsRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:yrs?|years?)`)
	monthsRe = regexp.MustCompile(`(?i)(\d+)\s*(?:mos?|months?)`)
)

func (Tenure) Stability(experience []domain.Experience, now time.Time) float64 {
	if len(experience) == 0 {
		return 0
	}
	var total float64
	measured, recent := 0, 0
	cutoff := now.AddDate(-5, 0, 0)
	for _, e := range experience {
		start, hasStart := sanitize.ParseTime(e.StartDate)
		if hasStart && start.After(cutoff) {
			recent++
		}
		if m, ok := tenureMonths(e, start, hasStart, now); ok {
			total += m
			measured++
		}
	}
	if measured == 0 {
		return 5
	}

	score := tenureBucket(total / float64(measured))
	if recent > 5 {
		score -= float64(recent - 5)
	}
	return clamp(score)
}

func tenureMonths(e domain.Experience, start time.Time, hasStart bool, now time.Time) (float64, bool) {
	if hasStart {
		end := now
		if t, ok := sanitize.ParseTime(e.EndDate); ok && !isOngoing(e.EndDate) {
			end = t
		}
		if end.Before(start) {
			return 0, false
		}
		return end.Sub(start).Hours() / 24 / 30.44, true
	}
	return durationMonths(e.Duration)
}

func isOngoing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "present", "current", "now":
		return true
	}
	return false
}

// durationMonths reads strings such as "2 yrs 3 mos" or "8 months".
func durationMonths(s string) (float64, bool) {
	var months float64
	found := false
	if m := yearsRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		months += float64(n * 12)
		found = true
	}
	if m := monthsRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		months += float64(n)
		found = true
	}
	return months, found
}

func tenureBucket(months float64) float64 {
	switch {
	case months >= 36:
		return 10
	case months >= 24:
		return 8
	case months >= 18:
		return 7
	case months >= 12:
		return 5
	case months >= 6:
		return 3
	}
	return 1
}
