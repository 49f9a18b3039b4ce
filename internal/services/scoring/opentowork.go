package scoring

import "strings"

var (
	// primaryPhrases are explicit statements of availability.
	primaryPhrases = []string{
		"open to opportunit",
		"open to new opportunit",
		"open to work",
		"actively looking",
		"actively seeking",
		"looking for new",
		"seeking new",
		"immediately available",
		"available immediately",
		"available for hire",
		"in transition",
	}
	urgencyPhrases = []string{
		"asap",
		"urgent",
		"right away",
		"immediate start",
	}
	passivePhrases = []string{
		"would consider",
		"open to discuss",
		"open to conversations",
		"might consider",
		"happy to chat",
	}
)

// OpenToWorkScore reads availability from an explicit flag or, failing that,
// from phrases in the summaries. Without a primary phrase the score is a
// neutral 5.
func OpenToWorkScore(flag bool, summaries ...string) float64 {
	if flag {
		return 10
	}
	text := strings.ToLower(strings.Join(summaries, " "))

	var score float64
	matches := 0
	for _, p := range primaryPhrases {
		if strings.Contains(text, p) {
			score += 2
			matches++
		}
	}
	if matches == 0 {
		return 5
	}
	for _, p := range urgencyPhrases {
		if strings.Contains(text, p) {
			score++
		}
	}
	for _, p := range passivePhrases {
		if strings.Contains(text, p) {
			score += 0.5
		}
	}
	return round2(clamp(score))
}
