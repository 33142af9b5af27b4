package llm

import (
	"regexp"
	"strings"
)

// Complexity classes route prompts to provider chains: cheap and fast
// providers handle simple prompts, more capable ones back up the rest.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

var (
	dateLikePattern = regexp.MustCompile(`(?i)\b(today|tomorrow|tonight|monday|tuesday|wednesday|thursday|friday|saturday|sunday|next week|this week)\b|\b\d{1,2}/\d{1,2}\b|\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}(:\d{2})?\s?(am|pm)\b`)

	ambiguityMarkers = []string{"maybe", "possibly", "might", "perhaps", "not sure", "thinking about"}

	eventKeywords = []string{
		"meet", "meeting", "call", "lunch", "dinner", "coffee",
		"appointment", "deadline", "schedule", "remind", "party",
		"flight", "reservation", "visit",
	}
)

// Classify estimates prompt complexity from word count, date-like
// substring count, ambiguity markers, and event-keyword density. It runs
// before any network call and costs only string scans.
func Classify(systemPrompt, userPrompt string) Complexity {
	low := strings.ToLower(userPrompt)
	words := len(strings.Fields(userPrompt))
	dates := len(dateLikePattern.FindAllString(low, -1))

	ambiguous := false
	for _, m := range ambiguityMarkers {
		if strings.Contains(low, m) {
			ambiguous = true
			break
		}
	}

	keywordHits := 0
	for _, kw := range eventKeywords {
		keywordHits += strings.Count(low, kw)
	}
	density := 0.0
	if words > 0 {
		density = float64(keywordHits) / float64(words)
	}

	switch {
	case words > 400 || dates >= 4 || (ambiguous && dates >= 2) || keywordHits >= 8:
		return ComplexityComplex
	case words > 150 || dates >= 2 || ambiguous || density > 0.05:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}
