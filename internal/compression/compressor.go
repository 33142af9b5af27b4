// Package compression implements best-effort lossy prompt compression.
// Sentences carrying action keywords, times, or dates are always kept; a
// budgeted sample of the remainder preserves surrounding context.
// Compression is never applied implicitly; callers opt in per request.
package compression

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Stats describes one compression pass.
type Stats struct {
	OriginalChars   int
	CompressedChars int
	TotalSentences  int
	KeptSentences   int
	Ratio           float64 // compressed/original, 1.0 when untouched
}

const (
	minSentenceLength    = 10
	defaultSampleBudget  = 12
	defaultMinimumUpside = 0.9 // skip compression that saves less than 10%
)

var (
	timePattern = regexp.MustCompile(`(?i)\b\d{1,2}(:\d{2})?\s?(am|pm)\b|\b\d{1,2}:\d{2}\b`)
	datePattern = regexp.MustCompile(`(?i)\b(today|tomorrow|tonight|monday|tuesday|wednesday|thursday|friday|saturday|sunday|next week|this week|weekend)\b|\b\d{1,2}/\d{1,2}\b|\b\d{4}-\d{2}-\d{2}\b`)
)

var actionKeywords = []string{
	"meet", "meeting", "call", "lunch", "dinner", "coffee", "appointment",
	"deadline", "due", "remind", "schedule", "pick up", "drop off",
	"confirm", "cancel", "reschedule", "visit", "party", "flight",
	"reservation", "need to", "have to", "don't forget",
}

// Compressor performs extractive prompt compression.
type Compressor struct {
	sampleBudget int
	logger       *zap.Logger
}

// New creates a Compressor. A nil logger is replaced with a no-op.
func New(logger *zap.Logger) *Compressor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compressor{
		sampleBudget: defaultSampleBudget,
		logger:       logger.Named("compression"),
	}
}

// Compress returns a reduced version of text, preserving sentence order.
// If compression would not meaningfully shrink the input, the original
// text is returned unchanged.
func (c *Compressor) Compress(text string) (string, Stats) {
	stats := Stats{OriginalChars: len(text), Ratio: 1.0}

	sentences := splitSentences(text)
	stats.TotalSentences = len(sentences)
	if len(sentences) == 0 {
		stats.CompressedChars = len(text)
		return text, stats
	}

	keep := make([]bool, len(sentences))
	kept := 0
	for i, s := range sentences {
		if isPriority(s) {
			keep[i] = true
			kept++
		}
	}

	// Sample the remainder evenly so the narrative keeps its shape.
	remainder := len(sentences) - kept
	if remainder > 0 && c.sampleBudget > 0 {
		budget := c.sampleBudget
		step := (remainder + budget - 1) / budget
		if step < 1 {
			step = 1
		}
		seen := 0
		for i := range sentences {
			if keep[i] {
				continue
			}
			if seen%step == 0 && budget > 0 {
				keep[i] = true
				kept++
				budget--
			}
			seen++
		}
	}

	var out []string
	for i, s := range sentences {
		if keep[i] {
			out = append(out, s)
		}
	}
	compressed := strings.Join(out, " ")

	if len(compressed) >= int(float64(len(text))*defaultMinimumUpside) {
		stats.CompressedChars = len(text)
		stats.KeptSentences = len(sentences)
		return text, stats
	}

	stats.CompressedChars = len(compressed)
	stats.KeptSentences = kept
	stats.Ratio = float64(len(compressed)) / float64(len(text))
	c.logger.Debug("compressed prompt",
		zap.Int("original_chars", stats.OriginalChars),
		zap.Int("compressed_chars", stats.CompressedChars),
		zap.Int("kept_sentences", kept),
		zap.Int("total_sentences", stats.TotalSentences),
		zap.Float64("ratio", stats.Ratio),
	)
	return compressed, stats
}

// isPriority reports whether a sentence must survive compression.
func isPriority(s string) bool {
	low := strings.ToLower(s)
	if timePattern.MatchString(low) || datePattern.MatchString(low) {
		return true
	}
	for _, kw := range actionKeywords {
		if strings.Contains(low, kw) {
			return true
		}
	}
	return false
}

// splitSentences breaks text on sentence boundaries and newlines, dropping
// fragments too short to carry meaning.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		current.Reset()
		if len(s) >= minSentenceLength {
			sentences = append(sentences, s)
		}
	}

	for _, r := range text {
		if r == '\n' {
			flush()
			continue
		}
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()
	return sentences
}
