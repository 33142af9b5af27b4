// Package prefilter implements the cheap heuristic gate that decides
// whether a raw item is worth sending through the model pipeline at all.
package prefilter

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/agendad/internal/model"
)

// Priority orders work for the coordinator. It is informational only and
// never blocks an item.
type Priority string

const (
	PriorityRealtime Priority = "realtime"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Item is one raw captured record, before batching.
type Item struct {
	Source        model.SourceType
	Sender        string
	Content       string
	SchemaVersion int // extraction schema version the item was last processed at
}

// Decision is the filter verdict for one item.
type Decision struct {
	Process    bool
	Priority   Priority
	SkipReason string
}

func process(p Priority) Decision { return Decision{Process: true, Priority: p} }
func skip(reason string) Decision { return Decision{SkipReason: reason} }

// Config tunes the filter. Zero values fall back to defaults.
type Config struct {
	MinContentLength int
	DuplicateTTL     time.Duration
	SchemaVersion    int // current extraction schema version
	MessageThreshold float64
	NotesThreshold   float64
}

const (
	defaultMinContentLength = 12
	defaultDuplicateTTL     = 24 * time.Hour
	defaultSchemaVersion    = 1
	defaultMessageThreshold = 1.0
	defaultNotesThreshold   = 1.5
)

// Filter applies universal rejects, per-source deny lists, and an
// actionability score. Duplicate state is confined behind a mutex.
type Filter struct {
	cfg  Config
	mu   sync.Mutex
	seen map[string]time.Time

	now func() time.Time // test hook
}

// New creates a Filter with defaults filled in.
func New(cfg Config) *Filter {
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = defaultMinContentLength
	}
	if cfg.DuplicateTTL <= 0 {
		cfg.DuplicateTTL = defaultDuplicateTTL
	}
	if cfg.SchemaVersion <= 0 {
		cfg.SchemaVersion = defaultSchemaVersion
	}
	if cfg.MessageThreshold <= 0 {
		cfg.MessageThreshold = defaultMessageThreshold
	}
	if cfg.NotesThreshold <= 0 {
		cfg.NotesThreshold = defaultNotesThreshold
	}
	return &Filter{
		cfg:  cfg,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Check decides whether item should be processed, and at what priority.
func (f *Filter) Check(item Item) Decision {
	content := strings.TrimSpace(item.Content)

	// Universal rejects, cheapest first.
	if len(content) < f.cfg.MinContentLength {
		return skip("content too short")
	}
	if item.SchemaVersion >= f.cfg.SchemaVersion {
		return skip("already extracted at current schema version")
	}
	if f.isDuplicate(content) {
		return skip("duplicate content")
	}

	switch item.Source {
	case model.SourceCalendar:
		// Already structured; confirming it costs near nothing.
		return process(PriorityHigh)
	case model.SourceEmail:
		return f.checkEmail(item.Sender, content)
	case model.SourceNotes:
		return f.checkScored(content, f.cfg.NotesThreshold)
	default:
		return f.checkScored(content, f.cfg.MessageThreshold)
	}
}

// checkEmail applies sender and content deny lists before scoring.
func (f *Filter) checkEmail(sender, content string) Decision {
	lowSender := strings.ToLower(sender)
	for _, p := range senderDenyPatterns {
		if p.MatchString(lowSender) {
			return skip("automated sender")
		}
	}
	low := strings.ToLower(content)
	for _, kw := range promotionalKeywords {
		if strings.Contains(low, kw) {
			return skip("promotional content")
		}
	}
	for _, phrase := range automatedPhrases {
		if strings.Contains(low, phrase) {
			return skip("automated message")
		}
	}
	d := f.checkScored(content, f.cfg.MessageThreshold)
	if d.Process && d.Priority == PriorityNormal {
		// Email is rarely time-critical once it clears the deny lists.
		d.Priority = PriorityLow
	}
	return d
}

// checkScored gates on the actionability score against a per-source
// minimum threshold.
func (f *Filter) checkScored(content string, threshold float64) Decision {
	score := ActionableScore(content)
	if score < threshold {
		return skip("no actionable content")
	}
	low := strings.ToLower(content)
	if urgencyPattern.MatchString(low) {
		return process(PriorityRealtime)
	}
	if score >= 2*threshold {
		return process(PriorityHigh)
	}
	return process(PriorityNormal)
}

// isDuplicate records content and reports whether it was already seen
// within the TTL. Expired hashes are purged lazily.
func (f *Filter) isDuplicate(content string) bool {
	h := sha256.Sum256([]byte(content))
	key := hex.EncodeToString(h[:])

	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := f.now().Add(-f.cfg.DuplicateTTL)
	for k, t := range f.seen {
		if t.Before(cutoff) {
			delete(f.seen, k)
		}
	}
	if _, ok := f.seen[key]; ok {
		return true
	}
	f.seen[key] = f.now()
	return false
}

// Scoring tables. Weights tuned so a single strong signal clears the
// message threshold but weak signals must stack.
var actionKeywords = map[string]float64{
	"meet":        0.8,
	"meeting":     0.8,
	"call":        0.6,
	"lunch":       0.7,
	"dinner":      0.7,
	"coffee":      0.7,
	"appointment": 0.9,
	"deadline":    0.9,
	"due":         0.6,
	"remind":      0.8,
	"reminder":    0.8,
	"schedule":    0.8,
	"tomorrow":    0.7,
	"tonight":     0.7,
	"today":       0.5,
	"weekend":     0.4,
	"pick up":     0.6,
	"drop off":    0.6,
	"book":        0.4,
	"reserve":     0.6,
	"confirm":     0.5,
}

var imperativePhrases = []string{
	"let's",
	"lets ",
	"can you",
	"could you",
	"don't forget",
	"dont forget",
	"remember to",
	"we should",
	"want to",
	"need to",
	"make sure",
}

var (
	timePattern    = regexp.MustCompile(`(?i)\b\d{1,2}(:\d{2})?\s?(am|pm)\b|\b\d{1,2}:\d{2}\b`)
	datePattern    = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday|jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\b|\b\d{1,2}/\d{1,2}\b`)
	urgencyPattern = regexp.MustCompile(`\b(today|tonight|right now|asap)\b`)
)

var senderDenyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`no-?reply`),
	regexp.MustCompile(`donotreply`),
	regexp.MustCompile(`^notifications?@`),
	regexp.MustCompile(`^(marketing|newsletter|promo|offers|deals)@`),
}

var promotionalKeywords = []string{
	"unsubscribe",
	"% off",
	"limited time",
	"sale ends",
	"free shipping",
	"act now",
	"special offer",
}

var automatedPhrases = []string{
	"do not reply",
	"this is an automated",
	"automatically generated",
	"this email was sent automatically",
}

// ActionableScore is a weighted sum of keyword hits, time-pattern
// presence, question-mark density, and imperative-phrase presence.
func ActionableScore(content string) float64 {
	low := strings.ToLower(content)
	var score float64

	for kw, w := range actionKeywords {
		if strings.Contains(low, kw) {
			score += w
		}
	}
	if timePattern.MatchString(low) {
		score += 0.8
	}
	if datePattern.MatchString(low) {
		score += 0.5
	}
	if n := strings.Count(content, "?"); n > 0 {
		score += 0.3
		if len(content) > 0 && float64(n)/float64(len(content)) > 0.01 {
			score += 0.2
		}
	}
	for _, phrase := range imperativePhrases {
		if strings.Contains(low, phrase) {
			score += 0.4
			break
		}
	}
	return score
}
