// Package source reads raw conversation threads from a local spool
// directory, one JSON-lines file per calendar day, and applies the
// deterministic pre-filter before anything reaches a model.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agendad/internal/model"
	"github.com/fyrsmithlabs/agendad/internal/prefilter"
)

// maxLineBytes bounds a single spool line. Threads larger than this are
// malformed exports, not real conversations.
const maxLineBytes = 1 << 20

// SpoolSource reads day files named YYYY-MM-DD.jsonl from a directory.
// Each line is one serialized model.ConversationThread.
type SpoolSource struct {
	dir    string
	filter *prefilter.Filter
	logger *zap.Logger
}

// NewSpool creates a SpoolSource. filter may be nil, which admits every
// thread.
func NewSpool(dir string, filter *prefilter.Filter, logger *zap.Logger) (*SpoolSource, error) {
	if dir == "" {
		return nil, fmt.Errorf("spool directory required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("spool directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("spool path %s is not a directory", dir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpoolSource{dir: dir, filter: filter, logger: logger.Named("source")}, nil
}

// BatchForDay reads and filters one day's threads, ordered most urgent
// first per the pre-filter's priority. A missing day file is an empty
// day, not an error.
func (s *SpoolSource) BatchForDay(ctx context.Context, date time.Time) (*model.RawConversationBatch, error) {
	batch := &model.RawConversationBatch{Date: date}

	path := filepath.Join(s.dir, model.DayKey(date)+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return batch, nil
		}
		return nil, fmt.Errorf("opening spool file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	skipped := 0
	priorities := map[string]prefilter.Priority{}
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var thread model.ConversationThread
		if err := json.Unmarshal([]byte(line), &thread); err != nil {
			s.logger.Warn("skipping malformed spool line",
				zap.String("file", path), zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		if len(thread.Messages) == 0 {
			continue
		}
		sortMessages(thread.Messages)

		priority := prefilter.PriorityNormal
		if s.filter != nil {
			decision := s.filter.Check(prefilter.Item{
				Source:  thread.Source,
				Sender:  firstSender(thread),
				Content: threadContent(thread),
			})
			if !decision.Process {
				skipped++
				s.logger.Debug("pre-filter skipped thread",
					zap.String("thread_id", thread.ThreadID),
					zap.String("reason", decision.SkipReason))
				continue
			}
			priority = decision.Priority
		}
		priorities[thread.ThreadID] = priority
		batch.Threads = append(batch.Threads, thread)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading spool file %s: %w", path, err)
	}

	// Most urgent threads lead the transcript; spool order breaks ties.
	sort.SliceStable(batch.Threads, func(i, j int) bool {
		return priorityRank(priorities[batch.Threads[i].ThreadID]) <
			priorityRank(priorities[batch.Threads[j].ThreadID])
	})

	s.logger.Debug("day batch built",
		zap.String("day", model.DayKey(date)),
		zap.Int("threads", len(batch.Threads)),
		zap.Int("skipped", skipped),
		zap.Int("messages", batch.MessageCount()))
	return batch, nil
}

func priorityRank(p prefilter.Priority) int {
	switch p {
	case prefilter.PriorityRealtime:
		return 0
	case prefilter.PriorityHigh:
		return 1
	case prefilter.PriorityLow:
		return 3
	default:
		return 2
	}
}

func sortMessages(msgs []model.MessageItem) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

// firstSender returns the first participant who is not the owner, for the
// pre-filter's sender deny lists.
func firstSender(t model.ConversationThread) string {
	for _, m := range t.Messages {
		if !m.IsFromMe && m.Sender != "" {
			return m.Sender
		}
	}
	if len(t.Participants) > 0 {
		return t.Participants[0]
	}
	return ""
}

// threadContent joins a thread's message bodies so the pre-filter scores
// the conversation as a whole.
func threadContent(t model.ConversationThread) string {
	var sb strings.Builder
	for i, m := range t.Messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.Content)
	}
	return sb.String()
}
