package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agendad/internal/dedup"
	"github.com/fyrsmithlabs/agendad/internal/embeddings"
	"github.com/fyrsmithlabs/agendad/internal/llm"
	"github.com/fyrsmithlabs/agendad/internal/model"
)

const defaultCompressThreshold = 50

const storySystemPrompt = `%s

You summarize one day of a person's private conversations into a short
narrative. Prioritize, in order: concrete plans and events, tasks and
commitments, the people involved, and locations. Keep every date, time,
and place exactly as stated. Ignore small talk. Write in third person,
plain prose, no headings.`

// StoryAgent produces the daily narrative summary. It consults the input
// deduplicator first so an unchanged day is never re-summarized.
type StoryAgent struct {
	llm               Invoker
	dedup             *dedup.Deduplicator
	embedder          embeddings.Embedder
	compressThreshold int
	logger            *zap.Logger
}

// NewStory creates a StoryAgent. dedup and embedder may be nil, which
// disables input deduplication and its similarity path respectively.
func NewStory(inv Invoker, d *dedup.Deduplicator, emb embeddings.Embedder, compressThreshold int, logger *zap.Logger) *StoryAgent {
	if compressThreshold <= 0 {
		compressThreshold = defaultCompressThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoryAgent{
		llm:               inv,
		dedup:             d,
		embedder:          emb,
		compressThreshold: compressThreshold,
		logger:            logger.Named("story"),
	}
}

// Summarize turns a batch into a DailyStory. Returns ErrDuplicateContent
// when the batch matches recently processed input.
func (s *StoryAgent) Summarize(ctx context.Context, batch *model.RawConversationBatch) (*model.DailyStory, error) {
	transcript := batch.Transcript()

	var emb []float32
	if s.embedder != nil {
		var err error
		emb, err = s.embedder.Embed(ctx, transcript)
		if err != nil {
			s.logger.Warn("embedding failed, dedup falls back to hash only", zap.Error(err))
			emb = nil
		}
	}
	if s.dedup != nil && s.dedup.IsDuplicate(transcript, emb) {
		return nil, fmt.Errorf("%w: batch for %s", ErrDuplicateContent, model.DayKey(batch.Date))
	}

	narrative, err := s.llm.Invoke(ctx, llm.Request{
		System:      fmt.Sprintf(storySystemPrompt, refDateLine(batch.Date)),
		User:        transcript,
		Temperature: 0.5,
		UseCache:    true,
		Compress:    batch.MessageCount() > s.compressThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("summarizing day %s: %w", model.DayKey(batch.Date), err)
	}

	if s.dedup != nil {
		s.dedup.MarkProcessed(transcript, emb)
	}

	return &model.DailyStory{
		Date:              batch.Date,
		Narrative:         narrative,
		KeyPeople:         batch.Participants(),
		ConversationCount: len(batch.Threads),
	}, nil
}
