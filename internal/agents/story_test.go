package agents

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agendad/internal/dedup"
	"github.com/fyrsmithlabs/agendad/internal/model"
)

func testBatch(date time.Time) *model.RawConversationBatch {
	return &model.RawConversationBatch{
		Date: date,
		Threads: []model.ConversationThread{
			{
				ThreadID:     "t1",
				Source:       model.SourceMessages,
				Participants: []string{"Sam"},
				Messages: []model.MessageItem{
					{Content: "Want to grab coffee tomorrow at 2pm at Blue Bottle?", Sender: "Sam", Timestamp: date.Add(10 * time.Hour)},
					{Content: "Sure!", IsFromMe: true, Timestamp: date.Add(10*time.Hour + time.Minute)},
				},
			},
		},
	}
}

func TestStorySummarize(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{"Sam and the owner agreed to get coffee tomorrow at 2pm at Blue Bottle."}}
	agent := NewStory(inv, nil, nil, 0, nil)

	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local)
	story, err := agent.Summarize(context.Background(), testBatch(date))
	require.NoError(t, err)

	assert.Equal(t, 1, story.ConversationCount)
	assert.Equal(t, []string{"Sam"}, story.KeyPeople)
	assert.Contains(t, story.Narrative, "coffee tomorrow at 2pm")

	// The reference date leads the system prompt.
	require.Len(t, inv.requests, 1)
	assert.True(t, strings.HasPrefix(inv.requests[0].System, "Today's date is 2025-01-01 (Wednesday)."))
	assert.True(t, inv.requests[0].UseCache)
	assert.False(t, inv.requests[0].Compress, "small batch must not request compression")
}

func TestStoryDuplicateContent(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{"narrative"}}
	d := dedup.New(0, 0)
	agent := NewStory(inv, d, nil, 0, nil)

	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local)
	_, err := agent.Summarize(context.Background(), testBatch(date))
	require.NoError(t, err)

	_, err = agent.Summarize(context.Background(), testBatch(date))
	assert.ErrorIs(t, err, ErrDuplicateContent)
	assert.Len(t, inv.requests, 1, "duplicate batch must not reach the model")
}

func TestStoryCompressesLargeBatches(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{"narrative"}}
	agent := NewStory(inv, nil, nil, 3, nil)

	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local)
	batch := testBatch(date)
	for i := 0; i < 5; i++ {
		batch.Threads[0].Messages = append(batch.Threads[0].Messages,
			model.MessageItem{Content: "more chatter", Sender: "Sam", Timestamp: date})
	}

	_, err := agent.Summarize(context.Background(), batch)
	require.NoError(t, err)
	assert.True(t, inv.requests[0].Compress)
}
