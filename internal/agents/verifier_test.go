package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agendad/internal/model"
)

func verifierWorkingSet() ([]model.FormattedEvent, []model.FormattedTask) {
	events := []model.FormattedEvent{
		{Title: "Coffee with Sam", StartDate: refDate.AddDate(0, 0, 1), Confidence: model.ConfidenceHigh},
		{Title: "Imaginary gala", StartDate: refDate.AddDate(0, 0, 2), Confidence: model.ConfidenceLow},
	}
	tasks := []model.FormattedTask{
		{Title: "Call the plumber", Confidence: model.ConfidenceMedium},
	}
	return events, tasks
}

func TestCrossVerifyPartialAgreement(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{
		"AGREE: Coffee with Sam\nDISPUTE: Imaginary gala | not in the narrative\nAGREE: Call the plumber",
	}}
	agent := NewVerifier(inv, nil)

	events, tasks := verifierWorkingSet()
	result := agent.CrossVerify(context.Background(), events, tasks, testStory(), refDate)

	require.Len(t, result.AgreedEvents, 1)
	assert.Equal(t, "Coffee with Sam", result.AgreedEvents[0].Title)
	require.Len(t, result.AgreedTasks, 1)
	assert.Equal(t, []string{"Imaginary gala"}, result.DisputedItems)
	assert.InDelta(t, 2.0/3.0, result.ConsensusScore, 1e-9)
}

func TestCrossVerifyUnmentionedItemsCountAsAgreed(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{"AGREE: Coffee with Sam"}}
	agent := NewVerifier(inv, nil)

	events, tasks := verifierWorkingSet()
	result := agent.CrossVerify(context.Background(), events, tasks, testStory(), refDate)

	assert.Len(t, result.AgreedEvents, 2, "unmentioned items are kept")
	assert.Len(t, result.AgreedTasks, 1)
	assert.InDelta(t, 1.0, result.ConsensusScore, 1e-9)
}

func TestCrossVerifyFailSafeOnCallError(t *testing.T) {
	inv := &scriptedInvoker{err: errors.New("provider down")}
	agent := NewVerifier(inv, nil)

	events, tasks := verifierWorkingSet()
	result := agent.CrossVerify(context.Background(), events, tasks, testStory(), refDate)

	assert.Len(t, result.AgreedEvents, len(events))
	assert.Len(t, result.AgreedTasks, len(tasks))
	assert.Equal(t, 1.0, result.ConsensusScore)
}

func TestCrossVerifyFailSafeOnGarbage(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{"I think these all look plausible to me."}}
	agent := NewVerifier(inv, nil)

	events, tasks := verifierWorkingSet()
	result := agent.CrossVerify(context.Background(), events, tasks, testStory(), refDate)

	assert.Len(t, result.AgreedEvents, len(events), "unparseable output keeps everything")
	assert.Equal(t, 1.0, result.ConsensusScore)
}

func TestCrossVerifyFailSafeOnEmptyAgreedSet(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{
		"DISPUTE: Coffee with Sam | no\nDISPUTE: Imaginary gala | no\nDISPUTE: Call the plumber | no",
	}}
	agent := NewVerifier(inv, nil)

	events, tasks := verifierWorkingSet()
	result := agent.CrossVerify(context.Background(), events, tasks, testStory(), refDate)

	assert.Len(t, result.AgreedEvents, len(events), "disputing everything triggers the fail-safe")
	assert.Len(t, result.AgreedTasks, len(tasks))
}

func TestCrossVerifyEmptyInput(t *testing.T) {
	inv := &scriptedInvoker{}
	agent := NewVerifier(inv, nil)
	result := agent.CrossVerify(context.Background(), nil, nil, testStory(), refDate)
	assert.Equal(t, 1.0, result.ConsensusScore)
	assert.Empty(t, inv.requests)
}
