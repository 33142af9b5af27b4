package compression

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompressKeepsActionableSentences(t *testing.T) {
	c := New(nil)
	c.sampleBudget = 0 // isolate the priority selection

	var b strings.Builder
	b.WriteString("Let's meet for lunch tomorrow at 1pm near the office.\n")
	for i := 0; i < 40; i++ {
		b.WriteString("We talked about the weather and nothing else happened here.\n")
	}
	b.WriteString("Don't forget the dentist appointment on Friday.\n")

	out, stats := c.Compress(b.String())

	assert.Contains(t, out, "lunch tomorrow at 1pm")
	assert.Contains(t, out, "dentist appointment on Friday")
	assert.NotContains(t, out, "weather")
	assert.Less(t, stats.CompressedChars, stats.OriginalChars)
	assert.Less(t, stats.Ratio, 1.0)
}

func TestCompressSamplesRemainder(t *testing.T) {
	c := New(nil)

	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("Filler sentence with no scheduling content at all in it.\n")
	}
	out, stats := c.Compress(b.String())

	// Some filler survives as context, but bounded by the sample budget.
	assert.Greater(t, stats.KeptSentences, 0)
	assert.LessOrEqual(t, stats.KeptSentences, c.sampleBudget)
	assert.Less(t, len(out), stats.OriginalChars)
}

func TestCompressSmallInputUntouched(t *testing.T) {
	c := New(nil)
	in := "Coffee tomorrow at 2pm? Sure, see you there at the usual spot."
	out, stats := c.Compress(in)
	assert.Equal(t, in, out)
	assert.Equal(t, 1.0, stats.Ratio)
}

func TestCompressEmptyInput(t *testing.T) {
	c := New(nil)
	out, stats := c.Compress("")
	assert.Equal(t, "", out)
	assert.Equal(t, 0, stats.TotalSentences)
}
