package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		user string
		want Complexity
	}{
		{
			name: "short plain prompt",
			user: "Summarize this short note about groceries.",
			want: ComplexitySimple,
		},
		{
			name: "ambiguity marker",
			user: "We might possibly get together sometime, not sure when.",
			want: ComplexityModerate,
		},
		{
			name: "two date references",
			user: "Dinner on Friday, then brunch on Sunday with the family.",
			want: ComplexityModerate,
		},
		{
			name: "many dates and ambiguity",
			user: "Maybe Monday at 9am, or Tuesday at 2pm, possibly Friday, otherwise 3/14.",
			want: ComplexityComplex,
		},
		{
			name: "long prompt",
			user: strings.Repeat("word ", 450),
			want: ComplexityComplex,
		},
		{
			name: "dense event keywords",
			user: "meeting meeting call call lunch dinner coffee appointment schedule remind",
			want: ComplexityComplex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify("system", tt.user))
		})
	}
}
