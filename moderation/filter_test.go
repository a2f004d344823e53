package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilter_Mask(t *testing.T) {
	req := require.New(t)
	filter, err := NewFilter([]string{"refund", "scam", "idiot"}, '*')
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "This is a scam really",
			expected: "This is a **** really",
			words:    []string{"scam"},
		},
		{
			name:     "Multiple occurrences",
			input:    "scam scam",
			expected: "**** ****",
			words:    []string{"scam", "scam"},
		},
		{
			name:     "Leet speak and internal punctuation",
			input:    "You 1.d.1.0.t !",
			expected: "You *.*.*.*.* !",
			words:    []string{"idiot"},
		},
		{
			name:     "Uppercase",
			input:    "S-C-A-M again",
			expected: "*-*-*-* again",
			words:    []string{"scam"},
		},
		{
			name:     "Spaced out letters keep their spaces",
			input:    "what a s c a m",
			expected: "what a * * * *",
			words:    []string{"scam"},
		},
		{
			name:     "Accents around a match",
			input:    "Un été, scam",
			expected: "Un été, ****",
			words:    []string{"scam"},
		},
		{
			name:     "Nothing to mask",
			input:    "Where is my parcel?",
			expected: "Where is my parcel?",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := filter.Mask(tt.input)
			req.Equal(tt.expected, content)
			req.Equal(tt.words, words)
		})
	}
}

func TestFilter_Without_Words_Masks_Nothing(t *testing.T) {
	req := require.New(t)

	// Given only noise in the list
	filter, err := NewFilter([]string{"...", ",,,", ""}, '*')
	req.NoError(err)

	content, words := filter.Mask("Hello ...")
	req.Equal("Hello ...", content)
	req.Nil(words)

	var none *Filter
	content, _ = none.Mask("scam")
	req.Equal("scam", content)
}

func TestParseWords(t *testing.T) {
	req := require.New(t)
	req.Equal([]string{"scam", "idiot"}, ParseWords(" scam, ,idiot,"))
	req.Nil(ParseWords(""))
}
