package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractConfidence(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"plain annotation", `Sure thing. {"confidence": 0.42}`, 0.42},
		{"clamped high", `{"confidence": 1.7}`, 1.0},
		{"no annotation", "We are open 9 to 6.", 0.7},
		{"single quotes", `{'confidence': 0.3}`, 0.3},
		{"unquoted key", `{confidence:0.9}`, 0.9},
		{"first annotation wins", `{"confidence": 0.2} {"confidence": 0.8}`, 0.2},
		{"lone dot", `{"confidence": .}`, 0.7},
		{"leading decimal only", `{"confidence": 0.8.1}`, 0.8},
		{"negative does not match", `{"confidence": -0.5}`, 0.7},
		{"zero", `{"confidence": 0}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ExtractConfidence(tt.text), 1e-9)
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "strips annotation and trims",
			text: "We open at 9.\n\n{\"confidence\": 0.9}",
			want: "We open at 9.",
		},
		{
			name: "bold italic and code",
			text: "**Step one**: open *settings* and run `reset`.",
			want: "Step one: open settings and run reset.",
		},
		{
			name: "asterisk bullets",
			text: "Options:\n* email\n*   phone",
			want: "Options:\n• email\n• phone",
		},
		{
			name: "stray asterisks",
			text: "5 * 3 = 15",
			want: "5  3 = 15",
		},
		{
			name: "every annotation removed",
			text: `{"confidence": 0.1} ok {"confidence": 0.2}`,
			want: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.text))
		})
	}
}

func TestCleanTextIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"**bold** and *italic* and `code`",
		"* bullet\n* another\n{\"confidence\": 0.5}",
		"`` `x`",
		"{\"confidence\": `0.5`}",
		"{\"confidence\": 0.5{\"confidence\": 0.4}}",
		"  ***  \n * \n",
		"**a*b**c*",
	}
	for _, in := range inputs {
		once := CleanText(in)
		assert.Equal(t, once, CleanText(once), "input %q", in)
	}
}
