package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldEscalate(t *testing.T) {
	tests := []struct {
		message    string
		confidence float64
		want       bool
	}{
		{"I want a refund", 0.9, true},
		{"What are your hours?", 0.3, true},
		{"What are your hours?", 0.9, false},
		{"What are your hours?", 0.5, false},
		{"What are your hours?", 0.49, true},
		{"Let me SPEAK TO HUMAN now", 1.0, true},
		{"Can I talk to a human agent?", 0.95, true},
		{"This is UNACCEPTABLE", 0.8, true},
		{"I'd like to file a complaint", 0.8, true},
		{"Where is your manager", 0.8, true},
		{"How do I reset my password?", 0.7, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldEscalate(tt.message, tt.confidence), "%q at %.2f", tt.message, tt.confidence)
	}
}

func TestCustomEscalationPolicy(t *testing.T) {
	p := EscalationPolicy{Threshold: 0.8, Keywords: []string{"Chargeback"}}

	assert.True(t, p.ShouldEscalate("hello", 0.79))
	assert.True(t, p.ShouldEscalate("I will file a chargeback", 0.99))
	assert.False(t, p.ShouldEscalate("I want a refund", 0.9))
}
