package rag

import (
	"strings"

	"support-rag/internal/models"
)

// EscalationPolicy flags turns that need a human agent.
type EscalationPolicy struct {
	Threshold float64
	Keywords  []string
}

func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{
		Threshold: models.EscalationThreshold,
		Keywords:  models.EscalationKeywords,
	}
}

// ShouldEscalate is true when confidence is below the threshold or the
// message mentions any keyword, case-insensitively.
func (p EscalationPolicy) ShouldEscalate(message string, confidence float64) bool {
	if confidence < p.Threshold {
		return true
	}
	lower := strings.ToLower(message)
	for _, kw := range p.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func ShouldEscalate(message string, confidence float64) bool {
	return DefaultEscalationPolicy().ShouldEscalate(message, confidence)
}
