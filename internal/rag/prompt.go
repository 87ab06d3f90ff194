package rag

import (
	"fmt"
	"strings"

	"support-rag/internal/models"
)

// BuildPrompt renders the instruction block, history, FAQ excerpts and the
// user message, in that order. History must already be chronological.
func BuildPrompt(userMessage string, faqs []models.RetrievedFAQ, history []models.Message) string {
	var historyText strings.Builder
	for i, msg := range history {
		if i > 0 {
			historyText.WriteString("\n")
		}
		fmt.Fprintf(&historyText, "%s: %s", strings.ToUpper(msg.Role), msg.Content)
	}

	excerpts := make([]string, 0, len(faqs))
	for i, faq := range faqs {
		excerpts = append(excerpts, fmt.Sprintf(models.FAQExcerptTemplate, i+1, faq.Question, faq.Answer))
	}

	h := historyText.String()
	if h == "" {
		h = models.NoHistoryPlaceholder
	}
	f := strings.Join(excerpts, "\n")
	if f == "" {
		f = models.NoFAQPlaceholder
	}

	return fmt.Sprintf(models.PromptTemplate, models.SystemPrompt, h, f, userMessage)
}
