package models

import "time"

type Session struct {
	ID           string    `json:"id"`
	UserID       *string   `json:"userId"`
	Escalated    bool      `json:"escalated"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

type MessageMetadata struct {
	TopFAQs []FAQSummary `json:"topFAQs"`
}

type Message struct {
	ID         int64            `json:"id"`
	SessionID  string           `json:"sessionId"`
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	Confidence *float64         `json:"confidence,omitempty"`
	Metadata   *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// SessionHistory is a session together with its full chronological history.
type SessionHistory struct {
	Session
	Messages []Message `json:"messages"`
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

type ChatResponse struct {
	Response     string       `json:"response"`
	Confidence   float64      `json:"confidence"`
	SessionID    string       `json:"sessionId"`
	Escalated    bool         `json:"escalated"`
	RelevantFAQs []FAQSummary `json:"relevantFAQs"`
}
