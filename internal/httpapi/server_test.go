package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-rag/internal/models"
)

type fakeChat struct {
	calls   int
	lastReq models.ChatRequest
	resp    *models.ChatResponse
	err     error
	userID  string
	history map[string]*models.SessionHistory
}

func (f *fakeChat) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	f.calls++
	f.lastReq = req
	return f.resp, f.err
}

func (f *fakeChat) NewSession(ctx context.Context, userID string) (*models.Session, error) {
	f.userID = userID
	s := &models.Session{ID: "sess-1", CreatedAt: time.Unix(0, 0).UTC(), LastActiveAt: time.Unix(0, 0).UTC()}
	if userID != "" {
		s.UserID = &userID
	}
	return s, nil
}

func (f *fakeChat) Session(ctx context.Context, id string) (*models.SessionHistory, error) {
	h, ok := f.history[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	return h, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e))
	return e
}

func TestChatOK(t *testing.T) {
	fc := &fakeChat{resp: &models.ChatResponse{
		Response:     "We are open 9 to 6.",
		Confidence:   0.9,
		SessionID:    "sess-1",
		RelevantFAQs: []models.FAQSummary{{Question: "What are your business hours?", Score: 0.93}},
	}}
	h := NewServer(fc, ":0", 2000).Handler()

	rr := do(t, h, http.MethodPost, "/api/chat", `{"message":"When are you open?","sessionId":"sess-1","userId":"u1"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, models.ChatRequest{Message: "When are you open?", SessionID: "sess-1", UserID: "u1"}, fc.lastReq)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "We are open 9 to 6.", body["response"])
	assert.Equal(t, 0.9, body["confidence"])
	assert.Equal(t, "sess-1", body["sessionId"])
	assert.Equal(t, false, body["escalated"])
	faqs := body["relevantFAQs"].([]any)
	require.Len(t, faqs, 1)
	assert.Equal(t, "What are your business hours?", faqs[0].(map[string]any)["question"])
}

func TestChatValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing message", `{}`, models.CodeMissingMessage},
		{"blank message", `{"message":"   "}`, models.CodeMissingMessage},
		{"too long", fmt.Sprintf(`{"message":%q}`, strings.Repeat("x", 2001)), models.CodeMessageTooLong},
		{"bad json", `{"message":`, models.CodeInvalidRequest},
		{"oversized body", fmt.Sprintf(`{"message":%q}`, strings.Repeat("x", 20000)), models.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeChat{}
			rr := do(t, NewServer(fc, ":0", 2000).Handler(), http.MethodPost, "/api/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.code, decodeError(t, rr).Code)
			assert.Equal(t, 0, fc.calls)
		})
	}
}

func TestChatBodyLimit(t *testing.T) {
	fc := &fakeChat{resp: &models.ChatResponse{Response: "ok"}}
	h := NewServer(fc, ":0", 2000).Handler()

	// A maximal message of escaped multibyte runes stays under the cap.
	rr := do(t, h, http.MethodPost, "/api/chat", `{"message":"`+strings.Repeat(`\u00e9`, 2000)+`"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, fc.calls)
	assert.Equal(t, strings.Repeat("é", 2000), fc.lastReq.Message)

	rr = do(t, h, http.MethodPost, "/api/session", fmt.Sprintf(`{"userId":%q}`, strings.Repeat("u", 50000)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, models.CodeInvalidRequest, decodeError(t, rr).Code)
	assert.Empty(t, fc.userID)
}

func TestChatBackendErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"embedding", fmt.Errorf("%w: dial tcp", models.ErrEmbeddingUnavailable), http.StatusInternalServerError, models.CodeEmbeddingError},
		{"generation", fmt.Errorf("%w: boom", models.ErrGenerationUnavailable), http.StatusInternalServerError, models.CodeGenerationError},
		{"quota", fmt.Errorf("%w: %w", models.ErrGenerationUnavailable, models.ErrRateLimited), http.StatusServiceUnavailable, models.CodeQuotaExceeded},
		{"network", fmt.Errorf("%w: %w: %w", models.ErrGenerationUnavailable, models.ErrNetwork, context.DeadlineExceeded), http.StatusServiceUnavailable, models.CodeNetworkError},
		{"api key", fmt.Errorf("%w: %w: 401", models.ErrGenerationUnavailable, models.ErrInvalidAPIKey), http.StatusInternalServerError, models.CodeInvalidAPIKey},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, models.CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeChat{err: tt.err}
			rr := do(t, NewServer(fc, ":0", 2000).Handler(), http.MethodPost, "/api/chat", `{"message":"hi"}`)
			assert.Equal(t, tt.status, rr.Code)
			e := decodeError(t, rr)
			assert.Equal(t, tt.code, e.Code)
			assert.NotContains(t, e.Error, tt.err.Error())
		})
	}
}

func TestCreateSession(t *testing.T) {
	fc := &fakeChat{}
	h := NewServer(fc, ":0", 2000).Handler()

	rr := do(t, h, http.MethodPost, "/api/session", `{"userId":"u7"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "u7", fc.userID)

	var s models.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &s))
	assert.Equal(t, "sess-1", s.ID)
	require.NotNil(t, s.UserID)
	assert.Equal(t, "u7", *s.UserID)

	rr = do(t, h, http.MethodPost, "/api/session", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Empty(t, fc.userID)
}

func TestGetSession(t *testing.T) {
	conf := 0.8
	fc := &fakeChat{history: map[string]*models.SessionHistory{
		"sess-1": {
			Session: models.Session{ID: "sess-1"},
			Messages: []models.Message{
				{ID: 1, SessionID: "sess-1", Role: models.RoleUser, Content: "hi"},
				{ID: 2, SessionID: "sess-1", Role: models.RoleAssistant, Content: "hello", Confidence: &conf},
			},
		},
	}}
	h := NewServer(fc, ":0", 2000).Handler()

	rr := do(t, h, http.MethodGet, "/api/session/sess-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got models.SessionHistory
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "sess-1", got.ID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hi", got.Messages[0].Content)

	rr = do(t, h, http.MethodGet, "/api/session/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, models.CodeNotFound, decodeError(t, rr).Code)
}

func TestMethodNotAllowed(t *testing.T) {
	rr := do(t, NewServer(&fakeChat{}, ":0", 2000).Handler(), http.MethodGet, "/api/chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
