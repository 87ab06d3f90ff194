// Package httpapi exposes the chat and session endpoints over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"support-rag/internal/models"
	"support-rag/internal/rag"
)

// ChatService is the subset of rag.RAG the handlers need.
type ChatService interface {
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
	NewSession(ctx context.Context, userID string) (*models.Session, error)
	Session(ctx context.Context, id string) (*models.SessionHistory, error)
}

type Server struct {
	chat             ChatService
	addr             string
	maxMessageLength int
}

func NewServer(chat ChatService, addr string, maxMessageLength int) *Server {
	return &Server{chat: chat, addr: addr, maxMessageLength: maxMessageLength}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/session", s.handleCreateSession)
	mux.HandleFunc("GET /api/session/{id}", s.handleGetSession)
	return loggingMiddleware(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown failed")
		}
	}()

	log.Info().Str("addr", s.addr).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// bodyLimit caps request bodies at a multiple of the message limit so JSON
// escaping of a maximal message still fits.
func (s *Server) bodyLimit() int64 {
	n := s.maxMessageLength
	if n <= 0 {
		n = models.MaxMessageLength
	}
	return int64(n)*6 + 4096
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.bodyLimit())
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %w", models.ErrValidation, err))
		return
	}
	if err := rag.ValidateMessage(req.Message, s.maxMessageLength); err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.chat.Chat(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.bodyLimit())
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: %w", models.ErrValidation, err))
			return
		}
	}

	sess, err := s.chat.NewSession(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	hist, err := s.chat.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorMessages = map[string]string{
	models.CodeMissingMessage:  "Message is required",
	models.CodeMessageTooLong:  "Message is too long",
	models.CodeInvalidRequest:  "Invalid request body",
	models.CodeEmbeddingError:  "Failed to process message",
	models.CodeGenerationError: "Failed to generate response",
	models.CodeQuotaExceeded:   "Service temporarily unavailable, please try again later",
	models.CodeInvalidAPIKey:   "API key configuration issue, please contact support",
	models.CodeNetworkError:    "Network connectivity issue, please try again",
	models.CodeNotFound:        "Session not found",
	models.CodeInternalError:   "Internal server error",
}

// writeError maps err to its status and code. Backend error text is logged,
// never returned to the client.
func writeError(w http.ResponseWriter, err error) {
	code := models.ErrorCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", code).Msg("Request failed")
	} else {
		log.Debug().Err(err).Str("code", code).Msg("Request rejected")
	}
	writeJSON(w, status, errorResponse{Error: errorMessages[code], Code: code})
}

func statusFor(code string) int {
	switch code {
	case models.CodeMissingMessage, models.CodeMessageTooLong, models.CodeInvalidRequest:
		return http.StatusBadRequest
	case models.CodeNotFound:
		return http.StatusNotFound
	case models.CodeQuotaExceeded, models.CodeNetworkError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
