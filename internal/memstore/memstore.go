// Package memstore keeps sessions, messages and FAQs in process memory.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"support-rag/internal/helper"
	"support-rag/internal/models"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	messages map[string][]models.Message
	faqs     []models.StoredFAQ
	nextID   int64
	now      func() time.Time
}

func New() *Store {
	return &Store{
		sessions: make(map[string]*models.Session),
		messages: make(map[string][]models.Message),
		now:      time.Now,
	}
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) CreateSession(ctx context.Context, userID *string) (*models.Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &models.Session{ID: id, UserID: userID, CreatedAt: now, LastActiveAt: now}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	cp := *sess
	return &cp, nil
}

func (s *Store) TouchSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	sess.LastActiveAt = s.now()
	return nil
}

// AppendMessage stores msg and fills in its ID and CreatedAt. Timestamps
// never go backwards within a session.
func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[msg.SessionID]; !ok {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, msg.SessionID)
	}

	s.nextID++
	msg.ID = s.nextID
	msg.CreatedAt = s.now()
	if prev := s.messages[msg.SessionID]; len(prev) > 0 {
		if last := prev[len(prev)-1].CreatedAt; msg.CreatedAt.Before(last) {
			msg.CreatedAt = last
		}
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], *msg)
	return nil
}

func (s *Store) GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.Message, len(all))
	copy(out, all)
	return out, nil
}

func (s *Store) SetEscalated(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	sess.Escalated = true
	return nil
}

// ListFAQs returns FAQs in insertion order.
func (s *Store) ListFAQs(ctx context.Context) ([]models.StoredFAQ, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.StoredFAQ, len(s.faqs))
	copy(out, s.faqs)
	return out, nil
}

// UpsertFAQ replaces the FAQ with the same question or appends a new one.
func (s *Store) UpsertFAQ(ctx context.Context, entry models.FAQEntry) error {
	rec := models.StoredFAQ{
		Question:     entry.Question,
		Answer:       entry.Answer,
		Source:       entry.Source,
		RawEmbedding: []float64(entry.Embedding),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.faqs {
		if s.faqs[i].Question == entry.Question {
			rec.ID = s.faqs[i].ID
			s.faqs[i] = rec
			return nil
		}
	}
	rec.ID = fmt.Sprintf("faq-%d", len(s.faqs)+1)
	s.faqs = append(s.faqs, rec)
	return nil
}

func (s *Store) DropFAQs(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faqs = nil
	return nil
}

// AddStoredFAQ appends a record as is, including malformed embeddings.
func (s *Store) AddStoredFAQ(rec models.StoredFAQ) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faqs = append(s.faqs, rec)
}
