// Package boltdb stores sessions, messages and FAQs in a single bbolt file.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"support-rag/internal/helper"
	"support-rag/internal/models"
)

var (
	bucketSessions = []byte("sessions")
	bucketMessages = []byte("messages")
	bucketFAQs     = []byte("faqs")
	bucketFAQIndex = []byte("faq_questions")
)

type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

type storedFAQ struct {
	ID        uint64    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Source    string    `json:"source"`
	Embedding []float64 `json:"embedding"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func New(path string) (*Store, error) {
	if err := helper.CreateFolder(filepath.Dir(path)); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSessions, bucketMessages, bucketFAQs, bucketFAQIndex} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
		}
		return json.Unmarshal(data, &sess)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) CreateSession(ctx context.Context, userID *string) (*models.Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &models.Session{ID: id, UserID: userID, CreatedAt: now, LastActiveAt: now}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(id)); err != nil {
			return err
		}
		return putJSON(tx.Bucket(bucketSessions), []byte(id), sess)
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) TouchSession(ctx context.Context, id string) error {
	return s.updateSession(id, func(sess *models.Session) bool {
		sess.LastActiveAt = s.now().UTC()
		return true
	})
}

// SetEscalated only writes when the flag is not yet set.
func (s *Store) SetEscalated(ctx context.Context, id string) error {
	return s.updateSession(id, func(sess *models.Session) bool {
		if sess.Escalated {
			return false
		}
		sess.Escalated = true
		return true
	})
}

func (s *Store) updateSession(id string, mutate func(*models.Session) bool) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
		}
		var sess models.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return err
		}
		if !mutate(&sess) {
			return nil
		}
		return putJSON(b, []byte(id), &sess)
	})
}

// AppendMessage keys messages by a per-session sequence so cursor order is
// insertion order.
func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketSessions).Get([]byte(msg.SessionID)) == nil {
			return fmt.Errorf("%w: %s", models.ErrSessionNotFound, msg.SessionID)
		}
		b, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(msg.SessionID))
		if err != nil {
			return err
		}

		createdAt := s.now().UTC()
		if _, last := b.Cursor().Last(); last != nil {
			var prev models.Message
			if err := json.Unmarshal(last, &prev); err == nil && createdAt.Before(prev.CreatedAt) {
				createdAt = prev.CreatedAt
			}
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		msg.ID = int64(seq)
		msg.CreatedAt = createdAt
		return putJSON(b, itob(seq), msg)
	})
}

func (s *Store) GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	var out []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages).Bucket([]byte(sessionID))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(out) < limit); k, v = c.Prev() {
			var m models.Message
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *Store) ListFAQs(ctx context.Context) ([]models.StoredFAQ, error) {
	var out []models.StoredFAQ
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFAQs).ForEach(func(k, v []byte) error {
			var f storedFAQ
			if err := json.Unmarshal(v, &f); err != nil {
				// keep the record so the corpus can report and skip it
				out = append(out, models.StoredFAQ{ID: strconv.FormatUint(binary.BigEndian.Uint64(k), 10), RawEmbedding: v})
				return nil
			}
			out = append(out, models.StoredFAQ{
				ID:           strconv.FormatUint(f.ID, 10),
				Question:     f.Question,
				Answer:       f.Answer,
				Source:       f.Source,
				RawEmbedding: f.Embedding,
			})
			return nil
		})
	})
	return out, err
}

// UpsertFAQ keeps the first id assigned to a question.
func (s *Store) UpsertFAQ(ctx context.Context, entry models.FAQEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		faqs := tx.Bucket(bucketFAQs)
		index := tx.Bucket(bucketFAQIndex)

		var id uint64
		if k := index.Get([]byte(entry.Question)); k != nil {
			id = binary.BigEndian.Uint64(k)
		} else {
			seq, err := faqs.NextSequence()
			if err != nil {
				return err
			}
			id = seq
			if err := index.Put([]byte(entry.Question), itob(id)); err != nil {
				return err
			}
		}

		return putJSON(faqs, itob(id), &storedFAQ{
			ID:        id,
			Question:  entry.Question,
			Answer:    entry.Answer,
			Source:    entry.Source,
			Embedding: entry.Embedding,
			UpdatedAt: s.now().UTC(),
		})
	})
}

// DropFAQs removes every stored FAQ. Sessions are kept.
func (s *Store) DropFAQs(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketFAQs, bucketFAQIndex} {
			if err := tx.DeleteBucket(b); err != nil {
				return fmt.Errorf("drop bucket %s: %w", b, err)
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return err
			}
		}
		return nil
	})
}

// Backup writes a consistent copy of the database to path.
func (s *Store) Backup(path string) error {
	if err := helper.CreateFolder(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = s.db.View(func(tx *bbolt.Tx) error {
		_, err := tx.WriteTo(f)
		return err
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
