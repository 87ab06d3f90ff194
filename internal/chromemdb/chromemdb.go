// Package chromemdb stores the FAQ corpus in a chromem-go collection.
package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"support-rag/internal/helper"
	"support-rag/internal/models"
)

const (
	compress = false

	metaQuestion = "question"
	metaSource   = "source"
)

var errNoEmbeddingFunc = errors.New("chromemdb: embeddings must be computed before insert")

// Store keeps one document per FAQ. Content holds the answer and the
// question and source live in the metadata. Document ids are dense
// (faq-00001, faq-00002, ...) so the collection can be listed in insertion
// order.
type Store struct {
	mu            sync.Mutex
	db            *chromem.DB
	collection    *chromem.Collection
	name          string
	dbPath        string
	encryptionKey string
}

// New opens the collection. With inMemory set nothing is written to dbPath
// until Export is called.
func New(dbPath, collectionName string, inMemory bool, encryptionKey string) (*Store, error) {
	var db *chromem.DB
	if inMemory {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, err
		}
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	s := &Store{db: db, name: collectionName, dbPath: dbPath, encryptionKey: encryptionKey}
	if err := s.openCollection(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) openCollection() error {
	c, err := s.db.GetOrCreateCollection(s.name, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("get or create collection: %w", err)
	}
	s.collection = c
	return nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

func docID(n int) string {
	return fmt.Sprintf("faq-%05d", n)
}

func (s *Store) ListFAQs(ctx context.Context) ([]models.StoredFAQ, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.documents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.StoredFAQ, len(docs))
	for i, d := range docs {
		out[i] = models.StoredFAQ{
			ID:           d.ID,
			Question:     d.Metadata[metaQuestion],
			Answer:       d.Content,
			Source:       d.Metadata[metaSource],
			RawEmbedding: d.Embedding,
		}
	}
	return out, nil
}

// UpsertFAQ replaces the document with the same question or appends a new one.
func (s *Store) UpsertFAQ(ctx context.Context, entry models.FAQEntry) error {
	if len(entry.Embedding) == 0 {
		return fmt.Errorf("upsert faq: %w", models.ErrInvalidEmbedding)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.documents(ctx)
	if err != nil {
		return err
	}
	id := docID(len(docs) + 1)
	for _, d := range docs {
		if d.Metadata[metaQuestion] == entry.Question {
			id = d.ID
			break
		}
	}

	vec := make([]float32, len(entry.Embedding))
	for i, x := range entry.Embedding {
		vec[i] = float32(x)
	}
	doc := chromem.Document{
		ID:        id,
		Content:   entry.Answer,
		Metadata:  map[string]string{metaQuestion: entry.Question, metaSource: entry.Source},
		Embedding: vec,
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// DropFAQs deletes the collection and starts an empty one.
func (s *Store) DropFAQs(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.collection.Count()
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	if err := s.openCollection(); err != nil {
		return err
	}
	log.Info().Int("deleted", n).Str("collection", s.name).Msg("Cleared FAQs")
	return nil
}

// Export writes the collection to path, encrypted when the store has a key.
// An empty path writes <dbPath>/<collection>.chromem.
func (s *Store) Export(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path == "" {
		path = filepath.Join(s.dbPath, s.name+".chromem")
	}
	if err := helper.CreateFolder(filepath.Dir(path)); err != nil {
		return err
	}
	log.Debug().Str("collection", s.name).Str("file", path).Bool("encrypted", s.encryptionKey != "").Msg("Exporting collection")
	if err := s.db.ExportToFile(path, compress, s.encryptionKey, s.name); err != nil {
		return fmt.Errorf("export collection: %w", err)
	}
	return nil
}

// Import replaces the collection with the one stored in path.
func (s *Store) Import(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.ImportFromFile(path, s.encryptionKey, s.name); err != nil {
		return fmt.Errorf("import collection: %w", err)
	}
	return s.openCollection()
}

func (s *Store) documents(ctx context.Context) ([]chromem.Document, error) {
	n := s.collection.Count()
	docs := make([]chromem.Document, 0, n)
	for i := 1; i <= n; i++ {
		d, err := s.collection.GetByID(ctx, docID(i))
		if err != nil {
			return nil, fmt.Errorf("get document %s: %w", docID(i), err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}
