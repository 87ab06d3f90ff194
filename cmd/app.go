package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"support-rag/internal/boltdb"
	"support-rag/internal/chromemdb"
	"support-rag/internal/config"
	"support-rag/internal/db"
	"support-rag/internal/embedding"
	"support-rag/internal/faq"
	"support-rag/internal/llmservice"
	"support-rag/internal/memstore"
	"support-rag/internal/models"
	"support-rag/internal/parser"
	"support-rag/internal/rag"
)

// corpusStore is what the import and serve paths need from an FAQ store.
type corpusStore interface {
	faq.Store
	DropFAQs(ctx context.Context) error
}

// app holds the wired components for one command run.
type app struct {
	cfg      *config.Config
	sessions rag.Store
	faqs     corpusStore
	chromem  *chromemdb.Store
	bolt     *boltdb.Store
	embedder embedding.Embedder
	corpus   *faq.Corpus
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	emb, err := embedding.New(&cfg.EmbedLLM)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	a.embedder = emb
	a.corpus = faq.NewCorpus(a.faqs)
	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	cfg := a.cfg
	switch cfg.Database.Driver {
	case "sqlite", "postgres", "pq":
		bunDB, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		store := db.NewStore(bunDB)
		a.closers = append(a.closers, store.Close)
		if err := store.InitDB(ctx); err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		a.sessions, a.faqs = store, store
	case "bolt":
		store, err := boltdb.New(cfg.Database.Path)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		a.bolt = store
		a.sessions, a.faqs = store, store
	case "memory":
		store := memstore.New()
		a.sessions, a.faqs = store, store
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	switch cfg.Corpus.Backend {
	case "sql":
	case "chromem":
		store, err := chromemdb.New(cfg.Corpus.ChromemPath, cfg.Corpus.Collection, false, cfg.Corpus.EncryptionKey)
		if err != nil {
			return err
		}
		a.chromem = store
		a.faqs = store
	default:
		return fmt.Errorf("unsupported corpus backend: %s", cfg.Corpus.Backend)
	}
	return nil
}

// chatService loads the corpus and builds the coordinator with its generator.
func (a *app) chatService(ctx context.Context) (*rag.RAG, error) {
	n, err := a.corpus.Load(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		log.Warn().Msg("FAQ corpus is empty, run the import command to populate it")
	}

	gen, err := llmservice.New(ctx, &a.cfg.ChatLLM)
	if err != nil {
		return nil, fmt.Errorf("init generator: %w", err)
	}

	policy := rag.DefaultEscalationPolicy()
	policy.Threshold = a.cfg.RAG.EscalationThreshold
	if len(a.cfg.RAG.EscalationKeywords) > 0 {
		policy.Keywords = a.cfg.RAG.EscalationKeywords
	}
	return rag.NewRAG(a.sessions, a.embedder, gen, a.corpus, rag.Options{
		TopK:         a.cfg.RAG.TopK,
		HistoryLimit: a.cfg.RAG.HistoryLimit,
		RelevantFAQs: a.cfg.RAG.RelevantFAQs,
		Policy:       policy,
	}), nil
}

func (a *app) importer() *faq.Importer {
	c := a.cfg.Corpus
	retrying := embedding.WithRetry(a.embedder, c.RetryAttempts, time.Duration(c.RetryDelayMs)*time.Millisecond)
	return faq.NewImporter(a.faqs, retrying, time.Duration(c.ImportDelayMs)*time.Millisecond)
}

// importFile parses path, upserts its entries and reloads the corpus.
func (a *app) importFile(ctx context.Context, path string) (models.ImportSummary, error) {
	entries, err := parser.ParseFAQFile(path)
	if err != nil {
		return models.ImportSummary{}, err
	}
	sum, err := a.importer().Import(ctx, entries)
	if err != nil {
		return sum, err
	}
	if _, err := a.corpus.Load(ctx); err != nil {
		return sum, err
	}
	return sum, nil
}

func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		log.Error().Err(err).Msg("Error closing stores")
	}
}
