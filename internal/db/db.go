package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"support-rag/internal/config"
	"support-rag/internal/helper"
	"support-rag/internal/models"
)

type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`
	ID            string    `bun:"id,pk"`
	UserID        *string   `bun:"user_id"`
	Escalated     bool      `bun:"escalated,notnull,default:false"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	LastActiveAt  time.Time `bun:"last_active_at,notnull"`
}

type Message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`
	ID            int64                   `bun:"id,pk,autoincrement"`
	SessionID     string                  `bun:"session_id,notnull"`
	Role          string                  `bun:"role,notnull"`
	Content       string                  `bun:"content,notnull"`
	Confidence    *float64                `bun:"confidence"`
	Metadata      *models.MessageMetadata `bun:"metadata"`
	CreatedAt     time.Time               `bun:"created_at,notnull"`
}

// FAQ keeps the embedding as JSON text so any backend payload shape survives
// a round trip and is normalized on load.
type FAQ struct {
	bun.BaseModel `bun:"table:faqs,alias:f"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Question      string    `bun:"question,notnull,unique"`
	Answer        string    `bun:"answer,notnull"`
	Source        string    `bun:"source,notnull"`
	Embedding     string    `bun:"embedding,type:text"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// Store implements session and FAQ persistence over bun.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

// ConnectDB opens the database named by cfg.Driver: postgres (pgdriver),
// pq (lib/pq) or sqlite (mattn/go-sqlite3).
func ConnectDB(cfg *config.DatabaseConfig) (*bun.DB, error) {
	var db *bun.DB
	switch cfg.Driver {
	case "postgres":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		db = bun.NewDB(sql.OpenDB(pgdriver.NewConnector(opts...)), pgdialect.New())
	case "pq":
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	case "sqlite":
		if err := helper.CreateFolder(filepath.Dir(cfg.Path)); err != nil {
			return nil, err
		}
		sqldb, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL")
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// InitDB creates the tables if they do not exist.
func (s *Store) InitDB(ctx context.Context) error {
	for _, model := range []any{(*Session)(nil), (*Message)(nil), (*FAQ)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	_, err := s.db.NewCreateIndex().
		Model((*Message)(nil)).
		Index("messages_session_idx").
		IfNotExists().
		Column("session_id", "created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	rec := new(Session)
	err := s.db.NewSelect().Model(rec).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

func (s *Store) CreateSession(ctx context.Context, userID *string) (*models.Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rec := &Session{ID: id, UserID: userID, CreatedAt: now, LastActiveAt: now}
	if _, err := s.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return rec.toModel(), nil
}

func (s *Store) TouchSession(ctx context.Context, id string) error {
	res, err := s.db.NewUpdate().
		Model((*Session)(nil)).
		Set("last_active_at = ?", s.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	return nil
}

// AppendMessage inserts msg and fills its ID and CreatedAt. CreatedAt is
// clamped to the latest message of the session so history order holds
// even if the clock steps back.
func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*Session)(nil)).Where("id = ?", msg.SessionID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", models.ErrSessionNotFound, msg.SessionID)
		}

		createdAt := s.now().UTC()
		var last Message
		err = tx.NewSelect().Model(&last).
			Column("created_at").
			Where("session_id = ?", msg.SessionID).
			OrderExpr("id DESC").
			Limit(1).
			Scan(ctx)
		switch {
		case err == nil:
			if createdAt.Before(last.CreatedAt) {
				createdAt = last.CreatedAt
			}
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		rec := &Message{
			SessionID:  msg.SessionID,
			Role:       msg.Role,
			Content:    msg.Content,
			Confidence: msg.Confidence,
			Metadata:   msg.Metadata,
			CreatedAt:  createdAt,
		}
		if _, err := tx.NewInsert().Model(rec).Exec(ctx); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		msg.ID = rec.ID
		msg.CreatedAt = rec.CreatedAt
		return nil
	})
}

func (s *Store) GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	var recs []Message
	q := s.db.NewSelect().Model(&recs).Where("session_id = ?", sessionID)
	if limit > 0 {
		q = q.OrderExpr("created_at DESC, id DESC").Limit(limit)
	} else {
		q = q.OrderExpr("created_at ASC, id ASC")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	if limit > 0 {
		slices.Reverse(recs)
	}

	out := make([]models.Message, len(recs))
	for i := range recs {
		out[i] = recs[i].toModel()
	}
	return out, nil
}

// SetEscalated flips the flag once. Repeated calls do not write.
func (s *Store) SetEscalated(ctx context.Context, id string) error {
	res, err := s.db.NewUpdate().
		Model((*Session)(nil)).
		Set("escalated = ?", true).
		Where("id = ?", id).
		Where("escalated = ?", false).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	exists, err := s.db.NewSelect().Model((*Session)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	return nil
}

func (s *Store) ListFAQs(ctx context.Context) ([]models.StoredFAQ, error) {
	var recs []FAQ
	if err := s.db.NewSelect().Model(&recs).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]models.StoredFAQ, len(recs))
	for i, r := range recs {
		out[i] = models.StoredFAQ{
			ID:           strconv.FormatInt(r.ID, 10),
			Question:     r.Question,
			Answer:       r.Answer,
			Source:       r.Source,
			RawEmbedding: r.Embedding,
		}
	}
	return out, nil
}

func (s *Store) UpsertFAQ(ctx context.Context, entry models.FAQEntry) error {
	emb, err := json.Marshal(entry.Embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	rec := &FAQ{
		Question:  entry.Question,
		Answer:    entry.Answer,
		Source:    entry.Source,
		Embedding: string(emb),
		UpdatedAt: s.now().UTC(),
	}
	_, err = s.db.NewInsert().
		Model(rec).
		On("CONFLICT (question) DO UPDATE").
		Set("answer = EXCLUDED.answer").
		Set("source = EXCLUDED.source").
		Set("embedding = EXCLUDED.embedding").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert faq: %w", err)
	}
	return nil
}

// DropFAQs removes every stored FAQ.
func (s *Store) DropFAQs(ctx context.Context) error {
	res, err := s.db.NewDelete().Model((*FAQ)(nil)).Where("1 = 1").Exec(ctx)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	log.Info().Int64("deleted", n).Msg("Cleared FAQs")
	return nil
}

func (r *Session) toModel() *models.Session {
	return &models.Session{
		ID:           r.ID,
		UserID:       r.UserID,
		Escalated:    r.Escalated,
		CreatedAt:    r.CreatedAt,
		LastActiveAt: r.LastActiveAt,
	}
}

func (r *Message) toModel() models.Message {
	return models.Message{
		ID:         r.ID,
		SessionID:  r.SessionID,
		Role:       r.Role,
		Content:    r.Content,
		Confidence: r.Confidence,
		Metadata:   r.Metadata,
		CreatedAt:  r.CreatedAt,
	}
}
