// Package postgres provides the PostgreSQL-backed [store.Store].
//
// All tables share a single [pgxpool.Pool]. The emotion log keeps sentence
// embeddings in a pgvector column; [Migrate] installs the extension
// automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	s, err := postgres.NewStore(ctx, dsn, 768)
//	if err != nil { … }
//	defer s.Close()
//
//	no, _ := s.InsertNotice(ctx, store.NoticeInput{Title: "점검 안내"})
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Notice board, noise log, users and push tokens
// ─────────────────────────────────────────────────────────────────────────────

const ddlTables = `
CREATE TABLE IF NOT EXISTS notice_board (
    no       BIGSERIAL     PRIMARY KEY,
    title    VARCHAR(100)  NOT NULL,
    content  TEXT,
    date     TIMESTAMPTZ   NOT NULL DEFAULT now(),
    file     TEXT
);

CREATE TABLE IF NOT EXISTS realtime_log (
    timemap     VARCHAR(40)  PRIMARY KEY,
    label       VARCHAR(20)  NOT NULL,
    decibel     SMALLINT     NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_realtime_log_created_at
    ON realtime_log (created_at);

CREATE TABLE IF NOT EXISTS user_info (
    uuid         VARCHAR(36)   PRIMARY KEY,
    email        VARCHAR(40)   NOT NULL UNIQUE,
    password     VARCHAR(100)  NOT NULL,
    name         VARCHAR(20)   NOT NULL,
    role         VARCHAR(4)    NOT NULL DEFAULT 'user',
    expire_date  VARCHAR(19),
    user_avatar  TEXT
);

CREATE TABLE IF NOT EXISTS push_alert (
    token       VARCHAR(255)  PRIMARY KEY,
    uuid        VARCHAR(36)   NOT NULL,
    permission  VARCHAR(5)    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_push_alert_uuid
    ON push_alert (uuid);
`

// ─────────────────────────────────────────────────────────────────────────────
// Emotion log
// ─────────────────────────────────────────────────────────────────────────────

// ddlEmotionLog returns the emotion log DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlEmotionLog(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS emotion_log (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL DEFAULT '',
    source      TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    emotion     TEXT         NOT NULL,
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_emotion_log_created_at
    ON emotion_log (created_at);

CREATE INDEX IF NOT EXISTS idx_emotion_log_embedding
    ON emotion_log USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required database tables and extensions exist.
// It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
//
// embeddingDimensions must match the configured embeddings provider (768 for
// ko-sroberta). Changing it after the first migration requires a manual
// schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if embeddingDimensions <= 0 {
		return fmt.Errorf("postgres migrate: invalid embedding dimensions %d", embeddingDimensions)
	}
	statements := []string{
		ddlTables,
		ddlEmotionLog(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
