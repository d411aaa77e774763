package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/soundwatch/internal/store"
)

// AppendEmotion implements [store.EmotionLog]. Entries without an embedding
// (neutral short-circuits) store NULL.
func (s *Store) AppendEmotion(ctx context.Context, e store.EmotionEntry) (store.EmotionEntry, error) {
	if n := len(e.Embedding); n > 0 && n != s.dims {
		return store.EmotionEntry{}, fmt.Errorf("emotion log: append: embedding has %d dimensions, column has %d", n, s.dims)
	}
	var vec *pgvector.Vector
	if len(e.Embedding) > 0 {
		v := pgvector.NewVector(e.Embedding)
		vec = &v
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO emotion_log (session_id, source, text, emotion, embedding)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.SessionID, e.Source, e.Text, e.Emotion, vec,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return store.EmotionEntry{}, fmt.Errorf("emotion log: append: %w", err)
	}
	return e, nil
}

// RecentEmotions implements [store.EmotionLog].
func (s *Store) RecentEmotions(ctx context.Context, limit int) ([]store.EmotionEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, source, text, emotion, embedding, created_at
		 FROM   emotion_log
		 ORDER  BY created_at DESC, id DESC
		 LIMIT  $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("emotion log: recent: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.EmotionEntry, error) {
		var (
			e   store.EmotionEntry
			vec *pgvector.Vector
		)
		if err := row.Scan(&e.ID, &e.SessionID, &e.Source, &e.Text, &e.Emotion, &vec, &e.CreatedAt); err != nil {
			return store.EmotionEntry{}, err
		}
		if vec != nil {
			e.Embedding = vec.Slice()
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("emotion log: scan rows: %w", err)
	}
	if out == nil {
		out = []store.EmotionEntry{}
	}
	return out, nil
}

// SimilarEmotions implements [store.EmotionLog]. Results are ordered by
// ascending cosine distance (most similar first).
func (s *Store) SimilarEmotions(ctx context.Context, embedding []float32, limit int) ([]store.EmotionMatch, error) {
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("emotion log: similar: query has %d dimensions, column has %d", len(embedding), s.dims)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, source, text, emotion, embedding, created_at,
		        embedding <=> $1 AS distance
		 FROM   emotion_log
		 WHERE  embedding IS NOT NULL
		 ORDER  BY distance
		 LIMIT  $2`,
		pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("emotion log: similar: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.EmotionMatch, error) {
		var (
			m   store.EmotionMatch
			vec pgvector.Vector
		)
		if err := row.Scan(&m.ID, &m.SessionID, &m.Source, &m.Text, &m.Emotion, &vec, &m.CreatedAt, &m.Distance); err != nil {
			return store.EmotionMatch{}, err
		}
		m.Embedding = vec.Slice()
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("emotion log: scan rows: %w", err)
	}
	if out == nil {
		out = []store.EmotionMatch{}
	}
	return out, nil
}
