package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/soundwatch/internal/store"
)

// InsertNoise implements [store.NoiseLog].
func (s *Store) InsertNoise(ctx context.Context, ev store.NoiseEvent) (store.NoiseEvent, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO realtime_log (timemap, label, decibel) VALUES ($1, $2, $3) RETURNING created_at`,
		ev.Timemap, ev.Label, ev.Decibel,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return store.NoiseEvent{}, fmt.Errorf("noise log: insert: %w", err)
	}
	return ev, nil
}

// ListNoise implements [store.NoiseLog].
func (s *Store) ListNoise(ctx context.Context, f store.NoiseFilter) ([]store.NoiseEvent, error) {
	q := `SELECT timemap, label, decibel, created_at FROM realtime_log`
	var args []any
	if !f.Since.IsZero() {
		q += ` WHERE created_at >= $1`
		args = append(args, f.Since)
	}
	q += ` ORDER BY created_at, timemap`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("noise log: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.NoiseEvent, error) {
		var ev store.NoiseEvent
		err := row.Scan(&ev.Timemap, &ev.Label, &ev.Decibel, &ev.CreatedAt)
		return ev, err
	})
	if err != nil {
		return nil, fmt.Errorf("noise log: scan rows: %w", err)
	}
	if out == nil {
		out = []store.NoiseEvent{}
	}
	return out, nil
}
