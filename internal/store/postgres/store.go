package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/soundwatch/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed [store.Store]. It is safe for concurrent
// use.
type Store struct {
	pool *pgxpool.Pool
	dims int
}

// Option tunes the connection pool.
type Option func(*pgxpool.Config)

// WithMaxConns caps the pool size. The pgx default is max(4, NumCPU).
func WithMaxConns(n int32) Option {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// NewStore connects to dsn, checks the server answers and runs [Migrate] with
// emotion log vectors of embeddingDimensions. Every pooled connection knows
// the pgvector types.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	for _, o := range opts {
		o(cfg)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: connect: %w", err)
	}
	s := &Store{pool: pool, dims: embeddingDimensions}
	if err := s.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, s.pool, s.dims); err != nil {
		return fmt.Errorf("postgres store: migrate: %w", err)
	}
	return nil
}

// Ping reports whether the database answers; /readyz uses it.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }
