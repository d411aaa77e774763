package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/soundwatch/internal/store"
)

// UpsertToken implements [store.Tokens].
func (s *Store) UpsertToken(ctx context.Context, t store.PushToken) (store.UpsertResult, error) {
	if t.Permission == "" {
		t.Permission = store.PermissionYes
	}
	var res store.UpsertResult
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var cur store.PushToken
		err := tx.QueryRow(ctx,
			`SELECT uuid, token, permission FROM push_alert WHERE token = $1 FOR UPDATE`,
			t.Token,
		).Scan(&cur.UUID, &cur.Token, &cur.Permission)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			if _, err := tx.Exec(ctx,
				`INSERT INTO push_alert (token, uuid, permission) VALUES ($1, $2, $3)`,
				t.Token, t.UUID, t.Permission,
			); err != nil {
				return err
			}
			res = store.UpsertResult{Outcome: store.TokenCreated, Token: t}
		case err != nil:
			return err
		case cur.UUID == t.UUID:
			res = store.UpsertResult{Outcome: store.TokenUnchanged, Token: cur}
		default:
			if _, err := tx.Exec(ctx, `UPDATE push_alert SET uuid = $2 WHERE token = $1`, t.Token, t.UUID); err != nil {
				return err
			}
			cur.UUID = t.UUID
			res = store.UpsertResult{Outcome: store.TokenMoved, Token: cur}
		}
		return nil
	})
	if err != nil {
		return store.UpsertResult{}, fmt.Errorf("tokens: upsert: %w", err)
	}
	return res, nil
}

// ListTokens implements [store.Tokens].
func (s *Store) ListTokens(ctx context.Context, permittedOnly bool) ([]string, error) {
	q := `SELECT token FROM push_alert`
	var args []any
	if permittedOnly {
		q += ` WHERE permission = $1`
		args = append(args, store.PermissionYes)
	}
	rows, err := s.pool.Query(ctx, q+` ORDER BY token`, args...)
	if err != nil {
		return nil, fmt.Errorf("tokens: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("tokens: scan rows: %w", err)
	}
	return out, nil
}

// Permissions implements [store.Tokens].
func (s *Store) Permissions(ctx context.Context, uuid string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT permission FROM push_alert WHERE uuid = $1`, uuid)
	if err != nil {
		return nil, fmt.Errorf("tokens: permissions: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("tokens: scan rows: %w", err)
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return out, nil
}

// SetPermission implements [store.Tokens].
func (s *Store) SetPermission(ctx context.Context, uuid, permission string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE push_alert SET permission = $2 WHERE uuid = $1`, uuid, permission)
	if err != nil {
		return 0, fmt.Errorf("tokens: set permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, store.ErrNotFound
	}
	return tag.RowsAffected(), nil
}
