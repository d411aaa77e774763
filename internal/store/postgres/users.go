package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/soundwatch/internal/store"
)

const userColumns = `uuid, email, name, role, expire_date, user_avatar`

func scanUser(row pgx.CollectableRow) (store.User, error) {
	var u store.User
	err := row.Scan(&u.UUID, &u.Email, &u.Name, &u.Role, &u.ExpireDate, &u.Avatar)
	return u, err
}

// DeleteUser implements [store.Users].
func (s *Store) DeleteUser(ctx context.Context, email, role string) ([]store.User, error) {
	var out []store.User
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM user_info WHERE email = $1 AND role = $2`, email, role)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		rows, err := tx.Query(ctx, `SELECT `+userColumns+` FROM user_info ORDER BY email`)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, scanUser)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("users: delete: %w", err)
	}
	if out == nil {
		out = []store.User{}
	}
	return out, nil
}

// UpdateUser implements [store.Users].
func (s *Store) UpdateUser(ctx context.Context, email, role, name, avatar string) (store.User, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE user_info SET name = $3, user_avatar = $4
		 WHERE email = $1 AND role = $2
		 RETURNING `+userColumns,
		email, role, name, avatar,
	)
	if err != nil {
		return store.User{}, fmt.Errorf("users: update: %w", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("users: update: %w", err)
	}
	return u, nil
}
