package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/soundwatch/internal/store"
)

const noticeColumns = `no, title, content, date, file`

func scanNotice(row pgx.CollectableRow) (store.Notice, error) {
	var n store.Notice
	err := row.Scan(&n.No, &n.Title, &n.Content, &n.Date, &n.File)
	return n, err
}

// ListNotices implements [store.Notices].
func (s *Store) ListNotices(ctx context.Context) ([]store.Notice, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+noticeColumns+` FROM notice_board ORDER BY no`)
	if err != nil {
		return nil, fmt.Errorf("notices: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanNotice)
	if err != nil {
		return nil, fmt.Errorf("notices: scan rows: %w", err)
	}
	if out == nil {
		out = []store.Notice{}
	}
	return out, nil
}

// LatestNotice implements [store.Notices].
func (s *Store) LatestNotice(ctx context.Context) (store.Notice, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+noticeColumns+` FROM notice_board ORDER BY no DESC LIMIT 1`)
	if err != nil {
		return store.Notice{}, fmt.Errorf("notices: latest: %w", err)
	}
	return collectOneNotice(rows)
}

// GetNotice implements [store.Notices].
func (s *Store) GetNotice(ctx context.Context, no int64) (store.Notice, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+noticeColumns+` FROM notice_board WHERE no = $1`, no)
	if err != nil {
		return store.Notice{}, fmt.Errorf("notices: get %d: %w", no, err)
	}
	return collectOneNotice(rows)
}

func collectOneNotice(rows pgx.Rows) (store.Notice, error) {
	n, err := pgx.CollectExactlyOneRow(rows, scanNotice)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Notice{}, store.ErrNotFound
	}
	if err != nil {
		return store.Notice{}, fmt.Errorf("notices: scan row: %w", err)
	}
	return n, nil
}

// InsertNotice implements [store.Notices].
func (s *Store) InsertNotice(ctx context.Context, in store.NoticeInput) (int64, error) {
	var no int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notice_board (title, content, file) VALUES ($1, $2, $3) RETURNING no`,
		in.Title, in.Content, in.File,
	).Scan(&no)
	if err != nil {
		return 0, fmt.Errorf("notices: insert: %w", err)
	}
	return no, nil
}

// UpdateNotice implements [store.Notices].
func (s *Store) UpdateNotice(ctx context.Context, no int64, in store.NoticeInput) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notice_board SET title = $2, content = $3, file = $4 WHERE no = $1`,
		no, in.Title, in.Content, in.File,
	)
	if err != nil {
		return fmt.Errorf("notices: update %d: %w", no, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteNotice implements [store.Notices].
func (s *Store) DeleteNotice(ctx context.Context, no int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notice_board WHERE no = $1`, no)
	if err != nil {
		return fmt.Errorf("notices: delete %d: %w", no, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
