// Package store defines persistence for everything soundwatch keeps between
// requests: the notice board, the realtime noise log, user profiles, push
// tokens and the emotion log.
//
// Two implementations exist: [MemStore] for tests and single-process
// deployments, and the PostgreSQL store in the postgres subpackage.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a lookup or mutation addresses a row that does
// not exist.
var ErrNotFound = errors.New("store: not found")

// Notices persists the notice board.
type Notices interface {
	// ListNotices returns every notice in ascending number order.
	ListNotices(ctx context.Context) ([]Notice, error)

	// LatestNotice returns the notice with the highest number.
	LatestNotice(ctx context.Context) (Notice, error)

	// GetNotice returns one notice by number.
	GetNotice(ctx context.Context, no int64) (Notice, error)

	// InsertNotice stores a new notice and returns its number.
	InsertNotice(ctx context.Context, in NoticeInput) (int64, error)

	// UpdateNotice replaces the title, content and file of a notice.
	UpdateNotice(ctx context.Context, no int64, in NoticeInput) error

	// DeleteNotice removes a notice.
	DeleteNotice(ctx context.Context, no int64) error
}

// NoiseLog persists realtime noise classifications reported by devices.
type NoiseLog interface {
	// InsertNoise stores one event. CreatedAt is set by the store.
	InsertNoise(ctx context.Context, ev NoiseEvent) (NoiseEvent, error)

	// ListNoise returns the events matching f, oldest first. The zero
	// filter returns every event.
	ListNoise(ctx context.Context, f NoiseFilter) ([]NoiseEvent, error)
}

// Users persists user profiles. Accounts are created elsewhere; soundwatch
// only edits and removes them.
type Users interface {
	// DeleteUser removes the user with the given email and role and returns
	// the remaining users.
	DeleteUser(ctx context.Context, email, role string) ([]User, error)

	// UpdateUser sets the name and avatar of the user with the given email
	// and role.
	UpdateUser(ctx context.Context, email, role, name, avatar string) (User, error)
}

// Tokens persists FCM registration tokens and their notification permission.
type Tokens interface {
	// UpsertToken registers token for device uuid. A token already known
	// under another uuid moves to this one.
	UpsertToken(ctx context.Context, t PushToken) (UpsertResult, error)

	// ListTokens returns registration tokens; with permittedOnly only
	// those whose permission is "yes".
	ListTokens(ctx context.Context, permittedOnly bool) ([]string, error)

	// Permissions returns the permission of every token of uuid. It fails
	// with ErrNotFound when uuid has none.
	Permissions(ctx context.Context, uuid string) ([]string, error)

	// SetPermission updates every token of uuid and reports how many rows
	// changed. It fails with ErrNotFound when uuid has none.
	SetPermission(ctx context.Context, uuid, permission string) (int64, error)
}

// EmotionLog persists every emotion result the service produced.
type EmotionLog interface {
	// AppendEmotion stores e and returns it with ID and CreatedAt set.
	AppendEmotion(ctx context.Context, e EmotionEntry) (EmotionEntry, error)

	// RecentEmotions returns the newest entries first.
	RecentEmotions(ctx context.Context, limit int) ([]EmotionEntry, error)

	// SimilarEmotions returns the entries whose text embedding is closest to
	// embedding by cosine distance. Entries without an embedding are
	// skipped.
	SimilarEmotions(ctx context.Context, embedding []float32, limit int) ([]EmotionMatch, error)
}

// Store bundles every persistence concern.
type Store interface {
	Notices
	NoiseLog
	Users
	Tokens
	EmotionLog

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing storage.
	Close()
}
