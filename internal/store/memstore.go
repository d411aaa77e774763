package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for tests and single-process deployments without a
// database. Use [NewMemStore] to create one.
type MemStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	notices  []Notice
	nextNo   int64
	noise    []NoiseEvent
	users    []User
	tokens   []PushToken
	emotions []EmotionEntry
	nextID   int64
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{now: time.Now, nextNo: 1, nextID: 1}
}

// SetClock replaces the time source used for CreatedAt stamps.
func (s *MemStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Ping implements [Store.Ping].
func (s *MemStore) Ping(context.Context) error { return nil }

// Close implements [Store.Close].
func (s *MemStore) Close() {}

// ── Notices ───────────────────────────────────────────────────────────────────

// ListNotices implements [Notices.ListNotices].
func (s *MemStore) ListNotices(context.Context) ([]Notice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.notices), nil
}

// LatestNotice implements [Notices.LatestNotice].
func (s *MemStore) LatestNotice(context.Context) (Notice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.notices) == 0 {
		return Notice{}, ErrNotFound
	}
	return s.notices[len(s.notices)-1], nil
}

// GetNotice implements [Notices.GetNotice].
func (s *MemStore) GetNotice(_ context.Context, no int64) (Notice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.noticeIndex(no)
	if i < 0 {
		return Notice{}, ErrNotFound
	}
	return s.notices[i], nil
}

// InsertNotice implements [Notices.InsertNotice].
func (s *MemStore) InsertNotice(_ context.Context, in NoticeInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := Notice{No: s.nextNo, Date: s.now()}
	applyNotice(&n, in)
	s.nextNo++
	s.notices = append(s.notices, n)
	return n.No, nil
}

// UpdateNotice implements [Notices.UpdateNotice].
func (s *MemStore) UpdateNotice(_ context.Context, no int64, in NoticeInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.noticeIndex(no)
	if i < 0 {
		return ErrNotFound
	}
	applyNotice(&s.notices[i], in)
	return nil
}

// DeleteNotice implements [Notices.DeleteNotice].
func (s *MemStore) DeleteNotice(_ context.Context, no int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.noticeIndex(no)
	if i < 0 {
		return ErrNotFound
	}
	s.notices = slices.Delete(s.notices, i, i+1)
	return nil
}

func (s *MemStore) noticeIndex(no int64) int {
	return slices.IndexFunc(s.notices, func(n Notice) bool { return n.No == no })
}

func applyNotice(n *Notice, in NoticeInput) {
	content := in.Content
	n.Title = in.Title
	n.Content = &content
	n.File = in.File
}

// ── Noise log ─────────────────────────────────────────────────────────────────

// InsertNoise implements [NoiseLog.InsertNoise]. A duplicate Timemap is
// rejected like the primary key of the database table.
func (s *MemStore) InsertNoise(_ context.Context, ev NoiseEvent) (NoiseEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.ContainsFunc(s.noise, func(e NoiseEvent) bool { return e.Timemap == ev.Timemap }) {
		return NoiseEvent{}, fmt.Errorf("store: noise event %q already exists", ev.Timemap)
	}
	ev.CreatedAt = s.now()
	s.noise = append(s.noise, ev)
	return ev, nil
}

// ListNoise implements [NoiseLog.ListNoise].
func (s *MemStore) ListNoise(_ context.Context, f NoiseFilter) ([]NoiseEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]NoiseEvent, 0, len(s.noise))
	for _, ev := range s.noise {
		if !f.Since.IsZero() && ev.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// ── Users ─────────────────────────────────────────────────────────────────────

// AddUser stores u. Accounts are created outside soundwatch; this seeds the
// in-memory store.
func (s *MemStore) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

// DeleteUser implements [Users.DeleteUser].
func (s *MemStore) DeleteUser(_ context.Context, email, role string) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.userIndex(email, role)
	if i < 0 {
		return nil, ErrNotFound
	}
	s.users = slices.Delete(s.users, i, i+1)
	return slices.Clone(s.users), nil
}

// UpdateUser implements [Users.UpdateUser].
func (s *MemStore) UpdateUser(_ context.Context, email, role, name, avatar string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.userIndex(email, role)
	if i < 0 {
		return User{}, ErrNotFound
	}
	s.users[i].Name = name
	s.users[i].Avatar = &avatar
	return s.users[i], nil
}

func (s *MemStore) userIndex(email, role string) int {
	return slices.IndexFunc(s.users, func(u User) bool { return u.Email == email && u.Role == role })
}

// ── Push tokens ───────────────────────────────────────────────────────────────

// UpsertToken implements [Tokens.UpsertToken].
func (s *MemStore) UpsertToken(_ context.Context, t PushToken) (UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.tokens, func(p PushToken) bool { return p.Token == t.Token })
	switch {
	case i < 0:
		if t.Permission == "" {
			t.Permission = PermissionYes
		}
		s.tokens = append(s.tokens, t)
		return UpsertResult{Outcome: TokenCreated, Token: t}, nil
	case s.tokens[i].UUID == t.UUID:
		return UpsertResult{Outcome: TokenUnchanged, Token: s.tokens[i]}, nil
	default:
		s.tokens[i].UUID = t.UUID
		return UpsertResult{Outcome: TokenMoved, Token: s.tokens[i]}, nil
	}
}

// ListTokens implements [Tokens.ListTokens].
func (s *MemStore) ListTokens(_ context.Context, permittedOnly bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, t := range s.tokens {
		if permittedOnly && t.Permission != PermissionYes {
			continue
		}
		out = append(out, t.Token)
	}
	return out, nil
}

// Permissions implements [Tokens.Permissions].
func (s *MemStore) Permissions(_ context.Context, uuid string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, t := range s.tokens {
		if t.UUID == uuid {
			out = append(out, t.Permission)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// SetPermission implements [Tokens.SetPermission].
func (s *MemStore) SetPermission(_ context.Context, uuid, permission string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.tokens {
		if s.tokens[i].UUID == uuid {
			s.tokens[i].Permission = permission
			n++
		}
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

// ── Emotion log ───────────────────────────────────────────────────────────────

// AppendEmotion implements [EmotionLog.AppendEmotion].
func (s *MemStore) AppendEmotion(_ context.Context, e EmotionEntry) (EmotionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	e.CreatedAt = s.now()
	e.Embedding = slices.Clone(e.Embedding)
	s.emotions = append(s.emotions, e)
	return e, nil
}

// RecentEmotions implements [EmotionLog.RecentEmotions].
func (s *MemStore) RecentEmotions(_ context.Context, limit int) ([]EmotionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.emotions)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SimilarEmotions implements [EmotionLog.SimilarEmotions].
func (s *MemStore) SimilarEmotions(_ context.Context, embedding []float32, limit int) ([]EmotionMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query := toFloat64(embedding)
	out := make([]EmotionMatch, 0, len(s.emotions))
	for _, e := range s.emotions {
		if len(e.Embedding) != len(query) || len(query) == 0 {
			continue
		}
		d, ok := cosineDistance(query, toFloat64(e.Embedding))
		if !ok {
			continue
		}
		out = append(out, EmotionMatch{EmotionEntry: e, Distance: d})
	}
	slices.SortStableFunc(out, func(a, b EmotionMatch) int { return cmp.Compare(a.Distance, b.Distance) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// cosineDistance matches the pgvector <=> operator: 1 - cos(a, b). It is
// undefined for zero vectors.
func cosineDistance(a, b []float64) (float64, bool) {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0, false
	}
	return 1 - floats.Dot(a, b)/(na*nb), true
}
