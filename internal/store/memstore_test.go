package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNotices(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	if _, err := s.LatestNotice(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestNotice on empty store: err = %v, want ErrNotFound", err)
	}

	first, err := s.InsertNotice(ctx, NoticeInput{Title: "첫 공지", Content: "내용"})
	if err != nil {
		t.Fatalf("InsertNotice: %v", err)
	}
	second, _ := s.InsertNotice(ctx, NoticeInput{Title: "둘째 공지"})
	if second <= first {
		t.Errorf("notice numbers not increasing: %d then %d", first, second)
	}

	latest, err := s.LatestNotice(ctx)
	if err != nil {
		t.Fatalf("LatestNotice: %v", err)
	}
	if latest.Title != "둘째 공지" {
		t.Errorf("latest title = %q", latest.Title)
	}

	file := "a.png"
	if err := s.UpdateNotice(ctx, first, NoticeInput{Title: "수정", Content: "새 내용", File: &file}); err != nil {
		t.Fatalf("UpdateNotice: %v", err)
	}
	got, err := s.GetNotice(ctx, first)
	if err != nil {
		t.Fatalf("GetNotice: %v", err)
	}
	if got.Title != "수정" || *got.Content != "새 내용" || *got.File != "a.png" {
		t.Errorf("updated notice = %+v", got)
	}

	if err := s.DeleteNotice(ctx, first); err != nil {
		t.Fatalf("DeleteNotice: %v", err)
	}
	list, _ := s.ListNotices(ctx)
	if len(list) != 1 || list[0].No != second {
		t.Errorf("list after delete = %+v", list)
	}

	for name, err := range map[string]error{
		"get":    func() error { _, err := s.GetNotice(ctx, 99); return err }(),
		"update": s.UpdateNotice(ctx, 99, NoticeInput{Title: "x"}),
		"delete": s.DeleteNotice(ctx, 99),
	} {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s unknown notice: err = %v, want ErrNotFound", name, err)
		}
	}
}

func TestNoise_SinceFilter(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.SetClock(func() time.Time { return now })

	if _, err := s.InsertNoise(ctx, NoiseEvent{Timemap: "old", Label: "Bark", Decibel: 70}); err != nil {
		t.Fatalf("InsertNoise: %v", err)
	}
	now = base.Add(48 * time.Hour)
	if _, err := s.InsertNoise(ctx, NoiseEvent{Timemap: "new", Label: "Siren", Decibel: 90}); err != nil {
		t.Fatalf("InsertNoise: %v", err)
	}
	if _, err := s.InsertNoise(ctx, NoiseEvent{Timemap: "new"}); err == nil {
		t.Error("expected duplicate timemap error")
	}

	all, _ := s.ListNoise(ctx, NoiseFilter{})
	if len(all) != 2 {
		t.Errorf("all = %d events, want 2", len(all))
	}
	day, _ := s.ListNoise(ctx, NoiseFilter{Since: now.Add(-24 * time.Hour)})
	if len(day) != 1 || day[0].Timemap != "new" {
		t.Errorf("one day = %+v, want only \"new\"", day)
	}
}

func TestUsers(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()
	s.AddUser(User{UUID: "u1", Email: "a@example.com", Name: "A", Role: "user"})
	s.AddUser(User{UUID: "u2", Email: "b@example.com", Name: "B", Role: "user"})

	u, err := s.UpdateUser(ctx, "a@example.com", "user", "Alice", "avatar.png")
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if u.Name != "Alice" || *u.Avatar != "avatar.png" {
		t.Errorf("updated user = %+v", u)
	}
	if _, err := s.UpdateUser(ctx, "a@example.com", "admin", "x", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("wrong role: err = %v, want ErrNotFound", err)
	}

	rest, err := s.DeleteUser(ctx, "a@example.com", "user")
	if err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if len(rest) != 1 || rest[0].UUID != "u2" {
		t.Errorf("remaining users = %+v", rest)
	}
}

func TestUpsertToken(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	tests := []struct {
		name string
		in   PushToken
		want UpsertOutcome
		uuid string
	}{
		{"new token", PushToken{UUID: "dev-1", Token: "tok-a"}, TokenCreated, "dev-1"},
		{"same uuid and token", PushToken{UUID: "dev-1", Token: "tok-a"}, TokenUnchanged, "dev-1"},
		{"known token new uuid", PushToken{UUID: "dev-2", Token: "tok-a"}, TokenMoved, "dev-2"},
		{"known uuid new token", PushToken{UUID: "dev-2", Token: "tok-b", Permission: PermissionNo}, TokenCreated, "dev-2"},
	}
	for _, tc := range tests {
		res, err := s.UpsertToken(ctx, tc.in)
		if err != nil {
			t.Fatalf("%s: UpsertToken: %v", tc.name, err)
		}
		if res.Outcome != tc.want {
			t.Errorf("%s: outcome = %d, want %d", tc.name, res.Outcome, tc.want)
		}
		if res.Token.UUID != tc.uuid {
			t.Errorf("%s: uuid = %q, want %q", tc.name, res.Token.UUID, tc.uuid)
		}
	}

	all, _ := s.ListTokens(ctx, false)
	permitted, _ := s.ListTokens(ctx, true)
	if len(all) != 2 || len(permitted) != 1 || permitted[0] != "tok-a" {
		t.Errorf("all = %v, permitted = %v", all, permitted)
	}
}

func TestPermissions(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	if _, err := s.Permissions(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Permissions unknown uuid: err = %v, want ErrNotFound", err)
	}
	if _, err := s.SetPermission(ctx, "nobody", PermissionNo); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetPermission unknown uuid: err = %v, want ErrNotFound", err)
	}

	_, _ = s.UpsertToken(ctx, PushToken{UUID: "dev", Token: "a"})
	_, _ = s.UpsertToken(ctx, PushToken{UUID: "dev", Token: "b"})

	n, err := s.SetPermission(ctx, "dev", PermissionNo)
	if err != nil {
		t.Fatalf("SetPermission: %v", err)
	}
	if n != 2 {
		t.Errorf("updated rows = %d, want 2", n)
	}
	perms, _ := s.Permissions(ctx, "dev")
	for _, p := range perms {
		if p != PermissionNo {
			t.Errorf("permission = %q, want no", p)
		}
	}
}

func TestEmotionLog(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	entries := []EmotionEntry{
		{Source: SourceStream, Text: "화가 나", Emotion: "angry", Embedding: []float32{1, 0}},
		{Source: SourceStream, Text: "그냥 그래", Emotion: "neutrality"},
		{Source: SourceBatch, Text: "기뻐", Emotion: "happy", Embedding: []float32{0, 1}},
	}
	for _, e := range entries {
		if _, err := s.AppendEmotion(ctx, e); err != nil {
			t.Fatalf("AppendEmotion: %v", err)
		}
	}

	recent, _ := s.RecentEmotions(ctx, 2)
	if len(recent) != 2 || recent[0].Text != "기뻐" {
		t.Errorf("recent = %+v, want newest first", recent)
	}

	similar, err := s.SimilarEmotions(ctx, []float32{0.9, 0.1}, 10)
	if err != nil {
		t.Fatalf("SimilarEmotions: %v", err)
	}
	if len(similar) != 2 {
		t.Fatalf("similar = %d entries, want 2 (entry without embedding skipped)", len(similar))
	}
	if similar[0].Emotion != "angry" {
		t.Errorf("nearest = %q, want angry", similar[0].Emotion)
	}
	if similar[0].Distance > similar[1].Distance {
		t.Errorf("distances not ascending: %v, %v", similar[0].Distance, similar[1].Distance)
	}
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			_, _ = s.AppendEmotion(ctx, EmotionEntry{Text: "x", Emotion: "sad"})
			_, _ = s.RecentEmotions(ctx, 5)
			_, _ = s.InsertNotice(ctx, NoticeInput{Title: "t"})
			_, _ = s.ListNotices(ctx)
		})
	}
	wg.Wait()

	recent, _ := s.RecentEmotions(ctx, 0)
	if len(recent) != 20 {
		t.Errorf("entries = %d, want 20", len(recent))
	}
	seen := map[int64]bool{}
	for _, e := range recent {
		if seen[e.ID] {
			t.Fatalf("duplicate id %d", e.ID)
		}
		seen[e.ID] = true
	}
}
