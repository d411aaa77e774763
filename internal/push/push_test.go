package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/oauth2"

	"github.com/MrWong99/soundwatch/internal/observe"
)

type fakeSender struct {
	mu   sync.Mutex
	fail map[string]bool
	sent []string
}

func (f *fakeSender) Send(_ context.Context, token string, _ Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, token)
	if f.fail[token] {
		return errors.New("unregistered")
	}
	return nil
}

type fakeTokens struct {
	all, permitted []string
	err            error
}

func (f fakeTokens) ListTokens(_ context.Context, permittedOnly bool) ([]string, error) {
	if permittedOnly {
		return f.permitted, f.err
	}
	return f.all, f.err
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestAlertFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label  string
		wantOK bool
		body   string
	}{
		{"Bark", true, "개 짖는 소리가 감지되었습니다!"},
		{"Car horn", true, "경적 소리가 감지되었습니다!"},
		{"Siren", true, "사이렌 소리가 감지되었습니다!"},
		{"Speech", false, ""},
	}
	for _, tc := range tests {
		n, ok := AlertFor(tc.label)
		if ok != tc.wantOK {
			t.Errorf("AlertFor(%q) ok = %v, want %v", tc.label, ok, tc.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if n.Title != "위험 소음 감지" || n.Body != tc.body {
			t.Errorf("AlertFor(%q) = %+v", tc.label, n)
		}
	}
}

func TestBroadcast(t *testing.T) {
	t.Parallel()

	tokens := fakeTokens{all: []string{"a", "b", "c"}, permitted: []string{"a", "c"}}

	t.Run("permitted audience", func(t *testing.T) {
		t.Parallel()
		s := &fakeSender{}
		d := NewDispatcher(s, tokens, WithMetrics(testMetrics(t)))
		if err := d.Broadcast(context.Background(), "notice", Permitted, NoticeUpdated); err != nil {
			t.Fatalf("Broadcast: %v", err)
		}
		slices.Sort(s.sent)
		if !slices.Equal(s.sent, []string{"a", "c"}) {
			t.Errorf("sent = %v, want [a c]", s.sent)
		}
	})

	t.Run("failures are collected", func(t *testing.T) {
		t.Parallel()
		s := &fakeSender{fail: map[string]bool{"c": true, "a": true}}
		d := NewDispatcher(s, tokens, WithMetrics(testMetrics(t)), WithConcurrency(1))
		err := d.Broadcast(context.Background(), "manual", Everyone, Notification{Title: "t", Body: "b"})
		var de *DeliveryError
		if !errors.As(err, &de) {
			t.Fatalf("err = %v, want *DeliveryError", err)
		}
		if !slices.Equal(de.Failed, []string{"a", "c"}) {
			t.Errorf("failed = %v, want [a c]", de.Failed)
		}
		if len(s.sent) != 3 {
			t.Errorf("attempted %d deliveries, want 3", len(s.sent))
		}
	})

	t.Run("no tokens", func(t *testing.T) {
		t.Parallel()
		d := NewDispatcher(&fakeSender{}, fakeTokens{}, WithMetrics(testMetrics(t)))
		if err := d.Broadcast(context.Background(), "notice", Permitted, NoticeUpdated); !errors.Is(err, ErrNoTokens) {
			t.Errorf("err = %v, want ErrNoTokens", err)
		}
	})

	t.Run("list error", func(t *testing.T) {
		t.Parallel()
		d := NewDispatcher(&fakeSender{}, fakeTokens{err: errors.New("db down")}, WithMetrics(testMetrics(t)))
		if err := d.Broadcast(context.Background(), "notice", Permitted, NoticeUpdated); err == nil || errors.Is(err, ErrNoTokens) {
			t.Errorf("err = %v, want list error", err)
		}
	})
}

func TestFCM_Send(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		gotAuth string
		gotPath string
		gotBody fcmRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"name":"projects/p/messages/1"}`))
	}))
	t.Cleanup(srv.Close)

	f, err := NewFCM("soundproject", oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "sa-token"}),
		WithFCMEndpoint(srv.URL+"/v1/projects/"))
	if err != nil {
		t.Fatalf("NewFCM: %v", err)
	}

	if err := f.Send(context.Background(), "device-1", NoticeUpdated); err != nil {
		t.Fatalf("Send: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotAuth != "Bearer sa-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/v1/projects/soundproject/messages:send" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.Message.Token != "device-1" || gotBody.Message.Notification != NoticeUpdated {
		t.Errorf("body = %+v", gotBody)
	}

}

func TestFCM_SendFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"status":"NOT_FOUND"}}`, http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	f, err := NewFCM("p", oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"}), WithFCMEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("NewFCM: %v", err)
	}
	if err := f.Send(context.Background(), "stale", NoticeUpdated); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestNewFCM_Validation(t *testing.T) {
	t.Parallel()

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"})
	if _, err := NewFCM("", ts); err == nil {
		t.Error("expected error for empty project")
	}
	if _, err := NewFCM("p", nil); err == nil {
		t.Error("expected error for nil token source")
	}
}

func TestServiceAccountTokens_BadFile(t *testing.T) {
	t.Parallel()

	if _, err := ServiceAccountTokens(context.Background(), "/nonexistent/sa.json"); err == nil {
		t.Error("expected error for missing file")
	}
}
