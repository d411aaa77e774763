package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func ok(context.Context) error { return nil }

func failWith(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, h *Handler, path string) (int, Report) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var rep Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	return rec.Code, rep
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	code, rep := serve(t, New(Check{Name: "database", Probe: failWith("down")}), "/healthz")
	if code != http.StatusOK || rep.Status != "ok" {
		t.Errorf("healthz = %d %q, want 200 ok even with failing checks", code, rep.Status)
	}
	if len(rep.Checks) != 0 {
		t.Errorf("healthz ran checks: %v", rep.Checks)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     []Check
		wantCode   int
		wantStatus string
		wantErrs   []string
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "all pass",
			checks:     []Check{{"database", ok}, {"classifier", ok}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantErrs:   []string{"", ""},
		},
		{
			name:       "classifier down",
			checks:     []Check{{"database", ok}, {"classifier", failWith("model emotion not available")}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantErrs:   []string{"", "model emotion not available"},
		},
		{
			name:       "both down",
			checks:     []Check{{"database", failWith("connection refused")}, {"classifier", failWith("timeout")}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantErrs:   []string{"connection refused", "timeout"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, rep := serve(t, New(tt.checks...), "/readyz")
			if code != tt.wantCode || rep.Status != tt.wantStatus {
				t.Fatalf("readyz = %d %q, want %d %q", code, rep.Status, tt.wantCode, tt.wantStatus)
			}
			if len(rep.Checks) != len(tt.wantErrs) {
				t.Fatalf("checks = %v", rep.Checks)
			}
			for i, res := range rep.Checks {
				if res.Name != tt.checks[i].Name {
					t.Errorf("check %d name = %q, want %q", i, res.Name, tt.checks[i].Name)
				}
				if res.Error != tt.wantErrs[i] || res.OK != (tt.wantErrs[i] == "") {
					t.Errorf("check %q = ok:%v err:%q, want err %q", res.Name, res.OK, res.Error, tt.wantErrs[i])
				}
			}
		})
	}
}

type deps struct{ pingErr, readyErr error }

func (d deps) Ping(context.Context) error  { return d.pingErr }
func (d deps) Ready(context.Context) error { return d.readyErr }

func TestPingAndReadyHelpers(t *testing.T) {
	t.Parallel()

	d := deps{readyErr: errors.New("model not loaded")}
	rep := New(Ping("database", d), Ready("classifier", d)).Run(context.Background())
	if rep.Status != "fail" || !rep.Checks[0].OK || rep.Checks[1].OK {
		t.Errorf("report = %+v", rep)
	}
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()

	hang := Check{Name: "classifier", Probe: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	rep := New(hang).WithTimeout(20 * time.Millisecond).Run(context.Background())
	if rep.Status != "fail" || rep.Checks[0].Error != context.DeadlineExceeded.Error() {
		t.Errorf("report = %+v, want deadline exceeded", rep)
	}
}

func TestRun_Concurrent(t *testing.T) {
	t.Parallel()

	var started atomic.Int32
	both := make(chan struct{})
	wait := func(context.Context) error {
		if started.Add(1) == 2 {
			close(both)
		}
		select {
		case <-both:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("probes ran one after another")
		}
	}
	rep := New(Check{"a", wait}, Check{"b", wait}).Run(context.Background())
	if rep.Status != "ok" {
		t.Errorf("report = %+v", rep)
	}
}
