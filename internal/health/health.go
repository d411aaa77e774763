// Package health serves the liveness and readiness probes.
//
// GET /healthz answers 200 as long as the process serves HTTP. GET /readyz
// probes every registered dependency (the database, the emotion model server)
// in parallel and answers 503 when any of them fails:
//
//	{"status":"fail","checks":[
//	  {"name":"database","ok":true,"latency_ms":2},
//	  {"name":"classifier","ok":false,"latency_ms":5000,"error":"context deadline exceeded"}]}
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// Check is one named readiness probe. Probe returns nil when the dependency
// can serve requests.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Ping checks a dependency through its Ping method (the store).
func Ping(name string, p interface{ Ping(context.Context) error }) Check {
	return Check{Name: name, Probe: p.Ping}
}

// Ready checks a dependency through its Ready method (the classifier).
func Ready(name string, r interface{ Ready(context.Context) error }) Check {
	return Check{Name: name, Probe: r.Ready}
}

// CheckResult is the outcome of one probe in a /readyz report.
type CheckResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Report is the /healthz and /readyz response body.
type Report struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks,omitempty"`
}

// Handler serves the probes. The check list is fixed at construction.
type Handler struct {
	checks  []Check
	timeout time.Duration
}

// New returns a Handler that runs checks on every /readyz request, in the
// given order in the report.
func New(checks ...Check) *Handler {
	return &Handler{checks: append([]Check(nil), checks...), timeout: DefaultTimeout}
}

// WithTimeout overrides [DefaultTimeout] and returns h.
func (h *Handler) WithTimeout(d time.Duration) *Handler {
	if d > 0 {
		h.timeout = d
	}
	return h
}

// Register mounts GET /healthz and GET /readyz on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz always reports ok.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, Report{Status: "ok"})
}

// Readyz runs every check concurrently and reports 503 if any failed.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	report := h.Run(r.Context())
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeReport(w, status, report)
}

// Run probes every dependency and returns the combined report.
func (h *Handler) Run(ctx context.Context) Report {
	results := make([]CheckResult, len(h.checks))
	var eg errgroup.Group
	for i, c := range h.checks {
		eg.Go(func() error {
			results[i] = h.probe(ctx, c)
			return nil
		})
	}
	_ = eg.Wait()

	report := Report{Status: "ok", Checks: results}
	for _, res := range results {
		if !res.OK {
			report.Status = "fail"
			break
		}
	}
	return report
}

func (h *Handler) probe(ctx context.Context, c Check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := c.Probe(ctx)
	res := CheckResult{Name: c.Name, OK: err == nil, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func writeReport(w http.ResponseWriter, status int, rep Report) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rep)
}
