// Package api serves the soundwatch REST surface: the notice board, the
// realtime noise log, user profiles, push tokens, the batch emotion
// endpoints and the emotion log.
//
// Error responses carry a JSON body {"detail": "..."} with the matching
// status code. Handlers log through [observe.Logger] so every line carries
// the trace id set by [observe.Middleware].
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrWong99/soundwatch/internal/emotion"
	"github.com/MrWong99/soundwatch/internal/observe"
	"github.com/MrWong99/soundwatch/internal/push"
	"github.com/MrWong99/soundwatch/internal/store"
	"github.com/MrWong99/soundwatch/pkg/provider/embeddings"
	"github.com/MrWong99/soundwatch/pkg/provider/sentiment"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// Analyzer runs the emotion pipeline on one utterance. It is satisfied by
// *emotion.Pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, wav []byte, text string) (emotion.Result, error)
}

// Broadcaster delivers a notification to stored tokens. It is satisfied by
// *push.Dispatcher.
type Broadcaster interface {
	Broadcast(ctx context.Context, topic string, audience push.Audience, n push.Notification) error
}

// Config holds the collaborators of a [Server].
type Config struct {
	Store store.Store

	// Push is optional. Without it notices and noise alerts are stored
	// without notifying anyone and /sendPushNotification answers 503.
	Push Broadcaster

	Analyzer  Analyzer
	Sentiment sentiment.Provider
	Embedder  embeddings.Provider

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// MaxUploadBytes caps multipart uploads. Default 32 MiB.
	MaxUploadBytes int64
}

func (c *Config) validate() error {
	var errs []error
	if c.Store == nil {
		errs = append(errs, errors.New("api: store is required"))
	}
	if c.Analyzer == nil {
		errs = append(errs, errors.New("api: analyzer is required"))
	}
	if c.Sentiment == nil {
		errs = append(errs, errors.New("api: sentiment provider is required"))
	}
	if c.Embedder == nil {
		errs = append(errs, errors.New("api: embeddings provider is required"))
	}
	return errors.Join(errs...)
}

// Option is a functional option for [New].
type Option func(*Server)

// WithClock overrides the time source used for the noise log windows.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server holds the REST handlers.
type Server struct {
	cfg Config
	now func() time.Time
}

// New returns a Server for cfg.
func New(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	s := &Server{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Register adds every REST route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /noticeList", s.noticeList)
	mux.HandleFunc("GET /noticeFirst", s.noticeFirst)
	mux.HandleFunc("GET /noticeContent/{no}", s.noticeContent)
	mux.HandleFunc("POST /noticeInsert", s.noticeInsert)
	mux.HandleFunc("PUT /noticeUpdate/{no}", s.noticeUpdate)
	mux.HandleFunc("DELETE /noticeDelete/{no}", s.noticeDelete)

	mux.HandleFunc("POST /realtimeInsert", s.realtimeInsert)
	mux.HandleFunc("GET /getNoiseDataAll", s.noiseAll)
	mux.HandleFunc("GET /getNoiseDataWeek", s.noiseWindow(7*24*time.Hour))
	mux.HandleFunc("GET /getNoiseDataOneDay", s.noiseWindow(24*time.Hour))

	mux.HandleFunc("DELETE /userDelete", s.userDelete)
	mux.HandleFunc("PUT /userUpdate", s.userUpdate)

	mux.HandleFunc("POST /insertToken", s.insertToken)
	mux.HandleFunc("POST /sendPushNotification", s.sendPushNotification)
	mux.HandleFunc("POST /getPermission", s.getPermission)
	mux.HandleFunc("POST /updatePermission", s.updatePermission)

	mux.HandleFunc("POST /emotion", s.emotion)
	mux.HandleFunc("POST /textemotion", s.textEmotion)
	mux.HandleFunc("GET /emotionLog", s.emotionLog)
	mux.HandleFunc("GET /emotionLog/similar", s.emotionSimilar)
}

// ── helpers ──────────────────────────────────────────────────────────────────

type errorBody struct {
	Detail string `json:"detail"`
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeStoreError maps store failures to a response. ErrNotFound becomes
// 404 with notFound as detail; anything else is logged and answered 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	observe.Logger(r.Context()).Error("api: store failure", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
}

// decodeJSON reads a JSON request body into v. It answers 400 itself and
// returns false when the body is unreadable.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// broadcast sends n through the configured dispatcher. Failures are logged
// and reported to the caller; a missing dispatcher is not an error.
func (s *Server) broadcast(ctx context.Context, topic string, audience push.Audience, n push.Notification) error {
	if s.cfg.Push == nil {
		return nil
	}
	err := s.cfg.Push.Broadcast(ctx, topic, audience, n)
	switch {
	case err == nil:
	case errors.Is(err, push.ErrNoTokens):
		observe.Logger(ctx).Info("api: no devices to notify", "topic", topic)
	default:
		observe.Logger(ctx).Warn("api: push broadcast failed", "topic", topic, "err", err)
	}
	return err
}
