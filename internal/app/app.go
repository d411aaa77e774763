// Package app wires all soundwatch subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithStore, WithSender,
// etc.). When an option is not provided, New creates real implementations
// from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/soundwatch/internal/api"
	"github.com/MrWong99/soundwatch/internal/config"
	"github.com/MrWong99/soundwatch/internal/emotion"
	"github.com/MrWong99/soundwatch/internal/health"
	"github.com/MrWong99/soundwatch/internal/observe"
	"github.com/MrWong99/soundwatch/internal/push"
	"github.com/MrWong99/soundwatch/internal/store"
	"github.com/MrWong99/soundwatch/internal/store/postgres"
	"github.com/MrWong99/soundwatch/internal/stream"
	"github.com/MrWong99/soundwatch/pkg/features"
)

// readHeaderTimeout bounds how long a client may take to send request
// headers.
const readHeaderTimeout = 10 * time.Second

// App owns all subsystem lifetimes and serves the soundwatch HTTP surface.
type App struct {
	cfg       *config.Config
	providers *Providers

	level   *slog.LevelVar
	metrics *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	store      store.Store
	sender     push.Sender
	dispatcher *push.Dispatcher
	pipeline   *emotion.Pipeline
	streams    *stream.Handler
	handler    http.Handler
	server     *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of creating one from config. The caller
// keeps ownership and closes it.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSender injects a push sender instead of creating the FCM client.
func WithSender(s push.Sender) Option {
	return func(a *App) { a.sender = s }
}

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar sets the level variable the default logger was built with so
// that config reloads can change it.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from [BuildProviders] or a test.
//
// New performs all initialisation synchronously: store connection and
// migration, push client setup, emotion pipeline construction, and HTTP
// routing.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if err := providers.validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
		a.level.Set(cfg.Server.LogLevel.Slog())
	}

	// ── 1. Store ─────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Push ──────────────────────────────────────────────────────────
	if err := a.initPush(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init push: %w", err)
	}

	// ── 3. Emotion pipeline ──────────────────────────────────────────────
	if err := a.initPipeline(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}

	// ── 4. Streaming sessions ────────────────────────────────────────────
	if err := a.initStreams(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init streams: %w", err)
	}

	// ── 5. HTTP routes ───────────────────────────────────────────────────
	if err := a.initHTTP(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init http: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore connects PostgreSQL, or keeps everything in memory when no DSN
// is configured.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	dsn := a.cfg.Database.PostgresDSN
	if dsn == "" {
		a.store = store.NewMemStore()
		slog.Info("using in-memory store")
		return nil
	}
	s, err := postgres.NewStore(ctx, dsn, a.cfg.Database.EmbeddingDimensions,
		postgres.WithMaxConns(a.cfg.Database.MaxConns))
	if err != nil {
		return err
	}
	a.store = s
	a.closers = append(a.closers, func() error {
		s.Close()
		return nil
	})
	return nil
}

// initPush builds the FCM client. Push stays disabled without a project id
// unless a sender was injected.
func (a *App) initPush(ctx context.Context) error {
	if a.sender == nil {
		pc := a.cfg.Push
		if pc.ProjectID == "" {
			return nil
		}
		ts, err := push.ServiceAccountTokens(ctx, pc.ServiceAccountFile)
		if err != nil {
			return err
		}
		var opts []push.FCMOption
		if pc.Endpoint != "" {
			opts = append(opts, push.WithFCMEndpoint(pc.Endpoint))
		}
		fcm, err := push.NewFCM(pc.ProjectID, ts, opts...)
		if err != nil {
			return err
		}
		a.sender = fcm
	}
	a.dispatcher = push.NewDispatcher(a.sender, a.store,
		push.WithConcurrency(a.cfg.Push.Concurrency),
		push.WithMetrics(a.metrics),
	)
	return nil
}

func (a *App) initPipeline() error {
	var fxOpts []features.Option
	if seed := a.cfg.Pipeline.Seed; seed != 0 {
		fxOpts = append(fxOpts, features.WithRand(rand.New(rand.NewPCG(seed, seed))))
	}
	fx, err := features.New(features.DefaultConfig(), fxOpts...)
	if err != nil {
		return err
	}

	opts := []emotion.Option{emotion.WithMetrics(a.metrics)}
	if path := a.cfg.Pipeline.ScalerPath; path != "" {
		sc, err := emotion.LoadScaler(path)
		if err != nil {
			return err
		}
		opts = append(opts, emotion.WithScaler(sc))
	}
	p, err := emotion.New(fx, a.providers.Embeddings, a.providers.Classifier, opts...)
	if err != nil {
		return err
	}
	a.pipeline = p
	slog.Info("emotion pipeline ready", "features", p.FeatureSize(), "embedding_model", a.providers.Embeddings.ModelID())
	return nil
}

func (a *App) initStreams() error {
	h, err := stream.NewHandler(stream.Config{
		Recognizer:    a.providers.Recognizer,
		Sentiment:     a.providers.Sentiment,
		Analyzer:      a.pipeline,
		Pool:          stream.NewPool(a.cfg.Pipeline.Workers),
		Journal:       a.store,
		Metrics:       a.metrics,
		TrimMargin:    a.cfg.Pipeline.TrimMargin(),
		NeutralLabels: a.cfg.Pipeline.NeutralLabels,
	})
	if err != nil {
		return err
	}
	a.streams = h
	return nil
}

func (a *App) initHTTP() error {
	cfg := api.Config{
		Store:          a.store,
		Analyzer:       a.pipeline,
		Sentiment:      a.providers.Sentiment,
		Embedder:       a.providers.Embeddings,
		Metrics:        a.metrics,
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
	}
	if a.dispatcher != nil {
		cfg.Push = a.dispatcher
	}
	srv, err := api.New(cfg)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	srv.Register(mux)
	health.New(
		health.Ping("database", a.store),
		health.Ready("classifier", a.pipeline),
	).Register(mux)
	mux.Handle("GET /ws", a.streams)
	mux.Handle("GET /metrics", observe.MetricsHandler())

	a.handler = observe.Middleware(a.metrics)(mux)
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return nil
}

// Handler returns the root HTTP handler with middleware applied.
func (a *App) Handler() http.Handler { return a.handler }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run listens on the configured address and serves until ctx is cancelled or
// the server fails. It returns nil when ctx ends; call Shutdown afterwards.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if tls := a.cfg.Server.TLS; tls != nil {
			errCh <- a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
			return
		}
		errCh <- a.server.Serve(ln)
	}()
	slog.Info("http server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// ApplyConfig reacts to a reloaded configuration. The log level changes in
// place; other changed sections are only logged because they need a
// restart.
func (a *App) ApplyConfig(old, updated *config.Config) {
	d := config.Diff(old, updated)
	if d.LogLevelChanged {
		a.level.Set(d.NewLogLevel.Slog())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("configuration changes take effect after a restart", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown ends streaming sessions, stops the HTTP server and closes the
// remaining subsystems. It respects the context deadline: if ctx expires
// before all closers finish, remaining closers are skipped and the context
// error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "sessions", a.streams.Active(), "closers", len(a.closers))

		if err := a.streams.Shutdown(ctx); err != nil {
			slog.Warn("streaming sessions did not finish", "err", err)
			shutdownErr = err
		}
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
			shutdownErr = errors.Join(shutdownErr, err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = errors.Join(shutdownErr, ctx.Err())
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers registered so far after a failed New.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		_ = closer()
	}
}
