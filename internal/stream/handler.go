package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/soundwatch/internal/observe"
)

// readLimit caps a single client message. Clients send short PCM chunks.
const readLimit = 1 << 20

// closeGrace bounds the close handshake once the handler shuts down.
const closeGrace = 100 * time.Millisecond

// HandlerOption configures a [Handler].
type HandlerOption func(*Handler)

// WithAcceptOptions sets the options used for the websocket handshake.
func WithAcceptOptions(opts *websocket.AcceptOptions) HandlerOption {
	return func(h *Handler) { h.accept = opts }
}

// Handler upgrades requests to websocket sessions. It is mounted at /ws.
type Handler struct {
	cfg    Config
	accept *websocket.AcceptOptions

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewHandler validates cfg and returns a handler serving sessions with it.
func NewHandler(cfg Config, opts ...HandlerOption) (*Handler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

// ServeHTTP accepts the websocket and runs a session on it until it ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		slog.Warn("stream: websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(readLimit)

	sess := NewSession(uuid.NewString(), conn, &h.cfg)
	if !h.track(sess) {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.untrack(sess)

	// http.Server.Shutdown does not cancel hijacked connections.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	ctx = observe.WithSessionID(ctx, sess.ID())
	log := observe.Logger(ctx)
	log.Info("stream: session started", "remote", r.RemoteAddr)

	err = sess.Run(ctx)
	switch {
	case h.ctx.Err() != nil:
		log.Info("stream: session ended by shutdown", "err", err)
		h.closeConn(conn, websocket.StatusGoingAway, "shutting down")
	case err != nil:
		log.Error("stream: session failed", "err", err)
		h.closeConn(conn, websocket.StatusInternalError, "recognizer failure")
	default:
		log.Info("stream: session ended")
		h.closeConn(conn, websocket.StatusNormalClosure, "")
	}
}

// closeConn runs the close handshake. Once the handler shuts down a client
// that does not answer gets closeGrace before the connection is dropped.
func (h *Handler) closeConn(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.Close(code, reason)
	}()
	select {
	case <-done:
		return
	case <-h.ctx.Done():
	}
	t := time.NewTimer(closeGrace)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		conn.CloseNow()
	}
}

func (h *Handler) track(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx.Err() != nil {
		return false
	}
	h.sessions[s.ID()] = s
	h.wg.Add(1)
	return true
}

func (h *Handler) untrack(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.ID())
	h.mu.Unlock()
	h.wg.Done()
}

// Active reports the number of running sessions.
func (h *Handler) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown ends every session and waits for them, including their in-flight
// inference, until ctx is done.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.cancel()
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
