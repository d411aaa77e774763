package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/soundwatch/internal/observe"
	"github.com/MrWong99/soundwatch/internal/store"
	"github.com/MrWong99/soundwatch/pkg/provider/recognizer"
	"github.com/MrWong99/soundwatch/pkg/provider/sentiment"
)

// DefaultSampleRate is the PCM rate clients stream at.
const DefaultSampleRate = 16000

// outBuffer is the capacity of the channel between inference jobs and the
// writer.
const outBuffer = 16

// errClientGone ends a session whose client disconnected. It is not
// reported.
var errClientGone = errors.New("stream: client disconnected")

// errStreamEnded is returned by the writer once the recognizer has finished
// and every pending result reached the client. It is not reported.
var errStreamEnded = errors.New("stream: recognizer finished")

// State is the lifecycle state of a [Session].
type State int32

const (
	StateConnecting State = iota
	StateAccepted
	StateStreaming
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAccepted:
		return "accepted"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config holds the collaborators shared by every session.
type Config struct {
	// Recognizer transcribes the client audio. Required.
	Recognizer recognizer.Provider

	// Sentiment screens final transcripts before full inference. Required.
	Sentiment sentiment.Provider

	// Analyzer labels utterances that are not neutral. Required.
	Analyzer Analyzer

	// Pool bounds inference across sessions. Defaults to a single worker.
	Pool *Pool

	// Journal, if set, records every emitted result.
	Journal store.EmotionLog

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// SampleRate of the client PCM. Defaults to [DefaultSampleRate].
	SampleRate int

	// TrimMargin is the audio kept before the end of each extracted window.
	TrimMargin time.Duration

	// NeutralLabels are the sentiment labels that short-circuit to
	// neutrality. Empty means [sentiment.DefaultNeutralLabel].
	NeutralLabels []string
}

func (c *Config) validate() error {
	var errs []error
	if c.Recognizer == nil {
		errs = append(errs, errors.New("stream: recognizer is required"))
	}
	if c.Sentiment == nil {
		errs = append(errs, errors.New("stream: sentiment provider is required"))
	}
	if c.Analyzer == nil {
		errs = append(errs, errors.New("stream: analyzer is required"))
	}
	if c.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("stream: invalid sample rate %d", c.SampleRate))
	}
	if c.TrimMargin < 0 {
		errs = append(errs, fmt.Errorf("stream: negative trim margin %s", c.TrimMargin))
	}
	return errors.Join(errs...)
}

func (c *Config) withDefaults() {
	if c.Pool == nil {
		c.Pool = NewPool(1)
	}
	if c.Metrics == nil {
		c.Metrics = observe.DefaultMetrics()
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
}

// Session is one client connection: the relay, the consumer and the writer
// joined under one errgroup.
type Session struct {
	id    string
	conn  Conn
	cfg   *Config
	ext   *Extractor
	state atomic.Int32
}

// NewSession prepares a session for an accepted conn. cfg must have been
// validated; [Handler] does that once for all sessions.
func NewSession(id string, conn Conn, cfg *Config) *Session {
	s := &Session{
		id:   id,
		conn: conn,
		cfg:  cfg,
		ext:  NewExtractor(cfg.SampleRate, cfg.TrimMargin),
	}
	s.state.Store(int32(StateAccepted))
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State reports the lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Run streams until the client disconnects, the recognizer finishes or ctx
// is cancelled, and returns once every inference job it started has
// completed. It returns nil for a client disconnect and a normal end of
// results; any other error is a transport failure. The caller closes conn
// afterwards.
func (s *Session) Run(ctx context.Context) error {
	s.state.Store(int32(StateStreaming))
	defer s.state.Store(int32(StateClosed))
	defer s.ext.Release()

	m := s.cfg.Metrics
	m.ActiveSessions.Add(ctx, 1)
	defer m.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, egCtx := errgroup.WithContext(ctx)

	relay := NewRelay(s.conn, s.ext, recognizer.StreamingConfig{
		SampleRate: s.cfg.SampleRate,
		Encoding:   recognizer.LINEAR16,
		UseITN:     true,
	})
	// A cancelled read tears the websocket down without a close handshake, so
	// the relay keeps reading until the owner closes conn.
	src, err := s.cfg.Recognizer.Decode(egCtx, relay.Frames(context.WithoutCancel(egCtx)))
	if err != nil {
		return fmt.Errorf("stream: open recognizer: %w", err)
	}
	defer src.Close()
	stop := context.AfterFunc(egCtx, func() { _ = src.Close() })
	defer stop()

	consumer := &Consumer{
		sessionID: s.id,
		src:       src,
		ext:       s.ext,
		rate:      s.cfg.SampleRate,
		deps:      s.cfg,
	}
	defer consumer.Wait()

	out := make(chan Message, outBuffer)

	eg.Go(func() error {
		select {
		case <-relay.Done():
			if relay.Err() != nil && egCtx.Err() == nil {
				return errClientGone
			}
			return nil
		case <-egCtx.Done():
			return nil
		}
	})
	eg.Go(func() error { return consumer.Run(egCtx, out) })
	eg.Go(func() error { return s.write(egCtx, out) })

	err = eg.Wait()
	if errors.Is(err, errClientGone) || errors.Is(err, errStreamEnded) {
		return nil
	}
	return err
}

// write sends results to the client until out is closed or ctx is done. A
// closed out ends the session with errStreamEnded.
func (s *Session) write(ctx context.Context, out <-chan Message) error {
	for {
		select {
		case msg, ok := <-out:
			if !ok {
				return errStreamEnded
			}
			data, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("stream: encode message: %w", err)
			}
			if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if websocket.CloseStatus(err) != -1 {
					return errClientGone
				}
				return fmt.Errorf("stream: write: %w", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
