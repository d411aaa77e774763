// Package mock provides test doubles for the recognizer package interfaces.
//
// Provider drains the frame sequence on its own goroutine and records every
// frame, like a real provider forwarding audio. Stream replays the events a
// test pushes into it.
//
// Example:
//
//	s := mock.NewStream()
//	p := &mock.Provider{Stream: s}
//	st, _ := p.Decode(ctx, frames)
//	s.Send(recognizer.Response{...})
//	s.Finish()
package mock

import (
	"context"
	"io"
	"iter"
	"sync"

	"github.com/MrWong99/soundwatch/pkg/provider/recognizer"
)

// Event is one scripted Recv outcome.
type Event struct {
	Response recognizer.Response
	Err      error
}

// Provider is a mock implementation of recognizer.Provider.
type Provider struct {
	mu sync.Mutex

	// Stream is returned by Decode. If nil, Decode returns a fresh Stream.
	Stream *Stream

	// DecodeErr, if non-nil, is returned by Decode without consuming frames.
	DecodeErr error

	// DecodeCalls counts calls to Decode.
	DecodeCalls int
}

// Decode records the call, starts draining frames into the stream and
// returns it.
func (p *Provider) Decode(ctx context.Context, frames iter.Seq[recognizer.Frame]) (recognizer.Stream, error) {
	p.mu.Lock()
	p.DecodeCalls++
	err := p.DecodeErr
	s := p.Stream
	if s == nil && err == nil {
		s = NewStream()
		p.Stream = s
	}
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	go s.drain(ctx, frames)
	return s, nil
}

// CallCount returns the number of Decode calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DecodeCalls
}

var _ recognizer.Provider = (*Provider)(nil)

// Stream is a mock implementation of recognizer.Stream.
type Stream struct {
	events  chan Event
	done    chan struct{}
	drained chan struct{}
	once    sync.Once

	mu         sync.Mutex
	frames     []recognizer.Frame
	audioBytes int
	closeCount int
}

// NewStream returns a Stream with a generous event buffer.
func NewStream() *Stream {
	return &Stream{
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
}

func (s *Stream) drain(ctx context.Context, frames iter.Seq[recognizer.Frame]) {
	defer close(s.drained)
	for f := range frames {
		s.mu.Lock()
		s.frames = append(s.frames, f)
		s.audioBytes += len(f.Audio)
		s.mu.Unlock()
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}
	}
}

// Send queues a response for Recv.
func (s *Stream) Send(resp recognizer.Response) { s.events <- Event{Response: resp} }

// SendErr queues an error for Recv.
func (s *Stream) SendErr(err error) { s.events <- Event{Err: err} }

// Finish makes Recv return io.EOF once queued events are consumed.
func (s *Stream) Finish() { close(s.events) }

// Recv returns the next queued event, io.EOF after Finish, or
// recognizer.ErrClosed after Close.
func (s *Stream) Recv() (recognizer.Response, error) {
	select {
	case ev, ok := <-s.events:
		if !ok {
			return recognizer.Response{}, io.EOF
		}
		return ev.Response, ev.Err
	case <-s.done:
		return recognizer.Response{}, recognizer.ErrClosed
	}
}

// Close records the call. Safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closeCount++
	s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
	return nil
}

// Frames returns a copy of the frames consumed so far.
func (s *Stream) Frames() []recognizer.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recognizer.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// AudioBytes reports the number of audio bytes consumed so far.
func (s *Stream) AudioBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioBytes
}

// CloseCount reports how many times Close was called.
func (s *Stream) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

// Drained is closed when the frame sequence has ended.
func (s *Stream) Drained() <-chan struct{} { return s.drained }

var _ recognizer.Stream = (*Stream)(nil)
