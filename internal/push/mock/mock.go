// Package mock provides a test double for the push.Sender interface.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/soundwatch/internal/push"
)

// SendCall records a single invocation of Send.
type SendCall struct {
	Token        string
	Notification push.Notification
}

// Sender is a mock implementation of push.Sender.
type Sender struct {
	mu sync.Mutex

	// FailTokens lists tokens whose delivery fails with Err.
	FailTokens map[string]bool

	// Err is returned for tokens in FailTokens. Default: a generic error.
	Err error

	// Calls records every call to Send.
	Calls []SendCall
}

// Send records the call and fails for tokens in FailTokens.
func (s *Sender) Send(_ context.Context, token string, n push.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, SendCall{Token: token, Notification: n})
	if s.FailTokens[token] {
		if s.Err == nil {
			return errors.New("mock: delivery failed")
		}
		return s.Err
	}
	return nil
}

// SentCalls returns a copy of the recorded calls. Thread-safe.
func (s *Sender) SentCalls() []SendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SendCall, len(s.Calls))
	copy(out, s.Calls)
	return out
}

var _ push.Sender = (*Sender)(nil)
