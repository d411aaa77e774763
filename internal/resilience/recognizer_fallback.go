package resilience

import (
	"context"
	"iter"

	"github.com/MrWong99/soundwatch/pkg/provider/recognizer"
)

// RecognizerFallback implements [recognizer.Provider] with failover on
// Decode. Only opening the call is covered; once a stream is established its
// failures end the session.
//
// A backend that fails Decode must not have consumed audio frames, so the
// next backend starts again from the config frame. The providers in this
// module fail before pulling past the config frame.
type RecognizerFallback struct {
	group *FallbackGroup[recognizer.Provider]
}

var _ recognizer.Provider = (*RecognizerFallback)(nil)

// NewRecognizerFallback creates a [RecognizerFallback] with primary as the
// preferred backend.
func NewRecognizerFallback(primary recognizer.Provider, primaryName string, cfg FallbackConfig) *RecognizerFallback {
	if cfg.Kind == "" {
		cfg.Kind = "recognizer"
	}
	return &RecognizerFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional backend.
func (f *RecognizerFallback) AddFallback(name string, provider recognizer.Provider) {
	f.group.AddFallback(name, provider)
}

// Decode opens the call on the first backend that accepts it.
func (f *RecognizerFallback) Decode(ctx context.Context, frames iter.Seq[recognizer.Frame]) (recognizer.Stream, error) {
	return ExecuteWithResult(f.group, func(p recognizer.Provider) (recognizer.Stream, error) {
		return p.Decode(ctx, frames)
	})
}
