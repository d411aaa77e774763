// Package recognizer defines the Provider interface for streaming
// speech-recognition backends.
//
// A provider consumes a lazy sequence of frames: exactly one configuration
// frame followed by raw audio frames. It answers with a [Stream] of
// responses, each carrying interim or final results with per-word timings in
// milliseconds since the start of the stream.
//
// Implementations must be safe for concurrent use. A single [Stream] is read
// by one goroutine.
package recognizer

import (
	"context"
	"errors"
	"iter"
)

var (
	// ErrMalformed marks a response the provider could not decode. The stream
	// stays usable; callers may skip the response and keep reading.
	ErrMalformed = errors.New("recognizer: malformed response")

	// ErrNoConfig is returned by Decode when the first frame carries no
	// [StreamingConfig].
	ErrNoConfig = errors.New("recognizer: first frame must carry a config")

	// ErrClosed is returned by Recv after Close.
	ErrClosed = errors.New("recognizer: stream closed")
)

// Encoding names the PCM layout of audio frames.
type Encoding string

// LINEAR16 is little-endian signed 16-bit PCM.
const LINEAR16 Encoding = "LINEAR16"

// StreamingConfig describes the audio that follows it.
type StreamingConfig struct {
	SampleRate int
	Encoding   Encoding

	// UseITN enables inverse text normalisation ("일곱 시" → "7시").
	UseITN bool
}

// Frame is one element of the outbound sequence. Exactly one of Config or
// Audio is set.
type Frame struct {
	Config *StreamingConfig
	Audio  []byte
}

// ConfigFrame wraps cfg in a Frame.
func ConfigFrame(cfg StreamingConfig) Frame { return Frame{Config: &cfg} }

// AudioFrame wraps pcm in a Frame.
func AudioFrame(pcm []byte) Frame { return Frame{Audio: pcm} }

// Word is a recognised word with its timing in milliseconds since stream start.
type Word struct {
	Text     string
	StartAt  int64
	Duration int64
}

// Alternative is one recognition hypothesis.
type Alternative struct {
	Text       string
	Confidence float64
	Words      []Word
}

// Result is one interim or final recognition result. Alternatives are ordered
// best first.
type Result struct {
	IsFinal      bool
	Alternatives []Alternative
}

// Response groups the results delivered in one message.
type Response struct {
	Results []Result
}

// Stream is an open recognition call.
type Stream interface {
	// Recv blocks for the next response. It returns io.EOF once the provider
	// has delivered all results. Errors wrapping [ErrMalformed] are not
	// terminal.
	Recv() (Response, error)

	// Close aborts the call and releases its connection. Calling Close more
	// than once is safe.
	Close() error
}

// Provider is the abstraction over any streaming recognizer.
type Provider interface {
	// Decode opens a recognition call fed from frames. The first frame must
	// carry the config. Decode pulls the remaining frames on its own goroutine
	// until the sequence ends, ctx is cancelled, or the Stream is closed.
	Decode(ctx context.Context, frames iter.Seq[Frame]) (Stream, error)
}
