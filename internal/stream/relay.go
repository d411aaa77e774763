package stream

import (
	"context"
	"iter"
	"sync"

	"github.com/coder/websocket"

	"github.com/MrWong99/soundwatch/internal/observe"
	"github.com/MrWong99/soundwatch/pkg/audio"
	"github.com/MrWong99/soundwatch/pkg/provider/recognizer"
)

// Relay turns the client's binary messages into recognizer frames while
// recording them on the session [Extractor].
type Relay struct {
	src Conn
	ext *Extractor
	cfg recognizer.StreamingConfig

	// carry holds an odd trailing byte until the next chunk arrives. Only the
	// goroutine iterating Frames touches it.
	carry []byte

	once sync.Once
	done chan struct{}
	err  error
}

// NewRelay returns a relay reading from src.
func NewRelay(src Conn, ext *Extractor, cfg recognizer.StreamingConfig) *Relay {
	return &Relay{src: src, ext: ext, cfg: cfg, done: make(chan struct{})}
}

// Frames yields the config frame and then one audio frame per binary client
// message, bytes unchanged. Each chunk is appended to the extractor before it is
// yielded. The sequence ends when the client goes away, ctx is cancelled or
// the consumer stops pulling. A consumer that stops right after the config
// frame has read no audio, so the sequence may be ranged again by a fallback
// recognizer; otherwise it is iterated once.
func (r *Relay) Frames(ctx context.Context) iter.Seq[recognizer.Frame] {
	return func(yield func(recognizer.Frame) bool) {
		if !yield(recognizer.ConfigFrame(r.cfg)) {
			return
		}
		var readErr error
		defer func() { r.finish(readErr) }()

		for {
			typ, data, err := r.src.Read(ctx)
			if err != nil {
				readErr = err
				return
			}
			if typ != websocket.MessageBinary {
				observe.Logger(ctx).Debug("stream: ignoring non-binary client message", "bytes", len(data))
				continue
			}
			r.record(data)
			if !yield(recognizer.AudioFrame(data)) {
				return
			}
		}
	}
}

// record appends chunk to the extractor, carrying an odd trailing byte.
func (r *Relay) record(chunk []byte) {
	pcm := chunk
	if len(r.carry) > 0 {
		pcm = append(r.carry, chunk...)
		r.carry = nil
	}
	if len(pcm)%audio.BytesPerSample != 0 {
		r.carry = []byte{pcm[len(pcm)-1]}
		pcm = pcm[:len(pcm)-1]
	}
	if len(pcm) > 0 {
		r.ext.Append(audio.BytesToSamples(pcm))
	}
}

func (r *Relay) finish(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Done is closed when the frame sequence has ended.
func (r *Relay) Done() <-chan struct{} { return r.done }

// Err reports why the sequence ended: the client read error, or nil when the
// consumer stopped pulling. Valid after Done is closed.
func (r *Relay) Err() error {
	<-r.done
	return r.err
}
