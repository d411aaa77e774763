package stream

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/soundwatch/pkg/audio"
)

// ErrEmptyBuffer is returned by [Extractor.Extract] when no audio is held. A
// final can race ahead of its audio or follow a trim; the utterance is
// dropped.
var ErrEmptyBuffer = errors.New("stream: audio buffer is empty")

// Extractor owns the session's audio: an [audio.Buffer] behind the single
// lock that serialises appends from the relay with extraction by the
// consumer.
type Extractor struct {
	rate   int
	margin int

	mu  sync.Mutex
	buf *audio.Buffer
}

// NewExtractor returns an empty extractor for PCM at rate. After each
// extraction it keeps margin of audio before the window end so late finals
// that overlap slightly can still be served.
func NewExtractor(rate int, margin time.Duration) *Extractor {
	return &Extractor{
		rate:   rate,
		margin: int(margin.Milliseconds() * int64(rate) / 1000),
		buf:    audio.NewBuffer(rate * 10),
	}
}

// Append records samples.
func (x *Extractor) Append(samples []int16) {
	x.mu.Lock()
	x.buf.Append(samples)
	x.mu.Unlock()
}

// Len reports the number of samples held.
func (x *Extractor) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Len()
}

// Origin reports the first position still addressable.
func (x *Extractor) Origin() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Origin()
}

// Extract returns window w as a mono 16-bit WAV container and then releases
// the audio before w.End minus the margin. It fails with [ErrEmptyBuffer]
// when nothing is held and with [audio.ErrRange] when w is not within the
// held audio; in both cases nothing is released.
func (x *Extractor) Extract(w Window) ([]byte, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.buf.Len() == 0 {
		return nil, ErrEmptyBuffer
	}
	samples, err := x.buf.Slice(w.Start, w.End)
	if err != nil {
		return nil, err
	}
	wav, err := audio.EncodeWAV(samples, x.rate)
	if err != nil {
		return nil, fmt.Errorf("stream: extract: %w", err)
	}
	x.buf.Trim(w.End - x.margin)
	return wav, nil
}

// Release drops all held audio.
func (x *Extractor) Release() {
	x.mu.Lock()
	x.buf.Reset()
	x.mu.Unlock()
}
