package audio

import (
	"errors"
	"fmt"
)

// ErrRange is returned by [Buffer.Slice] when a window does not lie within
// the samples the buffer still holds.
var ErrRange = errors.New("audio: window out of buffer range")

// Buffer accumulates the samples of one live stream and hands out windows of
// it by absolute sample position.
//
// Positions are counted from the first sample ever appended, which is the
// same axis the recognizer uses for word timings. [Buffer.Trim] releases a
// prefix of the stream: the backing storage is rebased to zero and the
// released positions can never be addressed again.
//
// Buffer is not safe for concurrent use. The owning session serialises all
// calls behind one lock.
type Buffer struct {
	samples []int16
	origin  int
	trimmed bool
}

// NewBuffer returns an empty buffer with room for capacity samples.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{samples: make([]int16, 0, max(capacity, 0))}
}

// Append extends the buffer with samples.
func (b *Buffer) Append(samples []int16) {
	b.samples = append(b.samples, samples...)
}

// Len reports the number of samples currently held.
func (b *Buffer) Len() int { return len(b.samples) }

// Origin reports the absolute position of the first held sample.
func (b *Buffer) Origin() int { return b.origin }

// End reports the absolute position one past the last held sample.
func (b *Buffer) End() int { return b.origin + len(b.samples) }

// Slice returns a copy of the samples in the absolute window [start, end).
//
// It fails with [ErrRange] when the window is inverted, extends past the end
// of the buffer, starts before the trimmed origin, or ends at or before a
// position that has already been released by [Buffer.Trim].
func (b *Buffer) Slice(start, end int) ([]int16, error) {
	switch {
	case start < 0 || start > end:
		return nil, fmt.Errorf("%w: invalid window [%d,%d)", ErrRange, start, end)
	case end > b.End():
		return nil, fmt.Errorf("%w: window [%d,%d) ends past buffer end %d", ErrRange, start, end, b.End())
	case start < b.origin:
		return nil, fmt.Errorf("%w: window [%d,%d) starts before origin %d", ErrRange, start, end, b.origin)
	case b.trimmed && end <= b.origin:
		return nil, fmt.Errorf("%w: window [%d,%d) lies in released audio", ErrRange, start, end)
	}
	out := make([]int16, end-start)
	copy(out, b.samples[start-b.origin:end-b.origin])
	return out, nil
}

// Trim releases every sample at a position below upTo. Values at or below
// the current origin are a no-op; values past the end release everything
// held, leaving the origin at the current end.
func (b *Buffer) Trim(upTo int) {
	if upTo <= b.origin {
		return
	}
	drop := min(upTo-b.origin, len(b.samples))
	rest := len(b.samples) - drop

	// Copy into fresh storage so the released prefix can be collected.
	kept := make([]int16, rest, max(rest, cap(b.samples)-drop))
	copy(kept, b.samples[drop:])
	b.samples = kept
	b.origin += drop
	b.trimmed = true
}

// Reset drops all samples and restarts positions at zero.
func (b *Buffer) Reset() {
	b.samples = b.samples[:0]
	b.origin = 0
	b.trimmed = false
}
