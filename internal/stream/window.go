package stream

import (
	"fmt"

	"github.com/MrWong99/soundwatch/pkg/provider/recognizer"
)

// Window is a half-open range [Start, End) of absolute sample positions.
type Window struct {
	Start, End int
}

// Len reports the number of samples in the window.
func (w Window) Len() int { return w.End - w.Start }

// WindowFromWords converts the word timing of a final utterance (in
// milliseconds since stream start) to a sample window at rate. It spans from
// the start of the first word to the end of the last word, truncating both
// bounds.
func WindowFromWords(words []recognizer.Word, rate int) (Window, error) {
	if len(words) == 0 {
		return Window{}, fmt.Errorf("%w: final without word timing", ErrUpstreamProtocol)
	}
	first, last := words[0], words[len(words)-1]
	w := Window{
		Start: int(first.StartAt * int64(rate) / 1000),
		End:   int((last.StartAt + last.Duration) * int64(rate) / 1000),
	}
	if w.Start < 0 || w.End < w.Start {
		return Window{}, fmt.Errorf("%w: invalid word timing [%d ms, %d ms)", ErrUpstreamProtocol, first.StartAt, last.StartAt+last.Duration)
	}
	return w, nil
}
