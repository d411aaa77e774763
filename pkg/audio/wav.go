package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned by [DecodeWAV] for data that is not a readable
// PCM WAV container.
var ErrInvalidWAV = errors.New("audio: invalid wav data")

const pcmFormat = 1

// Signal is a decoded mono clip.
type Signal struct {
	// Samples holds the mono signal normalised to [-1, 1).
	Samples []float64

	// SampleRate of Samples in Hz.
	SampleRate int
}

// Duration reports the clip length in seconds.
func (s Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// EncodeWAV packs mono int16 samples into a 16-bit PCM WAV container.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: encode wav: invalid sample rate %d", sampleRate)
	}

	ws := &writeSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, 16, 1, pcmFormat)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: encode wav: close: %w", err)
	}
	return ws.buf, nil
}

// DecodeWAV reads a PCM WAV container of any bit depth and channel count and
// returns it as a mono [Signal]. Multi-channel audio is averaged to mono.
func DecodeWAV(data []byte) (Signal, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Signal{}, ErrInvalidWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	channels := int(dec.NumChans)
	depth := int(dec.BitDepth)
	if channels <= 0 || depth <= 0 || dec.SampleRate == 0 {
		return Signal{}, fmt.Errorf("%w: bad format (channels=%d depth=%d rate=%d)", ErrInvalidWAV, channels, depth, dec.SampleRate)
	}

	scale := float64(int64(1) << (depth - 1))
	if depth == 8 {
		// 8-bit WAV is unsigned.
		scale = 128
	}

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			v := float64(buf.Data[i*channels+c])
			if depth == 8 {
				v -= 128
			}
			sum += v
		}
		out[i] = sum / float64(channels) / scale
	}
	return Signal{Samples: out, SampleRate: int(dec.SampleRate)}, nil
}

// writeSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		if end > cap(w.buf) {
			grown := make([]byte, end, max(end, 2*cap(w.buf)))
			copy(grown, w.buf)
			w.buf = grown
		} else {
			w.buf = w.buf[:end]
		}
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("audio: seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("audio: seek: negative position %d", abs)
	}
	w.pos = int(abs)
	return abs, nil
}
