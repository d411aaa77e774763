package audio_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/MrWong99/soundwatch/pkg/audio"
)

func TestEncodeWAV_Header(t *testing.T) {
	t.Parallel()

	data, err := audio.EncodeWAV(ramp(1600), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE magic: %q %q", data[0:4], data[8:12])
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); int(got) != len(data)-8 {
		t.Errorf("RIFF size = %d, want %d", got, len(data)-8)
	}
	if got := binary.LittleEndian.Uint16(data[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint16(data[34:36]); got != 16 {
		t.Errorf("bit depth = %d, want 16", got)
	}
}

func TestEncodeDecodeWAV(t *testing.T) {
	t.Parallel()

	in := []int16{0, 16384, -16384, 32767, -32768}
	data, err := audio.EncodeWAV(in, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	sig, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if sig.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", sig.SampleRate)
	}
	want := []float64{0, 0.5, -0.5, 32767.0 / 32768, -1}
	if len(sig.Samples) != len(want) {
		t.Fatalf("len = %d, want %d", len(sig.Samples), len(want))
	}
	for i := range want {
		if math.Abs(sig.Samples[i]-want[i]) > 1e-9 {
			t.Errorf("sample %d = %v, want %v", i, sig.Samples[i], want[i])
		}
	}
}

func TestEncodeWAV_Empty(t *testing.T) {
	t.Parallel()

	data, err := audio.EncodeWAV(nil, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if len(data) < 44 {
		t.Errorf("header too short: %d bytes", len(data))
	}
}

func TestEncodeWAV_InvalidRate(t *testing.T) {
	t.Parallel()

	if _, err := audio.EncodeWAV(ramp(4), 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestDecodeWAV_Garbage(t *testing.T) {
	t.Parallel()

	_, err := audio.DecodeWAV([]byte("definitely not a riff container"))
	if !errors.Is(err, audio.ErrInvalidWAV) {
		t.Errorf("err = %v, want ErrInvalidWAV", err)
	}
}

func TestSignalDuration(t *testing.T) {
	t.Parallel()

	s := audio.Signal{Samples: make([]float64, 8000), SampleRate: 16000}
	if got := s.Duration(); got != 0.5 {
		t.Errorf("Duration = %v, want 0.5", got)
	}
	if got := (audio.Signal{}).Duration(); got != 0 {
		t.Errorf("zero Signal Duration = %v, want 0", got)
	}
}
