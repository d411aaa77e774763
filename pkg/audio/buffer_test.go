package audio_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/soundwatch/pkg/audio"
)

// ramp returns n samples whose value equals their position.
func ramp(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(i)
	}
	return s
}

func TestBuffer_SliceReturnsCopy(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(0)
	b.Append(ramp(10))

	got, err := b.Slice(2, 5)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	want := []int16{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}

	got[0] = 99
	again, _ := b.Slice(2, 3)
	if again[0] != 2 {
		t.Errorf("Slice aliases buffer storage: got %d after mutation", again[0])
	}
}

func TestBuffer_SliceRangeErrors(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(0)
	b.Append(ramp(100))

	tests := []struct {
		name       string
		start, end int
	}{
		{"past end", 50, 101},
		{"inverted", 10, 5},
		{"negative", -1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := b.Slice(tt.start, tt.end); !errors.Is(err, audio.ErrRange) {
				t.Errorf("Slice(%d,%d) err = %v, want ErrRange", tt.start, tt.end, err)
			}
		})
	}
}

func TestBuffer_TrimRebases(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(0)
	b.Append(ramp(100))
	b.Trim(40)

	if b.Len() != 60 {
		t.Errorf("Len = %d, want 60", b.Len())
	}
	if b.Origin() != 40 || b.End() != 100 {
		t.Errorf("Origin/End = %d/%d, want 40/100", b.Origin(), b.End())
	}

	got, err := b.Slice(40, 42)
	if err != nil {
		t.Fatalf("Slice after trim: %v", err)
	}
	if got[0] != 40 || got[1] != 41 {
		t.Errorf("Slice(40,42) = %v, want [40 41]", got)
	}

	b.Append([]int16{1000})
	last, err := b.Slice(100, 101)
	if err != nil {
		t.Fatalf("Slice appended: %v", err)
	}
	if last[0] != 1000 {
		t.Errorf("appended sample = %d, want 1000", last[0])
	}
}

func TestBuffer_TrimPastEnd(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(0)
	b.Append(ramp(10))
	b.Trim(50)

	if b.Len() != 0 {
		t.Errorf("Len = %d, want 0", b.Len())
	}
	if b.Origin() != 10 {
		t.Errorf("Origin = %d, want 10", b.Origin())
	}
}

// After slice(a,b) and trim(b), every window ending at or before b fails.
func TestBuffer_ReleasedWindowsFail(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ a, b int }{{0, 16000}, {100, 200}, {5, 5}} {
		buf := audio.NewBuffer(0)
		buf.Append(ramp(20000))

		if _, err := buf.Slice(tc.a, tc.b); err != nil {
			t.Fatalf("Slice(%d,%d): %v", tc.a, tc.b, err)
		}
		buf.Trim(tc.b)

		for y := 0; y <= tc.b; y += max(1, tc.b/7) {
			for x := 0; x <= y; x += max(1, y/5) {
				if _, err := buf.Slice(x, y); !errors.Is(err, audio.ErrRange) {
					t.Errorf("after trim(%d): Slice(%d,%d) err = %v, want ErrRange", tc.b, x, y, err)
				}
			}
		}
		if _, err := buf.Slice(tc.b, tc.b); !errors.Is(err, audio.ErrRange) {
			t.Errorf("after trim(%d): empty window at origin err = %v, want ErrRange", tc.b, err)
		}
	}
}

func TestBuffer_OverlappingWindowAfterTrim(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(0)
	b.Append(make([]int16, 24000))

	if _, err := b.Slice(0, 16000); err != nil {
		t.Fatalf("first window: %v", err)
	}
	b.Trim(16000)

	if _, err := b.Slice(8000, 24000); !errors.Is(err, audio.ErrRange) {
		t.Errorf("overlapping window err = %v, want ErrRange", err)
	}
	if _, err := b.Slice(16000, 24000); err != nil {
		t.Errorf("adjacent window: %v", err)
	}
}

func TestBuffer_Reset(t *testing.T) {
	t.Parallel()

	b := audio.NewBuffer(8)
	b.Append(ramp(8))
	b.Trim(4)
	b.Reset()

	if b.Len() != 0 || b.Origin() != 0 || b.End() != 0 {
		t.Errorf("after Reset: len=%d origin=%d end=%d", b.Len(), b.Origin(), b.End())
	}
	b.Append(ramp(3))
	if _, err := b.Slice(0, 3); err != nil {
		t.Errorf("Slice after Reset: %v", err)
	}
}
