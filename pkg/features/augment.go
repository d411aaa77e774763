package features

import (
	"math"
	"math/rand/v2"

	"github.com/MrWong99/soundwatch/pkg/audio"
)

// addNoise returns y with gaussian noise added. The noise amplitude is
// factor * U(0,1) * max|y|.
func addNoise(y []float64, factor float64, rng *rand.Rand) []float64 {
	peak := 0.0
	for _, v := range y {
		peak = math.Max(peak, math.Abs(v))
	}
	amp := factor * rng.Float64() * peak

	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = v + amp*rng.NormFloat64()
	}
	return out
}

// timeStretch changes the duration of y by 1/rate without changing pitch.
func timeStretch(y []float64, rate float64, window []float64, hop int) []float64 {
	if len(y) == 0 || rate <= 0 {
		return y
	}
	spec := stft(y, window, hop)
	stretched := phaseVocoder(spec, rate, hop)
	length := int(math.Round(float64(len(y)) / rate))
	return istft(stretched, window, hop, length)
}

// pitchShift moves y by steps semitones while keeping its length.
func pitchShift(y []float64, steps float64, window []float64, hop int) []float64 {
	if len(y) == 0 {
		return y
	}
	rate := math.Pow(2, -steps/12)
	stretched := timeStretch(y, rate, window, hop)
	shifted := audio.ResampleRatio(stretched, rate)
	return fixLength(shifted, len(y))
}

// fixLength truncates or zero-pads y to exactly n samples.
func fixLength(y []float64, n int) []float64 {
	if len(y) == n {
		return y
	}
	out := make([]float64, n)
	copy(out, y)
	return out
}
