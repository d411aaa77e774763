package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// zeroCrossingRate returns the mean per-frame zero-crossing rate of y using
// edge-padded centred frames. Values with magnitude at or below 1e-10 count
// as zero, and zero counts as positive.
func zeroCrossingRate(y []float64, frameLen, hop int) float64 {
	const threshold = 1e-10

	padded := padEdge(y, frameLen/2)
	signs := make([]bool, len(padded))
	for i, v := range padded {
		if math.Abs(v) <= threshold {
			v = 0
		}
		signs[i] = math.Signbit(v)
	}

	frames := frameCount(len(padded), frameLen, hop)
	if frames == 0 {
		return 0
	}
	var total float64
	for t := range frames {
		off := t * hop
		crossings := 0
		// The first sample of a frame never counts as a crossing.
		for i := off + 1; i < off+frameLen; i++ {
			if signs[i] != signs[i-1] {
				crossings++
			}
		}
		total += float64(crossings) / float64(frameLen)
	}
	return total / float64(frames)
}

// rmsEnergy returns the mean per-frame root-mean-square energy of y using
// zero-padded centred frames.
func rmsEnergy(y []float64, frameLen, hop int) float64 {
	padded := padCenter(y, frameLen/2)
	frames := frameCount(len(padded), frameLen, hop)
	if frames == 0 {
		return 0
	}
	var total float64
	for t := range frames {
		seg := padded[t*hop : t*hop+frameLen]
		total += math.Sqrt(floats.Dot(seg, seg) / float64(frameLen))
	}
	return total / float64(frames)
}

// applyFilterbank projects each spectrogram frame through fb and returns the
// result indexed [frame][filter].
func applyFilterbank(fb [][]float64, spec [][]float64) [][]float64 {
	out := make([][]float64, len(spec))
	for t, frame := range spec {
		row := make([]float64, len(fb))
		for i, filter := range fb {
			row[i] = floats.Dot(filter, frame)
		}
		out[t] = row
	}
	return out
}

// normalizeMax scales each frame so its largest magnitude is 1.
func normalizeMax(frames [][]float64) {
	for _, f := range frames {
		m := 0.0
		for _, v := range f {
			m = math.Max(m, math.Abs(v))
		}
		if m > tiny {
			floats.Scale(1/m, f)
		}
	}
}

// powerToDB converts a power spectrogram to decibels relative to 1.0 with an
// amplitude floor of 1e-10, clipping everything more than topDB below the
// global peak.
func powerToDB(frames [][]float64, topDB float64) [][]float64 {
	const amin = 1e-10

	out := make([][]float64, len(frames))
	peak := math.Inf(-1)
	for t, f := range frames {
		row := make([]float64, len(f))
		for i, v := range f {
			row[i] = 10 * math.Log10(math.Max(amin, v))
			peak = math.Max(peak, row[i])
		}
		out[t] = row
	}
	floor := peak - topDB
	for _, row := range out {
		for i, v := range row {
			row[i] = math.Max(v, floor)
		}
	}
	return out
}

// meanFrames averages frames over time, returning one value per coefficient.
func meanFrames(frames [][]float64, width int) []float64 {
	out := make([]float64, width)
	if len(frames) == 0 {
		return out
	}
	for _, f := range frames {
		floats.Add(out, f[:width])
	}
	floats.Scale(1/float64(len(frames)), out)
	return out
}
