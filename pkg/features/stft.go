package features

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// tiny is the smallest positive normal float64; norms below it are treated
// as zero.
const tiny = 2.2250738585072014e-308

// hann returns a periodic Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// padCenter zero-pads y by pad samples on both sides.
func padCenter(y []float64, pad int) []float64 {
	out := make([]float64, len(y)+2*pad)
	copy(out[pad:], y)
	return out
}

// padEdge pads y by pad samples on both sides, repeating the edge values.
func padEdge(y []float64, pad int) []float64 {
	out := make([]float64, len(y)+2*pad)
	copy(out[pad:], y)
	if len(y) == 0 {
		return out
	}
	for i := range pad {
		out[i] = y[0]
		out[len(out)-1-i] = y[len(y)-1]
	}
	return out
}

// frameCount reports how many frames of length frameLen fit into n samples
// at the given hop.
func frameCount(n, frameLen, hop int) int {
	if n < frameLen {
		return 0
	}
	return 1 + (n-frameLen)/hop
}

// stft computes the centred short-time Fourier transform of y. The result is
// indexed [frame][bin] with 1+nFFT/2 bins per frame.
func stft(y []float64, window []float64, hop int) [][]complex128 {
	nFFT := len(window)
	padded := padCenter(y, nFFT/2)
	frames := frameCount(len(padded), nFFT, hop)

	fft := fourier.NewFFT(nFFT)
	seg := make([]float64, nFFT)
	out := make([][]complex128, frames)
	for t := range frames {
		off := t * hop
		for i := range nFFT {
			seg[i] = padded[off+i] * window[i]
		}
		out[t] = fft.Coefficients(nil, seg)
	}
	return out
}

// istft inverts a centred STFT by windowed overlap-add, normalising by the
// summed squared window, and returns exactly length samples.
func istft(spec [][]complex128, window []float64, hop, length int) []float64 {
	nFFT := len(window)
	frames := len(spec)
	if maxFrames := int(math.Ceil(float64(length+2*(nFFT/2)) / float64(hop))); frames > maxFrames {
		frames = maxFrames
	}
	if frames == 0 {
		return make([]float64, length)
	}

	total := nFFT + hop*(frames-1)
	y := make([]float64, total)
	wss := make([]float64, total)

	fft := fourier.NewFFT(nFFT)
	seg := make([]float64, nFFT)
	scale := 1 / float64(nFFT)
	for t := range frames {
		fft.Sequence(seg, spec[t])
		off := t * hop
		for i := range nFFT {
			y[off+i] += seg[i] * scale * window[i]
			wss[off+i] += window[i] * window[i]
		}
	}
	for i := range y {
		if wss[i] > tiny {
			y[i] /= wss[i]
		}
	}

	start := nFFT / 2
	out := make([]float64, length)
	if start < len(y) {
		copy(out, y[start:])
	}
	return out
}

// magnitude returns |spec| and |spec|^2 indexed [frame][bin].
func magnitude(spec [][]complex128) (mag, power [][]float64) {
	mag = make([][]float64, len(spec))
	power = make([][]float64, len(spec))
	for t, frame := range spec {
		m := make([]float64, len(frame))
		p := make([]float64, len(frame))
		for k, c := range frame {
			a := cmplx.Abs(c)
			m[k] = a
			p[k] = a * a
		}
		mag[t] = m
		power[t] = p
	}
	return mag, power
}

// phaseVocoder time-stretches an STFT by rate (>1 speeds up, <1 slows down)
// keeping phase coherent across frames.
func phaseVocoder(spec [][]complex128, rate float64, hop int) [][]complex128 {
	if len(spec) == 0 {
		return nil
	}
	nBins := len(spec[0])

	var steps []float64
	for i := 0; float64(i)*rate < float64(len(spec)); i++ {
		steps = append(steps, float64(i)*rate)
	}

	advance := linspace(0, math.Pi*float64(hop), nBins)
	acc := make([]float64, nBins)
	for k, c := range spec[0] {
		acc[k] = cmplx.Phase(c)
	}

	// Two zero frames past the end stand in for missing neighbours.
	column := func(i int) []complex128 {
		if i < len(spec) {
			return spec[i]
		}
		return make([]complex128, nBins)
	}

	out := make([][]complex128, len(steps))
	for t, step := range steps {
		i := int(step)
		c0, c1 := column(i), column(i+1)
		alpha := step - math.Floor(step)

		frame := make([]complex128, nBins)
		for k := range nBins {
			mag := (1-alpha)*cmplx.Abs(c0[k]) + alpha*cmplx.Abs(c1[k])
			frame[k] = cmplx.Rect(mag, acc[k])

			dphase := cmplx.Phase(c1[k]) - cmplx.Phase(c0[k]) - advance[k]
			dphase -= 2 * math.Pi * math.RoundToEven(dphase/(2*math.Pi))
			acc[k] += advance[k] + dphase
		}
		out[t] = frame
	}
	return out
}
