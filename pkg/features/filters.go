package features

import "math"

// Slaney mel scale constants.
const (
	melFSP       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSP
)

var melLogStep = math.Log(6.4) / 27.0

func hzToMel(f float64) float64 {
	if f < melMinLogHz {
		return f / melFSP
	}
	return melMinLogMel + math.Log(f/melMinLogHz)/melLogStep
}

func melToHz(m float64) float64 {
	if m < melMinLogMel {
		return m * melFSP
	}
	return melMinLogHz * math.Exp(melLogStep*(m-melMinLogMel))
}

// linspace returns n evenly spaced values over [lo, hi].
func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// melFilterbank builds a slaney-normalised triangular filterbank of shape
// (nMels, 1+nFFT/2) spanning 0 Hz to Nyquist.
func melFilterbank(sampleRate, nFFT, nMels int) [][]float64 {
	nBins := 1 + nFFT/2
	fftFreqs := linspace(0, float64(sampleRate)/2, nBins)

	melPts := linspace(hzToMel(0), hzToMel(float64(sampleRate)/2), nMels+2)
	hzPts := make([]float64, len(melPts))
	for i, m := range melPts {
		hzPts[i] = melToHz(m)
	}

	weights := make([][]float64, nMels)
	for i := range nMels {
		row := make([]float64, nBins)
		lo, ctr, hi := hzPts[i], hzPts[i+1], hzPts[i+2]
		enorm := 2.0 / (hi - lo)
		for k, f := range fftFreqs {
			lower := (f - lo) / (ctr - lo)
			upper := (hi - f) / (hi - ctr)
			w := math.Max(0, math.Min(lower, upper))
			row[k] = w * enorm
		}
		weights[i] = row
	}
	return weights
}

// chromaFilterbank builds a 12-bin chroma filterbank of shape
// (nChroma, 1+nFFT/2) at zero tuning, centred on octave 5 with a two-octave
// gaussian weighting, rows starting at C.
func chromaFilterbank(sampleRate, nFFT, nChroma int) [][]float64 {
	const (
		ctrOct   = 5.0
		octWidth = 2.0
	)
	nc := float64(nChroma)
	a440 := 440.0

	// Bin 0 (DC) gets a placeholder 1.5 octaves below bin 1.
	frqBins := make([]float64, nFFT)
	for i := 1; i < nFFT; i++ {
		f := float64(i) * float64(sampleRate) / float64(nFFT)
		frqBins[i] = nc * math.Log2(f/(a440/16))
	}
	frqBins[0] = frqBins[1] - 1.5*nc

	binWidth := make([]float64, nFFT)
	for i := 0; i < nFFT-1; i++ {
		binWidth[i] = math.Max(frqBins[i+1]-frqBins[i], 1)
	}
	binWidth[nFFT-1] = 1

	half := math.Round(nc / 2)
	wts := make([][]float64, nChroma)
	for c := range nChroma {
		wts[c] = make([]float64, nFFT)
		for i := range nFFT {
			d := frqBins[i] - float64(c)
			d = pyMod(d+half+10*nc, nc) - half
			x := 2 * d / binWidth[i]
			wts[c][i] = math.Exp(-0.5 * x * x)
		}
	}

	// L2-normalise each column, then apply the octave weighting.
	for i := range nFFT {
		var norm float64
		for c := range nChroma {
			norm += wts[c][i] * wts[c][i]
		}
		norm = math.Sqrt(norm)
		oct := (frqBins[i]/nc - ctrOct) / octWidth
		octW := math.Exp(-0.5 * oct * oct)
		for c := range nChroma {
			if norm > tiny {
				wts[c][i] /= norm
			}
			wts[c][i] *= octW
		}
	}

	// Roll so that row 0 is C instead of A, and keep the non-negative bins.
	shift := 3 * (nChroma / 12)
	nBins := 1 + nFFT/2
	out := make([][]float64, nChroma)
	for c := range nChroma {
		out[c] = wts[(c+shift)%nChroma][:nBins]
	}
	return out
}

// pyMod is the floored modulo: the result has the sign of m.
func pyMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

// dctOrtho computes the first n coefficients of the orthonormal DCT-II of x.
func dctOrtho(x []float64, n int) []float64 {
	size := len(x)
	out := make([]float64, n)
	scale0 := math.Sqrt(1 / float64(size))
	scale := math.Sqrt(2 / float64(size))
	for k := range n {
		var sum float64
		for i, v := range x {
			sum += v * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(size)))
		}
		if k == 0 {
			out[k] = sum * scale0
		} else {
			out[k] = sum * scale
		}
	}
	return out
}
