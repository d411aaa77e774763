// Package audio holds the PCM plumbing shared by the streaming and batch
// paths: sample/byte conversion, resampling, the per-session sample [Buffer]
// and the WAV container codec.
//
// All PCM handled here is little-endian signed 16-bit. Float signals are
// normalised to [-1, 1).
package audio

import (
	"encoding/binary"
	"math"
)

// BytesPerSample is the width of one signed 16-bit PCM sample.
const BytesPerSample = 2

// BytesToSamples decodes little-endian int16 PCM. A trailing odd byte is
// ignored; callers that stream PCM in arbitrary chunks should carry it over
// to the next chunk themselves.
func BytesToSamples(pcm []byte) []int16 {
	n := len(pcm) / BytesPerSample
	out := make([]int16, n)
	for i := range n {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))
	}
	return out
}

// SamplesToBytes encodes samples as little-endian int16 PCM.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(s))
	}
	return out
}

// SamplesToFloat converts int16 samples to floats in [-1, 1).
func SamplesToFloat(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768
	}
	return out
}

// Resample converts a mono float signal from srcRate to dstRate using linear
// interpolation. The output length is len(in)*dstRate/srcRate (truncated).
// If the rates match, in is returned unchanged.
func Resample(in []float64, srcRate, dstRate int) []float64 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(dstRate) / int64(srcRate))
	return interpolate(in, float64(srcRate)/float64(dstRate), n)
}

// ResampleRatio scales the sampling rate of in by ratio (output rate over
// input rate) using linear interpolation. The output has ceil(len(in)*ratio)
// samples.
func ResampleRatio(in []float64, ratio float64) []float64 {
	if ratio <= 0 || ratio == 1 || len(in) == 0 {
		return in
	}
	n := int(math.Ceil(float64(len(in)) * ratio))
	return interpolate(in, 1/ratio, n)
}

// interpolate produces n samples reading in at positions i*step.
func interpolate(in []float64, step float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	last := len(in) - 1
	for i := range n {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = in[last]
			continue
		}
		frac := pos - float64(idx)
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}
