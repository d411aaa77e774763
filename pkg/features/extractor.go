// Package features computes the fixed-length acoustic feature vector used by
// the emotion classifier.
//
// A clip is reduced to three blocks: the plain signal, a noise-augmented copy
// and a time-stretched plus pitch-shifted copy. Each block holds the
// time-averaged zero-crossing rate, chroma, MFCC, RMS energy and
// mel-spectrogram of its signal, in that order. The layout matches the
// offline training pipeline and must not be reordered.
package features

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/MrWong99/soundwatch/pkg/audio"
)

// ErrEmptySignal is returned by [Extractor.Extract] for clips without samples.
var ErrEmptySignal = errors.New("features: empty signal")

// Config holds the analysis parameters. The zero value is not usable; start
// from [DefaultConfig].
type Config struct {
	// SampleRate the clip is resampled to before analysis.
	SampleRate int

	// MaxDuration keeps only the first MaxDuration seconds of a clip.
	MaxDuration float64

	NFFT    int
	Hop     int
	NMels   int
	NMFCC   int
	NChroma int

	// TopDB clips the log-mel spectrogram used for MFCCs.
	TopDB float64

	// NoiseFactor scales the amplitude of the additive noise block.
	NoiseFactor float64

	// StretchRate and PitchSteps define the third block.
	StretchRate float64
	PitchSteps  float64
}

// DefaultConfig returns the parameters the classifier was trained with.
func DefaultConfig() Config {
	return Config{
		SampleRate:  22050,
		MaxDuration: 2.5,
		NFFT:        2048,
		Hop:         512,
		NMels:       128,
		NMFCC:       20,
		NChroma:     12,
		TopDB:       80,
		NoiseFactor: 0.035,
		StretchRate: 0.7,
		PitchSteps:  0.8,
	}
}

// Option configures an [Extractor].
type Option func(*Extractor)

// WithRand sets the random source used for the noise block. Tests use a
// seeded source for reproducible vectors.
func WithRand(rng *rand.Rand) Option {
	return func(e *Extractor) { e.rng = rng }
}

// Extractor turns clips into feature vectors. The filterbanks are built once
// and shared read-only; it is safe for concurrent use.
type Extractor struct {
	cfg    Config
	window []float64
	mel    [][]float64
	chroma [][]float64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New builds an Extractor for cfg.
func New(cfg Config, opts ...Option) (*Extractor, error) {
	if cfg.SampleRate <= 0 || cfg.NFFT <= 0 || cfg.Hop <= 0 || cfg.NMels <= 0 || cfg.NChroma <= 0 {
		return nil, fmt.Errorf("features: invalid config %+v", cfg)
	}
	if cfg.NMFCC > cfg.NMels {
		return nil, fmt.Errorf("features: n_mfcc %d exceeds n_mels %d", cfg.NMFCC, cfg.NMels)
	}
	e := &Extractor{
		cfg:    cfg,
		window: hann(cfg.NFFT),
		mel:    melFilterbank(cfg.SampleRate, cfg.NFFT, cfg.NMels),
		chroma: chromaFilterbank(cfg.SampleRate, cfg.NFFT, cfg.NChroma),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// BlockSize reports the length of one descriptor block.
func (e *Extractor) BlockSize() int {
	return 1 + e.cfg.NChroma + e.cfg.NMFCC + 1 + e.cfg.NMels
}

// Size reports the length of the vector returned by [Extractor.Extract].
func (e *Extractor) Size() int { return 3 * e.BlockSize() }

// Extract resamples sig, truncates it to the configured duration and returns
// the concatenated [plain, noised, stretched+pitched] descriptor blocks.
func (e *Extractor) Extract(sig audio.Signal) ([]float64, error) {
	if len(sig.Samples) == 0 || sig.SampleRate <= 0 {
		return nil, ErrEmptySignal
	}

	y := sig.Samples
	if e.cfg.MaxDuration > 0 {
		if n := int(math.Round(e.cfg.MaxDuration * float64(sig.SampleRate))); n < len(y) {
			y = y[:n]
		}
	}
	if sig.SampleRate != e.cfg.SampleRate {
		y = audio.ResampleRatio(y, float64(e.cfg.SampleRate)/float64(sig.SampleRate))
	}

	e.rngMu.Lock()
	noised := addNoise(y, e.cfg.NoiseFactor, e.rng)
	e.rngMu.Unlock()

	stretched := timeStretch(y, e.cfg.StretchRate, e.window, e.cfg.Hop)
	shifted := pitchShift(stretched, e.cfg.PitchSteps, e.window, e.cfg.Hop)

	out := make([]float64, 0, e.Size())
	out = append(out, e.Block(y)...)
	out = append(out, e.Block(noised)...)
	out = append(out, e.Block(shifted)...)
	return out, nil
}

// Block reduces one signal, already at the configured sample rate, to its
// [zcr, chroma, mfcc, rms, mel] descriptor means.
func (e *Extractor) Block(y []float64) []float64 {
	cfg := e.cfg
	spec := stft(y, e.window, cfg.Hop)
	mag, power := magnitude(spec)

	chroma := applyFilterbank(e.chroma, mag)
	normalizeMax(chroma)

	mel := applyFilterbank(e.mel, power)
	logMel := powerToDB(mel, cfg.TopDB)
	mfcc := make([][]float64, len(logMel))
	for t, frame := range logMel {
		mfcc[t] = dctOrtho(frame, cfg.NMFCC)
	}

	out := make([]float64, 0, e.BlockSize())
	out = append(out, zeroCrossingRate(y, cfg.NFFT, cfg.Hop))
	out = append(out, meanFrames(chroma, cfg.NChroma)...)
	out = append(out, meanFrames(mfcc, cfg.NMFCC)...)
	out = append(out, rmsEnergy(y, cfg.NFFT, cfg.Hop))
	out = append(out, meanFrames(mel, cfg.NMels)...)
	return out
}
