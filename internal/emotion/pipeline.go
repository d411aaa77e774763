// Package emotion turns an utterance (its audio and its recognised text) into
// one of seven emotion labels.
//
// The [Pipeline] runs the acoustic feature extractor and the sentence
// embedder in parallel, fuses both into one vector, standardises it with the
// training [Scaler] and asks the remote classifier for class scores. The
// arg-max class is remapped and reported as a [Label].
//
// A Pipeline holds only read-only state after construction and is shared by
// every session and the batch endpoint.
package emotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/soundwatch/internal/observe"
	"github.com/MrWong99/soundwatch/pkg/audio"
	"github.com/MrWong99/soundwatch/pkg/features"
	"github.com/MrWong99/soundwatch/pkg/provider/classifier"
	"github.com/MrWong99/soundwatch/pkg/provider/embeddings"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// ErrInference wraps every failure of a single prediction: unreadable
// audio, empty text, a failed provider call or a malformed model answer. The
// affected utterance is dropped; the caller keeps running.
var ErrInference = errors.New("emotion: inference failed")

// Result is the outcome of [Pipeline.Analyze].
type Result struct {
	Label Label

	// Scores holds the raw class scores in [Labels] order.
	Scores []float64

	// Embedding is the sentence embedding of the text. It is stored with the
	// emotion log for similarity search.
	Embedding []float32
}

// Option is a functional option for [New].
type Option func(*Pipeline)

// WithScaler sets the feature scaler. Without one, fused vectors reach the
// classifier unscaled.
func WithScaler(s *Scaler) Option {
	return func(p *Pipeline) { p.scaler = s }
}

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline is the emotion inference pipeline. It is safe for concurrent use.
type Pipeline struct {
	features   *features.Extractor
	embedder   embeddings.Provider
	classifier classifier.Provider
	scaler     *Scaler
	metrics    *observe.Metrics
}

// New assembles a Pipeline. When a scaler is configured its size must equal
// the fused vector length.
func New(fx *features.Extractor, embedder embeddings.Provider, model classifier.Provider, opts ...Option) (*Pipeline, error) {
	if fx == nil || embedder == nil || model == nil {
		return nil, errors.New("emotion: extractor, embedder and classifier are required")
	}
	p := &Pipeline{
		features:   fx,
		embedder:   embedder,
		classifier: model,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if n := p.scaler.Size(); n != 0 && n != p.FeatureSize() {
		return nil, fmt.Errorf("emotion: scaler fitted on %d features, pipeline produces %d", n, p.FeatureSize())
	}
	return p, nil
}

// FeatureSize reports the fused vector length: acoustic features followed by
// the embedding.
func (p *Pipeline) FeatureSize() int {
	return p.features.Size() + p.embedder.Dimensions()
}

// Predict classifies one utterance given as a WAV container and its text.
func (p *Pipeline) Predict(ctx context.Context, wav []byte, text string) (Label, error) {
	res, err := p.Analyze(ctx, wav, text)
	if err != nil {
		return "", err
	}
	return res.Label, nil
}

// Analyze is [Pipeline.Predict] but also returns the scores and the sentence
// embedding.
func (p *Pipeline) Analyze(ctx context.Context, wav []byte, text string) (Result, error) {
	ctx, span := observe.StartSpan(ctx, "emotion.analyze")
	defer span.End()
	start := time.Now()
	p.metrics.InflightInference.Add(ctx, 1)
	defer p.metrics.InflightInference.Add(ctx, -1)

	res, err := p.analyze(ctx, wav, text)
	p.metrics.InferenceDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.String("emotion", string(res.Label)))
	return res, nil
}

func (p *Pipeline) analyze(ctx context.Context, wav []byte, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("%w: empty text", ErrInference)
	}
	sig, err := audio.DecodeWAV(wav)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInference, err)
	}

	var (
		acoustic  []float64
		embedding []float32
	)
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		start := time.Now()
		vec, err := p.features.Extract(sig)
		p.metrics.FeatureDuration.Record(egCtx, time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("extract features: %w", err)
		}
		acoustic = vec
		return nil
	})

	eg.Go(func() error {
		start := time.Now()
		vec, err := p.embedder.Embed(egCtx, text)
		p.metrics.EmbeddingDuration.Record(egCtx, time.Since(start).Seconds())
		if err != nil {
			p.metrics.RecordProviderError(egCtx, p.embedder.ModelID(), "embeddings")
			return fmt.Errorf("embed text: %w", err)
		}
		embedding = vec
		return nil
	})

	if err := eg.Wait(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInference, err)
	}

	scaled, err := p.scaler.Transform(Fuse(acoustic, embedding))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInference, err)
	}

	start := time.Now()
	scores, err := p.classifier.Predict(ctx, scaled)
	p.metrics.ClassifierDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, "classifier", "classifier")
		return Result{}, fmt.Errorf("%w: classify: %w", ErrInference, err)
	}
	if len(scores) != len(Labels) {
		return Result{}, fmt.Errorf("%w: model returned %d scores, want %d", ErrInference, len(scores), len(Labels))
	}
	label, err := LabelFromIndex(ArgMax(scores))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	return Result{Label: label, Scores: scores, Embedding: embedding}, nil
}

// Fuse appends the sentence embedding to the acoustic features.
func Fuse(acoustic []float64, embedding []float32) []float64 {
	out := make([]float64, 0, len(acoustic)+len(embedding))
	out = append(out, acoustic...)
	for _, v := range embedding {
		out = append(out, float64(v))
	}
	return out
}

// Ready reports whether the classifier backend is serving.
func (p *Pipeline) Ready(ctx context.Context) error {
	return p.classifier.Ready(ctx)
}
