package resilience

import (
	"context"

	"github.com/MrWong99/soundwatch/pkg/provider/classifier"
	"github.com/MrWong99/soundwatch/pkg/provider/embeddings"
	"github.com/MrWong99/soundwatch/pkg/provider/llm"
	"github.com/MrWong99/soundwatch/pkg/provider/sentiment"
)

// ── Sentiment ─────────────────────────────────────────────────────────────────

// SentimentFallback implements [sentiment.Provider] with failover.
type SentimentFallback struct {
	group *FallbackGroup[sentiment.Provider]
}

var _ sentiment.Provider = (*SentimentFallback)(nil)

// NewSentimentFallback creates a [SentimentFallback] with primary as the
// preferred backend.
func NewSentimentFallback(primary sentiment.Provider, primaryName string, cfg FallbackConfig) *SentimentFallback {
	if cfg.Kind == "" {
		cfg.Kind = "sentiment"
	}
	return &SentimentFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional backend.
func (f *SentimentFallback) AddFallback(name string, provider sentiment.Provider) {
	f.group.AddFallback(name, provider)
}

// Classify asks the first healthy backend.
func (f *SentimentFallback) Classify(ctx context.Context, text string) (sentiment.Label, error) {
	return ExecuteWithResult(f.group, func(p sentiment.Provider) (sentiment.Label, error) {
		return p.Classify(ctx, text)
	})
}

// ── Embeddings ────────────────────────────────────────────────────────────────

// EmbeddingsFallback implements [embeddings.Provider] with failover. Every
// backend must produce vectors of the primary's dimensionality; the emotion
// classifier and the emotion log are sized for it.
type EmbeddingsFallback struct {
	group *FallbackGroup[embeddings.Provider]
}

var _ embeddings.Provider = (*EmbeddingsFallback)(nil)

// NewEmbeddingsFallback creates an [EmbeddingsFallback] with primary as the
// preferred backend.
func NewEmbeddingsFallback(primary embeddings.Provider, primaryName string, cfg FallbackConfig) *EmbeddingsFallback {
	if cfg.Kind == "" {
		cfg.Kind = "embeddings"
	}
	return &EmbeddingsFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional backend. It fails with
// [embeddings.ErrDimensionMismatch] when provider's vectors have a different
// length than the primary's.
func (f *EmbeddingsFallback) AddFallback(name string, provider embeddings.Provider) error {
	if got, want := provider.Dimensions(), f.Dimensions(); got != want {
		return embeddings.DimensionError(name, got, want)
	}
	f.group.AddFallback(name, provider)
	return nil
}

// Embed asks the first healthy backend.
func (f *EmbeddingsFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// Dimensions reports the primary's vector length.
func (f *EmbeddingsFallback) Dimensions() int { return f.group.Primary().Dimensions() }

// ModelID reports the primary's model.
func (f *EmbeddingsFallback) ModelID() string { return f.group.Primary().ModelID() }

// ── Classifier ────────────────────────────────────────────────────────────────

// ClassifierFallback implements [classifier.Provider] with failover across
// model servers hosting the same model.
type ClassifierFallback struct {
	group *FallbackGroup[classifier.Provider]
}

var _ classifier.Provider = (*ClassifierFallback)(nil)

// NewClassifierFallback creates a [ClassifierFallback] with primary as the
// preferred server.
func NewClassifierFallback(primary classifier.Provider, primaryName string, cfg FallbackConfig) *ClassifierFallback {
	if cfg.Kind == "" {
		cfg.Kind = "classifier"
	}
	return &ClassifierFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional server.
func (f *ClassifierFallback) AddFallback(name string, provider classifier.Provider) {
	f.group.AddFallback(name, provider)
}

// Predict asks the first healthy server.
func (f *ClassifierFallback) Predict(ctx context.Context, features []float64) ([]float64, error) {
	return ExecuteWithResult(f.group, func(p classifier.Provider) ([]float64, error) {
		return p.Predict(ctx, features)
	})
}

// Ready succeeds when any server is ready. Readiness probes bypass the
// breakers so a recovering server is noticed.
func (f *ClassifierFallback) Ready(ctx context.Context) error {
	var lastErr error
	for _, e := range f.group.entries {
		if lastErr = e.value.Ready(ctx); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// ── LLM ───────────────────────────────────────────────────────────────────────

// LLMFallback implements [llm.Provider] with failover across completion
// backends.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	if cfg.Kind == "" {
		cfg.Kind = "llm"
	}
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional backend.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends req to the first healthy backend.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
