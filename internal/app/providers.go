package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/soundwatch/internal/config"
	"github.com/MrWong99/soundwatch/internal/resilience"
	"github.com/MrWong99/soundwatch/pkg/provider/classifier"
	"github.com/MrWong99/soundwatch/pkg/provider/embeddings"
	"github.com/MrWong99/soundwatch/pkg/provider/llm"
	"github.com/MrWong99/soundwatch/pkg/provider/recognizer"
	"github.com/MrWong99/soundwatch/pkg/provider/sentiment"
	"github.com/MrWong99/soundwatch/pkg/provider/sentiment/llmsentiment"
)

// Providers holds one interface value per provider slot. LLM is nil unless
// configured. Populated by [BuildProviders] or injected by tests.
type Providers struct {
	Recognizer recognizer.Provider
	Sentiment  sentiment.Provider
	Embeddings embeddings.Provider
	Classifier classifier.Provider
	LLM        llm.Provider
}

func (p *Providers) validate() error {
	var errs []error
	if p.Recognizer == nil {
		errs = append(errs, errors.New("recognizer provider is required"))
	}
	if p.Sentiment == nil {
		errs = append(errs, errors.New("sentiment provider is required"))
	}
	if p.Embeddings == nil {
		errs = append(errs, errors.New("embeddings provider is required"))
	}
	if p.Classifier == nil {
		errs = append(errs, errors.New("classifier provider is required"))
	}
	return errors.Join(errs...)
}

// BuildProviders instantiates every provider named in cfg through reg. An
// entry with fallbacks is wrapped in the matching resilience fallback so each
// backend sits behind its own circuit breaker.
//
// The LLM is built first. When the sentiment entry (or one of its
// fallbacks) is "llm", a factory classifying with that LLM is registered
// under [config.SentimentLLM].
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}
	fb := resilience.FallbackConfig{CircuitBreaker: resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.Resilience.MaxFailures,
		ResetTimeout: cfg.Resilience.ResetTimeout,
	}}
	p := cfg.Providers

	// ── LLM ───────────────────────────────────────────────────────────────
	if p.LLM.Name != "" {
		primary, err := reg.CreateLLM(p.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", p.LLM.Name, err)
		}
		ps.LLM = primary
		if len(p.LLM.Fallbacks) > 0 {
			fb.Kind = "llm"
			group := resilience.NewLLMFallback(primary, p.LLM.Name, fb)
			for _, e := range p.LLM.Fallbacks {
				alt, err := reg.CreateLLM(e)
				if err != nil {
					return nil, fmt.Errorf("create llm fallback %q: %w", e.Name, err)
				}
				group.AddFallback(e.Name, alt)
			}
			ps.LLM = group
		}
		logCreated("llm", p.LLM)

		model := ps.LLM
		reg.RegisterSentiment(config.SentimentLLM, func(e config.ProviderEntry) (sentiment.Provider, error) {
			var opts []llmsentiment.Option
			if l := e.Option("neutral_label"); l != "" {
				opts = append(opts, llmsentiment.WithNeutralLabel(l))
			}
			return llmsentiment.New(model, opts...), nil
		})
	}

	// ── Recognizer ────────────────────────────────────────────────────────
	rec, err := reg.CreateRecognizer(p.Recognizer)
	if err != nil {
		return nil, fmt.Errorf("create recognizer provider %q: %w", p.Recognizer.Name, err)
	}
	ps.Recognizer = rec
	if len(p.Recognizer.Fallbacks) > 0 {
		fb.Kind = "recognizer"
		group := resilience.NewRecognizerFallback(rec, p.Recognizer.Name, fb)
		for _, e := range p.Recognizer.Fallbacks {
			alt, err := reg.CreateRecognizer(e)
			if err != nil {
				return nil, fmt.Errorf("create recognizer fallback %q: %w", e.Name, err)
			}
			group.AddFallback(e.Name, alt)
		}
		ps.Recognizer = group
	}
	logCreated("recognizer", p.Recognizer)

	// ── Sentiment ─────────────────────────────────────────────────────────
	sent, err := reg.CreateSentiment(p.Sentiment)
	if err != nil {
		return nil, fmt.Errorf("create sentiment provider %q: %w", p.Sentiment.Name, err)
	}
	ps.Sentiment = sent
	if len(p.Sentiment.Fallbacks) > 0 {
		fb.Kind = "sentiment"
		group := resilience.NewSentimentFallback(sent, p.Sentiment.Name, fb)
		for _, e := range p.Sentiment.Fallbacks {
			alt, err := reg.CreateSentiment(e)
			if err != nil {
				return nil, fmt.Errorf("create sentiment fallback %q: %w", e.Name, err)
			}
			group.AddFallback(e.Name, alt)
		}
		ps.Sentiment = group
	}
	logCreated("sentiment", p.Sentiment)

	// ── Embeddings ────────────────────────────────────────────────────────
	emb, err := reg.CreateEmbeddings(p.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("create embeddings provider %q: %w", p.Embeddings.Name, err)
	}
	if want := cfg.Database.EmbeddingDimensions; want > 0 && emb.Dimensions() != want {
		return nil, embeddings.DimensionError(p.Embeddings.Name, emb.Dimensions(), want)
	}
	ps.Embeddings = emb
	if len(p.Embeddings.Fallbacks) > 0 {
		fb.Kind = "embeddings"
		group := resilience.NewEmbeddingsFallback(emb, p.Embeddings.Name, fb)
		for _, e := range p.Embeddings.Fallbacks {
			alt, err := reg.CreateEmbeddings(e)
			if err != nil {
				return nil, fmt.Errorf("create embeddings fallback %q: %w", e.Name, err)
			}
			if err := group.AddFallback(e.Name, alt); err != nil {
				return nil, err
			}
		}
		ps.Embeddings = group
	}
	logCreated("embeddings", p.Embeddings)

	// ── Classifier ────────────────────────────────────────────────────────
	cls, err := reg.CreateClassifier(p.Classifier)
	if err != nil {
		return nil, fmt.Errorf("create classifier provider %q: %w", p.Classifier.Name, err)
	}
	ps.Classifier = cls
	if len(p.Classifier.Fallbacks) > 0 {
		fb.Kind = "classifier"
		group := resilience.NewClassifierFallback(cls, p.Classifier.Name, fb)
		for _, e := range p.Classifier.Fallbacks {
			alt, err := reg.CreateClassifier(e)
			if err != nil {
				return nil, fmt.Errorf("create classifier fallback %q: %w", e.Name, err)
			}
			group.AddFallback(e.Name, alt)
		}
		ps.Classifier = group
	}
	logCreated("classifier", p.Classifier)

	return ps, nil
}

func logCreated(kind string, e config.ProviderEntry) {
	names := make([]string, 0, len(e.Fallbacks))
	for _, f := range e.Fallbacks {
		names = append(names, f.Name)
	}
	slog.Info("provider created", "kind", kind, "name", e.Name, "model", e.Model, "fallbacks", names)
}
