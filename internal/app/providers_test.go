package app_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/soundwatch/internal/app"
	"github.com/MrWong99/soundwatch/internal/config"
	"github.com/MrWong99/soundwatch/internal/resilience"
	"github.com/MrWong99/soundwatch/pkg/provider/classifier"
	classifiermock "github.com/MrWong99/soundwatch/pkg/provider/classifier/mock"
	"github.com/MrWong99/soundwatch/pkg/provider/embeddings"
	embmock "github.com/MrWong99/soundwatch/pkg/provider/embeddings/mock"
	"github.com/MrWong99/soundwatch/pkg/provider/llm"
	llmmock "github.com/MrWong99/soundwatch/pkg/provider/llm/mock"
	"github.com/MrWong99/soundwatch/pkg/provider/recognizer"
	recmock "github.com/MrWong99/soundwatch/pkg/provider/recognizer/mock"
	"github.com/MrWong99/soundwatch/pkg/provider/sentiment"
	"github.com/MrWong99/soundwatch/pkg/provider/sentiment/llmsentiment"
	sentmock "github.com/MrWong99/soundwatch/pkg/provider/sentiment/mock"
)

// mockRegistry registers a "mock" factory for every provider kind. Embedding
// factories report the dimensions given in the entry's "dims" option, or 4.
func mockRegistry() *config.Registry {
	reg := config.NewRegistry()
	reg.RegisterRecognizer("mock", func(config.ProviderEntry) (recognizer.Provider, error) {
		return &recmock.Provider{}, nil
	})
	reg.RegisterSentiment("mock", func(config.ProviderEntry) (sentiment.Provider, error) {
		return &sentmock.Provider{}, nil
	})
	reg.RegisterEmbeddings("mock", func(e config.ProviderEntry) (embeddings.Provider, error) {
		dims := 4
		if e.Option("dims") == "8" {
			dims = 8
		}
		return &embmock.Provider{Dims: dims}, nil
	})
	reg.RegisterClassifier("mock", func(config.ProviderEntry) (classifier.Provider, error) {
		return &classifiermock.Provider{}, nil
	})
	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})
	return reg
}

func providerConfig() *config.Config {
	mock := config.ProviderEntry{Name: "mock"}
	return &config.Config{
		Providers: config.ProvidersConfig{
			Recognizer: mock,
			Sentiment:  mock,
			Embeddings: mock,
			Classifier: mock,
		},
		Database: config.DatabaseConfig{EmbeddingDimensions: 4},
	}
}

func TestBuildProviders_Plain(t *testing.T) {
	t.Parallel()

	ps, err := app.BuildProviders(providerConfig(), mockRegistry())
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	if _, ok := ps.Recognizer.(*recmock.Provider); !ok {
		t.Errorf("Recognizer = %T, want *mock.Provider", ps.Recognizer)
	}
	if _, ok := ps.Sentiment.(*sentmock.Provider); !ok {
		t.Errorf("Sentiment = %T, want *mock.Provider", ps.Sentiment)
	}
	if _, ok := ps.Embeddings.(*embmock.Provider); !ok {
		t.Errorf("Embeddings = %T, want *mock.Provider", ps.Embeddings)
	}
	if _, ok := ps.Classifier.(*classifiermock.Provider); !ok {
		t.Errorf("Classifier = %T, want *mock.Provider", ps.Classifier)
	}
	if ps.LLM != nil {
		t.Errorf("LLM = %T, want nil", ps.LLM)
	}
}

func TestBuildProviders_Fallbacks(t *testing.T) {
	t.Parallel()

	cfg := providerConfig()
	fb := []config.ProviderEntry{{Name: "mock"}}
	cfg.Providers.Recognizer.Fallbacks = fb
	cfg.Providers.Sentiment.Fallbacks = fb
	cfg.Providers.Embeddings.Fallbacks = fb
	cfg.Providers.Classifier.Fallbacks = fb

	ps, err := app.BuildProviders(cfg, mockRegistry())
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	if _, ok := ps.Recognizer.(*resilience.RecognizerFallback); !ok {
		t.Errorf("Recognizer = %T, want *resilience.RecognizerFallback", ps.Recognizer)
	}
	if _, ok := ps.Sentiment.(*resilience.SentimentFallback); !ok {
		t.Errorf("Sentiment = %T, want *resilience.SentimentFallback", ps.Sentiment)
	}
	if _, ok := ps.Embeddings.(*resilience.EmbeddingsFallback); !ok {
		t.Errorf("Embeddings = %T, want *resilience.EmbeddingsFallback", ps.Embeddings)
	}
	if _, ok := ps.Classifier.(*resilience.ClassifierFallback); !ok {
		t.Errorf("Classifier = %T, want *resilience.ClassifierFallback", ps.Classifier)
	}
}

func TestBuildProviders_LLMSentiment(t *testing.T) {
	t.Parallel()

	cfg := providerConfig()
	cfg.Providers.LLM = config.ProviderEntry{Name: "mock", Model: "small"}
	cfg.Providers.Sentiment = config.ProviderEntry{
		Name:    config.SentimentLLM,
		Options: map[string]any{"neutral_label": "neutral"},
	}

	ps, err := app.BuildProviders(cfg, mockRegistry())
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	if _, ok := ps.LLM.(*llmmock.Provider); !ok {
		t.Errorf("LLM = %T, want *mock.Provider", ps.LLM)
	}
	if _, ok := ps.Sentiment.(*llmsentiment.Provider); !ok {
		t.Errorf("Sentiment = %T, want *llmsentiment.Provider", ps.Sentiment)
	}
}

func TestBuildProviders_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{
			name: "unknown recognizer",
			mutate: func(c *config.Config) {
				c.Providers.Recognizer.Name = "nope"
			},
			wantErr: config.ErrProviderNotRegistered,
		},
		{
			name: "llm sentiment without llm",
			mutate: func(c *config.Config) {
				c.Providers.Sentiment.Name = config.SentimentLLM
			},
			wantErr: config.ErrProviderNotRegistered,
		},
		{
			name: "embedding dimensions differ from database",
			mutate: func(c *config.Config) {
				c.Database.EmbeddingDimensions = 8
			},
			wantErr: embeddings.ErrDimensionMismatch,
		},
		{
			name: "embedding fallback dimensions differ",
			mutate: func(c *config.Config) {
				c.Providers.Embeddings.Fallbacks = []config.ProviderEntry{
					{Name: "mock", Options: map[string]any{"dims": "8"}},
				}
			},
			wantErr: embeddings.ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := providerConfig()
			tt.mutate(cfg)
			_, err := app.BuildProviders(cfg, mockRegistry())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
