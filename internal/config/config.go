// Package config provides the configuration schema, loader, provider registry
// and hot-reload watcher for the soundwatch server.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog returns the matching [slog.Level]. Unknown and empty levels map to
// info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on. Default ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. It is applied without a restart.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// MaxUploadBytes caps multipart uploads on /emotion. Default 32 MiB.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the implementation of every remote model. Each
// entry names a factory registered in the [Registry].
type ProvidersConfig struct {
	// Recognizer is the streaming speech-to-text backend.
	Recognizer ProviderEntry `yaml:"recognizer"`

	// Sentiment screens transcripts before full inference. The name "llm"
	// classifies with the LLM entry below.
	Sentiment ProviderEntry `yaml:"sentiment"`

	// Embeddings produces the sentence embedding fused with the acoustic
	// features.
	Embeddings ProviderEntry `yaml:"embeddings"`

	// Classifier is the model server hosting the emotion network.
	Classifier ProviderEntry `yaml:"classifier"`

	// LLM is only needed when Sentiment.Name is "llm".
	LLM ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g. "vito", "openai").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider's API, if it needs one.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order when this provider fails or its circuit
	// breaker is open.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// Option returns Options[key] as a string, or "" when unset or not a
// string.
func (e ProviderEntry) Option(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// PipelineConfig tunes the streaming and batch emotion pipeline.
type PipelineConfig struct {
	// Workers bounds concurrent inference across all sessions. Default: the
	// number of CPUs.
	Workers int `yaml:"workers"`

	// TrimMarginMS keeps this much audio before each extracted window end.
	TrimMarginMS int `yaml:"trim_margin_ms"`

	// NeutralLabels are the sentiment labels that short-circuit to the
	// neutrality emotion. Default ["중립"].
	NeutralLabels []string `yaml:"neutral_labels"`

	// ScalerPath points at the JSON scaler parameters. Empty disables
	// scaling.
	ScalerPath string `yaml:"scaler_path"`

	// Seed, when non-zero, makes the noise-augmented feature block
	// reproducible.
	Seed uint64 `yaml:"seed"`
}

// TrimMargin returns TrimMarginMS as a duration.
func (p PipelineConfig) TrimMargin() time.Duration {
	return time.Duration(p.TrimMarginMS) * time.Millisecond
}

// DatabaseConfig configures persistence.
type DatabaseConfig struct {
	// PostgresDSN is the PostgreSQL connection string. When empty the server
	// keeps everything in memory.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions sizes the emotion log's vector column. It must
	// match the embeddings provider. Default 1536.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`

	// MaxConns caps the connection pool. Zero keeps the pgx default.
	MaxConns int32 `yaml:"max_conns"`
}

// PushConfig configures Firebase Cloud Messaging.
type PushConfig struct {
	// ProjectID is the Firebase project. Empty disables push.
	ProjectID string `yaml:"project_id"`

	// ServiceAccountFile is the Google service-account JSON key.
	ServiceAccountFile string `yaml:"service_account_file"`

	// Endpoint overrides the FCM v1 base URL.
	Endpoint string `yaml:"endpoint"`

	// Concurrency bounds parallel sends per broadcast. Default 8.
	Concurrency int `yaml:"concurrency"`
}

// ResilienceConfig tunes the per-provider circuit breakers.
type ResilienceConfig struct {
	// MaxFailures opens a breaker after this many consecutive failures.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long an open breaker waits before probing.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}
