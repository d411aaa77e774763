package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"slices"

	"gopkg.in/yaml.v3"
)

// SentimentLLM is the sentiment provider name that classifies with the
// configured LLM.
const SentimentLLM = "llm"

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr          = ":8080"
	DefaultEmbeddingDimensions = 1536
	DefaultMaxUploadBytes      = 32 << 20
	DefaultPushConcurrency     = 8
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"recognizer": {"vito"},
	"sentiment":  {"huggingface", SentimentLLM},
	"embeddings": {"openai"},
	"classifier": {"tfserving"},
	"llm":        {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Unknown keys are rejected. An empty document yields
// the defaults, which fail validation for lack of providers.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = runtime.NumCPU()
	}
	if len(cfg.Pipeline.NeutralLabels) == 0 {
		cfg.Pipeline.NeutralLabels = []string{"중립"}
	}
	if cfg.Database.EmbeddingDimensions == 0 {
		cfg.Database.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if cfg.Push.Concurrency == 0 {
		cfg.Push.Concurrency = DefaultPushConcurrency
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d must not be negative", cfg.Server.MaxUploadBytes))
	}

	// Providers
	p := cfg.Providers
	for _, req := range []struct {
		kind  string
		entry ProviderEntry
	}{
		{"recognizer", p.Recognizer},
		{"sentiment", p.Sentiment},
		{"embeddings", p.Embeddings},
		{"classifier", p.Classifier},
	} {
		if req.entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s.name is required", req.kind))
		}
		validateProviderEntry(req.kind, req.entry)
	}
	usesLLM := p.Sentiment.Name == SentimentLLM || slices.ContainsFunc(p.Sentiment.Fallbacks, func(e ProviderEntry) bool {
		return e.Name == SentimentLLM
	})
	if usesLLM && p.LLM.Name == "" {
		errs = append(errs, errors.New(`providers.sentiment "llm" requires providers.llm to be configured`))
	}
	if p.LLM.Name != "" {
		validateProviderEntry("llm", p.LLM)
		if p.LLM.Model == "" {
			errs = append(errs, errors.New("providers.llm.model is required"))
		}
	}

	// Pipeline
	if cfg.Pipeline.Workers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers %d must not be negative", cfg.Pipeline.Workers))
	}
	if cfg.Pipeline.TrimMarginMS < 0 {
		errs = append(errs, fmt.Errorf("pipeline.trim_margin_ms %d must not be negative", cfg.Pipeline.TrimMarginMS))
	}
	if slices.Contains(cfg.Pipeline.NeutralLabels, "") {
		errs = append(errs, errors.New("pipeline.neutral_labels must not contain empty labels"))
	}

	// Database
	if cfg.Database.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("database.embedding_dimensions %d must be positive", cfg.Database.EmbeddingDimensions))
	}
	if cfg.Database.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("database.max_conns %d must not be negative", cfg.Database.MaxConns))
	}
	if cfg.Database.PostgresDSN == "" {
		slog.Warn("database.postgres_dsn is empty; notices, noise log, tokens and emotion log are kept in memory")
	}

	// Push
	if cfg.Push.ProjectID != "" && cfg.Push.ServiceAccountFile == "" {
		errs = append(errs, errors.New("push.service_account_file is required when push.project_id is set"))
	}
	if cfg.Push.ProjectID == "" {
		slog.Warn("push.project_id is empty; push notifications are disabled")
	}
	if cfg.Push.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("push.concurrency %d must not be negative", cfg.Push.Concurrency))
	}

	// Resilience
	if cfg.Resilience.MaxFailures < 0 || cfg.Resilience.ResetTimeout < 0 {
		errs = append(errs, errors.New("resilience values must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderEntry warns about unknown names in entry and its
// fallbacks.
func validateProviderEntry(kind string, entry ProviderEntry) {
	validateProviderName(kind, entry.Name)
	for _, fb := range entry.Fallbacks {
		validateProviderName(kind, fb.Name)
	}
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
