package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/soundwatch/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Providers: config.ProvidersConfig{
			Recognizer: config.ProviderEntry{Name: "vito"},
			Sentiment:  config.ProviderEntry{Name: "huggingface", Options: map[string]any{"k": "v"}},
			Embeddings: config.ProviderEntry{Name: "openai"},
			Classifier: config.ProviderEntry{Name: "tfserving"},
		},
		Pipeline: config.PipelineConfig{NeutralLabels: []string{"중립"}},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(*config.Config)
		wantLevel   config.LogLevel
		wantRestart []string
	}{
		{
			name:   "identical",
			mutate: func(*config.Config) {},
		},
		{
			name:      "log level only",
			mutate:    func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			wantLevel: config.LogDebug,
		},
		{
			name:        "listen address",
			mutate:      func(c *config.Config) { c.Server.ListenAddr = ":9999" },
			wantRestart: []string{"server"},
		},
		{
			name: "provider option and neutral labels",
			mutate: func(c *config.Config) {
				c.Providers.Sentiment.Options = map[string]any{"k": "w"}
				c.Pipeline.NeutralLabels = append(c.Pipeline.NeutralLabels, "neutral")
			},
			wantRestart: []string{"pipeline", "providers"},
		},
		{
			name: "level and database",
			mutate: func(c *config.Config) {
				c.Server.LogLevel = config.LogError
				c.Database.PostgresDSN = "postgres://db/soundwatch"
			},
			wantLevel:   config.LogError,
			wantRestart: []string{"database"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			old, updated := baseConfig(), baseConfig()
			tt.mutate(updated)

			d := config.Diff(old, updated)
			if d.LogLevelChanged != (tt.wantLevel != "") {
				t.Errorf("LogLevelChanged = %v", d.LogLevelChanged)
			}
			if d.NewLogLevel != tt.wantLevel {
				t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, tt.wantLevel)
			}
			if !slices.Equal(d.RestartRequired, tt.wantRestart) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tt.wantRestart)
			}
			if d.Changed() != (tt.wantLevel != "" || len(tt.wantRestart) > 0) {
				t.Errorf("Changed = %v", d.Changed())
			}
		})
	}
}
