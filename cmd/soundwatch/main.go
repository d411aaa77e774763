// Command soundwatch is the main entry point for the soundwatch household
// noise-monitoring server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/soundwatch/internal/app"
	"github.com/MrWong99/soundwatch/internal/config"
	"github.com/MrWong99/soundwatch/internal/observe"
	"github.com/MrWong99/soundwatch/pkg/provider/classifier"
	"github.com/MrWong99/soundwatch/pkg/provider/classifier/tfserving"
	"github.com/MrWong99/soundwatch/pkg/provider/embeddings"
	oaembed "github.com/MrWong99/soundwatch/pkg/provider/embeddings/openai"
	"github.com/MrWong99/soundwatch/pkg/provider/llm"
	"github.com/MrWong99/soundwatch/pkg/provider/llm/anyllm"
	"github.com/MrWong99/soundwatch/pkg/provider/recognizer"
	"github.com/MrWong99/soundwatch/pkg/provider/recognizer/vito"
	"github.com/MrWong99/soundwatch/pkg/provider/sentiment"
	"github.com/MrWong99/soundwatch/pkg/provider/sentiment/huggingface"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "soundwatch: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "soundwatch: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Slog())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("soundwatch starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := app.BuildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers, app.WithLevelVar(level))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot-reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, application.ApplyConfig)
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	exit := 0
	if err := application.Run(ctx); err != nil {
		slog.Error("run error", "err", err)
		exit = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")
	if watcher != nil {
		watcher.Stop()
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		exit = 1
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return exit
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages. The "llm" sentiment
// provider is registered later by [app.BuildProviders] once the LLM exists.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Recognizer ────────────────────────────────────────────────────────────

	// APIKey is the VITO client id; the secret lives in options.
	reg.RegisterRecognizer("vito", func(entry config.ProviderEntry) (recognizer.Provider, error) {
		var opts []vito.Option
		if entry.BaseURL != "" {
			opts = append(opts, vito.WithEndpoint(entry.BaseURL))
		}
		if u := entry.Option("auth_url"); u != "" {
			opts = append(opts, vito.WithAuthURL(u))
		}
		return vito.New(entry.APIKey, entry.Option("client_secret"), opts...)
	})

	// ── Sentiment ─────────────────────────────────────────────────────────────

	reg.RegisterSentiment("huggingface", func(entry config.ProviderEntry) (sentiment.Provider, error) {
		var opts []huggingface.Option
		if entry.BaseURL != "" {
			opts = append(opts, huggingface.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, huggingface.WithModel(entry.Model))
		}
		return huggingface.New(entry.APIKey, opts...), nil
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if raw := entry.Option("dimensions"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("openai embeddings: invalid dimensions %q: %w", raw, err)
			}
			opts = append(opts, oaembed.WithDimensions(n))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Classifier ────────────────────────────────────────────────────────────

	reg.RegisterClassifier("tfserving", func(entry config.ProviderEntry) (classifier.Provider, error) {
		var opts []tfserving.Option
		if entry.Model != "" {
			opts = append(opts, tfserving.WithModel(entry.Model))
		}
		if v := entry.Option("version"); v != "" {
			opts = append(opts, tfserving.WithVersion(v))
		}
		return tfserving.New(entry.BaseURL, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	for kind, names := range reg.Names() {
		slog.Debug("registered providers", "kind", kind, "names", names)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       soundwatch startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Recognizer", cfg.Providers.Recognizer.Name, cfg.Providers.Recognizer.Model)
	printProvider("Sentiment", cfg.Providers.Sentiment.Name, cfg.Providers.Sentiment.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	printProvider("Classifier", cfg.Providers.Classifier.Name, cfg.Providers.Classifier.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printSetting("Store", enabled(cfg.Database.PostgresDSN != "", "postgres", "in-memory"))
	printSetting("Push", enabled(cfg.Push.ProjectID != "", cfg.Push.ProjectID, "(disabled)"))
	printSetting("Workers", strconv.Itoa(cfg.Pipeline.Workers))
	if cfg.Server.ListenAddr != "" {
		printSetting("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printSetting(kind, value)
}

func printSetting(key, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", key, value)
}

func enabled(on bool, yes, no string) string {
	if on {
		return yes
	}
	return no
}
