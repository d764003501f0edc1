// Command speakmate runs the Speakmate conversation practice server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/speakmate/speakmate/internal/config"
	"github.com/speakmate/speakmate/internal/health"
	"github.com/speakmate/speakmate/internal/httpapi"
	"github.com/speakmate/speakmate/internal/observe"
	"github.com/speakmate/speakmate/internal/session"
	"github.com/speakmate/speakmate/internal/suggest"
	"github.com/speakmate/speakmate/internal/vocab"
	"github.com/speakmate/speakmate/internal/workflow"
	"github.com/speakmate/speakmate/pkg/provider/embeddings"
	ollamaembed "github.com/speakmate/speakmate/pkg/provider/embeddings/ollama"
	oaembed "github.com/speakmate/speakmate/pkg/provider/embeddings/openai"
	"github.com/speakmate/speakmate/pkg/provider/llm"
	"github.com/speakmate/speakmate/pkg/provider/llm/anyllm"
	oallm "github.com/speakmate/speakmate/pkg/provider/llm/openai"
	"github.com/speakmate/speakmate/pkg/provider/stt"
	oastt "github.com/speakmate/speakmate/pkg/provider/stt/openai"
	"github.com/speakmate/speakmate/pkg/provider/tts"
	"github.com/speakmate/speakmate/pkg/provider/tts/elevenlabs"
	oatts "github.com/speakmate/speakmate/pkg/provider/tts/openai"
)

const (
	defaultListenAddr = ":8080"
	defaultLLMModel   = "gpt-4o-mini"
	defaultVoice      = "nova"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// A .env file is optional; real environment variables win either way.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "speakmate: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "speakmate: %v\n", err)
		}
		return 1
	}
	applyEnvKeys(cfg)

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}
	slog.Info("speakmate starting",
		"config", *configPath,
		"listen_addr", listenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "speakmate"})
	if err != nil {
		slog.Error("telemetry init failed", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	llmp, err := buildLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("creating llm provider failed", "name", cfg.Providers.LLM.Name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)

	var sttp stt.Provider
	if cfg.Providers.STT.Name != "" {
		sttp, err = buildSTT(cfg.Providers.STT)
		if err != nil {
			slog.Error("creating stt provider failed", "name", cfg.Providers.STT.Name, "err", err)
			return 1
		}
		slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)
	}

	var ttsp tts.Provider
	voice := tts.VoiceProfile{ID: defaultVoice, Provider: "openai"}
	if cfg.Providers.TTS.Name != "" {
		ttsp, voice, err = buildTTS(cfg.Providers.TTS)
		if err != nil {
			slog.Error("creating tts provider failed", "name", cfg.Providers.TTS.Name, "err", err)
			return 1
		}
		slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name, "voice", voice.ID)
	}

	var embedp embeddings.Provider
	if cfg.Providers.Embeddings.Name != "" {
		embedp, err = buildEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			slog.Error("creating embeddings provider failed", "name", cfg.Providers.Embeddings.Name, "err", err)
			return 1
		}
		slog.Info("provider created", "kind", "embeddings", "name", cfg.Providers.Embeddings.Name)
	}

	// ── Session store ─────────────────────────────────────────────────────────
	var (
		store    session.Store
		checkers []health.Checker
	)
	switch cfg.Store.Kind {
	case config.StorePostgres:
		pgStore, err := session.NewPostgresStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			slog.Error("connecting session store failed", "err", err)
			return 1
		}
		defer pgStore.Close()
		store = pgStore
		checkers = append(checkers, health.Checker{Name: "session-store", Check: pgStore.Ping})
		slog.Info("session store ready", "kind", "postgres")
	default:
		store = session.NewMemStore()
		slog.Info("session store ready", "kind", "memory")
	}

	// ── Vocabulary index ──────────────────────────────────────────────────────
	var index vocab.Index
	if cfg.Vocab.PostgresDSN != "" {
		pgIndex, err := vocab.NewPostgresIndex(ctx, cfg.Vocab.PostgresDSN, embedp)
		if err != nil {
			slog.Error("connecting vocabulary index failed", "err", err)
			return 1
		}
		defer pgIndex.Close()
		index = pgIndex
		checkers = append(checkers, health.Checker{Name: "vocab-index", Check: pgIndex.Ping})
		slog.Info("vocabulary index ready")
	}

	// ── Application assembly ──────────────────────────────────────────────────
	engineOpts := []workflow.Option{
		workflow.WithVoice(voice),
		workflow.WithMetrics(metrics),
	}
	if sttp != nil {
		engineOpts = append(engineOpts, workflow.WithTranscriber(sttp))
	}
	engine := workflow.New(store, llmp, ttsp, engineOpts...)

	pipeline := suggest.NewPipeline(llmp, index, suggest.WithMetrics(metrics))

	srv := httpapi.NewServer(engine, llmp, pipeline, metrics, health.New(checkers...),
		httpapi.WithAllowedOrigins(cfg.Server.AllowedOrigins))

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", listenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildLLM constructs the completion provider named in entry. "openai" uses
// the native client; every other name goes through the any-llm adapter.
func buildLLM(entry config.ProviderEntry) (llm.Provider, error) {
	model := entry.Model
	if model == "" {
		model = defaultLLMModel
	}
	if entry.Name == "openai" {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		return oallm.New(entry.APIKey, model, opts...)
	}

	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Name, model, opts...)
}

func buildSTT(entry config.ProviderEntry) (stt.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []oastt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		return oastt.New(entry.APIKey, entry.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

// buildTTS returns the synthesis provider plus the voice profile the
// workflow should request from it.
func buildTTS(entry config.ProviderEntry) (tts.Provider, tts.VoiceProfile, error) {
	voice := tts.VoiceProfile{ID: entry.Voice, Provider: entry.Name}
	switch entry.Name {
	case "openai":
		if voice.ID == "" {
			voice.ID = defaultVoice
		}
		var opts []oatts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oatts.WithBaseURL(entry.BaseURL))
		}
		p, err := oatts.New(entry.APIKey, entry.Model, opts...)
		return p, voice, err
	case "elevenlabs":
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		p, err := elevenlabs.New(entry.APIKey, opts...)
		return p, voice, err
	default:
		return nil, voice, fmt.Errorf("unknown tts provider %q", entry.Name)
	}
}

func buildEmbeddings(entry config.ProviderEntry) (embeddings.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	case "ollama":
		return ollamaembed.New(entry.BaseURL, entry.Model)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", entry.Name)
	}
}

// applyEnvKeys fills empty api_key fields from the conventional environment
// variables so keys never need to live in the config file.
func applyEnvKeys(cfg *config.Config) {
	fill := func(entry *config.ProviderEntry, envVar string) {
		if entry.Name != "" && entry.APIKey == "" {
			entry.APIKey = os.Getenv(envVar)
		}
	}
	fill(&cfg.Providers.LLM, "OPENAI_API_KEY")
	fill(&cfg.Providers.STT, "OPENAI_API_KEY")
	fill(&cfg.Providers.Embeddings, "OPENAI_API_KEY")
	if cfg.Providers.TTS.Name == "elevenlabs" {
		fill(&cfg.Providers.TTS, "ELEVENLABS_API_KEY")
	} else {
		fill(&cfg.Providers.TTS, "OPENAI_API_KEY")
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
