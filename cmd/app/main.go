// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"crazeai/internal/config"
	"crazeai/internal/domain/ports/adapter"
	"crazeai/internal/domain/ports/repository"
	aiAdapters "crazeai/internal/infra/adapters/ai"
	"crazeai/internal/infra/api"
	pg "crazeai/internal/infra/db/postgres"
	"crazeai/internal/infra/i18n"
	"crazeai/internal/infra/logging"
	"crazeai/internal/infra/memory"
	"crazeai/internal/infra/metrics"
	red "crazeai/internal/infra/redis"
	"crazeai/internal/infra/sched"
	"crazeai/internal/infra/worker"
	"crazeai/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: console logs, unredacted text, noop AI allowed")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.AI.Provider)

	// ---- Persona ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Persona.Locale)
	if err != nil {
		return fmt.Errorf("persona locale: %w", err)
	}
	prompts := usecase.NewPromptBuilder(tr)

	// ---- AI adapters ----
	completion, err := newCompletion(ctx, cfg, logger)
	if err != nil {
		return err
	}
	completion = aiAdapters.NewLimitedCompletion(completion, cfg.AI.ConcurrentLimit)
	logger.Info().Str("provider", completion.Provider()).Str("model", completion.Model()).Msg("AI adapter ready")

	var tts adapter.SpeechSynthesizer
	var stt adapter.Transcriber
	if cfg.Speech.Enabled && cfg.AI.OpenAIKey != "" {
		sp, err := aiAdapters.NewOpenAIAdapter(openAIConfig(cfg))
		if err != nil {
			return fmt.Errorf("openai speech: %w", err)
		}
		tts, stt = aiAdapters.MeteredSynthesizer(sp), aiAdapters.MeteredTranscriber(sp)
		logger.Info().Str("tts_model", cfg.Speech.TTSModel).Str("stt_model", cfg.Speech.STTModel).Msg("speech enabled")
	} else if cfg.Speech.Enabled {
		logger.Warn().Msg("speech.enabled needs ai.openai_key; speech endpoints will answer 501")
	}

	// ---- Redis (optional) ----
	var kv repository.KeyValueStore = memory.NewStore()
	var limiter api.Limiter
	var locker red.Locker
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		kv = red.NewKVStore(redisClient, "crazeai:", cfg.Redis.TTL)
		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
		logger.Info().Msg("redis connected")
	} else {
		logger.Warn().Msg("redis.url not set: name mirror is in-memory and rate limiting is off")
	}

	chatOpts := []usecase.ChatOption{usecase.WithNameMirror(usecase.NewNameMirror(kv))}

	// ---- Postgres (optional) ----
	var bg []func(context.Context) error
	if cfg.Database.URL != "" {
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		repo := pg.NewExchangeRepo(pool)
		writers := worker.NewPool(2, logger)
		writers.Start(context.WithoutCancel(ctx))
		defer writers.Stop()
		chatOpts = append(chatOpts, usecase.WithExchangeLog(worker.NewAsyncExchangeLog(repo, writers, 5*time.Second)))

		opts := []sched.RetentionOption{sched.WithTickHook(func() { pg.ReportPoolStats(pool) })}
		if locker != nil {
			opts = append(opts, sched.WithLocker(locker))
		}
		retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
		bg = append(bg, sched.NewRetentionWorker(time.Hour, retention, repo, logger, opts...).Run)
		logger.Info().Int("retention_days", cfg.Database.RetentionDays).Msg("exchange log enabled")
	}

	// ---- Use cases ----
	chatUC := usecase.NewChatUseCase(completion, prompts, cfg.AI.UpstreamTimeout, logger, cfg.Runtime.Dev, chatOpts...)
	speechUC := usecase.NewSpeechUseCase(tts, stt, usecase.SpeechSettings{
		Voice:          cfg.Speech.Voice,
		TTSTimeout:     cfg.Speech.TTSTimeout,
		TTSGrowth:      cfg.Speech.TTSTimeoutGrowth,
		LengthBonus:    cfg.Speech.TTSLengthBonus,
		LengthBonusMax: cfg.Speech.TTSLengthMax,
		STTTimeout:     cfg.Speech.STTTimeout,
	}, logger)

	// ---- HTTP ----
	secret := cfg.Security.SessionSecret
	if secret == "" {
		if !cfg.Runtime.Dev {
			return errors.New("security.session_secret (or SESSION_SECRET) is required")
		}
		secret = "dev-only-session-secret"
		logger.Warn().Msg("using the built-in dev session secret (INSECURE)")
	}
	sessions := api.NewSessionManager(secret, cfg.Security.SecureCookie, cfg.Security.SessionTTL)
	server := api.NewServer(chatUC, speechUC, usecase.NewNameMirror(kv), sessions, limiter, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RateLimit:      cfg.RateLimit.Requests,
		RateWindow:     cfg.RateLimit.Window,
	}, logger)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	for _, job := range bg {
		go func(job func(context.Context) error) {
			if err := job(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("background job stopped")
			}
		}(job)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpSrv.Addr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info().Msg("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shCtx)
}

func newCompletion(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.CompletionAdapter, error) {
	switch cfg.AI.Provider {
	case "openai":
		a, err := aiAdapters.NewOpenAIAdapter(openAIConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		return a, nil
	case "gemini":
		a, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.MaxTokens, cfg.AI.Temperature)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		return a, nil
	case "anthropic":
		a, err := aiAdapters.NewAnthropicAdapter(aiAdapters.AnthropicConfig{
			APIKey:      cfg.AI.AnthropicKey,
			Model:       cfg.AI.DefaultModel,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic adapter: %w", err)
		}
		return a, nil
	default:
		logger.Warn().Msg("no AI provider configured: using the noop adapter")
		return aiAdapters.NewNoopAIAdapter(logger), nil
	}
}

func openAIConfig(cfg *config.Config) aiAdapters.OpenAIConfig {
	return aiAdapters.OpenAIConfig{
		APIKey:      cfg.AI.OpenAIKey,
		BaseURL:     cfg.AI.OpenAIBaseURL,
		Model:       cfg.AI.DefaultModel,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
		TTSModel:    cfg.Speech.TTSModel,
		Voice:       cfg.Speech.Voice,
		Format:      cfg.Speech.Format,
		STTModel:    cfg.Speech.STTModel,
		Speed:       cfg.Speech.Speed,
		Language:    cfg.Speech.Language,
	}
}
