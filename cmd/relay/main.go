package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/practicelab/relay/internal/auth"
	"github.com/practicelab/relay/internal/feedback"
	"github.com/practicelab/relay/internal/realtime"
	"github.com/practicelab/relay/internal/relay"
	"github.com/practicelab/relay/internal/store"
	"github.com/practicelab/relay/internal/ws"
)

func main() {
	var level slog.LevelVar
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level})))

	// .env fills gaps only; the real environment wins.
	if envMap, err := godotenv.Read(); err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	cfg := loadConfig()
	if cfg.logDebug {
		level.Set(slog.LevelDebug)
	}
	for name, val := range map[string]string{"JWT_SECRET": cfg.jwtSecret, "OPENAI_API_KEY": cfg.openaiAPIKey} {
		if val == "" {
			slog.Error("required environment variable is not set", "name", name)
			os.Exit(1)
		}
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, closeStore, err := openStore(initCtx, cfg)
	if err != nil {
		initCancel()
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var revocations auth.Revocations
	if cfg.redisAddr != "" {
		rr, err := auth.NewRedisRevocations(initCtx, cfg.redisAddr, cfg.redisPassword, cfg.redisDB)
		if err != nil {
			initCancel()
			slog.Error("connect redis", "addr", cfg.redisAddr, "error", err)
			os.Exit(1)
		}
		defer rr.Close()
		revocations = rr
		slog.Info("token revocation enabled", "redis", cfg.redisAddr)
	}
	initCancel()

	verifier := auth.NewVerifier(cfg.jwtSecret, revocations)
	provider := feedback.NewOpenAIProvider(cfg.openaiAPIKey, cfg.openaiBaseURL)
	generator := feedback.NewAgentGenerator(provider, cfg.feedbackModel, cfg.feedbackMaxTokens, cfg.feedbackTimeout)
	tracker := relay.NewTracker()

	handler := ws.NewHandler(ws.HandlerConfig{
		Authorizer: auth.NewAuthorizer(verifier, st, cfg.requiredTier),
		Store:      st,
		Feedback:   generator,
		Tracker:    tracker,
		Realtime: realtime.Config{
			URL:    cfg.realtimeURL,
			APIKey: cfg.openaiAPIKey,
			Model:  cfg.realtimeModel,
		},
		Voice:              cfg.voice,
		TranscriptionModel: cfg.transcriptionModel,
		MaxConcurrent:      cfg.maxConcurrent,
		MaxDuration:        cfg.maxDuration,
		SnapshotInterval:   cfg.snapshotInterval,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		wsHandler: handler,
		store:     st,
		verifier:  verifier,
		tracker:   tracker,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.shutdownGrace)
		defer cancel()

		n := tracker.EndAll()
		slog.Info("ending live sessions", "count", n)
		if !tracker.Wait(ctx) {
			slog.Warn("sessions still open at shutdown deadline", "count", tracker.Count())
		}

		srv.Shutdown(ctx)
	}()

	slog.Info("relay starting", "addr", addr, "max_concurrent", cfg.maxConcurrent, "max_duration", cfg.maxDuration)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("relay stopped")
}

// openStore connects to Postgres when DATABASE_URL is set, otherwise keeps
// everything in memory. SEED_FILE fixtures are loaded into either.
func openStore(ctx context.Context, cfg config) (store.Store, func(), error) {
	var (
		st      store.Store
		seeder  store.Seeder
		closeFn = func() {}
	)
	if cfg.databaseURL != "" {
		pg, err := store.Open(ctx, cfg.databaseURL)
		if err != nil {
			return nil, nil, err
		}
		st, seeder = pg, pg
		closeFn = func() { pg.Close() }
		slog.Info("store: postgres")
	} else {
		mem := store.NewMemory()
		st, seeder = mem, mem
		slog.Warn("store: in-memory, data is lost on restart")
	}

	if cfg.seedFile != "" {
		f, err := os.Open(cfg.seedFile)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		defer f.Close()
		fx, err := store.LoadFixtures(ctx, seeder, f)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		slog.Info("fixtures loaded", "file", cfg.seedFile, "profiles", len(fx.Profiles), "practices", len(fx.Practices))
	}
	return st, closeFn, nil
}
