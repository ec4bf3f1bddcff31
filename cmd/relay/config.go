package main

import (
	"time"

	"github.com/practicelab/relay/internal/env"
	"github.com/practicelab/relay/internal/relay"
)

type config struct {
	port        string
	databaseURL string
	seedFile    string
	logDebug    bool

	jwtSecret     string
	redisAddr     string
	redisPassword string
	redisDB       int
	requiredTier  string

	openaiAPIKey       string
	openaiBaseURL      string
	realtimeURL        string
	realtimeModel      string
	voice              string
	transcriptionModel string
	feedbackModel      string
	feedbackMaxTokens  int
	feedbackTimeout    time.Duration

	maxDuration      time.Duration
	snapshotInterval time.Duration
	maxConcurrent    int
	shutdownGrace    time.Duration
}

func loadConfig() config {
	return config{
		port:        env.Str("PORT", "8080"),
		databaseURL: env.Str("DATABASE_URL", ""),
		seedFile:    env.Str("SEED_FILE", ""),
		logDebug:    env.Bool("LOG_DEBUG", false),

		jwtSecret:     env.Str("JWT_SECRET", ""),
		redisAddr:     env.Str("REDIS_ADDR", ""),
		redisPassword: env.Str("REDIS_PASS", ""),
		redisDB:       env.Int("REDIS_DB", 0),
		requiredTier:  env.Str("REQUIRED_TIER", "pro"),

		openaiAPIKey:       env.Str("OPENAI_API_KEY", ""),
		openaiBaseURL:      env.Str("OPENAI_BASE_URL", ""),
		realtimeURL:        env.Str("REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		realtimeModel:      env.Str("REALTIME_MODEL", "gpt-realtime"),
		voice:              env.Str("VOICE", "alloy"),
		transcriptionModel: env.Str("TRANSCRIPTION_MODEL", "gpt-4o-mini-transcribe"),
		feedbackModel:      env.Str("FEEDBACK_MODEL", "gpt-4o-mini"),
		feedbackMaxTokens:  env.Int("FEEDBACK_MAX_TOKENS", 300),
		feedbackTimeout:    env.Duration("FEEDBACK_TIMEOUT", 20*time.Second),

		maxDuration:      env.Duration("SESSION_MAX_DURATION", relay.DefaultMaxDuration),
		snapshotInterval: env.Duration("SNAPSHOT_INTERVAL", relay.DefaultSnapshotInterval),
		maxConcurrent:    env.Int("MAX_CONCURRENT_SESSIONS", 100),
		shutdownGrace:    env.Duration("SHUTDOWN_GRACE", 15*time.Second),
	}
}
