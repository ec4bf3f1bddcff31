package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/practicelab/relay/internal/auth"
	"github.com/practicelab/relay/internal/env"
	"github.com/practicelab/relay/internal/store"
)

func main() {
	file := flag.String("file", "", "JSON fixtures file to load")
	databaseURL := flag.String("database-url", env.Str("DATABASE_URL", ""), "Postgres connection string")
	tokenUser := flag.String("token-user", "", "print a signed dev token for this user id")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed token")
	revoke := flag.String("revoke", "", "token id (jti) to add to the revocation list")
	redisAddr := flag.String("redis-addr", env.Str("REDIS_ADDR", "localhost:6379"), "Redis address for -revoke")
	flag.Parse()

	if *file == "" && *tokenUser == "" && *revoke == "" {
		fmt.Fprintln(os.Stderr, "usage: seed -file ./fixtures/dev.json [-token-user u1] [-revoke jti]")
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *file != "" {
		if err := seedFile(ctx, *databaseURL, *file); err != nil {
			slog.Error("seed", "file", *file, "error", err)
			os.Exit(1)
		}
	}

	if *tokenUser != "" {
		secret := env.Str("JWT_SECRET", "")
		if secret == "" {
			slog.Error("JWT_SECRET is required to sign a token")
			os.Exit(1)
		}
		tok, err := auth.Sign(secret, *tokenUser, *tokenTTL)
		if err != nil {
			slog.Error("sign token", "error", err)
			os.Exit(1)
		}
		fmt.Println(tok)
	}

	if *revoke != "" {
		if err := revokeToken(ctx, *redisAddr, *revoke, *tokenTTL); err != nil {
			slog.Error("revoke", "jti", *revoke, "error", err)
			os.Exit(1)
		}
		slog.Info("token revoked", "jti", *revoke)
	}
}

func seedFile(ctx context.Context, databaseURL, path string) error {
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL or -database-url is required")
	}
	pg, err := store.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fx, err := store.LoadFixtures(ctx, pg, f)
	if err != nil {
		return err
	}
	slog.Info("done",
		"profiles", len(fx.Profiles),
		"organizations", len(fx.Organizations),
		"memberships", len(fx.Memberships),
		"practices", len(fx.Practices))
	return nil
}

func revokeToken(ctx context.Context, addr, jti string, ttl time.Duration) error {
	rr, err := auth.NewRedisRevocations(ctx, addr, env.Str("REDIS_PASS", ""), env.Int("REDIS_DB", 0))
	if err != nil {
		return err
	}
	defer rr.Close()
	return rr.Revoke(ctx, jti, ttl)
}
