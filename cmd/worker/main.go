package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/cardinity-gateway/internal/common"
	"github.com/noah-isme/cardinity-gateway/internal/config"
	"github.com/noah-isme/cardinity-gateway/internal/notify"
	"github.com/noah-isme/cardinity-gateway/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	concurrency := envInt("WORKER_CONCURRENCY", 10)
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{cfg.EmailQueue: 1},
	})

	// TODO: swap NopEmailSender for the SMTP sender once credentials land.
	handler := notify.EmailTaskHandler{
		Emails: notify.EmailNotifier{
			Mail:    common.NopEmailSender{},
			Enabled: cfg.NotifyEmailEnabled,
		},
		Logger: logger,
	}

	logger.Info().Int("concurrency", concurrency).Msg("worker starting")
	if err := srv.Start(notify.NewServeMux(handler)); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}

	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
