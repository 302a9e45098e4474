package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pasarlokal/backend-pasar/internal/checkout"
	"github.com/pasarlokal/backend-pasar/internal/config"
	"github.com/pasarlokal/backend-pasar/internal/obs"
	"github.com/pasarlokal/backend-pasar/internal/resilience"
	"github.com/pasarlokal/backend-pasar/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	breaker := resilience.NewBreaker(cfg.BreakerThreshold, 0.5, cfg.BreakerCooldown).
		WithTarget("marketplace-api").
		WithLogger(logger)
	upstreamClient := &upstream.Client{
		BaseURL: cfg.UpstreamBaseURL,
		APIKey:  cfg.UpstreamAPIKey,
		Writes: resilience.HTTPClient{
			Client: &http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
				Timeout:   cfg.UpstreamTimeout,
			},
			Breaker:     breaker,
			BaseBackoff: cfg.OutboundBaseBackoff,
			// Status patches are idempotent, retrying here is safe.
			MaxAttempts: cfg.OutboundMaxAttempts,
			Jitter:      0.2,
		},
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisOpts.Addr,
			Password: redisOpts.Password,
			DB:       redisOpts.DB,
		},
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				checkout.QueueCompensation: 1,
			},
			RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
				return time.Duration(n*n) * time.Second
			},
			Logger: asynqLogger{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(checkout.TaskOrderCleanup, checkout.NewCleanupHandler(upstreamClient, upstream.StatusCancelled, logger))

	logger.Info().Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker failed to start")
	}

	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker stopped")
}
