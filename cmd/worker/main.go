package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mhollis/warren/internal/config"
	"github.com/mhollis/warren/internal/engine"
	"github.com/mhollis/warren/internal/logging"
	"github.com/mhollis/warren/internal/worker"
	"github.com/mhollis/warren/pkg/ledger"
)

// The worker daemon polls for due pending evaluations and executes them
// through registered handlers. This binary ships a built-in "log" handler;
// real deployments import internal/worker and register their own.
func main() {
	configPath := os.Getenv("WARREN_CONFIG")
	if configPath == "" {
		configPath = "warren.yml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load %s: %v\n", configPath, err)
		os.Exit(1)
	}

	instanceName := cfg.Instance
	if v := os.Getenv("WARREN_INSTANCE_NAME"); v != "" {
		instanceName = v
	}
	redisURL := cfg.Redis.URL
	if v := os.Getenv("REDIS_URL"); v != "" {
		redisURL = v
	}

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid Redis URL: %v\n", err)
		os.Exit(1)
	}

	client, err := ledger.NewClient(redisOpts, instanceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create ledger client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	logCfg := cfg.Logging
	logCfg.Component = "worker"
	log := logging.NewStderr(logCfg)

	registry := engine.NewRegistry()
	if err := registry.Register("log", logHandler(log)); err != nil {
		log.Error().Err(err).Msg("failed to register handler")
		os.Exit(1)
	}

	w := worker.New(client, registry, cfg.Worker.Interval(), int64(cfg.Worker.BatchSize), log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(runCtx)
	}()

	log.Info().
		Str("instance", instanceName).
		Strs("handlers", registry.Names()).
		Msg("worker started")

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		<-errCh
	case runErr := <-errCh:
		if runErr != nil {
			log.Error().Err(runErr).Msg("worker stopped with error")
			os.Exit(1)
		}
	}

	log.Info().Msg("worker stopped")
}

// logHandler records the evaluation and succeeds. It exists so a fresh
// deployment has something runnable before real handlers are wired in.
func logHandler(log zerolog.Logger) engine.Handler {
	return func(ctx context.Context, e *ledger.Evaluation) *ledger.EvaluationResult {
		start := time.Now()
		log.Info().
			Str("evaluation_id", e.ID).
			Str("deliverable_id", e.DeliverableID).
			Str("subject_id", e.Context.SubjectID).
			Msg("executing evaluation")
		return &ledger.EvaluationResult{
			Success:    true,
			DurationMs: time.Since(start).Milliseconds(),
		}
	}
}
