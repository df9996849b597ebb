package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/mhollis/warren/internal/config"
	"github.com/mhollis/warren/internal/engine"
	"github.com/mhollis/warren/internal/logging"
	"github.com/mhollis/warren/internal/subject"
	"github.com/mhollis/warren/pkg/ledger"
)

// The engine daemon subscribes to subject mutation events and runs
// readiness evaluation for each. Configuration comes from warren.yml;
// WARREN_CONFIG, WARREN_INSTANCE_NAME, and REDIS_URL override for
// containerized deployments.
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
	logCfg.Component = "engine"
	log := logging.NewStderr(logCfg)

	resolver := subject.NewLedgerResolver(client, cfg.Subjects)
	aggregator := subject.NewAggregator(resolver, cfg.Subjects)
	evaluator := engine.NewEvaluator(client, aggregator, log)

	eng := engine.NewEngine(client, evaluator, cfg.Engine.Addr(), log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		errCh <- eng.Run(runCtx)
	}()

	log.Info().Str("instance", instanceName).Msg("engine started")

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		<-errCh
	case runErr := <-errCh:
		if runErr != nil {
			log.Error().Err(runErr).Msg("engine stopped with error")
			os.Exit(1)
		}
	}

	log.Info().Msg("engine stopped")
}
