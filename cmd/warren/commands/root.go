package commands

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mhollis/warren/internal/config"
	"github.com/mhollis/warren/pkg/ledger"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warren",
	Short: "Warren - Readiness-driven automation engine",
	Long: `Warren lets an application declare typed data fields (cards), bundle
them into collection forms (procedures), and declare reactive automations
(deliverables) that fire once their dependency set is satisfied.

Warren is backed by Redis: every entity is a namespaced document with
secondary indexes, and subject mutations flow through Pub/Sub to the
evaluation engine.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "warren.yml", "Path to warren.yml")
}

// loadClient loads warren.yml and opens a ledger client for the configured
// instance. Callers own closing the client.
func loadClient() (*config.Config, *ledger.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis.url: %w", err)
	}

	client, err := ledger.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		return nil, nil, err
	}

	return cfg, client, nil
}
