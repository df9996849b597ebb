package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mhollis/warren/internal/printer"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a warren.yml in the current directory",
	Long: `Create a starter warren.yml with a Redis connection, an example
subject binding, and daemon defaults. Edit the subjects section to match
your host tables and parent edges.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing warren.yml")
	rootCmd.AddCommand(initCmd)
}

const starterConfig = `version: "1.0"
instance: default

redis:
  url: redis://localhost:6379

engine:
  health_addr: ":8080"

worker:
  poll_interval: 1s
  batch_size: 100

logging:
  level: info
  format: json

# Subject bindings map subject kinds to host tables and parent edges.
# Parent edges are processed in declared order during aggregation; later
# parents overwrite earlier ones, and the subject itself always wins.
subjects:
  beneficiary:
    table: beneficiaries
    parents:
      - field: household_id
        kind: household
  household:
    table: households
    parents: []
`

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return printer.Error(
			fmt.Sprintf("%s already exists", configPath),
			"Refusing to overwrite an existing configuration.",
			[]string{"Use --force to overwrite", "Pass --config to choose another path"},
		)
	}

	if err := os.WriteFile(configPath, []byte(starterConfig), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	printer.Success("Created %s\n", configPath)
	printer.Info("Edit the subjects section to match your host tables, then start the daemons:\n")
	printer.Info("  warren-engine   # readiness evaluation\n")
	printer.Info("  warren-worker   # due evaluation execution\n")
	return nil
}
