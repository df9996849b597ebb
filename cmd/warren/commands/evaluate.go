package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhollis/warren/internal/engine"
	"github.com/mhollis/warren/internal/logging"
	"github.com/mhollis/warren/internal/subject"
)

var (
	evalOrg     string
	evalSubject string
	evalID      string
	evalDryRun  bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate deliverable readiness for a subject",
	Long: `Aggregate a subject's variable map and evaluate every active
deliverable watching its kind. Ready deliverables get an evaluation
created (idempotently), unless --dry-run is set.

Prints one result per deliverable with its unmet requirements.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalOrg, "org", "", "Organization ID (required)")
	evaluateCmd.Flags().StringVar(&evalSubject, "subject", "", "Subject kind (required)")
	evaluateCmd.Flags().StringVar(&evalID, "id", "", "Subject ID (required)")
	evaluateCmd.Flags().BoolVar(&evalDryRun, "dry-run", false, "Report readiness without creating evaluations")
	evaluateCmd.MarkFlagRequired("org")
	evaluateCmd.MarkFlagRequired("subject")
	evaluateCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	resolver := subject.NewLedgerResolver(client, cfg.Subjects)
	aggregator := subject.NewAggregator(resolver, cfg.Subjects)

	log := logging.NewStderr(logging.Config{Level: "warn", Format: "console", Component: "cli"})
	evaluator := engine.NewEvaluator(client, aggregator, log)

	req := engine.EvaluateRequest{
		OrganizationID: evalOrg,
		SubjectKind:    evalSubject,
		SubjectID:      evalID,
	}

	var results []engine.Result
	if evalDryRun {
		results, err = evaluator.Inspect(ctx, req)
	} else {
		results, err = evaluator.Evaluate(ctx, req)
	}
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
