package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhollis/warren/internal/printer"
	"github.com/mhollis/warren/pkg/ledger"
)

var watchSubjects bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail evaluation events in real time",
	Long: `Subscribe to this instance's event channels and print each event
as it arrives. By default only evaluation creation events are shown;
--subjects also tails subject mutation events.

Press Ctrl+C to stop.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchSubjects, "subjects", false, "Also tail subject mutation events")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	evalSub, err := client.SubscribeEvaluationEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to evaluation events: %w", err)
	}
	defer evalSub.Close()

	evalEvents := evalSub.Events()
	evalErrors := evalSub.Errors()

	var subjectEvents <-chan *ledger.SubjectEvent
	var subjectErrors <-chan error
	if watchSubjects {
		subjectSub, err := client.SubscribeSubjectEvents(ctx)
		if err != nil {
			return fmt.Errorf("failed to subscribe to subject events: %w", err)
		}
		defer subjectSub.Close()
		subjectEvents = subjectSub.Events()
		subjectErrors = subjectSub.Errors()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	printer.Info("Watching instance %q (Ctrl+C to stop)\n", client.InstanceName())

	for {
		select {
		case <-sigCh:
			printer.Println()
			return nil

		case evaluation, ok := <-evalEvents:
			if !ok {
				return nil
			}
			due := time.UnixMilli(evaluation.ScheduledForMs).Format(time.RFC3339)
			printer.Step("evaluation %s  deliverable=%s subject=%s/%s due=%s\n",
				evaluation.ID,
				evaluation.DeliverableID,
				evaluation.Context.SubjectKind,
				evaluation.Context.SubjectID,
				due,
			)

		case event, ok := <-subjectEvents:
			if !ok {
				return nil
			}
			printer.Step("subject %s/%s mutated fields=%v\n",
				event.SubjectKind, event.SubjectID, event.MutatedFields)

		case err := <-evalErrors:
			if err != nil {
				printer.Warning("event error: %v\n", err)
			}

		case err := <-subjectErrors:
			if err != nil {
				printer.Warning("event error: %v\n", err)
			}
		}
	}
}
