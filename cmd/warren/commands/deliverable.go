package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhollis/warren/pkg/ledger"
)

var (
	dlvOrg      string
	dlvName     string
	dlvSubject  string
	dlvHandler  string
	dlvCards    []string
	dlvPrereqs  []string
	dlvAfter    string
	dlvBefore   string
	dlvDays     []int
	dlvListJSON bool
)

var deliverableCmd = &cobra.Command{
	Use:     "deliverable",
	Aliases: []string{"dlv"},
	Short:   "Manage deliverables",
}

var deliverableCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a deliverable",
	Long: `Create a deliverable watching a subject kind.

A deliverable becomes ready for a subject once every required card slug
has a value on that subject and every prerequisite deliverable has a
completed evaluation. Schedule flags delay execution of the resulting
evaluation without affecting readiness itself.`,
	RunE: runDeliverableCreate,
}

var deliverableListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deliverables for a subject kind",
	RunE:  runDeliverableList,
}

var deliverablePauseCmd = &cobra.Command{
	Use:   "pause <deliverable-id>",
	Short: "Pause a deliverable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setDeliverableStatus(args[0], ledger.DeliverableStatusPaused)
	},
}

var deliverableResumeCmd = &cobra.Command{
	Use:   "resume <deliverable-id>",
	Short: "Resume a paused deliverable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setDeliverableStatus(args[0], ledger.DeliverableStatusActive)
	},
}

func init() {
	deliverableCreateCmd.Flags().StringVar(&dlvOrg, "org", "", "Organization ID (required)")
	deliverableCreateCmd.Flags().StringVar(&dlvName, "name", "", "Human-readable name (required)")
	deliverableCreateCmd.Flags().StringVar(&dlvSubject, "subject", "", "Subject kind to watch (required)")
	deliverableCreateCmd.Flags().StringVar(&dlvHandler, "handler", "", "Registered handler name (required)")
	deliverableCreateCmd.Flags().StringSliceVar(&dlvCards, "require-card", nil, "Card slug that must have a value (repeatable)")
	deliverableCreateCmd.Flags().StringSliceVar(&dlvPrereqs, "require-deliverable", nil, "Prerequisite deliverable ID (repeatable)")
	deliverableCreateCmd.Flags().StringVar(&dlvAfter, "after", "", "Earliest time of day to run, HH:MM")
	deliverableCreateCmd.Flags().StringVar(&dlvBefore, "before", "", "Latest time of day to run, HH:MM")
	deliverableCreateCmd.Flags().IntSliceVar(&dlvDays, "day", nil, "Allowed day of week, 0=Sunday (repeatable)")
	deliverableCreateCmd.MarkFlagRequired("org")
	deliverableCreateCmd.MarkFlagRequired("name")
	deliverableCreateCmd.MarkFlagRequired("subject")
	deliverableCreateCmd.MarkFlagRequired("handler")

	deliverableListCmd.Flags().StringVar(&dlvOrg, "org", "", "Organization ID (required)")
	deliverableListCmd.Flags().StringVar(&dlvSubject, "subject", "", "Subject kind (required)")
	deliverableListCmd.Flags().BoolVar(&dlvListJSON, "json", false, "Output in JSON format")
	deliverableListCmd.MarkFlagRequired("org")
	deliverableListCmd.MarkFlagRequired("subject")

	deliverableCmd.AddCommand(deliverableCreateCmd)
	deliverableCmd.AddCommand(deliverableListCmd)
	deliverableCmd.AddCommand(deliverablePauseCmd)
	deliverableCmd.AddCommand(deliverableResumeCmd)
	rootCmd.AddCommand(deliverableCmd)
}

func runDeliverableCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	d := &ledger.Deliverable{
		OrganizationID:         dlvOrg,
		Name:                   dlvName,
		SubjectKind:            dlvSubject,
		Handler:                dlvHandler,
		RequiredCardSlugs:      dlvCards,
		RequiredDeliverableIDs: dlvPrereqs,
		Status:                 ledger.DeliverableStatusActive,
	}
	if dlvAfter != "" || dlvBefore != "" || len(dlvDays) > 0 {
		d.Schedule = &ledger.Schedule{
			TimeOfDayAfter:  dlvAfter,
			TimeOfDayBefore: dlvBefore,
			DaysOfWeek:      dlvDays,
		}
	}

	if err := client.CreateDeliverable(ctx, d); err != nil {
		return err
	}

	fmt.Println(d.ID)
	return nil
}

func runDeliverableList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	deliverables, err := client.ListDeliverablesBySubjectKind(ctx, dlvOrg, dlvSubject)
	if err != nil {
		return err
	}

	if dlvListJSON {
		data, err := json.MarshalIndent(deliverables, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal deliverables: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(deliverables) == 0 {
		fmt.Println("No deliverables found.")
		return nil
	}

	fmt.Printf("%-38s %-8s %-20s %-6s %s\n", "ID", "STATUS", "HANDLER", "CARDS", "NAME")
	for _, d := range deliverables {
		fmt.Printf("%-38s %-8s %-20s %-6d %s\n", d.ID, d.Status, d.Handler, len(d.RequiredCardSlugs), d.Name)
	}
	return nil
}

func setDeliverableStatus(deliverableID string, status ledger.DeliverableStatus) error {
	ctx := context.Background()

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.SetDeliverableStatus(ctx, deliverableID, status); err != nil {
		return err
	}

	fmt.Printf("%s: %s\n", deliverableID, status)
	return nil
}
