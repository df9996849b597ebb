package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mhollis/warren/pkg/ledger"
)

var (
	procOrg      string
	procName     string
	procSource   string
	procSubject  string
	procRefs     []string
	procListJSON bool
)

var procedureCmd = &cobra.Command{
	Use:     "procedure",
	Aliases: []string{"proc"},
	Short:   "Manage collection procedures",
}

var procedureCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a procedure",
	Long: `Create a procedure referencing existing cards.

Each --ref takes a card slug, optionally suffixed with modifiers:
  --ref email                  optional field
  --ref email:required         value must be supplied on submission
  --ref email:required:email   also write accepted values to host field "email"

Slugs are resolved against the organization's cards at creation time.`,
	RunE: runProcedureCreate,
}

var procedureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an organization's procedures",
	RunE:  runProcedureList,
}

func init() {
	procedureCreateCmd.Flags().StringVar(&procOrg, "org", "", "Organization ID (required)")
	procedureCreateCmd.Flags().StringVar(&procName, "name", "", "Human-readable name (required)")
	procedureCreateCmd.Flags().StringVar(&procSource, "source", "", "Submission source (e.g. intake-form)")
	procedureCreateCmd.Flags().StringVar(&procSubject, "subject", "", "Subject kind the values are intended for")
	procedureCreateCmd.Flags().StringSliceVar(&procRefs, "ref", nil, "Card reference: slug[:required[:write-to-field]] (repeatable)")
	procedureCreateCmd.MarkFlagRequired("org")
	procedureCreateCmd.MarkFlagRequired("name")

	procedureListCmd.Flags().StringVar(&procOrg, "org", "", "Organization ID (required)")
	procedureListCmd.Flags().BoolVar(&procListJSON, "json", false, "Output in JSON format")
	procedureListCmd.MarkFlagRequired("org")

	procedureCmd.AddCommand(procedureCreateCmd)
	procedureCmd.AddCommand(procedureListCmd)
	rootCmd.AddCommand(procedureCmd)
}

func runProcedureCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	refs := make([]ledger.CardRef, 0, len(procRefs))
	for _, raw := range procRefs {
		parts := strings.SplitN(raw, ":", 3)

		card, err := client.GetCardBySlug(ctx, procOrg, parts[0])
		if err != nil {
			return fmt.Errorf("--ref %s: %w", raw, err)
		}

		ref := ledger.CardRef{CardID: card.ID}
		if len(parts) > 1 {
			if parts[1] != "required" && parts[1] != "" {
				return fmt.Errorf("--ref %s: unknown modifier %q", raw, parts[1])
			}
			ref.Required = parts[1] == "required"
		}
		if len(parts) > 2 {
			ref.WriteTo = parts[2]
		}
		refs = append(refs, ref)
	}

	p := &ledger.Procedure{
		OrganizationID: procOrg,
		Name:           procName,
		Source:         procSource,
		Subject:        procSubject,
		CardRefs:       refs,
	}
	if err := client.CreateProcedure(ctx, p); err != nil {
		return err
	}

	fmt.Println(p.ID)
	return nil
}

func runProcedureList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	procedures, err := client.ListProcedures(ctx, procOrg)
	if err != nil {
		return err
	}

	if procListJSON {
		data, err := json.MarshalIndent(procedures, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal procedures: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(procedures) == 0 {
		fmt.Println("No procedures found.")
		return nil
	}

	fmt.Printf("%-38s %-16s %-12s %-6s %s\n", "ID", "SOURCE", "SUBJECT", "REFS", "NAME")
	for _, p := range procedures {
		fmt.Printf("%-38s %-16s %-12s %-6d %s\n", p.ID, p.Source, p.Subject, len(p.CardRefs), p.Name)
	}
	return nil
}
