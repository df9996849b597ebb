package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhollis/warren/pkg/ledger"
)

var (
	cardOrg     string
	cardSlug    string
	cardLabel   string
	cardVariant string
	cardSubject string
	cardSec     string
	cardBy      string

	cardListSubject string
	cardListJSON    bool
)

var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Manage card definitions",
}

var cardCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a card definition",
	Long: `Create a card definition for an organization.

Creation is idempotent per (organization, slug): re-creating an existing
slug with the same variant returns the existing card, while a variant
mismatch is rejected.`,
	RunE: runCardCreate,
}

var cardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an organization's cards",
	RunE:  runCardList,
}

func init() {
	cardCreateCmd.Flags().StringVar(&cardOrg, "org", "", "Organization ID (required)")
	cardCreateCmd.Flags().StringVar(&cardSlug, "slug", "", "Machine name, unique per organization (required)")
	cardCreateCmd.Flags().StringVar(&cardLabel, "label", "", "Human-readable label (required)")
	cardCreateCmd.Flags().StringVar(&cardVariant, "variant", "STRING", "Value type (STRING, TEXT, NUMBER, BOOLEAN, DATE, EMAIL, URL, ARRAY, ADDRESS)")
	cardCreateCmd.Flags().StringVar(&cardSubject, "subject", "", "Subject kind this card attaches to (required)")
	cardCreateCmd.Flags().StringVar(&cardSec, "security", "", "Sensitivity classification (e.g. pii)")
	cardCreateCmd.Flags().StringVar(&cardBy, "created-by", "cli", "Actor recorded as the creator")
	cardCreateCmd.MarkFlagRequired("org")
	cardCreateCmd.MarkFlagRequired("slug")
	cardCreateCmd.MarkFlagRequired("label")
	cardCreateCmd.MarkFlagRequired("subject")

	cardListCmd.Flags().StringVar(&cardOrg, "org", "", "Organization ID (required)")
	cardListCmd.Flags().StringVar(&cardListSubject, "subject", "", "Filter by subject kind")
	cardListCmd.Flags().BoolVar(&cardListJSON, "json", false, "Output in JSON format")
	cardListCmd.MarkFlagRequired("org")

	cardCmd.AddCommand(cardCreateCmd)
	cardCmd.AddCommand(cardListCmd)
	rootCmd.AddCommand(cardCmd)
}

func runCardCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	card, err := client.CreateCard(ctx, ledger.CardInput{
		OrganizationID: cardOrg,
		Slug:           cardSlug,
		Label:          cardLabel,
		Variant:        ledger.CardVariant(cardVariant),
		Security:       cardSec,
		SubjectKind:    cardSubject,
		CreatedBy:      cardBy,
	})
	if err != nil {
		if ledger.IsConflict(err) {
			return fmt.Errorf("card %q already exists with a different variant: %w", cardSlug, err)
		}
		return err
	}

	fmt.Println(card.ID)
	return nil
}

func runCardList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	cards, err := client.ListCards(ctx, cardOrg, cardListSubject)
	if err != nil {
		return err
	}

	if cardListJSON {
		data, err := json.MarshalIndent(cards, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal cards: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(cards) == 0 {
		fmt.Println("No cards found.")
		return nil
	}

	fmt.Printf("%-38s %-24s %-10s %-12s %s\n", "ID", "SLUG", "VARIANT", "SUBJECT", "LABEL")
	for _, c := range cards {
		fmt.Printf("%-38s %-24s %-10s %-12s %s\n", c.ID, c.Slug, c.Variant, c.SubjectKind, c.Label)
	}
	return nil
}
