package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mhollis/warren/internal/forms"
	"github.com/mhollis/warren/internal/printer"
)

var (
	submitProcedure  string
	submitValuesJSON string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Validate a procedure submission",
	Long: `Validate a set of values against a procedure's card references.

Values are read as a JSON object from --values, or from stdin when
--values is "-". The result lists every validated slug and every field
error; validation never stops at the first failure.`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitProcedure, "procedure", "", "Procedure ID (required)")
	submitCmd.Flags().StringVar(&submitValuesJSON, "values", "-", "JSON object of slug -> value, or - for stdin")
	submitCmd.MarkFlagRequired("procedure")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	raw := []byte(submitValuesJSON)
	if submitValuesJSON == "-" {
		var err error
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read values from stdin: %w", err)
		}
	}

	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("values must be a JSON object: %w", err)
	}

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	validator := forms.NewValidator(client)
	result, err := validator.Submit(ctx, submitProcedure, values)
	if err != nil {
		return err
	}

	if result.Success {
		printer.Success("Submission valid: %d field(s) accepted\n", len(result.Validated))
	} else {
		printer.Warning("Submission rejected: %d error(s)\n", len(result.Errors))
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Println(string(data))

	if !result.Success {
		os.Exit(1)
	}
	return nil
}
