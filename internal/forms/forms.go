// Package forms validates procedure submissions against card definitions.
// Validation results are always returned as data, never as errors, so
// callers can render per-field feedback. Nothing here writes to storage:
// persisting accepted values into host documents is the caller's job.
package forms

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/mhollis/warren/pkg/ledger"
)

// FieldError describes one failed field in a submission.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SubmissionResult is the outcome of validating a procedure submission.
// Success is true iff no errors were recorded; Validated lists the card
// slugs whose values passed.
type SubmissionResult struct {
	Success   bool         `json:"success"`
	Errors    []FieldError `json:"errors,omitempty"`
	Validated []string     `json:"validated"`
}

// Validator checks submitted values against the cards a procedure
// references.
type Validator struct {
	client *ledger.Client
}

// NewValidator creates a submission validator over the given ledger client.
func NewValidator(client *ledger.Client) *Validator {
	return &Validator{client: client}
}

// Submit validates values against the procedure's card references.
//
// A missing procedure is reported as a structured result with a
// "procedureId" field error. Every card reference is checked: unresolvable
// cards, missing required values, and variant shape mismatches all
// accumulate; validation never short-circuits on the first failure.
func (v *Validator) Submit(ctx context.Context, procedureID string, values map[string]any) (*SubmissionResult, error) {
	result := &SubmissionResult{Validated: []string{}}

	procedure, err := v.client.GetProcedure(ctx, procedureID)
	if err != nil {
		if ledger.IsNotFound(err) {
			result.Errors = append(result.Errors, FieldError{
				Field:   "procedureId",
				Message: "not found",
			})
			return result, nil
		}
		return nil, err
	}

	for _, ref := range procedure.CardRefs {
		card, err := v.client.GetCard(ctx, ref.CardID)
		if err != nil {
			if ledger.IsNotFound(err) {
				result.Errors = append(result.Errors, FieldError{
					Field:   ref.CardID,
					Message: "card not found",
				})
				continue
			}
			return nil, err
		}

		value, present := values[card.Slug]
		if !present || isEmpty(value) {
			if ref.Required {
				result.Errors = append(result.Errors, FieldError{
					Field:   card.Slug,
					Message: "missing",
				})
			}
			continue
		}

		if msg := checkVariant(card.Variant, value); msg != "" {
			result.Errors = append(result.Errors, FieldError{
				Field:   card.Slug,
				Message: msg,
			})
			continue
		}

		result.Validated = append(result.Validated, card.Slug)
	}

	result.Success = len(result.Errors) == 0
	return result, nil
}

// isEmpty treats nil and empty/blank strings as absent values.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// checkVariant shape-checks a value against the card's variant. Returns an
// empty string on success, or a human-readable mismatch message.
func checkVariant(variant ledger.CardVariant, value any) string {
	switch variant {
	case ledger.VariantString, ledger.VariantText:
		if _, ok := value.(string); !ok {
			return "expected a string"
		}

	case ledger.VariantNumber:
		switch value.(type) {
		case int, int32, int64, float32, float64:
		default:
			return "expected a number"
		}

	case ledger.VariantBoolean:
		if _, ok := value.(bool); !ok {
			return "expected a boolean"
		}

	case ledger.VariantDate:
		switch d := value.(type) {
		case string:
			if _, err := time.Parse(time.RFC3339, d); err != nil {
				if _, err := time.Parse("2006-01-02", d); err != nil {
					return "expected an RFC3339 or YYYY-MM-DD date"
				}
			}
		case int, int64, float64:
			// epoch timestamp
		default:
			return "expected a date string or epoch timestamp"
		}

	case ledger.VariantEmail:
		s, ok := value.(string)
		if !ok || !strings.Contains(s, "@") {
			return "expected an email address"
		}

	case ledger.VariantURL:
		s, ok := value.(string)
		if !ok {
			return "expected a URL string"
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "expected an absolute URL"
		}

	case ledger.VariantArray:
		switch value.(type) {
		case []any, []string, []int, []float64:
		default:
			return "expected an array"
		}

	case ledger.VariantAddress:
		if _, ok := value.(map[string]any); !ok {
			return "expected a structured address object"
		}
	}

	return ""
}
