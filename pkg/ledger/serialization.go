package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like
// slices, the variable map, and nested structs are JSON-encoded into single
// hash fields. This keeps scalar fields individually readable while
// preserving structure for the rest.

// CardToHash converts a Card struct to a Redis hash format.
func CardToHash(c *Card) map[string]interface{} {
	return map[string]interface{}{
		"id":              c.ID,
		"organization_id": c.OrganizationID,
		"slug":            c.Slug,
		"label":           c.Label,
		"variant":         string(c.Variant),
		"security":        c.Security,
		"subject_kind":    c.SubjectKind,
		"created_by":      c.CreatedBy,
		"created_at_ms":   c.CreatedAtMs,
	}
}

// HashToCard converts a Redis hash to a Card struct.
func HashToCard(hash map[string]string) (*Card, error) {
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	card := &Card{
		ID:             hash["id"],
		OrganizationID: hash["organization_id"],
		Slug:           hash["slug"],
		Label:          hash["label"],
		Variant:        CardVariant(hash["variant"]),
		Security:       hash["security"],
		SubjectKind:    hash["subject_kind"],
		CreatedBy:      hash["created_by"],
		CreatedAtMs:    createdAtMs,
	}

	return card, nil
}

// ProcedureToHash converts a Procedure struct to a Redis hash format.
// Card references are JSON-encoded.
func ProcedureToHash(p *Procedure) (map[string]interface{}, error) {
	cardRefsJSON, err := json.Marshal(p.CardRefs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal card_refs: %w", err)
	}

	hash := map[string]interface{}{
		"id":              p.ID,
		"organization_id": p.OrganizationID,
		"name":            p.Name,
		"source":          p.Source,
		"subject":         p.Subject,
		"card_refs":       string(cardRefsJSON),
		"created_at_ms":   p.CreatedAtMs,
		"updated_at_ms":   p.UpdatedAtMs,
	}

	return hash, nil
}

// HashToProcedure converts a Redis hash to a Procedure struct.
func HashToProcedure(hash map[string]string) (*Procedure, error) {
	var cardRefs []CardRef
	if cardRefsJSON := hash["card_refs"]; cardRefsJSON != "" {
		if err := json.Unmarshal([]byte(cardRefsJSON), &cardRefs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal card_refs: %w", err)
		}
	}
	if cardRefs == nil {
		cardRefs = []CardRef{}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	procedure := &Procedure{
		ID:             hash["id"],
		OrganizationID: hash["organization_id"],
		Name:           hash["name"],
		Source:         hash["source"],
		Subject:        hash["subject"],
		CardRefs:       cardRefs,
		CreatedAtMs:    createdAtMs,
		UpdatedAtMs:    updatedAtMs,
	}

	return procedure, nil
}

// DeliverableToHash converts a Deliverable struct to a Redis hash format.
// Dependency slices and the schedule are JSON-encoded.
func DeliverableToHash(d *Deliverable) (map[string]interface{}, error) {
	cardSlugsJSON, err := json.Marshal(d.RequiredCardSlugs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal required_card_slugs: %w", err)
	}

	deliverableIDsJSON, err := json.Marshal(d.RequiredDeliverableIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal required_deliverable_ids: %w", err)
	}

	hash := map[string]interface{}{
		"id":                       d.ID,
		"organization_id":          d.OrganizationID,
		"name":                     d.Name,
		"subject_kind":             d.SubjectKind,
		"handler":                  d.Handler,
		"required_card_slugs":      string(cardSlugsJSON),
		"required_deliverable_ids": string(deliverableIDsJSON),
		"status":                   string(d.Status),
		"created_at_ms":            d.CreatedAtMs,
		"updated_at_ms":            d.UpdatedAtMs,
	}

	if d.Schedule != nil {
		scheduleJSON, err := json.Marshal(d.Schedule)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schedule: %w", err)
		}
		hash["schedule"] = string(scheduleJSON)
	} else {
		hash["schedule"] = ""
	}

	return hash, nil
}

// HashToDeliverable converts a Redis hash to a Deliverable struct.
func HashToDeliverable(hash map[string]string) (*Deliverable, error) {
	var cardSlugs []string
	if cardSlugsJSON := hash["required_card_slugs"]; cardSlugsJSON != "" {
		if err := json.Unmarshal([]byte(cardSlugsJSON), &cardSlugs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal required_card_slugs: %w", err)
		}
	}
	if cardSlugs == nil {
		cardSlugs = []string{}
	}

	var deliverableIDs []string
	if deliverableIDsJSON := hash["required_deliverable_ids"]; deliverableIDsJSON != "" {
		if err := json.Unmarshal([]byte(deliverableIDsJSON), &deliverableIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal required_deliverable_ids: %w", err)
		}
	}
	if deliverableIDs == nil {
		deliverableIDs = []string{}
	}

	var schedule *Schedule
	if scheduleJSON := hash["schedule"]; scheduleJSON != "" {
		schedule = &Schedule{}
		if err := json.Unmarshal([]byte(scheduleJSON), schedule); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
		}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	deliverable := &Deliverable{
		ID:                     hash["id"],
		OrganizationID:         hash["organization_id"],
		Name:                   hash["name"],
		SubjectKind:            hash["subject_kind"],
		Handler:                hash["handler"],
		RequiredCardSlugs:      cardSlugs,
		RequiredDeliverableIDs: deliverableIDs,
		Schedule:               schedule,
		Status:                 DeliverableStatus(hash["status"]),
		CreatedAtMs:            createdAtMs,
		UpdatedAtMs:            updatedAtMs,
	}

	return deliverable, nil
}

// EvaluationToHash converts an Evaluation struct to a Redis hash format.
// Context, variables, and result are JSON-encoded.
func EvaluationToHash(e *Evaluation) (map[string]interface{}, error) {
	contextJSON, err := json.Marshal(e.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal context: %w", err)
	}

	variablesJSON, err := json.Marshal(e.Variables)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variables: %w", err)
	}

	hash := map[string]interface{}{
		"id":               e.ID,
		"deliverable_id":   e.DeliverableID,
		"organization_id":  e.OrganizationID,
		"context":          string(contextJSON),
		"variables":        string(variablesJSON),
		"status":           string(e.Status),
		"scheduled_for_ms": e.ScheduledForMs,
		"started_at_ms":    e.StartedAtMs,
		"created_at_ms":    e.CreatedAtMs,
		"completed_at_ms":  e.CompletedAtMs,
	}

	if e.Result != nil {
		resultJSON, err := json.Marshal(e.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		hash["result"] = string(resultJSON)
	} else {
		hash["result"] = ""
	}

	return hash, nil
}

// HashToEvaluation converts a Redis hash to an Evaluation struct.
func HashToEvaluation(hash map[string]string) (*Evaluation, error) {
	var evalContext EvaluationContext
	if contextJSON := hash["context"]; contextJSON != "" {
		if err := json.Unmarshal([]byte(contextJSON), &evalContext); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context: %w", err)
		}
	}

	var variables map[string]any
	if variablesJSON := hash["variables"]; variablesJSON != "" {
		if err := json.Unmarshal([]byte(variablesJSON), &variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
		}
	}
	if variables == nil {
		variables = map[string]any{}
	}

	var result *EvaluationResult
	if resultJSON := hash["result"]; resultJSON != "" {
		result = &EvaluationResult{}
		if err := json.Unmarshal([]byte(resultJSON), result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}

	scheduledForMs, _ := strconv.ParseInt(hash["scheduled_for_ms"], 10, 64)
	startedAtMs, _ := strconv.ParseInt(hash["started_at_ms"], 10, 64)
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	completedAtMs, _ := strconv.ParseInt(hash["completed_at_ms"], 10, 64)

	evaluation := &Evaluation{
		ID:             hash["id"],
		DeliverableID:  hash["deliverable_id"],
		OrganizationID: hash["organization_id"],
		Context:        evalContext,
		Variables:      variables,
		Status:         EvaluationStatus(hash["status"]),
		ScheduledForMs: scheduledForMs,
		StartedAtMs:    startedAtMs,
		Result:         result,
		CreatedAtMs:    createdAtMs,
		CompletedAtMs:  completedAtMs,
	}

	return evaluation, nil
}
