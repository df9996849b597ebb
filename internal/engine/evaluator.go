// Package engine implements the readiness evaluator: the orchestrating
// component that decides, per subject change, which deliverables have all
// prerequisites met and materializes a scheduled evaluation for each.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mhollis/warren/internal/schedule"
	"github.com/mhollis/warren/internal/subject"
	"github.com/mhollis/warren/pkg/ledger"
)

// Evaluator performs readiness evaluation for one ledger instance.
type Evaluator struct {
	client     *ledger.Client
	aggregator *subject.Aggregator // nil when no subject bindings are configured
	log        zerolog.Logger

	now func() time.Time
}

// NewEvaluator creates a readiness evaluator. The aggregator may be nil;
// callers must then supply explicit variables on every request.
func NewEvaluator(client *ledger.Client, aggregator *subject.Aggregator, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		client:     client,
		aggregator: aggregator,
		log:        log,
		now:        time.Now,
	}
}

// EvaluateRequest identifies the subject to evaluate and, optionally, the
// trigger details.
type EvaluateRequest struct {
	OrganizationID string
	SubjectKind    string
	SubjectID      string

	// Variables, when non-nil, is used verbatim: explicit variables always
	// override auto-resolution through the aggregator.
	Variables map[string]any

	// MutatedFields, when non-empty, limits evaluation to deliverables
	// whose required cards intersect the changed fields.
	MutatedFields []string
}

// Unmet lists the unsatisfied prerequisites of a deliverable.
type Unmet struct {
	CardSlugs      []string `json:"card_slugs"`
	DeliverableIDs []string `json:"deliverable_ids"`
}

// Result is the per-deliverable outcome of an evaluation pass.
type Result struct {
	DeliverableID string `json:"deliverable_id"`
	Ready         bool   `json:"ready"`
	Unmet         Unmet  `json:"unmet"`
	EvaluationID  string `json:"evaluation_id,omitempty"`
}

// Evaluate checks every active deliverable bound to the request's
// (organization, subject kind) against the subject's variable map and
// evaluation history, creating a pending evaluation for each deliverable
// whose dependency set is satisfied.
//
// This is a pure dependency-closure check per call: satisfying deliverable
// A does not re-evaluate deliverables depending on A. Cascades happen when
// the caller re-invokes Evaluate, typically on A's completion.
func (ev *Evaluator) Evaluate(ctx context.Context, req EvaluateRequest) ([]Result, error) {
	return ev.run(ctx, req, true)
}

// Inspect performs the same readiness pass as Evaluate but never creates
// evaluations. Useful for answering "what is this subject still missing".
func (ev *Evaluator) Inspect(ctx context.Context, req EvaluateRequest) ([]Result, error) {
	return ev.run(ctx, req, false)
}

func (ev *Evaluator) run(ctx context.Context, req EvaluateRequest, materialize bool) ([]Result, error) {
	if req.OrganizationID == "" || req.SubjectKind == "" || req.SubjectID == "" {
		return nil, fmt.Errorf("organization_id, subject_kind, and subject_id are required")
	}

	variables := req.Variables
	if variables == nil {
		variables = map[string]any{}
		if ev.aggregator != nil && ev.aggregator.Bound(req.SubjectKind) {
			aggregation, err := ev.aggregator.Aggregate(ctx, req.SubjectKind, req.SubjectID)
			if err != nil {
				return nil, fmt.Errorf("failed to aggregate subject context: %w", err)
			}
			variables = aggregation.Variables
		}
	}

	deliverables, err := ev.client.ListDeliverablesBySubjectKind(ctx, req.OrganizationID, req.SubjectKind)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(deliverables))
	for _, d := range deliverables {
		if d.Status != ledger.DeliverableStatusActive {
			continue
		}

		// Unrelated field changes never trigger unrelated deliverables.
		if len(req.MutatedFields) > 0 && !intersects(d.RequiredCardSlugs, req.MutatedFields) {
			continue
		}

		result, err := ev.evaluateDeliverable(ctx, d, req, variables, materialize)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}

func (ev *Evaluator) evaluateDeliverable(ctx context.Context, d *ledger.Deliverable, req EvaluateRequest, variables map[string]any, materialize bool) (Result, error) {
	result := Result{
		DeliverableID: d.ID,
		Unmet: Unmet{
			CardSlugs:      []string{},
			DeliverableIDs: []string{},
		},
	}

	for _, slug := range d.RequiredCardSlugs {
		if !present(variables, slug) {
			result.Unmet.CardSlugs = append(result.Unmet.CardSlugs, slug)
		}
	}

	// NOTE: any completed evaluation satisfies a prerequisite, with no
	// recency bound; an arbitrarily old completion counts.
	for _, depID := range d.RequiredDeliverableIDs {
		done, err := ev.client.HasCompletedEvaluation(ctx, depID, req.SubjectID)
		if err != nil {
			return Result{}, err
		}
		if !done {
			result.Unmet.DeliverableIDs = append(result.Unmet.DeliverableIDs, depID)
		}
	}

	result.Ready = len(result.Unmet.CardSlugs) == 0 && len(result.Unmet.DeliverableIDs) == 0
	if !result.Ready || !materialize {
		return result, nil
	}

	dueAt, err := schedule.DueTime(ev.now(), d.Schedule)
	if err != nil {
		return Result{}, fmt.Errorf("deliverable %s: %w", d.ID, err)
	}

	evaluation := &ledger.Evaluation{
		DeliverableID:  d.ID,
		OrganizationID: req.OrganizationID,
		Context: ledger.EvaluationContext{
			SubjectKind:   req.SubjectKind,
			SubjectID:     req.SubjectID,
			MutatedFields: req.MutatedFields,
		},
		Variables:      variables,
		Status:         ledger.EvaluationStatusPending,
		ScheduledForMs: dueAt.UnixMilli(),
	}

	evaluationID, created, err := ev.client.CreateEvaluation(ctx, evaluation)
	if err != nil {
		return Result{}, err
	}
	result.EvaluationID = evaluationID

	event := ev.log.Info().
		Str("deliverable_id", d.ID).
		Str("subject_kind", req.SubjectKind).
		Str("subject_id", req.SubjectID).
		Str("evaluation_id", evaluationID)
	if created {
		event.Int64("scheduled_for_ms", evaluation.ScheduledForMs).Msg("evaluation created")
	} else {
		event.Msg("evaluation already open")
	}

	return result, nil
}

// present reports whether the variable exists with a usable value:
// undefined, nil, and empty-string values all count as missing.
func present(variables map[string]any, slug string) bool {
	value, ok := variables[slug]
	if !ok || value == nil {
		return false
	}
	if s, ok := value.(string); ok && s == "" {
		return false
	}
	return true
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
