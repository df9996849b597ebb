package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mhollis/warren/pkg/ledger"
)

// Lifecycle owns evaluation state transitions. Legal transitions:
// pending → running → {completed, failed}, plus pending → failed via
// cancellation. Everything else signals ErrInvalidState.
type Lifecycle struct {
	client *ledger.Client
	now    func() time.Time
}

// NewLifecycle creates a lifecycle manager over the given ledger client.
func NewLifecycle(client *ledger.Client) *Lifecycle {
	return &Lifecycle{client: client, now: time.Now}
}

// errNoop aborts a transition without treating it as a failure. Used by
// Cancel, which is a no-op on anything but a pending evaluation.
var errNoop = errors.New("transition is a no-op")

// Start transitions a pending evaluation to running, recording startedAt.
// Any other current status fails with ErrInvalidState.
func (l *Lifecycle) Start(ctx context.Context, evaluationID string) (*ledger.Evaluation, error) {
	return l.client.TransitionEvaluation(ctx, evaluationID, func(e *ledger.Evaluation) error {
		if e.Status != ledger.EvaluationStatusPending {
			return fmt.Errorf("cannot start evaluation in status %q: %w", e.Status, ledger.ErrInvalidState)
		}
		e.Status = ledger.EvaluationStatusRunning
		e.StartedAtMs = l.now().UnixMilli()
		return nil
	})
}

// Cancel fails a pending evaluation with result {success:false,
// error:"Cancelled"} and sets completedAt. On any other status it is a
// no-op returning the evaluation unchanged: in-flight running work is
// never interrupted here.
func (l *Lifecycle) Cancel(ctx context.Context, evaluationID string) (*ledger.Evaluation, error) {
	e, err := l.client.TransitionEvaluation(ctx, evaluationID, func(e *ledger.Evaluation) error {
		if e.Status != ledger.EvaluationStatusPending {
			return errNoop
		}
		e.Status = ledger.EvaluationStatusFailed
		e.Result = &ledger.EvaluationResult{Success: false, Error: "Cancelled"}
		e.CompletedAtMs = l.now().UnixMilli()
		return nil
	})
	if errors.Is(err, errNoop) {
		return l.client.GetEvaluation(ctx, evaluationID)
	}
	return e, err
}

// Complete finishes an evaluation from pending or running, setting the
// status from result.Success and recording result and completedAt.
// Completing an already-terminal evaluation fails with ErrInvalidState.
func (l *Lifecycle) Complete(ctx context.Context, evaluationID string, result *ledger.EvaluationResult) (*ledger.Evaluation, error) {
	if result == nil {
		return nil, fmt.Errorf("completion result is required")
	}

	return l.client.TransitionEvaluation(ctx, evaluationID, func(e *ledger.Evaluation) error {
		if e.Status.Terminal() {
			return fmt.Errorf("cannot complete evaluation in status %q: %w", e.Status, ledger.ErrInvalidState)
		}
		if result.Success {
			e.Status = ledger.EvaluationStatusCompleted
		} else {
			e.Status = ledger.EvaluationStatusFailed
		}
		e.Result = result
		e.CompletedAtMs = l.now().UnixMilli()
		return nil
	})
}
