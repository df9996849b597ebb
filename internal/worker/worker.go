// Package worker implements the external executor: it polls the ledger for
// due pending evaluations, runs the registered handler for each, and
// reports completion back through the evaluation lifecycle.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/mhollis/warren/internal/engine"
	"github.com/mhollis/warren/pkg/ledger"
)

// Worker polls due evaluations and executes them.
type Worker struct {
	client    *ledger.Client
	lifecycle *engine.Lifecycle
	registry  *engine.Registry
	interval  time.Duration
	batchSize int64
	log       zerolog.Logger

	now func() time.Time
}

// New creates a worker. interval is the poll period; batchSize caps how
// many due evaluations are picked up per poll (0 means 100).
func New(client *ledger.Client, registry *engine.Registry, interval time.Duration, batchSize int64, log zerolog.Logger) *Worker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Worker{
		client:    client,
		lifecycle: engine.NewLifecycle(client),
		registry:  registry,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
		now:       time.Now,
	}
}

// Run polls until the context is cancelled. Transient Redis failures are
// retried with exponential backoff; handler failures are recorded on the
// evaluation and never stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().
		Str("instance", w.client.InstanceName()).
		Strs("handlers", w.registry.Names()).
		Dur("interval", w.interval).
		Msg("worker starting")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker shutting down")
			return nil
		case <-ticker.C:
			if err := w.poll(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.log.Error().Err(err).Msg("poll failed")
			}
		}
	}
}

// poll picks up due evaluations and executes each in turn.
func (w *Worker) poll(ctx context.Context) error {
	var due []*ledger.Evaluation

	fetch := func() error {
		var err error
		due, err = w.client.DueEvaluations(ctx, w.now(), w.batchSize)
		return err
	}
	if err := backoff.Retry(fetch, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		return fmt.Errorf("failed to fetch due evaluations: %w", err)
	}

	for _, e := range due {
		w.execute(ctx, e)
	}

	return nil
}

// execute runs a single due evaluation through its lifecycle.
func (w *Worker) execute(ctx context.Context, e *ledger.Evaluation) {
	log := w.log.With().
		Str("evaluation_id", e.ID).
		Str("deliverable_id", e.DeliverableID).
		Str("subject_id", e.Context.SubjectID).
		Logger()

	if _, err := w.lifecycle.Start(ctx, e.ID); err != nil {
		if ledger.IsInvalidState(err) {
			// Another worker got there first.
			return
		}
		log.Error().Err(err).Msg("failed to start evaluation")
		return
	}

	deliverable, err := w.client.GetDeliverable(ctx, e.DeliverableID)
	if err != nil {
		w.finish(ctx, log, e.ID, &ledger.EvaluationResult{
			Success: false,
			Error:   fmt.Sprintf("deliverable lookup failed: %v", err),
		})
		return
	}

	handler, ok := w.registry.Get(deliverable.Handler)
	if !ok {
		w.finish(ctx, log, e.ID, &ledger.EvaluationResult{
			Success: false,
			Error:   fmt.Sprintf("no handler registered for %q", deliverable.Handler),
		})
		return
	}

	started := w.now()
	result := handler(ctx, e)
	if result == nil {
		result = &ledger.EvaluationResult{Success: true}
	}
	if result.DurationMs == 0 {
		result.DurationMs = w.now().Sub(started).Milliseconds()
	}

	w.finish(ctx, log, e.ID, result)
}

func (w *Worker) finish(ctx context.Context, log zerolog.Logger, evaluationID string, result *ledger.EvaluationResult) {
	if _, err := w.lifecycle.Complete(ctx, evaluationID, result); err != nil {
		log.Error().Err(err).Msg("failed to complete evaluation")
		return
	}
	log.Info().
		Bool("success", result.Success).
		Int64("duration_ms", result.DurationMs).
		Msg("evaluation executed")
}
