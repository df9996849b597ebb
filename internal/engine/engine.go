package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mhollis/warren/pkg/ledger"
)

// Engine is the evaluation daemon: it watches subject mutation events and
// runs readiness evaluation for each.
type Engine struct {
	client       *ledger.Client
	evaluator    *Evaluator
	healthServer *HealthServer
	log          zerolog.Logger
}

// NewEngine creates an engine daemon around the given evaluator.
// healthAddr is the listen address for the health endpoint.
func NewEngine(client *ledger.Client, evaluator *Evaluator, healthAddr string, log zerolog.Logger) *Engine {
	return &Engine{
		client:       client,
		evaluator:    evaluator,
		healthServer: NewHealthServer(client, healthAddr, log),
		log:          log,
	}
}

// Run starts the engine and blocks until the context is cancelled.
// Returns an error if the subscription cannot be established.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.healthServer.Start(); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	defer e.healthServer.Shutdown(context.Background())

	e.log.Info().Str("instance", e.client.InstanceName()).Msg("engine starting")

	subscription, err := e.client.SubscribeSubjectEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject events: %w", err)
	}
	defer subscription.Close()

	e.log.Info().Msg("subscribed to subject_events")

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("engine shutting down")
			return nil

		case event, ok := <-subscription.Events():
			if !ok {
				e.log.Info().Msg("subscription closed")
				return nil
			}
			e.handleEvent(ctx, event)

		case err, ok := <-subscription.Errors():
			if !ok {
				return nil
			}
			// Non-fatal: the offending message is skipped.
			e.log.Warn().Err(err).Msg("subscription error")
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, event *ledger.SubjectEvent) {
	log := e.log.With().
		Str("organization_id", event.OrganizationID).
		Str("subject_kind", event.SubjectKind).
		Str("subject_id", event.SubjectID).
		Logger()

	results, err := e.evaluator.Evaluate(ctx, EvaluateRequest{
		OrganizationID: event.OrganizationID,
		SubjectKind:    event.SubjectKind,
		SubjectID:      event.SubjectID,
		Variables:      event.Variables,
		MutatedFields:  event.MutatedFields,
	})
	if err != nil {
		// Keep processing; one bad event must not stop the engine.
		log.Error().Err(err).Msg("evaluation failed")
		return
	}

	ready := 0
	for _, r := range results {
		if r.Ready {
			ready++
		}
	}
	log.Info().
		Int("deliverables", len(results)).
		Int("ready", ready).
		Msg("subject evaluated")
}
