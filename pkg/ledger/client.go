package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the ledger.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple
// goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new ledger client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: Warren instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// InstanceName returns the instance this client is scoped to.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// CardInput is the caller-supplied portion of a card. The store assigns
// the ID and creation timestamp.
type CardInput struct {
	OrganizationID string
	Slug           string
	Label          string
	Variant        CardVariant
	Security       string
	SubjectKind    string
	CreatedBy      string
}

// CreateCard creates a card, idempotently by (organization, slug).
//
// If a card already exists for the pair and its variant matches, the
// existing card is returned unchanged. If the variant differs the call
// fails with ErrConflict: a card's variant is immutable once the slug
// exists. Otherwise a new card is persisted and indexed.
func (c *Client) CreateCard(ctx context.Context, input CardInput) (*Card, error) {
	if input.OrganizationID == "" || input.Slug == "" {
		return nil, fmt.Errorf("organization_id and slug are required")
	}
	if err := input.Variant.Validate(); err != nil {
		return nil, fmt.Errorf("invalid variant: %w", err)
	}

	card := &Card{
		ID:             uuid.New().String(),
		OrganizationID: input.OrganizationID,
		Slug:           input.Slug,
		Label:          input.Label,
		Variant:        input.Variant,
		Security:       input.Security,
		SubjectKind:    input.SubjectKind,
		CreatedBy:      input.CreatedBy,
		CreatedAtMs:    time.Now().UnixMilli(),
	}
	if err := card.Validate(); err != nil {
		return nil, fmt.Errorf("invalid card: %w", err)
	}

	// Claim the (org, slug) index first. SETNX makes concurrent creates of
	// the same slug converge on a single winner.
	slugKey := CardBySlugKey(c.instanceName, input.OrganizationID, input.Slug)
	claimed, err := c.rdb.SetNX(ctx, slugKey, card.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim card slug: %w", err)
	}

	if !claimed {
		existingID, err := c.rdb.Get(ctx, slugKey).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read card slug index: %w", err)
		}
		existing, err := c.GetCard(ctx, existingID)
		if err != nil {
			return nil, err
		}
		if existing.Variant != input.Variant {
			return nil, fmt.Errorf("card %q already exists with variant %s: %w",
				input.Slug, existing.Variant, ErrConflict)
		}
		return existing, nil
	}

	key := CardKey(c.instanceName, card.ID)
	if err := c.rdb.HSet(ctx, key, CardToHash(card)).Err(); err != nil {
		return nil, fmt.Errorf("failed to write card to Redis: %w", err)
	}

	orgKey := CardsByOrgKey(c.instanceName, card.OrganizationID)
	if err := c.rdb.SAdd(ctx, orgKey, card.ID).Err(); err != nil {
		return nil, fmt.Errorf("failed to index card by organization: %w", err)
	}

	return card, nil
}

// GetCard retrieves a card by ID. Returns ErrNotFound if it doesn't exist.
func (c *Client) GetCard(ctx context.Context, cardID string) (*Card, error) {
	key := CardKey(c.instanceName, cardID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read card from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}

	return HashToCard(hashData)
}

// GetCardBySlug retrieves a card by its (organization, slug) index.
func (c *Client) GetCardBySlug(ctx context.Context, orgID, slug string) (*Card, error) {
	slugKey := CardBySlugKey(c.instanceName, orgID, slug)

	cardID, err := c.rdb.Get(ctx, slugKey).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("card %s/%s: %w", orgID, slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read card slug index: %w", err)
	}

	return c.GetCard(ctx, cardID)
}

// ListCards lists an organization's cards, optionally filtered by subject
// kind. Iteration order is not guaranteed stable across calls.
func (c *Client) ListCards(ctx context.Context, orgID, subjectKind string) ([]*Card, error) {
	orgKey := CardsByOrgKey(c.instanceName, orgID)

	ids, err := c.rdb.SMembers(ctx, orgKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cards for organization: %w", err)
	}

	cards := make([]*Card, 0, len(ids))
	for _, id := range ids {
		card, err := c.GetCard(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue // index entry outlived its card
			}
			return nil, err
		}
		if subjectKind != "" && card.SubjectKind != subjectKind {
			continue
		}
		cards = append(cards, card)
	}

	return cards, nil
}

// CreateProcedure writes a procedure after verifying every card reference
// resolves to an existing card. Returns ErrNotFound (wrapped) for the first
// unresolvable reference.
func (c *Client) CreateProcedure(ctx context.Context, p *Procedure) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UnixMilli()
	if p.CreatedAtMs == 0 {
		p.CreatedAtMs = now
	}
	p.UpdatedAtMs = now

	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid procedure: %w", err)
	}

	for _, ref := range p.CardRefs {
		if _, err := c.GetCard(ctx, ref.CardID); err != nil {
			return fmt.Errorf("card reference %s: %w", ref.CardID, err)
		}
	}

	return c.writeProcedure(ctx, p)
}

// UpdateProcedure replaces an existing procedure. Card references are
// re-verified and updated_at is bumped.
func (c *Client) UpdateProcedure(ctx context.Context, p *Procedure) error {
	if _, err := c.GetProcedure(ctx, p.ID); err != nil {
		return err
	}

	for _, ref := range p.CardRefs {
		if _, err := c.GetCard(ctx, ref.CardID); err != nil {
			return fmt.Errorf("card reference %s: %w", ref.CardID, err)
		}
	}

	p.UpdatedAtMs = time.Now().UnixMilli()
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid procedure: %w", err)
	}

	return c.writeProcedure(ctx, p)
}

func (c *Client) writeProcedure(ctx context.Context, p *Procedure) error {
	hash, err := ProcedureToHash(p)
	if err != nil {
		return fmt.Errorf("failed to serialize procedure: %w", err)
	}

	key := ProcedureKey(c.instanceName, p.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write procedure to Redis: %w", err)
	}

	orgKey := ProceduresByOrgKey(c.instanceName, p.OrganizationID)
	if err := c.rdb.SAdd(ctx, orgKey, p.ID).Err(); err != nil {
		return fmt.Errorf("failed to index procedure by organization: %w", err)
	}

	return nil
}

// GetProcedure retrieves a procedure by ID.
func (c *Client) GetProcedure(ctx context.Context, procedureID string) (*Procedure, error) {
	key := ProcedureKey(c.instanceName, procedureID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read procedure from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, fmt.Errorf("procedure %s: %w", procedureID, ErrNotFound)
	}

	return HashToProcedure(hashData)
}

// ListProcedures lists an organization's procedures.
func (c *Client) ListProcedures(ctx context.Context, orgID string) ([]*Procedure, error) {
	orgKey := ProceduresByOrgKey(c.instanceName, orgID)

	ids, err := c.rdb.SMembers(ctx, orgKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list procedures for organization: %w", err)
	}

	procedures := make([]*Procedure, 0, len(ids))
	for _, id := range ids {
		p, err := c.GetProcedure(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		procedures = append(procedures, p)
	}

	return procedures, nil
}

// CreateDeliverable writes a deliverable and indexes it by
// (organization, subject kind).
func (c *Client) CreateDeliverable(ctx context.Context, d *Deliverable) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = DeliverableStatusActive
	}
	now := time.Now().UnixMilli()
	if d.CreatedAtMs == 0 {
		d.CreatedAtMs = now
	}
	d.UpdatedAtMs = now

	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid deliverable: %w", err)
	}

	hash, err := DeliverableToHash(d)
	if err != nil {
		return fmt.Errorf("failed to serialize deliverable: %w", err)
	}

	key := DeliverableKey(c.instanceName, d.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write deliverable to Redis: %w", err)
	}

	subjectKey := DeliverablesBySubjectKey(c.instanceName, d.OrganizationID, d.SubjectKind)
	if err := c.rdb.SAdd(ctx, subjectKey, d.ID).Err(); err != nil {
		return fmt.Errorf("failed to index deliverable by subject kind: %w", err)
	}

	return nil
}

// GetDeliverable retrieves a deliverable by ID.
func (c *Client) GetDeliverable(ctx context.Context, deliverableID string) (*Deliverable, error) {
	key := DeliverableKey(c.instanceName, deliverableID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read deliverable from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, fmt.Errorf("deliverable %s: %w", deliverableID, ErrNotFound)
	}

	return HashToDeliverable(hashData)
}

// ListDeliverablesBySubjectKind lists deliverables bound to
// (organization, subject kind), in index order.
func (c *Client) ListDeliverablesBySubjectKind(ctx context.Context, orgID, subjectKind string) ([]*Deliverable, error) {
	subjectKey := DeliverablesBySubjectKey(c.instanceName, orgID, subjectKind)

	ids, err := c.rdb.SMembers(ctx, subjectKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list deliverables for subject kind: %w", err)
	}

	deliverables := make([]*Deliverable, 0, len(ids))
	for _, id := range ids {
		d, err := c.GetDeliverable(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		deliverables = append(deliverables, d)
	}

	return deliverables, nil
}

// SetDeliverableStatus pauses or resumes a deliverable. Paused deliverables
// are skipped by readiness evaluation.
func (c *Client) SetDeliverableStatus(ctx context.Context, deliverableID string, status DeliverableStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}

	d, err := c.GetDeliverable(ctx, deliverableID)
	if err != nil {
		return err
	}

	d.Status = status
	d.UpdatedAtMs = time.Now().UnixMilli()

	hash, err := DeliverableToHash(d)
	if err != nil {
		return fmt.Errorf("failed to serialize deliverable: %w", err)
	}

	key := DeliverableKey(c.instanceName, d.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to update deliverable in Redis: %w", err)
	}

	return nil
}

// CreateEvaluation writes a new evaluation, guarded so at most one open
// (non-terminal) evaluation exists per (deliverable, subject).
//
// The open-evaluation guard is claimed with SETNX holding the evaluation's
// ID. If the guard is already held (a concurrent trigger, or an earlier
// readiness event whose evaluation has not finished) the existing open
// evaluation's ID is returned with created=false and nothing is written.
//
// On success the evaluation is indexed by (deliverable, subject), added to
// the due-time ZSET, and announced on the evaluation events channel.
func (c *Client) CreateEvaluation(ctx context.Context, e *Evaluation) (evaluationID string, created bool, err error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Status == "" {
		e.Status = EvaluationStatusPending
	}
	if e.CreatedAtMs == 0 {
		e.CreatedAtMs = time.Now().UnixMilli()
	}

	if err := e.Validate(); err != nil {
		return "", false, fmt.Errorf("invalid evaluation: %w", err)
	}

	guardKey := OpenEvaluationKey(c.instanceName, e.DeliverableID, e.Context.SubjectID)
	claimed, err := c.rdb.SetNX(ctx, guardKey, e.ID, 0).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to claim open-evaluation guard: %w", err)
	}

	if !claimed {
		existingID, err := c.rdb.Get(ctx, guardKey).Result()
		if err != nil {
			return "", false, fmt.Errorf("failed to read open-evaluation guard: %w", err)
		}
		return existingID, false, nil
	}

	hash, err := EvaluationToHash(e)
	if err != nil {
		return "", false, fmt.Errorf("failed to serialize evaluation: %w", err)
	}

	key := EvaluationKey(c.instanceName, e.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return "", false, fmt.Errorf("failed to write evaluation to Redis: %w", err)
	}

	targetKey := EvaluationsByTargetKey(c.instanceName, e.DeliverableID, e.Context.SubjectID)
	if err := c.rdb.SAdd(ctx, targetKey, e.ID).Err(); err != nil {
		return "", false, fmt.Errorf("failed to index evaluation by target: %w", err)
	}

	dueKey := DueEvaluationsKey(c.instanceName)
	z := redis.Z{Score: float64(e.ScheduledForMs), Member: e.ID}
	if err := c.rdb.ZAdd(ctx, dueKey, z).Err(); err != nil {
		return "", false, fmt.Errorf("failed to add evaluation to due index: %w", err)
	}

	evalJSON, err := json.Marshal(e)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal evaluation for event: %w", err)
	}
	channel := EvaluationEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, evalJSON).Err(); err != nil {
		return "", false, fmt.Errorf("failed to publish evaluation event: %w", err)
	}

	return e.ID, true, nil
}

// GetEvaluation retrieves an evaluation by ID.
func (c *Client) GetEvaluation(ctx context.Context, evaluationID string) (*Evaluation, error) {
	key := EvaluationKey(c.instanceName, evaluationID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read evaluation from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, fmt.Errorf("evaluation %s: %w", evaluationID, ErrNotFound)
	}

	return HashToEvaluation(hashData)
}

// ListEvaluationsByTarget lists evaluations for a (deliverable, subject)
// pair.
func (c *Client) ListEvaluationsByTarget(ctx context.Context, deliverableID, subjectID string) ([]*Evaluation, error) {
	targetKey := EvaluationsByTargetKey(c.instanceName, deliverableID, subjectID)

	ids, err := c.rdb.SMembers(ctx, targetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations for target: %w", err)
	}

	evaluations := make([]*Evaluation, 0, len(ids))
	for _, id := range ids {
		e, err := c.GetEvaluation(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		evaluations = append(evaluations, e)
	}

	return evaluations, nil
}

// DueEvaluations returns up to limit pending evaluations whose scheduled
// time is at or before now, ordered by due time. Evaluations that have
// left the pending state but not yet been removed from the due index are
// filtered out.
func (c *Client) DueEvaluations(ctx context.Context, now time.Time, limit int64) ([]*Evaluation, error) {
	dueKey := DueEvaluationsKey(c.instanceName)

	ids, err := c.rdb.ZRangeByScore(ctx, dueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query due evaluations: %w", err)
	}

	due := make([]*Evaluation, 0, len(ids))
	for _, id := range ids {
		e, err := c.GetEvaluation(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				// dangling index entry; drop it
				c.rdb.ZRem(ctx, dueKey, id)
				continue
			}
			return nil, err
		}
		if e.Status != EvaluationStatusPending {
			c.rdb.ZRem(ctx, dueKey, id)
			continue
		}
		due = append(due, e)
	}

	return due, nil
}

// HasCompletedEvaluation reports whether the subject has at least one
// completed evaluation for the deliverable. This is the prerequisite check
// used by readiness evaluation, served by the completed-deliverables index.
func (c *Client) HasCompletedEvaluation(ctx context.Context, deliverableID, subjectID string) (bool, error) {
	key := CompletedDeliverablesKey(c.instanceName, subjectID)
	ok, err := c.rdb.SIsMember(ctx, key, deliverableID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check completed deliverables: %w", err)
	}
	return ok, nil
}

// TransitionEvaluation applies mutate to the evaluation under an optimistic
// WATCH transaction and persists the result. mutate returning an error
// aborts the transition (use ErrInvalidState for illegal transitions). The
// transaction retries on concurrent modification.
//
// After a committed terminal transition the open-evaluation guard and the
// due index entry are cleared; a successful completion also records the
// deliverable in the subject's completed set.
func (c *Client) TransitionEvaluation(ctx context.Context, evaluationID string, mutate func(*Evaluation) error) (*Evaluation, error) {
	key := EvaluationKey(c.instanceName, evaluationID)

	var result *Evaluation

	txn := func(tx *redis.Tx) error {
		hashData, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to read evaluation from Redis: %w", err)
		}
		if len(hashData) == 0 {
			return fmt.Errorf("evaluation %s: %w", evaluationID, ErrNotFound)
		}

		e, err := HashToEvaluation(hashData)
		if err != nil {
			return err
		}

		if err := mutate(e); err != nil {
			return err
		}

		hash, err := EvaluationToHash(e)
		if err != nil {
			return fmt.Errorf("failed to serialize evaluation: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hash)
			return nil
		})
		if err != nil {
			return err
		}

		result = e
		return nil
	}

	// Bounded retries on WATCH conflicts
	for attempt := 0; attempt < 5; attempt++ {
		err := c.rdb.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}
	if result == nil {
		return nil, fmt.Errorf("evaluation %s: transition retries exhausted", evaluationID)
	}

	if result.Status.Terminal() {
		guardKey := OpenEvaluationKey(c.instanceName, result.DeliverableID, result.Context.SubjectID)
		if err := c.rdb.Del(ctx, guardKey).Err(); err != nil {
			return nil, fmt.Errorf("failed to clear open-evaluation guard: %w", err)
		}
		dueKey := DueEvaluationsKey(c.instanceName)
		if err := c.rdb.ZRem(ctx, dueKey, result.ID).Err(); err != nil {
			return nil, fmt.Errorf("failed to clear due index entry: %w", err)
		}
		if result.Status == EvaluationStatusCompleted {
			doneKey := CompletedDeliverablesKey(c.instanceName, result.Context.SubjectID)
			if err := c.rdb.SAdd(ctx, doneKey, result.DeliverableID).Err(); err != nil {
				return nil, fmt.Errorf("failed to record completed deliverable: %w", err)
			}
		}
	}

	return result, nil
}

// GetSubjectDocument reads a host-owned subject document. Host tables store
// JSON documents of the shape {id, attributes:[{slug,value}], <fields>}.
// Returns ErrNotFound if the document does not exist.
func (c *Client) GetSubjectDocument(ctx context.Context, table, subjectID string) (*SubjectDocument, error) {
	key := SubjectDocumentKey(table, subjectID)

	raw, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("subject %s/%s: %w", table, subjectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subject document: %w", err)
	}

	var full map[string]any
	if err := json.Unmarshal([]byte(raw), &full); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subject document: %w", err)
	}

	doc := &SubjectDocument{Fields: map[string]any{}}
	for field, value := range full {
		switch field {
		case "id":
			if s, ok := value.(string); ok {
				doc.ID = s
			}
		case "attributes":
			encoded, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("failed to re-encode attributes: %w", err)
			}
			if err := json.Unmarshal(encoded, &doc.Attributes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
			}
		default:
			doc.Fields[field] = value
		}
	}
	if doc.ID == "" {
		doc.ID = subjectID
	}

	return doc, nil
}

// PutSubjectDocument writes a host subject document. Host tables are
// normally owned by the application; this writer exists for seeding and
// tests.
func (c *Client) PutSubjectDocument(ctx context.Context, table string, doc map[string]any) error {
	id, ok := doc["id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("subject document requires a string id")
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal subject document: %w", err)
	}

	key := SubjectDocumentKey(table, id)
	if err := c.rdb.Set(ctx, key, encoded, 0).Err(); err != nil {
		return fmt.Errorf("failed to write subject document: %w", err)
	}

	return nil
}

// PublishSubjectEvent announces a subject mutation on the subject events
// channel. The engine evaluates deliverable readiness on receipt.
func (c *Client) PublishSubjectEvent(ctx context.Context, event *SubjectEvent) error {
	if event.OrganizationID == "" || event.SubjectKind == "" || event.SubjectID == "" {
		return fmt.Errorf("subject event requires organization_id, subject_kind, and subject_id")
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal subject event: %w", err)
	}

	channel := SubjectEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish subject event: %w", err)
	}

	return nil
}

// SubjectSubscription represents an active Pub/Sub subscription to subject
// mutation events. Caller must call Close() when done.
type SubjectSubscription struct {
	events <-chan *SubjectEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of subject events. The channel is closed when
// the subscription is closed or the context is cancelled.
func (s *SubjectSubscription) Events() <-chan *SubjectEvent {
	return s.events
}

// Errors returns the channel of subscription errors. Errors are non-fatal;
// the subscription continues and the offending message is skipped.
func (s *SubjectSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements
// io.Closer. Safe to call multiple times.
func (s *SubjectSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// EvaluationSubscription represents an active Pub/Sub subscription to
// evaluation creation events.
type EvaluationSubscription struct {
	events <-chan *Evaluation
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of evaluation events.
func (s *EvaluationSubscription) Events() <-chan *Evaluation {
	return s.events
}

// Errors returns the channel of subscription errors.
func (s *EvaluationSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
func (s *EvaluationSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeSubjectEvents subscribes to subject mutation events for this
// instance. Caller must call subscription.Close() when done; context
// cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once: a slow subscriber may miss events.
func (c *Client) SubscribeSubjectEvents(ctx context.Context) (*SubjectSubscription, error) {
	channel := SubjectEventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *SubjectEvent, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event SubjectEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal subject event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &SubjectSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// SubscribeEvaluationEvents subscribes to evaluation creation events for
// this instance. Caller must call subscription.Close() when done.
func (c *Client) SubscribeEvaluationEvents(ctx context.Context) (*EvaluationSubscription, error) {
	channel := EvaluationEventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *Evaluation, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var evaluation Evaluation
				if err := json.Unmarshal([]byte(msg.Payload), &evaluation); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal evaluation event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &evaluation:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &EvaluationSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
