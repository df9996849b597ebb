// Package ledger provides type-safe Go definitions and Redis schema patterns
// for the Warren ledger. The ledger is the shared document store where all
// Warren components (engine, worker, CLI, host application) interact via
// well-defined entities stored in Redis.
//
// All Redis keys and channels are namespaced by instance name to enable
// multiple Warren instances to safely coexist on a single Redis server.
package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// Card is a typed, named field definition scoped to an organization and a
// subject kind. Cards are referenced by Procedures (for collection and
// validation) and by Deliverables (as dependency keys).
type Card struct {
	ID             string      `json:"id"`              // UUID - unique identifier for this card
	OrganizationID string      `json:"organization_id"` // Owning organization
	Slug           string      `json:"slug"`            // Machine name, unique per organization
	Label          string      `json:"label"`           // Human-readable name
	Variant        CardVariant `json:"variant"`         // Value type; immutable once the slug exists
	Security       string      `json:"security"`        // Sensitivity classification (e.g. "pii", "public")
	SubjectKind    string      `json:"subject_kind"`    // Subject kind this card attaches to
	CreatedBy      string      `json:"created_by"`      // Actor that created the card
	CreatedAtMs    int64       `json:"created_at_ms"`   // Unix timestamp in milliseconds
}

// CardVariant defines the value type a card accepts. The variant determines
// how submitted values are shape-checked at the collection boundary.
type CardVariant string

const (
	VariantString  CardVariant = "STRING"
	VariantText    CardVariant = "TEXT"
	VariantNumber  CardVariant = "NUMBER"
	VariantBoolean CardVariant = "BOOLEAN"
	VariantDate    CardVariant = "DATE"
	VariantEmail   CardVariant = "EMAIL"
	VariantURL     CardVariant = "URL"
	VariantArray   CardVariant = "ARRAY"
	VariantAddress CardVariant = "ADDRESS"
)

// Procedure is a named bundle of card references used to collect and
// validate submitted values. Procedures never store values themselves; the
// caller persists accepted values into host storage.
type Procedure struct {
	ID             string    `json:"id"`              // UUID
	OrganizationID string    `json:"organization_id"` // Owning organization
	Name           string    `json:"name"`            // Human-readable name
	Source         string    `json:"source"`          // Where submissions originate (e.g. "intake-form")
	Subject        string    `json:"subject"`         // Optional subject kind the values are intended for
	CardRefs       []CardRef `json:"card_refs"`       // Ordered card references
	CreatedAtMs    int64     `json:"created_at_ms"`
	UpdatedAtMs    int64     `json:"updated_at_ms"`
}

// CardRef binds a card into a procedure.
type CardRef struct {
	CardID   string `json:"card_id"`  // UUID of an existing card
	Required bool   `json:"required"` // Whether a value must be supplied on submission
	WriteTo  string `json:"write_to"` // Host field the accepted value should be written to
}

// Deliverable is a declared automation with required fields, required prior
// deliverables, and optional scheduling conditions. Only active deliverables
// participate in readiness evaluation.
type Deliverable struct {
	ID                     string            `json:"id"`               // UUID
	OrganizationID         string            `json:"organization_id"`  // Owning organization
	Name                   string            `json:"name"`             // Human-readable name
	SubjectKind            string            `json:"subject_kind"`     // Subject kind this deliverable watches
	Handler                string            `json:"handler"`          // Registered handler invoked by the worker
	RequiredCardSlugs      []string          `json:"required_card_slugs"`
	RequiredDeliverableIDs []string          `json:"required_deliverable_ids"`
	Schedule               *Schedule         `json:"schedule,omitempty"`
	Status                 DeliverableStatus `json:"status"`
	CreatedAtMs            int64             `json:"created_at_ms"`
	UpdatedAtMs            int64             `json:"updated_at_ms"`
}

// Schedule declares timing conditions narrowing when a ready deliverable's
// evaluation becomes due. Times are "HH:MM" in the engine's local zone;
// weekdays use 0-6 with Sunday=0.
type Schedule struct {
	TimeOfDayAfter  string `json:"time_of_day_after,omitempty"`
	TimeOfDayBefore string `json:"time_of_day_before,omitempty"`
	DaysOfWeek      []int  `json:"days_of_week,omitempty"`
}

// DeliverableStatus defines whether a deliverable participates in
// evaluation.
type DeliverableStatus string

const (
	DeliverableStatusActive DeliverableStatus = "active"
	DeliverableStatusPaused DeliverableStatus = "paused"
)

// Evaluation is a tracked instance of a deliverable becoming ready for a
// specific subject. Evaluations are created exclusively by the readiness
// evaluator and mutated only through lifecycle operations.
type Evaluation struct {
	ID             string            `json:"id"`              // UUID
	DeliverableID  string            `json:"deliverable_id"`  // UUID of the deliverable that became ready
	OrganizationID string            `json:"organization_id"` // Owning organization
	Context        EvaluationContext `json:"context"`         // Subject and trigger details
	Variables      map[string]any    `json:"variables"`       // Variable map at readiness time
	Status         EvaluationStatus  `json:"status"`
	ScheduledForMs int64             `json:"scheduled_for_ms"` // Due time (advisory, consumed by the worker)
	StartedAtMs    int64             `json:"started_at_ms,omitempty"`
	Result         *EvaluationResult `json:"result,omitempty"`
	CreatedAtMs    int64             `json:"created_at_ms"`
	CompletedAtMs  int64             `json:"completed_at_ms,omitempty"`
}

// EvaluationContext records the subject and trigger that produced an
// evaluation.
type EvaluationContext struct {
	SubjectKind   string   `json:"subject_kind"`
	SubjectID     string   `json:"subject_id"`
	MutatedFields []string `json:"mutated_fields,omitempty"` // Field slugs whose change triggered evaluation
}

// EvaluationResult is the worker's report on an executed evaluation.
type EvaluationResult struct {
	Success    bool   `json:"success"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// EvaluationStatus defines the lifecycle state of an evaluation.
// Transitions: pending → running → {completed, failed}, plus
// pending → failed via cancellation. Completed and failed are terminal.
type EvaluationStatus string

const (
	EvaluationStatusPending   EvaluationStatus = "pending"
	EvaluationStatusRunning   EvaluationStatus = "running"
	EvaluationStatusCompleted EvaluationStatus = "completed"
	EvaluationStatusFailed    EvaluationStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (es EvaluationStatus) Terminal() bool {
	return es == EvaluationStatusCompleted || es == EvaluationStatusFailed
}

// SubjectEvent announces a host-entity mutation to the engine. The engine
// evaluates deliverable readiness for the subject on receipt.
type SubjectEvent struct {
	OrganizationID string         `json:"organization_id"`
	SubjectKind    string         `json:"subject_kind"`
	SubjectID      string         `json:"subject_id"`
	MutatedFields  []string       `json:"mutated_fields,omitempty"`
	Variables      map[string]any `json:"variables,omitempty"` // Explicit variables override aggregation
}

// SubjectDocument is the raw host-owned representation of a subject,
// as exposed by host tables. Attributes carry the subject's field values;
// Fields carries everything else in the document, including parent-id
// fields named by the subject bindings.
type SubjectDocument struct {
	ID         string             `json:"id"`
	Attributes []SubjectAttribute `json:"attributes"`
	Fields     map[string]any     `json:"-"` // Remaining top-level document fields
}

// SubjectAttribute is one slug/value pair of a subject document.
type SubjectAttribute struct {
	Slug  string `json:"slug"`
	Value any    `json:"value"`
}

// Validate checks if the Card has valid field values.
// Returns an error if any validation fails.
func (c *Card) Validate() error {
	if !isValidUUID(c.ID) {
		return fmt.Errorf("invalid card ID: not a valid UUID")
	}
	if c.OrganizationID == "" {
		return fmt.Errorf("organization_id cannot be empty")
	}
	if c.Slug == "" {
		return fmt.Errorf("slug cannot be empty")
	}
	if err := c.Variant.Validate(); err != nil {
		return fmt.Errorf("invalid variant: %w", err)
	}
	return nil
}

// Validate checks if the CardVariant is a valid enum value.
func (cv CardVariant) Validate() error {
	switch cv {
	case VariantString, VariantText, VariantNumber, VariantBoolean,
		VariantDate, VariantEmail, VariantURL, VariantArray, VariantAddress:
		return nil
	default:
		return fmt.Errorf("unknown card variant: %q", cv)
	}
}

// Validate checks if the Procedure has valid field values.
// Card reference resolution is the store's concern, not validated here.
func (p *Procedure) Validate() error {
	if !isValidUUID(p.ID) {
		return fmt.Errorf("invalid procedure ID: not a valid UUID")
	}
	if p.OrganizationID == "" {
		return fmt.Errorf("organization_id cannot be empty")
	}
	if p.Name == "" {
		return fmt.Errorf("procedure name cannot be empty")
	}
	for i, ref := range p.CardRefs {
		if !isValidUUID(ref.CardID) {
			return fmt.Errorf("invalid card_id at ref index %d: not a valid UUID", i)
		}
	}
	return nil
}

// Validate checks if the Deliverable has valid field values.
func (d *Deliverable) Validate() error {
	if !isValidUUID(d.ID) {
		return fmt.Errorf("invalid deliverable ID: not a valid UUID")
	}
	if d.OrganizationID == "" {
		return fmt.Errorf("organization_id cannot be empty")
	}
	if d.Name == "" {
		return fmt.Errorf("deliverable name cannot be empty")
	}
	if d.SubjectKind == "" {
		return fmt.Errorf("subject_kind cannot be empty")
	}
	if err := d.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}
	for i, depID := range d.RequiredDeliverableIDs {
		if !isValidUUID(depID) {
			return fmt.Errorf("invalid required deliverable at index %d: not a valid UUID", i)
		}
	}
	if d.Schedule != nil {
		if err := d.Schedule.Validate(); err != nil {
			return fmt.Errorf("invalid schedule: %w", err)
		}
	}
	return nil
}

// Validate checks the schedule's declarative conditions.
func (s *Schedule) Validate() error {
	for _, day := range s.DaysOfWeek {
		if day < 0 || day > 6 {
			return fmt.Errorf("day of week out of range: %d (want 0-6, Sunday=0)", day)
		}
	}
	return nil
}

// Validate checks if the DeliverableStatus is a valid enum value.
func (ds DeliverableStatus) Validate() error {
	switch ds {
	case DeliverableStatusActive, DeliverableStatusPaused:
		return nil
	default:
		return fmt.Errorf("unknown deliverable status: %q", ds)
	}
}

// Validate checks if the Evaluation has valid field values.
func (e *Evaluation) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid evaluation ID: not a valid UUID")
	}
	if !isValidUUID(e.DeliverableID) {
		return fmt.Errorf("invalid deliverable ID: not a valid UUID")
	}
	if e.OrganizationID == "" {
		return fmt.Errorf("organization_id cannot be empty")
	}
	if e.Context.SubjectKind == "" || e.Context.SubjectID == "" {
		return fmt.Errorf("evaluation context requires subject_kind and subject_id")
	}
	if err := e.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}
	if e.CompletedAtMs != 0 && !e.Status.Terminal() {
		return fmt.Errorf("completed_at set on non-terminal status %q", e.Status)
	}
	return nil
}

// Validate checks if the EvaluationStatus is a valid enum value.
func (es EvaluationStatus) Validate() error {
	switch es {
	case EvaluationStatusPending, EvaluationStatusRunning,
		EvaluationStatusCompleted, EvaluationStatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown evaluation status: %q", es)
	}
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
