package ledger

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to
// enable multiple Warren instances to safely coexist on a single Redis
// server.
//
// Key pattern: warren:{instance_name}:{entity}:{id}
// Channel pattern: warren:{instance_name}:{event_type}_events

// CardKey returns the Redis key for a card.
// Pattern: warren:{instance_name}:card:{card_id}
func CardKey(instanceName, cardID string) string {
	return fmt.Sprintf("warren:%s:card:%s", instanceName, cardID)
}

// CardBySlugKey returns the Redis key for the (organization, slug) -> card
// index. This enables the idempotent-create lookup for cards.
// Pattern: warren:{instance_name}:card_by_slug:{org_id}:{slug}
func CardBySlugKey(instanceName, orgID, slug string) string {
	return fmt.Sprintf("warren:%s:card_by_slug:%s:%s", instanceName, orgID, slug)
}

// CardsByOrgKey returns the Redis key for the per-organization card index
// (a SET of card IDs).
// Pattern: warren:{instance_name}:cards_by_org:{org_id}
func CardsByOrgKey(instanceName, orgID string) string {
	return fmt.Sprintf("warren:%s:cards_by_org:%s", instanceName, orgID)
}

// ProcedureKey returns the Redis key for a procedure.
// Pattern: warren:{instance_name}:procedure:{procedure_id}
func ProcedureKey(instanceName, procedureID string) string {
	return fmt.Sprintf("warren:%s:procedure:%s", instanceName, procedureID)
}

// ProceduresByOrgKey returns the Redis key for the per-organization
// procedure index (a SET of procedure IDs).
// Pattern: warren:{instance_name}:procedures_by_org:{org_id}
func ProceduresByOrgKey(instanceName, orgID string) string {
	return fmt.Sprintf("warren:%s:procedures_by_org:%s", instanceName, orgID)
}

// DeliverableKey returns the Redis key for a deliverable.
// Pattern: warren:{instance_name}:deliverable:{deliverable_id}
func DeliverableKey(instanceName, deliverableID string) string {
	return fmt.Sprintf("warren:%s:deliverable:%s", instanceName, deliverableID)
}

// DeliverablesBySubjectKey returns the Redis key for the
// (organization, subject kind) -> deliverables index (a SET of IDs).
// Pattern: warren:{instance_name}:deliverables_by_subject:{org_id}:{kind}
func DeliverablesBySubjectKey(instanceName, orgID, subjectKind string) string {
	return fmt.Sprintf("warren:%s:deliverables_by_subject:%s:%s", instanceName, orgID, subjectKind)
}

// EvaluationKey returns the Redis key for an evaluation.
// Pattern: warren:{instance_name}:evaluation:{evaluation_id}
func EvaluationKey(instanceName, evaluationID string) string {
	return fmt.Sprintf("warren:%s:evaluation:%s", instanceName, evaluationID)
}

// EvaluationsByTargetKey returns the Redis key for the
// (deliverable, subject) -> evaluations index (a SET of evaluation IDs).
// Pattern: warren:{instance_name}:evaluations_by_target:{deliverable_id}:{subject_id}
func EvaluationsByTargetKey(instanceName, deliverableID, subjectID string) string {
	return fmt.Sprintf("warren:%s:evaluations_by_target:%s:%s", instanceName, deliverableID, subjectID)
}

// OpenEvaluationKey returns the Redis key guarding the single open
// (non-terminal) evaluation per (deliverable, subject). The key holds the
// open evaluation's ID and is claimed with SETNX so concurrent readiness
// triggers cannot create duplicates. Cleared on completion or cancellation.
// Pattern: warren:{instance_name}:evaluation_open:{deliverable_id}:{subject_id}
func OpenEvaluationKey(instanceName, deliverableID, subjectID string) string {
	return fmt.Sprintf("warren:%s:evaluation_open:%s:%s", instanceName, deliverableID, subjectID)
}

// DueEvaluationsKey returns the Redis key for the due-time ZSET. Members
// are pending evaluation IDs scored by scheduled_for_ms; the worker polls
// this index for evaluations whose due time has passed.
// Pattern: warren:{instance_name}:evaluations_due
func DueEvaluationsKey(instanceName string) string {
	return fmt.Sprintf("warren:%s:evaluations_due", instanceName)
}

// CompletedDeliverablesKey returns the Redis key for the per-subject SET of
// deliverable IDs that have at least one completed evaluation. Prerequisite
// deliverable checks are a single SISMEMBER against this index.
// Pattern: warren:{instance_name}:completed_deliverables:{subject_id}
func CompletedDeliverablesKey(instanceName, subjectID string) string {
	return fmt.Sprintf("warren:%s:completed_deliverables:%s", instanceName, subjectID)
}

// SubjectDocumentKey returns the Redis key for a host-owned subject
// document. Host tables are plain JSON documents keyed by table name and
// entity ID; they are read (never written) by this module.
// Pattern: {table}:{subject_id} (host tables are not instance-namespaced).
func SubjectDocumentKey(table, subjectID string) string {
	return fmt.Sprintf("%s:%s", table, subjectID)
}

// SubjectEventsChannel returns the Pub/Sub channel name for subject
// mutation events. The engine subscribes here and evaluates readiness per
// event.
// Pattern: warren:{instance_name}:subject_events
func SubjectEventsChannel(instanceName string) string {
	return fmt.Sprintf("warren:%s:subject_events", instanceName)
}

// EvaluationEventsChannel returns the Pub/Sub channel name for evaluation
// events, published whenever an evaluation is created.
// Pattern: warren:{instance_name}:evaluation_events
func EvaluationEventsChannel(instanceName string) string {
	return fmt.Sprintf("warren:%s:evaluation_events", instanceName)
}
