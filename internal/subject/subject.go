// Package subject resolves host-owned subject documents into flat variable
// maps and aggregates them across configured parent subjects.
package subject

import (
	"context"
	"fmt"

	"github.com/mhollis/warren/internal/config"
	"github.com/mhollis/warren/pkg/ledger"
)

// Resolver fetches a subject document for a (kind, id). Implementations
// return ledger.ErrNotFound (wrapped) when the kind is unbound or the
// document does not exist.
type Resolver interface {
	Resolve(ctx context.Context, kind, id string) (*ledger.SubjectDocument, error)
}

// LedgerResolver resolves subject documents from host tables in the ledger,
// using the configured subject bindings to map kinds to tables.
type LedgerResolver struct {
	client   *ledger.Client
	bindings map[string]config.SubjectBinding
}

// NewLedgerResolver creates a resolver over the given ledger client and
// subject bindings.
func NewLedgerResolver(client *ledger.Client, bindings map[string]config.SubjectBinding) *LedgerResolver {
	return &LedgerResolver{client: client, bindings: bindings}
}

// Resolve fetches the raw document for (kind, id). An unbound kind is an
// error here; the Aggregator treats it as an empty branch.
func (r *LedgerResolver) Resolve(ctx context.Context, kind, id string) (*ledger.SubjectDocument, error) {
	binding, ok := r.bindings[kind]
	if !ok {
		return nil, fmt.Errorf("subject kind %q is not bound: %w", kind, ledger.ErrNotFound)
	}
	return r.client.GetSubjectDocument(ctx, binding.Table, id)
}

// Aggregator merges a subject's own variables with those of its transitive
// parent subjects. Parent edges come from the subject bindings and are
// processed in declared order.
type Aggregator struct {
	resolver Resolver
	bindings map[string]config.SubjectBinding
}

// NewAggregator creates an aggregator using the given resolver and subject
// bindings.
func NewAggregator(resolver Resolver, bindings map[string]config.SubjectBinding) *Aggregator {
	return &Aggregator{resolver: resolver, bindings: bindings}
}

// Bound reports whether the kind has a subject binding. The evaluator only
// auto-resolves variables for bound kinds.
func (a *Aggregator) Bound(kind string) bool {
	_, ok := a.bindings[kind]
	return ok
}

// Resolve returns the subject's own variables: the document's attribute
// pairs flattened into a map. An unbound kind or missing document yields an
// empty map, not an error, so partial ancestor failures never abort
// aggregation.
func (a *Aggregator) Resolve(ctx context.Context, kind, id string) (map[string]any, error) {
	doc, err := a.resolver.Resolve(ctx, kind, id)
	if err != nil {
		if ledger.IsNotFound(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	return variablesFrom(doc), nil
}

// Aggregation is the merged view of a subject and its ancestors.
type Aggregation struct {
	// Variables is the merged variable map. Precedence, lowest to highest:
	// root ancestors, later-declared parents, the subject itself.
	Variables map[string]any

	// Subjects maps subject kind to the raw document of every subject
	// visited, for traceability.
	Subjects map[string]*ledger.SubjectDocument
}

// Aggregate recursively merges the subject's variables with its configured
// parents'. A visited set keyed by kind:id is threaded through the call
// tree, so parent cycles terminate: each (kind, id) expands at most once.
func (a *Aggregator) Aggregate(ctx context.Context, kind, id string) (*Aggregation, error) {
	return a.aggregate(ctx, kind, id, map[string]bool{})
}

func (a *Aggregator) aggregate(ctx context.Context, kind, id string, visited map[string]bool) (*Aggregation, error) {
	result := &Aggregation{
		Variables: map[string]any{},
		Subjects:  map[string]*ledger.SubjectDocument{},
	}

	key := kind + ":" + id
	if visited[key] {
		return result, nil
	}
	visited[key] = true

	doc, err := a.resolver.Resolve(ctx, kind, id)
	if err != nil {
		if ledger.IsNotFound(err) {
			return result, nil
		}
		return nil, err
	}
	result.Subjects[kind] = doc

	// Parents first, in declared order, later parents overwriting earlier
	// ones. The subject's own variables are overlaid last: self always wins
	// over any ancestor.
	binding := a.bindings[kind]
	for _, edge := range binding.Parents {
		parentID, ok := stringField(doc, edge.Field)
		if !ok || parentID == "" {
			continue
		}

		parent, err := a.aggregate(ctx, edge.Kind, parentID, visited)
		if err != nil {
			return nil, err
		}

		for slug, value := range parent.Variables {
			result.Variables[slug] = value
		}
		for parentKind, parentDoc := range parent.Subjects {
			result.Subjects[parentKind] = parentDoc
		}
	}

	for slug, value := range variablesFrom(doc) {
		result.Variables[slug] = value
	}

	return result, nil
}

// variablesFrom flattens a document's attribute pairs into a variable map.
func variablesFrom(doc *ledger.SubjectDocument) map[string]any {
	variables := make(map[string]any, len(doc.Attributes))
	for _, attr := range doc.Attributes {
		if attr.Slug == "" {
			continue
		}
		variables[attr.Slug] = attr.Value
	}
	return variables
}

// stringField reads a top-level document field as a string.
func stringField(doc *ledger.SubjectDocument, field string) (string, bool) {
	value, ok := doc.Fields[field]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}
