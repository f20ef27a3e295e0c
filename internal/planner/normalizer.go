package planner

import (
	"context"

	"github.com/askql-io/askql"
)

// Normalizer repairs an untrusted plan into one the Validator will accept,
// only ever by narrowing. It never fails: a plan it cannot improve is
// returned unchanged and left for the caller to reject.
type Normalizer struct {
	registry askql.SchemaRegistry
	resolver askql.ColumnResolver
}

// NewNormalizer creates a Normalizer. The column resolver is optional and
// may be nil when semantic column inference is unavailable.
func NewNormalizer(registry askql.SchemaRegistry, resolver askql.ColumnResolver) *Normalizer {
	return &Normalizer{registry: registry, resolver: resolver}
}

// Normalize mutates plan in place and returns it. Applying Normalize twice
// equals applying it once.
func (n *Normalizer) Normalize(ctx context.Context, plan *askql.StructuredPlan) *askql.StructuredPlan {
	if plan == nil {
		return nil
	}
	plan.EnsureDefaults()

	table := plan.Table()
	if table == "" {
		return plan
	}

	entry, err := n.registry.Get(table)
	if err != nil {
		// Unresolvable table: leave the plan for the validator to reject.
		return plan
	}
	plan.Tables = []string{table}

	// The wildcard token is never a valid projection; the empty list is the
	// only representation of "all columns".
	for _, col := range plan.Columns {
		if col == askql.Wildcard {
			plan.Columns = []string{}
			break
		}
	}

	// A partial valid/invalid projection mix is never preserved: it would
	// imply a false sense of completeness. Any unknown column discards the
	// whole projection.
	for _, col := range plan.Columns {
		if !entry.HasColumn(col) {
			plan.Columns = []string{}
			break
		}
	}

	filters := plan.Filters[:0]
	for _, f := range plan.Filters {
		if entry.HasColumn(f.Column) {
			filters = append(filters, f)
		}
	}
	plan.Filters = filters

	metrics := plan.Metrics[:0]
	for _, m := range plan.Metrics {
		if m.Aggregation == askql.AggCount && (m.Column == "" || m.Column == askql.Wildcard) {
			metrics = append(metrics, m)
			continue
		}
		if entry.HasColumn(m.Column) {
			metrics = append(metrics, m)
		}
	}
	plan.Metrics = metrics

	groupBy := plan.GroupBy[:0]
	for _, col := range plan.GroupBy {
		if entry.HasColumn(col) {
			groupBy = append(groupBy, col)
		}
	}
	plan.GroupBy = groupBy

	orderBy := plan.OrderBy[:0]
	for _, col := range plan.OrderBy {
		if entry.HasColumn(col) {
			orderBy = append(orderBy, col)
		}
	}
	plan.OrderBy = orderBy

	if plan.Intent != "" && len(plan.Columns) == 0 && len(plan.Metrics) == 0 && n.resolver != nil {
		if col, ok := n.resolver.ResolveColumn(ctx, string(plan.Intent), entry.Columns); ok && entry.HasColumn(col) {
			plan.Columns = []string{col}
			plan.GroupBy = []string{col}
		}
	}

	return plan
}
