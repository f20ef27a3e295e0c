package planner

import (
	"github.com/askql-io/askql"
)

// Validator is the binary gate between normalization and SQL generation.
// A plan either satisfies every invariant or validation fails with a
// specific, named error. The validator never repairs.
type Validator struct {
	registry askql.SchemaRegistry
}

// NewValidator creates a Validator backed by the given registry.
func NewValidator(registry askql.SchemaRegistry) *Validator {
	return &Validator{registry: registry}
}

// Validate checks the plan against every structural and schema invariant,
// short-circuiting on the first failure. Its only side effect is replacing
// nil array fields with empty slices.
func (v *Validator) Validate(plan *askql.StructuredPlan) error {
	if plan == nil {
		return askql.NewUnplannableError(askql.ErrCodeNoTable, "no plan was produced")
	}
	plan.EnsureDefaults()

	table := plan.Table()
	if table == "" {
		return askql.NewUnplannableError(askql.ErrCodeNoTable, "plan does not designate a table")
	}

	entry, err := v.registry.Get(table)
	if err != nil {
		return err
	}
	if len(entry.Columns) == 0 {
		return askql.NewUnplannableError(askql.ErrCodeEmptySchema, "table has no columns").WithTable(table)
	}

	for _, col := range plan.Columns {
		if col == askql.Wildcard {
			return askql.NewInvalidPlanError(askql.ErrCodeWildcardColumn,
				"wildcard is not a valid column; an empty column list selects all columns").WithTable(table)
		}
	}
	for _, col := range plan.Columns {
		if !entry.HasColumn(col) {
			return askql.NewInvalidPlanError(askql.ErrCodeUnknownColumn, "column is not part of the table schema").
				WithTable(table).WithColumn(col)
		}
	}

	for _, f := range plan.Filters {
		if f.Column == "" {
			return askql.NewInvalidPlanError(askql.ErrCodeInvalidFilter, "filter is missing a column").WithTable(table)
		}
		if !f.Operator.Valid() {
			return askql.NewInvalidPlanError(askql.ErrCodeInvalidFilter, "filter operator is not supported").
				WithTable(table).WithColumn(f.Column).WithDetail("operator", string(f.Operator))
		}
		if !entry.HasColumn(f.Column) {
			return askql.NewInvalidPlanError(askql.ErrCodeInvalidFilter, "filter column is not part of the table schema").
				WithTable(table).WithColumn(f.Column)
		}
	}

	for _, m := range plan.Metrics {
		if !m.Aggregation.Valid() {
			return askql.NewInvalidPlanError(askql.ErrCodeInvalidMetric, "aggregation function is not supported").
				WithTable(table).WithDetail("aggregation", string(m.Aggregation))
		}
		if m.Aggregation == askql.AggCount {
			// COUNT accepts the wildcard or an omitted column.
			if m.Column == "" || m.Column == askql.Wildcard || entry.HasColumn(m.Column) {
				continue
			}
			return askql.NewInvalidPlanError(askql.ErrCodeInvalidMetric, "metric column is not part of the table schema").
				WithTable(table).WithColumn(m.Column)
		}
		if m.Column == "" || m.Column == askql.Wildcard {
			return askql.NewInvalidPlanError(askql.ErrCodeInvalidMetric,
				"aggregation requires a concrete column").WithTable(table).WithDetail("aggregation", string(m.Aggregation))
		}
		if !entry.HasColumn(m.Column) {
			return askql.NewInvalidPlanError(askql.ErrCodeInvalidMetric, "metric column is not part of the table schema").
				WithTable(table).WithColumn(m.Column)
		}
	}

	if len(plan.Metrics) > 0 && len(plan.Columns) > 0 && len(plan.GroupBy) == 0 {
		return askql.NewInvalidPlanError(askql.ErrCodeGroupByRequired,
			"GROUP BY required when using metrics with columns").WithTable(table)
	}

	for _, col := range plan.GroupBy {
		if !entry.HasColumn(col) {
			return askql.NewInvalidPlanError(askql.ErrCodeInvalidGroupBy, "group-by column is not part of the table schema").
				WithTable(table).WithColumn(col)
		}
	}

	for _, col := range plan.OrderBy {
		if !v.orderable(plan, col) {
			return askql.NewInvalidPlanError(askql.ErrCodeInvalidOrderBy,
				"order-by column must appear in the grouping or be aggregated").WithTable(table).WithColumn(col)
		}
	}

	return nil
}

// orderable reports whether col is present in the grouping or matches a
// metric column.
func (v *Validator) orderable(plan *askql.StructuredPlan, col string) bool {
	for _, g := range plan.GroupBy {
		if g == col {
			return true
		}
	}
	for _, m := range plan.Metrics {
		if m.Column == col {
			return true
		}
	}
	// Plans without metrics order plain projections; membership was already
	// covered by the group-by rule only when metrics are present.
	if len(plan.Metrics) == 0 && len(plan.GroupBy) == 0 {
		entry, err := v.registry.Get(plan.Table())
		return err == nil && entry.HasColumn(col)
	}
	return false
}
