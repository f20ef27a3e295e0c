package planner

import (
	"strings"

	"github.com/askql-io/askql"
)

// metricRule maps question keywords to an aggregation. Rules are checked
// in a fixed priority order; the first match wins.
type metricRule struct {
	agg      askql.Aggregation
	keywords []string
}

var metricRules = []metricRule{
	{askql.AggCount, []string{"how many", "count", "number of"}},
	{askql.AggAvg, []string{"average", "mean", "avg"}},
	{askql.AggSum, []string{"total", "sum"}},
	{askql.AggMax, []string{"maximum", "highest", "max"}},
	{askql.AggMin, []string{"minimum", "lowest", "min"}},
}

// numericFragments are name fragments that suggest a column holds numbers.
// This is a heuristic over names, not a type check; an ambiguous name like
// "total_notes" will match.
var numericFragments = []string{
	"balance", "amount", "price", "salary", "income", "age",
	"score", "count", "total", "duration", "years",
}

// ExtractMetric decides from the original question text whether an
// aggregation is intended, overriding the plan's own guess. At most one
// metric is ever produced. When one is, any prior projection, ordering,
// and row limit are cleared: aggregation and ungrouped row listing are
// mutually exclusive output shapes.
//
// Returns an error only when a non-COUNT aggregation is intended but no
// column can be resolved; the pipeline must never guess a numeric column.
func ExtractMetric(question string, plan *askql.StructuredPlan, entry *askql.TableEntry) error {
	agg, ok := matchAggregation(question)
	if !ok {
		return nil
	}

	metric := askql.PlanMetric{Aggregation: agg}
	if agg == askql.AggCount {
		metric.Column = askql.Wildcard
	} else {
		col, err := resolveMetricColumn(plan, entry, agg)
		if err != nil {
			return err
		}
		metric.Column = col
	}

	plan.Metrics = []askql.PlanMetric{metric}
	plan.Intent = askql.IntentAggregation
	plan.Columns = []string{}
	plan.OrderBy = []string{}
	plan.Limit = nil
	return nil
}

func matchAggregation(question string) (askql.Aggregation, bool) {
	q := strings.ToLower(question)
	for _, rule := range metricRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.agg, true
			}
		}
	}
	return "", false
}

// resolveMetricColumn picks the column a non-COUNT aggregation applies to:
// a single explicitly selected column wins; otherwise the first schema
// column whose name contains a numeric-sounding fragment.
func resolveMetricColumn(plan *askql.StructuredPlan, entry *askql.TableEntry, agg askql.Aggregation) (string, error) {
	if len(plan.Columns) == 1 && plan.Columns[0] != askql.Wildcard && entry.HasColumn(plan.Columns[0]) {
		return plan.Columns[0], nil
	}

	for _, col := range entry.Columns {
		name := strings.ToLower(col)
		for _, fragment := range numericFragments {
			if strings.Contains(name, fragment) {
				return col, nil
			}
		}
	}

	return "", askql.NewAggregationError(
		"could not determine which column to aggregate; please name the column in the question").
		WithTable(entry.LogicalName).WithDetail("aggregation", string(agg))
}
