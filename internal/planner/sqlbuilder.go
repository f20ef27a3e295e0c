package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/askql-io/askql"
)

// BuildSQL turns a validated plan into a fully quoted, parameter-free
// SELECT statement. It is a pure function: the same plan always yields
// byte-identical SQL. The plan must have passed the Validator; every
// identifier interpolated here has already cleared schema membership,
// which is the primary injection defense.
//
// physicalOverride, when non-empty, takes precedence over the registry
// lookup for the FROM table.
func BuildSQL(plan *askql.StructuredPlan, physicalOverride string, registry askql.SchemaRegistry) (string, error) {
	table := physicalOverride
	if table == "" {
		resolved, err := registry.Resolve(plan.Table())
		if err != nil {
			return "", err
		}
		table = resolved
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(buildProjection(plan))
	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(table))

	if len(plan.Filters) > 0 {
		sb.WriteString(" WHERE ")
		parts := make([]string, 0, len(plan.Filters))
		for _, f := range plan.Filters {
			parts = append(parts, fmt.Sprintf("%s %s %s", quoteIdent(f.Column), f.Operator, renderValue(f.Value)))
		}
		sb.WriteString(strings.Join(parts, " AND "))
	}

	if len(plan.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(joinIdents(plan.GroupBy))
	}

	if len(plan.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(joinIdents(plan.OrderBy))
	}

	if plan.Limit != nil && *plan.Limit >= 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(*plan.Limit))
	}

	return sb.String(), nil
}

// BuildExplainSQL wraps the generated query in EXPLAIN (FORMAT JSON) for
// diagnostics.
func BuildExplainSQL(plan *askql.StructuredPlan, physicalOverride string, registry askql.SchemaRegistry) (string, error) {
	query, err := BuildSQL(plan, physicalOverride, registry)
	if err != nil {
		return "", err
	}
	return "EXPLAIN (FORMAT JSON) " + query, nil
}

// buildProjection renders the SELECT list. Aggregates take precedence over
// explicit columns, which take precedence over *.
func buildProjection(plan *askql.StructuredPlan) string {
	if len(plan.Metrics) > 0 {
		parts := make([]string, 0, len(plan.Metrics)+len(plan.GroupBy))
		for _, col := range plan.GroupBy {
			parts = append(parts, quoteIdent(col))
		}
		for _, m := range plan.Metrics {
			parts = append(parts, renderMetric(m))
		}
		return strings.Join(parts, ", ")
	}
	if len(plan.Columns) > 0 {
		return joinIdents(plan.Columns)
	}
	return "*"
}

func renderMetric(m askql.PlanMetric) string {
	if m.Aggregation == askql.AggCount && (m.Column == "" || m.Column == askql.Wildcard) {
		return "COUNT(*)"
	}
	return fmt.Sprintf("%s(%s)", m.Aggregation, quoteIdent(m.Column))
}

// quoteIdent wraps an identifier in double quotes, doubling any embedded
// quote characters.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func joinIdents(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, quoteIdent(n))
	}
	return strings.Join(quoted, ", ")
}

// renderValue renders a filter value as a numeric literal or a
// single-quoted, quote-doubled string literal.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		// JSON numbers decode as float64; render whole values without a
		// fractional part so "42" does not become "42.000000".
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return quoteLiteral(val)
	default:
		return quoteLiteral(fmt.Sprintf("%v", val))
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
