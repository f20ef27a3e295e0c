package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askql-io/askql"
)

func TestBuildSQLSelectAll(t *testing.T) {
	reg := ordersRegistry(t)
	plan := &askql.StructuredPlan{Tables: []string{"orders"}}
	plan.EnsureDefaults()

	sql, err := BuildSQL(plan, "", reg)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "ds_1_orders"`, sql)
}

func TestBuildSQLPhysicalOverride(t *testing.T) {
	reg := ordersRegistry(t)
	plan := &askql.StructuredPlan{Tables: []string{"orders"}}
	plan.EnsureDefaults()

	sql, err := BuildSQL(plan, "session_7_orders", reg)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "session_7_orders"`, sql)
}

func TestBuildSQLUnresolvableTable(t *testing.T) {
	plan := &askql.StructuredPlan{Tables: []string{"missing"}}
	plan.EnsureDefaults()
	_, err := BuildSQL(plan, "", ordersRegistry(t))
	require.Error(t, err)
}

func TestBuildSQLColumnsAndFilters(t *testing.T) {
	reg := ordersRegistry(t)
	limit := 10
	plan := &askql.StructuredPlan{
		Tables:  []string{"orders"},
		Columns: []string{"id", "status"},
		Filters: []askql.PlanFilter{
			{Column: "amount", Operator: askql.OpGreater, Value: float64(100)},
			{Column: "status", Operator: askql.OpEquals, Value: "open"},
		},
		OrderBy: []string{"id"},
		Limit:   &limit,
	}
	plan.EnsureDefaults()

	sql, err := BuildSQL(plan, "", reg)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "id", "status" FROM "ds_1_orders" WHERE "amount" > 100 AND "status" = 'open' ORDER BY "id" LIMIT 10`,
		sql)
}

func TestBuildSQLCountStar(t *testing.T) {
	reg := ordersRegistry(t)
	plan := &askql.StructuredPlan{
		Tables:  []string{"orders"},
		Metrics: []askql.PlanMetric{{Aggregation: askql.AggCount, Column: askql.Wildcard}},
	}
	plan.EnsureDefaults()

	sql, err := BuildSQL(plan, "", reg)
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "ds_1_orders"`, sql)
}

func TestBuildSQLAggregatesWithGrouping(t *testing.T) {
	reg := ordersRegistry(t)
	plan := &askql.StructuredPlan{
		Tables:  []string{"orders"},
		Columns: []string{"status"},
		Metrics: []askql.PlanMetric{{Aggregation: askql.AggAvg, Column: "amount"}},
		GroupBy: []string{"status"},
		OrderBy: []string{"status"},
	}
	plan.EnsureDefaults()

	sql, err := BuildSQL(plan, "", reg)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "status", AVG("amount") FROM "ds_1_orders" GROUP BY "status" ORDER BY "status"`,
		sql)
}

func TestBuildSQLMetricsTakePrecedenceOverColumns(t *testing.T) {
	reg := ordersRegistry(t)
	plan := &askql.StructuredPlan{
		Tables:  []string{"orders"},
		Columns: []string{"id", "status"},
		Metrics: []askql.PlanMetric{{Aggregation: askql.AggSum, Column: "amount"}},
	}
	plan.EnsureDefaults()

	sql, err := BuildSQL(plan, "", reg)
	require.NoError(t, err)
	assert.Equal(t, `SELECT SUM("amount") FROM "ds_1_orders"`, sql)
}

func TestBuildSQLQuoting(t *testing.T) {
	reg := askql.NewMemoryRegistry()
	reg.Register("weird", `odd"table`, []string{`col"umn`, "note"}, "")
	plan := &askql.StructuredPlan{
		Tables:  []string{"weird"},
		Columns: []string{`col"umn`},
		Filters: []askql.PlanFilter{{Column: "note", Operator: askql.OpEquals, Value: "it's fine"}},
	}
	plan.EnsureDefaults()

	sql, err := BuildSQL(plan, "", reg)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "col""umn" FROM "odd""table" WHERE "note" = 'it''s fine'`, sql)
}

func TestBuildSQLValueRendering(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"int", 42, `"amount" = 42`},
		{"int64", int64(42), `"amount" = 42`},
		{"float whole", float64(42), `"amount" = 42`},
		{"float fraction", 42.5, `"amount" = 42.5`},
		{"string", "open", `"amount" = 'open'`},
		{"bool", true, `"amount" = TRUE`},
		{"nil", nil, `"amount" = NULL`},
	}

	reg := ordersRegistry(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &askql.StructuredPlan{
				Tables:  []string{"orders"},
				Filters: []askql.PlanFilter{{Column: "amount", Operator: askql.OpEquals, Value: tt.value}},
			}
			plan.EnsureDefaults()
			sql, err := BuildSQL(plan, "", reg)
			require.NoError(t, err)
			assert.Contains(t, sql, tt.want)
		})
	}
}

func TestBuildSQLDeterministic(t *testing.T) {
	reg := ordersRegistry(t)
	limit := 3
	plan := &askql.StructuredPlan{
		Tables:  []string{"orders"},
		Metrics: []askql.PlanMetric{{Aggregation: askql.AggSum, Column: "amount"}},
		Filters: []askql.PlanFilter{{Column: "status", Operator: askql.OpLike, Value: "%open%"}},
		GroupBy: []string{"status"},
		OrderBy: []string{"status"},
		Limit:   &limit,
	}
	plan.EnsureDefaults()

	first, err := BuildSQL(plan, "", reg)
	require.NoError(t, err)
	second, err := BuildSQL(plan, "", reg)
	require.NoError(t, err)
	assert.Equal(t, first, second, "builder must be deterministic")
}

func TestBuildExplainSQL(t *testing.T) {
	reg := ordersRegistry(t)
	plan := &askql.StructuredPlan{Tables: []string{"orders"}}
	plan.EnsureDefaults()

	sql, err := BuildExplainSQL(plan, "", reg)
	require.NoError(t, err)
	assert.Equal(t, `EXPLAIN (FORMAT JSON) SELECT * FROM "ds_1_orders"`, sql)
}
