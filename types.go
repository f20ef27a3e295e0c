package askql

import (
	"encoding/json"
	"strings"
)

// PlanIntent classifies the overall shape of a planned query.
type PlanIntent string

const (
	IntentSelect      PlanIntent = "select"
	IntentAggregation PlanIntent = "aggregation"
	IntentComparison  PlanIntent = "comparison"
)

// Valid reports whether the intent is one of the supported kinds.
func (i PlanIntent) Valid() bool {
	switch i {
	case IntentSelect, IntentAggregation, IntentComparison:
		return true
	}
	return false
}

// Aggregation enumerates supported aggregate functions.
type Aggregation string

const (
	AggCount Aggregation = "COUNT"
	AggSum   Aggregation = "SUM"
	AggAvg   Aggregation = "AVG"
	AggMin   Aggregation = "MIN"
	AggMax   Aggregation = "MAX"
)

// Valid reports whether the aggregation is one of the fixed five.
func (a Aggregation) Valid() bool {
	switch a {
	case AggCount, AggSum, AggAvg, AggMin, AggMax:
		return true
	}
	return false
}

// FilterOperator enumerates supported comparison operators in WHERE clauses.
type FilterOperator string

const (
	OpEquals    FilterOperator = "="
	OpGreater   FilterOperator = ">"
	OpLess      FilterOperator = "<"
	OpGreaterEq FilterOperator = ">="
	OpLessEq    FilterOperator = "<="
	OpLike      FilterOperator = "LIKE"
)

// Valid reports whether the operator is supported.
func (o FilterOperator) Valid() bool {
	switch o {
	case OpEquals, OpGreater, OpLess, OpGreaterEq, OpLessEq, OpLike:
		return true
	}
	return false
}

// Wildcard is the projection token meaning "every column". It is only
// legal as a COUNT metric column; in the Columns list the empty slice is
// the sole representation of "all columns".
const Wildcard = "*"

// PlanFilter is a single WHERE predicate on a plan.
type PlanFilter struct {
	Column   string         `json:"column"`
	Operator FilterOperator `json:"operator"`
	Value    any            `json:"value"`
}

// PlanMetric is a single aggregate projection on a plan.
type PlanMetric struct {
	Aggregation Aggregation `json:"aggregation"`
	Column      string      `json:"column,omitempty"`
}

// StructuredPlan is the intermediate representation of a query, proposed
// by an untrusted external source and refined by the planning pipeline.
// A nil Limit means "no explicit cap"; the pipeline may impose a default.
type StructuredPlan struct {
	Intent  PlanIntent   `json:"intent"`
	Tables  []string     `json:"tables"`
	Columns []string     `json:"columns"`
	Filters []PlanFilter `json:"filters"`
	Metrics []PlanMetric `json:"metrics"`
	GroupBy []string     `json:"group_by"`
	OrderBy []string     `json:"order_by"`
	Limit   *int         `json:"limit,omitempty"`
}

// Table returns the first declared table, or "" when none is designated.
func (p *StructuredPlan) Table() string {
	if len(p.Tables) == 0 {
		return ""
	}
	return strings.TrimSpace(p.Tables[0])
}

// Clone returns a deep copy. Repair attempts mutate the copy so the
// original plan is preserved for diagnostics.
func (p *StructuredPlan) Clone() *StructuredPlan {
	if p == nil {
		return nil
	}
	out := &StructuredPlan{
		Intent:  p.Intent,
		Tables:  append([]string(nil), p.Tables...),
		Columns: append([]string(nil), p.Columns...),
		Filters: append([]PlanFilter(nil), p.Filters...),
		Metrics: append([]PlanMetric(nil), p.Metrics...),
		GroupBy: append([]string(nil), p.GroupBy...),
		OrderBy: append([]string(nil), p.OrderBy...),
	}
	if p.Limit != nil {
		v := *p.Limit
		out.Limit = &v
	}
	return out
}

// EnsureDefaults replaces nil slice fields with empty slices in place so
// payloads that omit array fields decode to the same shape as explicit
// empty arrays.
func (p *StructuredPlan) EnsureDefaults() {
	if p.Tables == nil {
		p.Tables = []string{}
	}
	if p.Columns == nil {
		p.Columns = []string{}
	}
	if p.Filters == nil {
		p.Filters = []PlanFilter{}
	}
	if p.Metrics == nil {
		p.Metrics = []PlanMetric{}
	}
	if p.GroupBy == nil {
		p.GroupBy = []string{}
	}
	if p.OrderBy == nil {
		p.OrderBy = []string{}
	}
}

// ParsePlan decodes an untrusted JSON payload into a StructuredPlan.
// The payload is validated against the plan JSON schema before decoding,
// so field presence and enum membership are never assumed.
func ParsePlan(data []byte) (*StructuredPlan, error) {
	if err := ValidatePlanJSON(data); err != nil {
		return nil, NewInvalidPlanError(ErrCodePlanShape, "plan payload does not match the expected structure").WithCause(err)
	}

	var plan StructuredPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, NewInvalidPlanError(ErrCodePlanShape, "plan payload is not valid JSON").WithCause(err)
	}
	plan.EnsureDefaults()
	return &plan, nil
}

// AskRequest is one natural-language question scoped to a session and a
// logical table.
type AskRequest struct {
	SessionID string `json:"session_id"`
	Table     string `json:"table"`
	Question  string `json:"question"`
}

// ResultSet is the outcome of executing a generated query.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// AskResult is the answer to an AskRequest.
type AskResult struct {
	SQL       string     `json:"sql"`
	Result    *ResultSet `json:"result,omitempty"`
	RowCount  int        `json:"row_count"`
	FromCache bool       `json:"from_cache"`
	Healed    bool       `json:"healed"`
}
