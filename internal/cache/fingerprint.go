package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/askql-io/askql"
)

// canonicalPlan is the structure that gets hashed for the exact-match
// cache tier. Every list is sorted so insertion order never changes the
// fingerprint; semantically identical plans always collide.
type canonicalPlan struct {
	Table   string   `json:"table"`
	Intent  string   `json:"intent"`
	Columns []string `json:"columns"`
	Metrics []string `json:"metrics"`
	Filters []string `json:"filters"`
	GroupBy []string `json:"group_by"`
}

// Fingerprint computes the canonical structural fingerprint of a plan
// scoped to its physical table.
func Fingerprint(plan *askql.StructuredPlan, physicalTable string) string {
	cp := canonicalPlan{
		Table:   physicalTable,
		Intent:  string(plan.Intent),
		Columns: sortedCopy(plan.Columns),
		GroupBy: sortedCopy(plan.GroupBy),
	}

	cp.Metrics = make([]string, 0, len(plan.Metrics))
	for _, m := range plan.Metrics {
		cp.Metrics = append(cp.Metrics, fmt.Sprintf("%s(%s)", m.Aggregation, m.Column))
	}
	sort.Strings(cp.Metrics)

	cp.Filters = make([]string, 0, len(plan.Filters))
	for _, f := range plan.Filters {
		cp.Filters = append(cp.Filters, fmt.Sprintf("%s %s %v", f.Column, f.Operator, f.Value))
	}
	sort.Strings(cp.Filters)

	// Field order in the struct is fixed, so the JSON encoding is stable.
	data, _ := json.Marshal(cp)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
