package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/askql-io/askql"
	"github.com/askql-io/askql/internal"
)

// importCSV loads path into a fresh DuckDB table named physical, letting
// the engine infer column names and types. Returns the column names of
// the created table.
func importCSV(ctx context.Context, executor *internal.DuckDBExecutor, path, physical string) ([]string, error) {
	quotedTable := quoteIdent(physical)

	if err := executor.Exec(ctx, "DROP TABLE IF EXISTS "+quotedTable); err != nil {
		return nil, err
	}

	load := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM read_csv_auto(%s)",
		quotedTable, quoteLiteral(path))
	if err := executor.Exec(ctx, load); err != nil {
		return nil, fmt.Errorf("load csv into %s: %w", physical, err)
	}

	probe, err := executor.Execute(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", quotedTable))
	if err != nil {
		return nil, fmt.Errorf("read imported columns: %w", err)
	}
	return probe.Columns, nil
}

// heuristicIntent proposes plans from question keywords alone. It stands
// in for the remote intent collaborator so the sample runs offline; the
// pipeline still validates its output like any untrusted proposal.
type heuristicIntent struct{}

func (h *heuristicIntent) ProposePlan(ctx context.Context, question string, schema []askql.TableEntry) ([]byte, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("no tables registered")
	}
	table := schema[0].LogicalName

	// Aggregation keywords are picked up downstream by the metric
	// extractor; the proposal only needs the table and a base intent.
	plan := fmt.Sprintf(`{"intent": "select", "tables": [%q], "columns": [], "filters": [], "metrics": [], "group_by": [], "order_by": []}`, table)
	return []byte(plan), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
