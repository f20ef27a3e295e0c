package internal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"github.com/askql-io/askql"
)

// DuckDBExecutor runs generated queries against a local DuckDB database.
// It is the default QueryExecutor wiring; the pipeline itself treats the
// executor as an opaque collaborator.
type DuckDBExecutor struct {
	db      *sql.DB
	timeout time.Duration
}

// NewDuckDBExecutor opens (or creates) a DuckDB database at path. An empty
// path opens an in-memory database.
func NewDuckDBExecutor(path string, timeout time.Duration) (*DuckDBExecutor, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// DuckDB typically uses a single connection.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DuckDBExecutor{db: db, timeout: timeout}, nil
}

// Execute runs a SELECT statement and materializes the result set.
func (e *DuckDBExecutor) Execute(ctx context.Context, query string) (*askql.ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	result := &askql.ResultSet{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}

	zap.S().Debugw("query executed", "rows", len(result.Rows), "elapsed", time.Since(start))
	return result, nil
}

// Exec runs a statement that produces no result set, such as DDL or data
// loading. Used by tooling; the pipeline only ever calls Execute.
func (e *DuckDBExecutor) Exec(ctx context.Context, stmt string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("execute statement: %w", err)
	}
	return nil
}

// Explain returns the engine's EXPLAIN (FORMAT JSON) output for a query.
func (e *DuckDBExecutor) Explain(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.QueryContext(ctx, "EXPLAIN (FORMAT JSON) "+query)
	if err != nil {
		return "", fmt.Errorf("explain query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("read explain columns: %w", err)
	}

	var parts []string
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("scan explain row: %w", err)
		}
		// The plan text is in the last column; earlier columns carry labels.
		if s, ok := values[len(values)-1].(string); ok {
			parts = append(parts, s)
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate explain rows: %w", err)
	}
	return strings.Join(parts, "\n"), nil
}

// Close releases the underlying database handle.
func (e *DuckDBExecutor) Close() error {
	return e.db.Close()
}
