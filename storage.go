package askql

import (
	"context"
)

// Planner answers natural-language questions about registered tables.
type Planner interface {
	Answer(ctx context.Context, req AskRequest) (*AskResult, error)
}

// QueryExecutor runs generated SQL against the storage engine. The engine
// is opaque to the pipeline; only SELECT statements the builder produced
// are ever passed in.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) (*ResultSet, error)
	// Explain returns the EXPLAIN (FORMAT JSON) output for a query,
	// used for diagnostics only.
	Explain(ctx context.Context, query string) (string, error)
}

// Embedder produces a fixed-dimension vector for a text. An empty vector
// means "no embedding available"; the pipeline degrades gracefully.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IntentGenerator proposes a raw plan payload for a question. The payload
// is fully untrusted JSON; it is never executed without passing through
// normalization, validation, and the SQL builder.
type IntentGenerator interface {
	ProposePlan(ctx context.Context, question string, schema []TableEntry) ([]byte, error)
}

// ColumnResolver infers a single column from intent text when a plan
// carries neither columns nor metrics. The capability is optional; a nil
// resolver means inference is skipped.
type ColumnResolver interface {
	ResolveColumn(ctx context.Context, intentText string, candidates []string) (string, bool)
}

// CacheEntry is one persisted semantic cache record. Written once on a
// pipeline success, never mutated.
type CacheEntry struct {
	SessionID    string    `json:"session_id"`
	TableName    string    `json:"table_name"`
	Fingerprint  string    `json:"fingerprint"`
	Question     string    `json:"question"`
	SQL          string    `json:"sql"`
	ResultSample *ResultSet `json:"result_sample,omitempty"`
	RowCount     int       `json:"row_count"`
	Embedding    []float32 `json:"embedding"`
}

// SemanticCache is the two-tier result cache: exact structural fingerprint
// first, then nearest-neighbor over question embeddings. Any failure is
// reported as an error the pipeline treats as a miss.
type SemanticCache interface {
	LookupExact(ctx context.Context, sessionID, tableName, fingerprint string) (*CacheEntry, error)
	LookupSimilar(ctx context.Context, sessionID, tableName string, embedding []float32) (*CacheEntry, error)
	Store(ctx context.Context, entry *CacheEntry) error
}
