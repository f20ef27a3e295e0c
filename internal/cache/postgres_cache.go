package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/askql-io/askql"
)

// ErrMiss is returned by lookups that found nothing acceptable.
var ErrMiss = askql.NewCacheError("CACHE_MISS", "no matching cache entry")

type cachePool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresCache is the semantic result cache persisted in Postgres.
// Embeddings are stored as float4 arrays; nearest-neighbor search fetches
// scope-restricted candidates and ranks them by cosine similarity.
type PostgresCache struct {
	pool      cachePool
	table     string
	dimension int
	threshold float64
	sampleCap int
	fetchCap  int
}

// NewPostgresCache creates a cache over the given pool using the cache
// settings from cfg.
func NewPostgresCache(pool cachePool, cfg *askql.Config) *PostgresCache {
	return &PostgresCache{
		pool:      pool,
		table:     cfg.Database.CacheTable,
		dimension: cfg.Cache.EmbeddingDimension,
		threshold: cfg.Cache.SimilarityThreshold,
		sampleCap: cfg.Cache.MaxSampleRows,
		fetchCap:  cfg.Cache.MaxCandidates,
	}
}

// EnsureSchema creates the cache table when it does not exist yet.
func (c *PostgresCache) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		id UUID PRIMARY KEY,
		session_id TEXT NOT NULL,
		table_name TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		question TEXT NOT NULL,
		normalized_sql TEXT NOT NULL,
		result_sample JSONB,
		row_count BIGINT NOT NULL,
		embedding REAL[] NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, c.table)
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return askql.NewCacheError(askql.ErrCodeCacheUnavailable, "failed to prepare the cache table").WithCause(err)
	}
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q (session_id, table_name, fingerprint)`,
		c.table+"_scope_idx", c.table)
	if _, err := c.pool.Exec(ctx, idx); err != nil {
		return askql.NewCacheError(askql.ErrCodeCacheUnavailable, "failed to prepare the cache index").WithCause(err)
	}
	return nil
}

// LookupExact finds the newest entry with the exact plan fingerprint in
// the session/table scope.
func (c *PostgresCache) LookupExact(ctx context.Context, sessionID, tableName, fingerprint string) (*askql.CacheEntry, error) {
	query := fmt.Sprintf(`SELECT session_id, table_name, fingerprint, question, normalized_sql, result_sample, row_count, embedding
		FROM %q WHERE session_id = $1 AND table_name = $2 AND fingerprint = $3
		ORDER BY created_at DESC LIMIT 1`, c.table)

	row := c.pool.QueryRow(ctx, query, sessionID, tableName, fingerprint)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, askql.NewCacheError(askql.ErrCodeCacheUnavailable, "exact cache lookup failed").WithCause(err)
	}
	return entry, nil
}

// LookupSimilar ranks scope-restricted entries by cosine similarity to the
// question embedding and returns the best one at or above the threshold.
func (c *PostgresCache) LookupSimilar(ctx context.Context, sessionID, tableName string, embedding []float32) (*askql.CacheEntry, error) {
	if len(embedding) != c.dimension {
		return nil, ErrMiss
	}

	query := fmt.Sprintf(`SELECT session_id, table_name, fingerprint, question, normalized_sql, result_sample, row_count, embedding
		FROM %q WHERE ($1 = '' OR session_id = $1) AND ($2 = '' OR table_name = $2)
		ORDER BY created_at DESC LIMIT $3`, c.table)

	rows, err := c.pool.Query(ctx, query, sessionID, tableName, c.fetchCap)
	if err != nil {
		return nil, askql.NewCacheError(askql.ErrCodeCacheUnavailable, "similarity cache lookup failed").WithCause(err)
	}
	defer rows.Close()

	var best *askql.CacheEntry
	bestScore := 0.0
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, askql.NewCacheError(askql.ErrCodeCacheUnavailable, "similarity cache scan failed").WithCause(err)
		}
		if score := CosineSimilarity(embedding, entry.Embedding); score > bestScore {
			best, bestScore = entry, score
		}
	}
	if err := rows.Err(); err != nil {
		return nil, askql.NewCacheError(askql.ErrCodeCacheUnavailable, "similarity cache lookup failed").WithCause(err)
	}

	if best == nil || bestScore < c.threshold {
		return nil, ErrMiss
	}
	zap.S().Debugw("semantic cache similarity hit", "score", bestScore, "question", best.Question)
	return best, nil
}

// Store persists one cache entry. Entries with a missing or wrong-dimension
// embedding are rejected outright; the result sample is truncated to the
// configured bound before writing.
func (c *PostgresCache) Store(ctx context.Context, entry *askql.CacheEntry) error {
	if entry == nil {
		return askql.NewCacheError(askql.ErrCodeBadEmbedding, "cache entry is nil")
	}
	if len(entry.Embedding) != c.dimension {
		return askql.NewCacheError(askql.ErrCodeBadEmbedding,
			fmt.Sprintf("embedding has %d dimensions, expected %d", len(entry.Embedding), c.dimension))
	}

	sample := entry.ResultSample
	if sample != nil && len(sample.Rows) > c.sampleCap {
		sample = &askql.ResultSet{Columns: sample.Columns, Rows: sample.Rows[:c.sampleCap]}
	}
	sampleJSON, err := json.Marshal(sample)
	if err != nil {
		return askql.NewCacheError(askql.ErrCodeCacheUnavailable, "failed to encode result sample").WithCause(err)
	}

	query := fmt.Sprintf(`INSERT INTO %q (id, session_id, table_name, fingerprint, question, normalized_sql, result_sample, row_count, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, c.table)
	_, err = c.pool.Exec(ctx, query,
		uuid.New(), entry.SessionID, entry.TableName, entry.Fingerprint,
		entry.Question, entry.SQL, sampleJSON, entry.RowCount, entry.Embedding)
	if err != nil {
		return askql.NewCacheError(askql.ErrCodeCacheUnavailable, "cache store failed").WithCause(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*askql.CacheEntry, error) {
	var entry askql.CacheEntry
	var sampleJSON []byte
	if err := row.Scan(&entry.SessionID, &entry.TableName, &entry.Fingerprint, &entry.Question,
		&entry.SQL, &sampleJSON, &entry.RowCount, &entry.Embedding); err != nil {
		return nil, err
	}
	if len(sampleJSON) > 0 && string(sampleJSON) != "null" {
		var sample askql.ResultSet
		if err := json.Unmarshal(sampleJSON, &sample); err != nil {
			return nil, err
		}
		entry.ResultSample = &sample
	}
	return &entry, nil
}
