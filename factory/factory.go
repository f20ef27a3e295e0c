package factory

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/askql-io/askql"
	"github.com/askql-io/askql/internal"
	"github.com/askql-io/askql/internal/cache"
)

// Dependencies carries the external collaborators a Planner needs. The
// intent generator and executor are required; the embedder and column
// resolver are optional and degrade the pipeline gracefully when absent.
type Dependencies struct {
	Registry askql.SchemaRegistry
	Intent   askql.IntentGenerator
	Executor askql.QueryExecutor
	Embedder askql.Embedder
	Resolver askql.ColumnResolver
}

// NewPlannerWithConfig creates a Planner wired against the provided
// configuration and database pool. This is the primary way for external
// projects to create a Planner instance.
//
// A nil pool or a disabled cache section turns the semantic cache off;
// the pipeline then always plans from scratch.
//
// Usage:
//
//	cfg := askql.DefaultConfig()
//	planner, err := factory.NewPlannerWithConfig(cfg, pool, factory.Dependencies{
//	    Registry: registry,
//	    Intent:   llmClient,
//	    Executor: executor,
//	    Embedder: embedClient,
//	})
func NewPlannerWithConfig(cfg *askql.Config, pool *pgxpool.Pool, deps Dependencies) (askql.Planner, error) {
	if cfg == nil {
		cfg = askql.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Registry == nil {
		return nil, askql.NewInternalError("a schema registry implementation is required")
	}
	if deps.Intent == nil {
		return nil, askql.NewInternalError("an intent generator implementation is required")
	}
	if deps.Executor == nil {
		return nil, askql.NewInternalError("a query executor implementation is required")
	}

	var semanticCache askql.SemanticCache
	if cfg.Cache.Enabled && pool != nil {
		pgCache := cache.NewPostgresCache(pool, cfg)
		err := internal.Retry(context.Background(), cfg.Retry.Attempts, cfg.Retry.Delay, func() error {
			return pgCache.EnsureSchema(context.Background())
		})
		if err != nil {
			zap.S().Warnw("semantic cache warm-up failed, caching disabled", "error", err)
		} else {
			semanticCache = pgCache
		}
	}

	return internal.NewPipelineService(
		cfg,
		deps.Registry,
		semanticCache,
		deps.Embedder,
		deps.Intent,
		deps.Executor,
		deps.Resolver,
	), nil
}
