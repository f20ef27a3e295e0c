package internal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/askql-io/askql"
	"github.com/askql-io/askql/internal/cache"
	"github.com/askql-io/askql/internal/planner"
)

// PipelineService answers natural-language questions by turning an
// untrusted plan proposal into validated, deterministic SQL. Stages run
// strictly sequentially per request; the semantic cache is consulted
// before planning work and populated after a success.
type PipelineService struct {
	cfg        *askql.Config
	registry   askql.SchemaRegistry
	cache      askql.SemanticCache
	embedder   askql.Embedder
	intent     askql.IntentGenerator
	executor   askql.QueryExecutor
	normalizer *planner.Normalizer
	validator  *planner.Validator
	breaker    *CircuitBreaker
}

// NewPipelineService wires the planning pipeline. cache, embedder, and
// resolver may be nil; the pipeline degrades to uncached planning without
// semantic column inference.
func NewPipelineService(
	cfg *askql.Config,
	registry askql.SchemaRegistry,
	semanticCache askql.SemanticCache,
	embedder askql.Embedder,
	intent askql.IntentGenerator,
	executor askql.QueryExecutor,
	resolver askql.ColumnResolver,
) *PipelineService {
	return &PipelineService{
		cfg:        cfg,
		registry:   registry,
		cache:      semanticCache,
		embedder:   embedder,
		intent:     intent,
		executor:   executor,
		normalizer: planner.NewNormalizer(registry, resolver),
		validator:  planner.NewValidator(registry),
		breaker:    NewCircuitBreaker(cacheBreakerThreshold, cacheBreakerWindow, cacheBreakerOpenFor),
	}
}

// Repeated cache failures open the breaker and requests skip the cache
// entirely until it cools down.
const (
	cacheBreakerThreshold = 5
	cacheBreakerWindow    = 30 * time.Second
	cacheBreakerOpenFor   = 15 * time.Second
)

// Answer runs the full pipeline for one question.
func (s *PipelineService) Answer(ctx context.Context, req askql.AskRequest) (*askql.AskResult, error) {
	log := zap.S().With("session", req.SessionID, "table", req.Table)

	if req.Table == "" {
		return nil, askql.NewUnplannableError(askql.ErrCodeNoTable, "request does not name a table")
	}
	if req.Question == "" {
		return nil, askql.NewUnplannableError(askql.ErrCodeNoPlan, "request does not contain a question")
	}

	entry, err := s.registry.Get(req.Table)
	if err != nil {
		return nil, err
	}

	embedding := s.embedQuestion(ctx, req.Question, log)

	// Cheap pre-planning check: a question close enough to an earlier one
	// reuses its result without invoking the intent collaborator at all.
	if hit := s.lookupSimilar(ctx, req.SessionID, entry.PhysicalName, embedding, log); hit != nil {
		return cachedResult(hit), nil
	}

	plan, err := s.proposePlan(ctx, req)
	if err != nil {
		return nil, err
	}
	if plan.Table() == "" {
		plan.Tables = []string{req.Table}
	}

	if err := planner.ExtractMetric(req.Question, plan, entry); err != nil {
		return nil, err
	}

	s.normalizer.Normalize(ctx, plan)

	fingerprint := cache.Fingerprint(plan, entry.PhysicalName)
	if hit := s.lookupExact(ctx, req.SessionID, entry.PhysicalName, fingerprint, log); hit != nil {
		return cachedResult(hit), nil
	}

	if err := s.validator.Validate(plan); err != nil {
		return nil, err
	}
	s.applyLimit(plan)

	query, err := planner.BuildSQL(plan, entry.PhysicalName, s.registry)
	if err != nil {
		return nil, err
	}
	log.Infow("query built", "sql", query)

	result, healed, err := s.executeWithHealing(ctx, req, plan, query, log)
	if err != nil {
		return nil, err
	}

	s.storeResult(ctx, req, entry.PhysicalName, fingerprint, result, embedding, log)

	answer := &askql.AskResult{
		SQL:      result.sql,
		Result:   result.rows,
		RowCount: len(result.rows.Rows),
		Healed:   healed,
	}
	return answer, nil
}

type executed struct {
	sql  string
	rows *askql.ResultSet
}

// executeWithHealing runs the query and, on a classifiable failure,
// attempts exactly one rule-based repair. The repaired plan is
// re-normalized, re-validated, and re-built from scratch.
func (s *PipelineService) executeWithHealing(
	ctx context.Context,
	req askql.AskRequest,
	plan *askql.StructuredPlan,
	query string,
	log *zap.SugaredLogger,
) (*executed, bool, error) {
	start := time.Now()
	rows, execErr := s.executor.Execute(ctx, query)
	EmitStageLatency(ctx, "execute", time.Since(start))
	if execErr == nil {
		return &executed{sql: query, rows: rows}, false, nil
	}

	kind := planner.ClassifyExecutionError(execErr)
	log.Warnw("query execution failed", "kind", kind, "error", execErr)

	repaired, ok := planner.Repair(plan, kind, req.Table)
	if !ok {
		return nil, false, askql.NewExecutionError(kind.Code(), kind.Hint()).
			WithTable(req.Table).WithCause(execErr)
	}

	s.normalizer.Normalize(ctx, repaired)
	if err := s.validator.Validate(repaired); err != nil {
		return nil, false, askql.NewExecutionError(askql.ErrCodeUnhealable, kind.Hint()).
			WithTable(req.Table).WithCause(execErr)
	}
	s.applyLimit(repaired)

	entry, err := s.registry.Get(repaired.Table())
	if err != nil {
		return nil, false, err
	}
	retryQuery, err := planner.BuildSQL(repaired, entry.PhysicalName, s.registry)
	if err != nil {
		return nil, false, err
	}
	log.Infow("retrying with repaired plan", "kind", kind, "sql", retryQuery)

	rows, retryErr := s.executor.Execute(ctx, retryQuery)
	if retryErr != nil {
		// One repair attempt only; the original failure surfaces.
		return nil, false, askql.NewExecutionError(kind.Code(), kind.Hint()).
			WithTable(req.Table).WithCause(execErr)
	}
	return &executed{sql: retryQuery, rows: rows}, true, nil
}

// applyLimit imposes the default row cap on row-listing plans and clamps
// explicit limits to the configured maximum. Aggregation plans keep their
// unbounded shape.
func (s *PipelineService) applyLimit(plan *askql.StructuredPlan) {
	if len(plan.Metrics) > 0 {
		return
	}
	if plan.Limit == nil {
		limit := s.cfg.Query.DefaultLimit
		plan.Limit = &limit
		return
	}
	if s.cfg.Query.MaxLimit > 0 && *plan.Limit > s.cfg.Query.MaxLimit {
		*plan.Limit = s.cfg.Query.MaxLimit
	}
}

func (s *PipelineService) embedQuestion(ctx context.Context, question string, log *zap.SugaredLogger) []float32 {
	if s.embedder == nil {
		return nil
	}
	embedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		log.Warnw("embedding unavailable, continuing without cache similarity", "error", err)
		return nil
	}
	return embedding
}

func (s *PipelineService) proposePlan(ctx context.Context, req askql.AskRequest) (*askql.StructuredPlan, error) {
	start := time.Now()
	raw, err := s.intent.ProposePlan(ctx, req.Question, s.registry.ListAll())
	EmitStageLatency(ctx, "intent", time.Since(start))
	if err != nil {
		return nil, askql.NewUnplannableError(askql.ErrCodeNoPlan, "no plan could be proposed for the question").
			WithTable(req.Table).WithCause(err)
	}
	return askql.ParsePlan(raw)
}

func (s *PipelineService) lookupSimilar(ctx context.Context, sessionID, table string, embedding []float32, log *zap.SugaredLogger) *askql.CacheEntry {
	if s.cache == nil || len(embedding) == 0 {
		return nil
	}
	if s.breaker.IsOpen() {
		return nil
	}
	start := time.Now()
	var hit *askql.CacheEntry
	err := Retry(ctx, s.cfg.Retry.Attempts, s.cfg.Retry.Delay, func() error {
		var lookupErr error
		hit, lookupErr = s.cache.LookupSimilar(ctx, sessionID, table, embedding)
		if errors.Is(lookupErr, cache.ErrMiss) {
			hit = nil
			return nil
		}
		return lookupErr
	})
	EmitStageLatency(ctx, "cache_lookup", time.Since(start))
	if err != nil {
		s.breaker.RecordFailure()
		EmitCacheOutcome(ctx, "error")
		log.Warnw("semantic cache unavailable, treating as miss", "error", err)
		return nil
	}
	s.breaker.RecordSuccess()
	if hit != nil {
		EmitCacheOutcome(ctx, "hit_similar")
	}
	return hit
}

func (s *PipelineService) lookupExact(ctx context.Context, sessionID, table, fingerprint string, log *zap.SugaredLogger) *askql.CacheEntry {
	if s.cache == nil {
		return nil
	}
	if s.breaker.IsOpen() {
		return nil
	}
	var hit *askql.CacheEntry
	err := Retry(ctx, s.cfg.Retry.Attempts, s.cfg.Retry.Delay, func() error {
		var lookupErr error
		hit, lookupErr = s.cache.LookupExact(ctx, sessionID, table, fingerprint)
		if errors.Is(lookupErr, cache.ErrMiss) {
			hit = nil
			return nil
		}
		return lookupErr
	})
	if err != nil {
		s.breaker.RecordFailure()
		EmitCacheOutcome(ctx, "error")
		log.Warnw("semantic cache unavailable, treating as miss", "error", err)
		return nil
	}
	s.breaker.RecordSuccess()
	if hit != nil {
		EmitCacheOutcome(ctx, "hit_exact")
	} else {
		EmitCacheOutcome(ctx, "miss")
	}
	return hit
}

// storeResult populates the cache after a success. Failures are logged
// and swallowed; the cache is an optimization, never a dependency.
func (s *PipelineService) storeResult(ctx context.Context, req askql.AskRequest, table, fingerprint string, result *executed, embedding []float32, log *zap.SugaredLogger) {
	if s.cache == nil || len(embedding) == 0 {
		return
	}
	if s.breaker.IsOpen() {
		return
	}
	entry := &askql.CacheEntry{
		SessionID:    req.SessionID,
		TableName:    table,
		Fingerprint:  fingerprint,
		Question:     req.Question,
		SQL:          result.sql,
		ResultSample: result.rows,
		RowCount:     len(result.rows.Rows),
		Embedding:    embedding,
	}
	err := Retry(ctx, s.cfg.Retry.Attempts, s.cfg.Retry.Delay, func() error {
		return s.cache.Store(ctx, entry)
	})
	if err != nil {
		s.breaker.RecordFailure()
		log.Warnw("semantic cache store skipped", "error", err)
	}
}

func cachedResult(hit *askql.CacheEntry) *askql.AskResult {
	return &askql.AskResult{
		SQL:       hit.SQL,
		Result:    hit.ResultSample,
		RowCount:  hit.RowCount,
		FromCache: true,
	}
}
