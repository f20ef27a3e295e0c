package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askql-io/askql"
	"github.com/askql-io/askql/internal/cache"
)

type stubIntent struct {
	payload []byte
	err     error
	calls   int
}

func (s *stubIntent) ProposePlan(_ context.Context, _ string, _ []askql.TableEntry) ([]byte, error) {
	s.calls++
	return s.payload, s.err
}

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return s.vector, s.err
}

type stubExecutor struct {
	queries []string
	results []*askql.ResultSet
	errs    []error
}

func (s *stubExecutor) Execute(_ context.Context, query string) (*askql.ResultSet, error) {
	i := len(s.queries)
	s.queries = append(s.queries, query)
	var result *askql.ResultSet
	var err error
	if i < len(s.results) {
		result = s.results[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if result == nil && err == nil {
		result = &askql.ResultSet{Columns: []string{"n"}, Rows: [][]any{{int64(3)}}}
	}
	return result, err
}

func (s *stubExecutor) Explain(_ context.Context, _ string) (string, error) {
	return "{}", nil
}

// memoryCache is an in-process SemanticCache used to exercise the
// pipeline's cache interaction without a database.
type memoryCache struct {
	entries    []*askql.CacheEntry
	storeErr   error
	lookupErr  error
	storeCalls int
}

func (m *memoryCache) LookupExact(_ context.Context, sessionID, tableName, fingerprint string) (*askql.CacheEntry, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, e := range m.entries {
		if e.SessionID == sessionID && e.TableName == tableName && e.Fingerprint == fingerprint {
			return e, nil
		}
	}
	return nil, cache.ErrMiss
}

func (m *memoryCache) LookupSimilar(_ context.Context, sessionID, tableName string, embedding []float32) (*askql.CacheEntry, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, e := range m.entries {
		if e.SessionID == sessionID && e.TableName == tableName &&
			cache.CosineSimilarity(embedding, e.Embedding) >= 0.72 {
			return e, nil
		}
	}
	return nil, cache.ErrMiss
}

func (m *memoryCache) Store(_ context.Context, entry *askql.CacheEntry) error {
	m.storeCalls++
	if m.storeErr != nil {
		return m.storeErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func pipelineConfig() *askql.Config {
	cfg := askql.DefaultConfig()
	cfg.Cache.EmbeddingDimension = 3
	cfg.Retry.Attempts = 1
	cfg.Retry.Delay = 0
	return cfg
}

func pipelineRegistry() askql.SchemaRegistry {
	reg := askql.NewMemoryRegistry()
	reg.Register("orders", "ds_1_orders", []string{"id", "amount", "status"}, "")
	return reg
}

func TestAnswerCountQuestion(t *testing.T) {
	intent := &stubIntent{payload: []byte(`{"intent": "select", "tables": ["orders"]}`)}
	exec := &stubExecutor{}
	svc := NewPipelineService(pipelineConfig(), pipelineRegistry(), nil, nil, intent, exec, nil)

	result, err := svc.Answer(context.Background(), askql.AskRequest{
		SessionID: "s1", Table: "orders", Question: "how many orders are there",
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "ds_1_orders"`, result.SQL)
	assert.Equal(t, 1, result.RowCount)
	assert.False(t, result.FromCache)
	require.Len(t, exec.queries, 1)
}

func TestAnswerBogusColumnFallsBackToSelectAll(t *testing.T) {
	intent := &stubIntent{payload: []byte(`{"intent": "select", "tables": ["orders"], "columns": ["bogus_col"]}`)}
	exec := &stubExecutor{}
	svc := NewPipelineService(pipelineConfig(), pipelineRegistry(), nil, nil, intent, exec, nil)

	result, err := svc.Answer(context.Background(), askql.AskRequest{
		SessionID: "s1", Table: "orders", Question: "show me everything",
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "ds_1_orders" LIMIT 100`, result.SQL)
}

func TestAnswerMissingTableInRequest(t *testing.T) {
	svc := NewPipelineService(pipelineConfig(), pipelineRegistry(), nil, nil, &stubIntent{}, &stubExecutor{}, nil)

	_, err := svc.Answer(context.Background(), askql.AskRequest{SessionID: "s1", Question: "hello"})
	require.Error(t, err)

	_, err = svc.Answer(context.Background(), askql.AskRequest{SessionID: "s1", Table: "unregistered", Question: "hello"})
	require.Error(t, err)
	askErr, ok := err.(*askql.AskError)
	require.True(t, ok)
	assert.Equal(t, askql.ErrCodeUnknownTable, askErr.Code)
}

func TestAnswerDefaultsPlanTableToRequestTable(t *testing.T) {
	intent := &stubIntent{payload: []byte(`{"intent": "select"}`)}
	exec := &stubExecutor{}
	svc := NewPipelineService(pipelineConfig(), pipelineRegistry(), nil, nil, intent, exec, nil)

	result, err := svc.Answer(context.Background(), askql.AskRequest{
		SessionID: "s1", Table: "orders", Question: "show rows",
	})
	require.NoError(t, err)
	assert.Contains(t, result.SQL, `FROM "ds_1_orders"`)
}

func TestAnswerAggregationColumnUnresolved(t *testing.T) {
	reg := askql.NewMemoryRegistry()
	reg.Register("notes", "ds_1_notes", []string{"title", "body"}, "")
	intent := &stubIntent{payload: []byte(`{"intent": "select", "tables": ["notes"]}`)}
	svc := NewPipelineService(pipelineConfig(), reg, nil, nil, intent, &stubExecutor{}, nil)

	_, err := svc.Answer(context.Background(), askql.AskRequest{
		SessionID: "s1", Table: "notes", Question: "what is the average",
	})
	require.Error(t, err)
	askErr, ok := err.(*askql.AskError)
	require.True(t, ok)
	assert.Equal(t, askql.ErrCodeAggColumnUnresolved, askErr.Code)
}

func TestAnswerSecondIdenticalQuestionHitsCache(t *testing.T) {
	intent := &stubIntent{payload: []byte(`{"intent": "select", "tables": ["orders"]}`)}
	exec := &stubExecutor{}
	mem := &memoryCache{}
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}
	svc := NewPipelineService(pipelineConfig(), pipelineRegistry(), mem, embedder, intent, exec, nil)

	req := askql.AskRequest{SessionID: "s1", Table: "orders", Question: "how many orders are there"}

	first, err := svc.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, mem.storeCalls)

	second, err := svc.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.SQL, second.SQL)
	assert.Equal(t, 1, intent.calls, "cache hit must bypass planning entirely")
	require.Len(t, exec.queries, 1, "cache hit must not re-execute")
}

func TestAnswerCacheFailureDegradesToMiss(t *testing.T) {
	intent := &stubIntent{payload: []byte(`{"intent": "select", "tables": ["orders"]}`)}
	exec := &stubExecutor{}
	mem := &memoryCache{lookupErr: errors.New("connection refused"), storeErr: errors.New("connection refused")}
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}
	svc := NewPipelineService(pipelineConfig(), pipelineRegistry(), mem, embedder, intent, exec, nil)

	result, err := svc.Answer(context.Background(), askql.AskRequest{
		SessionID: "s1", Table: "orders", Question: "how many orders are there",
	})
	require.NoError(t, err, "cache unavailability must never block the pipeline")
	assert.False(t, result.FromCache)
	require.Len(t, exec.queries, 1)
}

func TestAnswerEmbedderFailureDegradesGracefully(t *testing.T) {
	intent := &stubIntent{payload: []byte(`{"intent": "select", "tables": ["orders"]}`)}
	exec := &stubExecutor{}
	mem := &memoryCache{}
	embedder := &stubEmbedder{err: errors.New("model offline")}
	svc := NewPipelineService(pipelineConfig(), pipelineRegistry(), mem, embedder, intent, exec, nil)

	result, err := svc.Answer(context.Background(), askql.AskRequest{
		SessionID: "s1", Table: "orders", Question: "how many orders are there",
	})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 0, mem.storeCalls, "no embedding means no cache write")
}

func TestAnswerSelfHealingRepairsMissingColumn(t *testing.T) {
	intent := &stubIntent{payload: []byte(`{"intent": "select", "tables": ["orders"], "columns": ["amount"]}`)}
	exec := &stubExecutor{
		errs: []error{errors.New(`Binder Error: column "amount" not found`), nil},
	}
	svc := NewPipelineService(pipelineConfig(), pipelineRegistry(), nil, nil, intent, exec, nil)

	result, err := svc.Answer(context.Background(), askql.AskRequest{
		SessionID: "s1", Table: "orders", Question: "show amounts",
	})
	require.NoError(t, err)
	assert.True(t, result.Healed)
	require.Len(t, exec.queries, 2)
	assert.Equal(t, `SELECT * FROM "ds_1_orders" LIMIT 100`, exec.queries[1])
}

func TestAnswerUnhealableFailureSurfaces(t *testing.T) {
	intent := &stubIntent{payload: []byte(`{"intent": "select", "tables": ["orders"]}`)}
	exec := &stubExecutor{errs: []error{errors.New("disk quota exhausted")}}
	svc := NewPipelineService(pipelineConfig(), pipelineRegistry(), nil, nil, intent, exec, nil)

	_, err := svc.Answer(context.Background(), askql.AskRequest{
		SessionID: "s1", Table: "orders", Question: "show rows",
	})
	require.Error(t, err)
	askErr, ok := err.(*askql.AskError)
	require.True(t, ok)
	assert.Equal(t, askql.ErrCodeExecUnknown, askErr.Code)
	require.Len(t, exec.queries, 1, "unhealable failures get no retry")
}

func TestAnswerRepairFailureSurfacesOriginalError(t *testing.T) {
	intent := &stubIntent{payload: []byte(`{"intent": "select", "tables": ["orders"], "columns": ["amount"]}`)}
	exec := &stubExecutor{
		errs: []error{
			errors.New(`column "amount" does not exist`),
			errors.New(`column "id" does not exist`),
		},
	}
	svc := NewPipelineService(pipelineConfig(), pipelineRegistry(), nil, nil, intent, exec, nil)

	_, err := svc.Answer(context.Background(), askql.AskRequest{
		SessionID: "s1", Table: "orders", Question: "show amounts",
	})
	require.Error(t, err)
	askErr, ok := err.(*askql.AskError)
	require.True(t, ok)
	assert.Equal(t, askql.ErrCodeExecMissingColumn, askErr.Code)
	require.Len(t, exec.queries, 2, "at most one repair attempt per request")
}

func TestAnswerInvalidIntentPayload(t *testing.T) {
	intent := &stubIntent{payload: []byte(`{"intent": "drop everything"}`)}
	svc := NewPipelineService(pipelineConfig(), pipelineRegistry(), nil, nil, intent, &stubExecutor{}, nil)

	_, err := svc.Answer(context.Background(), askql.AskRequest{
		SessionID: "s1", Table: "orders", Question: "show rows",
	})
	require.Error(t, err)
	askErr, ok := err.(*askql.AskError)
	require.True(t, ok)
	assert.Equal(t, askql.ErrCodePlanShape, askErr.Code)
}

func TestAnswerClampsExplicitLimit(t *testing.T) {
	intent := &stubIntent{payload: []byte(`{"intent": "select", "tables": ["orders"], "limit": 999999}`)}
	exec := &stubExecutor{}
	svc := NewPipelineService(pipelineConfig(), pipelineRegistry(), nil, nil, intent, exec, nil)

	result, err := svc.Answer(context.Background(), askql.AskRequest{
		SessionID: "s1", Table: "orders", Question: "show rows",
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "ds_1_orders" LIMIT 1000`, result.SQL)
}
