package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askql-io/askql"
)

func testConfig() *askql.Config {
	cfg := askql.DefaultConfig()
	cfg.Cache.EmbeddingDimension = 3
	cfg.Cache.MaxSampleRows = 2
	return cfg
}

var entryColumns = []string{
	"session_id", "table_name", "fingerprint", "question",
	"normalized_sql", "result_sample", "row_count", "embedding",
}

func TestStoreRejectsWrongDimension(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := NewPostgresCache(mock, testConfig())
	entry := &askql.CacheEntry{
		SessionID: "s1", TableName: "t", Fingerprint: "fp",
		Question: "q", SQL: "SELECT 1", Embedding: make([]float32, 500),
	}

	err = c.Store(context.Background(), entry)
	require.Error(t, err)
	askErr, ok := err.(*askql.AskError)
	require.True(t, ok)
	assert.Equal(t, askql.ErrCodeBadEmbedding, askErr.Code)
	require.NoError(t, mock.ExpectationsWereMet(), "no row may be written")
}

func TestStoreRejectsMissingEmbedding(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := NewPostgresCache(mock, testConfig())
	err = c.Store(context.Background(), &askql.CacheEntry{SessionID: "s1", TableName: "t"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreTruncatesResultSample(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO "semantic_cache"`).
		WithArgs(pgxmock.AnyArg(), "s1", "ds_1_orders", "fp", "how many orders",
			`SELECT COUNT(*) FROM "ds_1_orders"`,
			[]byte(`{"columns":["id"],"rows":[[1],[2]]}`), 3, []float32{1, 0, 0}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	c := NewPostgresCache(mock, testConfig())
	entry := &askql.CacheEntry{
		SessionID:   "s1",
		TableName:   "ds_1_orders",
		Fingerprint: "fp",
		Question:    "how many orders",
		SQL:         `SELECT COUNT(*) FROM "ds_1_orders"`,
		ResultSample: &askql.ResultSet{
			Columns: []string{"id"},
			Rows:    [][]any{{1}, {2}, {3}},
		},
		RowCount:  3,
		Embedding: []float32{1, 0, 0},
	}

	require.NoError(t, c.Store(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupExactHit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(entryColumns).
		AddRow("s1", "ds_1_orders", "fp", "how many orders",
			`SELECT COUNT(*) FROM "ds_1_orders"`, []byte(`null`), 3, []float32{1, 0, 0})
	mock.ExpectQuery(`SELECT session_id, table_name, fingerprint`).
		WithArgs("s1", "ds_1_orders", "fp").
		WillReturnRows(rows)

	c := NewPostgresCache(mock, testConfig())
	entry, err := c.LookupExact(context.Background(), "s1", "ds_1_orders", "fp")
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "ds_1_orders"`, entry.SQL)
	assert.Equal(t, 3, entry.RowCount)
	assert.Nil(t, entry.ResultSample)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupExactMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT session_id, table_name, fingerprint`).
		WithArgs("s1", "ds_1_orders", "fp").
		WillReturnRows(pgxmock.NewRows(entryColumns))

	c := NewPostgresCache(mock, testConfig())
	_, err = c.LookupExact(context.Background(), "s1", "ds_1_orders", "fp")
	assert.ErrorIs(t, err, ErrMiss)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupSimilarPicksBestAboveThreshold(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(entryColumns).
		AddRow("s1", "t", "fp1", "unrelated", "SELECT 1", []byte(`null`), 1, []float32{0, 1, 0}).
		AddRow("s1", "t", "fp2", "close match", "SELECT 2", []byte(`null`), 1, []float32{1, 0.1, 0})
	mock.ExpectQuery(`SELECT session_id, table_name, fingerprint`).
		WithArgs("s1", "t", 20).
		WillReturnRows(rows)

	c := NewPostgresCache(mock, testConfig())
	entry, err := c.LookupSimilar(context.Background(), "s1", "t", []float32{1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, "close match", entry.Question)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupSimilarMissBelowThreshold(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(entryColumns).
		AddRow("s1", "t", "fp1", "orthogonal", "SELECT 1", []byte(`null`), 1, []float32{0, 1, 0})
	mock.ExpectQuery(`SELECT session_id, table_name, fingerprint`).
		WithArgs("s1", "t", 20).
		WillReturnRows(rows)

	c := NewPostgresCache(mock, testConfig())
	_, err = c.LookupSimilar(context.Background(), "s1", "t", []float32{1, 0, 0})
	assert.ErrorIs(t, err, ErrMiss)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupSimilarWrongDimensionIsMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := NewPostgresCache(mock, testConfig())
	_, err = c.LookupSimilar(context.Background(), "s1", "t", []float32{1, 0})
	assert.ErrorIs(t, err, ErrMiss)
	require.NoError(t, mock.ExpectationsWereMet(), "no query when the probe embedding is unusable")
}

func TestLookupErrorsAreCacheErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT session_id, table_name, fingerprint`).
		WithArgs("s1", "t", 20).
		WillReturnError(errors.New("connection refused"))

	c := NewPostgresCache(mock, testConfig())
	_, err = c.LookupSimilar(context.Background(), "s1", "t", []float32{1, 0, 0})
	require.Error(t, err)
	askErr, ok := err.(*askql.AskError)
	require.True(t, ok)
	assert.Equal(t, askql.ErrCodeCacheUnavailable, askErr.Code)
}

func TestEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "semantic_cache"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	c := NewPostgresCache(mock, testConfig())
	require.NoError(t, c.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
