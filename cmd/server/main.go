package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/askql-io/askql"
	"github.com/askql-io/askql/factory"
	"github.com/askql-io/askql/internal"
)

// Server exposes the planning pipeline over HTTP.
type Server struct {
	planner  askql.Planner
	registry askql.SchemaRegistry
	mux      *http.ServeMux
}

// NewServer creates a new Server instance
func NewServer(planner askql.Planner, registry askql.SchemaRegistry) *Server {
	return &Server{
		planner:  planner,
		registry: registry,
		mux:      http.NewServeMux(),
	}
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("/api/v1/ask", s.handleAsk)
	s.mux.HandleFunc("/api/v1/tables", s.handleTables)
}

// Start starts the HTTP server on the given port
func (s *Server) Start(port string) error {
	zap.S().Infow("starting server", "port", port)
	return http.ListenAndServe(":"+port, s.mux)
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	cfg := askql.DefaultConfig()
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.Username = getEnv("DB_USER", cfg.Database.Username)
	cfg.Database.Password = getEnv("DB_PASSWORD", "")
	cfg.Database.SSLMode = getEnv("DB_SSL_MODE", cfg.Database.SSLMode)
	cfg.Cache.EmbeddingDimension = getEnvInt("EMBEDDING_DIMENSION", cfg.Cache.EmbeddingDimension)
	cfg.Cache.SimilarityThreshold = getEnvFloat("SIMILARITY_THRESHOLD", cfg.Cache.SimilarityThreshold)
	cfg.Query.DefaultLimit = getEnvInt("QUERY_DEFAULT_LIMIT", cfg.Query.DefaultLimit)

	intentURL := os.Getenv("INTENT_URL")
	if intentURL == "" {
		sugar.Fatal("INTENT_URL is required: the address of the intent collaborator")
	}

	pool := connectPool(cfg, sugar)

	executor, err := internal.NewDuckDBExecutor(os.Getenv("DUCKDB_PATH"), cfg.Query.DefaultTimeout)
	if err != nil {
		sugar.Fatalw("failed to open duckdb", "error", err)
	}
	defer executor.Close()

	var registry askql.SchemaRegistry = askql.NewMemoryRegistry()
	if schemaFile := os.Getenv("SCHEMA_FILE"); schemaFile != "" {
		fileReg, err := askql.NewFileRegistry(schemaFile)
		if err != nil {
			sugar.Fatalw("failed to load schema file", "path", schemaFile, "error", err)
		}
		registry = fileReg
		sugar.Infow("schema registry loaded", "path", schemaFile, "tables", len(fileReg.ListAll()))
	}

	deps := factory.Dependencies{
		Registry: registry,
		Intent:   newIntentClient(intentURL),
		Executor: executor,
	}
	if embedURL := os.Getenv("EMBEDDING_URL"); embedURL != "" {
		deps.Embedder = newEmbedClient(embedURL, cfg.Cache.EmbeddingDimension)
	} else {
		sugar.Info("EMBEDDING_URL not set, semantic similarity caching disabled")
	}

	planner, err := factory.NewPlannerWithConfig(cfg, pool, deps)
	if err != nil {
		sugar.Fatalw("failed to initialize planner", "error", err)
	}

	server := NewServer(planner, deps.Registry)
	server.RegisterRoutes()
	if err := server.Start(getEnv("PORT", "8080")); err != nil {
		sugar.Fatalw("server stopped", "error", err)
	}
}

// connectPool dials the cache database, retrying briefly. A nil pool is
// acceptable: the planner then runs without the semantic cache.
func connectPool(cfg *askql.Config, sugar *zap.SugaredLogger) *pgxpool.Pool {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = poolDSN(cfg.Database)
	}

	var pool *pgxpool.Pool
	err := internal.Retry(context.Background(), cfg.Retry.Attempts, cfg.Retry.Delay, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		p, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		sugar.Warnw("cache database unavailable, semantic cache disabled", "error", err)
		return nil
	}
	return pool
}
