package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askql-io/askql"
	"github.com/askql-io/askql/factory"
	"github.com/askql-io/askql/internal"
)

type options struct {
	questions    int
	rows         int
	seed         int64
	seedProvided bool
	databaseURL  string
}

// Benchmarks the planning pipeline end to end against a seeded in-memory
// DuckDB table. The intent collaborator is a local stub so measured time
// covers planning, validation, SQL generation, and execution. When a
// PostgreSQL URL is given, the semantic cache participates too and the
// report includes its hit rate.
func main() {
	log.SetFlags(0)

	opts := parseFlags()
	ctx := context.Background()

	executor, err := internal.NewDuckDBExecutor("", 30*time.Second)
	if err != nil {
		log.Fatalf("failed to open duckdb: %v", err)
	}
	defer executor.Close()

	if err := seedOrders(ctx, executor, opts.rows); err != nil {
		log.Fatalf("failed to seed data: %v", err)
	}

	registry := askql.NewMemoryRegistry()
	registry.Register("orders", "bench_orders", []string{"id", "amount", "status"}, "benchmark data")

	var pool *pgxpool.Pool
	if opts.databaseURL != "" {
		pool, err = pgxpool.New(ctx, opts.databaseURL)
		if err != nil {
			log.Fatalf("failed to connect to cache database: %v", err)
		}
		defer pool.Close()
	}

	cfg := askql.DefaultConfig()
	deps := factory.Dependencies{
		Registry: registry,
		Intent:   &benchIntent{},
		Executor: executor,
	}
	if pool != nil {
		deps.Embedder = &benchEmbedder{dimension: cfg.Cache.EmbeddingDimension}
	}
	planner, err := factory.NewPlannerWithConfig(cfg, pool, deps)
	if err != nil {
		log.Fatalf("failed to initialize planner: %v", err)
	}

	if !opts.seedProvided {
		log.Printf("[info] Using random seed %d", opts.seed)
	}
	random := rand.New(rand.NewSource(opts.seed))

	templates := []string{
		"how many orders are there",
		"list all orders",
		"show orders with status open",
		"average amount of orders",
		"maximum amount of orders",
	}

	latencies := make([]time.Duration, 0, opts.questions)
	var cacheHits, healed, failures int

	start := time.Now()
	for i := 0; i < opts.questions; i++ {
		question := templates[random.Intn(len(templates))]

		reqStart := time.Now()
		answer, err := planner.Answer(ctx, askql.AskRequest{
			SessionID: "bench",
			Table:     "orders",
			Question:  question,
		})
		elapsed := time.Since(reqStart)

		if err != nil {
			failures++
			continue
		}
		latencies = append(latencies, elapsed)
		if answer.FromCache {
			cacheHits++
		}
		if answer.Healed {
			healed++
		}
	}
	total := time.Since(start)

	report(latencies, total, cacheHits, healed, failures)
}

func parseFlags() options {
	opts := options{}
	flag.IntVar(&opts.questions, "questions", 1000, "number of questions to run")
	flag.IntVar(&opts.rows, "rows", 10000, "number of rows to seed")
	seed := flag.Int64("seed", 0, "random seed (default: current time)")
	flag.StringVar(&opts.databaseURL, "db", os.Getenv("DATABASE_URL"), "PostgreSQL URL for the semantic cache (optional)")
	flag.Parse()

	if *seed != 0 {
		opts.seed = *seed
		opts.seedProvided = true
	} else {
		opts.seed = time.Now().UnixNano()
	}
	return opts
}

func seedOrders(ctx context.Context, executor *internal.DuckDBExecutor, rows int) error {
	stmt := fmt.Sprintf(`CREATE TABLE bench_orders AS
		SELECT i AS id,
		       (random() * 1000)::INTEGER AS amount,
		       CASE WHEN i %% 3 = 0 THEN 'open' ELSE 'closed' END AS status
		FROM range(%d) t(i)`, rows)
	return executor.Exec(ctx, stmt)
}

func report(latencies []time.Duration, total time.Duration, cacheHits, healed, failures int) {
	if len(latencies) == 0 {
		log.Fatalf("no successful requests (failures=%d)", failures)
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	log.Printf("requests:   %d ok, %d failed", len(latencies), failures)
	log.Printf("total:      %v (%.1f req/s)", total.Round(time.Millisecond), float64(len(latencies))/total.Seconds())
	log.Printf("latency:    p50=%v p95=%v p99=%v max=%v",
		percentile(latencies, 0.50), percentile(latencies, 0.95),
		percentile(latencies, 0.99), latencies[len(latencies)-1])
	log.Printf("cache hits: %d (%.1f%%)", cacheHits, 100*float64(cacheHits)/float64(len(latencies)))
	log.Printf("healed:     %d", healed)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// benchIntent is a deterministic stand-in for the remote intent
// collaborator. It recognizes the status filter template; everything else
// is a bare table-only proposal refined by the downstream stages.
type benchIntent struct{}

func (b *benchIntent) ProposePlan(ctx context.Context, question string, schema []askql.TableEntry) ([]byte, error) {
	if question == "show orders with status open" {
		return []byte(`{"intent": "select", "tables": ["orders"], "columns": [],
			"filters": [{"column": "status", "operator": "=", "value": "open"}],
			"metrics": [], "group_by": [], "order_by": []}`), nil
	}
	return []byte(`{"intent": "select", "tables": ["orders"], "columns": [], "filters": [], "metrics": [], "group_by": [], "order_by": []}`), nil
}

// benchEmbedder derives a deterministic pseudo-embedding from the question
// text. Identical questions embed identically, so repeat questions exercise
// the similarity cache path without a real embedding model.
type benchEmbedder struct {
	dimension int
}

func (b *benchEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vector := make([]float32, b.dimension)
	seed := int64(0)
	for _, r := range text {
		seed = seed*31 + int64(r)
	}
	random := rand.New(rand.NewSource(seed))
	for i := range vector {
		vector[i] = random.Float32()
	}
	return vector, nil
}
