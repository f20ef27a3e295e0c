package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/askql-io/askql"
	"github.com/askql-io/askql/factory"
	"github.com/askql-io/askql/internal"
)

// Sample program: loads a CSV file into an in-memory DuckDB table,
// registers it, and answers questions against it. The intent collaborator
// is a built-in keyword heuristic, so the demo runs fully offline.
//
// Usage:
//
//	sample -csv orders.csv -table orders "how many orders" "list orders"
func main() {
	csvFile := flag.String("csv", "", "path to CSV file to load (required)")
	tableName := flag.String("table", "data", "logical table name")
	dbPath := flag.String("db", "", "DuckDB database path (default in-memory)")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	flag.Parse()

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if *verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Errorf("failed to build logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if *csvFile == "" {
		sugar.Error("-csv flag is required")
		flag.Usage()
		os.Exit(1)
	}
	questions := flag.Args()
	if len(questions) == 0 {
		questions = []string{
			"how many rows are there",
			"list everything",
		}
	}

	ctx := context.Background()

	executor, err := internal.NewDuckDBExecutor(*dbPath, 30*time.Second)
	if err != nil {
		sugar.Fatalw("failed to open duckdb", "error", err)
	}
	defer executor.Close()

	physical := *tableName + "_data"
	columns, err := importCSV(ctx, executor, *csvFile, physical)
	if err != nil {
		sugar.Fatalw("csv import failed", "file", *csvFile, "error", err)
	}
	sugar.Infow("csv loaded", "table", physical, "columns", columns)

	registry := askql.NewMemoryRegistry()
	registry.Register(*tableName, physical, columns, "imported from "+*csvFile)

	planner, err := factory.NewPlannerWithConfig(askql.DefaultConfig(), nil, factory.Dependencies{
		Registry: registry,
		Intent:   &heuristicIntent{},
		Executor: executor,
	})
	if err != nil {
		sugar.Fatalw("failed to initialize planner", "error", err)
	}

	for _, question := range questions {
		answer, err := planner.Answer(ctx, askql.AskRequest{
			SessionID: "sample",
			Table:     *tableName,
			Question:  question,
		})
		if err != nil {
			sugar.Errorw("question failed", "question", question, "error", err)
			continue
		}
		printAnswer(question, answer)
	}
}

func printAnswer(question string, answer *askql.AskResult) {
	fmt.Printf("Q: %s\n", question)
	fmt.Printf("SQL: %s\n", answer.SQL)
	fmt.Printf("Rows: %d\n", answer.RowCount)
	if answer.Result != nil && len(answer.Result.Rows) > 0 {
		preview := answer.Result.Rows
		if len(preview) > 5 {
			preview = preview[:5]
		}
		out, _ := json.Marshal(preview)
		fmt.Printf("Preview: %s\n", out)
	}
	fmt.Println()
}
