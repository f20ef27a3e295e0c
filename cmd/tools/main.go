package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init-db":
		if err := runInitDB(os.Args[2:]); err != nil {
			sugar.Fatalf("init-db: %v", err)
		}
	case "register-table":
		if err := runRegisterTable(os.Args[2:]); err != nil {
			sugar.Fatalf("register-table: %v", err)
		}
	case "fingerprint":
		if err := runFingerprint(os.Args[2:]); err != nil {
			sugar.Fatalf("fingerprint: %v", err)
		}
	default:
		sugar.Errorf("unknown command %q", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	logger := zap.S()
	logger.Info("Usage: askql-tools <command> [options]")
	logger.Info("")
	logger.Info("Commands:")
	logger.Info("  init-db          Create the semantic cache table and indexes in PostgreSQL")
	logger.Info("  register-table   Add a logical table definition to a schema registry file")
	logger.Info("  fingerprint      Print the cache fingerprint of a plan JSON file")
}
