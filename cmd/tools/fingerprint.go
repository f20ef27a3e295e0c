package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/askql-io/askql"
	"github.com/askql-io/askql/internal/cache"
)

// runFingerprint validates a plan JSON file and prints the fingerprint
// the cache would key it under. Useful when debugging unexpected cache
// misses: two plans that should collide can be compared directly.
func runFingerprint(args []string) error {
	flags := flag.NewFlagSet("fingerprint", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: askql-tools fingerprint -plan <file> -table <physical_name>")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	planFile := flags.String("plan", "", "path to a plan JSON file (required)")
	table := flags.String("table", "", "physical table name (required)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if *planFile == "" || *table == "" {
		flags.Usage()
		return fmt.Errorf("-plan and -table are required")
	}

	data, err := os.ReadFile(*planFile)
	if err != nil {
		return fmt.Errorf("read plan file: %w", err)
	}

	plan, err := askql.ParsePlan(data)
	if err != nil {
		return err
	}

	fmt.Println(cache.Fingerprint(plan, *table))
	return nil
}
