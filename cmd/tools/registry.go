package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/askql-io/askql"
)

// runRegisterTable adds or overwrites one logical table definition in a
// schema registry file, creating the file when needed.
func runRegisterTable(args []string) error {
	flags := flag.NewFlagSet("register-table", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: askql-tools register-table [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	file := flags.String("file", getenvDefault("SCHEMA_FILE", "tables.json"), "schema registry file")
	logical := flags.String("logical", "", "logical table name (required)")
	physical := flags.String("physical", "", "physical table name (required)")
	columns := flags.String("columns", "", "comma-separated column names (required)")
	description := flags.String("description", "", "human-readable table description")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if *logical == "" || *physical == "" || *columns == "" {
		flags.Usage()
		return fmt.Errorf("-logical, -physical and -columns are required")
	}

	var cols []string
	for _, c := range strings.Split(*columns, ",") {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			cols = append(cols, trimmed)
		}
	}
	if len(cols) == 0 {
		return fmt.Errorf("no usable column names in %q", *columns)
	}

	registry, err := askql.NewFileRegistry(*file)
	if err != nil {
		return err
	}
	registry.Register(*logical, *physical, cols, *description)

	fmt.Printf("Registered %q -> %q (%d columns) in %s\n", *logical, *physical, len(cols), *file)
	return nil
}
