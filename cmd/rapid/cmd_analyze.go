package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tollsimy/rapid/internal/aggregate"
	"github.com/tollsimy/rapid/internal/report"
	"github.com/tollsimy/rapid/internal/store"
	"github.com/tollsimy/rapid/internal/types"
)

var (
	analyzeBenchmark string
	analyzeDB        string
	analyzeStatus    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Reconcile stored results and print the report tables",
	Long: `Rebuilds the aggregate counts for each benchmark in the database and
prints the coverage, verification, crosstab, overlap and strict-failure
tables. Overlap is cross-checked exactly against the accumulated tag
overflow; mismatches show up as consistency warnings, never as errors.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeBenchmark, "benchmark", "", "Analyze only this benchmark")
	analyzeCmd.Flags().StringVar(&analyzeDB, "db", "", "Results database path (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeStatus, "status", "", "List the test names with this status instead of the report tables")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	dbPath := analyzeDB
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	db, err := store.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if analyzeStatus != "" {
		return listByStatus(cmd.Context(), db, analyzeBenchmark, analyzeStatus)
	}
	return analyze(cmd.Context(), db, analyzeBenchmark)
}

// listByStatus prints the test names carrying one status, in test-number
// order, so manual-check and outlier cases can be chased down by hand.
func listByStatus(ctx context.Context, db *store.Store, benchmark, status string) error {
	st := types.TopStatus(status)
	if !st.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	benchmarks := []string{benchmark}
	if benchmark == "" {
		var err error
		benchmarks, err = db.Benchmarks(ctx)
		if err != nil {
			return err
		}
		if len(benchmarks) == 0 {
			return fmt.Errorf("no results in the database")
		}
	}

	for _, name := range benchmarks {
		names, err := db.TestsWithStatus(ctx, name, st)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d test(s) with status %s\n", name, len(names), st)
		for _, n := range names {
			fmt.Println("  " + n)
		}
	}
	return nil
}

// analyze prints the reconciled summary of one benchmark, or of every
// benchmark in the database when the name is empty.
func analyze(ctx context.Context, db *store.Store, benchmark string) error {
	benchmarks := []string{benchmark}
	if benchmark == "" {
		var err error
		benchmarks, err = db.Benchmarks(ctx)
		if err != nil {
			return err
		}
		if len(benchmarks) == 0 {
			return fmt.Errorf("no results in the database")
		}
	}

	for _, name := range benchmarks {
		records, err := db.Records(ctx, name)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("no results for benchmark %q", name)
		}

		rep := aggregate.New()
		for _, rec := range records {
			rep.Add(rec)
		}
		fmt.Println(report.Render(report.Reconcile(name, rep)))
	}
	return nil
}
