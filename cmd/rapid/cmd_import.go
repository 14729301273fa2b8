package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tollsimy/rapid/internal/store"
)

var (
	importBenchmark string
	importDB        string
)

var importCmd = &cobra.Command{
	Use:   "import-results <results.json> [...]",
	Short: "Import pre-classified results JSON files into the database",
	Long: `Imports results files produced by parse-logs --results-out or by an
external harness that classifies on its own. The benchmark type is
derived from the file name (everything before the first underscore)
unless --benchmark overrides it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importBenchmark, "benchmark", "", "Benchmark type override for all files")
	importCmd.Flags().StringVar(&importDB, "db", "", "Results database path (default from config)")
}

func runImport(cmd *cobra.Command, args []string) error {
	dbPath := importDB
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	db, err := store.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	total := 0
	for _, path := range args {
		rf, err := store.ReadResults(path)
		if err != nil {
			return err
		}
		benchmark := importBenchmark
		if benchmark == "" {
			benchmark = store.BenchmarkFromFilename(path)
		}
		n, err := db.ImportResults(cmd.Context(), benchmark, rf)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		logger.Info("results imported",
			zap.String("file", path),
			zap.String("benchmark", benchmark),
			zap.Int("tests", n))
		total += n
	}

	fmt.Printf("Imported %d test results from %d file(s) -> %s\n", total, len(args), dbPath)
	return nil
}
