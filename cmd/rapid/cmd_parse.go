package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tollsimy/rapid/internal/classify"
	"github.com/tollsimy/rapid/internal/inject"
	"github.com/tollsimy/rapid/internal/segment"
	"github.com/tollsimy/rapid/internal/store"
	"github.com/tollsimy/rapid/internal/types"
)

var (
	parseLog        string
	parseFormat     string
	parseRules      []string
	parsePlugins    []string
	parseManifest   string
	parseDB         string
	parseWorkers    int
	parseResultsOut string
)

var parseCmd = &cobra.Command{
	Use:   "parse-logs",
	Short: "Segment a harness log and classify every test block",
	Long: `Splits the log into per-test blocks using the format contract,
classifies each block with the classifier registered for its benchmark
type, and writes the verdicts to the results database. Blocks that
cannot be classified are stored as missing_status and flagged for
manual review; they never abort the batch.`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVar(&parseLog, "log", "", "Harness log file (required)")
	parseCmd.Flags().StringVar(&parseFormat, "format", "", "Format contract YAML (required)")
	parseCmd.Flags().StringSliceVar(&parseRules, "rules", nil, "YAML rule classifier files")
	parseCmd.Flags().StringSliceVar(&parsePlugins, "plugin", nil, "Go plugin classifier files")
	parseCmd.Flags().StringVar(&parseManifest, "manifest", "", "Campaign manifest to join faults from")
	parseCmd.Flags().StringVar(&parseDB, "db", "", "Results database path (default from config)")
	parseCmd.Flags().IntVar(&parseWorkers, "workers", 0, "Classifier workers (default from config)")
	parseCmd.Flags().StringVar(&parseResultsOut, "results-out", "", "Also write verdicts to a results JSON file")
	_ = parseCmd.MarkFlagRequired("log")
	_ = parseCmd.MarkFlagRequired("format")
}

// buildRegistry loads every rule and plugin classifier named on the
// command line into one registry.
func buildRegistry(rules, plugins []string) (*classify.Registry, error) {
	registry := classify.NewRegistry()
	for _, path := range rules {
		sets, err := classify.LoadRuleSets(path)
		if err != nil {
			return nil, err
		}
		for _, rs := range sets {
			rc, err := rs.Compile()
			if err != nil {
				return nil, err
			}
			if err := registry.Register(rc); err != nil {
				return nil, err
			}
		}
	}
	for _, path := range plugins {
		pc, err := classify.LoadPlugin(path)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(pc); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func runParse(cmd *cobra.Command, args []string) error {
	registry, err := buildRegistry(parseRules, parsePlugins)
	if err != nil {
		return err
	}
	if len(registry.Names()) == 0 {
		return fmt.Errorf("no classifiers loaded, pass --rules or --plugin")
	}

	contract, err := segment.LoadContract(parseFormat)
	if err != nil {
		return err
	}
	segmenter, err := contract.Compile()
	if err != nil {
		return err
	}

	faults := map[int]types.FaultRecord{}
	if parseManifest != "" {
		records, err := inject.ReadManifest(parseManifest)
		if err != nil {
			return err
		}
		faults = inject.Index(records)
	}

	dbPath := parseDB
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	db, err := store.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := os.Open(parseLog)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	workers := parseWorkers
	if workers == 0 {
		workers = cfg.Parse.Workers
	}
	engine := classify.NewEngine(registry, workers, logger)
	result, err := engine.Run(cmd.Context(), segmenter.Scan(f), faults, db)
	if err != nil {
		return err
	}

	if parseResultsOut != "" {
		if err := store.WriteResults(parseResultsOut, result.Rows); err != nil {
			return err
		}
		logger.Info("results file written", zap.String("path", parseResultsOut))
	}

	fmt.Printf("Classified %d of %d blocks (%d flagged for manual check) -> %s\n",
		result.Report.Classified(), result.Report.Total, result.Report.ManualCheck, dbPath)
	return nil
}
