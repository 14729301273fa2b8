package main

import (
	"github.com/spf13/cobra"

	"github.com/tollsimy/rapid/internal/store"
)

var pipelineCmd = &cobra.Command{
	Use:   "full-pipeline",
	Short: "Parse a harness log and analyze it in one step",
	Long: `Runs parse-logs followed by analyze against the same database. Takes
the same flags as parse-logs.`,
	RunE: runPipeline,
}

func init() {
	pipelineCmd.Flags().AddFlagSet(parseCmd.Flags())
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if err := runParse(cmd, args); err != nil {
		return err
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

	return analyze(cmd.Context(), db, "")
}
