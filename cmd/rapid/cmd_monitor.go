package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tollsimy/rapid/internal/watch"
)

var monitorInterval time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor <log-file>",
	Short: "Alert when a harness log stops growing",
	Long: `Watches the log file a running campaign writes to and alerts when it
goes silent for longer than the alert interval, which usually means the
target board wedged. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "Silence threshold before alerting (default from config)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	interval := monitorInterval
	if interval == 0 {
		if d, err := time.ParseDuration(cfg.Monitor.AlertInterval); err == nil {
			interval = d
		}
	}

	mon := watch.NewMonitor(interval, func(path string, stale time.Duration) {
		fmt.Printf("ALERT: %s has been silent for %s\n", path, stale.Round(time.Second))
	}, logger)

	fmt.Printf("Monitoring %s (alert after %s of silence). Press Ctrl+C to stop.\n",
		args[0], mon.AlertInterval)

	err := mon.Run(cmd.Context(), args[0])
	if errors.Is(err, context.Canceled) {
		fmt.Println("Monitoring stopped.")
		return nil
	}
	return err
}
