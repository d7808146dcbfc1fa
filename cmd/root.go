// Package cmd wires the cohort CLI: build assembles (or loads) a timeline
// dataset, stats reports on one.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "cohort",
	Short: "Cohort: assemble clinical-table extracts into per-person timelines",
	Long: `Cohort ingests flat per-table extracts of an OMOP-style clinical schema,
assembles them into a person / episode / event timeline, translates event
codes across vocabularies, and memoizes the result behind a content-addressed
cache.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cohort.yaml", "Path to run configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

// logger builds the CLI logger honoring --verbose.
func logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
