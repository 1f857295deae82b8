// Package main provides the entry point for the lore CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/application/handlers"
)

var (
	version     = "0.1.0-dev"
	globalWorld string
	globalJSON  bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", handlers.UserMessage(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "lore",
		Short:         "A world knowledge graph for story writing, searchable by meaning",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globalWorld, "world", "w", "", "World to operate on (name or ID)")
	rootCmd.PersistentFlags().BoolVar(&globalJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		newInitCmd(),
		newWorldsCmd(),
		newImportCmd(),
		newExportCmd(),
		newBuildCmd(),
		newStatusCmd(),
		newSearchCmd(),
		newSimilarCmd(),
		newRelatedCmd(),
		newBeatContextCmd(),
		newArcCmd(),
		newTraceCmd(),
		newCausesCmd(),
		newHistoryCmd(),
		newServeCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
