package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/application/handlers"
)

func newBuildCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build or refresh the world graph",
		Long: `Projects the world's entities into graph nodes, derives structural,
causal and semantic edges and recomputes importance scores.

Without --full only entities whose content changed are re-embedded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, full)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Discard the existing graph and rebuild from scratch")

	return cmd
}

func runBuild(cmd *cobra.Command, full bool) error {
	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		worldID, err := requireWorld(d.Worlds)
		if err != nil {
			return err
		}

		if !globalJSON {
			fmt.Printf("Building graph for %s...\n", worldID)
		}

		result, err := d.Graph.Build.Handle(ctx, handlers.BuildRequest{
			WorldID:     worldID,
			FullRebuild: full,
		})
		if err != nil {
			return err
		}

		if globalJSON {
			return printJSON(result.Report)
		}
		writeBuildReport(os.Stdout, result.Report)
		return nil
	})
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the graph status of a world",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	return withOfflineDeps(ctx, func(d *Deps) error {
		worldID, err := requireWorld(d.Worlds)
		if err != nil {
			return err
		}

		status, err := d.Graph.Build.Status(ctx, worldID)
		if err != nil {
			return err
		}

		if globalJSON {
			return printJSON(status)
		}
		writeStatus(os.Stdout, status)
		fmt.Printf("Database:         %s\n", d.relationalDB.Path())
		if d.index != nil {
			points, err := d.index.CountWorld(ctx, worldID)
			if err != nil {
				d.Logger.Warn("counting vector index points failed", zap.Error(err))
				return nil
			}
			fmt.Printf("Index points:     %d\n", points)
		}
		return nil
	})
}
