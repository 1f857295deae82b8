package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/application/handlers"
)

type searchFlags struct {
	types []string
	limit int
}

func newSearchCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the world graph by meaning",
		Long:  "Ranks the world's entities by similarity to a free-text query. Ties are broken by importance.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), flags)
		},
	}

	cmd.Flags().StringSliceVarP(&flags.types, "type", "t", nil, "Restrict to entity types (character, location, event, story, beat)")
	cmd.Flags().IntVarP(&flags.limit, "limit", "l", DefaultSearchLimit, "Maximum number of results")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, flags searchFlags) error {
	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		worldID, err := requireWorld(d.Worlds)
		if err != nil {
			return err
		}

		results, err := d.Graph.Search.Handle(ctx, handlers.SearchRequest{
			WorldID:     worldID,
			Query:       query,
			EntityTypes: flags.types,
			Limit:       flags.limit,
		})
		if err != nil {
			return err
		}

		if globalJSON {
			return printJSON(results)
		}
		writeSearchResults(os.Stdout, results)
		return nil
	})
}

func newSimilarCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "similar <type> <id>",
		Short: "Find entities similar to an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimilar(cmd, args[0], args[1], flags)
		},
	}

	cmd.Flags().StringSliceVarP(&flags.types, "type", "t", nil, "Restrict to entity types")
	cmd.Flags().IntVarP(&flags.limit, "limit", "l", DefaultSimilarLimit, "Maximum number of results")

	return cmd
}

func runSimilar(cmd *cobra.Command, entityType, entityID string, flags searchFlags) error {
	ctx := cmd.Context()

	return withOfflineDeps(ctx, func(d *Deps) error {
		worldID, err := requireWorld(d.Worlds)
		if err != nil {
			return err
		}

		results, err := d.Graph.Search.Similar(ctx, handlers.SimilarRequest{
			WorldID:     worldID,
			EntityType:  entityType,
			EntityID:    entityID,
			TargetTypes: flags.types,
			Limit:       flags.limit,
		})
		if err != nil {
			return err
		}

		if globalJSON {
			return printJSON(results)
		}
		fmt.Printf("Entities similar to %s/%s:\n", entityType, entityID)
		writeSearchResults(os.Stdout, results)
		return nil
	})
}
