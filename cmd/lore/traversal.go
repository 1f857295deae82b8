package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/application/handlers"
)

type relatedFlags struct {
	depth     int
	relations []string
}

func newRelatedCmd() *cobra.Command {
	var flags relatedFlags

	cmd := &cobra.Command{
		Use:   "related <type> <id>",
		Short: "List entities connected to an entity",
		Long:  "Walks the graph outward from an entity in both edge directions and lists what it reaches, nearest first.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelated(cmd, args[0], args[1], flags)
		},
	}

	cmd.Flags().IntVarP(&flags.depth, "depth", "d", DefaultRelatedDepth, "Maximum number of hops")
	cmd.Flags().StringSliceVarP(&flags.relations, "rel", "r", nil, "Only follow these relationship types")

	return cmd
}

func runRelated(cmd *cobra.Command, entityType, entityID string, flags relatedFlags) error {
	ctx := cmd.Context()

	return withOfflineDeps(ctx, func(d *Deps) error {
		worldID, err := requireWorld(d.Worlds)
		if err != nil {
			return err
		}

		related, err := d.Graph.Traversal.Related(ctx, handlers.RelatedRequest{
			WorldID:           worldID,
			EntityType:        entityType,
			EntityID:          entityID,
			Depth:             flags.depth,
			RelationshipTypes: flags.relations,
		})
		if err != nil {
			return err
		}

		if globalJSON {
			return printJSON(related)
		}
		fmt.Printf("%s (%d entities, %d edges):\n", related.Source.Ref(), len(related.Nodes), len(related.Edges))
		writeRelatedNodes(os.Stdout, related.Nodes)
		return nil
	})
}

func newBeatContextCmd() *cobra.Command {
	var maxEntities int

	cmd := &cobra.Command{
		Use:   "beat-context <beat-id>",
		Short: "Show a beat with the entities around it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBeatContext(cmd, args[0], maxEntities)
		},
	}

	cmd.Flags().IntVarP(&maxEntities, "max", "m", DefaultBeatEntities, "Maximum number of entities")

	return cmd
}

func runBeatContext(cmd *cobra.Command, beatID string, maxEntities int) error {
	ctx := cmd.Context()

	return withOfflineDeps(ctx, func(d *Deps) error {
		worldID, err := requireWorld(d.Worlds)
		if err != nil {
			return err
		}

		bc, err := d.Graph.Traversal.BeatContext(ctx, handlers.BeatContextRequest{
			WorldID:     worldID,
			BeatID:      beatID,
			MaxEntities: maxEntities,
		})
		if err != nil {
			return err
		}

		if globalJSON {
			return printJSON(bc)
		}
		fmt.Printf("Beat %s (sequence %d)\n", bc.Beat.ID, bc.Beat.Sequence)
		if bc.Beat.StoryID != "" {
			fmt.Printf("Story: %s\n", bc.Beat.StoryID)
		}
		fmt.Printf("\n%s\n\nContext:\n", truncate(bc.Beat.Content, 300))
		writeRelatedNodes(os.Stdout, bc.Entities)
		return nil
	})
}

func newArcCmd() *cobra.Command {
	var storyID string

	cmd := &cobra.Command{
		Use:   "arc <character-id>",
		Short: "Show the beats a character appears in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArc(cmd, args[0], storyID)
		},
	}

	cmd.Flags().StringVarP(&storyID, "story", "s", "", "Restrict to one story")

	return cmd
}

func runArc(cmd *cobra.Command, characterID, storyID string) error {
	ctx := cmd.Context()

	return withOfflineDeps(ctx, func(d *Deps) error {
		worldID, err := requireWorld(d.Worlds)
		if err != nil {
			return err
		}

		arc, err := d.Graph.Traversal.Arc(ctx, handlers.ArcRequest{
			WorldID:     worldID,
			CharacterID: characterID,
			StoryID:     storyID,
		})
		if err != nil {
			return err
		}

		if globalJSON {
			return printJSON(arc)
		}
		fmt.Printf("Story arc of %s (%d beats):\n", arc.Name, len(arc.Appearances))
		for _, a := range arc.Appearances {
			label := a.Title
			if label == "" {
				label = string(a.BeatID)
			}
			fmt.Printf("  %-12s #%-4d %s\n", a.StoryID, a.Sequence, label)
			if a.SemanticSummary != "" {
				fmt.Printf("  %-12s       %s\n", "", truncate(a.SemanticSummary, 80))
			}
		}
		return nil
	})
}
