package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/application/handlers"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

type traceFlags struct {
	direction string
	depth     int
}

func newTraceCmd() *cobra.Command {
	var flags traceFlags

	cmd := &cobra.Command{
		Use:   "trace <event-id>",
		Short: "Trace the causes and consequences of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.direction, "direction", string(services.DirectionBoth), "Direction to follow (causes, caused_by, both)")
	cmd.Flags().IntVarP(&flags.depth, "depth", "d", DefaultChainDepth, "Maximum chain depth")

	return cmd
}

func runTrace(cmd *cobra.Command, eventID string, flags traceFlags) error {
	ctx := cmd.Context()

	return withOfflineDeps(ctx, func(d *Deps) error {
		worldID, err := requireWorld(d.Worlds)
		if err != nil {
			return err
		}

		chain, err := d.Graph.Causal.Trace(ctx, handlers.TraceRequest{
			WorldID:   worldID,
			EventID:   eventID,
			Direction: flags.direction,
			MaxDepth:  flags.depth,
		})
		if err != nil {
			return err
		}

		if globalJSON {
			return printJSON(chain)
		}
		fmt.Printf("Event %s\n\n", chain.EventID)
		if chain.Direction != services.DirectionCausedBy {
			writeChainLinks(os.Stdout, "Leads to", chain.Causes)
		}
		if chain.Direction != services.DirectionCauses {
			writeChainLinks(os.Stdout, "Caused by", chain.CausedBy)
		}
		return nil
	})
}

func newCausesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "causes",
		Short: "Edit the causal links between events",
	}

	cmd.AddCommand(
		newCausesAddCmd(),
		newCausesRemoveCmd(),
	)

	return cmd
}

func newCausesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <event-id> <cause-event-id>",
		Short: "Record that an event was caused by another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCausesEdit(cmd, args[0], args[1], true)
		},
	}
}

func newCausesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <event-id> <cause-event-id>",
		Short: "Remove a caused-by link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCausesEdit(cmd, args[0], args[1], false)
		},
	}
}

func runCausesEdit(cmd *cobra.Command, eventID, causeID string, add bool) error {
	ctx := cmd.Context()

	return withOfflineDeps(ctx, func(d *Deps) error {
		worldID, err := requireWorld(d.Worlds)
		if err != nil {
			return err
		}

		req := handlers.DependencyRequest{
			WorldID:      worldID,
			EventID:      eventID,
			CauseEventID: causeID,
		}

		var change *services.DependencyChange
		if add {
			change, err = d.Graph.Causal.Add(ctx, req)
		} else {
			change, err = d.Graph.Causal.Remove(ctx, req)
		}
		if err != nil {
			return err
		}

		if globalJSON {
			return printJSON(change)
		}
		switch {
		case !change.Changed:
			fmt.Println("No change.")
		case add:
			fmt.Printf("%s is now caused by %s\n", change.EventID, change.CauseEventID)
		default:
			fmt.Printf("%s is no longer caused by %s\n", change.EventID, change.CauseEventID)
		}
		fmt.Printf("Caused by: %v\n", change.CausedBy)
		return nil
	})
}
