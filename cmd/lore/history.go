package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/application/handlers"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent graph actions for a world",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultHistoryLimit, "Maximum number of entries")

	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	ctx := cmd.Context()

	return withStore(ctx, func(s *storeDeps) error {
		worldID, err := requireWorld(s.Worlds)
		if err != nil {
			return err
		}

		entries, err := handlers.NewHistoryHandler(s.relationalDB).Handle(ctx, worldID, limit)
		if err != nil {
			return err
		}

		if globalJSON {
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No history.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %-24s %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Action, formatDetails(e.Details))
		}
		return nil
	})
}

// formatDetails renders audit details as sorted key=value pairs.
func formatDetails(details map[string]any) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, " ")
}
