package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeSearchResults(w io.Writer, results []services.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching entities.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. [%s] %s (relevance: %.2f, importance: %.2f)\n",
			i+1, r.EntityType, r.EntityID, r.RelevanceScore, r.ImportanceScore)
		if r.SemanticSummary != "" {
			fmt.Fprintf(w, "   %s\n", truncate(r.SemanticSummary, 100))
		}
	}
}

func writeRelatedNodes(w io.Writer, nodes []services.RelatedNode) {
	if len(nodes) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, n := range nodes {
		fmt.Fprintf(w, "  %s%s (importance: %.2f)\n",
			strings.Repeat("  ", max(n.Depth-1, 0)), n.Ref(), n.ImportanceScore)
	}
}

func writeStatus(w io.Writer, status *entities.SyncStatus) {
	fmt.Fprintf(w, "World:            %s\n", status.WorldID)
	fmt.Fprintf(w, "Nodes:            %d\n", status.NodeCount)
	fmt.Fprintf(w, "Edges:            %d\n", status.EdgeCount)
	fmt.Fprintf(w, "Last full build:  %s\n", formatTime(status.LastFullSync))
	fmt.Fprintf(w, "Last incremental: %s\n", formatTime(status.LastIncrementalSync))
	if status.SyncInProgress {
		fmt.Fprintf(w, "Build running since %s\n", formatTime(status.SyncStartedAt))
	}
	if status.LastError != "" {
		fmt.Fprintf(w, "Last error:       %s\n", status.LastError)
	}
}

func writeBuildReport(w io.Writer, report *entities.BuildReport) {
	kind := "Incremental"
	if report.FullRebuild {
		kind = "Full"
	}
	fmt.Fprintf(w, "%s build of %s finished in %s\n", kind, report.WorldID, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Nodes: %d created, %d updated, %d removed\n",
		report.NodesCreated, report.NodesUpdated, report.NodesRemoved)
	fmt.Fprintf(w, "  Edges: %d created, %d removed\n", report.EdgesCreated, report.EdgesRemoved)
	if len(report.FailedEntities) > 0 {
		fmt.Fprintf(w, "  Not embedded (%d):", len(report.FailedEntities))
		for _, ref := range report.FailedEntities {
			fmt.Fprintf(w, " %s", ref)
		}
		fmt.Fprintln(w)
	}
}

func writeChainLinks(w io.Writer, title string, links []services.ChainLink) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(links) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, l := range links {
		fmt.Fprintf(w, "  %s%s", strings.Repeat("  ", max(l.Depth-1, 0)), l.EventID)
		if l.SemanticSummary != "" {
			fmt.Fprintf(w, ": %s", truncate(l.SemanticSummary, 80))
		}
		fmt.Fprintln(w)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
