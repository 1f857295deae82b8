package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

type exportFlags struct {
	format string
	output string
	types  []string
	edges  bool
}

// graphExport is a snapshot of a world graph.
type graphExport struct {
	WorldID string               `json:"world_id"`
	Nodes   []entities.GraphNode `json:"nodes"`
	Edges   []entities.GraphEdge `json:"edges"`
}

type exporter struct {
	graph  ports.GraphStore
	format string
	output string
}

func newExportCmd() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the world graph to a file",
		Long: `Exports graph nodes and edges to JSON, CSV, or markdown format.

CSV holds one table, so it lists nodes unless --edges is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "Output format (json, csv, markdown)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringSliceVarP(&flags.types, "type", "t", nil, "Only export nodes of these entity types")
	cmd.Flags().BoolVar(&flags.edges, "edges", false, "Export edges instead of nodes (csv only)")

	return cmd
}

func runExport(cmd *cobra.Command, flags exportFlags) error {
	if !slices.Contains(validFormats, flags.format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", flags.format, validFormats)
	}

	types, err := entities.ParseEntityTypes(flags.types)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	return withGraphStore(ctx, func(graph ports.GraphStore, worlds *config.WorldsConfig) error {
		worldID, err := requireWorld(worlds)
		if err != nil {
			return err
		}

		e := &exporter{
			graph:  graph,
			format: flags.format,
			output: flags.output,
		}

		snapshot, err := e.fetchGraph(ctx, worldID, types)
		if err != nil {
			return err
		}

		return e.export(snapshot, flags.edges)
	})
}

func (e *exporter) fetchGraph(ctx context.Context, worldID string, types []entities.EntityType) (*graphExport, error) {
	nodes, err := e.graph.ListNodes(ctx, worldID, types)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}

	if len(nodes) == 0 {
		return nil, fmt.Errorf("no graph nodes found to export (run 'lore build' first)")
	}

	edges, err := e.graph.ListEdges(ctx, worldID, nil)
	if err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}

	return &graphExport{
		WorldID: worldID,
		Nodes:   nodes,
		Edges:   edgesWithin(nodes, edges),
	}, nil
}

// edgesWithin keeps the edges whose endpoints are both in nodes.
func edgesWithin(nodes []entities.GraphNode, edges []entities.GraphEdge) []entities.GraphEdge {
	ids := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = struct{}{}
	}
	kept := make([]entities.GraphEdge, 0, len(edges))
	for _, edge := range edges {
		_, src := ids[edge.SourceNodeID]
		_, dst := ids[edge.TargetNodeID]
		if src && dst {
			kept = append(kept, edge)
		}
	}
	return kept
}

func (e *exporter) export(snapshot *graphExport, edgesOnly bool) (err error) {
	var w io.Writer
	var f *os.File

	if e.output != "" {
		f, err = os.OpenFile(e.output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("creating file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing file: %w", cerr)
			}
		}()
		w = f
	} else {
		w = os.Stdout
	}

	if err := e.formatGraph(w, snapshot, edgesOnly); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if e.output != "" {
		fmt.Printf("Exported %d nodes and %d edges to %s\n", len(snapshot.Nodes), len(snapshot.Edges), e.output)
	}

	return nil
}

func (e *exporter) formatGraph(w io.Writer, snapshot *graphExport, edgesOnly bool) error {
	switch e.format {
	case "json":
		return writeJSON(w, snapshot)
	case "csv":
		if edgesOnly {
			return formatEdgesCSV(w, snapshot.Edges)
		}
		return formatNodesCSV(w, snapshot.Nodes)
	case "markdown":
		return formatMarkdown(w, snapshot)
	default:
		return fmt.Errorf("unknown format: %s", e.format)
	}
}

func formatNodesCSV(w io.Writer, nodes []entities.GraphNode) error {
	writer := csv.NewWriter(w)

	header := []string{"id", "entity_type", "entity_id", "importance_score", "embedded", "semantic_summary"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, n := range nodes {
		row := []string{
			n.ID,
			string(n.EntityType),
			n.EntityID,
			strconv.FormatFloat(n.ImportanceScore, 'f', 4, 64),
			strconv.FormatBool(n.HasEmbedding()),
			n.SemanticSummary,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatEdgesCSV(w io.Writer, edges []entities.GraphEdge) error {
	writer := csv.NewWriter(w)

	header := []string{"id", "source_node_id", "target_node_id", "relationship_type", "strength"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, edge := range edges {
		row := []string{
			edge.ID,
			edge.SourceNodeID,
			edge.TargetNodeID,
			string(edge.RelationshipType),
			strconv.FormatFloat(edge.Strength, 'f', 4, 64),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatMarkdown(w io.Writer, snapshot *graphExport) error {
	refs := make(map[string]string, len(snapshot.Nodes))
	for i := range snapshot.Nodes {
		refs[snapshot.Nodes[i].ID] = snapshot.Nodes[i].Ref().String()
	}

	if _, err := fmt.Fprintf(w, "# World Graph: %s\n\nTotal: %d nodes, %d edges\n\n## Nodes\n\n",
		snapshot.WorldID, len(snapshot.Nodes), len(snapshot.Edges)); err != nil {
		return err
	}

	if _, err := fmt.Fprint(w, "| Type | Entity | Importance | Summary |\n|------|--------|------------|---------|\n"); err != nil {
		return err
	}

	for _, n := range snapshot.Nodes {
		if _, err := fmt.Fprintf(w, "| %s | %s | %.3f | %s |\n",
			n.EntityType,
			escapeMarkdown(n.EntityID),
			n.ImportanceScore,
			escapeMarkdown(truncate(n.SemanticSummary, 120)),
		); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprint(w, "\n## Edges\n\n| Source | Relationship | Target | Strength |\n|--------|--------------|--------|----------|\n"); err != nil {
		return err
	}

	for _, edge := range snapshot.Edges {
		if _, err := fmt.Fprintf(w, "| %s | %s | %s | %.2f |\n",
			escapeMarkdown(refs[edge.SourceNodeID]),
			edge.RelationshipType,
			escapeMarkdown(refs[edge.TargetNodeID]),
			edge.Strength,
		); err != nil {
			return err
		}
	}

	return nil
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
