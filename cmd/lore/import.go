package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/application/handlers"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

type importFlags struct {
	format string
	dryRun bool
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import world entities from JSON, YAML or CSV",
		Long:  "Imports characters, locations, events, stories, beats and their causal links into a world. Run 'lore build' afterwards to refresh the graph.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "auto", "File format (json, yaml, csv, auto)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Validate without saving")

	return cmd
}

func runImport(cmd *cobra.Command, filePath string, flags importFlags) error {
	ctx := cmd.Context()

	return withImportHandler(cmd, func(handler *handlers.ImportHandler, worldID string) error {
		opts := handlers.ImportOptions{
			Format: flags.format,
			DryRun: flags.dryRun,
		}

		if !globalJSON {
			fmt.Printf("Importing %s into %s...\n", filePath, worldID)
		}

		result, err := handler.Handle(ctx, worldID, filePath, opts)
		if err != nil {
			return fmt.Errorf("importing file: %w", err)
		}

		if globalJSON {
			return printJSON(result)
		}
		printImportResult(result, flags.dryRun)
		return nil
	})
}

func printImportResult(result *services.ImportResult, dryRun bool) {
	if len(result.Errors) > 0 {
		fmt.Printf("\nValidation errors (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  %s\n", e.Error())
		}
	}

	fmt.Println()
	if dryRun {
		fmt.Printf("Dry run: %d entities would be imported", result.Imported)
	} else {
		fmt.Printf("Imported: %d entities", result.Imported)
	}

	if result.Dependencies > 0 {
		fmt.Printf(", %d causal links", result.Dependencies)
	}

	if len(result.Errors) > 0 {
		fmt.Printf(", %d errors", len(result.Errors))
	}

	fmt.Println()
}

// withImportHandler creates an ImportHandler for the selected world.
// Imports write source entities only, so no model provider is needed.
func withImportHandler(cmd *cobra.Command, fn func(*handlers.ImportHandler, string) error) error {
	return withStore(cmd.Context(), func(s *storeDeps) error {
		worldID, err := requireWorld(s.Worlds)
		if err != nil {
			return err
		}
		importService := services.NewImportService(s.relationalDB, s.relationalDB, s.relationalDB, s.Logger)
		return fn(handlers.NewImportHandler(importService), worldID)
	})
}
