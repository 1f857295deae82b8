package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/application/handlers"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
	embedder "github.com/ersonp/lore-graph/internal/infrastructure/embedder/openai"
	"github.com/ersonp/lore-graph/internal/infrastructure/vectordb/qdrant"
)

func newInitCmd() *cobra.Command {
	var withQdrant bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new lore project",
		Long:  "Creates a .lore directory with default configuration. With --qdrant it also enables and prepares the Qdrant vector index.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, withQdrant)
		},
	}

	cmd.Flags().BoolVar(&withQdrant, "qdrant", false, "Enable the Qdrant vector index and create its collection")

	return cmd
}

func runInit(cmd *cobra.Command, withQdrant bool) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	var collectionManager ports.CollectionManager
	if withQdrant {
		qdrantCfg := config.Default().Qdrant
		qdrantCfg.Enabled = true
		repo, err := qdrant.NewRepository(qdrantCfg)
		if err != nil {
			return fmt.Errorf("connecting to qdrant: %w", err)
		}
		defer repo.Close()
		collectionManager = repo
	}

	result, err := handlers.NewInitHandler(collectionManager, embedder.VectorSize).Handle(ctx, cwd)
	if err != nil {
		return err
	}

	fmt.Printf("Created %s\n", result.ConfigPath)

	if withQdrant {
		if err := enableQdrant(result.ConfigPath); err != nil {
			return err
		}
		fmt.Printf("Created Qdrant collection: %s\n", result.CollectionName)
	}

	fmt.Println("Lore initialized successfully!")
	fmt.Println("Use 'lore worlds create NAME' to create a world.")

	return nil
}

// enableQdrant flips the qdrant switch in a freshly written default config.
// The rest of the file is left untouched.
func enableQdrant(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	updated := strings.Replace(string(data), "qdrant:\n  enabled: false", "qdrant:\n  enabled: true", 1)
	if err := os.WriteFile(configPath, []byte(updated), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
