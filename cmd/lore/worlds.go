package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

func newWorldsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worlds",
		Short: "Manage worlds",
		RunE:  runWorldsList,
	}

	cmd.AddCommand(
		newWorldsListCmd(),
		newWorldsCreateCmd(),
		newWorldsDeleteCmd(),
	)

	return cmd
}

func newWorldsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all worlds",
		RunE:  runWorldsList,
	}
}

func runWorldsList(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	worlds, err := config.LoadWorlds(cwd)
	if err != nil {
		return fmt.Errorf("loading worlds: %w", err)
	}

	if globalJSON {
		return printJSON(worlds.Worlds)
	}
	printWorlds(os.Stdout, worlds)
	return nil
}

func printWorlds(w io.Writer, worlds *config.WorldsConfig) {
	if len(worlds.Worlds) == 0 {
		fmt.Fprintln(w, "No worlds configured.")
		fmt.Fprintln(w, "Use 'lore worlds create NAME' to create a world.")
		return
	}

	fmt.Fprintf(w, "%-20s %-20s %s\n", "ID", "NAME", "DESCRIPTION")
	fmt.Fprintf(w, "%-20s %-20s %s\n", "--", "----", "-----------")

	for _, id := range worlds.IDs() {
		world := worlds.Worlds[id]
		fmt.Fprintf(w, "%-20s %-20s %s\n", id, world.Name, world.Description)
	}
}

func newWorldsCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new world",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorldsCreate(args[0], description)
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "World description")

	return cmd
}

func runWorldsCreate(name string, description string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if !config.Exists(cwd) {
		if err := config.WriteDefault(cwd); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}
		fmt.Printf("Initialized lore in %s\n", config.ConfigDir(cwd))
	}

	id, err := createWorld(cwd, name, description)
	if err != nil {
		return err
	}

	fmt.Printf("Created world %q (id: %s)\n", name, id)
	return nil
}

// createWorld registers a world in the worlds file and returns its ID.
func createWorld(basePath, name, description string) (string, error) {
	worlds, err := config.LoadWorlds(basePath)
	if err != nil {
		return "", fmt.Errorf("loading worlds: %w", err)
	}

	id, err := worlds.Add(name, description)
	if err != nil {
		return "", err
	}

	if err := worlds.Save(basePath); err != nil {
		return "", fmt.Errorf("saving worlds: %w", err)
	}

	return id, nil
}

func newWorldsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a world and its graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorldsDelete(cmd, args[0], force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete even if the world has a built graph")

	return cmd
}

func runWorldsDelete(cmd *cobra.Command, name string, force bool) error {
	ctx := cmd.Context()

	return withStore(ctx, func(s *storeDeps) error {
		id, err := s.Worlds.Resolve(name)
		if err != nil {
			return err
		}

		if !force {
			count, err := s.relationalDB.CountNodes(ctx, id)
			if err == nil && count > 0 {
				return fmt.Errorf("world %q has %d graph nodes, use --force to delete", id, count)
			}
		}

		if err := s.WorldHandler.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting world data: %w", err)
		}

		s.Worlds.Remove(id)
		if err := s.Worlds.Save(s.BasePath); err != nil {
			return fmt.Errorf("saving worlds: %w", err)
		}

		fmt.Printf("Deleted world %q\n", id)
		return nil
	})
}
