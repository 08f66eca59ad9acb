package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"kotadb/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize KotaDB configuration",
	Long:  `Creates a .kotadb/config.json with default configuration under the current directory.`,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Reinitialize even if .kotadb/config.json already exists")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	repoRoot := mustGetRepoRoot()
	configPath := filepath.Join(repoRoot, ".kotadb", "config.json")

	if _, err := os.Stat(configPath); err == nil && !initForce {
		fmt.Println("KotaDB already initialized.")
		fmt.Printf("Configuration at: %s\n", configPath)
		fmt.Println("Run 'kotadb init --force' to reinitialize.")
		return nil
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(repoRoot); err != nil {
		fail(err)
	}
	fmt.Printf("Initialized KotaDB configuration at %s\n", configPath)
	return nil
}
