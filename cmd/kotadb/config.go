package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration (file + environment overrides)",
	Run:   runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the resolved config file path",
	Run:   runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)
	printJSON(cfg)
}

func runConfigPath(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	fmt.Println(repoRoot + "/.kotadb/config.json")
}
