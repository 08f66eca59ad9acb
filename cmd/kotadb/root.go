package main

import (
	"github.com/spf13/cobra"

	"kotadb/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "kotadb",
	Short: "KotaDB - local-first code intelligence engine",
	Long: `KotaDB indexes a repository into symbols, references, and dependency
edges, serves code search and change-impact analysis over HTTP and the
MCP tool protocol, and keeps a searchable log of engineering decisions,
failures, patterns, and insights alongside the code itself.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("KotaDB version {{.Version}}\n")
}
