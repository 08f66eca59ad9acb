package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kotadb/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens",
	Long:  `Create, list, and revoke the bearer tokens the auth pre-handler pipeline validates (§4.8.3).`,
}

var tokenCreateTier string

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API token",
	Long: `Create a new API token for the given tier (free, solo, team) and
print the full bearer token exactly once.

Examples:
  kotadb token create --tier solo`,
	Run: runTokenCreate,
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys (hashes only, no secrets)",
	Run:   runTokenList,
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	Run:   runTokenRevoke,
}

func init() {
	tokenCreateCmd.Flags().StringVar(&tokenCreateTier, "tier", "free", "Tier to assign: free, solo, team")
	tokenCmd.AddCommand(tokenCreateCmd)
	tokenCmd.AddCommand(tokenListCmd)
	tokenCmd.AddCommand(tokenRevokeCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenCreate(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	manager := auth.NewManager(cfg.Auth, db, logger)
	token, keyID, err := manager.CreateKey(auth.Tier(tokenCreateTier))
	if err != nil {
		fail(err)
	}
	fmt.Printf("key_id: %s\ntoken:  %s\n", keyID, token)
	fmt.Println("Store this token now; it is not recoverable once lost.")
}

func runTokenList(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	manager := auth.NewManager(cfg.Auth, db, logger)
	keys, err := manager.ListKeys()
	if err != nil {
		fail(err)
	}
	printJSON(keys)
}

func runTokenRevoke(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	manager := auth.NewManager(cfg.Auth, db, logger)
	if err := manager.RevokeKey(args[0]); err != nil {
		fail(err)
	}
	fmt.Printf("revoked %s\n", args[0])
}
