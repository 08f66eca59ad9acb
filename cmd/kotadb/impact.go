package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kotadb/internal/query"
)

var (
	impactRepository   string
	impactChangeType   string
	impactDescription  string
	impactModify       string
	impactCreate       string
	impactDelete       string
	impactBreaking     bool
	impactFormat       string
)

var impactCmd = &cobra.Command{
	Use:   "impact",
	Short: "Analyze the risk of a proposed change",
	Long: `Analyze the blast radius and risk level of a proposed change (§4.7.4):
transitive dependents, neighboring test files, and a weighted risk score.

Examples:
  kotadb impact --type modify --modify src/api/handler.go --repository myorg/myrepo
  kotadb impact --type delete --delete src/legacy.go --breaking`,
	Run: runImpact,
}

func init() {
	impactCmd.Flags().StringVar(&impactRepository, "repository", "", "Repository id the change applies to")
	impactCmd.Flags().StringVar(&impactChangeType, "type", "modify", "Change type: add, modify, delete")
	impactCmd.Flags().StringVar(&impactDescription, "description", "", "Human description of the change")
	impactCmd.Flags().StringVar(&impactModify, "modify", "", "Comma-separated files being modified")
	impactCmd.Flags().StringVar(&impactCreate, "create", "", "Comma-separated files being created")
	impactCmd.Flags().StringVar(&impactDelete, "delete", "", "Comma-separated files being deleted")
	impactCmd.Flags().BoolVar(&impactBreaking, "breaking", false, "Mark the change as containing breaking changes")
	impactCmd.Flags().StringVar(&impactFormat, "format", "json", "Output format (json, human)")
	rootCmd.AddCommand(impactCmd)
}

func runImpact(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger(impactFormat)
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	change := query.ImpactChange{
		ChangeType:      impactChangeType,
		Description:     impactDescription,
		FilesToModify:   splitNonEmpty(impactModify),
		FilesToCreate:   splitNonEmpty(impactCreate),
		FilesToDelete:   splitNonEmpty(impactDelete),
		BreakingChanges: impactBreaking,
	}

	engine := mustGetEngine(db)
	report, err := engine.AnalyzeChangeImpact(impactRepository, change)
	if err != nil {
		fail(err)
	}

	if impactFormat == "human" {
		fmt.Printf("risk: %s (%.2f)\n%s\n", report.RiskLevel, report.RiskScore, report.Explanation)
		for _, d := range report.Dependents {
			fmt.Printf("  dependent: %s (distance=%d via=%s)\n", d.Path, d.Distance, d.Via)
		}
		for _, t := range report.TestFiles {
			fmt.Printf("  test: %s\n", t)
		}
		return
	}
	printJSON(report)
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
