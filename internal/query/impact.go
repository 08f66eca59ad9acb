package query

import (
	"fmt"
	"math"

	"kotadb/internal/scanner"
)

// RiskLevel mirrors the teacher's three-tier classification (§4.7.4).
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// RiskFactor is one weighted input to the overall score, kept around so the
// explanation can cite which factors drove the verdict.
type RiskFactor struct {
	Name   string
	Weight float64
	Value  float64
}

// ImpactChange describes one proposed file change (§4.7.4).
type ImpactChange struct {
	ChangeType      string // "add", "modify", "delete"
	Description     string
	FilesToModify   []string
	FilesToCreate   []string
	FilesToDelete   []string
	BreakingChanges bool
}

// DependentFile is a file transitively affected by a proposed change.
type DependentFile struct {
	Path     string
	Distance int
	Via      string
}

// ImpactReport is the result of analyze_change_impact.
type ImpactReport struct {
	Dependents  []DependentFile
	TestFiles   []string
	RiskLevel   RiskLevel
	RiskScore   float64
	Factors     []RiskFactor
	Explanation string
}

const impactDependentsDepth = 2

// AnalyzeChangeImpact implements analyze_change_impact (§4.7.4): it finds
// every file transitively depending on the files being modified or deleted
// (up to depth 2), the test files neighboring files being modified or
// created, and a weighted risk score in the same shape as the teacher's
// ComputeRiskScore — visibility stands in for "has breaking changes
// declared", direct-caller count and module spread come from the dependent
// set the walk above just produced.
func (e *Engine) AnalyzeChangeImpact(repositoryID string, change ImpactChange) (*ImpactReport, error) {
	affected := dedupeAppend(change.FilesToModify, change.FilesToDelete)

	seen := make(map[string]bool)
	var dependents []DependentFile
	for _, f := range affected {
		nodes, err := e.SearchDependencies(repositoryID, f, DirectionReverse, impactDependentsDepth, true, nil)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			key := n.Path
			if seen[key] {
				continue
			}
			seen[key] = true
			dependents = append(dependents, DependentFile{Path: n.Path, Distance: n.Depth, Via: n.Via})
		}
	}

	testNeighbors := dedupeAppend(change.FilesToModify, change.FilesToCreate)
	var testFiles []string
	testSeen := make(map[string]bool)
	for _, f := range testNeighbors {
		nodes, err := e.SearchDependencies(repositoryID, f, DirectionReverse, 1, true, nil)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if isTestFile(n.Path) && !testSeen[n.Path] {
				testSeen[n.Path] = true
				testFiles = append(testFiles, n.Path)
			}
		}
	}

	score, level, factors, explanation := computeRiskScore(change, dependents, testFiles)
	return &ImpactReport{
		Dependents:  dependents,
		TestFiles:   testFiles,
		RiskLevel:   level,
		RiskScore:   score,
		Factors:     factors,
		Explanation: explanation,
	}, nil
}

func computeRiskScore(change ImpactChange, dependents []DependentFile, testFiles []string) (float64, RiskLevel, []RiskFactor, string) {
	directCallers := 0
	for _, d := range dependents {
		if d.Distance == 1 {
			directCallers++
		}
	}

	factors := []RiskFactor{
		{Name: "breaking_changes_declared", Weight: 0.3, Value: boolValue(change.BreakingChanges)},
		{Name: "direct_dependents", Weight: 0.35, Value: logScale(directCallers, 20)},
		{Name: "transitive_spread", Weight: 0.25, Value: logScale(len(dependents), 9)},
		{Name: "has_test_coverage", Weight: 0.1, Value: 1 - boolValue(len(testFiles) > 0)},
	}

	var score float64
	for _, f := range factors {
		score += f.Weight * f.Value
	}

	level := determineRiskLevel(score)
	explanation := fmt.Sprintf(
		"%s risk: %d direct dependent(s), %d transitive dependent(s) total, %d test file(s) nearby.",
		level, directCallers, len(dependents), len(testFiles))
	return score, level, factors, explanation
}

func determineRiskLevel(score float64) RiskLevel {
	switch {
	case score >= 0.7:
		return RiskHigh
	case score >= 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// logScale mirrors the teacher's logarithmic caller/module scaling: a count
// of `cap` maps to a value of 1.0, with diminishing returns below it so a
// handful of dependents doesn't already read as maximal risk.
func logScale(count, cap int) float64 {
	if count <= 0 {
		return 0
	}
	v := math.Log10(float64(count)+1) / math.Log10(float64(cap)+1)
	if v > 1 {
		return 1
	}
	return v
}

func isTestFile(path string) bool {
	return scanner.IsTestPath(path)
}

func dedupeAppend(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
