package extract

import (
	"path"
	"sort"
	"strings"
)

// DependencyEdge is a resolved Reference: a concrete source-file-to-
// target-file edge (§4.5). Unresolved specifiers remain as bare References
// without a materialized edge.
type DependencyEdge struct {
	SourcePath    string
	TargetPath    string
	ReferenceType string
}

// Resolver resolves module specifiers to concrete file paths, honoring a
// configured alias map (path aliases like "@x/*"), relative paths, package
// entry points, and extensionless lookup (§4.5).
type Resolver struct {
	// AliasMap maps a prefix like "@app/" to a root-relative directory like
	// "src/app/".
	AliasMap map[string]string
	// Files is the set of indexed repository-relative file paths this
	// repository knows about, used to test candidate resolutions.
	Files map[string]bool
}

func NewResolver(aliasMap map[string]string, files map[string]bool) *Resolver {
	return &Resolver{AliasMap: aliasMap, Files: files}
}

var lookupSuffixes = []string{
	"", ".ts", ".tsx", ".js", ".jsx",
	"/index.ts", "/index.tsx", "/index.js", "/index.jsx",
}

// Resolve turns a specifier as written in a source file at sourcePath into
// a concrete repository-relative target path, or "" if it cannot be
// resolved (e.g. a bare package-registry import with no vendored source).
func (r *Resolver) Resolve(sourcePath, specifier string) string {
	if specifier == "" {
		return ""
	}

	candidate := specifier
	switch {
	case strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../"):
		candidate = path.Join(path.Dir(sourcePath), specifier)
	case r.aliasPrefix(specifier) != "":
		prefix := r.aliasPrefix(specifier)
		rest := strings.TrimPrefix(specifier, prefix)
		candidate = path.Join(r.AliasMap[prefix], rest)
	default:
		// A bare specifier ("react", "@scope/pkg") is a package-registry
		// import unless it happens to match a path relative to the repo
		// root (monorepo-internal package layouts sometimes do).
		candidate = specifier
	}
	candidate = path.Clean(candidate)

	for _, suffix := range lookupSuffixes {
		try := candidate + suffix
		if r.Files[try] {
			return try
		}
	}
	return ""
}

func (r *Resolver) aliasPrefix(specifier string) string {
	for prefix := range r.AliasMap {
		if strings.HasPrefix(specifier, prefix) {
			return prefix
		}
	}
	return ""
}

// BuildEdges runs the dependency extractor (§4.5) over every file's
// references for a repository, producing the resolved edge set. Rows are
// emitted in (sourcePath, targetPath) order for determinism.
func BuildEdges(resolver *Resolver, fileRefs map[string][]Reference) []DependencyEdge {
	var sourcePaths []string
	for p := range fileRefs {
		sourcePaths = append(sourcePaths, p)
	}
	sort.Strings(sourcePaths)

	var edges []DependencyEdge
	for _, src := range sourcePaths {
		refs := fileRefs[src]
		for _, ref := range refs {
			target := resolver.Resolve(src, ref.ToSpecifier)
			if target == "" {
				continue
			}
			edges = append(edges, DependencyEdge{
				SourcePath:    src,
				TargetPath:    target,
				ReferenceType: ref.ReferenceType,
			})
		}
	}
	return edges
}
