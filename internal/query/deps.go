package query

import "kotadb/internal/scanner"

// DepNode is one reachable file in a search_dependencies walk (§4.7.3).
type DepNode struct {
	Path     string
	Depth    int
	Via      string   // reference_type of the edge that reached this node
	Ancestry []string // ancestor paths from the root to this node's parent, root included
}

// Direction controls which edge endpoint a traversal step follows.
type Direction string

const (
	DirectionForward Direction = "forward" // what this file depends on
	DirectionReverse Direction = "reverse" // what depends on this file
)

type adjacency map[string][]edgeRef

type edgeRef struct {
	target        string
	referenceType string
}

// buildAdjacency loads every edge for a repository and resolves file IDs to
// paths, producing an adjacency list in the requested direction.
func (e *Engine) buildAdjacency(repositoryID string, dir Direction) (adjacency, error) {
	edges, err := e.edges.AllForRepository(repositoryID)
	if err != nil {
		return nil, err
	}
	paths, err := e.files.PathsByID(repositoryID)
	if err != nil {
		return nil, err
	}

	adj := make(adjacency)
	for _, ed := range edges {
		from, to := paths[ed.SourceFileID], paths[ed.TargetFileID]
		if from == "" || to == "" {
			continue
		}
		if dir == DirectionReverse {
			from, to = to, from
		}
		adj[from] = append(adj[from], edgeRef{target: to, referenceType: ed.ReferenceType})
	}
	return adj, nil
}

// SearchDependencies implements search_dependencies (§4.7.3): a recursive
// depth-first walk bounded by depth, tracking the path taken to each node
// rather than a single global visited set, so a node reachable via more
// than one route is reported once per distinct route. Nodes are reported in
// walk order (each route followed to the depth bound before the next), so
// the result is not grouped by depth. A node is skipped only when it
// already appears on the CURRENT path (cycle guard), never just because it
// was seen elsewhere in the walk — so alternate routes through a node stay
// discoverable.
func (e *Engine) SearchDependencies(repositoryID, filePath string, dir Direction, depth int, includeTests bool, referenceTypes []string) ([]DepNode, error) {
	if depth <= 0 {
		depth = 1
	}
	if depth > 5 {
		depth = 5
	}
	adj, err := e.buildAdjacency(repositoryID, dir)
	if err != nil {
		return nil, err
	}
	allowed := toSet(referenceTypes)

	var out []DepNode
	var walk func(node string, d int, via string, ancestry []string)
	walk = func(node string, d int, via string, ancestry []string) {
		if d > 0 {
			if includeTests || !scanner.IsTestPath(node) {
				out = append(out, DepNode{Path: node, Depth: d, Via: via, Ancestry: append([]string{}, ancestry...)})
			}
		}
		if d == depth {
			return
		}
		nextAncestry := append(append([]string{}, ancestry...), node)
		for _, next := range adj[node] {
			if len(allowed) > 0 && !allowed[next.referenceType] {
				continue
			}
			if onPath(nextAncestry, next.target) {
				continue // cycle guard: skip only if already on THIS path
			}
			walk(next.target, d+1, next.referenceType, nextAncestry)
		}
	}
	walk(filePath, 0, "", nil)
	return out, nil
}

func onPath(ancestry []string, node string) bool {
	for _, p := range ancestry {
		if p == node {
			return true
		}
	}
	return false
}

func toSet(vals []string) map[string]bool {
	if len(vals) == 0 {
		return nil
	}
	s := make(map[string]bool, len(vals))
	for _, v := range vals {
		s[v] = true
	}
	return s
}
