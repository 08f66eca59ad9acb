// Package astparse implements the AST Parser (§4.4): it turns a scanned
// file's source bytes into a language-tagged tree-sitter syntax tree,
// returning partial trees with diagnostics on parse errors rather than
// aborting the pipeline.
package astparse

import (
	"strings"
)

// Language is the fixed extension-tagged language set from §4.3's included
// extensions; JSON has no executable declarations, so it parses to an
// empty tree rather than through tree-sitter.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJSON       Language = "json"
)

// LanguageFromExtension maps a §4.3 included extension to a Language.
func LanguageFromExtension(ext string) (Language, bool) {
	switch strings.ToLower(ext) {
	case ".js", ".cjs", ".mjs", ".jsx":
		return LangJavaScript, true
	case ".ts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	case ".json":
		return LangJSON, true
	default:
		return "", false
	}
}

// Diagnostic records one parse-time error; it never aborts the pipeline
// (§4.4): the tree returned alongside it is still usable, just partial.
type Diagnostic struct {
	Message   string
	StartLine int
	EndLine   int
}

// Tree is a parsed file: its root node, the language it was parsed as, and
// any diagnostics produced along the way. Root holds a *sitter.Node on cgo
// builds and is nil otherwise (see treesitter.go / stub.go); callers that
// need to walk it go through RootNode (cgo builds) rather than asserting
// the type.
type Tree struct {
	Root        interface{}
	Source      []byte
	Language    Language
	Path        string
	Diagnostics []Diagnostic
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return path[idx:]
}
