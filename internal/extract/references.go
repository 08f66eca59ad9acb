package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"kotadb/internal/astparse"
)

// ExtractReferences runs the reference extractor pass (§4.5): one Reference
// per module-level import or re-export, recording the module specifier as
// written (not yet resolved to a file).
func ExtractReferences(tree *astparse.Tree) []Reference {
	root := astparse.RootNode(tree)
	if root == nil {
		return nil
	}
	source := tree.Source

	var refs []Reference
	for i := 0; i < int(root.ChildCount()); i++ {
		refs = append(refs, topLevelRefs(root.Child(i), source)...)
	}
	refs = append(refs, dynamicAndRequireRefs(root, source)...)
	return refs
}

func topLevelRefs(n *sitter.Node, source []byte) []Reference {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "import_statement":
		return []Reference{importStatementRef(n, source)}
	case "export_statement":
		if ref, ok := exportStatementRef(n, source); ok {
			return []Reference{ref}
		}
	}
	return nil
}

func importStatementRef(n *sitter.Node, source []byte) Reference {
	spec := fieldText(n, "source", source)
	spec = unquote(spec)

	isTypeOnly := false
	var symbols []string

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "import":
			// keyword, possibly followed by "type" for `import type {...}`
		case "type":
			isTypeOnly = true
		case "import_clause":
			symbols = append(symbols, importClauseNames(child, source)...)
		}
	}

	return Reference{
		ToSpecifier:   spec,
		Symbols:       symbols,
		ReferenceType: RefImport,
		IsTypeOnly:    isTypeOnly,
	}
}

func importClauseNames(n *sitter.Node, source []byte) []string {
	var names []string
	var walk func(*sitter.Node)
	walk = func(c *sitter.Node) {
		if c == nil {
			return
		}
		switch c.Type() {
		case "identifier":
			names = append(names, string(source[c.StartByte():c.EndByte()]))
		case "import_specifier":
			if alias := c.ChildByFieldName("alias"); alias != nil {
				names = append(names, string(source[alias.StartByte():alias.EndByte()]))
			} else if name := c.ChildByFieldName("name"); name != nil {
				names = append(names, string(source[name.StartByte():name.EndByte()]))
			}
		case "namespace_import":
			names = append(names, "*")
		default:
			for i := 0; i < int(c.ChildCount()); i++ {
				walk(c.Child(i))
			}
		}
	}
	walk(n)
	return names
}

// exportStatementRef handles `export { x } from "y"`, `export * from "y"`,
// and `export * as ns from "y"` — the re-export and export_all forms.
func exportStatementRef(n *sitter.Node, source []byte) (Reference, bool) {
	sourceField := n.ChildByFieldName("source")
	if sourceField == nil {
		return Reference{}, false
	}
	spec := unquote(string(source[sourceField.StartByte():sourceField.EndByte()]))

	isTypeOnly := false
	isStar := false
	var symbols []string

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "type":
			isTypeOnly = true
		case "*":
			isStar = true
		case "export_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				spec := child.Child(j)
				if spec != nil && spec.Type() == "export_specifier" {
					if name := spec.ChildByFieldName("name"); name != nil {
						symbols = append(symbols, string(source[name.StartByte():name.EndByte()]))
					}
				}
			}
		}
	}

	refType := RefReExport
	if isStar {
		refType = RefExportAll
	}
	return Reference{
		ToSpecifier:   spec,
		Symbols:       symbols,
		ReferenceType: refType,
		IsTypeOnly:    isTypeOnly,
	}, true
}

// dynamicAndRequireRefs walks the whole tree (not just top-level) for
// `import(...)` calls and `require(...)` calls, which can appear nested
// inside function bodies.
func dynamicAndRequireRefs(root *sitter.Node, source []byte) []Reference {
	var refs []Reference
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call_expression" {
			fn := n.ChildByFieldName("function")
			args := n.ChildByFieldName("arguments")
			if fn != nil && args != nil && args.ChildCount() > 0 {
				fnText := string(source[fn.StartByte():fn.EndByte()])
				firstArg := firstStringArg(args, source)
				if firstArg != "" {
					switch fnText {
					case "import":
						refs = append(refs, Reference{ToSpecifier: firstArg, ReferenceType: RefDynamicImport})
					case "require":
						refs = append(refs, Reference{ToSpecifier: firstArg, ReferenceType: RefRequire})
					}
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return refs
}

func firstStringArg(args *sitter.Node, source []byte) string {
	for i := 0; i < int(args.ChildCount()); i++ {
		c := args.Child(i)
		if c != nil && c.Type() == "string" {
			return unquote(string(source[c.StartByte():c.EndByte()]))
		}
	}
	return ""
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'' || first == '`') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}
