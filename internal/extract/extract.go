// Package extract implements the three Extractors (§4.5): pure passes over
// a parsed astparse.Tree that each produce rows for the Store. All three
// are deterministic — same AST, same rows in the same order — which lets
// the Indexer (§4.6) treat a no-op reindex as a true no-op (I5).
package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"kotadb/internal/astparse"
)

// Symbol is one named declaration extracted from a file (§4.5).
type Symbol struct {
	Name  string
	Kind  string // function | method | class | interface | type | variable | constant
	Line  int
	JSDoc string
}

// Reference is one module-level import or re-export (§4.5).
type Reference struct {
	ToSpecifier   string // module specifier as written, unresolved
	Symbols       []string
	ReferenceType string // import | re_export | export_all | dynamic_import | require
	IsTypeOnly    bool
}

const (
	KindFunction  = "function"
	KindMethod    = "method"
	KindClass     = "class"
	KindInterface = "interface"
	KindType      = "type"
	KindVariable  = "variable"
	KindConstant  = "constant"
)

const (
	RefImport         = "import"
	RefReExport       = "re_export"
	RefExportAll      = "export_all"
	RefDynamicImport  = "dynamic_import"
	RefRequire        = "require"
)

var functionNodeTypes = map[string]bool{
	"function_declaration":           true,
	"function_expression":            true,
	"generator_function_declaration": true,
	"method_definition":               true,
	"arrow_function":                  true,
}

var typeNodeTypes = map[string]bool{
	"class_declaration":       true,
	"interface_declaration":   true,
	"type_alias_declaration":  true,
}

var declaratorKinds = map[string]string{
	"const": KindConstant,
	"let":   KindVariable,
	"var":   KindVariable,
}

// ExtractSymbols runs the symbol extractor pass over a parsed tree.
func ExtractSymbols(tree *astparse.Tree) []Symbol {
	root := astparse.RootNode(tree)
	if root == nil {
		return nil
	}
	source := tree.Source

	var symbols []Symbol
	var walk func(n *sitter.Node, parentDeclarator string)
	walk = func(n *sitter.Node, parentDeclarator string) {
		if n == nil {
			return
		}

		switch {
		case functionNodeTypes[n.Type()]:
			if name := functionName(n, source); name != "" {
				kind := KindFunction
				if n.Type() == "method_definition" {
					kind = KindMethod
				}
				symbols = append(symbols, Symbol{
					Name:  name,
					Kind:  kind,
					Line:  int(n.StartPoint().Row) + 1,
					JSDoc: precedingDocComment(n, source),
				})
			}
		case typeNodeTypes[n.Type()]:
			if name := fieldText(n, "name", source); name != "" {
				kind := KindType
				switch n.Type() {
				case "class_declaration":
					kind = KindClass
				case "interface_declaration":
					kind = KindInterface
				}
				symbols = append(symbols, Symbol{
					Name:  name,
					Kind:  kind,
					Line:  int(n.StartPoint().Row) + 1,
					JSDoc: precedingDocComment(n, source),
				})
			}
		case n.Type() == "variable_declaration" || n.Type() == "lexical_declaration":
			declKind := declaratorKinds[firstKeyword(n, source)]
			if declKind == "" {
				declKind = KindVariable
			}
			for i := 0; i < int(n.ChildCount()); i++ {
				child := n.Child(i)
				if child != nil && child.Type() == "variable_declarator" {
					if name := fieldText(child, "name", source); name != "" {
						symbols = append(symbols, Symbol{
							Name:  name,
							Kind:  declKind,
							Line:  int(n.StartPoint().Row) + 1,
							JSDoc: precedingDocComment(n, source),
						})
					}
				}
			}
		}

		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), "")
		}
	}
	walk(root, "")
	return symbols
}

func functionName(n *sitter.Node, source []byte) string {
	if name := fieldText(n, "name", source); name != "" {
		return name
	}
	// Arrow functions and anonymous function expressions assigned to a
	// variable take their name from the enclosing declarator.
	parent := n.Parent()
	if parent != nil && parent.Type() == "variable_declarator" {
		return fieldText(parent, "name", source)
	}
	return ""
}

func fieldText(n *sitter.Node, field string, source []byte) string {
	fn := n.ChildByFieldName(field)
	if fn == nil {
		return ""
	}
	return string(source[fn.StartByte():fn.EndByte()])
}

func firstKeyword(n *sitter.Node, source []byte) string {
	if n.ChildCount() == 0 {
		return ""
	}
	first := n.Child(0)
	return string(source[first.StartByte():first.EndByte()])
}

// precedingDocComment returns the comment immediately above a declaration,
// stripped of comment delimiters, or "" if none is adjacent.
func precedingDocComment(n *sitter.Node, source []byte) string {
	parent := n.Parent()
	// An exported declaration sits inside an export_statement; its doc
	// comment precedes the export statement, not the declaration.
	if parent != nil && parent.Type() == "export_statement" {
		n = parent
		parent = n.Parent()
	}
	if parent == nil {
		return ""
	}
	var prev *sitter.Node
	for i := 0; i < int(parent.ChildCount()); i++ {
		child := parent.Child(i)
		if child == n {
			break
		}
		prev = child
	}
	if prev == nil || prev.Type() != "comment" {
		return ""
	}
	// Only treat it as a doc comment if it's on the line(s) immediately
	// preceding the declaration, not separated by a blank line.
	if n.StartPoint().Row-prev.EndPoint().Row > 1 {
		return ""
	}
	text := string(source[prev.StartByte():prev.EndByte()])
	text = strings.TrimPrefix(text, "/**")
	text = strings.TrimPrefix(text, "/*")
	text = strings.TrimPrefix(text, "//")
	text = strings.TrimSuffix(text, "*/")
	return strings.TrimSpace(text)
}
