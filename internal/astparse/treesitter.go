//go:build cgo

package astparse

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Parser wraps a tree-sitter parser for the included languages. The parser
// is pure (§4.4): the same (path, source, language) always yields a
// byte-identical tree, since sitter.Parser.ParseCtx is deterministic over
// fixed grammars with no external state.
type Parser struct {
	parser *sitter.Parser
}

func New() *Parser {
	return &Parser{parser: sitter.NewParser()}
}

// Parse implements the §4.4 contract: parse(path, source, language_hint?).
// An empty language hint falls back to extension sniffing, and to
// JavaScript when the extension is unknown; a non-empty hint naming a
// language without a grammar here returns an error. JSON
// produces an empty tree without invoking tree-sitter, since the three
// Extractors (§4.5) have nothing to extract from a JSON AST today.
func (p *Parser) Parse(ctx context.Context, path string, source []byte, languageHint string) (*Tree, error) {
	lang := Language(languageHint)
	if lang == "" {
		var ok bool
		lang, ok = LanguageFromExtension(extOf(path))
		if !ok {
			lang = LangJavaScript
		}
	}

	if lang == LangJSON {
		return &Tree{Source: source, Language: lang, Path: path}, nil
	}

	tsLang, err := tsLanguage(lang)
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return &Tree{
			Source:   source,
			Language: lang,
			Path:     path,
			Diagnostics: []Diagnostic{
				{Message: fmt.Sprintf("parse error: %s", err)},
			},
		}, nil
	}

	root := tree.RootNode()
	diags := collectErrorNodes(root)
	return &Tree{Root: root, Source: source, Language: lang, Path: path, Diagnostics: diags}, nil
}

func tsLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}

// collectErrorNodes walks the tree for tree-sitter's own ERROR/MISSING
// nodes, surfacing them as diagnostics without discarding the surrounding
// partial tree.
func collectErrorNodes(root *sitter.Node) []Diagnostic {
	if root == nil {
		return nil
	}
	var diags []Diagnostic
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.IsError() || n.IsMissing() {
			diags = append(diags, Diagnostic{
				Message:   fmt.Sprintf("syntax error near %q", n.Type()),
				StartLine: int(n.StartPoint().Row) + 1,
				EndLine:   int(n.EndPoint().Row) + 1,
			})
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return diags
}

// RootNode type-asserts t.Root back to its concrete tree-sitter node,
// available to callers built with cgo (internal/extract).
func RootNode(t *Tree) *sitter.Node {
	if t == nil || t.Root == nil {
		return nil
	}
	n, _ := t.Root.(*sitter.Node)
	return n
}
