//go:build !cgo

package astparse

import (
	"context"
)

// Parser is a stub used when CGO is unavailable; tree-sitter's C bindings
// require it. Parse still returns a Tree so callers don't need a separate
// code path, but Root is always nil and a diagnostic records the reason.
type Parser struct{}

func New() *Parser {
	return &Parser{}
}

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
	return &Tree{
		Source:   source,
		Language: lang,
		Path:     path,
		Diagnostics: []Diagnostic{
			{Message: "tree-sitter unavailable: built without cgo"},
		},
	}, nil
}
