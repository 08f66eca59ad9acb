//go:build cgo

package extract

import (
	"context"
	"testing"

	"kotadb/internal/astparse"
)

func parse(t *testing.T, path, src string) *astparse.Tree {
	t.Helper()
	p := astparse.New()
	tree, err := p.Parse(context.Background(), path, []byte(src), "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return tree
}

func TestExtractSymbols(t *testing.T) {
	tree := parse(t, "widget.ts", `
/** Renders a widget. */
export function render(name: string): string {
	return name
}

export class Widget {
	mount() {}
}

export const count = 1
`)

	symbols := ExtractSymbols(tree)
	names := map[string]string{}
	for _, s := range symbols {
		names[s.Name] = s.Kind
	}

	if names["render"] != KindFunction {
		t.Errorf("expected render to be a function, got %v", names["render"])
	}
	if names["Widget"] != KindClass {
		t.Errorf("expected Widget to be a class, got %v", names["Widget"])
	}
	if names["count"] != KindConstant {
		t.Errorf("expected count to be a constant, got %v", names["count"])
	}

	for _, s := range symbols {
		if s.Name == "render" && s.JSDoc != "Renders a widget." {
			t.Errorf("expected doc comment to be captured, got %q", s.JSDoc)
		}
	}
}

func TestExtractReferences_Import(t *testing.T) {
	tree := parse(t, "app.ts", `import { foo, bar } from "./lib"`)
	refs := ExtractReferences(tree)
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	if refs[0].ToSpecifier != "./lib" {
		t.Errorf("expected specifier './lib', got %q", refs[0].ToSpecifier)
	}
	if refs[0].ReferenceType != RefImport {
		t.Errorf("expected import reference type, got %q", refs[0].ReferenceType)
	}
	if len(refs[0].Symbols) != 2 {
		t.Errorf("expected 2 imported symbols, got %v", refs[0].Symbols)
	}
}

func TestExtractReferences_SideEffectImport(t *testing.T) {
	tree := parse(t, "app.ts", `import "./polyfills"`)
	refs := ExtractReferences(tree)
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	if len(refs[0].Symbols) != 0 {
		t.Errorf("expected no symbols for a side-effect import, got %v", refs[0].Symbols)
	}
}

func TestExtractReferences_ExportAll(t *testing.T) {
	tree := parse(t, "index.ts", `export * from "./widget"`)
	refs := ExtractReferences(tree)
	if len(refs) != 1 || refs[0].ReferenceType != RefExportAll {
		t.Fatalf("expected one export_all reference, got %+v", refs)
	}
}

func TestExtractReferences_Require(t *testing.T) {
	tree := parse(t, "legacy.js", `const fs = require("fs")`)
	refs := ExtractReferences(tree)
	found := false
	for _, r := range refs {
		if r.ReferenceType == RefRequire && r.ToSpecifier == "fs" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a require reference to fs, got %+v", refs)
	}
}

func TestResolver_RelativeAndAlias(t *testing.T) {
	files := map[string]bool{
		"src/lib/widget.ts":  true,
		"src/app/index.ts":   true,
	}
	resolver := NewResolver(map[string]string{"@lib/": "src/lib/"}, files)

	if got := resolver.Resolve("src/app/main.ts", "../lib/widget"); got != "src/lib/widget.ts" {
		t.Errorf("relative resolve: got %q", got)
	}
	if got := resolver.Resolve("src/app/main.ts", "@lib/widget"); got != "src/lib/widget.ts" {
		t.Errorf("alias resolve: got %q", got)
	}
	if got := resolver.Resolve("src/app/main.ts", "react"); got != "" {
		t.Errorf("expected unresolved bare package import, got %q", got)
	}
}

func TestBuildEdges_Deterministic(t *testing.T) {
	files := map[string]bool{"src/b.ts": true, "src/a.ts": true}
	resolver := NewResolver(nil, files)
	fileRefs := map[string][]Reference{
		"src/a.ts": {{ToSpecifier: "./b", ReferenceType: RefImport}},
		"src/b.ts": {{ToSpecifier: "./a", ReferenceType: RefImport}},
	}

	e1 := BuildEdges(resolver, fileRefs)
	e2 := BuildEdges(resolver, fileRefs)
	if len(e1) != len(e2) {
		t.Fatalf("expected stable edge count across runs")
	}
	for i := range e1 {
		if e1[i] != e2[i] {
			t.Errorf("expected identical edge order (determinism), index %d: %+v vs %+v", i, e1[i], e2[i])
		}
	}
	if e1[0].SourcePath != "src/a.ts" {
		t.Errorf("expected edges ordered by source path, got %q first", e1[0].SourcePath)
	}
}
