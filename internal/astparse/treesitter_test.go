//go:build cgo

package astparse

import (
	"context"
	"testing"
)

func TestParse_TypeScript(t *testing.T) {
	source := []byte(`export function add(a: number, b: number): number {
	return a + b
}
`)

	p := New()
	tree, err := p.Parse(context.Background(), "math.ts", source, "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if RootNode(tree) == nil {
		t.Fatal("expected a non-nil root node")
	}
	if len(tree.Diagnostics) != 0 {
		t.Errorf("expected no diagnostics, got %v", tree.Diagnostics)
	}
}

func TestParse_Deterministic(t *testing.T) {
	source := []byte(`const x = 1`)
	p := New()
	t1, err := p.Parse(context.Background(), "a.js", source, "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	t2, err := p.Parse(context.Background(), "a.js", source, "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if RootNode(t1).String() != RootNode(t2).String() {
		t.Error("expected identical parse trees for identical input (I5)")
	}
}

func TestParse_JSONSkipsTreeSitter(t *testing.T) {
	p := New()
	tree, err := p.Parse(context.Background(), "pkg.json", []byte(`{"a":1}`), "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if RootNode(tree) != nil {
		t.Error("expected nil root for JSON")
	}
}

func TestParse_SyntaxErrorReturnsPartialTree(t *testing.T) {
	source := []byte(`function broken( {`)
	p := New()
	tree, err := p.Parse(context.Background(), "broken.js", source, "")
	if err != nil {
		t.Fatalf("Parse should not abort the pipeline on syntax errors: %v", err)
	}
	if len(tree.Diagnostics) == 0 {
		t.Error("expected diagnostics for malformed source")
	}
}
