package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAliasMap_MissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	aliases, err := LoadAliasMap(dir)
	if err != nil {
		t.Fatalf("LoadAliasMap: %v", err)
	}
	if len(aliases) != 0 {
		t.Fatalf("expected an empty map for a missing manifest, got %+v", aliases)
	}
}

func TestLoadAliasMap_ParsesManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := "[aliases]\n\"@app/\" = \"src/app/\"\n\"@lib/\" = \"src/lib/\"\n"
	if err := os.WriteFile(filepath.Join(dir, "kotadb.toml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	aliases, err := LoadAliasMap(dir)
	if err != nil {
		t.Fatalf("LoadAliasMap: %v", err)
	}
	if aliases["@app/"] != "src/app/" || aliases["@lib/"] != "src/lib/" {
		t.Fatalf("unexpected alias map: %+v", aliases)
	}
}

func TestLoadAliasMap_MalformedManifestErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "kotadb.toml"), []byte("not valid toml :::"), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	if _, err := LoadAliasMap(dir); err == nil {
		t.Fatal("expected a malformed manifest to error")
	}
}
