package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// AliasManifest is the optional kotadb.toml path-alias manifest (§4.5): it
// maps a specifier prefix like "@app/" to a repository-relative directory,
// the same alias table a tsconfig.json "paths" block encodes, expressed as
// a small standalone TOML file so the Indexer doesn't need a
// TypeScript-aware config parser just to resolve path aliases.
type AliasManifest struct {
	Aliases map[string]string `toml:"aliases"`
}

// LoadAliasMap reads <repoRoot>/kotadb.toml and returns its alias table, or
// an empty map if the file doesn't exist. A malformed manifest is reported
// as an error rather than silently ignored, since an alias typo would
// otherwise only surface much later as an unresolved dependency edge.
func LoadAliasMap(repoRoot string) (map[string]string, error) {
	path := filepath.Join(repoRoot, "kotadb.toml")
	if _, err := os.Stat(path); err != nil {
		return map[string]string{}, nil
	}
	var manifest AliasManifest
	if _, err := toml.DecodeFile(path, &manifest); err != nil {
		return nil, err
	}
	if manifest.Aliases == nil {
		manifest.Aliases = map[string]string{}
	}
	return manifest.Aliases, nil
}
