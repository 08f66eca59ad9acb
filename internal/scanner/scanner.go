// Package scanner implements the File Scanner (§4.3): it walks a working
// tree, applies include/ignore rules, and computes deterministic content
// fingerprints.
package scanner

import (
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// File is one scanned candidate file's output (§4.3).
type File struct {
	RelativePath string
	SizeBytes    int64
	ContentHash  string
	Content      []byte
}

// Options configures a scan, defaulting to §4.3's fixed set when zero.
type Options struct {
	IncludeExt  []string
	IgnoreDirs  []string
	IgnoreRules []Rule // parsed from .kotadbignore
}

func DefaultOptions() Options {
	return Options{
		IncludeExt: []string{".ts", ".tsx", ".js", ".jsx", ".cjs", ".mjs", ".json"},
		IgnoreDirs: []string{".git", "node_modules", "dist", "build", "out", "coverage"},
	}
}

// Scan walks root and returns candidate files in deterministic
// (lexicographic, normalized-path) order.
func Scan(root string, opts Options) ([]File, error) {
	if len(opts.IncludeExt) == 0 {
		opts = mergeDefaults(opts)
	}

	ignoreDirSet := make(map[string]bool, len(opts.IgnoreDirs))
	for _, d := range opts.IgnoreDirs {
		ignoreDirSet[d] = true
	}
	includeExt := make(map[string]bool, len(opts.IncludeExt))
	for _, e := range opts.IncludeExt {
		includeExt[e] = true
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			base := filepath.Base(path)
			if ignoreDirSet[base] || strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(path)
			if err != nil || !withinRoot(root, target) {
				return nil // reject symlinks that escape the root
			}
		}
		if !includeExt[filepath.Ext(path)] {
			return nil
		}
		if matchesIgnoreRules(rel, opts.IgnoreRules) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)

	var files []File
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if !isLikelyText(data) {
			continue
		}
		rel, _ := filepath.Rel(root, p)
		rel = filepath.ToSlash(rel)
		files = append(files, File{
			RelativePath: rel,
			SizeBytes:    int64(len(data)),
			ContentHash:  hashContent(data),
			Content:      data,
		})
	}
	return files, nil
}

func mergeDefaults(opts Options) Options {
	d := DefaultOptions()
	if len(opts.IncludeExt) == 0 {
		opts.IncludeExt = d.IncludeExt
	}
	if len(opts.IgnoreDirs) == 0 {
		opts.IgnoreDirs = d.IgnoreDirs
	}
	return opts
}

func withinRoot(root, target string) bool {
	rootAbs, err1 := filepath.Abs(root)
	targetAbs, err2 := filepath.Abs(target)
	if err1 != nil || err2 != nil {
		return false
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}

// isLikelyText skips binary content: a NUL byte or any invalid UTF-8 in
// the first 8KB is treated as binary.
func isLikelyText(data []byte) bool {
	sample := data
	if len(sample) > 8192 {
		sample = sample[:8192]
	}
	if len(sample) == 0 {
		return true
	}
	for _, b := range sample {
		if b == 0 {
			return false
		}
	}
	return utf8.Valid(sample)
}

func hashContent(data []byte) string {
	h := sha256.New()
	h.Write(data)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// HashReader hashes a stream without buffering the whole file in memory,
// available for callers that already have an io.Reader.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
