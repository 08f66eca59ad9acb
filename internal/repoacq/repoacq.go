// Package repoacq implements the Repository Acquirer (§4.2): it turns a
// (repository, ref, maybe local path) tuple into a working tree on disk at
// a known revision.
package repoacq

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"kotadb/internal/kotaerr"
	"kotadb/internal/logging"
)

// Options configures acquisition of a single working tree.
type Options struct {
	// FullName is "owner/name"; used to resolve a clone URL when LocalPath
	// is empty and FullName is not itself a URL.
	FullName string
	// Ref is the git ref to check out; empty means the repository's
	// default ref.
	Ref string
	// LocalPath, if non-empty and valid, is used as-is (no clone/fetch).
	LocalPath string
	// BaseURL resolves "owner/name" repository strings into clone URLs,
	// e.g. "https://github.com/" (default).
	BaseURL string
	// ScratchRoot is the parent directory for per-job scratch clones.
	ScratchRoot string
	JobID       string
}

// Tree is an acquired working tree: either the caller's own local path, or a
// scratch clone that must be cleaned up by the caller via Release.
type Tree struct {
	Path      string
	IsScratch bool
}

// Acquirer materializes working trees by shelling out to the system git
// binary, following the teacher's repository-resolution approach: no
// in-process git library is present anywhere in the example pack, so this
// stays on os/exec, matching internal/repostate's own git-shell-out idiom.
type Acquirer struct {
	logger *logging.Logger
}

func New(logger *logging.Logger) *Acquirer {
	return &Acquirer{logger: logger}
}

// Acquire produces a working tree per §4.2's contract.
func (a *Acquirer) Acquire(opts Options) (*Tree, error) {
	if opts.LocalPath != "" {
		if info, err := os.Stat(opts.LocalPath); err == nil && info.IsDir() {
			if opts.Ref != "" {
				if err := checkoutRef(opts.LocalPath, opts.Ref); err != nil {
					return nil, err
				}
			}
			return &Tree{Path: opts.LocalPath, IsScratch: false}, nil
		}
		return nil, kotaerr.New(kotaerr.InvalidArgument, "local_path does not exist: "+opts.LocalPath)
	}

	if opts.ScratchRoot == "" {
		opts.ScratchRoot = os.TempDir()
	}
	scratch := filepath.Join(opts.ScratchRoot, sanitize(opts.FullName), opts.JobID)

	if _, err := os.Stat(scratch); err == nil {
		if err := fetchAndReset(scratch, opts.Ref); err != nil {
			return nil, err
		}
		return &Tree{Path: scratch, IsScratch: true}, nil
	}

	url := resolveCloneURL(opts.FullName, opts.BaseURL)
	if err := os.MkdirAll(filepath.Dir(scratch), 0o755); err != nil {
		return nil, kotaerr.Wrap(kotaerr.InternalError, "creating scratch parent", err)
	}
	if err := clone(url, scratch); err != nil {
		return nil, err
	}
	if opts.Ref != "" {
		if err := checkoutRef(scratch, opts.Ref); err != nil {
			return nil, err
		}
	}
	return &Tree{Path: scratch, IsScratch: true}, nil
}

// Release removes a scratch tree. It is a no-op for non-scratch trees and
// is meant to run in a guaranteed-execution cleanup block regardless of job
// outcome (§4.2, §4.6 step 11).
func (a *Acquirer) Release(t *Tree) error {
	if t == nil || !t.IsScratch {
		return nil
	}
	return os.RemoveAll(t.Path)
}

func resolveCloneURL(fullName, baseURL string) string {
	if strings.HasPrefix(fullName, "http://") || strings.HasPrefix(fullName, "https://") ||
		strings.HasPrefix(fullName, "file://") || strings.HasPrefix(fullName, "/") {
		return fullName
	}
	if baseURL == "" {
		baseURL = "https://github.com/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + fullName
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "/", "_")
}

func clone(url, dest string) error {
	cmd := exec.Command("git", "clone", "--depth", "1", url, dest)
	ctxErr := runWithTimeout(cmd, 10*time.Minute)
	if ctxErr != nil {
		if isAuthError(ctxErr) {
			return kotaerr.Wrap(kotaerr.AuthDenied, "clone authentication failed", ctxErr)
		}
		return kotaerr.Wrap(kotaerr.CloneFailed, "clone failed: "+url, ctxErr)
	}
	return nil
}

func fetchAndReset(path, ref string) error {
	fetch := exec.Command("git", "fetch", "--depth", "1", "origin")
	fetch.Dir = path
	if err := runWithTimeout(fetch, 2*time.Minute); err != nil {
		return kotaerr.Wrap(kotaerr.NetworkTransient, "fetch failed", err)
	}
	return checkoutRef(path, ref)
}

func checkoutRef(path, ref string) error {
	if ref == "" {
		return nil
	}
	cmd := exec.Command("git", "checkout", ref)
	cmd.Dir = path
	if err := cmd.Run(); err != nil {
		resetCmd := exec.Command("git", "reset", "--hard", "origin/"+ref)
		resetCmd.Dir = path
		if err2 := resetCmd.Run(); err2 != nil {
			return kotaerr.Wrap(kotaerr.RefNotFound, fmt.Sprintf("ref not found: %s", ref), err)
		}
	}
	return nil
}

func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "authentication")
}

func runWithTimeout(cmd *exec.Cmd, timeout time.Duration) error {
	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		cmd.Process.Kill()
		return fmt.Errorf("timed out after %s", timeout)
	}
}
