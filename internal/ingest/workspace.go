package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

var (
	reposDirMu sync.RWMutex
	reposDir   = defaultReposDir()
)

func defaultReposDir() string {
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "repos")
	}
	return filepath.Join(".", "repos")
}

// SetReposDir overrides the base directory that receives cloned repositories.
// Tests can use this to isolate filesystem operations.
func SetReposDir(dir string) {
	if dir == "" {
		return
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	reposDirMu.Lock()
	reposDir = abs
	reposDirMu.Unlock()
}

// ReposDir returns the current base directory for cloned repositories.
func ReposDir() string {
	reposDirMu.RLock()
	defer reposDirMu.RUnlock()
	return reposDir
}

// ResolveRepo converts a single-segment repo name (e.g., "CoinApi") into an
// absolute path under ReposDir. It rejects empty names, names containing path
// separators, or directories outside of ReposDir.
func ResolveRepo(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("ingest: repo name is required")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("ingest: repo name %q must not contain path separators or ..", name)
	}
	base := ReposDir()
	if base == "" {
		return "", errors.New("ingest: repos dir is not configured")
	}
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	path := filepath.Join(baseAbs, name)
	if !hasPathPrefix(path, baseAbs) {
		return "", fmt.Errorf("ingest: repo %q resolves outside %s", name, baseAbs)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("ingest: repo %q not found under %s: %w", name, baseAbs, err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("ingest: repo %q is not a directory", name)
	}
	return path, nil
}

// ResolveRoot accepts a repo name (single segment, resolved under ReposDir)
// or a filesystem path to an existing directory and returns the absolute
// snapshot root. Reads stay inside that root afterwards via safeio.
func ResolveRoot(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return "", errors.New("ingest: root is empty")
	}
	if isRepoName(root) {
		return ResolveRepo(root)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("ingest: root %s: %w", abs, err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("ingest: root %s is not a directory", abs)
	}
	return abs, nil
}

func isRepoName(s string) bool {
	if s == "" {
		return false
	}
	if s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`)
}

func hasPathPrefix(path, base string) bool {
	path = filepath.Clean(path)
	base = filepath.Clean(base)
	if len(base) == 0 {
		return true
	}
	if path == base {
		return true
	}
	sep := string(os.PathSeparator)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		base = strings.ToLower(base)
	}
	if !strings.HasSuffix(base, sep) {
		base += sep
	}
	if !strings.HasSuffix(path, sep) {
		path += sep
	}
	return strings.HasPrefix(path, base)
}
