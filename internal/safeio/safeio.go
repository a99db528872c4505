// Package safeio confines file reads to a fixed root directory. The pipeline
// binds one SafeFS to the ingested checkout and one to the artifact area, so
// extractors and artifact readers cannot wander outside their snapshot.
package safeio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// SafeFS resolves every path against its root and rejects anything that
// escapes it, including through symlinks.
type SafeFS struct {
	absRoot string
}

var (
	defaultMu sync.RWMutex
	defaultFS *SafeFS
)

// SetDefault installs the process-wide fallback SafeFS. The CLI and server
// set it to the artifact area once the output directory is known; packages
// that accept an optional SafeFS fall back to it when given nil.
func SetDefault(fs *SafeFS) {
	defaultMu.Lock()
	defaultFS = fs
	defaultMu.Unlock()
}

// Default returns the process-wide fallback SafeFS, or nil if none is set.
func Default() *SafeFS {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultFS
}

// NewSafeFS binds a SafeFS to root, which must be an existing directory.
// The root is made absolute and symlink-free up front so later prefix checks
// compare like with like.
func NewSafeFS(root string) (*SafeFS, error) {
	if root == "" {
		return nil, errors.New("safeio: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("safeio: root %s is not a directory", abs)
	}
	return &SafeFS{absRoot: abs}, nil
}

// Root reports the absolute directory this SafeFS is bound to.
func (s *SafeFS) Root() string {
	if s == nil {
		return ""
	}
	return s.absRoot
}

// SafeReadFile reads one file. The path may be relative to the root or
// absolute, as long as it stays under the root after symlink resolution.
func (s *SafeFS) SafeReadFile(path string) ([]byte, error) {
	p, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("safeio: %s is a directory", path)
	}
	return os.ReadFile(p)
}

// SafeOpen opens a file under the root for reading. The caller closes the
// returned handle.
func (s *SafeFS) SafeOpen(path string) (*os.File, error) {
	p, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("safeio: %s is a directory", path)
	}
	return os.Open(p)
}

// SafeStat returns metadata for a file or directory under the root.
func (s *SafeFS) SafeStat(path string) (fs.FileInfo, error) {
	p, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Stat(p)
}

// SafeReadDir lists a directory under the root.
func (s *SafeFS) SafeReadDir(path string) ([]fs.DirEntry, error) {
	p, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("safeio: %s is not a directory", path)
	}
	return os.ReadDir(p)
}

// resolve maps a caller path to an absolute, symlink-free path and verifies
// it is still under the root. Relative ".." prefixes are rejected before the
// filesystem is touched so the error does not depend on what exists on disk.
func (s *SafeFS) resolve(path string) (string, error) {
	if s == nil {
		return "", errors.New("safeio: filesystem not configured")
	}
	if path == "" {
		return "", errors.New("safeio: empty path")
	}
	clean := filepath.Clean(path)
	if clean == "." {
		return s.absRoot, nil
	}

	abs := filepath.IsAbs(clean) || (runtime.GOOS == "windows" && filepath.VolumeName(clean) != "")
	if !abs {
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("safeio: %s escapes the root", path)
		}
		clean = filepath.Join(s.absRoot, clean)
	}

	resolved, err := filepath.EvalSymlinks(clean)
	if err != nil {
		return "", err
	}
	if !underRoot(resolved, s.absRoot) {
		return "", fmt.Errorf("safeio: %s resolves outside root %s", path, s.absRoot)
	}
	return resolved, nil
}

func underRoot(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(os.PathSeparator))
}
