package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnoreDirs are pruned from every walk unless the caller supplies an
// explicit list.
var DefaultIgnoreDirs = []string{
	".git", ".hg", ".svn",
	"__pycache__", "node_modules", "vendor", "venv", ".venv",
	"target", "build", "dist",
	".vscode", ".idea", ".next", ".cache",
}

// Options controls a repository walk.
type Options struct {
	// MaxDepth limits traversal depth; 0 means unlimited, 1 visits only
	// entries directly under the root.
	MaxDepth int
	// IgnoreDirs replaces DefaultIgnoreDirs when non-nil.
	IgnoreDirs []string
	// Gitignore additionally honors a .gitignore file at the root.
	Gitignore bool
}

// FileVisit carries per-entry metadata to user callbacks.
type FileVisit struct {
	// Repo-relative path using forward slashes (e.g., "src/app.py").
	Path string
	// Absolute filesystem path.
	AbsPath string
	// True when the entry is a directory.
	IsDir bool
	// Lowercased extension (e.g., ".go", ".md"); empty for dirs or no-ext files.
	Ext string
	// File size in bytes; 0 for dirs or when stat fails.
	Size int64
}

// VisitFunc is invoked for every visited entry. Use a closure to accumulate
// custom stats (e.g., extension counts).
type VisitFunc func(f FileVisit)

// Scan walks the repo with default options.
func Scan(root string, cb VisitFunc) error {
	return ScanWithOptions(root, Options{}, cb)
}

// ScanWithOptions walks the repo, pruning ignored and gitignored directories,
// and invokes cb for each surviving entry (dirs and files).
func ScanWithOptions(root string, opts Options, cb VisitFunc) error {
	root = filepath.Clean(root)

	ignoreDirs := opts.IgnoreDirs
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs
	}
	skip := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		skip[d] = true
	}

	var gi *ignore.GitIgnore
	if opts.Gitignore {
		if g, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
			gi = g
		}
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if skip[d.Name()] {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 && pathDepth(rel) >= opts.MaxDepth {
				if cb != nil {
					cb(FileVisit{Path: rel, AbsPath: path, IsDir: true})
				}
				return filepath.SkipDir
			}
		} else {
			if gi != nil && gi.MatchesPath(rel) {
				return nil
			}
		}

		ext := ""
		size := int64(0)
		if !d.IsDir() {
			ext = strings.ToLower(filepath.Ext(rel))
			if fi, e := os.Stat(path); e == nil {
				size = fi.Size()
			}
		}
		if cb != nil {
			cb(FileVisit{Path: rel, AbsPath: path, IsDir: d.IsDir(), Ext: ext, Size: size})
		}
		return nil
	})
}

func pathDepth(rel string) int {
	return strings.Count(rel, "/") + 1
}
