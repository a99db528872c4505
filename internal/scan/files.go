package scan

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileEntry is one indexed file of a repository snapshot.
type FileEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Ext  string `json:"ext,omitempty"`
}

// Index walks the repo and returns its files in walk order.
func Index(root string, opts Options) ([]FileEntry, error) {
	var index []FileEntry
	err := ScanWithOptions(root, opts, func(fv FileVisit) {
		if fv.IsDir {
			return
		}
		index = append(index, FileEntry{Path: fv.Path, Size: fv.Size, Ext: fv.Ext})
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}

// SourceFiles walks root and returns sorted repo-relative paths of files whose
// extensions match any entry in exts. Extensions are case-insensitive and may
// be provided with or without a leading dot. The sorted order is what makes
// repeated extraction runs over the same snapshot line up.
func SourceFiles(root string, exts []string, opts Options) ([]string, error) {
	if len(exts) == 0 {
		return nil, nil
	}

	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	if len(allowed) == 0 {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		files []string
	)
	err := ScanWithOptions(root, opts, func(fv FileVisit) {
		if fv.IsDir {
			return
		}
		ext := fv.Ext
		if ext == "" {
			ext = strings.ToLower(filepath.Ext(fv.Path))
		}
		if _, ok := allowed[ext]; !ok {
			return
		}
		mu.Lock()
		files = append(files, filepath.ToSlash(fv.Path))
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// Stream walks the repo and streams FileVisit entries over a channel.
// If filesOnly is true, directory entries are omitted.
// errCh receives a single error (nil on success).
func Stream(root string, opts Options, filesOnly bool) (<-chan FileVisit, <-chan error) {
	out := make(chan FileVisit, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		err := ScanWithOptions(root, opts, func(fv FileVisit) {
			if filesOnly && fv.IsDir {
				return
			}
			out <- fv
		})
		errCh <- err
		close(errCh)
	}()

	return out, errCh
}
