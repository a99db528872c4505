package scan

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"testing"
)

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestScan_PrunesDefaultIgnoreDirs(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.py", "x = 1")
	write(t, root, ".git/config", "noise")
	write(t, root, "__pycache__/main.cpython-311.pyc", "bytes")
	write(t, root, "node_modules/pkg/index.js", "noise")
	write(t, root, "src/app.py", "y = 2")

	var files []string
	if err := Scan(root, func(fv FileVisit) {
		if fv.IsDir {
			return
		}
		files = append(files, fv.Path)
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}

	sort.Strings(files)
	want := []string{"main.py", "src/app.py"}
	if !slices.Equal(files, want) {
		t.Fatalf("files=%v want=%v", files, want)
	}
}

func TestScan_IgnoresAndDepth(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.txt", "root file")
	write(t, root, "dir1/b.txt", "child file")
	write(t, root, "dir1/c.txt", "child file2")
	write(t, root, "dir1/vendor/skip.txt", "ignored vendor")
	write(t, root, "d/e/f.txt", "deep")

	opts := Options{
		MaxDepth:   1,
		IgnoreDirs: []string{"vendor"},
	}

	var files []string
	if err := ScanWithOptions(root, opts, func(fv FileVisit) {
		if fv.IsDir {
			return
		}
		files = append(files, fv.Path)
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}

	sort.Strings(files)
	want := []string{"a.txt"}
	if !slices.Equal(files, want) {
		t.Fatalf("files=%v want=%v", files, want)
	}
}

func TestScan_HonorsGitignore(t *testing.T) {
	root := t.TempDir()
	write(t, root, ".gitignore", "*.log\nsecrets/\n")
	write(t, root, "app.py", "x = 1")
	write(t, root, "debug.log", "noise")
	write(t, root, "secrets/token.txt", "hidden")

	var files []string
	err := ScanWithOptions(root, Options{Gitignore: true}, func(fv FileVisit) {
		if fv.IsDir {
			return
		}
		files = append(files, fv.Path)
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	sort.Strings(files)
	want := []string{".gitignore", "app.py"}
	if !slices.Equal(files, want) {
		t.Fatalf("files=%v want=%v", files, want)
	}
}

func TestStream_FilesOnly(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.txt", "root file")
	write(t, root, "dir1/b.txt", "child file")
	write(t, root, "dir1/vendor/skip.txt", "ignored vendor")
	write(t, root, "node_modules/x.txt", "ignored nm")
	write(t, root, "deep/level2/c.txt", "deep file")

	opts := Options{IgnoreDirs: []string{"node_modules", "vendor"}}

	ch, errCh := Stream(root, opts, true)
	var got []string
	for fv := range ch {
		if fv.IsDir {
			t.Fatalf("IsDir came even though filesOnly=true: %+v", fv)
		}
		got = append(got, fv.Path)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("scan error: %v", err)
	}

	sort.Strings(got)
	want := []string{
		"a.txt",
		"deep/level2/c.txt",
		"dir1/b.txt",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestSourceFiles_FiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	write(t, root, "z.py", "x = 1")
	write(t, root, "a/b.py", "y = 2")
	write(t, root, "a/c.JAC", "node n {}")
	write(t, root, "README.md", "# hi")

	files, err := SourceFiles(root, []string{"py", ".jac"}, Options{})
	if err != nil {
		t.Fatalf("source files: %v", err)
	}
	want := []string{"a/b.py", "a/c.JAC", "z.py"}
	if !slices.Equal(files, want) {
		t.Fatalf("files=%v want=%v", files, want)
	}
}
