package safeio

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func newTestFS(t *testing.T) (*SafeFS, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewSafeFS(dir)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	return fs, fs.Root()
}

func TestSafeReadFileRelativeAndAbsolute(t *testing.T) {
	fs, root := newTestFS(t)
	p := filepath.Join(root, "a.txt")
	if err := os.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	b, err := fs.SafeReadFile("a.txt")
	if err != nil {
		t.Fatalf("relative read: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("relative read = %q", b)
	}
	if _, err := fs.SafeReadFile(p); err != nil {
		t.Fatalf("absolute read under root: %v", err)
	}
}

func TestSafeOpenReadsAndRejectsDirs(t *testing.T) {
	fs, root := newTestFS(t)
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := fs.SafeOpen("a.txt")
	if err != nil {
		t.Fatalf("SafeOpen: %v", err)
	}
	defer f.Close()
	b := make([]byte, 5)
	if _, err := f.Read(b); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("read = %q", b)
	}
	if _, err := fs.SafeOpen("."); err == nil {
		t.Fatal("SafeOpen on a directory should fail")
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	fs, _ := newTestFS(t)
	for _, path := range []string{"..", "../secret", "a/../../secret"} {
		if _, err := fs.SafeReadFile(path); err == nil {
			t.Fatalf("SafeReadFile(%q) should fail", path)
		}
	}
}

func TestResolveRejectsAbsoluteOutsideRoot(t *testing.T) {
	fs, _ := newTestFS(t)
	outside := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(outside, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := fs.SafeReadFile(outside); err == nil {
		t.Fatal("absolute path outside root should fail")
	}
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	fs, root := newTestFS(t)
	outside := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(outside, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	link := filepath.Join(root, "link.txt")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if _, err := fs.SafeReadFile("link.txt"); err == nil {
		t.Fatal("symlink escaping the root should fail")
	}
}

func TestSafeReadDirAndStat(t *testing.T) {
	fs, root := newTestFS(t)
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := fs.SafeReadDir("sub")
	if err != nil {
		t.Fatalf("SafeReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "f.txt" {
		t.Fatalf("SafeReadDir = %v", entries)
	}
	fi, err := fs.SafeStat("sub")
	if err != nil {
		t.Fatalf("SafeStat: %v", err)
	}
	if !fi.IsDir() {
		t.Fatal("sub should be a directory")
	}
	if _, err := fs.SafeReadDir(filepath.Join("sub", "f.txt")); err == nil {
		t.Fatal("SafeReadDir on a file should fail")
	}
}

func TestDefaultRoundTrip(t *testing.T) {
	fs, _ := newTestFS(t)
	old := Default()
	defer SetDefault(old)

	SetDefault(fs)
	if Default() != fs {
		t.Fatal("Default should return the installed SafeFS")
	}
	SetDefault(nil)
	if Default() != nil {
		t.Fatal("Default should be cleared")
	}
}
