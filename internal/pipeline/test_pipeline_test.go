package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeatlas/internal/artifact"
	"codeatlas/internal/safeio"
)

// End-to-end over the real registry: a pre-seeded ingest artifact points the
// pipeline at a fixture checkout, then snapshot→extract→graph→doc run for
// real.
func TestPipelineEndToEnd(t *testing.T) {
	repoDir := t.TempDir()
	outDir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(repoDir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("a.py", "from b import g\n\n\ndef f():\n    return g()\n")
	write("b.py", "def g():\n    return 1\n")
	write("broken.py", "def broken(:\n")
	write("README.md", "# Demo\n\nA tiny fixture repository.\n")

	repoFS, err := safeio.NewSafeFS(repoDir)
	if err != nil {
		t.Fatalf("repo fs: %v", err)
	}
	outFS, err := safeio.NewSafeFS(outDir)
	if err != nil {
		t.Fatalf("out fs: %v", err)
	}
	env := &Env{
		Repo:       "demo",
		RepoRoot:   repoDir,
		OutDir:     outDir,
		Workers:    2,
		RepoFS:     repoFS,
		ArtifactFS: outFS,
	}
	env.Resolver = DefaultResolver(env)

	WriteJSON(outDir, "ingest.json", artifact.Manifest{
		Repo:     "demo",
		RepoPath: repoDir,
		Status:   "local",
	})

	if err := Run(context.Background(), env, "snapshot", "doc"); err != nil {
		t.Fatalf("run: %v", err)
	}

	snap, err := Artifact[artifact.Snapshot](env, "snapshot")
	if err != nil {
		t.Fatalf("snapshot artifact: %v", err)
	}
	if snap.FileCount != 4 {
		t.Fatalf("file count = %d, want 4", snap.FileCount)
	}
	if !strings.Contains(snap.Readme, "tiny fixture") {
		t.Fatalf("readme summary missing: %q", snap.Readme)
	}

	ext, err := Artifact[artifact.Extraction](env, "extract")
	if err != nil {
		t.Fatalf("extract artifact: %v", err)
	}
	if len(ext.Results) != 2 {
		t.Fatalf("extracted %d files, want 2", len(ext.Results))
	}
	if len(ext.Skipped) != 1 || ext.Skipped[0].Path != "broken.py" {
		t.Fatalf("skipped = %+v, want broken.py", ext.Skipped)
	}

	g, err := Artifact[artifact.Graph](env, "graph")
	if err != nil {
		t.Fatalf("graph artifact: %v", err)
	}
	if g.Stats.Symbols != 4 {
		t.Fatalf("symbols = %d, want 4 (a, a.f, b, b.g)", g.Stats.Symbols)
	}
	if g.Stats.Unresolved != 0 {
		t.Fatalf("unresolved = %+v", g.Unresolved)
	}
	pos := make(map[string]int, len(g.Order))
	for i, id := range g.Order {
		pos[g.Symbols[id].Name] = i
	}
	if pos["b.g"] >= pos["a.f"] {
		t.Fatalf("expected b.g before its caller a.f in order, got %v", pos)
	}

	doc, err := Artifact[artifact.Doc](env, "doc")
	if err != nil {
		t.Fatalf("doc artifact: %v", err)
	}
	if !strings.Contains(doc.Markdown, "# 🎯 demo Documentation") {
		t.Fatal("doc missing title")
	}
	if !strings.Contains(doc.Markdown, "broken.py") {
		t.Fatal("doc missing parse failure note")
	}
	iB := strings.Index(doc.Markdown, ". `b.g`")
	iA := strings.Index(doc.Markdown, ". `a.f`")
	if iB < 0 || iA < 0 || iB > iA {
		t.Fatalf("processing order section wrong: b.g at %d, a.f at %d", iB, iA)
	}
	if _, err := os.Stat(filepath.Join(outDir, "documentation.md")); err != nil {
		t.Fatalf("documentation.md not written: %v", err)
	}
}
