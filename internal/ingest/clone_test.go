package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// fakeGit swaps runGitCommand for one that records invocations and creates
// the clone target directory like git would.
func fakeGit(t *testing.T) *[][]string {
	t.Helper()
	var calls [][]string
	prev := runGitCommand
	runGitCommand = func(ctx context.Context, args ...string) error {
		calls = append(calls, append([]string(nil), args...))
		if len(args) > 0 && args[0] == "clone" {
			target := args[len(args)-1]
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		}
		return nil
	}
	t.Cleanup(func() { runGitCommand = prev })
	return &calls
}

func TestNormalizeCloneInput(t *testing.T) {
	cases := []struct {
		raw      string
		wantURL  string
		wantName string
		wantErr  bool
	}{
		{"https://github.com/acme/widgets", "https://github.com/acme/widgets.git", "widgets", false},
		{"https://github.com/acme/widgets.git", "https://github.com/acme/widgets.git", "widgets", false},
		{"git@github.com:acme/widgets.git", "git@github.com:acme/widgets.git", "widgets", false},
		{"acme/widgets", "https://github.com/acme/widgets.git", "widgets", false},
		{"https://gitlab.com/acme/widgets", "", "", true},
		{"just-a-name-without-owner", "", "", true},
		{"", "", "", true},
	}
	for _, tc := range cases {
		gotURL, gotName, err := normalizeCloneInput(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got %q", tc.raw, gotURL)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.raw, err)
		}
		if gotURL != tc.wantURL || gotName != tc.wantName {
			t.Fatalf("%q: got (%q,%q) want (%q,%q)", tc.raw, gotURL, gotName, tc.wantURL, tc.wantName)
		}
	}
}

func TestClone_DefaultDepthAndBranch(t *testing.T) {
	calls := fakeGit(t)
	root := t.TempDir()

	res, err := Clone(context.Background(), "acme/widgets", root, CloneOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if res.Status != "cloned" || res.RepoName != "widgets" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.RepoPath != filepath.Join(root, "widgets") {
		t.Fatalf("repo path: %s", res.RepoPath)
	}

	if len(*calls) != 1 {
		t.Fatalf("expected one git call, got %d", len(*calls))
	}
	args := (*calls)[0]
	want := []string{"clone", "--depth", "1", "--branch", "main", "--single-branch", "https://github.com/acme/widgets.git", filepath.Join(root, "widgets")}
	if !slices.Equal(args, want) {
		t.Fatalf("git args=%v want=%v", args, want)
	}
}

func TestClone_IfExistsPolicies(t *testing.T) {
	calls := fakeGit(t)
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "widgets"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	res, err := Clone(context.Background(), "acme/widgets", root, CloneOptions{})
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if res.Status != "skipped" || len(*calls) != 0 {
		t.Fatalf("expected skip without git call, got %+v calls=%v", res, *calls)
	}

	if _, err := Clone(context.Background(), "acme/widgets", root, CloneOptions{IfExists: "error"}); err == nil {
		t.Fatalf("expected error for if_exists=error")
	}

	res, err = Clone(context.Background(), "acme/widgets", root, CloneOptions{IfExists: "pull", Branch: "dev"})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if res.Status != "updated" {
		t.Fatalf("expected updated, got %+v", res)
	}
	last := (*calls)[len(*calls)-1]
	want := []string{"-C", filepath.Join(root, "widgets"), "pull", "--ff-only", "origin", "dev"}
	if !slices.Equal(last, want) {
		t.Fatalf("pull args=%v want=%v", last, want)
	}

	if _, err := Clone(context.Background(), "acme/widgets", root, CloneOptions{IfExists: "bogus"}); err == nil {
		t.Fatalf("expected error for invalid if_exists")
	}
}

func TestClone_GitFailureSurfaces(t *testing.T) {
	prev := runGitCommand
	runGitCommand = func(ctx context.Context, args ...string) error {
		return errors.New("git clone: exit status 128: repository not found")
	}
	t.Cleanup(func() { runGitCommand = prev })

	_, err := Clone(context.Background(), "acme/ghost", t.TempDir(), CloneOptions{})
	if err == nil || !strings.Contains(err.Error(), "repository not found") {
		t.Fatalf("expected git error, got %v", err)
	}
}

func TestIngest_LocalPathBypassesGit(t *testing.T) {
	calls := fakeGit(t)
	local := t.TempDir()

	res, err := Ingest(context.Background(), local, t.TempDir(), CloneOptions{})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Status != "local" || len(*calls) != 0 {
		t.Fatalf("expected local bypass, got %+v calls=%v", res, *calls)
	}
	if res.RepoName != filepath.Base(local) {
		t.Fatalf("repo name: %s", res.RepoName)
	}
}

func TestValidateRepoDirName(t *testing.T) {
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`, "nested/.."} {
		if err := validateRepoDirName(bad); err == nil {
			t.Fatalf("expected rejection for %q", bad)
		}
	}
	if err := validateRepoDirName("widgets"); err != nil {
		t.Fatalf("widgets should be valid: %v", err)
	}
}

func TestResolveRepo_ChecksWorkspace(t *testing.T) {
	base := t.TempDir()
	SetReposDir(base)
	t.Cleanup(func() { SetReposDir(defaultReposDir()) })

	if err := os.MkdirAll(filepath.Join(base, "widgets"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := ResolveRepo("widgets")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != filepath.Join(base, "widgets") {
		t.Fatalf("got=%s", got)
	}

	if _, err := ResolveRepo("missing"); err == nil {
		t.Fatalf("expected error for missing repo")
	}
	if _, err := ResolveRepo("../escape"); err == nil {
		t.Fatalf("expected rejection for traversal")
	}
}
