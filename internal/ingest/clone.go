package ingest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// CloneOptions tune how a repository is brought into the repos root.
type CloneOptions struct {
	Branch     string `json:"branch,omitempty"`
	Depth      int    `json:"depth,omitempty"`
	TargetName string `json:"target_name,omitempty"`
	IfExists   string `json:"if_exists,omitempty"` // skip | error | pull
}

// CloneResult reports where a snapshot ended up and how it got there.
type CloneResult struct {
	RepoName string `json:"repo_name"`
	RepoPath string `json:"repo_path"`
	URL      string `json:"url,omitempty"`
	Status   string `json:"status"` // cloned | skipped | updated | local
}

// runGitCommand is injectable in tests.
var runGitCommand = func(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Ingest makes a repository available for scanning. A spec naming an existing
// local directory is used in place; anything else is treated as a GitHub
// repository and cloned under reposRoot.
func Ingest(ctx context.Context, spec, reposRoot string, opts CloneOptions) (*CloneResult, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("ingest: repo is required")
	}
	if fi, err := os.Stat(spec); err == nil && fi.IsDir() {
		abs, err := filepath.Abs(spec)
		if err != nil {
			return nil, err
		}
		return &CloneResult{RepoName: filepath.Base(abs), RepoPath: abs, Status: "local"}, nil
	}
	return Clone(ctx, spec, reposRoot, opts)
}

// Clone fetches a GitHub repository into reposRoot and returns its location.
func Clone(ctx context.Context, repoURL, reposRoot string, opts CloneOptions) (*CloneResult, error) {
	cloneURL, inferredName, err := normalizeCloneInput(repoURL)
	if err != nil {
		return nil, err
	}

	targetName := strings.TrimSpace(opts.TargetName)
	if targetName == "" {
		targetName = inferredName
	}
	if err := validateRepoDirName(targetName); err != nil {
		return nil, err
	}

	ifExists := strings.ToLower(strings.TrimSpace(opts.IfExists))
	if ifExists == "" {
		ifExists = "skip"
	}
	if ifExists != "skip" && ifExists != "error" && ifExists != "pull" {
		return nil, fmt.Errorf("ingest: invalid if_exists %q", opts.IfExists)
	}

	reposRoot = strings.TrimSpace(reposRoot)
	if reposRoot == "" {
		reposRoot = ReposDir()
	}
	if reposRoot == "" {
		return nil, fmt.Errorf("ingest: repos root is not configured")
	}
	if err := os.MkdirAll(reposRoot, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: mkdir repos root: %w", err)
	}

	targetPath := filepath.Join(reposRoot, targetName)
	if st, err := os.Stat(targetPath); err == nil && st.IsDir() {
		switch ifExists {
		case "skip":
			return &CloneResult{RepoName: targetName, RepoPath: targetPath, URL: cloneURL, Status: "skipped"}, nil
		case "error":
			return nil, fmt.Errorf("ingest: target already exists: %s", targetPath)
		case "pull":
			pullArgs := []string{"-C", targetPath, "pull", "--ff-only"}
			if b := strings.TrimSpace(opts.Branch); b != "" {
				pullArgs = append(pullArgs, "origin", b)
			}
			if err := runGitCommand(ctx, pullArgs...); err != nil {
				return nil, err
			}
			return &CloneResult{RepoName: targetName, RepoPath: targetPath, URL: cloneURL, Status: "updated"}, nil
		}
	}

	depth := opts.Depth
	if depth < 0 {
		return nil, fmt.Errorf("ingest: depth must be >= 0")
	}
	if depth == 0 {
		depth = 1
	}

	args := []string{"clone", "--depth", strconv.Itoa(depth)}
	if b := strings.TrimSpace(opts.Branch); b != "" {
		args = append(args, "--branch", b, "--single-branch")
	}
	args = append(args, cloneURL, targetPath)
	if err := runGitCommand(ctx, args...); err != nil {
		return nil, err
	}

	return &CloneResult{RepoName: targetName, RepoPath: targetPath, URL: cloneURL, Status: "cloned"}, nil
}

// normalizeCloneInput accepts https URLs, git@ remotes and the owner/repo
// shorthand, always returning a canonical clone URL plus the repo name.
func normalizeCloneInput(raw string) (cloneURL, repoName string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("ingest: repo_url required")
	}

	if strings.HasPrefix(raw, "git@github.com:") {
		repoPath := strings.TrimPrefix(raw, "git@github.com:")
		repoPath = strings.TrimSuffix(repoPath, ".git")
		owner, repo, ok := splitOwnerRepo(repoPath)
		if !ok {
			return "", "", fmt.Errorf("ingest: invalid github repo_url %q", raw)
		}
		return fmt.Sprintf("git@github.com:%s/%s.git", owner, repo), repo, nil
	}

	if !strings.Contains(raw, "://") {
		owner, repo, ok := splitOwnerRepo(strings.TrimSuffix(raw, ".git"))
		if ok && !strings.Contains(raw, " ") && strings.Count(strings.Trim(raw, "/"), "/") == 1 {
			return fmt.Sprintf("https://github.com/%s/%s.git", owner, repo), repo, nil
		}
		return "", "", fmt.Errorf("ingest: invalid repo %q (want owner/repo or URL)", raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("ingest: invalid repo_url: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(u.Host), "github.com") {
		return "", "", fmt.Errorf("ingest: only github.com is supported")
	}
	repoPath := strings.Trim(strings.TrimSuffix(u.Path, ".git"), "/")
	owner, repo, ok := splitOwnerRepo(repoPath)
	if !ok {
		return "", "", fmt.Errorf("ingest: invalid github repo_url %q", raw)
	}
	return fmt.Sprintf("https://github.com/%s/%s.git", owner, repo), repo, nil
}

func splitOwnerRepo(repoPath string) (owner, repo string, ok bool) {
	repoPath = strings.Trim(repoPath, "/")
	parts := strings.Split(repoPath, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])
	if owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}

func validateRepoDirName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("ingest: target_name is empty")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("ingest: invalid target_name %q", name)
	}
	if strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return fmt.Errorf("ingest: target_name must be a single path segment")
	}
	if path.Clean(name) != name {
		return fmt.Errorf("ingest: invalid target_name %q", name)
	}
	return nil
}
