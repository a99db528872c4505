// The atlasflow command runs the documentation pipeline from the terminal:
// ingest a repository, extract its symbols, build the graph and render the
// markdown document. With -watch it keeps re-running on checkout changes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"codeatlas/internal/artifact"
	"codeatlas/internal/pipeline"
	"codeatlas/internal/render"
	"codeatlas/internal/safeio"
	"codeatlas/internal/watch"
)

func main() {
	repo := flag.String("repo", "", "path or URL of the repository")
	out := flag.String("out", "output", "output directory for artifacts")
	from := flag.String("from", "", "first stage to run: ingest, snapshot, extract, graph, doc")
	until := flag.String("until", "", "last stage to run")
	forceFrom := flag.String("force-from", "", "rerun from this stage even when cached")
	workers := flag.Int("workers", 0, "parallel extraction workers (0 = GOMAXPROCS)")
	timeout := flag.Duration("timeout", 10*time.Minute, "whole-run timeout")
	branch := flag.String("branch", "", "branch to clone")
	ifExists := flag.String("if-exists", "pull", "existing clone handling: skip, error or pull")
	reposRoot := flag.String("repos-root", "repos", "directory where clones are kept")
	maxDepth := flag.Int("max-depth", -1, "directory walk depth limit (-1 = unlimited)")
	gitignore := flag.Bool("gitignore", true, "honor .gitignore during the walk")
	watchMode := flag.Bool("watch", false, "re-run when the checkout changes")
	preview := flag.Bool("preview", false, "render the document to the terminal when done")
	jsonOut := flag.Bool("json", false, "print the doc artifact as JSON to stdout")
	flag.Parse()

	if *repo == "" {
		log.Fatal("-repo is required")
	}
	_ = godotenv.Load()

	absOut, err := filepath.Abs(*out)
	if err != nil {
		log.Fatal(err)
	}
	if err := os.MkdirAll(absOut, 0o755); err != nil {
		log.Fatal(err)
	}
	artifactFS, err := safeio.NewSafeFS(absOut)
	if err != nil {
		log.Fatal(err)
	}
	safeio.SetDefault(artifactFS)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := &pipeline.Env{
		Repo:       *repo,
		OutDir:     absOut,
		Workers:    *workers,
		MaxDepth:   *maxDepth,
		Gitignore:  *gitignore,
		Branch:     *branch,
		IfExists:   *ifExists,
		ReposRoot:  *reposRoot,
		ArtifactFS: artifactFS,
		ForceFrom:  *forceFrom,
	}
	env.Resolver = pipeline.DefaultResolver(env)

	if err := runOnce(ctx, env, *from, *until, *timeout, *preview, *jsonOut); err != nil {
		log.Fatal(err)
	}
	if !*watchMode {
		return
	}

	manifest, err := pipeline.Artifact[artifact.Manifest](env, "ingest")
	if err != nil {
		log.Fatal(err)
	}
	w, err := watch.New(manifest.RepoPath, nil)
	if err != nil {
		log.Fatal(err)
	}
	// Changed file contents do not change the stage inputs, so reruns
	// must force their way past the artifact cache.
	env.ForceFrom = "snapshot"

	log.Printf("watching %s for changes", manifest.RepoPath)
	err = w.Run(ctx, func(ctx context.Context, changed []string) error {
		log.Printf("%d files changed, re-running", len(changed))
		return runOnce(ctx, env, "snapshot", *until, *timeout, *preview, *jsonOut)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func runOnce(ctx context.Context, env *pipeline.Env, from, until string, timeout time.Duration, preview, jsonOut bool) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	runCtx = pipeline.WithEmitter(runCtx, progressEmitter{})

	start := time.Now()
	if err := pipeline.Run(runCtx, env, from, until); err != nil {
		return err
	}
	log.Printf("run finished in %s → %s", time.Since(start).Round(time.Millisecond), env.OutDir)

	if until != "" && until != "doc" {
		return nil
	}
	doc, err := pipeline.Artifact[artifact.Doc](env, "doc")
	if err != nil {
		return err
	}
	if jsonOut {
		b, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Println(string(b))
	}
	if preview {
		fmt.Println(render.Preview(doc.Markdown))
	}
	return nil
}

// progressEmitter prints pipeline events to the terminal log.
type progressEmitter struct{}

func (progressEmitter) Emit(event pipeline.RunEvent) {
	switch event.Type {
	case pipeline.EventTypeProgress:
		log.Printf("[%3d%%] %s", event.Progress, event.Message)
	case pipeline.EventTypeComplete:
		log.Printf("[100%%] %s", event.Message)
	case pipeline.EventTypeError:
		log.Printf("error in %s: %s", event.Stage, event.Message)
	case pipeline.EventTypeLog:
		log.Println(event.Message)
	}
}

func (e progressEmitter) EmitLog(message string) {
	e.Emit(pipeline.RunEvent{Type: pipeline.EventTypeLog, Message: message})
}

func (e progressEmitter) EmitProgress(percent int, message string) {
	e.Emit(pipeline.RunEvent{Type: pipeline.EventTypeProgress, Progress: percent, Message: message})
}
