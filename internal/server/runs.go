package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"codeatlas/internal/artifact"
	"codeatlas/internal/codegraph"
	"codeatlas/internal/pipeline"
	"codeatlas/internal/repository/runstore"
	"codeatlas/internal/safeio"

	"github.com/google/uuid"
)

// StartRunRequest is the payload for POST /v1/runs.
type StartRunRequest struct {
	Repo   string `json:"repo"`
	Branch string `json:"branch,omitempty"`
}

// StartRun records a queued run and kicks off the pipeline in the background.
// The returned run carries the ID used by all other endpoints.
func (a *App) StartRun(req StartRunRequest) (runstore.Run, error) {
	spec := strings.TrimSpace(req.Repo)
	if spec == "" {
		return runstore.Run{}, errors.New("repo is required")
	}
	req.Repo = spec

	runID := uuid.NewString()
	run := runstore.Run{
		ID:     runID,
		Repo:   repoNameFromSpec(spec),
		Branch: strings.TrimSpace(req.Branch),
		Status: runstore.StatusQueued,
	}
	if looksLikeRemote(spec) {
		run.URL = spec
	}
	a.runs.Put(run)

	ch := a.AllocateRunEventChannel(runID, 128)
	go a.executeRun(runID, req, ch)

	stored, ok := a.runs.Get(runID)
	if !ok {
		return run, nil
	}
	return stored, nil
}

func (a *App) executeRun(runID string, req StartRunRequest, ch chan pipeline.RunEvent) {
	a.metrics.ActiveRuns.Inc()
	start := time.Now()

	status, runErr := a.runPipeline(runID, req, ch)

	a.metrics.ActiveRuns.Dec()
	a.metrics.RunsTotal.WithLabelValues(string(status)).Inc()
	a.metrics.RunDurationSeconds.WithLabelValues(string(status)).Observe(time.Since(start).Seconds())

	// The terminal event goes out only after the store reflects the final
	// state, so a watcher that stops on it reads a settled run record.
	final := pipeline.RunEvent{Type: pipeline.EventTypeComplete, Progress: 100, Message: "run complete"}
	if runErr != nil {
		log.Printf("run %s failed: %v", runID, runErr)
		final = pipeline.RunEvent{Type: pipeline.EventTypeError, Message: runErr.Error()}
	}
	select {
	case ch <- final:
	default:
	}
	close(ch)
	a.ScheduleRunCleanup(runID)
}

func (a *App) runPipeline(runID string, req StartRunRequest, ch chan pipeline.RunEvent) (runstore.Status, error) {
	outDir := filepath.Join(a.cfg.OutRoot, "runs", runID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		err = fmt.Errorf("create run directory: %w", err)
		a.failRun(runID, err)
		return runstore.StatusFailed, err
	}
	artifactFS, err := safeio.NewSafeFS(outDir)
	if err != nil {
		a.failRun(runID, err)
		return runstore.StatusFailed, err
	}

	env := &pipeline.Env{
		Repo:       req.Repo,
		OutDir:     outDir,
		Workers:    a.cfg.Workers,
		MaxDepth:   a.cfg.MaxDepth,
		Gitignore:  a.cfg.Gitignore,
		Branch:     strings.TrimSpace(req.Branch),
		IfExists:   "pull",
		ReposRoot:  a.cfg.ReposRoot,
		ArtifactFS: artifactFS,
	}
	env.Resolver = pipeline.DefaultResolver(env)

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeout.Std())
	defer cancel()
	ctx = pipeline.WithEmitter(ctx, &runEmitter{app: a, runID: runID, ch: ch})

	a.runs.Update(runID, func(r *runstore.Run) { r.Status = runstore.StatusRunning })

	if err := pipeline.Run(ctx, env, "", ""); err != nil {
		a.failRun(runID, err)
		return runstore.StatusFailed, err
	}

	a.finishRun(runID, env)
	return runstore.StatusComplete, nil
}

func (a *App) failRun(runID string, runErr error) {
	if _, ok := a.runs.Update(runID, func(r *runstore.Run) {
		r.Status = runstore.StatusFailed
		r.Error = runErr.Error()
	}); !ok {
		log.Printf("run %s: record failure: run not found", runID)
	}
	a.runs.Save()
}

// finishRun uploads the run directory into the artifact store and folds the
// doc and manifest artifacts back into the run record.
func (a *App) finishRun(runID string, env *pipeline.Env) {
	doc, docErr := pipeline.Artifact[artifact.Doc](env, "doc")
	if docErr != nil {
		log.Printf("run %s: load doc artifact: %v", runID, docErr)
	}
	manifest, manErr := pipeline.Artifact[artifact.Manifest](env, "ingest")

	// The pipeline context may be close to its deadline here; uploads get
	// their own budget.
	upCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := a.uploadArtifacts(upCtx, runID, env.OutDir); err != nil {
		log.Printf("run %s: upload artifacts: %v", runID, err)
	}

	a.runs.Update(runID, func(r *runstore.Run) {
		r.Status = runstore.StatusComplete
		r.Stage = "doc"
		r.Progress = 100
		if docErr == nil {
			r.Symbols = doc.Symbols
			r.Files = doc.Files
		}
		if manErr == nil {
			if manifest.Repo != "" {
				r.Repo = manifest.Repo
			}
			if manifest.URL != "" {
				r.URL = manifest.URL
			}
		}
	})
	a.runs.Save()
}

func (a *App) uploadArtifacts(ctx context.Context, runID, outDir string) error {
	var errs []error
	walkErr := filepath.WalkDir(outDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(outDir, p)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if err := a.artifacts.Put(ctx, runID, filepath.ToSlash(rel), content); err != nil {
			errs = append(errs, fmt.Errorf("put %s: %w", rel, err))
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return errors.Join(errs...)
}

// loadGraph fetches the stored graph artifact of a run and rebuilds the
// finalized in-memory graph for queries.
func (a *App) loadGraph(ctx context.Context, runID string) (*codegraph.Graph, error) {
	raw, err := a.artifacts.Get(ctx, runID, "graph.json")
	if err != nil {
		return nil, err
	}
	var flat artifact.Graph
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode graph artifact: %w", err)
	}
	return flat.Rebuild(ctx)
}

// runEmitter feeds pipeline events into the run record, the metrics and the
// watcher channel. Terminal events are held back; executeRun sends them once
// the run record is final.
type runEmitter struct {
	app   *App
	runID string
	ch    chan<- pipeline.RunEvent
}

func (e *runEmitter) Emit(event pipeline.RunEvent) {
	e.app.metrics.StageEventsTotal.WithLabelValues(event.Stage, eventTypeLabel(event.Type)).Inc()
	switch event.Type {
	case pipeline.EventTypeProgress:
		e.app.runs.Update(e.runID, func(r *runstore.Run) {
			r.Status = runstore.StatusRunning
			if event.Stage != "" {
				r.Stage = event.Stage
			}
			if event.Progress > r.Progress {
				r.Progress = event.Progress
			}
		})
	case pipeline.EventTypeComplete, pipeline.EventTypeError:
		return
	}
	select {
	case e.ch <- event:
	default:
	}
}

func (e *runEmitter) EmitLog(message string) {
	e.Emit(pipeline.RunEvent{Type: pipeline.EventTypeLog, Message: message})
}

func (e *runEmitter) EmitProgress(percent int, message string) {
	e.Emit(pipeline.RunEvent{Type: pipeline.EventTypeProgress, Progress: percent, Message: message})
}

func eventTypeLabel(t pipeline.RunEventType) string {
	switch t {
	case pipeline.EventTypeLog:
		return "log"
	case pipeline.EventTypeProgress:
		return "progress"
	case pipeline.EventTypeComplete:
		return "complete"
	case pipeline.EventTypeError:
		return "error"
	default:
		return "unspecified"
	}
}

// repoNameFromSpec derives a display name for a run from the repo spec,
// which may be a clone URL, an owner/name pair or a local path.
func repoNameFromSpec(spec string) string {
	if parsed, err := url.Parse(spec); err == nil && parsed.Path != "" {
		base := path.Base(parsed.Path)
		return strings.TrimSuffix(base, ".git")
	}
	base := filepath.Base(spec)
	return strings.TrimSuffix(base, ".git")
}

func looksLikeRemote(spec string) bool {
	return strings.Contains(spec, "://") || strings.HasPrefix(spec, "git@")
}
