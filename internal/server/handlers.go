package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"codeatlas/internal/codegraph"
	artifactrepo "codeatlas/internal/repository/artifact"
	"codeatlas/internal/repository/runstore"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleRuns serves POST /v1/runs (start) and GET /v1/runs (list).
func (a *App) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req StartRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		run, err := a.StartRun(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusAccepted, run)
	case http.MethodGet:
		repo := strings.TrimSpace(r.URL.Query().Get("repo"))
		var runs []runstore.Run
		if repo != "" {
			runs = a.runs.ListByRepo(repo)
		} else {
			runs = a.runs.List()
		}
		if runs == nil {
			runs = []runstore.Run{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRun dispatches GET /v1/runs/<id> and everything below it.
func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	runID, sub, _ := strings.Cut(rest, "/")
	runID = strings.TrimSpace(runID)
	if runID == "" {
		http.Error(w, "run id is required", http.StatusBadRequest)
		return
	}
	switch {
	case sub == "":
		a.getRun(w, runID)
	case sub == "doc":
		a.getRunDoc(w, r, runID)
	case sub == "watch":
		a.handleWatch(w, r, runID)
	case sub == "artifacts":
		a.listRunArtifacts(w, r, runID)
	case strings.HasPrefix(sub, "artifacts/"):
		a.getRunArtifact(w, r, runID, strings.TrimPrefix(sub, "artifacts/"))
	case sub == "graph":
		a.getGraphSummary(w, r, runID)
	case sub == "graph/neighbors":
		a.getGraphNeighbors(w, r, runID)
	case sub == "graph/order":
		a.getGraphOrder(w, r, runID)
	default:
		http.NotFound(w, r)
	}
}

func (a *App) getRun(w http.ResponseWriter, runID string) {
	run, ok := a.runs.Get(runID)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *App) getRunDoc(w http.ResponseWriter, r *http.Request, runID string) {
	content, err := a.artifacts.Get(r.Context(), runID, "documentation.md")
	if err != nil {
		if errors.Is(err, artifactrepo.ErrNotFound) {
			http.Error(w, "document not available", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write(content)
}

func (a *App) listRunArtifacts(w http.ResponseWriter, r *http.Request, runID string) {
	paths, err := a.artifacts.List(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if paths == nil {
		paths = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "artifacts": paths})
}

func (a *App) getRunArtifact(w http.ResponseWriter, r *http.Request, runID, artifactPath string) {
	if strings.TrimSpace(artifactPath) == "" {
		http.Error(w, "artifact path is required", http.StatusBadRequest)
		return
	}
	// S3-backed stores hand out a presigned URL; everything else serves
	// the bytes directly.
	if u, err := a.artifacts.GetURL(r.Context(), runID, artifactPath); err == nil && u != "" {
		http.Redirect(w, r, u, http.StatusFound)
		return
	}
	content, err := a.artifacts.Get(r.Context(), runID, artifactPath)
	if err != nil {
		if errors.Is(err, artifactrepo.ErrNotFound) {
			http.Error(w, "artifact not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ct := mime.TypeByExtension(path.Ext(artifactPath))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	_, _ = w.Write(content)
}

func (a *App) getGraphSummary(w http.ResponseWriter, r *http.Request, runID string) {
	g, ok := a.graphForRun(w, r, runID)
	if !ok {
		return
	}
	stats, err := g.Stats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	unresolved, _ := g.Unresolved()
	breaks, _ := g.CycleBreaks()
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":       runID,
		"stats":        stats,
		"unresolved":   unresolved,
		"cycle_breaks": breaks,
	})
}

func (a *App) getGraphNeighbors(w http.ResponseWriter, r *http.Request, runID string) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	dirParam := strings.TrimSpace(r.URL.Query().Get("direction"))
	if dirParam == "" {
		dirParam = "both"
	}
	dir, ok := codegraph.ParseDirection(dirParam)
	if !ok {
		http.Error(w, "direction must be incoming, outgoing or both", http.StatusBadRequest)
		return
	}

	g, ok := a.graphForRun(w, r, runID)
	if !ok {
		return
	}
	sym, err := g.SymbolByName(symbol)
	if err != nil {
		if errors.Is(err, codegraph.ErrSymbolNotFound) {
			http.Error(w, "symbol not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	neighbors, err := g.Neighbors(sym.ID, dir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if neighbors == nil {
		neighbors = []codegraph.Symbol{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":    sym,
		"direction": dir,
		"neighbors": neighbors,
	})
}

func (a *App) getGraphOrder(w http.ResponseWriter, r *http.Request, runID string) {
	g, ok := a.graphForRun(w, r, runID)
	if !ok {
		return
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	breaks, _ := g.CycleBreaks()
	writeJSON(w, http.StatusOK, map[string]any{
		"order":        order,
		"cycle_breaks": breaks,
	})
}

// graphForRun loads the rebuilt graph or writes the error response.
func (a *App) graphForRun(w http.ResponseWriter, r *http.Request, runID string) (*codegraph.Graph, bool) {
	g, err := a.loadGraph(r.Context(), runID)
	if err != nil {
		if errors.Is(err, artifactrepo.ErrNotFound) {
			http.Error(w, "graph not available", http.StatusNotFound)
			return nil, false
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return g, true
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCacheStats exposes the artifact cache hit counters.
func (a *App) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.artifacts.Metrics())
}
