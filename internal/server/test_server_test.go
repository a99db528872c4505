package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeatlas/internal/config"
	"codeatlas/internal/pipeline"
	"codeatlas/internal/repository/runstore"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.OutRoot = t.TempDir()
	cfg.ReposRoot = t.TempDir()
	cfg.StatePath = filepath.Join(t.TempDir(), "runs.json")
	cfg.Timeout = config.Duration(time.Minute)
	cfg.Workers = 2

	app, err := NewApp(&cfg)
	require.NoError(t, err)
	return app
}

// fixtureRepo writes a small python project where a.f calls b.g across files.
func fixtureRepo(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "pyproj")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"),
		[]byte("from b import g\n\n\ndef f():\n    return g()\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.py"),
		[]byte("def g():\n    return 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"),
		[]byte("# pyproj\n\nTwo files calling each other.\n"), 0o644))
	return dir
}

func startRun(t *testing.T, ts *httptest.Server, repo string) runstore.Run {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"repo": repo})
	resp, err := http.Post(ts.URL+"/v1/runs", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var run runstore.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	require.NotEmpty(t, run.ID)
	return run
}

func waitForRun(t *testing.T, ts *httptest.Server, runID string) runstore.Run {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/v1/runs/" + runID)
		require.NoError(t, err)
		var run runstore.Run
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
		resp.Body.Close()
		if run.Status.Terminal() {
			return run
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish in time", runID)
	return runstore.Run{}
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestRunLifecycle(t *testing.T) {
	app := newTestApp(t)
	ts := httptest.NewServer(NewMux(app))
	defer ts.Close()

	repo := fixtureRepo(t)
	run := startRun(t, ts, repo)
	assert.Equal(t, "pyproj", run.Repo)
	assert.Equal(t, runstore.StatusQueued, run.Status)

	done := waitForRun(t, ts, run.ID)
	require.Equal(t, runstore.StatusComplete, done.Status, "run error: %s", done.Error)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, "pyproj", done.Repo)
	assert.Greater(t, done.Symbols, 0)
	assert.Greater(t, done.Files, 0)

	// Document
	resp, err := http.Get(ts.URL + "/v1/runs/" + run.ID + "/doc")
	require.NoError(t, err)
	doc, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
	assert.Contains(t, string(doc), "pyproj Documentation")

	// Artifact listing includes the pipeline outputs.
	var listing struct {
		Artifacts []string `json:"artifacts"`
	}
	resp = getJSON(t, ts.URL+"/v1/runs/"+run.ID+"/artifacts", &listing)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, listing.Artifacts, "graph.json")
	assert.Contains(t, listing.Artifacts, "documentation.md")

	// Single artifact fetch
	resp, err = http.Get(ts.URL + "/v1/runs/" + run.ID + "/artifacts/graph.json")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, json.Valid(raw))
}

func TestGraphEndpoints(t *testing.T) {
	app := newTestApp(t)
	ts := httptest.NewServer(NewMux(app))
	defer ts.Close()

	run := startRun(t, ts, fixtureRepo(t))
	done := waitForRun(t, ts, run.ID)
	require.Equal(t, runstore.StatusComplete, done.Status, "run error: %s", done.Error)

	var summary struct {
		Stats struct {
			Symbols int `json:"symbols"`
			Edges   int `json:"edges"`
		} `json:"stats"`
	}
	resp := getJSON(t, ts.URL+"/v1/runs/"+run.ID+"/graph", &summary)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Greater(t, summary.Stats.Symbols, 0)
	assert.Greater(t, summary.Stats.Edges, 0)

	var neighbors struct {
		Neighbors []struct {
			Name string `json:"name"`
		} `json:"neighbors"`
	}
	resp = getJSON(t, ts.URL+"/v1/runs/"+run.ID+"/graph/neighbors?symbol=a.f&direction=outgoing", &neighbors)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	names := make([]string, 0, len(neighbors.Neighbors))
	for _, n := range neighbors.Neighbors {
		names = append(names, n.Name)
	}
	assert.Contains(t, names, "b.g")

	var order struct {
		Order []struct {
			Name string `json:"name"`
		} `json:"order"`
	}
	resp = getJSON(t, ts.URL+"/v1/runs/"+run.ID+"/graph/order", &order)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	posF, posG := -1, -1
	for i, s := range order.Order {
		switch s.Name {
		case "a.f":
			posF = i
		case "b.g":
			posG = i
		}
	}
	require.GreaterOrEqual(t, posF, 0)
	require.GreaterOrEqual(t, posG, 0)
	assert.Less(t, posG, posF, "a.f calls b.g, so b.g must come first")

	// Unknown symbol and bad direction
	resp = getJSON(t, ts.URL+"/v1/runs/"+run.ID+"/graph/neighbors?symbol=nope.nothing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = getJSON(t, ts.URL+"/v1/runs/"+run.ID+"/graph/neighbors?symbol=a.f&direction=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWatchStreamsEvents(t *testing.T) {
	app := newTestApp(t)
	ts := httptest.NewServer(NewMux(app))
	defer ts.Close()

	run := startRun(t, ts, fixtureRepo(t))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/runs/" + run.ID + "/watch"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer ws.Close()

	var sawProgress bool
	var last pipeline.RunEvent
	for {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(30*time.Second)))
		var event pipeline.RunEvent
		if err := ws.ReadJSON(&event); err != nil {
			t.Fatalf("read event: %v (last: %+v)", err, last)
		}
		last = event
		if event.Type == pipeline.EventTypeProgress {
			sawProgress = true
		}
		if event.Type == pipeline.EventTypeComplete || event.Type == pipeline.EventTypeError {
			break
		}
	}
	assert.True(t, sawProgress, "expected at least one progress event")
	require.Equal(t, pipeline.EventTypeComplete, last.Type, "run failed: %s", last.Message)
}

func TestStartRunValidation(t *testing.T) {
	app := newTestApp(t)
	ts := httptest.NewServer(NewMux(app))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/runs", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/v1/runs", "application/json", strings.NewReader(`{"repo":"  "}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/runs", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = getJSON(t, ts.URL+"/v1/runs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = getJSON(t, ts.URL+"/v1/runs/does-not-exist/watch", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOperationalEndpoints(t *testing.T) {
	app := newTestApp(t)
	ts := httptest.NewServer(NewMux(app))
	defer ts.Close()

	var health map[string]string
	resp := getJSON(t, ts.URL+"/healthz", &health)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health["status"])

	run := startRun(t, ts, fixtureRepo(t))
	done := waitForRun(t, ts, run.ID)
	require.Equal(t, runstore.StatusComplete, done.Status, "run error: %s", done.Error)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	metrics, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(metrics), fmt.Sprintf("%s_runs_total", metricsNamespace))

	// Two reads of the same doc: the second one is served from the cache.
	for i := 0; i < 2; i++ {
		r, err := http.Get(ts.URL + "/v1/runs/" + run.ID + "/doc")
		require.NoError(t, err)
		io.Copy(io.Discard, r.Body)
		r.Body.Close()
	}
	var stats struct {
		BlobHits uint64 `json:"blob_hits"`
	}
	resp = getJSON(t, ts.URL+"/debug/cache-stats", &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, stats.BlobHits, uint64(1))
}

func TestListRunsFilter(t *testing.T) {
	app := newTestApp(t)
	ts := httptest.NewServer(NewMux(app))
	defer ts.Close()

	run := startRun(t, ts, fixtureRepo(t))
	waitForRun(t, ts, run.ID)

	var listing struct {
		Runs []runstore.Run `json:"runs"`
	}
	resp := getJSON(t, ts.URL+"/v1/runs", &listing)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, listing.Runs, 1)

	resp = getJSON(t, ts.URL+"/v1/runs?repo=pyproj", &listing)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, listing.Runs, 1)

	resp = getJSON(t, ts.URL+"/v1/runs?repo=absent", &listing)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, listing.Runs, 0)
}
