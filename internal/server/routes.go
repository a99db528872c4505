package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux registers all API routes and wraps them in CORS.
func NewMux(a *App) http.Handler {
	mux := http.NewServeMux()

	// Run lifecycle and queries
	mux.HandleFunc("/v1/runs", a.handleRuns)
	mux.HandleFunc("/v1/runs/", a.handleRun)

	// Operational endpoints
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/cache-stats", a.handleCacheStats)

	return CORS(mux)
}
