package config

import (
	"os"
	"strings"
)

// applyLocalDefaults fills in the settings a docker-compose style local
// setup expects. Explicit values from file or environment stay untouched.
func applyLocalDefaults(cfg *Config) {
	if !cfg.Artifact.Enabled {
		return
	}
	cfg.Artifact.Endpoint = firstNonEmpty(
		strings.TrimSpace(os.Getenv("ATLAS_MINIO_ENDPOINT")),
		cfg.Artifact.Endpoint,
		"minio:9000",
	)
	cfg.Artifact.UseSSL = false
}
