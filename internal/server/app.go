// Package server hosts the HTTP API: starting documentation runs, polling
// their status, streaming progress over websockets, and querying the
// finalized symbol graph of a finished run.
package server

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"codeatlas/internal/config"
	"codeatlas/internal/pipeline"
	artifactrepo "codeatlas/internal/repository/artifact"
	"codeatlas/internal/repository/runstore"

	"github.com/prometheus/client_golang/prometheus"
)

// App wires the stores, metrics and run bookkeeping behind the HTTP handlers.
type App struct {
	cfg *config.Config

	runs      *runstore.Store
	artifacts *artifactrepo.CachedStore

	runMu     sync.RWMutex
	runEvents map[string]chan pipeline.RunEvent

	registry *prometheus.Registry
	metrics  *Metrics
}

// NewApp builds the application from config: run store (postgres or file),
// artifact store (s3, postgres or disk, always behind the cache) and the
// metrics registry.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	runs, err := newRunStore(cfg)
	if err != nil {
		return nil, err
	}
	artifacts, err := newArtifactStore(cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	return &App{
		cfg:       cfg,
		runs:      runs,
		artifacts: artifacts,
		runEvents: make(map[string]chan pipeline.RunEvent),
		registry:  registry,
		metrics:   NewMetrics(registry),
	}, nil
}

// Runs exposes the run store, mainly for tests.
func (a *App) Runs() *runstore.Store {
	if a == nil {
		return nil
	}
	return a.runs
}

func newRunStore(cfg *config.Config) (*runstore.Store, error) {
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		store, err := runstore.NewPostgres(dsn)
		if err == nil {
			log.Printf("run store: postgres")
			return store, nil
		}
		log.Printf("run store: postgres unavailable, using file store: %v", err)
	}
	return runstore.New(cfg.StatePath), nil
}

func newArtifactStore(cfg *config.Config) (*artifactrepo.CachedStore, error) {
	fallback, fallbackLabel, err := newArtifactFallbackStore(cfg)
	if err != nil {
		return nil, err
	}
	return chooseArtifactStore(cfg, fallback, fallbackLabel, newArtifactS3StoreFactory(cfg))
}

func newArtifactFallbackStore(cfg *config.Config) (artifactrepo.Store, string, error) {
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		db, err := artifactrepo.OpenPostgres(dsn)
		if err == nil {
			return artifactrepo.NewPostgresStore(db), "postgres", nil
		}
		log.Printf("artifact store: postgres unavailable, using disk store: %v", err)
	}
	return artifactrepo.NewDiskStore(filepath.Join(cfg.OutRoot, "artifacts")), "disk", nil
}

func newArtifactS3StoreFactory(cfg *config.Config) func() (artifactrepo.Store, error) {
	return func() (artifactrepo.Store, error) {
		s3Cfg := artifactrepo.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		}
		s3Store, err := artifactrepo.NewS3Store(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact s3 store: %w", err)
		}
		log.Printf("artifact store: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
		return s3Store, nil
	}
}

func chooseArtifactStore(
	cfg *config.Config,
	fallback artifactrepo.Store,
	fallbackLabel string,
	s3Factory func() (artifactrepo.Store, error),
) (*artifactrepo.CachedStore, error) {
	var origin artifactrepo.Store
	if cfg.Artifact.CanUseS3() {
		s3Store, err := s3Factory()
		if err != nil {
			return nil, err
		}
		origin = s3Store
	} else {
		if cfg.Artifact.Enabled {
			log.Printf("artifact store: using %s fallback (s3 config incomplete)", fallbackLabel)
		}
		origin = fallback
	}
	if origin == nil {
		return nil, fmt.Errorf("artifact origin store is nil")
	}
	return artifactrepo.NewCachedStore(origin, artifactrepo.DefaultCacheConfig()), nil
}
