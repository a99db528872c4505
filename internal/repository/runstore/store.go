// Package runstore tracks documentation runs. Records live in a local JSON
// file by default, or in Postgres when a DSN is configured, so the same
// server code serves both laptop and deployed setups.
package runstore

import (
	"database/sql"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	byID     map[string]Run

	schemaOnce sync.Once
	schemaErr  error

	repoCache *lru.Cache[string, []Run]
}

func New(path string) *Store {
	return &Store{
		path: path,
		byID: make(map[string]Run),
	}
}

func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, []Run](256)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{
		db:        db,
		repoCache: cache,
	}, nil
}

// NewFromEnv prefers Postgres when ATLAS_PG_DSN is set and falls back to
// the file-backed store at path.
func NewFromEnv(path string) *Store {
	dsn := strings.TrimSpace(os.Getenv("ATLAS_PG_DSN"))
	if dsn == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		log.Printf("run store: postgres unavailable, using file store: %v", err)
		return New(path)
	}
	return s
}

func (s *Store) EnsureLoaded() {
	if s == nil {
		return
	}
	if s.db != nil {
		_ = s.ensureSchema()
		return
	}
	s.ensureLoadedFile()
}

// Save flushes the file backend. The Postgres backend persists on every
// write, so it is a no-op there.
func (s *Store) Save() {
	if s == nil || s.db != nil {
		return
	}
	s.saveFile()
}

func (s *Store) Get(runID string) (Run, bool) {
	if s == nil {
		return Run{}, false
	}
	if s.db != nil {
		return s.getDB(runID)
	}
	return s.getFile(runID)
}

func (s *Store) Put(run Run) {
	if s == nil {
		return
	}
	now := time.Now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	run = normalizeRun(run)
	if s.db != nil {
		s.putDB(run)
		s.invalidateRepo(run.Repo)
		return
	}
	s.putFile(run)
}

func (s *Store) Update(runID string, update func(*Run)) (Run, bool) {
	if s == nil {
		return Run{}, false
	}
	if s.db != nil {
		run, ok := s.updateDB(runID, update)
		if ok {
			s.invalidateRepo(run.Repo)
		}
		return run, ok
	}
	return s.updateFile(runID, update)
}

func (s *Store) List() []Run {
	if s == nil {
		return nil
	}
	if s.db != nil {
		return s.listDB("")
	}
	return s.listFile("")
}

func (s *Store) ListByRepo(repo string) []Run {
	if s == nil {
		return nil
	}
	repo = strings.TrimSpace(repo)
	if s.db != nil {
		if s.repoCache != nil {
			if cached, ok := s.repoCache.Get(repo); ok {
				return cached
			}
		}
		runs := s.listDB(repo)
		if s.repoCache != nil {
			s.repoCache.Add(repo, runs)
		}
		return runs
	}
	return s.listFile(repo)
}

func (s *Store) invalidateRepo(repo string) {
	if s.repoCache == nil {
		return
	}
	s.repoCache.Remove(strings.TrimSpace(repo))
}
