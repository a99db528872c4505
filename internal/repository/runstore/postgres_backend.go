package runstore

import (
	"database/sql"
	"strings"
	"time"
)

const runColumns = `id, repo, url, branch, status, stage, progress, error, symbols, files, created_at, updated_at`

func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS atlas_runs (
  id TEXT PRIMARY KEY,
  repo TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL DEFAULT '',
  branch TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'queued',
  stage TEXT NOT NULL DEFAULT '',
  progress INT NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT '',
  symbols BIGINT NOT NULL DEFAULT 0,
  files BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_atlas_runs_repo ON atlas_runs (repo);
`)
	})
	return s.schemaErr
}

func (s *Store) getDB(runID string) (Run, bool) {
	if err := s.ensureSchema(); err != nil {
		return Run{}, false
	}
	id := strings.TrimSpace(runID)
	if id == "" {
		return Run{}, false
	}
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM atlas_runs WHERE id = $1`, id)
	return scanRun(row)
}

func (s *Store) putDB(run Run) {
	if err := s.ensureSchema(); err != nil {
		return
	}
	if run.ID == "" {
		return
	}
	_, _ = s.db.Exec(`
INSERT INTO atlas_runs (
  id, repo, url, branch, status, stage, progress, error, symbols, files, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id)
DO UPDATE SET repo=EXCLUDED.repo,
  url=EXCLUDED.url,
  branch=EXCLUDED.branch,
  status=EXCLUDED.status,
  stage=EXCLUDED.stage,
  progress=EXCLUDED.progress,
  error=EXCLUDED.error,
  symbols=EXCLUDED.symbols,
  files=EXCLUDED.files,
  updated_at=EXCLUDED.updated_at`,
		run.ID, run.Repo, run.URL, run.Branch, string(run.Status), run.Stage,
		run.Progress, run.Error, run.Symbols, run.Files, run.CreatedAt, run.UpdatedAt)
}

func (s *Store) updateDB(runID string, update func(*Run)) (Run, bool) {
	if err := s.ensureSchema(); err != nil {
		return Run{}, false
	}
	tx, err := s.db.Begin()
	if err != nil {
		return Run{}, false
	}
	defer func() { _ = tx.Rollback() }()

	id := strings.TrimSpace(runID)
	row := tx.QueryRow(`SELECT `+runColumns+` FROM atlas_runs WHERE id = $1 FOR UPDATE`, id)
	cur, ok := scanRun(row)
	if !ok {
		return Run{}, false
	}
	update(&cur)
	cur.ID = id
	cur.UpdatedAt = time.Now()
	cur = normalizeRun(cur)
	_, err = tx.Exec(`
UPDATE atlas_runs
SET repo=$2, url=$3, branch=$4, status=$5, stage=$6, progress=$7, error=$8, symbols=$9, files=$10, updated_at=$11
WHERE id=$1`,
		cur.ID, cur.Repo, cur.URL, cur.Branch, string(cur.Status), cur.Stage,
		cur.Progress, cur.Error, cur.Symbols, cur.Files, cur.UpdatedAt)
	if err != nil {
		return Run{}, false
	}
	if err := tx.Commit(); err != nil {
		return Run{}, false
	}
	return cur, true
}

func (s *Store) listDB(repo string) []Run {
	if err := s.ensureSchema(); err != nil {
		return nil
	}
	var (
		rows *sql.Rows
		err  error
	)
	if repo == "" {
		rows, err = s.db.Query(`SELECT ` + runColumns + ` FROM atlas_runs ORDER BY created_at DESC, id`)
	} else {
		rows, err = s.db.Query(`SELECT `+runColumns+` FROM atlas_runs WHERE repo = $1 ORDER BY created_at DESC, id`, repo)
	}
	if err != nil {
		return nil
	}
	defer rows.Close()
	out := make([]Run, 0, 32)
	for rows.Next() {
		run, ok := scanRun(rows)
		if !ok {
			continue
		}
		out = append(out, run)
	}
	return out
}
