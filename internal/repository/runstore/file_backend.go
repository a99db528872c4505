package runstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var rows []Run
		if err := json.Unmarshal(b, &rows); err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, row := range rows {
			id := strings.TrimSpace(row.ID)
			if id == "" {
				continue
			}
			s.byID[id] = normalizeRun(row)
		}
	})
}

func (s *Store) saveFile() {
	s.ensureLoadedFile()
	s.mu.RLock()
	rows := make([]Run, 0, len(s.byID))
	for _, run := range s.byID {
		rows = append(rows, normalizeRun(run))
	}
	s.mu.RUnlock()
	sortRuns(rows)

	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(s.path), 0o755)
	_ = os.WriteFile(s.path, b, 0o644)
}

func (s *Store) getFile(runID string) (Run, bool) {
	s.ensureLoadedFile()
	id := strings.TrimSpace(runID)
	if id == "" {
		return Run{}, false
	}
	s.mu.RLock()
	run, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return Run{}, false
	}
	return normalizeRun(run), true
}

func (s *Store) putFile(run Run) {
	s.ensureLoadedFile()
	if run.ID == "" {
		return
	}
	s.mu.Lock()
	s.byID[run.ID] = run
	s.mu.Unlock()
}

func (s *Store) updateFile(runID string, update func(*Run)) (Run, bool) {
	s.ensureLoadedFile()
	id := strings.TrimSpace(runID)
	if id == "" {
		return Run{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.byID[id]
	if !ok {
		return Run{}, false
	}
	update(&run)
	run.ID = id
	run.UpdatedAt = time.Now()
	run = normalizeRun(run)
	s.byID[id] = run
	return run, true
}

func (s *Store) listFile(repo string) []Run {
	s.ensureLoadedFile()
	s.mu.RLock()
	out := make([]Run, 0, len(s.byID))
	for _, run := range s.byID {
		if repo != "" && run.Repo != repo {
			continue
		}
		out = append(out, normalizeRun(run))
	}
	s.mu.RUnlock()
	sortRuns(out)
	return out
}

// sortRuns orders newest first; ID breaks ties so listings are stable.
func sortRuns(runs []Run) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}
