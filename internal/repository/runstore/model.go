package runstore

import (
	"strings"
	"time"
)

type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Terminal reports whether a run in this status will never change again.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Run records one documentation run over a repository.
type Run struct {
	ID        string    `json:"id"`
	Repo      string    `json:"repo"`
	URL       string    `json:"url,omitempty"`
	Branch    string    `json:"branch,omitempty"`
	Status    Status    `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	Symbols   int       `json:"symbols,omitempty"`
	Files     int       `json:"files,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func normalizeRun(run Run) Run {
	run.ID = strings.TrimSpace(run.ID)
	run.Repo = strings.TrimSpace(run.Repo)
	run.URL = strings.TrimSpace(run.URL)
	run.Branch = strings.TrimSpace(run.Branch)
	if run.Status == "" {
		run.Status = StatusQueued
	}
	if run.Progress < 0 {
		run.Progress = 0
	}
	if run.Progress > 100 {
		run.Progress = 100
	}
	return run
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, bool) {
	var run Run
	var status string
	err := row.Scan(
		&run.ID,
		&run.Repo,
		&run.URL,
		&run.Branch,
		&status,
		&run.Stage,
		&run.Progress,
		&run.Error,
		&run.Symbols,
		&run.Files,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return Run{}, false
	}
	run.Status = Status(status)
	return normalizeRun(run), true
}
