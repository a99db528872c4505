package server

import (
	"strings"
	"time"

	"codeatlas/internal/pipeline"
)

const completedRunRetention = 30 * time.Second

// AllocateRunEventChannel registers a buffered event channel for a run.
// Emitters drop events when the buffer is full, so a slow watcher never
// stalls the pipeline.
func (a *App) AllocateRunEventChannel(runID string, size int) chan pipeline.RunEvent {
	if size <= 0 {
		size = 1
	}
	ch := make(chan pipeline.RunEvent, size)
	if a == nil {
		return ch
	}
	a.runMu.Lock()
	a.runEvents[strings.TrimSpace(runID)] = ch
	a.runMu.Unlock()
	return ch
}

// RunEventChannel returns the event channel for a run, if one is registered.
func (a *App) RunEventChannel(runID string) (chan pipeline.RunEvent, bool) {
	if a == nil {
		return nil, false
	}
	a.runMu.RLock()
	ch, ok := a.runEvents[strings.TrimSpace(runID)]
	a.runMu.RUnlock()
	return ch, ok
}

// ScheduleRunCleanup drops the event channel after a grace period, leaving
// late watchers enough time to drain the final events.
func (a *App) ScheduleRunCleanup(runID string) {
	if a == nil {
		return
	}
	time.AfterFunc(completedRunRetention, func() {
		a.runMu.Lock()
		delete(a.runEvents, strings.TrimSpace(runID))
		a.runMu.Unlock()
	})
}
