package server

import (
	"log"
	"net/http"

	"codeatlas/internal/pipeline"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWatch serves GET /v1/runs/<id>/watch: run events stream over a
// websocket until the run reaches a terminal event, the channel closes or
// the client goes away.
func (a *App) handleWatch(w http.ResponseWriter, r *http.Request, runID string) {
	eventCh, ok := a.RunEventChannel(runID)
	if !ok {
		// Channels of finished runs are retained only briefly; after
		// that the stored record is the single source of truth.
		if run, found := a.runs.Get(runID); found && run.Status.Terminal() {
			http.Error(w, "run already finished", http.StatusGone)
			return
		}
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("watch %s: upgrade failed: %v", runID, err)
		return
	}
	defer ws.Close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-eventCh:
			if !open {
				return
			}
			if err := ws.WriteJSON(event); err != nil {
				log.Printf("watch %s: write failed: %v", runID, err)
				return
			}
			if event.Type == pipeline.EventTypeComplete || event.Type == pipeline.EventTypeError {
				return
			}
		}
	}
}
