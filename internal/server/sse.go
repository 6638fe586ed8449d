package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/davidgr87/whats-that-sound/internal/constants"
)

// handleEvents streams pipeline progress as server-sent events, one snapshot
// per second per connection, until the client disconnects or the server
// shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientID := uuid.NewString()
	log := s.Logger.With("client", clientID)
	log.Info("SSE client connected")
	defer log.Info("SSE client disconnected")

	ticker := time.NewTicker(constants.SSEInterval)
	defer ticker.Stop()

	// Event ids are client-scoped so reconnecting clients can spot gaps.
	seq := 0

	// First snapshot immediately so clients render without waiting a tick.
	if err := s.writeEvent(w, flusher, eventID(clientID, seq)); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			seq++
			if err := s.writeEvent(w, flusher, eventID(clientID, seq)); err != nil {
				log.Debug("SSE write failed", "error", err)
				return
			}
		}
	}
}

func eventID(clientID string, seq int) string {
	return fmt.Sprintf("%s-%d", clientID, seq)
}

func (s *Server) writeEvent(w http.ResponseWriter, flusher http.Flusher, id string) error {
	counts, err := s.Store.Counts()
	if err != nil {
		return err
	}
	source, _ := s.Dirs()

	payload, err := json.Marshal(map[string]interface{}{
		"counts":    counts,
		"processed": s.Progress.Stats(),
		"total":     countChildren(source),
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %s\ndata: %s\n\n", id, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
