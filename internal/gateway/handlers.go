package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/persist"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type healthResponse struct {
	Status string `json:"status"`
	Peers  int    `json:"peers"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Peers:  s.peers.Count(),
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleSaveMessages is the durable-write endpoint. Writes are idempotent by
// message id: replayed ids are acknowledged as saved, never rejected.
func (s *Server) handleSaveMessages(w http.ResponseWriter, r *http.Request) {
	var req persist.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ConversationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "conversationId is required"})
		return
	}
	for _, m := range req.Messages {
		if m.ID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message id is required"})
			return
		}
	}

	out, err := s.messages.SaveBatch(req.ConversationID, req.Messages)
	if err != nil {
		s.log.Error().Err(err).Str("conversation", req.ConversationID).Msg("save batch failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}

	writeJSON(w, http.StatusOK, persist.SaveResult{
		Success:    true,
		Saved:      out.Saved,
		MessageIDs: out.AckedIDs,
		Skipped:    out.Saved == 0 && len(req.Messages) > 0,
	})
}

type offlineResponse struct {
	OfflineMessages []domain.OfflineItem `json:"offlineMessages"`
}

// handleOfflineMessages drains the caller's offline queue. With a timeout
// parameter it long-polls: an empty queue is re-checked every waitInterval
// until something arrives or the timeout elapses. An empty result is a
// normal response, not an error.
func (s *Server) handleOfflineMessages(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
		return
	}

	timeout := durationParam(r, "timeout", 0)
	waitInterval := durationParam(r, "waitInterval", 500*time.Millisecond)
	deadline := time.Now().Add(timeout)

	for {
		items, err := s.offline.Drain(userID)
		if err != nil {
			s.log.Error().Err(err).Str("user", userID).Msg("offline drain failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
			return
		}
		if len(items) > 0 || !time.Now().Add(waitInterval).Before(deadline) {
			if items == nil {
				items = []domain.OfflineItem{}
			}
			writeJSON(w, http.StatusOK, offlineResponse{OfflineMessages: items})
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-time.After(waitInterval):
		}
	}
}

// durationParam reads a whole-second query parameter.
func durationParam(r *http.Request, name string, fallback time.Duration) time.Duration {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
