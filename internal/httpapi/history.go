package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/speakmate/speakmate/internal/session"
)

type historyCorrection struct {
	Original    string   `json:"original"`
	Corrected   string   `json:"corrected"`
	Issues      []string `json:"issues"`
	Explanation string   `json:"explanation"`
}

type historyMessage struct {
	ID         string             `json:"id"`
	Role       string             `json:"role"`
	Content    string             `json:"content"`
	Timestamp  int64              `json:"timestamp"`
	Correction *historyCorrection `json:"correction,omitempty"`
}

type historyResponse struct {
	Messages []historyMessage `json:"messages"`
}

// handleHistory returns the thread's messages with each user message's
// correction attached. Unknown threads return an empty list, never an
// error, so a fresh client can always render.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["thread_id"]

	state, err := s.engine.GetState(r.Context(), threadID)
	if errors.Is(err, session.ErrNotFound) {
		s.writeJSON(w, http.StatusOK, historyResponse{Messages: []historyMessage{}})
		return
	}
	if err != nil {
		s.log.Error("loading history failed", "thread_id", threadID, "error", err)
		s.writeJSON(w, http.StatusOK, historyResponse{Messages: []historyMessage{}})
		return
	}

	// Corrections reference user messages by their 1-based ordinal.
	byMessageID := make(map[string]session.Correction, len(state.Corrections))
	for _, c := range state.Corrections {
		byMessageID[c.MessageID] = c
	}

	msgs := make([]historyMessage, 0, len(state.Messages))
	userOrdinal := 0
	for i, m := range state.Messages {
		hm := historyMessage{
			ID:      fmt.Sprintf("msg_%d_%s", i, m.Role),
			Role:    string(m.Role),
			Content: m.Content,
		}
		if m.Role == session.RoleUser {
			userOrdinal++
			if c, ok := byMessageID[fmt.Sprintf("msg_%d", userOrdinal)]; ok {
				hm.Correction = &historyCorrection{
					Original:    c.Original,
					Corrected:   c.Corrected,
					Issues:      c.Issues,
					Explanation: c.Explanation,
				}
			}
		}
		msgs = append(msgs, hm)
	}

	s.writeJSON(w, http.StatusOK, historyResponse{Messages: msgs})
}
