package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/speakmate/speakmate/internal/session"
	"github.com/speakmate/speakmate/internal/suggest"
)

// Fixed summary responses for sessions with nothing to analyse.
const (
	tipsNoThread = "Start a conversation to get grammar feedback and personalized tips!"
	tipsNoErrors = "Excellent! You haven't made any grammar errors in this conversation. Keep up the great work! 🎉"
)

type summaryRequest struct {
	ThreadID string `json:"thread_id"`
}

type summaryResponse struct {
	Corrections    []session.Correction `json:"corrections"`
	Tips           string               `json:"tips"`
	CommonPatterns []suggest.Pattern    `json:"common_patterns"`
	Suggestions    []suggest.Suggestion `json:"ielts_suggestions"`
}

// handleSummary builds the practice summary: the session's corrections,
// AI-generated tips with recurring patterns, and vocabulary suggestions.
// Tips generation and the suggestion pipeline run concurrently. A session
// with no flagged corrections returns the fixed congratulatory tips
// without any AI or search call.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ThreadID == "" {
		s.writeError(w, http.StatusBadRequest, "thread_id is required")
		return
	}

	state, err := s.engine.GetState(r.Context(), req.ThreadID)
	if errors.Is(err, session.ErrNotFound) {
		s.writeJSON(w, http.StatusOK, summaryResponse{
			Corrections:    []session.Correction{},
			Tips:           tipsNoThread,
			CommonPatterns: []suggest.Pattern{},
			Suggestions:    []suggest.Suggestion{},
		})
		return
	}
	if err != nil {
		s.log.Error("loading summary state failed", "thread_id", req.ThreadID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "loading thread state failed")
		return
	}

	flagged := make([]session.Correction, 0, len(state.Corrections))
	corrected := make([]string, 0, len(state.Corrections))
	for _, c := range state.Corrections {
		if len(c.Issues) > 0 {
			flagged = append(flagged, c)
			corrected = append(corrected, c.Corrected)
		}
	}
	if len(flagged) == 0 {
		s.writeJSON(w, http.StatusOK, summaryResponse{
			Corrections:    state.Corrections,
			Tips:           tipsNoErrors,
			CommonPatterns: []suggest.Pattern{},
			Suggestions:    []suggest.Suggestion{},
		})
		return
	}

	var (
		tips        string
		patterns    []suggest.Pattern
		suggestions []suggest.Suggestion
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		tips, patterns, err = suggest.GenerateTips(ctx, s.llm, flagged)
		if err != nil {
			s.log.Warn("tips generation failed", "thread_id", req.ThreadID, "error", err)
			tips, patterns = suggest.TipsFallback, []suggest.Pattern{}
		}
		return nil
	})
	g.Go(func() error {
		suggestions = s.pipeline.Run(ctx, corrected)
		return nil
	})
	// Both goroutines swallow their failures; the summary always renders.
	_ = g.Wait()

	if suggestions == nil {
		suggestions = []suggest.Suggestion{}
	}
	s.writeJSON(w, http.StatusOK, summaryResponse{
		Corrections:    state.Corrections,
		Tips:           tips,
		CommonPatterns: patterns,
		Suggestions:    suggestions,
	})
}
