package httpapi

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/speakmate/speakmate/internal/observe"
	"github.com/speakmate/speakmate/internal/workflow"
)

// maxAudioUpload bounds the multipart audio body (16 MiB).
const maxAudioUpload = 16 << 20

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

// handleChat runs one turn and streams its events. The body is either
// JSON {message, thread_id?} or a multipart upload with an "audio" file
// part and an optional "thread_id" field.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	input, ok := s.decodeTurnInput(w, r)
	if !ok {
		return
	}

	stream, ok := newSSEWriter(w)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events := s.engine.SubmitTurn(r.Context(), input)
	for ev := range events {
		if err := stream.send(string(ev.Kind), ev.Data()); err != nil {
			observe.Logger(r.Context()).Debug("event stream closed early", "error", err)
			// Client went away. Keep receiving until the turn goroutine
			// closes the channel so it can finish and commit the thread.
			for range events {
			}
			return
		}
	}
}

func (s *Server) decodeTurnInput(w http.ResponseWriter, r *http.Request) (workflow.TurnInput, bool) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "multipart/") {
		return s.decodeAudioInput(w, r)
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return workflow.TurnInput{}, false
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return workflow.TurnInput{}, false
	}
	return workflow.TurnInput{ThreadID: req.ThreadID, Text: req.Message}, true
}

func (s *Server) decodeAudioInput(w http.ResponseWriter, r *http.Request) (workflow.TurnInput, bool) {
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return workflow.TurnInput{}, false
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "audio file is required")
		return workflow.TurnInput{}, false
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioUpload))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "reading audio failed")
		return workflow.TurnInput{}, false
	}
	if len(audio) == 0 {
		s.writeError(w, http.StatusBadRequest, "audio file is empty")
		return workflow.TurnInput{}, false
	}

	format := strings.TrimPrefix(path.Ext(header.Filename), ".")
	if format == "" {
		format = "webm"
	}
	return workflow.TurnInput{
		ThreadID:    r.FormValue("thread_id"),
		Audio:       audio,
		AudioFormat: format,
	}, true
}
