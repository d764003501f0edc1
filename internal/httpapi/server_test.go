package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/speakmate/speakmate/internal/session"
	"github.com/speakmate/speakmate/internal/suggest"
	"github.com/speakmate/speakmate/internal/vocab"
	vocabmock "github.com/speakmate/speakmate/internal/vocab/mock"
	"github.com/speakmate/speakmate/internal/workflow"
	"github.com/speakmate/speakmate/pkg/provider/llm"
	sttmock "github.com/speakmate/speakmate/pkg/provider/stt/mock"
	ttsmock "github.com/speakmate/speakmate/pkg/provider/tts/mock"
)

// promptLLM serves each node from one provider by matching a fragment of
// the system prompt, since turn branches race and a sequential mock cannot
// drive them.
type promptLLM struct {
	mu        sync.Mutex
	responses map[string]string // prompt fragment -> content
	calls     int
}

func (p *promptLLM) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	for fragment, content := range p.responses {
		if strings.Contains(req.SystemPrompt, fragment) {
			return &llm.CompletionResponse{Content: content}, nil
		}
	}
	return &llm.CompletionResponse{Content: "ok"}, nil
}

func (p *promptLLM) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
		if ev.name == "" {
			t.Fatalf("SSE block without event name: %q", block)
		}
		events = append(events, ev)
	}
	return events
}

const (
	passVerdict   = `{"allowed": true}`
	cleanCorrJSON = `{"original": "hello there", "corrected": "hello there", "issues": [], "explanation": "Perfect!"}`
)

func newTestServer(t *testing.T, store session.Store, provider llm.Provider, index vocab.Index) *Server {
	t.Helper()
	engine := workflow.New(store, provider, &ttsmock.Provider{},
		workflow.WithTranscriber(&sttmock.Provider{Text: "hello there"}))
	pipeline := suggest.NewPipeline(provider, index)
	return NewServer(engine, provider, pipeline, nil, nil)
}

func TestChatStreamsEvents(t *testing.T) {
	t.Parallel()

	provider := &promptLLM{responses: map[string]string{
		"gate messages":        passVerdict,
		"conversation partner": "Hi! What's on your mind today?",
		"grammar errors":       cleanCorrJSON,
	}}
	srv := newTestServer(t, session.NewMemStore(), provider, &vocabmock.Index{})

	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"message": "hello there"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}

	events := parseSSE(t, rec.Body.String())
	if len(events) == 0 {
		t.Fatal("no events streamed")
	}
	if events[0].name != "thread_id" {
		t.Errorf("first event = %q, want thread_id", events[0].name)
	}
	if events[len(events)-1].name != "complete" {
		t.Errorf("last event = %q, want complete", events[len(events)-1].name)
	}

	seen := make(map[string]int)
	for _, ev := range events {
		seen[ev.name]++
	}
	for _, want := range []string{"thread_id", "chat_response", "audio_chunk", "correction", "complete"} {
		if seen[want] != 1 {
			t.Errorf("event %q seen %d times, want 1", want, seen[want])
		}
	}

	var chat struct {
		Content string `json:"content"`
		Role    string `json:"role"`
	}
	for _, ev := range events {
		if ev.name == "chat_response" {
			if err := json.Unmarshal([]byte(ev.data), &chat); err != nil {
				t.Fatalf("decode chat_response: %v", err)
			}
		}
	}
	if chat.Role != "assistant" || chat.Content != "Hi! What's on your mind today?" {
		t.Errorf("chat_response = %+v", chat)
	}
}

func TestChatMultipartAudio(t *testing.T) {
	t.Parallel()

	provider := &promptLLM{responses: map[string]string{
		"gate messages":        passVerdict,
		"conversation partner": "Nice!",
		"grammar errors":       cleanCorrJSON,
	}}
	srv := newTestServer(t, session.NewMemStore(), provider, &vocabmock.Index{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "clip.webm")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte("fake-audio-bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/chat", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	events := parseSSE(t, rec.Body.String())
	if len(events) < 2 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	if events[0].name != "transcription" {
		t.Errorf("first event = %q, want transcription", events[0].name)
	}
	var tr struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(events[0].data), &tr); err != nil {
		t.Fatalf("decode transcription: %v", err)
	}
	if tr.Text != "hello there" {
		t.Errorf("transcription text = %q", tr.Text)
	}
	if events[1].name != "thread_id" {
		t.Errorf("second event = %q, want thread_id", events[1].name)
	}
}

// failingStreamWriter accepts the first event then fails every write,
// simulating a client that disconnected mid-stream.
type failingStreamWriter struct {
	header http.Header
	writes int
}

func (w *failingStreamWriter) Header() http.Header {
	if w.header == nil {
		w.header = make(http.Header)
	}
	return w.header
}

func (w *failingStreamWriter) WriteHeader(int) {}

func (w *failingStreamWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > 1 {
		return 0, errors.New("broken pipe")
	}
	return len(p), nil
}

func (w *failingStreamWriter) Flush() {}

func TestChatClientDisconnectStillCommitsTurn(t *testing.T) {
	t.Parallel()

	provider := &promptLLM{responses: map[string]string{
		"gate messages":        passVerdict,
		"conversation partner": "Hi! What's on your mind today?",
		"grammar errors":       cleanCorrJSON,
	}}
	store := session.NewMemStore()
	srv := newTestServer(t, store, provider, &vocabmock.Index{})

	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"message": "hello there", "thread_id": "t-gone"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.ServeHTTP(&failingStreamWriter{}, req)

	// The handler drains the stream on a failed write, so by the time it
	// returns the turn has run to completion and committed.
	state, err := store.Get(context.Background(), "t-gone")
	if err != nil {
		t.Fatalf("Get after disconnect: %v", err)
	}
	if len(state.Messages) != 2 {
		t.Errorf("got %d messages, want user + assistant", len(state.Messages))
	}
	if len(state.Corrections) != 1 {
		t.Errorf("got %d corrections, want 1", len(state.Corrections))
	}
}

func TestChatRejectsBadBodies(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, session.NewMemStore(), &promptLLM{}, &vocabmock.Index{})

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "{nope"},
		{name: "empty message", body: `{"message": "   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHistoryUnknownThreadIsEmpty(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, session.NewMemStore(), &promptLLM{}, &vocabmock.Index{})

	req := httptest.NewRequest(http.MethodGet, "/history/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Messages == nil || len(body.Messages) != 0 {
		t.Errorf("messages = %#v, want empty non-nil list", body.Messages)
	}
}

func TestHistoryAttachesCorrections(t *testing.T) {
	t.Parallel()

	store := session.NewMemStore()
	ctx := context.Background()
	err := store.Append(ctx, "t1",
		[]session.Message{
			{Role: session.RoleUser, Content: "i has a dog"},
			{Role: session.RoleAssistant, Content: "Dogs are great! What's its name?"},
			{Role: session.RoleUser, Content: "his name is Rex"},
			{Role: session.RoleAssistant, Content: "Rex is a classic name!"},
		},
		[]session.Correction{
			{Original: "i has a dog", Corrected: "I have a dog", Issues: []string{"Agreement"}, Explanation: "Use 'have'.", MessageID: "msg_1"},
			{Original: "his name is Rex", Corrected: "his name is Rex", Issues: []string{}, Explanation: "Perfect!", MessageID: "msg_2"},
		},
	)
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	srv := newTestServer(t, store, &promptLLM{}, &vocabmock.Index{})

	req := httptest.NewRequest(http.MethodGet, "/history/t1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var body historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(body.Messages))
	}
	first := body.Messages[0]
	if first.Role != "user" || first.Correction == nil {
		t.Fatalf("first message = %+v, want user with correction", first)
	}
	if first.Correction.Corrected != "I have a dog" {
		t.Errorf("first correction = %+v", first.Correction)
	}
	if body.Messages[1].Correction != nil {
		t.Error("assistant message carries a correction")
	}
	// Second user message, ordinal 2.
	third := body.Messages[2]
	if third.Role != "user" || third.Correction == nil || third.Correction.Explanation != "Perfect!" {
		t.Errorf("third message = %+v", third)
	}
	if first.Timestamp != 0 {
		t.Errorf("timestamp = %d, want 0", first.Timestamp)
	}

	// Idempotent: a second read returns the same body.
	rec2 := httptest.NewRecorder()
	srv.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/history/t1", nil))
	if rec.Body.String() != rec2.Body.String() {
		t.Error("repeated history reads differ")
	}
}

func TestSummaryNoFlaggedCorrectionsSkipsAI(t *testing.T) {
	t.Parallel()

	store := session.NewMemStore()
	err := store.Append(context.Background(), "t1",
		[]session.Message{{Role: session.RoleUser, Content: "hello there"}},
		[]session.Correction{{Original: "hello there", Corrected: "hello there", Issues: []string{}, MessageID: "msg_1"}},
	)
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	provider := &promptLLM{}
	index := &vocabmock.Index{}
	srv := newTestServer(t, store, provider, index)

	req := httptest.NewRequest(http.MethodPost, "/summary", strings.NewReader(`{"thread_id": "t1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Tips != tipsNoErrors {
		t.Errorf("tips = %q, want fixed congratulations", body.Tips)
	}
	if len(body.Suggestions) != 0 {
		t.Errorf("suggestions = %+v, want empty", body.Suggestions)
	}
	if provider.callCount() != 0 {
		t.Errorf("completion calls = %d, want 0", provider.callCount())
	}
	if index.CallCount() != 0 {
		t.Errorf("index searches = %d, want 0", index.CallCount())
	}
}

func TestSummaryUnknownThread(t *testing.T) {
	t.Parallel()

	provider := &promptLLM{}
	srv := newTestServer(t, session.NewMemStore(), provider, &vocabmock.Index{})

	req := httptest.NewRequest(http.MethodPost, "/summary", strings.NewReader(`{"thread_id": "nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var body summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Tips != tipsNoThread {
		t.Errorf("tips = %q, want start-a-conversation message", body.Tips)
	}
	if provider.callCount() != 0 {
		t.Errorf("completion calls = %d, want 0", provider.callCount())
	}
}

func TestSummaryWithFlaggedCorrections(t *testing.T) {
	t.Parallel()

	store := session.NewMemStore()
	err := store.Append(context.Background(), "t1",
		[]session.Message{
			{Role: session.RoleUser, Content: "i has a dog"},
			{Role: session.RoleAssistant, Content: "Cool!"},
		},
		[]session.Correction{{
			Original: "i has a dog", Corrected: "I have a dog",
			Issues: []string{"Agreement: 'has' → 'have'"}, Explanation: "Use 'have'.", MessageID: "msg_1",
		}},
	)
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}

	provider := &promptLLM{responses: map[string]string{
		"grammar patterns":   `{"tips": "Watch subject-verb agreement!", "common_patterns": [{"pattern": "Agreement", "frequency": 1, "suggestion": "Drill 'I have' aloud."}]}`,
		"Extract vocabulary": `{"replaceable_words": ["dog"]}`,
		"vocabulary coach":   `[{"target_word": "dog", "ielts_word": "canine", "usage_context": "Use 'canine' in formal or scientific writing."}]`,
	}}
	index := &vocabmock.Index{
		Matches: map[string][]vocab.Match{
			"dog": {{Entry: vocab.Entry{Word: "canine", Definition: "of or relating to dogs", Example: "The canine unit arrived."}, Score: 0.7}},
		},
	}
	srv := newTestServer(t, store, provider, index)

	req := httptest.NewRequest(http.MethodPost, "/summary", strings.NewReader(`{"thread_id": "t1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var body summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Tips != "Watch subject-verb agreement!" {
		t.Errorf("tips = %q", body.Tips)
	}
	if len(body.CommonPatterns) != 1 || body.CommonPatterns[0].Pattern != "Agreement" {
		t.Errorf("patterns = %+v", body.CommonPatterns)
	}
	if len(body.Suggestions) != 1 || body.Suggestions[0].Word != "canine" {
		t.Errorf("suggestions = %+v", body.Suggestions)
	}
	if len(body.Corrections) != 1 {
		t.Errorf("corrections = %+v", body.Corrections)
	}
}

func TestSummaryMissingThreadID(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, session.NewMemStore(), &promptLLM{}, &vocabmock.Index{})

	req := httptest.NewRequest(http.MethodPost, "/summary", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
