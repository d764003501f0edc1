// Package workflow implements the turn execution core: a directed graph
// of nodes (guardrail, conversation, correction, speech synthesis) run
// with explicit ordering constraints per user turn, streaming each node's
// output as it completes and committing the thread's state exactly once
// at turn end.
//
// Graph shape per turn:
//
//	transcription (audio input only)
//	   └─ guardrail
//	        ├─(pass)──► conversation ──► speech     (one ordered branch)
//	        │      └──► correction                  (concurrent branch)
//	        └─(reject)► speech                      (redirect reply only)
//
// The conversation→speech chain and the correction branch race; callers
// must not assume an order between their events. The complete event is
// always last. A node failure surfaces as an error event and never aborts
// sibling branches; transcription failure is the one turn-fatal error.
package workflow

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/speakmate/speakmate/internal/observe"
	"github.com/speakmate/speakmate/internal/session"
	"github.com/speakmate/speakmate/pkg/provider/llm"
	"github.com/speakmate/speakmate/pkg/provider/stt"
	"github.com/speakmate/speakmate/pkg/provider/tts"
)

// TurnInput is one user turn. Exactly one of Text and Audio is set; an
// empty ThreadID makes the engine mint a new thread and announce it with a
// thread_id event.
type TurnInput struct {
	ThreadID string

	// Text is the typed user message.
	Text string

	// Audio is the recorded user message; transcribed before anything
	// else runs. AudioFormat is the container/codec tag ("webm", "wav").
	Audio       []byte
	AudioFormat string
}

// Engine executes turns against named threads. Construct with New; safe
// for concurrent use across threads. Submitting two turns concurrently on
// the same thread is not supported.
type Engine struct {
	store        session.Store
	transcriber  stt.Provider
	conversation *conversationNode
	correction   *correctionNode
	guardrail    *guardrailNode
	speech       *speechNode
	metrics      *observe.Metrics
	log          *slog.Logger
}

// Option configures an Engine created by New.
type Option func(*Engine)

// WithTranscriber enables audio input via the given speech-to-text
// provider. Without it, audio turns fail with a transcription error event.
func WithTranscriber(p stt.Provider) Option {
	return func(e *Engine) { e.transcriber = p }
}

// WithVoice overrides the voice profile used for speech synthesis.
func WithVoice(v tts.VoiceProfile) Option {
	return func(e *Engine) { e.speech.voice = v }
}

// WithLogger overrides the logger, which defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics enables turn and node instrumentation.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine over the given store and providers. llmp serves
// the conversation, correction and guardrail nodes; ttsp serves speech
// synthesis.
func New(store session.Store, llmp llm.Provider, ttsp tts.Provider, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		conversation: &conversationNode{llm: llmp},
		correction:   &correctionNode{llm: llmp},
		guardrail:    &guardrailNode{llm: llmp},
		speech:       &speechNode{tts: ttsp, voice: tts.VoiceProfile{ID: "nova", Provider: "openai"}},
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetState returns the thread's state as of its most recently committed
// turn, or session.ErrNotFound for an unknown thread. Read-only.
func (e *Engine) GetState(ctx context.Context, threadID string) (*session.ThreadState, error) {
	return e.store.Get(ctx, threadID)
}

// SubmitTurn runs one turn and returns the stream of its events. The
// channel is closed after the final event; the complete event is last on
// every path except a transcription failure, which closes the stream after
// a single error event and commits nothing.
func (e *Engine) SubmitTurn(ctx context.Context, in TurnInput) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		e.runTurn(ctx, in, events)
	}()
	return events
}

func (e *Engine) runTurn(ctx context.Context, in TurnInput, events chan<- Event) {
	turnStart := time.Now()
	if e.metrics != nil {
		input := "text"
		if len(in.Audio) > 0 {
			input = "audio"
		}
		e.metrics.TurnStarted(ctx, input)
		defer e.metrics.TurnEnded(ctx)
	}

	text := in.Text
	if len(in.Audio) > 0 {
		transcribed, err := e.transcribe(ctx, in.Audio, in.AudioFormat)
		if err != nil {
			e.log.Error("transcription failed, aborting turn", "error", err)
			events <- Event{Kind: EventError, Error: &ErrorPayload{
				Node:    string(NodeTranscription),
				Message: friendlyMessage(err),
			}}
			return
		}
		text = transcribed
		events <- Event{Kind: EventTranscription, Transcription: &TranscriptionPayload{Text: text}}
	}

	threadID := in.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
		events <- Event{Kind: EventThreadID, ThreadID: &ThreadIDPayload{ThreadID: threadID}}
	}
	log := e.log.With("thread_id", threadID)

	prior, err := e.store.Get(ctx, threadID)
	if errors.Is(err, session.ErrNotFound) {
		prior = &session.ThreadState{ThreadID: threadID}
	} else if err != nil {
		log.Error("loading thread state failed", "error", err)
		events <- Event{Kind: EventError, Error: &ErrorPayload{Node: "storage", Message: msgGeneric}}
		events <- Event{Kind: EventComplete, Complete: &CompletePayload{Status: "done"}}
		return
	}

	userMsg := session.Message{Role: session.RoleUser, Content: text}
	messageID := fmt.Sprintf("msg_%d", prior.UserOrdinal())
	history := append(slices.Clone(prior.Messages), userMsg)

	verdict, err := e.runGuardrail(ctx, text)
	if err != nil {
		// Fail open: an unreachable classifier must not block the turn.
		log.Warn("guardrail failed, allowing turn", "error", err)
		events <- Event{Kind: EventError, Error: &ErrorPayload{
			Node:    string(NodeGuardrail),
			Message: friendlyMessage(err),
		}}
	}

	var (
		reply  string
		chatOK bool
		corr   *session.Correction
	)
	if !verdict.Allowed {
		reply = verdict.Reply
		chatOK = true
		events <- Event{Kind: EventChatResponse, ChatResponse: &ChatResponsePayload{
			Content:  reply,
			Role:     "assistant",
			Rejected: true,
		}}
	}

	step := func(ctx context.Context, id NodeID) error {
		start := time.Now()
		var err error
		switch id {
		case NodeConversation:
			var out string
			if out, err = e.conversation.run(ctx, history); err == nil {
				reply = out
				chatOK = true
				events <- Event{Kind: EventChatResponse, ChatResponse: &ChatResponsePayload{
					Content: out,
					Role:    "assistant",
				}}
			}
		case NodeSpeech:
			var audio *tts.Audio
			if audio, err = e.speech.run(ctx, reply); err == nil && audio != nil {
				events <- Event{Kind: EventAudioChunk, AudioChunk: &AudioChunkPayload{
					Audio:  base64.StdEncoding.EncodeToString(audio.Data),
					Format: audio.Format,
				}}
			}
		case NodeCorrection:
			var c session.Correction
			if c, err = e.correction.run(ctx, text, messageID); err == nil {
				corr = &c
				events <- Event{Kind: EventCorrection, Correction: &c}
			}
		}
		e.recordNode(ctx, id, time.Since(start), err)
		return err
	}

	runBranches(ctx, routeTurn(verdict.Allowed), step, func(id NodeID, err error) {
		log.Warn("node failed, turn continues", "node", string(id), "error", err)
		events <- Event{Kind: EventError, Error: &ErrorPayload{
			Node:    string(id),
			Message: friendlyMessage(err),
		}}
	})

	msgs := []session.Message{userMsg}
	if chatOK {
		msgs = append(msgs, session.Message{Role: session.RoleAssistant, Content: reply})
	}
	var corrs []session.Correction
	if corr != nil {
		corrs = append(corrs, *corr)
	}
	if err := e.store.Append(ctx, threadID, msgs, corrs); err != nil {
		log.Error("committing turn state failed", "error", err)
		events <- Event{Kind: EventError, Error: &ErrorPayload{Node: "storage", Message: msgGeneric}}
	}

	e.recordTurn(ctx, time.Since(turnStart))
	events <- Event{Kind: EventComplete, Complete: &CompletePayload{
		Status:              "done",
		ChatSucceeded:       chatOK,
		CorrectionSucceeded: corr != nil,
	}}
}

func (e *Engine) transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if e.transcriber == nil {
		return "", errors.New("workflow: no transcription provider configured")
	}
	start := time.Now()
	text, err := e.transcriber.Transcribe(ctx, audio, format)
	e.recordNode(ctx, NodeTranscription, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("workflow: transcription: %w", err)
	}
	return text, nil
}

func (e *Engine) runGuardrail(ctx context.Context, text string) (guardrailVerdict, error) {
	start := time.Now()
	verdict, err := e.guardrail.run(ctx, text)
	e.recordNode(ctx, NodeGuardrail, time.Since(start), err)
	return verdict, err
}

func (e *Engine) recordNode(ctx context.Context, id NodeID, d time.Duration, err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordNode(ctx, string(id), status, d.Seconds())
}

func (e *Engine) recordTurn(ctx context.Context, d time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordTurn(ctx, d.Seconds())
}
