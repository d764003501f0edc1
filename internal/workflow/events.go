package workflow

import "github.com/speakmate/speakmate/internal/session"

// EventKind names the variants streamed while a turn executes. The values
// double as the SSE event names on the HTTP surface.
type EventKind string

const (
	// EventTranscription carries the text recognised from audio input.
	// Emitted first, only for audio turns.
	EventTranscription EventKind = "transcription"

	// EventThreadID carries a freshly minted thread identifier. Emitted
	// only when the caller did not supply one.
	EventThreadID EventKind = "thread_id"

	// EventChatResponse carries the assistant's reply text.
	EventChatResponse EventKind = "chat_response"

	// EventAudioChunk carries synthesised speech for the reply.
	EventAudioChunk EventKind = "audio_chunk"

	// EventCorrection carries the grammar-correction record for the
	// user's message.
	EventCorrection EventKind = "correction"

	// EventError reports a failed node. Zero or more per turn.
	EventError EventKind = "error"

	// EventComplete closes every turn that got past transcription,
	// summarising which branches succeeded. Always last.
	EventComplete EventKind = "complete"
)

// Event is one streamed turn output. Exactly one payload field is non-zero,
// selected by Kind.
type Event struct {
	Kind EventKind

	Transcription *TranscriptionPayload
	ThreadID      *ThreadIDPayload
	ChatResponse  *ChatResponsePayload
	AudioChunk    *AudioChunkPayload
	Correction    *session.Correction
	Error         *ErrorPayload
	Complete      *CompletePayload
}

// TranscriptionPayload is the data of an EventTranscription.
type TranscriptionPayload struct {
	Text string `json:"text"`
}

// ThreadIDPayload is the data of an EventThreadID.
type ThreadIDPayload struct {
	ThreadID string `json:"thread_id"`
}

// ChatResponsePayload is the data of an EventChatResponse. Rejected is set
// when the reply is the guardrail's redirect rather than the conversation
// partner's answer.
type ChatResponsePayload struct {
	Content  string `json:"content"`
	Role     string `json:"role"`
	Rejected bool   `json:"rejected,omitempty"`
}

// AudioChunkPayload is the data of an EventAudioChunk. Audio is base64 so
// the payload survives JSON framing on the event stream.
type AudioChunkPayload struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
}

// ErrorPayload is the data of an EventError. Node identifies the failing
// node; Message is safe to show to the user.
type ErrorPayload struct {
	Node    string `json:"node"`
	Message string `json:"message"`
}

// CompletePayload is the data of an EventComplete.
type CompletePayload struct {
	Status              string `json:"status"`
	ChatSucceeded       bool   `json:"chat_succeeded"`
	CorrectionSucceeded bool   `json:"correction_succeeded"`
}

// Data returns the payload carried by the event, for JSON encoding on the
// wire. Kind selects which field is returned.
func (e Event) Data() any {
	switch e.Kind {
	case EventTranscription:
		return e.Transcription
	case EventThreadID:
		return e.ThreadID
	case EventChatResponse:
		return e.ChatResponse
	case EventAudioChunk:
		return e.AudioChunk
	case EventCorrection:
		return e.Correction
	case EventError:
		return e.Error
	case EventComplete:
		return e.Complete
	default:
		return nil
	}
}
