// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., the OpenAI speech
// API or ElevenLabs) and presents a uniform one-shot interface: the workflow
// engine hands over the assistant's reply text and receives a complete
// encoded audio clip plus its format tag, ready to be streamed to the client.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// VoiceProfile describes a synthesis voice configuration.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier (e.g., "nova" for OpenAI,
	// a voice UUID for ElevenLabs).
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string
}

// Audio is a complete synthesised clip.
type Audio struct {
	// Data is the encoded audio bytes.
	Data []byte

	// Format is the container/codec tag of Data (e.g. "opus", "mp3", "pcm_16000").
	Format string
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel.
type Provider interface {
	// Synthesize converts text into an encoded audio clip using the given
	// voice. Returns an error if the synthesis call fails or ctx is
	// cancelled; callers decide whether a missing clip is fatal.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (*Audio, error)
}
