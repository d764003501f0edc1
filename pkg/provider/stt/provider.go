// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription service (e.g., the OpenAI Whisper
// API or a local Whisper server) and exposes a uniform one-shot interface:
// the workflow engine hands over a complete audio clip recorded by the
// client and receives the transcribed text.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Provider is the abstraction over any speech-to-text backend.
//
// Implementations must be safe for concurrent use and must propagate
// context cancellation promptly.
type Provider interface {
	// Transcribe converts a complete audio clip into text. format is the
	// container/codec hint of the clip (e.g. "webm", "wav", "ogg"); an empty
	// format lets the provider guess.
	//
	// Returns an error if the request fails or ctx is cancelled. An empty
	// transcript with a nil error is a valid result (silence).
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}
