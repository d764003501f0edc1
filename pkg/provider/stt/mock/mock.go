// Package mock provides a test double for the stt.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/speakmate/speakmate/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Audio is the clip passed to Transcribe.
	Audio []byte
	// Format is the format hint passed to Transcribe.
	Format string
}

// Provider is a mock implementation of stt.Provider.
// Zero values cause Transcribe to return "" with a nil error.
type Provider struct {
	mu sync.Mutex

	// Text is returned by Transcribe.
	Text string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeCalls records every invocation of Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns Text, Err.
func (p *Provider) Transcribe(_ context.Context, audio []byte, format string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	clip := make([]byte, len(audio))
	copy(clip, audio)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Audio: clip, Format: format})
	if p.Err != nil {
		return "", p.Err
	}
	return p.Text, nil
}

// CallCount returns the number of Transcribe invocations so far. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}
