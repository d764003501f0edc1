// Package mock provides a test double for the embeddings.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/speakmate/speakmate/pkg/provider/embeddings"
)

// Provider is a mock implementation of embeddings.Provider.
//
// Vectors, when set, maps input text to the vector returned for it; unmapped
// texts receive a zero vector of length Dims. Set Err to inject errors.
type Provider struct {
	mu sync.Mutex

	// Dims is the dimensionality reported by Dimensions and used for
	// generated zero vectors. Defaults to 4 when unset.
	Dims int

	// Vectors maps input text to the embedding returned for it.
	Vectors map[string][]float32

	// Err, if non-nil, is returned from Embed and EmbedBatch.
	Err error

	// EmbedCalls records every text passed to Embed, in order.
	EmbedCalls []string

	// EmbedBatchCalls records every slice passed to EmbedBatch, in order.
	EmbedBatchCalls [][]string
}

// Ensure Provider implements embeddings.Provider at compile time.
var _ embeddings.Provider = (*Provider)(nil)

func (p *Provider) dims() int {
	if p.Dims == 0 {
		return 4
	}
	return p.Dims
}

func (p *Provider) vectorFor(text string) []float32 {
	if v, ok := p.Vectors[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	return make([]float32, p.dims())
}

// Embed records the call and returns the configured vector for text.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.vectorFor(text), nil
}

// EmbedBatch records the call and returns one vector per input text.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	batch := make([]string, len(texts))
	copy(batch, texts)
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, batch)
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vectorFor(t)
	}
	return out, nil
}

// Dimensions returns Dims (default 4).
func (p *Provider) Dimensions() int {
	return p.dims()
}

// ModelID returns a fixed marker string.
func (p *Provider) ModelID() string {
	return "mock-embeddings"
}
