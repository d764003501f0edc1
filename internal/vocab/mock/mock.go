// Package mock provides a test double for the vocab.Index interface that
// records calls and returns configured matches.
package mock

import (
	"context"
	"sync"

	"github.com/speakmate/speakmate/internal/vocab"
)

// SearchCall records the arguments of one Search invocation.
type SearchCall struct {
	Query string
	TopK  int
}

// Index is a configurable mock implementation of vocab.Index.
//
// The zero value returns no matches for every query. Set Matches to map
// query strings to results, or Default for queries not in the map. Set Err
// to make every call fail.
type Index struct {
	mu sync.Mutex

	// Matches maps a query string to its results.
	Matches map[string][]vocab.Match

	// Default is returned for queries not present in Matches.
	Default []vocab.Match

	// Err, if non-nil, is returned by every Search call.
	Err error

	// SearchCalls records all Search invocations in order.
	SearchCalls []SearchCall
}

var _ vocab.Index = (*Index)(nil)

// Search implements vocab.Index.
func (x *Index) Search(_ context.Context, query string, topK int) ([]vocab.Match, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.SearchCalls = append(x.SearchCalls, SearchCall{Query: query, TopK: topK})
	if x.Err != nil {
		return nil, x.Err
	}
	if m, ok := x.Matches[query]; ok {
		return m, nil
	}
	if x.Default != nil {
		return x.Default, nil
	}
	return []vocab.Match{}, nil
}

// CallCount returns the number of Search invocations so far.
func (x *Index) CallCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.SearchCalls)
}

// Reset clears all recorded calls.
func (x *Index) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.SearchCalls = nil
}
