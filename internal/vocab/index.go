// Package vocab provides the vocabulary index used for usage suggestions:
// a corpus of advanced words and phrases, each with a definition and an
// example sentence, searchable by semantic similarity.
package vocab

import "context"

// Entry is one vocabulary item in the corpus.
type Entry struct {
	// Word is the vocabulary word or phrase.
	Word string `json:"word"`

	// Definition is a short learner-facing definition.
	Definition string `json:"definition"`

	// Example is a sentence demonstrating usage.
	Example string `json:"example"`
}

// Match is a search hit: an entry plus its distance from the query.
type Match struct {
	Entry

	// Score is the cosine distance between the query embedding and the
	// entry's embedding. Lower is more similar; 0 is identical.
	Score float64 `json:"score"`
}

// Index searches the vocabulary corpus by semantic similarity.
type Index interface {
	// Search returns up to topK entries closest to query, ordered most
	// similar first. An empty result is normal, not an error.
	Search(ctx context.Context, query string, topK int) ([]Match, error)
}

// Indexer adds entries to the corpus. Implemented alongside Index by
// stores that own the corpus; the loader command uses it to build the
// index from a word list.
type Indexer interface {
	// Add embeds and upserts the given entries, keyed by word. Re-adding
	// a word replaces its previous definition, example and embedding.
	Add(ctx context.Context, entries []Entry) error
}
