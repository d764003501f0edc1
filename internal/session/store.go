// Package session defines the per-thread conversation state and the Store
// contract the workflow engine persists it through.
//
// A thread is one persistent conversation identified by an opaque string.
// Its state is the ordered message history plus the accumulated grammar
// corrections; both sequences are append-only — a commit merges new entries
// into the existing sequences and never replaces or mutates earlier ones.
//
// Two implementations are provided: an in-process MemStore for development
// and tests, and a PostgreSQL-backed store for deployments that need the
// history to survive restarts.
package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when no state exists for a thread.
var ErrNotFound = errors.New("session: thread not found")

// Role tags a message with its speaker. It is a closed set: dispatch on the
// tag, never on message structure.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one conversational turn half. Immutable once appended to a
// thread's history; its position in the history is its identity.
type Message struct {
	// Role is the speaker tag.
	Role Role

	// Content is the text of the turn.
	Content string
}

// Correction is a grammar-analysis record for one user message.
// Corrections are appended, never mutated or removed.
type Correction struct {
	// Original is the exact transcribed or typed user text.
	Original string `json:"original"`

	// Corrected is Original with spoken-grammar issues fixed. Equal to
	// Original when no issues were found.
	Corrected string `json:"corrected"`

	// Issues lists the errors found, in order. Empty means no errors.
	Issues []string `json:"issues"`

	// Explanation is a short encouraging note about the issues.
	Explanation string `json:"explanation"`

	// MessageID references the user message this record was computed from,
	// in the canonical form "msg_<N>" where N is the 1-based ordinal of the
	// user message within the thread. A reference, not ownership: the
	// message may be trimmed from display without invalidating the record.
	MessageID string `json:"message_id"`
}

// ThreadState is the unit of persistence: everything remembered about one
// conversation thread. Transient per-turn outputs (synthesised audio, the
// guardrail verdict) are deliberately absent — they are streamed to the
// caller of the turn and never stored.
type ThreadState struct {
	// ThreadID is the opaque thread identifier.
	ThreadID string

	// Messages is the ordered, append-only conversation history.
	Messages []Message

	// Corrections is the ordered, append-only correction history.
	Corrections []Correction
}

// UserOrdinal returns the 1-based ordinal the next user message will take
// in the thread, i.e. the count of existing user messages plus one.
func (s *ThreadState) UserOrdinal() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n + 1
}

// Store persists thread state. Implementations must guarantee per-thread
// read-after-write consistency: a Get issued after an Append returns the
// appended data. Concurrent Appends to the same thread are not coordinated
// by the store — the workflow engine performs at most one commit per turn
// and callers must not run two turns of the same thread concurrently.
//
// Implementations must be safe for concurrent use across threads.
type Store interface {
	// Get returns the state of the given thread, or ErrNotFound when the
	// thread has never been committed. The returned value is a private copy;
	// callers may read it freely without racing later commits.
	Get(ctx context.Context, threadID string) (*ThreadState, error)

	// Append merges new messages and corrections into the thread's state,
	// creating the thread on first use. Existing entries are never modified.
	Append(ctx context.Context, threadID string, msgs []Message, corrs []Correction) error
}
