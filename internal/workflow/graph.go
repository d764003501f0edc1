package workflow

import (
	"context"
	"sync"
)

// NodeID identifies one node of the turn execution graph. The values are
// the node names reported in error events.
type NodeID string

const (
	NodeTranscription NodeID = "transcription"
	NodeGuardrail     NodeID = "guardrail"
	NodeConversation  NodeID = "chat"
	NodeSpeech        NodeID = "tts"
	NodeCorrection    NodeID = "correction"
)

// Branch is an ordered sequence of nodes executed strictly one after the
// other. Separate branches run concurrently.
type Branch []NodeID

// routeTurn is the routing function of the turn graph: given the guardrail
// verdict it returns the branches to launch. On pass, the conversation
// chains into speech synthesis while correction runs beside them; on
// rejection only the redirect reply is synthesised.
func routeTurn(allowed bool) []Branch {
	if allowed {
		return []Branch{
			{NodeConversation, NodeSpeech},
			{NodeCorrection},
		}
	}
	return []Branch{
		{NodeSpeech},
	}
}

// stepFunc executes one node. A returned error abandons the rest of the
// node's branch; sibling branches are unaffected.
type stepFunc func(ctx context.Context, id NodeID) error

// runBranches launches one goroutine per branch, runs each branch's nodes
// in order through step, and blocks until every branch has concluded. A
// failing node stops only its own branch; onErr is called with the node
// and its error.
//
// The join is the turn's synchronisation point: once runBranches returns,
// all writes made by the steps happen-before the caller's reads.
func runBranches(ctx context.Context, branches []Branch, step stepFunc, onErr func(id NodeID, err error)) {
	var wg sync.WaitGroup
	for _, branch := range branches {
		wg.Add(1)
		go func(branch Branch) {
			defer wg.Done()
			for _, id := range branch {
				if err := step(ctx, id); err != nil {
					onErr(id, err)
					return
				}
			}
		}(branch)
	}
	wg.Wait()
}
