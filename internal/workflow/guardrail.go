package workflow

import (
	"context"
	"fmt"

	"github.com/speakmate/speakmate/internal/llmjson"
	"github.com/speakmate/speakmate/pkg/provider/llm"
)

// guardrailPrompt gates each turn: conversational content on any topic is
// in scope, explicit task execution is not. The reply field is only used
// when allowed is false.
const guardrailPrompt = `You gate messages for an English conversation practice app.

ALLOW: conversational content on any topic - opinions, experiences, stories, questions about life, small talk, feelings.

REJECT: explicit requests to perform a task instead of conversing - writing or fixing code, translating text, solving homework or exam problems, producing essays or documents.

When rejecting, write a short friendly reply that redirects back to conversation practice, e.g. "I'm here to chat and help you practice English! Let's talk instead - what have you been up to lately?"

Output format (JSON):
{
  "allowed": true or false,
  "reply": "redirect reply, only when allowed is false"
}

Output valid JSON only.`

// guardrailVerdict is the classification result for one user message.
type guardrailVerdict struct {
	Allowed bool   `json:"allowed"`
	Reply   string `json:"reply"`
}

// guardrailNode classifies whether the user's message is in-scope
// conversation. The classifier fails open: an undecodable verdict passes
// the turn rather than blocking it. A failed completion call is a node
// failure; the caller also fails open on it.
type guardrailNode struct {
	llm llm.Provider
}

func (n *guardrailNode) run(ctx context.Context, userText string) (guardrailVerdict, error) {
	pass := guardrailVerdict{Allowed: true}

	resp, err := n.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: guardrailPrompt,
		Messages:     []llm.Message{{Role: "user", Content: userText}},
		Temperature:  0,
	})
	if err != nil {
		return pass, fmt.Errorf("workflow: guardrail: %w", err)
	}

	var verdict guardrailVerdict
	if err := llmjson.Decode(resp.Content, &verdict); err != nil {
		return pass, nil
	}
	if !verdict.Allowed && verdict.Reply == "" {
		verdict.Reply = "I'm here to chat and help you practice English! Let's talk instead - what have you been up to lately?"
	}
	return verdict, nil
}
