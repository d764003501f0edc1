package workflow

import (
	"context"
	"fmt"

	"github.com/speakmate/speakmate/internal/session"
	"github.com/speakmate/speakmate/pkg/provider/llm"
)

// conversationPersona keeps the partner casual and encouraging; grammar
// feedback is the correction node's job and is explicitly off limits here.
const conversationPersona = `You're a friendly conversation partner helping someone practice English.

Keep it casual and natural - chat like friends over coffee. Respond in 2-3 sentences. Show genuine interest with reactions like "Really?" or "That's cool!"

Key behaviors:
- Ask open follow-up questions (why/how, not yes/no)
- If they give short answers, invite elaboration: "Tell me more about that!"
- Never correct grammar - that's handled separately
- Celebrate their efforts: "Great point!" "I love that!"

Goal: Make speaking English feel fun, not like a test.`

const conversationTemperature = 0.7

// conversationNode produces the assistant's reply from the full message
// history. Completion failures propagate as node failures; no retries.
type conversationNode struct {
	llm llm.Provider
}

func (n *conversationNode) run(ctx context.Context, history []session.Message) (string, error) {
	msgs := make([]llm.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: string(m.Role), Content: m.Content})
	}

	resp, err := n.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: conversationPersona,
		Messages:     msgs,
		Temperature:  conversationTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("workflow: conversation: %w", err)
	}
	return resp.Content, nil
}
