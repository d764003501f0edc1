package workflow

import (
	"context"
	"fmt"

	"github.com/speakmate/speakmate/internal/llmjson"
	"github.com/speakmate/speakmate/internal/session"
	"github.com/speakmate/speakmate/pkg/provider/llm"
)

// correctionPrompt targets spoken-grammar issues only. Input comes from
// speech-to-text, so capitalisation, punctuation and spelling are not
// errors and must not be flagged.
const correctionPrompt = `Analyze spoken English for grammar errors. Input is from speech-to-text.

CORRECT these spoken grammar issues:
- Tenses: "I go yesterday" → "I went yesterday"
- Agreement: "She have" → "She has"
- Articles: "I bought car" → "I bought a car"
- Prepositions: "good in English" → "good at English"
- Word order: "what is it" → "what it is"
- Plurals: "two dog" → "two dogs"

IGNORE (not spoken errors):
- Capitalization, punctuation, spelling
- Informal speech: "gonna", "wanna", "um", "like"

Example:
Input: "yesterday i go to supermarket and buy many thing"
Correct output:
{
  "original": "yesterday i go to supermarket and buy many thing",
  "corrected": "yesterday I went to the supermarket and bought many things",
  "issues": ["Past tense: 'go' → 'went'", "Article: 'to supermarket' → 'to the supermarket'", "Past tense: 'buy' → 'bought'", "Plural: 'thing' → 'things'"],
  "explanation": "Great effort! Watch out for past tense when talking about yesterday, and remember 'the' before specific places like 'the supermarket'."
}

Input: "i think learning english is very fun"
Correct output:
{
  "original": "i think learning english is very fun",
  "corrected": "i think learning english is very fun",
  "issues": [],
  "explanation": "Perfect! Your grammar is spot on here. Great job! 🎉"
}

Output format (JSON):
{
  "original": "the exact transcribed message",
  "corrected": "grammar-corrected version (keep original capitalization/punctuation)",
  "issues": ["specific grammar error: 'wrong' → 'correct'"],
  "explanation": "A friendly 1-2 sentence explanation focused on the speaking error"
}

Be encouraging! Focus on helping them speak more naturally and confidently.`

const correctionTemperature = 0.3

// correctionFallbackExplanation is used when the model's output cannot be
// decoded as a correction record.
const correctionFallbackExplanation = "Unable to analyze grammar at this time."

// correctionNode analyses the latest user message for spoken-grammar
// errors. An undecodable completion degrades to a no-issue fallback record;
// only a failed completion call is a node failure.
type correctionNode struct {
	llm llm.Provider
}

func (n *correctionNode) run(ctx context.Context, userText, messageID string) (session.Correction, error) {
	resp, err := n.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: correctionPrompt,
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Please analyze this message for grammar errors:\n\n%q", userText),
		}},
		Temperature: correctionTemperature,
	})
	if err != nil {
		return session.Correction{}, fmt.Errorf("workflow: correction: %w", err)
	}

	var decoded struct {
		Original    string   `json:"original"`
		Corrected   string   `json:"corrected"`
		Issues      []string `json:"issues"`
		Explanation string   `json:"explanation"`
	}
	if err := llmjson.Decode(resp.Content, &decoded); err != nil {
		return session.Correction{
			Original:    userText,
			Corrected:   userText,
			Issues:      []string{},
			Explanation: correctionFallbackExplanation,
			MessageID:   messageID,
		}, nil
	}

	c := session.Correction{
		Original:    decoded.Original,
		Corrected:   decoded.Corrected,
		Issues:      decoded.Issues,
		Explanation: decoded.Explanation,
		MessageID:   messageID,
	}
	if c.Original == "" {
		c.Original = userText
	}
	if c.Corrected == "" {
		c.Corrected = userText
	}
	if c.Issues == nil {
		c.Issues = []string{}
	}
	return c, nil
}
