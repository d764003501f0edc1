package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/speakmate/speakmate/internal/llmjson"
	"github.com/speakmate/speakmate/internal/session"
	"github.com/speakmate/speakmate/pkg/provider/llm"
)

// Pattern is one recurring grammar pattern identified across a session's
// corrections, with a practice suggestion.
type Pattern struct {
	Pattern    string `json:"pattern"`
	Frequency  int    `json:"frequency"`
	Suggestion string `json:"suggestion"`
}

// TipsFallback is returned when the tips completion succeeds but its
// output cannot be decoded.
const TipsFallback = "Keep practicing! You're making great progress in your English conversation skills."

const tipsPrompt = `Analyze spoken English grammar patterns and give encouraging feedback.

From the corrections, identify:
1. Common patterns needing practice (with frequency count)
2. 2-3 actionable speaking tips

Focus on spoken clarity issues (tenses, agreement, articles). Ignore punctuation/capitalization.

Output format (JSON):
{
  "common_patterns": [{"pattern": "Pattern name", "frequency": N, "suggestion": "Practice exercise"}],
  "tips": "2-3 paragraphs: (1) Celebrate effort (2) Key pattern + simple tip (3) Encouragement"
}

Example tips: "Great conversation! 🎉 You're expressing yourself well.\n\nI noticed past/present tense mix-ups ('I go' vs 'I went'). Try narrating your day in past tense!\n\nKeep speaking - you're doing amazing! 🌟"

Be warm and specific!`

// GenerateTips analyses a session's corrections and produces encouraging
// prose tips plus the recurring patterns behind them. A failed completion
// call returns an error; an undecodable completion degrades to
// TipsFallback with no patterns.
func GenerateTips(ctx context.Context, provider llm.Provider, corrections []session.Correction) (string, []Pattern, error) {
	var sb strings.Builder
	for _, c := range corrections {
		fmt.Fprintf(&sb, "- Original: %q\n  Corrected: %q\n  Issues: %v\n", c.Original, c.Corrected, c.Issues)
	}
	request := fmt.Sprintf(
		"Please analyze these grammar corrections from a conversation:\n\n%s\nTotal corrections: %d\n\nIdentify patterns and provide personalized tips.",
		sb.String(), len(corrections),
	)

	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: tipsPrompt,
		Messages:     []llm.Message{{Role: "user", Content: request}},
		Temperature:  0.5,
	})
	if err != nil {
		return "", nil, fmt.Errorf("suggest: generate tips: %w", err)
	}

	var decoded struct {
		Tips           string    `json:"tips"`
		CommonPatterns []Pattern `json:"common_patterns"`
	}
	if err := llmjson.Decode(resp.Content, &decoded); err != nil {
		return TipsFallback, []Pattern{}, nil
	}
	if decoded.Tips == "" {
		decoded.Tips = "Keep practicing! Every conversation helps you improve."
	}
	if decoded.CommonPatterns == nil {
		decoded.CommonPatterns = []Pattern{}
	}
	return decoded.Tips, decoded.CommonPatterns, nil
}
