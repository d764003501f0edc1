package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/speakmate/speakmate/pkg/provider/tts"
)

// speechNode synthesises the assistant's reply. Blank text, or a missing
// provider, is skipped without error or audio; a failed synthesis call is
// a node failure the engine reports and moves past, since the text reply
// stands on its own.
type speechNode struct {
	tts   tts.Provider
	voice tts.VoiceProfile
}

func (n *speechNode) run(ctx context.Context, text string) (*tts.Audio, error) {
	if n.tts == nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	audio, err := n.tts.Synthesize(ctx, text, n.voice)
	if err != nil {
		return nil, fmt.Errorf("workflow: speech synthesis: %w", err)
	}
	return audio, nil
}
