package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/speakmate/speakmate/internal/vocab"
	vocabmock "github.com/speakmate/speakmate/internal/vocab/mock"
	"github.com/speakmate/speakmate/pkg/provider/llm"
	llmmock "github.com/speakmate/speakmate/pkg/provider/llm/mock"
)

const extractedStoreBought = `{"replaceable_words": ["store", "bought", "things"]}`

func usageNotesJSON(pairs ...[2]string) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, p := range pairs {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"target_word": "` + p[0] + `", "ielts_word": "x", "usage_context": "` + p[1] + `"}`)
	}
	sb.WriteString("]")
	return sb.String()
}

func TestPipelineEmptyInputShortCircuits(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{}
	index := &vocabmock.Index{}
	p := NewPipeline(provider, index)

	got := p.Run(context.Background(), nil)
	if len(got) != 0 {
		t.Fatalf("got %d suggestions, want 0", len(got))
	}
	if provider.CallCount() != 0 {
		t.Errorf("completion calls = %d, want 0", provider.CallCount())
	}
	if index.CallCount() != 0 {
		t.Errorf("index searches = %d, want 0", index.CallCount())
	}
}

func TestPipelineNilIndexDegrades(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{}
	p := NewPipeline(provider, nil)

	got := p.Run(context.Background(), []string{"I went to the store"})
	if len(got) != 0 {
		t.Fatalf("got %d suggestions, want 0", len(got))
	}
	if provider.CallCount() != 0 {
		t.Errorf("completion calls = %d, want 0", provider.CallCount())
	}
}

func TestPipelineHappyPath(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		Responses: []*llm.CompletionResponse{
			{Content: extractedStoreBought},
			{Content: usageNotesJSON(
				[2]string{"store", "Use 'establishment' in formal writing."},
				[2]string{"bought", "Use 'purchased' in formal contexts."},
			)},
		},
	}
	index := &vocabmock.Index{
		Matches: map[string][]vocab.Match{
			"store":  {{Entry: vocab.Entry{Word: "establishment", Definition: "a business or organization", Example: "The establishment opened in 1990."}, Score: 0.4}},
			"bought": {{Entry: vocab.Entry{Word: "purchased", Definition: "acquired by paying", Example: "She purchased a new laptop."}, Score: 0.6}},
			"things": {{Entry: vocab.Entry{Word: "items", Definition: "individual articles", Example: "Several items were on sale."}, Score: 0.9}},
		},
	}
	p := NewPipeline(provider, index)

	got := p.Run(context.Background(), []string{"I went to the store yesterday and bought many things."})
	if len(got) != 3 {
		t.Fatalf("got %d suggestions, want 3: %+v", len(got), got)
	}
	if got[0].TargetWord != "store" || got[0].Word != "establishment" {
		t.Errorf("first suggestion = %+v", got[0])
	}
	if got[0].UsageContext != "Use 'establishment' in formal writing." {
		t.Errorf("first usage context = %q", got[0].UsageContext)
	}
	// "things" had no note in the generation output.
	if got[2].UsageContext != "" {
		t.Errorf("third usage context = %q, want empty", got[2].UsageContext)
	}
	if index.CallCount() != 3 {
		t.Errorf("index searches = %d, want 3", index.CallCount())
	}
}

func TestPipelineStageTemperatures(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		Responses: []*llm.CompletionResponse{
			{Content: extractedStoreBought},
			{Content: usageNotesJSON([2]string{"store", "Use in formal contexts."})},
		},
	}
	index := &vocabmock.Index{
		Matches: map[string][]vocab.Match{
			"store": {{Entry: vocab.Entry{Word: "establishment", Definition: "a business", Example: "The establishment opened."}, Score: 0.4}},
		},
	}
	p := NewPipeline(provider, index)

	p.Run(context.Background(), []string{"I went to the store yesterday and bought many things."})

	if len(provider.CompleteCalls) != 2 {
		t.Fatalf("completion calls = %d, want 2", len(provider.CompleteCalls))
	}
	// Keyword extraction is deterministic; zero must reach the provider.
	if got := provider.CompleteCalls[0].Req.Temperature; got != 0 {
		t.Errorf("extraction temperature = %v, want 0", got)
	}
	if got := provider.CompleteCalls[1].Req.Temperature; got != 0.3 {
		t.Errorf("usage-note temperature = %v, want 0.3", got)
	}
}

func TestPipelineFiltersMatches(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		Responses: []*llm.CompletionResponse{
			{Content: `{"replaceable_words": ["big", "large", "good", "store"]}`},
			{Content: "[]"},
		},
	}
	index := &vocabmock.Index{
		Matches: map[string][]vocab.Match{
			// At the threshold: excluded.
			"big": {{Entry: vocab.Entry{Word: "substantial"}, Score: 1.3}},
			// Self-match (case-insensitive): excluded.
			"large": {{Entry: vocab.Entry{Word: "Large"}, Score: 0.2}},
			// Kept.
			"good": {{Entry: vocab.Entry{Word: "beneficial"}, Score: 0.5}},
			// Duplicate of an already-suggested word: excluded.
			"store": {{Entry: vocab.Entry{Word: "Beneficial"}, Score: 0.4}},
		},
	}
	p := NewPipeline(provider, index)

	got := p.Run(context.Background(), []string{"big large good store"})
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1: %+v", len(got), got)
	}
	if got[0].TargetWord != "good" || got[0].Word != "beneficial" {
		t.Errorf("suggestion = %+v", got[0])
	}
}

func TestPipelineBoundsKeywords(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		Responses: []*llm.CompletionResponse{
			{Content: `{"replaceable_words": ["one", "two", "three", "four", "five", "six"]}`},
			{Content: "[]"},
		},
	}
	index := &vocabmock.Index{}
	p := NewPipeline(provider, index)

	p.Run(context.Background(), []string{"one two three four five six"})
	if index.CallCount() != maxKeywords {
		t.Errorf("index searches = %d, want %d", index.CallCount(), maxKeywords)
	}
}

func TestPipelineDropsInventedKeywords(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		Responses: []*llm.CompletionResponse{
			{Content: `{"replaceable_words": ["store", "spontaneous"]}`},
			{Content: "[]"},
		},
	}
	index := &vocabmock.Index{
		Default: []vocab.Match{{Entry: vocab.Entry{Word: "shop"}, Score: 0.1}},
	}
	p := NewPipeline(provider, index)

	p.Run(context.Background(), []string{"I went to the store."})
	if index.CallCount() != 1 {
		t.Fatalf("index searches = %d, want 1 (invented keyword searched)", index.CallCount())
	}
	if got := index.SearchCalls[0].Query; got != "store" {
		t.Errorf("searched %q, want store", got)
	}
}

func TestPipelineExtractionFailureDegrades(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{CompleteErr: errors.New("boom")}
	index := &vocabmock.Index{}
	p := NewPipeline(provider, index)

	got := p.Run(context.Background(), []string{"I went to the store."})
	if len(got) != 0 {
		t.Fatalf("got %d suggestions, want 0", len(got))
	}
	if index.CallCount() != 0 {
		t.Errorf("index searched after extraction failure")
	}
}

func TestPipelineSearchFailureDegrades(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		Responses: []*llm.CompletionResponse{{Content: extractedStoreBought}},
	}
	index := &vocabmock.Index{Err: errors.New("index offline")}
	p := NewPipeline(provider, index)

	got := p.Run(context.Background(), []string{"I went to the store yesterday and bought many things."})
	if len(got) != 0 {
		t.Fatalf("got %d suggestions, want 0", len(got))
	}
	// No matches means the usage stage must not run.
	if provider.CallCount() != 1 {
		t.Errorf("completion calls = %d, want 1 (extraction only)", provider.CallCount())
	}
}

func TestPipelineUsageFailureKeepsSuggestions(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		Responses: []*llm.CompletionResponse{
			{Content: `{"replaceable_words": ["store"]}`},
			{Content: "not json at all"},
		},
	}
	index := &vocabmock.Index{
		Matches: map[string][]vocab.Match{
			"store": {{Entry: vocab.Entry{Word: "establishment", Definition: "d", Example: "e"}, Score: 0.3}},
		},
	}
	p := NewPipeline(provider, index)

	got := p.Run(context.Background(), []string{"I went to the store."})
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(got))
	}
	if got[0].Word != "establishment" || got[0].UsageContext != "" {
		t.Errorf("suggestion = %+v, want kept with empty usage note", got[0])
	}
}
