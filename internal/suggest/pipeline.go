// Package suggest implements the vocabulary-enrichment pipeline run at
// summary time: keyword extraction from the session's corrected sentences,
// nearest-neighbour search over the vocabulary index, and usage-note
// generation for the retained matches.
//
// Every stage is fail-safe. A stage failure degrades to an empty result
// for the whole pipeline; nothing here ever surfaces an error to the user.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/speakmate/speakmate/internal/llmjson"
	"github.com/speakmate/speakmate/internal/observe"
	"github.com/speakmate/speakmate/internal/vocab"
	"github.com/speakmate/speakmate/pkg/provider/llm"
)

const (
	// topKResults is the number of index matches retrieved per keyword.
	topKResults = 1

	// scoreThreshold is the relevance cut-off on the index's distance
	// score. Matches at or above it are discarded.
	scoreThreshold = 1.3

	// maxKeywords bounds how many extracted keywords are searched.
	maxKeywords = 4
)

// Suggestion is one vocabulary recommendation: replace TargetWord (from the
// user's own sentences) with Word in the right contexts. Produced
// transiently per summary request, never persisted.
type Suggestion struct {
	TargetWord   string `json:"target_word"`
	Word         string `json:"ielts_word"`
	Definition   string `json:"definition"`
	Example      string `json:"example"`
	UsageContext string `json:"usage_context"`
}

// Pipeline runs the three suggestion stages. Construct with NewPipeline;
// safe for concurrent use — the vocabulary index is read-only.
type Pipeline struct {
	llm     llm.Provider
	index   vocab.Index
	metrics *observe.Metrics
	log     *slog.Logger
}

// Option configures a Pipeline created by NewPipeline.
type Option func(*Pipeline)

// WithLogger overrides the logger, which defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithMetrics enables pipeline instrumentation.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a Pipeline over the given completion provider and
// vocabulary index. index may be nil when no index is loaded; Run then
// returns no suggestions.
func NewPipeline(provider llm.Provider, index vocab.Index, opts ...Option) *Pipeline {
	p := &Pipeline{llm: provider, index: index, log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline over the thread's corrected sentences. An
// empty input short-circuits to no suggestions without any capability
// call. Failures are logged and degrade to an empty result.
func (p *Pipeline) Run(ctx context.Context, correctedSentences []string) []Suggestion {
	if len(correctedSentences) == 0 {
		return []Suggestion{}
	}
	if p.index == nil {
		p.log.Warn("no vocabulary index loaded, skipping suggestions")
		return []Suggestion{}
	}
	start := time.Now()

	keywords := p.extractKeywords(ctx, correctedSentences)
	if len(keywords) == 0 {
		return []Suggestion{}
	}

	matches := p.searchVocabulary(ctx, keywords)
	if len(matches) == 0 {
		return []Suggestion{}
	}

	suggestions := p.generateUsageNotes(ctx, matches)
	if p.metrics != nil {
		p.metrics.RecordSuggestions(ctx, len(suggestions), time.Since(start).Seconds())
	}
	return suggestions
}

// extractKeywordsPrompt asks for simple words worth upgrading. Function
// words are excluded and only words present in the sentences count.
const extractKeywordsPrompt = `Extract vocabulary from the given sentences for IELTS vocabulary enhancement.

Output JSON with one array:
- "replaceable_words": Common words that could be replaced with more advanced IELTS vocabulary (nouns, verbs, adjectives, adverbs). Focus on simple/basic words like "store", "big", "good", "go", "make", etc.

Rules:
- Only include words actually present in the sentences
- Extract 3-5 replaceable words maximum
- Ignore function words (the, a, is, etc.)

Example input: "I went to the store yesterday and bought many things."
Example output:
{
  "replaceable_words": ["store", "bought", "things"]
}

Output valid JSON only, no other text.`

// extractKeywords is stage 1: a deterministic (temperature-zero) extraction
// of candidate words from the corrected sentences. Words the model invents
// that are not literally present in the sentences are dropped.
func (p *Pipeline) extractKeywords(ctx context.Context, sentences []string) []string {
	combined := strings.Join(sentences, " ")

	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: extractKeywordsPrompt,
		Messages:     []llm.Message{{Role: "user", Content: "Sentences: " + combined}},
		Temperature:  0,
	})
	if err != nil {
		p.log.Warn("keyword extraction failed", "error", err)
		return nil
	}

	var decoded struct {
		ReplaceableWords []string `json:"replaceable_words"`
	}
	if err := llmjson.Decode(resp.Content, &decoded); err != nil {
		p.log.Warn("keyword extraction returned undecodable output", "error", err)
		return nil
	}

	lower := strings.ToLower(combined)
	var keywords []string
	for _, w := range decoded.ReplaceableWords {
		w = strings.TrimSpace(w)
		if w == "" || !strings.Contains(lower, strings.ToLower(w)) {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}

// searchVocabulary is stage 2: one index search per keyword (bounded to
// the first maxKeywords), keeping the single best match per keyword and
// filtering by relevance, self-matches and duplicates.
func (p *Pipeline) searchVocabulary(ctx context.Context, keywords []string) []Suggestion {
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}

	var results []Suggestion
	seen := make(map[string]bool)

	for _, keyword := range keywords {
		matches, err := p.index.Search(ctx, keyword, topKResults)
		if err != nil {
			p.log.Warn("vocabulary search failed", "keyword", keyword, "error", err)
			continue
		}
		for _, m := range matches {
			if m.Score >= scoreThreshold {
				p.log.Debug("skipping low-relevance match",
					"keyword", keyword, "word", m.Word, "score", m.Score)
				continue
			}
			word := strings.ToLower(m.Word)
			if seen[word] || word == strings.ToLower(keyword) {
				continue
			}
			seen[word] = true
			results = append(results, Suggestion{
				TargetWord: keyword,
				Word:       m.Word,
				Definition: m.Definition,
				Example:    m.Example,
			})
		}
	}
	return results
}

const usageNotesPrompt = `You are an English vocabulary coach helping learners expand their vocabulary.

For each word pair, explain WHEN and WHERE to use the advanced word vs the simple word.
Focus on practical usage scenarios (casual speech vs formal writing, specific contexts).

Output JSON array with usage_context for each word:
[
  {
    "target_word": "store",
    "ielts_word": "establishment",
    "usage_context": "Use 'store' in casual conversation. 'Establishment' is more formal, suitable for IELTS writing, business reports, or when describing institutions."
  }
]

Rules:
- Keep explanations concise (1-2 sentences in English)
- Be practical - focus on real usage scenarios
- Don't be preachy - just explain the difference

Output valid JSON only.`

// generateUsageNotes is stage 3: a contextual note per retained pair. On
// failure the suggestions are returned with empty notes rather than
// dropped.
func (p *Pipeline) generateUsageNotes(ctx context.Context, matches []Suggestion) []Suggestion {
	var pairs strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&pairs, "- %s → %s (%s)\n", m.TargetWord, m.Word, m.Definition)
	}

	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: usageNotesPrompt,
		Messages: []llm.Message{{
			Role:    "user",
			Content: "Generate usage context for these word pairs:\n" + pairs.String(),
		}},
		Temperature: 0.3,
	})
	if err != nil {
		p.log.Warn("usage note generation failed", "error", err)
		return matches
	}

	var notes []struct {
		TargetWord   string `json:"target_word"`
		UsageContext string `json:"usage_context"`
	}
	if err := llmjson.Decode(resp.Content, &notes); err != nil {
		p.log.Warn("usage note generation returned undecodable output", "error", err)
		return matches
	}

	byTarget := make(map[string]string, len(notes))
	for _, n := range notes {
		byTarget[n.TargetWord] = n.UsageContext
	}
	for i := range matches {
		matches[i].UsageContext = byTarget[matches[i].TargetWord]
	}
	return matches
}
