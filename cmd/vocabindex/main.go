// Command vocabindex loads a vocabulary word list into the pgvector index
// that backs the suggestion pipeline.
//
// The input is a CSV file with a header row and three columns:
//
//	word,definition,example
//
// Each entry is embedded and upserted, so re-running on an updated list is
// safe.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/speakmate/speakmate/internal/vocab"
	"github.com/speakmate/speakmate/pkg/provider/embeddings"
	ollamaembed "github.com/speakmate/speakmate/pkg/provider/embeddings/ollama"
	oaembed "github.com/speakmate/speakmate/pkg/provider/embeddings/openai"
)

const batchSize = 64

func main() {
	os.Exit(run())
}

func run() int {
	csvPath := flag.String("csv", "", "path to the word list CSV (word,definition,example)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN of the vocabulary database (defaults to $VOCAB_POSTGRES_DSN)")
	provider := flag.String("provider", "openai", "embeddings provider: openai or ollama")
	model := flag.String("model", "", "embeddings model (provider default when empty)")
	baseURL := flag.String("base-url", "", "provider API base URL override")
	flag.Parse()

	_ = godotenv.Load()

	if *dsn == "" {
		*dsn = os.Getenv("VOCAB_POSTGRES_DSN")
	}
	if *csvPath == "" || *dsn == "" {
		fmt.Fprintln(os.Stderr, "vocabindex: -csv and -dsn (or $VOCAB_POSTGRES_DSN) are required")
		flag.Usage()
		return 2
	}

	embedder, err := buildEmbedder(*provider, *model, *baseURL)
	if err != nil {
		slog.Error("creating embeddings provider failed", "provider", *provider, "err", err)
		return 1
	}

	entries, err := readEntries(*csvPath)
	if err != nil {
		slog.Error("reading word list failed", "path", *csvPath, "err", err)
		return 1
	}
	slog.Info("word list loaded", "path", *csvPath, "entries", len(entries))

	ctx := context.Background()
	index, err := vocab.NewPostgresIndex(ctx, *dsn, embedder)
	if err != nil {
		slog.Error("connecting vocabulary index failed", "err", err)
		return 1
	}
	defer index.Close()

	start := time.Now()
	for i := 0; i < len(entries); i += batchSize {
		batch := entries[i:min(i+batchSize, len(entries))]
		if err := index.Add(ctx, batch); err != nil {
			slog.Error("indexing batch failed", "offset", i, "err", err)
			return 1
		}
		slog.Info("batch indexed", "done", i+len(batch), "total", len(entries))
	}

	slog.Info("index built", "entries", len(entries), "elapsed", time.Since(start).Round(time.Second))
	return 0
}

func buildEmbedder(provider, model, baseURL string) (embeddings.Provider, error) {
	switch provider {
	case "openai":
		var opts []oaembed.Option
		if baseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(baseURL))
		}
		return oaembed.New(os.Getenv("OPENAI_API_KEY"), model, opts...)
	case "ollama":
		return ollamaembed.New(baseURL, model)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", provider)
	}
}

func readEntries(path string) ([]vocab.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	// Header row.
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var entries []vocab.Entry
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rec[0] == "" {
			continue
		}
		entries = append(entries, vocab.Entry{
			Word:       rec[0],
			Definition: rec[1],
			Example:    rec[2],
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries in %s", path)
	}
	return entries, nil
}
