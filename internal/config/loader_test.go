package config

import (
	"strings"
	"testing"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  stt:
    name: openai
    model: whisper-1
  tts:
    name: openai
    model: tts-1
    voice: nova
  embeddings:
    name: openai
    model: text-embedding-3-small
store:
  kind: memory
vocab:
  postgres_dsn: postgres://localhost/speakmate
`

func TestLoadFromReaderValid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM provider = %+v", cfg.Providers.LLM)
	}
	if cfg.Providers.TTS.Voice != "nova" {
		t.Errorf("TTS voice = %q", cfg.Providers.TTS.Voice)
	}
	if cfg.Store.Kind != StoreMemory {
		t.Errorf("store kind = %q", cfg.Store.Kind)
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  listen_addr: ":8080"
  not_a_field: true
providers:
  llm:
    name: openai
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("LoadFromReader accepted an unknown field")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing llm provider",
			mutate:  func(c *Config) { c.Providers.LLM.Name = "" },
			wantSub: "providers.llm is required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "loud" },
			wantSub: "server.log_level",
		},
		{
			name:    "bad store kind",
			mutate:  func(c *Config) { c.Store.Kind = "redis" },
			wantSub: "store.kind",
		},
		{
			name: "postgres store without dsn",
			mutate: func(c *Config) {
				c.Store.Kind = StorePostgres
				c.Store.PostgresDSN = ""
			},
			wantSub: "store.postgres_dsn is required",
		},
		{
			name: "vocab without embeddings",
			mutate: func(c *Config) {
				c.Providers.Embeddings.Name = ""
			},
			wantSub: "providers.embeddings is not configured",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := LoadFromReader(strings.NewReader(validYAML))
			if err != nil {
				t.Fatalf("baseline config invalid: %v", err)
			}
			tt.mutate(cfg)
			err = Validate(cfg)
			if err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}
