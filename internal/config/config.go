// Package config provides the configuration schema and loader for the
// Speakmate server.
package config

// LogLevel controls log verbosity for the Speakmate server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// StoreKind selects where thread state is persisted.
type StoreKind string

const (
	// StoreMemory keeps thread state in process memory. The development
	// default; state is lost on restart.
	StoreMemory StoreKind = "memory"

	// StorePostgres persists thread state to PostgreSQL.
	StorePostgres StoreKind = "postgres"
)

// IsValid reports whether k is a recognised store kind.
func (k StoreKind) IsValid() bool {
	return k == StoreMemory || k == StorePostgres
}

// Config is the root configuration structure for Speakmate.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Store     StoreConfig     `yaml:"store"`
	Vocab     VocabConfig     `yaml:"vocab"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// AllowedOrigins lists origins permitted to call the API from a
	// browser. Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ProvidersConfig declares which provider implementation serves each
// capability.
type ProvidersConfig struct {
	LLM        ProviderEntry `yaml:"llm"`
	STT        ProviderEntry `yaml:"stt"`
	TTS        ProviderEntry `yaml:"tts"`
	Embeddings ProviderEntry `yaml:"embeddings"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "openai", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API, if any.
	// Overridable from the environment; see cmd/speakmate.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model (e.g., "gpt-4o-mini", "whisper-1").
	Model string `yaml:"model"`

	// Voice names the synthesis voice for TTS providers (e.g., "nova").
	Voice string `yaml:"voice"`
}

// StoreConfig selects and configures the session store.
type StoreConfig struct {
	// Kind is "memory" or "postgres".
	Kind StoreKind `yaml:"kind"`

	// PostgresDSN is the connection string when Kind is "postgres".
	PostgresDSN string `yaml:"postgres_dsn"`
}

// VocabConfig configures the vocabulary index behind the suggestion
// pipeline. An empty PostgresDSN disables suggestions.
type VocabConfig struct {
	// PostgresDSN is the connection string of the pgvector database
	// holding the vocabulary entries.
	PostgresDSN string `yaml:"postgres_dsn"`
}
