// Package openai provides a text-to-speech provider backed by the OpenAI
// speech API.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/speakmate/speakmate/pkg/provider/tts"
)

const (
	// DefaultModel is the default OpenAI speech model (low latency).
	DefaultModel = "tts-1"

	// DefaultVoice is the voice used when the profile carries no ID.
	DefaultVoice = "nova"

	// DefaultFormat is the default output container. Opus keeps clips small
	// for streaming to browser clients.
	DefaultFormat = "opus"
)

// Provider implements tts.Provider using the OpenAI audio speech API.
type Provider struct {
	client oai.Client
	model  string
	format string
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	format  string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithFormat sets the output audio format (e.g., "opus", "mp3", "aac").
func WithFormat(format string) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI speech Provider.
// If model is empty, DefaultModel (tts-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{format: DefaultFormat}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  model,
		format: cfg.format,
	}, nil
}

// Synthesize implements tts.Provider. It returns the complete encoded clip;
// the format tag matches the configured output format.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Audio, error) {
	if text == "" {
		return nil, fmt.Errorf("openai tts: text must not be empty")
	}

	voiceID := voice.ID
	if voiceID == "" {
		voiceID = DefaultVoice
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voiceID),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormat(p.format),
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read audio: %w", err)
	}

	return &tts.Audio{Data: data, Format: p.format}, nil
}
