// Package genai provides speech synthesis using the OpenAI API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Defaults for speech synthesis.
const (
	DefaultVoice = "alloy"
	DefaultModel = openai.SpeechModelTTS1
)

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("no text to synthesize")

// speechService defines the minimal interface for text-to-speech.
type speechService interface {
	New(ctx context.Context, body openai.AudioSpeechNewParams, opts ...option.RequestOption) (*http.Response, error)
}

// Opts holds configuration for the speech client.
type Opts struct {
	APIKey string
	Voice  string
	Model  openai.SpeechModel
}

// Option configures the speech client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key. OPENAI_API_KEY is used when unset.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithVoice selects the synthesis voice.
func WithVoice(voice string) Option {
	return func(o *Opts) {
		o.Voice = voice
	}
}

// WithModel selects the speech model.
func WithModel(model openai.SpeechModel) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// Client wraps the OpenAI speech service.
type Client struct {
	speech speechService
	voice  string
	model  openai.SpeechModel
}

// NewClient initializes a speech client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Voice: DefaultVoice, Model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	slog.Debug("genai.NewClient: speech client configured", "voice", cfg.Voice, "model", cfg.Model)
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{speech: &cli.Audio.Speech, voice: cfg.Voice, model: cfg.Model}, nil
}

// Synthesize returns MP3 audio for text. The model detects the language from
// the text itself; lang is recorded for logging only. The caller closes the reader.
func (c *Client) Synthesize(ctx context.Context, text, lang string) (io.ReadCloser, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	resp, err := c.speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          c.model,
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(c.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		slog.Error("Client.Synthesize: speech request failed", "error", err, "lang", lang)
		return nil, err
	}
	slog.Debug("Client.Synthesize: audio received", "lang", lang, "chars", len(text))
	return resp.Body, nil
}
