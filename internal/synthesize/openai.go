package synthesize

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

type openaiEngine struct {
	client *openai.Client
	model  openai.SpeechModel
}

// NewOpenAI returns the primary synthesis engine, backed by the OpenAI
// speech endpoint. Output is MP3.
func NewOpenAI(apiKey, model string, opts ...Option) Engine {
	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}

	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	if model == "" {
		model = string(openai.TTSModel1)
	}
	return &openaiEngine{client: openai.NewClientWithConfig(config), model: openai.SpeechModel(model)}
}

func (e *openaiEngine) Name() string { return "openai" }

func (e *openaiEngine) Synthesize(ctx context.Context, text, _ string, voiceID string) (Audio, error) {
	if voiceID == "" {
		voiceID = string(openai.VoiceAlloy)
	}

	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          e.model,
		Input:          text,
		Voice:          openai.SpeechVoice(voiceID),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return Audio{}, fmt.Errorf("openai speech: %w", err)
	}
	defer func() { _ = resp.Close() }()

	data, err := io.ReadAll(resp)
	if err != nil {
		return Audio{}, fmt.Errorf("read openai speech response: %w", err)
	}
	if len(data) == 0 {
		return Audio{}, fmt.Errorf("openai speech: empty audio")
	}

	return Audio{Format: "mp3", Data: data}, nil
}

// Option configures an engine client.
type Option func(*engineOptions)

type engineOptions struct {
	baseURL string
}

func WithBaseURL(url string) Option {
	return func(o *engineOptions) {
		o.baseURL = url
	}
}
