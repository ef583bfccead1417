package translate

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openaiProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAI returns the primary translation provider, backed by an OpenAI
// chat completion.
func NewOpenAI(apiKey, model string, opts ...Option) Provider {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	return &openaiProvider{client: openai.NewClientWithConfig(config), model: model}
}

func (p *openaiProvider) Name() string { return "openai" }

func (p *openaiProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: translationPrompt(sourceLang, targetLang)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai translation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func translationPrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf(
		"You are an interpreter on a live phone call. Translate the speaker's words from %s to %s. Reply with only the translation, no explanations and no quotes.",
		sourceLang, targetLang,
	)
}
