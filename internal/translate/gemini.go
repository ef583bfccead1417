package translate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiProvider struct {
	client *genai.Client
	model  string
}

// NewGemini returns the alternate translation provider, used when the
// primary fails.
func NewGemini(apiKey, model string, opts ...Option) (Provider, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	config := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if o.baseURL != "" {
		config.HTTPOptions.BaseURL = o.baseURL
	}

	client, err := genai.NewClient(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &geminiProvider{client: client, model: model}, nil
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: translationPrompt(sourceLang, targetLang)}}},
	}
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: text}}},
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini translation: %w", err)
	}

	out := strings.TrimSpace(result.Text())
	if out == "" {
		return "", fmt.Errorf("gemini: empty response text")
	}
	return out, nil
}
