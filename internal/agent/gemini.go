package agent

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

type geminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient builds a Gemini generator. The SDK client is only created
// when apiKey is set.
func NewGeminiClient(ctx context.Context, apiKey, model string, httpClient *http.Client) (LLMClient, error) {
	c := &geminiClient{model: model}
	if strings.TrimSpace(apiKey) == "" {
		return c, nil
	}
	genClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, err
	}
	c.client = genClient
	return c, nil
}

func (c *geminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", ErrMissingAPIKey
	}
	res, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}

	// Blocked prompts come back without candidates.
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini returned no content")
	}

	var b strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}
