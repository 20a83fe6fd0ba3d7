package agent

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// chatCompletionClient talks to any OpenAI-compatible chat completions API
// (DeepSeek, OpenAI).
type chatCompletionClient struct {
	apiKey string
	model  string
	client openaigo.Client
}

func NewChatCompletionClient(apiKey, baseURL, model string, httpClient *http.Client) LLMClient {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &chatCompletionClient{
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
		client: openaigo.NewClient(opts...),
	}
}

func (c *chatCompletionClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	resp, err := c.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(c.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("llm returned empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
