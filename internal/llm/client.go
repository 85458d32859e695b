package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrQuota marks rate-limit/quota failures from the remote provider.
// Callers use it to pick a longer circuit-breaker cool-down than for
// generic transport errors.
var ErrQuota = errors.New("provider quota exceeded")

// Client wraps an OpenAI-compatible API for embeddings and completions.
type Client struct {
	client     *openai.Client
	embedModel openai.EmbeddingModel
	chatModel  string
}

// NewClient creates a Client for the given API key and models.
// Returns nil when apiKey is empty: callers treat a nil client as
// "no credentials configured" and run on local fallbacks.
func NewClient(apiKey, embedModel, chatModel string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		client:     openai.NewClient(apiKey),
		embedModel: openai.EmbeddingModel(embedModel),
		chatModel:  chatModel,
	}
}

// Embed returns the provider-native embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: c.embedModel,
	})
	if err != nil {
		return nil, classify(err, "creating embedding")
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

// Complete sends a system + user message pair and returns the raw
// assistant response text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", classify(err, "creating completion")
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// classify wraps quota-type API errors with ErrQuota so callers can
// distinguish them without importing the provider SDK.
func classify(err error, op string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.Code == "insufficient_quota" {
			return fmt.Errorf("%s: %v: %w", op, err, ErrQuota)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
