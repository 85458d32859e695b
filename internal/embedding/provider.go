package embedding

import (
	"context"
	"fmt"
)

// Provider produces an embedding vector of exactly dim elements for the
// given text. Two implementations exist: Remote (provider API) and
// Local (deterministic hash fallback).
type Provider interface {
	Embed(ctx context.Context, text string, dim int) ([]float32, error)
}

// TextEmbedder is the remote API surface Remote depends on,
// implemented by llm.Client.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Remote calls the configured embedding API and resizes the
// provider-native vector to the requested dimension.
type Remote struct {
	client TextEmbedder
}

// NewRemote creates a Remote provider backed by client.
func NewRemote(client TextEmbedder) *Remote {
	return &Remote{client: client}
}

func (r *Remote) Embed(ctx context.Context, text string, dim int) ([]float32, error) {
	vec, err := r.client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("provider returned an empty embedding")
	}
	return Resize(vec, dim), nil
}
