package ai

import (
	"context"
	"fmt"
	"strings"
)

// Embed returns the embedding vector for text. Every failure wraps
// ErrEmbeddingUnavailable; no retry is attempted.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: input is empty", ErrEmbeddingUnavailable)
	}

	reqBody := map[string]interface{}{
		"model": c.cfg.EmbeddingModel,
		"input": text,
	}
	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/embeddings", reqBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding in response", ErrEmbeddingUnavailable)
	}
	return parsed.Data[0].Embedding, nil
}
