package app

import (
	"context"

	"studyhub/internal/ai"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type ChatCompleter interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
