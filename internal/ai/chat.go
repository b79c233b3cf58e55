package ai

import (
	"context"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete runs a non-streaming chat completion and returns the first choice.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	reqBody := map[string]interface{}{
		"model":    c.cfg.ChatModel,
		"messages": messages,
		"stream":   false,
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, "/chat/completions", reqBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty llm choices", ErrGenerationUnavailable)
	}
	return parsed.Choices[0].Message.Content, nil
}

// Generate sends prompt as a single user turn.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Complete(ctx, []ChatMessage{{Role: RoleUser, Content: prompt}})
}
