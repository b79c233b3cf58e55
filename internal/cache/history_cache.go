package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"studyhub/internal/model"
)

const (
	defaultHistoryTTL = 60 * time.Second
	defaultDirtyTTL   = 5 * time.Second
	keyPrefix         = "studyhub:session"
)

// HistoryCache keeps a session's message list in Redis. A short-lived dirty
// marker set on every write keeps readers off a list that is being replaced.
type HistoryCache struct {
	client     redisv9.Cmdable
	historyTTL time.Duration
	dirtyTTL   time.Duration
}

func NewHistoryCache(client redisv9.Cmdable, historyTTL, dirtyTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = defaultHistoryTTL
	}
	if dirtyTTL <= 0 {
		dirtyTTL = defaultDirtyTTL
	}
	return &HistoryCache{client: client, historyTTL: historyTTL, dirtyTTL: dirtyTTL}
}

func (c *HistoryCache) GetHistory(ctx context.Context, sessionID uint) ([]model.ChatMessage, bool, error) {
	raw, err := c.client.Get(ctx, historyKey(sessionID)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var messages []model.ChatMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return messages, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, sessionID uint, messages []model.ChatMessage) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, historyKey(sessionID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) DeleteHistory(ctx context.Context, sessionID uint) error {
	if err := c.client.Del(ctx, historyKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) MarkDirty(ctx context.Context, sessionID uint) error {
	if err := c.client.Set(ctx, dirtyKey(sessionID), "1", c.dirtyTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context, sessionID uint) (bool, error) {
	n, err := c.client.Exists(ctx, dirtyKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return n > 0, nil
}

func historyKey(sessionID uint) string {
	return fmt.Sprintf("%s:%d:history", keyPrefix, sessionID)
}

func dirtyKey(sessionID uint) string {
	return fmt.Sprintf("%s:%d:history:dirty", keyPrefix, sessionID)
}
