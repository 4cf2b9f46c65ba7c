package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docqa/internal/model"
)

const DefaultHistoryTTL = 24 * time.Hour

// HistoryCache keeps conversation history in redis. Entries expire after the
// TTL since the last write.
type HistoryCache struct {
	client     *redisv9.Client
	historyTTL time.Duration
	prefix     string
}

func NewHistoryCache(client *redisv9.Client, historyTTL time.Duration, prefix string) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = DefaultHistoryTTL
	}
	if prefix == "" {
		prefix = "docqa"
	}
	return &HistoryCache{
		client:     client,
		historyTTL: historyTTL,
		prefix:     prefix,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, conversationID string) ([]model.ChatMessage, bool, error) {
	raw, err := c.client.Get(ctx, c.historyKey(conversationID)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}
	return decodeHistory(raw)
}

func (c *HistoryCache) SetHistory(ctx context.Context, conversationID string, messages []model.ChatMessage) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.historyKey(conversationID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) DeleteHistory(ctx context.Context, conversationID string) error {
	if err := c.client.Del(ctx, c.historyKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) historyKey(conversationID string) string {
	return fmt.Sprintf("%s:chat:history:%s", c.prefix, conversationID)
}

func decodeHistory(raw []byte) ([]model.ChatMessage, bool, error) {
	var messages []model.ChatMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return messages, true, nil
}
