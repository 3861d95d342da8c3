package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"medical-rag-platform/internal/logger"
	"medical-rag-platform/models"
)

const keyPrefix = "chat:memory:"

// Redis stores each conversation as a capped list so several API replicas
// share memory. The list is trimmed to MaxTurns on every append.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func key(conversationID string) string { return keyPrefix + conversationID }

func (r *Redis) Append(ctx context.Context, conversationID string, role models.Role, content string) error {
	raw, err := json.Marshal(models.Turn{Role: role, Content: strings.TrimSpace(content)})
	if err != nil {
		return err
	}

	k := key(conversationID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, k, raw)
		pipe.LTrim(ctx, k, -MaxTurns, -1)
		if r.ttl > 0 {
			pipe.Expire(ctx, k, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (r *Redis) History(ctx context.Context, conversationID string) ([]models.Turn, error) {
	items, err := r.rdb.LRange(ctx, key(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	turns := make([]models.Turn, 0, len(items))
	for _, item := range items {
		var t models.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			logger.Warn("Skipping undecodable conversation turn", "conversation_id", conversationID, "error", err)
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (r *Redis) Clear(ctx context.Context, conversationID string) error {
	return r.rdb.Del(ctx, key(conversationID)).Err()
}
