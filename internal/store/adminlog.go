package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	redisx "github.com/jpch89/the5fire-Django/internal/common/redis"
	"github.com/jpch89/the5fire-Django/internal/domain"

	"github.com/go-redis/redis/v8"
)

// ActionLog 后台操作记录（add / change）
type ActionLog interface {
	Append(ctx context.Context, e *domain.LogEntry) error
	// ListForObject 按时间顺序返回某个对象的记录
	ListForObject(ctx context.Context, model string, objectID int64) ([]domain.LogEntry, error)
}

// RedisActionLog 写入 Redis Stream
type RedisActionLog struct {
	client *redis.Client
	stream string
}

func NewRedisActionLog(client *redis.Client, stream string) *RedisActionLog {
	return &RedisActionLog{client: client, stream: stream}
}

func (l *RedisActionLog) Append(ctx context.Context, e *domain.LogEntry) error {
	id, err := redisx.PublishToStream(ctx, l.client, l.stream, map[string]any{
		"user_id":     e.UserID,
		"username":    e.Username,
		"model":       e.Model,
		"object_id":   e.ObjectID,
		"object_repr": e.ObjectRepr,
		"action":      e.Action,
		"message":     e.Message,
		"action_time": e.ActionTime.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to append admin log: %w", err)
	}
	e.ID = id
	return nil
}

func (l *RedisActionLog) ListForObject(ctx context.Context, model string, objectID int64) ([]domain.LogEntry, error) {
	msgs, err := redisx.ReadStream(ctx, l.client, l.stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read admin log: %w", err)
	}

	var out []domain.LogEntry
	for _, m := range msgs {
		v := m.Values
		if v["model"] != model || v["object_id"] != strconv.FormatInt(objectID, 10) {
			continue
		}
		userID, _ := strconv.ParseInt(v["user_id"], 10, 64)
		ms, _ := strconv.ParseInt(v["action_time"], 10, 64)
		out = append(out, domain.LogEntry{
			ID:         m.ID,
			UserID:     userID,
			Username:   v["username"],
			Model:      model,
			ObjectID:   objectID,
			ObjectRepr: v["object_repr"],
			Action:     v["action"],
			Message:    v["message"],
			ActionTime: time.UnixMilli(ms),
		})
	}
	return out, nil
}

// MemoryActionLog Redis 未启用时使用
type MemoryActionLog struct {
	mu      sync.RWMutex
	entries []domain.LogEntry
}

func NewMemoryActionLog() *MemoryActionLog { return &MemoryActionLog{} }

func (l *MemoryActionLog) Append(_ context.Context, e *domain.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.ID = strconv.Itoa(len(l.entries) + 1)
	l.entries = append(l.entries, *e)
	return nil
}

func (l *MemoryActionLog) ListForObject(_ context.Context, model string, objectID int64) ([]domain.LogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.LogEntry
	for _, e := range l.entries {
		if e.Model == model && e.ObjectID == objectID {
			out = append(out, e)
		}
	}
	return out, nil
}
