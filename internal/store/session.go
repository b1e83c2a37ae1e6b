package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrNoSession token 不存在或已过期
var ErrNoSession = errors.New("session not found")

const sessionKeyPrefix = "typeidea:session:"

// Sessions 后台登录会话：token -> user id，保存在 KV 中
type Sessions struct {
	kv  KV
	ttl time.Duration
}

func NewSessions(kv KV, ttl time.Duration) *Sessions {
	return &Sessions{kv: kv, ttl: ttl}
}

// Create 为用户创建新会话并返回 token
func (s *Sessions) Create(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	if err := s.kv.Set(ctx, sessionKeyPrefix+token, strconv.FormatInt(userID, 10), s.ttl); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return token, nil
}

// Resolve 返回 token 对应的用户 id
func (s *Sessions) Resolve(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrNoSession
	}
	val, err := s.kv.Get(ctx, sessionKeyPrefix+token)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return 0, ErrNoSession
		}
		return 0, fmt.Errorf("failed to load session: %w", err)
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session %q: %w", token, err)
	}
	return id, nil
}

// Delete 注销
func (s *Sessions) Delete(ctx context.Context, token string) error {
	return s.kv.Delete(ctx, sessionKeyPrefix+token)
}
