package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"livequiz-service/internal/domain"
)

// CodeIndex tracks which join codes belong to currently active sessions.
// A claim is a SETNX with TTL: collisions surface as ErrCodeTaken and the
// caller regenerates; the TTL bounds leakage if a release is ever missed.
type CodeIndex struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCodeIndex(client *redis.Client, ttl time.Duration) *CodeIndex {
	return &CodeIndex{client: client, ttl: ttl}
}

func (i *CodeIndex) Claim(ctx context.Context, code, sessionID string) error {
	ok, err := i.client.SetNX(ctx, i.key(code), sessionID, i.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCodeTaken
	}
	return nil
}

func (i *CodeIndex) Release(ctx context.Context, code string) error {
	return i.client.Del(ctx, i.key(code)).Err()
}

// Refresh extends a claim's TTL; called from the session activity path so
// long-running sessions keep their code.
func (i *CodeIndex) Refresh(ctx context.Context, code string) error {
	return i.client.Expire(ctx, i.key(code), i.ttl).Err()
}

func (i *CodeIndex) key(code string) string {
	return "session:code:" + code
}
