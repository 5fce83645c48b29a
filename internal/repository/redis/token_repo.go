package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const (
	UserTokenPrefix = "login:user:token"
	DefaultTokenTTL = 30 * time.Minute
)

// TokenRepository 每个用户只保留一个有效的 access token，新登录会顶掉旧的
type TokenRepository struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewTokenRepository(rdb *redis.Client, ttl time.Duration) *TokenRepository {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenRepository{RDB: rdb, TTL: ttl}
}

func (r *TokenRepository) key(userID uint64) string {
	return fmt.Sprintf("%s:%d", UserTokenPrefix, userID)
}

func (r *TokenRepository) Set(ctx context.Context, userID uint64, token string) error {
	if err := r.RDB.Set(ctx, r.key(userID), token, r.TTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *TokenRepository) Get(ctx context.Context, userID uint64) (string, error) {
	token, err := r.RDB.Get(ctx, r.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return token, nil
}

// Extend 校验通过后续期
func (r *TokenRepository) Extend(ctx context.Context, userID uint64) error {
	return r.RDB.Expire(ctx, r.key(userID), r.TTL).Err()
}

func (r *TokenRepository) Delete(ctx context.Context, userID uint64) error {
	return r.RDB.Del(ctx, r.key(userID)).Err()
}
