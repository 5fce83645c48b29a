package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultEmailCodeTTL = 5 * time.Minute
	EmailCodePrefix     = "email:code"

	// 两阶段键：邮件发出前是 pending，发出后转为 confirmed 才能用于校验
	PendingSuffix   = "pending"
	ConfirmedSuffix = "confirmed"

	ScopeRegister = "register"
	ScopeReset    = "reset"
)

var (
	ErrEmailCodeNotFound   = errors.New("email code not found")
	ErrCodeConfirmedFailed = errors.New("code confirm failed")
)

// 取值+写入目标+设置 TTL+删除源，原子执行
var moveScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if not val then
  return 0
end
redis.call("SET", KEYS[2], val, "PX", ARGV[1])
redis.call("DEL", KEYS[1])
return 1
`)

type EmailRepository struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewEmailRepository(rdb *redis.Client) *EmailRepository {
	return &EmailRepository{RDB: rdb, TTL: DefaultEmailCodeTTL}
}

func (e *EmailRepository) key(scope, phase, email string) string {
	return fmt.Sprintf("%s:%s:%s:%s", EmailCodePrefix, scope, phase, email)
}

// SavePending 写入 pending 键
func (e *EmailRepository) SavePending(ctx context.Context, scope, email, code string) error {
	return e.RDB.Set(ctx, e.key(scope, PendingSuffix, email), code, e.TTL).Err()
}

// Confirm 将 pending 转为 confirmed（重置 TTL）
func (e *EmailRepository) Confirm(ctx context.Context, scope, email string) error {
	src := e.key(scope, PendingSuffix, email)
	dst := e.key(scope, ConfirmedSuffix, email)
	ok, err := moveScript.Run(ctx, e.RDB, []string{src, dst}, e.TTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCodeConfirmedFailed, err)
	}
	if ok != 1 {
		return ErrCodeConfirmedFailed
	}
	return nil
}

// DeletePending 删除 pending 键（幂等）
func (e *EmailRepository) DeletePending(ctx context.Context, scope, email string) error {
	return e.RDB.Del(ctx, e.key(scope, PendingSuffix, email)).Err()
}

// Confirmed 获取 confirmed 的验证码（校验时使用）
func (e *EmailRepository) Confirmed(ctx context.Context, scope, email string) (string, error) {
	val, err := e.RDB.Get(ctx, e.key(scope, ConfirmedSuffix, email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmailCodeNotFound
	}
	return val, err
}

func (e *EmailRepository) DeleteConfirmed(ctx context.Context, scope, email string) error {
	return e.RDB.Del(ctx, e.key(scope, ConfirmedSuffix, email)).Err()
}
