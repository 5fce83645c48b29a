package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var Client *redis.Client

// Options 连接参数，零值字段使用默认
type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

func New(opts Options) *redis.Client {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 20
	}
	return redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 2,
	})
}

// Init 建立全局客户端并 Ping 一次，计数缓存、会话 token、验证码共用
func Init(ctx context.Context, opts Options) error {
	Client = New(opts)
	return Ping(ctx)
}

// Ping 健康检查
func Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return Client.Ping(ctx).Err()
}

func Close() error {
	if Client == nil {
		return nil
	}
	return Client.Close()
}
