package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// count:{kind}:{id} -> hash{likes, comments}
const (
	CountCacheTTL   = 10 * time.Minute
	LockTTL         = 300 * time.Millisecond
	CountKeyPrefix  = "count"
	CountLockPrefix = "lock:count"
	fieldLikes      = "likes"
	fieldComments   = "comments"
)

// Counts 父实体的互动计数
type Counts struct {
	Likes    int64 `json:"like_count"`
	Comments int64 `json:"comment_count"`
}

// CountCache 点赞/评论计数缓存。写路径在 MySQL 成功后删除缓存，读路径回填。
type CountCache struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewCountCache(rdb *redis.Client) *CountCache {
	return &CountCache{RDB: rdb, TTL: CountCacheTTL}
}

func countKey(kind string, id uint64) string {
	return fmt.Sprintf("%s:%s:%d", CountKeyPrefix, kind, id)
}

// Get 第二个返回值表示是否命中
func (c *CountCache) Get(ctx context.Context, kind string, id uint64) (Counts, bool, error) {
	vals, err := c.RDB.HGetAll(ctx, countKey(kind, id)).Result()
	if err != nil {
		return Counts{}, false, err
	}
	likes, okL := vals[fieldLikes]
	comments, okC := vals[fieldComments]
	if !okL || !okC {
		return Counts{}, false, nil
	}
	var out Counts
	if out.Likes, err = strconv.ParseInt(likes, 10, 64); err != nil {
		return Counts{}, false, nil
	}
	if out.Comments, err = strconv.ParseInt(comments, 10, 64); err != nil {
		return Counts{}, false, nil
	}
	return out, true, nil
}

// Set 回填
func (c *CountCache) Set(ctx context.Context, kind string, id uint64, v Counts) error {
	key := countKey(kind, id)
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fieldLikes, v.Likes, fieldComments, v.Comments)
		p.Expire(ctx, key, c.TTL)
		return nil
	})
	return err
}

// Delete 立即删除计数缓存；delay>0 时在后台再删一次，抵消并发回填窗口
func (c *CountCache) Delete(ctx context.Context, kind string, id uint64, delay time.Duration) error {
	key := countKey(kind, id)
	if err := c.RDB.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if delay > 0 {
		go func() {
			t := time.NewTimer(delay)
			defer t.Stop()
			<-t.C
			_ = c.RDB.Del(context.Background(), key).Err()
		}()
	}
	return nil
}

// DistLock 回填互斥锁，token 用来保证只释放自己的锁
type DistLock struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewDistLock(rdb *redis.Client) *DistLock {
	return &DistLock{RDB: rdb, TTL: LockTTL}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

func lockKey(kind string, id uint64) string {
	return fmt.Sprintf("%s:%s:%d", CountLockPrefix, kind, id)
}

func (l *DistLock) Acquire(ctx context.Context, kind string, id uint64, token string) (bool, error) {
	return l.RDB.SetNX(ctx, lockKey(kind, id), token, l.TTL).Result()
}

// Release 用lua保证原子性
func (l *DistLock) Release(ctx context.Context, kind string, id uint64, token string) error {
	return releaseScript.Run(ctx, l.RDB, []string{lockKey(kind, id)}, token).Err()
}
