package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"Walcord/internal/feed"
	"Walcord/internal/logger"
	"Walcord/internal/model"
	"Walcord/internal/repository/redis"
)

var (
	ErrInvalidEntity = errors.New("invalid entity")
	ErrEmptyComment  = errors.New("comment body is empty")
)

const maxCommentLen = 2000

// InteractionStore 点赞与评论的持久化
type InteractionStore interface {
	Like(ctx context.Context, userID uint64, kind feed.Kind, id uint64) (bool, error)
	Unlike(ctx context.Context, userID uint64, kind feed.Kind, id uint64) (bool, error)
	IsLiked(ctx context.Context, userID uint64, kind feed.Kind, id uint64) (bool, error)
	AddComment(ctx context.Context, userID uint64, kind feed.Kind, id uint64, body string) (*model.Comment, error)
	DeleteComment(ctx context.Context, userID, commentID uint64) (feed.Kind, uint64, error)
	ListComments(ctx context.Context, kind feed.Kind, id, cursor uint64, limit int) ([]model.Comment, uint64, error)
	Counts(ctx context.Context, kind feed.Kind, id uint64) (likes, comments int64, err error)
}

// InteractionService 写库成功后删除计数缓存（带延迟二删），读侧加锁单点回填
type InteractionService struct {
	repo  InteractionStore
	cache *redis.CountCache
	lock  *redis.DistLock

	invalidateDelay time.Duration
	backoff         time.Duration
}

func NewInteractionService(repo InteractionStore, cache *redis.CountCache, lock *redis.DistLock) *InteractionService {
	return &InteractionService{
		repo:            repo,
		cache:           cache,
		lock:            lock,
		invalidateDelay: 500 * time.Millisecond,
		backoff:         50 * time.Millisecond,
	}
}

func (s *InteractionService) invalidate(ctx context.Context, kind feed.Kind, id uint64) {
	if err := s.cache.Delete(ctx, string(kind), id, s.invalidateDelay); err != nil {
		logger.For(ctx).WithError(err).WithFields(logrus.Fields{"kind": kind, "id": id}).Warn("count cache invalidate failed")
	}
}

func (s *InteractionService) Like(ctx context.Context, userID uint64, kind feed.Kind, id uint64) (bool, error) {
	if userID == 0 || id == 0 {
		return false, ErrInvalidEntity
	}
	changed, err := s.repo.Like(ctx, userID, kind, id)
	if err != nil || !changed {
		return changed, err
	}
	s.invalidate(ctx, kind, id)
	return true, nil
}

func (s *InteractionService) Unlike(ctx context.Context, userID uint64, kind feed.Kind, id uint64) (bool, error) {
	if userID == 0 || id == 0 {
		return false, ErrInvalidEntity
	}
	changed, err := s.repo.Unlike(ctx, userID, kind, id)
	if err != nil || !changed {
		return changed, err
	}
	s.invalidate(ctx, kind, id)
	return true, nil
}

func (s *InteractionService) IsLiked(ctx context.Context, userID uint64, kind feed.Kind, id uint64) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	return s.repo.IsLiked(ctx, userID, kind, id)
}

func (s *InteractionService) Comment(ctx context.Context, userID uint64, kind feed.Kind, id uint64, body string) (*model.Comment, error) {
	if userID == 0 || id == 0 {
		return nil, ErrInvalidEntity
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyComment
	}
	if r := []rune(body); len(r) > maxCommentLen {
		body = string(r[:maxCommentLen])
	}
	c, err := s.repo.AddComment(ctx, userID, kind, id, body)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, kind, id)
	return c, nil
}

func (s *InteractionService) DeleteComment(ctx context.Context, userID, commentID uint64) error {
	kind, id, err := s.repo.DeleteComment(ctx, userID, commentID)
	if err != nil {
		return err
	}
	s.invalidate(ctx, kind, id)
	return nil
}

func (s *InteractionService) Comments(ctx context.Context, kind feed.Kind, id, cursor uint64, limit int) ([]model.Comment, uint64, error) {
	return s.repo.ListComments(ctx, kind, id, cursor, limit)
}

// Counts 单个父实体的计数刷新，不触发 feed 重新聚合
func (s *InteractionService) Counts(ctx context.Context, kind feed.Kind, id uint64) (redis.Counts, error) {
	k := string(kind)
	if v, ok, err := s.cache.Get(ctx, k, id); err == nil && ok {
		return v, nil
	}

	token := uuid.NewString()
	got, err := s.lock.Acquire(ctx, k, id, token)
	if err != nil {
		// redis 不可用，和抢锁失败区分开，直接读库
		logger.For(ctx).WithError(err).WithFields(logrus.Fields{"kind": kind, "id": id}).Warn("count lock acquire failed")
		likes, comments, err := s.repo.Counts(ctx, kind, id)
		if err != nil {
			return redis.Counts{}, err
		}
		return redis.Counts{Likes: likes, Comments: comments}, nil
	}
	if got {
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), k, id, token); err != nil {
				logger.For(ctx).WithError(err).Warn("count lock release failed")
			}
		}()
		// 第二次检查
		if v, ok, err := s.cache.Get(ctx, k, id); err == nil && ok {
			return v, nil
		}
		return s.load(ctx, kind, id)
	}

	// 没拿到锁，短暂退避后再读一次缓存，避免全体打DB
	select {
	case <-ctx.Done():
		return redis.Counts{}, ctx.Err()
	case <-time.After(s.backoff):
	}
	if v, ok, err := s.cache.Get(ctx, k, id); err == nil && ok {
		return v, nil
	}
	likes, comments, err := s.repo.Counts(ctx, kind, id)
	if err != nil {
		return redis.Counts{}, err
	}
	return redis.Counts{Likes: likes, Comments: comments}, nil
}

func (s *InteractionService) load(ctx context.Context, kind feed.Kind, id uint64) (redis.Counts, error) {
	likes, comments, err := s.repo.Counts(ctx, kind, id)
	if err != nil {
		return redis.Counts{}, err
	}
	v := redis.Counts{Likes: likes, Comments: comments}
	if err := s.cache.Set(ctx, string(kind), id, v); err != nil {
		logger.For(ctx).WithError(err).Warn("count cache backfill failed")
	}
	return v, nil
}
