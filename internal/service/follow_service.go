package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"Walcord/internal/logger"
	"Walcord/internal/model"
	"Walcord/internal/pkg"
	"Walcord/internal/repository/mysql"
)

var (
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrCannotFollowSelf = errors.New("cannot follow self")
	ErrUserNotFound     = errors.New("user not found")
)

type FollowService struct {
	repo  *mysql.FollowRepository
	users *mysql.UserRepository
}

func NewFollowService(repo *mysql.FollowRepository, users *mysql.UserRepository) *FollowService {
	return &FollowService{repo: repo, users: users}
}

func (s *FollowService) checkPair(ctx context.Context, followerID, followeeID uint64) error {
	if followerID == 0 || followeeID == 0 {
		return ErrInvalidUserID
	}
	if followerID == followeeID {
		return ErrCannotFollowSelf
	}
	ok, err := s.users.Exists(ctx, followeeID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

func (s *FollowService) Follow(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	if err := s.checkPair(ctx, followerID, followeeID); err != nil {
		return false, err
	}
	return s.repo.Follow(ctx, followerID, followeeID)
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	if followerID == 0 || followeeID == 0 {
		return false, ErrInvalidUserID
	}
	if followerID == followeeID {
		return false, ErrCannotFollowSelf
	}
	return s.repo.Unfollow(ctx, followerID, followeeID)
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	if followerID == 0 || followeeID == 0 {
		return false, ErrInvalidUserID
	}
	return s.repo.IsFollowing(ctx, followerID, followeeID)
}

func (s *FollowService) ListFollowings(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	if userID == 0 {
		return nil, 0, ErrInvalidUserID
	}
	return s.repo.ListFollowings(ctx, userID, cursor, limit)
}

func (s *FollowService) ListFollowers(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	if userID == 0 {
		return nil, 0, ErrInvalidUserID
	}
	return s.repo.ListFollowers(ctx, userID, cursor, limit)
}

// OutboxStore outbox 表读写
type OutboxStore interface {
	List(ctx context.Context, batchSize int) ([]model.SocialOutbox, error)
	MarkSent(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64) error
	Requeue(ctx context.Context, maxRetry int) (int64, error)
}

type Sender func(ctx context.Context, ob *model.SocialOutbox) error

// KafkaSender 以发起人 id 作为 key，同一用户的关系事件落在同一分区
func KafkaSender(p *pkg.KafkaProducer) Sender {
	return func(ctx context.Context, ob *model.SocialOutbox) error {
		return p.Send(ctx, pkg.MakeKeyFromID(ob.ActorID), ob.Payload, map[string]string{"event": ob.EventType})
	}
}

const outboxMaxRetry = 5

// OutboxRelayer 定时把 outbox 中待发送的事件投递到 kafka
type OutboxRelayer struct {
	repo      OutboxStore
	batchSize int
	interval  time.Duration
	sender    Sender
}

func NewOutboxRelayer(repo OutboxStore, sender Sender, batchSize int, interval time.Duration) *OutboxRelayer {
	if batchSize <= 0 {
		batchSize = 200
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxRelayer{repo: repo, batchSize: batchSize, interval: interval, sender: sender}
}

// Run outbox启动器
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.drainOnce(ctx)
		}
	}
}

// drainOnce 投递一批，返回成功条数。失败的记录标记为 failed 并在下一轮重新排队。
func (r *OutboxRelayer) drainOnce(ctx context.Context) int {
	log := logger.For(ctx)
	if n, err := r.repo.Requeue(ctx, outboxMaxRetry); err != nil {
		log.WithError(err).Warn("outbox requeue failed")
	} else if n > 0 {
		log.WithField("count", n).Debug("outbox rows requeued")
	}

	rows, err := r.repo.List(ctx, r.batchSize)
	if err != nil {
		log.WithError(err).Warn("outbox query failed")
		return 0
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err := r.sender(ctx, &ob); err != nil {
			log.WithError(err).WithFields(logrus.Fields{"id": ob.ID, "event": ob.EventType}).Warn("outbox send failed")
			_ = r.repo.MarkFailed(ctx, ob.ID)
			continue
		}
		if err := r.repo.MarkSent(ctx, ob.ID); err != nil {
			log.WithError(err).WithField("id", ob.ID).Warn("outbox mark sent failed")
			continue
		}
		sent++
	}
	return sent
}

// ReconcileStore 关注计数对账读写
type ReconcileStore interface {
	ReconcileList(ctx context.Context, batchSize int, lastID uint64) ([]mysql.Pair, uint64, error)
	RealCounts(ctx context.Context, userID uint64) (following, followers int64, err error)
	Fix(ctx context.Context, userID uint64, following, followers int64) error
}

// FollowCountReconciler 定期用关系表的真实数量修正 users 表上的计数
type FollowCountReconciler struct {
	repo      ReconcileStore
	batchSize int
	interval  time.Duration
}

func NewFollowCountReconciler(repo ReconcileStore, interval time.Duration) *FollowCountReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &FollowCountReconciler{repo: repo, batchSize: 500, interval: interval}
}

// Run 对账定时任务启动器
func (r *FollowCountReconciler) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.reconcileOnce(ctx)
		}
	}
}

// reconcileOnce 扫描全部用户一遍，返回修正的用户数
func (r *FollowCountReconciler) reconcileOnce(ctx context.Context) int {
	log := logger.For(ctx)
	var (
		lastID uint64
		fixed  int
	)
	for {
		users, next, err := r.repo.ReconcileList(ctx, r.batchSize, lastID)
		if err != nil {
			log.WithError(err).Warn("reconcile list failed")
			return fixed
		}
		for _, u := range users {
			following, followers, err := r.repo.RealCounts(ctx, u.ID)
			if err != nil {
				continue
			}
			if following == u.FollowingCount && followers == u.FollowerCount {
				continue
			}
			if err := r.repo.Fix(ctx, u.ID, following, followers); err != nil {
				log.WithError(err).WithField("user", u.ID).Warn("reconcile fix failed")
				continue
			}
			fixed++
		}
		if len(users) < r.batchSize || ctx.Err() != nil {
			return fixed
		}
		lastID = next
	}
}
