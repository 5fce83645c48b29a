package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Walcord/internal/model"
)

var ErrFriendshipNotFound = errors.New("friendship not found")

type FriendshipRepository struct {
	DB *gorm.DB
}

// 锁住两人之间的关系行（任意方向）
func lockPair(tx *gorm.DB, a, b uint64) (*model.Friendship, error) {
	var rel model.Friendship
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("(requester_id=? AND receiver_id=?) OR (requester_id=? AND receiver_id=?)", a, b, b, a).
		First(&rel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// Request 发起好友请求。对方已经向我发起过待处理的请求时直接成为好友。
// 返回关系的最新状态以及是否发生了变化。
func (r *FriendshipRepository) Request(ctx context.Context, from, to uint64) (string, bool, error) {
	var (
		status  string
		changed bool
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rel, err := lockPair(tx, from, to)
		if err != nil {
			return err
		}
		if rel == nil {
			if err := tx.Create(&model.Friendship{
				RequesterID: from,
				ReceiverID:  to,
				Status:      model.FriendPending,
			}).Error; err != nil {
				return err
			}
			status, changed = model.FriendPending, true
			return insertOutbox(tx, model.EventFriendRequest, from, to)
		}
		status = rel.Status
		// 已是好友，或者我之前的请求还在等待
		if rel.Status == model.FriendAccepted || rel.RequesterID == from {
			return nil
		}
		if err := tx.Model(rel).Update("status", model.FriendAccepted).Error; err != nil {
			return err
		}
		status, changed = model.FriendAccepted, true
		return insertOutbox(tx, model.EventFriendAccept, from, to)
	})
	return status, changed, err
}

// Accept 只有接收方可以接受。已经是好友时幂等返回 false。
func (r *FriendshipRepository) Accept(ctx context.Context, receiverID, requesterID uint64) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rel, err := lockPair(tx, receiverID, requesterID)
		if err != nil {
			return err
		}
		if rel == nil || (rel.Status == model.FriendPending && rel.ReceiverID != receiverID) {
			return ErrFriendshipNotFound
		}
		if rel.Status == model.FriendAccepted {
			return nil
		}
		if err := tx.Model(rel).Update("status", model.FriendAccepted).Error; err != nil {
			return err
		}
		changed = true
		return insertOutbox(tx, model.EventFriendAccept, receiverID, requesterID)
	})
	return changed, err
}

// Remove 删除好友或拒绝/撤回请求，任意一方都可以
func (r *FriendshipRepository) Remove(ctx context.Context, userID, otherID uint64) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rel, err := lockPair(tx, userID, otherID)
		if err != nil || rel == nil {
			return err
		}
		if err := tx.Delete(rel).Error; err != nil {
			return err
		}
		changed = true
		return insertOutbox(tx, model.EventFriendRemove, userID, otherID)
	})
	return changed, err
}

// Status 两人之间的关系，没有关系时返回 nil
func (r *FriendshipRepository) Status(ctx context.Context, a, b uint64) (*model.Friendship, error) {
	var rel model.Friendship
	err := r.DB.WithContext(ctx).
		Where("(requester_id=? AND receiver_id=?) OR (requester_id=? AND receiver_id=?)", a, b, b, a).
		First(&rel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &rel, err
}

// ListAccepted 好友列表（两个方向），id 游标倒序
func (r *FriendshipRepository) ListAccepted(ctx context.Context, userID, cursor uint64, limit int) ([]model.Friendship, uint64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Friendship{}).
		Where("(requester_id=? OR receiver_id=?) AND status=?", userID, userID, model.FriendAccepted)
	return pageFriendships(q, cursor, limit)
}

// ListIncoming 收到的待处理请求
func (r *FriendshipRepository) ListIncoming(ctx context.Context, userID, cursor uint64, limit int) ([]model.Friendship, uint64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Friendship{}).
		Where("receiver_id=? AND status=?", userID, model.FriendPending)
	return pageFriendships(q, cursor, limit)
}

func pageFriendships(q *gorm.DB, cursor uint64, limit int) ([]model.Friendship, uint64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.Friendship
	if err := q.Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	var next uint64
	if len(rows) > limit {
		next = rows[limit-1].ID
		rows = rows[:limit]
	}
	return rows, next, nil
}
