package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Walcord/internal/model"
)

type FollowRepository struct {
	DB *gorm.DB
}

type FollowCountReconcilerRepo struct {
	DB *gorm.DB
}

// Pair 对账用的计数快照
type Pair struct {
	ID             uint64
	FollowingCount int64
	FollowerCount  int64
}

// Follow 设置关系为关注（幂等）。状态从未关注切换为已关注时 changed=true。
func (r *FollowRepository) Follow(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rel model.Follow
		// select for update 避免竞争
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("follower_id=? AND followee_id=?", followerID, followeeID).
			First(&rel).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rel = model.Follow{FollowerID: followerID, FolloweeID: followeeID, Status: 1}
			if err := tx.Create(&rel).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case rel.Status == 1:
			// 重复请求
			return nil
		default:
			if err := tx.Model(&model.Follow{}).
				Where("id=? AND status=0", rel.ID).
				Update("status", 1).Error; err != nil {
				return err
			}
		}
		changed = true
		if err := adjustFollowCounts(tx, followerID, followeeID, +1); err != nil {
			return err
		}
		return insertOutbox(tx, model.EventFollow, followerID, followeeID)
	})
	return changed, err
}

// Unfollow 取消关注（幂等）
func (r *FollowRepository) Unfollow(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rel model.Follow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("follower_id=? AND followee_id=?", followerID, followeeID).
			First(&rel).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if rel.Status == 0 {
			return nil
		}
		if err := tx.Model(&model.Follow{}).
			Where("id=? AND status=1", rel.ID).
			Update("status", 0).Error; err != nil {
			return err
		}
		changed = true
		if err := adjustFollowCounts(tx, followerID, followeeID, -1); err != nil {
			return err
		}
		return insertOutbox(tx, model.EventUnfollow, followerID, followeeID)
	})
	return changed, err
}

func (r *FollowRepository) IsFollowing(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).
		Model(&model.Follow{}).
		Where("follower_id=? AND followee_id=? AND status=1", followerID, followeeID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListFollowings 我关注的人，id 游标倒序
func (r *FollowRepository) ListFollowings(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	return r.list(ctx, "follower_id=? AND status=1", userID, cursor, limit)
}

// ListFollowers 我的粉丝
func (r *FollowRepository) ListFollowers(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	return r.list(ctx, "followee_id=? AND status=1", userID, cursor, limit)
}

func (r *FollowRepository) list(ctx context.Context, cond string, userID, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := r.DB.WithContext(ctx).Model(&model.Follow{}).Where(cond, userID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.Follow
	// limit+1 用来判断是否还有下一页
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

// 关注数与粉丝数随关系变化调整，不会减到负数
func adjustFollowCounts(tx *gorm.DB, followerID, followeeID uint64, delta int64) error {
	if err := tx.Model(&model.User{}).
		Where("id=?", followerID).
		UpdateColumn("following_count", gorm.Expr("GREATEST(0, following_count + ?)", delta)).Error; err != nil {
		return err
	}
	return tx.Model(&model.User{}).
		Where("id=?", followeeID).
		UpdateColumn("follower_count", gorm.Expr("GREATEST(0, follower_count + ?)", delta)).Error
}

// ReconcileList 按 id 升序批量取用户计数
func (r *FollowCountReconcilerRepo) ReconcileList(ctx context.Context, batchSize int, lastID uint64) ([]Pair, uint64, error) {
	var list []Pair
	if err := r.DB.WithContext(ctx).Model(&model.User{}).
		Select("id", "following_count", "follower_count").
		Where("id > ?", lastID).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, lastID, err
	}
	if len(list) == 0 {
		return nil, lastID, nil
	}
	return list, list[len(list)-1].ID, nil
}

// RealCounts 从关系表实时统计关注数和粉丝数
func (r *FollowCountReconcilerRepo) RealCounts(ctx context.Context, userID uint64) (following, followers int64, err error) {
	if err = r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id=? AND status=1", userID).
		Count(&following).Error; err != nil {
		return 0, 0, err
	}
	if err = r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where("followee_id=? AND status=1", userID).
		Count(&followers).Error; err != nil {
		return 0, 0, err
	}
	return following, followers, nil
}

// Fix 覆盖写入修正后的计数
func (r *FollowCountReconcilerRepo) Fix(ctx context.Context, userID uint64, following, followers int64) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id=?", userID).
		UpdateColumns(map[string]any{"following_count": following, "follower_count": followers}).Error
}
