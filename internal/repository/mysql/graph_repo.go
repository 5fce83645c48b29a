package mysql

import (
	"context"

	"gorm.io/gorm"

	"Walcord/internal/feed"
	"Walcord/internal/model"
)

// GraphRepository feed 可见性解析用到的社交关系读取
type GraphRepository struct {
	DB *gorm.DB
}

func (r *GraphRepository) FollowingIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id=? AND status=1", userID).
		Pluck("followee_id", &ids).Error
	return ids, err
}

func (r *GraphRepository) AcceptedFriendIDs(ctx context.Context, userID uint64, dir feed.Direction) ([]uint64, error) {
	self, other := "requester_id", "receiver_id"
	if dir == feed.Incoming {
		self, other = other, self
	}
	var ids []uint64
	err := r.DB.WithContext(ctx).Model(&model.Friendship{}).
		Where(self+"=? AND status=?", userID, model.FriendAccepted).
		Pluck(other, &ids).Error
	return ids, err
}
