package model

import (
	"time"

	"gorm.io/datatypes"
)

type Follow struct {
	ID         uint64 `gorm:"primaryKey"`
	FollowerID uint64 `gorm:"not null;index:idx_follower_id;uniqueIndex:uk_follow_pair"`
	FolloweeID uint64 `gorm:"not null;index:idx_followee_id;uniqueIndex:uk_follow_pair"`
	Status     int8   `gorm:"not null;default:1;comment:'1=follow,0=unfollow'"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName sets table name for Follow
func (Follow) TableName() string {
	return "follow"
}

// 社交事件类型
const (
	EventFollow        = "follow"
	EventUnfollow      = "unfollow"
	EventFriendRequest = "friend_request"
	EventFriendAccept  = "friend_accept"
	EventFriendRemove  = "friend_remove"
)

// 出站状态
const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

// SocialOutbox 社交关系事件出站表，与关系变更在同一事务内写入
type SocialOutbox struct {
	ID        uint64         `gorm:"primaryKey"`
	EventType string         `gorm:"size:16;not null"`
	ActorID   uint64         `gorm:"not null"`
	TargetID  uint64         `gorm:"not null"`
	Payload   datatypes.JSON `gorm:"not null"`
	Status    int8           `gorm:"not null;default:0;index;comment:'0=pending,1=sent,2=failed'"`
	Retry     int            `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SocialOutbox) TableName() string { return "social_outbox" }
