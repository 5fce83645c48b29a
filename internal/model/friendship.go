package model

import "time"

const (
	FriendPending  = "pending"
	FriendAccepted = "accepted"
)

// Friendship 一对用户之间至多一行，方向由 RequesterID 决定
type Friendship struct {
	ID          uint64 `gorm:"primaryKey"`
	RequesterID uint64 `gorm:"not null;uniqueIndex:uk_friend_pair;index:idx_requester_status,priority:1"`
	ReceiverID  uint64 `gorm:"not null;uniqueIndex:uk_friend_pair;index:idx_receiver_status,priority:1"`
	Status      string `gorm:"size:16;not null;index:idx_requester_status,priority:2;index:idx_receiver_status,priority:2"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
