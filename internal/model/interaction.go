package model

import "time"

// Like 用户对 concert/memory 的点赞，(user, kind, entity) 唯一
type Like struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	UserID     uint64 `gorm:"not null;uniqueIndex:uk_like"`
	EntityKind string `gorm:"size:16;not null;uniqueIndex:uk_like;index:idx_like_entity,priority:1"`
	EntityID   uint64 `gorm:"not null;uniqueIndex:uk_like;index:idx_like_entity,priority:2"`
	CreatedAt  time.Time
}

type Comment struct {
	ID         uint64 `gorm:"primaryKey"`
	UserID     uint64 `gorm:"not null;index"`
	EntityKind string `gorm:"size:16;not null;index:idx_comment_entity,priority:1"`
	EntityID   uint64 `gorm:"not null;index:idx_comment_entity,priority:2"`
	Body       string `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
