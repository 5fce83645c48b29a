package model

import "time"

// Memory 音乐回忆，friends 墙的父实体
type Memory struct {
	ID           uint64 `gorm:"primaryKey"`
	UserID       uint64 `gorm:"not null;index"`
	Title        string `gorm:"size:200;not null"`
	Caption      string `gorm:"type:text"`
	ArtistName   string `gorm:"size:128;index"`
	Location     string `gorm:"size:128"`
	LikeCount    int64  `gorm:"not null;default:0"`
	CommentCount int64  `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Memory) TableName() string { return "memories" }

type MemoryMedia struct {
	ID        uint64    `gorm:"primaryKey"`
	MemoryID  uint64    `gorm:"not null;index"`
	UserID    uint64    `gorm:"not null;index:idx_mmedia_user_time,priority:1"`
	URL       string    `gorm:"size:512;not null"`
	MediaType string    `gorm:"size:16;not null;default:'image'"`
	CreatedAt time.Time `gorm:"index:idx_mmedia_user_time,priority:2,sort:desc;index:idx_mmedia_time,sort:desc"`
}

func (MemoryMedia) TableName() string { return "memory_media" }
