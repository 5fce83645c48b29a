package model

import "time"

// Concert 演出记录，是 concert 类 feed 的父实体
type Concert struct {
	ID           uint64 `gorm:"primaryKey"`
	UserID       uint64 `gorm:"not null;index:idx_concert_user"`
	ArtistName   string `gorm:"size:128;not null;index:idx_concert_artist_tour,priority:1"`
	TourName     string `gorm:"size:128;index:idx_concert_artist_tour,priority:2"`
	Venue        string `gorm:"size:128"`
	City         string `gorm:"size:64"`
	EventDate    *time.Time
	LikeCount    int64 `gorm:"not null;default:0"`
	CommentCount int64 `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ConcertMedia struct {
	ID        uint64    `gorm:"primaryKey"`
	ConcertID uint64    `gorm:"not null;index"`
	UserID    uint64    `gorm:"not null;index:idx_cmedia_user_time,priority:1"`
	URL       string    `gorm:"size:512;not null"`
	MediaType string    `gorm:"size:16;not null;default:'image'"`
	CreatedAt time.Time `gorm:"index:idx_cmedia_user_time,priority:2,sort:desc;index:idx_cmedia_time,sort:desc"`
}

func (ConcertMedia) TableName() string { return "concert_media" }
