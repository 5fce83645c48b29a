package model

import (
	"time"

	"gorm.io/datatypes"
)

// FeedViewRow 预聚合视图 concert_feed / memory_feed 的一行。视图由数据库维护，不参与迁移。
type FeedViewRow struct {
	ParentID        uint64
	AuthorID        uint64
	FirstUploaderID uint64
	Title           string
	ArtistName      string
	TourName        string
	Location        string
	EventDate       *time.Time
	Media           datatypes.JSON `gorm:"column:media"` // [{url, at, id}]，顺序不保证
	LikeCount       int64
	CommentCount    int64
	CreatedAt       time.Time
}
