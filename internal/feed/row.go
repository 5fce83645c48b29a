package feed

import (
	"errors"
	"time"
)

var ErrUnknownKind = errors.New("unknown entity kind")

// Kind 父实体类型
type Kind string

const (
	KindConcert Kind = "concert"
	KindMemory  Kind = "memory"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindConcert, KindMemory:
		return Kind(s), nil
	}
	return "", ErrUnknownKind
}

// Meta 父实体元数据
type Meta struct {
	OwnerID      uint64     `json:"owner_id"`
	Title        string     `json:"title"`
	Artist       string     `json:"artist"`
	Tour         string     `json:"tour"`
	Location     string     `json:"location"`
	EventDate    *time.Time `json:"event_date"`
	LikeCount    int64      `json:"-"`
	CommentCount int64      `json:"-"`
}

// Row 一个父实体在 feed 中的投影，也是分页和去重的单位。
// Meta 为 nil 表示元数据缺失，但媒体仍然展示。
type Row struct {
	Kind            Kind      `json:"kind"`
	ParentID        uint64    `json:"parent_id"`
	AuthorID        uint64    `json:"author_id"`
	FirstUploaderID uint64    `json:"first_uploader_id,omitempty"`
	MediaURLs       []string  `json:"media_urls"`
	LikeCount       int64     `json:"like_count"`
	CommentCount    int64     `json:"comment_count"`
	CreatedAt       time.Time `json:"created_at"`
	Meta            *Meta     `json:"meta"`
}

// MediaItem 原始媒体记录
type MediaItem struct {
	ID         uint64
	ParentID   uint64
	OwnerID    uint64 // 父实体的所有者
	UploaderID uint64
	URL        string
	CreatedAt  time.Time
}

// Filter 精确匹配过滤，例如 explore 的 巡演/艺人 组合。零值不过滤。
type Filter struct {
	Artist string `json:"artist" form:"artist"`
	Tour   string `json:"tour" form:"tour"`
}

func (f Filter) IsZero() bool { return f.Artist == "" && f.Tour == "" }

// Matches 非零过滤条件下，元数据缺失的行不匹配
func (f Filter) Matches(m *Meta) bool {
	if f.IsZero() {
		return true
	}
	if m == nil {
		return false
	}
	if f.Artist != "" && m.Artist != f.Artist {
		return false
	}
	if f.Tour != "" && m.Tour != f.Tour {
		return false
	}
	return true
}
