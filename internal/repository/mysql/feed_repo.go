package mysql

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"Walcord/internal/feed"
	"Walcord/internal/model"
)

// Collection 一类父实体在库里的位置：预聚合视图、父实体表、媒体表以及媒体指向父实体的列
type Collection struct {
	Kind        feed.Kind
	View        string
	ParentTable string
	MediaTable  string
	ParentKey   string
}

var (
	Concerts = Collection{Kind: feed.KindConcert, View: "concert_feed", ParentTable: "concerts", MediaTable: "concert_media", ParentKey: "concert_id"}
	Memories = Collection{Kind: feed.KindMemory, View: "memory_feed", ParentTable: "memories", MediaTable: "memory_media", ParentKey: "memory_id"}
)

func CollectionFor(kind feed.Kind) Collection {
	if kind == feed.KindMemory {
		return Memories
	}
	return Concerts
}

// FeedRepository 实现 feed.ViewReader 和 feed.MediaReader
type FeedRepository struct {
	DB   *gorm.DB
	Coll Collection
}

func NewFeedRepository(db *gorm.DB, kind feed.Kind) *FeedRepository {
	return &FeedRepository{DB: db, Coll: CollectionFor(kind)}
}

func (r *FeedRepository) ReadView(ctx context.Context, q feed.ViewQuery) ([]feed.Row, error) {
	tx := r.DB.WithContext(ctx).Table(r.Coll.View)
	if !q.Authors.Unrestricted() {
		tx = tx.Where("author_id IN ?", q.Authors.IDs())
	}
	if q.Filter.Artist != "" {
		tx = tx.Where("artist_name = ?", q.Filter.Artist)
	}
	if q.Filter.Tour != "" {
		tx = tx.Where("tour_name = ?", q.Filter.Tour)
	}
	if q.Order == feed.OrderPopular {
		tx = tx.Order("like_count DESC")
	}
	var list []model.FeedViewRow
	if err := tx.Order("created_at DESC").Order("parent_id DESC").
		Offset(q.Offset).Limit(q.Limit).
		Find(&list).Error; err != nil {
		return nil, err
	}

	rows := make([]feed.Row, 0, len(list))
	for _, v := range list {
		rows = append(rows, r.viewRow(v))
	}
	return rows, nil
}

// viewMedia 视图里聚合的单个媒体，JSON_ARRAYAGG 不保证元素顺序，读出后按时间重排
type viewMedia struct {
	URL string  `json:"url"`
	At  float64 `json:"at"`
	ID  uint64  `json:"id"`
}

// mediaURLs 按上传时间倒序返回，与原始媒体重建的顺序一致
func mediaURLs(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []viewMedia
	// 坏的 JSON 当作没有媒体
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].At != list[j].At {
			return list[i].At > list[j].At
		}
		return list[i].ID > list[j].ID
	})
	urls := make([]string, 0, len(list))
	for _, m := range list {
		if m.URL != "" {
			urls = append(urls, m.URL)
		}
	}
	return urls
}

func (r *FeedRepository) viewRow(v model.FeedViewRow) feed.Row {
	urls := mediaURLs(v.Media)
	return feed.Row{
		Kind:            r.Coll.Kind,
		ParentID:        v.ParentID,
		AuthorID:        v.AuthorID,
		FirstUploaderID: v.FirstUploaderID,
		MediaURLs:       urls,
		LikeCount:       v.LikeCount,
		CommentCount:    v.CommentCount,
		CreatedAt:       v.CreatedAt,
		Meta: &feed.Meta{
			OwnerID:      v.AuthorID,
			Title:        v.Title,
			Artist:       v.ArtistName,
			Tour:         v.TourName,
			Location:     v.Location,
			EventDate:    v.EventDate,
			LikeCount:    v.LikeCount,
			CommentCount: v.CommentCount,
		},
	}
}

type mediaRecord struct {
	ID        uint64
	ParentID  uint64
	OwnerID   uint64
	UserID    uint64
	URL       string
	CreatedAt time.Time
}

// RecentMedia 连接父实体表，可见性按父实体所有者判断，和视图的 author_id 相同
func (r *FeedRepository) RecentMedia(ctx context.Context, authors feed.AuthorSet, limit int) ([]feed.MediaItem, error) {
	c := r.Coll
	tx := r.DB.WithContext(ctx).Table(c.MediaTable + " AS m").
		Select("m.id, m." + c.ParentKey + " AS parent_id, p.user_id AS owner_id, m.user_id, m.url, m.created_at").
		Joins("JOIN " + c.ParentTable + " AS p ON p.id = m." + c.ParentKey)
	if !authors.Unrestricted() {
		tx = tx.Where("p.user_id IN ?", authors.IDs())
	}
	var recs []mediaRecord
	if err := tx.Order("m.created_at DESC").Order("m.id DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	items := make([]feed.MediaItem, len(recs))
	for i, m := range recs {
		items[i] = feed.MediaItem{
			ID:         m.ID,
			ParentID:   m.ParentID,
			OwnerID:    m.OwnerID,
			UploaderID: m.UserID,
			URL:        m.URL,
			CreatedAt:  m.CreatedAt,
		}
	}
	return items, nil
}

func (r *FeedRepository) ParentsByIDs(ctx context.Context, ids []uint64) (map[uint64]feed.Meta, error) {
	out := make(map[uint64]feed.Meta, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	db := r.DB.WithContext(ctx)

	if r.Coll.Kind == feed.KindMemory {
		var list []model.Memory
		if err := db.Where("id IN ?", ids).Find(&list).Error; err != nil {
			return nil, err
		}
		for _, m := range list {
			out[m.ID] = feed.Meta{
				OwnerID:      m.UserID,
				Title:        m.Title,
				Artist:       m.ArtistName,
				Location:     m.Location,
				LikeCount:    m.LikeCount,
				CommentCount: m.CommentCount,
			}
		}
		return out, nil
	}

	var list []model.Concert
	if err := db.Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for _, c := range list {
		out[c.ID] = feed.Meta{
			OwnerID:      c.UserID,
			Title:        joinNonEmpty(" - ", c.ArtistName, c.TourName),
			Artist:       c.ArtistName,
			Tour:         c.TourName,
			Location:     joinNonEmpty(", ", c.Venue, c.City),
			EventDate:    c.EventDate,
			LikeCount:    c.LikeCount,
			CommentCount: c.CommentCount,
		}
	}
	return out, nil
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
