package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"Walcord/internal/feed"
	"Walcord/internal/model"
)

var ErrNotOwner = errors.New("only the owner can change this entity")

// ContentRepository concert、memory 及其媒体的写入
type ContentRepository struct {
	DB *gorm.DB
}

// CreateConcert 父实体和第一批媒体在同一事务内写入
func (r *ContentRepository) CreateConcert(ctx context.Context, c *model.Concert, media []model.ConcertMedia) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		if len(media) == 0 {
			return nil
		}
		for i := range media {
			media[i].ConcertID = c.ID
			media[i].UserID = c.UserID
		}
		return tx.Create(&media).Error
	})
}

// AddConcertMedia 任何用户都可以给同一场演出补充媒体
func (r *ContentRepository) AddConcertMedia(ctx context.Context, concertID, userID uint64, media []model.ConcertMedia) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, feed.KindConcert, concertID); err != nil {
			return err
		}
		for i := range media {
			media[i].ConcertID = concertID
			media[i].UserID = userID
		}
		return tx.Create(&media).Error
	})
}

func (r *ContentRepository) CreateMemory(ctx context.Context, m *model.Memory, media []model.MemoryMedia) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		if len(media) == 0 {
			return nil
		}
		for i := range media {
			media[i].MemoryID = m.ID
			media[i].UserID = m.UserID
		}
		return tx.Create(&media).Error
	})
}

// AddMemoryMedia 回忆是个人内容，只有作者可以追加
func (r *ContentRepository) AddMemoryMedia(ctx context.Context, memoryID, userID uint64, media []model.MemoryMedia) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.Memory
		if err := tx.Select("id", "user_id").First(&m, memoryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEntityNotFound
			}
			return err
		}
		if m.UserID != userID {
			return ErrNotOwner
		}
		for i := range media {
			media[i].MemoryID = memoryID
			media[i].UserID = userID
		}
		return tx.Create(&media).Error
	})
}
