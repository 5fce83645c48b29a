package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Walcord/internal/feed"
	"Walcord/internal/model"
)

var (
	ErrEntityNotFound  = errors.New("entity not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrNotCommentOwner = errors.New("comment belongs to another user")
)

type InteractionRepository struct {
	DB *gorm.DB
}

func parentModel(kind feed.Kind) any {
	if kind == feed.KindMemory {
		return &model.Memory{}
	}
	return &model.Concert{}
}

func mustExist(tx *gorm.DB, kind feed.Kind, id uint64) error {
	var n int64
	if err := tx.Model(parentModel(kind)).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrEntityNotFound
	}
	return nil
}

func bumpCounter(tx *gorm.DB, kind feed.Kind, id uint64, column string, delta int64) error {
	return tx.Model(parentModel(kind)).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr("GREATEST(0, "+column+" + ?)", delta)).Error
}

// Like 唯一(user_id, entity_kind, entity_id) 幂等插入，新点赞时 like_count+1
func (r *InteractionRepository) Like(ctx context.Context, userID uint64, kind feed.Kind, id uint64) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, kind, id); err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.Like{UserID: userID, EntityKind: string(kind), EntityID: id})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		return bumpCounter(tx, kind, id, "like_count", +1)
	})
	return changed, err
}

func (r *InteractionRepository) Unlike(ctx context.Context, userID uint64, kind feed.Kind, id uint64) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND entity_kind = ? AND entity_id = ?", userID, string(kind), id).
			Delete(&model.Like{})
		if res.Error != nil {
			return res.Error
		}
		// 未删除任何行 -> 幂等
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		return bumpCounter(tx, kind, id, "like_count", -1)
	})
	return changed, err
}

func (r *InteractionRepository) IsLiked(ctx context.Context, userID uint64, kind feed.Kind, id uint64) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Like{}).
		Where("user_id = ? AND entity_kind = ? AND entity_id = ?", userID, string(kind), id).
		Count(&n).Error
	return n > 0, err
}

func (r *InteractionRepository) AddComment(ctx context.Context, userID uint64, kind feed.Kind, id uint64, body string) (*model.Comment, error) {
	c := &model.Comment{UserID: userID, EntityKind: string(kind), EntityID: id, Body: body}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, kind, id); err != nil {
			return err
		}
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return bumpCounter(tx, kind, id, "comment_count", +1)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteComment 只能删除自己的评论，返回评论所属的实体
func (r *InteractionRepository) DeleteComment(ctx context.Context, userID, commentID uint64) (feed.Kind, uint64, error) {
	var c model.Comment
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, commentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCommentNotFound
			}
			return err
		}
		if c.UserID != userID {
			return ErrNotCommentOwner
		}
		if err := tx.Delete(&c).Error; err != nil {
			return err
		}
		return bumpCounter(tx, feed.Kind(c.EntityKind), c.EntityID, "comment_count", -1)
	})
	if err != nil {
		return "", 0, err
	}
	return feed.Kind(c.EntityKind), c.EntityID, nil
}

// ListComments 评论按 id 倒序，游标分页
func (r *InteractionRepository) ListComments(ctx context.Context, kind feed.Kind, id, cursor uint64, limit int) ([]model.Comment, uint64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := r.DB.WithContext(ctx).Model(&model.Comment{}).
		Where("entity_kind = ? AND entity_id = ?", string(kind), id)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.Comment
	if err := q.Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	var next uint64
	if len(rows) > limit {
		next = rows[limit-1].ID
		rows = rows[:limit]
	}
	return rows, next, nil
}

// Counts 父实体上的点赞数与评论数
func (r *InteractionRepository) Counts(ctx context.Context, kind feed.Kind, id uint64) (likes, comments int64, err error) {
	var row struct {
		LikeCount    int64
		CommentCount int64
	}
	err = r.DB.WithContext(ctx).Model(parentModel(kind)).
		Select("like_count", "comment_count").
		Where("id = ?", id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, ErrEntityNotFound
	}
	return row.LikeCount, row.CommentCount, err
}
