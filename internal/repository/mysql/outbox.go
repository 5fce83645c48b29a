package mysql

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"Walcord/internal/model"
)

type OutboxRepository struct {
	DB *gorm.DB
}

// 插入outbox事件，必须在关系变更的同一事务内调用
func insertOutbox(tx *gorm.DB, event string, actor, target uint64) error {
	payload, _ := json.Marshal(map[string]any{
		"event":      event,
		"event_time": time.Now().UTC().Format(time.RFC3339Nano),
		"actor":      actor,
		"target":     target,
	})
	return tx.Create(&model.SocialOutbox{
		EventType: event,
		ActorID:   actor,
		TargetID:  target,
		Payload:   datatypes.JSON(payload),
		Status:    model.OutboxPending,
	}).Error
}

// List 待发送的 outbox 记录，按 id 升序
func (r *OutboxRepository) List(ctx context.Context, batchSize int) ([]model.SocialOutbox, error) {
	var list []model.SocialOutbox
	if err := r.DB.WithContext(ctx).
		Where("status=?", model.OutboxPending).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// MarkFailed 发送失败，retry+1
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.SocialOutbox{}).Where("id=?", id).
		Updates(map[string]any{"status": model.OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.SocialOutbox{}).Where("id=?", id).
		Update("status", model.OutboxSent).Error
}

// Requeue 把重试次数未超限的失败记录放回待发送
func (r *OutboxRepository) Requeue(ctx context.Context, maxRetry int) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.SocialOutbox{}).
		Where("status=? AND retry < ?", model.OutboxFailed, maxRetry).
		Update("status", model.OutboxPending)
	return res.RowsAffected, res.Error
}
