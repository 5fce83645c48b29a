package feed

import (
	"context"

	"Walcord/internal/logger"
)

// MediaReader 原始媒体与父实体读接口
type MediaReader interface {
	// RecentMedia 最近 limit 条媒体，按创建时间倒序；authors 受限时按父实体所有者过滤，
	// 与视图的 author_id 是同一身份
	RecentMedia(ctx context.Context, authors AuthorSet, limit int) ([]MediaItem, error)
	// ParentsByIDs 批量读取父实体元数据，缺失的 id 不出现在结果中
	ParentsByIDs(ctx context.Context, ids []uint64) (map[uint64]Meta, error)
}

type Reconstructor struct {
	media    MediaReader
	kind     Kind
	window   int
	mediaCap int
}

func NewReconstructor(m MediaReader, kind Kind, window, mediaCap int) *Reconstructor {
	return &Reconstructor{media: m, kind: kind, window: window, mediaCap: mediaCap}
}

type mediaGroup struct {
	row     Row
	firstAt int64
}

// Rebuild 从原始媒体重建完整的 feed 列表，由调用方切出分页窗口。
// 每次调用都会重新读取整个窗口。
func (r *Reconstructor) Rebuild(ctx context.Context, authors AuthorSet, scope Scope, filter Filter) []Row {
	if authors.Empty() {
		return nil
	}
	log := logger.For(ctx)

	items, err := r.media.RecentMedia(ctx, authors, r.window)
	if err != nil {
		queryErrors.WithLabelValues("media").Inc()
		log.WithError(err).Warn("fallback media query failed")
		return nil
	}
	if len(items) == 0 {
		return nil
	}

	// 按遇到的顺序分组（最新媒体在前）
	groups := make(map[uint64]*mediaGroup)
	order := make([]uint64, 0)
	for _, it := range items {
		if it.ParentID == 0 {
			continue
		}
		g, ok := groups[it.ParentID]
		if !ok {
			g = &mediaGroup{
				row: Row{
					Kind:            r.kind,
					ParentID:        it.ParentID,
					AuthorID:        it.OwnerID,
					FirstUploaderID: it.UploaderID,
					CreatedAt:       it.CreatedAt,
				},
				firstAt: it.CreatedAt.UnixNano(),
			}
			groups[it.ParentID] = g
			order = append(order, it.ParentID)
		}
		if it.CreatedAt.After(g.row.CreatedAt) {
			g.row.CreatedAt = it.CreatedAt
		}
		if ts := it.CreatedAt.UnixNano(); ts <= g.firstAt {
			g.firstAt = ts
			g.row.FirstUploaderID = it.UploaderID
		}
		if it.URL != "" && (r.mediaCap <= 0 || len(g.row.MediaURLs) < r.mediaCap) {
			g.row.MediaURLs = append(g.row.MediaURLs, it.URL)
		}
	}

	metas, err := r.media.ParentsByIDs(ctx, order)
	if err != nil {
		// 元数据失败不丢弃用户上传的内容
		queryErrors.WithLabelValues("parents").Inc()
		log.WithError(err).Warn("fallback parent lookup failed")
		metas = nil
	}

	rows := make([]Row, 0, len(order))
	for _, id := range order {
		row := groups[id].row
		if m, ok := metas[id]; ok {
			meta := m
			row.Meta = &meta
			row.AuthorID = m.OwnerID
			row.LikeCount = m.LikeCount
			row.CommentCount = m.CommentCount
		} else if row.AuthorID == 0 {
			row.AuthorID = row.FirstUploaderID
		}
		// 行的作者是父实体所有者，上传者不在可见集合里不影响可见性
		if !authors.Contains(row.AuthorID) || !filter.Matches(row.Meta) {
			continue
		}
		rows = append(rows, row)
	}

	SortRows(rows, OrderFor(scope))
	return rows
}
