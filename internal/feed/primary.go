package feed

import (
	"context"

	"Walcord/internal/logger"
)

// ViewQuery 对预聚合视图的一次查询
type ViewQuery struct {
	Authors AuthorSet
	Filter  Filter
	Order   Order
	Offset  int
	Limit   int
}

// ViewReader 预聚合 feed 视图。视图可能不存在、为空或被权限拒绝。
type ViewReader interface {
	ReadView(ctx context.Context, q ViewQuery) ([]Row, error)
}

type PrimaryAdapter struct {
	view ViewReader
}

func NewPrimaryAdapter(v ViewReader) *PrimaryAdapter {
	return &PrimaryAdapter{view: v}
}

// FetchPage 第 page 页覆盖 [page*pageSize, page*pageSize+pageSize-1]。
// 查询出错与没有数据都返回空切片。
func (p *PrimaryAdapter) FetchPage(ctx context.Context, authors AuthorSet, scope Scope, page, pageSize int, filter Filter) []Row {
	if authors.Empty() || pageSize <= 0 || page < 0 {
		return nil
	}
	rows, err := p.view.ReadView(ctx, ViewQuery{
		Authors: authors,
		Filter:  filter,
		Order:   OrderFor(scope),
		Offset:  page * pageSize,
		Limit:   pageSize,
	})
	if err != nil {
		queryErrors.WithLabelValues("view").Inc()
		logger.For(ctx).WithError(err).Debug("feed view unavailable")
		return nil
	}
	return rows
}
