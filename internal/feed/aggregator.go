package feed

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"Walcord/internal/logger"
)

// PageResult 一页的读取结果
type PageResult struct {
	Rows     []Row
	Authors  AuthorSet
	Fallback bool
}

// Aggregator 把一个 Surface 与可见性解析、视图快路径、原始媒体慢路径绑在一起
type Aggregator struct {
	surface  Surface
	resolver *Resolver
	primary  *PrimaryAdapter
	rebuild  *Reconstructor
	resolve  func(string) string
}

func NewAggregator(s Surface, graph Graph, view ViewReader, media MediaReader) *Aggregator {
	return &Aggregator{
		surface:  s,
		resolver: NewResolver(graph),
		primary:  NewPrimaryAdapter(view),
		rebuild:  NewReconstructor(media, s.Kind, s.Window, s.MediaCap),
	}
}

// WithURLResolver 媒体存储的是对象 key 时用来转换成可访问的 URL
func (a *Aggregator) WithURLResolver(fn func(string) string) *Aggregator {
	a.resolve = fn
	return a
}

func (a *Aggregator) Surface() Surface { return a.surface }

func (a *Aggregator) Resolve(ctx context.Context, viewerID uint64, scope Scope) AuthorSet {
	return a.resolver.ResolveVisibleAuthors(ctx, viewerID, scope)
}

// FetchPage 先读视图，视图这一页没有数据时从原始媒体重建后切出同一个窗口
func (a *Aggregator) FetchPage(ctx context.Context, authors AuthorSet, scope Scope, filter Filter, page int) PageResult {
	start := time.Now()
	defer func() { pageSeconds.WithLabelValues(a.surface.Name).Observe(time.Since(start).Seconds()) }()

	if authors.Empty() {
		fetchTotal.WithLabelValues(a.surface.Name, pathEmpty).Inc()
		return PageResult{Authors: authors}
	}

	size := a.surface.PageSize
	rows := a.primary.FetchPage(ctx, authors, scope, page, size, filter)
	if len(rows) > 0 {
		fetchTotal.WithLabelValues(a.surface.Name, pathPrimary).Inc()
		return PageResult{Rows: a.resolveURLs(a.capMedia(rows)), Authors: authors}
	}

	all := a.rebuild.Rebuild(ctx, authors, scope, filter)
	fetchTotal.WithLabelValues(a.surface.Name, pathFallback).Inc()
	logger.For(ctx).WithFields(logrus.Fields{
		"surface": a.surface.Name,
		"page":    page,
		"rebuilt": len(all),
	}).Debug("feed served from raw media")

	from := page * size
	if from >= len(all) {
		return PageResult{Authors: authors, Fallback: true}
	}
	to := from + size
	if to > len(all) {
		to = len(all)
	}
	return PageResult{Rows: a.resolveURLs(all[from:to]), Authors: authors, Fallback: true}
}

// Page 无状态读取：解析可见作者后读取一页
func (a *Aggregator) Page(ctx context.Context, viewerID uint64, scope Scope, filter Filter, page int) PageResult {
	return a.FetchPage(ctx, a.Resolve(ctx, viewerID, scope), scope, filter, page)
}

// 视图返回的媒体数也按 surface 的上限截断
func (a *Aggregator) capMedia(rows []Row) []Row {
	limit := a.surface.MediaCap
	if limit <= 0 {
		return rows
	}
	for i := range rows {
		if len(rows[i].MediaURLs) > limit {
			rows[i].MediaURLs = rows[i].MediaURLs[:limit]
		}
	}
	return rows
}

func (a *Aggregator) resolveURLs(rows []Row) []Row {
	if a.resolve == nil {
		return rows
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		urls := make([]string, len(r.MediaURLs))
		for j, u := range r.MediaURLs {
			urls[j] = a.resolve(u)
		}
		r.MediaURLs = urls
		out[i] = r
	}
	return out
}
