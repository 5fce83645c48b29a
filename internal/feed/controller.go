package feed

import (
	"context"
	"sync"
)

// Snapshot 渲染层看到的 feed 状态
type Snapshot struct {
	Surface string `json:"surface"`
	Scope   Scope  `json:"scope"`
	Filter  Filter `json:"filter"`
	Rows    []Row  `json:"rows"`
	Page    int    `json:"page"`
	Loading bool   `json:"loading"`
	Done    bool   `json:"done"`
}

// Controller 一个已挂载 feed 的累计状态：去重、翻页、结束判定和过期结果丢弃
type Controller struct {
	agg *Aggregator

	mu      sync.Mutex
	viewer  uint64
	scope   Scope
	filter  Filter
	authors *AuthorSet // 仅在本次会话内缓存，reset 时失效
	rows    []Row
	seen    map[uint64]struct{}
	page    int
	done    bool

	token    uint64 // 单调递增的拉取令牌
	inflight uint64 // 在途拉取的令牌，0 表示空闲
}

type ticket struct {
	token   uint64
	viewer  uint64
	scope   Scope
	filter  Filter
	page    int
	authors *AuthorSet
}

func NewController(agg *Aggregator, viewerID uint64, scope Scope, filter Filter) *Controller {
	return &Controller{
		agg:    agg,
		viewer: viewerID,
		scope:  scope,
		filter: filter,
		seen:   make(map[uint64]struct{}),
	}
}

// Reset 清空累计状态并立即拉取第一页。viewer、scope、filter 任一变化都走这里。
func (c *Controller) Reset(ctx context.Context, viewerID uint64, scope Scope, filter Filter) {
	c.mu.Lock()
	c.viewer = viewerID
	c.scope = scope
	c.filter = filter
	c.authors = nil
	c.rows = nil
	c.seen = make(map[uint64]struct{})
	c.page = 0
	c.done = false
	t := c.begin()
	c.mu.Unlock()

	c.run(ctx, t)
}

// LoadMore 拉取下一页。已有请求在途或 feed 已结束时不发请求，返回 false。
func (c *Controller) LoadMore(ctx context.Context) bool {
	c.mu.Lock()
	if c.inflight != 0 || c.done {
		c.mu.Unlock()
		return false
	}
	t := c.begin()
	c.mu.Unlock()

	c.run(ctx, t)
	return true
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := make([]Row, len(c.rows))
	copy(rows, c.rows)
	return Snapshot{
		Surface: c.agg.Surface().Name,
		Scope:   c.scope,
		Filter:  c.filter,
		Rows:    rows,
		Page:    c.page,
		Loading: c.inflight != 0,
		Done:    c.done,
	}
}

func (c *Controller) Viewer() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewer
}

// 调用方持有锁
func (c *Controller) begin() ticket {
	c.token++
	c.inflight = c.token
	return ticket{
		token:   c.token,
		viewer:  c.viewer,
		scope:   c.scope,
		filter:  c.filter,
		page:    c.page,
		authors: c.authors,
	}
}

func (c *Controller) run(ctx context.Context, t ticket) {
	// 不随请求取消，过期结果靠令牌丢弃
	ctx = context.WithoutCancel(ctx)

	var authors AuthorSet
	if t.authors != nil {
		authors = *t.authors
	} else {
		authors = c.agg.Resolve(ctx, t.viewer, t.scope)
	}

	var res PageResult
	if !authors.Empty() {
		res = c.agg.FetchPage(ctx, authors, t.scope, t.filter, t.page)
	}
	c.apply(t, authors, res)
}

func (c *Controller) apply(t ticket, authors AuthorSet, res PageResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.token != c.token {
		staleDrops.Inc()
		return
	}
	c.inflight = 0
	if c.authors == nil {
		c.authors = &authors
	}
	if authors.Empty() {
		c.done = true
		return
	}

	added := 0
	for _, r := range res.Rows {
		if _, ok := c.seen[r.ParentID]; ok {
			continue
		}
		c.seen[r.ParentID] = struct{}{}
		c.rows = append(c.rows, r)
		added++
	}
	c.page++
	if added == 0 || len(res.Rows) < c.agg.Surface().PageSize {
		c.done = true
	}
}
