package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	t0           = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	errStoreDown = errors.New("store down")
)

func at(minutes int) time.Time { return t0.Add(time.Duration(minutes) * time.Minute) }

type fakeGraph struct {
	following map[uint64][]uint64
	outgoing  map[uint64][]uint64
	incoming  map[uint64][]uint64
	err       error
}

func (g *fakeGraph) FollowingIDs(_ context.Context, userID uint64) ([]uint64, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.following[userID], nil
}

func (g *fakeGraph) AcceptedFriendIDs(_ context.Context, userID uint64, dir Direction) ([]uint64, error) {
	if g.err != nil {
		return nil, g.err
	}
	if dir == Outgoing {
		return g.outgoing[userID], nil
	}
	return g.incoming[userID], nil
}

// fakeView 按 ViewQuery 在内存行上做过滤、排序和分页
type fakeView struct {
	mu    sync.Mutex
	rows  []Row
	err   error
	calls atomic.Int32
	hook  func(q ViewQuery)
}

func (v *fakeView) ReadView(_ context.Context, q ViewQuery) ([]Row, error) {
	v.calls.Add(1)
	if v.hook != nil {
		v.hook(q)
	}
	if v.err != nil {
		return nil, v.err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Row, 0)
	for _, r := range v.rows {
		if !q.Authors.Contains(r.AuthorID) || !q.Filter.Matches(r.Meta) {
			continue
		}
		out = append(out, r)
	}
	SortRows(out, q.Order)
	if q.Offset >= len(out) {
		return nil, nil
	}
	end := q.Offset + q.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[q.Offset:end], nil
}

// viewFunc 让单个测试完全控制视图返回
type viewFunc func(q ViewQuery) ([]Row, error)

func (f viewFunc) ReadView(_ context.Context, q ViewQuery) ([]Row, error) { return f(q) }

type fakeMedia struct {
	items     []MediaItem
	metas     map[uint64]Meta
	err       error
	parentErr error
	calls     atomic.Int32
}

func (m *fakeMedia) RecentMedia(_ context.Context, authors AuthorSet, limit int) ([]MediaItem, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]MediaItem, 0)
	for _, it := range m.items {
		if authors.Contains(it.OwnerID) {
			out = append(out, it)
		}
	}
	// 调用方约定按创建时间倒序
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.After(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *fakeMedia) ParentsByIDs(_ context.Context, ids []uint64) (map[uint64]Meta, error) {
	if m.parentErr != nil {
		return nil, m.parentErr
	}
	out := make(map[uint64]Meta, len(ids))
	for _, id := range ids {
		if meta, ok := m.metas[id]; ok {
			out[id] = meta
		}
	}
	return out, nil
}

func viewRow(parent, author uint64, minute int, likes int64, urls ...string) Row {
	return Row{
		Kind:      KindConcert,
		ParentID:  parent,
		AuthorID:  author,
		MediaURLs: urls,
		LikeCount: likes,
		CreatedAt: at(minute),
		Meta:      &Meta{OwnerID: author, LikeCount: likes},
	}
}

func parentIDs(rows []Row) []uint64 {
	out := make([]uint64, len(rows))
	for i, r := range rows {
		out[i] = r.ParentID
	}
	return out
}

func testSurface(pageSize int) Surface {
	return Surface{
		Name:         "test",
		Kind:         KindConcert,
		DefaultScope: ScopeFollowed,
		Scopes:       []Scope{ScopeFollowed, ScopeFriends, ScopeForYou},
		PageSize:     pageSize,
		MediaCap:     3,
		Window:       100,
	}
}
