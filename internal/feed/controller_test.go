package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerFallbackScenario(t *testing.T) {
	// 视图始终为空，V(1) 关注 A(2)、B(3)，只能靠原始媒体重建。
	// A 有一个带 3 个媒体的实体，B 有两个各带 1 个媒体的实体，一个早于 A 一个晚于 A。
	ctx := context.Background()
	graph := &fakeGraph{following: map[uint64][]uint64{1: {2, 3}}}
	m := &fakeMedia{
		items: []MediaItem{
			media(1, 100, 2, 10),
			media(2, 100, 2, 11),
			media(3, 100, 2, 12),
			media(4, 101, 3, 5),
			media(5, 102, 3, 20),
			media(6, 103, 4, 30),
		},
		metas: map[uint64]Meta{100: {OwnerID: 2}, 101: {OwnerID: 3}, 102: {OwnerID: 3}, 103: {OwnerID: 4}},
	}
	agg := NewAggregator(DefaultSurfaces()["wall"], graph, &fakeView{}, m)
	ctrl := NewController(agg, 1, ScopeFollowed, Filter{})

	ctrl.Reset(ctx, 1, ScopeFollowed, Filter{})
	snap := ctrl.Snapshot()

	require.Equal(t, []uint64{102, 100, 101}, parentIDs(snap.Rows))
	assert.True(t, snap.Done)
	assert.False(t, snap.Loading)
	assert.Equal(t, 1, snap.Page)

	a := snap.Rows[1]
	assert.Equal(t, []string{"media/3.jpg", "media/2.jpg", "media/1.jpg"}, a.MediaURLs)
	assert.Equal(t, at(12), a.CreatedAt)
	assert.Equal(t, uint64(2), a.FirstUploaderID)
	assert.Equal(t, uint64(3), snap.Rows[0].AuthorID)
	assert.False(t, ctrl.LoadMore(ctx))
}

func TestControllerPaging(t *testing.T) {
	ctx := context.Background()
	view := &fakeView{}
	for i := 1; i <= 5; i++ {
		view.rows = append(view.rows, viewRow(uint64(i), 2, i, 0))
	}
	agg := NewAggregator(testSurface(2), &fakeGraph{}, view, &fakeMedia{})
	ctrl := NewController(agg, 0, ScopeForYou, Filter{})

	ctrl.Reset(ctx, 0, ScopeForYou, Filter{})
	assert.Equal(t, []uint64{5, 4}, parentIDs(ctrl.Snapshot().Rows))

	require.True(t, ctrl.LoadMore(ctx))
	require.True(t, ctrl.LoadMore(ctx))
	snap := ctrl.Snapshot()
	assert.Equal(t, []uint64{5, 4, 3, 2, 1}, parentIDs(snap.Rows))
	assert.Equal(t, 3, snap.Page)
	assert.True(t, snap.Done, "a short page ends the feed")

	calls := view.calls.Load()
	for i := 0; i < 5; i++ {
		assert.False(t, ctrl.LoadMore(ctx))
	}
	assert.Equal(t, calls, view.calls.Load(), "done feeds issue no fetches")
}

func TestControllerDedup(t *testing.T) {
	ctx := context.Background()
	// 每页都返回重叠的父实体
	pages := map[int][]Row{
		0: {viewRow(1, 2, 9, 0), viewRow(2, 2, 8, 0)},
		2: {viewRow(2, 2, 8, 0), viewRow(3, 2, 7, 0)},
		4: {viewRow(3, 2, 7, 0), viewRow(2, 2, 8, 0)},
	}
	view := viewFunc(func(q ViewQuery) ([]Row, error) { return pages[q.Offset], nil })
	agg := NewAggregator(testSurface(2), &fakeGraph{}, view, &fakeMedia{})
	ctrl := NewController(agg, 0, ScopeForYou, Filter{})

	ctrl.Reset(ctx, 0, ScopeForYou, Filter{})
	ctrl.LoadMore(ctx)
	snap := ctrl.Snapshot()
	assert.Equal(t, []uint64{1, 2, 3}, parentIDs(snap.Rows))
	assert.False(t, snap.Done)

	// 第三页全部重复，没有新行即结束
	ctrl.LoadMore(ctx)
	snap = ctrl.Snapshot()
	assert.Equal(t, []uint64{1, 2, 3}, parentIDs(snap.Rows))
	assert.True(t, snap.Done)
}

func TestControllerEmptyVisibleSet(t *testing.T) {
	ctx := context.Background()
	view := &fakeView{rows: []Row{viewRow(1, 2, 1, 0)}}
	m := &fakeMedia{items: []MediaItem{media(1, 1, 2, 1)}}
	agg := NewAggregator(testSurface(8), &fakeGraph{}, view, m)
	ctrl := NewController(agg, 0, ScopeFollowed, Filter{})

	ctrl.Reset(ctx, 0, ScopeFollowed, Filter{})
	snap := ctrl.Snapshot()
	assert.Empty(t, snap.Rows)
	assert.True(t, snap.Done)
	assert.Zero(t, view.calls.Load())
	assert.Zero(t, m.calls.Load())
}

func TestControllerDropsStaleResults(t *testing.T) {
	ctx := context.Background()
	graph := &fakeGraph{following: map[uint64][]uint64{}}
	entered := make(chan struct{})
	release := make(chan struct{})
	view := &fakeView{
		rows: []Row{viewRow(10, 1, 1, 0), viewRow(20, 2, 2, 0)},
		hook: func(q ViewQuery) {
			// viewer 1 的请求挂起，模拟慢查询
			if q.Authors.Contains(1) {
				close(entered)
				<-release
			}
		},
	}
	agg := NewAggregator(testSurface(8), graph, view, &fakeMedia{})
	ctrl := NewController(agg, 1, ScopeFollowed, Filter{})

	finished := make(chan struct{})
	go func() {
		ctrl.Reset(ctx, 1, ScopeFollowed, Filter{})
		close(finished)
	}()
	<-entered

	assert.True(t, ctrl.Snapshot().Loading)
	assert.False(t, ctrl.LoadMore(ctx), "no second fetch while one is in flight")

	// 切换用户后旧请求才返回
	ctrl.Reset(ctx, 2, ScopeFollowed, Filter{})
	close(release)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("stale fetch never returned")
	}

	snap := ctrl.Snapshot()
	assert.Equal(t, []uint64{20}, parentIDs(snap.Rows))
	assert.Equal(t, uint64(2), ctrl.Viewer())
	assert.False(t, snap.Loading)
	assert.Equal(t, 1, snap.Page)
}

func TestLoaderMargin(t *testing.T) {
	ctx := context.Background()
	view := &fakeView{}
	for i := 1; i <= 4; i++ {
		view.rows = append(view.rows, viewRow(uint64(i), 2, i, 0))
	}
	agg := NewAggregator(testSurface(2), &fakeGraph{}, view, &fakeMedia{})
	ctrl := NewController(agg, 0, ScopeForYou, Filter{})
	ctrl.Reset(ctx, 0, ScopeForYou, Filter{})
	loader := NewLoader(ctrl, 0)

	assert.Equal(t, DefaultPrefetchMargin, loader.Margin())
	assert.False(t, loader.OnSentinel(ctx, 601))
	assert.Len(t, ctrl.Snapshot().Rows, 2)

	assert.True(t, loader.OnSentinel(ctx, 600))
	assert.Len(t, ctrl.Snapshot().Rows, 4)
}
