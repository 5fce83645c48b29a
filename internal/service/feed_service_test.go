package service

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Walcord/internal/config"
	"Walcord/internal/feed"
)

type memGraph struct {
	following map[uint64][]uint64
	friends   map[uint64][]uint64
}

func (g *memGraph) FollowingIDs(_ context.Context, id uint64) ([]uint64, error) {
	return g.following[id], nil
}

func (g *memGraph) AcceptedFriendIDs(_ context.Context, id uint64, dir feed.Direction) ([]uint64, error) {
	if dir == feed.Outgoing {
		return g.friends[id], nil
	}
	return nil, nil
}

// memStore 视图为空，只有原始媒体，走重建路径
type memStore struct {
	kind  feed.Kind
	media []feed.MediaItem
}

func (s *memStore) ReadView(context.Context, feed.ViewQuery) ([]feed.Row, error) { return nil, nil }

func (s *memStore) RecentMedia(_ context.Context, authors feed.AuthorSet, limit int) ([]feed.MediaItem, error) {
	out := make([]feed.MediaItem, 0)
	for _, m := range s.media {
		if authors.Contains(m.OwnerID) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ParentsByIDs(_ context.Context, ids []uint64) (map[uint64]feed.Meta, error) {
	out := make(map[uint64]feed.Meta)
	for _, m := range s.media {
		out[m.ParentID] = feed.Meta{OwnerID: m.OwnerID, Artist: "Phoenix", Tour: fmt.Sprintf("tour-%d", m.ParentID%2)}
	}
	return out, nil
}

var base = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

// 每个作者 n 个父实体，每个父实体一张图
func seed(authors []uint64, n int) []feed.MediaItem {
	var out []feed.MediaItem
	id := uint64(1)
	for _, a := range authors {
		for i := 0; i < n; i++ {
			out = append(out, feed.MediaItem{
				ID:         id,
				ParentID:   a*100 + uint64(i),
				OwnerID:    a,
				UploaderID: a,
				URL:        fmt.Sprintf("k/%d.jpg", id),
				CreatedAt:  base.Add(time.Duration(id) * time.Minute),
			})
			id++
		}
	}
	return out
}

func newTestFeedService(opts FeedOptions) *FeedService {
	graph := &memGraph{
		following: map[uint64][]uint64{1: {2}},
		friends:   map[uint64][]uint64{1: {3}},
	}
	concerts := &memStore{kind: feed.KindConcert, media: seed([]uint64{1, 2, 5}, 6)}
	memories := &memStore{kind: feed.KindMemory, media: seed([]uint64{3, 4}, 2)}
	return NewFeedService(graph, concerts, memories, opts)
}

func authorsOf(rows []feed.Row) map[uint64]bool {
	out := make(map[uint64]bool)
	for _, r := range rows {
		out[r.AuthorID] = true
	}
	return out
}

func TestFeedServicePage(t *testing.T) {
	ctx := context.Background()
	svc := newTestFeedService(FeedOptions{URLResolver: func(k string) string { return "https://m/" + k }})

	t.Run("wall defaults to followed", func(t *testing.T) {
		pv, err := svc.Page(ctx, 1, "wall", "", feed.Filter{}, 0)
		require.NoError(t, err)
		assert.Equal(t, feed.ScopeFollowed, pv.Scope)
		assert.Len(t, pv.Rows, 8)
		assert.True(t, pv.Fallback)
		assert.False(t, pv.Done)
		assert.Equal(t, map[uint64]bool{1: true, 2: true}, authorsOf(pv.Rows))
		assert.Contains(t, pv.Rows[0].MediaURLs[0], "https://m/k/")
	})

	t.Run("signed out followed is empty", func(t *testing.T) {
		pv, err := svc.Page(ctx, 0, "wall", feed.ScopeFollowed, feed.Filter{}, 0)
		require.NoError(t, err)
		assert.Empty(t, pv.Rows)
		assert.NotNil(t, pv.Rows)
		assert.True(t, pv.Done)
	})

	t.Run("signed out for-you sees everyone", func(t *testing.T) {
		pv, err := svc.Page(ctx, 0, "concerts", "", feed.Filter{}, 0)
		require.NoError(t, err)
		assert.Len(t, pv.Rows, 12)
	})

	t.Run("friends wall reads memories", func(t *testing.T) {
		pv, err := svc.Page(ctx, 1, "friends", "", feed.Filter{}, 0)
		require.NoError(t, err)
		assert.Len(t, pv.Rows, 2)
		for _, r := range pv.Rows {
			assert.Equal(t, feed.KindMemory, r.Kind)
			assert.Equal(t, uint64(3), r.AuthorID)
		}
	})

	t.Run("validation", func(t *testing.T) {
		_, err := svc.Page(ctx, 1, "nope", "", feed.Filter{}, 0)
		assert.ErrorIs(t, err, feed.ErrUnknownSurface)
		_, err = svc.Page(ctx, 1, "friends", feed.ScopeForYou, feed.Filter{}, 0)
		assert.ErrorIs(t, err, feed.ErrScopeNotAllowed)
		_, err = svc.Page(ctx, 1, "explore", "", feed.Filter{}, 0)
		assert.ErrorIs(t, err, feed.ErrFilterRequired)
	})

	t.Run("explore filters by tour", func(t *testing.T) {
		pv, err := svc.Page(ctx, 0, "explore", "", feed.Filter{Tour: "tour-1"}, 0)
		require.NoError(t, err)
		require.NotEmpty(t, pv.Rows)
		for _, r := range pv.Rows {
			assert.Equal(t, uint64(1), r.ParentID%2)
		}
	})
}

func TestFeedServiceOverrides(t *testing.T) {
	svc := newTestFeedService(FeedOptions{Overrides: map[string]config.SurfaceOverride{
		"ribbon":   {PageSize: 3, MediaCap: 2},
		"wall":     {Window: 50},
		"concerts": {Window: 5000},
		"explore":  {Window: 500},
	}})
	s, err := svc.Surface("ribbon")
	require.NoError(t, err)
	assert.Equal(t, 3, s.PageSize)
	assert.Equal(t, 2, s.MediaCap)
	assert.Equal(t, 200, s.Window)

	pv, err := svc.Page(context.Background(), 1, "ribbon", "", feed.Filter{}, 0)
	require.NoError(t, err)
	assert.Len(t, pv.Rows, 3)

	t.Run("window overrides are clamped", func(t *testing.T) {
		for name, want := range map[string]int{"wall": 200, "concerts": 800, "explore": 500} {
			s, err := svc.Surface(name)
			require.NoError(t, err)
			assert.Equal(t, want, s.Window, name)
		}
	})
}

func TestFeedServiceSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("sentinel pages until done", func(t *testing.T) {
		svc := newTestFeedService(FeedOptions{})
		view, err := svc.Open(ctx, Caller{ViewerID: 1}, "wall", "", feed.Filter{})
		require.NoError(t, err)
		require.NotEmpty(t, view.ID)
		assert.Len(t, view.Rows, 8)
		assert.Equal(t, 1, svc.Len())

		// 哨兵离视口太远
		_, started, err := svc.Sentinel(ctx, view.ID, 1, 5000)
		require.NoError(t, err)
		assert.False(t, started)

		view, started, err = svc.Sentinel(ctx, view.ID, 1, 100)
		require.NoError(t, err)
		assert.True(t, started)
		assert.Len(t, view.Rows, 12)
		assert.True(t, view.Done)

		_, started, err = svc.Sentinel(ctx, view.ID, 1, 0)
		require.NoError(t, err)
		assert.False(t, started)
	})

	t.Run("viewer change resets the session", func(t *testing.T) {
		svc := newTestFeedService(FeedOptions{})
		view, err := svc.Open(ctx, Caller{ViewerID: 1}, "wall", "", feed.Filter{})
		require.NoError(t, err)

		view, err = svc.Snapshot(ctx, view.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, view.Rows)
		assert.True(t, view.Done)

		view, err = svc.Snapshot(ctx, view.ID, 5)
		require.NoError(t, err)
		assert.Equal(t, map[uint64]bool{5: true}, authorsOf(view.Rows))
	})

	t.Run("reset switches scope", func(t *testing.T) {
		svc := newTestFeedService(FeedOptions{})
		view, err := svc.Open(ctx, Caller{ViewerID: 1}, "wall", "", feed.Filter{})
		require.NoError(t, err)

		view, err = svc.Reset(ctx, view.ID, 1, feed.ScopeForYou, feed.Filter{})
		require.NoError(t, err)
		assert.Equal(t, feed.ScopeForYou, view.Scope)
		assert.Equal(t, 1, view.Page)
		assert.Len(t, view.Rows, 8)

		_, err = svc.Reset(ctx, view.ID, 1, feed.Scope("everyone"), feed.Filter{})
		assert.ErrorIs(t, err, feed.ErrScopeNotAllowed)
	})

	t.Run("close and evict", func(t *testing.T) {
		svc := newTestFeedService(FeedOptions{SessionTTL: time.Minute})
		now := base
		svc.now = func() time.Time { return now }

		a, err := svc.Open(ctx, Caller{ViewerID: 1}, "wall", "", feed.Filter{})
		require.NoError(t, err)
		b, err := svc.Open(ctx, Caller{ViewerID: 1}, "ribbon", "", feed.Filter{})
		require.NoError(t, err)

		require.NoError(t, svc.Close(a.ID, Caller{ViewerID: 1}))
		assert.ErrorIs(t, svc.Close(a.ID, Caller{ViewerID: 1}), ErrSessionNotFound)
		_, err = svc.Snapshot(ctx, a.ID, 1)
		assert.ErrorIs(t, err, ErrSessionNotFound)

		now = now.Add(30 * time.Second)
		assert.Zero(t, svc.Evict())
		now = now.Add(2 * time.Minute)
		assert.Equal(t, 1, svc.Evict())
		_, err = svc.Snapshot(ctx, b.ID, 1)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.Zero(t, svc.Len())
	})

	t.Run("close checks the caller", func(t *testing.T) {
		svc := newTestFeedService(FeedOptions{})
		anon := Caller{Addr: "203.0.113.5"}
		view, err := svc.Open(ctx, anon, "concerts", "", feed.Filter{})
		require.NoError(t, err)

		assert.ErrorIs(t, svc.Close(view.ID, Caller{Addr: "198.51.100.7"}), ErrSessionNotFound)
		assert.ErrorIs(t, svc.Close(view.ID, Caller{ViewerID: 5}), ErrSessionNotFound)
		assert.Equal(t, 1, svc.Len())

		// 用户 5 登录后读过这个会话，会话归属当前用户
		_, err = svc.Snapshot(ctx, view.ID, 5)
		require.NoError(t, err)
		require.NoError(t, svc.Close(view.ID, Caller{ViewerID: 5, Addr: "198.51.100.7"}))
		assert.Zero(t, svc.Len())
	})

	t.Run("sessions per client are capped", func(t *testing.T) {
		svc := newTestFeedService(FeedOptions{MaxSessionsPerClient: 2})
		now := base
		svc.now = func() time.Time { return now }
		anon := Caller{Addr: "203.0.113.5"}

		var ids []string
		for i := 0; i < 3; i++ {
			now = now.Add(time.Second)
			view, err := svc.Open(ctx, anon, "concerts", "", feed.Filter{})
			require.NoError(t, err)
			ids = append(ids, view.ID)
		}
		assert.Equal(t, 2, svc.Len())
		_, err := svc.Snapshot(ctx, ids[0], 0)
		assert.ErrorIs(t, err, ErrSessionNotFound, "oldest session evicted")

		// 最近用过的会话保留
		now = now.Add(time.Second)
		_, err = svc.Snapshot(ctx, ids[1], 0)
		require.NoError(t, err)
		now = now.Add(time.Second)
		_, err = svc.Open(ctx, anon, "concerts", "", feed.Filter{})
		require.NoError(t, err)
		_, err = svc.Snapshot(ctx, ids[1], 0)
		assert.NoError(t, err)
		_, err = svc.Snapshot(ctx, ids[2], 0)
		assert.ErrorIs(t, err, ErrSessionNotFound)

		// 其他客户端不受影响
		_, err = svc.Open(ctx, Caller{Addr: "198.51.100.7"}, "concerts", "", feed.Filter{})
		require.NoError(t, err)
		_, err = svc.Open(ctx, Caller{ViewerID: 1}, "wall", "", feed.Filter{})
		require.NoError(t, err)
		assert.Equal(t, 4, svc.Len())
	})
}
