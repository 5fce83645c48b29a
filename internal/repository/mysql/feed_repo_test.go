package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Walcord/internal/feed"
	"Walcord/internal/model"
)

func TestMediaURLs(t *testing.T) {
	raw := []byte(`[
		{"url": "b.jpg", "at": 1717272000.250, "id": 2},
		{"url": "c.jpg", "at": 1717272060.000, "id": 3},
		{"url": "a.jpg", "at": 1717271000.000, "id": 1},
		{"url": "d.jpg", "at": 1717272060.000, "id": 4}
	]`)
	assert.Equal(t, []string{"d.jpg", "c.jpg", "b.jpg", "a.jpg"}, mediaURLs(raw))
	assert.Nil(t, mediaURLs(nil))
	assert.Nil(t, mediaURLs([]byte(`{"url":`)))
}

type emptyView struct{}

func (emptyView) ReadView(context.Context, feed.ViewQuery) ([]feed.Row, error) { return nil, nil }

type followGraph map[uint64][]uint64

func (g followGraph) FollowingIDs(_ context.Context, id uint64) ([]uint64, error) { return g[id], nil }

func (g followGraph) AcceptedFriendIDs(context.Context, uint64, feed.Direction) ([]uint64, error) {
	return nil, nil
}

func TestFeedRepository(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	at := func(minute int) time.Time { return t0.Add(time.Duration(minute) * time.Minute) }

	t.Run("view media come out newest first", func(t *testing.T) {
		db := newTestDB(t)
		content := &ContentRepository{DB: db}
		c := &model.Concert{UserID: 2, ArtistName: "Wet Leg", TourName: "moisturizer", Venue: "O2", City: "London"}
		// 插入顺序和时间顺序故意错开
		require.NoError(t, content.CreateConcert(ctx, c, []model.ConcertMedia{
			{URL: "mid.jpg", CreatedAt: at(2)},
			{URL: "new.jpg", CreatedAt: at(3)},
			{URL: "old.jpg", CreatedAt: at(1)},
		}))
		require.NoError(t, content.AddConcertMedia(ctx, c.ID, 7, []model.ConcertMedia{{URL: "first.jpg", CreatedAt: at(0)}}))

		repo := NewFeedRepository(db, feed.KindConcert)
		rows, err := repo.ReadView(ctx, feed.ViewQuery{Authors: feed.Everyone(), Limit: 10})
		require.NoError(t, err)
		require.Len(t, rows, 1)

		row := rows[0]
		assert.Equal(t, []string{"new.jpg", "mid.jpg", "old.jpg", "first.jpg"}, row.MediaURLs)
		assert.Equal(t, uint64(2), row.AuthorID)
		assert.Equal(t, uint64(7), row.FirstUploaderID)
		assert.True(t, at(3).Equal(row.CreatedAt))
		require.NotNil(t, row.Meta)
		assert.Equal(t, "Wet Leg - moisturizer", row.Meta.Title)
		assert.Equal(t, "O2, London", row.Meta.Location)

		items, err := repo.RecentMedia(ctx, feed.Everyone(), 10)
		require.NoError(t, err)
		urls := make([]string, len(items))
		for i, it := range items {
			urls[i] = it.URL
		}
		assert.Equal(t, row.MediaURLs, urls, "both paths agree on media order")
	})

	t.Run("both paths filter on the owner", func(t *testing.T) {
		db := newTestDB(t)
		content := &ContentRepository{DB: db}
		// 10 归 2 所有，媒体由 9 上传；20 归 9 所有，媒体由 2 上传
		owned := &model.Concert{UserID: 2, ArtistName: "Blur"}
		require.NoError(t, content.CreateConcert(ctx, owned, nil))
		require.NoError(t, content.AddConcertMedia(ctx, owned.ID, 9, []model.ConcertMedia{{URL: "a.jpg", CreatedAt: at(1)}}))
		foreign := &model.Concert{UserID: 9, ArtistName: "Pulp"}
		require.NoError(t, content.CreateConcert(ctx, foreign, nil))
		require.NoError(t, content.AddConcertMedia(ctx, foreign.ID, 2, []model.ConcertMedia{{URL: "b.jpg", CreatedAt: at(2)}}))

		repo := NewFeedRepository(db, feed.KindConcert)
		items, err := repo.RecentMedia(ctx, feed.Authors(1, 2), 10)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, owned.ID, items[0].ParentID)
		assert.Equal(t, uint64(2), items[0].OwnerID)
		assert.Equal(t, uint64(9), items[0].UploaderID)

		graph := followGraph{1: {2}}
		surface := feed.DefaultSurfaces()["wall"]
		primary := feed.NewAggregator(surface, graph, repo, repo).Page(ctx, 1, feed.ScopeFollowed, feed.Filter{}, 0)
		rebuilt := feed.NewAggregator(surface, graph, emptyView{}, repo).Page(ctx, 1, feed.ScopeFollowed, feed.Filter{}, 0)

		require.False(t, primary.Fallback)
		require.True(t, rebuilt.Fallback)
		require.Len(t, primary.Rows, 1)
		require.Len(t, rebuilt.Rows, 1)
		for _, row := range []feed.Row{primary.Rows[0], rebuilt.Rows[0]} {
			assert.Equal(t, owned.ID, row.ParentID)
			assert.Equal(t, uint64(2), row.AuthorID)
			assert.Equal(t, uint64(9), row.FirstUploaderID)
		}
	})

	t.Run("filters and popular order", func(t *testing.T) {
		db := newTestDB(t)
		content := &ContentRepository{DB: db}
		for i, tour := range []string{"Eras", "Reputation", "Eras"} {
			c := &model.Concert{UserID: 3, ArtistName: "Taylor Swift", TourName: tour, LikeCount: int64(i)}
			require.NoError(t, content.CreateConcert(ctx, c, []model.ConcertMedia{{URL: "x.jpg", CreatedAt: at(10 - i)}}))
		}

		repo := NewFeedRepository(db, feed.KindConcert)
		rows, err := repo.ReadView(ctx, feed.ViewQuery{Authors: feed.Everyone(), Filter: feed.Filter{Tour: "Eras"}, Limit: 10})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.True(t, rows[0].CreatedAt.After(rows[1].CreatedAt))

		rows, err = repo.ReadView(ctx, feed.ViewQuery{Authors: feed.Everyone(), Order: feed.OrderPopular, Limit: 10})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, int64(2), rows[0].LikeCount)

		rows, err = repo.ReadView(ctx, feed.ViewQuery{Authors: feed.Authors(4), Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("memory view and parents", func(t *testing.T) {
		db := newTestDB(t)
		content := &ContentRepository{DB: db}
		m := &model.Memory{UserID: 5, Title: "first gig", ArtistName: "Phoenix", Location: "Paris"}
		require.NoError(t, content.CreateMemory(ctx, m, []model.MemoryMedia{{URL: "m.jpg", CreatedAt: at(1)}}))

		repo := NewFeedRepository(db, feed.KindMemory)
		rows, err := repo.ReadView(ctx, feed.ViewQuery{Authors: feed.Authors(5), Limit: 10})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, feed.KindMemory, rows[0].Kind)
		assert.Equal(t, []string{"m.jpg"}, rows[0].MediaURLs)

		metas, err := repo.ParentsByIDs(ctx, []uint64{m.ID, m.ID + 100})
		require.NoError(t, err)
		require.Len(t, metas, 1)
		assert.Equal(t, uint64(5), metas[m.ID].OwnerID)
		assert.Equal(t, "first gig", metas[m.ID].Title)
	})
}
