package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Walcord/internal/model"
	"Walcord/internal/repository/mysql"
)

type memOutbox struct {
	rows     map[uint64]*model.SocialOutbox
	requeued int
}

func newMemOutbox(events ...model.SocialOutbox) *memOutbox {
	o := &memOutbox{rows: make(map[uint64]*model.SocialOutbox)}
	for i := range events {
		ev := events[i]
		o.rows[ev.ID] = &ev
	}
	return o
}

func (o *memOutbox) List(_ context.Context, n int) ([]model.SocialOutbox, error) {
	var out []model.SocialOutbox
	for id := uint64(1); id <= uint64(len(o.rows)) && len(out) < n; id++ {
		if r, ok := o.rows[id]; ok && r.Status == model.OutboxPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (o *memOutbox) MarkSent(_ context.Context, id uint64) error {
	o.rows[id].Status = model.OutboxSent
	return nil
}

func (o *memOutbox) MarkFailed(_ context.Context, id uint64) error {
	o.rows[id].Status = model.OutboxFailed
	o.rows[id].Retry++
	return nil
}

func (o *memOutbox) Requeue(_ context.Context, maxRetry int) (int64, error) {
	var n int64
	for _, r := range o.rows {
		if r.Status == model.OutboxFailed && r.Retry < maxRetry {
			r.Status = model.OutboxPending
			n++
		}
	}
	o.requeued += int(n)
	return n, nil
}

func TestOutboxRelayer(t *testing.T) {
	ctx := context.Background()
	store := newMemOutbox(
		model.SocialOutbox{ID: 1, EventType: model.EventFollow, ActorID: 10, TargetID: 20},
		model.SocialOutbox{ID: 2, EventType: model.EventFriendRequest, ActorID: 11, TargetID: 20},
		model.SocialOutbox{ID: 3, EventType: model.EventUnfollow, ActorID: 10, TargetID: 20},
	)
	var sent []uint64
	broken := true
	sender := func(_ context.Context, ob *model.SocialOutbox) error {
		if ob.ID == 2 && broken {
			return errors.New("broker down")
		}
		sent = append(sent, ob.ID)
		return nil
	}
	relayer := NewOutboxRelayer(store, sender, 10, 0)

	assert.Equal(t, 2, relayer.drainOnce(ctx))
	assert.Equal(t, []uint64{1, 3}, sent, "events keep their order")
	assert.Equal(t, model.OutboxFailed, store.rows[2].Status)
	assert.Equal(t, 1, store.rows[2].Retry)

	broken = false
	assert.Equal(t, 1, relayer.drainOnce(ctx))
	assert.Equal(t, []uint64{1, 3, 2}, sent)
	assert.Equal(t, model.OutboxSent, store.rows[2].Status)

	assert.Zero(t, relayer.drainOnce(ctx))
}

func TestOutboxRelayerGivesUp(t *testing.T) {
	ctx := context.Background()
	store := newMemOutbox(model.SocialOutbox{ID: 1, EventType: model.EventFollow})
	relayer := NewOutboxRelayer(store, func(context.Context, *model.SocialOutbox) error {
		return errors.New("always")
	}, 10, 0)

	for i := 0; i < outboxMaxRetry+3; i++ {
		relayer.drainOnce(ctx)
	}
	assert.Equal(t, outboxMaxRetry, store.rows[1].Retry)
	assert.Equal(t, model.OutboxFailed, store.rows[1].Status)
}

type memReconcile struct {
	users map[uint64]*mysql.Pair
	real  map[uint64][2]int64
	fixes int
}

func (m *memReconcile) ReconcileList(_ context.Context, n int, lastID uint64) ([]mysql.Pair, uint64, error) {
	var out []mysql.Pair
	for id := lastID + 1; id <= uint64(len(m.users)) && len(out) < n; id++ {
		out = append(out, *m.users[id])
	}
	if len(out) == 0 {
		return nil, lastID, nil
	}
	return out, out[len(out)-1].ID, nil
}

func (m *memReconcile) RealCounts(_ context.Context, id uint64) (int64, int64, error) {
	r := m.real[id]
	return r[0], r[1], nil
}

func (m *memReconcile) Fix(_ context.Context, id uint64, following, followers int64) error {
	m.users[id].FollowingCount = following
	m.users[id].FollowerCount = followers
	m.fixes++
	return nil
}

func TestFollowCountReconciler(t *testing.T) {
	store := &memReconcile{
		users: map[uint64]*mysql.Pair{},
		real:  map[uint64][2]int64{},
	}
	for id := uint64(1); id <= 7; id++ {
		store.users[id] = &mysql.Pair{ID: id, FollowingCount: 1, FollowerCount: 1}
		store.real[id] = [2]int64{1, 1}
	}
	// 两个用户的计数漂移了，其中一个在第二批
	store.real[2] = [2]int64{3, 0}
	store.real[6] = [2]int64{1, 4}

	r := NewFollowCountReconciler(store, 0)
	r.batchSize = 3

	require.Equal(t, 2, r.reconcileOnce(context.Background()))
	assert.Equal(t, mysql.Pair{ID: 2, FollowingCount: 3, FollowerCount: 0}, *store.users[2])
	assert.Equal(t, mysql.Pair{ID: 6, FollowingCount: 1, FollowerCount: 4}, *store.users[6])

	assert.Zero(t, r.reconcileOnce(context.Background()))
	assert.Equal(t, 2, store.fixes)
}
