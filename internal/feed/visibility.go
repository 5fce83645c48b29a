package feed

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"Walcord/internal/logger"
)

// Direction 好友关系的方向，相对于查询用户
type Direction int

const (
	Outgoing Direction = iota // 用户发起的
	Incoming                  // 用户收到的
)

// Graph 社交关系读接口
type Graph interface {
	// FollowingIDs 用户当前关注的人
	FollowingIDs(ctx context.Context, userID uint64) ([]uint64, error)
	// AcceptedFriendIDs 指定方向上已接受的好友
	AcceptedFriendIDs(ctx context.Context, userID uint64, dir Direction) ([]uint64, error)
}

type Resolver struct {
	graph Graph
}

func NewResolver(g Graph) *Resolver {
	return &Resolver{graph: g}
}

// ResolveVisibleAuthors viewerID 为 0 表示未登录。
// for-you 返回 Everyone()；受限 scope 下未登录或查询失败返回空集合。
func (r *Resolver) ResolveVisibleAuthors(ctx context.Context, viewerID uint64, scope Scope) AuthorSet {
	if !scope.Restricted() {
		return Everyone()
	}
	if viewerID == 0 {
		return Authors()
	}

	log := logger.For(ctx).WithFields(logrus.Fields{"viewer": viewerID, "scope": scope})

	switch scope {
	case ScopeFollowed:
		ids, err := r.graph.FollowingIDs(ctx, viewerID)
		if err != nil {
			queryErrors.WithLabelValues("resolve").Inc()
			log.WithError(err).Warn("resolve followings failed")
			return Authors()
		}
		return Authors(append(ids, viewerID)...)

	case ScopeFriends:
		var outgoing, incoming []uint64
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			outgoing, err = r.graph.AcceptedFriendIDs(gctx, viewerID, Outgoing)
			return err
		})
		g.Go(func() error {
			var err error
			incoming, err = r.graph.AcceptedFriendIDs(gctx, viewerID, Incoming)
			return err
		})
		if err := g.Wait(); err != nil {
			queryErrors.WithLabelValues("resolve").Inc()
			log.WithError(err).Warn("resolve friends failed")
			return Authors()
		}
		ids := make([]uint64, 0, len(outgoing)+len(incoming)+1)
		ids = append(ids, viewerID)
		ids = append(ids, outgoing...)
		ids = append(ids, incoming...)
		return Authors(ids...)
	}
	return Authors()
}
