package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"Walcord/internal/config"
	"Walcord/internal/feed"
	"Walcord/internal/logger"
)

var ErrSessionNotFound = errors.New("feed session not found")

var openSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "walcord",
	Subsystem: "feed",
	Name:      "open_sessions",
	Help:      "Feed sessions currently held in memory.",
})

// FeedStore 一类父实体的视图与原始媒体读取
type FeedStore interface {
	feed.ViewReader
	feed.MediaReader
}

type FeedOptions struct {
	SessionTTL     time.Duration
	PrefetchMargin int
	// 每个客户端（登录用户或匿名 IP）最多保留的会话数，超出时淘汰最久未用的
	MaxSessionsPerClient int
	Overrides      map[string]config.SurfaceOverride
	// 媒体存的是对象 key 时转换成公开地址
	URLResolver func(string) string
}

// PageView 无状态分页的返回
type PageView struct {
	Surface  string     `json:"surface"`
	Scope    feed.Scope `json:"scope"`
	Page     int        `json:"page"`
	Rows     []feed.Row `json:"rows"`
	Done     bool       `json:"done"`
	Fallback bool       `json:"fallback"`
}

// SessionView 会话快照
type SessionView struct {
	ID string `json:"id"`
	feed.Snapshot
}

// Caller 会话操作的调用方。匿名用户按 Addr 区分
type Caller struct {
	ViewerID uint64
	Addr     string
}

func (c Caller) key() string {
	if c.ViewerID != 0 {
		return "user:" + strconv.FormatUint(c.ViewerID, 10)
	}
	return "addr:" + c.Addr
}

type feedSession struct {
	id       string
	owner    string
	ctrl     *feed.Controller
	loader   *feed.Loader
	surface  feed.Surface
	lastSeen time.Time
}

// FeedService 管理所有 feed 场景以及服务端保存的 feed 会话
type FeedService struct {
	aggs      map[string]*feed.Aggregator
	margin    int
	ttl       time.Duration
	perClient int
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*feedSession
	owners   map[string]map[string]*feedSession
}

func NewFeedService(graph feed.Graph, concerts, memories FeedStore, opts FeedOptions) *FeedService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.MaxSessionsPerClient <= 0 {
		opts.MaxSessionsPerClient = 16
	}
	s := &FeedService{
		aggs:      make(map[string]*feed.Aggregator),
		margin:    opts.PrefetchMargin,
		ttl:       opts.SessionTTL,
		perClient: opts.MaxSessionsPerClient,
		now:       time.Now,
		sessions:  make(map[string]*feedSession),
		owners:    make(map[string]map[string]*feedSession),
	}
	for name, surface := range feed.DefaultSurfaces() {
		if o, ok := opts.Overrides[name]; ok {
			surface = applyOverride(name, surface, o)
		}
		var store FeedStore = concerts
		if surface.Kind == feed.KindMemory {
			store = memories
		}
		s.aggs[name] = feed.NewAggregator(surface, graph, store, store).WithURLResolver(opts.URLResolver)
	}
	return s
}

// 原始媒体窗口的允许范围
const (
	minWindow = 200
	maxWindow = 800
)

func applyOverride(name string, s feed.Surface, o config.SurfaceOverride) feed.Surface {
	if o.PageSize > 0 {
		s.PageSize = o.PageSize
	}
	if o.MediaCap > 0 {
		s.MediaCap = o.MediaCap
	}
	if o.Window > 0 {
		w := min(max(o.Window, minWindow), maxWindow)
		if w != o.Window {
			logger.For(context.Background()).WithFields(logrus.Fields{
				"surface": name,
				"window":  o.Window,
				"clamped": w,
			}).Warn("feed window override out of range")
		}
		s.Window = w
	}
	if s.Window < s.PageSize {
		s.Window = s.PageSize
	}
	return s
}

func (s *FeedService) Surface(name string) (feed.Surface, error) {
	agg, ok := s.aggs[name]
	if !ok {
		return feed.Surface{}, feed.ErrUnknownSurface
	}
	return agg.Surface(), nil
}

func (s *FeedService) aggregator(name string, scope feed.Scope, filter feed.Filter) (*feed.Aggregator, feed.Scope, error) {
	agg, ok := s.aggs[name]
	if !ok {
		return nil, "", feed.ErrUnknownSurface
	}
	scope, err := agg.Surface().Validate(scope, filter)
	if err != nil {
		return nil, "", err
	}
	return agg, scope, nil
}

// Page 无状态读取一页，由客户端自己累计和去重
func (s *FeedService) Page(ctx context.Context, viewerID uint64, surface string, scope feed.Scope, filter feed.Filter, page int) (*PageView, error) {
	agg, scope, err := s.aggregator(surface, scope, filter)
	if err != nil {
		return nil, err
	}
	if page < 0 {
		page = 0
	}
	res := agg.Page(ctx, viewerID, scope, filter, page)
	rows := res.Rows
	if rows == nil {
		rows = []feed.Row{}
	}
	return &PageView{
		Surface:  surface,
		Scope:    scope,
		Page:     page,
		Rows:     rows,
		Done:     len(res.Rows) < agg.Surface().PageSize,
		Fallback: res.Fallback,
	}, nil
}

// Open 创建会话并同步拉取第一页。调用方的会话数到上限时淘汰其最久未用的会话。
func (s *FeedService) Open(ctx context.Context, caller Caller, surface string, scope feed.Scope, filter feed.Filter) (*SessionView, error) {
	agg, scope, err := s.aggregator(surface, scope, filter)
	if err != nil {
		return nil, err
	}
	ctrl := feed.NewController(agg, caller.ViewerID, scope, filter)
	sess := &feedSession{
		id:      uuid.NewString(),
		owner:   caller.key(),
		ctrl:    ctrl,
		loader:  feed.NewLoader(ctrl, s.margin),
		surface: agg.Surface(),
	}
	ctrl.Reset(ctx, caller.ViewerID, scope, filter)

	s.mu.Lock()
	sess.lastSeen = s.now()
	evicted := ""
	if own := s.owners[sess.owner]; len(own) >= s.perClient {
		var oldest *feedSession
		for _, o := range own {
			if oldest == nil || o.lastSeen.Before(oldest.lastSeen) {
				oldest = o
			}
		}
		evicted = oldest.id
		s.remove(oldest)
	}
	s.add(sess)
	n := len(s.sessions)
	s.mu.Unlock()
	openSessions.Set(float64(n))

	log := logger.For(ctx).WithFields(logrus.Fields{
		"session": sess.id,
		"surface": surface,
		"scope":   scope,
	})
	if evicted != "" {
		log.WithField("evicted", evicted).Info("feed session limit reached")
	}
	log.Debug("feed session opened")
	return sess.view(), nil
}

// add / remove 需持有 s.mu
func (s *FeedService) add(sess *feedSession) {
	s.sessions[sess.id] = sess
	own, ok := s.owners[sess.owner]
	if !ok {
		own = make(map[string]*feedSession)
		s.owners[sess.owner] = own
	}
	own[sess.id] = sess
}

func (s *FeedService) remove(sess *feedSession) {
	delete(s.sessions, sess.id)
	if own, ok := s.owners[sess.owner]; ok {
		delete(own, sess.id)
		if len(own) == 0 {
			delete(s.owners, sess.owner)
		}
	}
}

func (s *FeedService) get(id string) (*feedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.lastSeen = s.now()
	return sess, nil
}

// 会话换了用户就按新用户重置，旧用户的行不会返回给新用户
func (sess *feedSession) syncViewer(ctx context.Context, viewerID uint64) {
	if sess.ctrl.Viewer() == viewerID {
		return
	}
	snap := sess.ctrl.Snapshot()
	sess.ctrl.Reset(ctx, viewerID, snap.Scope, snap.Filter)
}

func (sess *feedSession) view() *SessionView {
	return &SessionView{ID: sess.id, Snapshot: sess.ctrl.Snapshot()}
}

func (s *FeedService) Snapshot(ctx context.Context, id string, viewerID uint64) (*SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.syncViewer(ctx, viewerID)
	return sess.view(), nil
}

// Sentinel 哨兵进入视口，返回是否发起了拉取
func (s *FeedService) Sentinel(ctx context.Context, id string, viewerID uint64, distancePx int) (*SessionView, bool, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, false, err
	}
	sess.syncViewer(ctx, viewerID)
	started := sess.loader.OnSentinel(ctx, distancePx)
	return sess.view(), started, nil
}

// Reset scope 或 filter 变化，scope 为空时沿用当前值
func (s *FeedService) Reset(ctx context.Context, id string, viewerID uint64, scope feed.Scope, filter feed.Filter) (*SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if scope == "" {
		scope = sess.ctrl.Snapshot().Scope
	}
	scope, err = sess.surface.Validate(scope, filter)
	if err != nil {
		return nil, err
	}
	sess.ctrl.Reset(ctx, viewerID, scope, filter)
	return sess.view(), nil
}

// Close 只有打开会话的客户端或会话当前的登录用户可以关闭，其他人看到的是不存在
func (s *FeedService) Close(id string, caller Caller) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok && sess.owner != caller.key() &&
		(caller.ViewerID == 0 || sess.ctrl.Viewer() != caller.ViewerID) {
		ok = false
	}
	if ok {
		s.remove(sess)
	}
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	openSessions.Set(float64(n))
	return nil
}

// Evict 清理空闲超过 TTL 的会话
func (s *FeedService) Evict() int {
	s.mu.Lock()
	cutoff := s.now().Add(-s.ttl)
	evicted := 0
	for _, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			s.remove(sess)
			evicted++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()
	openSessions.Set(float64(n))
	return evicted
}

// RunEvictor 定时清理过期会话
func (s *FeedService) RunEvictor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Evict(); n > 0 {
				logger.For(ctx).WithField("evicted", n).Debug("feed sessions expired")
			}
		}
	}
}

func (s *FeedService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
