package feed

import "context"

const DefaultPrefetchMargin = 600

// Loader 哨兵元素进入视口（含预取边距）时触发下一页
type Loader struct {
	ctrl   *Controller
	margin int
}

func NewLoader(ctrl *Controller, marginPx int) *Loader {
	if marginPx <= 0 {
		marginPx = DefaultPrefetchMargin
	}
	return &Loader{ctrl: ctrl, margin: marginPx}
}

// OnSentinel distancePx 是哨兵到视口底边的距离，已经可见时为 0 或负数。
// 返回是否真的发起了拉取。
func (l *Loader) OnSentinel(ctx context.Context, distancePx int) bool {
	if distancePx > l.margin {
		return false
	}
	return l.ctrl.LoadMore(ctx)
}

func (l *Loader) Margin() int { return l.margin }
