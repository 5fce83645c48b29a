package feed

import "sort"

type Order int

const (
	// OrderRecent 按时间倒序
	OrderRecent Order = iota
	// OrderPopular 点赞数倒序，再按时间倒序
	OrderPopular
)

func OrderFor(scope Scope) Order {
	if scope == ScopeForYou {
		return OrderPopular
	}
	return OrderRecent
}

// SortRows 最后总是以时间倒序、父实体 id 倒序打破并列
func SortRows(rows []Row, order Order) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if order == OrderPopular && a.LikeCount != b.LikeCount {
			return a.LikeCount > b.LikeCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ParentID > b.ParentID
	})
}
