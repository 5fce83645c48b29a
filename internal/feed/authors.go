package feed

import "sort"

// AuthorSet 可见作者集合。Everyone() 表示不做作者过滤。
type AuthorSet struct {
	all bool
	ids map[uint64]struct{}
}

func Everyone() AuthorSet {
	return AuthorSet{all: true}
}

// Authors 构造受限集合，id 为 0 的忽略
func Authors(ids ...uint64) AuthorSet {
	set := AuthorSet{ids: make(map[uint64]struct{}, len(ids))}
	for _, id := range ids {
		if id != 0 {
			set.ids[id] = struct{}{}
		}
	}
	return set
}

func (a AuthorSet) Unrestricted() bool { return a.all }

// Empty 受限且没有任何作者
func (a AuthorSet) Empty() bool { return !a.all && len(a.ids) == 0 }

func (a AuthorSet) Len() int { return len(a.ids) }

func (a AuthorSet) Contains(id uint64) bool {
	if a.all {
		return true
	}
	_, ok := a.ids[id]
	return ok
}

// IDs 升序返回，Unrestricted 时返回 nil
func (a AuthorSet) IDs() []uint64 {
	if a.all {
		return nil
	}
	out := make([]uint64, 0, len(a.ids))
	for id := range a.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
