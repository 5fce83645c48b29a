package feed

import "errors"

var (
	ErrUnknownSurface  = errors.New("unknown feed surface")
	ErrScopeNotAllowed = errors.New("scope not allowed on this surface")
	ErrFilterRequired  = errors.New("surface requires an artist or tour filter")
)

// Surface 一个具体的 feed 展示位及其参数
type Surface struct {
	Name          string
	Kind          Kind
	DefaultScope  Scope
	Scopes        []Scope
	PageSize      int
	MediaCap      int
	Window        int
	RequireFilter bool
}

func (s Surface) Allows(scope Scope) bool {
	for _, sc := range s.Scopes {
		if sc == scope {
			return true
		}
	}
	return false
}

// Validate 校验请求参数，scope 为空时取默认值
func (s Surface) Validate(scope Scope, filter Filter) (Scope, error) {
	if scope == "" {
		scope = s.DefaultScope
	}
	if !s.Allows(scope) {
		return "", ErrScopeNotAllowed
	}
	if s.RequireFilter && filter.IsZero() {
		return "", ErrFilterRequired
	}
	return scope, nil
}

func DefaultSurfaces() map[string]Surface {
	all := []Scope{ScopeFollowed, ScopeFriends, ScopeForYou}
	return map[string]Surface{
		"wall": {
			Name: "wall", Kind: KindConcert, DefaultScope: ScopeFollowed, Scopes: all,
			PageSize: 8, MediaCap: 6, Window: 400,
		},
		"friends": {
			Name: "friends", Kind: KindMemory, DefaultScope: ScopeFriends, Scopes: []Scope{ScopeFriends},
			PageSize: 8, MediaCap: 6, Window: 400,
		},
		"concerts": {
			Name: "concerts", Kind: KindConcert, DefaultScope: ScopeForYou, Scopes: all,
			PageSize: 12, MediaCap: 12, Window: 800,
		},
		"ribbon": {
			Name: "ribbon", Kind: KindConcert, DefaultScope: ScopeFollowed, Scopes: []Scope{ScopeFollowed, ScopeForYou},
			PageSize: 10, MediaCap: 4, Window: 200,
		},
		"explore": {
			Name: "explore", Kind: KindConcert, DefaultScope: ScopeForYou, Scopes: []Scope{ScopeForYou, ScopeFollowed},
			PageSize: 12, MediaCap: 12, Window: 800, RequireFilter: true,
		},
	}
}
