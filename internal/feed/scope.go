package feed

import "errors"

var ErrUnknownScope = errors.New("unknown feed scope")

// Scope 决定一个 feed 能看到哪些作者的内容
type Scope string

const (
	ScopeFollowed Scope = "followed"
	ScopeFriends  Scope = "friends"
	ScopeForYou   Scope = "for-you"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeFollowed, ScopeFriends, ScopeForYou:
		return Scope(s), nil
	}
	return "", ErrUnknownScope
}

// Restricted 为 true 时只能看到可见作者集合内的内容
func (s Scope) Restricted() bool {
	return s == ScopeFollowed || s == ScopeFriends
}
