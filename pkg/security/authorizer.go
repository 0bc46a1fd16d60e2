package security

import (
	"context"
	"strings"
	"sync"
)

// AllowAllAuthorizer grants every permission. Development use only.
type AllowAllAuthorizer struct{}

func (AllowAllAuthorizer) CheckAccess(ctx context.Context, user *UserContext, permission string) bool {
	return true
}

// StaticAuthorizer holds a fixed role-to-permission table. Permission
// entries may end in ".*" to grant a whole slug prefix, e.g.
// "crud6.users.*".
type StaticAuthorizer struct {
	mu    sync.RWMutex
	roles map[string][]string
}

// NewStaticAuthorizer creates an authorizer from a role permission map.
func NewStaticAuthorizer(roles map[string][]string) *StaticAuthorizer {
	if roles == nil {
		roles = make(map[string][]string)
	}
	return &StaticAuthorizer{roles: roles}
}

// Grant adds permissions to a role.
func (a *StaticAuthorizer) Grant(role string, permissions ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.roles[role] = append(a.roles[role], permissions...)
}

func (a *StaticAuthorizer) CheckAccess(ctx context.Context, user *UserContext, permission string) bool {
	if user == nil {
		return false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, role := range user.Roles {
		for _, granted := range a.roles[role] {
			if granted == permission {
				return true
			}
			if prefix, ok := strings.CutSuffix(granted, ".*"); ok && strings.HasPrefix(permission, prefix+".") {
				return true
			}
		}
	}
	return false
}
