package membershipmock

import (
	"context"
	"sync"

	"peerlend/internal/domain/membership"
)

var _ membership.Authorizer = (*Authorizer)(nil)

// Authorizer serves roles from an in-memory table keyed by community and user.
// RoleOfFn, when set, takes precedence. Calls are counted so tests can assert
// that roles are looked up on every operation.
type Authorizer struct {
	RoleOfFn func(ctx context.Context, communityID, userID string) (membership.Role, error)

	mu    sync.Mutex
	roles map[string]membership.Role
	calls int
}

func New() *Authorizer { return &Authorizer{roles: map[string]membership.Role{}} }

// With sets the role of userID in communityID.
func (a *Authorizer) With(communityID, userID string, role membership.Role) *Authorizer {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.roles == nil {
		a.roles = map[string]membership.Role{}
	}
	a.roles[communityID+"/"+userID] = role
	return a
}

func (a *Authorizer) RoleOf(ctx context.Context, communityID, userID string) (membership.Role, error) {
	a.mu.Lock()
	a.calls++
	role, ok := a.roles[communityID+"/"+userID]
	a.mu.Unlock()

	if a.RoleOfFn != nil {
		return a.RoleOfFn(ctx, communityID, userID)
	}
	if !ok {
		return membership.RoleNone, nil
	}
	return role, nil
}

func (a *Authorizer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
