package identity

import (
	"sync"

	"fitness_attest/pkg/data"
)

// Authorizer answers whether a caller may perform admin-only operations. The
// core components depend on this interface only, keeping them decoupled from
// any specific identity scheme.
type Authorizer interface {
	IsAdmin(principal string) bool
}

// StaticAuthorizer recognizes a single admin principal. The admin can hand
// over the role; the handover itself is admin-gated.
type StaticAuthorizer struct {
	admin string
	mu    sync.RWMutex
}

var _ Authorizer = (*StaticAuthorizer)(nil)

// NewStaticAuthorizer creates an authorizer with the given admin principal.
func NewStaticAuthorizer(admin string) *StaticAuthorizer {
	return &StaticAuthorizer{admin: admin}
}

// IsAdmin reports whether the principal is the current admin.
func (a *StaticAuthorizer) IsAdmin(principal string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return principal != "" && principal == a.admin
}

// SetAdmin transfers the admin role to a new principal.
func (a *StaticAuthorizer) SetAdmin(caller, newAdmin string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.admin {
		return data.ErrUnauthorized
	}
	a.admin = newAdmin
	return nil
}
