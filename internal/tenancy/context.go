package tenancy

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const scopeKey ctxKey = "clinic.scope"

// Role is a staff access level.
type Role string

const (
	RoleStaff  Role = "staff"
	RoleDoctor Role = "doctor"
	RoleAdmin  Role = "admin"
)

// roleRanks is the authoritative ordering for access checks. Ranks are
// assigned explicitly so reordering the declarations cannot change semantics.
var roleRanks = map[Role]int{
	RoleStaff:  1,
	RoleDoctor: 2,
	RoleAdmin:  3,
}

// Valid reports whether the role is a known staff role.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// AtLeast reports whether r grants at least the access of other.
func (r Role) AtLeast(other Role) bool {
	return roleRanks[r] >= roleRanks[other]
}

// Scope is the tenant isolation filter derived from the authenticated caller.
// Every query and write in the scheduling and messaging paths carries one.
type Scope struct {
	TenantID uuid.UUID
	BranchID uuid.UUID
	Role     Role
}

// Valid reports whether the scope resolves to a concrete tenant.
// An invalid scope must fail closed, never widen to an unscoped query.
func (s Scope) Valid() bool {
	return s.TenantID != uuid.Nil && s.Role.Valid()
}

// BranchFilter returns the branch id non-admin callers are restricted to.
// Admins see the whole tenant, so no branch filter applies.
func (s Scope) BranchFilter() (uuid.UUID, bool) {
	if s.Role == RoleAdmin {
		return uuid.Nil, false
	}
	return s.BranchID, s.BranchID != uuid.Nil
}

// WithScope stores the tenant scope in context.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// ScopeFromContext extracts the tenant scope if present and valid.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	val := ctx.Value(scopeKey)
	if val == nil {
		return Scope{}, false
	}
	scope, ok := val.(Scope)
	return scope, ok && scope.Valid()
}
