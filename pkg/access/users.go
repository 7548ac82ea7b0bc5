package access

import (
	"context"

	"github.com/folioworks/folio/pkg/auth"
)

// Field paths in the users collection. Memberships are stored as an array of
// {tenant, role} subdocuments under "tenants".
const (
	userIDField         = "id"
	userMembershipField = "tenants.tenant"
)

func selfFilter(u *auth.User) Filter {
	return Eq(userIDField, u.ID)
}

// readUsers decides who a caller may list:
//
//   - with a cookie-resolved tenant scope, system users and admins of that
//     tenant see themselves plus that tenant's members; everyone else sees
//     only themselves;
//   - unscoped, system users see everything and other users see themselves
//     plus members of the tenants they administer.
func (e *Engine) readUsers(ctx context.Context, req *Request) Decision {
	user, ok := requestUser(req)
	if !ok {
		return Deny()
	}

	if scope := e.scope(ctx, req); scope != nil {
		if user.IsSystem() || user.AdminOf(scope.TenantID) {
			return Scoped(Or(selfFilter(user), Eq(userMembershipField, scope.TenantID)))
		}
		return Scoped(selfFilter(user))
	}

	if user.IsSystem() {
		return Allow()
	}
	return Scoped(Or(selfFilter(user), In(userMembershipField, user.AdminTenantIDs())))
}

// createUsers: system users and anyone administering at least one tenant may
// create accounts.
func (e *Engine) createUsers(_ context.Context, req *Request) Decision {
	user, ok := requestUser(req)
	if !ok {
		return Deny()
	}
	if user.IsSystem() || len(user.AdminTenantIDs()) > 0 {
		return Allow()
	}
	return Deny()
}

// updateUsers: system users update anyone; other users update themselves and
// members of the tenants they administer.
func (e *Engine) updateUsers(_ context.Context, req *Request) Decision {
	user, ok := requestUser(req)
	if !ok {
		return Deny()
	}
	if user.IsSystem() {
		return Allow()
	}
	return Scoped(Or(selfFilter(user), In(userMembershipField, user.AdminTenantIDs())))
}

// deleteUsers: deleting yourself is always denied, for every role, so the
// scoped filter excludes the caller's own id. System users may delete any
// other account; tenant admins only members of their tenants; everyone else
// nothing.
func (e *Engine) deleteUsers(_ context.Context, req *Request) Decision {
	user, ok := requestUser(req)
	if !ok {
		return Deny()
	}

	notSelf := Ne(userIDField, user.ID)
	if user.IsSystem() {
		return Scoped(notSelf)
	}
	if adminIDs := user.AdminTenantIDs(); len(adminIDs) > 0 {
		return Scoped(And(notSelf, In(userMembershipField, adminIDs)))
	}
	return Deny()
}

// requestUser extracts the user principal; tenant identities and anonymous
// callers have no business on the users collection.
func requestUser(req *Request) (*auth.User, bool) {
	id := req.identity()
	if id == nil {
		return nil, false
	}
	return id.User()
}
