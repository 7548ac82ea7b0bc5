// Package tenants owns tenant scope resolution and the tenant directory.
//
// The scoping cookie is always a hint: authority is re-derived from the
// caller's identity on every request and cached only for that request's
// lifetime, never across requests.
package tenants

import (
	"context"
	"fmt"
	"net/http"

	"github.com/folioworks/folio/pkg/auth"
	"github.com/folioworks/folio/pkg/contextkeys"
)

// ScopeCookieMaxAge is the lifetime of the emitted scoping cookie (2h)
const ScopeCookieMaxAge = 7200

// Scope is the authoritative tenant scope for one request. Secret is only
// populated when the tenant itself is the caller; user-scoped requests never
// touch a signing secret.
type Scope struct {
	TenantID string
	Secret   string
}

// Resolver derives the tenant scope from caller identity plus the optional
// scoping cookie
type Resolver struct {
	cookiePrefix string
}

// NewResolver creates a scope resolver emitting/reading {prefix}-tenant cookies
func NewResolver(cookiePrefix string) *Resolver {
	return &Resolver{cookiePrefix: cookiePrefix}
}

// CookieName returns the name of the tenant scoping cookie
func (r *Resolver) CookieName() string {
	return r.cookiePrefix + "-tenant"
}

// Resolve determines the tenant scope for this request:
//
//   - a tenant identity IS the scope; the cookie is ignored;
//   - a user identity with a scoping cookie gets the cookie's tenant, but only
//     after the membership cross-check — system users and admins of that tenant
//     bypass it (for system users the tenant's existence is not re-verified
//     either, matching the reference behavior);
//   - anything else is unscoped: a host-level operation.
func (r *Resolver) Resolve(req *http.Request, identity *auth.Identity) *Scope {
	if identity == nil {
		return nil
	}

	if tenant, ok := identity.Tenant(); ok {
		return &Scope{TenantID: tenant.ID, Secret: tenant.Secret}
	}

	user, ok := identity.User()
	if !ok || req == nil {
		return nil
	}

	cookie, err := req.Cookie(r.CookieName())
	if err != nil || cookie.Value == "" {
		return nil
	}
	candidate := cookie.Value

	if user.IsSystem() || user.AdminOf(candidate) || user.MemberOf(candidate) {
		return &Scope{TenantID: candidate}
	}

	// Cookie names a tenant the user has no membership in; the hint is
	// discarded rather than trusted.
	return nil
}

// WriteScopeCookie emits the tenant scoping cookie on the response
func (r *Resolver) WriteScopeCookie(w http.ResponseWriter, tenantID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     r.CookieName(),
		Value:    tenantID,
		Path:     "/",
		MaxAge:   ScopeCookieMaxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// WithScope attaches a resolved scope to the request context. The scope is
// request-local; nothing outlives the request.
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, contextkeys.ScopeKey, scope)
}

// ScopeFromContext retrieves the resolved scope, nil when unscoped
func ScopeFromContext(ctx context.Context) *Scope {
	if s, ok := ctx.Value(contextkeys.ScopeKey).(*Scope); ok {
		return s
	}
	return nil
}

// String implements fmt.Stringer without leaking the secret
func (s *Scope) String() string {
	if s == nil {
		return "unscoped"
	}
	return fmt.Sprintf("tenant:%s", s.TenantID)
}
