package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/folioworks/folio/pkg/contextkeys"
)

// ErrNotFound is returned by credential stores when no principal matches
var ErrNotFound = errors.New("auth: principal not found")

// SessionStore resolves a session-cookie hash to the user it belongs to.
// Session issuance lives with the identity provider; this core only validates.
type SessionStore interface {
	UserBySessionHash(ctx context.Context, hash string) (*User, error)
}

// TenantKeyStore resolves a tenant API key hash to its tenant
type TenantKeyStore interface {
	TenantByKeyHash(ctx context.Context, hash string) (*Tenant, error)
}

// Context carries the identity resolved for one request. The identity is
// immutable for the request's lifetime; nothing downstream re-resolves it.
type Context struct {
	Identity *Identity // nil when no credential resolved
}

// Authenticated reports whether any principal was resolved
func (c *Context) Authenticated() bool {
	return c != nil && c.Identity != nil
}

// Resolver is the authenticated-context factory. It tries session-cookie auth
// first and falls back to the tenant API key, short-circuiting on the first
// success so a request costs at most one extra store round-trip.
type Resolver struct {
	sessions     SessionStore
	tenantKeys   TenantKeyStore
	cookiePrefix string
}

// NewResolver creates a resolver over the two credential stores
func NewResolver(sessions SessionStore, tenantKeys TenantKeyStore, cookiePrefix string) *Resolver {
	return &Resolver{
		sessions:     sessions,
		tenantKeys:   tenantKeys,
		cookiePrefix: cookiePrefix,
	}
}

// SessionCookieName returns the name of the session cookie this resolver reads
func (r *Resolver) SessionCookieName() string {
	return r.cookiePrefix + "-session"
}

// Resolve determines the caller's identity for this request. Both lookup
// failures and absent credentials resolve to an unauthenticated Context;
// only infrastructure errors surface as errors.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Context, error) {
	if req == nil {
		return &Context{}, nil
	}

	if cookie, err := req.Cookie(r.SessionCookieName()); err == nil && cookie.Value != "" {
		user, err := r.sessions.UserBySessionHash(ctx, HashCredential(cookie.Value))
		if err == nil {
			return &Context{Identity: UserIdentity(user)}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if key := ParseAPIKeyHeader(req.Header.Get("Authorization")); key != "" {
		tenant, err := r.tenantKeys.TenantByKeyHash(ctx, HashCredential(key))
		if err == nil {
			return &Context{Identity: TenantIdentity(tenant)}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	return &Context{}, nil
}

// WithContext attaches the resolved auth context to a request context
func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, contextkeys.AuthKey, ac)
}

// FromContext retrieves the auth context; never nil
func FromContext(ctx context.Context) *Context {
	if ac, ok := ctx.Value(contextkeys.AuthKey).(*Context); ok && ac != nil {
		return ac
	}
	return &Context{}
}
