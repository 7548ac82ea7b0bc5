package middleware

import (
	"net/http"

	"github.com/folioworks/folio/pkg/auth"
	"github.com/folioworks/folio/pkg/tenants"
)

// TenantScope resolves the request's tenant scope from identity plus the
// scoping cookie, caches it on the request context, and re-emits the cookie
// so the admin UI keeps its workspace selection alive. Runs after Identity.
func TenantScope(resolver *tenants.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := auth.FromContext(r.Context())
			scope := resolver.Resolve(r, ac.Identity)
			if scope != nil {
				resolver.WriteScopeCookie(w, scope.TenantID)
			}
			next.ServeHTTP(w, r.WithContext(tenants.WithScope(r.Context(), scope)))
		})
	}
}
