// Package middleware provides the HTTP middleware chain wiring identity
// resolution, origin classification, tenant scoping and rate limiting into
// the request context.
package middleware

import (
	"net/http"

	"github.com/folioworks/folio/pkg/auth"
	"github.com/folioworks/folio/pkg/httputil"
	"github.com/folioworks/folio/pkg/observability"
)

// Identity resolves the caller's identity once per request and attaches it to
// the context. Resolution never rejects: an unauthenticated request carries
// an empty auth context and the policy layer decides what that may do.
func Identity(resolver *auth.Resolver, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, err := resolver.Resolve(r.Context(), r)
			if err != nil {
				observability.FromContext(r.Context()).
					WithError(err).Error("identity resolution failed")
				httputil.WriteInternalError(w, err)
				return
			}

			if metrics != nil {
				metrics.AuthResolutionsTotal.WithLabelValues(resolutionMethod(ac), resolutionOutcome(ac)).Inc()
			}

			next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), ac)))
		})
	}
}

func resolutionMethod(ac *auth.Context) string {
	if ac == nil || ac.Identity == nil {
		return "none"
	}
	return ac.Identity.Kind().String()
}

func resolutionOutcome(ac *auth.Context) string {
	if ac.Authenticated() {
		return "resolved"
	}
	return "anonymous"
}

// GetAuthContext extracts the auth context from a request; never nil
func GetAuthContext(r *http.Request) *auth.Context {
	return auth.FromContext(r.Context())
}
