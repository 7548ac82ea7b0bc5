package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/folioworks/folio/pkg/access"
	"github.com/folioworks/folio/pkg/async"
	"github.com/folioworks/folio/pkg/audit"
	"github.com/folioworks/folio/pkg/auth"
	"github.com/folioworks/folio/pkg/contextkeys"
	"github.com/folioworks/folio/pkg/httputil"
	"github.com/folioworks/folio/pkg/observability"
	"github.com/folioworks/folio/pkg/tenants"
)

// BuildPolicyRequest assembles the policy-layer view of an HTTP request from
// what earlier middleware left on the context.
func BuildPolicyRequest(r *http.Request, surface access.Surface) *access.Request {
	return &access.Request{
		HTTP:    r,
		Auth:    auth.FromContext(r.Context()),
		Origin:  OriginFromContext(r.Context()),
		Surface: surface,
	}
}

// Authorize evaluates the (resource, op) policy and stores the decision on
// the context for the handler to merge into its store query. A Deny is
// rendered as the uniform opaque response; the internal reason stays in the
// server-side log.
func Authorize(engine *access.Engine, resource, op string, surface access.Surface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := BuildPolicyRequest(r, surface)
			decision := engine.Evaluate(r.Context(), resource, op, req)
			if !decision.Allowed() {
				observability.FromContext(r.Context()).
					WithField("resource", resource).
					WithField("operation", op).
					Info("access denied")
				AuditDenied(r, resource, op)
				httputil.WriteDenied(w)
				return
			}

			ctx := context.WithValue(r.Context(), contextkeys.DecisionKey, decision)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuditDenied records a denied policy decision in the audit trail. The write
// happens in the background so a slow or failing audit sink never delays the
// response; the caller-visible denial stays opaque either way.
func AuditDenied(r *http.Request, resource, op string) {
	ctx := r.Context()

	event := &audit.Event{
		Timestamp:    time.Now().UTC(),
		EventType:    audit.EventTypeAuthzAccessDenied,
		Status:       audit.EventStatusDenied,
		ResourceType: audit.ResourceType(resource),
		IPAddress:    r.RemoteAddr,
		UserAgent:    r.UserAgent(),
		Method:       r.Method,
		Path:         r.URL.Path,
		Message:      op,
	}
	if id, ok := ctx.Value(contextkeys.RequestIDKey).(string); ok {
		event.RequestID = id
	}
	if identity := auth.FromContext(ctx).Identity; identity != nil {
		event.PrincipalID = identity.PrincipalID()
		event.PrincipalKind = identity.Kind().String()
	}
	if scope := tenants.ScopeFromContext(ctx); scope != nil {
		event.TenantID = scope.TenantID
	}

	sink := audit.FromContext(ctx)
	async.Go(ctx, observability.FromContext(ctx), 0, "audit access denial", func(ctx context.Context) error {
		return sink.Log(ctx, event)
	})
}

// DecisionFromContext returns the decision stored by Authorize. The fallback
// is Deny: a handler reached without authorization gets nothing.
func DecisionFromContext(ctx context.Context) access.Decision {
	if d, ok := ctx.Value(contextkeys.DecisionKey).(access.Decision); ok {
		return d
	}
	return access.Deny()
}

// RequestID tags each request with a UUID for log correlation
func RequestID(newID func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Correlation-Id")
			if id == "" {
				id = newID()
			}
			w.Header().Set("X-Correlation-Id", id)
			ctx := context.WithValue(r.Context(), contextkeys.RequestIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
