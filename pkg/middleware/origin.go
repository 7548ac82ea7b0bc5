package middleware

import (
	"context"
	"net/http"

	"github.com/folioworks/folio/pkg/contextkeys"
	"github.com/folioworks/folio/pkg/origin"
)

// Origin classifies the request's transport once and stores the result on the
// context; nothing downstream re-evaluates it mid-flight.
func Origin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), contextkeys.OriginKey, origin.Classify(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OriginFromContext retrieves the classification. Absent means the request
// never passed through transport middleware, which is exactly what an
// in-process call looks like.
func OriginFromContext(ctx context.Context) origin.Origin {
	if o, ok := ctx.Value(contextkeys.OriginKey).(origin.Origin); ok {
		return o
	}
	return origin.Internal
}
