package access

import (
	"context"
	"time"

	"github.com/folioworks/folio/pkg/async"
	"github.com/folioworks/folio/pkg/audit"
	"github.com/folioworks/folio/pkg/auth"
	"github.com/folioworks/folio/pkg/origin"
	"github.com/folioworks/folio/pkg/signature"
)

// tenantField is the relation every tenant-scoped collection carries
const tenantField = "tenant"

// TenantCollectionRead is the generic read rule for any collection carrying a
// tenant relation:
//
//   - static-file reads are allowed unconditionally;
//   - an API request with a resolved tenant scope reads that tenant's rows;
//   - on the admin UI, system users read everything, tenant members read
//     their scoped tenant or, unscoped, every tenant they belong to;
//   - nothing else applies, so everything else is denied.
func (e *Engine) TenantCollectionRead(ctx context.Context, req *Request) Decision {
	if req.StaticFile {
		return Allow()
	}

	scope := e.scope(ctx, req)

	if req.Surface == SurfaceAPI {
		if scope != nil {
			return Scoped(Eq(tenantField, scope.TenantID))
		}
		return Deny()
	}

	id := req.identity()
	if id == nil {
		return Deny()
	}
	if id.IsSystem() {
		return Allow()
	}
	if user, ok := id.User(); ok && len(user.Memberships) > 0 {
		if scope != nil {
			return Scoped(Eq(tenantField, scope.TenantID))
		}
		return Scoped(In(tenantField, user.TenantIDs()))
	}
	return Deny()
}

// SignedTenantAccess is the write rule composing the classifier, the tenant
// resolver and the signature protocol:
//
//   - an authenticated human user passes outright;
//   - a tenant caller must pass signature verification when the deployment
//     requires it and the call arrived over an external transport; internal
//     calls, and deployments with verification disabled, skip the handshake;
//   - on success the result is always scoped to the tenant's own rows.
//
// A deployment that requires verification but has no signing secret anywhere
// is an operator misconfiguration: the request is denied like any other, but
// the condition is logged loudly server-side, unlike caller-caused denials.
func (e *Engine) SignedTenantAccess(ctx context.Context, req *Request) Decision {
	id := req.identity()
	if id == nil {
		return Deny()
	}

	if _, ok := id.User(); ok {
		return Allow()
	}

	tenant, ok := id.Tenant()
	if !ok {
		return Deny()
	}

	if e.signing.Require && req.Origin == origin.External {
		secret := tenant.Secret
		if secret == "" {
			secret = e.signing.Secret
		}
		if secret == "" {
			e.logger.WithField("tenant_id", tenant.ID).
				Error("signature verification required but no signing secret is configured")
			return Deny()
		}
		if req.HTTP == nil {
			return Deny()
		}

		result := e.verifier.Verify(ctx, signature.FromHTTP(req.HTTP.Header), secret)
		if e.metrics != nil {
			e.metrics.ObserveSignatureVerification(result)
		}
		if !result.OK {
			e.logger.WithField("tenant_id", tenant.ID).
				WithField("reason", string(result.Reason)).
				Debug("signature verification failed")
			e.auditSignatureRejection(ctx, tenant.ID, result)
			return Deny()
		}
	}

	return Scoped(Eq(tenantField, tenant.ID))
}

// auditSignatureRejection records a failed signature verification in the
// audit trail without blocking the request.
func (e *Engine) auditSignatureRejection(ctx context.Context, tenantID string, result signature.Result) {
	event := &audit.Event{
		Timestamp:     time.Now().UTC(),
		EventType:     audit.EventTypeSignatureRejected,
		Status:        audit.EventStatusDenied,
		PrincipalID:   tenantID,
		PrincipalKind: auth.KindTenant.String(),
		TenantID:      tenantID,
		Message:       string(result.Reason),
	}
	sink := audit.FromContext(ctx)
	async.Go(ctx, e.logger, 0, "audit signature rejection", func(ctx context.Context) error {
		return sink.Log(ctx, event)
	})
}
