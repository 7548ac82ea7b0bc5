package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/folioworks/folio/pkg/access"
	"github.com/folioworks/folio/pkg/auth"
	"github.com/folioworks/folio/pkg/origin"
	"github.com/folioworks/folio/pkg/signature"
	"github.com/folioworks/folio/pkg/store"
)

func articleDoc(tenantID string) store.Document {
	return store.Document{"id": uuid.NewString(), "tenant": tenantID, "title": "hello"}
}

func TestTenantCollectionRead_StaticFile(t *testing.T) {
	e := newTestEngine(access.SigningConfig{})

	req := anonymousRequest()
	req.StaticFile = true

	if d := e.TenantCollectionRead(context.Background(), req); d.Kind != access.DecisionAllow {
		t.Errorf("Static-file read = %v, want allow", d.Kind)
	}
}

func TestTenantCollectionRead_API(t *testing.T) {
	e := newTestEngine(access.SigningConfig{})

	t.Run("tenant caller reads own rows", func(t *testing.T) {
		req := tenantRequest(&auth.Tenant{ID: "t-1"}, origin.External)
		req.Surface = access.SurfaceAPI

		d := e.TenantCollectionRead(context.Background(), req)
		if d.Kind != access.DecisionScoped {
			t.Fatalf("Decision = %v, want scoped", d.Kind)
		}
		if !store.Matches(d.Filter, articleDoc("t-1")) {
			t.Error("Filter should match the tenant's own rows")
		}
		if store.Matches(d.Filter, articleDoc("t-2")) {
			t.Error("Filter should not match another tenant's rows")
		}
	})

	t.Run("scoped member reads the scoped tenant", func(t *testing.T) {
		req := userRequest(plainUser("t-1"), "t-1")

		d := e.TenantCollectionRead(context.Background(), req)
		if d.Kind != access.DecisionScoped {
			t.Fatalf("Decision = %v, want scoped", d.Kind)
		}
		if !store.Matches(d.Filter, articleDoc("t-1")) {
			t.Error("Filter should match the scoped tenant's rows")
		}
	})

	t.Run("unscoped API request denied", func(t *testing.T) {
		if d := e.TenantCollectionRead(context.Background(), userRequest(plainUser("t-1"), "")); d.Allowed() {
			t.Error("Unscoped API read should be denied")
		}
	})

	t.Run("anonymous denied", func(t *testing.T) {
		if d := e.TenantCollectionRead(context.Background(), anonymousRequest()); d.Allowed() {
			t.Error("Anonymous API read should be denied")
		}
	})
}

func TestTenantCollectionRead_AdminUI(t *testing.T) {
	e := newTestEngine(access.SigningConfig{})

	adminUI := func(req *access.Request) *access.Request {
		req.Surface = access.SurfaceAdminUI
		return req
	}

	t.Run("system reads everything", func(t *testing.T) {
		d := e.TenantCollectionRead(context.Background(), adminUI(userRequest(systemUser(), "")))
		if d.Kind != access.DecisionAllow {
			t.Errorf("Decision = %v, want allow", d.Kind)
		}
	})

	t.Run("scoped member narrowed to the scope", func(t *testing.T) {
		d := e.TenantCollectionRead(context.Background(), adminUI(userRequest(plainUser("t-1", "t-2"), "t-1")))
		if d.Kind != access.DecisionScoped {
			t.Fatalf("Decision = %v, want scoped", d.Kind)
		}
		if !store.Matches(d.Filter, articleDoc("t-1")) {
			t.Error("Filter should match the scoped tenant")
		}
		if store.Matches(d.Filter, articleDoc("t-2")) {
			t.Error("Filter should not match the other membership")
		}
	})

	t.Run("unscoped member sees every membership", func(t *testing.T) {
		d := e.TenantCollectionRead(context.Background(), adminUI(userRequest(plainUser("t-1", "t-2"), "")))
		if d.Kind != access.DecisionScoped {
			t.Fatalf("Decision = %v, want scoped", d.Kind)
		}
		for _, tid := range []string{"t-1", "t-2"} {
			if !store.Matches(d.Filter, articleDoc(tid)) {
				t.Errorf("Filter should match rows of tenant %s", tid)
			}
		}
		if store.Matches(d.Filter, articleDoc("t-3")) {
			t.Error("Filter should not match rows of non-membership tenants")
		}
	})

	t.Run("user without memberships denied", func(t *testing.T) {
		d := e.TenantCollectionRead(context.Background(), adminUI(userRequest(plainUser(), "")))
		if d.Allowed() {
			t.Error("Membership-less user should be denied on the admin UI")
		}
	})

	t.Run("anonymous denied", func(t *testing.T) {
		if d := e.TenantCollectionRead(context.Background(), adminUI(anonymousRequest())); d.Allowed() {
			t.Error("Anonymous admin-UI read should be denied")
		}
	})
}

// signedTenantRequest builds an external tenant request carrying a freshly
// generated signature bag.
func signedTenantRequest(tenant *auth.Tenant, signingSecret string) *access.Request {
	req := tenantRequest(tenant, origin.External)
	h := signature.Generate(uuid.NewString(), signingSecret, "folio-sdk/2.1")
	h.Apply(req.HTTP.Header)
	return req
}

func TestSignedTenantAccess(t *testing.T) {
	signingOn := access.SigningConfig{Require: true}

	t.Run("human user passes outright", func(t *testing.T) {
		e := newTestEngine(signingOn)
		d := e.SignedTenantAccess(context.Background(), userRequest(plainUser("t-1"), ""))
		if d.Kind != access.DecisionAllow {
			t.Errorf("Decision = %v, want allow", d.Kind)
		}
	})

	t.Run("anonymous denied", func(t *testing.T) {
		e := newTestEngine(signingOn)
		if d := e.SignedTenantAccess(context.Background(), anonymousRequest()); d.Allowed() {
			t.Error("Anonymous caller should be denied")
		}
	})

	t.Run("internal tenant call skips the handshake", func(t *testing.T) {
		e := newTestEngine(signingOn)
		req := tenantRequest(&auth.Tenant{ID: "t-1", Secret: "s"}, origin.Internal)

		d := e.SignedTenantAccess(context.Background(), req)
		if d.Kind != access.DecisionScoped {
			t.Fatalf("Decision = %v, want scoped", d.Kind)
		}
	})

	t.Run("verification disabled skips the handshake", func(t *testing.T) {
		e := newTestEngine(access.SigningConfig{Require: false})
		req := tenantRequest(&auth.Tenant{ID: "t-1", Secret: "s"}, origin.External)

		d := e.SignedTenantAccess(context.Background(), req)
		if d.Kind != access.DecisionScoped {
			t.Fatalf("Decision = %v, want scoped", d.Kind)
		}
	})

	t.Run("valid signature scopes to the tenant", func(t *testing.T) {
		e := newTestEngine(signingOn)
		tenant := &auth.Tenant{ID: "t-1", Secret: "tenant-secret"}

		d := e.SignedTenantAccess(context.Background(), signedTenantRequest(tenant, "tenant-secret"))
		if d.Kind != access.DecisionScoped {
			t.Fatalf("Decision = %v, want scoped", d.Kind)
		}
		if !store.Matches(d.Filter, articleDoc("t-1")) {
			t.Error("Filter should match the tenant's rows")
		}
		if store.Matches(d.Filter, articleDoc("t-2")) {
			t.Error("Filter should not match another tenant's rows")
		}
	})

	t.Run("wrong secret denied", func(t *testing.T) {
		e := newTestEngine(signingOn)
		tenant := &auth.Tenant{ID: "t-1", Secret: "tenant-secret"}

		if d := e.SignedTenantAccess(context.Background(), signedTenantRequest(tenant, "other-secret")); d.Allowed() {
			t.Error("Signature under the wrong secret should be denied")
		}
	})

	t.Run("missing signature headers denied", func(t *testing.T) {
		e := newTestEngine(signingOn)
		req := tenantRequest(&auth.Tenant{ID: "t-1", Secret: "s"}, origin.External)

		if d := e.SignedTenantAccess(context.Background(), req); d.Allowed() {
			t.Error("External tenant call without signature headers should be denied")
		}
	})

	t.Run("expired signature denied", func(t *testing.T) {
		e := newTestEngine(signingOn)
		tenant := &auth.Tenant{ID: "t-1", Secret: "tenant-secret"}
		req := tenantRequest(tenant, origin.External)

		stale := signature.GenerateAt(uuid.NewString(), "tenant-secret", "folio-sdk/2.1",
			time.Now().Add(-signature.DefaultTTL-time.Minute))
		stale.Apply(req.HTTP.Header)

		if d := e.SignedTenantAccess(context.Background(), req); d.Allowed() {
			t.Error("Expired signature should be denied")
		}
	})

	t.Run("deployment secret backstops a secretless tenant", func(t *testing.T) {
		e := newTestEngine(access.SigningConfig{Require: true, Secret: "deployment-secret"})
		tenant := &auth.Tenant{ID: "t-1"}

		d := e.SignedTenantAccess(context.Background(), signedTenantRequest(tenant, "deployment-secret"))
		if d.Kind != access.DecisionScoped {
			t.Fatalf("Decision = %v, want scoped", d.Kind)
		}
	})

	t.Run("no secret anywhere denies", func(t *testing.T) {
		e := newTestEngine(access.SigningConfig{Require: true})
		tenant := &auth.Tenant{ID: "t-1"}

		if d := e.SignedTenantAccess(context.Background(), signedTenantRequest(tenant, "whatever")); d.Allowed() {
			t.Error("Misconfigured deployment must deny, not fail open")
		}
	})

	t.Run("in-process request without transport denied when required", func(t *testing.T) {
		e := newTestEngine(signingOn)
		req := &access.Request{
			Auth:   &auth.Context{Identity: auth.TenantIdentity(&auth.Tenant{ID: "t-1", Secret: "s"})},
			Origin: origin.External,
		}

		if d := e.SignedTenantAccess(context.Background(), req); d.Allowed() {
			t.Error("External-classified request with no HTTP transport should be denied")
		}
	})
}
