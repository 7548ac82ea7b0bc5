package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/folioworks/folio/pkg/access"
	"github.com/folioworks/folio/pkg/auth"
	"github.com/folioworks/folio/pkg/observability"
	"github.com/folioworks/folio/pkg/signature"
	"github.com/folioworks/folio/pkg/store"
	"github.com/folioworks/folio/pkg/tenants"
)

// fakeDirectory is an in-memory UserDirectory for handler tests.
type fakeDirectory struct {
	users map[string]*auth.User
	order []string
}

func newFakeDirectory(users ...*auth.User) *fakeDirectory {
	d := &fakeDirectory{users: make(map[string]*auth.User)}
	for _, u := range users {
		d.users[u.ID] = u
		d.order = append(d.order, u.ID)
	}
	return d
}

func (d *fakeDirectory) UserByID(_ context.Context, id string) (*auth.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u, nil
}

func (d *fakeDirectory) ListUsers(_ context.Context) ([]*auth.User, error) {
	out := make([]*auth.User, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.users[id])
	}
	return out, nil
}

func (d *fakeDirectory) UsersByTenants(_ context.Context, tenantIDs []string) ([]*auth.User, error) {
	out := []*auth.User{}
	for _, id := range d.order {
		u := d.users[id]
		for _, tid := range tenantIDs {
			if u.MemberOf(tid) {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) CreateUser(_ context.Context, u *auth.User) error {
	d.users[u.ID] = u
	d.order = append(d.order, u.ID)
	return nil
}

func (d *fakeDirectory) UpdateUser(_ context.Context, u *auth.User) error {
	if _, ok := d.users[u.ID]; !ok {
		return auth.ErrNotFound
	}
	d.users[u.ID] = u
	return nil
}

func (d *fakeDirectory) DeleteUser(_ context.Context, id string) error {
	if _, ok := d.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(d.users, id)
	for i, uid := range d.order {
		if uid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return nil
}

func newTestServer(t *testing.T, directory *fakeDirectory) (*Server, *store.MemoryStore) {
	t.Helper()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	engine := access.NewEngine(
		tenants.NewResolver("folio"),
		signature.NewVerifier(),
		access.SigningConfig{},
		logger,
		nil,
	)
	engine.RegisterTenantCollection("articles")

	docs := store.NewMemoryStore()
	srv := NewServer(ServerConfig{
		Engine:    engine,
		Users:     directory,
		Documents: docs,
		Scopes:    tenants.NewResolver("folio"),
		Logger:    logger,
	})
	return srv, docs
}

func asUser(r *http.Request, u *auth.User) *http.Request {
	return r.WithContext(auth.WithContext(r.Context(), &auth.Context{Identity: auth.UserIdentity(u)}))
}

func asTenant(r *http.Request, id string) *http.Request {
	tenant := &auth.Tenant{ID: id, IsActive: true}
	return r.WithContext(auth.WithContext(r.Context(), &auth.Context{Identity: auth.TenantIdentity(tenant)}))
}

func withScopeCookie(r *http.Request, tenantID string) *http.Request {
	r.AddCookie(&http.Cookie{Name: "folio-tenant", Value: tenantID})
	return r
}

func do(srv *Server, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, r)
	return rec
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

var (
	systemUser = &auth.User{ID: "u-sys", Email: "sys@folio.dev", Role: auth.RoleSystem, IsActive: true}
	plainUser  = &auth.User{
		ID: "u-1", Email: "one@folio.dev", Role: auth.RoleUser, IsActive: true,
		Memberships: []auth.TenantMembership{{TenantID: "t-1", Role: auth.MembershipUser}},
	}
	otherUser = &auth.User{
		ID: "u-2", Email: "two@folio.dev", Role: auth.RoleUser, IsActive: true,
		Memberships: []auth.TenantMembership{{TenantID: "t-2", Role: auth.MembershipUser}},
	}
)

func TestListUsers(t *testing.T) {
	srv, _ := newTestServer(t, newFakeDirectory(systemUser, plainUser, otherUser))

	t.Run("system sees everyone", func(t *testing.T) {
		rec := do(srv, asUser(httptest.NewRequest("GET", "/api/users", nil), systemUser))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var got []json.RawMessage
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("listed %d users, want 3", len(got))
		}
	})

	t.Run("plain user sees only self", func(t *testing.T) {
		rec := do(srv, asUser(httptest.NewRequest("GET", "/api/users", nil), plainUser))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var got []struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 1 || got[0].ID != "u-1" {
			t.Errorf("listed %v, want only u-1", got)
		}
	})

	t.Run("anonymous denied", func(t *testing.T) {
		rec := do(srv, httptest.NewRequest("GET", "/api/users", nil))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})
}

func TestListTenantMembers(t *testing.T) {
	admin := &auth.User{
		ID: "u-adm", Email: "adm@folio.dev", Role: auth.RoleAdmin, IsActive: true,
		Memberships: []auth.TenantMembership{{TenantID: "t-1", Role: auth.MembershipAdmin}},
	}
	srv, _ := newTestServer(t, newFakeDirectory(admin, plainUser, otherUser))

	list := func(t *testing.T, caller *auth.User, tenantID string) []struct {
		ID string `json:"id"`
	} {
		t.Helper()
		rec := do(srv, asUser(httptest.NewRequest("GET", "/api/tenants/"+tenantID+"/members", nil), caller))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		var got []struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return got
	}

	t.Run("tenant admin sees the members", func(t *testing.T) {
		got := list(t, admin, "t-1")
		ids := make(map[string]bool, len(got))
		for _, u := range got {
			ids[u.ID] = true
		}
		if len(got) != 2 || !ids["u-adm"] || !ids["u-1"] {
			t.Errorf("members = %v, want u-adm and u-1", got)
		}
	})

	t.Run("plain member sees only self", func(t *testing.T) {
		got := list(t, plainUser, "t-1")
		if len(got) != 1 || got[0].ID != "u-1" {
			t.Errorf("members = %v, want only u-1", got)
		}
	})

	t.Run("foreign tenant lists empty", func(t *testing.T) {
		if got := list(t, plainUser, "t-2"); len(got) != 0 {
			t.Errorf("members = %v, want none visible", got)
		}
	})

	t.Run("anonymous denied", func(t *testing.T) {
		rec := do(srv, httptest.NewRequest("GET", "/api/tenants/t-1/members", nil))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})
}

func TestGetUser(t *testing.T) {
	srv, _ := newTestServer(t, newFakeDirectory(systemUser, plainUser, otherUser))

	t.Run("self", func(t *testing.T) {
		rec := do(srv, asUser(httptest.NewRequest("GET", "/api/users/u-1", nil), plainUser))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("foreign user is opaque", func(t *testing.T) {
		rec := do(srv, asUser(httptest.NewRequest("GET", "/api/users/u-2", nil), plainUser))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["error"] != "forbidden" {
			t.Errorf("body = %v, want opaque forbidden", body)
		}
	})
}

func TestCreateUser(t *testing.T) {
	t.Run("system creates with generated id", func(t *testing.T) {
		directory := newFakeDirectory(systemUser)
		srv, _ := newTestServer(t, directory)

		body := jsonBody(t, map[string]interface{}{"email": "new@folio.dev"})
		rec := do(srv, asUser(httptest.NewRequest("POST", "/api/users", body), systemUser))
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
		}
		var created auth.User
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if created.ID == "" {
			t.Error("created user has no id")
		}
		if created.Role != auth.RoleUser {
			t.Errorf("role = %q, want default user", created.Role)
		}
		if _, ok := directory.users[created.ID]; !ok {
			t.Error("user not persisted in directory")
		}
	})

	t.Run("missing email rejected", func(t *testing.T) {
		srv, _ := newTestServer(t, newFakeDirectory(systemUser))

		body := jsonBody(t, map[string]interface{}{"role": "user"})
		rec := do(srv, asUser(httptest.NewRequest("POST", "/api/users", body), systemUser))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("plain user denied", func(t *testing.T) {
		srv, _ := newTestServer(t, newFakeDirectory(plainUser))

		body := jsonBody(t, map[string]interface{}{"email": "new@folio.dev"})
		rec := do(srv, asUser(httptest.NewRequest("POST", "/api/users", body), plainUser))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})
}

func TestDeleteUser(t *testing.T) {
	t.Run("system deletes another user", func(t *testing.T) {
		directory := newFakeDirectory(systemUser, plainUser)
		srv, _ := newTestServer(t, directory)

		rec := do(srv, asUser(httptest.NewRequest("DELETE", "/api/users/u-1", nil), systemUser))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		if _, ok := directory.users["u-1"]; ok {
			t.Error("user still present after delete")
		}
	})

	t.Run("nobody deletes self", func(t *testing.T) {
		directory := newFakeDirectory(systemUser)
		srv, _ := newTestServer(t, directory)

		rec := do(srv, asUser(httptest.NewRequest("DELETE", "/api/users/u-sys", nil), systemUser))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		if _, ok := directory.users["u-sys"]; !ok {
			t.Error("user removed despite denial")
		}
	})
}

func seedArticles(t *testing.T, docs *store.MemoryStore) {
	t.Helper()
	for _, doc := range []store.Document{
		{"id": "a-1", "tenant": "t-1", "title": "first"},
		{"id": "a-2", "tenant": "t-1", "title": "second"},
		{"id": "a-3", "tenant": "t-2", "title": "foreign"},
	} {
		if err := docs.Insert(context.Background(), "articles", doc); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestListDocuments_ScopedToTenant(t *testing.T) {
	srv, docs := newTestServer(t, newFakeDirectory(plainUser))
	seedArticles(t, docs)

	req := withScopeCookie(asUser(httptest.NewRequest("GET", "/api/collections/articles", nil), plainUser), "t-1")
	rec := do(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var got []store.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("listed %d documents, want 2", len(got))
	}
	for _, doc := range got {
		if doc["tenant"] != "t-1" {
			t.Errorf("leaked document %v from another tenant", doc.ID())
		}
	}
}

func TestGetDocument(t *testing.T) {
	srv, docs := newTestServer(t, newFakeDirectory(plainUser))
	seedArticles(t, docs)

	scoped := func(method, path string) *http.Request {
		return withScopeCookie(asUser(httptest.NewRequest(method, path, nil), plainUser), "t-1")
	}

	t.Run("own document", func(t *testing.T) {
		rec := do(srv, scoped("GET", "/api/collections/articles/a-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("foreign document denied", func(t *testing.T) {
		rec := do(srv, scoped("GET", "/api/collections/articles/a-3"))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("unknown document", func(t *testing.T) {
		rec := do(srv, scoped("GET", "/api/collections/articles/nope"))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("unregistered collection denied", func(t *testing.T) {
		rec := do(srv, scoped("GET", "/api/collections/secrets/a-1"))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})
}

// Tenant callers get scoped write decisions, so their documents are pinned
// to their own tenant; user callers on the admin surface write unscoped.
func TestCreateDocument_StampsScopedTenant(t *testing.T) {
	srv, docs := newTestServer(t, newFakeDirectory(plainUser))

	body := jsonBody(t, map[string]interface{}{"title": "fresh"})
	req := asTenant(httptest.NewRequest("POST", "/api/collections/articles", body), "t-1")
	rec := do(srv, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created store.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["tenant"] != "t-1" {
		t.Errorf("tenant = %v, want stamped t-1", created["tenant"])
	}
	if created.ID() == "" {
		t.Error("no id generated")
	}
	if _, err := docs.FindByID(context.Background(), "articles", created.ID()); err != nil {
		t.Errorf("document not persisted: %v", err)
	}
}

func TestCreateDocument_ForeignTenantDenied(t *testing.T) {
	srv, _ := newTestServer(t, newFakeDirectory(plainUser))

	body := jsonBody(t, map[string]interface{}{"title": "sneaky", "tenant": "t-2"})
	req := asTenant(httptest.NewRequest("POST", "/api/collections/articles", body), "t-1")
	rec := do(srv, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestUpdateDocument(t *testing.T) {
	t.Run("updates own document", func(t *testing.T) {
		srv, docs := newTestServer(t, newFakeDirectory(plainUser))
		seedArticles(t, docs)

		body := jsonBody(t, map[string]interface{}{"title": "renamed"})
		req := asTenant(httptest.NewRequest("PATCH", "/api/collections/articles/a-1", body), "t-1")
		rec := do(srv, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		doc, err := docs.FindByID(context.Background(), "articles", "a-1")
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if doc["title"] != "renamed" {
			t.Errorf("title = %v, want renamed", doc["title"])
		}
	})

	t.Run("cannot move document to another tenant", func(t *testing.T) {
		srv, docs := newTestServer(t, newFakeDirectory(plainUser))
		seedArticles(t, docs)

		body := jsonBody(t, map[string]interface{}{"tenant": "t-2"})
		req := asTenant(httptest.NewRequest("PATCH", "/api/collections/articles/a-1", body), "t-1")
		rec := do(srv, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		doc, err := docs.FindByID(context.Background(), "articles", "a-1")
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if doc["tenant"] != "t-1" {
			t.Errorf("tenant = %v, document escaped its scope", doc["tenant"])
		}
	})
}

func TestDeleteDocument(t *testing.T) {
	srv, docs := newTestServer(t, newFakeDirectory(plainUser))
	seedArticles(t, docs)

	req := asTenant(httptest.NewRequest("DELETE", "/api/collections/articles/a-2", nil), "t-1")
	rec := do(srv, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if _, err := docs.FindByID(context.Background(), "articles", "a-2"); err == nil {
		t.Error("document still present after delete")
	}
}
