package access

import (
	"context"
	"net/http"

	"github.com/folioworks/folio/pkg/auth"
	"github.com/folioworks/folio/pkg/observability"
	"github.com/folioworks/folio/pkg/origin"
	"github.com/folioworks/folio/pkg/signature"
	"github.com/folioworks/folio/pkg/tenants"
)

// Surface identifies which product surface a request came through; some
// collection rules differ between the public API and the admin UI.
type Surface int

const (
	SurfaceAPI Surface = iota
	SurfaceAdminUI
)

// Request is everything a predicate may observe about one operation. It is
// built once per request and never mutated; predicates are pure over it.
type Request struct {
	HTTP       *http.Request // nil for in-process calls
	Auth       *auth.Context
	Origin     origin.Origin
	Surface    Surface
	StaticFile bool // static-file reads skip tenant scoping entirely
}

// identity returns the resolved identity, nil when unauthenticated
func (r *Request) identity() *auth.Identity {
	if r.Auth == nil {
		return nil
	}
	return r.Auth.Identity
}

// Policy is a pure predicate for one (resource, operation) pair. Policies are
// total: they always resolve to one of the three decision values and never
// return an error.
type Policy func(ctx context.Context, req *Request) Decision

// Operation names used by the built-in registry
const (
	OpRead   = "read"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ResourceUsers is the users collection resource name
const ResourceUsers = "users"

// SigningConfig carries the deployment's signature-verification posture
type SigningConfig struct {
	// Require mandates signature verification for external tenant calls
	Require bool
	// Secret is the deployment-wide fallback signing secret, used when a
	// tenant record carries none
	Secret string
}

// Engine is the registry of policy predicates. The registry is fixed after
// construction; evaluation holds no mutable state and is safe for concurrent
// use across requests.
type Engine struct {
	policies map[string]Policy
	scopes   *tenants.Resolver
	verifier *signature.Verifier
	signing  SigningConfig
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewEngine creates an engine with the built-in user policies registered
func NewEngine(scopes *tenants.Resolver, verifier *signature.Verifier, signing SigningConfig, logger *observability.Logger, metrics *observability.Metrics) *Engine {
	e := &Engine{
		policies: make(map[string]Policy),
		scopes:   scopes,
		verifier: verifier,
		signing:  signing,
		logger:   logger,
		metrics:  metrics,
	}

	e.Register(ResourceUsers, OpRead, e.readUsers)
	e.Register(ResourceUsers, OpCreate, e.createUsers)
	e.Register(ResourceUsers, OpUpdate, e.updateUsers)
	e.Register(ResourceUsers, OpDelete, e.deleteUsers)

	return e
}

// Register installs a predicate for a (resource, operation) pair
func (e *Engine) Register(resource, op string, p Policy) {
	e.policies[resource+":"+op] = p
}

// RegisterTenantCollection wires the two generic tenant policies for a
// collection carrying a tenant relation: scoped reads for every surface, and
// the signed-access rule for writes from server-to-server tenant callers.
func (e *Engine) RegisterTenantCollection(collection string) {
	e.Register(collection, OpRead, e.TenantCollectionRead)
	for _, op := range []string{OpCreate, OpUpdate, OpDelete} {
		e.Register(collection, op, e.SignedTenantAccess)
	}
}

// Evaluate runs the predicate registered for (resource, op). An unregistered
// pair fails closed.
func (e *Engine) Evaluate(ctx context.Context, resource, op string, req *Request) Decision {
	policy, ok := e.policies[resource+":"+op]
	if !ok {
		e.observe(resource, op, Deny())
		return Deny()
	}
	decision := policy(ctx, req)
	e.observe(resource, op, decision)
	return decision
}

// scope returns the request's tenant scope, preferring the one resolved by
// middleware and cached on the context; recomputation is pure so in-process
// callers that skipped the middleware get the same answer.
func (e *Engine) scope(ctx context.Context, req *Request) *tenants.Scope {
	if s := tenants.ScopeFromContext(ctx); s != nil {
		return s
	}
	return e.scopes.Resolve(req.HTTP, req.identity())
}

func (e *Engine) observe(resource, op string, d Decision) {
	if e.metrics != nil {
		e.metrics.PolicyDecisionsTotal.WithLabelValues(resource, op, d.Kind.String()).Inc()
	}
}
