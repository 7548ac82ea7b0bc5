// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.Context
	// Set by: middleware.Identity (pkg/middleware/identity.go)
	// Required by: policy evaluation, tenant scope resolution, audit trail
	// Type: *auth.Context
	AuthKey Key = "auth_context"

	// ScopeKey contains *tenants.Scope
	// Set by: middleware.TenantScope (pkg/middleware/tenant.go)
	// Required by: tenant-scoped policy predicates, store filter merging
	// Type: *tenants.Scope
	ScopeKey Key = "tenant_scope"

	// OriginKey contains origin.Origin
	// Set by: middleware.Origin (pkg/middleware/origin.go), once per request
	// Required by: signed-collection policy (verification skip for internal calls)
	// Type: origin.Origin
	OriginKey Key = "request_origin"

	// DecisionKey contains access.Decision
	// Set by: middleware.Authorize (pkg/middleware/authorize.go)
	// Required by: handlers merging the decision into their store query
	// Type: access.Decision
	DecisionKey Key = "access_decision"

	// RequestIDKey contains request ID string (UUID)
	// Set by: HTTP middleware
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: Observability middleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// AuditLoggerKey contains audit.Logger interface
	// Set by: the composition root's audit middleware (cmd/folio/main.go)
	// Used by: Handlers that record audit events
	// Type: audit.Logger
	AuditLoggerKey Key = "audit_logger"
)
