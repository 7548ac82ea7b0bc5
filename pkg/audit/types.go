// Package audit records the security-relevant events of the authentication
// and authorization core: identity resolutions, signature verifications and
// policy decisions.
package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthSessionResolve     EventType = "auth.session_resolve"
	EventTypeAuthSessionResolveFail EventType = "auth.session_resolve_fail"
	EventTypeAuthAPIKeyResolve      EventType = "auth.api_key_resolve"
	EventTypeAuthAPIKeyResolveFail  EventType = "auth.api_key_resolve_fail"
	EventTypeAuthAPIKeyRotate       EventType = "auth.api_key_rotate"

	// Signature protocol events
	EventTypeSignatureVerified EventType = "signature.verified"
	EventTypeSignatureRejected EventType = "signature.rejected"

	// Authorization events
	EventTypeAuthzDecision     EventType = "authz.decision"
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"
	EventTypeAuthzMisconfig    EventType = "authz.misconfiguration"

	// Tenancy events
	EventTypeTenantScopeResolved EventType = "tenant.scope_resolved"
	EventTypeTenantScopeRejected EventType = "tenant.scope_rejected"
	EventTypeTenantCreate        EventType = "tenant.create"
	EventTypeTenantDeactivate    EventType = "tenant.deactivate"
	EventTypeTenantMemberAdd     EventType = "tenant.member_add"
	EventTypeTenantMemberRemove  EventType = "tenant.member_remove"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceTypeUser       ResourceType = "user"
	ResourceTypeTenant     ResourceType = "tenant"
	ResourceTypeCollection ResourceType = "collection"
	ResourceTypeSession    ResourceType = "session"
	ResourceTypeAPIKey     ResourceType = "api_key"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	PrincipalID   string `json:"principal_id,omitempty"`
	PrincipalKind string `json:"principal_kind,omitempty"`
	TenantID      string `json:"tenant_id,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	// Additional details
	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}
