package auth

import "time"

// Role represents platform-level user roles
type Role string

const (
	// RoleUser is an ordinary human account; tenant rights come from memberships.
	RoleUser Role = "user"
	// RoleAdmin marks a user who administers one or more tenants; which ones is
	// decided per membership, not by this flag.
	RoleAdmin Role = "admin"
	// RoleSystem grants unrestricted cross-tenant access.
	RoleSystem Role = "system"
)

// MembershipRole represents a user's role inside a single tenant
type MembershipRole string

const (
	MembershipUser  MembershipRole = "user"
	MembershipAdmin MembershipRole = "admin"
)

// TenantMembership ties a user to one tenant with a per-tenant role
type TenantMembership struct {
	TenantID string         `json:"tenant_id"`
	Role     MembershipRole `json:"role"`
}

// User represents a human (or bot) account
type User struct {
	ID          string             `json:"id"`
	Email       string             `json:"email"`
	Role        Role               `json:"role"`
	Memberships []TenantMembership `json:"memberships,omitempty"`
	IsActive    bool               `json:"is_active"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// IsSystem reports whether the user holds the cross-tenant system role
func (u *User) IsSystem() bool {
	return u.Role == RoleSystem
}

// MemberOf reports whether the user holds any membership in the tenant
func (u *User) MemberOf(tenantID string) bool {
	for _, m := range u.Memberships {
		if m.TenantID == tenantID {
			return true
		}
	}
	return false
}

// AdminOf reports whether the user holds an admin membership in the tenant
func (u *User) AdminOf(tenantID string) bool {
	for _, m := range u.Memberships {
		if m.TenantID == tenantID && m.Role == MembershipAdmin {
			return true
		}
	}
	return false
}

// AdminTenantIDs returns the ids of every tenant the user administers
func (u *User) AdminTenantIDs() []string {
	var ids []string
	for _, m := range u.Memberships {
		if m.Role == MembershipAdmin {
			ids = append(ids, m.TenantID)
		}
	}
	return ids
}

// TenantIDs returns the ids of every tenant the user belongs to
func (u *User) TenantIDs() []string {
	ids := make([]string, 0, len(u.Memberships))
	for _, m := range u.Memberships {
		ids = append(ids, m.TenantID)
	}
	return ids
}

// Tenant is an isolated workspace boundary and itself an authenticatable
// principal: server-to-server callers authenticate as the tenant through its
// long-lived API key and sign requests with its secret.
type Tenant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	Domains    []string  `json:"domains,omitempty"`
	Secret     string    `json:"-"` // request-signing secret, never serialized
	APIKeyHash string    `json:"-"` // SHA-256 of the tenant API key
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
