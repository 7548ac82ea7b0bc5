package auth

// Kind discriminates the two identity variants. It is set at construction and
// never inferred from the shape of the principal.
type Kind int

const (
	KindUser Kind = iota + 1
	KindTenant
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindTenant:
		return "tenant"
	default:
		return "unknown"
	}
}

// Identity is the tagged union of the two authenticatable principals: a human
// session user or a tenant acting through its API key. Exactly one variant is
// populated; the tag is authoritative.
type Identity struct {
	kind   Kind
	user   *User
	tenant *Tenant
}

// UserIdentity wraps a user principal
func UserIdentity(u *User) *Identity {
	return &Identity{kind: KindUser, user: u}
}

// TenantIdentity wraps a tenant principal
func TenantIdentity(t *Tenant) *Identity {
	return &Identity{kind: KindTenant, tenant: t}
}

// Kind returns the discriminant tag
func (i *Identity) Kind() Kind { return i.kind }

// User returns the user principal when the identity is a user
func (i *Identity) User() (*User, bool) {
	if i.kind != KindUser {
		return nil, false
	}
	return i.user, true
}

// Tenant returns the tenant principal when the identity is a tenant
func (i *Identity) Tenant() (*Tenant, bool) {
	if i.kind != KindTenant {
		return nil, false
	}
	return i.tenant, true
}

// IsSystem reports whether the identity is a user with the system role
func (i *Identity) IsSystem() bool {
	return i != nil && i.kind == KindUser && i.user.IsSystem()
}

// PrincipalID returns the id of whichever principal is populated
func (i *Identity) PrincipalID() string {
	switch i.kind {
	case KindUser:
		return i.user.ID
	case KindTenant:
		return i.tenant.ID
	default:
		return ""
	}
}
