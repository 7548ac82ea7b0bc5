package tenants

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/folioworks/folio/pkg/auth"
)

// PostgresService implements the tenant directory using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// TenantByKeyHash resolves a tenant API key hash to its active tenant.
// Implements auth.TenantKeyStore.
func (s *PostgresService) TenantByKeyHash(ctx context.Context, hash string) (*auth.Tenant, error) {
	query := `
		SELECT id, name, slug, domains, signing_secret, api_key_hash, is_active, created_at, updated_at
		FROM tenants
		WHERE api_key_hash = $1 AND is_active = true
	`
	return s.scanTenant(s.db.QueryRowContext(ctx, query, hash))
}

// TenantByID loads a tenant by id
func (s *PostgresService) TenantByID(ctx context.Context, id string) (*auth.Tenant, error) {
	query := `
		SELECT id, name, slug, domains, signing_secret, api_key_hash, is_active, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	return s.scanTenant(s.db.QueryRowContext(ctx, query, id))
}

// CreateTenant creates a tenant together with its first API key. The plaintext
// key is returned once and never stored.
func (s *PostgresService) CreateTenant(ctx context.Context, tenant *auth.Tenant) (apiKey string, err error) {
	if tenant.Slug == "" {
		tenant.Slug = generateSlug(tenant.Name)
	}
	tenant.IsActive = true

	key, keyHash, _, err := auth.GenerateAPIKey()
	if err != nil {
		return "", err
	}
	tenant.APIKeyHash = keyHash

	query := `
		INSERT INTO tenants (id, name, slug, domains, signing_secret, api_key_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		tenant.ID, tenant.Name, tenant.Slug, pq.Array(tenant.Domains),
		tenant.Secret, tenant.APIKeyHash, tenant.IsActive,
	).Scan(&tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create tenant: %w", err)
	}
	return key, nil
}

// RotateAPIKey replaces a tenant's API key, returning the new plaintext key
func (s *PostgresService) RotateAPIKey(ctx context.Context, tenantID string) (string, error) {
	key, keyHash, _, err := auth.GenerateAPIKey()
	if err != nil {
		return "", err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET api_key_hash = $1, updated_at = NOW() WHERE id = $2`,
		keyHash, tenantID)
	if err != nil {
		return "", fmt.Errorf("failed to rotate API key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", auth.ErrNotFound
	}
	return key, nil
}

// AddMember grants a user membership in a tenant
func (s *PostgresService) AddMember(ctx context.Context, tenantID, userID string, role auth.MembershipRole) error {
	query := `
		INSERT INTO tenant_memberships (tenant_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`
	if _, err := s.db.ExecContext(ctx, query, tenantID, userID, role); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember revokes a user's membership in a tenant
func (s *PostgresService) RemoveMember(ctx context.Context, tenantID, userID string) error {
	query := `DELETE FROM tenant_memberships WHERE tenant_id = $1 AND user_id = $2`
	if _, err := s.db.ExecContext(ctx, query, tenantID, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// DeactivateTenant suspends a tenant; its API key stops resolving immediately
func (s *PostgresService) DeactivateTenant(ctx context.Context, tenantID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET is_active = false, updated_at = NOW() WHERE id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to deactivate tenant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *PostgresService) scanTenant(row *sql.Row) (*auth.Tenant, error) {
	tenant := &auth.Tenant{}
	var domains pq.StringArray
	err := row.Scan(
		&tenant.ID, &tenant.Name, &tenant.Slug, &domains,
		&tenant.Secret, &tenant.APIKeyHash, &tenant.IsActive,
		&tenant.CreatedAt, &tenant.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	tenant.Domains = domains
	return tenant, nil
}

// generateSlug derives a URL-safe slug from a display name
func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	var b strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}
