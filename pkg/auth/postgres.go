package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements user and session lookups over PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// UserBySessionHash resolves an unexpired session to its active user.
// Implements SessionStore.
func (s *PostgresStore) UserBySessionHash(ctx context.Context, hash string) (*User, error) {
	query := `
		SELECT u.id, u.email, u.role, u.is_active, u.created_at, u.updated_at
		FROM users u
		JOIN sessions s ON s.user_id = u.id
		WHERE s.token_hash = $1
		  AND s.expires_at > NOW()
		  AND u.is_active = true
	`

	user := &User{}
	err := s.db.QueryRowContext(ctx, query, hash).Scan(
		&user.ID, &user.Email, &user.Role, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	if err := s.loadMemberships(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UserByID loads a user with memberships
func (s *PostgresStore) UserByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, role, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &User{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Role, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.loadMemberships(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// loadMemberships populates the user's tenant memberships
func (s *PostgresStore) loadMemberships(ctx context.Context, user *User) error {
	query := `
		SELECT tenant_id, role
		FROM tenant_memberships
		WHERE user_id = $1
		ORDER BY tenant_id
	`

	rows, err := s.db.QueryContext(ctx, query, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m TenantMembership
		if err := rows.Scan(&m.TenantID, &m.Role); err != nil {
			return fmt.Errorf("failed to scan membership: %w", err)
		}
		user.Memberships = append(user.Memberships, m)
	}
	return rows.Err()
}

// CreateSession records a session hash for a user. Issuance (login, MFA,
// password checks) belongs to the identity provider; this only persists the
// already-issued credential so Resolve can validate it.
func (s *PostgresStore) CreateSession(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO sessions (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	if _, err := s.db.ExecContext(ctx, query, userID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry, returning the
// number swept. Run periodically by the janitor.
func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	return res.RowsAffected()
}

// ListUsers returns every user together with their tenant memberships.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]*User, error) {
	query := `
		SELECT id, email, role, is_active, created_at, updated_at
		FROM users
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user := &User{}
		if err := rows.Scan(&user.ID, &user.Email, &user.Role, &user.IsActive,
			&user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, user := range users {
		if err := s.loadMemberships(ctx, user); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// CreateUser inserts a user record and its memberships.
func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO users (id, email, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`
	if _, err := tx.ExecContext(ctx, query, user.ID, user.Email, user.Role, user.IsActive); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	for _, m := range user.Memberships {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tenant_memberships (user_id, tenant_id, role) VALUES ($1, $2, $3)`,
			user.ID, m.TenantID, m.Role); err != nil {
			return fmt.Errorf("failed to add membership: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateUser persists changes to a user's mutable fields.
func (s *PostgresStore) UpdateUser(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET email = $2, role = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, user.ID, user.Email, user.Role, user.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user and their sessions and memberships.
func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tenant_memberships WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// UsersByTenants lists users holding membership in any of the given tenants
func (s *PostgresStore) UsersByTenants(ctx context.Context, tenantIDs []string) ([]*User, error) {
	query := `
		SELECT DISTINCT u.id, u.email, u.role, u.is_active, u.created_at, u.updated_at
		FROM users u
		JOIN tenant_memberships m ON m.user_id = u.id
		WHERE m.tenant_id = ANY($1)
		ORDER BY u.id
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(tenantIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user := &User{}
		if err := rows.Scan(&user.ID, &user.Email, &user.Role, &user.IsActive,
			&user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Policy filters address memberships, so hydrate them like ListUsers.
	for _, user := range users {
		if err := s.loadMemberships(ctx, user); err != nil {
			return nil, err
		}
	}
	return users, nil
}
