package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DBLogger implements audit logging to PostgreSQL
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-backed audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}
	return logger, nil
}

// ensureTable creates the audit_events table if it doesn't exist
func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		principal_id VARCHAR(255),
		principal_kind VARCHAR(20),
		tenant_id VARCHAR(255),
		resource_type VARCHAR(50),
		resource_id VARCHAR(255),
		ip_address VARCHAR(45),
		user_agent TEXT,
		request_id VARCHAR(100),
		method VARCHAR(10),
		path TEXT,
		message TEXT,
		metadata JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events (timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_principal ON audit_events (principal_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_tenant ON audit_events (tenant_id);
	`
	_, err := l.db.Exec(query)
	return err
}

// Log implements Logger
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadata []byte
	if event.Metadata != nil {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			logrus.WithError(err).Warn("failed to marshal audit metadata, dropping it")
			metadata = nil
		}
	}

	query := `
		INSERT INTO audit_events (
			timestamp, event_type, status, principal_id, principal_kind,
			tenant_id, resource_type, resource_id, ip_address, user_agent,
			request_id, method, path, message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := l.db.ExecContext(ctx, query,
		event.Timestamp, event.EventType, event.Status,
		nullable(event.PrincipalID), nullable(event.PrincipalKind),
		nullable(event.TenantID), nullable(string(event.ResourceType)),
		nullable(event.ResourceID), nullable(event.IPAddress),
		nullable(event.UserAgent), nullable(event.RequestID),
		nullable(event.Method), nullable(event.Path),
		nullable(event.Message), metadata,
	)
	if err != nil {
		// Audit writes must not take the request down with them; the loss
		// itself is logged so an operator can notice a silent gap.
		logrus.WithError(err).Error("failed to write audit event")
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// LogAuthentication implements Logger
func (l *DBLogger) LogAuthentication(ctx context.Context, eventType EventType, principalID string, status EventStatus, message string) error {
	event := newEvent(eventType, status)
	event.PrincipalID = principalID
	event.Message = message
	return l.Log(ctx, event)
}

// LogAuthorization implements Logger
func (l *DBLogger) LogAuthorization(ctx context.Context, eventType EventType, principalID string, resourceType ResourceType, resourceID string, status EventStatus, message string) error {
	event := newEvent(eventType, status)
	event.PrincipalID = principalID
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	return l.Log(ctx, event)
}

// Close implements Logger; the pool is owned by the caller
func (l *DBLogger) Close() error { return nil }

// Search returns events matching the filter, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	query := `
		SELECT id, timestamp, event_type, status,
		       COALESCE(principal_id, ''), COALESCE(principal_kind, ''),
		       COALESCE(tenant_id, ''), COALESCE(resource_type, ''),
		       COALESCE(resource_id, ''), COALESCE(message, '')
		FROM audit_events
		WHERE ($1 = '' OR principal_id = $1)
		  AND ($2 = '' OR tenant_id = $2)
		  AND ($3 = '' OR event_type = $3)
		ORDER BY timestamp DESC
		LIMIT $4
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx, query,
		filter.PrincipalID, filter.TenantID, string(filter.EventType), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var resourceType string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &e.Status,
			&e.PrincipalID, &e.PrincipalKind, &e.TenantID,
			&resourceType, &e.ResourceID, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.ResourceType = ResourceType(resourceType)
		events = append(events, e)
	}
	return events, rows.Err()
}

// SearchFilter narrows audit event queries
type SearchFilter struct {
	PrincipalID string
	TenantID    string
	EventType   EventType
	Limit       int
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
