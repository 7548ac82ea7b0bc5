package audit

import (
	"context"
	"time"

	"github.com/folioworks/folio/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// LogAuthentication logs an identity resolution event
	LogAuthentication(ctx context.Context, eventType EventType, principalID string, status EventStatus, message string) error

	// LogAuthorization logs a policy decision event
	LogAuthorization(ctx context.Context, eventType EventType, principalID string, resourceType ResourceType, resourceID string, status EventStatus, message string) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextkeys.AuditLoggerKey, logger)
}

// FromContext retrieves the audit logger from context, a no-op logger when
// none is configured
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return &noOpLogger{}
}

// noOpLogger is a logger that does nothing
type noOpLogger struct{}

func (n *noOpLogger) Log(context.Context, *Event) error { return nil }

func (n *noOpLogger) LogAuthentication(context.Context, EventType, string, EventStatus, string) error {
	return nil
}

func (n *noOpLogger) LogAuthorization(context.Context, EventType, string, ResourceType, string, EventStatus, string) error {
	return nil
}

func (n *noOpLogger) Close() error { return nil }

// newEvent stamps the shared fields of an audit event
func newEvent(eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
	}
}
