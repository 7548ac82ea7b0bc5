// Package store defines the document-store adapter the policy layer hands
// its decisions to. The store engine itself is an external collaborator; this
// package owns the adapter interface, decision merging, and a small in-memory
// implementation used by tests and single-node deployments.
package store

import (
	"context"
	"errors"

	"github.com/folioworks/folio/pkg/access"
)

// ErrNotFound is returned when no document matches
var ErrNotFound = errors.New("store: document not found")

// Document is one record in a collection
type Document map[string]any

// ID returns the document id, "" when absent
func (d Document) ID() string {
	if id, ok := d["id"].(string); ok {
		return id
	}
	return ""
}

// Store is the document-store adapter consumed by the API layer
type Store interface {
	// FindByID fetches a single document
	FindByID(ctx context.Context, collection, id string) (Document, error)

	// Find fetches all documents matching the filter; a nil filter matches
	// everything
	Find(ctx context.Context, collection string, filter access.Filter) ([]Document, error)

	// Insert adds a document to a collection
	Insert(ctx context.Context, collection string, doc Document) error

	// Update replaces the fields of the document with the given id
	Update(ctx context.Context, collection, id string, changes Document) (Document, error)

	// Delete removes all documents matching the filter, returning the count
	Delete(ctx context.Context, collection string, filter access.Filter) (int, error)
}

// ApplyDecision merges an access decision into a base query filter. The
// returned bool is false when the decision denies access outright; Allow
// passes the base filter through; Scoped conjoins the decision's filter with
// the base.
func ApplyDecision(decision access.Decision, base access.Filter) (access.Filter, bool) {
	switch decision.Kind {
	case access.DecisionAllow:
		return base, true
	case access.DecisionScoped:
		if base == nil {
			return decision.Filter, true
		}
		return access.And(base, decision.Filter), true
	default:
		return nil, false
	}
}
