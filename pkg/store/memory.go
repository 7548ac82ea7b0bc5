package store

import (
	"context"
	"strings"
	"sync"

	"github.com/folioworks/folio/pkg/access"
)

// MemoryStore is an in-memory document store evaluating the filter fragment
// shapes the policy layer produces: equals, not_equals, in, and the or/and
// combinators. Dotted field paths traverse nested documents and arrays of
// subdocuments.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Document
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]Document),
	}
}

// Insert adds a document to a collection
func (s *MemoryStore) Insert(_ context.Context, collection string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], doc)
	return nil
}

// Update replaces the fields of the document with the given id
func (s *MemoryStore) Update(_ context.Context, collection, id string, changes Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.collections[collection] {
		if doc.ID() != id {
			continue
		}
		for k, v := range changes {
			if k == "id" {
				continue
			}
			doc[k] = v
		}
		return doc, nil
	}
	return nil, ErrNotFound
}

// FindByID implements Store
func (s *MemoryStore) FindByID(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.collections[collection] {
		if doc.ID() == id {
			return doc, nil
		}
	}
	return nil, ErrNotFound
}

// Find implements Store
func (s *MemoryStore) Find(_ context.Context, collection string, filter access.Filter) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document
	for _, doc := range s.collections[collection] {
		if Matches(filter, doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Delete removes all documents matching the filter, returning the count
func (s *MemoryStore) Delete(_ context.Context, collection string, filter access.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []Document
	removed := 0
	for _, doc := range s.collections[collection] {
		if Matches(filter, doc) {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	s.collections[collection] = kept
	return removed, nil
}

// Matches evaluates a filter fragment against a document. A nil filter
// matches everything.
func Matches(filter access.Filter, doc Document) bool {
	for key, condition := range filter {
		switch key {
		case "or":
			if !matchesAny(condition, doc) {
				return false
			}
		case "and":
			if !matchesAll(condition, doc) {
				return false
			}
		default:
			if !matchesField(key, condition, doc) {
				return false
			}
		}
	}
	return true
}

func matchesAny(condition any, doc Document) bool {
	branches, ok := condition.([]any)
	if !ok {
		return false
	}
	for _, branch := range branches {
		if f, ok := branch.(map[string]any); ok && Matches(access.Filter(f), doc) {
			return true
		}
	}
	return false
}

func matchesAll(condition any, doc Document) bool {
	branches, ok := condition.([]any)
	if !ok {
		return false
	}
	for _, branch := range branches {
		f, ok := branch.(map[string]any)
		if !ok || !Matches(access.Filter(f), doc) {
			return false
		}
	}
	return true
}

func matchesField(path string, condition any, doc Document) bool {
	ops, ok := condition.(map[string]any)
	if !ok {
		return false
	}
	values := resolvePath(path, doc)

	for op, operand := range ops {
		switch op {
		case "equals":
			if !containsValue(values, operand) {
				return false
			}
		case "not_equals":
			if containsValue(values, operand) {
				return false
			}
		case "in":
			operands, ok := operand.([]any)
			if !ok {
				return false
			}
			matched := false
			for _, o := range operands {
				if containsValue(values, o) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// resolvePath walks a dotted path, fanning out through arrays of
// subdocuments, and returns every leaf value reached.
func resolvePath(path string, doc Document) []any {
	current := []any{map[string]any(doc)}

	for path != "" {
		var segment string
		if i := strings.IndexByte(path, '.'); i >= 0 {
			segment, path = path[:i], path[i+1:]
		} else {
			segment, path = path, ""
		}

		var next []any
		for _, node := range current {
			switch v := node.(type) {
			case map[string]any:
				if child, ok := v[segment]; ok {
					next = append(next, flatten(child)...)
				}
			case Document:
				if child, ok := v[segment]; ok {
					next = append(next, flatten(child)...)
				}
			}
		}
		current = next
	}
	return current
}

func flatten(v any) []any {
	switch vv := v.(type) {
	case []any:
		return vv
	case []Document:
		out := make([]any, len(vv))
		for i, d := range vv {
			out[i] = map[string]any(d)
		}
		return out
	case []map[string]any:
		out := make([]any, len(vv))
		for i, m := range vv {
			out[i] = m
		}
		return out
	default:
		return []any{v}
	}
}

func containsValue(values []any, want any) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
