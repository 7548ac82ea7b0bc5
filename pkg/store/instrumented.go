package store

import (
	"context"
	"errors"
	"time"

	"github.com/folioworks/folio/pkg/access"
)

// QueryObserver receives one observation per store call. Satisfied by
// observability.Metrics.
type QueryObserver interface {
	ObserveStoreQuery(collection, status string, elapsed time.Duration)
}

// InstrumentedStore decorates a Store with per-call metrics. A missing
// document is a domain outcome, not a failure, so only infrastructure errors
// count as "error".
type InstrumentedStore struct {
	inner    Store
	observer QueryObserver
}

func NewInstrumentedStore(inner Store, observer QueryObserver) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, observer: observer}
}

func (s *InstrumentedStore) observe(collection string, err error, start time.Time) {
	status := "ok"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	s.observer.ObserveStoreQuery(collection, status, time.Since(start))
}

func (s *InstrumentedStore) FindByID(ctx context.Context, collection, id string) (Document, error) {
	start := time.Now()
	doc, err := s.inner.FindByID(ctx, collection, id)
	s.observe(collection, err, start)
	return doc, err
}

func (s *InstrumentedStore) Find(ctx context.Context, collection string, filter access.Filter) ([]Document, error) {
	start := time.Now()
	docs, err := s.inner.Find(ctx, collection, filter)
	s.observe(collection, err, start)
	return docs, err
}

func (s *InstrumentedStore) Insert(ctx context.Context, collection string, doc Document) error {
	start := time.Now()
	err := s.inner.Insert(ctx, collection, doc)
	s.observe(collection, err, start)
	return err
}

func (s *InstrumentedStore) Update(ctx context.Context, collection, id string, changes Document) (Document, error) {
	start := time.Now()
	doc, err := s.inner.Update(ctx, collection, id, changes)
	s.observe(collection, err, start)
	return doc, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, collection string, filter access.Filter) (int, error) {
	start := time.Now()
	n, err := s.inner.Delete(ctx, collection, filter)
	s.observe(collection, err, start)
	return n, err
}
