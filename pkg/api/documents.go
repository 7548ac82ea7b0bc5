package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/folioworks/folio/pkg/access"
	"github.com/folioworks/folio/pkg/httputil"
	"github.com/folioworks/folio/pkg/middleware"
	"github.com/folioworks/folio/pkg/store"
)

// authorizeCollection evaluates the policy for a dynamic collection route.
// Collections are registered on the engine by name; anything unregistered
// denies. Returns the decision's filter and whether access was granted.
func (s *Server) authorizeCollection(w http.ResponseWriter, r *http.Request, op string) (access.Filter, bool) {
	req := middleware.BuildPolicyRequest(r, access.SurfaceAPI)
	decision := s.engine.Evaluate(r.Context(), mux.Vars(r)["collection"], op, req)
	filter, ok := store.ApplyDecision(decision, nil)
	if !ok {
		middleware.AuditDenied(r, mux.Vars(r)["collection"], op)
		httputil.WriteDenied(w)
		return nil, false
	}
	return filter, true
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.authorizeCollection(w, r, access.OpRead)
	if !ok {
		return
	}

	docs, err := s.docs.Find(r.Context(), mux.Vars(r)["collection"], filter)
	if err != nil {
		s.logger.WithError(err).Error("failed to list documents")
		httputil.WriteInternalError(w, err)
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	httputil.WriteSuccess(w, docs)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.authorizeCollection(w, r, access.OpRead)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	doc, err := s.docs.FindByID(r.Context(), vars["collection"], vars["id"])
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, "document not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load document")
		httputil.WriteInternalError(w, err)
		return
	}
	if !store.Matches(filter, doc) {
		httputil.WriteDenied(w)
		return
	}
	httputil.WriteSuccess(w, doc)
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.authorizeCollection(w, r, access.OpCreate)
	if !ok {
		return
	}

	var doc store.Document
	if err := httputil.DecodeJSON(r, &doc); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if doc.ID() == "" {
		doc["id"] = uuid.New().String()
	}
	if _, present := doc["tenant"]; !present {
		if tid := scopedTenant(filter); tid != "" {
			doc["tenant"] = tid
		}
	}
	if !store.Matches(filter, doc) {
		httputil.WriteDenied(w)
		return
	}

	if err := s.docs.Insert(r.Context(), mux.Vars(r)["collection"], doc); err != nil {
		s.logger.WithError(err).Error("failed to insert document")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, doc)
}

func (s *Server) updateDocument(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.authorizeCollection(w, r, access.OpUpdate)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	doc, err := s.docs.FindByID(r.Context(), vars["collection"], vars["id"])
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, "document not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load document")
		httputil.WriteInternalError(w, err)
		return
	}
	if !store.Matches(filter, doc) {
		httputil.WriteDenied(w)
		return
	}

	var changes store.Document
	if err := httputil.DecodeJSON(r, &changes); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	// An update may not move a document out of the caller's scope.
	merged := store.Document{}
	for k, v := range doc {
		merged[k] = v
	}
	for k, v := range changes {
		if k == "id" {
			continue
		}
		merged[k] = v
	}
	if !store.Matches(filter, merged) {
		httputil.WriteDenied(w)
		return
	}

	updated, err := s.docs.Update(r.Context(), vars["collection"], vars["id"], changes)
	if err != nil {
		s.logger.WithError(err).Error("failed to update document")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.authorizeCollection(w, r, access.OpDelete)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	doc, err := s.docs.FindByID(r.Context(), vars["collection"], vars["id"])
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, "document not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load document")
		httputil.WriteInternalError(w, err)
		return
	}
	if !store.Matches(filter, doc) {
		httputil.WriteDenied(w)
		return
	}

	if _, err := s.docs.Delete(r.Context(), vars["collection"], access.Eq("id", doc.ID())); err != nil {
		s.logger.WithError(err).Error("failed to delete document")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// scopedTenant extracts the tenant id a scoped filter pins documents to,
// "" when the filter carries no simple tenant equality.
func scopedTenant(filter access.Filter) string {
	cond, ok := filter["tenant"].(map[string]any)
	if !ok {
		return ""
	}
	tid, _ := cond["equals"].(string)
	return tid
}
