package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/folioworks/folio/pkg/auth"
	"github.com/folioworks/folio/pkg/httputil"
	"github.com/folioworks/folio/pkg/middleware"
	"github.com/folioworks/folio/pkg/store"
)

// userDoc projects a user into the document shape the policy filters
// address: memberships sit under "tenants" with a "tenant" field each.
func userDoc(u *auth.User) store.Document {
	memberships := make([]any, 0, len(u.Memberships))
	for _, m := range u.Memberships {
		memberships = append(memberships, map[string]any{
			"tenant": m.TenantID,
			"role":   string(m.Role),
		})
	}
	return store.Document{
		"id":        u.ID,
		"email":     u.Email,
		"role":      string(u.Role),
		"is_active": u.IsActive,
		"tenants":   memberships,
	}
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	decision := middleware.DecisionFromContext(r.Context())
	filter, ok := store.ApplyDecision(decision, nil)
	if !ok {
		httputil.WriteDenied(w)
		return
	}

	users, err := s.users.ListUsers(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to list users")
		httputil.WriteInternalError(w, err)
		return
	}

	visible := make([]*auth.User, 0, len(users))
	for _, u := range users {
		if filter == nil || store.Matches(filter, userDoc(u)) {
			visible = append(visible, u)
		}
	}
	httputil.WriteSuccess(w, visible)
}

// listTenantMembers lists the users holding membership in one tenant. The
// users read policy still applies, so a caller only sees the members it
// could see through /api/users.
func (s *Server) listTenantMembers(w http.ResponseWriter, r *http.Request) {
	decision := middleware.DecisionFromContext(r.Context())
	filter, ok := store.ApplyDecision(decision, nil)
	if !ok {
		httputil.WriteDenied(w)
		return
	}

	members, err := s.users.UsersByTenants(r.Context(), []string{mux.Vars(r)["id"]})
	if err != nil {
		s.logger.WithError(err).Error("failed to list tenant members")
		httputil.WriteInternalError(w, err)
		return
	}

	visible := make([]*auth.User, 0, len(members))
	for _, u := range members {
		if filter == nil || store.Matches(filter, userDoc(u)) {
			visible = append(visible, u)
		}
	}
	httputil.WriteSuccess(w, visible)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	decision := middleware.DecisionFromContext(r.Context())
	filter, ok := store.ApplyDecision(decision, nil)
	if !ok {
		httputil.WriteDenied(w)
		return
	}

	user, err := s.users.UserByID(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, auth.ErrNotFound) {
		httputil.WriteNotFoundError(w, "user not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load user")
		httputil.WriteInternalError(w, err)
		return
	}
	if filter != nil && !store.Matches(filter, userDoc(user)) {
		httputil.WriteDenied(w)
		return
	}
	httputil.WriteSuccess(w, user)
}

type createUserRequest struct {
	Email       string                  `json:"email"`
	Role        auth.Role               `json:"role"`
	Memberships []auth.TenantMembership `json:"memberships"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if req.Email == "" {
		httputil.WriteValidationError(w, "email is required")
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleUser
	}

	user := &auth.User{
		ID:          uuid.New().String(),
		Email:       req.Email,
		Role:        req.Role,
		Memberships: req.Memberships,
		IsActive:    true,
	}
	if err := s.users.CreateUser(r.Context(), user); err != nil {
		s.logger.WithError(err).Error("failed to create user")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, user)
}

type updateUserRequest struct {
	Email    *string    `json:"email"`
	Role     *auth.Role `json:"role"`
	IsActive *bool      `json:"is_active"`
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	decision := middleware.DecisionFromContext(r.Context())
	filter, ok := store.ApplyDecision(decision, nil)
	if !ok {
		httputil.WriteDenied(w)
		return
	}

	user, err := s.users.UserByID(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, auth.ErrNotFound) {
		httputil.WriteNotFoundError(w, "user not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load user")
		httputil.WriteInternalError(w, err)
		return
	}
	if filter != nil && !store.Matches(filter, userDoc(user)) {
		httputil.WriteDenied(w)
		return
	}

	var req updateUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.users.UpdateUser(r.Context(), user); err != nil {
		s.logger.WithError(err).Error("failed to update user")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	decision := middleware.DecisionFromContext(r.Context())
	filter, ok := store.ApplyDecision(decision, nil)
	if !ok {
		httputil.WriteDenied(w)
		return
	}

	user, err := s.users.UserByID(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, auth.ErrNotFound) {
		httputil.WriteNotFoundError(w, "user not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load user")
		httputil.WriteInternalError(w, err)
		return
	}
	if filter != nil && !store.Matches(filter, userDoc(user)) {
		httputil.WriteDenied(w)
		return
	}

	if err := s.users.DeleteUser(r.Context(), user.ID); err != nil {
		s.logger.WithError(err).Error("failed to delete user")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
