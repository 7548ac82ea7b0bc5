package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/folioworks/folio/pkg/access"
	"github.com/folioworks/folio/pkg/auth"
	"github.com/folioworks/folio/pkg/middleware"
	"github.com/folioworks/folio/pkg/observability"
	"github.com/folioworks/folio/pkg/store"
	"github.com/folioworks/folio/pkg/tenants"
)

// Server is the HTTP front door for the platform. It wires the
// authentication middleware chain, the policy engine, and the document
// stores behind a gorilla/mux router.
type Server struct {
	router   *mux.Router
	engine   *access.Engine
	users    UserDirectory
	docs     store.Store
	resolver *auth.Resolver
	scopes   *tenants.Resolver
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// UserDirectory is the slice of the user store the API needs.
type UserDirectory interface {
	UserByID(ctx context.Context, id string) (*auth.User, error)
	ListUsers(ctx context.Context) ([]*auth.User, error)
	UsersByTenants(ctx context.Context, tenantIDs []string) ([]*auth.User, error)
	CreateUser(ctx context.Context, user *auth.User) error
	UpdateUser(ctx context.Context, user *auth.User) error
	DeleteUser(ctx context.Context, id string) error
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		engine:   cfg.Engine,
		users:    cfg.Users,
		docs:     cfg.Documents,
		resolver: cfg.Resolver,
		scopes:   cfg.Scopes,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	s.setupRoutes()
	return s
}

// ServerConfig carries the server's collaborators.
type ServerConfig struct {
	Engine    *access.Engine
	Users     UserDirectory
	Documents store.Store
	Resolver  *auth.Resolver
	Scopes    *tenants.Resolver
	Logger    *observability.Logger
	Metrics   *observability.Metrics
}

// setupRoutes configures all the API routes.
func (s *Server) setupRoutes() {
	authorize := func(resource, op string) mux.MiddlewareFunc {
		return middleware.Authorize(s.engine, resource, op, access.SurfaceAPI)
	}

	users := s.router.PathPrefix("/api/users").Subrouter()
	users.Handle("", authorize(access.ResourceUsers, access.OpRead)(http.HandlerFunc(s.listUsers))).Methods("GET")
	users.Handle("", authorize(access.ResourceUsers, access.OpCreate)(http.HandlerFunc(s.createUser))).Methods("POST")
	users.Handle("/{id}", authorize(access.ResourceUsers, access.OpRead)(http.HandlerFunc(s.getUser))).Methods("GET")
	users.Handle("/{id}", authorize(access.ResourceUsers, access.OpUpdate)(http.HandlerFunc(s.updateUser))).Methods("PATCH")
	users.Handle("/{id}", authorize(access.ResourceUsers, access.OpDelete)(http.HandlerFunc(s.deleteUser))).Methods("DELETE")

	s.router.Handle("/api/tenants/{id}/members",
		authorize(access.ResourceUsers, access.OpRead)(http.HandlerFunc(s.listTenantMembers))).Methods("GET")

	docs := s.router.PathPrefix("/api/collections/{collection}").Subrouter()
	docs.HandleFunc("", s.listDocuments).Methods("GET")
	docs.HandleFunc("", s.createDocument).Methods("POST")
	docs.HandleFunc("/{id}", s.getDocument).Methods("GET")
	docs.HandleFunc("/{id}", s.updateDocument).Methods("PATCH")
	docs.HandleFunc("/{id}", s.deleteDocument).Methods("DELETE")
}

// Router exposes the configured router for middleware wrapping.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
