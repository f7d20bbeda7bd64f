package api

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/81adi8/erp-sub005/pkg/cache"
	"github.com/81adi8/erp-sub005/pkg/isolation"
	"github.com/81adi8/erp-sub005/pkg/mfa"
	"github.com/81adi8/erp-sub005/pkg/middleware"
	"github.com/81adi8/erp-sub005/pkg/observability"
	"github.com/81adi8/erp-sub005/pkg/rbac"
	"github.com/81adi8/erp-sub005/pkg/tenant"
	"github.com/81adi8/erp-sub005/pkg/token"
)

// Server is the HTTP surface of the identity core: the MFA flows, a small
// authenticated user surface, and the internally-gated ops endpoints that
// drive key rotation and cache invalidation.
type Server struct {
	router *mux.Router
	logger *observability.Logger

	resolver    *tenant.Resolver
	tokens      *token.Service
	roles       *rbac.RolePermissionCache
	permConfig  *rbac.ConfigCache
	challenges  *mfa.ChallengeService
	totp        *mfa.TOTPService
	credentials mfa.CredentialStore
	guard       *isolation.Guard
	tiered      *cache.TieredCache
	health      *observability.HealthChecker
	limiter     *middleware.RateLimiter
	auth        *middleware.AuthMiddleware
	internal    *middleware.InternalKeyGate
}

// Deps bundles everything the server needs; all fields are required unless
// noted.
type Deps struct {
	Logger      *observability.Logger
	Resolver    *tenant.Resolver
	Tokens      *token.Service
	Roles       *rbac.RolePermissionCache
	PermConfig  *rbac.ConfigCache
	Challenges  *mfa.ChallengeService
	TOTP        *mfa.TOTPService
	Credentials mfa.CredentialStore
	Guard       *isolation.Guard
	Tiered      *cache.TieredCache
	Health      *observability.HealthChecker // optional; /readyz 404s without it
	Limiter     *middleware.RateLimiter
	Auth        *middleware.AuthMiddleware
	Internal    *middleware.InternalKeyGate
}

// NewServer creates the API server and registers its routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	s := &Server{
		router:      mux.NewRouter(),
		logger:      logger,
		resolver:    deps.Resolver,
		tokens:      deps.Tokens,
		roles:       deps.Roles,
		permConfig:  deps.PermConfig,
		challenges:  deps.Challenges,
		totp:        deps.TOTP,
		credentials: deps.Credentials,
		guard:       deps.Guard,
		tiered:      deps.Tiered,
		health:      deps.Health,
		limiter:     deps.Limiter,
		auth:        deps.Auth,
		internal:    deps.Internal,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Liveness is open; readiness and everything under /ops sits behind the
	// internal key gate.
	if s.health != nil {
		s.router.HandleFunc("/healthz", s.health.Liveness).Methods("GET")
		s.router.Handle("/readyz", s.internal.Handler(http.HandlerFunc(s.health.Readiness))).Methods("GET")
	}

	ops := s.router.PathPrefix("/ops").Subrouter()
	ops.Use(s.internal.Handler)
	ops.HandleFunc("/keys/{class}/rotate", s.rotateKey).Methods("POST")
	ops.HandleFunc("/keys/sweep", s.sweepKeys).Methods("POST")
	ops.HandleFunc("/tenants/{tenantId}", s.getTenant).Methods("GET")
	ops.HandleFunc("/tenants/{tenantId}/roles/{slug}/invalidate", s.invalidateTenantRole).Methods("POST")
	ops.HandleFunc("/tenants/{tenantId}/roles/invalidate", s.invalidateTenantRoles).Methods("POST")
	ops.HandleFunc("/tenants/{tenantId}/cache/invalidate", s.invalidateTenantCache).Methods("POST")
	ops.HandleFunc("/plans/{planId}/roles/{slug}/invalidate", s.invalidatePlanRole).Methods("POST")
	ops.HandleFunc("/permissions/refresh", s.refreshPermissionConfig).Methods("POST")
	ops.HandleFunc("/violations", s.recentViolations).Methods("GET")

	// Tenant-resolved public auth surface: the MFA completion step runs
	// between password verification and session issuance, so it carries no
	// bearer token yet. Rate limited per (tenant, ip).
	authAPI := s.router.PathPrefix("/api/v1/auth").Subrouter()
	authAPI.Use(tenant.Middleware(s.resolver))
	authAPI.Use(s.guard.Middleware(true, middleware.TokenTenantID))
	authAPI.Use(s.limiter.LoginRateLimit)
	authAPI.HandleFunc("/mfa/verify", s.verifyMFA).Methods("POST")

	// Authenticated user surface.
	userAPI := s.router.PathPrefix("/api/v1").Subrouter()
	userAPI.Use(tenant.Middleware(s.resolver))
	userAPI.Use(s.auth.Handler)
	userAPI.Use(s.guard.Middleware(true, middleware.TokenTenantID))
	userAPI.HandleFunc("/me", s.me).Methods("GET")
	userAPI.HandleFunc("/mfa/setup", s.beginMFASetup).Methods("POST")
	userAPI.HandleFunc("/mfa/setup/confirm", s.confirmMFASetup).Methods("POST")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router so main can hang extra handlers
// (metrics) off it.
func (s *Server) Router() *mux.Router {
	return s.router
}
