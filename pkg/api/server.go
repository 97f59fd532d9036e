package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/cuemby/hutch/pkg/auth"
	"github.com/cuemby/hutch/pkg/billing"
	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/metrics"
	"github.com/cuemby/hutch/pkg/proxy"
	"github.com/cuemby/hutch/pkg/ratelimit"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/workspace"
)

// maxBodyBytes caps JSON request bodies. The proxy passthrough is
// exempt so uploads to workspaces stream unbounded.
const maxBodyBytes = 1 << 20

// Server is the HTTP surface of the control plane. It owns routing,
// middleware ordering, and the translation between domain errors and
// HTTP responses; all domain decisions live in the services it wraps.
type Server struct {
	cfg        *config.Config
	store      storage.Store
	auth       *auth.Service
	workspaces *workspace.Manager
	billing    *billing.Service
	proxy      http.Handler

	router      chi.Router
	httpServer  *http.Server
	authLimiter *ratelimit.Limiter
	apiLimiter  *ratelimit.Limiter
	validate    *validator.Validate
	log         zerolog.Logger
}

// NewServer wires the HTTP surface over the domain services.
func NewServer(cfg *config.Config, store storage.Store, authSvc *auth.Service, workspaces *workspace.Manager, billingSvc *billing.Service, resolver proxy.AddressResolver) *Server {
	s := &Server{
		cfg:         cfg,
		store:       store,
		auth:        authSvc,
		workspaces:  workspaces,
		billing:     billingSvc,
		authLimiter: ratelimit.New(cfg.API.AuthRateLimit, cfg.API.AuthRateWindow),
		apiLimiter:  ratelimit.New(cfg.API.APIRateLimit, cfg.API.APIRateWindow),
		validate:    newValidator(),
		log:         log.WithComponent("api"),
	}
	s.proxy = proxy.NewHandler(store, resolver, cfg.Workspace, s.renderError)
	s.router = s.buildRouter()
	return s
}

// Router returns the assembled handler. Tests serve it directly.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.API.Addr,
		Handler: s.router,
		// Proxied responses stream for unbounded durations, so only the
		// header read and idle timeouts are set.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.log.Info().Str("addr", s.cfg.API.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve http: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(s.securityHeaders)
	if origin := s.cfg.API.FrontendOrigin; origin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{origin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", proxy.CredentialHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(s.observeRequests)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		// Credential endpoints get the tighter per-IP limit.
		api.Group(func(g chi.Router) {
			g.Use(s.limitBody)
			g.Use(s.rateLimit(s.authLimiter, s.cfg.API.AuthRateLimit, s.cfg.API.AuthRateWindow))

			g.Post("/auth/register", s.handleRegister)
			g.Post("/auth/login", s.handleLogin)
		})

		// Everything bearer-authenticated.
		api.Group(func(g chi.Router) {
			g.Use(s.limitBody)
			g.Use(s.rateLimit(s.apiLimiter, s.cfg.API.APIRateLimit, s.cfg.API.APIRateWindow))
			g.Use(s.requireUser)

			g.Get("/auth/me", s.handleMe)
			g.Post("/auth/logout", s.handleLogout)

			g.Get("/workspaces", s.handleListWorkspaces)
			g.Post("/workspaces", s.handleCreateWorkspace)
			g.Get("/workspaces/{id}", s.handleGetWorkspace)
			g.Post("/workspaces/{id}/start", s.handleStartWorkspace)
			g.Post("/workspaces/{id}/stop", s.handleStopWorkspace)
			g.Delete("/workspaces/{id}", s.handleDeleteWorkspace)

			g.Post("/payments/checkout", s.handleCheckout)
			g.Get("/payments/subscription", s.handleSubscription)
			g.Post("/payments/cancel", s.handleCancel)
		})

		// Webhooks verify an HMAC over the raw body and must never be
		// rate limited; a 429 would stall provider retries.
		api.Group(func(g chi.Router) {
			g.Use(s.limitBody)

			g.Post("/webhooks/{provider}", s.handleWebhook)
		})

		// Credential-authenticated passthrough to workspace containers.
		// No body cap: uploads stream through.
		api.Handle("/proxy/{workspace}", s.proxy)
		api.Handle("/proxy/{workspace}/*", s.proxy)
	})

	return r
}
