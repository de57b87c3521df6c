// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and routes,
// and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config ──► sqlite.DB ──► repositories (db.Users(), db.Listings(), ...)
//	                          └──► services (Auth, Listing, User, Report)
//	                                  └──► handlers ──► chi routes
//
// This is the "composition root" pattern: every dependency is built in New,
// nowhere else.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/listings-portal/internal/auth"
	"github.com/sakif/listings-portal/internal/config"
	"github.com/sakif/listings-portal/internal/handler"
	"github.com/sakif/listings-portal/internal/middleware"
	"github.com/sakif/listings-portal/internal/model"
	sqliteRepo "github.com/sakif/listings-portal/internal/repository/sqlite"
	"github.com/sakif/listings-portal/internal/service"
)

// shutdownTimeout is how long in-flight requests get after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it on shutdown;
// callers that never Start (tests, one-off commands) must call Close.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	registry *prometheus.Registry
	tokens   *auth.TokenService
}

// New opens the database, builds every service and handler, and mounts the
// routes.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	passwords, err := auth.NewPasswordService(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("server: creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(ctx, cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}

	// A private registry keeps tests (which build many servers) from
	// colliding on the global default registry.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: registry,
		tokens:   tokens,
	}
	s.setupRoutes(passwords)
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                                   → DB ping
//	GET    /metrics                                   → Prometheus
//	POST   /api/auth/register | /api/auth/login       → token + user
//	GET    /api/auth/me                               [auth]
//	GET    /api/listings                              → active listings, filters
//	POST   /api/listings                              [agent|manager]
//	GET    /api/listings/{id}                         → any status
//	PUT    /api/listings/{id}                         [auth, owner|manager]
//	DELETE /api/listings/{id}                         [auth, owner]
//	PUT    /api/listings/{id}/status                  [auth, owner|manager]
//	POST   /api/listings/{id}/close                   [agent|manager, owner|manager]
//	GET    /api/listings/{id}/closing                 [auth]
//	GET    /api/listings/{id}/image                   → cover photo bytes
//	GET    /api/listings/{id}/images                  → photo metadata
//	POST   /api/listings/{id}/images                  [auth, owner|manager]
//	GET    /api/listings/{id}/images/{imageId}        → photo bytes
//	PUT    /api/listings/{id}/images/{imageId}/primary [auth, owner|manager]
//	DELETE /api/listings/{id}/images/{imageId}        [auth, owner|manager]
//	POST   /api/reports/generate, GET /api/reports    [auth]
//	GET    /api/reports/download/{filename}           → CSV
//	GET|PUT /api/users/profile                        [auth]
//	GET|POST /api/users/saved-listings                [auth]
//	GET    /api/users/activity                        [auth]
//	GET    /api/users, PUT /api/users/{id}/role       [manager]
//	GET    /api/agents                                [auth]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns an id the logger picks up
// 2. RealIP: client IP from proxy headers
// 3. Logger, Metrics: observe the final status, including recovered panics
// 4. Recoverer: innermost, so the 500 it writes is what 3 sees
func (s *Server) setupRoutes(passwords *auth.PasswordService) {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.NewMetrics(s.registry).Handler)
	r.Use(chimiddleware.Recoverer)

	// === Services ===
	// Each service sees only the repository interfaces it needs.
	users, listings, images, saved, activity := s.db.Users(), s.db.Listings(), s.db.Images(), s.db.Saved(), s.db.Activity()

	authSvc := service.NewAuthService(users, activity, s.tokens, passwords, s.logger)
	listingSvc := service.NewListingService(listings, images, users, activity, s.logger)
	userSvc := service.NewUserService(users, listings, saved, activity, s.logger)
	reportSvc := service.NewReportService(listings, s.config.ReportsDir, s.registry, s.logger)

	// === Handlers ===
	authH := handler.NewAuthHandler(authSvc, s.logger)
	listingH := handler.NewListingHandler(listingSvc, s.config.MaxUploadBytes(), s.logger)
	userH := handler.NewUserHandler(userSvc, s.logger)
	reportH := handler.NewReportHandler(reportSvc, s.logger)
	healthH := handler.NewHealthHandler(s.db, s.logger)

	requireAuth := auth.RequireAuth(s.tokens)
	agentOrManager := auth.RequireRole(model.RoleAgent, model.RoleManager)
	managerOnly := auth.RequireRole(model.RoleManager)

	r.Get("/healthz", healthH.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authH.HandleRegister)
			r.Post("/login", authH.HandleLogin)
			r.With(requireAuth).Get("/me", authH.HandleMe)
		})

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", listingH.HandleList)
			r.With(requireAuth, agentOrManager).Post("/", listingH.HandleCreate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", listingH.HandleGet)
				r.Get("/image", listingH.HandlePrimaryImage)
				r.Get("/images", listingH.HandleListImages)
				r.Get("/images/{imageId}", listingH.HandleGetImage)

				r.Group(func(r chi.Router) {
					r.Use(requireAuth)
					r.Put("/", listingH.HandleUpdate)
					r.Delete("/", listingH.HandleDelete)
					r.Put("/status", listingH.HandleSetStatus)
					r.With(agentOrManager).Post("/close", listingH.HandleClose)
					r.Get("/closing", listingH.HandleGetClosing)
					r.Post("/images", listingH.HandleAddImage)
					r.Put("/images/{imageId}/primary", listingH.HandleSetPrimary)
					r.Delete("/images/{imageId}", listingH.HandleDeleteImage)
				})
			})
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/download/{filename}", reportH.HandleDownload)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/generate", reportH.HandleGenerate)
				r.Get("/", reportH.HandleList)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/profile", userH.HandleGetProfile)
			r.Put("/profile", userH.HandleUpdateProfile)
			r.Get("/saved-listings", userH.HandleListSaved)
			r.Post("/saved-listings", userH.HandleSaveListing)
			r.Get("/activity", userH.HandleActivity)
			r.With(managerOnly).Get("/", userH.HandleListUsers)
			r.With(managerOnly).Put("/{id}/role", userH.HandleUpdateRole)
		})

		r.With(requireAuth).Get("/agents", userH.HandleListAgents)
	})
}

// Handler returns the router wrapped in CORS for the browser client.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(s.config.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", auth.TokenHeader}),
		handlers.ExposedHeaders([]string{"Content-Disposition"}),
	)
	return cors(s.router)
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves HTTP until SIGINT/SIGTERM, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new connections
// 2. Wait up to shutdownTimeout for in-flight requests
// 3. Close the database (flushes the WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second, // photo uploads
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.config.DBPath),
			slog.String("reports", s.config.ReportsDir),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
