// Package server is the composition root: it opens the Identity Store, builds
// the verifiers and services, mounts the routes and runs the HTTP server.
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
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/jobmatch-auth/internal/auth"
	"github.com/sakif/jobmatch-auth/internal/config"
	"github.com/sakif/jobmatch-auth/internal/handler"
	"github.com/sakif/jobmatch-auth/internal/middleware"
	"github.com/sakif/jobmatch-auth/internal/repository"
	"github.com/sakif/jobmatch-auth/internal/repository/redisstore"
	sqliteRepo "github.com/sakif/jobmatch-auth/internal/repository/sqlite"
	"github.com/sakif/jobmatch-auth/internal/service"
)

// Server owns the router and the store connection. The store is closed when
// Start returns.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  repository.UserRepository

	// baseCtx scopes background work that outlives a request, such as the
	// Google signing-key refresh. It is cancelled on shutdown.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New wires every dependency for cfg.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   store,
		baseCtx: baseCtx,
		cancel:  cancel,
	}

	if err := s.setupRoutes(); err != nil {
		cancel()
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// openStore picks the Identity Store implementation from STORE_DRIVER.
func openStore(cfg config.Config, logger *slog.Logger) (repository.UserRepository, error) {
	switch cfg.StoreDriver {
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("identity store ready", slog.String("driver", "redis"), slog.String("addr", cfg.RedisAddr))
		return redisstore.New(client), nil

	default:
		if cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		logger.Info("identity store ready", slog.String("driver", "sqlite"), slog.String("path", cfg.DBPath))
		return db, nil
	}
}

// setupRoutes mounts:
//
//	GET  /healthz
//	POST /api/auth/login
//	POST /api/auth/google
//	POST /api/auth/supabase
//	GET  /api/auth/session
//	POST /api/auth/logout    (session required)
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	if s.config.CORSOrigin != "" {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{s.config.CORSOrigin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           600,
		}))
	}

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.SessionTTL)
	if err != nil {
		return err
	}

	upstream := &http.Client{Timeout: s.config.UpstreamTimeout}

	// Interface-typed so a disabled path stays a true nil.
	var google service.GoogleTokenVerifier
	if s.config.GoogleClientID != "" {
		v, err := auth.NewGoogleVerifier(s.baseCtx, auth.GoogleConfig{
			ClientID:   s.config.GoogleClientID,
			Issuer:     s.config.GoogleIssuer,
			JWKSURL:    s.config.GoogleJWKSURL,
			HTTPClient: upstream,
		})
		if err != nil {
			return fmt.Errorf("creating google verifier: %w", err)
		}
		google = v
	} else {
		s.logger.Warn("GOOGLE_CLIENT_ID not set, Google sign-in is disabled")
	}

	var supabase service.SupabaseTokenVerifier
	if s.config.SupabaseURL != "" {
		v, err := auth.NewSupabaseVerifier(s.config.SupabaseURL, s.config.SupabaseAnonKey, upstream)
		if err != nil {
			return fmt.Errorf("creating supabase verifier: %w", err)
		}
		supabase = v
	} else {
		s.logger.Warn("SUPABASE_URL not set, Supabase login is disabled")
	}

	resolver := service.NewResolver(s.store, auth.NewPasswordHasher(), s.logger)
	authService := service.NewAuthService(resolver, s.store, tokens, google, supabase, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.config.SessionTTL, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", authHandler.HandlePlainLogin)
		r.Post("/google", authHandler.HandleGoogleLogin)
		r.Post("/supabase", authHandler.HandleSupabaseLogin)
		r.Get("/session", authHandler.HandleSession)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(tokens))
			r.Post("/logout", authHandler.HandleLogout)
		})
	})

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store and stops background work. Start calls it on exit.
func (s *Server) Close() error {
	s.cancel()
	return s.store.Close()
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up to
// 30 seconds and closes the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("store", s.config.StoreDriver),
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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
