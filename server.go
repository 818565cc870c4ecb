package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/ironstar-io/chizerolog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	apiAuth "github.com/learnify/learnify-gateway/api/auth"
	apiBackend "github.com/learnify/learnify-gateway/api/backend"
	"github.com/learnify/learnify-gateway/api/pages"
	"github.com/learnify/learnify-gateway/auth"
	"github.com/learnify/learnify-gateway/backend"
	"github.com/learnify/learnify-gateway/config"
	"github.com/learnify/learnify-gateway/guard"
	"github.com/learnify/learnify-gateway/types"
)

// Login limiter bookkeeping
const (
	limiterEvictInterval = 5 * time.Minute
	limiterMaxIdle       = 15 * time.Minute
)

// APIServer is a struct that bundles together the various server-wide
// resources used at runtime
type APIServer struct {
	config        config.Config
	logger        zerolog.Logger
	backendClient *backend.Client
	jwtManager    *auth.JWTManager
	manager       *auth.Manager
	guardRoutes   guard.Routes
	matcher       *guard.Matcher
	loginLimiter  *apiAuth.LoginLimiter
}

// NewAPIServer initializes the struct and all constituent components.
// Background work started here stops when ctx is cancelled
func NewAPIServer(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*APIServer, error) {
	// Initialize the backend API client
	wrapPolicy := backend.DefaultWrapPolicy
	if cfg.WrapServerErrors {
		wrapPolicy = backend.WrapAllPolicy
	}
	backendClient, err := backend.New(cfg.BackendURL,
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithMaxResponseSize(cfg.BackendMaxResponseSize),
		backend.WithWrapPolicy(wrapPolicy),
		backend.WithLogger(logger.With().Str("component", "backend").Logger()),
	)
	if err != nil {
		return nil, err
	}

	// Initialize the JWT manager
	jwtManager, err := auth.NewJWTManager(cfg.Secret, cfg.SessionMaxAge)
	if err != nil {
		return nil, err
	}

	authLogger := logger.With().Str("component", "auth").Logger()
	manager := auth.NewManager(
		auth.NewAuthenticator(backendClient, authLogger),
		jwtManager,
		auth.CookieOptions{Domain: cfg.CookieDomain, Secure: cfg.SecureCookies},
		cfg.RouteRoot,
		authLogger,
	)

	guardRoutes := guard.Routes{
		Public:         cfg.PublicRoutes,
		Root:           cfg.RouteRoot,
		Unauthorized:   cfg.RouteUnauthorized,
		Restricted:     cfg.RouteRestricted,
		RestrictedRole: types.RoleStudent,
	}
	if err := guardRoutes.Validate(); err != nil {
		return nil, fmt.Errorf("invalid route guard configuration: %w", err)
	}

	return &APIServer{
		config:        cfg,
		logger:        logger,
		backendClient: backendClient,
		jwtManager:    jwtManager,
		manager:       manager,
		guardRoutes:   guardRoutes,
		matcher:       guard.NewMatcher(cfg.GuardExclude),
		loginLimiter: apiAuth.NewLoginLimiter(ctx, cfg.LoginRate, cfg.LoginBurst,
			limiterEvictInterval, limiterMaxIdle),
	}, nil
}

// Serve runs the main API server until it's cancelled for some reason,
// in which case it attempts to gracefully shutdown.
// This function blocks.
func (a *APIServer) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()
	a.logger.Info().Int("port", a.config.Port).Msg("gateway started")

	select {
	case err := <-errs:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	a.logger.Info().Msg("gateway stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown failed: %w", err)
	}
	a.logger.Info().Msg("gateway exited properly")
	return nil
}

func (a *APIServer) routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.Recoverer, // Recover from panics without crashing the server
		middleware.RequestID,
	)
	if a.config.TrustHost {
		router.Use(middleware.RealIP) // Trust X-Forwarded-For for client addresses
	}
	router.Use(
		chizerolog.LoggerMiddleware(&a.logger), // Log API request calls
		middleware.RedirectSlashes,             // Redirect slashes to no slash URL versions
		middleware.Compress(5),                 // Compress results, mostly gzipping html and json
		middleware.NoCache,                     // Prevent clients from caching the results
		a.corsMiddleware(),                     // Create cors middleware from go-chi/cors
		a.manager.Attach,                       // Decode the session token, if any
		guard.Middleware(a.guardRoutes, a.matcher, a.logger.With().Str("component", "guard").Logger()),
	)

	// Can be used for health checks
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Mount("/auth", apiAuth.Routes(a.manager, a.loginLimiter))
		r.Mount("/backend", apiBackend.Routes(a.backendClient, a.manager,
			a.logger.With().Str("component", "relay").Logger()))
	})

	router.Mount("/", pages.Routes(a.config.AppVersion))

	return router
}

func (a *APIServer) corsMiddleware() func(http.Handler) http.Handler {
	allowCredentials := true
	for _, origin := range a.config.AllowedOrigins {
		if origin == "*" {
			allowCredentials = false
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   a.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	})
}
