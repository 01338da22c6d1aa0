// Package handler provides the HTTP API of Alexander Auth.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-auth/internal/metrics"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 64 << 10

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Accounts      Accounts
	Health        HealthChecker
	Metrics       *metrics.Metrics
	Logger        zerolog.Logger
	MaxBodyBytes  int64
	HealthTimeout time.Duration
}

// Router handles HTTP routing for the account API.
type Router struct {
	accounts      *AccountHandler
	validator     TokenValidator
	health        HealthChecker
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	maxBodyBytes  int64
	healthTimeout time.Duration
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if config.HealthTimeout <= 0 {
		config.HealthTimeout = 2 * time.Second
	}

	return &Router{
		accounts:      NewAccountHandler(config.Accounts, config.Logger),
		validator:     config.Accounts,
		health:        config.Health,
		metrics:       config.Metrics,
		logger:        config.Logger.With().Str("component", "router").Logger(),
		maxBodyBytes:  config.MaxBodyBytes,
		healthTimeout: config.HealthTimeout,
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(rt.logger))
	r.Use(middleware.Recoverer)
	r.Use(instrument(rt.metrics))
	r.Use(maxBodySize(rt.maxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, &APIError{Code: CodeNotFound, Message: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, &APIError{Code: CodeMethodNotAllowed, Message: "method not allowed"})
	})

	// Health check (no auth)
	r.Get("/health", rt.handleHealth)

	r.Post("/request-otp", rt.accounts.RequestOTP)
	r.Post("/verify-otp", rt.accounts.VerifyOTP)
	r.Post("/register", rt.accounts.Register)
	r.Post("/token", rt.accounts.Token)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(rt.validator))
		r.Get("/users/me", rt.accounts.Me)
	})

	return r
}

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), rt.healthTimeout)
		defer cancel()

		if err := rt.health.Ping(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}
