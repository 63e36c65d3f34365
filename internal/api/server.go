package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"paperTrader/internal/app"
	"paperTrader/internal/domain"
	"paperTrader/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Service is the engine surface the HTTP handlers call.
type Service interface {
	CreatePortfolio(ctx context.Context, req app.CreatePortfolioRequest) (*domain.Portfolio, error)
	ListPortfolios(ctx context.Context, activeOnly bool) ([]*domain.Portfolio, error)
	DeactivatePortfolio(ctx context.Context, portfolioID string) (*domain.Portfolio, error)
	GetPortfolioSummary(ctx context.Context, portfolioID string) (*app.PortfolioSummary, error)
	ListSnapshots(ctx context.Context, portfolioID string, from, to time.Time) ([]*domain.PortfolioSnapshot, error)
	Performance(ctx context.Context, portfolioID string) (*app.PerformanceReport, error)
	ExecutePendingTrades(ctx context.Context, portfolioID string) (app.PromotionResult, error)
	CloseExpiredPositions(ctx context.Context, portfolioID string) (int, error)
	RecomputePortfolio(ctx context.Context, portfolioID string) (*domain.PortfolioSnapshot, error)
	EvaluateSignal(ctx context.Context, sig domain.Signal) (app.Evaluation, error)
	ExecuteTrade(ctx context.Context, sig domain.Signal) (*app.ExecutionResult, error)
	ClosePosition(ctx context.Context, tradeID string, reason domain.CloseReason) (*app.CloseResult, error)
}

// Config holds configuration for the HTTP server.
type Config struct {
	Addr           string
	Service        Service
	Logger         ports.Logger
	Health         func(ctx context.Context) error // Optional store ping
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server exposes the engine over HTTP.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	service Service
	logger  ports.Logger
	health  func(ctx context.Context) error
}

// New creates a new HTTP server
func New(cfg Config) (*Server, error) {
	if cfg.Service == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for HTTP server")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		router:  chi.NewRouter(),
		service: cfg.Service,
		logger:  cfg.Logger,
		health:  cfg.Health,
	}
	s.setupMiddleware(origins, timeout)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupMiddleware(origins []string, timeout time.Duration) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(timeout))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/portfolios", func(r chi.Router) {
			r.Post("/", s.handleCreatePortfolio)
			r.Get("/", s.handleListPortfolios)

			r.Route("/{portfolioID}", func(r chi.Router) {
				r.Use(requireUUID("portfolioID"))
				r.Get("/summary", s.handleSummary)
				r.Get("/snapshots", s.handleSnapshots)
				r.Get("/performance", s.handlePerformance)
				r.Post("/deactivate", s.handleDeactivate)
				r.Post("/pending/execute", s.handleExecutePending)
				r.Post("/positions/close-expired", s.handleCloseExpired)
				r.Post("/recompute", s.handleRecompute)
			})
		})

		r.Route("/signals", func(r chi.Router) {
			r.Post("/evaluate", s.handleEvaluateSignal)
			r.Post("/execute", s.handleExecuteSignal)
		})

		r.With(requireUUID("tradeID")).Post("/trades/{tradeID}/close", s.handleClosePosition)
	})
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. It never returns http.ErrServerClosed.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "Starting HTTP server", map[string]interface{}{"addr": s.server.Addr})
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
