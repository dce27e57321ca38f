package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/indicadores/apiserver/config"
	"github.com/indicadores/apiserver/internal/auth"
	"github.com/indicadores/apiserver/internal/db"
	"github.com/indicadores/apiserver/internal/handlers"
	"github.com/indicadores/apiserver/internal/middleware"
	"github.com/indicadores/apiserver/internal/mq"
	"github.com/indicadores/apiserver/internal/ratelimit"
	"github.com/indicadores/apiserver/internal/services"
	"github.com/indicadores/apiserver/internal/storage"
	"github.com/indicadores/apiserver/internal/store"
)

// Deps holds everything the router needs. Reports, Events and Limiter are
// optional.
type Deps struct {
	Logger       *slog.Logger
	DB           handlers.Pinger
	Tokens       *auth.TokenManager
	CORS         config.CORSConfig
	Users        services.UserRepository
	Categories   services.CategoryRepository
	Indicators   services.IndicatorRepository
	Calculations services.CalculationRepository
	Reports      services.ReportStore
	Events       *services.EventPublisher
	Limiter      services.LoginLimiter
}

// NewRouter builds the HTTP handler for the API.
func NewRouter(d Deps) *chi.Mux {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	userService := services.NewUserService(d.Users)
	authOpts := []services.AuthOption{services.WithAuthLogger(logger)}
	if d.Limiter != nil {
		authOpts = append(authOpts, services.WithLoginLimiter(d.Limiter))
	}
	authService := services.NewAuthService(d.Users, d.Tokens, authOpts...)
	categoryService := services.NewCategoryService(d.Categories, d.Indicators)
	indicatorService := services.NewIndicatorService(d.Indicators, d.Categories)
	calculationService := services.NewCalculationService(d.Calculations, d.Indicators, services.WithEvents(d.Events))

	var reportService *services.ReportService
	if d.Reports != nil {
		reportService = services.NewReportService(d.Calculations, d.Indicators, d.Reports)
	}

	authMiddleware := handlers.RequireAuth(d.Tokens)
	health := handlers.NewHealthHandler(d.DB)

	router := chi.NewRouter()
	router.Use(
		chimw.RequestID,
		chimw.RealIP,
		middleware.RequestLogger(logger),
		chimw.Recoverer,
		middleware.Metrics,
		middleware.CORS(d.CORS.AllowedOrigins),
		chimw.Timeout(60*time.Second),
	)
	router.Get("/healthz", health.Healthz)
	router.Get("/readyz", health.Readyz)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authService, userService, authMiddleware)
		})
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Route("/categorias", func(r chi.Router) {
				handlers.CategoryRouter(r, categoryService)
			})
			r.Route("/indicadores", func(r chi.Router) {
				handlers.IndicatorRouter(r, indicatorService, reportService)
			})
			r.Route("/calculoindicadores", func(r chi.Router) {
				handlers.CalculationRouter(r, calculationService)
			})
			r.Route("/usuarios", func(r chi.Router) {
				handlers.UserRouter(r, userService)
			})
			if reportService != nil {
				r.Route("/reportes", func(r chi.Router) {
					handlers.ReportRouter(r, reportService)
				})
			}
		})
	})

	return router
}

// Server wraps the HTTP server and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	closers    []io.Closer
	logger     *slog.Logger
}

// New connects to the configured backends and constructs a Server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tokens, err := auth.NewTokenManager(cfg.JWT)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{db: dbConn, logger: logger}
	deps := Deps{
		Logger:       logger,
		DB:           dbConn,
		Tokens:       tokens,
		CORS:         cfg.CORS,
		Users:        store.NewUserRepository(dbConn),
		Categories:   store.NewCategoryRepository(dbConn),
		Indicators:   store.NewIndicatorRepository(dbConn),
		Calculations: store.NewCalculationRepository(dbConn),
	}

	limiter, redisClient, err := ratelimit.Open(ctx, cfg.Redis, cfg.Login)
	if err != nil {
		s.close()
		return nil, err
	}
	if limiter != nil {
		deps.Limiter = limiter
		s.closers = append(s.closers, redisClient)
		logger.Info("login throttling enabled", "max_attempts", cfg.Login.MaxAttempts, "window", cfg.Login.Window)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		s.close()
		return nil, err
	}
	if objects != nil {
		deps.Reports = objects
		logger.Info("report storage enabled", "backend", cfg.Storage.Backend, "bucket", objects.Bucket())
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.close()
		return nil, err
	}
	if broker != nil {
		deps.Events = services.NewEventPublisher(broker, cfg.EventsChannel, logger)
		s.closers = append(s.closers, broker)
		logger.Info("calculation events enabled", "backend", cfg.MQ.Backend, "channel", cfg.EventsChannel)
	}

	s.router = NewRouter(deps)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      75 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx is
// done, then closes the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.logger.Warn("close backend", "error", err)
		}
	}
	s.closers = nil
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}
