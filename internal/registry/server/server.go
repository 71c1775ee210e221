// Package server assembles the registry HTTP server from its configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/songzhibin97/mailregistry/internal/config"
	"github.com/songzhibin97/mailregistry/internal/registry/admin"
	"github.com/songzhibin97/mailregistry/internal/registry/auth"
	"github.com/songzhibin97/mailregistry/internal/registry/cache"
	"github.com/songzhibin97/mailregistry/internal/registry/contact"
	"github.com/songzhibin97/mailregistry/internal/registry/council"
	"github.com/songzhibin97/mailregistry/internal/registry/dashboard"
	"github.com/songzhibin97/mailregistry/internal/registry/handler"
	"github.com/songzhibin97/mailregistry/internal/registry/mailin"
	"github.com/songzhibin97/mailregistry/internal/registry/mailout"
	"github.com/songzhibin97/mailregistry/internal/registry/metrics"
	"github.com/songzhibin97/mailregistry/internal/registry/middleware"
	"github.com/songzhibin97/mailregistry/internal/registry/ratelimit"
	"github.com/songzhibin97/mailregistry/internal/registry/services"
	"github.com/songzhibin97/mailregistry/internal/registry/store/memory"
	"github.com/songzhibin97/mailregistry/internal/registry/store/postgres"
	"github.com/songzhibin97/mailregistry/internal/registry/user"
	"github.com/songzhibin97/mailregistry/internal/tracing"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// Server is the registry HTTP server with the resources it owns
type Server struct {
	config     *config.Config
	version    string
	repo       registry.Repository
	cache      cache.Cache
	metrics    *metrics.Metrics
	limiter    *ratelimit.KeyedLimiter
	tracer     *tracing.TracerProvider
	engine     *gin.Engine
	httpServer *http.Server
	logger     log.Logger

	mu      sync.Mutex
	running bool
}

// Option configures a Server
type Option func(*Server)

// WithRepository injects an already opened repository instead of opening
// the one named by the configuration. The server takes ownership of it.
func WithRepository(repo registry.Repository) Option {
	return func(s *Server) { s.repo = repo }
}

// WithLogger sets the server logger
func WithLogger(logger log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithVersion sets the version reported by tracing resources
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// New opens the storage, the optional cache and the telemetry, then builds
// the managers and the gin engine
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		config:  cfg,
		version: "dev",
		logger:  log.Component("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.repo == nil {
		repo, err := OpenRepository(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.repo = repo
	}

	if err := s.setup(ctx); err != nil {
		s.release(ctx)
		return nil, err
	}
	return s, nil
}

// OpenRepository opens the store selected by cfg. PostgreSQL schemas are
// migrated first when auto_migrate is set.
func OpenRepository(ctx context.Context, cfg config.DatabaseConfig) (registry.Repository, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.NewRepository(), nil
	case "postgres":
		repo, err := postgres.NewRepository(ctx, &postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres repository: %w", err)
		}
		if cfg.Postgres.AutoMigrate {
			if err := repo.Migrate(); err != nil {
				repo.Close()
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func (s *Server) setup(ctx context.Context) error {
	cfg := s.config

	tp, err := tracing.NewTracerProvider(&cfg.Tracing, s.version)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.tracer = tp

	if cfg.Metrics.Enabled {
		m, err := metrics.New(cfg.Metrics.Namespace)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		s.metrics = m
	}

	if cfg.Cache.Enabled {
		rc, err := cache.NewRedis(ctx, &cache.Config{
			Address:   cfg.Cache.Redis.Address,
			Password:  cfg.Cache.Redis.Password,
			Database:  cfg.Cache.Redis.Database,
			KeyPrefix: cfg.Cache.Redis.KeyPrefix,
			Timeout:   cfg.Cache.Redis.Timeout,
		})
		if err != nil {
			s.logger.Warn("dashboard cache unavailable, continuing without it",
				log.String("address", cfg.Cache.Redis.Address), log.Error(err))
		} else {
			s.cache = rc
		}
	}

	if cfg.Auth.LoginLimit.Enabled {
		s.limiter = ratelimit.New(ratelimit.Config{
			Rate:  cfg.Auth.LoginLimit.Rate,
			Burst: cfg.Auth.LoginLimit.Burst,
		})
	}

	jwt, err := auth.NewJWTManager(cfg.Auth.JWT.Secret, cfg.Auth.JWT.Algorithm, cfg.Auth.JWT.ExpiresIn, cfg.Auth.JWT.Issuer)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT manager: %w", err)
	}

	s.engine = s.buildEngine(s.dependencies(jwt))
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      s.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return nil
}

func (s *Server) dependencies(jwt *auth.JWTManager) handler.Dependencies {
	limit := s.config.Pagination.DefaultLimit
	hasher := auth.NewPasswordHasher(s.config.Auth.BcryptCost)

	dashOpts := []dashboard.Option{}
	if s.cache != nil {
		dashOpts = append(dashOpts, dashboard.WithCache(s.cache, s.config.Cache.DashboardTTL))
	}
	dash := dashboard.NewService(s.repo, dashOpts...)

	listeners := []registry.MailListener{dash.Invalidate}
	if s.metrics != nil {
		listeners = append(listeners, s.metrics.MailListener())
	}

	return handler.Dependencies{
		Repository:   s.repo,
		Cache:        s.cache,
		Metrics:      s.metrics,
		JWT:          jwt,
		LoginLimiter: s.limiter,
		MailIn:       mailin.NewManager(s.repo, mailin.WithDefaultLimit(limit), mailin.WithListeners(listeners...)),
		MailOut:      mailout.NewManager(s.repo, mailout.WithDefaultLimit(limit), mailout.WithListeners(listeners...)),
		Councils:     council.NewManager(s.repo, council.WithDefaultLimit(limit)),
		Services:     services.NewManager(s.repo, services.WithDefaultLimit(limit), services.WithListeners(dash.ServiceChanged)),
		ContactsIn:   contact.NewManager(s.repo, registry.DirectionIn, contact.WithDefaultLimit(limit)),
		ContactsOut:  contact.NewManager(s.repo, registry.DirectionOut, contact.WithDefaultLimit(limit)),
		Users:        user.NewManager(s.repo, hasher, user.WithDefaultLimit(limit)),
		Admins:       admin.NewManager(s.repo, hasher, admin.WithDefaultLimit(limit)),
		Dashboard:    dash,
	}
}

func (s *Server) buildEngine(deps handler.Dependencies) *gin.Engine {
	gin.SetMode(s.config.Server.Mode)

	engine := gin.New()
	engine.Use(middleware.Recovery(s.logger), middleware.RequestID())
	if s.tracer.IsEnabled() {
		engine.Use(middleware.Tracing())
	}
	if s.metrics != nil {
		engine.Use(s.metrics.Middleware())
	}
	engine.Use(middleware.AccessLog(log.Component("http")), middleware.CORS(s.config.CORS))

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Route introuvable"})
	})

	if s.metrics != nil {
		engine.GET(s.config.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}

	handler.NewHandler(deps, log.Component("handler")).RegisterRoutes(engine)
	return engine
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Repository returns the repository the server runs on
func (s *Server) Repository() registry.Repository {
	return s.repo
}

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts
// down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("registry server starting",
			log.String("address", s.config.Server.Address),
			log.String("database", s.config.Database.Type),
			log.Bool("cache", s.cache != nil),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the storage, the cache and the tracer
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.running {
		s.running = false
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("failed to shutdown http server: %w", shutdownErr)
		}
	}
	s.release(ctx)

	s.logger.Info("registry server stopped")
	return err
}

func (s *Server) release(ctx context.Context) {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.tracer != nil {
		if err := s.tracer.Shutdown(ctx); err != nil {
			s.logger.Warn("failed to shutdown tracer", log.Error(err))
		}
		s.tracer = nil
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("failed to close cache", log.Error(err))
		}
		s.cache = nil
	}
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			s.logger.Warn("failed to close repository", log.Error(err))
		}
		s.repo = nil
	}
}
