package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"session-hub/app/config"
	"session-hub/app/domain"
	"session-hub/app/driver/kratos"
	"session-hub/app/driver/redisstore"
	"session-hub/app/driver/runtime"
	"session-hub/app/driver/storage"
	"session-hub/app/gateway"
	"session-hub/app/port"
	"session-hub/app/rest"
	"session-hub/app/usecase"
)

// Container holds all dependencies for the application
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Drivers
	KratosClient *kratos.Client
	Identity     *kratos.Provider
	Storage      port.Storage
	Visibility   *runtime.VisibilityNotifier

	// Gateways
	ProfileCache   port.ProfileCache
	ProfileGateway port.ProfileGateway

	// Usecases
	Manager   *usecase.LifecycleUsecase
	Refresher *usecase.RefreshUsecase

	redisStore *redisstore.Store
}

// NewContainer creates and initializes a new dependency injection container
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	container := &Container{
		Config: cfg,
		Logger: logger,
	}

	clock := runtime.NewSystemClock()

	kratosClient, err := kratos.NewClient(cfg, logger.With("component", "kratos_client"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Kratos client: %w", err)
	}
	container.KratosClient = kratosClient

	container.Identity = kratos.NewProvider(
		kratosClient,
		clock,
		cfg.SessionPollInterval,
		cfg.SessionToken,
		logger.With("component", "identity_provider"),
	)

	container.Storage, err = newStorage(cfg, container)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	container.Visibility = runtime.NewVisibilityNotifier()

	container.ProfileCache = gateway.NewProfileCache(
		container.Storage,
		clock,
		cfg.CacheTTL,
		logger,
	)

	container.ProfileGateway = gateway.NewProfileGateway(
		cfg.BackendBaseURL,
		&http.Client{Timeout: cfg.FetchTimeout + time.Second},
		cfg.FetchTimeout,
		logger,
	)

	policy := domain.RetryPolicy{
		Attempts: cfg.RetryAttempts,
		Backoff:  cfg.RetryBackoff,
	}

	container.Manager = usecase.NewLifecycleUsecase(
		container.Identity,
		container.ProfileGateway,
		container.ProfileCache,
		clock,
		policy,
		logger,
	)

	container.Refresher = usecase.NewRefreshUsecase(
		container.Identity,
		container.ProfileCache,
		clock,
		container.Visibility,
		container.Manager,
		cfg.RefreshInterval,
		cfg.EarlyRefreshWindow,
		logger,
	)
	container.Manager.BindRefresher(container.Refresher)

	logger.Info("Container initialized with full dependency stack")

	return container, nil
}

func newStorage(cfg *config.Config, container *Container) (port.Storage, error) {
	switch cfg.StorageBackend {
	case "redis":
		store, err := redisstore.NewStore(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis unreachable: %w", err)
		}
		container.redisStore = store
		return store, nil
	default:
		return storage.NewFileStore(cfg.StateDir)
	}
}

// CreateRouter creates and returns a fully configured Echo router
func (c *Container) CreateRouter() *echo.Echo {
	routerConfig := rest.RouterConfig{
		Logger:      c.Logger,
		Manager:     c.Manager,
		Tokens:      c.Identity,
		Visibility:  c.Visibility,
		Identity:    c.KratosClient,
		EnableDebug: c.Config.LogLevel == "debug",
	}

	router := rest.NewRouter(routerConfig)

	c.Logger.Info("Full API router created")
	return router
}

// Close releases held resources.
func (c *Container) Close() {
	if c.Manager != nil {
		c.Manager.Close()
	}
	if c.redisStore != nil {
		if err := c.redisStore.Close(); err != nil {
			c.Logger.Warn("failed to close redis store", "error", err)
		}
	}
}
