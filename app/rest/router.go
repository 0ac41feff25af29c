package rest

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"session-hub/app/port"
	"session-hub/app/rest/handlers"
	custommw "session-hub/app/rest/middleware"
)

// RouterConfig holds router configuration
type RouterConfig struct {
	Logger      *slog.Logger
	Manager     port.SessionManager
	Tokens      handlers.TokenSink
	Visibility  handlers.VisibilityReporter
	Identity    handlers.DependencyChecker
	EnableDebug bool
}

// NewRouter creates and configures the Echo router
func NewRouter(config RouterConfig) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.Debug = config.EnableDebug

	sessionHandler := handlers.NewSessionHandler(config.Manager, config.Tokens, config.Visibility, config.Logger)
	healthHandler := handlers.NewHealthHandler(config.Identity, config.Logger)

	rateLimiter := custommw.NewRateLimiter()

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status}, latency=${latency_human}, error=${error}\n",
	}))

	// API versioning
	v1 := e.Group("/v1")

	// Health endpoints
	health := v1.Group("/health")
	health.GET("", healthHandler.HealthCheck)
	v1.GET("/ready", healthHandler.ReadinessCheck)
	v1.GET("/live", healthHandler.LivenessCheck)

	// Session lifecycle endpoints
	session := v1.Group("/session")
	session.GET("/state", sessionHandler.GetState)
	session.POST("/signin/google", sessionHandler.SignInWithGoogle)
	session.POST("/signout", sessionHandler.SignOut)
	session.POST("/refresh", sessionHandler.Refresh)
	session.POST("/token", sessionHandler.UpdateToken)
	session.POST("/visibility", sessionHandler.Visibility)

	return e
}
