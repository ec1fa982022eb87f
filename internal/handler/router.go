package handler

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth   *AuthHandler
	Users  *UserHandler
	Habits *HabitHandler
	Health *HealthHandler
}

// RouterConfig holds the HTTP-level settings of the router.
type RouterConfig struct {
	Logger        *slog.Logger
	Authenticator Authenticator
	AllowOrigins  []string
}

// NewRouter builds the echo instance serving the API.
func NewRouter(cfg RouterConfig, h Handlers) *echo.Echo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler
	e.Validator = NewAppValidator()

	e.Pre(middleware.AddTrailingSlash())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(RequestLogger(logger))
	e.Use(middleware.Recover())
	if len(cfg.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.AllowOrigins,
			AllowCredentials: true,
		}))
	}

	if h.Health != nil {
		e.GET("/health/", h.Health.Health)
	}

	api := e.Group("/api")

	api.POST("/users/register/", h.Auth.Register)
	api.POST("/token/", h.Auth.Token)
	api.POST("/token/refresh/", h.Auth.Refresh)

	api.GET("/auth/google/", h.Auth.GoogleRedirect)
	api.GET("/auth/google/callback/", h.Auth.GoogleCallback)
	api.GET("/auth/github/", h.Auth.GitHubRedirect)
	api.GET("/auth/github/callback/", h.Auth.GitHubCallback)

	protected := api.Group("", JWTAuth(cfg.Authenticator))

	protected.GET("/users/me/", h.Users.Me)
	protected.PATCH("/users/me/", h.Users.UpdateMe)
	protected.DELETE("/users/me/", h.Users.DeleteMe)

	protected.GET("/habits/", h.Habits.List)
	protected.POST("/habits/", h.Habits.Create)
	protected.GET("/habits/public/", h.Habits.ListPublic)
	protected.GET("/habits/:id/", h.Habits.Get)
	protected.PATCH("/habits/:id/", h.Habits.Update)
	protected.DELETE("/habits/:id/", h.Habits.Delete)

	return e
}
