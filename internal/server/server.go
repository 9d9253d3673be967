package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GwennLsk/BackCantineAston/internal/auth"
	"github.com/GwennLsk/BackCantineAston/internal/config"
	"github.com/GwennLsk/BackCantineAston/internal/user"
)

// Pinger is anything /ready should probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router *gin.Engine
	http   *http.Server
	config *config.Config
}

// New wires the user routes over repo. The notifier is also probed by
// /ready when it can be pinged.
func New(cfg *config.Config, repo user.Repository, notifier user.Notifier) *Server {
	if cfg.Environment != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		RequestIDMiddleware(),
		RequestLoggingMiddleware(),
		MetricsMiddleware(),
		corsMiddleware(),
		RateLimitMiddleware(float64(cfg.RateLimitRPS), cfg.RateLimitBurst),
	)

	userService := user.NewService(repo, notifier, cfg.JWTSecret)
	userHandler := user.NewHandler(userService)

	users := router.Group("/users")
	{
		users.POST("", userHandler.Create)
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.PATCH("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
		users.POST("/:id/orders", userHandler.AddOrder)
	}

	public := router.Group("/auth")
	{
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.RefreshToken)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", userHandler.GetMe)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/users/:id/credit", userHandler.Credit)
	}

	checks := map[string]Pinger{"store": repo}
	if p, ok := notifier.(Pinger); ok {
		checks["email_queue"] = p
	}

	router.GET("/health", Health)
	router.GET("/ready", Ready(checks))
	router.GET("/metrics", Metrics())
	SetupSwagger(router)

	return &Server{
		router: router,
		config: cfg,
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router exposes the handler tree, mostly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start blocks serving on the configured port until Shutdown is called.
func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
