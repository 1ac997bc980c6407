package http

import (
	"log/slog"

	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "taskhub-api"

type Deps struct {
	Log      *slog.Logger
	Config   config.Config
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Gate       middlewares.Authenticator
	Conveyance auth.Conveyance
	Accounts   handlers.AccountService
	Tasks      handlers.TaskManager
	Readiness  map[string]handlers.Pinger
}

func NewRouter(d Deps) *gin.Engine {
	if !d.Config.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.SecurityHeaders(d.Config.CookieSecure))
	r.Use(middlewares.CORSMiddleware(d.Config.CORSAllowedOrigins))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	// health + ops, outside the rate limit
	health := handlers.NewHealthHandler(d.Readiness)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/api/health", health.Health)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	var metrics middlewares.FailureRecorder
	var logins handlers.LoginRecorder
	if d.Prom != nil {
		metrics, logins = d.Prom, d.Prom
	}

	authMW := middlewares.NewAuthMiddleware(d.Gate, metrics)
	limiter := middlewares.NewRateLimiter(d.Config.RateLimitMax, d.Config.RateLimitWindow)

	api := r.Group("/api/v1")
	api.Use(middlewares.RequestLogger(d.Log))
	api.Use(limiter.RateLimiterMiddleware(middlewares.KeyByIP))
	api.Use(middlewares.MaxBodyBytes(d.Config.MaxBodyBytes))
	api.Use(middlewares.RequireJSON())

	authHandler := handlers.NewAuthHandler(d.Accounts, handlers.AuthOptions{
		Conveyance:   d.Conveyance,
		CookieSecure: d.Config.CookieSecure,
		Timeout:      d.Config.RequestTimeout,
		Logins:       logins,
	})

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/me", authMW.RequireAuth(), authHandler.Me)
	authGroup.PUT("/profile", authMW.RequireAuth(), authHandler.UpdateProfile)
	authGroup.PUT("/password", authMW.RequireAuth(), authHandler.ChangePassword)

	tasksHandler := handlers.NewTasksHandler(d.Tasks, d.Config.RequestTimeout)

	taskGroup := api.Group("/tasks", authMW.RequireAuth())
	taskGroup.POST("", tasksHandler.CreateTask)
	taskGroup.GET("", tasksHandler.ListTasks)
	taskGroup.GET("/:id", tasksHandler.GetTaskByID)
	taskGroup.PUT("/:id", tasksHandler.UpdateTask)
	taskGroup.DELETE("/:id", tasksHandler.DeleteTask)

	adminGroup := api.Group("/admin", authMW.RequireAuth(), authMW.RequireRole(user.RoleAdmin))
	adminGroup.GET("/tasks", tasksHandler.ListAllTasks)
	adminGroup.PUT("/tasks/:id", tasksHandler.AdminUpdateTask)
	adminGroup.DELETE("/tasks/:id", tasksHandler.AdminDeleteTask)

	r.NoRoute(handlers.RouteNotFound)

	return r
}
