package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/blogward/blogward/internal/auth"
	"github.com/blogward/blogward/internal/cache"
	"github.com/blogward/blogward/internal/config"
	"github.com/blogward/blogward/internal/http/handlers"
	"github.com/blogward/blogward/internal/http/middlewares"
	"github.com/blogward/blogward/internal/lifecycle"
	"github.com/blogward/blogward/internal/observability"
	"github.com/blogward/blogward/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type RouterDeps struct {
	Cfg      config.Config
	Log      *slog.Logger
	Pool     *pgxpool.Pool
	Prom     *observability.Prom
	Registry *prometheus.Registry
	JWT      *auth.Manager
	Feed     *cache.FeedCache
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(deps.Log))
	r.Use(otelgin.Middleware("blogward-api"))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(deps.Cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(middlewares.RequireJSON())

	// ops endpoints
	ping := func() error {
		if deps.Pool == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		return deps.Pool.Ping(ctx)
	}
	health := handlers.NewHealthHandler(ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	// the service metrics live on the custom registry, not the default one
	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	} else {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// wire up repositories and the lifecycle coordinator
	usersRepo := postgres.NewUsersRepo(deps.Pool, deps.Prom)
	articlesRepo := postgres.NewArticlesRepo(deps.Pool, deps.Prom)
	coordinator := lifecycle.NewCoordinator(articlesRepo, deps.Prom, deps.Log)

	usersHandler := handlers.NewUsersHandler(usersRepo, articlesRepo, deps.JWT, deps.Cfg, deps.Log)
	articlesHandler := handlers.NewArticlesHandler(articlesRepo, coordinator, deps.Feed, deps.Log)

	authMW := middlewares.NewAuthMiddleware(deps.JWT)

	// credential endpoints get a tight per-IP window
	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)
	limit := loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP)

	users := r.Group("/api/users")
	{
		users.POST("/register", authMW.RequireGuest(), limit, usersHandler.Register)
		users.POST("/login", authMW.RequireGuest(), limit, usersHandler.Login)
		users.POST("/login-2fa", authMW.RequireTwoFAPending(), limit, usersHandler.LoginTwoFA)
		users.POST("/logout", authMW.RequireAuth(), usersHandler.Logout)
		users.GET("/user-details", authMW.RequireAuth(), usersHandler.UserDetails)
		users.POST("/grant-admin-access", authMW.RequireAuth(), middlewares.RequireSuperAdmin(), usersHandler.GrantAdmin)
		users.POST("/revoke-admin-access", authMW.RequireAuth(), middlewares.RequireSuperAdmin(), usersHandler.RevokeAdmin)
		users.GET("/get-superadmin-data", authMW.RequireAuth(), middlewares.RequireSuperAdmin(), usersHandler.SuperAdminData)
	}

	articles := r.Group("/api/article")
	{
		articles.POST("/create", authMW.RequireAuth(), middlewares.ForbidViewer(), articlesHandler.Create)
		articles.GET("/get/mine", authMW.RequireAuth(), articlesHandler.Mine)
		articles.GET("/get/public", authMW.RequireAuth(), articlesHandler.Public)
		articles.GET("/get-details/:id", authMW.RequireAuth(), middlewares.ResolveArticle(articlesRepo), middlewares.RequireArticleReadable(), articlesHandler.Details)
		articles.PUT("/update/:id", authMW.RequireAuth(), middlewares.ResolveArticle(articlesRepo), middlewares.RequireArticleOwner(), articlesHandler.Update)
		articles.DELETE("/delete/:id", authMW.RequireAuth(), middlewares.ResolveArticle(articlesRepo), middlewares.RequireArticleOwner(), articlesHandler.Delete)
		articles.POST("/update-status/:id", authMW.RequireAuth(), middlewares.RequireSuperAdmin(), middlewares.ResolveArticle(articlesRepo), articlesHandler.UpdateStatus)
		articles.GET("/get-history/:id", authMW.RequireAuth(), middlewares.ResolveArticle(articlesRepo), middlewares.RequireOwnerAdminOrSuperAdmin(), articlesHandler.History)
	}

	return r
}
