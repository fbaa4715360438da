package app

import (
	"net/http"

	"lendtrack/internal/auth"
	"lendtrack/internal/cache"
	"lendtrack/internal/config"
	"lendtrack/internal/handlers"
	"lendtrack/internal/logging"
	"lendtrack/internal/repo"
	"lendtrack/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

// stores is what the routes need from the storage layer.
type stores struct {
	users repo.UserRepo
	items repo.ItemRepo
	cache *cache.UserCache // nil disables caching
}

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, cfg config.Config, db *pgxpool.Pool, rdb *redis.Client, log logging.Logger) error {
	return setup(r, cfg, stores{
		users: repo.NewPGUserRepo(db),
		items: repo.NewPGItemRepo(db),
		cache: cache.NewUserCache(rdb, cfg.Redis.DefaultTTL.Duration()),
	}, log)
}

func setup(r *gin.Engine, cfg config.Config, st stores, log logging.Logger) error {
	r.GET("/", rootHandler(cfg))
	r.GET("/health", healthHandler(cfg))
	r.GET("/version", versionHandler(cfg))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))

	tokens := auth.NewTokenService(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL.Duration(), cfg.Auth.TokenIssuer)
	userSvc, err := service.NewUserService(st.users, st.cache, tokens, service.UserOptions{
		CaseSensitive: cfg.Auth.UsernameCaseSensitive,
		BcryptCost:    cfg.Auth.BcryptCost,
	}, log)
	if err != nil {
		return err
	}
	verifier := service.NewGoogleVerifier(cfg.Federation.TokenInfoURL, cfg.Federation.ClientID, cfg.Federation.Timeout.Duration())
	fedSvc := service.NewFederationService(verifier, userSvc, cfg.Federation.Address, log)
	lifecycle := service.NewLifecycleService(userSvc, service.NewItemService(st.items), log)

	requireAuth := auth.RequireCredentials(userSvc, tokens)
	// A repeated deactivation must still reach the handler.
	requireAuthOrInactive := auth.RequireCredentials(userSvc, tokens, auth.AllowInactive())

	authHandler := handlers.NewAuthHandler(userSvc, fedSvc, log)
	registerAuthRoutes(r, authHandler, requireAuth)

	userHandler := handlers.NewUserHandler(userSvc, lifecycle, log)
	registerUserRoutes(r, userHandler, requireAuth, requireAuthOrInactive)
	return nil
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Lendtrack API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
		})
	}
}

func healthHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "env": cfg.App.Env})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	}
}

func registerAuthRoutes(r gin.IRoutes, h *handlers.AuthHandler, requireAuth gin.HandlerFunc) {
	r.POST("/signup", h.Signup)
	r.POST("/signin", requireAuth, h.Signin)
	r.POST("/oauth", h.OAuth)
}

func registerUserRoutes(r gin.IRoutes, h *handlers.UserHandler, requireAuth, requireAuthOrInactive gin.HandlerFunc) {
	r.GET("/user", h.List)
	r.GET("/user/active", h.ListActive)
	r.GET("/user/name/:userName", h.GetByUsername)
	r.GET("/user/:id", h.GetByID)
	r.POST("/user", h.Create)
	r.PUT("/user/:id", requireAuth, h.Update)
	r.DELETE("/user/:id", requireAuthOrInactive, h.Delete)
}
