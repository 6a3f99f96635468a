package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blogapi/cache"
	"blogapi/config"
	"blogapi/controllers"
	"blogapi/database"
	"blogapi/handlers"
	"blogapi/middleware"
	"blogapi/observability"
	"blogapi/routes"
	"blogapi/services"
	"blogapi/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "blogapi/docs"
)

// @title Blog API
// @version 1.0
// @description Posts, comments, likes and live notifications for a multi-author blog.

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name token

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		observability.Logger().Warn("error loading .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		observability.Logger().Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := observability.Init(cfg.LogLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Error("failed to connect to database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	redisCache := cache.New(cfg.RedisURL)
	defer redisCache.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hubService := services.NewHubService()
	go hubService.Run(ctx)

	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL)
	userService := services.NewUserService(db, cfg.AdminEmailList())
	postService := services.NewPostService(db, userService, redisCache, hubService)

	authController := controllers.NewAuthController(userService, tokens, cfg.CookieSecure)
	userController := controllers.NewUserController(userService)
	postController := controllers.NewPostController(postService)
	wsHandler := handlers.NewWebSocketHandler(hubService, cfg.AllowedOriginList())

	metrics := middleware.NewMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(metrics.Middleware())
	r.Use(middleware.CORS(cfg.AllowedOriginList()))

	routes.SetupRoutes(r, tokens, userService, authController, userController, postController, wsHandler)

	r.GET("/metrics", metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "swagger", "/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
