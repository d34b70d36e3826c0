package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/threadline/backend/internal/auth"
	"github.com/threadline/backend/internal/cache"
	"github.com/threadline/backend/internal/config"
	"github.com/threadline/backend/internal/database"
	"github.com/threadline/backend/internal/handlers"
	"github.com/threadline/backend/internal/logger"
	"github.com/threadline/backend/internal/middleware"
	"github.com/threadline/backend/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup structured logging
	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== Threadline server starting ===")

	// Initialize database
	if err := database.Initialize(); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	// Initialize auth service
	authService := auth.NewService(database.DB, cfg.JWTSecret)

	// Initialize tracing
	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  "threadline-backend",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.OTelEnabled,
		SamplingRate: cfg.SamplingRate(),
	})
	if err != nil {
		logger.WarnWithFields("Tracing disabled", err)
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	// Initialize handlers
	h := handlers.NewHandlers(database.DB, authService)

	// Redis is optional; without it the popular feed recomputes per request
	if cfg.RedisHost != "" {
		rc, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			logger.WarnWithFields("Redis unavailable, continuing without feed cache", err)
		} else {
			h.SetRedisClient(rc)
			defer rc.Close()
		}
	}

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS middleware
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"} // Configure properly for production
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.MetricsMiddleware())
	if tp != nil {
		r.Use(otelgin.Middleware("threadline-backend"))
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := database.Health(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "threadline-backend",
		})
	})

	// Prometheus scrape endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := r.Group("/api/v1")
	{
		// Authentication routes (public)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
			authGroup.GET("/me", h.AuthMiddleware(), h.Me)
		}

		// Post routes
		posts := api.Group("/posts")
		{
			posts.POST("", h.AuthMiddleware(), h.CreatePost)
			posts.GET("", h.OptionalAuthMiddleware(), h.ListPosts)
			posts.GET("/:id", h.OptionalAuthMiddleware(), h.GetPost)
			posts.POST("/:id/vote", h.AuthMiddleware(), h.VotePost)
			posts.POST("/:id/save", h.AuthMiddleware(), h.SavePost)
			posts.DELETE("/:id/save", h.AuthMiddleware(), h.UnsavePost)
			posts.POST("/:id/hide", h.AuthMiddleware(), h.HidePost)
			posts.DELETE("/:id/hide", h.AuthMiddleware(), h.UnhidePost)
			posts.POST("/:id/comments", h.AuthMiddleware(), h.CreateComment)
			posts.GET("/:id/comments", h.OptionalAuthMiddleware(), h.GetComments)
		}

		// Comment routes
		comments := api.Group("/comments")
		{
			comments.POST("/:id/vote", h.AuthMiddleware(), h.VoteComment)
		}

		// Feed routes
		feedsGroup := api.Group("/feeds")
		{
			feedsGroup.GET("/home", h.OptionalAuthMiddleware(), h.GetHomeFeed)
			feedsGroup.GET("/popular", h.OptionalAuthMiddleware(), h.GetPopularFeed)
			feedsGroup.GET("/best", h.OptionalAuthMiddleware(), h.GetBestFeed)
			feedsGroup.GET("/new", h.OptionalAuthMiddleware(), h.GetNewFeed)
			feedsGroup.GET("/top", h.OptionalAuthMiddleware(), h.GetTopFeed)

			custom := feedsGroup.Group("/custom")
			{
				custom.POST("", h.AuthMiddleware(), h.CreateCustomFeed)
				custom.GET("", h.AuthMiddleware(), h.ListCustomFeeds)
				custom.GET("/:id", h.OptionalAuthMiddleware(), h.GetCustomFeed)
				custom.PUT("/:id", h.AuthMiddleware(), h.UpdateCustomFeed)
				custom.DELETE("/:id", h.AuthMiddleware(), h.DeleteCustomFeed)
				custom.GET("/:id/posts", h.OptionalAuthMiddleware(), h.GetCustomFeedPosts)
			}
		}

		// Community routes
		communities := api.Group("/communities")
		{
			communities.POST("", h.AuthMiddleware(), h.CreateCommunity)
			communities.GET("", h.ListCommunities)
			communities.GET("/:name", h.GetCommunity)
			communities.GET("/:name/posts", h.OptionalAuthMiddleware(), h.GetCommunityPosts)
			communities.POST("/:name/join", h.AuthMiddleware(), h.JoinCommunity)
			communities.DELETE("/:name/join", h.AuthMiddleware(), h.LeaveCommunity)
			communities.POST("/:name/favorite", h.AuthMiddleware(), h.FavoriteCommunity)
		}

		// Message routes
		messages := api.Group("/messages")
		{
			messages.Use(h.AuthMiddleware())
			messages.POST("", h.SendMessage)
			messages.GET("", h.GetInbox)
			messages.GET("/:username", h.GetConversation)
		}

		// Self-scoped routes live under /me since the router cannot mix a
		// static segment with :username
		me := api.Group("/me")
		{
			me.Use(h.AuthMiddleware())
			me.GET("/communities", h.GetMyCommunities)
			me.GET("/saved", h.GetSavedPosts)
		}

		// User routes
		users := api.Group("/users")
		{
			users.GET("/:username", h.GetUserProfile)
			users.GET("/:username/posts", h.OptionalAuthMiddleware(), h.GetUserPosts)
			users.GET("/:username/comments", h.GetUserComments)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Threadline backend starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.FatalWithFields("Server forced to shutdown", err)
	}

	logger.Log.Info("Server exited")
}
