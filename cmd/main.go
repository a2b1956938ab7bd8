package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"product-importer/internal/config"
	"product-importer/internal/handlers"
	"product-importer/internal/importer"
	"product-importer/internal/middleware"
	"product-importer/internal/models"
	"product-importer/internal/notify"
	"product-importer/internal/repository"
	"product-importer/internal/worker"
)

// @title Product Import API
// @version 1.0.0
// @description Bulk CSV product import service with async jobs, progress tracking and webhooks

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8087
// @BasePath /api/v1

// completionHooks fans an import completion out to webhooks and metrics.
type completionHooks struct {
	dispatcher *notify.Dispatcher
}

func (h *completionHooks) ImportCompleted(ctx context.Context, job models.ImportJob) {
	middleware.ObserveImportRows(job.RowsUpserted, job.RowsInvalid)
	h.dispatcher.ImportCompleted(ctx, job)
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (falling back to localhost)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	redisClient := redis.NewClient(redisOpts)

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (status mirroring disabled)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	// Initialize repositories
	productsRepo := repository.NewProductsRepository(db)
	webhooksRepo := repository.NewWebhooksRepository(db)

	// Initialize webhook dispatcher and status mirror
	dispatcher := notify.NewDispatcher(webhooksRepo, logger)
	mirror := importer.NewRedisMirror(redisClient, logger)

	// Initialize import service and worker pool
	importService := importer.NewService(productsRepo, importer.Options{
		BatchSize:  cfg.ImportBatchSize,
		MaxRetries: cfg.ImportMaxRetries,
		ErrorCap:   cfg.ImportErrorCap,
	}, mirror, &completionHooks{dispatcher: dispatcher}, logger)

	pool := worker.NewPool(cfg.WorkerCount, cfg.WorkerQueueDepth, logger)

	// Initialize handlers
	productsHandler := handlers.NewProductsHandler(productsRepo, dispatcher, logger)
	webhooksHandler := handlers.NewWebhooksHandler(webhooksRepo, dispatcher, logger)
	importHandler := handlers.NewImportHandler(importService, pool, cfg.UploadDir, logger)
	healthHandler := handlers.NewHealthHandler(db)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health and observability endpoints
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.HealthCheck)
	router.GET("/metrics", middleware.MetricsHandler())

	// API routes
	v1 := router.Group("/api/v1")
	{
		imports := v1.Group("/imports")
		{
			imports.POST("", importHandler.StartImport)
			imports.GET("/template", importHandler.GetImportTemplate)
			imports.GET("/:id", importHandler.GetImportStatus)
			imports.POST("/:id/cancel", importHandler.CancelImport)
		}

		products := v1.Group("/products")
		{
			products.GET("", productsHandler.GetProducts)
			products.GET("/:id", productsHandler.GetProduct)
			products.POST("", productsHandler.CreateProduct)
			products.PUT("/:id", productsHandler.UpdateProduct)
			products.DELETE("/:id", productsHandler.DeleteProduct)
			products.DELETE("", productsHandler.DeleteAllProducts)
		}

		webhooks := v1.Group("/webhooks")
		{
			webhooks.GET("", webhooksHandler.GetWebhooks)
			webhooks.POST("", webhooksHandler.CreateWebhook)
			webhooks.PUT("/:id", webhooksHandler.UpdateWebhook)
			webhooks.DELETE("/:id", webhooksHandler.DeleteWebhook)
			webhooks.POST("/:id/test", webhooksHandler.TestWebhook)
		}
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Product importer starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Println("Shutting down product-importer...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	// Let queued import jobs drain before exiting
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Printf("Worker pool did not drain cleanly: %v", err)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	log.Println("Product importer stopped")
}
