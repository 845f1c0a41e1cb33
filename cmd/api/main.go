package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sjperalta/fintera-installments/docs" // Swagger docs
	"github.com/sjperalta/fintera-installments/internal/config"
	"github.com/sjperalta/fintera-installments/internal/database"
	"github.com/sjperalta/fintera-installments/internal/events"
	"github.com/sjperalta/fintera-installments/internal/handlers"
	"github.com/sjperalta/fintera-installments/internal/jobs"
	"github.com/sjperalta/fintera-installments/internal/metrics"
	"github.com/sjperalta/fintera-installments/internal/middleware"
	"github.com/sjperalta/fintera-installments/internal/repository"
	"github.com/sjperalta/fintera-installments/internal/services"
	"github.com/sjperalta/fintera-installments/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title Fintera Installments API
// @version 1.0
// @description Installment financing engine: plan origination, amortization schedules, payments and customer credit reconciliation
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment, cfg.LogLevel)

	// Initialize Sentry (GlitchTip) when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	dbOpts := database.DefaultOptions(cfg.IsProduction())
	dbOpts.SlowThreshold = cfg.DBSlowThreshold
	dbOpts.MaxOpenConns = cfg.DBMaxOpenConns
	dbOpts.MaxIdleConns = cfg.DBMaxIdleConns
	dbOpts.LogLevel = logger.ParseGormLevel(cfg.DBLogLevel, dbOpts.LogLevel)
	db, err := database.Connect(cfg.DatabaseURL, dbOpts)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	repos := repository.NewRepositories(db)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	publisher := newPublisher(cfg)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New(prometheus.DefaultRegisterer)
	}

	svcs := services.NewServices(repos, worker, publisher, m, services.SystemClock)

	scheduleJobs(worker, svcs, cfg)

	h := handlers.NewHandlers(svcs, worker)
	router := setupRouter(h, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Drain pending event publishes before closing the broker connection
	worker.Shutdown()
	logger.Info("Background worker stopped")
	if err := publisher.Close(); err != nil {
		logger.Error("Failed to close event publisher", "error", err)
	}

	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func newPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set; domain events will only be logged")
		return events.LogPublisher{}
	}
	logger.Info("Publishing domain events to Kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		// Health check (public)
		v1.GET("/health", h.Health.Index)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			// Plans
			protected.POST("/plans/preview", h.Plan.Preview)
			protected.POST("/plans", h.Plan.Create)
			protected.GET("/plans", h.Plan.Index)
			protected.GET("/plans/defaulted", h.Plan.Defaulted)
			protected.GET("/plans/:plan_id", h.Plan.Show)
			protected.POST("/plans/:plan_id/installments/:installment_no/pay", h.Payment.Pay)

			// Customer credit
			protected.GET("/customers/:customer_id/ledger", h.Ledger.Show)
			protected.POST("/customers/:customer_id/reconcile", h.Ledger.Reconcile)

			// Admin-only operations
			admin := protected.Group("")
			admin.Use(middleware.RequireRole(middleware.RoleAdmin))
			{
				admin.POST("/plans/:plan_id/cancel", h.Plan.Cancel)
				admin.POST("/customers/:customer_id/credits", h.Ledger.RecordCredit)
				admin.GET("/audits", h.Audit.Index)
				admin.GET("/stats", h.Report.Stats)
				admin.GET("/jobs/status", h.Report.Jobs)
			}
		}
	}

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services, cfg *config.Config) {
	// Refresh portfolio gauges (including the defaulted classification)
	worker.ScheduleEveryImmediate(cfg.DefaultedRefreshInterval, func(ctx context.Context) error {
		logger.Info("[Job] Refreshing portfolio gauges...")
		return svcs.Report.RefreshGauges(ctx)
	})

	logger.Info("Scheduled recurring jobs")
}
