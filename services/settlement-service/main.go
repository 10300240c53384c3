package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	aws_pkg "github.com/yashrajoria/bulk-settlement/pkg/aws"
	"github.com/yashrajoria/bulk-settlement/services/common/logger"
	"github.com/yashrajoria/bulk-settlement/services/common/middleware"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/consumer"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/controllers"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/database"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/events"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/providers"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/repository"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/routes"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/services"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "settlement-service"

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		logger.Initialize(os.Getenv("APP_ENV")).Fatal("Config load failed", zap.Error(err))
	}

	// --- Logging (CloudWatch tee is non-fatal) ---
	var cwWriter io.Writer
	cwLogs, err := aws_pkg.NewCloudWatchLogsWriter(context.Background(), serviceName)
	if err == nil && cwLogs.IsEnabled() {
		cwWriter = cwLogs
		defer cwLogs.Close()
	}
	log := logger.InitializeWithWriter(cfg.Env, cwWriter)
	defer log.Sync()
	if err != nil {
		log.Warn("CloudWatch Logs disabled", zap.Error(err))
	}

	// --- Database ---
	db, err := database.ConnectPostgres(cfg.Postgres, log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatal("Redis connection failed", zap.Error(err))
	}

	// --- AWS setup ---
	awsCfg, err := aws_pkg.LoadAWSConfig(context.Background())
	if err != nil {
		log.Fatal("Failed to load AWS config", zap.Error(err))
	}
	snsClient := aws_pkg.NewSNSClient(awsCfg)
	uploader := aws_pkg.NewS3Uploader(awsCfg)

	metricsClient, err := aws_pkg.NewMetricsClient(context.Background())
	if err != nil {
		log.Warn("CloudWatch metrics client init failed (non-fatal)", zap.Error(err))
	}

	// --- Kafka (optional) ---
	var runEvents events.RunEventPublisher
	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.RunEventsTopic, log)
		runEvents = producer
	} else {
		log.Warn("KAFKA_BROKERS not set, run events disabled")
	}

	// --- Enrichment (optional) ---
	var enrichment providers.EnrichmentProvider
	if cfg.EnrichmentBaseURL != "" {
		enrichment = providers.NewPlaceResolverClient(cfg.EnrichmentBaseURL, cfg.EnrichmentAPIKey, cfg.EnrichmentRatePerSec)
	} else {
		log.Warn("ENRICHMENT_BASE_URL not set, using local MID patterns only")
	}

	// --- Dependency injection ---
	deps := services.Dependencies{
		Prices:         repository.NewGormPriceDirectory(db),
		Ledger:         repository.NewGormLedgerStore(db),
		Stores:         repository.NewGormRecordStores(db),
		Sequence:       repository.NewRedisSequenceGenerator(redisClient, log),
		Locker:         repository.NewRedisAccountLocker(redisClient),
		Reconciliation: repository.NewGormReconciliationRepository(db),
		Enrichment:     enrichment,
		Events:         runEvents,
		SNS:            snsClient,
		Uploader:       uploader,
	}
	if metricsClient != nil {
		deps.Metrics = metricsClient
	}
	settlementService := services.NewSettlementService(deps, services.Options{
		LeaseTTL:             cfg.AccountLeaseTTL,
		CompensationTimeout:  cfg.CompensationLimit,
		SNSTopicARN:          cfg.SNSTopicARN,
		ReconciliationBucket: cfg.ReconBucket,
	}, log)
	bulkRunController := controllers.NewBulkRunController(settlementService)

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(deps.Metrics, serviceName, log))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimitMiddleware(middleware.NewKeyedRateLimiter(rate.Limit(2), 5, 10*time.Minute)))
	r.Use(middleware.Timeout(30 * time.Second))

	routes.RegisterSettlementRoutes(r, bulkRunController)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})

	// --- SQS intake (optional) ---
	pollCtx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()
	if cfg.BulkRunQueueURL != "" {
		intake := consumer.NewBulkRunIntake(settlementService, deps.Metrics, cfg.QueuedRunTimeout, log)
		sqsConsumer := aws_pkg.NewSQSConsumer(awsCfg, cfg.BulkRunQueueURL, log).WithVisibility(cfg.QueueVisibility, 10)
		go func() {
			if err := sqsConsumer.StartPolling(pollCtx, intake.Handle); err != nil && pollCtx.Err() == nil {
				log.Error("SQS intake stopped", zap.Error(err))
			}
		}()
	}

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info("Settlement Service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	stopPolling()

	httpShutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(httpShutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("Kafka producer close error", zap.Error(err))
		}
	}
	if err := redisClient.Close(); err != nil {
		log.Error("Redis close error", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		log.Error("Database close error", zap.Error(err))
	}

	log.Info("Settlement Service stopped gracefully")
}
