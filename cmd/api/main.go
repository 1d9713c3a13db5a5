package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jobintel/notify-api/config"
	"github.com/jobintel/notify-api/internal/email"
	"github.com/jobintel/notify-api/internal/handler/health"
	"github.com/jobintel/notify-api/internal/handler/notification"
	"github.com/jobintel/notify-api/internal/middleware"
	"github.com/jobintel/notify-api/internal/queue"
	"github.com/jobintel/notify-api/internal/repository/postgres"
	"github.com/jobintel/notify-api/internal/router"
	"github.com/jobintel/notify-api/internal/service/notifier"
	"github.com/jobintel/notify-api/pkg/logger"
	"github.com/jobintel/notify-api/pkg/messaging"
	redisbroker "github.com/jobintel/notify-api/pkg/messaging/redis"
	"github.com/jobintel/notify-api/pkg/metrics"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database.ToDBConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	appRepo := postgres.NewApplicationRepository(db)
	userRepo := postgres.NewUserRepository(db)
	logRepo := postgres.NewNotificationLogRepository(db)

	var (
		notifQueue  queue.Queue
		broker      messaging.Broker
		redisClient *redis.Client
	)
	if cfg.Redis.URL != "" {
		notifQueue, err = queue.NewRedisQueue(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis queue")
		}

		broker, err = redisbroker.NewRedisBroker(redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &appLogger.ZL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis broker")
		}
		defer broker.Close()

		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse Redis URL")
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	} else {
		appLogger.Warn("REDIS_URL not set, notifications will be accepted but not delivered")
		notifQueue = queue.NewNoopQueue()
	}
	defer notifQueue.Close()

	m := metrics.New("notify_api")

	notifierSvc := notifier.NewService(appRepo, userRepo, notifQueue, appLogger, m)
	emailSvc := email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	healthHandler := health.NewHandler(db, redisClient)
	notificationHandler := notification.NewHandler(notifierSvc, logRepo, emailSvc, broker)

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.Security.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Security.AllowedOrigins
	}

	r := router.NewRouter(healthHandler, notificationHandler, router.Config{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimitRPS:     cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst:   cfg.RateLimit.Burst,
		CORSConfig:       corsConfig,
		MetricsPrefix:    "notify_api_http",
		MetricsPath:      cfg.Monitoring.MetricsPath,
	})
	r.Setup()

	// No WriteTimeout: /api/notifications/stream holds SSE connections open.
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     r.Engine(),
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		appLogger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("server exited properly")
}
