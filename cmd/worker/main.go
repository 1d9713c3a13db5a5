package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/jobintel/notify-api/config"
	"github.com/jobintel/notify-api/internal/email"
	"github.com/jobintel/notify-api/internal/queue"
	"github.com/jobintel/notify-api/internal/repository/postgres"
	"github.com/jobintel/notify-api/internal/worker"
	"github.com/jobintel/notify-api/pkg/logger"
	"github.com/jobintel/notify-api/pkg/messaging"
	redisbroker "github.com/jobintel/notify-api/pkg/messaging/redis"
	"github.com/jobintel/notify-api/pkg/metrics"
)

// workerEnv holds worker-only tuning that has no place in the shared
// config file.
type workerEnv struct {
	HealthPort     int  `envconfig:"HEALTH_PORT" default:"8081"`
	RealtimeEvents bool `envconfig:"REALTIME_EVENTS" default:"true"`
}

func main() {
	_ = godotenv.Load()

	var env workerEnv
	if err := envconfig.Process("worker", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to read worker environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Redis.URL == "" {
		log.Fatal().Msg("REDIS_URL is required for the delivery worker")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database.ToDBConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	consumer, err := queue.NewRedisQueue(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis queue")
	}
	defer consumer.Close()

	var broker messaging.Broker
	if env.RealtimeEvents {
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
	}

	userRepo := postgres.NewUserRepository(db)
	logRepo := postgres.NewNotificationLogRepository(db)

	emailSvc := email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	w := worker.NewDeliveryWorker(
		consumer,
		userRepo,
		logRepo,
		emailSvc,
		broker,
		appLogger,
		metrics.New("notify_worker"),
	)

	setupHealthCheck(env.HealthPort, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("Shutting down...")
		cancel()
	}()

	w.Start(ctx)
}

func setupHealthCheck(port int, logger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			logger.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}
