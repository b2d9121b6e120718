package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/example/buildco/backend/internal/auth"
	"github.com/example/buildco/backend/internal/config"
	"github.com/example/buildco/backend/internal/db"
	httpserver "github.com/example/buildco/backend/internal/http"
	"github.com/example/buildco/backend/internal/mq"
	"github.com/example/buildco/backend/internal/notify"
	"github.com/example/buildco/backend/internal/repository"
	"github.com/example/buildco/backend/internal/service"
	"github.com/example/buildco/backend/internal/storage"
	"github.com/example/buildco/backend/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := config.InitLogging(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	store := openStore(cfg, logger)

	blobs, err := storage.NewLocalStore(cfg.UploadDir, cfg.UploadPrefix)
	if err != nil {
		logger.Fatalf("prepare upload dir: %v", err)
	}

	mailer := notify.NewMailer(notify.NewSMTPSender(cfg.SMTP), cfg.SiteURL, cfg.AdminNotifyEmail, logger)
	notifications := worker.NewNotificationWorker(mailer, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Without a broker, events go straight to the worker in-process.
	var publisher mq.Publisher = notifications
	var rabbitPub *mq.RabbitPublisher
	var consumer *mq.RabbitConsumer
	if cfg.MQURL != "" {
		rabbitPub, err = mq.NewRabbitPublisher(cfg.MQURL, cfg.MQExchange)
		if err != nil {
			logger.WithError(err).Warn("rabbitmq unavailable, notifications sent in-process")
		} else {
			consumer, err = mq.NewRabbitConsumer(cfg.MQURL, cfg.MQExchange, cfg.MQQueue)
			if err != nil {
				logger.WithError(err).Warn("rabbitmq consumer unavailable, notifications sent in-process")
				_ = rabbitPub.Close()
				rabbitPub = nil
			} else {
				publisher = rabbitPub
				go func() {
					if err := notifications.Run(ctx, consumer); err != nil {
						logger.WithError(err).Error("notification worker stopped")
					}
				}()
			}
		}
	}

	if cfg.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH is empty, admin login is disabled")
	}
	authSvc := auth.NewService(cfg.JWTSecret, cfg.TokenTTL, auth.Admin{
		Email:        cfg.AdminEmail,
		Name:         cfg.AdminName,
		PasswordHash: cfg.AdminPasswordHash,
	})

	rdb := newRedisClient(cfg, logger)

	maintenance := service.NewMaintenanceService(store, blobs, publisher, logger)
	apiServer := httpserver.NewServer(httpserver.Options{
		Maintenance:  maintenance,
		Auth:         authSvc,
		Redis:        rdb,
		RateLimit:    cfg.RateLimit,
		RateWindow:   cfg.RateWindow,
		UploadDir:    blobs.Dir(),
		UploadPrefix: cfg.UploadPrefix,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           apiServer.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown error")
	}

	if consumer != nil {
		_ = consumer.Close()
	}
	if rabbitPub != nil {
		_ = rabbitPub.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	logger.Info("bye")
}

func openStore(cfg config.Config, logger *log.Logger) service.Store {
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryRepository()
	case "postgres":
		database, err := db.New(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatalf("connect database: %v", err)
		}
		if err := db.Migrate(database); err != nil {
			logger.Fatalf("auto migrate: %v", err)
		}
		return repository.NewMaintenanceRepository(database)
	default:
		logger.Fatalf("unknown STORE_DRIVER %q", cfg.StoreDriver)
		return nil
	}
}

// newRedisClient returns nil when Redis is not configured or not reachable,
// which turns rate limiting off.
func newRedisClient(cfg config.Config, logger *log.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unavailable, rate limiting disabled")
		_ = client.Close()
		return nil
	}
	return client
}

func init() {
	if mode := os.Getenv("GIN_MODE"); mode == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
