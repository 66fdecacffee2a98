package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fjod/go_shop/internal/cache"
	shophttp "github.com/fjod/go_shop/internal/http"
	"github.com/fjod/go_shop/internal/publisher"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/fjod/go_shop/internal/service"
	"github.com/fjod/go_shop/pkg/metrics"
)

type Config struct {
	HTTPPort          string        `envconfig:"HTTP_PORT" default:"8080"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	PostgresHost      string        `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort      int           `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser      string        `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword  string        `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
	PostgresDB        string        `envconfig:"POSTGRES_DB" default:"shop"`
	MigrationsDirPath string        `envconfig:"MIGRATIONS_DIR" default:"./migrations"`
	RedisAddr         string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD" default:""`
	KafkaBrokers      []string      `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
}

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	var cfg Config
	if err := envconfig.Process("shop", &cfg); err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	cred := &repository.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsDirPath,
	}

	store, err := repository.NewPostgresStore(cred)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to postgres")
	}
	defer store.Close()
	logrus.Info("connected to postgres")

	if err := store.RunMigrations(cred); err != nil {
		logrus.WithError(err).Fatal("failed to run migrations")
	}

	ctx := context.Background()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Fatal("redis connection failed")
	}
	logrus.Info("redis ping succeeded")

	cartCache := cache.NewRedisCache(redisClient)

	orderService := service.NewOrderService(store)
	cartService := service.NewCartService(store, cartCache)
	userService := service.NewUserService(store)
	catalogService := service.NewCatalogService(store)
	wishlistService := service.NewWishlistService(store)

	pollerCtx, stopPoller := context.WithCancel(ctx)
	defer stopPoller()
	poller := publisher.NewOutboxPoller(store, cfg.KafkaBrokers...)
	go poller.Run(pollerCtx)

	m := metrics.NewServerMetrics("shop_service")
	router := shophttp.NewRouter(
		shophttp.NewOrdersHandler(orderService, cartService),
		shophttp.NewCartHandler(cartService),
		shophttp.NewUsersHandler(userService),
		shophttp.NewProductsHandler(catalogService),
		shophttp.NewWishlistHandler(wishlistService),
		m,
		cfg.RequestTimeout,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.HTTPPort).Info("shop service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down server...")
	stopPoller()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Fatal("server forced to shutdown")
	}

	logrus.Info("server exited")
}
