package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/minimart/gateway"
	"github.com/example/minimart/pkg/auth"
	"github.com/example/minimart/pkg/config"
	"github.com/example/minimart/pkg/discovery"
	"github.com/example/minimart/pkg/engine"
	"github.com/example/minimart/pkg/events"
	"github.com/example/minimart/pkg/notify"
	"github.com/example/minimart/pkg/repository"
	"go.uber.org/zap"
)

func main() {
	// Load config
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting minimart API",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port))

	// MongoDB
	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	products := repository.NewProductRepository(mongoRepo)
	orders := repository.NewOrderRepository(mongoRepo)
	users := repository.NewUserRepository(mongoRepo)

	// Redis
	cache := repository.NewRedisRepository(&cfg.Redis)

	ctx := context.Background()
	if err := mongoRepo.Ping(ctx); err != nil {
		logger.Fatal("MongoDB connection failed", zap.Error(err))
	}
	if err := cache.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed, continuing without cache", zap.Error(err))
	} else {
		logger.Info("Redis connected successfully")
	}

	// Placement engine
	placement := engine.New(products, orders, logger.Named("engine"))

	// Bearer tokens
	tokens := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL)

	// Order event stream
	var producer *events.Producer
	producerCtx, producerCancel := context.WithCancel(ctx)
	if len(cfg.Kafka.Brokers) > 0 {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Buffer, cfg.Server.Name, logger.Named("events"))
		producer.Start(producerCtx)
		logger.Info("Kafka producer started", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// Notifications
	notifier, err := notify.NewNotifier(logger)
	if err != nil {
		logger.Fatal("Failed to start notifier", zap.Error(err))
	}

	// Service discovery
	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd)
	if err != nil {
		logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		sd = nil
	}
	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	if sd != nil {
		if err := sd.Register(ctx, instance); err != nil {
			logger.Warn("Failed to register service", zap.Error(err))
		} else {
			logger.Info("Service registered in etcd", zap.String("name", cfg.Server.Name))
		}
	}

	// Gateway
	gw := gateway.NewGateway(cfg, logger, gateway.Deps{
		Engine:   placement,
		Products: products,
		Orders:   orders,
		Users:    users,
		Cache:    cache,
		Tokens:   tokens,
		Producer: producer,
		Notifier: notifier,
	})
	gw.SetupRoutes()

	// Start gateway in goroutine
	gwErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			gwErr <- err
		}
	}()

	logger.Info("Gateway started successfully")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-gwErr:
		logger.Fatal("Gateway error", zap.Error(err))
	}

	if sd != nil {
		if err := sd.Deregister(ctx, instance); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}

	producerCancel()
	if producer != nil {
		producer.WaitClosed()
	}
	notifier.Shutdown()
	cache.Close()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mongoRepo.Close(closeCtx); err != nil {
		logger.Error("Failed to close MongoDB connection", zap.Error(err))
	}

	logger.Info("Service stopped")
}
