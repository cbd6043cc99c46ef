package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/liftrightai/account-api/internal/account"
	"github.com/liftrightai/account-api/internal/config"
	"github.com/liftrightai/account-api/internal/database"
	"github.com/liftrightai/account-api/internal/email"
	httpServer "github.com/liftrightai/account-api/internal/http"
	"github.com/liftrightai/account-api/internal/logging"
	"github.com/liftrightai/account-api/internal/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	// Initialize MongoDB connection
	mongoClient, db, err := database.Connect(cfg.Mongo)
	if err != nil {
		return fmt.Errorf("failed to initialize mongodb: %w", err)
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Initialize account repository and indexes. The unique email index must
	// exist before the first registration is accepted.
	accountRepo := account.NewRepository(db)
	indexCtx, indexCancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
	defer indexCancel()
	if err := accountRepo.EnsureIndexes(indexCtx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	// Initialize session layer
	sessionStore := session.NewRedisStore(redisClient)
	sessions, err := session.NewManager(
		sessionStore,
		cfg.Session.CookieKey,
		cfg.Session.CookieName,
		cfg.Session.Duration,
		!cfg.Server.IsDevelopment(), // secure cookies outside dev
	)
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	// Initialize email service
	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromAddress,
		cfg.Email.ContactAddress,
		cfg.Email.FrontendURL,
	)

	// Initialize account service and handlers
	accountService := account.NewService(accountRepo, emailService, logger)
	accountHandler := account.NewHandler(accountService, sessions, emailService)

	// Initialize router
	router := httpServer.NewRouter(cfg, accountHandler, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
