package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"rosegold/market-service/internal/auth"
	"rosegold/market-service/internal/chat"
	"rosegold/market-service/internal/config"
	"rosegold/market-service/internal/mailer"
	"rosegold/market-service/internal/push"
	"rosegold/market-service/internal/repository"
	"rosegold/market-service/internal/server"
	"rosegold/market-service/internal/service"
	"rosegold/market-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to read config file: %v", err)
	}

	logger := logrus.New()

	switch cfg.LogLevel {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	logger.Info("Connected to PostgreSQL database")

	accountRepo := repository.NewAccountRepository(db)
	itemRepo := repository.NewItemRepository(db)
	chatRepo := repository.NewChatRepository(db)

	for _, init := range []func() error{
		accountRepo.InitializeTables,
		itemRepo.InitializeTables,
		chatRepo.InitializeTables,
	} {
		if err := init(); err != nil {
			logger.Fatalf("Failed to initialize database tables: %v", err)
		}
	}

	tokens := auth.NewTokenManager(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	images := storage.NewImageStore(cfg.ImagesRoot)

	mail := mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SupportEmail, logger)

	var notifier chat.Notifier
	if cfg.APNSEnabled {
		apns, err := push.NewAPNSNotifier(cfg.APNSHost, cfg.APNSTopic, cfg.APNSKeyFile, cfg.APNSKeyID, cfg.APNSTeamID, accountRepo, logger)
		if err != nil {
			logger.Fatalf("Failed to configure push notifications: %v", err)
		}
		notifier = apns
		logger.Info("Push notifications enabled")
	}

	registry := chat.NewRegistry()
	coordinator := chat.NewCoordinator(registry, chatRepo, notifier, logger)

	accountService := service.NewAccountService(accountRepo, tokens, mail, cfg.ResetTTL, logger)
	itemService := service.NewItemService(itemRepo, logger)
	chatService := service.NewChatService(chatRepo, coordinator, logger)

	srv := server.New(server.Deps{
		Accounts:    accountService,
		Items:       itemService,
		Chat:        chatService,
		Registry:    registry,
		Tokens:      tokens,
		Images:      images,
		PushTimeout: cfg.PushTimeout,
		SendBuffer:  cfg.SendBuffer,
		Logger:      logger,
	})

	address := net.JoinHostPort(cfg.ServerHost, cfg.ServerPort)

	go func() {
		logger.Infof("Starting HTTP server on %s", address)
		if err := srv.Listen(address); err != nil {
			logger.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("HTTP server shutdown error: %v", err)
	} else {
		logger.Info("HTTP server exited gracefully")
	}

	logger.Info("Server exited")
}
