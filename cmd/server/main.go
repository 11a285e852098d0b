package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"landlordpay/server/config"
	"landlordpay/server/internal/api"
	"landlordpay/server/internal/database"
	"landlordpay/server/internal/notify"
	"landlordpay/server/internal/payments"
	"landlordpay/server/internal/processor"
	"landlordpay/server/internal/queue"
	"landlordpay/server/internal/scheduler"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger := config.NewLogger(cfg.LogLevel)

	// Create the database directory for file backed databases
	if !strings.HasPrefix(cfg.Database.Path, "file:") {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			logger.WithError(err).Fatal("Failed to create database directory")
		}
	}
	logger.Infof("Using database at: %s", cfg.Database.Path)

	db, err := database.NewDatabase(cfg.Database.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	// Notification sinks
	hub := notify.NewHub(cfg.Server.AllowedOrigins, logger)
	sinks := []notify.Sink{notify.NewLogSink(db, cfg.Notifications.Keep), hub}
	if cfg.Telegram.Enabled {
		sinks = append(sinks, notify.NewTelegramSink(notify.TelegramConfig{
			IsEnabled: true,
			BotToken:  cfg.Telegram.BotToken,
			ChatID:    cfg.Telegram.ChatID,
		}, logger))
	}
	if cfg.SMS.Enabled {
		sinks = append(sinks, notify.NewSMSSink(notify.SMSConfig{
			AccountSID:    cfg.SMS.AccountSID,
			AuthToken:     cfg.SMS.AuthToken,
			FromPhone:     cfg.SMS.FromPhone,
			ComplaintLine: cfg.SMS.ComplaintLine,
		}))
	}
	dispatcher := notify.NewDispatcher(cfg.Notifications.BufferSize, cfg.Notifications.SendTimeout, logger, sinks...)
	dispatcher.Start()

	svc := payments.NewService(db, dispatcher, logger)

	// Callback retries
	retries := queue.NewCallbackQueue(cfg.Retry.QueueSize, logger)
	retryProcessor := processor.NewRetryProcessor(svc, retries, cfg.Retry, logger)
	retryProcessor.Start()
	retries.Start()

	sched := scheduler.NewScheduler(svc, logger)
	if cfg.Rent.AccrualSchedule != "" {
		if err := sched.ScheduleRentAccrual(cfg.Rent.AccrualSchedule); err != nil {
			logger.WithError(err).Fatal("Invalid rent accrual schedule")
		}
	}
	sched.Start()

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger))
	api.SetupRoutes(router, api.NewHandler(db, svc, retries, hub, logger), cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Infof("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	sched.Stop()
	retryProcessor.Stop()
	retries.Close()
	hub.Close()
	dispatcher.Close()
	logger.Info("Server stopped")
}
