package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/rent-service/internal/config"
	"github.com/Dan9191/rent-service/internal/handler"
	"github.com/Dan9191/rent-service/internal/middleware"
	"github.com/Dan9191/rent-service/internal/reminder"
	"github.com/Dan9191/rent-service/internal/repository"
	"github.com/Dan9191/rent-service/internal/service"
	"github.com/Dan9191/rent-service/internal/utils/email"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize store
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := repository.Open(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}

	// Initialize layers
	svc, err := service.NewService(store.Customers, store.Backup, logger, cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize service: %v", err)
	}
	h := handler.NewHandler(svc, logger)

	var scheduler *reminder.Scheduler
	if cfg.SMTPEnabled() {
		scheduler = reminder.NewScheduler(svc, email.NewSender(cfg, logger), cfg.ReminderRecipient, logger)
		if err := scheduler.Start(cfg.ReminderSchedule); err != nil {
			logger.Fatalf("Failed to start reminder: %v", err)
		}
	} else {
		logger.Info("SMTP not configured, increment reminders disabled")
	}

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.Metrics(logger))
	// Public routes
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	h.Routes(authRouter)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      middleware.PanicRecovery(logger)(middleware.NewCORS(cfg)(r)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Errorf("Failed to close store: %v", err)
	}
}
