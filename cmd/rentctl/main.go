package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Dan9191/rent-service/internal/config"
	"github.com/Dan9191/rent-service/internal/repository"
	"github.com/Dan9191/rent-service/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "rentctl",
		Short:         "Operator tools for the rent service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(remindCmd())
	rootCmd.AddCommand(hashPasswordCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// environment holds what every store-backed command needs
type environment struct {
	cfg   *config.Config
	log   *logrus.Logger
	store *repository.Store
	svc   *service.Service
}

func openEnvironment(ctx context.Context) (*environment, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)

	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	store, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	svc, err := service.NewService(store.Customers, store.Backup, log, cfg)
	if err != nil {
		store.Close(ctx)
		return nil, err
	}
	return &environment{cfg: cfg, log: log, store: store, svc: svc}, nil
}

func (e *environment) Close(ctx context.Context) {
	if err := e.store.Close(ctx); err != nil {
		e.log.Warnf("Failed to close store: %v", err)
	}
}
