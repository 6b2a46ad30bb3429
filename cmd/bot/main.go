package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"foxfamily/internal/config"
	"foxfamily/internal/conversation"
	"foxfamily/internal/notify"
	"foxfamily/internal/scheduler"
	"foxfamily/internal/service"
	"foxfamily/internal/store"
	"foxfamily/internal/transport"
)

func main() {
	cfg := config.Load()

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	st, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close()

	logger.Info("store ready",
		zap.String("backend", cfg.StoreBackend),
		zap.String("path", cfg.StorePath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	console := transport.NewConsole(os.Stdin, os.Stdout)

	emailSender, err := notify.NewEmailSender(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, logger)
	if err != nil {
		logger.Fatal("Failed to initialize email sender", zap.Error(err))
	}

	familyService := service.NewFamilyService(st, logger)
	taskService := service.NewTaskService(st, logger)
	notifier := notify.New(st, console, emailSender, cfg.NotifyDelay, logger)
	engine := conversation.New(familyService, taskService, notifier, console, logger)

	reminders := scheduler.New(st, notifier, cfg.ReminderInterval, logger)
	go reminders.Run(ctx)

	logger.Info("bot started; reading events from stdin")
	for ev := range console.Events(ctx) {
		if err := engine.HandleEvent(ctx, ev); err != nil {
			logger.Error("event handling failed",
				zap.Int64("principal", ev.Principal),
				zap.Error(err))
		}
	}

	logger.Info("bot shutting down")
}

// buildLogger writes structured logs to the configured file and stderr.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Debug {
		zc = zap.NewDevelopmentConfig()
	}
	zc.OutputPaths = []string{"stderr"}
	if cfg.LogFile != "" {
		zc.OutputPaths = append(zc.OutputPaths, cfg.LogFile)
	}
	return zc.Build()
}

func openStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	switch cfg.StoreBackend {
	case "file":
		return store.NewFileStore(cfg.StorePath, logger), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.StorePath, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
