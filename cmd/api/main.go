package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"talentmatch/api/internal/app"
	"talentmatch/api/internal/config"
	"talentmatch/api/internal/logger"
)

func main() {
	cfg := config.Load()

	zapLogger, err := logger.New(cfg.Server.Env != "development", cfg.Server.Env == "development")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	application, err := app.New(context.Background(), cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to build application", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		application.Shutdown()
	}()

	if err := application.Start(); err != nil {
		zapLogger.Fatal("server exited", zap.Error(err))
	}
}
