package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/testgrade/internal/app"
	"github.com/mind-engage/testgrade/internal/config"
	"github.com/mind-engage/testgrade/internal/logger"
)

func main() {
	cfg, err := config.Load(".", "./config")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	// --- Backends ---
	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	a, err := app.New(initCtx, cfg, lg)
	cancel()
	if err != nil {
		lg.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	// --- Serve until SIGINT/SIGTERM ---
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.Run(ctx); err != nil {
		lg.Error("server stopped", zap.Error(err))
		return
	}
	lg.Info("server stopped")
}
