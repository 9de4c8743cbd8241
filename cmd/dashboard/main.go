package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tradedash/config"
	"tradedash/internal/app"
	"tradedash/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to start", zap.Error(err))
	}

	log.Info("dashboard starting",
		zap.String("backend", cfg.Backend.URL),
		zap.String("addr", cfg.Dashboard.Addr),
	)
	if err := a.Run(ctx); err != nil {
		log.Error("dashboard stopped", zap.Error(err))
		os.Exit(1)
	}
}
