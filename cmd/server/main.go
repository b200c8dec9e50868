package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/upchat/upchat-server/internal/app"
	"github.com/upchat/upchat-server/internal/config"
	"github.com/upchat/upchat-server/internal/log"
)

func main() {
	var configPath string
	var overrides config.Config

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.StringVar(&overrides.Storage, "storage", "", "chat store backend: memory or sqlite")
	flag.StringVar(&overrides.DatabasePath, "db", "", "sqlite database path")
	flag.Parse()

	bootLogger := log.New("info")
	cfg, path, err := config.Load(bootLogger, configPath)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	cfg.UpdateFrom(overrides)

	logger := log.New(cfg.LogLevel)
	logger.Info().
		Str("config", path).
		Str("addr", cfg.Addr).
		Str("storage", cfg.Storage).
		Msg("starting upchat server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init application")
	}

	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}
