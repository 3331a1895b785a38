package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"packtrack/frontend/exports"
	"packtrack/infrastructure/bootstrap"
	"packtrack/infrastructure/cache"
	"packtrack/infrastructure/config"
	httpserver "packtrack/infrastructure/http"
	"packtrack/infrastructure/logging"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("load env: %v", err)
	}
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.Setup(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: "packtrack",
		Env:     cfg.Env,
	})
	if err != nil {
		log.Fatalf("setup logging: %v", err)
	}
	if cfg.ConfigPath != "" && !cfg.ConfigFileUsed {
		logger.Warn("config file not found; using defaults", slog.String("path", cfg.ConfigPath))
	}

	app, err := bootstrap.Open(context.Background(), cfg)
	if err != nil {
		logger.Error("open stores", slog.Any("err", err))
		os.Exit(1)
	}
	defer app.Close()

	server := httpserver.NewServer(cfg.Addr, httpserver.Deps{
		DB:       app.DB,
		Machine:  app.Machine,
		Catalog:  app.Catalog,
		Sessions: cache.NewScanSessionCache(),
		Audit:    app.Audit,
		Recorder: exports.NewScanLogRecorder(app.DB, app.Audit),
		Scan:     cfg.Scan,
	})
	if err := server.Start(); err != nil {
		logger.Error("start server", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Info("packtrack listening", slog.String("addr", cfg.Addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := server.Stop(); err != nil {
		logger.Warn("graceful shutdown error", slog.Any("err", err))
	}
}
