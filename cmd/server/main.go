package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Placeboguy/anonymous-chat2/internal/auth"
	"github.com/Placeboguy/anonymous-chat2/internal/chat"
	"github.com/Placeboguy/anonymous-chat2/internal/config"
	"github.com/Placeboguy/anonymous-chat2/internal/server"
	"github.com/Placeboguy/anonymous-chat2/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting chat server", "addr", cfg.Port, "origins", cfg.AllowedOrigins)

	backend, err := storage.Open(ctx, cfg.DatabaseURL, cfg.DataDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(backend, tokens, logger)

	room := chat.NewRoom(logger, backend, authService, chat.WithHistoryLimit(cfg.HistoryLimit))
	hub := server.NewHub(room, logger, server.HubConfig{
		MaxMessageSize: cfg.MaxMessageSize,
		SendBufferSize: cfg.SendBufferSize,
	})
	go hub.Run()

	origins := server.NewOriginPolicy(cfg.AllowedOrigins, logger)
	handlers := server.NewHandlers(hub, authService, origins, logger)
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(handlers))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer, logger)
	}()

	select {
	case err = <-serveErr:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger); err != nil {
		errs = append(errs, err)
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
