// Package main запускает HTTP-сервер сервиса Whopify.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zapiertracker-hub/Whopify-sub001/internal/config"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/gateway"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/handler"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/middleware"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/repository"
	"github.com/zapiertracker-hub/Whopify-sub001/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
	} else {
		repo, err = repository.NewBoltRepository(cfg.StorePath)
		if err != nil {
			sugar.Fatalw("file store initialization error", "error", err.Error())
		}
	}
	defer repo.Close()

	gatewayClient := gateway.NewClient(cfg.GatewayAPIURL)

	svc := service.NewService(repo, gatewayClient)

	if cfg.AdminToken == "" {
		sugar.Warn("admin token is not set, admin routes are open")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.AdminToken)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting whopify server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
