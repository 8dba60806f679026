package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"

	adaptermiddleware "ecselfservice/internal/adapters/http/middleware"
	adapterlogger "ecselfservice/internal/adapters/logger"
	"ecselfservice/internal/infrastructure"
	"ecselfservice/internal/platform/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLogger := adapterlogger.New()
	cfg, err := infrastructure.Load(".env")
	if err != nil {
		bootLogger.Error(ctx, "configuration error", "error", err)
		os.Exit(1)
	}
	logger, err := adapterlogger.NewFromLevel(cfg.LogLevel)
	if err != nil {
		bootLogger.Error(ctx, "configuration error", "error", err)
		os.Exit(1)
	}
	authMode, err := adaptermiddleware.ParseAuthMode()
	if err != nil {
		logger.Error(ctx, "configuration error", "error", err)
		os.Exit(1)
	}
	xray.Configure(xray.Config{LogLevel: "error"})

	app, err := server.Build(ctx, cfg, authMode, logger)
	if err != nil {
		logger.Error(ctx, "failed to build server", "error", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Echo.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "shutdown failed", "error", err)
		}
	}()

	logger.Info(ctx, "starting http server", "port", cfg.Port, "auth_mode", string(authMode))
	if err := app.Echo.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(ctx, "http server stopped", "error", err)
		os.Exit(1)
	}
}
