package main

import (
	"context"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-xray-sdk-go/xray"

	adaptermiddleware "ecselfservice/internal/adapters/http/middleware"
	adapterlogger "ecselfservice/internal/adapters/logger"
	"ecselfservice/internal/infrastructure"
	"ecselfservice/internal/platform/lambda"
	"ecselfservice/internal/platform/server"
)

func main() {
	ctx := context.Background()
	bootLogger := adapterlogger.New()

	cfg, err := infrastructure.Load("")
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
	awslambda.Start(lambda.NewLambdaHandler(app.Echo, app.Cache, logger))
}
