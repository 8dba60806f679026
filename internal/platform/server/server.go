package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"

	adaptermiddleware "ecselfservice/internal/adapters/http/middleware"
	"ecselfservice/internal/application"
	"ecselfservice/internal/domain"
	"ecselfservice/internal/infrastructure"
	"ecselfservice/internal/infrastructure/auth"
	"ecselfservice/internal/infrastructure/dynamodb"
	"ecselfservice/internal/infrastructure/eventcollector"
	"ecselfservice/internal/infrastructure/github"
	"ecselfservice/internal/infrastructure/memory"
	"ecselfservice/internal/infrastructure/signer"
	httpiface "ecselfservice/internal/interfaces/http"
	"ecselfservice/internal/ports"
)

const segmentName = "ecselfservice-http"

// App is the wired portal.
type App struct {
	Echo  *echo.Echo
	Cache *application.Cache
}

// Build wires every component from cfg. Outbound HTTP clients are traced
// with X-Ray.
func Build(ctx context.Context, cfg infrastructure.Config, authMode adaptermiddleware.Mode, logger ports.Logger) (*App, error) {
	sign, err := signer.NewSigner(cfg.EventCollectorSecret)
	if err != nil {
		return nil, fmt.Errorf("event collector secret: %w", err)
	}
	backend := eventcollector.NewClient(eventcollector.Config{
		BaseURL:    cfg.EventCollectorURL,
		HTTPClient: xray.Client(eventcollector.NewHTTPClient(cfg.ConnectTimeout, cfg.ReadTimeout)),
	}, sign)

	directory := github.NewClient(github.Config{
		ClientID:     cfg.GitHub.ClientID,
		ClientSecret: cfg.GitHub.ClientSecret,
		AuthorizeURL: cfg.GitHub.AuthorizeURL,
		TokenURL:     cfg.GitHub.TokenURL,
		GraphQLURL:   cfg.GitHub.GraphQLURL,
		Org:          cfg.Teams.Org,
		Teams:        cfg.Teams.Teams,
		Token:        cfg.GitHub.Token,
		HTTPClient:   xray.Client(&http.Client{Timeout: 10 * time.Second}),
	})

	users, err := newUserRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cache := application.NewCache(backend, logger)
	catalog := application.NewCatalogService(backend, cache, logger)
	resolver := application.NewPermissionResolver(cfg.Teams.WriterTeam, application.AllowListPolicy(cfg.Teams.Admins))
	userSvc := application.NewUserService(directory, directory, users, resolver, logger)

	sessions, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, cfg.SecureCookies)
	if err != nil {
		return nil, err
	}
	authMiddleware, err := adaptermiddleware.AuthMiddleware(authMode, sessions.Handler, userSvc, logger)
	if err != nil {
		return nil, err
	}

	mw := httpiface.Middleware{
		Auth:          authMiddleware,
		RequireRead:   adaptermiddleware.RequirePermission(domain.PermissionRead, logger),
		RequireWrite:  adaptermiddleware.RequirePermission(domain.PermissionWrite, logger),
		WriteLimit:    adaptermiddleware.NewWriteRateLimiter(cfg.WriteRatePerMinute, cfg.WriteBurst).Handler,
		XRay:          adaptermiddleware.XRayMiddleware(segmentName),
		RequestLogger: adaptermiddleware.RequestLogger(logger),
	}
	e := httpiface.NewMainRouter(
		httpiface.NewCatalogHandler(catalog),
		httpiface.NewAuthHandler(userSvc, sessions, logger, cfg.BaseURL),
		mw,
	)
	return &App{Echo: e, Cache: cache}, nil
}

func newUserRepository(ctx context.Context, cfg infrastructure.Config) (ports.UserRepository, error) {
	if cfg.UserStore != infrastructure.UserStoreDynamo {
		return memory.NewUserRepository(), nil
	}
	client, err := dynamodb.NewClient(ctx, cfg.Region, cfg.TableName)
	if err != nil {
		return nil, fmt.Errorf("initialize dynamodb client: %w", err)
	}
	return dynamodb.NewUserRepository(client), nil
}
