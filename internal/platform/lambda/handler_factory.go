package lambda

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	echoadapter "github.com/awslabs/aws-lambda-go-api-proxy/echo"
	"github.com/labstack/echo/v4"

	"ecselfservice/internal/ports"
)

type LambdaHandler func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// Warmer fills the catalog cache ahead of the first request.
type Warmer interface {
	Warm(ctx context.Context) error
}

// NewLambdaHandler proxies API Gateway requests to e. The first invocation of
// a container warms the cache; a failed warm-up is logged and left to the
// lazy population of the first read.
func NewLambdaHandler(e *echo.Echo, warmer Warmer, logger ports.Logger) LambdaHandler {
	adapter := echoadapter.NewV2(e)
	var once sync.Once
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		if warmer != nil {
			once.Do(func() {
				if err := warmer.Warm(ctx); err != nil {
					logger.Warn(ctx, "cache warm-up failed", "error", err)
				}
			})
		}
		return adapter.ProxyWithContext(ctx, req)
	}
}
