package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"ecselfservice/internal/adapters/metrics"
)

type Middleware struct {
	Auth          echo.MiddlewareFunc
	RequireRead   echo.MiddlewareFunc
	RequireWrite  echo.MiddlewareFunc
	WriteLimit    echo.MiddlewareFunc
	XRay          echo.MiddlewareFunc
	RequestLogger echo.MiddlewareFunc
}

func newEcho(m Middleware) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.Middleware())
	for _, mw := range compact(m.XRay, m.RequestLogger) {
		e.Use(mw)
	}
	return e
}

func compact(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, mw := range mws {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return out
}

// NewMainRouter wires the portal API. Reads need READ, creations need WRITE
// and are rate limited per login.
func NewMainRouter(catalog *CatalogHandler, authHandler *AuthHandler, m Middleware) *echo.Echo {
	e := newEcho(m)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(stdhttp.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	e.GET("/auth/login", authHandler.Login)
	e.GET("/auth/callback", authHandler.Callback)
	e.POST("/auth/callback", authHandler.Callback)
	e.GET("/auth/logout", authHandler.Logout)
	e.POST("/auth/logout", authHandler.Logout)
	e.GET("/auth/me", authHandler.Me, compact(m.Auth)...)

	read := compact(m.Auth, m.RequireRead)
	write := compact(m.Auth, m.RequireWrite, m.WriteLimit)

	e.GET("/applications", catalog.ListApplications, read...)
	e.GET("/applications/:app_name", catalog.GetApplication, read...)
	e.GET("/applications/:app_name/events", catalog.ListApplicationEvents, read...)
	e.GET("/events", catalog.ListEvents, read...)
	e.POST("/applications", catalog.CreateApplication, write...)
	e.POST("/applications/:app_name/events", catalog.CreateEvent, write...)
	return e
}
