package middleware

import (
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
)

// XRayMiddleware opens a segment per request, annotated with the route and,
// once known, the user's login.
func XRayMiddleware(segmentName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, seg := xray.BeginSegment(c.Request().Context(), segmentName)
			req := c.Request().Clone(ctx)
			c.SetRequest(req)
			err := next(c)
			_ = seg.AddAnnotation("route", c.Path())
			if user, ok := CurrentUser(c); ok {
				_ = seg.AddAnnotation("login", user.ID)
			}
			seg.Close(err)
			return err
		}
	}
}
