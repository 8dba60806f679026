package middleware

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"ecselfservice/internal/domain"
	"ecselfservice/internal/infrastructure/auth"
	"ecselfservice/internal/ports"
)

type Mode string

const (
	ModeNone    Mode = "none"
	ModeSession Mode = "session"

	UserContextKey = "user"
	LocalDevLogin  = "local-dev"
)

func ParseAuthMode() (Mode, error) {
	mode := Mode(os.Getenv("AUTH_MODE"))
	switch mode {
	case "":
		return ModeSession, nil
	case ModeNone, ModeSession:
		return mode, nil
	default:
		return "", errors.New("invalid auth mode")
	}
}

// UserLoader resolves the user behind an authenticated login.
type UserLoader interface {
	Load(ctx context.Context, login string) (domain.User, error)
}

// LocalDevUser is the fixed identity used when AUTH_MODE=none.
func LocalDevUser() domain.User {
	return domain.User{
		ID:    LocalDevLogin,
		Roles: []domain.Permission{domain.PermissionRead, domain.PermissionWrite},
	}
}

// AuthMiddleware authenticates the request and stores the user under
// UserContextKey. In session mode the session middleware must have set the
// login under auth.LoginContextKey.
func AuthMiddleware(mode Mode, session echo.MiddlewareFunc, users UserLoader, logger ports.Logger) (echo.MiddlewareFunc, error) {
	switch mode {
	case ModeNone:
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				c.Set(UserContextKey, LocalDevUser())
				return next(c)
			}
		}, nil
	case ModeSession:
		if session == nil || users == nil {
			return nil, errors.New("session middleware and user loader are required when AUTH_MODE=session")
		}
	default:
		return nil, errors.New("invalid auth mode")
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return session(func(c echo.Context) error {
			login, _ := c.Get(auth.LoginContextKey).(string)
			if login == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing session"})
			}
			ctx := c.Request().Context()
			user, err := users.Load(ctx, login)
			if err != nil {
				logger.Error(ctx, "failed to load user", "login", login, "error", err)
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unknown user"})
			}
			c.Set(UserContextKey, user)
			return next(c)
		})
	}, nil
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c echo.Context) (domain.User, bool) {
	user, ok := c.Get(UserContextKey).(domain.User)
	return user, ok
}

// RequirePermission rejects users lacking p with 403.
func RequirePermission(p domain.Permission, logger ports.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			}
			if !user.Can(p) {
				logger.Warn(c.Request().Context(), "permission denied",
					"login", user.ID, "required", p.String(), "roles", user.Roles, "path", c.Path())
				return c.JSON(http.StatusForbidden, map[string]string{"error": domain.ErrPermissionDeny.Error()})
			}
			return next(c)
		}
	}
}
