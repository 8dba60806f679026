package http

import (
	"context"
	"crypto/subtle"
	stdhttp "net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"ecselfservice/internal/adapters/http/middleware"
	"ecselfservice/internal/domain"
	"ecselfservice/internal/infrastructure/auth"
	"ecselfservice/internal/ports"
)

// Authenticator runs the OAuth login flow.
type Authenticator interface {
	AuthorizeURL(state string) string
	Login(ctx context.Context, code string) (domain.User, error)
}

type AuthHandler struct {
	users      Authenticator
	sessions   *auth.SessionManager
	logger     ports.Logger
	redirectTo string
}

func NewAuthHandler(users Authenticator, sessions *auth.SessionManager, logger ports.Logger, baseURL string) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, logger: logger, redirectTo: baseURL + "/auth/me"}
}

func (h *AuthHandler) Login(c echo.Context) error {
	state := uuid.NewString()
	c.SetCookie(h.sessions.StateCookie(state))
	return c.Redirect(stdhttp.StatusFound, h.users.AuthorizeURL(state))
}

func (h *AuthHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(stdhttp.StatusNotFound, map[string]string{"error": "missing oauth code"})
	}
	state, err := c.Cookie(auth.StateCookieName)
	if err != nil || state.Value == "" ||
		subtle.ConstantTimeCompare([]byte(state.Value), []byte(c.QueryParam("state"))) != 1 {
		h.logger.Warn(ctx, "oauth state mismatch")
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid oauth state"})
	}

	user, err := h.users.Login(ctx, code)
	if err != nil {
		h.logger.Error(ctx, "auth failure", "error", err)
		return c.JSON(stdhttp.StatusInternalServerError, map[string]string{"error": "failed to authenticate"})
	}
	token, err := h.sessions.Issue(user.ID)
	if err != nil {
		return handleError(c, err)
	}
	expired := h.sessions.StateCookie("")
	expired.MaxAge = -1
	c.SetCookie(expired)
	c.SetCookie(h.sessions.Cookie(token))
	return c.Redirect(stdhttp.StatusFound, h.redirectTo)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.ExpiredCookie())
	return c.NoContent(stdhttp.StatusNoContent)
}

func (h *AuthHandler) Me(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(stdhttp.StatusUnauthorized, map[string]string{"error": "not authenticated"})
	}
	return c.JSON(stdhttp.StatusOK, user)
}
