package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"ecselfservice/internal/domain"
)

const (
	SessionCookieName = "ecss_session"
	StateCookieName   = "ecss_oauth_state"
	LoginContextKey   = "login"

	DefaultSessionTTL = 12 * time.Hour
	issuer            = "ecselfservice"
)

var ErrInvalidSession = errors.New("invalid session")

type sessionClaims struct {
	jwt.RegisteredClaims
}

// SessionManager issues and verifies the HS256 tokens carried in the session
// cookie. The subject claim is the user's login.
type SessionManager struct {
	key    []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewSessionManager(secret string, ttl time.Duration, secureCookies bool) (*SessionManager, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{key: []byte(secret), ttl: ttl, secure: secureCookies, now: time.Now}, nil
}

func (m *SessionManager) Issue(login string) (string, error) {
	if login == "" {
		return "", domain.ErrInvalidInput
	}
	now := m.now()
	claims := sessionClaims{jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   login,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
}

// Verify returns the login carried by a valid, unexpired token.
func (m *SessionManager) Verify(tokenString string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}

func (m *SessionManager) Cookie(token string) *http.Cookie {
	return m.cookie(SessionCookieName, token, m.ttl)
}

func (m *SessionManager) ExpiredCookie() *http.Cookie {
	return m.cookie(SessionCookieName, "", -1)
}

func (m *SessionManager) StateCookie(state string) *http.Cookie {
	return m.cookie(StateCookieName, state, 10*time.Minute)
}

func (m *SessionManager) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(maxAge.Seconds())
	}
	return c
}

// Handler rejects requests without a valid session cookie and stores the
// login under LoginContextKey.
func (m *SessionManager) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing session"})
		}
		login, err := m.Verify(cookie.Value)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		}
		c.Set(LoginContextKey, login)
		return next(c)
	}
}
