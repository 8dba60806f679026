package middleware

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// WriteRateLimiter throttles mutating requests per login.
type WriteRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewWriteRateLimiter(perMinute float64, burst int) *WriteRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &WriteRateLimiter{
		limiters: map[string]*rate.Limiter{},
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
	}
}

func (l *WriteRateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

func (l *WriteRateLimiter) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.RealIP()
		if user, ok := CurrentUser(c); ok {
			key = user.ID
		}
		if !l.limiter(key).Allow() {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		}
		return next(c)
	}
}
