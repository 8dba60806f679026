package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the portal's collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecselfservice",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ecselfservice",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	backendCalls = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ecselfservice",
			Subsystem: "eventcollector",
			Name:      "call_duration_seconds",
			Help:      "Duration of signed calls to the event collector API.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"operation", "outcome"},
	)

	cachePopulations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecselfservice",
			Subsystem: "cache",
			Name:      "populations_total",
			Help:      "Full cache loads from the event collector.",
		},
		[]string{"outcome"},
	)

	cacheInserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecselfservice",
			Subsystem: "cache",
			Name:      "inserts_total",
			Help:      "Cache insert attempts by item kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		backendCalls,
		cachePopulations,
		cacheInserts,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func ObserveBackendCall(operation string, err error, d time.Duration) {
	backendCalls.WithLabelValues(operation, outcome(err)).Observe(d.Seconds())
}

func CachePopulated(err error) {
	cachePopulations.WithLabelValues(outcome(err)).Inc()
}

func CacheInsert(kind string, err error) {
	cacheInserts.WithLabelValues(kind, outcome(err)).Inc()
}

// Middleware counts requests by route pattern.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}
			started := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			method := c.Request().Method
			httpRequests.WithLabelValues(method, c.Path(), strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(method, c.Path()).Observe(time.Since(started).Seconds())
			return err
		}
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
