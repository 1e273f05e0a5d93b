// metrics.go — Prometheus HTTP метрики mkt-uploader.
// Регистрирует метрики: mu_http_requests_total, mu_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mu_http_requests_total",
			Help: "Общее количество HTTP-запросов к mkt-uploader",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — длительность HTTP-запросов.
	// Бакеты расширены: POST /upload ждёт завершения load job.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mu_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к mkt-uploader в секундах",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath сводит неизвестные пути к "other", чтобы сканеры
// не раздували кардинальность метрик.
func normalizePath(path string) string {
	switch path {
	case "/", "/login", "/logout", "/lang", "/upload",
		"/api/datasets", "/health/live", "/health/ready", "/metrics":
		return path
	}
	if len(path) > len("/static/") && path[:len("/static/")] == "/static/" {
		return "/static/*"
	}
	return "other"
}
