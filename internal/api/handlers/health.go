// health.go — обработчики health endpoints mkt-uploader.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (схемы читаются, BigQuery API доступен)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/config"
)

const serviceName = "mkt-uploader"

// Статусы health check.
const (
	statusOK   = "ok"
	statusFail = "fail"
)

// DependencyChecker — состояние внешней зависимости по данным dephealth.
type DependencyChecker interface {
	BigQueryHealthy() bool
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	datasets DatasetLister
	// deps — nil, если мониторинг зависимостей выключен
	deps        DependencyChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(datasets DatasetLister, deps DependencyChecker) *HealthHandler {
	return &HealthHandler{
		datasets:    datasets,
		deps:        deps,
		promHandler: promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		Schemas  healthCheckResult  `json:"schemas"`
		BigQuery *healthCheckResult `json:"bigquery,omitempty"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady — readiness probe. 200 (ok) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	if all, err := h.datasets.All(); err != nil {
		resp.Checks.Schemas = healthCheckResult{Status: statusFail, Message: err.Error()}
		resp.Status = statusFail
	} else {
		resp.Checks.Schemas = healthCheckResult{Status: statusOK, Message: "наборов данных: " + strconv.Itoa(len(all))}
	}

	if h.deps != nil {
		if h.deps.BigQueryHealthy() {
			resp.Checks.BigQuery = &healthCheckResult{Status: statusOK}
		} else {
			resp.Checks.BigQuery = &healthCheckResult{Status: statusFail, Message: "BigQuery API недоступен"}
			resp.Status = statusFail
		}
	}

	status := http.StatusOK
	if resp.Status == statusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}
