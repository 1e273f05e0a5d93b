// Пакет handlers — HTTP-обработчики JSON-эндпоинтов mkt-uploader.
// handler.go — список наборов данных и общие ответы.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/api/errors"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/model"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/i18n"
)

// DatasetLister — наборы данных со схемами.
type DatasetLister interface {
	All() ([]model.DatasetWithSchema, error)
}

// DatasetsHandler — обработчик GET /api/datasets.
type DatasetsHandler struct {
	datasets DatasetLister
	logger   *slog.Logger
}

// NewDatasetsHandler создаёт обработчик списка наборов данных.
func NewDatasetsHandler(datasets DatasetLister, logger *slog.Logger) *DatasetsHandler {
	return &DatasetsHandler{
		datasets: datasets,
		logger:   logger.With(slog.String("component", "datasets_handler")),
	}
}

// datasetsResponse — ответ GET /api/datasets.
type datasetsResponse struct {
	Datasets []model.DatasetWithSchema `json:"datasets"`
}

// ListDatasets возвращает наборы данных со схемами в порядке конфигурации.
func (h *DatasetsHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	all, err := h.datasets.All()
	if err != nil {
		h.logger.Error("Ошибка загрузки схем", slog.String("error", err.Error()))
		errors.InternalError(w, i18n.T(r.Context(), "error.schema_unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, datasetsResponse{Datasets: all})
}

// NotFound — 404 для неизвестных путей.
func NotFound(w http.ResponseWriter, r *http.Request) {
	errors.NotFound(w, "Ресурс не найден: "+r.URL.Path)
}

// MethodNotAllowed — 405.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	errors.MethodNotAllowed(w, "Метод "+r.Method+" не поддерживается для "+r.URL.Path)
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
