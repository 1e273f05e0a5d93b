package handlers

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/model"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/ui/pages"
)

// DatasetLister — наборы данных со схемами.
type DatasetLister interface {
	All() ([]model.DatasetWithSchema, error)
}

// PickerHandler — обработчик страницы выбора набора данных.
type PickerHandler struct {
	datasets DatasetLister
	logger   *slog.Logger
}

// NewPickerHandler создаёт новый PickerHandler.
func NewPickerHandler(datasets DatasetLister, logger *slog.Logger) *PickerHandler {
	return &PickerHandler{
		datasets: datasets,
		logger:   logger.With(slog.String("component", "ui.picker")),
	}
}

// HandleIndex обрабатывает GET / — наборы данных, схемы и форма загрузки.
// Доступ проверяет middleware.RequireUISession.
func (h *PickerHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	all, err := h.datasets.All()
	if err != nil {
		h.logger.Error("Ошибка загрузки схем", slog.String("error", err.Error()))
		http.Error(w, "Ошибка загрузки схем наборов данных", http.StatusInternalServerError)
		return
	}

	// Рендер в буфер: при ошибке пользователь получает 500, а не обрезанную страницу
	var buf bytes.Buffer
	if err := pages.Picker(pages.PickerData{Datasets: all}).Render(r.Context(), &buf); err != nil {
		h.logger.Error("Ошибка рендеринга страницы", slog.String("error", err.Error()))
		http.Error(w, "Ошибка рендеринга страницы", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
