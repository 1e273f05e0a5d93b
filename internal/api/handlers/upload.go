// upload.go — POST /upload: multipart-форма → конвейер загрузки → журнал в JSON.
package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/auth"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/model"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/service"
)

// Поля multipart-формы.
const (
	fieldDatasetID = "datasetId"
	fieldFile      = "file"
)

// Ingester — конвейер загрузки.
type Ingester interface {
	Ingest(ctx context.Context, in service.IngestInput) *service.IngestResult
}

// UploadHandler — обработчик POST /upload.
type UploadHandler struct {
	ingester Ingester
	// maxBytes — лимит тела запроса
	maxBytes int64
	logger   *slog.Logger
}

// NewUploadHandler создаёт обработчик загрузки.
func NewUploadHandler(ingester Ingester, maxBytes int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		ingester: ingester,
		maxBytes: maxBytes,
		logger:   logger.With(slog.String("component", "upload_handler")),
	}
}

// Upload обрабатывает POST /upload.
// Ответ всегда {success, logs, error?}, статус 200/400/401/500.
// Тело читается только после проверки сессии.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	res := h.ingester.Ingest(r.Context(), service.IngestInput{
		Auth:  auth.FromContext(r.Context()),
		Parse: func() (*service.UploadForm, error) { return h.parseForm(w, r) },
	})

	writeJSON(w, res.Status, res.Log)
}

// parseForm читает multipart-тело потоком с ограничением размера.
//
// Содержимое файла копируется один раз, в UploadForm.Data: r.MultipartForm
// не заполняется, временные файлы multipart не создаются.
// Берутся первое поле datasetId и первый приложенный файл, остальные части пропускаются.
func (h *UploadHandler) parseForm(w http.ResponseWriter, r *http.Request) (*service.UploadForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	form := &service.UploadForm{}
	seenDataset := false
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			return nil, h.readFailed(r, form, err)
		}

		switch {
		case part.FormName() == fieldDatasetID && !seenDataset:
			seenDataset = true
			value, err := io.ReadAll(part)
			if err != nil {
				_ = part.Close()
				return nil, h.readFailed(r, form, err)
			}
			if len(value) > 0 {
				form.DatasetID = model.DatasetID(value)
				form.HasDatasetID = true
			}

		// Часть без имени файла — обычное поле, а не вложение
		case part.FormName() == fieldFile && !form.HasFile && part.FileName() != "":
			data, err := io.ReadAll(part)
			if err != nil {
				_ = part.Close()
				clear(data)
				return nil, h.readFailed(r, form, err)
			}
			form.FileName = part.FileName()
			form.Data = data
			form.HasFile = true
		}
		_ = part.Close()
	}
}

// readFailed обнуляет уже прочитанный файл и пишет предупреждение о превышении лимита.
func (h *UploadHandler) readFailed(r *http.Request, form *service.UploadForm, err error) error {
	clear(form.Data)
	form.Data = nil

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.logger.Warn("Тело запроса превышает лимит",
			slog.Int64("limit", tooLarge.Limit),
			slog.String("remote_addr", r.RemoteAddr),
		)
	}
	return err
}
