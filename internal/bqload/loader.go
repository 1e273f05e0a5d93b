package bqload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/api/googleapi"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/model"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/storage/staging"
)

// ErrLoadRejected — BigQuery отклонил или не выполнил load job.
var ErrLoadRejected = errors.New("загрузка в BigQuery отклонена")

// LoadError — ошибка load job с сообщением сервиса.
type LoadError struct {
	// Message — сообщение BigQuery (или клиентской библиотеки) без обёрток
	Message string
	// JobID — пустой, если job не был создан
	JobID string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%v: %s", ErrLoadRejected, e.Message)
}

func (e *LoadError) Is(target error) bool {
	return target == ErrLoadRejected
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

var (
	// loadDuration — длительность load job.
	loadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mu_bigquery_load_duration_seconds",
			Help:    "Длительность загрузки CSV в BigQuery в секундах",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"dataset", "result"},
	)

	// stagedBytes — объём данных, переданных в BigQuery.
	stagedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mu_bigquery_staged_bytes_total",
			Help: "Объём CSV, записанного во временные файлы для загрузки в BigQuery",
		},
		[]string{"dataset"},
	)

	// cleanupFailures — неудачные удаления временных файлов.
	cleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mu_staging_cleanup_failures_total",
			Help: "Количество неудачных удалений временных файлов",
		},
	)
)

// LoadRequest — данные для одной загрузки.
type LoadRequest struct {
	DatasetID string
	Table     TableID
	Schema    []model.SchemaField
	// Data — перестроенный CSV с заголовком из TargetName
	Data []byte
	// Credentials — уже разрешённые учётные данные; nil — разрешить по Table
	Credentials *Credentials
}

// LoadOutcome — итог попытки загрузки.
// Возвращается и при ошибке load job, чтобы вызывающий код видел CleanupErr.
type LoadOutcome struct {
	// Table — таблица с разрешённым проектом
	Table      TableID
	JobID      string
	StagedPath string
	Bytes      int64
	Duration   time.Duration
	// CleanupErr — ошибка удаления временного файла; на результат загрузки не влияет
	CleanupErr error
}

// Loader — загрузка CSV в BigQuery через временный файл.
type Loader struct {
	stager    *staging.Stager
	creds     CredentialsConfig
	newClient ClientFactory
	logger    *slog.Logger
}

// NewLoader создаёт Loader.
func NewLoader(stager *staging.Stager, creds CredentialsConfig, newClient ClientFactory, logger *slog.Logger) *Loader {
	return &Loader{
		stager:    stager,
		creds:     creds,
		newClient: newClient,
		logger:    logger.With(slog.String("component", "bqload")),
	}
}

// ResolveCredentials разрешает учётные данные для таблицы по конфигурации загрузчика.
func (l *Loader) ResolveCredentials(table TableID) (*Credentials, error) {
	return ResolveCredentials(table.Project, l.creds)
}

// Load выполняет загрузку: разрешение учётных данных → временный файл → load job → удаление файла.
//
// Ошибки:
//   - ErrCredentialsUnresolved — проект или ключ не определены (временный файл не создаётся);
//   - *LoadError (errors.Is(err, ErrLoadRejected)) — ошибка клиента или load job.
//
// Временный файл удаляется при любом исходе, ошибка удаления попадает в LoadOutcome.CleanupErr.
func (l *Loader) Load(ctx context.Context, req LoadRequest) (*LoadOutcome, error) {
	creds := req.Credentials
	if creds == nil {
		var err error
		if creds, err = l.ResolveCredentials(req.Table); err != nil {
			return nil, err
		}
	}

	outcome := &LoadOutcome{Table: req.Table.WithProject(creds.ProjectID)}

	staged, err := l.stager.Write(req.DatasetID, req.Data)
	if err != nil {
		return nil, &LoadError{Message: err.Error(), Err: err}
	}
	outcome.StagedPath = staged.Path
	outcome.Bytes = staged.Size
	stagedBytes.WithLabelValues(req.DatasetID).Add(float64(staged.Size))

	defer func() {
		if rmErr := l.stager.Remove(staged.Path); rmErr != nil {
			cleanupFailures.Inc()
			l.logger.Warn("Не удалось удалить временный файл",
				slog.String("path", staged.Path),
				slog.String("error", rmErr.Error()),
			)
			outcome.CleanupErr = rmErr
		}
	}()

	l.logger.Info("Запуск загрузки в BigQuery",
		slog.String("dataset", req.DatasetID),
		slog.String("table", outcome.Table.String()),
		slog.String("service_account", creds.ClientEmail),
		slog.Int64("bytes", staged.Size),
		slog.String("checksum", staged.Checksum),
	)

	start := time.Now()
	jobID, err := l.run(ctx, creds, outcome.Table, req.Schema, staged.Path)
	outcome.JobID = jobID
	outcome.Duration = time.Since(start)

	if err != nil {
		loadDuration.WithLabelValues(req.DatasetID, "error").Observe(outcome.Duration.Seconds())
		l.logger.Error("Ошибка загрузки в BigQuery",
			slog.String("dataset", req.DatasetID),
			slog.String("table", outcome.Table.String()),
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return outcome, &LoadError{Message: serviceMessage(err), JobID: jobID, Err: err}
	}

	loadDuration.WithLabelValues(req.DatasetID, "ok").Observe(outcome.Duration.Seconds())
	l.logger.Info("Загрузка в BigQuery завершена",
		slog.String("dataset", req.DatasetID),
		slog.String("table", outcome.Table.String()),
		slog.String("job_id", jobID),
		slog.Duration("duration", outcome.Duration),
	)
	return outcome, nil
}

// run создаёт клиент и выполняет load job из временного файла.
func (l *Loader) run(ctx context.Context, creds *Credentials, table TableID, fields []model.SchemaField, path string) (string, error) {
	client, err := l.newClient(ctx, creds)
	if err != nil {
		return "", err
	}
	defer client.Close()

	f, err := l.stager.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return client.LoadCSV(ctx, table, BuildSchema(fields), f)
}

// serviceMessage извлекает сообщение BigQuery из ошибки googleapi,
// иначе возвращает текст ошибки целиком.
func serviceMessage(err error) string {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		return gerr.Message
	}
	return err.Error()
}
