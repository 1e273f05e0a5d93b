// Пакет service — бизнес-логика mkt-uploader.
// ingest.go — конвейер загрузки CSV в BigQuery.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/auth"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/bqload"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/csvmap"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/model"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/stage"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/i18n"
)

var (
	// ingestOutcomes — завершённые попытки загрузки по набору данных и терминальному этапу.
	ingestOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mu_ingest_outcomes_total",
			Help: "Количество попыток загрузки по терминальному этапу",
		},
		[]string{"dataset", "stage"},
	)

	// ingestedRows — строки данных, успешно загруженные в BigQuery.
	ingestedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mu_ingested_rows_total",
			Help: "Количество строк CSV, загруженных в BigQuery",
		},
		[]string{"dataset"},
	)
)

// SchemaSource — наборы данных и их схемы.
type SchemaSource interface {
	Get(id model.DatasetID) (*model.DatasetWithSchema, error)
	Descriptor(id model.DatasetID) (model.DatasetDescriptor, bool)
}

// BulkLoader — загрузка перестроенного CSV в BigQuery.
type BulkLoader interface {
	ResolveCredentials(table bqload.TableID) (*bqload.Credentials, error)
	Load(ctx context.Context, req bqload.LoadRequest) (*bqload.LoadOutcome, error)
}

// UploadForm — разобранное тело multipart-запроса.
// Флаги Has* отличают отсутствующее поле от пустого значения.
type UploadForm struct {
	model.UploadRequest
	// HasDatasetID — поле datasetId присутствует и не пусто
	HasDatasetID bool
	// HasFile — в поле file приложен файл
	HasFile bool
}

// FormParser разбирает тело запроса. Вызывается только после проверки сессии.
type FormParser func() (*UploadForm, error)

// IngestInput — входные данные одной попытки загрузки.
type IngestInput struct {
	Auth  auth.AuthContext
	Parse FormParser
}

// IngestResult — итог попытки: журнал для ответа, HTTP-статус и терминальный этап.
type IngestResult struct {
	Log    *model.IngestionLog
	Status int
	Stage  stage.Stage
	// History — пройденные этапы по порядку
	History []stage.TransitionRecord
	// Failure — nil при успехе
	Failure *Failure
	// Rows — количество загруженных строк данных
	Rows int
}

// IngestService — конвейер: сессия → тело запроса → набор данных → заголовок CSV →
// перестроение колонок → таблица → учётные данные → load job.
type IngestService struct {
	schemas SchemaSource
	loader  BulkLoader
	steps   []step
	logger  *slog.Logger
}

// NewIngestService создаёт сервис загрузки.
func NewIngestService(schemas SchemaSource, loader BulkLoader, logger *slog.Logger) *IngestService {
	return &IngestService{
		schemas: schemas,
		loader:  loader,
		steps:   pipeline,
		logger:  logger.With(slog.String("component", "ingest_service")),
	}
}

// run — состояние одной попытки загрузки.
type run struct {
	svc     *IngestService
	ctx     context.Context
	tr      i18n.Translator
	in      IngestInput
	log     *model.IngestionLog
	tracker *stage.Tracker

	form     *UploadForm
	dataset  *model.DatasetWithSchema
	header   []string
	missing  *csvmap.MissingColumnsError
	remapped []byte
	rows     int
	table    bqload.TableID
	creds    *bqload.Credentials
	outcome  *bqload.LoadOutcome
}

// step — проверка этапа. Возвращает nil, если конвейер продолжается.
type step struct {
	stage stage.Stage
	check func(r *run) *Failure
}

// pipeline — этапы в порядке выполнения.
var pipeline = []step{
	{stage.Unauthenticated, (*run).checkSession},
	{stage.BodyUnparseable, (*run).parseBody},
	{stage.DatasetUnspecified, (*run).requireDataset},
	{stage.FileMissing, (*run).requireFile},
	{stage.DatasetUnknown, (*run).resolveDataset},
	{stage.HeaderInvalid, (*run).readHeader},
	{stage.MissingRequiredColumns, (*run).checkColumns},
	{stage.RemapComplete, (*run).remap},
	{stage.TableIDInvalid, (*run).parseTable},
	{stage.CredentialsUnresolved, (*run).resolveCredentials},
	{stage.LoadFailed, (*run).load},
}

// Ingest выполняет одну попытку загрузки. Язык журнала берётся из ctx.
//
// Этапы выполняются строго по порядку, первая ошибка завершает конвейер.
// Журнал ответа содержит строки всех пройденных этапов, в том числе при ошибке.
// Буферы с содержимым файла обнуляются при любом исходе.
// Load job не прерывается отменой ctx (например, разрывом соединения клиентом).
func (s *IngestService) Ingest(ctx context.Context, in IngestInput) *IngestResult {
	r := &run{
		svc:     s,
		ctx:     ctx,
		tr:      i18n.FromContext(ctx),
		in:      in,
		log:     model.NewIngestionLog(),
		tracker: stage.NewTracker(),
	}
	defer r.release()

	for _, st := range s.steps {
		if err := r.tracker.Enter(st.stage); err != nil {
			return r.finish(r.transitionFailure(err))
		}
		if f := st.check(r); f != nil {
			return r.finish(f)
		}
	}

	if err := r.tracker.Enter(stage.Success); err != nil {
		return r.finish(r.transitionFailure(err))
	}
	return r.finish(nil)
}

// transitionFailure — нарушен порядок этапов конвейера. Ошибка сервера, не клиента.
func (r *run) transitionFailure(err error) *Failure {
	msg := r.tr.T("error.internal")
	r.log.Append(msg)

	current := r.tracker.Current()
	return &Failure{
		Stage:   current,
		Status:  http.StatusInternalServerError,
		Kind:    KindConfiguration,
		Message: msg,
		Err:     err,
	}
}

// finish формирует результат, пишет метрики и журнал сервера.
func (r *run) finish(f *Failure) *IngestResult {
	history := r.tracker.History()
	res := &IngestResult{Log: r.log, Rows: r.rows, Stage: r.tracker.Current(), History: history}
	dataset := r.datasetLabel()
	stages := stagePath(history)

	if f == nil {
		r.log.Succeed()
		res.Status = http.StatusOK
		ingestedRows.WithLabelValues(dataset).Add(float64(r.rows))
		r.svc.logger.Info("Загрузка завершена",
			slog.String("dataset", dataset),
			slog.String("table", r.outcome.Table.String()),
			slog.String("job_id", r.outcome.JobID),
			slog.Int("rows", r.rows),
			slog.Any("stages", stages),
		)
	} else {
		r.log.Fail(f.Message)
		res.Status = f.Status
		res.Failure = f

		level := slog.LevelWarn
		if f.Status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		attrs := []slog.Attr{
			slog.String("dataset", dataset),
			slog.String("stage", string(f.Stage)),
			slog.String("kind", string(f.Kind)),
			slog.String("message", f.Message),
			slog.Any("stages", stages),
		}
		if f.Err != nil {
			attrs = append(attrs, slog.String("error", f.Err.Error()))
		}
		r.svc.logger.LogAttrs(r.ctx, level, "Загрузка прервана", attrs...)
	}

	ingestOutcomes.WithLabelValues(dataset, string(res.Stage)).Inc()
	return res
}

// stagePath — имена пройденных этапов для журнала сервера.
func stagePath(history []stage.TransitionRecord) []string {
	names := make([]string, len(history))
	for i, rec := range history {
		names[i] = string(rec.To)
	}
	return names
}

// release обнуляет буферы с содержимым файла.
func (r *run) release() {
	if r.form != nil {
		clear(r.form.Data)
		r.form.Data = nil
	}
	clear(r.remapped)
	r.remapped = nil
}

// datasetLabel — значение лейбла dataset для метрик: только известные идентификаторы.
func (r *run) datasetLabel() string {
	if r.form != nil && r.form.DatasetID.IsKnown() {
		return string(r.form.DatasetID)
	}
	return "unknown"
}

func (r *run) appendf(key string, args ...any) {
	r.log.Append(r.tr.Tf(key, args...))
}

// --- Этапы ---

func (r *run) checkSession() *Failure {
	if r.in.Auth.Authenticated {
		return nil
	}
	r.appendf("upload.auth_required")

	msg := r.tr.T("error.session_expired")
	if r.in.Auth.Reason == auth.ReasonNotConfigured {
		msg = r.tr.T("error.not_configured")
	}
	return fail(stage.Unauthenticated, msg, errors.New(string(r.in.Auth.Reason)))
}

func (r *run) parseBody() *Failure {
	form, err := r.in.Parse()
	if err != nil || form == nil {
		r.appendf("upload.body_unreadable")
		return fail(stage.BodyUnparseable, r.tr.T("error.bad_request"), err)
	}
	r.form = form
	return nil
}

func (r *run) requireDataset() *Failure {
	if r.form.HasDatasetID {
		return nil
	}
	r.appendf("upload.dataset_missing")
	return fail(stage.DatasetUnspecified, r.tr.T("error.dataset_required"), nil)
}

func (r *run) requireFile() *Failure {
	if r.form.HasFile {
		r.appendf("upload.file_received", r.form.FileName, len(r.form.Data))
		return nil
	}
	r.appendf("upload.file_missing")
	return fail(stage.FileMissing, r.tr.T("error.file_required"), nil)
}

func (r *run) resolveDataset() *Failure {
	id := r.form.DatasetID
	desc, ok := r.svc.schemas.Descriptor(id)
	if !ok {
		r.appendf("upload.dataset_unknown", string(id))
		return fail(stage.DatasetUnknown, r.tr.T("error.dataset_unsupported"), nil)
	}

	r.appendf("upload.started")
	r.appendf("upload.checking_structure", desc.Label)

	dataset, err := r.svc.schemas.Get(id)
	if err != nil {
		// Набор данных известен, но его схема не читается — ошибка конфигурации
		r.appendf("upload.schema_unavailable")
		f := fail(stage.DatasetUnknown, r.tr.T("error.schema_unavailable"), err)
		f.Status = http.StatusInternalServerError
		f.Kind = KindConfiguration
		return f
	}
	r.dataset = dataset
	return nil
}

func (r *run) readHeader() *Failure {
	r.appendf("upload.loading_schema")

	header, err := csvmap.ValidateHeader(r.form.Data, r.dataset.SourceColumns())
	if errors.Is(err, csvmap.ErrHeaderUnreadable) {
		r.appendf("upload.header_unreadable")
		return fail(stage.HeaderInvalid, r.tr.T("error.header_unreadable"), err)
	}

	if err != nil && !errors.As(err, &r.missing) {
		r.appendf("upload.header_unreadable")
		return fail(stage.HeaderInvalid, r.tr.T("error.header_unreadable"), err)
	}
	r.header = header
	return nil
}

func (r *run) checkColumns() *Failure {
	if r.missing == nil {
		return nil
	}
	r.appendf("upload.columns_missing")
	return fail(stage.MissingRequiredColumns,
		r.tr.Tf("error.columns_missing", strings.Join(r.missing.Columns, ", ")), r.missing)
}

func (r *run) remap() *Failure {
	r.appendf("upload.converting")

	out, rows, err := csvmap.Remap(r.form.Data, r.header, r.dataset.Schema)
	if err != nil {
		r.appendf("upload.convert_failed")
		return fail(stage.RemapComplete, r.tr.T("error.rows_unreadable"), err)
	}
	r.remapped = out
	r.rows = rows

	r.appendf("upload.structure_done")
	r.appendf("upload.transfer_started")
	return nil
}

func (r *run) parseTable() *Failure {
	r.appendf("upload.target_table", r.dataset.TableID)

	table, err := bqload.ParseTableID(r.dataset.TableID)
	if err != nil {
		msg := r.tr.T("error.table_id_invalid")
		r.log.Append(msg)
		return fail(stage.TableIDInvalid, msg, err)
	}
	r.table = table
	return nil
}

func (r *run) resolveCredentials() *Failure {
	r.appendf("upload.load_started")

	creds, err := r.svc.loader.ResolveCredentials(r.table)
	if err != nil {
		r.appendf("upload.load_failed")
		return fail(stage.CredentialsUnresolved, r.tr.T("error.credentials"), err)
	}
	r.creds = creds
	return nil
}

func (r *run) load() *Failure {
	outcome, err := r.svc.loader.Load(context.WithoutCancel(r.ctx), bqload.LoadRequest{
		DatasetID:   string(r.dataset.ID),
		Table:       r.table,
		Schema:      r.dataset.Schema,
		Data:        r.remapped,
		Credentials: r.creds,
	})
	r.outcome = outcome

	if err != nil {
		r.appendf("upload.load_failed")
		r.appendCleanupWarning()

		msg := r.tr.T("error.load_unknown")
		var le *bqload.LoadError
		if errors.As(err, &le) && le.Message != "" {
			msg = le.Message
		}
		return fail(stage.LoadFailed, msg, err)
	}

	r.appendf("upload.load_done", outcome.Table.String())
	r.appendCleanupWarning()
	r.appendf("upload.cleanup")
	r.appendf("upload.completed")
	return nil
}

func (r *run) appendCleanupWarning() {
	if r.outcome != nil && r.outcome.CleanupErr != nil {
		r.appendf("upload.cleanup_ignored")
	}
}
