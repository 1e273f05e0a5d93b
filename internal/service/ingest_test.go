package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/auth"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/bqload"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/model"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/stage"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/i18n"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/schema"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/storage/staging"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeClient — клиент BigQuery, запоминающий загруженные данные.
type fakeClient struct {
	table  bqload.TableID
	schema bigquery.Schema
	data   []byte
	err    error
	calls  int
	// onLoad вызывается с путём временного файла во время загрузки
	onLoad func(path string)
}

func (c *fakeClient) LoadCSV(_ context.Context, table bqload.TableID, s bigquery.Schema, r io.Reader) (string, error) {
	c.calls++
	c.table = table
	c.schema = s
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	c.data = data
	if f, ok := r.(*os.File); ok && c.onLoad != nil {
		c.onLoad(f.Name())
	}
	if c.err != nil {
		return "job-failed", c.err
	}
	return "job-1", nil
}

func (c *fakeClient) Close() error { return nil }

type fixture struct {
	svc    *IngestService
	client *fakeClient
	stager *staging.Stager
	ctx    context.Context
}

const gangnamSchema = "기존 컬럼명,데이터 타입,영어 컬럼명\n이름,STRING,name\n"

func newFixture(t *testing.T, tableID string, creds bqload.CredentialsConfig) *fixture {
	t.Helper()

	datasets := []model.DatasetDescriptor{
		{
			ID:         model.DatasetGangnamunni,
			Label:      "강남언니 Data Raw",
			TableLabel: "강남언니 Raw",
			SchemaFile: "gangnamunni.csv",
			TableID:    tableID,
		},
		{
			ID:         model.DatasetBabitalk,
			Label:      "바비톡 Data Raw",
			SchemaFile: "missing.csv",
			TableID:    "proj.mkt.babitalk",
		},
	}
	fsys := fstest.MapFS{
		"gangnamunni.csv": {Data: []byte(gangnamSchema)},
	}
	registry := schema.NewRegistry(datasets, fsys, nil, testLogger())

	stager, err := staging.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания Stager: %v", err)
	}
	client := &fakeClient{}
	factory := func(_ context.Context, _ *bqload.Credentials) (bqload.Client, error) {
		return client, nil
	}
	loader := bqload.NewLoader(stager, creds, factory, testLogger())

	bundle, err := i18n.Load("ko", testLogger())
	if err != nil {
		t.Fatalf("ошибка загрузки каталогов: %v", err)
	}
	ctx := i18n.WithLang(i18n.WithBundle(context.Background(), bundle), "ko")

	return &fixture{
		svc:    NewIngestService(registry, loader, testLogger()),
		client: client,
		stager: stager,
		ctx:    ctx,
	}
}

func authenticated() auth.AuthContext {
	return auth.AuthContext{Authenticated: true, Reason: auth.ReasonNone}
}

func formWith(datasetID, data string) FormParser {
	return func() (*UploadForm, error) {
		return &UploadForm{
			UploadRequest: model.UploadRequest{
				DatasetID: model.DatasetID(datasetID),
				FileName:  "upload.csv",
				Data:      []byte(data),
			},
			HasDatasetID: true,
			HasFile:      true,
		}, nil
	}
}

func assertStagingEmpty(t *testing.T, stager *staging.Stager) {
	t.Helper()
	entries, err := os.ReadDir(stager.Dir())
	if err != nil {
		t.Fatalf("ошибка чтения директории: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("временные файлы не удалены: %d шт.", len(entries))
	}
}

func assertFailure(t *testing.T, res *IngestResult, st stage.Stage, status int, kind ErrorKind) {
	t.Helper()
	if res.Status != status {
		t.Errorf("статус = %d, ожидался %d", res.Status, status)
	}
	if res.Stage != st {
		t.Errorf("этап = %s, ожидался %s", res.Stage, st)
	}
	if res.Failure == nil {
		t.Fatal("Failure nil")
	}
	if res.Failure.Kind != kind {
		t.Errorf("Kind = %s, ожидался %s", res.Failure.Kind, kind)
	}
	if res.Log.Success {
		t.Error("Success должен быть false")
	}
	if res.Log.Error == "" {
		t.Error("Error не должен быть пустым")
	}
	if len(res.Log.Lines) == 0 {
		t.Error("журнал не должен быть пустым")
	}
}

// TestIngest_Success проверяет полный успешный путь.
func TestIngest_Success(t *testing.T) {
	fx := newFixture(t, "proj.mkt.keyword_raw", bqload.CredentialsConfig{})

	res := fx.svc.Ingest(fx.ctx, IngestInput{
		Auth:  authenticated(),
		Parse: formWith("gangnamunni", "이름\n철수\n영희\n"),
	})

	if res.Status != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200 (error=%q)", res.Status, res.Log.Error)
	}
	if !res.Log.Success || res.Log.Error != "" {
		t.Errorf("журнал = %+v", res.Log)
	}
	if res.Stage != stage.Success {
		t.Errorf("этап = %s, ожидался success", res.Stage)
	}
	if res.Rows != 2 {
		t.Errorf("Rows = %d, ожидалось 2", res.Rows)
	}

	if got := string(fx.client.data); got != "name\n철수\n영희\n" {
		t.Errorf("данные в BigQuery = %q", got)
	}
	if fx.client.table.String() != "proj.mkt.keyword_raw" {
		t.Errorf("таблица = %s", fx.client.table)
	}
	if len(fx.client.schema) != 1 || fx.client.schema[0].Name != "name" {
		t.Errorf("схема = %+v", fx.client.schema)
	}

	lines := res.Log.Lines
	if lines[0] != "업로드 파일 수신: upload.csv (21 bytes)" {
		t.Errorf("первая строка = %q", lines[0])
	}
	if lines[1] != "파일 업로드를 시작합니다...." {
		t.Errorf("вторая строка = %q", lines[1])
	}
	if !contains(lines, "강남언니 Data Raw 파일 구조를 확인 하고 있습니다....") {
		t.Error("нет строки с названием набора данных")
	}
	if !contains(lines, "BigQuery 업로드 대상 테이블: proj.mkt.keyword_raw") {
		t.Error("нет строки с целевой таблицей")
	}
	if !contains(lines, "BigQuery의 proj.mkt.keyword_raw 테이블에 업로드를 완료 했습니다.....") {
		t.Error("нет строки о завершении загрузки")
	}
	if lines[len(lines)-1] != "모든 작업이 완료 되었습니다...." {
		t.Errorf("последняя строка = %q", lines[len(lines)-1])
	}

	if len(res.History) != len(stage.Sequence) {
		t.Fatalf("история = %d переходов, ожидалось %d", len(res.History), len(stage.Sequence))
	}
	for i, rec := range res.History {
		if rec.To != stage.Sequence[i] {
			t.Errorf("переход %d: %s, ожидался %s", i, rec.To, stage.Sequence[i])
		}
	}

	assertStagingEmpty(t, fx.stager)
}

// TestIngest_MissingColumns проверяет отсутствие обязательной колонки.
func TestIngest_MissingColumns(t *testing.T) {
	fx := newFixture(t, "proj.mkt.keyword_raw", bqload.CredentialsConfig{})

	res := fx.svc.Ingest(fx.ctx, IngestInput{
		Auth:  authenticated(),
		Parse: formWith("gangnamunni", "성함\n철수\n"),
	})

	assertFailure(t, res, stage.MissingRequiredColumns, http.StatusBadRequest, KindClientInput)
	if res.Log.Error != "필수 컬럼 누락: 이름" {
		t.Errorf("error = %q", res.Log.Error)
	}
	if fx.client.calls != 0 {
		t.Error("BigQuery не должен вызываться")
	}
	if last := res.History[len(res.History)-1]; last.To != stage.MissingRequiredColumns {
		t.Errorf("последний переход = %s", last.To)
	}
	assertStagingEmpty(t, fx.stager)
}

// TestIngest_Unauthenticated проверяет отказ без сессии до чтения тела.
func TestIngest_Unauthenticated(t *testing.T) {
	tests := []struct {
		name   string
		reason auth.Reason
		want   string
	}{
		{"пароль не настроен", auth.ReasonNotConfigured, "APP_LOGIN_PASSWORD 환경 변수가 설정되어 있지 않습니다."},
		{"нет cookie", auth.ReasonMissing, "인증이 만료되었습니다."},
		{"cookie не совпадает", auth.ReasonMismatch, "인증이 만료되었습니다."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, "proj.mkt.keyword_raw", bqload.CredentialsConfig{})
			parsed := false

			res := fx.svc.Ingest(fx.ctx, IngestInput{
				Auth: auth.AuthContext{Reason: tt.reason},
				Parse: func() (*UploadForm, error) {
					parsed = true
					return nil, nil
				},
			})

			assertFailure(t, res, stage.Unauthenticated, http.StatusUnauthorized, KindAuthentication)
			if res.Log.Error != tt.want {
				t.Errorf("error = %q, ожидалось %q", res.Log.Error, tt.want)
			}
			if parsed {
				t.Error("тело не должно разбираться без сессии")
			}
		})
	}
}

// TestIngest_RequestErrors проверяет ошибки в теле запроса.
func TestIngest_RequestErrors(t *testing.T) {
	tests := []struct {
		name  string
		parse FormParser
		stage stage.Stage
		want  string
	}{
		{
			name:  "тело не разбирается",
			parse: func() (*UploadForm, error) { return nil, errors.New("multipart: NextPart: EOF") },
			stage: stage.BodyUnparseable,
			want:  "잘못된 요청입니다.",
		},
		{
			name: "нет datasetId",
			parse: func() (*UploadForm, error) {
				return &UploadForm{UploadRequest: model.UploadRequest{Data: []byte("이름\n")}, HasFile: true}, nil
			},
			stage: stage.DatasetUnspecified,
			want:  "datasetId 필드가 필요합니다.",
		},
		{
			name: "нет файла",
			parse: func() (*UploadForm, error) {
				return &UploadForm{UploadRequest: model.UploadRequest{DatasetID: model.DatasetGangnamunni}, HasDatasetID: true}, nil
			},
			stage: stage.FileMissing,
			want:  "file 필드에 CSV 파일을 첨부해주세요.",
		},
		{
			name:  "неизвестный набор данных",
			parse: formWith("unknown", "이름\n철수\n"),
			stage: stage.DatasetUnknown,
			want:  "지원하지 않는 데이터셋입니다.",
		},
		{
			name:  "пустой файл",
			parse: formWith("gangnamunni", ""),
			stage: stage.HeaderInvalid,
			want:  "CSV 파일 구조를 확인할 수 없습니다.",
		},
		{
			name:  "строка данных не разбирается",
			parse: formWith("gangnamunni", "이름\n\"철수\n"),
			stage: stage.RemapComplete,
			want:  "CSV 데이터 행을 해석할 수 없습니다. 따옴표와 구분자를 확인해주세요.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, "proj.mkt.keyword_raw", bqload.CredentialsConfig{})

			res := fx.svc.Ingest(fx.ctx, IngestInput{Auth: authenticated(), Parse: tt.parse})

			assertFailure(t, res, tt.stage, http.StatusBadRequest, KindClientInput)
			if res.Log.Error != tt.want {
				t.Errorf("error = %q, ожидалось %q", res.Log.Error, tt.want)
			}
			if fx.client.calls != 0 {
				t.Error("BigQuery не должен вызываться")
			}
		})
	}
}

// TestIngest_UnknownDatasetLog проверяет строку журнала с идентификатором.
func TestIngest_UnknownDatasetLog(t *testing.T) {
	fx := newFixture(t, "proj.mkt.keyword_raw", bqload.CredentialsConfig{})

	res := fx.svc.Ingest(fx.ctx, IngestInput{Auth: authenticated(), Parse: formWith("naver", "이름\n")})

	if len(res.Log.Lines) != 2 || res.Log.Lines[1] != "알 수 없는 데이터셋(naver) 입니다." {
		t.Errorf("журнал = %q", res.Log.Lines)
	}
}

// TestIngest_SchemaUnavailable проверяет известный набор данных без файла схемы.
func TestIngest_SchemaUnavailable(t *testing.T) {
	fx := newFixture(t, "proj.mkt.keyword_raw", bqload.CredentialsConfig{})

	res := fx.svc.Ingest(fx.ctx, IngestInput{Auth: authenticated(), Parse: formWith("babitalk", "이름\n")})

	assertFailure(t, res, stage.DatasetUnknown, http.StatusInternalServerError, KindConfiguration)
}

// TestIngest_TableIDInvalid проверяет некорректный идентификатор таблицы.
func TestIngest_TableIDInvalid(t *testing.T) {
	fx := newFixture(t, "keyword_raw", bqload.CredentialsConfig{})

	res := fx.svc.Ingest(fx.ctx, IngestInput{Auth: authenticated(), Parse: formWith("gangnamunni", "이름\n철수\n")})

	assertFailure(t, res, stage.TableIDInvalid, http.StatusInternalServerError, KindConfiguration)
	if !strings.HasPrefix(res.Log.Error, "BigQuery 테이블 ID 형식이 올바르지 않습니다.") {
		t.Errorf("error = %q", res.Log.Error)
	}
	if fx.client.calls != 0 {
		t.Error("BigQuery не должен вызываться")
	}
}

// TestIngest_CredentialsUnresolved проверяет отсутствие проекта.
func TestIngest_CredentialsUnresolved(t *testing.T) {
	fx := newFixture(t, "mkt.keyword_raw", bqload.CredentialsConfig{})

	res := fx.svc.Ingest(fx.ctx, IngestInput{Auth: authenticated(), Parse: formWith("gangnamunni", "이름\n철수\n")})

	assertFailure(t, res, stage.CredentialsUnresolved, http.StatusInternalServerError, KindConfiguration)
	if !errors.Is(res.Failure, bqload.ErrCredentialsUnresolved) {
		t.Errorf("ошибка = %v, ожидалась ErrCredentialsUnresolved", res.Failure.Err)
	}
	last := res.Log.Lines[len(res.Log.Lines)-1]
	if last != "BigQuery 업로드 중 오류가 발생했습니다." {
		t.Errorf("последняя строка = %q", last)
	}
	assertStagingEmpty(t, fx.stager)
}

// TestIngest_FallbackProject проверяет проект из окружения для dataset.table.
func TestIngest_FallbackProject(t *testing.T) {
	fx := newFixture(t, "mkt.keyword_raw", bqload.CredentialsConfig{FallbackProjects: []string{"env-project"}})

	res := fx.svc.Ingest(fx.ctx, IngestInput{Auth: authenticated(), Parse: formWith("gangnamunni", "이름\n철수\n")})

	if res.Status != http.StatusOK {
		t.Fatalf("статус = %d (error=%q)", res.Status, res.Log.Error)
	}
	if fx.client.table.String() != "env-project.mkt.keyword_raw" {
		t.Errorf("таблица = %s", fx.client.table)
	}
}

// TestIngest_LoadRejected проверяет передачу сообщения BigQuery и удаление файла.
func TestIngest_LoadRejected(t *testing.T) {
	fx := newFixture(t, "proj.mkt.keyword_raw", bqload.CredentialsConfig{})
	fx.client.err = &googleapi.Error{Code: 400, Message: "Provided Schema does not match Table"}

	res := fx.svc.Ingest(fx.ctx, IngestInput{Auth: authenticated(), Parse: formWith("gangnamunni", "이름\n철수\n")})

	assertFailure(t, res, stage.LoadFailed, http.StatusInternalServerError, KindExternalService)
	if res.Log.Error != "Provided Schema does not match Table" {
		t.Errorf("error = %q", res.Log.Error)
	}
	if contains(res.Log.Lines, "모든 작업이 완료 되었습니다....") {
		t.Error("журнал ошибки не должен содержать строку завершения")
	}
	assertStagingEmpty(t, fx.stager)
}

// TestIngest_CanceledContext проверяет, что отмена запроса не прерывает load job.
func TestIngest_CanceledContext(t *testing.T) {
	fx := newFixture(t, "proj.mkt.keyword_raw", bqload.CredentialsConfig{})
	ctx, cancel := context.WithCancel(fx.ctx)
	cancel()

	res := fx.svc.Ingest(ctx, IngestInput{Auth: authenticated(), Parse: formWith("gangnamunni", "이름\n철수\n")})

	if res.Status != http.StatusOK {
		t.Errorf("статус = %d, ожидался 200", res.Status)
	}
}

// TestIngest_BuffersCleared проверяет обнуление содержимого файла после обработки.
func TestIngest_BuffersCleared(t *testing.T) {
	fx := newFixture(t, "proj.mkt.keyword_raw", bqload.CredentialsConfig{})
	data := []byte("이름\n철수\n")

	fx.svc.Ingest(fx.ctx, IngestInput{
		Auth: authenticated(),
		Parse: func() (*UploadForm, error) {
			return &UploadForm{
				UploadRequest: model.UploadRequest{DatasetID: model.DatasetGangnamunni, Data: data},
				HasDatasetID:  true,
				HasFile:       true,
			}, nil
		},
	})

	for i, b := range data {
		if b != 0 {
			t.Fatalf("байт %d не обнулён", i)
		}
	}
}

// TestIngest_EnglishTranscript проверяет язык журнала из контекста.
func TestIngest_EnglishTranscript(t *testing.T) {
	fx := newFixture(t, "proj.mkt.keyword_raw", bqload.CredentialsConfig{})
	ctx := i18n.WithLang(fx.ctx, "en")

	res := fx.svc.Ingest(ctx, IngestInput{Auth: authenticated(), Parse: formWith("gangnamunni", "성함\n")})

	if res.Log.Error == "필수 컬럼 누락: 이름" {
		t.Error("сообщение должно быть на английском")
	}
	if !strings.Contains(res.Log.Error, "이름") {
		t.Errorf("error = %q, должен содержать имя колонки", res.Log.Error)
	}
}

// replaceWithDir подменяет временный файл непустой директорией, чтобы его удаление не удалось.
func replaceWithDir(t *testing.T) func(path string) {
	return func(path string) {
		if err := os.Remove(path); err != nil {
			t.Errorf("ошибка удаления файла: %v", err)
		}
		if err := os.Mkdir(path, 0o700); err != nil {
			t.Errorf("ошибка создания директории: %v", err)
		}
		if err := os.WriteFile(filepath.Join(path, "x"), []byte("x"), 0o600); err != nil {
			t.Errorf("ошибка записи файла: %v", err)
		}
	}
}

// TestIngest_CleanupFailureIgnored проверяет, что ошибка удаления временного файла
// попадает в журнал, но не меняет результат загрузки.
func TestIngest_CleanupFailureIgnored(t *testing.T) {
	const warning = "임시 파일 삭제 중 문제가 발생했으나 무시합니다."

	t.Run("успешная загрузка", func(t *testing.T) {
		fx := newFixture(t, "proj.mkt.keyword_raw", bqload.CredentialsConfig{})
		fx.client.onLoad = replaceWithDir(t)

		res := fx.svc.Ingest(fx.ctx, IngestInput{Auth: authenticated(), Parse: formWith("gangnamunni", "이름\n철수\n")})

		if res.Status != http.StatusOK || !res.Log.Success {
			t.Fatalf("статус = %d (error=%q), ожидался 200", res.Status, res.Log.Error)
		}
		if !contains(res.Log.Lines, warning) {
			t.Errorf("нет строки об ошибке удаления: %q", res.Log.Lines)
		}
		if last := res.Log.Lines[len(res.Log.Lines)-1]; last != "모든 작업이 완료 되었습니다...." {
			t.Errorf("последняя строка = %q", last)
		}
	})

	t.Run("ошибка load job", func(t *testing.T) {
		fx := newFixture(t, "proj.mkt.keyword_raw", bqload.CredentialsConfig{})
		fx.client.onLoad = replaceWithDir(t)
		fx.client.err = &googleapi.Error{Code: 400, Message: "Provided Schema does not match Table"}

		res := fx.svc.Ingest(fx.ctx, IngestInput{Auth: authenticated(), Parse: formWith("gangnamunni", "이름\n철수\n")})

		assertFailure(t, res, stage.LoadFailed, http.StatusInternalServerError, KindExternalService)
		if res.Log.Error != "Provided Schema does not match Table" {
			t.Errorf("error = %q", res.Log.Error)
		}
		var le *bqload.LoadError
		if !errors.As(res.Failure, &le) {
			t.Errorf("ошибка = %T, ожидалась *bqload.LoadError", res.Failure.Err)
		}
		if !contains(res.Log.Lines, warning) {
			t.Errorf("нет строки об ошибке удаления: %q", res.Log.Lines)
		}
	})
}

// TestIngest_StageOrderViolation проверяет, что нарушение порядка этапов
// завершает запрос ошибкой сервера.
func TestIngest_StageOrderViolation(t *testing.T) {
	fx := newFixture(t, "proj.mkt.keyword_raw", bqload.CredentialsConfig{})
	pass := func(*run) *Failure { return nil }
	fx.svc.steps = []step{
		{stage.Unauthenticated, (*run).checkSession},
		{stage.DatasetUnspecified, pass},
		{stage.BodyUnparseable, pass},
	}

	res := fx.svc.Ingest(fx.ctx, IngestInput{Auth: authenticated(), Parse: formWith("gangnamunni", "이름\n")})

	assertFailure(t, res, stage.DatasetUnspecified, http.StatusInternalServerError, KindConfiguration)
	var te *stage.TransitionError
	if !errors.As(res.Failure, &te) || te.Code != "INVALID_TRANSITION" {
		t.Errorf("ошибка = %v, ожидалась INVALID_TRANSITION", res.Failure.Err)
	}
	if res.Log.Error != "서버 내부 오류가 발생했습니다. 관리자에게 문의해주세요." {
		t.Errorf("error = %q", res.Log.Error)
	}
	if len(res.History) != 2 {
		t.Errorf("история = %d переходов, ожидалось 2", len(res.History))
	}
	if fx.client.calls != 0 {
		t.Error("BigQuery не должен вызываться")
	}
}

func contains(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}
