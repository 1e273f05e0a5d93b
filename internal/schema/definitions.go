// Пакет schema — реестр наборов данных и схем колонок.
//
// Описания наборов данных читаются из YAML при старте процесса и дальше не меняются.
// Файлы схем (CSV) читаются по требованию через кэш с TTL.
package schema

import (
	"bytes"
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/model"
)

// Заголовки колонок в CSV-файле схемы.
const (
	headerSource = "기존 컬럼명"
	headerType   = "데이터 타입"
	headerTarget = "영어 컬럼명"
)

//go:embed defaults
var defaultsFS embed.FS

var (
	// ErrInvalidDatasets — файл наборов данных некорректен.
	ErrInvalidDatasets = errors.New("некорректное описание наборов данных")
	// ErrInvalidSchema — файл схемы некорректен.
	ErrInvalidSchema = errors.New("некорректный файл схемы")
)

// datasetsFile — корень YAML-файла наборов данных.
type datasetsFile struct {
	Datasets []model.DatasetDescriptor `yaml:"datasets"`
}

// ParseDatasets разбирает YAML с описаниями наборов данных.
// Идентификаторы должны входить в model.KnownDatasetIDs и не повторяться,
// остальные поля обязательны.
func ParseDatasets(data []byte) ([]model.DatasetDescriptor, error) {
	var file datasetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDatasets, err)
	}
	if len(file.Datasets) == 0 {
		return nil, fmt.Errorf("%w: список datasets пуст", ErrInvalidDatasets)
	}

	seen := make(map[model.DatasetID]bool, len(file.Datasets))
	for i, d := range file.Datasets {
		if !d.ID.IsKnown() {
			return nil, fmt.Errorf("%w: datasets[%d]: неизвестный id %q", ErrInvalidDatasets, i, d.ID)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("%w: datasets[%d]: повторный id %q", ErrInvalidDatasets, i, d.ID)
		}
		seen[d.ID] = true

		switch {
		case d.Label == "":
			return nil, fmt.Errorf("%w: %s: label обязателен", ErrInvalidDatasets, d.ID)
		case d.SchemaFile == "":
			return nil, fmt.Errorf("%w: %s: schema_file обязателен", ErrInvalidDatasets, d.ID)
		case d.TableID == "":
			return nil, fmt.Errorf("%w: %s: bigquery_table_id обязателен", ErrInvalidDatasets, d.ID)
		}
		if d.TableLabel == "" {
			file.Datasets[i].TableLabel = d.Label
		}
	}

	return file.Datasets, nil
}

// ParseSchema разбирает CSV-файл схемы name.
//
// Колонки находятся по заголовкам 기존 컬럼명, 데이터 타입, 영어 컬럼명; значения обрезаются,
// пустые строки пропускаются. Строка без любого из трёх значений делает весь файл некорректным.
// TargetName не может повторяться.
func ParseSchema(name string, data []byte) ([]model.SchemaField, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: чтение заголовка: %v", ErrInvalidSchema, name, err)
	}

	pos := map[string]int{headerSource: -1, headerType: -1, headerTarget: -1}
	for i, h := range header {
		if _, ok := pos[strings.TrimSpace(h)]; ok {
			pos[strings.TrimSpace(h)] = i
		}
	}

	var fields []model.SchemaField
	targets := make(map[string]bool)
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, name, err)
		}

		f := model.SchemaField{
			SourceName: cell(record, pos[headerSource]),
			DataType:   cell(record, pos[headerType]),
			TargetName: cell(record, pos[headerTarget]),
		}
		if f.SourceName == "" || f.DataType == "" || f.TargetName == "" {
			return nil, fmt.Errorf("%w: %s: строка %d: нужны значения '%s', '%s', '%s'",
				ErrInvalidSchema, name, line, headerSource, headerType, headerTarget)
		}
		if targets[f.TargetName] {
			return nil, fmt.Errorf("%w: %s: строка %d: повторная колонка %q",
				ErrInvalidSchema, name, line, f.TargetName)
		}
		targets[f.TargetName] = true
		fields = append(fields, f)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s: нет ни одной колонки", ErrInvalidSchema, name)
	}
	return fields, nil
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// LoadDefinitions возвращает описания наборов данных и файловую систему схем.
// Пустой datasetsFile или schemaDir означает встроенные значения по умолчанию.
func LoadDefinitions(datasetsFile, schemaDir string) ([]model.DatasetDescriptor, fs.FS, error) {
	var (
		data []byte
		err  error
	)
	if datasetsFile == "" {
		data, err = defaultsFS.ReadFile("defaults/datasets.yaml")
	} else {
		data, err = os.ReadFile(datasetsFile)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("чтение описания наборов данных: %w", err)
	}

	datasets, err := ParseDatasets(data)
	if err != nil {
		return nil, nil, err
	}

	var schemas fs.FS
	if schemaDir == "" {
		schemas, err = fs.Sub(defaultsFS, "defaults/schemas")
		if err != nil {
			return nil, nil, fmt.Errorf("встроенные схемы: %w", err)
		}
	} else {
		schemas = os.DirFS(schemaDir)
	}

	return datasets, schemas, nil
}
