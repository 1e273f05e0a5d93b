package csvmap

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/model"
)

// Remap перестраивает записи CSV под схему набора данных.
//
// Записи читаются после строки заголовка, значения берутся по имени колонки из header.
// На выходе — заголовок из TargetName и строки в порядке схемы.
// Отсутствующее значение (колонки нет или строка короче заголовка) заменяется пустой строкой.
// Пустые строки пропускаются. Функция детерминирована.
//
// Возвращает выходные байты и количество строк данных.
// Ошибка возможна только для некорректного CSV (например, незакрытая кавычка).
func Remap(raw []byte, header []string, fields []model.SchemaField) ([]byte, int, error) {
	r := newReader(raw)

	// Строка заголовка уже проверена ValidateHeader
	if _, err := r.Read(); err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, fmt.Errorf("чтение заголовка: %w", err)
	}

	// При дублирующихся заголовках берётся последняя колонка
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	targets := make([]string, len(fields))
	for i, f := range fields {
		targets[i] = f.TargetName
	}
	if err := w.Write(targets); err != nil {
		return nil, 0, fmt.Errorf("запись заголовка: %w", err)
	}

	rows := 0
	out := make([]string, len(fields))
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("чтение строки %d: %w", rows+2, err)
		}

		for i, f := range fields {
			out[i] = lookup(record, index, f.SourceName)
		}
		if err := w.Write(out); err != nil {
			return nil, 0, fmt.Errorf("запись строки %d: %w", rows+2, err)
		}
		rows++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, fmt.Errorf("сброс буфера CSV: %w", err)
	}

	return buf.Bytes(), rows, nil
}

// lookup возвращает значение колонки name в записи или пустую строку.
func lookup(record []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}
