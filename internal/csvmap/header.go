// Пакет csvmap — проверка заголовка CSV и перестроение колонок по схеме набора данных.
// Все функции чистые: работают только с переданными байтами, без I/O.
package csvmap

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// utf8BOM — метка порядка байтов, которую добавляет Excel при экспорте в CSV.
var utf8BOM = []byte("\xEF\xBB\xBF")

// ErrHeaderUnreadable — байты не разбираются как CSV или не содержат ни одной строки.
var ErrHeaderUnreadable = errors.New("CSV-заголовок не читается")

// MissingColumnsError — во входном заголовке нет обязательных колонок.
type MissingColumnsError struct {
	// Columns — все отсутствующие колонки в порядке схемы
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("отсутствуют обязательные колонки: %s", strings.Join(e.Columns, ", "))
}

// newReader создаёт csv.Reader поверх байтов без BOM.
// Количество полей в строках не фиксируется: короткие строки обрабатывает Remap.
func newReader(raw []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, utf8BOM)))
	r.FieldsPerRecord = -1
	return r
}

// ValidateHeader читает первую запись CSV и проверяет наличие всех колонок required.
// Возвращает заголовок с обрезанными пробелами.
func ValidateHeader(raw []byte, required []string) ([]string, error) {
	header, err := readHeader(newReader(raw))
	if err != nil {
		return nil, err
	}

	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[h] = struct{}{}
	}

	var missing []string
	for _, col := range required {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return header, &MissingColumnsError{Columns: missing}
	}

	return header, nil
}

// readHeader читает первую непустую запись и обрезает пробелы в ячейках.
func readHeader(r *csv.Reader) ([]string, error) {
	record, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: файл не содержит строк", ErrHeaderUnreadable)
		}
		return nil, fmt.Errorf("%w: %v", ErrHeaderUnreadable, err)
	}

	header := make([]string, len(record))
	for i, cell := range record {
		header[i] = strings.TrimSpace(cell)
	}
	return header, nil
}
