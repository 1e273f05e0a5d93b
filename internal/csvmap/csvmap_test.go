package csvmap

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/model"
)

// testSchema — схема из трёх колонок для тестов.
var testSchema = []model.SchemaField{
	{SourceName: "이름", DataType: "STRING", TargetName: "name"},
	{SourceName: "나이", DataType: "INTEGER", TargetName: "age"},
	{SourceName: "지역", DataType: "STRING", TargetName: "region"},
}

func sourceNames(fields []model.SchemaField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.SourceName
	}
	return out
}

// --- ValidateHeader ---

func TestValidateHeader_OK(t *testing.T) {
	raw := []byte("이름,나이,지역\n철수,20,서울\n")

	header, err := ValidateHeader(raw, sourceNames(testSchema))
	if err != nil {
		t.Fatalf("ValidateHeader() вернул ошибку: %v", err)
	}
	want := []string{"이름", "나이", "지역"}
	if !reflect.DeepEqual(header, want) {
		t.Errorf("header = %v, ожидался %v", header, want)
	}
}

func TestValidateHeader_BOMAndWhitespace(t *testing.T) {
	raw := append([]byte("\xEF\xBB\xBF"), []byte(" 이름 ,나이 , 지역\n")...)

	header, err := ValidateHeader(raw, sourceNames(testSchema))
	if err != nil {
		t.Fatalf("ValidateHeader() вернул ошибку: %v", err)
	}
	if header[0] != "이름" || header[1] != "나이" || header[2] != "지역" {
		t.Errorf("BOM или пробелы не удалены: %q", header)
	}
}

func TestValidateHeader_Unreadable(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"пустой файл", []byte("")},
		{"только BOM", []byte("\xEF\xBB\xBF")},
		{"только пустые строки", []byte("\n\n\n")},
		{"незакрытая кавычка", []byte("\"이름,나이\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateHeader(tt.raw, []string{"이름"})
			if !errors.Is(err, ErrHeaderUnreadable) {
				t.Errorf("ожидалась ErrHeaderUnreadable, получено %v", err)
			}
		})
	}
}

func TestValidateHeader_AllMissingReported(t *testing.T) {
	raw := []byte("나이\n20\n")

	_, err := ValidateHeader(raw, sourceNames(testSchema))
	var mc *MissingColumnsError
	if !errors.As(err, &mc) {
		t.Fatalf("ожидалась MissingColumnsError, получено %v", err)
	}
	want := []string{"이름", "지역"}
	if !reflect.DeepEqual(mc.Columns, want) {
		t.Errorf("Columns = %v, ожидалось %v", mc.Columns, want)
	}
}

// Удаление любой одной колонки даёт ошибку ровно с этой колонкой.
func TestValidateHeader_RemoveEachColumn(t *testing.T) {
	required := sourceNames(testSchema)

	for skip := range required {
		var header []string
		for i, col := range required {
			if i != skip {
				header = append(header, col)
			}
		}
		var buf bytes.Buffer
		for i, h := range header {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(h)
		}
		buf.WriteByte('\n')

		_, err := ValidateHeader(buf.Bytes(), required)
		var mc *MissingColumnsError
		if !errors.As(err, &mc) {
			t.Fatalf("без %q: ожидалась MissingColumnsError, получено %v", required[skip], err)
		}
		if len(mc.Columns) != 1 || mc.Columns[0] != required[skip] {
			t.Errorf("без %q: Columns = %v", required[skip], mc.Columns)
		}
	}
}

func TestValidateHeader_CaseSensitive(t *testing.T) {
	_, err := ValidateHeader([]byte("Name\n"), []string{"name"})
	var mc *MissingColumnsError
	if !errors.As(err, &mc) {
		t.Fatalf("сравнение должно учитывать регистр, получено %v", err)
	}
}

// --- Remap ---

func TestRemap_SingleColumn(t *testing.T) {
	schema := []model.SchemaField{{SourceName: "이름", DataType: "STRING", TargetName: "name"}}
	raw := []byte("이름\n철수\n영희\n")

	header, err := ValidateHeader(raw, sourceNames(schema))
	if err != nil {
		t.Fatalf("ValidateHeader: %v", err)
	}
	out, rows, err := Remap(raw, header, schema)
	if err != nil {
		t.Fatalf("Remap() вернул ошибку: %v", err)
	}
	if string(out) != "name\n철수\n영희\n" {
		t.Errorf("out = %q", out)
	}
	if rows != 2 {
		t.Errorf("rows = %d, ожидалось 2", rows)
	}
}

func TestRemap_ReordersToSchemaOrder(t *testing.T) {
	raw := []byte("지역,기타,이름,나이\n서울,x,철수,20\n부산,y,영희,31\n")

	header, err := ValidateHeader(raw, sourceNames(testSchema))
	if err != nil {
		t.Fatalf("ValidateHeader: %v", err)
	}
	out, _, err := Remap(raw, header, testSchema)
	if err != nil {
		t.Fatalf("Remap: %v", err)
	}

	want := "name,age,region\n철수,20,서울\n영희,31,부산\n"
	if string(out) != want {
		t.Errorf("out = %q, ожидалось %q", out, want)
	}
}

func TestRemap_MissingValuesBecomeEmpty(t *testing.T) {
	raw := []byte("이름,나이,지역\n철수\n영희,31,\n")

	header, _ := ValidateHeader(raw, sourceNames(testSchema))
	out, rows, err := Remap(raw, header, testSchema)
	if err != nil {
		t.Fatalf("Remap: %v", err)
	}

	want := "name,age,region\n철수,,\n영희,31,\n"
	if string(out) != want {
		t.Errorf("out = %q, ожидалось %q", out, want)
	}
	if rows != 2 {
		t.Errorf("rows = %d, ожидалось 2", rows)
	}
}

func TestRemap_SkipsBlankLinesAndBOM(t *testing.T) {
	raw := []byte("\xEF\xBB\xBF이름,나이,지역\n\n철수,20,서울\n\n\n영희,31,부산\n")

	header, err := ValidateHeader(raw, sourceNames(testSchema))
	if err != nil {
		t.Fatalf("ValidateHeader: %v", err)
	}
	out, rows, err := Remap(raw, header, testSchema)
	if err != nil {
		t.Fatalf("Remap: %v", err)
	}
	if rows != 2 {
		t.Errorf("rows = %d, ожидалось 2", rows)
	}
	if string(out) != "name,age,region\n철수,20,서울\n영희,31,부산\n" {
		t.Errorf("out = %q", out)
	}
}

func TestRemap_HeaderOnly(t *testing.T) {
	raw := []byte("이름,나이,지역\n")

	header, _ := ValidateHeader(raw, sourceNames(testSchema))
	out, rows, err := Remap(raw, header, testSchema)
	if err != nil {
		t.Fatalf("Remap: %v", err)
	}
	if rows != 0 || string(out) != "name,age,region\n" {
		t.Errorf("rows=%d out=%q", rows, out)
	}
}

func TestRemap_QuotedValues(t *testing.T) {
	raw := []byte("이름,나이,지역\n\"김, 철수\",20,\"서울 \"\"강남\"\"\"\n")

	header, _ := ValidateHeader(raw, sourceNames(testSchema))
	out, _, err := Remap(raw, header, testSchema)
	if err != nil {
		t.Fatalf("Remap: %v", err)
	}
	want := "name,age,region\n\"김, 철수\",20,\"서울 \"\"강남\"\"\"\n"
	if string(out) != want {
		t.Errorf("out = %q, ожидалось %q", out, want)
	}
}

func TestRemap_BrokenRow(t *testing.T) {
	raw := []byte("이름,나이,지역\n\"철수,20,서울\n")

	header, _ := ValidateHeader(raw, sourceNames(testSchema))
	if _, _, err := Remap(raw, header, testSchema); err == nil {
		t.Error("ожидалась ошибка для незакрытой кавычки")
	}
}

func TestRemap_Deterministic(t *testing.T) {
	raw := []byte("나이,이름,지역\n20,철수,서울\n31,영희,\n,민수,대구\n")

	header, _ := ValidateHeader(raw, sourceNames(testSchema))
	first, _, err := Remap(raw, header, testSchema)
	if err != nil {
		t.Fatalf("Remap: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _, err := Remap(raw, header, testSchema)
		if err != nil {
			t.Fatalf("Remap #%d: %v", i, err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("Remap #%d дал другой результат: %q vs %q", i, again, first)
		}
	}
}
