// Пакет staging — временные файлы с перестроенным CSV перед загрузкой в BigQuery.
// Файл живёт только в рамках одного запроса: создаётся перед загрузкой
// и удаляется после неё при любом исходе.
package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// namePrefix — общий префикс имён временных файлов.
const namePrefix = "mkt-data"

// Stager — управление временными файлами в одной директории.
type Stager struct {
	// dir — директория временных файлов (MU_STAGING_DIR или os.TempDir())
	dir string
	// now — источник времени для имени файла
	now func() time.Time
}

// StagedFile — записанный на диск временный файл.
type StagedFile struct {
	// Path — абсолютный путь файла
	Path string
	// Size — размер в байтах
	Size int64
	// Checksum — SHA-256 содержимого, для журнала
	Checksum string
}

// New создаёт Stager. Пустой dir означает системную временную директорию.
// Директория создаётся, если её нет.
func New(dir string) (*Stager, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию временных файлов %s: %w", dir, err)
	}

	return &Stager{dir: dir, now: time.Now}, nil
}

// Dir возвращает директорию временных файлов.
func (s *Stager) Dir() string {
	return s.dir
}

// Write записывает data во временный файл для набора datasetID.
// Формат имени: mkt-data-{dataset}-{unixMillis}-{uuid8}.csv
//
// Паттерн: создание → запись → fsync → закрытие.
// При ошибке файл удаляется.
func (s *Stager) Write(datasetID string, data []byte) (*StagedFile, error) {
	path := filepath.Join(s.dir, s.fileName(datasetID))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	sum := sha256.Sum256(data)
	return &StagedFile{
		Path:     path,
		Size:     int64(len(data)),
		Checksum: hex.EncodeToString(sum[:]),
	}, nil
}

// Open открывает временный файл для чтения.
// Вызывающий код обязан закрыть файл.
func (s *Stager) Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("временный файл не найден: %s", path)
		}
		return nil, fmt.Errorf("ошибка открытия временного файла %s: %w", path, err)
	}
	return f, nil
}

// Remove удаляет временный файл.
// Возвращает nil, если файл уже не существует.
func (s *Stager) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления временного файла %s: %w", path, err)
	}
	return nil
}

// Exists проверяет, что временный файл ещё на диске.
func (s *Stager) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fileName генерирует уникальное имя временного файла.
// Пример: mkt-data-babitalk-1760745600000-a1b2c3d4.csv
func (s *Stager) fileName(datasetID string) string {
	ts := s.now().UnixMilli()
	uid := uuid.New().String()[:8]
	return fmt.Sprintf("%s-%s-%d-%s.csv", namePrefix, sanitize(datasetID), ts, uid)
}

// sanitize оставляет в идентификаторе только латиницу, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "dataset"
	}
	return result.String()
}
