package bqload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2/google"
)

// ErrCredentialsUnresolved — не удалось определить проект или учётные данные BigQuery.
var ErrCredentialsUnresolved = errors.New("учётные данные BigQuery не определены")

// CredentialsConfig — источники учётных данных из окружения процесса.
type CredentialsConfig struct {
	// ServiceAccountJSON — GOOGLE_APPLICATION_CREDENTIALS_JSON, JSON или base64 от JSON
	ServiceAccountJSON string
	// FallbackProjects — BIGQUERY_PROJECT_ID, GOOGLE_CLOUD_PROJECT, GCP_PROJECT_ID в порядке приоритета
	FallbackProjects []string
}

// Credentials — итог разрешения учётных данных для одного запуска загрузки.
type Credentials struct {
	// ProjectID — проект, в котором выполняется load job
	ProjectID string
	// JSON — ключ сервисного аккаунта; nil означает Application Default Credentials
	JSON []byte
	// ClientEmail — сервисный аккаунт, для журнала
	ClientEmail string
}

// ResolveCredentials определяет проект и ключ для load job.
//
// Порядок выбора проекта: tableProject → project_id из ключа → FallbackProjects.
// Ключ, если задан, обязан разбираться как JSON (напрямую или после base64),
// содержать client_email и private_key и не быть OAuth client secrets.
func ResolveCredentials(tableProject string, cfg CredentialsConfig) (*Credentials, error) {
	creds := &Credentials{}

	raw := strings.TrimSpace(cfg.ServiceAccountJSON)
	if raw != "" {
		key, err := decodeServiceAccount(raw)
		if err != nil {
			return nil, err
		}

		if _, err := google.ConfigFromJSON(key); err == nil {
			return nil, fmt.Errorf("%w: OAuth client secrets не поддерживаются, нужен ключ сервисного аккаунта",
				ErrCredentialsUnresolved)
		}

		fields := gjson.GetManyBytes(key, "client_email", "private_key", "project_id")
		if fields[0].String() == "" || fields[1].String() == "" {
			return nil, fmt.Errorf("%w: в ключе нет client_email или private_key", ErrCredentialsUnresolved)
		}

		creds.JSON = key
		creds.ClientEmail = fields[0].String()
		if tableProject == "" {
			tableProject = fields[2].String()
		}
	}

	creds.ProjectID = tableProject
	if creds.ProjectID == "" {
		for _, p := range cfg.FallbackProjects {
			if p = strings.TrimSpace(p); p != "" {
				creds.ProjectID = p
				break
			}
		}
	}
	if creds.ProjectID == "" {
		return nil, fmt.Errorf("%w: проект не задан ни в идентификаторе таблицы, ни в окружении",
			ErrCredentialsUnresolved)
	}

	return creds, nil
}

// decodeServiceAccount возвращает JSON ключа: как есть или после base64-декодирования.
func decodeServiceAccount(raw string) ([]byte, error) {
	if isJSONObject([]byte(raw)) {
		return []byte(raw), nil
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding} {
		decoded, err := enc.DecodeString(raw)
		if err == nil && isJSONObject(decoded) {
			return decoded, nil
		}
	}

	return nil, fmt.Errorf("%w: ключ сервисного аккаунта не является JSON или base64 от JSON",
		ErrCredentialsUnresolved)
}

func isJSONObject(b []byte) bool {
	return gjson.ValidBytes(b) && gjson.ParseBytes(b).IsObject()
}
