// errors.go — классификация ошибок конвейера загрузки.
package service

import (
	"fmt"
	"net/http"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/stage"
)

// ErrorKind — класс ошибки: определяет HTTP-статус и то, кто может её исправить.
type ErrorKind string

const (
	// KindAuthentication — нет сессии или она недействительна (401).
	KindAuthentication ErrorKind = "AuthenticationError"
	// KindClientInput — некорректный запрос, неизвестный набор данных, нечитаемый CSV,
	// отсутствующие колонки (400). Не повторяется автоматически.
	KindClientInput ErrorKind = "ClientInputError"
	// KindConfiguration — ошибка конфигурации оператора: учётные данные,
	// идентификатор таблицы, файлы схем (500).
	KindConfiguration ErrorKind = "ConfigurationError"
	// KindExternalService — BigQuery отклонил загрузку (500), сообщение сервиса передаётся как есть.
	KindExternalService ErrorKind = "ExternalServiceError"
)

// Failure — терминальная ошибка конвейера.
type Failure struct {
	// Stage — этап, на котором конвейер остановился
	Stage stage.Stage
	// Status — HTTP-статус ответа
	Status int
	Kind   ErrorKind
	// Message — сообщение для пользователя (поле error ответа)
	Message string
	// Err — исходная ошибка для журнала сервера
	Err error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s (%s): %s: %v", f.Stage, f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s (%s): %s", f.Stage, f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// fail создаёт Failure со статусом и классом по умолчанию для этапа.
func fail(s stage.Stage, message string, err error) *Failure {
	return &Failure{
		Stage:   s,
		Status:  s.Status(),
		Kind:    kindFor(s),
		Message: message,
		Err:     err,
	}
}

// kindFor возвращает класс ошибки этапа по умолчанию.
func kindFor(s stage.Stage) ErrorKind {
	switch s {
	case stage.Unauthenticated:
		return KindAuthentication
	case stage.TableIDInvalid, stage.CredentialsUnresolved:
		return KindConfiguration
	case stage.LoadFailed:
		return KindExternalService
	}
	if s.Status() == http.StatusBadRequest {
		return KindClientInput
	}
	return KindConfiguration
}
