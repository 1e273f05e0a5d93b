// Пакет stage — последовательность этапов конвейера загрузки CSV.
//
// Этапы проходятся строго по порядку, каждый может стать терминальным:
//
//	unauthenticated → body_unparseable → dataset_unspecified → file_missing →
//	dataset_unknown → header_invalid → missing_required_columns → remap_complete →
//	table_id_invalid → credentials_unresolved → load_failed → success
//
// Имя этапа — это точка проверки: если проверка этапа не прошла,
// запрос завершается с HTTP-статусом этапа.
package stage

import (
	"fmt"
	"net/http"
	"time"
)

// Stage — этап конвейера загрузки.
type Stage string

const (
	Unauthenticated        Stage = "unauthenticated"
	BodyUnparseable        Stage = "body_unparseable"
	DatasetUnspecified     Stage = "dataset_unspecified"
	FileMissing            Stage = "file_missing"
	DatasetUnknown         Stage = "dataset_unknown"
	HeaderInvalid          Stage = "header_invalid"
	MissingRequiredColumns Stage = "missing_required_columns"
	RemapComplete          Stage = "remap_complete"
	TableIDInvalid         Stage = "table_id_invalid"
	CredentialsUnresolved  Stage = "credentials_unresolved"
	LoadFailed             Stage = "load_failed"
	Success                Stage = "success"
)

// Sequence — порядок этапов.
var Sequence = []Stage{
	Unauthenticated,
	BodyUnparseable,
	DatasetUnspecified,
	FileMissing,
	DatasetUnknown,
	HeaderInvalid,
	MissingRequiredColumns,
	RemapComplete,
	TableIDInvalid,
	CredentialsUnresolved,
	LoadFailed,
	Success,
}

// failureStatus — HTTP-статус при завершении на этапе.
var failureStatus = map[Stage]int{
	Unauthenticated:        http.StatusUnauthorized,
	BodyUnparseable:        http.StatusBadRequest,
	DatasetUnspecified:     http.StatusBadRequest,
	FileMissing:            http.StatusBadRequest,
	DatasetUnknown:         http.StatusBadRequest,
	HeaderInvalid:          http.StatusBadRequest,
	MissingRequiredColumns: http.StatusBadRequest,
	RemapComplete:          http.StatusBadRequest,
	TableIDInvalid:         http.StatusInternalServerError,
	CredentialsUnresolved:  http.StatusInternalServerError,
	LoadFailed:             http.StatusInternalServerError,
	Success:                http.StatusOK,
}

// Status возвращает HTTP-статус ответа, если конвейер завершился на этом этапе.
func (s Stage) Status() int {
	if code, ok := failureStatus[s]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Index возвращает позицию этапа в Sequence или -1.
func (s Stage) Index() int {
	for i, st := range Sequence {
		if st == s {
			return i
		}
	}
	return -1
}

// TransitionRecord — запись о достижении этапа.
type TransitionRecord struct {
	From      Stage     `json:"from"`
	To        Stage     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// TransitionError — попытка перейти назад или на неизвестный этап.
type TransitionError struct {
	Code    string
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Tracker отслеживает продвижение одного запроса по этапам.
// Принадлежит одному запросу, синхронизация не нужна.
type Tracker struct {
	current Stage
	started bool
	history []TransitionRecord
}

// NewTracker создаёт трекер, ещё не вошедший ни в один этап.
func NewTracker() *Tracker {
	return &Tracker{history: make([]TransitionRecord, 0, len(Sequence))}
}

// Current возвращает последний достигнутый этап.
func (t *Tracker) Current() Stage {
	return t.current
}

// Enter переводит трекер на этап target. Допустимы только переходы вперёд.
func (t *Tracker) Enter(target Stage) error {
	idx := target.Index()
	if idx < 0 {
		return &TransitionError{
			Code:    "UNKNOWN_STAGE",
			Message: fmt.Sprintf("неизвестный этап %q", target),
		}
	}
	if t.started && idx <= t.current.Index() {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("переход %s → %s недопустим", t.current, target),
		}
	}

	t.history = append(t.history, TransitionRecord{
		From:      t.current,
		To:        target,
		Timestamp: time.Now().UTC(),
	})
	t.current = target
	t.started = true
	return nil
}

// History возвращает копию истории переходов.
func (t *Tracker) History() []TransitionRecord {
	out := make([]TransitionRecord, len(t.history))
	copy(out, t.history)
	return out
}
