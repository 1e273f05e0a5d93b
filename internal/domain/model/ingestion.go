package model

// UploadRequest — данные одного запроса загрузки.
// Живёт только в рамках запроса, нигде не сохраняется.
type UploadRequest struct {
	DatasetID DatasetID
	FileName  string
	// Data — содержимое CSV-файла; обнуляется после обработки запроса
	Data []byte
}

// IngestionLog — упорядоченный журнал одной попытки загрузки.
// Возвращается клиенту как есть; другого аудита нет.
type IngestionLog struct {
	Lines   []string `json:"logs"`
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
}

// NewIngestionLog создаёт пустой журнал.
// Lines не nil, чтобы в JSON всегда был массив.
func NewIngestionLog() *IngestionLog {
	return &IngestionLog{Lines: make([]string, 0, 16)}
}

// Append добавляет строку в журнал.
func (l *IngestionLog) Append(line string) {
	l.Lines = append(l.Lines, line)
}

// Fail завершает журнал с ошибкой.
func (l *IngestionLog) Fail(message string) {
	l.Success = false
	l.Error = message
}

// Succeed завершает журнал успешно.
func (l *IngestionLog) Succeed() {
	l.Success = true
	l.Error = ""
}
