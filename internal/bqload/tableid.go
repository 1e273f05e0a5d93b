// Пакет bqload — загрузка перестроенного CSV в таблицу BigQuery.
//
// Загрузка выполняется одним load job в режиме WRITE_APPEND через
// промежуточный временный файл. Файл удаляется после попытки при любом исходе.
package bqload

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTableIdentifier — идентификатор таблицы не в формате [project.]dataset.table.
var ErrInvalidTableIdentifier = errors.New("некорректный идентификатор таблицы BigQuery")

// TableID — разобранный идентификатор таблицы.
type TableID struct {
	// Project — пустой, если идентификатор двухчастный
	Project string
	Dataset string
	Table   string
}

// ParseTableID разбирает идентификатор вида dataset.table или project.dataset.table.
// Все части должны быть непустыми.
func ParseTableID(s string) (TableID, error) {
	parts := strings.Split(s, ".")

	for _, p := range parts {
		if p == "" {
			return TableID{}, fmt.Errorf("%w: пустая часть в %q", ErrInvalidTableIdentifier, s)
		}
	}

	switch len(parts) {
	case 3:
		return TableID{Project: parts[0], Dataset: parts[1], Table: parts[2]}, nil
	case 2:
		return TableID{Dataset: parts[0], Table: parts[1]}, nil
	default:
		return TableID{}, fmt.Errorf("%w: %q содержит %d частей, ожидается 2 или 3",
			ErrInvalidTableIdentifier, s, len(parts))
	}
}

// String возвращает идентификатор в точечной записи.
func (t TableID) String() string {
	if t.Project == "" {
		return t.Dataset + "." + t.Table
	}
	return t.Project + "." + t.Dataset + "." + t.Table
}

// WithProject возвращает копию с заданным проектом.
func (t TableID) WithProject(project string) TableID {
	t.Project = project
	return t
}
