package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/model"
)

// ErrUnknownDataset — набор данных не описан.
var ErrUnknownDataset = errors.New("неизвестный набор данных")

// Registry — наборы данных и доступ к их схемам.
// Безопасен для конкурентного использования: описания неизменяемы, кэш потокобезопасен.
type Registry struct {
	datasets []model.DatasetDescriptor
	byID     map[model.DatasetID]model.DatasetDescriptor
	schemas  fs.FS
	cache    *Cache
	logger   *slog.Logger
}

// NewRegistry создаёт реестр. cache может быть nil — тогда схема читается при каждом запросе.
func NewRegistry(datasets []model.DatasetDescriptor, schemas fs.FS, cache *Cache, logger *slog.Logger) *Registry {
	byID := make(map[model.DatasetID]model.DatasetDescriptor, len(datasets))
	for _, d := range datasets {
		byID[d.ID] = d
	}
	return &Registry{
		datasets: datasets,
		byID:     byID,
		schemas:  schemas,
		cache:    cache,
		logger:   logger.With(slog.String("component", "schema_registry")),
	}
}

// Datasets возвращает описания в порядке конфигурации.
func (r *Registry) Datasets() []model.DatasetDescriptor {
	out := make([]model.DatasetDescriptor, len(r.datasets))
	copy(out, r.datasets)
	return out
}

// Descriptor возвращает описание набора данных.
func (r *Registry) Descriptor(id model.DatasetID) (model.DatasetDescriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Get возвращает набор данных со схемой.
func (r *Registry) Get(id model.DatasetID) (*model.DatasetWithSchema, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, id)
	}

	fields, err := r.fields(d)
	if err != nil {
		return nil, err
	}
	return &model.DatasetWithSchema{DatasetDescriptor: d, Schema: fields}, nil
}

// All возвращает все наборы данных со схемами. Ошибка любой схемы прерывает загрузку.
func (r *Registry) All() ([]model.DatasetWithSchema, error) {
	out := make([]model.DatasetWithSchema, 0, len(r.datasets))
	for _, d := range r.datasets {
		fields, err := r.fields(d)
		if err != nil {
			return nil, err
		}
		out = append(out, model.DatasetWithSchema{DatasetDescriptor: d, Schema: fields})
	}
	return out, nil
}

// fields читает схему из кэша или из файла.
func (r *Registry) fields(d model.DatasetDescriptor) ([]model.SchemaField, error) {
	if r.cache != nil {
		if fields, ok := r.cache.Get(d.ID); ok {
			return fields, nil
		}
	}

	data, err := fs.ReadFile(r.schemas, d.SchemaFile)
	if err != nil {
		return nil, fmt.Errorf("чтение схемы %s: %w", d.SchemaFile, err)
	}
	fields, err := ParseSchema(d.SchemaFile, data)
	if err != nil {
		r.logger.Error("Некорректный файл схемы",
			slog.String("dataset", string(d.ID)),
			slog.String("file", d.SchemaFile),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	r.logger.Debug("Схема загружена",
		slog.String("dataset", string(d.ID)),
		slog.Int("fields", len(fields)),
	)
	if r.cache != nil {
		r.cache.Set(d.ID, fields)
	}
	return fields, nil
}
