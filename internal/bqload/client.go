package bqload

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/model"
)

// Client — операции BigQuery, нужные загрузчику.
type Client interface {
	// LoadCSV дописывает CSV из r в таблицу и ждёт завершения job. Возвращает ID job.
	LoadCSV(ctx context.Context, table TableID, schema bigquery.Schema, r io.Reader) (string, error)
	Close() error
}

// ClientFactory создаёт клиент под разрешённые учётные данные.
type ClientFactory func(ctx context.Context, creds *Credentials) (Client, error)

// bigQueryClient — реализация Client поверх cloud.google.com/go/bigquery.
type bigQueryClient struct {
	db *bigquery.Client
}

// NewBigQueryClient — ClientFactory для реального BigQuery.
func NewBigQueryClient(ctx context.Context, creds *Credentials) (Client, error) {
	var opts []option.ClientOption
	if len(creds.JSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(creds.JSON))
	}

	db, err := bigquery.NewClient(ctx, creds.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("создание клиента BigQuery для проекта %s: %w", creds.ProjectID, err)
	}
	return &bigQueryClient{db: db}, nil
}

// LoadCSV запускает load job: CSV, первая строка пропускается, автоопределение схемы выключено,
// режим записи WRITE_APPEND.
func (c *bigQueryClient) LoadCSV(ctx context.Context, table TableID, schema bigquery.Schema, r io.Reader) (string, error) {
	src := bigquery.NewReaderSource(r)
	src.SourceFormat = bigquery.CSV
	src.SkipLeadingRows = 1
	src.AutoDetect = false
	src.Schema = schema

	loader := c.db.DatasetInProject(table.Project, table.Dataset).Table(table.Table).LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteAppend

	job, err := loader.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("запуск load job: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return job.ID(), fmt.Errorf("ожидание load job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return job.ID(), fmt.Errorf("статус load job %s: %w", job.ID(), err)
	}

	return job.ID(), nil
}

func (c *bigQueryClient) Close() error {
	return c.db.Close()
}

// BuildSchema строит схему BigQuery из полей набора данных.
// Тип передаётся как есть, все поля NULLABLE.
func BuildSchema(fields []model.SchemaField) bigquery.Schema {
	schema := make(bigquery.Schema, 0, len(fields))
	for _, f := range fields {
		schema = append(schema, &bigquery.FieldSchema{
			Name: f.TargetName,
			Type: bigquery.FieldType(f.DataType),
		})
	}
	return schema
}
