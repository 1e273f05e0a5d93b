// Пакет model — доменные модели mkt-uploader.
// DatasetDescriptor и SchemaField описывают целевые таблицы BigQuery
// и маппинг колонок CSV → колонки таблицы.
package model

// DatasetID — идентификатор набора данных (закрытое перечисление).
type DatasetID string

const (
	// DatasetGangnamunni — выгрузка 강남언니.
	DatasetGangnamunni DatasetID = "gangnamunni"
	// DatasetBabitalk — выгрузка 바비톡.
	DatasetBabitalk DatasetID = "babitalk"
	// DatasetGoddessicket — выгрузка 여신티켓.
	DatasetGoddessicket DatasetID = "goddessicket"
)

// KnownDatasetIDs — все допустимые идентификаторы в порядке отображения.
var KnownDatasetIDs = []DatasetID{
	DatasetGangnamunni,
	DatasetBabitalk,
	DatasetGoddessicket,
}

// IsKnown проверяет, входит ли идентификатор в перечисление.
func (id DatasetID) IsKnown() bool {
	for _, known := range KnownDatasetIDs {
		if id == known {
			return true
		}
	}
	return false
}

// DatasetDescriptor — описание набора данных.
// Неизменяем после загрузки конфигурации при старте процесса.
type DatasetDescriptor struct {
	// ID — идентификатор набора данных
	ID DatasetID `yaml:"id" json:"id"`
	// Label — отображаемое название в UI
	Label string `yaml:"label" json:"label"`
	// TableLabel — короткое название целевой таблицы
	TableLabel string `yaml:"table_label" json:"tableLabel"`
	// SchemaFile — имя CSV-файла схемы в каталоге схем
	SchemaFile string `yaml:"schema_file" json:"-"`
	// TableID — полный идентификатор таблицы: [project.]dataset.table
	TableID string `yaml:"bigquery_table_id" json:"bigQueryTableId"`
}

// SchemaField — маппинг одной колонки.
// Порядок полей в схеме определяет порядок колонок на выходе.
type SchemaField struct {
	// SourceName — заголовок колонки во входном CSV (точное совпадение)
	SourceName string `json:"sourceName"`
	// DataType — тип колонки BigQuery, передаётся в load job без интерпретации
	DataType string `json:"dataType"`
	// TargetName — имя колонки в таблице (уникально в пределах схемы)
	TargetName string `json:"targetName"`
}

// DatasetWithSchema — описание набора данных вместе с его схемой.
type DatasetWithSchema struct {
	DatasetDescriptor
	Schema []SchemaField `json:"schema"`
}

// SourceColumns возвращает обязательные колонки входного CSV в порядке схемы.
func (d *DatasetWithSchema) SourceColumns() []string {
	cols := make([]string, len(d.Schema))
	for i, f := range d.Schema {
		cols[i] = f.SourceName
	}
	return cols
}
