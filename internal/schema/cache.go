package schema

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/model"
)

// Prometheus-метрики кэша схем.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mu_schema_cache_hits_total",
		Help: "Общее количество попаданий в кэш схем.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mu_schema_cache_misses_total",
		Help: "Общее количество промахов кэша схем.",
	})
)

// Cache — LRU-кэш разобранных схем с TTL.
// После истечения TTL схема перечитывается с диска, поэтому правка CSV-файла
// подхватывается без перезапуска.
type Cache struct {
	lru *expirable.LRU[model.DatasetID, []model.SchemaField]
}

// NewCache создаёт кэш на maxSize схем с временем жизни ttl.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[model.DatasetID, []model.SchemaField](maxSize, nil, ttl)}
}

// Get возвращает схему набора данных. Обновляет метрики hit/miss.
func (c *Cache) Get(id model.DatasetID) ([]model.SchemaField, bool) {
	fields, ok := c.lru.Get(id)
	if ok {
		cacheHitsTotal.Inc()
		return fields, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set сохраняет схему.
func (c *Cache) Set(id model.DatasetID, fields []model.SchemaField) {
	c.lru.Add(id, fields)
}

// Purge очищает кэш.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Len возвращает количество записей.
func (c *Cache) Len() int {
	return c.lru.Len()
}
