// ReputationCache — LRU-кэш агрегатов репутации файлов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_cache_hits_total",
		Help: "Общее количество попаданий в кэш репутации.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_cache_misses_total",
		Help: "Общее количество промахов кэша репутации.",
	})
)

// ReputationCache — кэш снимков Reputation по fileID.
// Каждый экземпляр сервиса имеет собственный кэш; запись инвалидируется
// после каждого коммита, изменившего голоса или оценки файла.
type ReputationCache struct {
	cache *expirable.LRU[string, Reputation]
}

// NewReputationCache создаёт кэш с указанным максимальным размером и TTL.
func NewReputationCache(maxSize int, ttl time.Duration) *ReputationCache {
	return &ReputationCache{
		cache: expirable.NewLRU[string, Reputation](maxSize, nil, ttl),
	}
}

// Get возвращает копию снимка из кэша.
func (c *ReputationCache) Get(fileID string) (*Reputation, bool) {
	val, ok := c.cache.Get(fileID)
	if !ok {
		cacheMissesTotal.Inc()
		return nil, false
	}
	cacheHitsTotal.Inc()
	rep := val.clone()
	return &rep, true
}

// Set сохраняет снимок в кэше.
func (c *ReputationCache) Set(rep *Reputation) {
	c.cache.Add(rep.FileID, rep.clone())
}

// Invalidate удаляет запись файла из кэша.
func (c *ReputationCache) Invalidate(fileID string) {
	c.cache.Remove(fileID)
}

// Len возвращает количество записей в кэше.
func (c *ReputationCache) Len() int {
	return c.cache.Len()
}
