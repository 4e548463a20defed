package service

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time view of the service counters.
type Snapshot struct {
	Operations            uint64        `json:"operations"`
	CacheHits             uint64        `json:"cacheHits"`
	CacheMisses           uint64        `json:"cacheMisses"`
	Errors                uint64        `json:"errors"`
	CacheHitRate          float64       `json:"cacheHitRate"`
	ErrorRate             float64       `json:"errorRate"`
	AverageProcessingTime time.Duration `json:"averageProcessingTime"`
}

// Collector tallies service-level hit/miss/error counters. It is owned by the
// service instance rather than being process-global, so tests can instantiate
// isolated collectors.
type Collector struct {
	mu             sync.Mutex
	operations     uint64
	cacheHits      uint64
	cacheMisses    uint64
	errors         uint64
	processingTime time.Duration
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordOperation tallies one completed operation and its duration.
func (c *Collector) RecordOperation(elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.operations++
	c.processingTime += elapsed
}

// RecordCacheHit tallies a cache hit.
func (c *Collector) RecordCacheHit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cacheHits++
}

// RecordCacheMiss tallies a cache miss.
func (c *Collector) RecordCacheMiss() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cacheMisses++
}

// RecordError tallies a failed operation.
func (c *Collector) RecordError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errors++
}

// Snapshot returns current counter values with derived rates.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := Snapshot{
		Operations:  c.operations,
		CacheHits:   c.cacheHits,
		CacheMisses: c.cacheMisses,
		Errors:      c.errors,
	}

	if lookups := c.cacheHits + c.cacheMisses; lookups > 0 {
		snapshot.CacheHitRate = float64(c.cacheHits) / float64(lookups)
	}

	if c.operations > 0 {
		snapshot.ErrorRate = float64(c.errors) / float64(c.operations)
		snapshot.AverageProcessingTime = c.processingTime / time.Duration(c.operations)
	}

	return snapshot
}

// Reset clears all counters.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.operations = 0
	c.cacheHits = 0
	c.cacheMisses = 0
	c.errors = 0
	c.processingTime = 0
}
