package executor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Class identifies an operation class with its own in-flight cap.
type Class int

const (
	// ClassPlatform bounds concurrent platform stat fetches.
	ClassPlatform Class = iota
	// ClassDatabase bounds concurrent persistent store writes.
	ClassDatabase
	// ClassGeneral bounds miscellaneous internal work.
	ClassGeneral
	// ClassExternal bounds other outbound calls, such as existence probes.
	ClassExternal
)

// String returns the wire name of the class.
func (c Class) String() string {
	switch c {
	case ClassPlatform:
		return "platform"
	case ClassDatabase:
		return "database"
	case ClassExternal:
		return "external"
	default:
		return "general"
	}
}

// Limits holds the maximum-in-flight count per operation class.
type Limits struct {
	Platform int64
	Database int64
	General  int64
	External int64
}

// DefaultLimits returns the default per-class caps.
func DefaultLimits() Limits {
	return Limits{Platform: 5, Database: 10, General: 8, External: 3}
}

func (l Limits) forClass(c Class) int64 {
	switch c {
	case ClassPlatform:
		return l.Platform
	case ClassDatabase:
		return l.Database
	case ClassExternal:
		return l.External
	default:
		return l.General
	}
}

// withDefaults replaces unset caps with the defaults.
func (l Limits) withDefaults() Limits {
	defaults := DefaultLimits()
	if l.Platform <= 0 {
		l.Platform = defaults.Platform
	}
	if l.Database <= 0 {
		l.Database = defaults.Database
	}
	if l.General <= 0 {
		l.General = defaults.General
	}
	if l.External <= 0 {
		l.External = defaults.External
	}

	return l
}

// Stats are running counters of executed operations, exposed for observability.
type Stats struct {
	Total          uint64
	Successful     uint64
	Failed         uint64
	ProcessingTime time.Duration
}

// Executor bounds the number of simultaneously in-flight operations per class.
// Counters are process-local; each server process enforces its own caps
// independently, with no cross-process coordination.
type Executor struct {
	mu     sync.RWMutex
	sems   map[Class]*semaphore.Weighted
	limits Limits

	statsMu sync.Mutex
	stats   Stats

	logger *zap.Logger
}

// New creates an executor with the given per-class caps. Unset caps fall back
// to the defaults.
func New(limits Limits, logger *zap.Logger) *Executor {
	limits = limits.withDefaults()

	sems := make(map[Class]*semaphore.Weighted, 4)
	for _, class := range []Class{ClassPlatform, ClassDatabase, ClassGeneral, ClassExternal} {
		sems[class] = semaphore.NewWeighted(limits.forClass(class))
	}

	return &Executor{
		sems:   sems,
		limits: limits,
		logger: logger.Named("executor"),
	}
}

// Limits returns the current per-class caps.
func (e *Executor) Limits() Limits {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.limits
}

// UpdateLimits swaps in new per-class caps without restarting the process.
// The affected class's semaphore is rebuilt with the new cap; work already in
// flight keeps its slot on the old semaphore and is unaffected.
func (e *Executor) UpdateLimits(limits Limits) {
	limits = limits.withDefaults()

	e.mu.Lock()
	defer e.mu.Unlock()

	for class := range e.sems {
		if limits.forClass(class) != e.limits.forClass(class) {
			// The old semaphore drains as its holders release.
			e.sems[class] = semaphore.NewWeighted(limits.forClass(class))
		}
	}

	e.logger.Info("Updated concurrency limits",
		zap.Int64("platform", limits.Platform),
		zap.Int64("database", limits.Database),
		zap.Int64("general", limits.General),
		zap.Int64("external", limits.External))

	e.limits = limits
}

// Run executes fn under the class's in-flight cap, queueing FIFO until a slot
// frees. The slot is held for the full duration of fn, including any retries
// fn performs internally.
func (e *Executor) Run(ctx context.Context, class Class, fn func(context.Context) error) error {
	e.mu.RLock()
	sem := e.sems[class]
	e.mu.RUnlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer sem.Release(1)

	start := time.Now()
	err := fn(ctx)
	e.record(err == nil, time.Since(start))

	return err
}

func (e *Executor) record(success bool, elapsed time.Duration) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.stats.Total++
	if success {
		e.stats.Successful++
	} else {
		e.stats.Failed++
	}
	e.stats.ProcessingTime += elapsed
}

// Stats returns a snapshot of the running operation counters.
func (e *Executor) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	return e.stats
}

// ResetStats clears the running operation counters.
func (e *Executor) ResetStats() {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.stats = Stats{}
}
