package ledgercache

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordLoad is called after each full snapshot load.
	// rows is the row count installed, skipped the malformed rows dropped,
	// duration the total time taken; err is nil if successful.
	RecordLoad(rows, skipped int, duration time.Duration, err error)

	// RecordLookup is called after each key lookup.
	RecordLookup(hit bool, duration time.Duration)

	// RecordAggregate is called after each per-entity listing or balance
	// aggregation.
	RecordAggregate(results int, duration time.Duration)

	// RecordAppend is called after each write-through append.
	RecordAppend(duration time.Duration, err error)

	// RecordInvalidate is called on every invalidation. entity is empty for
	// whole-cache drops.
	RecordInvalidate(entity string)

	// RecordCompact is called after each arena compaction with the number
	// of tombstones reclaimed.
	RecordCompact(reclaimed int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordLookup(bool, time.Duration)          {}
func (NoopMetricsCollector) RecordAggregate(int, time.Duration)        {}
func (NoopMetricsCollector) RecordAppend(time.Duration, error)         {}
func (NoopMetricsCollector) RecordInvalidate(string)                   {}
func (NoopMetricsCollector) RecordCompact(int, time.Duration)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LoadCount       atomic.Int64
	LoadErrors      atomic.Int64
	LoadTotalNanos  atomic.Int64
	RowsSkipped     atomic.Int64
	LookupCount     atomic.Int64
	LookupHits      atomic.Int64
	AggregateCount  atomic.Int64
	AppendCount     atomic.Int64
	AppendErrors    atomic.Int64
	InvalidateCount atomic.Int64
	CompactCount    atomic.Int64
	SlotsReclaimed  atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(rows, skipped int, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	b.RowsSkipped.Add(int64(skipped))
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLookup(hit bool, _ time.Duration) {
	b.LookupCount.Add(1)
	if hit {
		b.LookupHits.Add(1)
	}
}

// RecordAggregate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAggregate(int, time.Duration) {
	b.AggregateCount.Add(1)
}

// RecordAppend implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAppend(_ time.Duration, err error) {
	b.AppendCount.Add(1)
	if err != nil {
		b.AppendErrors.Add(1)
	}
}

// RecordInvalidate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInvalidate(string) {
	b.InvalidateCount.Add(1)
}

// RecordCompact implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompact(reclaimed int, _ time.Duration) {
	b.CompactCount.Add(1)
	b.SlotsReclaimed.Add(int64(reclaimed))
}
