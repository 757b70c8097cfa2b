package obs

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

const (
	metricReadyQueueDepth     = "pyanalyze.walker.ready_queue_depth"
	metricRunningTasks        = "pyanalyze.scheduler.running_tasks"
	metricMissingKeys         = "pyanalyze.scheduler.missing_keys"
	metricNodesCommittedTotal = "pyanalyze.session.nodes_committed_total"
	metricNodesSkippedTotal   = "pyanalyze.session.nodes_skipped_total"
	metricCacheRestoreHit     = "pyanalyze.cache.restore_hit_total"
	metricCacheRestoreMiss    = "pyanalyze.cache.restore_miss_total"
)

// SessionMetrics records the scheduler-specific instruments referenced by
// SPEC_FULL.md's ambient stack: ready-queue depth and running-task gauges
// alongside per-session commit/skip/cache counters. A nil *SessionMetrics
// is safe to call methods on (every method checks for it), so callers that
// don't wire a meter can leave the field zero.
type SessionMetrics struct {
	readyQueueDepth metric.Int64UpDownCounter
	runningTasks    metric.Int64UpDownCounter
	missingKeys     metric.Int64UpDownCounter
	committedTotal  metric.Int64Counter
	skippedTotal    metric.Int64Counter
	cacheHitTotal   metric.Int64Counter
	cacheMissTotal  metric.Int64Counter
}

// NewSessionMetrics creates the scheduler instruments from mt.
func NewSessionMetrics(mt metric.Meter) (*SessionMetrics, error) {
	readyQueueDepth, err := mt.Int64UpDownCounter(metricReadyQueueDepth,
		metric.WithDescription("Nodes currently ready to walk"), metric.WithUnit("{node}"))
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricReadyQueueDepth, err)
	}

	runningTasks, err := mt.Int64UpDownCounter(metricRunningTasks,
		metric.WithDescription("Worker goroutines currently processing a node"), metric.WithUnit("{task}"))
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricRunningTasks, err)
	}

	missingKeys, err := mt.Int64UpDownCounter(metricMissingKeys,
		metric.WithDescription("Dependency keys the walk planner could not resolve"), metric.WithUnit("{key}"))
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricMissingKeys, err)
	}

	committedTotal, err := mt.Int64Counter(metricNodesCommittedTotal,
		metric.WithDescription("Walk nodes committed"), metric.WithUnit("{node}"))
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricNodesCommittedTotal, err)
	}

	skippedTotal, err := mt.Int64Counter(metricNodesSkippedTotal,
		metric.WithDescription("Walk nodes skipped"), metric.WithUnit("{node}"))
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricNodesSkippedTotal, err)
	}

	cacheHitTotal, err := mt.Int64Counter(metricCacheRestoreHit,
		metric.WithDescription("Analyses restored from cache"), metric.WithUnit("{analysis}"))
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricCacheRestoreHit, err)
	}

	cacheMissTotal, err := mt.Int64Counter(metricCacheRestoreMiss,
		metric.WithDescription("Cache restores that fell through to fresh evaluation"), metric.WithUnit("{analysis}"))
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricCacheRestoreMiss, err)
	}

	return &SessionMetrics{
		readyQueueDepth: readyQueueDepth,
		runningTasks:    runningTasks,
		missingKeys:     missingKeys,
		committedTotal:  committedTotal,
		skippedTotal:    skippedTotal,
		cacheHitTotal:   cacheHitTotal,
		cacheMissTotal:  cacheMissTotal,
	}, nil
}

func (m *SessionMetrics) SetReadyQueueDepth(ctx context.Context, delta int64) {
	if m == nil {
		return
	}

	m.readyQueueDepth.Add(ctx, delta)
}

func (m *SessionMetrics) SetRunningTasks(ctx context.Context, delta int64) {
	if m == nil {
		return
	}

	m.runningTasks.Add(ctx, delta)
}

func (m *SessionMetrics) SetMissingKeys(ctx context.Context, count int64) {
	if m == nil {
		return
	}

	m.missingKeys.Add(ctx, count)
}

func (m *SessionMetrics) RecordCommitted(ctx context.Context) {
	if m == nil {
		return
	}

	m.committedTotal.Add(ctx, 1)
}

func (m *SessionMetrics) RecordSkipped(ctx context.Context) {
	if m == nil {
		return
	}

	m.skippedTotal.Add(ctx, 1)
}

func (m *SessionMetrics) RecordCacheRestore(ctx context.Context, hit bool) {
	if m == nil {
		return
	}

	if hit {
		m.cacheHitTotal.Add(ctx, 1)

		return
	}

	m.cacheMissTotal.Add(ctx, 1)
}
