package metrics

import "sync/atomic"

// Metrics captures shared operational stats for a batch run.
type Metrics struct {
	queueLength   int64
	queueCapacity int64
	workerCount   int64

	appsAnalyzed   int64
	appsFailed     int64
	reviewsFetched int64
	reviewsKept    int64
	fetchRetries   int64
}

// Snapshot provides a consistent view of the current metrics.
type Snapshot struct {
	QueueLength    int
	QueueCapacity  int
	WorkerCount    int
	AppsAnalyzed   int64
	AppsFailed     int64
	ReviewsFetched int64
	ReviewsKept    int64
	FetchRetries   int64
}

// New creates a zeroed Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

// UpdateQueue records the current queue stats.
func (m *Metrics) UpdateQueue(length, capacity, workers int) {
	atomic.StoreInt64(&m.queueLength, int64(length))
	atomic.StoreInt64(&m.queueCapacity, int64(capacity))
	atomic.StoreInt64(&m.workerCount, int64(workers))
}

// RecordApp increments analyzed/failed counters based on outcome.
func (m *Metrics) RecordApp(err error) {
	if err != nil {
		atomic.AddInt64(&m.appsFailed, 1)
		return
	}
	atomic.AddInt64(&m.appsAnalyzed, 1)
}

// RecordFetch notes how many reviews a fetch returned and how many
// survived the thrifty filter.
func (m *Metrics) RecordFetch(fetched, kept int) {
	atomic.AddInt64(&m.reviewsFetched, int64(fetched))
	atomic.AddInt64(&m.reviewsKept, int64(kept))
}

// RecordFetchRetry counts one retried actor call.
func (m *Metrics) RecordFetchRetry() {
	atomic.AddInt64(&m.fetchRetries, 1)
}

// Snapshot returns a read-only view of metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		QueueLength:    int(atomic.LoadInt64(&m.queueLength)),
		QueueCapacity:  int(atomic.LoadInt64(&m.queueCapacity)),
		WorkerCount:    int(atomic.LoadInt64(&m.workerCount)),
		AppsAnalyzed:   atomic.LoadInt64(&m.appsAnalyzed),
		AppsFailed:     atomic.LoadInt64(&m.appsFailed),
		ReviewsFetched: atomic.LoadInt64(&m.reviewsFetched),
		ReviewsKept:    atomic.LoadInt64(&m.reviewsKept),
		FetchRetries:   atomic.LoadInt64(&m.fetchRetries),
	}
}
