package cache

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"
)

// Operation labels for portfolio_cache_operations_total.
const (
	OpHit    = "hit"
	OpMiss   = "miss"
	OpSet    = "set"
	OpDelete = "delete"
	OpError  = "error"
)

// Metrics records cache hits, misses, sets, deletes and errors.
//
// Counters are kept in-process so they can be reported as a hit ratio and
// reset by an operator. When created with a Prometheus registerer the same
// events are also exported as portfolio_cache_operations_total{operation}.
type Metrics struct {
	hits    atomic.Uint64
	misses  atomic.Uint64
	sets    atomic.Uint64
	deletes atomic.Uint64
	errors  atomic.Uint64

	operations *prometheus.CounterVec
}

// MetricsSnapshot is a point-in-time view of the counters.
type MetricsSnapshot struct {
	Hits            uint64  `json:"hits"`
	Misses          uint64  `json:"misses"`
	Sets            uint64  `json:"sets"`
	Deletes         uint64  `json:"deletes"`
	Errors          uint64  `json:"errors"`
	TotalRequests   uint64  `json:"total_requests"`
	HitRatio        float64 `json:"hit_ratio"`
	HitRatioPercent float64 `json:"hit_ratio_percent"`
}

// NewMetrics creates a metrics recorder. reg may be nil, in which case nothing
// is exported to Prometheus.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}
	if reg != nil {
		m.operations = promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_cache_operations_total",
				Help: "Total number of cache operations by outcome",
			},
			[]string{"operation"}, // hit, miss, set, delete, error
		)
	}
	return m
}

func (m *Metrics) RecordHit()    { m.hits.Inc(); m.export(OpHit, 1) }
func (m *Metrics) RecordMiss()   { m.misses.Inc(); m.export(OpMiss, 1) }
func (m *Metrics) RecordSet()    { m.sets.Inc(); m.export(OpSet, 1) }
func (m *Metrics) RecordDelete() { m.deletes.Inc(); m.export(OpDelete, 1) }
func (m *Metrics) RecordError()  { m.errors.Inc(); m.export(OpError, 1) }

// RecordDeletes adds n deletes at once, as done by pattern invalidation.
func (m *Metrics) RecordDeletes(n int) {
	if n <= 0 {
		return
	}
	m.deletes.Add(uint64(n))
	m.export(OpDelete, float64(n))
}

// Snapshot returns the counters with the derived hit ratio.
// The counters are read one by one, so the snapshot may be slightly skewed
// under concurrent updates.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Sets:    m.sets.Load(),
		Deletes: m.deletes.Load(),
		Errors:  m.errors.Load(),
	}
	s.TotalRequests = s.Hits + s.Misses

	var ratio float64
	if s.TotalRequests > 0 {
		ratio = float64(s.Hits) / float64(s.TotalRequests)
	}
	s.HitRatio = round(ratio, 4)
	s.HitRatioPercent = round(ratio*100, 2)
	return s
}

// Reset zeroes the in-process counters. Exported Prometheus counters are
// monotonic and are left untouched.
func (m *Metrics) Reset() {
	m.hits.Store(0)
	m.misses.Store(0)
	m.sets.Store(0)
	m.deletes.Store(0)
	m.errors.Store(0)
}

func (m *Metrics) export(op string, n float64) {
	if m.operations != nil {
		m.operations.WithLabelValues(op).Add(n)
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
