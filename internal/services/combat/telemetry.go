package combat

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labyrinthia_combat_evaluations_total",
		Help: "Total attack evaluations",
	})

	killsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labyrinthia_combat_kills_total",
		Help: "Total applied evaluations ending in a death",
	})

	evaluationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labyrinthia_combat_errors_total",
		Help: "Total attack evaluations that errored",
	})

	evaluationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "labyrinthia_combat_evaluation_seconds",
		Help:    "Attack evaluation latency",
		Buckets: prometheus.DefBuckets,
	})
)

const latencyRingSize = 256

// degrade thresholds for the release gate: enough volume and a high
// error rate flips the evaluator to degraded.
const (
	degradeMinAttempts = 20
	degradeErrorRate   = 0.10
)

// TelemetrySnapshot is a point-in-time view of evaluator health.
type TelemetrySnapshot struct {
	Attempts    uint64        `json:"attempts"`
	Completions uint64        `json:"completions"`
	Errors      uint64        `json:"errors"`
	ErrorRate   float64       `json:"error_rate"`
	P50         time.Duration `json:"p50_ns"`
	P95         time.Duration `json:"p95_ns"`
	Degraded    bool          `json:"degraded"`
}

type telemetry struct {
	mu          sync.Mutex
	attempts    uint64
	completions uint64
	errors      uint64

	samples [latencyRingSize]time.Duration
	next    int
	filled  bool
}

func newTelemetry() *telemetry {
	return &telemetry{}
}

func (t *telemetry) recordAttempt() {
	t.mu.Lock()
	t.attempts++
	t.mu.Unlock()
	evaluationsTotal.Inc()
}

func (t *telemetry) recordCompletion() {
	t.mu.Lock()
	t.completions++
	t.mu.Unlock()
	killsTotal.Inc()
}

func (t *telemetry) recordError() {
	t.mu.Lock()
	t.errors++
	t.mu.Unlock()
	evaluationErrors.Inc()
}

func (t *telemetry) observeLatency(d time.Duration) {
	t.mu.Lock()
	t.samples[t.next] = d
	t.next++
	if t.next == latencyRingSize {
		t.next = 0
		t.filled = true
	}
	t.mu.Unlock()
	evaluationSeconds.Observe(d.Seconds())
}

func (t *telemetry) snapshot() *TelemetrySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := &TelemetrySnapshot{
		Attempts:    t.attempts,
		Completions: t.completions,
		Errors:      t.errors,
	}
	if t.attempts > 0 {
		snap.ErrorRate = float64(t.errors) / float64(t.attempts)
	}
	snap.Degraded = t.attempts >= degradeMinAttempts && snap.ErrorRate > degradeErrorRate

	n := t.next
	if t.filled {
		n = latencyRingSize
	}
	if n > 0 {
		sorted := make([]time.Duration, n)
		copy(sorted, t.samples[:n])
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		snap.P50 = sorted[n*50/100]
		p95 := n * 95 / 100
		if p95 >= n {
			p95 = n - 1
		}
		snap.P95 = sorted[p95]
	}
	return snap
}
