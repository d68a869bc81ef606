package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labyrinthia_engine_actions_total",
		Help: "Player actions processed",
	})

	actionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "labyrinthia_engine_action_seconds",
		Help:    "Player action latency",
		Buckets: prometheus.DefBuckets,
	})

	idempotentReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labyrinthia_engine_idempotent_replays_total",
		Help: "Actions answered from the replay cache",
	})

	authorityDegrades = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labyrinthia_engine_authority_degrades_total",
		Help: "Automatic combat authority downgrades",
	})

	liveGames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labyrinthia_engine_live_games",
		Help: "Games currently held in the registry",
	})
)

const latencyRingSize = 256

// latencyRing keeps recent action latencies behind the envelope's
// performance block.
type latencyRing struct {
	mu      sync.Mutex
	samples [latencyRingSize]time.Duration
	next    int
	filled  bool
}

func (r *latencyRing) observe(d time.Duration) {
	r.mu.Lock()
	r.samples[r.next] = d
	r.next++
	if r.next == latencyRingSize {
		r.next = 0
		r.filled = true
	}
	r.mu.Unlock()
	actionSeconds.Observe(d.Seconds())
}

// percentiles reports p50 and p95 over the retained window.
func (r *latencyRing) percentiles() (p50, p95 time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.filled {
		n = latencyRingSize
	}
	if n == 0 {
		return 0, 0
	}
	sorted := make([]time.Duration, n)
	copy(sorted, r.samples[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	p50 = sorted[n/2]
	idx := n * 95 / 100
	if idx >= n {
		idx = n - 1
	}
	return p50, sorted[idx]
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
