package mapgen

import "github.com/labyrinthia/engine/internal/entities"

// Monitored rate names.
const (
	AlertKeyObjectiveUnreachable = "key_objective_unreachable_rate"
	AlertStairsViolation         = "stairs_violation_rate"
	AlertProgressAnomaly         = "progress_anomaly_rate"
	AlertFinalObjectiveBlock     = "final_objective_guard_block_rate"
)

// Alert severities. P1 blocks the contract chain when blocking is enabled.
const (
	SeverityP1 = "P1"
	SeverityP2 = "P2"
)

// alertMinSamples suppresses rate alerts until enough events exist to
// make the rate meaningful.
const alertMinSamples = 5

// AlertThreshold holds the warn and block rates for one metric.
type AlertThreshold struct {
	Warn  float64
	Block float64
}

// AlertConfig wires up the monitored thresholds.
type AlertConfig struct {
	BlockingEnabled bool

	KeyObjectiveUnreachable AlertThreshold
	StairsViolation         AlertThreshold
	ProgressAnomaly         AlertThreshold
	FinalObjectiveBlock     AlertThreshold
}

// Alert is one threshold crossing.
type Alert struct {
	Metric    string  `json:"metric"`
	Severity  string  `json:"severity"` // P1 | P2
	Rate      float64 `json:"rate"`
	Threshold float64 `json:"threshold"`
}

// AlertMonitor evaluates generation health rates against thresholds.
type AlertMonitor struct {
	cfg AlertConfig
}

// NewAlertMonitor creates a monitor; a nil config disables all alerts.
func NewAlertMonitor(cfg *AlertConfig) *AlertMonitor {
	m := &AlertMonitor{}
	if cfg != nil {
		m.cfg = *cfg
	}
	return m
}

// Evaluate returns every active alert for the state's metrics.
func (m *AlertMonitor) Evaluate(metrics *entities.GenerationMetrics) []*Alert {
	if metrics == nil {
		return nil
	}
	var alerts []*Alert

	if mg := metrics.MapGeneration; mg != nil && mg.Total >= alertMinSamples {
		total := float64(mg.Total)
		alerts = appendAlert(alerts, AlertKeyObjectiveUnreachable,
			float64(mg.UnreachableReports)/total, m.cfg.KeyObjectiveUnreachable)
		alerts = appendAlert(alerts, AlertStairsViolation,
			float64(mg.StairsViolations)/total, m.cfg.StairsViolation)
	}

	if pm := metrics.ProgressMetrics; pm != nil && pm.EventsProcessed >= alertMinSamples {
		events := float64(pm.EventsProcessed)
		blocked := 0
		for _, n := range pm.BlockedByGuard {
			blocked += n
		}
		alerts = appendAlert(alerts, AlertProgressAnomaly,
			float64(blocked)/events, m.cfg.ProgressAnomaly)

		finalBlocks := 0
		for _, n := range pm.FinalObjectiveGuardBlockedReasons {
			finalBlocks += n
		}
		alerts = appendAlert(alerts, AlertFinalObjectiveBlock,
			float64(finalBlocks)/events, m.cfg.FinalObjectiveBlock)
	}
	return alerts
}

// BlockingAlert returns the first P1 alert when blocking is enabled,
// nil otherwise.
func (m *AlertMonitor) BlockingAlert(metrics *entities.GenerationMetrics) *Alert {
	if !m.cfg.BlockingEnabled {
		return nil
	}
	for _, a := range m.Evaluate(metrics) {
		if a.Severity == SeverityP1 {
			return a
		}
	}
	return nil
}

func appendAlert(alerts []*Alert, metric string, rate float64, t AlertThreshold) []*Alert {
	switch {
	case t.Block > 0 && rate >= t.Block:
		return append(alerts, &Alert{Metric: metric, Severity: SeverityP1, Rate: rate, Threshold: t.Block})
	case t.Warn > 0 && rate >= t.Warn:
		return append(alerts, &Alert{Metric: metric, Severity: SeverityP2, Rate: rate, Threshold: t.Warn})
	}
	return alerts
}
