package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labyrinthia_tasks_started_total",
		Help: "Tasks that began executing",
	}, []string{"type"})

	tasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labyrinthia_tasks_completed_total",
		Help: "Tasks that finished without error",
	}, []string{"type"})

	tasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labyrinthia_tasks_failed_total",
		Help: "Tasks that returned an error",
	}, []string{"type"})

	tasksCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labyrinthia_tasks_cancelled_total",
		Help: "Tasks that ended by cancellation",
	}, []string{"type"})

	taskSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "labyrinthia_task_duration_seconds",
		Help:    "Task execution time",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	llmSlotsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labyrinthia_llm_slots_in_use",
		Help: "LLM pool slots currently held",
	})

	ioSlotsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "labyrinthia_io_slots_in_use",
		Help: "I/O pool slots currently held",
	})
)
