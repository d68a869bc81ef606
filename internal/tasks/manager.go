package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/uuid"
)

// Type classifies a background task for routing and accounting.
type Type string

const (
	TypeAutoSave          Type = "auto_save"
	TypeLLMRequest        Type = "llm_request"
	TypeContentGeneration Type = "content_generation"
	TypeIOOperation       Type = "io_operation"
	TypeBackground        Type = "background"
	TypeOther             Type = "other"
)

const (
	ioPoolSize        = 2
	defaultLLMSlots   = 3
	defaultStatsTypes = 6
)

// Func is the unit of work a task runs. It must honor ctx cancellation.
type Func func(ctx context.Context) error

// Task is the handle for one submitted unit of work.
type Task struct {
	ID          string
	Type        Type
	Description string
	CreatedAt   time.Time

	cancel context.CancelFunc
	done   chan struct{}
	err    error // written before done closes
}

// Done is closed when the task has finished, failed, or been cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task's outcome. Only valid after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Cancel requests cooperative cancellation.
func (t *Task) Cancel() { t.cancel() }

// Stats aggregates outcomes for one task type.
type Stats struct {
	Created      int64         `json:"created"`
	Running      int64         `json:"running"`
	Completed    int64         `json:"completed"`
	Failed       int64         `json:"failed"`
	Cancelled    int64         `json:"cancelled"`
	TotalRuntime time.Duration `json:"total_runtime_ns"`
}

// Manager runs typed background tasks over two bounded pools: llm
// (capacity = max concurrent LLM requests) and io (capacity 2). Other
// task types run unbounded. Task contexts descend from the manager,
// not from the submitter, so tasks outlive the request that spawned
// them until Shutdown.
type Manager struct {
	log *zap.Logger
	gen uuid.Generator

	rootCtx context.Context
	cancel  context.CancelFunc

	llmSlots *semaphore.Weighted
	ioSlots  *semaphore.Weighted

	wg sync.WaitGroup

	mu     sync.Mutex
	closed bool
	tasks  map[string]*Task
	stats  map[Type]*Stats
}

// ManagerConfig holds configuration for the task manager.
type ManagerConfig struct {
	// MaxConcurrentLLM bounds the llm pool; defaults to 3.
	MaxConcurrentLLM int64
	Logger           *zap.Logger
	IDGenerator      uuid.Generator
}

// NewManager creates a task manager.
func NewManager(cfg *ManagerConfig) *Manager {
	maxLLM := int64(defaultLLMSlots)
	var log *zap.Logger
	var gen uuid.Generator
	if cfg != nil {
		if cfg.MaxConcurrentLLM > 0 {
			maxLLM = cfg.MaxConcurrentLLM
		}
		log = cfg.Logger
		gen = cfg.IDGenerator
	}
	if log == nil {
		log = zap.NewNop()
	}
	if gen == nil {
		gen = uuid.NewGoogleUUIDGenerator()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		log:      log,
		gen:      gen,
		rootCtx:  ctx,
		cancel:   cancel,
		llmSlots: semaphore.NewWeighted(maxLLM),
		ioSlots:  semaphore.NewWeighted(ioPoolSize),
		tasks:    make(map[string]*Task),
		stats:    make(map[Type]*Stats, defaultStatsTypes),
	}
}

// Submit schedules fn on the pool matching taskType and returns its
// handle. The task's context is cancelled by Task.Cancel, CancelAll,
// or Shutdown.
func (m *Manager) Submit(taskType Type, description string, fn Func) (*Task, error) {
	if fn == nil {
		return nil, errors.InvalidArgument("task func is required")
	}

	ctx, cancel := context.WithCancel(m.rootCtx)
	task := &Task{
		ID:          m.gen.New(),
		Type:        taskType,
		Description: description,
		CreatedAt:   time.Now(),
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return nil, errors.Unavailable("task manager is shut down")
	}
	m.tasks[task.ID] = task
	m.statsFor(taskType).Created++
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(ctx, task, fn)
	return task, nil
}

// AcquireLLMSlot reserves one llm pool slot for work that runs outside
// Submit, such as a direct oracle call. The returned release must be
// called exactly once.
func (m *Manager) AcquireLLMSlot(ctx context.Context) (func(), error) {
	if err := m.llmSlots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	llmSlotsInUse.Inc()
	var once sync.Once
	return func() {
		once.Do(func() {
			llmSlotsInUse.Dec()
			m.llmSlots.Release(1)
		})
	}, nil
}

// CancelAll cancels running tasks. With no arguments every task is
// cancelled; with types only matching tasks are.
func (m *Manager) CancelAll(types ...Type) {
	match := func(Type) bool { return true }
	if len(types) > 0 {
		wanted := make(map[Type]bool, len(types))
		for _, t := range types {
			wanted[t] = true
		}
		match = func(t Type) bool { return wanted[t] }
	}

	m.mu.Lock()
	var cancels []context.CancelFunc
	for _, task := range m.tasks {
		if match(task.Type) {
			cancels = append(cancels, task.cancel)
		}
	}
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Stats returns a copy of the per-type counters.
func (m *Manager) Stats() map[Type]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Type]Stats, len(m.stats))
	for t, s := range m.stats {
		out[t] = *s
	}
	return out
}

// Shutdown cancels every task and waits for them to drain, bounded by
// ctx. Further submissions fail.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	drained := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "task manager drain")
	}
}

func (m *Manager) run(ctx context.Context, task *Task, fn Func) {
	defer m.wg.Done()

	err := m.runPooled(ctx, task, fn)

	task.err = err
	close(task.done)

	m.mu.Lock()
	delete(m.tasks, task.ID)
	stats := m.statsFor(task.Type)
	switch {
	case err == nil:
		stats.Completed++
	case errors.IsCancelled(err):
		stats.Cancelled++
	default:
		stats.Failed++
	}
	m.mu.Unlock()

	label := string(task.Type)
	switch {
	case err == nil:
		tasksCompleted.WithLabelValues(label).Inc()
	case errors.IsCancelled(err):
		tasksCancelled.WithLabelValues(label).Inc()
	default:
		tasksFailed.WithLabelValues(label).Inc()
		m.log.Warn("task failed",
			zap.String("task_id", task.ID),
			zap.String("type", label),
			zap.String("description", task.Description),
			zap.Error(err))
	}
}

// runPooled gates fn behind its type's pool, then times the execution.
func (m *Manager) runPooled(ctx context.Context, task *Task, fn Func) error {
	var slots *semaphore.Weighted
	var gauge interface{ Inc(); Dec() }
	switch task.Type {
	case TypeLLMRequest, TypeContentGeneration:
		slots, gauge = m.llmSlots, llmSlotsInUse
	case TypeIOOperation:
		slots, gauge = m.ioSlots, ioSlotsInUse
	}

	if slots != nil {
		if err := slots.Acquire(ctx, 1); err != nil {
			return err
		}
		gauge.Inc()
		defer func() {
			gauge.Dec()
			slots.Release(1)
		}()
	}

	label := string(task.Type)
	tasksStarted.WithLabelValues(label).Inc()
	m.mu.Lock()
	m.statsFor(task.Type).Running++
	m.mu.Unlock()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	taskSeconds.WithLabelValues(label).Observe(elapsed.Seconds())
	m.mu.Lock()
	stats := m.statsFor(task.Type)
	stats.Running--
	stats.TotalRuntime += elapsed
	m.mu.Unlock()
	return err
}

// statsFor must be called with m.mu held.
func (m *Manager) statsFor(t Type) *Stats {
	s, ok := m.stats[t]
	if !ok {
		s = &Stats{}
		m.stats[t] = s
	}
	return s
}
