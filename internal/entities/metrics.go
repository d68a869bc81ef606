package entities

import "time"

// PatchBatchHistoryLimit bounds the per-state patch batch records.
const PatchBatchHistoryLimit = 200

// MapGenerationMetrics counts map generation outcomes per state.
type MapGenerationMetrics struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`

	FallbackUsed int `json:"fallback_used"`
	RollbackUsed int `json:"rollback_used"`

	Repairs            int `json:"repairs"`
	UnreachableReports int `json:"unreachable_reports"`
	StairsViolations   int `json:"stairs_violations"`

	ByStage     map[string]int `json:"by_stage,omitempty"`
	ByProvider  map[string]int `json:"by_provider,omitempty"`
	ByErrorCode map[string]int `json:"by_error_code,omitempty"`
}

// BumpStage increments the per-stage counter.
func (m *MapGenerationMetrics) BumpStage(stage string) {
	if m.ByStage == nil {
		m.ByStage = make(map[string]int)
	}
	m.ByStage[stage]++
}

// BumpProvider increments the per-provider counter.
func (m *MapGenerationMetrics) BumpProvider(provider string) {
	if m.ByProvider == nil {
		m.ByProvider = make(map[string]int)
	}
	m.ByProvider[provider]++
}

// BumpErrorCode increments the per-error-code counter.
func (m *MapGenerationMetrics) BumpErrorCode(code string) {
	if m.ByErrorCode == nil {
		m.ByErrorCode = make(map[string]int)
	}
	m.ByErrorCode[code]++
}

// ProgressMetrics records guard decisions and progress accounting.
type ProgressMetrics struct {
	EventsProcessed   int     `json:"events_processed"`
	IncrementsApplied float64 `json:"increments_applied"`

	BlockedByGuard                    map[string]int     `json:"blocked_by_guard,omitempty"`
	FinalObjectiveGuardBlockedReasons map[string]int     `json:"final_objective_guard_blocked_reasons,omitempty"`
	CompensatorAwards                 map[string]float64 `json:"compensator_awards,omitempty"`
}

// RecordGuardBlock counts a guard rejection by reason.
func (m *ProgressMetrics) RecordGuardBlock(reason string) {
	if m.BlockedByGuard == nil {
		m.BlockedByGuard = make(map[string]int)
	}
	m.BlockedByGuard[reason]++
}

// RecordFinalObjectiveBlock counts a blocked final-objective burst.
func (m *ProgressMetrics) RecordFinalObjectiveBlock(reason string) {
	if m.FinalObjectiveGuardBlockedReasons == nil {
		m.FinalObjectiveGuardBlockedReasons = make(map[string]int)
	}
	m.FinalObjectiveGuardBlockedReasons[reason]++
}

// RecordCompensatorAward accumulates compensator top-ups by kind.
func (m *ProgressMetrics) RecordCompensatorAward(kind string, amount float64) {
	if m.CompensatorAwards == nil {
		m.CompensatorAwards = make(map[string]float64)
	}
	m.CompensatorAwards[kind] += amount
}

// SpawnMetrics records guardrail decisions made while placing monsters.
type SpawnMetrics struct {
	Spawned       int `json:"spawned"`
	QuestBindings int `json:"quest_bindings"`

	Downgrades          map[string]int `json:"downgrades,omitempty"`
	StrippedStatusPacks int            `json:"stripped_status_packs,omitempty"`
	RejectedSpawns      map[string]int `json:"rejected_spawns,omitempty"`
}

// RecordDowngrade counts a stat clamp by reason.
func (m *SpawnMetrics) RecordDowngrade(reason string) {
	if m.Downgrades == nil {
		m.Downgrades = make(map[string]int)
	}
	m.Downgrades[reason]++
}

// RecordRejectedSpawn counts a refused monster addition by reason.
func (m *SpawnMetrics) RecordRejectedSpawn(reason string) {
	if m.RejectedSpawns == nil {
		m.RejectedSpawns = make(map[string]int)
	}
	m.RejectedSpawns[reason]++
}

// PatchBatchRecord summarizes one applied (or rolled back) patch batch.
type PatchBatchRecord struct {
	BatchID         string    `json:"batch_id"`
	Source          string    `json:"source,omitempty"`
	PatchCount      int       `json:"patch_count"`
	AppliedCount    int       `json:"applied_count"`
	Success         bool      `json:"success"`
	RollbackApplied bool      `json:"rollback_applied,omitempty"`
	Diagnostics     []string  `json:"diagnostics,omitempty"`
	AppliedAt       time.Time `json:"applied_at"`
	DurationMs      float64   `json:"duration_ms,omitempty"`
}

// GenerationMetrics aggregates in-state generation bookkeeping.
type GenerationMetrics struct {
	MapGeneration   *MapGenerationMetrics `json:"map_generation,omitempty"`
	ProgressMetrics *ProgressMetrics      `json:"progress_metrics,omitempty"`
	SpawnMetrics    *SpawnMetrics         `json:"spawn_metrics,omitempty"`

	// PatchBatches is a bounded queue; oldest entries fall off past
	// PatchBatchHistoryLimit.
	PatchBatches     []*PatchBatchRecord `json:"patch_batches,omitempty"`
	LastPatchBatchID string              `json:"last_patch_batch_id,omitempty"`
}

// NewGenerationMetrics builds an initialized metrics container.
func NewGenerationMetrics() *GenerationMetrics {
	return &GenerationMetrics{
		MapGeneration:   &MapGenerationMetrics{},
		ProgressMetrics: &ProgressMetrics{},
	}
}

// EnsureMapGeneration lazily initializes the map generation counters.
func (g *GenerationMetrics) EnsureMapGeneration() *MapGenerationMetrics {
	if g.MapGeneration == nil {
		g.MapGeneration = &MapGenerationMetrics{}
	}
	return g.MapGeneration
}

// EnsureProgress lazily initializes the progress counters.
func (g *GenerationMetrics) EnsureProgress() *ProgressMetrics {
	if g.ProgressMetrics == nil {
		g.ProgressMetrics = &ProgressMetrics{}
	}
	return g.ProgressMetrics
}

// EnsureSpawn lazily initializes the spawn counters.
func (g *GenerationMetrics) EnsureSpawn() *SpawnMetrics {
	if g.SpawnMetrics == nil {
		g.SpawnMetrics = &SpawnMetrics{}
	}
	return g.SpawnMetrics
}

// AppendPatchBatch records a batch outcome, trimming to the history limit.
func (g *GenerationMetrics) AppendPatchBatch(rec *PatchBatchRecord) {
	g.PatchBatches = append(g.PatchBatches, rec)
	if excess := len(g.PatchBatches) - PatchBatchHistoryLimit; excess > 0 {
		g.PatchBatches = g.PatchBatches[excess:]
	}
}

// Clone deep-copies the metrics container for patch snapshots.
func (g *GenerationMetrics) Clone() *GenerationMetrics {
	if g == nil {
		return nil
	}
	out := &GenerationMetrics{LastPatchBatchID: g.LastPatchBatchID}

	if g.MapGeneration != nil {
		mg := *g.MapGeneration
		mg.ByStage = copyIntMap(g.MapGeneration.ByStage)
		mg.ByProvider = copyIntMap(g.MapGeneration.ByProvider)
		mg.ByErrorCode = copyIntMap(g.MapGeneration.ByErrorCode)
		out.MapGeneration = &mg
	}
	if g.ProgressMetrics != nil {
		pm := *g.ProgressMetrics
		pm.BlockedByGuard = copyIntMap(g.ProgressMetrics.BlockedByGuard)
		pm.FinalObjectiveGuardBlockedReasons = copyIntMap(g.ProgressMetrics.FinalObjectiveGuardBlockedReasons)
		pm.CompensatorAwards = copyFloatMap(g.ProgressMetrics.CompensatorAwards)
		out.ProgressMetrics = &pm
	}
	if g.SpawnMetrics != nil {
		sm := *g.SpawnMetrics
		sm.Downgrades = copyIntMap(g.SpawnMetrics.Downgrades)
		sm.RejectedSpawns = copyIntMap(g.SpawnMetrics.RejectedSpawns)
		out.SpawnMetrics = &sm
	}
	if g.PatchBatches != nil {
		out.PatchBatches = make([]*PatchBatchRecord, len(g.PatchBatches))
		for i, rec := range g.PatchBatches {
			rr := *rec
			rr.Diagnostics = append([]string(nil), rec.Diagnostics...)
			out.PatchBatches[i] = &rr
		}
	}
	return out
}

func copyIntMap(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
