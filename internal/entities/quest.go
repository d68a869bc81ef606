package entities

// Completion policies: how a quest may reach 100%.
const (
	PolicySingleTarget = "single_target_100"
	PolicyAggregate    = "aggregate"
	PolicyHybrid       = "hybrid"
)

// Ledger buckets for budgeted progress.
const (
	BucketEvents            = "events"
	BucketQuestMonsters     = "quest_monsters"
	BucketMapTransition     = "map_transition"
	BucketExplorationBuffer = "exploration_buffer"
)

// Progress event types fed into the progress manager.
const (
	ProgressMapTransition = "MAP_TRANSITION"
	ProgressCombatVictory = "COMBAT_VICTORY"
	ProgressStoryEvent    = "STORY_EVENT"
	ProgressTreasureFound = "TREASURE_FOUND"
)

// QuestMonster describes a named monster the quest cares about.
type QuestMonster struct {
	ID               string  `json:"id"`
	Name             string  `json:"name,omitempty"`
	Description      string  `json:"description,omitempty"`
	IsFinalObjective bool    `json:"is_final_objective,omitempty"`
	ProgressValue    float64 `json:"progress_value,omitempty"`
	Floor            int     `json:"floor,omitempty"`
	IsDefeated       bool    `json:"is_defeated,omitempty"`
}

// QuestEvent describes a scripted event the quest expects on some floor.
type QuestEvent struct {
	ID            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	Description   string         `json:"description,omitempty"`
	EventType     string         `json:"event_type,omitempty"`
	IsMandatory   bool           `json:"is_mandatory,omitempty"`
	ProgressValue float64        `json:"progress_value,omitempty"`
	LocationHint  int            `json:"location_hint,omitempty"` // floor depth, 0 = anywhere
	EventData     map[string]any `json:"event_data,omitempty"`
	IsTriggered   bool           `json:"is_triggered,omitempty"`
}

// ProgressPlan budgets and shapes how progress accumulates.
type ProgressPlan struct {
	CompletionPolicy string             `json:"completion_policy"` // single_target_100 | aggregate | hybrid
	Budget           map[string]float64 `json:"budget,omitempty"`  // bucket -> max total increment
	FinalObjectiveID string             `json:"final_objective_id,omitempty"`
	ProgressPerFloor float64            `json:"progress_per_floor,omitempty"`
}

// CompletionGuard constrains completion bursts.
type CompletionGuard struct {
	RequireFinalFloor             bool    `json:"require_final_floor,omitempty"`
	RequireAllMandatoryEvents     bool    `json:"require_all_mandatory_events,omitempty"`
	MinProgressBeforeFinalBurst   float64 `json:"min_progress_before_final_burst,omitempty"`
	MaxSingleIncrementExceptFinal float64 `json:"max_single_increment_except_final,omitempty"`
}

// LedgerEntry is one append-only progress increment record.
type LedgerEntry struct {
	Bucket    string  `json:"bucket"`
	Increment float64 `json:"increment"`
	Source    string  `json:"source,omitempty"`
	Turn      int     `json:"turn,omitempty"`
}

// Quest is a story goal with budgeted, guarded progress.
type Quest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	QuestType   string `json:"quest_type,omitempty"`

	IsActive           bool    `json:"is_active"`
	IsCompleted        bool    `json:"is_completed"`
	ProgressPercentage float64 `json:"progress_percentage"`

	Objectives          []string `json:"objectives,omitempty"`
	CompletedObjectives []string `json:"completed_objectives,omitempty"`

	SpecialMonsters []*QuestMonster `json:"special_monsters,omitempty"`
	SpecialEvents   []*QuestEvent   `json:"special_events,omitempty"`
	TargetFloors    []int           `json:"target_floors,omitempty"`

	ProgressPlan    *ProgressPlan    `json:"progress_plan,omitempty"`
	CompletionGuard *CompletionGuard `json:"completion_guard,omitempty"`
	ProgressLedger  []*LedgerEntry   `json:"progress_ledger,omitempty"`

	StoryContext string `json:"story_context,omitempty"`
	LLMNotes     string `json:"llm_notes,omitempty"`

	ExperienceReward int `json:"experience_reward,omitempty"`
}

// LedgerSum totals the ledger increments for one bucket.
func (q *Quest) LedgerSum(bucket string) float64 {
	var sum float64
	for _, e := range q.ProgressLedger {
		if e.Bucket == bucket {
			sum += e.Increment
		}
	}
	return sum
}

// BudgetFor returns the budget cap for a bucket; ok=false when the plan
// does not budget that bucket.
func (q *Quest) BudgetFor(bucket string) (float64, bool) {
	if q.ProgressPlan == nil || q.ProgressPlan.Budget == nil {
		return 0, false
	}
	v, ok := q.ProgressPlan.Budget[bucket]
	return v, ok
}

// AppendLedger records an increment against a bucket.
func (q *Quest) AppendLedger(bucket string, increment float64, source string, turn int) {
	q.ProgressLedger = append(q.ProgressLedger, &LedgerEntry{
		Bucket:    bucket,
		Increment: increment,
		Source:    source,
		Turn:      turn,
	})
}

// FinalObjective returns the quest monster flagged as (or planned to
// be) the final objective, nil when none is defined.
func (q *Quest) FinalObjective() *QuestMonster {
	if q.ProgressPlan != nil && q.ProgressPlan.FinalObjectiveID != "" {
		for _, m := range q.SpecialMonsters {
			if m.ID == q.ProgressPlan.FinalObjectiveID {
				return m
			}
		}
	}
	for _, m := range q.SpecialMonsters {
		if m.IsFinalObjective {
			return m
		}
	}
	return nil
}

// MandatoryEventsTriggered reports whether every mandatory special
// event has fired.
func (q *Quest) MandatoryEventsTriggered() bool {
	for _, ev := range q.SpecialEvents {
		if ev.IsMandatory && !ev.IsTriggered {
			return false
		}
	}
	return true
}

// FinalFloor returns the highest target floor, 0 when none are set.
func (q *Quest) FinalFloor() int {
	final := 0
	for _, f := range q.TargetFloors {
		if f > final {
			final = f
		}
	}
	return final
}

// OnTargetFloor reports whether the given depth is one of the quest's
// target floors. Quests without target floors accept any depth.
func (q *Quest) OnTargetFloor(depth int) bool {
	if len(q.TargetFloors) == 0 {
		return true
	}
	for _, f := range q.TargetFloors {
		if f == depth {
			return true
		}
	}
	return false
}

// Clone deep-copies the quest.
func (q *Quest) Clone() *Quest {
	if q == nil {
		return nil
	}
	out := *q

	out.Objectives = append([]string(nil), q.Objectives...)
	out.CompletedObjectives = append([]string(nil), q.CompletedObjectives...)
	out.TargetFloors = append([]int(nil), q.TargetFloors...)

	if q.SpecialMonsters != nil {
		out.SpecialMonsters = make([]*QuestMonster, len(q.SpecialMonsters))
		for i, m := range q.SpecialMonsters {
			mm := *m
			out.SpecialMonsters[i] = &mm
		}
	}
	if q.SpecialEvents != nil {
		out.SpecialEvents = make([]*QuestEvent, len(q.SpecialEvents))
		for i, ev := range q.SpecialEvents {
			ee := *ev
			ee.EventData = copyAnyMap(ev.EventData)
			out.SpecialEvents[i] = &ee
		}
	}
	if q.ProgressPlan != nil {
		p := *q.ProgressPlan
		p.Budget = copyFloatMap(q.ProgressPlan.Budget)
		out.ProgressPlan = &p
	}
	if q.CompletionGuard != nil {
		g := *q.CompletionGuard
		out.CompletionGuard = &g
	}
	if q.ProgressLedger != nil {
		out.ProgressLedger = make([]*LedgerEntry, len(q.ProgressLedger))
		for i, e := range q.ProgressLedger {
			ee := *e
			out.ProgressLedger[i] = &ee
		}
	}
	return &out
}

// ActiveQuest returns the single active, uncompleted quest, nil when
// none qualifies.
func ActiveQuest(quests []*Quest) *Quest {
	for _, q := range quests {
		if q.IsActive && !q.IsCompleted {
			return q
		}
	}
	return nil
}
