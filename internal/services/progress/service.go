package progress

//go:generate mockgen -destination=mock/mock_service.go -package=mockprogress -source=service.go

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/services/state"
)

// Guard block reasons recorded in generation metrics.
const (
	GuardFinalFloorNotMet        = "require_final_floor_not_met"
	GuardMandatoryEventsMissing  = "mandatory_events_missing"
	GuardPolicyDisallowBurst     = "completion_policy_disallow_final_burst"
	GuardMinProgressNotMet       = "min_progress_before_final_burst_not_met"
	GuardSingleIncrementCapped   = "max_single_increment_capped"
	GuardBucketBudgetExhausted   = "bucket_budget_exhausted"
	GuardAggregateNeedsMandatory = "aggregate_completion_needs_mandatory_events"
)

// Base increments per event type, overridable through context data.
const (
	baseCombatVictory = 5.0
	baseStoryEvent    = 10.0
	baseTreasureFound = 2.0

	defaultProgressPerFloor = 10.0
)

// QuestRefresh is the narrative refresh an oracle may return alongside a
// numeric progress update.
type QuestRefresh struct {
	StoryContext    string
	LLMNotes        string
	ShouldComplete  bool
	NewObjectives   []string
	NarrativeUpdate string
}

// QuestRefresher asks the story oracle to update quest narration after a
// progress event. Implementations must tolerate cancellation.
type QuestRefresher interface {
	RefreshQuestProgress(ctx context.Context, gameState *entities.GameState, quest *entities.Quest, eventType string, increment float64) (*QuestRefresh, error)
}

// ProcessEventInput describes one progress-relevant game event.
type ProcessEventInput struct {
	EventType   string
	State       *entities.GameState
	ContextData map[string]any
}

// ProcessEventResult reports what the event did to the active quest.
type ProcessEventResult struct {
	Success           bool     `json:"success"`
	ProgressIncrement float64  `json:"progress_increment"`
	NewProgress       float64  `json:"new_progress"`
	QuestCompleted    bool     `json:"quest_completed"`
	GuardReasons      []string `json:"guard_reasons,omitempty"`
	StoryUpdate       string   `json:"story_update,omitempty"`
	ExperienceAwarded int      `json:"experience_awarded,omitempty"`
	Events            []string `json:"events,omitempty"`
}

// CompensationResult reports the compensator's top-ups.
type CompensationResult struct {
	Awards         map[string]float64 `json:"awards,omitempty"`
	NewProgress    float64            `json:"new_progress"`
	QuestCompleted bool               `json:"quest_completed"`
	Events         []string           `json:"events,omitempty"`
}

// Service advances quest progress from game events under budget and
// completion guards.
type Service interface {
	// ProcessEvent applies one event's progress rules to the active quest.
	ProcessEvent(ctx context.Context, input *ProcessEventInput) (*ProcessEventResult, error)

	// Compensate tops up progress the event flow underpays: final-floor
	// clears, explored side floors, and completed mandatory events.
	Compensate(ctx context.Context, gameState *entities.GameState) (*CompensationResult, error)
}

type service struct {
	log       *zap.Logger
	state     state.Service
	refresher QuestRefresher
}

// ServiceConfig holds configuration for the progress manager.
type ServiceConfig struct {
	Logger       *zap.Logger
	StateService state.Service
	// Refresher is optional; without it progress updates stay numeric.
	Refresher QuestRefresher
}

// NewService creates a progress manager.
func NewService(cfg *ServiceConfig) Service {
	if cfg == nil {
		panic("config is required")
	}
	if cfg.StateService == nil {
		panic("state service is required")
	}
	svc := &service{
		log:       cfg.Logger,
		state:     cfg.StateService,
		refresher: cfg.Refresher,
	}
	if svc.log == nil {
		svc.log = zap.NewNop()
	}
	return svc
}

func (s *service) ProcessEvent(ctx context.Context, input *ProcessEventInput) (*ProcessEventResult, error) {
	if input == nil || input.State == nil {
		return nil, errors.InvalidArgument("input with state is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "progress event cancelled")
	}
	gameState := input.State
	metrics := gameState.EnsureMetrics().EnsureProgress()
	metrics.EventsProcessed++

	quest := gameState.ActiveQuest()
	if quest == nil {
		return &ProcessEventResult{Success: false}, nil
	}

	increment, bucket, err := s.baseIncrement(input, quest)
	if err != nil {
		return nil, err
	}
	result := &ProcessEventResult{Success: true, NewProgress: quest.ProgressPercentage}

	finalBurst := s.isFinalObjectiveBurst(input, quest)
	if finalBurst {
		if reasons := s.finalBurstGuardReasons(gameState, quest); len(reasons) > 0 {
			for _, reason := range reasons {
				metrics.RecordFinalObjectiveBlock(reason)
			}
			result.GuardReasons = reasons
			result.Events = append(result.Events,
				fmt.Sprintf("The foe falls, yet %q resists completion.", quest.Title))
			s.log.Info("final objective burst blocked",
				zap.String("quest_id", quest.ID),
				zap.Strings("reasons", reasons))
			return result, nil
		}
		return s.completeQuest(ctx, gameState, quest, result)
	}

	increment = s.applyIncrementGuards(quest, metrics, increment)
	increment = s.applyBucketBudget(quest, metrics, bucket, increment)
	if increment > 0 {
		quest.ProgressPercentage = clampProgress(quest.ProgressPercentage + increment)
		quest.AppendLedger(bucket, increment, input.EventType, gameState.TurnCount)
		metrics.IncrementsApplied += increment
	}
	result.ProgressIncrement = increment
	result.NewProgress = quest.ProgressPercentage

	s.refreshNarrative(ctx, gameState, quest, input.EventType, increment, result)
	if result.QuestCompleted {
		return result, nil
	}

	// aggregate and hybrid quests complete by accumulation
	if quest.ProgressPercentage >= 100 && s.policyAllowsAggregate(quest) {
		if quest.CompletionGuard != nil && quest.CompletionGuard.RequireAllMandatoryEvents && !quest.MandatoryEventsTriggered() {
			quest.ProgressPercentage = 99
			result.NewProgress = 99
			metrics.RecordGuardBlock(GuardAggregateNeedsMandatory)
			result.GuardReasons = append(result.GuardReasons, GuardMandatoryEventsMissing)
			return result, nil
		}
		return s.completeQuest(ctx, gameState, quest, result)
	}
	return result, nil
}

// baseIncrement computes the raw increment and its ledger bucket.
func (s *service) baseIncrement(input *ProcessEventInput, quest *entities.Quest) (float64, string, error) {
	override, hasOverride := floatFromContext(input.ContextData, "progress_value")

	switch input.EventType {
	case entities.ProgressMapTransition:
		perFloor := defaultProgressPerFloor
		if quest.ProgressPlan != nil && quest.ProgressPlan.ProgressPerFloor > 0 {
			perFloor = quest.ProgressPlan.ProgressPerFloor
		}
		depth := 1
		if input.State.CurrentMap != nil {
			depth = input.State.CurrentMap.Depth
		}
		increment := float64(depth)*perFloor - quest.ProgressPercentage
		return math.Max(0, increment), entities.BucketMapTransition, nil

	case entities.ProgressCombatVictory:
		increment := baseCombatVictory
		if hasOverride {
			increment = override
		}
		bucket := entities.BucketEvents
		if monsterID, _ := input.ContextData["quest_monster_id"].(string); monsterID != "" {
			bucket = entities.BucketQuestMonsters
		}
		return math.Max(0, increment), bucket, nil

	case entities.ProgressStoryEvent:
		increment := baseStoryEvent
		if hasOverride {
			increment = override
		}
		return math.Max(0, increment), entities.BucketEvents, nil

	case entities.ProgressTreasureFound:
		increment := baseTreasureFound
		if hasOverride {
			increment = override
		}
		return math.Max(0, increment), entities.BucketEvents, nil
	}
	return 0, "", errors.Validationf("unknown progress event type %q", input.EventType)
}

// isFinalObjectiveBurst reports whether this event is the kill of the
// quest's final objective.
func (s *service) isFinalObjectiveBurst(input *ProcessEventInput, quest *entities.Quest) bool {
	if input.EventType != entities.ProgressCombatVictory {
		return false
	}
	monsterID, _ := input.ContextData["quest_monster_id"].(string)
	if monsterID == "" {
		return false
	}
	final := quest.FinalObjective()
	return final != nil && final.ID == monsterID
}

// finalBurstGuardReasons evaluates the completion guards in order.
func (s *service) finalBurstGuardReasons(gameState *entities.GameState, quest *entities.Quest) []string {
	var reasons []string

	policy := ""
	if quest.ProgressPlan != nil {
		policy = quest.ProgressPlan.CompletionPolicy
	}
	if policy != entities.PolicySingleTarget && policy != entities.PolicyHybrid {
		reasons = append(reasons, GuardPolicyDisallowBurst)
	}

	guard := quest.CompletionGuard
	if guard == nil {
		return reasons
	}
	if guard.RequireFinalFloor {
		depth := 0
		if gameState.CurrentMap != nil {
			depth = gameState.CurrentMap.Depth
		}
		if !quest.OnTargetFloor(depth) {
			reasons = append(reasons, GuardFinalFloorNotMet)
		}
	}
	if guard.RequireAllMandatoryEvents && !quest.MandatoryEventsTriggered() {
		reasons = append(reasons, GuardMandatoryEventsMissing)
	}
	if guard.MinProgressBeforeFinalBurst > 0 && quest.ProgressPercentage < guard.MinProgressBeforeFinalBurst {
		reasons = append(reasons, GuardMinProgressNotMet)
	}
	return reasons
}

// applyIncrementGuards caps a non-final increment under the hybrid policy.
func (s *service) applyIncrementGuards(quest *entities.Quest, metrics *entities.ProgressMetrics, increment float64) float64 {
	guard := quest.CompletionGuard
	if guard == nil || guard.MaxSingleIncrementExceptFinal <= 0 {
		return increment
	}
	if quest.ProgressPlan == nil || quest.ProgressPlan.CompletionPolicy != entities.PolicyHybrid {
		return increment
	}
	if increment > guard.MaxSingleIncrementExceptFinal {
		metrics.RecordGuardBlock(GuardSingleIncrementCapped)
		return guard.MaxSingleIncrementExceptFinal
	}
	return increment
}

// applyBucketBudget shrinks the increment to whatever the bucket has left.
func (s *service) applyBucketBudget(quest *entities.Quest, metrics *entities.ProgressMetrics, bucket string, increment float64) float64 {
	budget, ok := quest.BudgetFor(bucket)
	if !ok {
		return increment
	}
	available := budget - quest.LedgerSum(bucket)
	if available <= 0 {
		metrics.RecordGuardBlock(GuardBucketBudgetExhausted)
		return 0
	}
	if increment > available {
		metrics.RecordGuardBlock(GuardBucketBudgetExhausted)
		return available
	}
	return increment
}

// completeQuest finishes the quest, pays experience, and queues the
// completion hand-off for the choice system.
func (s *service) completeQuest(ctx context.Context, gameState *entities.GameState, quest *entities.Quest, result *ProcessEventResult) (*ProcessEventResult, error) {
	burst := 100 - quest.ProgressPercentage
	quest.ProgressPercentage = 100
	quest.IsCompleted = true
	quest.IsActive = false
	if burst > 0 {
		quest.AppendLedger(entities.BucketQuestMonsters, burst, "quest_completion", gameState.TurnCount)
	}

	reward := quest.ExperienceReward
	if reward > 0 {
		progression, err := s.state.ApplyPlayerProgressionUpdates(gameState, reward, "quest_completion")
		if err != nil {
			return nil, errors.Wrapf(err, "awarding %d exp for quest %s", reward, quest.ID)
		}
		result.ExperienceAwarded = reward
		result.Events = append(result.Events, progression.Events...)
	}

	gameState.PendingQuestCompletion = &entities.QuestCompletionNotice{
		QuestID:           quest.ID,
		Title:             quest.Title,
		ExperienceAwarded: reward,
	}
	gameState.PendingNewQuestGeneration = true

	result.QuestCompleted = true
	result.ProgressIncrement += burst
	result.NewProgress = 100
	result.Events = append(result.Events, fmt.Sprintf("Quest complete: %s!", quest.Title))

	if s.refresher != nil {
		if refresh, err := s.refresher.RefreshQuestProgress(ctx, gameState, quest, "QUEST_COMPLETED", burst); err != nil {
			s.log.Warn("quest completion narrative refresh failed", zap.String("quest_id", quest.ID), zap.Error(err))
		} else if refresh != nil {
			applyRefresh(quest, refresh)
			if refresh.NarrativeUpdate != "" {
				result.StoryUpdate = refresh.NarrativeUpdate
				gameState.PendingQuestCompletion.Narrative = refresh.NarrativeUpdate
			}
		}
	}

	s.log.Info("quest completed",
		zap.String("quest_id", quest.ID),
		zap.Int("experience", reward))
	return result, nil
}

// refreshNarrative asks the oracle for story updates; failures degrade to
// the numeric-only result.
func (s *service) refreshNarrative(ctx context.Context, gameState *entities.GameState, quest *entities.Quest, eventType string, increment float64, result *ProcessEventResult) {
	if s.refresher == nil {
		return
	}
	refresh, err := s.refresher.RefreshQuestProgress(ctx, gameState, quest, eventType, increment)
	if err != nil {
		s.log.Warn("quest narrative refresh failed",
			zap.String("quest_id", quest.ID),
			zap.String("event_type", eventType),
			zap.Error(err))
		return
	}
	if refresh == nil {
		return
	}
	applyRefresh(quest, refresh)
	if refresh.NarrativeUpdate != "" {
		result.StoryUpdate = refresh.NarrativeUpdate
	}
	if refresh.ShouldComplete && !quest.IsCompleted {
		if reasons := s.finalBurstGuardReasons(gameState, quest); len(reasons) > 0 {
			metrics := gameState.EnsureMetrics().EnsureProgress()
			for _, reason := range reasons {
				metrics.RecordFinalObjectiveBlock(reason)
			}
			result.GuardReasons = append(result.GuardReasons, reasons...)
			return
		}
		if completed, err := s.completeQuest(ctx, gameState, quest, result); err == nil {
			*result = *completed
		} else {
			s.log.Warn("oracle-proposed completion failed", zap.String("quest_id", quest.ID), zap.Error(err))
		}
	}
}

func applyRefresh(quest *entities.Quest, refresh *QuestRefresh) {
	if refresh.StoryContext != "" {
		quest.StoryContext = refresh.StoryContext
	}
	if refresh.LLMNotes != "" {
		quest.LLMNotes = refresh.LLMNotes
	}
	if len(refresh.NewObjectives) > 0 {
		quest.Objectives = append(quest.Objectives, refresh.NewObjectives...)
	}
}

func (s *service) Compensate(ctx context.Context, gameState *entities.GameState) (*CompensationResult, error) {
	if gameState == nil {
		return nil, errors.InvalidArgument("state is required")
	}
	quest := gameState.ActiveQuest()
	if quest == nil || gameState.CurrentMap == nil {
		return &CompensationResult{}, nil
	}
	metrics := gameState.EnsureMetrics().EnsureProgress()
	result := &CompensationResult{Awards: make(map[string]float64), NewProgress: quest.ProgressPercentage}

	depth := gameState.CurrentMap.Depth
	floorCleared := len(gameState.LivingMonsters()) == 0
	finalFloor := quest.FinalFloor()
	onFinalFloor := finalFloor > 0 && depth == finalFloor

	if floorCleared && onFinalFloor && quest.ProgressPercentage < 100 {
		if reasons := s.finalBurstGuardReasons(gameState, quest); len(reasons) == 0 {
			award := 100 - quest.ProgressPercentage
			quest.ProgressPercentage = 100
			quest.AppendLedger(entities.BucketExplorationBuffer, award, "compensator_final_floor", gameState.TurnCount)
			metrics.RecordCompensatorAward("final_floor_clear", award)
			result.Awards["final_floor_clear"] = award
			result.Events = append(result.Events, "The floor falls silent; the quest's end is within reach.")

			processResult := &ProcessEventResult{Success: true}
			if _, err := s.completeQuest(ctx, gameState, quest, processResult); err != nil {
				return nil, err
			}
			result.QuestCompleted = true
			result.NewProgress = 100
			result.Events = append(result.Events, processResult.Events...)
			return result, nil
		}
	}

	if floorCleared && !onFinalFloor && len(quest.Objectives) > 0 && quest.ProgressPercentage < 100 {
		award := math.Min(10, 100-quest.ProgressPercentage)
		award = s.capExplorationAward(quest, award)
		if award > 0 {
			quest.ProgressPercentage = clampProgress(quest.ProgressPercentage + award)
			quest.AppendLedger(entities.BucketExplorationBuffer, award, "compensator_exploration", gameState.TurnCount)
			metrics.RecordCompensatorAward("exploration_bonus", award)
			result.Awards["exploration_bonus"] = award
			result.Events = append(result.Events, "The floor is cleared; the expedition gains ground.")
		}
	}

	if quest.MandatoryEventsTriggered() && hasMandatoryEvents(quest) && quest.ProgressPercentage < 95 {
		award := math.Min(5, 95-quest.ProgressPercentage)
		award = s.capExplorationAward(quest, award)
		if award > 0 {
			quest.ProgressPercentage = clampProgress(quest.ProgressPercentage + award)
			quest.AppendLedger(entities.BucketExplorationBuffer, award, "compensator_mandatory_events", gameState.TurnCount)
			metrics.RecordCompensatorAward("mandatory_events_bonus", award)
			result.Awards["mandatory_events_bonus"] = award
		}
	}

	result.NewProgress = quest.ProgressPercentage
	return result, nil
}

// capExplorationAward respects the exploration_buffer bucket budget.
func (s *service) capExplorationAward(quest *entities.Quest, award float64) float64 {
	budget, ok := quest.BudgetFor(entities.BucketExplorationBuffer)
	if !ok {
		return award
	}
	available := budget - quest.LedgerSum(entities.BucketExplorationBuffer)
	if available <= 0 {
		return 0
	}
	return math.Min(award, available)
}

func (s *service) policyAllowsAggregate(quest *entities.Quest) bool {
	if quest.ProgressPlan == nil {
		return true
	}
	policy := quest.ProgressPlan.CompletionPolicy
	return policy == entities.PolicyAggregate || policy == entities.PolicyHybrid || policy == ""
}

func hasMandatoryEvents(quest *entities.Quest) bool {
	for _, ev := range quest.SpecialEvents {
		if ev.IsMandatory {
			return true
		}
	}
	return false
}

func clampProgress(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func floatFromContext(data map[string]any, key string) (float64, bool) {
	if data == nil {
		return 0, false
	}
	switch v := data[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
