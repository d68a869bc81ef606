package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/services/progress"
	"github.com/labyrinthia/engine/internal/services/state"
)

func testNow() time.Time {
	return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
}

type stubRefresher struct {
	refresh *progress.QuestRefresh
	err     error
	calls   int
}

func (r *stubRefresher) RefreshQuestProgress(_ context.Context, _ *entities.GameState, _ *entities.Quest, _ string, _ float64) (*progress.QuestRefresh, error) {
	r.calls++
	return r.refresh, r.err
}

func newProgressService(refresher progress.QuestRefresher) progress.Service {
	return progress.NewService(&progress.ServiceConfig{
		StateService: state.NewService(nil),
		Refresher:    refresher,
	})
}

func newQuestState(depth int, quest *entities.Quest) *entities.GameState {
	gs := entities.NewGameState("game-1", "user-1", testNow())
	gs.Player = entities.NewEntity("player-1", "Aria", entities.KindPlayer)
	gs.CurrentMap = &entities.GameMap{
		ID: "map-1", Width: 3, Height: 3, Depth: depth, MaxFloor: 5,
		Tiles: make(map[string]*entities.MapTile),
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			gs.CurrentMap.SetTile(&entities.MapTile{X: x, Y: y, Terrain: entities.TerrainFloor})
		}
	}
	if quest != nil {
		gs.Quests = []*entities.Quest{quest}
	}
	return gs
}

func TestProcessEvent_MapTransition(t *testing.T) {
	svc := newProgressService(nil)
	quest := &entities.Quest{
		ID: "q-1", Title: "Descent", IsActive: true, ProgressPercentage: 15,
		ProgressPlan: &entities.ProgressPlan{
			CompletionPolicy: entities.PolicyAggregate,
			ProgressPerFloor: 10,
		},
	}
	gs := newQuestState(3, quest)

	result, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType: entities.ProgressMapTransition,
		State:     gs,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 15.0, result.ProgressIncrement, "depth 3 x 10 per floor minus current 15")
	assert.Equal(t, 30.0, result.NewProgress)
	assert.Equal(t, 15.0, quest.LedgerSum(entities.BucketMapTransition))
}

func TestProcessEvent_MapTransitionNeverNegative(t *testing.T) {
	svc := newProgressService(nil)
	quest := &entities.Quest{
		ID: "q-1", Title: "Descent", IsActive: true, ProgressPercentage: 60,
		ProgressPlan: &entities.ProgressPlan{ProgressPerFloor: 10, CompletionPolicy: entities.PolicyAggregate},
	}
	gs := newQuestState(2, quest)

	result, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType: entities.ProgressMapTransition,
		State:     gs,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.ProgressIncrement)
	assert.Equal(t, 60.0, quest.ProgressPercentage)
}

func TestProcessEvent_CombatVictoryIncrements(t *testing.T) {
	tests := []struct {
		name          string
		contextData   map[string]any
		wantIncrement float64
		wantBucket    string
	}{
		{
			name:          "default five percent",
			contextData:   nil,
			wantIncrement: 5,
			wantBucket:    entities.BucketEvents,
		},
		{
			name:          "progress value override",
			contextData:   map[string]any{"progress_value": 12.0},
			wantIncrement: 12,
			wantBucket:    entities.BucketEvents,
		},
		{
			name:          "quest monster routes to its bucket",
			contextData:   map[string]any{"quest_monster_id": "qm-guard", "progress_value": 20.0},
			wantIncrement: 20,
			wantBucket:    entities.BucketQuestMonsters,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newProgressService(nil)
			quest := &entities.Quest{
				ID: "q-1", Title: "Hunt", IsActive: true,
				SpecialMonsters: []*entities.QuestMonster{{ID: "qm-guard", ProgressValue: 20}},
				ProgressPlan:    &entities.ProgressPlan{CompletionPolicy: entities.PolicyAggregate},
			}
			gs := newQuestState(1, quest)

			result, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
				EventType:   entities.ProgressCombatVictory,
				State:       gs,
				ContextData: tc.contextData,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.wantIncrement, result.ProgressIncrement)
			assert.Equal(t, tc.wantIncrement, quest.LedgerSum(tc.wantBucket))
		})
	}
}

func TestProcessEvent_FinalObjectiveGuardBlocks(t *testing.T) {
	svc := newProgressService(nil)
	quest := &entities.Quest{
		ID: "q-final", Title: "Slay the Warden", IsActive: true, ProgressPercentage: 40,
		TargetFloors: []int{3},
		SpecialMonsters: []*entities.QuestMonster{
			{ID: "qm-final", IsFinalObjective: true, ProgressValue: 100},
		},
		ProgressPlan: &entities.ProgressPlan{
			CompletionPolicy: entities.PolicySingleTarget,
			FinalObjectiveID: "qm-final",
		},
		CompletionGuard: &entities.CompletionGuard{RequireFinalFloor: true},
	}
	gs := newQuestState(1, quest)

	result, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType:   entities.ProgressCombatVictory,
		State:       gs,
		ContextData: map[string]any{"quest_monster_id": "qm-final", "progress_value": 100.0},
	})
	require.NoError(t, err)

	assert.False(t, result.QuestCompleted)
	assert.Contains(t, result.GuardReasons, progress.GuardFinalFloorNotMet)
	assert.False(t, quest.IsCompleted)
	assert.Equal(t, 40.0, quest.ProgressPercentage)

	blocks := gs.GenerationMetrics.ProgressMetrics.FinalObjectiveGuardBlockedReasons
	assert.GreaterOrEqual(t, blocks[progress.GuardFinalFloorNotMet], 1)
}

func TestProcessEvent_FinalObjectiveCompletes(t *testing.T) {
	svc := newProgressService(nil)
	quest := &entities.Quest{
		ID: "q-final", Title: "Slay the Warden", IsActive: true, ProgressPercentage: 70,
		TargetFloors:     []int{3},
		ExperienceReward: 500,
		SpecialMonsters: []*entities.QuestMonster{
			{ID: "qm-final", IsFinalObjective: true, ProgressValue: 100},
		},
		ProgressPlan: &entities.ProgressPlan{
			CompletionPolicy: entities.PolicySingleTarget,
			FinalObjectiveID: "qm-final",
		},
		CompletionGuard: &entities.CompletionGuard{RequireFinalFloor: true},
	}
	gs := newQuestState(3, quest)

	result, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType:   entities.ProgressCombatVictory,
		State:       gs,
		ContextData: map[string]any{"quest_monster_id": "qm-final", "progress_value": 100.0},
	})
	require.NoError(t, err)

	assert.True(t, result.QuestCompleted)
	assert.Equal(t, 100.0, result.NewProgress)
	assert.Equal(t, 500, result.ExperienceAwarded)
	assert.True(t, quest.IsCompleted)
	assert.False(t, quest.IsActive)
	assert.Equal(t, 500, gs.Player.Stats.Experience)

	require.NotNil(t, gs.PendingQuestCompletion)
	assert.Equal(t, "q-final", gs.PendingQuestCompletion.QuestID)
	assert.True(t, gs.PendingNewQuestGeneration)
}

func TestProcessEvent_BucketBudgetCaps(t *testing.T) {
	svc := newProgressService(nil)
	quest := &entities.Quest{
		ID: "q-budget", Title: "Measured Steps", IsActive: true,
		ProgressPlan: &entities.ProgressPlan{
			CompletionPolicy: entities.PolicyAggregate,
			Budget:           map[string]float64{entities.BucketEvents: 8},
		},
	}
	gs := newQuestState(1, quest)

	first, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType: entities.ProgressStoryEvent,
		State:     gs,
	})
	require.NoError(t, err)
	assert.Equal(t, 8.0, first.ProgressIncrement, "ten percent shrinks to the remaining budget")

	second, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType: entities.ProgressStoryEvent,
		State:     gs,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, second.ProgressIncrement, "exhausted bucket yields nothing")
	assert.Equal(t, 8.0, quest.LedgerSum(entities.BucketEvents))

	blocked := gs.GenerationMetrics.ProgressMetrics.BlockedByGuard
	assert.GreaterOrEqual(t, blocked[progress.GuardBucketBudgetExhausted], 2)
}

func TestProcessEvent_HybridCapsSingleIncrement(t *testing.T) {
	svc := newProgressService(nil)
	quest := &entities.Quest{
		ID: "q-hybrid", Title: "Twin Paths", IsActive: true,
		ProgressPlan:    &entities.ProgressPlan{CompletionPolicy: entities.PolicyHybrid},
		CompletionGuard: &entities.CompletionGuard{MaxSingleIncrementExceptFinal: 7},
	}
	gs := newQuestState(1, quest)

	result, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType: entities.ProgressStoryEvent,
		State:     gs,
	})
	require.NoError(t, err)
	assert.Equal(t, 7.0, result.ProgressIncrement)
}

func TestProcessEvent_AggregateCompletesAtHundred(t *testing.T) {
	svc := newProgressService(nil)
	quest := &entities.Quest{
		ID: "q-agg", Title: "Gather the Shards", IsActive: true, ProgressPercentage: 95,
		ExperienceReward: 200,
		ProgressPlan:     &entities.ProgressPlan{CompletionPolicy: entities.PolicyAggregate},
	}
	gs := newQuestState(1, quest)

	result, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType: entities.ProgressStoryEvent,
		State:     gs,
	})
	require.NoError(t, err)

	assert.True(t, result.QuestCompleted)
	assert.True(t, quest.IsCompleted)
	assert.Equal(t, 200, gs.Player.Stats.Experience)
}

func TestProcessEvent_AggregateHeldAtNinetyNineByMandatoryEvents(t *testing.T) {
	svc := newProgressService(nil)
	quest := &entities.Quest{
		ID: "q-agg", Title: "Gather the Shards", IsActive: true, ProgressPercentage: 95,
		SpecialEvents: []*entities.QuestEvent{
			{ID: "ev-seal", IsMandatory: true},
		},
		ProgressPlan:    &entities.ProgressPlan{CompletionPolicy: entities.PolicyAggregate},
		CompletionGuard: &entities.CompletionGuard{RequireAllMandatoryEvents: true},
	}
	gs := newQuestState(1, quest)

	result, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType: entities.ProgressStoryEvent,
		State:     gs,
	})
	require.NoError(t, err)

	assert.False(t, result.QuestCompleted)
	assert.Equal(t, 99.0, result.NewProgress)
	assert.Contains(t, result.GuardReasons, progress.GuardMandatoryEventsMissing)
	assert.False(t, quest.IsCompleted)
}

func TestProcessEvent_NoActiveQuest(t *testing.T) {
	svc := newProgressService(nil)
	gs := newQuestState(1, nil)

	result, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType: entities.ProgressStoryEvent,
		State:     gs,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, gs.GenerationMetrics.ProgressMetrics.EventsProcessed)
}

func TestProcessEvent_UnknownEventType(t *testing.T) {
	svc := newProgressService(nil)
	gs := newQuestState(1, &entities.Quest{ID: "q-1", Title: "Any", IsActive: true})

	_, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType: "LOOT_SOLD",
		State:     gs,
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestProcessEvent_RefresherAppliesNarrative(t *testing.T) {
	refresher := &stubRefresher{refresh: &progress.QuestRefresh{
		StoryContext:    "The shards hum in unison.",
		LLMNotes:        "player favors stealth",
		NarrativeUpdate: "A resonance builds beneath the floor.",
	}}
	svc := newProgressService(refresher)
	quest := &entities.Quest{ID: "q-1", Title: "Gather", IsActive: true,
		ProgressPlan: &entities.ProgressPlan{CompletionPolicy: entities.PolicyAggregate}}
	gs := newQuestState(1, quest)

	result, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType: entities.ProgressTreasureFound,
		State:     gs,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, "The shards hum in unison.", quest.StoryContext)
	assert.Equal(t, "player favors stealth", quest.LLMNotes)
	assert.Equal(t, "A resonance builds beneath the floor.", result.StoryUpdate)
}

func TestProcessEvent_RefresherFailureDegradesToNumeric(t *testing.T) {
	refresher := &stubRefresher{err: errors.Unavailable("oracle down")}
	svc := newProgressService(refresher)
	quest := &entities.Quest{ID: "q-1", Title: "Gather", IsActive: true,
		ProgressPlan: &entities.ProgressPlan{CompletionPolicy: entities.PolicyAggregate}}
	gs := newQuestState(1, quest)

	result, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType: entities.ProgressTreasureFound,
		State:     gs,
	})
	require.NoError(t, err, "oracle failure must not fail the event")
	assert.Equal(t, 2.0, result.ProgressIncrement)
	assert.Empty(t, result.StoryUpdate)
}

func TestProcessEvent_RefresherProposedCompletionRunsGuards(t *testing.T) {
	refresher := &stubRefresher{refresh: &progress.QuestRefresh{ShouldComplete: true}}
	svc := newProgressService(refresher)
	quest := &entities.Quest{
		ID: "q-1", Title: "Gather", IsActive: true, TargetFloors: []int{4},
		ProgressPlan:    &entities.ProgressPlan{CompletionPolicy: entities.PolicyHybrid},
		CompletionGuard: &entities.CompletionGuard{RequireFinalFloor: true},
	}
	gs := newQuestState(1, quest)

	result, err := svc.ProcessEvent(context.Background(), &progress.ProcessEventInput{
		EventType: entities.ProgressTreasureFound,
		State:     gs,
	})
	require.NoError(t, err)
	assert.False(t, result.QuestCompleted, "oracle cannot bypass the floor guard")
	assert.Contains(t, result.GuardReasons, progress.GuardFinalFloorNotMet)
	assert.False(t, quest.IsCompleted)
}

func TestCompensate_FinalFloorClearCompletes(t *testing.T) {
	svc := newProgressService(nil)
	quest := &entities.Quest{
		ID: "q-final", Title: "Purge the Depths", IsActive: true, ProgressPercentage: 60,
		TargetFloors:     []int{2},
		ExperienceReward: 300,
		ProgressPlan:     &entities.ProgressPlan{CompletionPolicy: entities.PolicySingleTarget},
	}
	gs := newQuestState(2, quest)

	result, err := svc.Compensate(context.Background(), gs)
	require.NoError(t, err)

	assert.True(t, result.QuestCompleted)
	assert.Equal(t, 40.0, result.Awards["final_floor_clear"])
	assert.Equal(t, 100.0, quest.ProgressPercentage)
	assert.True(t, quest.IsCompleted)
	assert.Equal(t, 300, gs.Player.Stats.Experience)
	assert.Equal(t, 40.0, gs.GenerationMetrics.ProgressMetrics.CompensatorAwards["final_floor_clear"])
}

func TestCompensate_ExplorationBonusOnSideFloor(t *testing.T) {
	svc := newProgressService(nil)
	quest := &entities.Quest{
		ID: "q-side", Title: "Chart the Depths", IsActive: true, ProgressPercentage: 50,
		TargetFloors: []int{5},
		Objectives:   []string{"map the second floor"},
		ProgressPlan: &entities.ProgressPlan{CompletionPolicy: entities.PolicyAggregate},
	}
	gs := newQuestState(2, quest)

	result, err := svc.Compensate(context.Background(), gs)
	require.NoError(t, err)

	assert.Equal(t, 10.0, result.Awards["exploration_bonus"])
	assert.Equal(t, 60.0, quest.ProgressPercentage)
	assert.False(t, result.QuestCompleted)
}

func TestCompensate_MandatoryEventsBonus(t *testing.T) {
	svc := newProgressService(nil)
	quest := &entities.Quest{
		ID: "q-events", Title: "The Rituals", IsActive: true, ProgressPercentage: 92,
		TargetFloors: []int{5},
		SpecialEvents: []*entities.QuestEvent{
			{ID: "ev-1", IsMandatory: true, IsTriggered: true},
			{ID: "ev-2", IsMandatory: true, IsTriggered: true},
		},
		ProgressPlan: &entities.ProgressPlan{CompletionPolicy: entities.PolicyAggregate},
	}
	gs := newQuestState(2, quest)
	monster := entities.NewEntity("mon-1", "Lurker", entities.KindMonster)
	gs.Monsters = append(gs.Monsters, monster)

	result, err := svc.Compensate(context.Background(), gs)
	require.NoError(t, err)

	assert.Equal(t, 3.0, result.Awards["mandatory_events_bonus"], "bonus caps at the 95 ceiling")
	assert.Equal(t, 95.0, quest.ProgressPercentage)
}

func TestCompensate_NoQuestIsNoop(t *testing.T) {
	svc := newProgressService(nil)
	gs := newQuestState(1, nil)

	result, err := svc.Compensate(context.Background(), gs)
	require.NoError(t, err)
	assert.Empty(t, result.Awards)
	assert.False(t, result.QuestCompleted)
}
