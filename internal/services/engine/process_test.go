package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/services/choice"
	"github.com/labyrinthia/engine/internal/services/combat"
	"github.com/labyrinthia/engine/internal/services/engine"
)

// stubCombat swaps the telemetry snapshot while leaving evaluation to
// the real service.
type stubCombat struct {
	inner combat.Service
	snap  *combat.TelemetrySnapshot
}

func (s *stubCombat) EvaluateAttack(ctx context.Context, input *combat.EvaluateAttackInput) (*combat.Result, error) {
	return s.inner.EvaluateAttack(ctx, input)
}

func (s *stubCombat) Snapshot() *combat.TelemetrySnapshot { return s.snap }

func healingDraught(id string, amount int) *entities.Item {
	return &entities.Item{
		ID:            id,
		Name:          "Healing Draught",
		ItemType:      "consumable",
		EffectPayload: map[string]any{"heal_hp": amount},
	}
}

func TestProcessPlayerAction_RequiresIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.ProcessPlayerAction(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = h.svc.ProcessPlayerAction(ctx, &engine.ActionRequest{GameID: "g", Action: entities.ActionNameRest})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))

	res, err := h.svc.ProcessPlayerAction(ctx, &engine.ActionRequest{UserID: "u", GameID: "g"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, entities.ErrUnknownAction, res.ErrorCode)
}

func TestProcessPlayerAction_GameNotLoaded(t *testing.T) {
	h := newHarness(t)

	res := h.act(t, &engine.ActionRequest{UserID: "u-x", GameID: "g-x", Action: entities.ActionNameRest})
	assert.False(t, res.Success)
	assert.Equal(t, entities.ErrGameNotFound, res.ErrorCode)
	assert.Contains(t, res.Message, "is not loaded")
}

func TestProcessPlayerAction_UnknownActionKeepsTurn(t *testing.T) {
	h := newHarness(t)
	h.seed(t, flatState("g-1", "u-1"))

	res := h.act(t, &engine.ActionRequest{UserID: "u-1", GameID: "g-1", Action: "dance"})
	assert.False(t, res.Success)
	assert.Equal(t, entities.ErrUnknownAction, res.ErrorCode)
	assert.Contains(t, res.Message, `unknown action "dance"`)

	gs := h.game(t, "u-1", "g-1")
	assert.Equal(t, 0, gs.TurnCount, "a rejected action must not advance the turn")
}

func TestProcessPlayerAction_TraceAndLatency(t *testing.T) {
	h := newHarness(t)
	h.seed(t, flatState("g-1", "u-1"))

	res := h.act(t, &engine.ActionRequest{
		UserID: "u-1", GameID: "g-1",
		Action:         entities.ActionNameRest,
		IdempotencyKey: "trace-123",
	})
	require.True(t, res.Success)
	assert.Equal(t, "trace-123", res.ActionTraceID, "the idempotency key doubles as the trace id")

	require.NotNil(t, res.Performance)
	assert.GreaterOrEqual(t, res.Performance.P95Ms, res.Performance.P50Ms)
	assert.GreaterOrEqual(t, res.Performance.TurnElapsedMs, float64(0))

	res = h.act(t, &engine.ActionRequest{UserID: "u-1", GameID: "g-1", Action: entities.ActionNameRest})
	assert.NotEmpty(t, res.ActionTraceID, "without a key the engine mints a trace id")
}

func TestProcessPlayerAction_IdempotentReplay(t *testing.T) {
	h := newHarness(t)
	gs := flatState("g-1", "u-1")
	gs.Player.Stats.HP = 10
	gs.Player.Inventory = append(gs.Player.Inventory, healingDraught("potion-1", 10))
	h.seed(t, gs)

	req := &engine.ActionRequest{
		UserID: "u-1", GameID: "g-1",
		Action:         entities.ActionNameUseItem,
		Params:         map[string]any{"item_id": "potion-1"},
		IdempotencyKey: "use-1",
	}

	first := h.act(t, req)
	require.True(t, first.Success)
	assert.False(t, first.IdempotentReplay)
	requireEvent(t, first, "recovers 10 HP")

	live := h.game(t, "u-1", "g-1")
	assert.Equal(t, 20, live.Player.Stats.HP)
	assert.Equal(t, 1, live.TurnCount)
	assert.Empty(t, live.Player.Inventory, "the draught is consumed")

	replay := h.act(t, req)
	assert.True(t, replay.IdempotentReplay)
	assert.Equal(t, "idempotent replay: used Healing Draught", replay.Message)
	requireEvent(t, replay, "recovers 10 HP")

	live = h.game(t, "u-1", "g-1")
	assert.Equal(t, 20, live.Player.Stats.HP, "the replay must not heal twice")
	assert.Equal(t, 1, live.TurnCount, "the replay must not advance the turn")
}

func TestProcessPlayerAction_ReplayKeyReuseWithNewParams(t *testing.T) {
	h := newHarness(t)
	gs := flatState("g-1", "u-1")
	gs.Player.Stats.HP = 10
	gs.Player.Inventory = append(gs.Player.Inventory, healingDraught("potion-1", 10))
	h.seed(t, gs)

	first := h.act(t, &engine.ActionRequest{
		UserID: "u-1", GameID: "g-1",
		Action:         entities.ActionNameUseItem,
		Params:         map[string]any{"item_id": "potion-1"},
		IdempotencyKey: "use-1",
	})
	require.True(t, first.Success)

	// Same key, different item: the fingerprint disagrees, so this is
	// a fresh action, not a replay.
	second := h.act(t, &engine.ActionRequest{
		UserID: "u-1", GameID: "g-1",
		Action:         entities.ActionNameUseItem,
		Params:         map[string]any{"item_id": "ghost"},
		IdempotencyKey: "use-1",
	})
	assert.False(t, second.IdempotentReplay)
	assert.False(t, second.Success)
	assert.Equal(t, entities.ErrItemNotFound, second.ErrorCode)
}

func TestProcessPlayerAction_GameOverGateBlocksEverything(t *testing.T) {
	h := newHarness(t)
	gs := flatState("g-1", "u-1")
	gs.Player.Stats.HP = 3
	gs.Player.ActiveEffects = append(gs.Player.ActiveEffects, &entities.StatusEffect{
		ID:            "venom-1",
		Name:          "Venom",
		EffectType:    "dot",
		DurationTurns: 3,
		DamagePerTurn: 5,
		DamageType:    "poison",
	})
	h.seed(t, gs)

	res := h.act(t, &engine.ActionRequest{
		UserID: "u-1", GameID: "g-1",
		Action: entities.ActionNameMove,
		Params: map[string]any{"x": 3, "y": 2},
	})
	require.True(t, res.Success, "the step itself succeeds; the poison lands afterwards")
	requireEvent(t, res, "has fallen")
	assert.Empty(t, res.Narrative, "the oracle rests once the run is over")

	live := h.game(t, "u-1", "g-1")
	assert.True(t, live.IsGameOver)
	assert.Equal(t, "player_death", live.GameOverReason)

	for _, action := range []string{
		entities.ActionNameRest,
		entities.ActionNameMove,
		entities.ActionNameResolveChoice,
	} {
		res := h.act(t, &engine.ActionRequest{
			UserID: "u-1", GameID: "g-1",
			Action: action,
			Params: map[string]any{"x": 2, "y": 2, "choice_id": "press_on"},
		})
		assert.False(t, res.Success, action)
		assert.Equal(t, "game_over", res.Reason, action)
		assert.Equal(t, "the game is over", res.Message, action)
		assert.NotEmpty(t, res.ActionTraceID, action)
	}
}

func TestProcessPlayerAction_StatusBlocksGatedActions(t *testing.T) {
	h := newHarness(t)
	gs := flatState("g-1", "u-1")
	gs.Player.ActiveEffects = append(gs.Player.ActiveEffects, &entities.StatusEffect{
		ID:             "web-1",
		Name:           "Webbed",
		EffectType:     "restraint",
		DurationTurns:  3,
		BlockedActions: []string{entities.ActionMove},
	})
	h.seed(t, gs)

	res := h.act(t, &engine.ActionRequest{
		UserID: "u-1", GameID: "g-1",
		Action: entities.ActionNameMove,
		Params: map[string]any{"x": 3, "y": 2},
	})
	assert.False(t, res.Success)
	assert.Equal(t, entities.ErrActionBlockedByStatus, res.ErrorCode)

	res = h.act(t, &engine.ActionRequest{UserID: "u-1", GameID: "g-1", Action: entities.ActionNameRest})
	assert.True(t, res.Success, "rest is never gated by status effects")
}

func TestProcessPlayerAction_ParksQuestCompletionChoice(t *testing.T) {
	h := newHarness(t)
	gs := flatState("g-1", "u-1")
	gs.PendingQuestCompletion = &entities.QuestCompletionNotice{
		QuestID:           "q-1",
		Title:             "First Steps",
		ExperienceAwarded: 100,
	}
	h.seed(t, gs)

	res := h.act(t, &engine.ActionRequest{UserID: "u-1", GameID: "g-1", Action: entities.ActionNameRest})
	require.True(t, res.Success)

	live := h.game(t, "u-1", "g-1")
	require.NotNil(t, live.PendingChoiceContext, "the completion notice parks a choice at turn end")
	assert.Equal(t, entities.ChoiceQuestCompletion, live.PendingChoiceContext.EventType)
	assert.Equal(t, "Quest complete: First Steps", live.PendingChoiceContext.Title)

	resolved := h.act(t, &engine.ActionRequest{
		UserID: "u-1", GameID: "g-1",
		Action: entities.ActionNameResolveChoice,
		Params: map[string]any{"choice_id": "press_on"},
	})
	require.True(t, resolved.Success)
	assert.Equal(t, choice.OutcomeApplied, resolved.Message)

	live = h.game(t, "u-1", "g-1")
	assert.Nil(t, live.PendingChoiceContext)
	assert.Nil(t, live.PendingQuestCompletion)
}

func TestProcessPlayerAction_QuestHandoffGeneratesNext(t *testing.T) {
	h := newHarness(t)
	gs := flatState("g-1", "u-1")
	gs.PendingNewQuestGeneration = true
	h.seed(t, gs)

	res := h.act(t, &engine.ActionRequest{UserID: "u-1", GameID: "g-1", Action: entities.ActionNameRest})
	require.True(t, res.Success)
	requireEvent(t, res, "New quest: The Hollow Crown")

	live := h.game(t, "u-1", "g-1")
	assert.False(t, live.PendingNewQuestGeneration)
	quest := live.ActiveQuest()
	require.NotNil(t, quest)
	assert.Equal(t, "The Hollow Crown", quest.Title)
	assert.True(t, quest.IsActive)
}

func TestProcessPlayerAction_ReleaseGateDegradesStepwise(t *testing.T) {
	h := newHarness(t, func(cfg *engine.ServiceConfig) {
		cfg.Combat = &stubCombat{
			inner: combat.NewService(&combat.ServiceConfig{}),
			snap:  &combat.TelemetrySnapshot{Attempts: 25, Degraded: true},
		}
	})
	h.seed(t, flatState("g-1", "u-1"))

	h.act(t, &engine.ActionRequest{UserID: "u-1", GameID: "g-1", Action: entities.ActionNameRest})
	assert.Equal(t, entities.AuthorityHybrid, h.game(t, "u-1", "g-1").CombatAuthorityMode)

	h.act(t, &engine.ActionRequest{UserID: "u-1", GameID: "g-1", Action: entities.ActionNameRest})
	assert.Equal(t, entities.AuthorityLocal, h.game(t, "u-1", "g-1").CombatAuthorityMode)

	h.act(t, &engine.ActionRequest{UserID: "u-1", GameID: "g-1", Action: entities.ActionNameRest})
	assert.Equal(t, entities.AuthorityLocal, h.game(t, "u-1", "g-1").CombatAuthorityMode,
		"local is the floor; there is nothing below it")
}

func TestProcessPlayerAction_ReleaseGateNeedsSampleFloor(t *testing.T) {
	h := newHarness(t, func(cfg *engine.ServiceConfig) {
		cfg.Combat = &stubCombat{
			inner: combat.NewService(&combat.ServiceConfig{}),
			snap:  &combat.TelemetrySnapshot{Attempts: 5, Degraded: true},
		}
	})
	h.seed(t, flatState("g-1", "u-1"))

	h.act(t, &engine.ActionRequest{UserID: "u-1", GameID: "g-1", Action: entities.ActionNameRest})
	assert.Equal(t, entities.AuthorityServer, h.game(t, "u-1", "g-1").CombatAuthorityMode,
		"a thin sample must not trip the gate")
}

func TestProcessPlayerAction_PureMoveStaysSilent(t *testing.T) {
	h := newHarness(t)
	h.seed(t, flatState("g-1", "u-1"))

	res := h.act(t, &engine.ActionRequest{
		UserID: "u-1", GameID: "g-1",
		Action: entities.ActionNameMove,
		Params: map[string]any{"x": 3, "y": 2},
	})
	require.True(t, res.Success)
	assert.False(t, res.LLMInteractionRequired)
	assert.Empty(t, res.Narrative)
}

func TestProcessPlayerAction_RestDrawsNarration(t *testing.T) {
	h := newHarness(t)
	h.seed(t, flatState("g-1", "u-1"))

	res := h.act(t, &engine.ActionRequest{UserID: "u-1", GameID: "g-1", Action: entities.ActionNameRest})
	require.True(t, res.Success)
	assert.True(t, res.LLMInteractionRequired)
	assert.Equal(t, "You rest. The labyrinth pretends not to watch.", res.Narrative)
}
