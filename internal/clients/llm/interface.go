package llm

import (
	"context"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/services/mapgen"
	"github.com/labyrinthia/engine/internal/services/progress"
)

//go:generate mockgen -destination=mock/mock_client.go -package=mockllm -source=interface.go

// NarrativeRequest asks the oracle for flavor text around a situation.
type NarrativeRequest struct {
	State *entities.GameState

	// Situation names what happened, e.g. "player_attack", "trap_triggered",
	// "map_transition". Context carries the small facts the prose should use.
	Situation string
	Context   map[string]any
}

// ItemsRequest asks for generated loot.
type ItemsRequest struct {
	State *entities.GameState

	Reason      string // treasure | quest_reward | monster_drop | event
	Count       int
	Depth       int
	PlayerLevel int
}

// ItemEffectRequest asks the oracle to resolve a freeform item use: an
// item that carries no deterministic effect_payload.
type ItemEffectRequest struct {
	State *entities.GameState
	Item  *entities.Item

	// Force indicates the player confirmed a use the item intel warned
	// about (requires_use_confirmation).
	Force bool
}

// PlayerUpdates is the player mutation block of an oracle reply. Stats
// and Abilities stay raw so StateModifier validation remains the gate;
// only the contract subkeys are carried, everything else is dropped.
type PlayerUpdates struct {
	Abilities   map[string]any
	Stats       map[string]any
	AddItems    []*entities.Item
	RemoveItems []string
}

// Empty reports whether the block carries nothing to apply.
func (p *PlayerUpdates) Empty() bool {
	return p == nil ||
		(len(p.Abilities) == 0 && len(p.Stats) == 0 &&
			len(p.AddItems) == 0 && len(p.RemoveItems) == 0)
}

// ItemEffect is the oracle's resolution of a freeform item use. Only
// contract keys are carried: effect_scope, effects.special_effects, the
// intel hints, and the player_updates block riding the same reply.
type ItemEffect struct {
	Narrative   string
	EffectScope string // self | target | area

	// SpecialEffects apply through the effect engine.
	SpecialEffects []*entities.StatusEffect

	// PlayerUpdates rides the same envelope; applied by the engine
	// through StateModifier.
	PlayerUpdates *PlayerUpdates

	// Intel refresh written back onto the item.
	HintLevel               string
	TriggerHint             string
	RiskHint                string
	ExpectedOutcomes        []string
	RequiresUseConfirmation bool

	// ConsumptionHint is consumed | persistent | charges.
	ConsumptionHint string
}

// QuestRequest asks the oracle for a fresh quest.
type QuestRequest struct {
	State *entities.GameState

	PlayerLevel int
	MaxFloor    int
	Theme       string

	// PreviousQuest lets the story chain onto what just completed.
	PreviousQuest *entities.Quest
}

// Client is the story oracle backing narration, content generation, map
// planning, and quest upkeep. GenerateMapPlan satisfies
// mapgen.ContractProvider and RefreshQuestProgress satisfies
// progress.QuestRefresher, so one client wires both services.
//
// Every implementation degrades cleanly: callers treat errors as "use
// the local fallback", never as fatal.
type Client interface {
	GenerateNarrative(ctx context.Context, req *NarrativeRequest) (string, error)
	GenerateMapPlan(ctx context.Context, input *mapgen.GenerateInput) (*mapgen.ContractPlan, error)
	GenerateItems(ctx context.Context, req *ItemsRequest) ([]*entities.Item, error)
	GenerateItemEffect(ctx context.Context, req *ItemEffectRequest) (*ItemEffect, error)
	GenerateQuest(ctx context.Context, req *QuestRequest) (*entities.Quest, error)
	RefreshQuestProgress(ctx context.Context, gameState *entities.GameState, quest *entities.Quest, eventType string, increment float64) (*progress.QuestRefresh, error)
}
