package mapgen

import (
	"context"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/services/state"
)

// Generation chains and provider names recorded in map metadata.
const (
	ChainLegacy     = "legacy"
	ChainContractV2 = "contract_v2"

	ProviderLocal = "local"
	ProviderLLM   = "llm"
)

// Layout styles the quest analysis can request.
const (
	LayoutStandard = "standard"
	LayoutLinear   = "linear"
	LayoutHub      = "hub"
)

// Spawn point roles.
const (
	SpawnEncounter = "encounter"
	SpawnBoss      = "boss"
)

// GenerateInput describes one floor generation request.
type GenerateInput struct {
	// State receives metrics and is the patch application target for the
	// contract chain. Optional; without it metrics are discarded.
	State *entities.GameState

	UserID      string
	Depth       int
	MaxFloor    int
	Width       int
	Height      int
	Seed        int64
	Source      string // new_game | transition_down | transition_up | regenerate
	Quest       *entities.Quest
	PlayerLevel int
}

// SpawnPoint marks a recommended monster location.
type SpawnPoint struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Role   string `json:"role"` // encounter | boss
	RoomID string `json:"room_id,omitempty"`
}

// MonsterHints guides the spawn manager and gives the story oracle
// situational context.
type MonsterHints struct {
	RecommendedLevel    int               `json:"recommended_level"`
	EncounterDifficulty string            `json:"encounter_difficulty"` // easy | medium | hard
	SpawnPoints         []*SpawnPoint     `json:"spawn_points,omitempty"`
	RoomIntents         map[string]string `json:"room_intents,omitempty"`
	LLMContext          string            `json:"llm_context,omitempty"`
}

// GenerateOutput bundles a produced floor with its spawn hints.
type GenerateOutput struct {
	Map   *entities.GameMap
	Hints *MonsterHints
}

// MapRequirements is what the active quest demands of the floor layout.
type MapRequirements struct {
	MinRooms          int    `json:"min_rooms"`
	MaxRooms          int    `json:"max_rooms"`
	NeedsBossRoom     bool   `json:"needs_boss_room"`
	NeedsTreasureRoom bool   `json:"needs_treasure_room"`
	NeedsSpecialRooms int    `json:"needs_special_rooms"`
	LayoutStyle       string `json:"layout_style"` // standard | linear | hub
}

// Provider generates a dungeon floor.
type Provider interface {
	Generate(ctx context.Context, input *GenerateInput) (*GenerateOutput, error)
}

// ContractPlan is the contract chain's product: a complete floor plus
// optional refinement patches applied through the patch pipeline.
type ContractPlan struct {
	Map          *entities.GameMap
	Hints        *MonsterHints
	Patches      *state.PatchBatch
	ContractHash string
}

// ContractProvider is the LLM-backed generation chain.
type ContractProvider interface {
	GenerateMapPlan(ctx context.Context, input *GenerateInput) (*ContractPlan, error)
}
