package effects

import (
	"fmt"

	"github.com/labyrinthia/engine/internal/entities"
)

// ActionAvailability summarizes which turn actions an entity may take,
// with the status effect IDs blocking each denied action.
type ActionAvailability struct {
	CanMove      bool `json:"can_move"`
	CanAttack    bool `json:"can_attack"`
	CanCastSpell bool `json:"can_cast_spell"`
	CanUseItem   bool `json:"can_use_item"`

	BlockedActions map[string][]string `json:"blocked_actions,omitempty"`
}

// TraceRow records one stat delta applied or reverted by the engine.
// Delta holds the actual change after rounding and clamping, so a
// revert that applies -Delta restores Before exactly.
type TraceRow struct {
	Stage  int     `json:"stage"`
	Source string  `json:"source"`
	ItemID string  `json:"item_id,omitempty"`
	Key    string  `json:"key"`
	Before float64 `json:"before"`
	Delta  float64 `json:"delta"`
	After  float64 `json:"after"`
}

// HookFunc is a programmatic effect hook. It may mutate ctxData
// accumulators (e.g. "damage_bonus") and returns narrative events.
type HookFunc func(state *entities.GameState, actor, target *entities.Entity, ctxData map[string]any) []string

// EquipSourceKey builds the source key under which an equipped item's
// passive deltas are recorded.
func EquipSourceKey(slot, itemID string) string {
	return fmt.Sprintf("equip:%s:%s", slot, itemID)
}
