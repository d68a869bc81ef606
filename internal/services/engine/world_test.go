package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/services/engine"
)

func interact(userID, gameID string, x, y int) *engine.ActionRequest {
	return &engine.ActionRequest{
		UserID: userID, GameID: gameID,
		Action: entities.ActionNameInteract,
		Params: map[string]any{"x": x, "y": y},
	}
}

func TestInteract_OpensDoor(t *testing.T) {
	h := newHarness(t)
	gs := flatState("g-1", "u-1")
	gs.CurrentMap.TileAt(3, 2).Terrain = entities.TerrainDoor
	h.seed(t, gs)

	res := h.act(t, interact("u-1", "g-1", 3, 2))
	require.True(t, res.Success)
	assert.Equal(t, "the door opens", res.Message)
	requireEvent(t, res, "A door creaks open")

	live := h.game(t, "u-1", "g-1")
	assert.Equal(t, entities.TerrainFloor, live.CurrentMap.TileAt(3, 2).Terrain)
}

func TestInteract_TreasureYieldsOracleLootOnce(t *testing.T) {
	h := newHarness(t)
	gs := flatState("g-1", "u-1")
	gs.CurrentMap.TileAt(3, 2).Terrain = entities.TerrainTreasure
	h.seed(t, gs)

	res := h.act(t, interact("u-1", "g-1", 3, 2))
	require.True(t, res.Success)
	assert.Equal(t, "treasure claimed", res.Message)
	requireEvent(t, res, "finds Pale Mana Philter")
	assert.Equal(t, 1, res.ImpactSummary["items_found"])
	assert.Equal(t, "Old wealth, older dust.", res.Narrative)

	live := h.game(t, "u-1", "g-1")
	require.Len(t, live.Player.Inventory, 1)
	assert.Equal(t, "Pale Mana Philter", live.Player.Inventory[0].Name)

	cache := live.CurrentMap.TileAt(3, 2)
	assert.Equal(t, entities.TerrainTreasure, cache.Terrain, "the emptied cache still looks like a cache")
	assert.NotEmpty(t, cache.ItemsCollected)

	res = h.act(t, interact("u-1", "g-1", 3, 2))
	assert.False(t, res.Success)
	assert.Equal(t, "already_looted", res.Reason)
	assert.Equal(t, "only dust remains", res.Message)

	live = h.game(t, "u-1", "g-1")
	assert.Len(t, live.Player.Inventory, 1, "the cache never pays twice")
}

func TestInteract_PicksUpLooseItems(t *testing.T) {
	h := newHarness(t)
	gs := flatState("g-1", "u-1")
	gs.Player.Inventory = append(gs.Player.Inventory, healingDraught("potion-1", 10))
	h.seed(t, gs)

	h.act(t, &engine.ActionRequest{
		UserID: "u-1", GameID: "g-1",
		Action: entities.ActionNameDropItem,
		Params: map[string]any{"item_id": "potion-1"},
	})

	res := h.act(t, interact("u-1", "g-1", 2, 2))
	require.True(t, res.Success)
	assert.Equal(t, "picked up what was lying there", res.Message)
	requireEvent(t, res, "picks up Healing Draught")
	assert.Equal(t, 1, res.ImpactSummary["items_found"])

	live := h.game(t, "u-1", "g-1")
	require.NotNil(t, live.Player.ItemByID("potion-1"))
	assert.Empty(t, live.CurrentMap.TileAt(2, 2).Items)

	// The undo token still points at the tile, but the pickup emptied
	// it; the undo reports the token dead instead of double-granting.
	undo := h.act(t, &engine.ActionRequest{
		UserID: "u-1", GameID: "g-1",
		Action: entities.ActionNameUndoDropItem,
	})
	assert.False(t, undo.Success)
	assert.Equal(t, entities.ErrUndoTokenInvalid, undo.ErrorCode)
	assert.Equal(t, "the item is no longer there", undo.Message)

	live = h.game(t, "u-1", "g-1")
	assert.Nil(t, live.DropUndo)
	assert.Len(t, live.Player.Inventory, 1, "the failed undo must not duplicate the draught")
}

func TestInteract_StoryEventAdvancesQuest(t *testing.T) {
	h := newHarness(t)
	gs := flatState("g-1", "u-1")
	gs.Quests = append(gs.Quests, &entities.Quest{
		ID:        "q-1",
		Title:     "The Hollow Crown",
		QuestType: "main",
		IsActive:  true,
		SpecialEvents: []*entities.QuestEvent{{
			ID:            "ev-1",
			Name:          "The Warden's Seal",
			EventType:     entities.EventStory,
			IsMandatory:   true,
			ProgressValue: 15,
		}},
	})
	tile := gs.CurrentMap.TileAt(2, 3)
	tile.HasEvent = true
	tile.EventType = entities.EventStory
	tile.EventData = map[string]any{"quest_event_id": "ev-1"}
	h.seed(t, gs)

	res := h.act(t, interact("u-1", "g-1", 2, 3))
	require.True(t, res.Success)
	assert.Equal(t, "The Warden's Seal", res.Message, "the quest event lends the result its name")
	requireEvent(t, res, "Something stirs in the gloom")

	live := h.game(t, "u-1", "g-1")
	quest := live.ActiveQuest()
	require.NotNil(t, quest)
	require.Len(t, quest.SpecialEvents, 1)
	assert.True(t, quest.SpecialEvents[0].IsTriggered)
	assert.GreaterOrEqual(t, quest.ProgressPercentage, float64(15))
	assert.True(t, live.CurrentMap.TileAt(2, 3).EventTriggered)

	res = h.act(t, interact("u-1", "g-1", 2, 3))
	assert.False(t, res.Success)
	assert.Equal(t, "nothing_to_interact", res.Reason, "a spent story tile goes quiet")
}

func TestInteract_Guards(t *testing.T) {
	h := newHarness(t)
	h.seed(t, flatState("g-1", "u-1"))

	res := h.act(t, interact("u-1", "g-1", 5, 2))
	assert.False(t, res.Success)
	assert.Equal(t, "out_of_reach", res.Reason)

	res = h.act(t, &engine.ActionRequest{
		UserID: "u-1", GameID: "g-1",
		Action: entities.ActionNameInteract,
	})
	assert.False(t, res.Success)
	assert.Equal(t, "nothing_to_interact", res.Reason)
	assert.Equal(t, "nothing responds", res.Message)
}
