package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/services/mapgen"
)

func metaCode(t *testing.T, err error) string {
	t.Helper()
	code, _ := errors.GetMeta(err)["error_code"].(string)
	return code
}

func TestParseEnvelope_IgnoresUnknownTopLevelKeys(t *testing.T) {
	env, err := parseEnvelope([]byte(`{"narrative": "the dark leans in", "telemetry": {"tokens": 512}}`))
	require.NoError(t, err)
	assert.Equal(t, "the dark leans in", env.Narrative)
}

func TestParseEnvelope_RejectsMalformedJSON(t *testing.T) {
	_, err := parseEnvelope([]byte(`narrative: yes`))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestPlayerUpdates_CarriesOnlyContractSubkeys(t *testing.T) {
	env, err := parseEnvelope([]byte(`{
		"player_updates": {
			"stats": {"max_hp": 40},
			"abilities": {"strength": 14},
			"add_items": [{"id": "itm-1", "name": "Torch", "item_type": "trinket"}],
			"remove_items": ["itm-9"],
			"gold": 500
		}
	}`))
	require.NoError(t, err)

	upd := env.PlayerUpdates()
	require.NotNil(t, upd)
	assert.Equal(t, float64(40), upd.Stats["max_hp"])
	assert.Equal(t, float64(14), upd.Abilities["strength"])
	require.Len(t, upd.AddItems, 1)
	assert.Equal(t, "Torch", upd.AddItems[0].Name)
	assert.Equal(t, []string{"itm-9"}, upd.RemoveItems)

	assert.Equal(t, []string{"gold"}, env.DroppedPlayerUpdateKeys())
}

func TestPlayerUpdates_NilWhenAbsent(t *testing.T) {
	env, err := parseEnvelope([]byte(`{"narrative": "quiet"}`))
	require.NoError(t, err)
	assert.Nil(t, env.PlayerUpdates())
}

func TestPatchBatch_BuildsBatch(t *testing.T) {
	env, err := parseEnvelope([]byte(`{
		"patches": [{
			"id": "p1",
			"op": "update",
			"target": "tile",
			"tile": "3,4",
			"payload": {"terrain": "floor"},
			"risk_level": "low",
			"intent_reason": "widen the corridor"
		}],
		"patch_batch_id": "b1",
		"patch_rollback_mode": "full",
		"patch_depends_on_batch": "b0"
	}`))
	require.NoError(t, err)

	batch, err := env.PatchBatch()
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Equal(t, "b1", batch.BatchID)
	assert.Equal(t, "full", batch.RollbackMode)
	assert.Equal(t, "b0", batch.DependsOnBatch)
	require.Len(t, batch.Patches, 1)
	patch := batch.Patches[0]
	assert.Equal(t, "p1", patch.ID)
	assert.Equal(t, "update", patch.Op)
	assert.Equal(t, "tile", patch.Target)
	assert.Equal(t, "3,4", patch.Tile)
	assert.Equal(t, "floor", patch.Payload["terrain"])
	assert.Equal(t, "low", patch.RiskLevel)
}

func TestPatchBatch_NilWhenNoPatches(t *testing.T) {
	env, err := parseEnvelope([]byte(`{"narrative": "still"}`))
	require.NoError(t, err)
	batch, err := env.PatchBatch()
	require.NoError(t, err)
	assert.Nil(t, batch)
}

func TestPatchBatch_Violations(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{
			name: "unauthorized field",
			body: `{"patches": [{"id": "p1", "op": "add", "target": "tile", "surprise": true}]}`,
			code: entities.ErrPatchBatchFieldError,
		},
		{
			name: "non-string id",
			body: `{"patches": [{"id": 7, "op": "add", "target": "tile"}]}`,
			code: entities.ErrPatchBatchTypeError,
		},
		{
			name: "payload not an object",
			body: `{"patches": [{"id": "p1", "op": "add", "target": "tile", "payload": [1, 2]}]}`,
			code: entities.ErrPatchBatchTypeError,
		},
		{
			name: "missing op",
			body: `{"patches": [{"id": "p1", "target": "tile"}]}`,
			code: entities.ErrPatchBatchFieldError,
		},
		{
			name: "missing target",
			body: `{"patches": [{"id": "p1", "op": "add"}]}`,
			code: entities.ErrPatchBatchFieldError,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env, err := parseEnvelope([]byte(tc.body))
			require.NoError(t, err)
			_, err = env.PatchBatch()
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Equal(t, tc.code, metaCode(t, err))
		})
	}
}

func TestPatchBatch_AssignsMissingIDs(t *testing.T) {
	env, err := parseEnvelope([]byte(`{"patches": [{"op": "add", "target": "event", "tile": "1,1"}]}`))
	require.NoError(t, err)
	batch, err := env.PatchBatch()
	require.NoError(t, err)
	assert.Equal(t, "patch-1", batch.Patches[0].ID)
}

func planInput() *mapgen.GenerateInput {
	return &mapgen.GenerateInput{Depth: 2, MaxFloor: 3, Width: 8, Height: 6}
}

func staticID() func() string {
	return func() string { return "map-1" }
}

func TestBuildMap_MaterializesFloor(t *testing.T) {
	env, err := parseEnvelope([]byte(`{
		"map": {
			"name": "The Felled Hall",
			"floor_theme": "ruin",
			"tiles": {
				"1,1": {"terrain": "floor", "room_id": "r0", "room_type": "entrance"},
				"2,1": {"terrain": "stairs_up"},
				"3,4": {"terrain": "stairs_down"},
				"2,2": {"terrain": "floor", "has_event": true, "event_type": "story",
					"event_data": {"quest_event_id": "ev-1"}, "is_event_hidden": true},
				"4,4": {"terrain": "floor", "items": [{"id": "i1", "name": "Coin", "item_type": "trinket"}]}
			}
		}
	}`))
	require.NoError(t, err)

	m, err := env.BuildMap(planInput(), staticID())
	require.NoError(t, err)

	assert.Equal(t, "map-1", m.ID)
	assert.Equal(t, "The Felled Hall", m.Name)
	assert.Equal(t, "ruin", m.FloorTheme)
	assert.Equal(t, 8, m.Width)
	assert.Equal(t, 6, m.Height)
	assert.Equal(t, 2, m.Depth)
	assert.Equal(t, 3, m.MaxFloor)

	// Unnamed tiles default to walls.
	assert.Equal(t, entities.TerrainWall, m.TileAt(0, 0).Terrain)

	assert.Equal(t, entities.TerrainFloor, m.TileAt(1, 1).Terrain)
	assert.Equal(t, "r0", m.TileAt(1, 1).RoomID)
	assert.Equal(t, entities.TerrainStairsUp, m.TileAt(2, 1).Terrain)
	assert.Equal(t, entities.TerrainStairsDown, m.TileAt(3, 4).Terrain)

	event := m.TileAt(2, 2)
	assert.True(t, event.HasEvent)
	assert.Equal(t, entities.EventStory, event.EventType)
	assert.True(t, event.IsEventHidden)
	assert.Equal(t, "ev-1", event.EventData["quest_event_id"])

	require.Len(t, m.TileAt(4, 4).Items, 1)
	assert.Equal(t, "Coin", m.TileAt(4, 4).Items[0].Name)
}

func TestBuildMap_DefaultsNameAndDims(t *testing.T) {
	env, err := parseEnvelope([]byte(`{"map": {"tiles": {"1,1": {"terrain": "floor"}}}}`))
	require.NoError(t, err)
	m, err := env.BuildMap(planInput(), staticID())
	require.NoError(t, err)
	assert.Equal(t, "Floor 2", m.Name)
	assert.Equal(t, 8, m.Width)
	assert.Equal(t, 6, m.Height)
}

func TestBuildMap_Violations(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{
			name: "no map block",
			body: `{"narrative": "nothing"}`,
			code: entities.ErrMapUpdatesContractTypeError,
		},
		{
			name: "exploration state rejected at construction",
			body: `{"map": {"tiles": {"1,1": {"terrain": "floor", "is_explored": true}}}}`,
			code: entities.ErrMapUpdatesUnauthorizedField,
		},
		{
			name: "monster placement rejected at construction",
			body: `{"map": {"tiles": {"1,1": {"terrain": "floor", "monster": {"action": "add", "id": "m1"}}}}}`,
			code: entities.ErrMapUpdatesUnauthorizedField,
		},
		{
			name: "unknown tile field",
			body: `{"map": {"tiles": {"1,1": {"terrain": "floor", "loot_multiplier": 3}}}}`,
			code: entities.ErrMapUpdatesUnauthorizedField,
		},
		{
			name: "invalid terrain",
			body: `{"map": {"tiles": {"1,1": {"terrain": "lava"}}}}`,
			code: entities.ErrMapUpdatesContractTypeError,
		},
		{
			name: "invalid event type",
			body: `{"map": {"tiles": {"1,1": {"terrain": "floor", "event_type": "ambush"}}}}`,
			code: entities.ErrMapUpdatesContractTypeError,
		},
		{
			name: "event data not an object",
			body: `{"map": {"tiles": {"1,1": {"terrain": "floor", "event_data": "soon"}}}}`,
			code: entities.ErrMapUpdatesContractTypeError,
		},
		{
			name: "tile out of bounds",
			body: `{"map": {"tiles": {"9,9": {"terrain": "floor"}}}}`,
			code: entities.ErrMapUpdatesContractTypeError,
		},
		{
			name: "malformed tile key",
			body: `{"map": {"tiles": {"a,b": {"terrain": "floor"}}}}`,
			code: entities.ErrMapUpdatesContractTypeError,
		},
		{
			name: "oversized dimensions",
			body: `{"map": {"width": 500, "height": 500, "tiles": {}}}`,
			code: entities.ErrMapUpdatesContractTypeError,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env, err := parseEnvelope([]byte(tc.body))
			require.NoError(t, err)
			_, err = env.BuildMap(planInput(), staticID())
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Equal(t, tc.code, metaCode(t, err))
		})
	}
}

func TestItemEffect_CollectsContractKeys(t *testing.T) {
	env, err := parseEnvelope([]byte(`{
		"narrative": "it hums",
		"effect_scope": "self",
		"effects": {
			"special_effects": [
				{"name": "Ember Heart", "effect_type": "buff", "duration_turns": 3,
					"modifiers": {"ac.status": 1}},
				{"effect_type": "buff"},
				"not an effect"
			],
			"mana_burn": 5
		},
		"hint_level": "clear",
		"trigger_hint": "warmth",
		"risk_hint": "low",
		"expected_outcomes": ["minor protection"],
		"requires_use_confirmation": true,
		"consumption_hint": "consumed",
		"player_updates": {"stats": {"max_hp": 32}}
	}`))
	require.NoError(t, err)

	eff := env.ItemEffect()
	assert.Equal(t, "it hums", eff.Narrative)
	assert.Equal(t, "self", eff.EffectScope)
	require.Len(t, eff.SpecialEffects, 1, "nameless and malformed entries are dropped")
	assert.Equal(t, "Ember Heart", eff.SpecialEffects[0].Name)
	assert.Equal(t, 3, eff.SpecialEffects[0].DurationTurns)
	assert.Equal(t, "clear", eff.HintLevel)
	assert.Equal(t, "warmth", eff.TriggerHint)
	assert.Equal(t, "low", eff.RiskHint)
	assert.Equal(t, []string{"minor protection"}, eff.ExpectedOutcomes)
	assert.True(t, eff.RequiresUseConfirmation)
	assert.Equal(t, "consumed", eff.ConsumptionHint)
	require.NotNil(t, eff.PlayerUpdates)
	assert.Equal(t, float64(32), eff.PlayerUpdates.Stats["max_hp"])
}

func TestQuestRefresh_MapsContractKeys(t *testing.T) {
	env, err := parseEnvelope([]byte(`{
		"story_context": "the seal weakens",
		"llm_notes": "keep the warden ominous",
		"should_complete": true,
		"new_objectives": ["reach the sanctum"],
		"narrative_update": "Dust sifts from the ceiling."
	}`))
	require.NoError(t, err)

	refresh := env.QuestRefresh()
	assert.Equal(t, "the seal weakens", refresh.StoryContext)
	assert.Equal(t, "keep the warden ominous", refresh.LLMNotes)
	assert.True(t, refresh.ShouldComplete)
	assert.Equal(t, []string{"reach the sanctum"}, refresh.NewObjectives)
	assert.Equal(t, "Dust sifts from the ceiling.", refresh.NarrativeUpdate)
}

func TestItemList_DropsMalformedEntries(t *testing.T) {
	env, err := parseEnvelope([]byte(`{
		"items": [
			{"name": "Waxed Rope", "item_type": "trinket"},
			{"description": "nameless"},
			"just a string",
			{"name": "Unlabeled Vial"}
		]
	}`))
	require.NoError(t, err)

	items := env.ItemList()
	require.Len(t, items, 2)
	assert.Equal(t, "Waxed Rope", items[0].Name)
	assert.Equal(t, "trinket", items[0].ItemType)
	assert.Equal(t, "consumable", items[1].ItemType, "missing item_type defaults to consumable")
}
