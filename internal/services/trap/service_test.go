package trap_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mockdice "github.com/labyrinthia/engine/internal/dice/mock"
	"github.com/labyrinthia/engine/internal/effects"
	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/services/state"
	"github.com/labyrinthia/engine/internal/services/trap"
)

func testNow() time.Time {
	return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
}

// trapState builds a game on an open grid with the player at (1,1) and
// a trap tile at (2,2).
func trapState(eventData map[string]any) (*entities.GameState, *entities.MapTile) {
	gs := entities.NewGameState("game-1", "user-1", testNow())

	m := &entities.GameMap{
		ID: "map-1", Width: 8, Height: 8, Depth: 2, MaxFloor: 3,
		Tiles: make(map[string]*entities.MapTile),
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			m.SetTile(&entities.MapTile{X: x, Y: y, Terrain: entities.TerrainFloor})
		}
	}
	m.TileAt(0, 0).Terrain = entities.TerrainStairsUp
	m.TileAt(7, 7).Terrain = entities.TerrainStairsDown
	gs.CurrentMap = m

	player := entities.NewEntity("player-1", "Aldric", entities.KindPlayer)
	player.SetAbilityScore(entities.AbilityDex, 14) // +2
	player.SetAbilityScore(entities.AbilityWis, 14) // +2
	player.Stats.HP = 30
	player.Stats.MaxHP = 30
	player.Position = entities.Position{X: 1, Y: 1}
	m.TileAt(1, 1).CharacterID = player.ID
	gs.Player = player

	tile := m.TileAt(2, 2)
	tile.Terrain = entities.TerrainTrap
	tile.HasEvent = true
	tile.EventType = entities.EventTrap
	tile.IsEventHidden = true
	tile.EventData = eventData
	return gs, tile
}

func newTrapService(roller *mockdice.ManualMockRoller) trap.Service {
	return trap.NewService(&trap.ServiceConfig{
		StateService: state.NewService(&state.ServiceConfig{}),
		Effects:      effects.NewEngine(nil),
		Roller:       roller,
	})
}

func TestTrapAt_DecodesEventData(t *testing.T) {
	_, tile := trapState(map[string]any{
		"name":            "Poison Dart Trap",
		"description":     "A seam in the wall hides a dart launcher.",
		"trap_type":       "debuff",
		"detect_dc":       14,
		"disarm_dc":       15,
		"save_dc":         13,
		"damage":          "2d4",
		"damage_type":     "poison",
		"duration_turns":  3,
		"damage_per_turn": 2.0,
		"modifiers":       map[string]any{"speed": -10.0},
		"teleport_to":     map[string]any{"x": 5, "y": 5},
	})

	svc := newTrapService(mockdice.NewManualMockRoller())
	tr := svc.TrapAt(tile)
	require.NotNil(t, tr)

	assert.Equal(t, "Poison Dart Trap", tr.Name)
	assert.Equal(t, trap.TrapDebuff, tr.TrapType)
	assert.Equal(t, 14, tr.DetectDC)
	assert.Equal(t, 15, tr.DisarmDC)
	assert.Equal(t, 13, tr.SaveDC)
	assert.Equal(t, "2d4", tr.Damage)
	assert.Equal(t, "poison", tr.DamageType)
	assert.Equal(t, 3, tr.DurationTurns)
	assert.Equal(t, 2.0, tr.DamagePerTurn)
	assert.Equal(t, map[string]float64{"speed": -10}, tr.Modifiers)
	require.NotNil(t, tr.Destination)
	assert.Equal(t, 5, tr.Destination.X)
	assert.Equal(t, "trap:poison_dart_trap", tr.SourceKey())
}

func TestTrapAt_DefaultsAndSpentTiles(t *testing.T) {
	svc := newTrapService(mockdice.NewManualMockRoller())

	// Bare trap terrain, no event data: playable defaults.
	gs, tile := trapState(nil)
	tr := svc.TrapAt(tile)
	require.NotNil(t, tr)
	assert.Equal(t, "Hidden Trap", tr.Name)
	assert.Equal(t, trap.TrapDamage, tr.TrapType)
	assert.Equal(t, 12, tr.DetectDC)

	// Disarmed and triggered tiles hold no live trap.
	tile.TrapDisarmed = true
	assert.Nil(t, svc.TrapAt(tile))
	tile.TrapDisarmed = false
	tile.EventTriggered = true
	assert.Nil(t, svc.TrapAt(tile))

	// A plain floor tile is not a trap.
	assert.Nil(t, svc.TrapAt(gs.CurrentMap.TileAt(3, 3)))
	assert.Nil(t, svc.TrapAt(nil))
}

func TestDetect_ActiveRoll(t *testing.T) {
	gs, tile := trapState(map[string]any{"detect_dc": 14})

	// 10 + wis 2 + perception prof 2 = 14: exactly the DC.
	gs.Player.SkillProficiencies = []string{"perception"}
	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{10})
	svc := newTrapService(roller)

	result, err := svc.Detect(gs, tile, false)
	require.NoError(t, err)
	assert.Equal(t, trap.OutcomeDetected, result.Outcome)
	assert.True(t, tile.TrapDetected)
	require.NotNil(t, result.Check)
	assert.Equal(t, 14, result.Check.Total)
}

func TestDetect_ActiveMiss(t *testing.T) {
	gs, tile := trapState(map[string]any{"detect_dc": 14})

	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{5}) // 5 + wis 2 = 7
	svc := newTrapService(roller)

	result, err := svc.Detect(gs, tile, false)
	require.NoError(t, err)
	assert.Equal(t, trap.OutcomeMissed, result.Outcome)
	assert.False(t, tile.TrapDetected)
}

func TestDetect_PassiveUsesNoRoll(t *testing.T) {
	gs, tile := trapState(map[string]any{"detect_dc": 12})

	// Passive perception 10 + wis 2 = 12; the empty roller proves no
	// die was consumed.
	svc := newTrapService(mockdice.NewManualMockRoller())
	result, err := svc.Detect(gs, tile, true)
	require.NoError(t, err)
	assert.Equal(t, trap.OutcomeDetected, result.Outcome)
	assert.True(t, tile.TrapDetected)

	// Against a higher DC the same passive score misses.
	gs2, tile2 := trapState(map[string]any{"detect_dc": 13})
	result, err = newTrapService(mockdice.NewManualMockRoller()).Detect(gs2, tile2, true)
	require.NoError(t, err)
	assert.Equal(t, trap.OutcomeMissed, result.Outcome)
	assert.False(t, tile2.TrapDetected)
}

func TestDisarm_RequiresDetection(t *testing.T) {
	gs, tile := trapState(nil)
	svc := newTrapService(mockdice.NewManualMockRoller())

	_, err := svc.Disarm(context.Background(), gs, tile)
	assert.Error(t, err)
}

func TestDisarm_Success(t *testing.T) {
	gs, tile := trapState(map[string]any{"name": "Spike Pit", "disarm_dc": 13})
	tile.TrapDetected = true

	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{11}) // 11 + dex 2 = 13
	svc := newTrapService(roller)

	result, err := svc.Disarm(context.Background(), gs, tile)
	require.NoError(t, err)
	assert.Equal(t, trap.OutcomeDisarmed, result.Outcome)
	assert.True(t, tile.TrapDisarmed)
	assert.True(t, tile.EventTriggered)
	assert.NotEmpty(t, result.Narrative)

	// A disarmed trap no longer resolves.
	assert.Nil(t, svc.TrapAt(tile))
}

func TestDisarm_PlainFailureLeavesTrapArmed(t *testing.T) {
	gs, tile := trapState(map[string]any{"disarm_dc": 18})
	tile.TrapDetected = true

	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{10}) // 12 < 18
	svc := newTrapService(roller)

	result, err := svc.Disarm(context.Background(), gs, tile)
	require.NoError(t, err)
	assert.Equal(t, trap.OutcomeDisarmFailed, result.Outcome)
	assert.False(t, tile.TrapDisarmed)
	assert.False(t, tile.EventTriggered)
	require.NotNil(t, svc.TrapAt(tile))
}

func TestDisarm_CriticalFailureSpringsTrap(t *testing.T) {
	gs, tile := trapState(map[string]any{"damage": "2d4", "save_dc": 14})
	tile.TrapDetected = true

	roller := mockdice.NewManualMockRoller()
	// disarm nat 1, then save 5 (7 < 14, fail), then 2d4 damage 3+4.
	roller.SetRolls([]int{1, 5, 3, 4})
	svc := newTrapService(roller)

	result, err := svc.Disarm(context.Background(), gs, tile)
	require.NoError(t, err)
	assert.Equal(t, trap.OutcomeTriggered, result.Outcome)
	assert.Equal(t, 7, result.Damage)
	assert.Equal(t, 23, gs.Player.Stats.HP)
	assert.True(t, tile.EventTriggered)
	assert.Contains(t, result.Events[0], "fumbles")
}

func TestTrigger_DamageTrapFullAndHalved(t *testing.T) {
	t.Run("failed save takes full damage", func(t *testing.T) {
		gs, tile := trapState(map[string]any{"damage": "2d6+2", "save_dc": 14, "damage_type": "piercing"})

		roller := mockdice.NewManualMockRoller()
		roller.SetRolls([]int{5, 4, 6}) // save 7 fail; damage 4+6+2 = 12
		svc := newTrapService(roller)

		result, err := svc.Trigger(context.Background(), gs, tile)
		require.NoError(t, err)
		assert.Equal(t, trap.OutcomeTriggered, result.Outcome)
		assert.Equal(t, 12, result.Damage)
		assert.Equal(t, 18, gs.Player.Stats.HP)
		assert.True(t, tile.EventTriggered)
		assert.True(t, tile.TrapDetected, "a sprung trap is no longer hidden")
		assert.NotEmpty(t, result.Narrative)
	})

	t.Run("successful save halves damage", func(t *testing.T) {
		gs, tile := trapState(map[string]any{"damage": "2d6+2", "save_dc": 14})

		roller := mockdice.NewManualMockRoller()
		roller.SetRolls([]int{18, 4, 6}) // save 20 ok; 12 halved to 6
		svc := newTrapService(roller)

		result, err := svc.Trigger(context.Background(), gs, tile)
		require.NoError(t, err)
		assert.Equal(t, trap.OutcomeTriggered, result.Outcome)
		assert.Equal(t, 6, result.Damage)
		assert.Equal(t, 24, gs.Player.Stats.HP)
	})
}

func TestTrigger_DefaultDamageScalesWithDepth(t *testing.T) {
	gs, tile := trapState(nil) // depth 2 -> 1d6+2

	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{3, 4}) // save 5 fail; 4+2 = 6
	svc := newTrapService(roller)

	result, err := svc.Trigger(context.Background(), gs, tile)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Damage)
}

func TestTrigger_DebuffAppliesStatusEffect(t *testing.T) {
	gs, tile := trapState(map[string]any{
		"name":            "Poison Dart",
		"trap_type":       "debuff",
		"save_dc":         14,
		"duration_turns":  3,
		"damage_per_turn": 2.0,
		"damage_type":     "poison",
		"modifiers":       map[string]any{"speed": -10.0},
	})

	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{5}) // save fails
	svc := newTrapService(roller)

	result, err := svc.Trigger(context.Background(), gs, tile)
	require.NoError(t, err)
	assert.Equal(t, trap.OutcomeTriggered, result.Outcome)

	require.Len(t, gs.Player.ActiveEffects, 1)
	eff := gs.Player.ActiveEffects[0]
	assert.Equal(t, "Poison Dart", eff.Name)
	assert.Equal(t, "debuff", eff.EffectType)
	assert.Equal(t, 3, eff.DurationTurns)
	assert.Equal(t, 2.0, eff.DamagePerTurn)
	assert.Equal(t, "trap:poison_dart", eff.SourceKey)
	assert.Equal(t, 20, gs.Player.Stats.Speed, "speed debuff applied")
}

func TestTrigger_SaveNegatesNonDamageTraps(t *testing.T) {
	gs, tile := trapState(map[string]any{"trap_type": "restraint", "save_dc": 10})

	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{15}) // 17 >= 10
	svc := newTrapService(roller)

	result, err := svc.Trigger(context.Background(), gs, tile)
	require.NoError(t, err)
	assert.Equal(t, trap.OutcomeAvoided, result.Outcome)
	assert.Empty(t, gs.Player.ActiveEffects)
	assert.True(t, tile.EventTriggered, "an avoided trap is still spent")
}

func TestTrigger_RestraintBlocksMovement(t *testing.T) {
	gs, tile := trapState(map[string]any{"name": "Snare", "trap_type": "restraint", "save_dc": 14})

	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{3})
	svc := newTrapService(roller)

	_, err := svc.Trigger(context.Background(), gs, tile)
	require.NoError(t, err)

	require.Len(t, gs.Player.ActiveEffects, 1)
	eff := gs.Player.ActiveEffects[0]
	assert.Equal(t, "restraint", eff.EffectType)
	assert.Equal(t, 2, eff.DurationTurns)
	assert.True(t, eff.Blocks(entities.ActionMove))

	avail := effects.NewEngine(nil).ActionAvailability(gs.Player)
	assert.False(t, avail.CanMove)
	assert.True(t, avail.CanAttack)
}

func TestTrigger_TeleportMovesPlayer(t *testing.T) {
	gs, tile := trapState(map[string]any{
		"trap_type":   "teleport",
		"save_dc":     14,
		"teleport_to": map[string]any{"x": 5, "y": 5},
	})

	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{3})
	svc := newTrapService(roller)

	_, err := svc.Trigger(context.Background(), gs, tile)
	require.NoError(t, err)

	assert.Equal(t, entities.Position{X: 5, Y: 5}, gs.Player.Position)
	assert.Empty(t, gs.CurrentMap.TileAt(1, 1).CharacterID)
	dest := gs.CurrentMap.TileAt(5, 5)
	assert.Equal(t, gs.Player.ID, dest.CharacterID)
	assert.True(t, dest.IsExplored)
	assert.True(t, dest.IsVisible)
}

func TestTrigger_TeleportFallsBackToStairs(t *testing.T) {
	gs, tile := trapState(map[string]any{
		"trap_type":   "teleport",
		"save_dc":     14,
		"teleport_to": map[string]any{"x": 99, "y": 99}, // out of bounds
	})

	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{3})
	svc := newTrapService(roller)

	_, err := svc.Trigger(context.Background(), gs, tile)
	require.NoError(t, err)

	// Stairs-up at (0,0): the nearest open tile in its neighborhood.
	assert.Equal(t, entities.Position{X: 0, Y: 0}, gs.Player.Position)
}

func TestTrigger_AlarmDrawsMonsters(t *testing.T) {
	gs, tile := trapState(map[string]any{"name": "Tripwire Bell", "trap_type": "alarm"})

	near := entities.NewEntity("mon-near", "Gnawing Rat", entities.KindMonster)
	near.Position = entities.Position{X: 6, Y: 6}
	gs.CurrentMap.TileAt(6, 6).CharacterID = near.ID

	far := entities.NewEntity("mon-far", "Distant Thing", entities.KindMonster)
	far.Position = entities.Position{X: 7, Y: 0} // chebyshev 6 from (1,1); moves too
	gs.CurrentMap.TileAt(7, 0).CharacterID = far.ID
	gs.Monsters = []*entities.Entity{near, far}

	// No save roll for alarms: the empty roller proves it.
	svc := newTrapService(mockdice.NewManualMockRoller())

	result, err := svc.Trigger(context.Background(), gs, tile)
	require.NoError(t, err)
	assert.Equal(t, trap.OutcomeTriggered, result.Outcome)
	assert.Nil(t, result.Check)

	// Two greedy steps toward (1,1) from (6,6) lands on (4,4).
	assert.Equal(t, entities.Position{X: 4, Y: 4}, near.Position)
	assert.Equal(t, near.ID, gs.CurrentMap.TileAt(4, 4).CharacterID)
	assert.Empty(t, gs.CurrentMap.TileAt(6, 6).CharacterID)

	events := gs.DrainPendingEvents()
	require.Len(t, events, 1)
	assert.Contains(t, events[0], "alarm")
}

type failingNarrator struct{}

func (failingNarrator) TrapNarrative(context.Context, *entities.GameState, *trap.Result) (string, error) {
	return "", assert.AnError
}

func TestNarratorFailureFallsBackToLocalText(t *testing.T) {
	gs, tile := trapState(map[string]any{"damage": "1d4", "save_dc": 14})

	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{3, 2})
	svc := trap.NewService(&trap.ServiceConfig{
		StateService: state.NewService(&state.ServiceConfig{}),
		Effects:      effects.NewEngine(nil),
		Roller:       roller,
		Narrator:     failingNarrator{},
	})

	result, err := svc.Trigger(context.Background(), gs, tile)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Narrative, "local fallback narration kicks in")
	assert.Contains(t, result.Narrative, "Hidden Trap")
}

func TestTrigger_NoTrapOnTile(t *testing.T) {
	gs, _ := trapState(nil)
	svc := newTrapService(mockdice.NewManualMockRoller())

	_, err := svc.Trigger(context.Background(), gs, gs.CurrentMap.TileAt(3, 3))
	assert.Error(t, err)
}
