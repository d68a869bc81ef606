package effects_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinthia/engine/internal/effects"
	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/uuid"
)

func testNow() time.Time {
	return time.Date(2026, 2, 24, 12, 0, 0, 0, time.UTC)
}

func newTestEngine() *effects.Engine {
	return effects.NewEngine(&effects.EngineConfig{
		IDGenerator: uuid.NewSequentialGenerator("eff"),
	})
}

func newBearer() *entities.Entity {
	hero := entities.NewEntity("hero-1", "Mira", entities.KindPlayer)
	hero.Stats.HP = 30
	hero.Stats.MaxHP = 30
	return hero
}

func flameBrand() *entities.Item {
	return &entities.Item{
		ID:           "itm-brand",
		Name:         "Flame Brand",
		ItemType:     "weapon",
		IsEquippable: true,
		EquipSlot:    entities.SlotMainHand,
		EquipPassiveEffects: []*entities.StatModifier{
			{Key: "attack_bonus", Value: 1},
			{Key: "damage_bonus", Value: 2},
		},
		Affixes: []*entities.ItemAffix{
			{
				ID:   "afx-ember",
				Name: "Ember",
				Modifiers: []*entities.StatModifier{
					{Key: "resist.fire", Value: 0.25},
				},
			},
		},
	}
}

func TestEngine_ApplyEquipmentEffects(t *testing.T) {
	engine := newTestEngine()
	hero := newBearer()
	item := flameBrand()

	trace, err := engine.ApplyEquipmentEffects(hero, item, entities.SlotMainHand)
	require.NoError(t, err)
	require.Len(t, trace, 3)

	assert.Equal(t, 1.0, hero.CombatRuntime.AttackBonus)
	assert.Equal(t, 2.0, hero.CombatRuntime.DamageBonus)
	assert.Equal(t, 0.25, hero.Resistances["fire"])

	// passives at stage 20 precede the affix at stage 30
	assert.Equal(t, entities.StageEquipPassive, trace[0].Stage)
	assert.Equal(t, entities.StageAffix, trace[2].Stage)
	assert.Equal(t, "resist.fire", trace[2].Key)
	assert.Equal(t, "equip:main_hand:itm-brand", trace[2].Source)

	t.Run("double apply is rejected", func(t *testing.T) {
		_, err := engine.ApplyEquipmentEffects(hero, item, entities.SlotMainHand)
		require.Error(t, err)
		assert.True(t, errors.IsAlreadyExists(err))
	})
}

func TestEngine_RevertEffectsBySource_RestoresExactState(t *testing.T) {
	engine := newTestEngine()
	hero := newBearer()
	hero.SetAbilityScore(entities.AbilityStr, 28)

	item := &entities.Item{
		ID:           "itm-girdle",
		Name:         "Girdle of Might",
		ItemType:     "armor",
		IsEquippable: true,
		EquipSlot:    entities.SlotBody,
		EquipPassiveEffects: []*entities.StatModifier{
			{Key: "max_hp", Value: 12},
			{Key: "ac.armor", Value: 3},
			// clamps at 30: recorded delta must be the applied +2
			{Key: "ability.str", Value: 5},
		},
	}

	wantMaxHP := hero.Stats.MaxHP
	wantAC := hero.ACEffective()

	_, err := engine.ApplyEquipmentEffects(hero, item, entities.SlotBody)
	require.NoError(t, err)
	str, _ := hero.Abilities.Get(entities.AbilityStr)
	assert.Equal(t, 30, str)
	assert.Equal(t, wantMaxHP+12, hero.Stats.MaxHP)

	_, err = engine.RevertEffectsBySource(hero, effects.EquipSourceKey(entities.SlotBody, item.ID))
	require.NoError(t, err)

	str, _ = hero.Abilities.Get(entities.AbilityStr)
	assert.Equal(t, 28, str, "clamped ability delta reverts to the original score")
	assert.Equal(t, wantMaxHP, hero.Stats.MaxHP)
	assert.Equal(t, wantAC, hero.ACEffective())
	assert.Empty(t, hero.ActiveEffects)
}

func TestEngine_RevertEffectsBySource_ClampsVitals(t *testing.T) {
	engine := newTestEngine()
	hero := newBearer()

	item := &entities.Item{
		ID:           "itm-heart",
		Name:         "Heartstone",
		ItemType:     "trinket",
		IsEquippable: true,
		EquipSlot:    entities.SlotAmulet,
		EquipPassiveEffects: []*entities.StatModifier{
			{Key: "max_hp", Value: 20},
		},
	}

	_, err := engine.ApplyEquipmentEffects(hero, item, entities.SlotAmulet)
	require.NoError(t, err)
	hero.Stats.HP = 50 // healed up to the boosted max

	_, err = engine.RevertEffectsBySource(hero, effects.EquipSourceKey(entities.SlotAmulet, item.ID))
	require.NoError(t, err)

	assert.Equal(t, 30, hero.Stats.MaxHP)
	assert.Equal(t, 30, hero.Stats.HP, "hp clamps back under the restored max")
}

func TestEngine_RevertEffectsBySource_UnknownSource(t *testing.T) {
	engine := newTestEngine()
	hero := newBearer()

	_, err := engine.RevertEffectsBySource(hero, "equip:main_hand:missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestEngine_SetBonusAppliesWithSecondPiece(t *testing.T) {
	engine := newTestEngine()
	hero := newBearer()

	thresholds := []*entities.SetThreshold{
		{Count: 2, Modifiers: []*entities.StatModifier{{Key: "ac.status", Value: 2}}},
	}
	helm := &entities.Item{
		ID: "itm-helm", Name: "Wolf Helm", ItemType: "armor",
		IsEquippable: true, EquipSlot: entities.SlotHead,
		SetID: "wolf", SetThresholds: thresholds,
	}
	chest := &entities.Item{
		ID: "itm-chest", Name: "Wolf Hide", ItemType: "armor",
		IsEquippable: true, EquipSlot: entities.SlotBody,
		SetID: "wolf", SetThresholds: thresholds,
	}

	_, err := engine.ApplyEquipmentEffects(hero, helm, entities.SlotHead)
	require.NoError(t, err)
	hero.EquippedItems[entities.SlotHead] = helm
	assert.Equal(t, 0, hero.Stats.ACComponents.Status, "one piece grants no set bonus")

	trace, err := engine.ApplyEquipmentEffects(hero, chest, entities.SlotBody)
	require.NoError(t, err)
	hero.EquippedItems[entities.SlotBody] = chest
	assert.Equal(t, 2, hero.Stats.ACComponents.Status)
	require.Len(t, trace, 1)
	assert.Equal(t, entities.StageSet, trace[0].Stage)

	// unequipping the second piece takes the set bonus with it
	_, err = engine.RevertEffectsBySource(hero, effects.EquipSourceKey(entities.SlotBody, chest.ID))
	require.NoError(t, err)
	assert.Equal(t, 0, hero.Stats.ACComponents.Status)
}

func TestEngine_ActionAvailability(t *testing.T) {
	engine := newTestEngine()
	hero := newBearer()

	avail := engine.ActionAvailability(hero)
	assert.True(t, avail.CanMove)
	assert.True(t, avail.CanAttack)
	assert.True(t, avail.CanCastSpell)
	assert.True(t, avail.CanUseItem)

	require.NoError(t, engine.ApplyStatusEffect(hero, &entities.StatusEffect{
		Name:           "Entangled",
		EffectType:     "restraint",
		DurationTurns:  2,
		BlockedActions: []string{entities.ActionMove, entities.ActionAttack},
	}))

	avail = engine.ActionAvailability(hero)
	assert.False(t, avail.CanMove)
	assert.False(t, avail.CanAttack)
	assert.True(t, avail.CanUseItem)
	require.Len(t, avail.BlockedActions[entities.ActionMove], 1)
	assert.Equal(t, hero.ActiveEffects[0].ID, avail.BlockedActions[entities.ActionMove][0])
}

func TestEngine_ProcessTurnEffects(t *testing.T) {
	engine := newTestEngine()
	state := entities.NewGameState("game-1", "user-1", testNow())
	hero := newBearer()
	state.Player = hero

	require.NoError(t, engine.ApplyStatusEffect(hero, &entities.StatusEffect{
		Name:          "Poison",
		EffectType:    "dot",
		DurationTurns: 2,
		DamagePerTurn: 3,
		DamageType:    "poison",
	}))
	require.NoError(t, engine.ApplyStatusEffect(hero, &entities.StatusEffect{
		Name:          "Weakness",
		EffectType:    "debuff",
		DurationTurns: 1,
		Modifiers:     map[string]float64{"ability.str": -2},
	}))
	str, _ := hero.Abilities.Get(entities.AbilityStr)
	require.Equal(t, 8, str)

	events := engine.ProcessTurnEffects(state, entities.HookOnTurnEnd)
	assert.Equal(t, 27, hero.Stats.HP)
	assert.NotEmpty(t, events)

	// weakness expired after one turn and reverted its modifier
	str, _ = hero.Abilities.Get(entities.AbilityStr)
	assert.Equal(t, 10, str)
	require.Len(t, hero.ActiveEffects, 1)
	assert.Equal(t, "Poison", hero.ActiveEffects[0].Name)
	assert.Equal(t, 1, hero.ActiveEffects[0].DurationTurns)

	events = engine.ProcessTurnEffects(state, entities.HookOnTurnEnd)
	assert.Equal(t, 24, hero.Stats.HP)
	assert.Empty(t, hero.ActiveEffects, "poison expired on its second tick")
	assert.NotEmpty(t, events)
}

func TestEngine_ProcessTurnEffects_CooldownTick(t *testing.T) {
	engine := newTestEngine()
	state := entities.NewGameState("game-1", "user-1", testNow())
	hero := newBearer()
	hero.Inventory = []*entities.Item{
		{ID: "itm-horn", Name: "War Horn", ItemType: "consumable", CooldownTurns: 3, CurrentCooldown: 2},
	}
	state.Player = hero

	engine.ProcessTurnEffects(state, entities.HookOnTurnEnd)
	assert.Equal(t, 1, hero.Inventory[0].CurrentCooldown)
	engine.ProcessTurnEffects(state, entities.HookOnTurnEnd)
	assert.Equal(t, 0, hero.Inventory[0].CurrentCooldown)
}

func TestEngine_ProcessEffectHooks(t *testing.T) {
	engine := newTestEngine()
	state := entities.NewGameState("game-1", "user-1", testNow())
	hero := newBearer()
	target := entities.NewEntity("mon-1", "Gloom Rat", entities.KindMonster)
	state.Player = hero

	var order []string
	engine.RegisterHook(entities.HookOnAttack, entities.StageSituational, func(_ *entities.GameState, _, _ *entities.Entity, _ map[string]any) []string {
		order = append(order, "first")
		return nil
	})
	engine.RegisterHook(entities.HookOnAttack, entities.StageBase, func(_ *entities.GameState, _, _ *entities.Entity, _ map[string]any) []string {
		order = append(order, "second")
		return []string{"a chill wind rises"}
	})

	weapon := flameBrand()
	weapon.Affixes = append(weapon.Affixes, &entities.ItemAffix{
		ID: "afx-fury", Name: "Fury",
		Hook:       entities.HookOnAttack,
		HookEffect: map[string]any{"damage_bonus": 2.0},
	})
	hero.EquippedItems[entities.SlotMainHand] = weapon

	ctxData := map[string]any{}
	events := engine.ProcessEffectHooks(state, entities.HookOnAttack, hero, target, ctxData)

	assert.Equal(t, []string{"first", "second"}, order, "programmatic hooks run in registration order")
	assert.Contains(t, events, "a chill wind rises")
	assert.Equal(t, 2.0, ctxData["damage_bonus"])
}

func TestEngine_ProcessEffectHooks_AffixOutcomes(t *testing.T) {
	engine := newTestEngine()
	state := entities.NewGameState("game-1", "user-1", testNow())
	hero := newBearer()
	hero.Stats.HP = 20
	attacker := entities.NewEntity("mon-1", "Gloom Rat", entities.KindMonster)
	attacker.Stats.HP = 10
	state.Player = hero

	armor := &entities.Item{
		ID: "itm-thorn", Name: "Thornmail", ItemType: "armor",
		IsEquippable: true, EquipSlot: entities.SlotBody,
		Affixes: []*entities.ItemAffix{
			{
				ID: "afx-thorns", Name: "Thorns",
				Hook:       entities.HookOnDamageTaken,
				HookEffect: map[string]any{"reflect": 2.0, "heal": 1.0},
			},
		},
	}
	hero.EquippedItems[entities.SlotBody] = armor

	events := engine.ProcessEffectHooks(state, entities.HookOnDamageTaken, hero, attacker, nil)

	assert.Equal(t, 8, attacker.Stats.HP, "reflect damages the attacker")
	assert.Equal(t, 21, hero.Stats.HP, "heal restores the bearer")
	assert.Len(t, events, 2)
}

func TestEngine_ProcessEffectHooks_ApplyStatus(t *testing.T) {
	engine := newTestEngine()
	state := entities.NewGameState("game-1", "user-1", testNow())
	hero := newBearer()
	target := entities.NewEntity("mon-1", "Gloom Rat", entities.KindMonster)
	state.Player = hero

	weapon := &entities.Item{
		ID: "itm-venom", Name: "Venom Fang", ItemType: "weapon",
		IsEquippable: true, EquipSlot: entities.SlotMainHand,
		Affixes: []*entities.ItemAffix{
			{
				ID: "afx-venom", Name: "Venom",
				Hook: entities.HookOnHit,
				HookEffect: map[string]any{
					"apply_status": map[string]any{
						"name":            "Poisoned",
						"effect_type":     "dot",
						"duration_turns":  2,
						"damage_per_turn": 1.5,
						"damage_type":     "poison",
					},
				},
			},
		},
	}
	hero.EquippedItems[entities.SlotMainHand] = weapon

	events := engine.ProcessEffectHooks(state, entities.HookOnHit, hero, target, nil)

	require.Len(t, target.ActiveEffects, 1)
	assert.Equal(t, "Poisoned", target.ActiveEffects[0].Name)
	assert.Equal(t, 2, target.ActiveEffects[0].DurationTurns)
	assert.NotEmpty(t, events)
}
