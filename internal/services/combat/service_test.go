package combat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinthia/engine/internal/dice"
	mockdice "github.com/labyrinthia/engine/internal/dice/mock"
	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/rolls"
	"github.com/labyrinthia/engine/internal/services/combat"
)

func newAttacker() *entities.Entity {
	attacker := entities.NewEntity("hero-1", "Aldric", entities.KindPlayer)
	attacker.SetAbilityScore(entities.AbilityStr, 14) // +2
	return attacker
}

func newDefender(hp int, shield, tempHP float64) *entities.Entity {
	defender := entities.NewEntity("mon-1", "Gloom Rat", entities.KindMonster)
	defender.Stats.HP = hp
	defender.Stats.MaxHP = hp
	defender.Stats.ACComponents = &entities.ACComponents{Base: 10}
	defender.CombatRuntime.Shield = shield
	defender.CombatRuntime.TemporaryHP = tempHP
	return defender
}

func scriptedService(faces ...int) combat.Service {
	roller := mockdice.NewManualMockRoller()
	roller.SetRolls(faces)
	return combat.NewService(&combat.ServiceConfig{Roller: roller})
}

func TestEvaluateAttack_ShieldAbsorbsBeforeHP(t *testing.T) {
	svc := scriptedService(15)
	defender := newDefender(50, 8, 0)

	result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
		Attacker:      newAttacker(),
		Defender:      defender,
		AttackType:    rolls.AttackMelee,
		BaseDamage:    12,
		DamageType:    "physical",
		AuthorityMode: entities.AuthorityServer,
	})
	require.NoError(t, err)

	require.True(t, result.Hit)
	assert.Equal(t, 8.0, result.ShieldAbsorbed)
	assert.Equal(t, 4.0, result.FinalDamage)
	assert.Equal(t, 46, result.DefenderHPAfter)
	assert.False(t, result.Death)
	assert.True(t, result.Applied)

	assert.Equal(t, 0.0, defender.CombatRuntime.Shield)
	assert.Equal(t, 46, defender.Stats.HP)
	assert.Equal(t, 0.0, defender.Stats.Shield, "legacy mirror tracks the runtime buffer")
}

func TestEvaluateAttack_ImmunityLeavesBuffersUntouched(t *testing.T) {
	svc := scriptedService(15)
	defender := newDefender(40, 5, 3)
	defender.Immunities = []string{"fire"}

	result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
		Attacker:      newAttacker(),
		Defender:      defender,
		AttackType:    rolls.AttackMelee,
		BaseDamage:    10,
		DamageType:    "fire",
		AuthorityMode: entities.AuthorityServer,
	})
	require.NoError(t, err)

	require.True(t, result.Hit)
	assert.Equal(t, 0.0, result.FinalDamage)
	assert.Equal(t, 40, defender.Stats.HP)
	assert.Equal(t, 5.0, defender.CombatRuntime.Shield)
	assert.Equal(t, 3.0, defender.CombatRuntime.TemporaryHP)
	assert.False(t, result.Death)
}

func TestEvaluateAttack_MinimumDamageFloor(t *testing.T) {
	svc := scriptedService(15)
	defender := newDefender(30, 0, 0)
	defender.Resistances["fire"] = 0.9

	result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
		Attacker:      newAttacker(),
		Defender:      defender,
		AttackType:    rolls.AttackSpell,
		BaseDamage:    1,
		DamageType:    "fire",
		AuthorityMode: entities.AuthorityServer,
	})
	require.NoError(t, err)

	require.True(t, result.Hit)
	assert.Equal(t, 1.0, result.FinalDamage, "0.1 after resistance rises to the floor")
	assert.Equal(t, 29, defender.Stats.HP)
}

func TestEvaluateAttack_FullAbsorptionStaysZero(t *testing.T) {
	svc := scriptedService(15)
	defender := newDefender(30, 20, 0)

	result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
		Attacker:      newAttacker(),
		Defender:      defender,
		AttackType:    rolls.AttackMelee,
		BaseDamage:    12,
		DamageType:    "physical",
		AuthorityMode: entities.AuthorityServer,
	})
	require.NoError(t, err)

	require.True(t, result.Hit)
	assert.Equal(t, 0.0, result.FinalDamage, "fully shielded damage is not raised to the floor")
	assert.Equal(t, 30, defender.Stats.HP)
	assert.Equal(t, 8.0, defender.CombatRuntime.Shield)
}

func TestEvaluateAttack_DeterministicReplay(t *testing.T) {
	seed := dice.SeedFromString("attack|game-1|7|hero-1|mon-1")

	run := func() *entities.CombatProjection {
		svc := combat.NewService(nil)
		defender := newDefender(20, 2, 0)
		result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
			Attacker:          newAttacker(),
			Defender:          defender,
			AttackType:        rolls.AttackMelee,
			BaseDamage:        6,
			DamageType:        "physical",
			CanCritical:       true,
			AuthorityMode:     entities.AuthorityLocal,
			DeterministicSeed: &seed,
		})
		require.NoError(t, err)
		return result.Projection()
	}

	first := run()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run(), "same seed and inputs must replay identically")
	}
}

func TestEvaluateAttack_MissLeavesDefenderUnchanged(t *testing.T) {
	svc := scriptedService(2)
	defender := newDefender(25, 4, 0)
	defender.Stats.ACComponents = &entities.ACComponents{Base: 18}

	result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
		Attacker:      newAttacker(),
		Defender:      defender,
		AttackType:    rolls.AttackMelee,
		BaseDamage:    10,
		DamageType:    "physical",
		AuthorityMode: entities.AuthorityServer,
	})
	require.NoError(t, err)

	assert.False(t, result.Hit)
	assert.Equal(t, 0.0, result.FinalDamage)
	assert.Equal(t, 25, defender.Stats.HP)
	assert.Equal(t, 4.0, defender.CombatRuntime.Shield)
	require.Len(t, result.Breakdown, 1)
	assert.Equal(t, entities.StageHitCheck, result.Breakdown[0].Stage)
}

func TestEvaluateAttack_LocalModePredictsWithoutMutating(t *testing.T) {
	svc := scriptedService(19)
	defender := newDefender(10, 0, 0)

	result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
		Attacker:      newAttacker(),
		Defender:      defender,
		AttackType:    rolls.AttackMelee,
		BaseDamage:    6,
		DamageType:    "physical",
		AuthorityMode: entities.AuthorityLocal,
	})
	require.NoError(t, err)

	require.True(t, result.Hit)
	assert.False(t, result.Applied)
	assert.Equal(t, 4, result.DefenderHPAfter, "prediction reports the would-be hp")
	assert.Equal(t, 10, defender.Stats.HP, "local mode leaves the defender untouched")
}

func TestEvaluateAttack_CriticalMultiplies(t *testing.T) {
	svc := scriptedService(20)
	defender := newDefender(40, 0, 0)
	defender.ExperienceValue = 25

	result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
		Attacker:      newAttacker(),
		Defender:      defender,
		AttackType:    rolls.AttackMelee,
		BaseDamage:    10,
		DamageType:    "physical",
		CanCritical:   true,
		AuthorityMode: entities.AuthorityServer,
	})
	require.NoError(t, err)

	require.True(t, result.CriticalHit)
	assert.Equal(t, 15.0, result.FinalDamage)
	assert.Equal(t, 25, defender.Stats.HP)

	var critRow *entities.BreakdownRow
	for i := range result.Breakdown {
		if result.Breakdown[i].Stage == entities.StageCritical {
			critRow = &result.Breakdown[i]
		}
	}
	require.NotNil(t, critRow)
	assert.Equal(t, 10.0, critRow.Before)
	assert.Equal(t, 15.0, critRow.After)
}

func TestEvaluateAttack_KillAwardsExperience(t *testing.T) {
	svc := scriptedService(15)
	defender := newDefender(3, 0, 0)
	defender.ExperienceValue = 40

	result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
		Attacker:      newAttacker(),
		Defender:      defender,
		AttackType:    rolls.AttackMelee,
		BaseDamage:    6,
		DamageType:    "physical",
		AuthorityMode: entities.AuthorityServer,
	})
	require.NoError(t, err)

	assert.True(t, result.Death)
	assert.Equal(t, 40, result.ExperienceAward)
	assert.Equal(t, 0, defender.Stats.HP)
	assert.Contains(t, result.Events, "Gloom Rat is slain")
}

func TestEvaluateAttack_BreakdownCoversEveryStage(t *testing.T) {
	svc := scriptedService(15)
	defender := newDefender(50, 2, 1)

	result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
		Attacker:      newAttacker(),
		Defender:      defender,
		AttackType:    rolls.AttackMelee,
		BaseDamage:    9,
		DamageType:    "physical",
		AuthorityMode: entities.AuthorityServer,
	})
	require.NoError(t, err)

	stages := make([]string, len(result.Breakdown))
	for i, row := range result.Breakdown {
		stages[i] = row.Stage
	}
	assert.Equal(t, entities.DamageOrder, stages)
}

func TestEvaluateAttack_OverrideSanitization(t *testing.T) {
	t.Run("components ignored without debug overrides", func(t *testing.T) {
		svc := scriptedService(15)
		defender := newDefender(50, 0, 0)

		result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
			Attacker:   newAttacker(),
			Defender:   defender,
			AttackType: rolls.AttackMelee,
			BaseDamage: 5,
			DamageType: "physical",
			DamageComponents: []*combat.DamageComponent{
				{Amount: 9999, Type: "fire"},
			},
			AuthorityMode: entities.AuthorityServer,
		})
		require.NoError(t, err)

		assert.Equal(t, 5.0, result.FinalDamage)
		assert.NotEmpty(t, result.Warnings)
	})

	t.Run("debug overrides are capped and whitelisted", func(t *testing.T) {
		svc := scriptedService(15)
		defender := newDefender(50, 0, 0)
		rules := entities.DefaultCombatRules()
		rules.DebugAllowOverrides = true

		var overrides []*combat.DamageComponent
		for i := 0; i < 8; i++ {
			overrides = append(overrides, &combat.DamageComponent{Amount: 1000, Type: "plasma", Penetration: 3})
		}

		result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
			Attacker:         newAttacker(),
			Defender:         defender,
			AttackType:       rolls.AttackMelee,
			DamageComponents: overrides,
			Rules:            rules,
			AuthorityMode:    entities.AuthorityLocal,
		})
		require.NoError(t, err)

		require.Len(t, result.Components, entities.MaxDamageComponents)
		for _, comp := range result.Components {
			assert.Equal(t, entities.DamageTypePhysical, comp.Type, "unknown type falls back to physical")
			assert.LessOrEqual(t, comp.Amount, entities.MaxComponentValue)
			assert.Equal(t, 0.0, comp.Penetration, "penetration disabled by default policy")
		}
		assert.NotEmpty(t, result.Warnings)
	})

	t.Run("unknown damage type falls back to physical", func(t *testing.T) {
		svc := scriptedService(15)
		defender := newDefender(50, 0, 0)
		defender.Resistances["physical"] = 0.5

		result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
			Attacker:      newAttacker(),
			Defender:      defender,
			AttackType:    rolls.AttackMelee,
			BaseDamage:    10,
			DamageType:    "chaos",
			AuthorityMode: entities.AuthorityServer,
		})
		require.NoError(t, err)

		assert.Equal(t, 5.0, result.FinalDamage, "fallback type picks up physical resistance")
		assert.NotEmpty(t, result.Warnings)
	})
}

func TestEvaluateAttack_TrueDamageBypassesMultipliers(t *testing.T) {
	svc := scriptedService(15)
	defender := newDefender(50, 0, 0)
	defender.Resistances["physical"] = 0.8

	rules := entities.DefaultCombatRules()
	rules.DebugAllowOverrides = true
	rules.MitigationPolicy.AllowTrueDamage = true

	result, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
		Attacker:      newAttacker(),
		Defender:      defender,
		AttackType:    rolls.AttackMelee,
		BaseDamage:    10,
		DamageType:    "physical",
		TrueDamage:    true,
		Rules:         rules,
		AuthorityMode: entities.AuthorityServer,
	})
	require.NoError(t, err)

	assert.Equal(t, 10.0, result.FinalDamage, "true damage ignores resistance")
	assert.Equal(t, 40, defender.Stats.HP)
}

func TestService_TelemetrySnapshot(t *testing.T) {
	svc := scriptedService(15, 15, 15)
	attacker := newAttacker()

	for i := 0; i < 2; i++ {
		defender := newDefender(1, 0, 0)
		_, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
			Attacker:      attacker,
			Defender:      defender,
			AttackType:    rolls.AttackMelee,
			BaseDamage:    5,
			DamageType:    "physical",
			AuthorityMode: entities.AuthorityServer,
		})
		require.NoError(t, err)
	}

	// local-mode kill must not count as a completion
	defender := newDefender(1, 0, 0)
	_, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
		Attacker:      attacker,
		Defender:      defender,
		AttackType:    rolls.AttackMelee,
		BaseDamage:    5,
		DamageType:    "physical",
		AuthorityMode: entities.AuthorityLocal,
	})
	require.NoError(t, err)

	snap := svc.Snapshot()
	assert.Equal(t, uint64(3), snap.Attempts)
	assert.Equal(t, uint64(2), snap.Completions)
	assert.Equal(t, uint64(0), snap.Errors)
	assert.False(t, snap.Degraded)
	assert.GreaterOrEqual(t, snap.P95, snap.P50)
}

func TestService_DegradedAfterErrors(t *testing.T) {
	roller := mockdice.NewManualMockRoller()
	svc := combat.NewService(&combat.ServiceConfig{Roller: roller})

	// exhausted mock roller errors every evaluation
	for i := 0; i < 25; i++ {
		_, err := svc.EvaluateAttack(context.Background(), &combat.EvaluateAttackInput{
			Attacker:      newAttacker(),
			Defender:      newDefender(10, 0, 0),
			AttackType:    rolls.AttackMelee,
			BaseDamage:    5,
			DamageType:    "physical",
			AuthorityMode: entities.AuthorityServer,
		})
		require.Error(t, err)
	}

	snap := svc.Snapshot()
	assert.Equal(t, uint64(25), snap.Errors)
	assert.True(t, snap.Degraded)
}
