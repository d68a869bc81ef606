package rolls_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mockdice "github.com/labyrinthia/engine/internal/dice/mock"
	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/rolls"
)

func newTestHero() *entities.Entity {
	hero := entities.NewEntity("hero-1", "Aldric", entities.KindPlayer)
	hero.SetAbilityScore(entities.AbilityStr, 16) // +3
	hero.SetAbilityScore(entities.AbilityDex, 14) // +2
	hero.SetAbilityScore(entities.AbilityInt, 12) // +1
	hero.SetAbilityScore(entities.AbilityWis, 14) // +2
	hero.SkillProficiencies = []string{"perception", "stealth"}
	hero.SavingThrowProficiencies = []string{entities.AbilityDex}
	return hero
}

func TestResolver_AbilityCheck(t *testing.T) {
	tests := []struct {
		name        string
		rolls       []int
		input       *rolls.AbilityCheckInput
		setup       func(e *entities.Entity)
		wantTotal   int
		wantSuccess bool
	}{
		{
			name:        "raw ability modifier applies",
			rolls:       []int{14},
			input:       &rolls.AbilityCheckInput{Ability: entities.AbilityStr, DC: 15},
			wantTotal:   17,
			wantSuccess: true,
		},
		{
			name:        "skill picks governing ability and auto-detects proficiency",
			rolls:       []int{10},
			input:       &rolls.AbilityCheckInput{Ability: entities.AbilityStr, Skill: "perception", DC: 14},
			wantTotal:   14, // 10 + wis 2 + prof 2
			wantSuccess: true,
		},
		{
			name:  "expertise doubles proficiency",
			rolls: []int{5},
			input: &rolls.AbilityCheckInput{Skill: "stealth", DC: 14, Expertise: true},
			setup: func(e *entities.Entity) {
				e.Stats.Level = 5 // prof +3
			},
			wantTotal:   13, // 5 + dex 2 + prof 6
			wantSuccess: false,
		},
		{
			name:        "forced proficiency without a skill",
			rolls:       []int{8},
			input:       &rolls.AbilityCheckInput{Ability: entities.AbilityInt, DC: 11, Proficient: true},
			wantTotal:   11, // 8 + int 1 + prof 2
			wantSuccess: true,
		},
		{
			name:        "extra bonus added",
			rolls:       []int{6},
			input:       &rolls.AbilityCheckInput{Ability: entities.AbilityStr, DC: 20, ExtraBonus: 4},
			wantTotal:   13,
			wantSuccess: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hero := newTestHero()
			if tt.setup != nil {
				tt.setup(hero)
			}
			roller := mockdice.NewManualMockRoller()
			roller.SetRolls(tt.rolls)
			resolver := rolls.NewResolver(roller)

			result, err := resolver.AbilityCheck(hero, tt.input)
			require.NoError(t, err)

			assert.Equal(t, tt.wantTotal, result.Total)
			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.input.DC, result.DC)
			assert.NotEmpty(t, result.UIText)
		})
	}
}

func TestResolver_AbilityCheck_Advantage(t *testing.T) {
	hero := newTestHero()
	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{5, 18})
	resolver := rolls.NewResolver(roller)

	result, err := resolver.AbilityCheck(hero, &rolls.AbilityCheckInput{
		Ability:   entities.AbilityStr,
		DC:        15,
		Advantage: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 21, result.Total) // kept 18 + str 3
	assert.True(t, result.Success)
}

func TestResolver_AbilityCheck_NaturalTwenty(t *testing.T) {
	hero := newTestHero()
	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{20})
	resolver := rolls.NewResolver(roller)

	result, err := resolver.AbilityCheck(hero, &rolls.AbilityCheckInput{
		Ability: entities.AbilityStr,
		DC:      30,
	})
	require.NoError(t, err)

	assert.True(t, result.CriticalSuccess)
	assert.True(t, result.Success, "natural 20 succeeds regardless of DC")
}

func TestResolver_SavingThrow(t *testing.T) {
	t.Run("auto-detects save proficiency", func(t *testing.T) {
		hero := newTestHero()
		roller := mockdice.NewManualMockRoller()
		roller.SetRolls([]int{9})
		resolver := rolls.NewResolver(roller)

		result, err := resolver.SavingThrow(hero, &rolls.SavingThrowInput{
			Ability: entities.AbilityDex,
			DC:      13,
		})
		require.NoError(t, err)

		assert.Equal(t, 13, result.Total) // 9 + dex 2 + prof 2
		assert.True(t, result.Success)
	})

	t.Run("no proficiency for untrained save", func(t *testing.T) {
		hero := newTestHero()
		roller := mockdice.NewManualMockRoller()
		roller.SetRolls([]int{9})
		resolver := rolls.NewResolver(roller)

		result, err := resolver.SavingThrow(hero, &rolls.SavingThrowInput{
			Ability: entities.AbilityWis,
			DC:      13,
		})
		require.NoError(t, err)

		assert.Equal(t, 11, result.Total) // 9 + wis 2
		assert.False(t, result.Success)
	})

	t.Run("natural 1 fails regardless of modifier", func(t *testing.T) {
		hero := newTestHero()
		roller := mockdice.NewManualMockRoller()
		roller.SetRolls([]int{1})
		resolver := rolls.NewResolver(roller)

		result, err := resolver.SavingThrow(hero, &rolls.SavingThrowInput{
			Ability:    entities.AbilityDex,
			DC:         2,
			ExtraBonus: 10,
		})
		require.NoError(t, err)

		assert.True(t, result.CriticalFailure)
		assert.False(t, result.Success)
	})
}

func TestResolver_AttackRoll(t *testing.T) {
	newTarget := func(ac int) *entities.Entity {
		target := entities.NewEntity("mon-1", "Gloom Rat", entities.KindMonster)
		target.Stats.ACComponents = &entities.ACComponents{Base: ac}
		return target
	}

	tests := []struct {
		name        string
		rolls       []int
		input       *rolls.AttackRollInput
		targetAC    int
		wantTotal   int
		wantSuccess bool
		wantCrit    bool
	}{
		{
			name:        "melee uses strength",
			rolls:       []int{12},
			input:       &rolls.AttackRollInput{AttackType: rolls.AttackMelee, Proficient: true},
			targetAC:    15,
			wantTotal:   17, // 12 + str 3 + prof 2
			wantSuccess: true,
		},
		{
			name:        "ranged uses dexterity",
			rolls:       []int{12},
			input:       &rolls.AttackRollInput{AttackType: rolls.AttackRanged},
			targetAC:    15,
			wantTotal:   14, // 12 + dex 2
			wantSuccess: false,
		},
		{
			name:        "spell uses intelligence",
			rolls:       []int{12},
			input:       &rolls.AttackRollInput{AttackType: rolls.AttackSpell},
			targetAC:    13,
			wantTotal:   13, // 12 + int 1
			wantSuccess: true,
		},
		{
			name:        "natural 20 hits any armor",
			rolls:       []int{20},
			input:       &rolls.AttackRollInput{AttackType: rolls.AttackMelee},
			targetAC:    40,
			wantTotal:   23,
			wantSuccess: true,
			wantCrit:    true,
		},
		{
			name:        "natural 1 misses any armor",
			rolls:       []int{1},
			input:       &rolls.AttackRollInput{AttackType: rolls.AttackMelee, Proficient: true, ExtraBonus: 10},
			targetAC:    2,
			wantTotal:   16,
			wantSuccess: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hero := newTestHero()
			target := newTarget(tt.targetAC)
			roller := mockdice.NewManualMockRoller()
			roller.SetRolls(tt.rolls)
			resolver := rolls.NewResolver(roller)

			result, err := resolver.AttackRoll(hero, target, tt.input)
			require.NoError(t, err)

			assert.Equal(t, tt.wantTotal, result.Total)
			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantCrit, result.CriticalSuccess)
			assert.Equal(t, target.ACEffective(), result.DC)
		})
	}
}

func TestSkillAbility(t *testing.T) {
	assert.Equal(t, entities.AbilityDex, rolls.SkillAbility("stealth", entities.AbilityStr))
	assert.Equal(t, entities.AbilityWis, rolls.SkillAbility("Perception", entities.AbilityStr))
	assert.Equal(t, entities.AbilityCha, rolls.SkillAbility("persuasion", entities.AbilityStr))
	assert.Equal(t, entities.AbilityStr, rolls.SkillAbility("basket_weaving", entities.AbilityStr))
}
