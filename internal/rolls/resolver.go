package rolls

import (
	"fmt"
	"strings"

	"github.com/labyrinthia/engine/internal/dice"
	"github.com/labyrinthia/engine/internal/entities"
)

// AttackType selects the ability behind an attack roll.
type AttackType string

const (
	AttackMelee  AttackType = "melee"  // str
	AttackRanged AttackType = "ranged" // dex
	AttackSpell  AttackType = "spell"  // int
)

// skillAbilities maps skill names to their governing ability.
var skillAbilities = map[string]string{
	"athletics":       entities.AbilityStr,
	"acrobatics":      entities.AbilityDex,
	"sleight_of_hand": entities.AbilityDex,
	"stealth":         entities.AbilityDex,
	"arcana":          entities.AbilityInt,
	"history":         entities.AbilityInt,
	"investigation":   entities.AbilityInt,
	"nature":          entities.AbilityInt,
	"religion":        entities.AbilityInt,
	"animal_handling": entities.AbilityWis,
	"insight":         entities.AbilityWis,
	"medicine":        entities.AbilityWis,
	"perception":      entities.AbilityWis,
	"survival":        entities.AbilityWis,
	"deception":       entities.AbilityCha,
	"intimidation":    entities.AbilityCha,
	"performance":     entities.AbilityCha,
	"persuasion":      entities.AbilityCha,
}

// SkillAbility resolves the governing ability for a skill; falls back
// to the provided default for unknown skills.
func SkillAbility(skill, fallback string) string {
	if ability, ok := skillAbilities[strings.ToLower(skill)]; ok {
		return ability
	}
	return fallback
}

// CheckResult is the outcome of an ability check, saving throw, or
// attack roll.
type CheckResult struct {
	Total           int    `json:"total"`
	DC              int    `json:"dc"`
	Success         bool   `json:"success"`
	CriticalSuccess bool   `json:"critical_success"`
	CriticalFailure bool   `json:"critical_failure"`
	Breakdown       string `json:"breakdown"`
	UIText          string `json:"ui_text"`
}

// AbilityCheckInput describes one ability or skill check.
type AbilityCheckInput struct {
	Entity  string // label used in UI text; defaults to the entity name
	Ability string
	DC      int

	// Skill optionally selects the governing ability and enables
	// proficiency auto-detection from the entity's skill set.
	Skill string

	Proficient bool // forced proficiency; auto-detection ORs in
	Expertise  bool // doubles the proficiency bonus

	Advantage    bool
	Disadvantage bool
	ExtraBonus   int
}

// SavingThrowInput describes one saving throw.
type SavingThrowInput struct {
	Ability      string
	DC           int
	Proficient   bool
	Advantage    bool
	Disadvantage bool
	ExtraBonus   int
}

// AttackRollInput describes one attack roll against a defender.
type AttackRollInput struct {
	AttackType   AttackType
	Proficient   bool
	Advantage    bool
	Disadvantage bool
	ExtraBonus   int
}

// Resolver composes modifiers over a dice roller.
type Resolver struct {
	roller dice.Roller
}

// NewResolver creates a resolver; a nil roller falls back to the
// shared random roller.
func NewResolver(roller dice.Roller) *Resolver {
	if roller == nil {
		roller = dice.NewRandomRoller()
	}
	return &Resolver{roller: roller}
}

// AbilityCheck rolls d20 + ability modifier (+ proficiency) vs DC.
func (r *Resolver) AbilityCheck(entity *entities.Entity, input *AbilityCheckInput) (*CheckResult, error) {
	ability := input.Ability
	if input.Skill != "" {
		ability = SkillAbility(input.Skill, ability)
	}

	abilityMod := entity.AbilityModifier(ability)

	proficient := input.Proficient
	if input.Skill != "" && entity.HasSkillProficiency(input.Skill) {
		proficient = true
	}
	profBonus := 0
	if proficient {
		profBonus = entity.ProficiencyBonus()
		if input.Expertise {
			profBonus *= 2
		}
	}

	modifier := abilityMod + profBonus + input.ExtraBonus
	roll, err := r.roller.Roll(&dice.RollInput{
		Count:        1,
		Sides:        20,
		Modifier:     modifier,
		Advantage:    input.Advantage,
		Disadvantage: input.Disadvantage,
	})
	if err != nil {
		return nil, err
	}

	label := input.Skill
	if label == "" {
		label = ability
	}
	return r.finishCheck(entity.Name, fmt.Sprintf("%s check", label), roll, modifier, input.DC), nil
}

// SavingThrow rolls d20 + ability modifier (+ proficiency) vs DC.
// Proficiency auto-detects from the entity's saving throw set.
func (r *Resolver) SavingThrow(entity *entities.Entity, input *SavingThrowInput) (*CheckResult, error) {
	proficient := input.Proficient || entity.HasSavingThrowProficiency(input.Ability)

	modifier := entity.AbilityModifier(input.Ability) + input.ExtraBonus
	if proficient {
		modifier += entity.ProficiencyBonus()
	}

	roll, err := r.roller.Roll(&dice.RollInput{
		Count:        1,
		Sides:        20,
		Modifier:     modifier,
		Advantage:    input.Advantage,
		Disadvantage: input.Disadvantage,
	})
	if err != nil {
		return nil, err
	}

	return r.finishCheck(entity.Name, fmt.Sprintf("%s save", input.Ability), roll, modifier, input.DC), nil
}

// AttackRoll rolls d20 + attack modifiers vs the defender's effective
// AC. A natural 20 always hits; a natural 1 always misses.
func (r *Resolver) AttackRoll(attacker, target *entities.Entity, input *AttackRollInput) (*CheckResult, error) {
	ability := attackAbility(input.AttackType)

	modifier := attacker.AbilityModifier(ability) + input.ExtraBonus
	if input.Proficient {
		modifier += attacker.ProficiencyBonus()
	}

	roll, err := r.roller.Roll(&dice.RollInput{
		Count:        1,
		Sides:        20,
		Modifier:     modifier,
		Advantage:    input.Advantage,
		Disadvantage: input.Disadvantage,
	})
	if err != nil {
		return nil, err
	}

	dc := target.ACEffective()
	result := &CheckResult{
		Total:           roll.Total,
		DC:              dc,
		CriticalSuccess: roll.IsCrit20,
		CriticalFailure: roll.IsCrit1,
	}
	switch {
	case roll.IsCrit20:
		result.Success = true
	case roll.IsCrit1:
		result.Success = false
	default:
		result.Success = roll.Total >= dc
	}

	result.Breakdown = describeRoll(roll, modifier)
	outcome := "miss"
	if result.Success {
		outcome = "hit"
		if result.CriticalSuccess {
			outcome = "critical hit"
		}
	}
	result.UIText = fmt.Sprintf("%s attacks %s: %d vs AC %d - %s",
		attacker.Name, target.Name, roll.Total, dc, outcome)
	return result, nil
}

func attackAbility(t AttackType) string {
	switch t {
	case AttackRanged:
		return entities.AbilityDex
	case AttackSpell:
		return entities.AbilityInt
	default:
		return entities.AbilityStr
	}
}

func (r *Resolver) finishCheck(name, label string, roll *dice.RollResult, modifier, dc int) *CheckResult {
	result := &CheckResult{
		Total:           roll.Total,
		DC:              dc,
		CriticalSuccess: roll.IsCrit20,
		CriticalFailure: roll.IsCrit1,
	}
	switch {
	case roll.IsCrit20:
		result.Success = true
	case roll.IsCrit1:
		result.Success = false
	default:
		result.Success = roll.Total >= dc
	}

	result.Breakdown = describeRoll(roll, modifier)
	outcome := "failure"
	if result.Success {
		outcome = "success"
	}
	result.UIText = fmt.Sprintf("%s %s: %d vs DC %d - %s", name, label, roll.Total, dc, outcome)
	return result
}

func describeRoll(roll *dice.RollResult, modifier int) string {
	desc := fmt.Sprintf("d20 %v", roll.Picked)
	if len(roll.Rolls) > len(roll.Picked) {
		desc = fmt.Sprintf("d20 %v of %v", roll.Picked, roll.Rolls)
	}
	if modifier != 0 {
		desc += fmt.Sprintf(" %+d", modifier)
	}
	if len(roll.Breakdown) > 0 {
		desc += " (" + strings.Join(roll.Breakdown, "; ") + ")"
	}
	return desc
}
