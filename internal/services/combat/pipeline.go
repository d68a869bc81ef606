package combat

import (
	"fmt"
	"math"

	"github.com/labyrinthia/engine/internal/entities"
)

// sanitizeComponents produces the damage component list for an attack.
// External overrides (components, penetration, true damage) only pass
// when the rule set enables debug overrides, and are capped and
// whitelisted even then. Unknown damage types always fall back to
// physical with a warning.
func sanitizeComponents(input *EvaluateAttackInput, rules *entities.CombatRules, policy *entities.MitigationPolicy) ([]*DamageComponent, []string) {
	var warnings []string

	baseType := input.DamageType
	if baseType == "" {
		baseType = input.Attacker.DamageType
	}
	baseType = sanitizeDamageType(baseType, &warnings)

	var components []*DamageComponent
	if len(input.DamageComponents) > 0 {
		if !rules.DebugAllowOverrides {
			warnings = append(warnings, "external damage components ignored without debug overrides")
		} else {
			components = sanitizeExternal(input.DamageComponents, policy, &warnings)
		}
	}

	if len(components) == 0 {
		comp := &DamageComponent{
			Amount: baseDamage(input),
			Type:   baseType,
		}
		if input.Penetration != 0 || input.TrueDamage {
			if !rules.DebugAllowOverrides {
				warnings = append(warnings, "penetration and true damage ignored without debug overrides")
			} else {
				comp.Penetration = sanitizePenetration(input.Penetration, policy, &warnings)
				comp.TrueDamage = sanitizeTrueDamage(input.TrueDamage, policy, &warnings)
			}
		}
		components = []*DamageComponent{comp}
	}

	bonus := input.DamageBonus
	if input.Attacker.CombatRuntime != nil {
		bonus += input.Attacker.CombatRuntime.DamageBonus
	}
	if bonus != 0 {
		components[0].Amount = math.Max(0, components[0].Amount+bonus)
	}

	return components, warnings
}

func sanitizeExternal(external []*DamageComponent, policy *entities.MitigationPolicy, warnings *[]string) []*DamageComponent {
	capped := external
	if len(capped) > entities.MaxDamageComponents {
		*warnings = append(*warnings, fmt.Sprintf("damage components capped at %d", entities.MaxDamageComponents))
		capped = capped[:entities.MaxDamageComponents]
	}
	if !policy.AllowMultiDamageComponents && len(capped) > 1 {
		*warnings = append(*warnings, "multi-component damage disabled; first component kept")
		capped = capped[:1]
	}

	components := make([]*DamageComponent, 0, len(capped))
	for _, ext := range capped {
		if ext == nil {
			continue
		}
		comp := &DamageComponent{
			Amount:      ext.Amount,
			Type:        sanitizeDamageType(ext.Type, warnings),
			Penetration: sanitizePenetration(ext.Penetration, policy, warnings),
			TrueDamage:  sanitizeTrueDamage(ext.TrueDamage, policy, warnings),
		}
		if comp.Amount < 0 {
			comp.Amount = 0
		}
		if comp.Amount > entities.MaxComponentValue {
			*warnings = append(*warnings, fmt.Sprintf("component value capped at %g", entities.MaxComponentValue))
			comp.Amount = entities.MaxComponentValue
		}
		components = append(components, comp)
	}
	return components
}

func sanitizeDamageType(t string, warnings *[]string) string {
	if t == "" {
		return entities.DamageTypePhysical
	}
	if !entities.KnownDamageType(t) {
		*warnings = append(*warnings, fmt.Sprintf("unknown damage type %q treated as physical", t))
		return entities.DamageTypePhysical
	}
	return t
}

func sanitizePenetration(p float64, policy *entities.MitigationPolicy, warnings *[]string) float64 {
	if p == 0 {
		return 0
	}
	if !policy.AllowPenetration {
		*warnings = append(*warnings, "penetration disabled by policy")
		return 0
	}
	return clamp(p, 0, 1)
}

func sanitizeTrueDamage(td bool, policy *entities.MitigationPolicy, warnings *[]string) bool {
	if !td {
		return false
	}
	if !policy.AllowTrueDamage {
		*warnings = append(*warnings, "true damage disabled by policy")
		return false
	}
	return true
}

// baseDamage derives the unmodified damage when the caller supplies
// none: monster attack damage, else unarmed 1 + str modifier.
func baseDamage(input *EvaluateAttackInput) float64 {
	if input.BaseDamage > 0 {
		return input.BaseDamage
	}
	if input.Attacker.AttackDamage > 0 {
		return input.Attacker.AttackDamage
	}
	unarmed := 1 + float64(input.Attacker.AbilityModifier(entities.AbilityStr))
	return math.Max(1, unarmed)
}

// mitigationOutcome carries the post-pipeline buffer values so the
// service can apply or discard them by authority mode.
type mitigationOutcome struct {
	finalDamage    float64
	shieldAbsorbed float64
	tempHPAbsorbed float64
	shieldAfter    float64
	tempHPAfter    float64
}

// mitigate runs the per-component mitigation stages against the
// defender without mutating it. Components consume the shared shield
// and temporary hp buffers in order.
func mitigate(defender *entities.Entity, components []*DamageComponent, policy *entities.MitigationPolicy, minDamage float64, breakdown *[]entities.BreakdownRow) *mitigationOutcome {
	outcome := &mitigationOutcome{}
	if defender.CombatRuntime != nil {
		outcome.shieldAfter = defender.CombatRuntime.Shield
		outcome.tempHPAfter = defender.CombatRuntime.TemporaryHP
	}

	multi := len(components) > 1
	for i, comp := range components {
		label := ""
		if multi {
			label = fmt.Sprintf("component %d (%s): ", i+1, comp.Type)
		}
		row := func(stage string, before, after float64, reason string) {
			*breakdown = append(*breakdown, entities.BreakdownRow{
				Stage:  stage,
				Before: before,
				After:  after,
				Delta:  after - before,
				Reason: label + reason,
			})
		}

		remaining := comp.Amount

		if defender.HasImmunity(comp.Type) {
			row(entities.StageImmunity, remaining, 0, fmt.Sprintf("immune to %s", comp.Type))
			continue
		}
		row(entities.StageImmunity, remaining, remaining, "not immune")

		remaining = absorbStage(remaining, comp, policy.AllowShieldPenetration,
			&outcome.shieldAfter, &outcome.shieldAbsorbed, entities.StageShield, "shield", row)
		remaining = absorbStage(remaining, comp, policy.AllowTemporaryHPPenetration,
			&outcome.tempHPAfter, &outcome.tempHPAbsorbed, entities.StageTemporaryHP, "temporary hp", row)

		afterAbsorption := remaining

		if comp.TrueDamage {
			row(entities.StageResistance, remaining, remaining, "true damage bypasses resistance")
			row(entities.StageVulnerability, remaining, remaining, "true damage bypasses vulnerability")
		} else {
			resist := defender.Resistances[comp.Type]
			factor := clamp(1-resist, policy.ResistanceClampMin, policy.ResistanceClampMax)
			before := remaining
			remaining *= factor
			row(entities.StageResistance, before, remaining, fmt.Sprintf("resistance %.2f (x%.2f)", resist, factor))

			vuln := defender.Vulnerabilities[comp.Type]
			factor = clamp(1+vuln, policy.VulnerabilityMultMin, policy.VulnerabilityMultMax)
			before = remaining
			remaining *= factor
			row(entities.StageVulnerability, before, remaining, fmt.Sprintf("vulnerability %.2f (x%.2f)", vuln, factor))
		}

		// the floor tops up multiplicative shrink; damage fully eaten
		// by buffers stays at zero
		if afterAbsorption > 0 && remaining < minDamage {
			row(entities.StageMinimumDamage, remaining, minDamage, fmt.Sprintf("raised to minimum %.2g", minDamage))
			remaining = minDamage
		} else {
			row(entities.StageMinimumDamage, remaining, remaining, "above minimum")
		}

		outcome.finalDamage += remaining
	}

	return outcome
}

// absorbStage drains one buffer. Penetration lets that fraction of the
// damage skip the buffer when the policy allows it.
func absorbStage(remaining float64, comp *DamageComponent, allowPenetration bool, buffer, absorbedTotal *float64, stage, name string, row func(string, float64, float64, string)) float64 {
	bypass := 0.0
	if allowPenetration && comp.Penetration > 0 {
		bypass = remaining * comp.Penetration
	}
	facing := remaining - bypass
	absorb := math.Min(*buffer, facing)
	if absorb < 0 {
		absorb = 0
	}

	*buffer -= absorb
	*absorbedTotal += absorb
	after := remaining - absorb

	reason := fmt.Sprintf("%s absorbed %.2f", name, absorb)
	if absorb == 0 {
		reason = fmt.Sprintf("no %s to absorb", name)
	} else if bypass > 0 {
		reason = fmt.Sprintf("%s absorbed %.2f (%.0f%% bypassed)", name, absorb, comp.Penetration*100)
	}
	row(stage, remaining, after, reason)
	return after
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
