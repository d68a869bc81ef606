package effects

import (
	"math"
	"strings"

	"github.com/labyrinthia/engine/internal/entities"
)

// applyStatDelta adds delta to the stat addressed by key and reports
// the actual before/after values. Int-backed stats round; clamped
// stats record the post-clamp value, so the returned delta is what a
// revert must subtract. Unknown keys report ok=false.
func applyStatDelta(e *entities.Entity, key string, delta float64) (before, after float64, ok bool) {
	ensureStatRecords(e)

	read, write, ok := statAccess(e, key)
	if !ok {
		return 0, 0, false
	}
	before = read()
	write(before + delta)
	after = read()
	return before, after, true
}

func ensureStatRecords(e *entities.Entity) {
	if e.Stats == nil {
		e.Stats = &entities.Stats{}
	}
	if e.Stats.ACComponents == nil {
		e.Stats.ACComponents = &entities.ACComponents{}
	}
	if e.CombatRuntime == nil {
		e.CombatRuntime = &entities.CombatRuntime{}
	}
	if e.Abilities == nil {
		e.Abilities = &entities.Abilities{}
	}
	if e.Resistances == nil {
		e.Resistances = make(map[string]float64)
	}
	if e.Vulnerabilities == nil {
		e.Vulnerabilities = make(map[string]float64)
	}
}

func statAccess(e *entities.Entity, key string) (read func() float64, write func(float64), ok bool) {
	switch key {
	case "max_hp":
		return func() float64 { return float64(e.Stats.MaxHP) },
			func(v float64) { e.Stats.MaxHP = int(math.Round(v)) }, true
	case "max_mp":
		return func() float64 { return float64(e.Stats.MaxMP) },
			func(v float64) { e.Stats.MaxMP = int(math.Round(v)) }, true
	case "speed":
		return func() float64 { return float64(e.Stats.Speed) },
			func(v float64) { e.Stats.Speed = int(math.Round(v)) }, true
	case "attack_bonus":
		return func() float64 { return e.CombatRuntime.AttackBonus },
			func(v float64) { e.CombatRuntime.AttackBonus = v }, true
	case "damage_bonus":
		return func() float64 { return e.CombatRuntime.DamageBonus },
			func(v float64) { e.CombatRuntime.DamageBonus = v }, true
	case "regen_per_turn":
		return func() float64 { return e.CombatRuntime.RegenPerTurn },
			func(v float64) { e.CombatRuntime.RegenPerTurn = v }, true
	case "shield":
		return func() float64 { return e.CombatRuntime.Shield },
			func(v float64) { e.CombatRuntime.Shield = math.Max(0, v) }, true
	case "temporary_hp":
		return func() float64 { return e.CombatRuntime.TemporaryHP },
			func(v float64) { e.CombatRuntime.TemporaryHP = math.Max(0, v) }, true
	case "ac.base":
		return func() float64 { return float64(e.Stats.ACComponents.Base) },
			func(v float64) { e.Stats.ACComponents.Base = int(math.Round(v)) }, true
	case "ac.armor":
		return func() float64 { return float64(e.Stats.ACComponents.Armor) },
			func(v float64) { e.Stats.ACComponents.Armor = int(math.Round(v)) }, true
	case "ac.shield":
		return func() float64 { return float64(e.Stats.ACComponents.Shield) },
			func(v float64) { e.Stats.ACComponents.Shield = int(math.Round(v)) }, true
	case "ac.status":
		return func() float64 { return float64(e.Stats.ACComponents.Status) },
			func(v float64) { e.Stats.ACComponents.Status = int(math.Round(v)) }, true
	case "ac.situational":
		return func() float64 { return float64(e.Stats.ACComponents.Situational) },
			func(v float64) { e.Stats.ACComponents.Situational = int(math.Round(v)) }, true
	}

	if damageType, found := strings.CutPrefix(key, "resist."); found {
		return func() float64 { return e.Resistances[damageType] },
			func(v float64) { e.Resistances[damageType] = v }, true
	}
	if damageType, found := strings.CutPrefix(key, "vuln."); found {
		return func() float64 { return e.Vulnerabilities[damageType] },
			func(v float64) { e.Vulnerabilities[damageType] = v }, true
	}
	if ability, found := strings.CutPrefix(key, "ability."); found {
		if _, known := e.Abilities.Get(ability); !known {
			return nil, nil, false
		}
		return func() float64 {
				score, _ := e.Abilities.Get(ability)
				return float64(score)
			},
			func(v float64) { e.Abilities.Set(ability, int(math.Round(v))) }, true
	}

	return nil, nil, false
}
