package entities

import (
	"sort"
)

// Kind discriminates the two entity variants sharing the combat model.
type Kind string

const (
	KindPlayer  Kind = "player"
	KindMonster Kind = "monster"
)

// Ability names as they appear in update payloads and proficiency sets.
const (
	AbilityStr = "str"
	AbilityDex = "dex"
	AbilityCon = "con"
	AbilityInt = "int"
	AbilityWis = "wis"
	AbilityCha = "cha"
)

// AbilityNames lists the six ability keys in canonical order.
var AbilityNames = []string{AbilityStr, AbilityDex, AbilityCon, AbilityInt, AbilityWis, AbilityCha}

const (
	AbilityScoreMin = 1
	AbilityScoreMax = 30

	LevelMin = 1
	LevelMax = 100
)

// Abilities holds the six ability scores, each in [1, 30].
type Abilities struct {
	Strength     int `json:"str"`
	Dexterity    int `json:"dex"`
	Constitution int `json:"con"`
	Intelligence int `json:"int"`
	Wisdom       int `json:"wis"`
	Charisma     int `json:"cha"`
}

// Get returns the score for an ability key, false for unknown keys.
func (a *Abilities) Get(name string) (int, bool) {
	switch name {
	case AbilityStr:
		return a.Strength, true
	case AbilityDex:
		return a.Dexterity, true
	case AbilityCon:
		return a.Constitution, true
	case AbilityInt:
		return a.Intelligence, true
	case AbilityWis:
		return a.Wisdom, true
	case AbilityCha:
		return a.Charisma, true
	}
	return 0, false
}

// Set assigns the score for an ability key, clamped to [1, 30].
// Returns false for unknown keys.
func (a *Abilities) Set(name string, score int) bool {
	score = clampInt(score, AbilityScoreMin, AbilityScoreMax)
	switch name {
	case AbilityStr:
		a.Strength = score
	case AbilityDex:
		a.Dexterity = score
	case AbilityCon:
		a.Constitution = score
	case AbilityInt:
		a.Intelligence = score
	case AbilityWis:
		a.Wisdom = score
	case AbilityCha:
		a.Charisma = score
	default:
		return false
	}
	return true
}

// Modifier computes the standard ability modifier (score-10)/2, floored.
func Modifier(score int) int {
	if score >= 10 {
		return (score - 10) / 2
	}
	// Go integer division truncates toward zero; modifiers floor
	return -((11 - score) / 2)
}

// ACComponents is the additive AC model. Penalty subtracts; all others add.
type ACComponents struct {
	Base        int `json:"base"`
	Armor       int `json:"armor"`
	Shield      int `json:"shield"`
	Status      int `json:"status"`
	Situational int `json:"situational"`
	Penalty     int `json:"penalty"`
}

// Total sums the components before min/max clamping.
func (c *ACComponents) Total() int {
	return c.Base + c.Armor + c.Shield + c.Status + c.Situational - c.Penalty
}

// Stats holds the mutable vitals and progression numbers.
// Shield and TemporaryHP here are legacy mirrors of CombatRuntime;
// CombatRuntime is authoritative.
type Stats struct {
	HP           int           `json:"hp"`
	MaxHP        int           `json:"max_hp"`
	MP           int           `json:"mp"`
	MaxMP        int           `json:"max_mp"`
	Level        int           `json:"level"`
	Experience   int           `json:"experience"`
	AC           int           `json:"ac"` // legacy flat AC, superseded by ACComponents
	ACComponents *ACComponents `json:"ac_components,omitempty"`
	ACMin        int           `json:"ac_min"`
	ACMax        int           `json:"ac_max"`
	Speed        int           `json:"speed"`

	Shield      float64 `json:"shield"`
	TemporaryHP float64 `json:"temporary_hp"`
}

// CombatRuntime holds the transient defensive buffers and the bonuses
// materialized from equipment, kept distinct from base stats so combat
// can consume them without touching HP.
type CombatRuntime struct {
	Shield      float64 `json:"shield"`
	TemporaryHP float64 `json:"temporary_hp"`

	AttackBonus  float64 `json:"attack_bonus,omitempty"`
	DamageBonus  float64 `json:"damage_bonus,omitempty"`
	RegenPerTurn float64 `json:"regen_per_turn,omitempty"`
}

// Position is a tile coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Entity is the shared player/monster record. Kind selects the variant;
// monster-only fields stay zero for players.
type Entity struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Kind         Kind   `json:"kind"`
	Class        string `json:"class,omitempty"`
	CreatureType string `json:"creature_type,omitempty"`

	Abilities     *Abilities     `json:"abilities"`
	Stats         *Stats         `json:"stats"`
	CombatRuntime *CombatRuntime `json:"combat_runtime"`

	// Resistances are damage-type -> fraction in [0, 0.95].
	// Vulnerabilities are damage-type -> extra fraction >= 0.
	Resistances     map[string]float64 `json:"resistances,omitempty"`
	Vulnerabilities map[string]float64 `json:"vulnerabilities,omitempty"`
	Immunities      []string           `json:"immunities,omitempty"`

	EquippedItems map[string]*Item `json:"equipped_items,omitempty"`
	Inventory     []*Item          `json:"inventory,omitempty"`

	Position Position `json:"position"`

	SavingThrowProficiencies []string `json:"saving_throw_proficiencies,omitempty"`
	SkillProficiencies       []string `json:"skill_proficiencies,omitempty"`

	ActiveEffects []*StatusEffect `json:"active_effects,omitempty"`

	// Monster-only fields.
	QuestMonsterID   string  `json:"quest_monster_id,omitempty"`
	IsFinalObjective bool    `json:"is_final_objective,omitempty"`
	AttackRange      int     `json:"attack_range,omitempty"`
	AttackDamage     float64 `json:"attack_damage,omitempty"`
	DamageType       string  `json:"damage_type,omitempty"`
	ExperienceValue  int     `json:"experience_value,omitempty"`
}

// NewEntity builds an entity with initialized sub-records and sane bounds.
func NewEntity(id, name string, kind Kind) *Entity {
	return &Entity{
		ID:   id,
		Name: name,
		Kind: kind,
		Abilities: &Abilities{
			Strength:     10,
			Dexterity:    10,
			Constitution: 10,
			Intelligence: 10,
			Wisdom:       10,
			Charisma:     10,
		},
		Stats: &Stats{
			HP:           10,
			MaxHP:        10,
			MP:           10,
			MaxMP:        10,
			Level:        1,
			AC:           10,
			ACComponents: &ACComponents{Base: 10},
			ACMin:        1,
			ACMax:        40,
			Speed:        30,
		},
		CombatRuntime:   &CombatRuntime{},
		Resistances:     make(map[string]float64),
		Vulnerabilities: make(map[string]float64),
		EquippedItems:   make(map[string]*Item),
	}
}

// IsAlive reports whether the entity still has hit points.
func (e *Entity) IsAlive() bool {
	return e.Stats != nil && e.Stats.HP > 0
}

// AbilityModifier returns the modifier for the named ability, 0 when unknown.
func (e *Entity) AbilityModifier(name string) int {
	if e.Abilities == nil {
		return 0
	}
	score, ok := e.Abilities.Get(name)
	if !ok {
		return 0
	}
	return Modifier(score)
}

// ProficiencyBonus derives the proficiency bonus from level: 2 + (level-1)/4.
func (e *Entity) ProficiencyBonus() int {
	level := 1
	if e.Stats != nil {
		level = e.Stats.Level
	}
	if level < LevelMin {
		level = LevelMin
	}
	return 2 + (level-1)/4
}

// ACEffective returns the hit threshold: the AC component total clamped
// into [ACMin, ACMax]. Falls back to the legacy flat AC when no
// components are present.
func (e *Entity) ACEffective() int {
	if e.Stats == nil {
		return 10
	}
	total := e.Stats.AC
	if e.Stats.ACComponents != nil {
		total = e.Stats.ACComponents.Total()
	}
	lo, hi := e.Stats.ACMin, e.Stats.ACMax
	if hi <= 0 {
		hi = 40
	}
	if lo <= 0 {
		lo = 1
	}
	return clampInt(total, lo, hi)
}

// SetAbilityScore mutates one ability score, clamped to [1, 30].
func (e *Entity) SetAbilityScore(name string, score int) bool {
	if e.Abilities == nil {
		e.Abilities = &Abilities{}
	}
	return e.Abilities.Set(name, score)
}

// HasImmunity reports whether the entity ignores the damage type entirely.
func (e *Entity) HasImmunity(damageType string) bool {
	for _, t := range e.Immunities {
		if t == damageType {
			return true
		}
	}
	return false
}

// HasSavingThrowProficiency reports proficiency in the named ability save.
func (e *Entity) HasSavingThrowProficiency(ability string) bool {
	for _, p := range e.SavingThrowProficiencies {
		if p == ability {
			return true
		}
	}
	return false
}

// HasSkillProficiency reports proficiency in the named skill.
func (e *Entity) HasSkillProficiency(skill string) bool {
	for _, p := range e.SkillProficiencies {
		if p == skill {
			return true
		}
	}
	return false
}

// SyncLegacyMirrors copies the authoritative combat runtime buffers
// into the legacy stats fields.
func (e *Entity) SyncLegacyMirrors() {
	if e.Stats == nil || e.CombatRuntime == nil {
		return
	}
	e.Stats.Shield = e.CombatRuntime.Shield
	e.Stats.TemporaryHP = e.CombatRuntime.TemporaryHP
}

// ItemByID finds an inventory item, nil when absent.
func (e *Entity) ItemByID(itemID string) *Item {
	for _, it := range e.Inventory {
		if it != nil && it.ID == itemID {
			return it
		}
	}
	return nil
}

// RemoveItem takes an item out of the inventory, returning it, or nil.
func (e *Entity) RemoveItem(itemID string) *Item {
	for i, it := range e.Inventory {
		if it != nil && it.ID == itemID {
			e.Inventory = append(e.Inventory[:i], e.Inventory[i+1:]...)
			return it
		}
	}
	return nil
}

// EquippedSlots returns the occupied slot names in stable order.
func (e *Entity) EquippedSlots() []string {
	slots := make([]string, 0, len(e.EquippedItems))
	for slot, it := range e.EquippedItems {
		if it != nil {
			slots = append(slots, slot)
		}
	}
	sort.Strings(slots)
	return slots
}

// Clone deep-copies the entity. Items and effects are cloned; the copy
// shares nothing with the original.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e

	if e.Abilities != nil {
		a := *e.Abilities
		out.Abilities = &a
	}
	if e.Stats != nil {
		s := *e.Stats
		if e.Stats.ACComponents != nil {
			ac := *e.Stats.ACComponents
			s.ACComponents = &ac
		}
		out.Stats = &s
	}
	if e.CombatRuntime != nil {
		cr := *e.CombatRuntime
		out.CombatRuntime = &cr
	}

	out.Resistances = copyFloatMap(e.Resistances)
	out.Vulnerabilities = copyFloatMap(e.Vulnerabilities)
	out.Immunities = append([]string(nil), e.Immunities...)
	out.SavingThrowProficiencies = append([]string(nil), e.SavingThrowProficiencies...)
	out.SkillProficiencies = append([]string(nil), e.SkillProficiencies...)

	if e.EquippedItems != nil {
		out.EquippedItems = make(map[string]*Item, len(e.EquippedItems))
		for slot, it := range e.EquippedItems {
			out.EquippedItems[slot] = it.Clone()
		}
	}
	if e.Inventory != nil {
		out.Inventory = make([]*Item, len(e.Inventory))
		for i, it := range e.Inventory {
			out.Inventory[i] = it.Clone()
		}
	}
	if e.ActiveEffects != nil {
		out.ActiveEffects = make([]*StatusEffect, len(e.ActiveEffects))
		for i, ef := range e.ActiveEffects {
			out.ActiveEffects[i] = ef.Clone()
		}
	}
	return &out
}

func copyFloatMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
