package entities

// Effect hook points, fired by the effect engine.
const (
	HookOnAttack      = "on_attack"
	HookOnHit         = "on_hit"
	HookOnDamageTaken = "on_damage_taken"
	HookOnKill        = "on_kill"
	HookOnTurnStart   = "on_turn_start"
	HookOnTurnEnd     = "on_turn_end"
)

// Blockable action names used in availability checks.
const (
	ActionMove      = "move"
	ActionAttack    = "attack"
	ActionCastSpell = "cast_spell"
	ActionUseItem   = "use_item"
)

// Effect stage order. Lower stages apply first; ties in hook dispatch
// are broken by ascending stage.
const (
	StageBase         = 10
	StageEquipPassive = 20
	StageAffix        = 30
	StageSet          = 40
	StageStatus       = 50
	StageSituational  = 60
)

// StatusEffect is an active timed effect on an entity. DurationTurns
// counts down at turn end; -1 means permanent until reverted by source.
type StatusEffect struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	EffectType  string `json:"effect_type"` // buff | debuff | dot | hot | restraint
	Description string `json:"description,omitempty"`

	DurationTurns int `json:"duration_turns"`

	// Modifiers are stat-key -> delta, applied while active.
	// Keys follow the equipment modifier vocabulary (ac.status, max_hp, ...).
	Modifiers map[string]float64 `json:"modifiers,omitempty"`

	// BlockedActions lists action names this effect forbids.
	BlockedActions []string `json:"blocked_actions,omitempty"`

	DamagePerTurn float64 `json:"damage_per_turn,omitempty"`
	HealPerTurn   float64 `json:"heal_per_turn,omitempty"`
	DamageType    string  `json:"damage_type,omitempty"`

	// SourceKey identifies what applied the effect, e.g.
	// "equip:main_hand:itm-3" or "trap:poison_dart".
	SourceKey  string `json:"source_key,omitempty"`
	StageOrder int    `json:"stage_order,omitempty"`

	AppliedAtTurn int `json:"applied_at_turn,omitempty"`
}

// Blocks reports whether the effect forbids the named action.
func (s *StatusEffect) Blocks(action string) bool {
	for _, a := range s.BlockedActions {
		if a == action {
			return true
		}
	}
	return false
}

// Expired reports whether the effect has run out of turns.
func (s *StatusEffect) Expired() bool {
	return s.DurationTurns == 0
}

// Clone deep-copies the effect.
func (s *StatusEffect) Clone() *StatusEffect {
	if s == nil {
		return nil
	}
	out := *s
	out.Modifiers = copyFloatMap(s.Modifiers)
	out.BlockedActions = append([]string(nil), s.BlockedActions...)
	return &out
}
