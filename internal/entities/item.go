package entities

// Equipment slot names.
const (
	SlotMainHand  = "main_hand"
	SlotOffHand   = "off_hand"
	SlotHead      = "head"
	SlotBody      = "body"
	SlotHands     = "hands"
	SlotFeet      = "feet"
	SlotAmulet    = "amulet"
	SlotRingLeft  = "ring_left"
	SlotRingRight = "ring_right"
)

// EquipSlots lists every recognized slot.
var EquipSlots = []string{
	SlotMainHand, SlotOffHand, SlotHead, SlotBody, SlotHands,
	SlotFeet, SlotAmulet, SlotRingLeft, SlotRingRight,
}

// ValidEquipSlot reports whether the slot name is recognized.
func ValidEquipSlot(slot string) bool {
	for _, s := range EquipSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// Item hint levels for intel gathered by identify-style item use.
const (
	HintNone  = "none"
	HintVague = "vague"
	HintClear = "clear"
)

// StatModifier is one additive stat delta contributed by equipment.
// Keys: "max_hp", "max_mp", "speed", "attack_bonus", "damage_bonus",
// "shield", "temporary_hp", "regen_per_turn", "ac.armor", "ac.shield",
// "ac.status", "ac.situational", "resist.{type}", "vuln.{type}",
// "ability.{str|dex|con|int|wis|cha}".
type StatModifier struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// ItemAffix is a rolled bonus on an item, applied at its stage with a
// trace row per delta. An affix may also register one hook effect.
type ItemAffix struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	StageOrder int             `json:"stage_order,omitempty"` // defaults to StageAffix
	Modifiers  []*StatModifier `json:"modifiers,omitempty"`

	Hook       string         `json:"hook,omitempty"` // one of the Hook* names
	HookEffect map[string]any `json:"hook_effect,omitempty"`
}

// SetThreshold activates extra modifiers when the wearer has at least
// Count pieces of the same SetID equipped.
type SetThreshold struct {
	Count     int             `json:"count"`
	Modifiers []*StatModifier `json:"modifiers,omitempty"`
}

// EquipRequirements gate equipping an item.
type EquipRequirements struct {
	Level     int            `json:"level,omitempty"`
	Classes   []string       `json:"classes,omitempty"`
	Abilities map[string]int `json:"abilities,omitempty"` // ability key -> minimum score
}

// Item is anything that can sit in an inventory, a tile, or a slot.
type Item struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	ItemType    string  `json:"item_type"` // weapon | armor | consumable | trinket | quest
	Rarity      string  `json:"rarity,omitempty"`
	Value       int     `json:"value,omitempty"`
	Weight      float64 `json:"weight,omitempty"`

	Properties map[string]any `json:"properties,omitempty"`

	IsEquippable bool   `json:"is_equippable,omitempty"`
	EquipSlot    string `json:"equip_slot,omitempty"`
	// UniqueKey enforces mutual exclusion across slots: two equipped
	// items may not share a non-empty UniqueKey.
	UniqueKey         string             `json:"unique_key,omitempty"`
	EquipRequirements *EquipRequirements `json:"equip_requirements,omitempty"`

	EquipPassiveEffects []*StatModifier `json:"equip_passive_effects,omitempty"`
	Affixes             []*ItemAffix    `json:"affixes,omitempty"`
	SetID               string          `json:"set_id,omitempty"`
	SetThresholds       []*SetThreshold `json:"set_thresholds,omitempty"`

	MaxCharges      int `json:"max_charges,omitempty"`
	Charges         int `json:"charges,omitempty"`
	CooldownTurns   int `json:"cooldown_turns,omitempty"`
	CurrentCooldown int `json:"current_cooldown,omitempty"`

	// EffectPayload is the deterministic use-effect; consumed before
	// asking the oracle for one.
	EffectPayload map[string]any `json:"effect_payload,omitempty"`

	IsQuestItem     bool   `json:"is_quest_item,omitempty"`
	QuestLockReason string `json:"quest_lock_reason,omitempty"`

	// Intel fields, refreshed by identify effects.
	HintLevel               string   `json:"hint_level,omitempty"` // none | vague | clear
	TriggerHint             string   `json:"trigger_hint,omitempty"`
	RiskHint                string   `json:"risk_hint,omitempty"`
	ExpectedOutcomes        []string `json:"expected_outcomes,omitempty"`
	RequiresUseConfirmation bool     `json:"requires_use_confirmation,omitempty"`
	ConsumptionHint         string   `json:"consumption_hint,omitempty"`
}

// OnCooldown reports whether the item is still cooling down.
func (i *Item) OnCooldown() bool {
	return i.CurrentCooldown > 0
}

// HasCharges reports whether a charge-limited item can still be used.
// Items without MaxCharges are unlimited.
func (i *Item) HasCharges() bool {
	if i.MaxCharges <= 0 {
		return true
	}
	return i.Charges > 0
}

// CanEquip checks the item's requirements against the entity.
// Returns ok plus a machine reason when blocked.
func (i *Item) CanEquip(e *Entity) (bool, string) {
	if !i.IsEquippable {
		return false, "not_equippable"
	}
	if !ValidEquipSlot(i.EquipSlot) {
		return false, "invalid_equip_slot"
	}
	req := i.EquipRequirements
	if req == nil {
		return true, ""
	}
	if req.Level > 0 && e.Stats != nil && e.Stats.Level < req.Level {
		return false, "level_too_low"
	}
	if len(req.Classes) > 0 {
		allowed := false
		for _, c := range req.Classes {
			if c == e.Class {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, "class_not_allowed"
		}
	}
	for ability, minimum := range req.Abilities {
		score, ok := e.Abilities.Get(ability)
		if !ok || score < minimum {
			return false, "ability_too_low"
		}
	}
	return true, ""
}

// Clone deep-copies the item.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	out := *i

	out.Properties = copyAnyMap(i.Properties)
	out.EffectPayload = copyAnyMap(i.EffectPayload)
	out.ExpectedOutcomes = append([]string(nil), i.ExpectedOutcomes...)

	if i.EquipRequirements != nil {
		req := *i.EquipRequirements
		req.Classes = append([]string(nil), i.EquipRequirements.Classes...)
		if i.EquipRequirements.Abilities != nil {
			req.Abilities = make(map[string]int, len(i.EquipRequirements.Abilities))
			for k, v := range i.EquipRequirements.Abilities {
				req.Abilities[k] = v
			}
		}
		out.EquipRequirements = &req
	}

	if i.EquipPassiveEffects != nil {
		out.EquipPassiveEffects = make([]*StatModifier, len(i.EquipPassiveEffects))
		for idx, m := range i.EquipPassiveEffects {
			mm := *m
			out.EquipPassiveEffects[idx] = &mm
		}
	}
	if i.Affixes != nil {
		out.Affixes = make([]*ItemAffix, len(i.Affixes))
		for idx, a := range i.Affixes {
			out.Affixes[idx] = a.clone()
		}
	}
	if i.SetThresholds != nil {
		out.SetThresholds = make([]*SetThreshold, len(i.SetThresholds))
		for idx, st := range i.SetThresholds {
			cp := &SetThreshold{Count: st.Count}
			for _, m := range st.Modifiers {
				mm := *m
				cp.Modifiers = append(cp.Modifiers, &mm)
			}
			out.SetThresholds[idx] = cp
		}
	}
	return &out
}

func (a *ItemAffix) clone() *ItemAffix {
	if a == nil {
		return nil
	}
	out := *a
	if a.Modifiers != nil {
		out.Modifiers = make([]*StatModifier, len(a.Modifiers))
		for i, m := range a.Modifiers {
			mm := *m
			out.Modifiers[i] = &mm
		}
	}
	out.HookEffect = copyAnyMap(a.HookEffect)
	return &out
}

// Stage returns the affix stage, defaulting to StageAffix.
func (a *ItemAffix) Stage() int {
	if a.StageOrder > 0 {
		return a.StageOrder
	}
	return StageAffix
}

func copyAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyAnyValue(v)
	}
	return out
}

func copyAnyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyAnyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyAnyValue(e)
		}
		return out
	default:
		return v
	}
}
