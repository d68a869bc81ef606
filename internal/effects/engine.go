package effects

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/uuid"
)

// Engine applies and reverts stat-modifying effects on entities and
// dispatches effect hooks. All modifier writes flow through the delta
// accessors so every change is recorded and exactly revertible.
type Engine struct {
	log *zap.Logger
	ids uuid.Generator

	mu    sync.RWMutex
	hooks []*hookRegistration
}

type hookRegistration struct {
	id    string
	hook  string
	stage int
	fn    HookFunc
}

// EngineConfig configures the effect engine.
type EngineConfig struct {
	Logger      *zap.Logger
	IDGenerator uuid.Generator
}

// NewEngine creates an effect engine. Missing config fields fall back
// to a nop logger and the random UUID generator.
func NewEngine(cfg *EngineConfig) *Engine {
	e := &Engine{
		log: zap.NewNop(),
		ids: uuid.NewGoogleUUIDGenerator(),
	}
	if cfg != nil {
		if cfg.Logger != nil {
			e.log = cfg.Logger
		}
		if cfg.IDGenerator != nil {
			e.ids = cfg.IDGenerator
		}
	}
	return e
}

// RegisterHook adds a programmatic hook. Hooks run in registration
// order within a hook point; equipment affix hooks run after them,
// ordered by stage.
func (e *Engine) RegisterHook(hook string, stage int, fn HookFunc) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.ids.New()
	e.hooks = append(e.hooks, &hookRegistration{id: id, hook: hook, stage: stage, fn: fn})
	return id
}

// UnregisterHook removes a previously registered hook.
func (e *Engine) UnregisterHook(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, reg := range e.hooks {
		if reg.id == id {
			e.hooks = append(e.hooks[:i], e.hooks[i+1:]...)
			return
		}
	}
}

// ActionAvailability reports which actions the entity may take given
// its active status effects.
func (e *Engine) ActionAvailability(entity *entities.Entity) *ActionAvailability {
	avail := &ActionAvailability{
		CanMove:        true,
		CanAttack:      true,
		CanCastSpell:   true,
		CanUseItem:     true,
		BlockedActions: make(map[string][]string),
	}
	if entity == nil {
		return avail
	}

	for _, eff := range entity.ActiveEffects {
		if eff == nil || eff.Expired() {
			continue
		}
		for _, action := range eff.BlockedActions {
			avail.BlockedActions[action] = append(avail.BlockedActions[action], eff.ID)
			switch action {
			case entities.ActionMove:
				avail.CanMove = false
			case entities.ActionAttack:
				avail.CanAttack = false
			case entities.ActionCastSpell:
				avail.CanCastSpell = false
			case entities.ActionUseItem:
				avail.CanUseItem = false
			}
		}
	}
	return avail
}

// stagedModifier pairs one stat delta with the stage it applies at.
type stagedModifier struct {
	stage  int
	itemID string
	key    string
	value  float64
}

// ApplyEquipmentEffects materializes an equipped item's passive
// modifiers onto the entity under the item's source key. Modifiers
// apply in ascending stage order and every delta produces a trace
// row. Set-threshold bonuses newly satisfied by this item are applied
// under the same source key so unequipping reverts them with it.
func (e *Engine) ApplyEquipmentEffects(entity *entities.Entity, item *entities.Item, slot string) ([]TraceRow, error) {
	if entity == nil || item == nil {
		return nil, errors.InvalidArgument("entity and item are required")
	}
	sourceKey := EquipSourceKey(slot, item.ID)

	for _, eff := range entity.ActiveEffects {
		if eff != nil && eff.SourceKey == sourceKey {
			return nil, errors.AlreadyExistsf("effects for %s already applied", sourceKey)
		}
	}

	var staged []stagedModifier
	for _, mod := range item.EquipPassiveEffects {
		if mod == nil {
			continue
		}
		staged = append(staged, stagedModifier{
			stage:  entities.StageEquipPassive,
			itemID: item.ID,
			key:    mod.Key,
			value:  mod.Value,
		})
	}
	for _, affix := range item.Affixes {
		if affix == nil {
			continue
		}
		for _, mod := range affix.Modifiers {
			if mod == nil {
				continue
			}
			staged = append(staged, stagedModifier{
				stage:  affix.Stage(),
				itemID: item.ID,
				key:    mod.Key,
				value:  mod.Value,
			})
		}
	}
	staged = append(staged, e.newlySatisfiedSetBonuses(entity, item)...)

	sort.SliceStable(staged, func(i, j int) bool { return staged[i].stage < staged[j].stage })

	trace := make([]TraceRow, 0, len(staged))
	applied := make(map[string]float64)
	for _, mod := range staged {
		before, after, ok := applyStatDelta(entity, mod.key, mod.value)
		if !ok {
			e.log.Warn("unknown equipment modifier key skipped",
				zap.String("item_id", mod.itemID),
				zap.String("key", mod.key))
			continue
		}
		trace = append(trace, TraceRow{
			Stage:  mod.stage,
			Source: sourceKey,
			ItemID: mod.itemID,
			Key:    mod.key,
			Before: before,
			Delta:  after - before,
			After:  after,
		})
		applied[mod.key] += after - before
	}

	entity.ActiveEffects = append(entity.ActiveEffects, &entities.StatusEffect{
		ID:            sourceKey,
		Name:          item.Name,
		EffectType:    "equipment",
		DurationTurns: -1,
		Modifiers:     applied,
		SourceKey:     sourceKey,
		StageOrder:    entities.StageEquipPassive,
	})
	entity.SyncLegacyMirrors()
	return trace, nil
}

// newlySatisfiedSetBonuses returns set-threshold modifiers that become
// active once item joins the already equipped pieces of its set.
func (e *Engine) newlySatisfiedSetBonuses(entity *entities.Entity, item *entities.Item) []stagedModifier {
	if item.SetID == "" || len(item.SetThresholds) == 0 {
		return nil
	}

	pieces := 1
	for _, equipped := range entity.EquippedItems {
		if equipped != nil && equipped.ID != item.ID && equipped.SetID == item.SetID {
			pieces++
		}
	}

	var staged []stagedModifier
	for _, threshold := range item.SetThresholds {
		if threshold == nil || threshold.Count != pieces {
			continue
		}
		for _, mod := range threshold.Modifiers {
			if mod == nil {
				continue
			}
			staged = append(staged, stagedModifier{
				stage:  entities.StageSet,
				itemID: item.ID,
				key:    mod.Key,
				value:  mod.Value,
			})
		}
	}
	return staged
}

// RevertEffectsBySource unwinds every effect recorded under sourceKey,
// restoring the stats it changed to their prior values.
func (e *Engine) RevertEffectsBySource(entity *entities.Entity, sourceKey string) ([]TraceRow, error) {
	if entity == nil {
		return nil, errors.InvalidArgument("entity is required")
	}

	var trace []TraceRow
	kept := entity.ActiveEffects[:0]
	reverted := false
	for _, eff := range entity.ActiveEffects {
		if eff == nil || eff.SourceKey != sourceKey {
			kept = append(kept, eff)
			continue
		}
		reverted = true
		for _, key := range sortedKeys(eff.Modifiers) {
			delta := eff.Modifiers[key]
			before, after, ok := applyStatDelta(entity, key, -delta)
			if !ok {
				continue
			}
			trace = append(trace, TraceRow{
				Stage:  eff.StageOrder,
				Source: sourceKey,
				Key:    key,
				Before: before,
				Delta:  after - before,
				After:  after,
			})
		}
	}
	entity.ActiveEffects = kept

	if !reverted {
		return nil, errors.NotFoundf("no effects recorded for %s", sourceKey)
	}

	clampVitals(entity)
	entity.SyncLegacyMirrors()
	return trace, nil
}

// ApplyStatusEffect attaches a status effect and applies its stat
// modifiers. The effect's modifier map is rewritten with the actual
// applied deltas so expiry reverts exactly.
func (e *Engine) ApplyStatusEffect(entity *entities.Entity, eff *entities.StatusEffect) error {
	if entity == nil || eff == nil {
		return errors.InvalidArgument("entity and effect are required")
	}
	if eff.ID == "" {
		eff.ID = e.ids.New()
	}
	if eff.StageOrder == 0 {
		eff.StageOrder = entities.StageStatus
	}

	applied := make(map[string]float64, len(eff.Modifiers))
	for _, key := range sortedKeys(eff.Modifiers) {
		before, after, ok := applyStatDelta(entity, key, eff.Modifiers[key])
		if !ok {
			e.log.Warn("unknown status modifier key skipped",
				zap.String("effect", eff.Name),
				zap.String("key", key))
			continue
		}
		applied[key] = after - before
	}
	eff.Modifiers = applied

	entity.ActiveEffects = append(entity.ActiveEffects, eff)
	entity.SyncLegacyMirrors()
	return nil
}

// RemoveStatusEffect reverts and detaches one effect by ID.
func (e *Engine) RemoveStatusEffect(entity *entities.Entity, effectID string) bool {
	if entity == nil {
		return false
	}
	for i, eff := range entity.ActiveEffects {
		if eff == nil || eff.ID != effectID {
			continue
		}
		for _, key := range sortedKeys(eff.Modifiers) {
			applyStatDelta(entity, key, -eff.Modifiers[key])
		}
		entity.ActiveEffects = append(entity.ActiveEffects[:i], entity.ActiveEffects[i+1:]...)
		clampVitals(entity)
		entity.SyncLegacyMirrors()
		return true
	}
	return false
}

// ProcessTurnEffects ticks every living combatant's effects: damage
// and heal over time land, durations count down, expired effects are
// reverted and dropped, and item cooldowns cool. Returns the
// narrative events produced.
func (e *Engine) ProcessTurnEffects(state *entities.GameState, trigger string) []string {
	if state == nil {
		return nil
	}

	var events []string
	combatants := []*entities.Entity{}
	if state.Player != nil {
		combatants = append(combatants, state.Player)
	}
	combatants = append(combatants, state.LivingMonsters()...)

	for _, entity := range combatants {
		events = append(events, e.tickEntity(entity, trigger)...)
	}

	if trigger == entities.HookOnTurnEnd && state.Player != nil {
		tickItemCooldowns(state.Player)
	}
	return events
}

func (e *Engine) tickEntity(entity *entities.Entity, trigger string) []string {
	if entity == nil || entity.Stats == nil {
		return nil
	}

	var events []string

	if trigger == entities.HookOnTurnEnd && entity.CombatRuntime != nil && entity.CombatRuntime.RegenPerTurn > 0 && entity.IsAlive() {
		healed := healEntity(entity, entity.CombatRuntime.RegenPerTurn)
		if healed > 0 {
			events = append(events, fmt.Sprintf("%s regenerates %d HP", entity.Name, healed))
		}
	}

	var expired []string
	for _, eff := range entity.ActiveEffects {
		if eff == nil {
			continue
		}

		if trigger == entities.HookOnTurnEnd && entity.IsAlive() {
			if eff.DamagePerTurn > 0 {
				dmg := int(math.Round(eff.DamagePerTurn))
				entity.Stats.HP = maxInt(0, entity.Stats.HP-dmg)
				events = append(events, fmt.Sprintf("%s takes %d %s damage from %s", entity.Name, dmg, eff.DamageType, eff.Name))
				if entity.Stats.HP == 0 {
					events = append(events, fmt.Sprintf("%s succumbs to %s", entity.Name, eff.Name))
				}
			}
			if eff.HealPerTurn > 0 && entity.IsAlive() {
				healed := healEntity(entity, eff.HealPerTurn)
				if healed > 0 {
					events = append(events, fmt.Sprintf("%s recovers %d HP from %s", entity.Name, healed, eff.Name))
				}
			}
		}

		if trigger == entities.HookOnTurnEnd && eff.DurationTurns > 0 {
			eff.DurationTurns--
		}
		if eff.Expired() {
			expired = append(expired, eff.ID)
			events = append(events, fmt.Sprintf("%s wears off %s", eff.Name, entity.Name))
		}
	}

	for _, id := range expired {
		e.RemoveStatusEffect(entity, id)
	}
	return events
}

// ProcessEffectHooks fires one hook point: programmatic hooks in
// registration order first, then the actor's equipment affix hooks in
// stage order. Numeric contributions accumulate into ctxData keys
// ("attack_bonus", "damage_bonus") for the caller to read.
func (e *Engine) ProcessEffectHooks(state *entities.GameState, hook string, actor, target *entities.Entity, ctxData map[string]any) []string {
	if ctxData == nil {
		ctxData = make(map[string]any)
	}

	var events []string

	e.mu.RLock()
	registered := make([]*hookRegistration, 0, len(e.hooks))
	for _, reg := range e.hooks {
		if reg.hook == hook {
			registered = append(registered, reg)
		}
	}
	e.mu.RUnlock()

	for _, reg := range registered {
		if out := reg.fn(state, actor, target, ctxData); len(out) > 0 {
			events = append(events, out...)
		}
	}

	if actor != nil {
		for _, hooked := range affixHooksFor(actor, hook) {
			events = append(events, e.runAffixHook(state, hooked, actor, target, ctxData)...)
		}
	}
	return events
}

// hookedAffix is an affix hook gathered from an equipped item.
type hookedAffix struct {
	slot   string
	itemID string
	affix  *entities.ItemAffix
}

func affixHooksFor(actor *entities.Entity, hook string) []hookedAffix {
	var hooked []hookedAffix
	for _, slot := range actor.EquippedSlots() {
		item := actor.EquippedItems[slot]
		if item == nil {
			continue
		}
		for _, affix := range item.Affixes {
			if affix != nil && affix.Hook == hook {
				hooked = append(hooked, hookedAffix{slot: slot, itemID: item.ID, affix: affix})
			}
		}
	}
	sort.SliceStable(hooked, func(i, j int) bool {
		return hooked[i].affix.Stage() < hooked[j].affix.Stage()
	})
	return hooked
}

func (e *Engine) runAffixHook(state *entities.GameState, hooked hookedAffix, actor, target *entities.Entity, ctxData map[string]any) []string {
	var events []string

	for _, key := range sortedAnyKeys(hooked.affix.HookEffect) {
		value := hooked.affix.HookEffect[key]
		switch key {
		case "attack_bonus", "damage_bonus":
			bonus, ok := toFloat(value)
			if !ok {
				continue
			}
			current, _ := toFloat(ctxData[key])
			ctxData[key] = current + bonus
		case "heal":
			amount, ok := toFloat(value)
			if !ok || actor == nil {
				continue
			}
			if healed := healEntity(actor, amount); healed > 0 {
				events = append(events, fmt.Sprintf("%s restores %d HP to %s", hooked.affix.Name, healed, actor.Name))
			}
		case "reflect":
			amount, ok := toFloat(value)
			if !ok || target == nil || target.Stats == nil {
				continue
			}
			dmg := int(math.Round(amount))
			target.Stats.HP = maxInt(0, target.Stats.HP-dmg)
			events = append(events, fmt.Sprintf("%s reflects %d damage to %s", hooked.affix.Name, dmg, target.Name))
		case "apply_status":
			payload, ok := value.(map[string]any)
			if !ok {
				continue
			}
			recipient := target
			if self, _ := payload["self"].(bool); self || recipient == nil {
				recipient = actor
			}
			eff := StatusFromPayload(payload)
			if err := e.ApplyStatusEffect(recipient, eff); err == nil {
				events = append(events, fmt.Sprintf("%s afflicts %s with %s", hooked.affix.Name, recipient.Name, eff.Name))
			}
		default:
			e.log.Debug("unknown affix hook effect key",
				zap.String("affix", hooked.affix.Name),
				zap.String("key", key))
		}
	}
	return events
}

// StatusFromPayload builds a status effect from a loose payload map, the
// shape item effects, affix hooks, and choice consequences all share.
// Missing fields get conservative defaults.
func StatusFromPayload(payload map[string]any) *entities.StatusEffect {
	eff := &entities.StatusEffect{
		Name:          "effect",
		EffectType:    "debuff",
		DurationTurns: 1,
	}
	if name, ok := payload["name"].(string); ok && name != "" {
		eff.Name = name
	}
	if effType, ok := payload["effect_type"].(string); ok && effType != "" {
		eff.EffectType = effType
	}
	if v, ok := toFloat(payload["duration_turns"]); ok {
		eff.DurationTurns = int(v)
	}
	if v, ok := toFloat(payload["damage_per_turn"]); ok {
		eff.DamagePerTurn = v
	}
	if v, ok := toFloat(payload["heal_per_turn"]); ok {
		eff.HealPerTurn = v
	}
	if dt, ok := payload["damage_type"].(string); ok {
		eff.DamageType = dt
	}
	if mods, ok := payload["modifiers"].(map[string]any); ok {
		eff.Modifiers = make(map[string]float64, len(mods))
		for k, raw := range mods {
			if v, ok := toFloat(raw); ok {
				eff.Modifiers[k] = v
			}
		}
	}
	if blocked, ok := payload["blocked_actions"].([]any); ok {
		for _, raw := range blocked {
			if action, ok := raw.(string); ok {
				eff.BlockedActions = append(eff.BlockedActions, action)
			}
		}
	}
	return eff
}

// healEntity raises HP toward max and returns the amount restored.
func healEntity(entity *entities.Entity, amount float64) int {
	if entity.Stats == nil || amount <= 0 {
		return 0
	}
	heal := int(math.Round(amount))
	before := entity.Stats.HP
	entity.Stats.HP = minInt(entity.Stats.MaxHP, entity.Stats.HP+heal)
	return entity.Stats.HP - before
}

func tickItemCooldowns(entity *entities.Entity) {
	for _, item := range entity.Inventory {
		if item != nil && item.CurrentCooldown > 0 {
			item.CurrentCooldown--
		}
	}
	for _, item := range entity.EquippedItems {
		if item != nil && item.CurrentCooldown > 0 {
			item.CurrentCooldown--
		}
	}
}

func clampVitals(entity *entities.Entity) {
	if entity.Stats == nil {
		return
	}
	if entity.Stats.HP > entity.Stats.MaxHP {
		entity.Stats.HP = entity.Stats.MaxHP
	}
	if entity.Stats.MP > entity.Stats.MaxMP {
		entity.Stats.MP = entity.Stats.MaxMP
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedAnyKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
