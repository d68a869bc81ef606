package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/clients/llm"
	"github.com/labyrinthia/engine/internal/effects"
	"github.com/labyrinthia/engine/internal/entities"
)

// dropUndoWindow is how many turns a dropped item can be taken back.
const dropUndoWindow = 2

// handleUseItem covers both halves of the item verb: equippables
// toggle their slot, consumables resolve an effect payload (the
// item's own when it carries one, the oracle's otherwise).
func (s *service) handleUseItem(ctx context.Context, gs *entities.GameState, itemID string, force bool) (*entities.ActionResult, error) {
	if itemID == "" {
		return entities.FailResult(entities.ErrItemNotFound, "use_item needs an item_id"), nil
	}
	item, equippedSlot := findItem(gs.Player, itemID)
	if item == nil {
		return entities.FailResult(entities.ErrItemNotFound,
			fmt.Sprintf("no item %s", itemID)), nil
	}
	if item.OnCooldown() {
		return entities.FailResult(entities.ErrItemOnCooldown,
			fmt.Sprintf("%s needs %d more turns", item.Name, item.CurrentCooldown)), nil
	}
	if !item.HasCharges() {
		return entities.FailResult(entities.ErrItemNoCharges,
			fmt.Sprintf("%s is spent", item.Name)), nil
	}

	if item.IsEquippable {
		return s.toggleEquip(gs, item, equippedSlot)
	}
	return s.consumeItem(ctx, gs, item, force)
}

// findItem looks in the inventory first, then the equipped slots,
// returning the slot name when the item is worn.
func findItem(player *entities.Entity, itemID string) (*entities.Item, string) {
	if item := player.ItemByID(itemID); item != nil {
		return item, ""
	}
	for slot, item := range player.EquippedItems {
		if item != nil && item.ID == itemID {
			return item, slot
		}
	}
	return nil, ""
}

// toggleEquip equips from the inventory or unequips from the slot.
// Items move between the two containers so the state never holds two
// copies.
func (s *service) toggleEquip(gs *entities.GameState, item *entities.Item, equippedSlot string) (*entities.ActionResult, error) {
	player := gs.Player

	if equippedSlot != "" {
		s.unequipToInventory(player, equippedSlot, item)
		result := entities.OKResult(fmt.Sprintf("unequipped %s", item.Name))
		result.AddEvent(fmt.Sprintf("%s unequips %s", player.Name, item.Name))
		impact(result)["slot"] = equippedSlot
		return result, nil
	}

	if ok, reason := item.CanEquip(player); !ok {
		code := entities.ErrEquipRequirementNotMet
		if reason == "not_equippable" || reason == "invalid_equip_slot" {
			code = entities.ErrInvalidEquipSlot
		}
		return entities.FailResult(code,
			fmt.Sprintf("cannot equip %s: %s", item.Name, reason)), nil
	}

	// The target slot and any unique-key conflict vacate first.
	slot := item.EquipSlot
	var displaced []string
	if current := player.EquippedItems[slot]; current != nil {
		s.unequipToInventory(player, slot, current)
		displaced = append(displaced, current.Name)
	}
	if item.UniqueKey != "" {
		for _, otherSlot := range player.EquippedSlots() {
			other := player.EquippedItems[otherSlot]
			if other != nil && other.ID != item.ID && other.UniqueKey == item.UniqueKey {
				s.unequipToInventory(player, otherSlot, other)
				displaced = append(displaced, other.Name)
			}
		}
	}

	player.RemoveItem(item.ID)
	if player.EquippedItems == nil {
		player.EquippedItems = make(map[string]*entities.Item)
	}
	player.EquippedItems[slot] = item
	if _, err := s.effects.ApplyEquipmentEffects(player, item, slot); err != nil {
		// Roll the slot assignment back; the item returns to the pack.
		delete(player.EquippedItems, slot)
		player.Inventory = append(player.Inventory, item)
		return entities.FailResult(entities.ErrItemUseException,
			fmt.Sprintf("equipping %s failed: %v", item.Name, err)), nil
	}

	result := entities.OKResult(fmt.Sprintf("equipped %s", item.Name))
	result.AddEvent(fmt.Sprintf("%s equips %s", player.Name, item.Name))
	for _, name := range displaced {
		result.AddEvent(fmt.Sprintf("%s returns to the pack", name))
	}
	impact(result)["slot"] = slot
	return result, nil
}

// unequipToInventory reverts the item's equipment effects and moves it
// back to the inventory.
func (s *service) unequipToInventory(player *entities.Entity, slot string, item *entities.Item) {
	if _, err := s.effects.RevertEffectsBySource(player, effects.EquipSourceKey(slot, item.ID)); err != nil {
		s.log.Warn("equipment revert failed",
			zap.String("item_id", item.ID), zap.String("slot", slot), zap.Error(err))
	}
	delete(player.EquippedItems, slot)
	player.Inventory = append(player.Inventory, item)
}

// consumeItem resolves a consumable. Trigger-style items park a
// confirmation choice instead of firing blind; force bypasses it.
func (s *service) consumeItem(ctx context.Context, gs *entities.GameState, item *entities.Item, force bool) (*entities.ActionResult, error) {
	if item.RequiresUseConfirmation && !force {
		return s.parkItemChoice(gs, item), nil
	}

	result := entities.OKResult(fmt.Sprintf("used %s", item.Name))

	if len(item.EffectPayload) > 0 {
		if err := s.applyEffectPayload(gs, item.EffectPayload, result); err != nil {
			return entities.FailResult(entities.ErrItemEffectFailed,
				fmt.Sprintf("%s fizzles: %v", item.Name, err)), nil
		}
		s.applyConsumption(gs, item, item.ConsumptionHint)
		return result, nil
	}

	// Freeform item: the oracle decides what it does.
	effect, err := s.itemEffectFromOracle(ctx, gs, item, force)
	if err != nil {
		return entities.FailResult(entities.ErrItemEffectFailed,
			fmt.Sprintf("%s resists: %v", item.Name, err)), nil
	}
	applyItemIntel(item, effect)

	if effect.RequiresUseConfirmation && !force {
		return s.parkItemChoice(gs, item), nil
	}

	if effect.Narrative != "" {
		result.Narrative = effect.Narrative
	}
	for _, eff := range effect.SpecialEffects {
		if eff == nil {
			continue
		}
		if err := s.effects.ApplyStatusEffect(gs.Player, eff); err != nil {
			s.log.Warn("oracle status effect rejected",
				zap.String("item_id", item.ID), zap.Error(err))
			continue
		}
		result.AddEvent(fmt.Sprintf("%s takes hold of %s", eff.Name, gs.Player.Name))
	}
	if effect.PlayerUpdates != nil && !effect.PlayerUpdates.Empty() {
		s.applyOracleUpdates(gs, effect.PlayerUpdates, result)
	}
	s.applyConsumption(gs, item, effect.ConsumptionHint)
	return result, nil
}

// parkItemChoice opens the use-confirmation decision for a risky item.
func (s *service) parkItemChoice(gs *entities.GameState, item *entities.Item) *entities.ActionResult {
	choiceCtx := s.choices.ItemTriggerContext(item)
	s.choices.OpenContext(gs, choiceCtx)
	result := entities.OKResult(fmt.Sprintf("%s demands a committed hand", item.Name))
	result.AddEvent(fmt.Sprintf("%s hesitates over %s", gs.Player.Name, item.Name))
	return result
}

func (s *service) itemEffectFromOracle(ctx context.Context, gs *entities.GameState, item *entities.Item, force bool) (*llm.ItemEffect, error) {
	releaseSlot, err := s.tasks.AcquireLLMSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer releaseSlot()
	return s.oracle.GenerateItemEffect(ctx, &llm.ItemEffectRequest{State: gs, Item: item, Force: force})
}

// applyEffectPayload executes a deterministic item payload. Unknown
// keys are skipped so oracle-authored payloads degrade instead of
// failing.
func (s *service) applyEffectPayload(gs *entities.GameState, payload map[string]any, result *entities.ActionResult) error {
	player := gs.Player
	if v, ok := floatParam(payload, "heal_hp"); ok && v != 0 {
		if _, err := s.state.ApplyPlayerResourceDelta(gs, int(v), 0, "item_effect"); err != nil {
			return err
		}
		result.AddEvent(fmt.Sprintf("%s recovers %d HP", player.Name, int(v)))
	}
	if v, ok := floatParam(payload, "heal_mp"); ok && v != 0 {
		if _, err := s.state.ApplyPlayerResourceDelta(gs, 0, int(v), "item_effect"); err != nil {
			return err
		}
		result.AddEvent(fmt.Sprintf("%s recovers %d MP", player.Name, int(v)))
	}
	if raw, ok := payload["apply_status"].(map[string]any); ok {
		eff := effects.StatusFromPayload(raw)
		if err := s.effects.ApplyStatusEffect(player, eff); err != nil {
			return err
		}
		result.AddEvent(fmt.Sprintf("%s takes hold of %s", eff.Name, player.Name))
	}
	if cleanse, _ := payload["cleanse_debuffs"].(bool); cleanse {
		removed := 0
		for _, eff := range append([]*entities.StatusEffect(nil), player.ActiveEffects...) {
			if eff == nil {
				continue
			}
			switch eff.EffectType {
			case "debuff", "dot", "restraint":
				if s.effects.RemoveStatusEffect(player, eff.ID) {
					removed++
				}
			}
		}
		if removed > 0 {
			result.AddEvent(fmt.Sprintf("%d affliction(s) lift from %s", removed, player.Name))
		}
	}
	return nil
}

// applyOracleUpdates lands an oracle player_updates block through the
// state modifier, which owns validation and clamping.
func (s *service) applyOracleUpdates(gs *entities.GameState, updates *llm.PlayerUpdates, result *entities.ActionResult) {
	merged := map[string]any{}
	if len(updates.Stats) > 0 {
		merged["stats"] = updates.Stats
	}
	if len(updates.Abilities) > 0 {
		merged["abilities"] = updates.Abilities
	}
	if len(merged) > 0 {
		if _, err := s.state.ApplyPlayerUpdates(gs, merged, "item_effect"); err != nil {
			s.log.Warn("oracle player updates rejected", zap.Error(err))
		}
	}
	if len(updates.AddItems) > 0 {
		if _, err := s.state.AddInventoryItems(gs, updates.AddItems, "item_effect"); err != nil {
			s.log.Warn("oracle item grant failed", zap.Error(err))
		} else {
			for _, it := range updates.AddItems {
				result.AddEvent(fmt.Sprintf("%s gains %s", gs.Player.Name, it.Name))
			}
		}
	}
	for _, id := range updates.RemoveItems {
		if _, err := s.state.RemoveInventoryItem(gs, id, "item_effect"); err != nil {
			s.log.Debug("oracle item removal skipped",
				zap.String("item_id", id), zap.Error(err))
		}
	}
}

// applyItemIntel writes the oracle's intel refresh back onto the item
// so later inspections show what the player has learned.
func applyItemIntel(item *entities.Item, effect *llm.ItemEffect) {
	if effect == nil {
		return
	}
	if effect.HintLevel != "" {
		item.HintLevel = effect.HintLevel
	}
	if effect.TriggerHint != "" {
		item.TriggerHint = effect.TriggerHint
	}
	if effect.RiskHint != "" {
		item.RiskHint = effect.RiskHint
	}
	if len(effect.ExpectedOutcomes) > 0 {
		item.ExpectedOutcomes = append([]string(nil), effect.ExpectedOutcomes...)
	}
	if effect.RequiresUseConfirmation {
		item.RequiresUseConfirmation = true
	}
	if effect.ConsumptionHint != "" {
		item.ConsumptionHint = effect.ConsumptionHint
	}
}

// applyConsumption settles what the use cost: charges tick down,
// consumed items leave the inventory, persistent items only start
// their cooldown.
func (s *service) applyConsumption(gs *entities.GameState, item *entities.Item, hint string) {
	if hint == "" {
		if item.MaxCharges > 0 {
			hint = "charges"
		} else {
			hint = "consumed"
		}
	}
	switch hint {
	case "charges":
		if item.MaxCharges > 0 && item.Charges > 0 {
			item.Charges--
		}
	case "persistent":
		// Stays in the pack.
	default: // consumed
		if _, err := s.state.RemoveInventoryItem(gs, item.ID, "item_consumed"); err != nil {
			s.log.Debug("consumed item removal failed",
				zap.String("item_id", item.ID), zap.Error(err))
		}
	}
	if item.CooldownTurns > 0 {
		item.CurrentCooldown = item.CooldownTurns
	}
}

// handleDropItem puts an inventory item on the player's tile. Quest
// items need force; the drop leaves a short undo window.
func (s *service) handleDropItem(ctx context.Context, gs *entities.GameState, params map[string]any) (*entities.ActionResult, error) {
	itemID := stringParam(params, "item_id")
	force := boolParam(params, "force")
	if itemID == "" {
		return entities.FailResult(entities.ErrItemNotFound, "drop_item needs an item_id"), nil
	}
	player := gs.Player
	item := player.ItemByID(itemID)
	if item == nil {
		return entities.FailResult(entities.ErrItemNotFound,
			fmt.Sprintf("no item %s in the pack", itemID)), nil
	}
	if item.IsQuestItem && !force {
		msg := item.QuestLockReason
		if msg == "" {
			msg = fmt.Sprintf("%s is bound to the quest", item.Name)
		}
		return entities.FailResult(entities.ErrQuestItemLocked, msg), nil
	}

	tile := gs.CurrentMap.TileAt(player.Position.X, player.Position.Y)
	if tile == nil {
		return entities.FailResult(entities.ErrItemDropException, "nowhere to drop"), nil
	}
	dropped, err := s.state.RemoveInventoryItem(gs, itemID, "drop_item")
	if err != nil {
		return entities.FailResult(entities.ErrItemDropException,
			fmt.Sprintf("dropping %s failed: %v", item.Name, err)), nil
	}
	tile.Items = append(tile.Items, dropped)
	gs.DropUndo = &entities.DropUndoToken{
		ItemID:        dropped.ID,
		TileKey:       tile.Key(),
		DroppedAtTurn: gs.TurnCount,
		ExpiresAtTurn: gs.TurnCount + dropUndoWindow,
	}

	result := entities.OKResult(fmt.Sprintf("dropped %s", dropped.Name))
	result.AddEvent(fmt.Sprintf("%s sets down %s", player.Name, dropped.Name))
	impact(result)["tile"] = tile.Key()
	return result, nil
}

// handleUndoDropItem takes a just-dropped item back while the undo
// token is still warm.
func (s *service) handleUndoDropItem(ctx context.Context, gs *entities.GameState, params map[string]any) (*entities.ActionResult, error) {
	token := gs.DropUndo
	if token == nil {
		return entities.FailResult(entities.ErrUndoTokenMissing, "nothing to take back"), nil
	}
	if id := stringParam(params, "item_id"); id != "" && id != token.ItemID {
		return entities.FailResult(entities.ErrUndoTokenInvalid,
			fmt.Sprintf("the undo token does not cover %s", id)), nil
	}
	if gs.TurnCount > token.ExpiresAtTurn {
		gs.DropUndo = nil
		return entities.FailResult(entities.ErrUndoExpired, "the moment has passed"), nil
	}
	x, y, err := entities.ParseTileKey(token.TileKey)
	if err != nil {
		gs.DropUndo = nil
		return entities.FailResult(entities.ErrUndoTokenInvalid, "the undo token is corrupt"), nil
	}
	tile := gs.CurrentMap.TileAt(x, y)
	if tile == nil {
		gs.DropUndo = nil
		return entities.FailResult(entities.ErrUndoTokenInvalid, "the drop tile is gone"), nil
	}

	var item *entities.Item
	for i, it := range tile.Items {
		if it != nil && it.ID == token.ItemID {
			item = it
			tile.Items = append(tile.Items[:i], tile.Items[i+1:]...)
			break
		}
	}
	if item == nil {
		gs.DropUndo = nil
		return entities.FailResult(entities.ErrUndoTokenInvalid, "the item is no longer there"), nil
	}
	if _, err := s.state.AddInventoryItems(gs, []*entities.Item{item}, "undo_drop"); err != nil {
		tile.Items = append(tile.Items, item)
		return entities.FailResult(entities.ErrItemDropException,
			fmt.Sprintf("taking %s back failed: %v", item.Name, err)), nil
	}
	gs.DropUndo = nil

	result := entities.OKResult(fmt.Sprintf("took back %s", item.Name))
	result.AddEvent(fmt.Sprintf("%s scoops %s back up", gs.Player.Name, item.Name))
	return result, nil
}
