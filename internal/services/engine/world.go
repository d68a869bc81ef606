package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/clients/llm"
	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/services/progress"
)

// handleInteract works the tile the player stands on, or an adjacent
// one: doors open, detected traps get a disarm attempt, treasure
// yields oracle loot once, story and mystery tiles fire their quest
// hooks.
func (s *service) handleInteract(ctx context.Context, gs *entities.GameState, params map[string]any) (*entities.ActionResult, error) {
	player := gs.Player
	x, y := player.Position.X, player.Position.Y
	if px, ok := intParam(params, "x"); ok {
		x = px
	}
	if py, ok := intParam(params, "y"); ok {
		y = py
	}
	if chebyshev(player.Position, entities.Position{X: x, Y: y}) > 1 {
		return failReason("out_of_reach", "too far away to interact"), nil
	}
	tile := gs.CurrentMap.TileAt(x, y)
	if tile == nil {
		return failReason("out_of_bounds", "nothing there"), nil
	}

	switch {
	case tile.Terrain == entities.TerrainDoor:
		tile.Terrain = entities.TerrainFloor
		result := entities.OKResult("the door opens")
		result.AddEvent("A door creaks open")
		return result, nil

	case tile.Terrain == entities.TerrainTrap && tile.TrapDetected && !tile.TrapDisarmed:
		disarm, err := s.traps.Disarm(ctx, gs, tile)
		if err != nil {
			return nil, err
		}
		result := entities.OKResult(disarm.Outcome)
		for _, e := range disarm.Events {
			result.AddEvent(e)
		}
		if disarm.Narrative != "" {
			result.Narrative = disarm.Narrative
		}
		return result, nil

	case tile.Terrain == entities.TerrainTreasure,
		tile.HasEvent && tile.EventType == entities.EventTreasure && !tile.EventTriggered,
		len(tile.Items) > 0:
		return s.lootTile(ctx, gs, tile)

	case tile.HasEvent && !tile.EventTriggered &&
		(tile.EventType == entities.EventStory || tile.EventType == entities.EventMystery):
		return s.triggerStoryEvent(ctx, gs, tile)
	}

	return failReason("nothing_to_interact", "nothing responds"), nil
}

// lootTile hands over whatever the tile holds. Loose items transfer
// directly; a treasure cache rolls oracle loot exactly once, with the
// collected set guarding against double pickup.
func (s *service) lootTile(ctx context.Context, gs *entities.GameState, tile *entities.MapTile) (*entities.ActionResult, error) {
	player := gs.Player

	if len(tile.Items) > 0 {
		items := tile.Items
		tile.Items = nil
		if _, err := s.state.AddInventoryItems(gs, items, "pickup"); err != nil {
			tile.Items = items
			return entities.FailResult(entities.ErrActionProcessError,
				fmt.Sprintf("pickup failed: %v", err)), nil
		}
		result := entities.OKResult("picked up what was lying there")
		for _, it := range items {
			result.AddEvent(fmt.Sprintf("%s picks up %s", player.Name, it.Name))
		}
		impact(result)["items_found"] = len(items)
		return result, nil
	}

	if tile.EventTriggered || len(tile.ItemsCollected) > 0 {
		return failReason("already_looted", "only dust remains"), nil
	}

	items, err := s.oracleLoot(ctx, gs, 1+gs.CurrentMap.Depth/3)
	if err != nil {
		s.log.Warn("treasure generation failed",
			zap.String("tile", tile.Key()), zap.Error(err))
		return entities.FailResult(entities.ErrActionProcessError, "the lid will not budge; try again"), nil
	}
	if _, err := s.state.AddInventoryItems(gs, items, "treasure"); err != nil {
		return entities.FailResult(entities.ErrActionProcessError,
			fmt.Sprintf("stashing the loot failed: %v", err)), nil
	}

	result := entities.OKResult("treasure claimed")
	for _, it := range items {
		tile.ItemsCollected = append(tile.ItemsCollected, it.ID)
		result.AddEvent(fmt.Sprintf("%s finds %s", player.Name, it.Name))
	}
	if tile.HasEvent {
		tile.EventTriggered = true
	}

	prog, err := s.progress.ProcessEvent(ctx, &progress.ProcessEventInput{
		EventType:   entities.ProgressTreasureFound,
		State:       gs,
		ContextData: map[string]any{"tile": tile.Key()},
	})
	if err != nil {
		s.log.Warn("treasure progress failed", zap.Error(err))
	} else if prog != nil {
		for _, e := range prog.Events {
			result.AddEvent(e)
		}
	}
	impact(result)["items_found"] = len(items)
	return result, nil
}

func (s *service) oracleLoot(ctx context.Context, gs *entities.GameState, count int) ([]*entities.Item, error) {
	releaseSlot, err := s.tasks.AcquireLLMSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer releaseSlot()
	return s.oracle.GenerateItems(ctx, &llm.ItemsRequest{
		State:       gs,
		Reason:      "treasure",
		Count:       count,
		Depth:       gs.CurrentMap.Depth,
		PlayerLevel: playerLevel(gs),
	})
}

// triggerStoryEvent fires a story or mystery tile: quest bookkeeping
// first, then the STORY_EVENT progress increment.
func (s *service) triggerStoryEvent(ctx context.Context, gs *entities.GameState, tile *entities.MapTile) (*entities.ActionResult, error) {
	tile.EventTriggered = true
	tile.IsEventHidden = false

	result := entities.OKResult("something stirs")
	result.AddEvent("Something stirs in the gloom")

	ctxData := map[string]any{"tile": tile.Key()}
	eventID, _ := tile.EventData["quest_event_id"].(string)
	if eventID != "" {
		if quest := gs.ActiveQuest(); quest != nil {
			for _, ev := range quest.SpecialEvents {
				if ev != nil && ev.ID == eventID {
					if ev.ProgressValue > 0 {
						ctxData["progress_value"] = ev.ProgressValue
					}
					result.Message = ev.Name
					break
				}
			}
			if _, err := s.state.ApplyQuestUpdates(gs, []map[string]any{{
				"quest_id":         quest.ID,
				"trigger_event_id": eventID,
			}}, "story_event"); err != nil {
				s.log.Warn("quest event trigger failed",
					zap.String("quest_event_id", eventID), zap.Error(err))
			}
		}
	}

	prog, err := s.progress.ProcessEvent(ctx, &progress.ProcessEventInput{
		EventType:   entities.ProgressStoryEvent,
		State:       gs,
		ContextData: ctxData,
	})
	if err != nil {
		s.log.Warn("story progress failed", zap.Error(err))
	} else if prog != nil {
		for _, e := range prog.Events {
			result.AddEvent(e)
		}
	}
	return result, nil
}

// handleRest trades the turn for recovery: a quarter of max HP and
// half of max MP, clamped at the caps.
func (s *service) handleRest(ctx context.Context, gs *entities.GameState) (*entities.ActionResult, error) {
	stats := gs.Player.Stats
	hpGain := minInt(stats.MaxHP-stats.HP, stats.MaxHP/4)
	mpGain := minInt(stats.MaxMP-stats.MP, stats.MaxMP/2)
	if hpGain < 0 {
		hpGain = 0
	}
	if mpGain < 0 {
		mpGain = 0
	}
	if hpGain > 0 || mpGain > 0 {
		if _, err := s.state.ApplyPlayerResourceDelta(gs, hpGain, mpGain, "rest"); err != nil {
			return entities.FailResult(entities.ErrRestResourceUpdateFailed,
				fmt.Sprintf("the rest is broken: %v", err)), nil
		}
	}

	result := entities.OKResult("rested")
	if hpGain == 0 && mpGain == 0 {
		result.AddEvent(fmt.Sprintf("%s rests, though nothing needed mending", gs.Player.Name))
	} else {
		result.AddEvent(fmt.Sprintf("%s rests: +%d HP, +%d MP", gs.Player.Name, hpGain, mpGain))
	}
	summary := impact(result)
	summary["hp_gained"] = hpGain
	summary["mp_gained"] = mpGain
	return result, nil
}

// handleTransitionMap moves the run one floor down or up from a stairs
// tile. The destination regenerates from its per-depth seed, so a
// revisited floor keeps its layout while its roster respawns.
func (s *service) handleTransitionMap(ctx context.Context, gs *entities.GameState, params map[string]any) (*entities.ActionResult, error) {
	player := gs.Player
	tile := gs.CurrentMap.TileAt(player.Position.X, player.Position.Y)
	if tile == nil {
		return failReason("not_on_stairs", "no stairs here"), nil
	}

	direction := stringParam(params, "direction")
	switch {
	case tile.Terrain == entities.TerrainStairsDown && (direction == "" || direction == "down"):
		direction = "down"
	case tile.Terrain == entities.TerrainStairsUp && (direction == "" || direction == "up"):
		direction = "up"
	default:
		return failReason("not_on_stairs", "these stairs do not go that way"), nil
	}

	fromDepth := gs.CurrentMap.Depth
	toDepth := fromDepth + 1
	source := "transition_down"
	if direction == "up" {
		toDepth = fromDepth - 1
		source = "transition_up"
	}
	if toDepth < 1 {
		return failReason("no_way_up", "the way out stays sealed until the labyrinth lets go"), nil
	}
	if toDepth > s.maxFloors {
		return failReason("no_way_down", "the labyrinth ends here"), nil
	}

	if err := s.buildFloor(ctx, gs, toDepth, source); err != nil {
		return entities.FailResult(entities.ErrMapGenerationFailed,
			fmt.Sprintf("the way %s collapses: %v", direction, err)), nil
	}
	gs.PendingMapTransition = &entities.MapTransition{
		Direction: direction,
		FromDepth: fromDepth,
		ToDepth:   toDepth,
	}

	result := entities.OKResult(fmt.Sprintf("descended to floor %d", toDepth))
	if direction == "up" {
		result.Message = fmt.Sprintf("climbed back to floor %d", toDepth)
	}
	result.AddEvent(fmt.Sprintf("Floor %d: %s", toDepth, gs.CurrentMap.FloorTheme))

	prog, err := s.progress.ProcessEvent(ctx, &progress.ProcessEventInput{
		EventType: entities.ProgressMapTransition,
		State:     gs,
		ContextData: map[string]any{
			"from_depth": fromDepth,
			"to_depth":   toDepth,
			"direction":  direction,
		},
	})
	if err != nil {
		s.log.Warn("transition progress failed", zap.Error(err))
	} else if prog != nil {
		for _, e := range prog.Events {
			result.AddEvent(e)
		}
	}
	impact(result)["depth"] = toDepth
	return result, nil
}
