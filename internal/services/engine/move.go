package engine

import (
	"context"
	"fmt"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/services/trap"
)

// visionRadius is the Chebyshev reveal radius around the player.
const visionRadius = 3

// handleMove steps the player to (x, y). Bounds, walls, and occupancy
// are re-checked even when the client pre-validates pathing. A trap on
// the destination interrupts the step.
func (s *service) handleMove(ctx context.Context, gs *entities.GameState, params map[string]any) (*entities.ActionResult, error) {
	x, okX := intParam(params, "x")
	y, okY := intParam(params, "y")
	if !okX || !okY {
		return failReason("invalid_parameters", "move needs x and y"), nil
	}
	if gs.CurrentMap == nil || !gs.CurrentMap.InBounds(x, y) {
		return failReason("out_of_bounds", fmt.Sprintf("(%d, %d) is outside the map", x, y)), nil
	}
	tile := gs.CurrentMap.TileAt(x, y)
	if tile == nil || !tile.Walkable() {
		return failReason("blocked_by_wall", fmt.Sprintf("(%d, %d) is not walkable", x, y)), nil
	}
	if m := gs.MonsterAt(x, y); m != nil {
		return failReason("tile_occupied", fmt.Sprintf("%s is in the way", m.Name)), nil
	}

	from := gs.Player.Position

	if trapDef := s.traps.TrapAt(tile); trapDef != nil {
		return s.moveOntoTrap(ctx, gs, trapDef, tile, from)
	}

	s.placePlayer(gs, x, y)
	result := entities.OKResult(fmt.Sprintf("moved to (%d, %d)", x, y))
	impact(result)["position"] = entities.TileKey(x, y)
	return result, nil
}

// moveOntoTrap resolves the step onto a live trap tile. A detected
// trap parks a choice and holds the step; an undetected one gets a
// passive detection roll, and on a miss it springs mid-step.
func (s *service) moveOntoTrap(ctx context.Context, gs *entities.GameState, trapDef *trap.Trap, tile *entities.MapTile, from entities.Position) (*entities.ActionResult, error) {
	if tile.TrapDetected {
		return s.parkTrapChoice(gs, trapDef, tile, from, nil), nil
	}

	detect, err := s.traps.Detect(gs, tile, true)
	if err != nil {
		return nil, err
	}
	if detect.Outcome == trap.OutcomeDetected {
		return s.parkTrapChoice(gs, trapDef, tile, from, detect.Events), nil
	}

	sprung, err := s.traps.Trigger(ctx, gs, tile)
	if err != nil {
		return nil, err
	}
	result := entities.OKResult(fmt.Sprintf("stumbled into %s", trapDef.Name))
	for _, e := range sprung.Events {
		result.AddEvent(e)
	}
	if sprung.Narrative != "" {
		result.Narrative = sprung.Narrative
	}
	// Finish the step unless the trap killed or displaced the player.
	if gs.Player.IsAlive() && gs.Player.Position == from {
		s.placePlayer(gs, tile.X, tile.Y)
	}
	impact(result)["trap"] = trapDef.Name
	return result, nil
}

// parkTrapChoice opens the disarm/press-on/retreat decision and keeps
// the player where they stand.
func (s *service) parkTrapChoice(gs *entities.GameState, trapDef *trap.Trap, tile *entities.MapTile, from entities.Position, detectEvents []string) *entities.ActionResult {
	choiceCtx := s.choices.TrapContext(trapDef, tile, from)
	s.choices.OpenContext(gs, choiceCtx)

	result := entities.OKResult(fmt.Sprintf("%s bars the way", trapDef.Name))
	for _, e := range detectEvents {
		result.AddEvent(e)
	}
	result.AddEvent(fmt.Sprintf("A %s blocks the path ahead", trapDef.Name))
	impact(result)["trap"] = trapDef.Name
	return result
}

// placePlayer stands the player on (x, y), maintaining the tile
// back-references and refreshing the field of view.
func (s *service) placePlayer(gs *entities.GameState, x, y int) {
	player := gs.Player
	if prev := gs.CurrentMap.TileAt(player.Position.X, player.Position.Y); prev != nil && prev.CharacterID == player.ID {
		prev.CharacterID = ""
	}
	player.Position = entities.Position{X: x, Y: y}
	if tile := gs.CurrentMap.TileAt(x, y); tile != nil {
		tile.CharacterID = player.ID
	}
	refreshVisibility(gs.CurrentMap, x, y)
}

// refreshVisibility recomputes the field of view: everything within
// the vision radius is visible and explored, the rest goes dark.
func refreshVisibility(m *entities.GameMap, x, y int) {
	for _, tile := range m.Tiles {
		tile.IsVisible = false
	}
	for dy := -visionRadius; dy <= visionRadius; dy++ {
		for dx := -visionRadius; dx <= visionRadius; dx++ {
			if tile := m.TileAt(x+dx, y+dy); tile != nil {
				tile.IsVisible = true
				tile.IsExplored = true
			}
		}
	}
}
