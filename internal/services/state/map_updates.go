package state

import (
	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
)

// tileUpdateFields is the per-tile whitelist. "type" is accepted as an
// alias for "terrain" because older generators emit it.
var tileUpdateFields = map[string]bool{
	"terrain": true, "type": true,
	"room_type":   true,
	"is_explored": true, "is_visible": true,
	"has_event": true, "event_type": true, "event_data": true,
	"is_event_hidden": true, "event_triggered": true,
	"items":   true,
	"monster": true,
}

var validEventTypes = map[string]bool{
	entities.EventCombat:   true,
	entities.EventTreasure: true,
	entities.EventTrap:     true,
	entities.EventStory:    true,
	entities.EventMystery:  true,
}

// tileUpdate is one validated tile mutation, held until the whole
// payload has passed validation.
type tileUpdate struct {
	x, y   int
	fields map[string]any
}

func (s *service) ApplyMapUpdates(state *entities.GameState, updates map[string]any, source string) (*ModificationRecord, error) {
	if state == nil || state.CurrentMap == nil {
		return nil, errors.InvalidArgument("state with current map is required")
	}

	validated, err := s.validateMapUpdates(state, updates)
	if err != nil {
		return s.record(RecordMap, source, state.CurrentMap.ID, nil, err), err
	}

	changes := make(map[string]any, len(validated))
	for _, upd := range validated {
		applied, err := s.applyTileUpdate(state, upd)
		if err != nil {
			// validation should have caught everything; treat as contract breach
			s.record(RecordMap, source, state.CurrentMap.ID, changes, err)
			return nil, err
		}
		changes[entities.TileKey(upd.x, upd.y)] = applied
	}

	s.log.Debug("map updates applied",
		zap.String("source", source),
		zap.Int("tiles", len(validated)))
	return s.record(RecordMap, source, state.CurrentMap.ID, changes, nil), nil
}

// validateMapUpdates is the first pass: reject the whole payload on any
// contract violation before a single tile is touched.
func (s *service) validateMapUpdates(state *entities.GameState, updates map[string]any) ([]tileUpdate, error) {
	for root := range updates {
		if root != "tiles" {
			return nil, errors.Validationf("unknown map update key %q", root)
		}
	}
	rawTiles, ok := updates["tiles"]
	if !ok {
		return nil, nil
	}
	tiles, ok := rawTiles.(map[string]any)
	if !ok {
		return nil, errors.Validation("tiles must be an object keyed by \"x,y\"")
	}

	gameMap := state.CurrentMap
	out := make([]tileUpdate, 0, len(tiles))
	for key, rawFields := range tiles {
		x, y, err := entities.ParseTileKey(key)
		if err != nil {
			return nil, errors.Validationf("invalid tile key %q", key)
		}
		if !gameMap.InBounds(x, y) {
			return nil, errors.Validationf("tile %q outside map bounds %dx%d", key, gameMap.Width, gameMap.Height)
		}
		fields, ok := rawFields.(map[string]any)
		if !ok {
			return nil, errors.Validationf("tile %q update must be an object", key)
		}
		for field := range fields {
			if !tileUpdateFields[field] {
				return nil, errors.Validationf("tile %q: unauthorized field %q", key, field)
			}
		}
		if raw, present := terrainField(fields); present {
			terrain, ok := raw.(string)
			if !ok || !entities.ValidTerrain(entities.TerrainType(terrain)) {
				return nil, errors.Validationf("tile %q: invalid terrain %v", key, raw)
			}
		}
		if raw, present := fields["event_type"]; present {
			eventType, ok := raw.(string)
			if !ok || !validEventTypes[eventType] {
				return nil, errors.Validationf("tile %q: invalid event_type %v", key, raw)
			}
		}
		if raw, present := fields["monster"]; present {
			if err := s.validateMonsterPayload(state, x, y, raw); err != nil {
				return nil, err
			}
		}
		out = append(out, tileUpdate{x: x, y: y, fields: fields})
	}
	return out, nil
}

func terrainField(fields map[string]any) (any, bool) {
	if raw, ok := fields["terrain"]; ok {
		return raw, true
	}
	if raw, ok := fields["type"]; ok {
		return raw, true
	}
	return nil, false
}

func (s *service) validateMonsterPayload(state *entities.GameState, x, y int, raw any) error {
	payload, ok := raw.(map[string]any)
	if !ok {
		return errors.Validationf("tile %s: monster payload must be an object", entities.TileKey(x, y))
	}
	action, _ := payload["action"].(string)
	switch action {
	case "add":
		id, _ := payload["id"].(string)
		if id == "" {
			return errors.Validationf("tile %s: monster add requires an id", entities.TileKey(x, y))
		}
		if state.Monster(id) != nil {
			return errors.AlreadyExistsf("monster %s already exists", id)
		}
	case "update", "remove":
		id, _ := payload["id"].(string)
		if id == "" {
			return errors.Validationf("tile %s: monster %s requires an id", entities.TileKey(x, y), action)
		}
		if state.Monster(id) == nil {
			return errors.NotFoundf("monster %s not found", id)
		}
	default:
		return errors.Validationf("tile %s: monster action must be add, update, or remove", entities.TileKey(x, y))
	}
	return nil
}

// applyTileUpdate is the second pass: the payload already validated, so
// writes only fail on cross-tile conflicts discovered at apply time.
func (s *service) applyTileUpdate(state *entities.GameState, upd tileUpdate) ([]string, error) {
	gameMap := state.CurrentMap
	tile := gameMap.TileAt(upd.x, upd.y)
	if tile == nil {
		tile = &entities.MapTile{X: upd.x, Y: upd.y, Terrain: entities.TerrainWall}
		gameMap.SetTile(tile)
	}

	var applied []string
	if raw, present := terrainField(upd.fields); present {
		tile.Terrain = entities.TerrainType(raw.(string))
		applied = append(applied, "terrain")
	}
	if v, ok := upd.fields["room_type"].(string); ok {
		tile.RoomType = v
		applied = append(applied, "room_type")
	}
	if v, ok := upd.fields["is_explored"].(bool); ok {
		tile.IsExplored = v
		applied = append(applied, "is_explored")
	}
	if v, ok := upd.fields["is_visible"].(bool); ok {
		tile.IsVisible = v
		applied = append(applied, "is_visible")
	}
	if v, ok := upd.fields["has_event"].(bool); ok {
		tile.HasEvent = v
		if !v {
			tile.EventType = ""
			tile.EventData = nil
			tile.IsEventHidden = false
			tile.EventTriggered = false
		}
		applied = append(applied, "has_event")
	}
	if v, ok := upd.fields["event_type"].(string); ok {
		tile.EventType = v
		applied = append(applied, "event_type")
	}
	if v, ok := upd.fields["event_data"].(map[string]any); ok {
		tile.EventData = v
		applied = append(applied, "event_data")
	}
	if v, ok := upd.fields["is_event_hidden"].(bool); ok {
		tile.IsEventHidden = v
		applied = append(applied, "is_event_hidden")
	}
	if v, ok := upd.fields["event_triggered"].(bool); ok {
		tile.EventTriggered = v
		applied = append(applied, "event_triggered")
	}
	if raw, present := upd.fields["items"]; present {
		if items, ok := raw.([]any); ok {
			for _, rawItem := range items {
				if item := itemFromPayload(rawItem); item != nil {
					tile.Items = append(tile.Items, item)
				}
			}
			applied = append(applied, "items")
		}
	}
	if raw, present := upd.fields["monster"]; present {
		if err := s.applyMonsterPayload(state, tile, raw.(map[string]any)); err != nil {
			return applied, err
		}
		applied = append(applied, "monster")
	}
	return applied, nil
}

func (s *service) applyMonsterPayload(state *entities.GameState, tile *entities.MapTile, payload map[string]any) error {
	action, _ := payload["action"].(string)
	id, _ := payload["id"].(string)

	switch action {
	case "add":
		if tile.CharacterID != "" {
			return errors.Validationf("tile %s already holds %s", tile.Key(), tile.CharacterID)
		}
		if tile.HasEvent {
			return errors.Validationf("tile %s holds an event, cannot place monster", tile.Key())
		}
		if !tile.Walkable() {
			return errors.Validationf("tile %s terrain %s is not walkable", tile.Key(), tile.Terrain)
		}
		monster := monsterFromPayload(id, payload)
		monster.Position = entities.Position{X: tile.X, Y: tile.Y}
		if s.spawnValidator != nil {
			if err := s.spawnValidator.ValidateSpawn(state, monster); err != nil {
				return err
			}
		}
		state.Monsters = append(state.Monsters, monster)
		tile.CharacterID = monster.ID

	case "update":
		monster := state.Monster(id)
		if monster == nil {
			return errors.NotFoundf("monster %s not found", id)
		}
		updateMonsterStats(monster, payload)

	case "remove":
		monster := state.Monster(id)
		if monster == nil {
			return errors.NotFoundf("monster %s not found", id)
		}
		if occupied := state.CurrentMap.TileAt(monster.Position.X, monster.Position.Y); occupied != nil && occupied.CharacterID == id {
			occupied.CharacterID = ""
		}
		if tile.CharacterID == id {
			tile.CharacterID = ""
		}
		state.RemoveMonster(id)
	}
	return nil
}

// monsterFromPayload builds a monster entity from the whitelisted
// numeric and string fields of an add payload.
func monsterFromPayload(id string, payload map[string]any) *entities.Entity {
	name, _ := payload["name"].(string)
	if name == "" {
		name = "Unknown Creature"
	}
	monster := entities.NewEntity(id, name, entities.KindMonster)
	updateMonsterStats(monster, payload)
	if v, ok := payload["quest_monster_id"].(string); ok {
		monster.QuestMonsterID = v
	}
	if v, ok := payload["creature_type"].(string); ok {
		monster.CreatureType = v
	}
	return monster
}

func updateMonsterStats(monster *entities.Entity, payload map[string]any) {
	if v, ok := payload["name"].(string); ok && v != "" {
		monster.Name = v
	}
	stats := monster.Stats
	if v, ok := toInt(payload["max_hp"]); ok {
		stats.MaxHP = maxInt(1, v)
		if stats.HP > stats.MaxHP {
			stats.HP = stats.MaxHP
		}
	}
	if v, ok := toInt(payload["hp"]); ok {
		stats.HP = clampInt(v, 0, stats.MaxHP)
	}
	if v, ok := toInt(payload["level"]); ok {
		stats.Level = clampInt(v, entities.LevelMin, entities.LevelMax)
	}
	if v, ok := toInt(payload["ac"]); ok {
		target := clampInt(v, 0, 50)
		stats.AC = target
		if stats.ACComponents == nil {
			stats.ACComponents = &entities.ACComponents{}
		}
		c := stats.ACComponents
		c.Base = target - c.Armor - c.Shield - c.Status - c.Situational + c.Penalty
	}
	if v, ok := toFloat(payload["attack_damage"]); ok && v >= 0 {
		monster.AttackDamage = v
	}
	if v, ok := toInt(payload["experience_value"]); ok {
		monster.ExperienceValue = maxInt(0, v)
	}
}

// itemFromPayload builds a ground item from an update payload; nil
// when the payload lacks an id.
func itemFromPayload(raw any) *entities.Item {
	payload, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	id, _ := payload["id"].(string)
	if id == "" {
		return nil
	}
	item := &entities.Item{ID: id}
	if v, ok := payload["name"].(string); ok {
		item.Name = v
	}
	if v, ok := payload["item_type"].(string); ok {
		item.ItemType = v
	}
	if v, ok := payload["description"].(string); ok {
		item.Description = v
	}
	if v, ok := payload["rarity"].(string); ok {
		item.Rarity = v
	}
	if v, ok := toInt(payload["value"]); ok {
		item.Value = v
	}
	return item
}
