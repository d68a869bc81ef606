package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// TerrainType enumerates tile terrain.
type TerrainType string

const (
	TerrainWall       TerrainType = "wall"
	TerrainFloor      TerrainType = "floor"
	TerrainDoor       TerrainType = "door"
	TerrainTrap       TerrainType = "trap"
	TerrainTreasure   TerrainType = "treasure"
	TerrainStairsUp   TerrainType = "stairs_up"
	TerrainStairsDown TerrainType = "stairs_down"
)

// WalkableTerrains are the terrains BFS connectivity and movement accept.
var WalkableTerrains = map[TerrainType]bool{
	TerrainFloor:      true,
	TerrainDoor:       true,
	TerrainTrap:       true,
	TerrainTreasure:   true,
	TerrainStairsUp:   true,
	TerrainStairsDown: true,
}

// ValidTerrain reports whether the terrain name is recognized.
func ValidTerrain(t TerrainType) bool {
	switch t {
	case TerrainWall, TerrainFloor, TerrainDoor, TerrainTrap,
		TerrainTreasure, TerrainStairsUp, TerrainStairsDown:
		return true
	}
	return false
}

// Room type names assigned by the map provider.
const (
	RoomEntrance = "entrance"
	RoomBoss     = "boss"
	RoomTreasure = "treasure"
	RoomSpecial  = "special"
	RoomNormal   = "normal"
)

// Event type names carried on tiles.
const (
	EventCombat   = "combat"
	EventTreasure = "treasure"
	EventTrap     = "trap"
	EventStory    = "story"
	EventMystery  = "mystery"
)

// TileKey renders the canonical "x,y" map key.
func TileKey(x, y int) string {
	return fmt.Sprintf("%d,%d", x, y)
}

// ParseTileKey parses an "x,y" key.
func ParseTileKey(key string) (x, y int, err error) {
	parts := strings.Split(key, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed tile key %q", key)
	}
	x, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed tile key %q: %w", key, err)
	}
	y, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed tile key %q: %w", key, err)
	}
	return x, y, nil
}

// MapTile is one cell of the dungeon grid.
type MapTile struct {
	X       int         `json:"x"`
	Y       int         `json:"y"`
	Terrain TerrainType `json:"terrain"`

	IsExplored bool `json:"is_explored,omitempty"`
	IsVisible  bool `json:"is_visible,omitempty"`

	// CharacterID cross-references the entity standing here; resolved
	// through GameState lookup, never a pointer.
	CharacterID string `json:"character_id,omitempty"`

	Items []*Item `json:"items,omitempty"`
	// ItemsCollected records picked-up item IDs so interact cannot
	// double-generate loot for the same tile.
	ItemsCollected []string `json:"items_collected,omitempty"`

	RoomID   string `json:"room_id,omitempty"`
	RoomType string `json:"room_type,omitempty"`

	HasEvent       bool           `json:"has_event,omitempty"`
	EventType      string         `json:"event_type,omitempty"`
	EventData      map[string]any `json:"event_data,omitempty"`
	IsEventHidden  bool           `json:"is_event_hidden,omitempty"`
	EventTriggered bool           `json:"event_triggered,omitempty"`

	TrapDetected bool `json:"trap_detected,omitempty"`
	TrapDisarmed bool `json:"trap_disarmed,omitempty"`
}

// Key returns the tile's canonical map key.
func (t *MapTile) Key() string {
	return TileKey(t.X, t.Y)
}

// Walkable reports whether entities can stand on the tile.
func (t *MapTile) Walkable() bool {
	return WalkableTerrains[t.Terrain]
}

// WasCollected reports whether the item id was already picked up here.
func (t *MapTile) WasCollected(itemID string) bool {
	for _, id := range t.ItemsCollected {
		if id == itemID {
			return true
		}
	}
	return false
}

// Clone deep-copies the tile.
func (t *MapTile) Clone() *MapTile {
	if t == nil {
		return nil
	}
	out := *t
	out.ItemsCollected = append([]string(nil), t.ItemsCollected...)
	out.EventData = copyAnyMap(t.EventData)
	if t.Items != nil {
		out.Items = make([]*Item, len(t.Items))
		for i, it := range t.Items {
			out.Items[i] = it.Clone()
		}
	}
	return &out
}

// ValidationReport is the provider's self-check result attached to
// generation metadata.
type ValidationReport struct {
	ConnectivityOK          bool     `json:"connectivity_ok"`
	RepairedCorridors       int      `json:"repaired_corridors"`
	UnreachableTargets      int      `json:"unreachable_targets"`
	MandatoryEventsExpected int      `json:"mandatory_events_expected"`
	MandatoryEventsPlaced   int      `json:"mandatory_events_placed"`
	StairsViolations        int      `json:"stairs_violations"`
	Warnings                []string `json:"warnings,omitempty"`
}

// GenerationMeta records how a map was produced.
type GenerationMeta struct {
	Provider        string            `json:"provider,omitempty"` // local | llm
	Chain           string            `json:"chain,omitempty"`    // legacy | contract_v2
	Seed            int64             `json:"seed,omitempty"`
	ContractHash    string            `json:"contract_hash,omitempty"`
	LocalValidation *ValidationReport `json:"local_validation,omitempty"`
	FallbackUsed    bool              `json:"fallback_used,omitempty"`
	RollbackUsed    bool              `json:"rollback_used,omitempty"`
}

// GameMap is a dungeon floor. Tiles is keyed by "x,y".
type GameMap struct {
	ID         string              `json:"id"`
	Name       string              `json:"name,omitempty"`
	Width      int                 `json:"width"`
	Height     int                 `json:"height"`
	Depth      int                 `json:"depth"`
	MaxFloor   int                 `json:"max_floor,omitempty"`
	FloorTheme string              `json:"floor_theme,omitempty"`
	Tiles      map[string]*MapTile `json:"tiles"`
	Generation *GenerationMeta     `json:"generation_metadata,omitempty"`
}

// InBounds reports whether the coordinate is inside the grid.
func (m *GameMap) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// TileAt returns the tile at (x, y), nil when absent or out of bounds.
func (m *GameMap) TileAt(x, y int) *MapTile {
	if !m.InBounds(x, y) {
		return nil
	}
	return m.Tiles[TileKey(x, y)]
}

// SetTile stores a tile under its canonical key.
func (m *GameMap) SetTile(t *MapTile) {
	if m.Tiles == nil {
		m.Tiles = make(map[string]*MapTile)
	}
	m.Tiles[t.Key()] = t
}

// Walkable reports whether the tile at (x, y) exists and is walkable.
func (m *GameMap) Walkable(x, y int) bool {
	t := m.TileAt(x, y)
	return t != nil && t.Walkable()
}

// FindTerrain returns the first tile of the given terrain in scan order.
func (m *GameMap) FindTerrain(terrain TerrainType) *MapTile {
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if t := m.TileAt(x, y); t != nil && t.Terrain == terrain {
				return t
			}
		}
	}
	return nil
}

// Clone deep-copies the map.
func (m *GameMap) Clone() *GameMap {
	if m == nil {
		return nil
	}
	out := *m
	if m.Tiles != nil {
		out.Tiles = make(map[string]*MapTile, len(m.Tiles))
		for k, t := range m.Tiles {
			out.Tiles[k] = t.Clone()
		}
	}
	if m.Generation != nil {
		g := *m.Generation
		if m.Generation.LocalValidation != nil {
			v := *m.Generation.LocalValidation
			v.Warnings = append([]string(nil), m.Generation.LocalValidation.Warnings...)
			g.LocalValidation = &v
		}
		out.Generation = &g
	}
	return &out
}
