package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/services/mapgen"
)

func main() {
	seed := flag.Int64("seed", 1, "generation seed")
	depth := flag.Int("depth", 1, "floor depth")
	maxFloor := flag.Int("max-floor", 5, "dungeon depth")
	width := flag.Int("width", 0, "map width (0 = provider default)")
	height := flag.Int("height", 0, "map height (0 = provider default)")
	level := flag.Int("level", 1, "player level for spawn hints")
	flag.Parse()

	provider := mapgen.NewLocalProvider(nil)
	out, err := provider.Generate(context.Background(), &mapgen.GenerateInput{
		Depth:       *depth,
		MaxFloor:    *maxFloor,
		Width:       *width,
		Height:      *height,
		Seed:        *seed,
		Source:      "new_game",
		PlayerLevel: *level,
	})
	if err != nil {
		log.Fatalf("Failed to generate map: %v", err)
	}

	m := out.Map
	fmt.Printf("=== %s ===\n", m.Name)
	fmt.Printf("Seed: %d  Depth: %d/%d  Size: %dx%d\n", *seed, m.Depth, m.MaxFloor, m.Width, m.Height)
	if m.FloorTheme != "" {
		fmt.Printf("Theme: %s\n", m.FloorTheme)
	}
	fmt.Println()
	fmt.Print(render(m, out.Hints))
	fmt.Println()
	fmt.Println("Legend: # wall  . floor  + door  ^ trap  $ treasure  < up  > down  ? event  m spawn  B boss")

	if out.Hints != nil {
		fmt.Printf("\nSpawn hints (level %d, %s):\n", out.Hints.RecommendedLevel, out.Hints.EncounterDifficulty)
		for _, sp := range out.Hints.SpawnPoints {
			fmt.Printf("  (%d,%d) %s\n", sp.X, sp.Y, sp.Role)
		}
	}
}

func render(m *entities.GameMap, hints *mapgen.MonsterHints) string {
	spawnGlyphs := make(map[string]byte)
	if hints != nil {
		for _, sp := range hints.SpawnPoints {
			glyph := byte('m')
			if sp.Role == "boss" {
				glyph = 'B'
			}
			spawnGlyphs[entities.TileKey(sp.X, sp.Y)] = glyph
		}
	}

	var sb strings.Builder
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			tile := m.TileAt(x, y)
			if tile == nil {
				sb.WriteByte(' ')
				continue
			}
			if glyph, ok := spawnGlyphs[entities.TileKey(x, y)]; ok {
				sb.WriteByte(glyph)
				continue
			}
			sb.WriteByte(glyphFor(tile))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func glyphFor(tile *entities.MapTile) byte {
	switch tile.Terrain {
	case entities.TerrainWall:
		return '#'
	case entities.TerrainDoor:
		return '+'
	case entities.TerrainTrap:
		return '^'
	case entities.TerrainTreasure:
		return '$'
	case entities.TerrainStairsUp:
		return '<'
	case entities.TerrainStairsDown:
		return '>'
	}
	if tile.HasEvent && (tile.EventType == entities.EventStory || tile.EventType == entities.EventMystery) {
		return '?'
	}
	return '.'
}
