package mapgen_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/services/mapgen"
	"github.com/labyrinthia/engine/internal/uuid"
)

func newLocalProvider() *mapgen.LocalProvider {
	return mapgen.NewLocalProvider(&mapgen.LocalProviderConfig{
		UUIDGenerator: uuid.NewSequentialGenerator("map"),
	})
}

func terrainGrid(m *entities.GameMap) string {
	out := ""
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			out += string(m.TileAt(x, y).Terrain) + ";"
		}
		out += "\n"
	}
	return out
}

func TestGenerate_CarvesConnectedFloor(t *testing.T) {
	provider := newLocalProvider()

	out, err := provider.Generate(context.Background(), &mapgen.GenerateInput{
		Depth:       3,
		MaxFloor:    5,
		Seed:        42,
		PlayerLevel: 2,
	})
	require.NoError(t, err)
	require.NotNil(t, out.Map)

	m := out.Map
	assert.Equal(t, 20, m.Width)
	assert.Equal(t, 15, m.Height)
	assert.Equal(t, 3, m.Depth)
	assert.NotNil(t, m.FindTerrain(entities.TerrainStairsUp), "mid floor needs stairs up")
	assert.NotNil(t, m.FindTerrain(entities.TerrainStairsDown), "mid floor needs stairs down")

	meta := m.Generation
	require.NotNil(t, meta)
	assert.Equal(t, mapgen.ProviderLocal, meta.Provider)
	assert.Equal(t, mapgen.ChainLegacy, meta.Chain)
	assert.Equal(t, int64(42), meta.Seed)

	require.NotNil(t, meta.LocalValidation)
	assert.True(t, meta.LocalValidation.ConnectivityOK)
	assert.Zero(t, meta.LocalValidation.UnreachableTargets)
	assert.Zero(t, meta.LocalValidation.StairsViolations)
}

func TestGenerate_SameSeedSameFloor(t *testing.T) {
	first, err := newLocalProvider().Generate(context.Background(), &mapgen.GenerateInput{
		Depth: 2, MaxFloor: 5, Seed: 99,
	})
	require.NoError(t, err)
	second, err := newLocalProvider().Generate(context.Background(), &mapgen.GenerateInput{
		Depth: 2, MaxFloor: 5, Seed: 99,
	})
	require.NoError(t, err)

	assert.Equal(t, terrainGrid(first.Map), terrainGrid(second.Map))
}

func TestGenerate_StairsRespectFloorBounds(t *testing.T) {
	provider := newLocalProvider()

	surface, err := provider.Generate(context.Background(), &mapgen.GenerateInput{
		Depth: 1, MaxFloor: 5, Seed: 7,
	})
	require.NoError(t, err)
	assert.Nil(t, surface.Map.FindTerrain(entities.TerrainStairsUp), "no stairs up on the surface")
	assert.NotNil(t, surface.Map.FindTerrain(entities.TerrainStairsDown))

	bottom, err := provider.Generate(context.Background(), &mapgen.GenerateInput{
		Depth: 5, MaxFloor: 5, Seed: 7,
	})
	require.NoError(t, err)
	assert.NotNil(t, bottom.Map.FindTerrain(entities.TerrainStairsUp))
	assert.Nil(t, bottom.Map.FindTerrain(entities.TerrainStairsDown), "no stairs down at the bottom")
}

func TestGenerate_PlacesPendingQuestEventsForDepth(t *testing.T) {
	quest := &entities.Quest{
		ID: "q-1", Title: "The Sealed Rite", IsActive: true,
		SpecialEvents: []*entities.QuestEvent{
			{ID: "ev-here", EventType: entities.EventStory, IsMandatory: true, LocationHint: 2},
			{ID: "ev-deeper", EventType: entities.EventStory, IsMandatory: true, LocationHint: 3},
			{ID: "ev-done", EventType: entities.EventStory, IsMandatory: true, LocationHint: 2, IsTriggered: true},
		},
	}

	out, err := newLocalProvider().Generate(context.Background(), &mapgen.GenerateInput{
		Depth: 2, MaxFloor: 5, Seed: 11, Quest: quest,
	})
	require.NoError(t, err)

	var placed []string
	for y := 0; y < out.Map.Height; y++ {
		for x := 0; x < out.Map.Width; x++ {
			tile := out.Map.TileAt(x, y)
			if tile.HasEvent {
				if id, ok := tile.EventData["quest_event_id"].(string); ok {
					placed = append(placed, id)
				}
			}
		}
	}
	assert.Equal(t, []string{"ev-here"}, placed, "only this depth's pending event is placed")

	report := out.Map.Generation.LocalValidation
	assert.Equal(t, 1, report.MandatoryEventsExpected)
	assert.Equal(t, 1, report.MandatoryEventsPlaced)
	assert.True(t, report.ConnectivityOK, "quest event must be reachable")
}

func TestGenerate_BossLayoutAndSpawnHints(t *testing.T) {
	quest := &entities.Quest{
		ID: "q-boss", Title: "Slay the Warden", IsActive: true,
		TargetFloors: []int{4},
		SpecialMonsters: []*entities.QuestMonster{
			{ID: "qm-warden", IsFinalObjective: true, Floor: 4},
		},
		ProgressPlan: &entities.ProgressPlan{CompletionPolicy: entities.PolicySingleTarget},
	}

	out, err := newLocalProvider().Generate(context.Background(), &mapgen.GenerateInput{
		Depth: 4, MaxFloor: 6, Seed: 23, Quest: quest, PlayerLevel: 5,
	})
	require.NoError(t, err)

	hints := out.Hints
	require.NotNil(t, hints)
	assert.Equal(t, 6, hints.RecommendedLevel, "level 5 player plus depth bonus")

	var bossPoints []*mapgen.SpawnPoint
	for _, sp := range hints.SpawnPoints {
		if sp.Role == mapgen.SpawnBoss {
			bossPoints = append(bossPoints, sp)
		}
	}
	require.Len(t, bossPoints, 1)

	bossTile := out.Map.TileAt(bossPoints[0].X, bossPoints[0].Y)
	require.NotNil(t, bossTile)
	assert.Equal(t, entities.RoomBoss, bossTile.RoomType)
	assert.Equal(t, entities.RoomBoss, hints.RoomIntents[bossPoints[0].RoomID])
}

func TestGenerate_RejectsTinyGrid(t *testing.T) {
	_, err := newLocalProvider().Generate(context.Background(), &mapgen.GenerateInput{
		Width: 4, Height: 4, Depth: 1, MaxFloor: 3, Seed: 1,
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestAnalyzeQuest(t *testing.T) {
	manyEvents := make([]*entities.QuestEvent, 0, 3)
	for i := 0; i < 3; i++ {
		manyEvents = append(manyEvents, &entities.QuestEvent{
			ID: fmt.Sprintf("ev-%d", i), LocationHint: 2,
		})
	}

	tests := []struct {
		name  string
		quest *entities.Quest
		depth int
		check func(t *testing.T, req *mapgen.MapRequirements)
	}{
		{
			name:  "nil quest gets defaults",
			quest: nil,
			depth: 1,
			check: func(t *testing.T, req *mapgen.MapRequirements) {
				assert.Equal(t, 4, req.MinRooms)
				assert.Equal(t, 8, req.MaxRooms)
				assert.Equal(t, mapgen.LayoutStandard, req.LayoutStyle)
				assert.False(t, req.NeedsBossRoom)
			},
		},
		{
			name: "single target boss floor goes linear",
			quest: &entities.Quest{
				TargetFloors: []int{3},
				SpecialMonsters: []*entities.QuestMonster{
					{ID: "qm-1", IsFinalObjective: true, Floor: 3},
				},
				ProgressPlan: &entities.ProgressPlan{CompletionPolicy: entities.PolicySingleTarget},
			},
			depth: 3,
			check: func(t *testing.T, req *mapgen.MapRequirements) {
				assert.True(t, req.NeedsBossRoom)
				assert.Equal(t, mapgen.LayoutLinear, req.LayoutStyle)
			},
		},
		{
			name: "boss floor elsewhere stays standard",
			quest: &entities.Quest{
				SpecialMonsters: []*entities.QuestMonster{
					{ID: "qm-1", IsFinalObjective: true, Floor: 5},
				},
			},
			depth: 2,
			check: func(t *testing.T, req *mapgen.MapRequirements) {
				assert.False(t, req.NeedsBossRoom)
				assert.Equal(t, mapgen.LayoutStandard, req.LayoutStyle)
			},
		},
		{
			name:  "many special events go hub",
			quest: &entities.Quest{SpecialEvents: manyEvents},
			depth: 2,
			check: func(t *testing.T, req *mapgen.MapRequirements) {
				assert.Equal(t, 3, req.NeedsSpecialRooms)
				assert.Equal(t, mapgen.LayoutHub, req.LayoutStyle)
				assert.Equal(t, 5, req.MinRooms, "special rooms push the minimum up")
			},
		},
		{
			name:  "treasure hunt wants a treasure room",
			quest: &entities.Quest{QuestType: "treasure_hunt"},
			depth: 1,
			check: func(t *testing.T, req *mapgen.MapRequirements) {
				assert.True(t, req.NeedsTreasureRoom)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, mapgen.AnalyzeQuest(tc.quest, tc.depth))
		})
	}
}
