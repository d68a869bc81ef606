package spawn

import (
	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/services/mapgen"
)

// archetype is one bestiary row. Stats scale with depth and the
// recommended level; guardrails clamp whatever scaling overshoots.
type archetype struct {
	name         string
	creatureType string

	baseHP      int
	hpPerDepth  int
	damage      float64
	dmgPerDepth float64
	ac          int
	attackRange int
	damageType  string
	exp         int
	expPerDepth int

	resistances     map[string]float64
	vulnerabilities map[string]float64
	regenPerTurn    float64
}

var bestiary = []archetype{
	{
		name: "Gnawing Rat", creatureType: "beast",
		baseHP: 8, hpPerDepth: 2, damage: 3, dmgPerDepth: 0.5,
		ac: 11, attackRange: 1, damageType: "physical",
		exp: 10, expPerDepth: 4,
	},
	{
		name: "Hollow Skeleton", creatureType: "undead",
		baseHP: 12, hpPerDepth: 3, damage: 4, dmgPerDepth: 1,
		ac: 12, attackRange: 1, damageType: "physical",
		exp: 15, expPerDepth: 6,
		resistances:     map[string]float64{"ice": 0.5},
		vulnerabilities: map[string]float64{"physical": 0.25},
	},
	{
		name: "Cave Stalker", creatureType: "beast",
		baseHP: 14, hpPerDepth: 4, damage: 5, dmgPerDepth: 1,
		ac: 13, attackRange: 1, damageType: "physical",
		exp: 20, expPerDepth: 8,
	},
	{
		name: "Mire Wisp", creatureType: "spirit",
		baseHP: 10, hpPerDepth: 3, damage: 4, dmgPerDepth: 1.5,
		ac: 12, attackRange: 3, damageType: "lightning",
		exp: 22, expPerDepth: 8,
		resistances: map[string]float64{"lightning": 0.75},
	},
	{
		name: "Barrow Hound", creatureType: "undead",
		baseHP: 18, hpPerDepth: 4, damage: 6, dmgPerDepth: 1,
		ac: 13, attackRange: 1, damageType: "physical",
		exp: 28, expPerDepth: 10,
		regenPerTurn: 1,
	},
	{
		name: "Graven Sentinel", creatureType: "construct",
		baseHP: 24, hpPerDepth: 5, damage: 7, dmgPerDepth: 1.5,
		ac: 15, attackRange: 1, damageType: "physical",
		exp: 40, expPerDepth: 12,
		resistances: map[string]float64{"physical": 0.25},
	},
}

// encounterCount maps provider difficulty to a monster budget for the
// floor, deepened slowly.
func encounterCount(difficulty string, depth int) int {
	base := 3
	switch difficulty {
	case "easy":
		base = 2
	case "hard":
		base = 4
	}
	count := base + depth/3
	if count > 8 {
		count = 8
	}
	return count
}

func (s *service) encounterMonster(depth, level, index int) *entities.Entity {
	return s.fromArchetype(bestiary[(depth+index)%len(bestiary)], depth, level, 1.0)
}

// eliteMonster fills a boss point when no quest monster is owed.
func (s *service) eliteMonster(depth, level, index int) *entities.Entity {
	m := s.fromArchetype(bestiary[(depth+index)%len(bestiary)], depth, level, 1.5)
	m.Name = "Elite " + m.Name
	m.ExperienceValue = m.ExperienceValue * 2
	return m
}

func (s *service) fromArchetype(a archetype, depth, level int, scale float64) *entities.Entity {
	m := entities.NewEntity(s.ids.New(), a.name, entities.KindMonster)
	m.CreatureType = a.creatureType

	hp := int(float64(a.baseHP+a.hpPerDepth*depth+3*level) * scale)
	if hp < 1 {
		hp = 1
	}
	m.Stats.HP = hp
	m.Stats.MaxHP = hp
	m.Stats.Level = level
	m.Stats.AC = a.ac
	m.Stats.ACComponents = &entities.ACComponents{Base: a.ac}

	m.AttackDamage = (a.damage + a.dmgPerDepth*float64(depth)) * scale
	m.AttackRange = a.attackRange
	if m.AttackRange < 1 {
		m.AttackRange = 1
	}
	m.DamageType = a.damageType
	m.ExperienceValue = a.exp + a.expPerDepth*depth

	for k, v := range a.resistances {
		m.Resistances[k] = v
	}
	for k, v := range a.vulnerabilities {
		m.Vulnerabilities[k] = v
	}
	if a.regenPerTurn > 0 {
		m.CombatRuntime.RegenPerTurn = a.regenPerTurn
	}
	return m
}

// questMonster materializes a quest binding as a boss-grade entity.
func (s *service) questMonster(qm *entities.QuestMonster, depth, level int) *entities.Entity {
	base := bestiary[len(bestiary)-1]
	m := s.fromArchetype(base, depth, level, 2.0)
	m.ID = s.ids.New()
	m.Name = qm.Name
	if m.Name == "" {
		m.Name = "Nameless Warden"
	}
	m.CreatureType = "quest"
	m.QuestMonsterID = qm.ID
	m.IsFinalObjective = qm.IsFinalObjective
	if qm.IsFinalObjective {
		m.Stats.MaxHP = m.Stats.MaxHP * 2
		m.Stats.HP = m.Stats.MaxHP
		m.CombatRuntime.RegenPerTurn = 2
	}
	return m
}

// questMonstersDue lists the active quest's undefeated monsters owed on
// this floor that are not already present in the roster.
func questMonstersDue(state *entities.GameState, depth int) []*entities.QuestMonster {
	quest := state.ActiveQuest()
	if quest == nil {
		return nil
	}
	var due []*entities.QuestMonster
	for _, qm := range quest.SpecialMonsters {
		if qm == nil || qm.IsDefeated {
			continue
		}
		if qm.Floor != 0 && qm.Floor != depth {
			continue
		}
		alreadyPresent := false
		for _, m := range state.Monsters {
			if m != nil && m.QuestMonsterID == qm.ID {
				alreadyPresent = true
				break
			}
		}
		if !alreadyPresent {
			due = append(due, qm)
		}
	}
	return due
}

// spawnPoints returns the provider hints, or a deterministic spread of
// walkable tiles when the provider gave none.
func spawnPoints(floor *entities.GameMap, hints *mapgen.MonsterHints) []*mapgen.SpawnPoint {
	if hints != nil && len(hints.SpawnPoints) > 0 {
		return hints.SpawnPoints
	}
	var walkable []*entities.MapTile
	for y := 0; y < floor.Height; y++ {
		for x := 0; x < floor.Width; x++ {
			t := floor.TileAt(x, y)
			if t == nil || !t.Walkable() || t.HasEvent {
				continue
			}
			if t.Terrain == entities.TerrainStairsUp || t.Terrain == entities.TerrainStairsDown {
				continue
			}
			walkable = append(walkable, t)
		}
	}
	if len(walkable) == 0 {
		return nil
	}
	want := 8
	stride := len(walkable) / want
	if stride < 1 {
		stride = 1
	}
	var points []*mapgen.SpawnPoint
	for i := stride / 2; i < len(walkable) && len(points) < want; i += stride {
		t := walkable[i]
		points = append(points, &mapgen.SpawnPoint{X: t.X, Y: t.Y, Role: mapgen.SpawnEncounter, RoomID: t.RoomID})
	}
	// The farthest point doubles as the boss anchor.
	if len(points) > 0 {
		points[len(points)-1].Role = mapgen.SpawnBoss
	}
	return points
}

// openTileNear finds the nearest unoccupied walkable event-free tile to
// (x, y), searching outward ring by ring. Nil when nothing within
// reach.
func openTileNear(floor *entities.GameMap, x, y int, occupied map[string]bool) *entities.MapTile {
	for radius := 0; radius <= 4; radius++ {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if maxAbs(dx, dy) != radius {
					continue
				}
				t := floor.TileAt(x+dx, y+dy)
				if t == nil || !t.Walkable() || t.HasEvent || t.CharacterID != "" {
					continue
				}
				if t.Terrain == entities.TerrainStairsUp || t.Terrain == entities.TerrainStairsDown {
					continue
				}
				if occupied[t.Key()] {
					continue
				}
				return t
			}
		}
	}
	return nil
}

// fallbackAnchor is where quest monsters land when every boss point is
// taken: the stairs-down neighborhood, else the map center.
func fallbackAnchor(floor *entities.GameMap) (int, int) {
	if t := floor.FindTerrain(entities.TerrainStairsDown); t != nil {
		return t.X, t.Y
	}
	return floor.Width / 2, floor.Height / 2
}

func maxAbs(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a > b {
		return a
	}
	return b
}
