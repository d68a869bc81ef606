package spawn

import (
	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/services/mapgen"
	"github.com/labyrinthia/engine/internal/uuid"
)

//go:generate mockgen -destination=mock/mock_service.go -package=mockspawn -source=service.go

// Guardrail reasons recorded in spawn metrics.
const (
	ReasonHPClamped          = "hp_clamped"
	ReasonDamageClamped      = "damage_clamped"
	ReasonACClamped          = "ac_clamped"
	ReasonRegenClamped       = "regen_clamped"
	ReasonHighHPFinalAllowed = "high_hp_allowed_final_objective"

	rejectDuplicateID   = "duplicate_monster_id"
	rejectNotMonster    = "not_a_monster"
	rejectOverBudgetHP  = "over_budget_hp"
	rejectOverBudgetDmg = "over_budget_damage"
	rejectOverBudgetAC  = "over_budget_ac"
)

// Service places monsters on fresh floors and guards runtime additions.
// It is the production implementation of state.SpawnValidator.
type Service interface {
	// PopulateFloor replaces the game's monster roster for the current
	// map, distributing encounters over the provider's hint points and
	// binding quest monsters owed on this floor. Returns the spawned
	// monsters.
	PopulateFloor(state *entities.GameState, hints *mapgen.MonsterHints) ([]*entities.Entity, error)

	// ValidateSpawn rejects runtime monster additions that exceed the
	// power budget or collide with existing IDs. Accepted monsters have
	// illegal status packs stripped in place.
	ValidateSpawn(state *entities.GameState, monster *entities.Entity) error
}

// ServiceConfig wires the spawn service.
type ServiceConfig struct {
	Logger      *zap.Logger
	IDGenerator uuid.Generator
}

type service struct {
	log *zap.Logger
	ids uuid.Generator
}

// NewService builds the spawn service.
func NewService(cfg *ServiceConfig) Service {
	if cfg == nil {
		panic("config is required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ids := cfg.IDGenerator
	if ids == nil {
		ids = uuid.NewGoogleUUIDGenerator()
	}
	return &service{log: log, ids: ids}
}

// powerBudget is the clamp ceiling for one monster.
type powerBudget struct {
	maxHP     int
	maxDamage float64
	maxAC     int
	maxRegen  float64
}

// budgetFor derives the ceiling from player level and floor depth.
// Final objectives get triple hit points and half again the damage; the
// exemption is recorded when used.
func budgetFor(playerLevel, depth int, finalObjective bool) powerBudget {
	if playerLevel <= 0 {
		playerLevel = 1
	}
	if depth <= 0 {
		depth = 1
	}
	b := powerBudget{
		maxHP:     30 + 12*playerLevel + 8*depth,
		maxDamage: 4 + 2.5*float64(playerLevel) + 1.5*float64(depth),
		maxAC:     12 + playerLevel/2 + depth/2,
		maxRegen:  1 + float64(depth)/2,
	}
	if finalObjective {
		b.maxHP *= 3
		b.maxDamage *= 1.5
		b.maxAC += 2
		b.maxRegen *= 2
	}
	return b
}

func playerLevelOf(state *entities.GameState) int {
	if state.Player != nil && state.Player.Stats != nil {
		return state.Player.Stats.Level
	}
	return 1
}

func depthOf(state *entities.GameState) int {
	if state.CurrentMap != nil {
		return state.CurrentMap.Depth
	}
	return 1
}

func (s *service) PopulateFloor(state *entities.GameState, hints *mapgen.MonsterHints) ([]*entities.Entity, error) {
	if state == nil || state.CurrentMap == nil {
		return nil, errors.InvalidArgument("state with a current map is required")
	}
	floor := state.CurrentMap
	depth := floor.Depth
	sm := state.EnsureMetrics().EnsureSpawn()

	level := playerLevelOf(state)
	if hints != nil && hints.RecommendedLevel > 0 {
		level = hints.RecommendedLevel
	}
	difficulty := "medium"
	if hints != nil && hints.EncounterDifficulty != "" {
		difficulty = hints.EncounterDifficulty
	}

	points := spawnPoints(floor, hints)
	encounterTarget := encounterCount(difficulty, depth)

	var spawned []*entities.Entity
	occupied := map[string]bool{}
	if state.Player != nil {
		occupied[entities.TileKey(state.Player.Position.X, state.Player.Position.Y)] = true
	}

	questDue := questMonstersDue(state, depth)
	bound := 0

	placeAt := func(m *entities.Entity, x, y int) bool {
		tile := openTileNear(floor, x, y, occupied)
		if tile == nil {
			return false
		}
		m.Position = entities.Position{X: tile.X, Y: tile.Y}
		tile.CharacterID = m.ID
		occupied[tile.Key()] = true
		spawned = append(spawned, m)
		return true
	}

	encounterIdx := 0
	for _, pt := range points {
		switch pt.Role {
		case mapgen.SpawnBoss:
			var m *entities.Entity
			if bound < len(questDue) {
				m = s.questMonster(questDue[bound], depth, level)
			} else {
				m = s.eliteMonster(depth, level, encounterIdx)
				encounterIdx++
			}
			if placeAt(m, pt.X, pt.Y) {
				if m.QuestMonsterID != "" {
					bound++
					sm.QuestBindings++
				}
			}
		default:
			if encounterIdx >= encounterTarget {
				continue
			}
			m := s.encounterMonster(depth, level, encounterIdx)
			if placeAt(m, pt.X, pt.Y) {
				encounterIdx++
			}
		}
	}

	// Quest monsters owed on this floor always spawn, boss point or not.
	for bound < len(questDue) {
		m := s.questMonster(questDue[bound], depth, level)
		x, y := fallbackAnchor(floor)
		if !placeAt(m, x, y) {
			s.log.Warn("no open tile for quest monster",
				zap.String("quest_monster_id", questDue[bound].ID),
				zap.Int("depth", depth))
			break
		}
		bound++
		sm.QuestBindings++
	}

	for _, m := range spawned {
		s.applyGuardrails(state, m, sm)
		s.stripIllegalStatusPacks(m, sm)
	}

	state.Monsters = spawned
	sm.Spawned += len(spawned)
	s.log.Info("floor populated",
		zap.String("map_id", floor.ID),
		zap.Int("depth", depth),
		zap.Int("monsters", len(spawned)),
		zap.Int("quest_bindings", bound),
		zap.String("difficulty", difficulty))
	return spawned, nil
}

func (s *service) ValidateSpawn(state *entities.GameState, monster *entities.Entity) error {
	if state == nil || monster == nil {
		return errors.InvalidArgument("state and monster are required")
	}
	sm := state.EnsureMetrics().EnsureSpawn()
	if monster.Kind != entities.KindMonster {
		sm.RecordRejectedSpawn(rejectNotMonster)
		return errors.Validationf("spawn %s: kind %q is not a monster", monster.ID, monster.Kind)
	}
	if existing := state.Monster(monster.ID); existing != nil {
		sm.RecordRejectedSpawn(rejectDuplicateID)
		return errors.Validationf("spawn %s: monster id already present", monster.ID)
	}

	budget := budgetFor(playerLevelOf(state), depthOf(state), monster.IsFinalObjective)
	if monster.Stats != nil {
		if monster.Stats.MaxHP > budget.maxHP {
			sm.RecordRejectedSpawn(rejectOverBudgetHP)
			return errors.Validationf("spawn %s: max_hp %d exceeds budget %d", monster.ID, monster.Stats.MaxHP, budget.maxHP)
		}
		if monster.ACEffective() > budget.maxAC {
			sm.RecordRejectedSpawn(rejectOverBudgetAC)
			return errors.Validationf("spawn %s: ac %d exceeds budget %d", monster.ID, monster.ACEffective(), budget.maxAC)
		}
	}
	if monster.AttackDamage > budget.maxDamage {
		sm.RecordRejectedSpawn(rejectOverBudgetDmg)
		return errors.Validationf("spawn %s: attack damage %.1f exceeds budget %.1f", monster.ID, monster.AttackDamage, budget.maxDamage)
	}
	s.stripIllegalStatusPacks(monster, sm)
	return nil
}

// applyGuardrails clamps generated stats into the power budget. Final
// objectives keep their larger ceiling, recorded by reason.
func (s *service) applyGuardrails(state *entities.GameState, m *entities.Entity, sm *entities.SpawnMetrics) {
	level := playerLevelOf(state)
	depth := depthOf(state)
	normal := budgetFor(level, depth, false)
	budget := normal
	if m.IsFinalObjective {
		budget = budgetFor(level, depth, true)
	}
	if m.Stats == nil {
		return
	}

	if m.Stats.MaxHP > budget.maxHP {
		m.Stats.MaxHP = budget.maxHP
		sm.RecordDowngrade(ReasonHPClamped)
	} else if m.IsFinalObjective && m.Stats.MaxHP > normal.maxHP {
		sm.RecordDowngrade(ReasonHighHPFinalAllowed)
	}
	if m.Stats.HP > m.Stats.MaxHP {
		m.Stats.HP = m.Stats.MaxHP
	}

	if m.AttackDamage > budget.maxDamage {
		m.AttackDamage = budget.maxDamage
		sm.RecordDowngrade(ReasonDamageClamped)
	}

	if m.Stats.AC > budget.maxAC {
		m.Stats.AC = budget.maxAC
		if m.Stats.ACComponents != nil {
			m.Stats.ACComponents.Base = budget.maxAC
		}
		sm.RecordDowngrade(ReasonACClamped)
	}

	if m.CombatRuntime != nil && m.CombatRuntime.RegenPerTurn > budget.maxRegen {
		m.CombatRuntime.RegenPerTurn = budget.maxRegen
		sm.RecordDowngrade(ReasonRegenClamped)
	}
}

// stripIllegalStatusPacks drops pre-loaded effects a monster may not
// spawn with: unknown effect types, action-blocking auras, and
// non-expiring packs.
func (s *service) stripIllegalStatusPacks(m *entities.Entity, sm *entities.SpawnMetrics) {
	if len(m.ActiveEffects) == 0 {
		return
	}
	kept := m.ActiveEffects[:0]
	for _, eff := range m.ActiveEffects {
		if eff == nil || !legalEffectType(eff.EffectType) || len(eff.BlockedActions) > 0 || eff.DurationTurns <= 0 {
			sm.StrippedStatusPacks++
			continue
		}
		kept = append(kept, eff)
	}
	m.ActiveEffects = kept
}

func legalEffectType(t string) bool {
	switch t {
	case "buff", "debuff", "dot", "hot", "restraint":
		return true
	}
	return false
}
