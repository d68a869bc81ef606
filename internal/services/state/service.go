package state

//go:generate mockgen -destination=mock/mock_service.go -package=mockstate -source=service.go

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
)

// TimeProvider abstracts time for repeatable tests.
type TimeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time { return time.Now() }

// ModificationRecord documents one mutation attempt through the
// modifier, success or not.
type ModificationRecord struct {
	Type         string         `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	Source       string         `json:"source"`
	TargetID     string         `json:"target_id,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Record types.
const (
	RecordPlayerStats = "player_stats"
	RecordProgression = "progression"
	RecordResources   = "resources"
	RecordInventory   = "inventory"
	RecordMap         = "map"
	RecordQuests      = "quests"
	RecordPatchBatch  = "patch_batch"
)

const recordHistoryLimit = 256

// ProgressionResult reports a progression update's outcome.
type ProgressionResult struct {
	ExperienceGained int      `json:"experience_gained"`
	LevelsGained     int      `json:"levels_gained"`
	NewLevel         int      `json:"new_level"`
	Events           []string `json:"events,omitempty"`
}

// SpawnValidator guards monster additions; the spawn service provides
// the production implementation.
type SpawnValidator interface {
	ValidateSpawn(state *entities.GameState, monster *entities.Entity) error
}

// Service is the sole write entry for player stats, abilities,
// inventory, map tiles, monsters, quests, and patch batches.
type Service interface {
	// ApplyPlayerUpdates writes whitelisted stat and ability updates,
	// clamped by semantic rules.
	ApplyPlayerUpdates(state *entities.GameState, updates map[string]any, source string) (*ModificationRecord, error)

	// ApplyPlayerProgressionUpdates adds experience and resolves
	// level-ups (exp >= level*1000 steps, +10 max hp, +5 max mp,
	// refill, level cap 100).
	ApplyPlayerProgressionUpdates(state *entities.GameState, expGained int, source string) (*ProgressionResult, error)

	// ApplyPlayerResourceDelta shifts hp/mp, clamped into range.
	ApplyPlayerResourceDelta(state *entities.GameState, hpDelta, mpDelta int, source string) (*ModificationRecord, error)

	// AddInventoryItems appends items to the player inventory.
	AddInventoryItems(state *entities.GameState, items []*entities.Item, source string) (*ModificationRecord, error)

	// RemoveInventoryItem takes one item out of the inventory.
	RemoveInventoryItem(state *entities.GameState, itemID, source string) (*entities.Item, error)

	// ApplyMapUpdates validates and applies the strict tiles contract,
	// including monster sub-payloads.
	ApplyMapUpdates(state *entities.GameState, updates map[string]any, source string) (*ModificationRecord, error)

	// ApplyQuestUpdates applies per-quest field updates and enforces
	// the single-active-quest invariant.
	ApplyQuestUpdates(state *entities.GameState, updates []map[string]any, source string) (*ModificationRecord, error)

	// AddQuest inserts a quest; an active insert deactivates others.
	AddQuest(state *entities.GameState, quest *entities.Quest, source string) (*ModificationRecord, error)

	// ApplyPatchBatch applies a generative patch batch with snapshot
	// rollback and post-checks.
	ApplyPatchBatch(state *entities.GameState, batch *PatchBatch, source string) (*PatchBatchResult, error)

	// Records returns the recent modification history, newest last.
	Records() []*ModificationRecord
}

type service struct {
	log            *zap.Logger
	clock          TimeProvider
	spawnValidator SpawnValidator

	releaseStage  string
	blockHighRisk bool

	mu      sync.Mutex
	records []*ModificationRecord
}

// ServiceConfig holds configuration for the state modifier.
type ServiceConfig struct {
	Logger         *zap.Logger
	TimeProvider   TimeProvider
	SpawnValidator SpawnValidator

	// ReleaseStage gates high-risk patches in debug/canary stages
	// when BlockHighRiskPatches is set.
	ReleaseStage         string
	BlockHighRiskPatches bool
}

// NewService creates a state modifier service.
func NewService(cfg *ServiceConfig) Service {
	if cfg == nil {
		cfg = &ServiceConfig{}
	}
	svc := &service{
		log:            cfg.Logger,
		clock:          cfg.TimeProvider,
		spawnValidator: cfg.SpawnValidator,
		releaseStage:   cfg.ReleaseStage,
		blockHighRisk:  cfg.BlockHighRiskPatches,
	}
	if svc.log == nil {
		svc.log = zap.NewNop()
	}
	if svc.clock == nil {
		svc.clock = realTimeProvider{}
	}
	return svc
}

func (s *service) Records() []*ModificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ModificationRecord, len(s.records))
	copy(out, s.records)
	return out
}

// record appends one modification record, bounded.
func (s *service) record(recType, source, targetID string, changes map[string]any, err error) *ModificationRecord {
	rec := &ModificationRecord{
		Type:      recType,
		Timestamp: s.clock.Now(),
		Source:    source,
		TargetID:  targetID,
		Changes:   changes,
		Success:   err == nil,
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	}

	s.mu.Lock()
	s.records = append(s.records, rec)
	if excess := len(s.records) - recordHistoryLimit; excess > 0 {
		s.records = s.records[excess:]
	}
	s.mu.Unlock()
	return rec
}

// statUpdateOrder fixes the application order so max values land
// before the values they clamp.
var statUpdateOrder = []string{
	"level", "experience", "max_hp", "max_mp", "hp", "mp",
	"ac", "speed", "shield", "temporary_hp",
}

func (s *service) ApplyPlayerUpdates(state *entities.GameState, updates map[string]any, source string) (*ModificationRecord, error) {
	if state == nil || state.Player == nil || state.Player.Stats == nil {
		return nil, errors.InvalidArgument("state with player is required")
	}
	player := state.Player
	changes := make(map[string]any)

	for root := range updates {
		if root != "stats" && root != "abilities" {
			err := errors.Validationf("unknown player update key %q", root)
			return s.record(RecordPlayerStats, source, player.ID, changes, err), err
		}
	}

	if rawStats, ok := updates["stats"]; ok {
		stats, ok := rawStats.(map[string]any)
		if !ok {
			err := errors.Validation("stats must be an object")
			return s.record(RecordPlayerStats, source, player.ID, changes, err), err
		}
		var skipped []string
		applied := make(map[string]bool)
		for _, key := range statUpdateOrder {
			if raw, present := stats[key]; present {
				s.applyStatWrite(player, key, raw, changes)
				applied[key] = true
			}
		}
		for key := range stats {
			if !applied[key] {
				skipped = append(skipped, key)
			}
		}
		if len(skipped) > 0 {
			changes["skipped_stats"] = skipped
		}
	}

	if rawAbilities, ok := updates["abilities"]; ok {
		abilities, ok := rawAbilities.(map[string]any)
		if !ok {
			err := errors.Validation("abilities must be an object")
			return s.record(RecordPlayerStats, source, player.ID, changes, err), err
		}
		for _, name := range entities.AbilityNames {
			raw, present := abilities[name]
			if !present {
				continue
			}
			if score, ok := toInt(raw); ok {
				player.SetAbilityScore(name, score)
				applied, _ := player.Abilities.Get(name)
				changes["ability."+name] = applied
			}
		}
	}

	player.SyncLegacyMirrors()
	s.log.Debug("player updates applied",
		zap.String("source", source),
		zap.Int("changes", len(changes)))
	return s.record(RecordPlayerStats, source, player.ID, changes, nil), nil
}

// applyStatWrite clamps and writes one stat field.
func (s *service) applyStatWrite(player *entities.Entity, key string, raw any, changes map[string]any) {
	stats := player.Stats
	switch key {
	case "level":
		if v, ok := toInt(raw); ok {
			stats.Level = clampInt(v, entities.LevelMin, entities.LevelMax)
			changes[key] = stats.Level
		}
	case "experience":
		if v, ok := toInt(raw); ok {
			stats.Experience = maxInt(0, v)
			changes[key] = stats.Experience
		}
	case "max_hp":
		if v, ok := toInt(raw); ok {
			stats.MaxHP = maxInt(1, v)
			if stats.HP > stats.MaxHP {
				stats.HP = stats.MaxHP
			}
			changes[key] = stats.MaxHP
		}
	case "max_mp":
		if v, ok := toInt(raw); ok {
			stats.MaxMP = maxInt(0, v)
			if stats.MP > stats.MaxMP {
				stats.MP = stats.MaxMP
			}
			changes[key] = stats.MaxMP
		}
	case "hp":
		if v, ok := toInt(raw); ok {
			stats.HP = clampInt(v, 0, stats.MaxHP)
			changes[key] = stats.HP
		}
	case "mp":
		if v, ok := toInt(raw); ok {
			stats.MP = clampInt(v, 0, stats.MaxMP)
			changes[key] = stats.MP
		}
	case "ac":
		if v, ok := toInt(raw); ok {
			target := clampInt(v, 0, 50)
			stats.AC = target
			if stats.ACComponents == nil {
				stats.ACComponents = &entities.ACComponents{}
			}
			// keep the effective total equal to the requested value
			c := stats.ACComponents
			c.Base = target - c.Armor - c.Shield - c.Status - c.Situational + c.Penalty
			changes[key] = target
		}
	case "speed":
		if v, ok := toInt(raw); ok {
			stats.Speed = maxInt(0, v)
			changes[key] = stats.Speed
		}
	case "shield":
		if v, ok := toFloat(raw); ok {
			if player.CombatRuntime == nil {
				player.CombatRuntime = &entities.CombatRuntime{}
			}
			player.CombatRuntime.Shield = math.Max(0, v)
			changes[key] = player.CombatRuntime.Shield
		}
	case "temporary_hp":
		if v, ok := toFloat(raw); ok {
			if player.CombatRuntime == nil {
				player.CombatRuntime = &entities.CombatRuntime{}
			}
			player.CombatRuntime.TemporaryHP = math.Max(0, v)
			changes[key] = player.CombatRuntime.TemporaryHP
		}
	}
}

// expToNextLevel is the threshold a level must bank to advance.
func expToNextLevel(level int) int {
	return level * 1000
}

func (s *service) ApplyPlayerProgressionUpdates(state *entities.GameState, expGained int, source string) (*ProgressionResult, error) {
	if state == nil || state.Player == nil || state.Player.Stats == nil {
		return nil, errors.InvalidArgument("state with player is required")
	}
	stats := state.Player.Stats
	if expGained < 0 {
		expGained = 0
	}

	result := &ProgressionResult{ExperienceGained: expGained, NewLevel: stats.Level}
	stats.Experience += expGained

	for stats.Level < entities.LevelMax && stats.Experience >= expToNextLevel(stats.Level) {
		stats.Experience -= expToNextLevel(stats.Level)
		stats.Level++
		stats.MaxHP += 10
		stats.MaxMP += 5
		stats.HP = stats.MaxHP
		stats.MP = stats.MaxMP
		result.LevelsGained++
		result.Events = append(result.Events, fmt.Sprintf("%s reaches level %d!", state.Player.Name, stats.Level))
	}
	result.NewLevel = stats.Level

	s.record(RecordProgression, source, state.Player.ID, map[string]any{
		"exp_gained":    expGained,
		"levels_gained": result.LevelsGained,
		"level":         stats.Level,
		"experience":    stats.Experience,
	}, nil)
	return result, nil
}

func (s *service) ApplyPlayerResourceDelta(state *entities.GameState, hpDelta, mpDelta int, source string) (*ModificationRecord, error) {
	if state == nil || state.Player == nil || state.Player.Stats == nil {
		return nil, errors.InvalidArgument("state with player is required")
	}
	stats := state.Player.Stats

	stats.HP = clampInt(stats.HP+hpDelta, 0, stats.MaxHP)
	stats.MP = clampInt(stats.MP+mpDelta, 0, stats.MaxMP)

	return s.record(RecordResources, source, state.Player.ID, map[string]any{
		"hp_delta": hpDelta,
		"mp_delta": mpDelta,
		"hp":       stats.HP,
		"mp":       stats.MP,
	}, nil), nil
}

func (s *service) AddInventoryItems(state *entities.GameState, items []*entities.Item, source string) (*ModificationRecord, error) {
	if state == nil || state.Player == nil {
		return nil, errors.InvalidArgument("state with player is required")
	}

	var added []string
	for _, item := range items {
		if item == nil || item.ID == "" {
			continue
		}
		state.Player.Inventory = append(state.Player.Inventory, item)
		added = append(added, item.ID)
	}

	return s.record(RecordInventory, source, state.Player.ID, map[string]any{
		"added_item_ids": added,
	}, nil), nil
}

func (s *service) RemoveInventoryItem(state *entities.GameState, itemID, source string) (*entities.Item, error) {
	if state == nil || state.Player == nil {
		return nil, errors.InvalidArgument("state with player is required")
	}

	item := state.Player.RemoveItem(itemID)
	if item == nil {
		err := errors.NotFoundf("item %s not in inventory", itemID)
		s.record(RecordInventory, source, itemID, nil, err)
		return nil, err
	}
	s.record(RecordInventory, source, state.Player.ID, map[string]any{
		"removed_item_id": itemID,
	}, nil)
	return item, nil
}

// questUpdateFields is the per-quest update whitelist.
var questUpdateFields = map[string]bool{
	"quest_id": true, "title": true, "description": true,
	"is_active": true, "is_completed": true, "progress_percentage": true,
	"story_context": true, "llm_notes": true,
	"completed_objective": true, "trigger_event_id": true, "defeat_monster_id": true,
}

func (s *service) ApplyQuestUpdates(state *entities.GameState, updates []map[string]any, source string) (*ModificationRecord, error) {
	if state == nil {
		return nil, errors.InvalidArgument("state is required")
	}
	changes := make(map[string]any)
	var explicitlyActivated []*entities.Quest

	for i, update := range updates {
		questID, _ := update["quest_id"].(string)
		if questID == "" {
			err := errors.Validationf("quest update %d missing quest_id", i)
			return s.record(RecordQuests, source, "", changes, err), err
		}
		quest := state.QuestByID(questID)
		if quest == nil {
			err := errors.NotFoundf("quest %s not found", questID)
			return s.record(RecordQuests, source, questID, changes, err), err
		}
		for field := range update {
			if !questUpdateFields[field] {
				err := errors.Validationf("unknown quest update field %q", field)
				return s.record(RecordQuests, source, questID, changes, err), err
			}
		}

		applied := s.applyQuestUpdate(quest, update)
		if activated, _ := update["is_active"].(bool); activated {
			explicitlyActivated = append(explicitlyActivated, quest)
		}
		changes[questID] = applied
	}

	enforceSingleActive(state, explicitlyActivated)
	return s.record(RecordQuests, source, "", changes, nil), nil
}

func (s *service) applyQuestUpdate(quest *entities.Quest, update map[string]any) []string {
	var applied []string
	if v, ok := update["title"].(string); ok && v != "" {
		quest.Title = v
		applied = append(applied, "title")
	}
	if v, ok := update["description"].(string); ok && v != "" {
		quest.Description = v
		applied = append(applied, "description")
	}
	if v, ok := update["is_active"].(bool); ok {
		quest.IsActive = v
		applied = append(applied, "is_active")
	}
	if v, ok := update["is_completed"].(bool); ok {
		quest.IsCompleted = v
		if v {
			quest.IsActive = false
			quest.ProgressPercentage = 100
		}
		applied = append(applied, "is_completed")
	}
	if raw, ok := update["progress_percentage"]; ok {
		if v, ok := toFloat(raw); ok {
			quest.ProgressPercentage = clampFloat(v, 0, 100)
			applied = append(applied, "progress_percentage")
		}
	}
	if v, ok := update["story_context"].(string); ok && v != "" {
		quest.StoryContext = v
		applied = append(applied, "story_context")
	}
	if v, ok := update["llm_notes"].(string); ok && v != "" {
		quest.LLMNotes = v
		applied = append(applied, "llm_notes")
	}
	if v, ok := update["completed_objective"].(string); ok && v != "" {
		quest.CompletedObjectives = append(quest.CompletedObjectives, v)
		applied = append(applied, "completed_objective")
	}
	if v, ok := update["trigger_event_id"].(string); ok && v != "" {
		for _, ev := range quest.SpecialEvents {
			if ev.ID == v {
				ev.IsTriggered = true
				applied = append(applied, "trigger_event_id")
				break
			}
		}
	}
	if v, ok := update["defeat_monster_id"].(string); ok && v != "" {
		for _, m := range quest.SpecialMonsters {
			if m.ID == v {
				m.IsDefeated = true
				applied = append(applied, "defeat_monster_id")
				break
			}
		}
	}
	return applied
}

// enforceSingleActive keeps at most one active, uncompleted quest.
// Explicit activations win; otherwise the first active quest stays.
func enforceSingleActive(state *entities.GameState, explicitlyActivated []*entities.Quest) {
	if len(explicitlyActivated) > 0 {
		winner := explicitlyActivated[0]
		for _, q := range state.Quests {
			q.IsActive = q == winner && !q.IsCompleted
		}
		return
	}

	seen := false
	for _, q := range state.Quests {
		if q.IsCompleted {
			q.IsActive = false
			continue
		}
		if q.IsActive {
			if seen {
				q.IsActive = false
			}
			seen = true
		}
	}
}

func (s *service) AddQuest(state *entities.GameState, quest *entities.Quest, source string) (*ModificationRecord, error) {
	if state == nil || quest == nil || quest.ID == "" {
		return nil, errors.InvalidArgument("state and quest with id are required")
	}
	if existing := state.QuestByID(quest.ID); existing != nil {
		err := errors.AlreadyExistsf("quest %s already exists", quest.ID)
		return s.record(RecordQuests, source, quest.ID, nil, err), err
	}

	state.Quests = append(state.Quests, quest)
	if quest.IsActive {
		enforceSingleActive(state, []*entities.Quest{quest})
	}
	return s.record(RecordQuests, source, quest.ID, map[string]any{
		"added": quest.Title,
	}, nil), nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(math.Round(n)), true
	case float32:
		return int(math.Round(float64(n))), true
	}
	return 0, false
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
	}
	return 0, false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
