package entities

import (
	"time"
)

// Combat authority modes: who commits combat outcomes.
const (
	AuthorityLocal  = "local"  // client-authoritative, server predicts only
	AuthorityHybrid = "hybrid" // server applies, client may predict
	AuthorityServer = "server" // server applies, client renders
)

// ValidAuthorityMode reports whether the mode name is recognized.
func ValidAuthorityMode(mode string) bool {
	return mode == AuthorityLocal || mode == AuthorityHybrid || mode == AuthorityServer
}

// PendingEffect queues a status effect for a target entity.
type PendingEffect struct {
	TargetID string        `json:"target_id"`
	Effect   *StatusEffect `json:"effect"`
}

// QuestCompletionNotice is parked on the state until the player
// acknowledges the completion through a choice.
type QuestCompletionNotice struct {
	QuestID           string `json:"quest_id"`
	Title             string `json:"title"`
	ExperienceAwarded int    `json:"experience_awarded"`
	Narrative         string `json:"narrative,omitempty"`
}

// MapTransition is a queued floor change.
type MapTransition struct {
	Direction string `json:"direction"` // down | up
	FromDepth int    `json:"from_depth"`
	ToDepth   int    `json:"to_depth"`
}

// DropUndoToken lets a player undo an accidental drop for a short window.
type DropUndoToken struct {
	ItemID        string `json:"item_id"`
	TileKey       string `json:"tile_key"`
	DroppedAtTurn int    `json:"dropped_at_turn"`
	ExpiresAtTurn int    `json:"expires_at_turn"`
}

// CombatantBrief is the snapshot view of one combatant.
type CombatantBrief struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	HP          int     `json:"hp"`
	MaxHP       int     `json:"max_hp"`
	Shield      float64 `json:"shield"`
	TemporaryHP float64 `json:"temporary_hp"`
	AC          int     `json:"ac"`
	IsAlive     bool    `json:"is_alive"`
}

// CombatSnapshot is the per-turn combat summary rebuilt after each action.
type CombatSnapshot struct {
	TurnCount int               `json:"turn_count"`
	Player    *CombatantBrief   `json:"player,omitempty"`
	Monsters  []*CombatantBrief `json:"monsters,omitempty"`
}

// MigrationRecord notes a combat-rule version migration on load.
type MigrationRecord struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	MigratedAt time.Time `json:"migrated_at"`
}

// GameState is the authoritative per-game record. It owns the player,
// the current map, the monsters, and the quests; cross-references
// between them are IDs resolved through lookups.
type GameState struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Player     *Entity   `json:"player"`
	CurrentMap *GameMap  `json:"current_map"`
	Monsters   []*Entity `json:"monsters,omitempty"`
	Quests     []*Quest  `json:"quests,omitempty"`

	TurnCount int     `json:"turn_count"`
	GameTime  float64 `json:"game_time"` // in-game minutes

	CreatedAt time.Time `json:"created_at"`
	LastSaved time.Time `json:"last_saved,omitempty"`

	IsGameOver     bool   `json:"is_game_over,omitempty"`
	GameOverReason string `json:"game_over_reason,omitempty"`

	PendingEvents             []string               `json:"pending_events,omitempty"`
	PendingEffects            []*PendingEffect       `json:"pending_effects,omitempty"`
	PendingChoiceContext      *EventChoiceContext    `json:"pending_choice_context,omitempty"`
	PendingQuestCompletion    *QuestCompletionNotice `json:"pending_quest_completion,omitempty"`
	PendingNewQuestGeneration bool                   `json:"pending_new_quest_generation,omitempty"`
	PendingMapTransition      *MapTransition         `json:"pending_map_transition,omitempty"`

	DropUndo *DropUndoToken `json:"drop_undo,omitempty"`

	CombatRules         *CombatRules    `json:"combat_rules,omitempty"`
	CombatRuleVersion   string          `json:"combat_rule_version,omitempty"`
	CombatAuthorityMode string          `json:"combat_authority_mode,omitempty"`
	CombatSnapshot      *CombatSnapshot `json:"combat_snapshot,omitempty"`

	GenerationMetrics *GenerationMetrics `json:"generation_metrics,omitempty"`
	MigrationHistory  []*MigrationRecord `json:"migration_history,omitempty"`
}

// NewGameState builds an empty state owned by a user.
func NewGameState(id, userID string, now time.Time) *GameState {
	return &GameState{
		ID:                  id,
		UserID:              userID,
		CreatedAt:           now,
		CombatRules:         DefaultCombatRules(),
		CombatRuleVersion:   CombatRuleVersion,
		CombatAuthorityMode: AuthorityServer,
		GenerationMetrics:   NewGenerationMetrics(),
	}
}

// Monster finds a monster by entity ID, nil when absent.
func (s *GameState) Monster(id string) *Entity {
	for _, m := range s.Monsters {
		if m != nil && m.ID == id {
			return m
		}
	}
	return nil
}

// MonsterAt returns the living monster standing on (x, y), nil when none.
func (s *GameState) MonsterAt(x, y int) *Entity {
	for _, m := range s.Monsters {
		if m != nil && m.IsAlive() && m.Position.X == x && m.Position.Y == y {
			return m
		}
	}
	return nil
}

// LivingMonsters returns every monster with HP remaining.
func (s *GameState) LivingMonsters() []*Entity {
	out := make([]*Entity, 0, len(s.Monsters))
	for _, m := range s.Monsters {
		if m != nil && m.IsAlive() {
			out = append(out, m)
		}
	}
	return out
}

// RemoveMonster drops a monster from the state and clears its tile
// back-reference. Returns true when found.
func (s *GameState) RemoveMonster(id string) bool {
	for i, m := range s.Monsters {
		if m != nil && m.ID == id {
			if s.CurrentMap != nil {
				if t := s.CurrentMap.TileAt(m.Position.X, m.Position.Y); t != nil && t.CharacterID == id {
					t.CharacterID = ""
				}
			}
			s.Monsters = append(s.Monsters[:i], s.Monsters[i+1:]...)
			return true
		}
	}
	return false
}

// ActiveQuest returns the single active quest, nil when none.
func (s *GameState) ActiveQuest() *Quest {
	return ActiveQuest(s.Quests)
}

// QuestByID finds a quest, nil when absent.
func (s *GameState) QuestByID(id string) *Quest {
	for _, q := range s.Quests {
		if q != nil && q.ID == id {
			return q
		}
	}
	return nil
}

// AddPendingEvent appends a human-readable event line.
func (s *GameState) AddPendingEvent(event string) {
	if event == "" {
		return
	}
	s.PendingEvents = append(s.PendingEvents, event)
}

// DrainPendingEvents returns the queued events and clears the queue.
func (s *GameState) DrainPendingEvents() []string {
	events := s.PendingEvents
	s.PendingEvents = nil
	return events
}

// EnsureMetrics lazily initializes the metrics container.
func (s *GameState) EnsureMetrics() *GenerationMetrics {
	if s.GenerationMetrics == nil {
		s.GenerationMetrics = NewGenerationMetrics()
	}
	return s.GenerationMetrics
}

// EnsureCombatDefaults populates combat rules, rule version, and
// authority mode when missing, recording a migration when the stored
// rule version is stale.
func (s *GameState) EnsureCombatDefaults(now time.Time) {
	if s.CombatRules == nil {
		s.CombatRules = DefaultCombatRules()
	}
	if s.CombatAuthorityMode == "" {
		s.CombatAuthorityMode = AuthorityServer
	}
	if s.CombatRuleVersion != CombatRuleVersion {
		if s.CombatRuleVersion != "" {
			s.MigrationHistory = append(s.MigrationHistory, &MigrationRecord{
				From:       s.CombatRuleVersion,
				To:         CombatRuleVersion,
				MigratedAt: now,
			})
		}
		s.CombatRuleVersion = CombatRuleVersion
	}
}

// RebuildCombatSnapshot refreshes the per-turn combat summary.
func (s *GameState) RebuildCombatSnapshot() {
	snap := &CombatSnapshot{TurnCount: s.TurnCount}
	if s.Player != nil {
		snap.Player = briefOf(s.Player)
	}
	for _, m := range s.Monsters {
		if m != nil {
			snap.Monsters = append(snap.Monsters, briefOf(m))
		}
	}
	s.CombatSnapshot = snap
}

// Clone returns a deep copy of the state, detached from the original.
// Used to snapshot under the game lock before handing the copy to
// background persistence.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	out := *s

	if s.Player != nil {
		out.Player = s.Player.Clone()
	}
	if s.CurrentMap != nil {
		out.CurrentMap = s.CurrentMap.Clone()
	}
	if s.Monsters != nil {
		out.Monsters = make([]*Entity, 0, len(s.Monsters))
		for _, m := range s.Monsters {
			out.Monsters = append(out.Monsters, m.Clone())
		}
	}
	if s.Quests != nil {
		out.Quests = make([]*Quest, 0, len(s.Quests))
		for _, q := range s.Quests {
			out.Quests = append(out.Quests, q.Clone())
		}
	}

	out.PendingEvents = append([]string(nil), s.PendingEvents...)
	if s.PendingEffects != nil {
		out.PendingEffects = make([]*PendingEffect, 0, len(s.PendingEffects))
		for _, pe := range s.PendingEffects {
			if pe == nil {
				out.PendingEffects = append(out.PendingEffects, nil)
				continue
			}
			cp := *pe
			cp.Effect = pe.Effect.Clone()
			out.PendingEffects = append(out.PendingEffects, &cp)
		}
	}
	if s.PendingChoiceContext != nil {
		out.PendingChoiceContext = s.PendingChoiceContext.Clone()
	}
	if s.PendingQuestCompletion != nil {
		notice := *s.PendingQuestCompletion
		out.PendingQuestCompletion = &notice
	}
	if s.PendingMapTransition != nil {
		transition := *s.PendingMapTransition
		out.PendingMapTransition = &transition
	}
	if s.DropUndo != nil {
		undo := *s.DropUndo
		out.DropUndo = &undo
	}

	out.CombatRules = s.CombatRules.Clone()
	if s.CombatSnapshot != nil {
		snap := CombatSnapshot{TurnCount: s.CombatSnapshot.TurnCount}
		if s.CombatSnapshot.Player != nil {
			brief := *s.CombatSnapshot.Player
			snap.Player = &brief
		}
		for _, b := range s.CombatSnapshot.Monsters {
			if b == nil {
				snap.Monsters = append(snap.Monsters, nil)
				continue
			}
			brief := *b
			snap.Monsters = append(snap.Monsters, &brief)
		}
		out.CombatSnapshot = &snap
	}
	if s.GenerationMetrics != nil {
		out.GenerationMetrics = s.GenerationMetrics.Clone()
	}
	if s.MigrationHistory != nil {
		out.MigrationHistory = make([]*MigrationRecord, 0, len(s.MigrationHistory))
		for _, rec := range s.MigrationHistory {
			if rec == nil {
				out.MigrationHistory = append(out.MigrationHistory, nil)
				continue
			}
			cp := *rec
			out.MigrationHistory = append(out.MigrationHistory, &cp)
		}
	}
	return &out
}

func briefOf(e *Entity) *CombatantBrief {
	b := &CombatantBrief{
		ID:      e.ID,
		Name:    e.Name,
		AC:      e.ACEffective(),
		IsAlive: e.IsAlive(),
	}
	if e.Stats != nil {
		b.HP = e.Stats.HP
		b.MaxHP = e.Stats.MaxHP
	}
	if e.CombatRuntime != nil {
		b.Shield = e.CombatRuntime.Shield
		b.TemporaryHP = e.CombatRuntime.TemporaryHP
	}
	return b
}
