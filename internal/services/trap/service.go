package trap

//go:generate mockgen -destination=mock/mock_service.go -package=mocktrap -source=service.go

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/dice"
	"github.com/labyrinthia/engine/internal/effects"
	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/rolls"
	"github.com/labyrinthia/engine/internal/services/state"
)

// Trap effect types.
const (
	TrapDamage    = "damage"
	TrapDebuff    = "debuff"
	TrapTeleport  = "teleport"
	TrapAlarm     = "alarm"
	TrapRestraint = "restraint"
)

// Result outcomes.
const (
	OutcomeDetected     = "trap_detected"
	OutcomeMissed       = "trap_missed"
	OutcomeDisarmed     = "trap_disarmed"
	OutcomeDisarmFailed = "disarm_failed"
	OutcomeTriggered    = "trap_triggered"
	OutcomeAvoided      = "trap_avoided"
)

const (
	defaultDetectDC = 12
	defaultDisarmDC = 13
	defaultSaveDC   = 12

	alarmRadius = 6
	alarmSteps  = 2
)

// Trap is the decoded definition carried by a trap tile's event data.
type Trap struct {
	Name        string
	Description string
	TrapType    string // damage | debuff | teleport | alarm | restraint

	DetectDC int
	DisarmDC int
	SaveDC   int

	// Damage is a dice expression ("2d6+1") or empty for the
	// depth-scaled default. Used by damage traps and as dot strength.
	Damage     string
	DamageType string

	DurationTurns int
	Modifiers     map[string]float64
	DamagePerTurn float64

	// Destination is where a teleport trap sends the victim; nil falls
	// back to the stairs-up tile.
	Destination *entities.Position
}

// SourceKey identifies the trap in status effect provenance.
func (t *Trap) SourceKey() string {
	slug := strings.ToLower(strings.ReplaceAll(t.Name, " ", "_"))
	return "trap:" + slug
}

// Result is one resolution step's outcome.
type Result struct {
	Trap    *Trap              `json:"-"`
	Outcome string             `json:"outcome"`
	Check   *rolls.CheckResult `json:"check,omitempty"`

	Damage    int      `json:"damage,omitempty"`
	Events    []string `json:"events,omitempty"`
	Narrative string   `json:"narrative,omitempty"`
}

// Narrator produces flavor text for a resolved trap. The story oracle
// satisfies this through an adapter; the zero-config fallback formats
// local strings.
type Narrator interface {
	TrapNarrative(ctx context.Context, gameState *entities.GameState, result *Result) (string, error)
}

// Service resolves trap tiles: detection, disarming, and triggering.
type Service interface {
	// TrapAt decodes the trap on a tile, nil when the tile holds none
	// or it is already spent.
	TrapAt(tile *entities.MapTile) *Trap

	// Detect rolls (or passively computes) perception against the
	// trap's detect DC and marks the tile on success.
	Detect(gameState *entities.GameState, tile *entities.MapTile, passive bool) (*Result, error)

	// Disarm attempts to disable a detected trap. A critical failure
	// sets it off.
	Disarm(ctx context.Context, gameState *entities.GameState, tile *entities.MapTile) (*Result, error)

	// Trigger springs the trap on the player, allowing a dexterity
	// save: damage traps deal half on a save, every other type is
	// negated outright.
	Trigger(ctx context.Context, gameState *entities.GameState, tile *entities.MapTile) (*Result, error)
}

type service struct {
	log      *zap.Logger
	state    state.Service
	effects  *effects.Engine
	roller   dice.Roller
	resolver *rolls.Resolver
	narrator Narrator
}

// ServiceConfig holds configuration for the trap manager.
type ServiceConfig struct {
	Logger       *zap.Logger
	StateService state.Service
	Effects      *effects.Engine

	// Roller is optional; defaults to the shared random roller.
	Roller dice.Roller
	// Narrator is optional; defaults to local fallback strings.
	Narrator Narrator
}

// NewService creates a trap manager.
func NewService(cfg *ServiceConfig) Service {
	if cfg == nil {
		panic("config is required")
	}
	if cfg.StateService == nil {
		panic("state service is required")
	}
	if cfg.Effects == nil {
		panic("effect engine is required")
	}
	svc := &service{
		log:      cfg.Logger,
		state:    cfg.StateService,
		effects:  cfg.Effects,
		roller:   cfg.Roller,
		narrator: cfg.Narrator,
	}
	if svc.log == nil {
		svc.log = zap.NewNop()
	}
	if svc.roller == nil {
		svc.roller = dice.NewRandomRoller()
	}
	if svc.narrator == nil {
		svc.narrator = localNarrator{}
	}
	svc.resolver = rolls.NewResolver(svc.roller)
	return svc
}

func (s *service) TrapAt(tile *entities.MapTile) *Trap {
	if tile == nil {
		return nil
	}
	isTrap := tile.Terrain == entities.TerrainTrap ||
		(tile.HasEvent && tile.EventType == entities.EventTrap)
	if !isTrap || tile.TrapDisarmed || tile.EventTriggered {
		return nil
	}
	return trapFromEventData(tile.EventData)
}

// trapFromEventData decodes the loose event payload; missing fields get
// playable defaults.
func trapFromEventData(data map[string]any) *Trap {
	t := &Trap{
		Name:       "Hidden Trap",
		TrapType:   TrapDamage,
		DetectDC:   defaultDetectDC,
		DisarmDC:   defaultDisarmDC,
		SaveDC:     defaultSaveDC,
		DamageType: "physical",
	}
	if data == nil {
		return t
	}
	if v, ok := data["name"].(string); ok && v != "" {
		t.Name = v
	}
	if v, ok := data["description"].(string); ok {
		t.Description = v
	}
	if v, ok := data["trap_type"].(string); ok && validTrapType(v) {
		t.TrapType = v
	}
	if v, ok := toInt(data["detect_dc"]); ok && v > 0 {
		t.DetectDC = v
	}
	if v, ok := toInt(data["disarm_dc"]); ok && v > 0 {
		t.DisarmDC = v
	}
	if v, ok := toInt(data["save_dc"]); ok && v > 0 {
		t.SaveDC = v
	}
	if v, ok := data["damage"].(string); ok && v != "" {
		t.Damage = v
	}
	if v, ok := data["damage_type"].(string); ok && v != "" {
		t.DamageType = v
	}
	if v, ok := toInt(data["duration_turns"]); ok && v > 0 {
		t.DurationTurns = v
	}
	if v, ok := toFloat(data["damage_per_turn"]); ok && v > 0 {
		t.DamagePerTurn = v
	}
	if mods, ok := data["modifiers"].(map[string]any); ok {
		t.Modifiers = make(map[string]float64, len(mods))
		for k, raw := range mods {
			if v, ok := toFloat(raw); ok {
				t.Modifiers[k] = v
			}
		}
	}
	if dest, ok := data["teleport_to"].(map[string]any); ok {
		x, xok := toInt(dest["x"])
		y, yok := toInt(dest["y"])
		if xok && yok {
			t.Destination = &entities.Position{X: x, Y: y}
		}
	}
	return t
}

func validTrapType(v string) bool {
	switch v {
	case TrapDamage, TrapDebuff, TrapTeleport, TrapAlarm, TrapRestraint:
		return true
	}
	return false
}

func (s *service) Detect(gameState *entities.GameState, tile *entities.MapTile, passive bool) (*Result, error) {
	if gameState == nil || gameState.Player == nil {
		return nil, errors.InvalidArgument("game state with a player is required")
	}
	trap := s.TrapAt(tile)
	if trap == nil {
		return nil, errors.NotFound("no armed trap on tile")
	}
	if tile.TrapDetected {
		return &Result{Trap: trap, Outcome: OutcomeDetected,
			Events: []string{fmt.Sprintf("%s is already exposed", trap.Name)}}, nil
	}

	result := &Result{Trap: trap}
	if passive {
		// Passive perception: 10 + wis modifier (+ proficiency), no roll.
		score := 10 + gameState.Player.AbilityModifier(entities.AbilityWis)
		if gameState.Player.HasSkillProficiency("perception") {
			score += gameState.Player.ProficiencyBonus()
		}
		result.Check = &rolls.CheckResult{
			Total:   score,
			DC:      trap.DetectDC,
			Success: score >= trap.DetectDC,
			UIText:  fmt.Sprintf("passive perception %d vs DC %d", score, trap.DetectDC),
		}
	} else {
		check, err := s.resolver.AbilityCheck(gameState.Player, &rolls.AbilityCheckInput{
			Ability: entities.AbilityWis,
			Skill:   "perception",
			DC:      trap.DetectDC,
		})
		if err != nil {
			return nil, err
		}
		result.Check = check
	}

	if result.Check.Success {
		tile.TrapDetected = true
		result.Outcome = OutcomeDetected
		result.Events = append(result.Events, fmt.Sprintf("%s spots %s", gameState.Player.Name, trap.Name))
	} else {
		result.Outcome = OutcomeMissed
	}
	return result, nil
}

func (s *service) Disarm(ctx context.Context, gameState *entities.GameState, tile *entities.MapTile) (*Result, error) {
	if gameState == nil || gameState.Player == nil {
		return nil, errors.InvalidArgument("game state with a player is required")
	}
	trap := s.TrapAt(tile)
	if trap == nil {
		return nil, errors.NotFound("no armed trap on tile")
	}
	if !tile.TrapDetected {
		return nil, errors.Validation("trap must be detected before it can be disarmed")
	}

	check, err := s.resolver.AbilityCheck(gameState.Player, &rolls.AbilityCheckInput{
		Ability: entities.AbilityDex,
		Skill:   "sleight_of_hand",
		DC:      trap.DisarmDC,
	})
	if err != nil {
		return nil, err
	}

	if check.Success {
		tile.TrapDisarmed = true
		tile.EventTriggered = true
		result := &Result{
			Trap:    trap,
			Outcome: OutcomeDisarmed,
			Check:   check,
			Events:  []string{fmt.Sprintf("%s disarms %s", gameState.Player.Name, trap.Name)},
		}
		s.narrate(ctx, gameState, result)
		return result, nil
	}

	if check.CriticalFailure {
		// Fumbled the mechanism: the trap springs.
		result, err := s.Trigger(ctx, gameState, tile)
		if err != nil {
			return nil, err
		}
		result.Events = append([]string{fmt.Sprintf("%s fumbles the disarm", gameState.Player.Name)}, result.Events...)
		return result, nil
	}

	result := &Result{
		Trap:    trap,
		Outcome: OutcomeDisarmFailed,
		Check:   check,
		Events:  []string{fmt.Sprintf("%s fails to disarm %s; it remains armed", gameState.Player.Name, trap.Name)},
	}
	s.narrate(ctx, gameState, result)
	return result, nil
}

func (s *service) Trigger(ctx context.Context, gameState *entities.GameState, tile *entities.MapTile) (*Result, error) {
	if gameState == nil || gameState.Player == nil {
		return nil, errors.InvalidArgument("game state with a player is required")
	}
	trap := s.TrapAt(tile)
	if trap == nil {
		return nil, errors.NotFound("no armed trap on tile")
	}
	tile.EventTriggered = true
	tile.TrapDetected = true

	result := &Result{Trap: trap, Outcome: OutcomeTriggered}

	// Alarms ring regardless of reflexes.
	saved := false
	if trap.TrapType != TrapAlarm {
		check, err := s.resolver.SavingThrow(gameState.Player, &rolls.SavingThrowInput{
			Ability: entities.AbilityDex,
			DC:      trap.SaveDC,
		})
		if err != nil {
			return nil, err
		}
		result.Check = check
		saved = check.Success
	}

	if saved && trap.TrapType != TrapDamage {
		result.Outcome = OutcomeAvoided
		result.Events = append(result.Events,
			fmt.Sprintf("%s avoids %s", gameState.Player.Name, trap.Name))
		s.narrate(ctx, gameState, result)
		return result, nil
	}

	if err := s.applyEffect(gameState, trap, saved, result); err != nil {
		return nil, err
	}
	s.narrate(ctx, gameState, result)

	s.log.Info("trap resolved",
		zap.String("trap", trap.Name),
		zap.String("trap_type", trap.TrapType),
		zap.String("outcome", result.Outcome),
		zap.Int("damage", result.Damage))
	return result, nil
}

// applyEffect lands the trap's typed payload on the player. A save
// halves damage-trap damage; other types reach here only unsaved.
func (s *service) applyEffect(gameState *entities.GameState, trap *Trap, saved bool, result *Result) error {
	player := gameState.Player
	source := trap.SourceKey()

	switch trap.TrapType {
	case TrapDamage:
		dmg, err := s.rollDamage(gameState, trap)
		if err != nil {
			return err
		}
		if saved {
			dmg /= 2
		}
		if dmg > 0 {
			if _, err := s.state.ApplyPlayerResourceDelta(gameState, -dmg, 0, source); err != nil {
				return err
			}
		}
		result.Damage = dmg
		verb := "takes"
		if saved {
			verb = "rolls aside, taking only"
		}
		result.Events = append(result.Events,
			fmt.Sprintf("%s %s %d %s damage from %s", player.Name, verb, dmg, trap.DamageType, trap.Name))

	case TrapDebuff:
		duration := trap.DurationTurns
		if duration <= 0 {
			duration = 3
		}
		eff := &entities.StatusEffect{
			Name:          trap.Name,
			EffectType:    "debuff",
			DurationTurns: duration,
			Modifiers:     trap.Modifiers,
			DamagePerTurn: trap.DamagePerTurn,
			DamageType:    trap.DamageType,
			SourceKey:     source,
		}
		if err := s.effects.ApplyStatusEffect(player, eff); err != nil {
			return err
		}
		result.Events = append(result.Events,
			fmt.Sprintf("%s is afflicted by %s for %d turns", player.Name, trap.Name, duration))

	case TrapRestraint:
		duration := trap.DurationTurns
		if duration <= 0 {
			duration = 2
		}
		eff := &entities.StatusEffect{
			Name:           trap.Name,
			EffectType:     "restraint",
			DurationTurns:  duration,
			BlockedActions: []string{entities.ActionMove},
			SourceKey:      source,
		}
		if err := s.effects.ApplyStatusEffect(player, eff); err != nil {
			return err
		}
		result.Events = append(result.Events,
			fmt.Sprintf("%s is held fast by %s for %d turns", player.Name, trap.Name, duration))

	case TrapTeleport:
		from := player.Position
		dest := s.teleportDestination(gameState, trap)
		if dest == nil {
			result.Events = append(result.Events, fmt.Sprintf("%s sputters; nothing happens", trap.Name))
			break
		}
		movePlayer(gameState, dest)
		result.Events = append(result.Events,
			fmt.Sprintf("%s hurls %s from (%d,%d) to (%d,%d)",
				trap.Name, player.Name, from.X, from.Y, dest.X, dest.Y))

	case TrapAlarm:
		moved := s.soundAlarm(gameState)
		result.Events = append(result.Events,
			fmt.Sprintf("%s rings out; the dungeon stirs", trap.Name))
		if moved > 0 {
			result.Events = append(result.Events,
				fmt.Sprintf("%d monsters move toward the noise", moved))
		}
		gameState.AddPendingEvent(fmt.Sprintf("alarm raised by %s", trap.Name))

	default:
		return errors.Validationf("unknown trap type %q", trap.TrapType)
	}
	return nil
}

// rollDamage evaluates the trap's dice expression, or the depth-scaled
// default 1d6 + depth.
func (s *service) rollDamage(gameState *entities.GameState, trap *Trap) (int, error) {
	expr := trap.Damage
	if expr == "" {
		depth := 1
		if gameState.CurrentMap != nil {
			depth = gameState.CurrentMap.Depth
		}
		expr = fmt.Sprintf("1d6+%d", depth)
	}
	roll, err := dice.RollExpression(s.roller, expr)
	if err != nil {
		return 0, errors.Wrapf(err, "trap damage expression %q", expr)
	}
	if roll.Total < 0 {
		return 0, nil
	}
	return roll.Total, nil
}

// teleportDestination picks the landing tile: the trap's destination
// when walkable and free, else the stairs-up neighborhood.
func (s *service) teleportDestination(gameState *entities.GameState, trap *Trap) *entities.Position {
	floor := gameState.CurrentMap
	if floor == nil {
		return nil
	}
	candidate := func(x, y int) *entities.Position {
		t := floor.TileAt(x, y)
		if t == nil || !t.Walkable() || t.CharacterID != "" || t.HasEvent {
			return nil
		}
		return &entities.Position{X: t.X, Y: t.Y}
	}
	if trap.Destination != nil {
		if p := candidate(trap.Destination.X, trap.Destination.Y); p != nil {
			return p
		}
	}
	anchor := floor.FindTerrain(entities.TerrainStairsUp)
	if anchor == nil {
		anchor = floor.FindTerrain(entities.TerrainStairsDown)
	}
	if anchor == nil {
		return nil
	}
	for radius := 0; radius <= 3; radius++ {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if p := candidate(anchor.X+dx, anchor.Y+dy); p != nil {
					return p
				}
			}
		}
	}
	return nil
}

// movePlayer relocates the player and keeps tile cross-references and
// visibility consistent.
func movePlayer(gameState *entities.GameState, dest *entities.Position) {
	floor := gameState.CurrentMap
	player := gameState.Player

	if prev := floor.TileAt(player.Position.X, player.Position.Y); prev != nil && prev.CharacterID == player.ID {
		prev.CharacterID = ""
	}
	player.Position = *dest
	if tile := floor.TileAt(dest.X, dest.Y); tile != nil {
		tile.CharacterID = player.ID
		tile.IsExplored = true
		tile.IsVisible = true
	}
}

// soundAlarm marches every living monster within earshot toward the
// player. Returns how many moved.
func (s *service) soundAlarm(gameState *entities.GameState) int {
	floor := gameState.CurrentMap
	player := gameState.Player
	if floor == nil || player == nil {
		return 0
	}

	moved := 0
	for _, m := range gameState.LivingMonsters() {
		dist := chebyshev(m.Position, player.Position)
		if dist > alarmRadius || dist <= 1 {
			continue
		}
		if stepToward(floor, m, player.Position, alarmSteps) {
			moved++
		}
	}
	return moved
}

// stepToward greedily walks the monster up to maxSteps tiles toward the
// target, never onto occupied, event, or non-walkable tiles.
func stepToward(floor *entities.GameMap, m *entities.Entity, target entities.Position, maxSteps int) bool {
	movedAny := false
	for step := 0; step < maxSteps; step++ {
		dx := sign(target.X - m.Position.X)
		dy := sign(target.Y - m.Position.Y)
		if dx == 0 && dy == 0 {
			break
		}
		next := tryStep(floor, m, m.Position.X+dx, m.Position.Y+dy)
		if next == nil && dx != 0 {
			next = tryStep(floor, m, m.Position.X+dx, m.Position.Y)
		}
		if next == nil && dy != 0 {
			next = tryStep(floor, m, m.Position.X, m.Position.Y+dy)
		}
		if next == nil {
			break
		}
		if prev := floor.TileAt(m.Position.X, m.Position.Y); prev != nil && prev.CharacterID == m.ID {
			prev.CharacterID = ""
		}
		m.Position = entities.Position{X: next.X, Y: next.Y}
		next.CharacterID = m.ID
		movedAny = true
	}
	return movedAny
}

func tryStep(floor *entities.GameMap, m *entities.Entity, x, y int) *entities.MapTile {
	t := floor.TileAt(x, y)
	if t == nil || !t.Walkable() || t.HasEvent {
		return nil
	}
	if t.CharacterID != "" && t.CharacterID != m.ID {
		return nil
	}
	return t
}

func (s *service) narrate(ctx context.Context, gameState *entities.GameState, result *Result) {
	text, err := s.narrator.TrapNarrative(ctx, gameState, result)
	if err != nil {
		s.log.Warn("trap narration failed, using fallback",
			zap.String("trap", result.Trap.Name),
			zap.Error(err))
		text, _ = localNarrator{}.TrapNarrative(ctx, gameState, result)
	}
	result.Narrative = text
}

func chebyshev(a, b entities.Position) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
