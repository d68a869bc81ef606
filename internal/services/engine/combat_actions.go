package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/dice"
	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/rolls"
	"github.com/labyrinthia/engine/internal/services/combat"
	"github.com/labyrinthia/engine/internal/services/progress"
)

const (
	meleeRange   = 1
	spellRange   = 6
	pursuitRange = 5
)

// handleAttack resolves a player melee attack. The roll seed derives
// from game, turn, and both combatants, so a retried action replays
// the exact same dice.
func (s *service) handleAttack(ctx context.Context, gs *entities.GameState, params map[string]any) (*entities.ActionResult, error) {
	targetID := stringParam(params, "target_id")
	if targetID == "" {
		return entities.FailResult(entities.ErrTargetNotFound, "attack needs a target_id"), nil
	}
	target := gs.Monster(targetID)
	if target == nil || !target.IsAlive() {
		return entities.FailResult(entities.ErrTargetNotFound,
			fmt.Sprintf("no living target %s", targetID)), nil
	}
	player := gs.Player
	if chebyshev(player.Position, target.Position) > meleeRange {
		return entities.FailResult(entities.ErrTargetOutOfRange,
			fmt.Sprintf("%s is out of reach", target.Name)), nil
	}

	// Equipment hooks contribute transient attack and damage bonuses.
	ctxData := map[string]any{"target_id": target.ID}
	hookEvents := s.effects.ProcessEffectHooks(gs, entities.HookOnAttack, player, target, ctxData)
	attackBonus, _ := floatParam(ctxData, "attack_bonus")
	damageBonus, _ := floatParam(ctxData, "damage_bonus")

	seed := dice.SeedFromString(fmt.Sprintf("attack|%s|%d|%s|%s", gs.ID, gs.TurnCount, player.ID, target.ID))
	res, err := s.combat.EvaluateAttack(ctx, &combat.EvaluateAttackInput{
		Attacker:          player,
		Defender:          target,
		AttackType:        rolls.AttackMelee,
		CanCritical:       true,
		Proficient:        true,
		AttackBonus:       attackBonus,
		DamageBonus:       damageBonus,
		Rules:             gs.CombatRules,
		AuthorityMode:     gs.CombatAuthorityMode,
		DeterministicSeed: &seed,
	})
	if err != nil {
		return nil, errors.Wrap(err, "evaluate attack")
	}

	result := entities.OKResult(fmt.Sprintf("attacked %s", target.Name))
	for _, e := range hookEvents {
		result.AddEvent(e)
	}
	for _, e := range res.Events {
		result.AddEvent(e)
	}
	result.CombatBreakdown = breakdownRows(res.Breakdown)
	result.CombatProjection = res.Projection()

	summary := impact(result)
	summary["target_id"] = target.ID
	summary["hit"] = res.Hit
	summary["damage"] = res.FinalDamage
	summary["applied"] = res.Applied

	if res.Applied && res.Death {
		s.handleMonsterDeath(ctx, gs, target, res.ExperienceAward, result)
	}
	return result, nil
}

// handleCastSpell runs the direct-damage spell path: MP cost is
// level*10 and damage lands in [level*5, level*10] straight onto the
// target, outside the mitigation pipeline.
func (s *service) handleCastSpell(ctx context.Context, gs *entities.GameState, params map[string]any) (*entities.ActionResult, error) {
	spellID := stringParam(params, "spell_id")
	if spellID == "" {
		spellID = "arcane_bolt"
	}
	level, ok := intParam(params, "spell_level")
	if !ok || level < 1 {
		level = 1
	}
	player := gs.Player
	cost := level * 10
	if player.Stats == nil || player.Stats.MP < cost {
		have := 0
		if player.Stats != nil {
			have = player.Stats.MP
		}
		return entities.FailResult(entities.ErrInsufficientMP,
			fmt.Sprintf("%s needs %d MP, %d available", spellID, cost, have)), nil
	}

	// Validate the target before spending mana.
	targetID := stringParam(params, "target_id")
	var target *entities.Entity
	if targetID != "" {
		target = gs.Monster(targetID)
		if target == nil || !target.IsAlive() {
			return entities.FailResult(entities.ErrTargetNotFound,
				fmt.Sprintf("no living target %s", targetID)), nil
		}
		if chebyshev(player.Position, target.Position) > spellRange {
			return entities.FailResult(entities.ErrTargetOutOfRange,
				fmt.Sprintf("%s is out of range", target.Name)), nil
		}
	}

	if _, err := s.state.ApplyPlayerResourceDelta(gs, 0, -cost, "cast_spell"); err != nil {
		return entities.FailResult(entities.ErrSpellResourceUpdateFailed,
			fmt.Sprintf("could not spend mana: %v", err)), nil
	}

	result := entities.OKResult(fmt.Sprintf("cast %s", spellID))
	summary := impact(result)
	summary["spell_id"] = spellID
	summary["mp_spent"] = cost

	if target == nil {
		result.AddEvent(fmt.Sprintf("%s crackles and fades without a target", spellID))
		return result, nil
	}

	seed := dice.SeedFromString(fmt.Sprintf("spell|%s|%d|%s|%s", gs.ID, gs.TurnCount, player.ID, target.ID))
	roll, err := dice.NewSeeded(seed).Roll(&dice.RollInput{
		Count:    1,
		Sides:    level*5 + 1,
		Modifier: level*5 - 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "spell damage roll")
	}
	dmg := roll.Total
	target.Stats.HP -= dmg
	if target.Stats.HP < 0 {
		target.Stats.HP = 0
	}
	result.AddEvent(fmt.Sprintf("%s hits %s for %d damage", spellID, target.Name, dmg))
	summary["target_id"] = target.ID
	summary["damage"] = dmg

	if !target.IsAlive() {
		result.AddEvent(fmt.Sprintf("%s is slain", target.Name))
		s.handleMonsterDeath(ctx, gs, target, target.ExperienceValue, result)
	}
	return result, nil
}

// handleMonsterDeath settles a kill: experience, on-kill equipment
// hooks, quest bookkeeping, the COMBAT_VICTORY progress event, the
// corpse, and a compensator pass.
func (s *service) handleMonsterDeath(ctx context.Context, gs *entities.GameState, monster *entities.Entity, exp int, result *entities.ActionResult) {
	if exp > 0 {
		prog, err := s.state.ApplyPlayerProgressionUpdates(gs, exp, "combat")
		if err != nil {
			s.log.Warn("experience award failed",
				zap.String("monster_id", monster.ID), zap.Error(err))
		} else {
			for _, e := range prog.Events {
				result.AddEvent(e)
			}
		}
	}

	for _, e := range s.effects.ProcessEffectHooks(gs, entities.HookOnKill, gs.Player, monster, map[string]any{"monster_id": monster.ID}) {
		result.AddEvent(e)
	}

	ctxData := map[string]any{"monster_id": monster.ID}
	if monster.QuestMonsterID != "" {
		ctxData["quest_monster_id"] = monster.QuestMonsterID
		if quest := gs.ActiveQuest(); quest != nil {
			for _, qm := range quest.SpecialMonsters {
				if qm != nil && qm.ID == monster.QuestMonsterID && qm.ProgressValue > 0 {
					ctxData["progress_value"] = qm.ProgressValue
					break
				}
			}
			if _, err := s.state.ApplyQuestUpdates(gs, []map[string]any{{
				"quest_id":          quest.ID,
				"defeat_monster_id": monster.QuestMonsterID,
			}}, "combat"); err != nil {
				s.log.Warn("quest monster defeat update failed",
					zap.String("quest_monster_id", monster.QuestMonsterID), zap.Error(err))
			}
		}
	}

	prog, err := s.progress.ProcessEvent(ctx, &progress.ProcessEventInput{
		EventType:   entities.ProgressCombatVictory,
		State:       gs,
		ContextData: ctxData,
	})
	if err != nil {
		s.log.Warn("combat victory progress failed",
			zap.String("monster_id", monster.ID), zap.Error(err))
	} else if prog != nil {
		for _, e := range prog.Events {
			result.AddEvent(e)
		}
	}

	gs.RemoveMonster(monster.ID)

	// The compensator only runs after kills; a per-turn pass would
	// re-award exploration bonuses.
	if comp, err := s.progress.Compensate(ctx, gs); err == nil && comp != nil {
		for _, e := range comp.Events {
			result.AddEvent(e)
		}
	}
}

// runMonsterTurns gives every living monster its move: attack when the
// player is within reach, otherwise close the gap one tile. Monster
// attacks always commit server-side regardless of the game's authority
// mode; the server owns its monsters.
func (s *service) runMonsterTurns(ctx context.Context, gs *entities.GameState, result *entities.ActionResult) {
	player := gs.Player
	if player == nil || !player.IsAlive() {
		return
	}
	for _, monster := range gs.LivingMonsters() {
		if !player.IsAlive() {
			break
		}
		avail := s.effects.ActionAvailability(monster)
		reach := monster.AttackRange
		if reach <= 0 {
			reach = 1
		}
		dist := chebyshev(monster.Position, player.Position)
		switch {
		case dist <= reach && avail.CanAttack:
			s.monsterAttack(ctx, gs, monster, result)
		case dist <= pursuitRange && avail.CanMove:
			s.stepMonster(gs, monster)
		}
	}
}

func (s *service) monsterAttack(ctx context.Context, gs *entities.GameState, monster *entities.Entity, result *entities.ActionResult) {
	seed := dice.SeedFromString(fmt.Sprintf("monster_attack|%s|%d|%s|%s", gs.ID, gs.TurnCount, monster.ID, gs.Player.ID))
	res, err := s.combat.EvaluateAttack(ctx, &combat.EvaluateAttackInput{
		Attacker:          monster,
		Defender:          gs.Player,
		AttackType:        rolls.AttackMelee,
		DamageType:        monster.DamageType,
		CanCritical:       true,
		Proficient:        true,
		Rules:             gs.CombatRules,
		AuthorityMode:     entities.AuthorityServer,
		DeterministicSeed: &seed,
	})
	if err != nil {
		s.log.Warn("monster attack evaluation failed",
			zap.String("monster_id", monster.ID), zap.Error(err))
		return
	}
	for _, e := range res.Events {
		result.AddEvent(e)
	}
	impact(result)["monsters_engaged"] = true
}

// stepMonster takes one greedy Chebyshev step toward the player,
// skipping walls and occupied tiles.
func (s *service) stepMonster(gs *entities.GameState, monster *entities.Entity) {
	player := gs.Player
	dx := sign(player.Position.X - monster.Position.X)
	dy := sign(player.Position.Y - monster.Position.Y)

	candidates := [][2]int{
		{monster.Position.X + dx, monster.Position.Y + dy},
		{monster.Position.X + dx, monster.Position.Y},
		{monster.Position.X, monster.Position.Y + dy},
	}
	for _, c := range candidates {
		x, y := c[0], c[1]
		if x == monster.Position.X && y == monster.Position.Y {
			continue
		}
		if !gs.CurrentMap.Walkable(x, y) {
			continue
		}
		if x == player.Position.X && y == player.Position.Y {
			continue
		}
		if gs.MonsterAt(x, y) != nil {
			continue
		}
		tile := gs.CurrentMap.TileAt(x, y)
		if tile.CharacterID != "" && tile.CharacterID != monster.ID {
			continue
		}
		if prev := gs.CurrentMap.TileAt(monster.Position.X, monster.Position.Y); prev != nil && prev.CharacterID == monster.ID {
			prev.CharacterID = ""
		}
		monster.Position = entities.Position{X: x, Y: y}
		tile.CharacterID = monster.ID
		return
	}
}

// breakdownRows converts the evaluator's value rows into the envelope's
// pointer rows.
func breakdownRows(rows []entities.BreakdownRow) []*entities.BreakdownRow {
	if len(rows) == 0 {
		return nil
	}
	out := make([]*entities.BreakdownRow, len(rows))
	for i := range rows {
		row := rows[i]
		out[i] = &row
	}
	return out
}
