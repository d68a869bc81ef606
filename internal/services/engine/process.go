package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/locks"
)

// gateMinAttempts is the sample floor below which the release gate
// stays silent; it matches the evaluator's own degrade threshold.
const gateMinAttempts = 20

func (s *service) ProcessPlayerAction(ctx context.Context, req *ActionRequest) (*entities.ActionResult, error) {
	if req == nil || req.UserID == "" || req.GameID == "" {
		return nil, errors.InvalidArgument("user id and game id are required")
	}
	if req.Action == "" {
		return entities.FailResult(entities.ErrUnknownAction, "no action supplied"), nil
	}
	started := s.clock.Now()
	actionsTotal.Inc()

	release, err := s.locks.Lock(ctx, req.UserID, req.GameID, "action:"+req.Action)
	if err != nil {
		return nil, err
	}
	defer release()

	key := locks.Key{UserID: req.UserID, GameID: req.GameID}
	sess := s.reg.touch(key, started)
	if sess == nil {
		return entities.FailResult(entities.ErrGameNotFound,
			fmt.Sprintf("game %s is not loaded", req.GameID)), nil
	}
	gs := sess.state
	gs.EnsureCombatDefaults(started)

	traceID := req.IdempotencyKey
	if traceID == "" {
		traceID = s.ids.New()
	}

	fingerprint := actionFingerprint(req.Action, req.Params)
	if replayableActions[req.Action] {
		if cached := sess.replays.get(req.Action, req.IdempotencyKey, fingerprint, started); cached != nil {
			idempotentReplays.Inc()
			replay := cached.Clone()
			replay.Message = "idempotent replay: " + replay.Message
			replay.IdempotentReplay = true
			s.log.Debug("action replayed from cache",
				zap.String("game_id", gs.ID),
				zap.String("action", req.Action),
				zap.String("idempotency_key", req.IdempotencyKey))
			return replay, nil
		}
	}

	if gs.IsGameOver {
		result := failReason("game_over", "the game is over")
		result.ActionTraceID = traceID
		return result, nil
	}

	if result := s.availabilityGate(gs, req.Action); result != nil {
		result.ActionTraceID = traceID
		return result, nil
	}

	result, err := s.dispatch(ctx, gs, req)
	if err != nil {
		s.log.Error("action processing failed",
			zap.String("game_id", gs.ID),
			zap.String("action", req.Action),
			zap.Error(err))
		return nil, err
	}
	result.ActionTraceID = traceID

	if result.Success {
		s.finishTurn(ctx, gs, result)
	}

	s.decideNarration(ctx, gs, req.Action, result)

	elapsed := s.clock.Now().Sub(started)
	s.latencies.observe(elapsed)
	p50, p95 := s.latencies.percentiles()
	result.Performance = &entities.PerformanceSample{
		TurnElapsedMs: durationMs(elapsed),
		P50Ms:         durationMs(p50),
		P95Ms:         durationMs(p95),
	}

	if replayableActions[req.Action] && req.IdempotencyKey != "" && !result.Retryable {
		sess.replays.put(req.Action, req.IdempotencyKey, fingerprint, result.Clone(), started)
	}
	return result, nil
}

// availabilityGate rejects actions the player's active status effects
// forbid. Interact, rest, and choice resolution are never gated.
func (s *service) availabilityGate(gs *entities.GameState, action string) *entities.ActionResult {
	avail := s.effects.ActionAvailability(gs.Player)
	blocked := false
	switch action {
	case entities.ActionNameMove, entities.ActionNameTransitionMap:
		blocked = !avail.CanMove
	case entities.ActionNameAttack:
		blocked = !avail.CanAttack
	case entities.ActionNameCastSpell:
		blocked = !avail.CanCastSpell
	case entities.ActionNameUseItem, entities.ActionNameDropItem, entities.ActionNameUndoDropItem:
		blocked = !avail.CanUseItem
	}
	if !blocked {
		return nil
	}
	return entities.FailResult(entities.ErrActionBlockedByStatus,
		fmt.Sprintf("%s is blocked by an active status effect", action))
}

func (s *service) dispatch(ctx context.Context, gs *entities.GameState, req *ActionRequest) (*entities.ActionResult, error) {
	switch req.Action {
	case entities.ActionNameMove:
		return s.handleMove(ctx, gs, req.Params)
	case entities.ActionNameAttack:
		return s.handleAttack(ctx, gs, req.Params)
	case entities.ActionNameUseItem:
		return s.handleUseItem(ctx, gs, stringParam(req.Params, "item_id"), boolParam(req.Params, "force"))
	case entities.ActionNameDropItem:
		return s.handleDropItem(ctx, gs, req.Params)
	case entities.ActionNameUndoDropItem:
		return s.handleUndoDropItem(ctx, gs, req.Params)
	case entities.ActionNameCastSpell:
		return s.handleCastSpell(ctx, gs, req.Params)
	case entities.ActionNameInteract:
		return s.handleInteract(ctx, gs, req.Params)
	case entities.ActionNameRest:
		return s.handleRest(ctx, gs)
	case entities.ActionNameTransitionMap:
		return s.handleTransitionMap(ctx, gs, req.Params)
	case entities.ActionNameResolveChoice:
		return s.handleResolveChoice(ctx, gs, req.Params)
	default:
		return entities.FailResult(entities.ErrUnknownAction,
			fmt.Sprintf("unknown action %q", req.Action)), nil
	}
}

// finishTurn advances the world after a successful action: turn counter
// and clock, monster turns, end-of-turn effect ticks, the pending-event
// flush, quest hand-offs, death, the combat snapshot, and the release
// gate. Monster turns land before the effect ticks so per-turn regen
// heals after their damage.
func (s *service) finishTurn(ctx context.Context, gs *entities.GameState, result *entities.ActionResult) {
	gs.TurnCount++
	gs.GameTime += gameMinutesPerTurn

	s.runMonsterTurns(ctx, gs, result)

	for _, event := range s.effects.ProcessTurnEffects(gs, entities.HookOnTurnEnd) {
		result.AddEvent(event)
	}

	if gs.DropUndo != nil && gs.TurnCount > gs.DropUndo.ExpiresAtTurn {
		gs.DropUndo = nil
	}

	for _, event := range gs.DrainPendingEvents() {
		result.AddEvent(event)
	}

	if gs.PendingQuestCompletion != nil && gs.PendingChoiceContext == nil {
		if choiceCtx := s.choices.QuestCompletionContext(gs); choiceCtx != nil {
			s.choices.OpenContext(gs, choiceCtx)
		}
	}

	if gs.PendingNewQuestGeneration && gs.PendingQuestCompletion == nil {
		s.generateNextQuest(ctx, gs, result)
	}

	if gs.Player != nil && !gs.Player.IsAlive() && !gs.IsGameOver {
		gs.IsGameOver = true
		gs.GameOverReason = "player_death"
		result.AddEvent(fmt.Sprintf("%s has fallen. The run is over.", gs.Player.Name))
	}

	gs.RebuildCombatSnapshot()
	s.evaluateReleaseGate(gs)
}

// generateNextQuest fulfils a parked hand-off once the completion
// notice has been acknowledged. Failure keeps the flag so the next
// turn retries.
func (s *service) generateNextQuest(ctx context.Context, gs *entities.GameState, result *entities.ActionResult) {
	var previous *entities.Quest
	for _, q := range gs.Quests {
		if q != nil && q.IsCompleted {
			previous = q
		}
	}
	quest, err := s.generateQuest(ctx, gs, previous)
	if err != nil {
		s.log.Warn("next quest generation failed, will retry",
			zap.String("game_id", gs.ID), zap.Error(err))
		return
	}
	if _, err := s.state.AddQuest(gs, quest, "quest_handoff"); err != nil {
		s.log.Warn("next quest insert failed",
			zap.String("game_id", gs.ID), zap.Error(err))
		return
	}
	gs.PendingNewQuestGeneration = false
	result.AddEvent(fmt.Sprintf("New quest: %s", quest.Title))
}

// evaluateReleaseGate downgrades the game's combat authority one step
// when the evaluator's health breaches the gate. The downgrade is
// telemetric only: logged and counted, never surfaced as a player
// event.
func (s *service) evaluateReleaseGate(gs *entities.GameState) {
	snap := s.combat.Snapshot()
	if snap == nil || snap.Attempts < gateMinAttempts {
		return
	}
	breached := snap.Degraded ||
		snap.P95 > s.gateMaxP95 ||
		snap.ErrorRate > s.gateMaxErrorRate
	if !breached {
		return
	}

	var downgraded string
	switch gs.CombatAuthorityMode {
	case entities.AuthorityServer:
		downgraded = entities.AuthorityHybrid
	case entities.AuthorityHybrid:
		downgraded = entities.AuthorityLocal
	default:
		return
	}
	gs.CombatAuthorityMode = downgraded
	authorityDegrades.Inc()
	s.log.Warn("combat authority degraded",
		zap.String("game_id", gs.ID),
		zap.String("error_code", entities.ErrCombatAutoDegrade),
		zap.String("authority_mode", downgraded),
		zap.Float64("error_rate", snap.ErrorRate),
		zap.Duration("p95", snap.P95))
}

// failReason builds a failure envelope for conditions outside the
// machine error-code taxonomy; the reason string is still stable.
func failReason(reason, message string) *entities.ActionResult {
	return &entities.ActionResult{
		Success: false,
		Message: message,
		Reason:  reason,
		Events:  []string{},
	}
}

// impact returns the result's impact summary, allocating it on first
// use.
func impact(result *entities.ActionResult) map[string]any {
	if result.ImpactSummary == nil {
		result.ImpactSummary = make(map[string]any)
	}
	return result.ImpactSummary
}

func chebyshev(a, b entities.Position) int {
	dx := absInt(a.X - b.X)
	dy := absInt(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}
