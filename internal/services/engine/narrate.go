package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/clients/llm"
	"github.com/labyrinthia/engine/internal/entities"
)

// decideNarration fills llm_interaction_required and fetches flavor
// text. Pure movement with no events stays silent; once the game is
// over the oracle rests. Narration failures degrade to no text, never
// to a failed action.
func (s *service) decideNarration(ctx context.Context, gs *entities.GameState, action string, result *entities.ActionResult) {
	if !result.Success {
		return
	}
	pureMove := action == entities.ActionNameMove && len(result.Events) == 0
	result.LLMInteractionRequired = !pureMove
	if !result.LLMInteractionRequired || gs.IsGameOver || result.Narrative != "" {
		return
	}

	situation, ctxData := s.classifyInteraction(gs, action, result)

	releaseSlot, err := s.tasks.AcquireLLMSlot(ctx)
	if err != nil {
		return
	}
	defer releaseSlot()

	narrative, err := s.oracle.GenerateNarrative(ctx, &llm.NarrativeRequest{
		State:     gs,
		Situation: situation,
		Context:   ctxData,
	})
	if err != nil {
		s.log.Debug("narration unavailable",
			zap.String("situation", situation), zap.Error(err))
		return
	}
	result.Narrative = narrative
}

// classifyInteraction buckets the finished action for the narrator:
// movement, combat attack or defense, item use, or exploration.
func (s *service) classifyInteraction(gs *entities.GameState, action string, result *entities.ActionResult) (string, map[string]any) {
	ctxData := map[string]any{
		"action":  action,
		"message": result.Message,
		"turn":    gs.TurnCount,
		"events":  append([]string(nil), result.Events...),
	}
	if gs.Player != nil {
		ctxData["player"] = gs.Player.Name
	}
	if gs.CurrentMap != nil {
		ctxData["depth"] = gs.CurrentMap.Depth
		ctxData["theme"] = gs.CurrentMap.FloorTheme
	}

	engaged := false
	if result.ImpactSummary != nil {
		engaged, _ = result.ImpactSummary["monsters_engaged"].(bool)
	}

	situation := "exploration"
	switch action {
	case entities.ActionNameMove:
		situation = "movement"
		if engaged {
			situation = "monster_attack"
		}
	case entities.ActionNameAttack, entities.ActionNameCastSpell:
		situation = "player_attack"
	case entities.ActionNameUseItem, entities.ActionNameDropItem, entities.ActionNameUndoDropItem:
		situation = "item_use"
	case entities.ActionNameRest:
		situation = "rest"
	case entities.ActionNameTransitionMap:
		situation = "map_transition"
	case entities.ActionNameInteract:
		if result.ImpactSummary != nil {
			if n, ok := result.ImpactSummary["items_found"].(int); ok && n > 0 {
				situation = "treasure"
			}
		}
	}
	return situation, ctxData
}
