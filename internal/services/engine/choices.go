package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/services/choice"
	"github.com/labyrinthia/engine/internal/services/progress"
)

// handleResolveChoice answers the pending decision point and finishes
// whatever the resolution hands back: a confirmed item use, an
// interrupted step, a progress event.
func (s *service) handleResolveChoice(ctx context.Context, gs *entities.GameState, params map[string]any) (*entities.ActionResult, error) {
	contextID := stringParam(params, "context_id")
	choiceID := stringParam(params, "choice_id")
	if choiceID == "" {
		return entities.FailResult(entities.ErrChoiceNotFound, "resolve_choice needs a choice_id"), nil
	}

	resolution, err := s.choices.ResolveChoice(ctx, gs, contextID, choiceID)
	if err != nil {
		if code, ok := errors.GetMeta(err)["error_code"].(string); ok && code != "" {
			return entities.FailResult(code, err.Error()), nil
		}
		return nil, err
	}

	result := entities.OKResult(resolution.Outcome)
	for _, e := range resolution.Events {
		result.AddEvent(e)
	}
	if resolution.TrapResult != nil && resolution.TrapResult.Narrative != "" {
		result.Narrative = resolution.TrapResult.Narrative
	}

	// A confirmed item use re-enters the item path with force set; its
	// envelope carries the combined event stream.
	if resolution.Outcome == choice.OutcomeItemConfirmed && resolution.ItemID != "" {
		confirmed, err := s.handleUseItem(ctx, gs, resolution.ItemID, true)
		if err != nil {
			return nil, err
		}
		confirmed.Events = append(result.Events, confirmed.Events...)
		if confirmed.Narrative == "" {
			confirmed.Narrative = result.Narrative
		}
		return confirmed, nil
	}

	if resolution.CompleteMove != nil && gs.Player.IsAlive() {
		s.placePlayer(gs, resolution.CompleteMove.X, resolution.CompleteMove.Y)
		result.AddEvent(fmt.Sprintf("%s presses on to (%d, %d)",
			gs.Player.Name, resolution.CompleteMove.X, resolution.CompleteMove.Y))
	}

	if resolution.ProgressEvent != "" {
		prog, err := s.progress.ProcessEvent(ctx, &progress.ProcessEventInput{
			EventType:   resolution.ProgressEvent,
			State:       gs,
			ContextData: map[string]any{"choice_id": choiceID},
		})
		if err != nil {
			s.log.Warn("choice progress failed", zap.Error(err))
		} else if prog != nil {
			for _, e := range prog.Events {
				result.AddEvent(e)
			}
		}
	}
	return result, nil
}
