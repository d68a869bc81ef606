package choice

import (
	"fmt"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/services/trap"
)

// QuestCompletionContext builds the hand-off the progress manager
// parked: acknowledge and move on, or rest on the laurels first.
func (s *service) QuestCompletionContext(gameState *entities.GameState) *entities.EventChoiceContext {
	if gameState == nil || gameState.PendingQuestCompletion == nil {
		return nil
	}
	notice := gameState.PendingQuestCompletion

	description := notice.Narrative
	if description == "" {
		description = fmt.Sprintf("The tale of %q is told. %d experience richer, the dungeon still waits below.",
			notice.Title, notice.ExperienceAwarded)
	}

	var restHP, restMP int
	if player := gameState.Player; player != nil && player.Stats != nil {
		restHP = player.Stats.MaxHP / 4
		restMP = player.Stats.MaxMP / 2
	}

	return &entities.EventChoiceContext{
		ID:          s.ids.New(),
		EventType:   entities.ChoiceQuestCompletion,
		Title:       "Quest complete: " + notice.Title,
		Description: description,
		ContextData: map[string]any{
			"quest_id":           notice.QuestID,
			"experience_awarded": notice.ExperienceAwarded,
		},
		Choices: []*entities.EventChoice{
			{
				ID:          "press_on",
				Text:        "Press on",
				Description: "No rest; the next floor will not clear itself.",
				IsAvailable: true,
			},
			{
				ID:          "savor_victory",
				Text:        "Savor the victory",
				Description: "Take a moment to bind wounds and gather focus.",
				Consequences: map[string]any{
					consequenceHPDelta: restHP,
					consequenceMPDelta: restMP,
					consequenceEvent:   "A short rest after a deed well done.",
				},
				IsAvailable: true,
			},
		},
	}
}

// ItemTriggerContext builds the confirmation gate for an item whose
// intel says its effect is a deliberate trigger or ritual.
func (s *service) ItemTriggerContext(item *entities.Item) *entities.EventChoiceContext {
	if item == nil {
		return nil
	}

	description := item.TriggerHint
	if description == "" {
		description = "The item wants a deliberate act of will, not a casual use."
	}
	if item.RiskHint != "" {
		description += " " + item.RiskHint
	}

	return &entities.EventChoiceContext{
		ID:          s.ids.New(),
		EventType:   entities.ChoiceItemUse,
		Title:       fmt.Sprintf("Invoke %s?", item.Name),
		Description: description,
		ContextData: map[string]any{"item_id": item.ID},
		Choices: []*entities.EventChoice{
			{
				ID:           "activate",
				Text:         "Go through with it",
				Consequences: map[string]any{consequenceAction: actionActivate},
				IsAvailable:  true,
			},
			{
				ID:           "hold_back",
				Text:         "Hold back",
				Consequences: map[string]any{consequenceAction: actionDecline},
				IsAvailable:  true,
			},
		},
	}
}

// TrapContext builds the decision for a detected trap between the
// player and where they were headed.
func (s *service) TrapContext(trapDef *trap.Trap, tile *entities.MapTile, from entities.Position) *entities.EventChoiceContext {
	if trapDef == nil || tile == nil {
		return nil
	}
	return &entities.EventChoiceContext{
		ID:          s.ids.New(),
		EventType:   entities.ChoiceTrap,
		Title:       trapDef.Name + " ahead",
		Description: trapDef.Description,
		ContextData: map[string]any{
			"trap_name": trapDef.Name,
			"x":         tile.X,
			"y":         tile.Y,
			"from_x":    from.X,
			"from_y":    from.Y,
		},
		Choices: []*entities.EventChoice{
			{
				ID:           "disarm",
				Text:         "Try to disarm it",
				Consequences: map[string]any{consequenceAction: actionDisarm},
				IsAvailable:  true,
			},
			{
				ID:           "proceed",
				Text:         "Step through anyway",
				Consequences: map[string]any{consequenceAction: actionProceed},
				IsAvailable:  true,
			},
			{
				ID:           "retreat",
				Text:         "Back away",
				Consequences: map[string]any{consequenceAction: actionRetreat},
				IsAvailable:  true,
			},
		},
	}
}

// StoryContext normalizes an oracle-authored decision point: missing
// ids are filled and requirements evaluated against the player. Nil
// when no usable choice survives.
func (s *service) StoryContext(gameState *entities.GameState, title, description string, choices []*entities.EventChoice) *entities.EventChoiceContext {
	kept := make([]*entities.EventChoice, 0, len(choices))
	for i, ch := range choices {
		if ch == nil || ch.Text == "" {
			continue
		}
		if ch.ID == "" {
			ch.ID = fmt.Sprintf("choice_%d", i+1)
		}
		ch.IsAvailable = s.meetsRequirements(gameState, ch.Requirements)
		kept = append(kept, ch)
	}
	if len(kept) == 0 {
		return nil
	}
	return &entities.EventChoiceContext{
		ID:          s.ids.New(),
		EventType:   entities.ChoiceStory,
		Title:       title,
		Description: description,
		Choices:     kept,
	}
}

// meetsRequirements gates a choice on the narrow requirement
// vocabulary: min_level, ability minimums, and a required item.
func (s *service) meetsRequirements(gameState *entities.GameState, req map[string]any) bool {
	if len(req) == 0 {
		return true
	}
	player := gameState.Player
	if player == nil {
		return false
	}
	if minLevel, ok := intContext(req, "min_level"); ok {
		if player.Stats == nil || player.Stats.Level < minLevel {
			return false
		}
	}
	if abilities, ok := req["abilities"].(map[string]any); ok {
		for key := range abilities {
			minimum, ok := intContext(abilities, key)
			if !ok {
				continue
			}
			score, found := player.Abilities.Get(key)
			if !found || score < minimum {
				return false
			}
		}
	}
	if itemID, ok := req["item_id"].(string); ok && itemID != "" {
		if player.ItemByID(itemID) == nil {
			return false
		}
	}
	return true
}
