package entities

// Choice context event types.
const (
	ChoiceStory           = "story"
	ChoiceItemUse         = "item_use"
	ChoiceTrap            = "trap"
	ChoiceQuestCompletion = "quest_completion"
)

// EventChoice is one selectable option in a pending choice context.
type EventChoice struct {
	ID           string         `json:"id"`
	Text         string         `json:"text"`
	Description  string         `json:"description,omitempty"`
	Consequences map[string]any `json:"consequences,omitempty"`
	Requirements map[string]any `json:"requirements,omitempty"`
	IsAvailable  bool           `json:"is_available"`
}

// EventChoiceContext parks a decision on the game state until the
// player resolves it.
type EventChoiceContext struct {
	ID          string         `json:"id"`
	EventType   string         `json:"event_type"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	ContextData map[string]any `json:"context_data,omitempty"`
	Choices     []*EventChoice `json:"choices"`
}

// Choice finds an option by ID, nil when absent.
func (c *EventChoiceContext) Choice(choiceID string) *EventChoice {
	for _, ch := range c.Choices {
		if ch != nil && ch.ID == choiceID {
			return ch
		}
	}
	return nil
}

// Clone deep-copies the context.
func (c *EventChoiceContext) Clone() *EventChoiceContext {
	if c == nil {
		return nil
	}
	out := *c
	out.ContextData = copyAnyMap(c.ContextData)
	if c.Choices != nil {
		out.Choices = make([]*EventChoice, len(c.Choices))
		for i, ch := range c.Choices {
			cc := *ch
			cc.Consequences = copyAnyMap(ch.Consequences)
			cc.Requirements = copyAnyMap(ch.Requirements)
			out.Choices[i] = &cc
		}
	}
	return &out
}
