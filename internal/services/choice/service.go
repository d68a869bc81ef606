package choice

//go:generate mockgen -destination=mock/mock_service.go -package=mockchoice -source=service.go

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/effects"
	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/services/state"
	"github.com/labyrinthia/engine/internal/services/trap"
	"github.com/labyrinthia/engine/internal/uuid"
)

const metaErrorCode = "error_code"

// Resolution outcomes.
const (
	OutcomeApplied       = "choice_applied"
	OutcomeDeclined      = "choice_declined"
	OutcomeItemConfirmed = "item_use_confirmed"
	OutcomeTrapResolved  = "trap_resolved"
	OutcomeRetreated     = "retreated"
)

// Consequence keys the generic applicator understands. Unknown keys
// are ignored so oracle-authored choices degrade instead of failing.
const (
	consequenceAction     = "action"
	consequenceHPDelta    = "hp_delta"
	consequenceMPDelta    = "mp_delta"
	consequenceExperience = "experience"
	consequenceStatus     = "status_effect"
	consequenceEvent      = "event"
	consequenceProgress   = "progress_event"
)

// Actions named in consequences["action"].
const (
	actionActivate = "activate"
	actionDecline  = "decline"
	actionDisarm   = "disarm"
	actionProceed  = "proceed"
	actionRetreat  = "retreat"
)

// retreatSynonyms maps loose client and oracle choice ids onto retreat
// semantics. Backing away from a trap must never fail on naming.
var retreatSynonyms = map[string]bool{
	"retreat":   true,
	"flee":      true,
	"run":       true,
	"back_away": true,
	"step_back": true,
	"withdraw":  true,
	"leave":     true,
	"avoid":     true,
}

// Resolution is what resolving a pending choice produced. The engine
// finishes anything that needs its machinery: confirmed item uses and
// interrupted moves.
type Resolution struct {
	Outcome string   `json:"outcome"`
	Events  []string `json:"events,omitempty"`

	// ItemID and Force accompany OutcomeItemConfirmed: the player
	// committed to a use the item intel warned about.
	ItemID string `json:"item_id,omitempty"`
	Force  bool   `json:"force,omitempty"`

	// TrapResult carries the trap service's resolution when the choice
	// ran one (a disarm attempt or a deliberate step onto the plate).
	TrapResult *trap.Result `json:"trap_result,omitempty"`

	// CompleteMove asks the engine to finish the interrupted step when
	// the sprung trap left the player standing where they were.
	CompleteMove *entities.Position `json:"complete_move,omitempty"`

	// ProgressEvent names a progress event the engine should fire.
	ProgressEvent string `json:"progress_event,omitempty"`
}

// Service parks decision points on the game state and resolves them.
type Service interface {
	// OpenContext parks a pending context, replacing any stale one.
	OpenContext(gameState *entities.GameState, choiceCtx *entities.EventChoiceContext)

	// ResolveChoice resolves the pending context. An empty contextID
	// addresses whatever is pending; a non-empty one must match it.
	ResolveChoice(ctx context.Context, gameState *entities.GameState, contextID, choiceID string) (*Resolution, error)

	// QuestCompletionContext builds the acknowledgement choice for the
	// parked completion notice, nil when none is parked.
	QuestCompletionContext(gameState *entities.GameState) *entities.EventChoiceContext

	// ItemTriggerContext builds the confirmation gate for an item
	// whose intel says its effect is a deliberate trigger or ritual.
	ItemTriggerContext(item *entities.Item) *entities.EventChoiceContext

	// TrapContext builds the decision for a detected trap blocking a
	// step from `from` onto the trap tile.
	TrapContext(trapDef *trap.Trap, tile *entities.MapTile, from entities.Position) *entities.EventChoiceContext

	// StoryContext normalizes an oracle-authored decision point: ids
	// are filled and requirements evaluated against the player.
	StoryContext(gameState *entities.GameState, title, description string, choices []*entities.EventChoice) *entities.EventChoiceContext
}

type service struct {
	log     *zap.Logger
	state   state.Service
	effects *effects.Engine
	traps   trap.Service
	ids     uuid.Generator
}

// ServiceConfig holds configuration for the choice system.
type ServiceConfig struct {
	Logger       *zap.Logger
	StateService state.Service
	Effects      *effects.Engine
	Traps        trap.Service

	// IDGenerator is optional; defaults to random UUIDs.
	IDGenerator uuid.Generator
}

// NewService creates an event choice system.
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
	if cfg.Traps == nil {
		panic("trap service is required")
	}
	svc := &service{
		log:     cfg.Logger,
		state:   cfg.StateService,
		effects: cfg.Effects,
		traps:   cfg.Traps,
		ids:     cfg.IDGenerator,
	}
	if svc.log == nil {
		svc.log = zap.NewNop()
	}
	if svc.ids == nil {
		svc.ids = uuid.NewGoogleUUIDGenerator()
	}
	return svc
}

// OpenContext parks a context on the state. An unresolved previous
// context is replaced; the newest decision is the one that matters.
func (s *service) OpenContext(gameState *entities.GameState, choiceCtx *entities.EventChoiceContext) {
	if gameState == nil || choiceCtx == nil {
		return
	}
	if prev := gameState.PendingChoiceContext; prev != nil {
		s.log.Warn("replacing unresolved choice context",
			zap.String("previous_id", prev.ID),
			zap.String("previous_type", prev.EventType),
			zap.String("new_type", choiceCtx.EventType))
	}
	gameState.PendingChoiceContext = choiceCtx
}

func (s *service) ResolveChoice(ctx context.Context, gameState *entities.GameState, contextID, choiceID string) (*Resolution, error) {
	if gameState == nil {
		return nil, errors.InvalidArgument("game state is required")
	}
	pending := gameState.PendingChoiceContext
	if pending == nil {
		return nil, errors.NotFound("no pending choice context").
			WithMeta(metaErrorCode, entities.ErrChoiceContextNotFound)
	}
	if contextID != "" && pending.ID != contextID {
		return nil, errors.NotFoundf("pending choice context is %s, not %s", pending.ID, contextID).
			WithMeta(metaErrorCode, entities.ErrChoiceContextNotFound)
	}

	var (
		res *Resolution
		err error
	)
	switch pending.EventType {
	case entities.ChoiceTrap:
		res, err = s.resolveTrap(ctx, gameState, pending, choiceID)
	case entities.ChoiceItemUse:
		res, err = s.resolveItemUse(gameState, pending, choiceID)
	case entities.ChoiceQuestCompletion:
		res, err = s.resolveQuestCompletion(gameState, pending, choiceID)
	default:
		// Story contexts and anything the oracle invents resolve
		// through the generic consequence vocabulary.
		res, err = s.resolveStory(gameState, pending, choiceID)
	}
	if err != nil {
		return nil, err
	}

	gameState.PendingChoiceContext = nil
	s.log.Info("choice resolved",
		zap.String("context_id", pending.ID),
		zap.String("event_type", pending.EventType),
		zap.String("choice_id", choiceID),
		zap.String("outcome", res.Outcome))
	return res, nil
}

// pickChoice finds and gates the chosen option.
func (s *service) pickChoice(choiceCtx *entities.EventChoiceContext, choiceID string) (*entities.EventChoice, error) {
	chosen := choiceCtx.Choice(choiceID)
	if chosen == nil {
		return nil, errors.NotFoundf("choice %s is not part of context %s", choiceID, choiceCtx.ID).
			WithMeta(metaErrorCode, entities.ErrChoiceNotFound)
	}
	if !chosen.IsAvailable {
		return nil, errors.FailedPreconditionf("choice %s is not available", choiceID).
			WithMeta(metaErrorCode, entities.ErrChoiceNotFound)
	}
	return chosen, nil
}

func (s *service) resolveStory(gameState *entities.GameState, choiceCtx *entities.EventChoiceContext, choiceID string) (*Resolution, error) {
	chosen, err := s.pickChoice(choiceCtx, choiceID)
	if err != nil {
		return nil, err
	}
	return s.applyConsequences(gameState, chosen)
}

func (s *service) resolveQuestCompletion(gameState *entities.GameState, choiceCtx *entities.EventChoiceContext, choiceID string) (*Resolution, error) {
	res, err := s.resolveStory(gameState, choiceCtx, choiceID)
	if err != nil {
		return nil, err
	}
	gameState.PendingQuestCompletion = nil
	return res, nil
}

func (s *service) resolveItemUse(gameState *entities.GameState, choiceCtx *entities.EventChoiceContext, choiceID string) (*Resolution, error) {
	chosen, err := s.pickChoice(choiceCtx, choiceID)
	if err != nil {
		return nil, err
	}
	if action, _ := chosen.Consequences[consequenceAction].(string); action == actionDecline {
		return &Resolution{
			Outcome: OutcomeDeclined,
			Events:  []string{fmt.Sprintf("%s thinks better of it.", playerName(gameState))},
		}, nil
	}
	itemID, _ := choiceCtx.ContextData["item_id"].(string)
	if itemID == "" {
		return nil, errors.Internal("item choice context carries no item_id")
	}
	// The player saw the warning and committed; the engine finishes
	// the use with confirmation set.
	return &Resolution{
		Outcome: OutcomeItemConfirmed,
		ItemID:  itemID,
		Force:   true,
	}, nil
}

func (s *service) resolveTrap(ctx context.Context, gameState *entities.GameState, choiceCtx *entities.EventChoiceContext, choiceID string) (*Resolution, error) {
	chosen := choiceCtx.Choice(choiceID)
	var action string
	switch {
	case chosen != nil:
		if !chosen.IsAvailable {
			return nil, errors.FailedPreconditionf("choice %s is not available", choiceID).
				WithMeta(metaErrorCode, entities.ErrChoiceNotFound)
		}
		action, _ = chosen.Consequences[consequenceAction].(string)
		if action == "" {
			action = chosen.ID
		}
	case retreatSynonyms[normalizeID(choiceID)]:
		// Any id carrying retreat semantics works even when the
		// context never listed it under that name.
		action = actionRetreat
	default:
		return nil, errors.NotFoundf("choice %s is not part of context %s", choiceID, choiceCtx.ID).
			WithMeta(metaErrorCode, entities.ErrChoiceNotFound)
	}
	if retreatSynonyms[normalizeID(action)] {
		action = actionRetreat
	}

	switch action {
	case actionRetreat:
		return &Resolution{
			Outcome: OutcomeRetreated,
			Events:  []string{fmt.Sprintf("%s backs away from the %s.", playerName(gameState), trapName(choiceCtx))},
		}, nil
	case actionDisarm:
		tile, err := s.trapTile(gameState, choiceCtx)
		if err != nil {
			return nil, err
		}
		result, err := s.traps.Disarm(ctx, gameState, tile)
		if err != nil {
			return nil, errors.Wrap(err, "disarming trap")
		}
		return &Resolution{
			Outcome:    OutcomeTrapResolved,
			Events:     result.Events,
			TrapResult: result,
		}, nil
	case actionProceed:
		tile, err := s.trapTile(gameState, choiceCtx)
		if err != nil {
			return nil, err
		}
		before := playerPosition(gameState)
		result, err := s.traps.Trigger(ctx, gameState, tile)
		if err != nil {
			return nil, errors.Wrap(err, "springing trap")
		}
		res := &Resolution{
			Outcome:    OutcomeTrapResolved,
			Events:     result.Events,
			TrapResult: result,
		}
		// Finish the interrupted step unless the trap already moved
		// the player or left them dead on the floor.
		if playerAlive(gameState) && playerPosition(gameState) == before {
			res.CompleteMove = &entities.Position{X: tile.X, Y: tile.Y}
		}
		return res, nil
	default:
		return nil, errors.InvalidArgumentf("trap choice %s maps to no action", choiceID).
			WithMeta(metaErrorCode, entities.ErrChoiceNotFound)
	}
}

// applyConsequences executes the generic consequence vocabulary on the
// player.
func (s *service) applyConsequences(gameState *entities.GameState, chosen *entities.EventChoice) (*Resolution, error) {
	res := &Resolution{Outcome: OutcomeApplied}
	cons := chosen.Consequences
	source := "choice:" + chosen.ID

	hpDelta := intConsequence(cons, consequenceHPDelta)
	mpDelta := intConsequence(cons, consequenceMPDelta)
	if hpDelta != 0 || mpDelta != 0 {
		if _, err := s.state.ApplyPlayerResourceDelta(gameState, hpDelta, mpDelta, source); err != nil {
			return nil, errors.Wrapf(err, "applying resource consequences of choice %s", chosen.ID)
		}
		if hpDelta != 0 {
			res.Events = append(res.Events, resourceEvent(gameState, "HP", hpDelta))
		}
		if mpDelta != 0 {
			res.Events = append(res.Events, resourceEvent(gameState, "MP", mpDelta))
		}
	}

	if exp := intConsequence(cons, consequenceExperience); exp > 0 {
		progression, err := s.state.ApplyPlayerProgressionUpdates(gameState, exp, source)
		if err != nil {
			return nil, errors.Wrapf(err, "applying experience consequence of choice %s", chosen.ID)
		}
		res.Events = append(res.Events, progression.Events...)
	}

	if payload, ok := cons[consequenceStatus].(map[string]any); ok {
		eff := effects.StatusFromPayload(payload)
		eff.SourceKey = source
		if err := s.effects.ApplyStatusEffect(gameState.Player, eff); err != nil {
			return nil, errors.Wrapf(err, "applying status consequence of choice %s", chosen.ID)
		}
		res.Events = append(res.Events, fmt.Sprintf("%s is affected by %s.", playerName(gameState), eff.Name))
	}

	if event, ok := cons[consequenceEvent].(string); ok && event != "" {
		res.Events = append(res.Events, event)
	}
	if progressEvent, ok := cons[consequenceProgress].(string); ok && progressEvent != "" {
		res.ProgressEvent = progressEvent
	}
	return res, nil
}

// trapTile resolves the tile a trap context points at.
func (s *service) trapTile(gameState *entities.GameState, choiceCtx *entities.EventChoiceContext) (*entities.MapTile, error) {
	if gameState.CurrentMap == nil {
		return nil, errors.FailedPrecondition("game state has no current map")
	}
	x, okX := intContext(choiceCtx.ContextData, "x")
	y, okY := intContext(choiceCtx.ContextData, "y")
	if !okX || !okY {
		return nil, errors.Internal("trap choice context carries no tile position")
	}
	tile := gameState.CurrentMap.TileAt(x, y)
	if tile == nil {
		return nil, errors.Internalf("trap choice context points off the map at (%d,%d)", x, y)
	}
	return tile, nil
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func trapName(choiceCtx *entities.EventChoiceContext) string {
	if name, ok := choiceCtx.ContextData["trap_name"].(string); ok && name != "" {
		return name
	}
	return "trap"
}

func playerName(gameState *entities.GameState) string {
	if gameState.Player != nil && gameState.Player.Name != "" {
		return gameState.Player.Name
	}
	return "The adventurer"
}

func playerAlive(gameState *entities.GameState) bool {
	return gameState.Player != nil && gameState.Player.IsAlive()
}

func playerPosition(gameState *entities.GameState) entities.Position {
	if gameState.Player == nil {
		return entities.Position{}
	}
	return gameState.Player.Position
}

func resourceEvent(gameState *entities.GameState, resource string, delta int) string {
	if delta >= 0 {
		return fmt.Sprintf("%s recovers %d %s.", playerName(gameState), delta, resource)
	}
	return fmt.Sprintf("%s loses %d %s.", playerName(gameState), -delta, resource)
}

func intConsequence(cons map[string]any, key string) int {
	if cons == nil {
		return 0
	}
	switch v := cons[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func intContext(data map[string]any, key string) (int, bool) {
	if data == nil {
		return 0, false
	}
	switch v := data[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}
