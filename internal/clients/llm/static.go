package llm

import (
	"context"
	"fmt"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/services/mapgen"
	"github.com/labyrinthia/engine/internal/services/progress"
	"github.com/labyrinthia/engine/internal/uuid"
)

// static keeps games playable without an upstream model: deterministic
// quests, loot, and flavor text. Map planning reports unavailable so
// the orchestrator stays on the local provider, and quest refreshes
// degrade to numeric-only progress.
type static struct {
	ids uuid.Generator
}

// NewStatic builds the fallback oracle.
func NewStatic(ids uuid.Generator) Client {
	if ids == nil {
		ids = uuid.NewGoogleUUIDGenerator()
	}
	return &static{ids: ids}
}

var staticNarratives = map[string]string{
	"player_attack":  "Steel rings off bone and the echo hunts itself down the corridor.",
	"monster_attack": "Something answers in kind, all claws and certainty.",
	"trap_triggered": "The floor remembers you were warned.",
	"map_transition": "The stairs spiral down into air that has never been breathed.",
	"rest":           "You rest. The labyrinth pretends not to watch.",
	"item_use":       "The item gives up what it was holding.",
	"treasure":       "Old wealth, older dust.",
	"game_over":      "The labyrinth closes over the place you were.",
}

const staticNarrativeDefault = "The dark shifts, and the moment passes."

func (s *static) GenerateNarrative(_ context.Context, req *NarrativeRequest) (string, error) {
	if req == nil {
		return "", errors.InvalidArgument("req is required")
	}
	if text, ok := staticNarratives[req.Situation]; ok {
		return text, nil
	}
	return staticNarrativeDefault, nil
}

func (s *static) GenerateMapPlan(context.Context, *mapgen.GenerateInput) (*mapgen.ContractPlan, error) {
	return nil, errors.Unavailable("static oracle does not plan maps")
}

// staticLoot rotates by depth so consecutive floors differ. Effect
// payloads are deterministic use-effects resolved without the oracle.
var staticLoot = []struct {
	name, description string
	payload           func(depth int) map[string]any
}{
	{
		name:        "Cloudy Healing Draught",
		description: "Tastes of copper and moss. Works anyway.",
		payload: func(depth int) map[string]any {
			return map[string]any{"heal_hp": 10 + 2*depth}
		},
	},
	{
		name:        "Pale Mana Philter",
		description: "Cold all the way down.",
		payload: func(depth int) map[string]any {
			return map[string]any{"heal_mp": 8 + 2*depth}
		},
	},
	{
		name:        "Stoneskin Salve",
		description: "Grit that clings to the skin like armor.",
		payload: func(depth int) map[string]any {
			return map[string]any{
				"apply_status": map[string]any{
					"name":           "Stoneskin",
					"effect_type":    "buff",
					"duration_turns": 5,
					"modifiers":      map[string]any{"ac.status": 2},
				},
			}
		},
	},
	{
		name:        "Bitterroot Antidote",
		description: "Chewed, not sipped.",
		payload: func(depth int) map[string]any {
			return map[string]any{"cleanse_debuffs": true}
		},
	},
}

func (s *static) GenerateItems(_ context.Context, req *ItemsRequest) ([]*entities.Item, error) {
	if req == nil {
		return nil, errors.InvalidArgument("req is required")
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}
	depth := req.Depth
	if depth <= 0 {
		depth = 1
	}
	items := make([]*entities.Item, 0, count)
	for i := 0; i < count; i++ {
		seed := staticLoot[(depth+i)%len(staticLoot)]
		items = append(items, &entities.Item{
			ID:            s.ids.New(),
			Name:          seed.name,
			Description:   seed.description,
			ItemType:      "consumable",
			Rarity:        "common",
			Value:         5 * depth,
			EffectPayload: seed.payload(depth),
			HintLevel:     "clear",
		})
	}
	return items, nil
}

func (s *static) GenerateItemEffect(_ context.Context, req *ItemEffectRequest) (*ItemEffect, error) {
	if req == nil || req.Item == nil {
		return nil, errors.InvalidArgument("req with item is required")
	}
	return &ItemEffect{
		Narrative:   fmt.Sprintf("The %s hums faintly, then settles into your bones.", req.Item.Name),
		EffectScope: "self",
		SpecialEffects: []*entities.StatusEffect{{
			ID:            s.ids.New(),
			Name:          "Lingering Vigor",
			EffectType:    "hot",
			DurationTurns: 2,
			HealPerTurn:   3,
			SourceKey:     "item:" + req.Item.ID,
		}},
		HintLevel:       "vague",
		TriggerHint:     "ambient restoration",
		RiskHint:        "low",
		ConsumptionHint: "consumed",
	}, nil
}

// staticQuestSeeds rotate by player level + floor count.
var staticQuestSeeds = []struct {
	title, description  string
	bossName, bossDesc  string
	eventName, eventMsg string
}{
	{
		title:       "The Hollow Crown",
		description: "Something below still wears a crown and still expects tribute.",
		bossName:    "The Hollow King",
		bossDesc:    "A crowned husk that remembers being worshipped.",
		eventName:   "The Warden's Seal",
		eventMsg:    "Break the seal the old wardens left behind.",
	},
	{
		title:       "Roots of the Drowned Garden",
		description: "The lowest floors flooded long ago. Whatever gardens there now is not a gardener.",
		bossName:    "The Pale Tender",
		bossDesc:    "It prunes what grows and what wanders in.",
		eventName:   "The Sluice Gate",
		eventMsg:    "Open the gate and let the dead water out.",
	},
	{
		title:       "A Debt of Echoes",
		description: "Every voice ever lost down here is owed to something that keeps accounts.",
		bossName:    "The Tallykeeper",
		bossDesc:    "It counts in a language of doors closing.",
		eventName:   "The Ledger Stone",
		eventMsg:    "Deface the ledger stone before your name is entered.",
	},
}

func (s *static) GenerateQuest(_ context.Context, req *QuestRequest) (*entities.Quest, error) {
	if req == nil {
		return nil, errors.InvalidArgument("req is required")
	}
	maxFloor := req.MaxFloor
	if maxFloor <= 0 {
		maxFloor = 5
	}
	level := req.PlayerLevel
	if level <= 0 {
		level = 1
	}
	seed := staticQuestSeeds[(level+maxFloor)%len(staticQuestSeeds)]

	quest := &entities.Quest{
		ID:          s.ids.New(),
		Title:       seed.title,
		Description: seed.description,
		QuestType:   "main",
		Objectives: []string{
			fmt.Sprintf("Descend to floor %d", maxFloor),
			seed.eventMsg,
			fmt.Sprintf("Destroy %s", seed.bossName),
		},
		TargetFloors: []int{maxFloor},
		SpecialMonsters: []*entities.QuestMonster{{
			ID:               s.ids.New(),
			Name:             seed.bossName,
			Description:      seed.bossDesc,
			IsFinalObjective: true,
			ProgressValue:    100,
			Floor:            maxFloor,
		}},
		SpecialEvents: []*entities.QuestEvent{{
			ID:            s.ids.New(),
			Name:          seed.eventName,
			Description:   seed.eventMsg,
			EventType:     entities.EventStory,
			IsMandatory:   true,
			ProgressValue: 10,
			LocationHint:  maxFloor - 1,
		}},
		StoryContext:     seed.description,
		ExperienceReward: 150 * level,
	}
	normalizeQuest(quest, maxFloor, s.ids.New)
	return quest, nil
}

func (s *static) RefreshQuestProgress(context.Context, *entities.GameState, *entities.Quest, string, float64) (*progress.QuestRefresh, error) {
	// Numeric-only progress; the manager treats a nil refresh as "keep
	// the existing story text".
	return nil, nil
}
