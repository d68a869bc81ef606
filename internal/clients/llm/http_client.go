package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/services/mapgen"
	"github.com/labyrinthia/engine/internal/services/progress"
	"github.com/labyrinthia/engine/internal/uuid"
)

const (
	defaultTimeout   = 45 * time.Second
	maxResponseBytes = 4 << 20

	taskNarrative    = "narrative"
	taskMapPlan      = "map_plan"
	taskItems        = "items"
	taskItemEffect   = "item_effect"
	taskQuest        = "quest"
	taskQuestRefresh = "quest_refresh"
)

// Config wires the HTTP oracle client.
type Config struct {
	// HTTPClient overrides the transport; when nil one is built with
	// Timeout.
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration

	Logger      *zap.Logger
	IDGenerator uuid.Generator
}

type httpClient struct {
	http  *http.Client
	base  string
	key   string
	model string
	log   *zap.Logger
	ids   uuid.Generator
}

// NewHTTP builds the HTTP-backed oracle client.
func NewHTTP(cfg *Config) (Client, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("cfg is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.InvalidArgument("cfg.BaseURL is required")
	}
	transport := cfg.HTTPClient
	if transport == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		transport = &http.Client{Timeout: timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ids := cfg.IDGenerator
	if ids == nil {
		ids = uuid.NewGoogleUUIDGenerator()
	}
	return &httpClient{
		http:  transport,
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		key:   cfg.APIKey,
		model: cfg.Model,
		log:   log,
		ids:   ids,
	}, nil
}

// taskRequest is the outbound body: one task name, its payload, and a
// compact situation block the prose can draw on.
type taskRequest struct {
	Task      string         `json:"task"`
	Model     string         `json:"model,omitempty"`
	Situation *situation     `json:"situation,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type situation struct {
	GameID        string  `json:"game_id,omitempty"`
	UserID        string  `json:"user_id,omitempty"`
	TurnCount     int     `json:"turn_count,omitempty"`
	Depth         int     `json:"depth,omitempty"`
	PlayerName    string  `json:"player_name,omitempty"`
	PlayerLevel   int     `json:"player_level,omitempty"`
	PlayerHP      int     `json:"player_hp,omitempty"`
	PlayerMaxHP   int     `json:"player_max_hp,omitempty"`
	QuestTitle    string  `json:"quest_title,omitempty"`
	QuestProgress float64 `json:"quest_progress,omitempty"`
}

func situationFromState(state *entities.GameState) *situation {
	if state == nil {
		return nil
	}
	s := &situation{
		GameID:    state.ID,
		UserID:    state.UserID,
		TurnCount: state.TurnCount,
	}
	if state.CurrentMap != nil {
		s.Depth = state.CurrentMap.Depth
	}
	if p := state.Player; p != nil {
		s.PlayerName = p.Name
		if p.Stats != nil {
			s.PlayerLevel = p.Stats.Level
			s.PlayerHP = p.Stats.HP
			s.PlayerMaxHP = p.Stats.MaxHP
		}
	}
	if q := state.ActiveQuest(); q != nil {
		s.QuestTitle = q.Title
		s.QuestProgress = q.ProgressPercentage
	}
	return s
}

func (c *httpClient) do(ctx context.Context, task string, state *entities.GameState, payload map[string]any) (*Envelope, []byte, error) {
	body, err := json.Marshal(&taskRequest{
		Task:      task,
		Model:     c.model,
		Situation: situationFromState(state),
		Payload:   payload,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode oracle request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, nil, errors.Wrap(err, "build oracle request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, errors.WrapWithCode(err, errors.CodeUnavailable, "oracle request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, errors.WrapWithCode(err, errors.CodeUnavailable, "read oracle response")
	}
	c.log.Debug("oracle task finished",
		zap.String("task", task),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, nil, errors.Unavailablef("oracle returned status %d", resp.StatusCode)
	default:
		return nil, nil, errors.Internalf("oracle returned status %d", resp.StatusCode)
	}

	env, err := parseEnvelope(raw)
	if err != nil {
		return nil, nil, err
	}
	if dropped := env.DroppedPlayerUpdateKeys(); len(dropped) > 0 {
		c.log.Warn("oracle reply carried unknown player_updates keys",
			zap.String("task", task),
			zap.Strings("dropped", dropped))
	}
	return env, raw, nil
}

func (c *httpClient) GenerateNarrative(ctx context.Context, req *NarrativeRequest) (string, error) {
	if req == nil {
		return "", errors.InvalidArgument("req is required")
	}
	env, _, err := c.do(ctx, taskNarrative, req.State, map[string]any{
		"situation_type": req.Situation,
		"context":        req.Context,
	})
	if err != nil {
		return "", err
	}
	if env.Narrative == "" {
		return "", errors.Unavailable("oracle reply carries no narrative")
	}
	return env.Narrative, nil
}

func (c *httpClient) GenerateMapPlan(ctx context.Context, input *mapgen.GenerateInput) (*mapgen.ContractPlan, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	payload := map[string]any{
		"depth":        input.Depth,
		"max_floor":    input.MaxFloor,
		"width":        input.Width,
		"height":       input.Height,
		"seed":         input.Seed,
		"source":       input.Source,
		"player_level": input.PlayerLevel,
	}
	if input.Quest != nil {
		payload["quest"] = map[string]any{
			"id":          input.Quest.ID,
			"title":       input.Quest.Title,
			"description": input.Quest.Description,
			"progress":    input.Quest.ProgressPercentage,
		}
	}
	env, raw, err := c.do(ctx, taskMapPlan, input.State, payload)
	if err != nil {
		return nil, err
	}

	floor, err := env.BuildMap(input, c.ids.New)
	if err != nil {
		return nil, err
	}
	batch, err := env.PatchBatch()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	return &mapgen.ContractPlan{
		Map:          floor,
		Hints:        env.Hints,
		Patches:      batch,
		ContractHash: hex.EncodeToString(sum[:])[:16],
	}, nil
}

func (c *httpClient) GenerateItems(ctx context.Context, req *ItemsRequest) ([]*entities.Item, error) {
	if req == nil {
		return nil, errors.InvalidArgument("req is required")
	}
	env, _, err := c.do(ctx, taskItems, req.State, map[string]any{
		"reason":       req.Reason,
		"count":        req.Count,
		"depth":        req.Depth,
		"player_level": req.PlayerLevel,
	})
	if err != nil {
		return nil, err
	}
	items := env.ItemList()
	for _, item := range items {
		if item.ID == "" {
			item.ID = c.ids.New()
		}
	}
	return items, nil
}

func (c *httpClient) GenerateItemEffect(ctx context.Context, req *ItemEffectRequest) (*ItemEffect, error) {
	if req == nil || req.Item == nil {
		return nil, errors.InvalidArgument("req with item is required")
	}
	env, _, err := c.do(ctx, taskItemEffect, req.State, map[string]any{
		"item":  req.Item,
		"force": req.Force,
	})
	if err != nil {
		return nil, err
	}
	return env.ItemEffect(), nil
}

func (c *httpClient) GenerateQuest(ctx context.Context, req *QuestRequest) (*entities.Quest, error) {
	if req == nil {
		return nil, errors.InvalidArgument("req is required")
	}
	payload := map[string]any{
		"player_level": req.PlayerLevel,
		"max_floor":    req.MaxFloor,
		"theme":        req.Theme,
	}
	if req.PreviousQuest != nil {
		payload["previous_quest"] = map[string]any{
			"id":    req.PreviousQuest.ID,
			"title": req.PreviousQuest.Title,
		}
	}
	env, _, err := c.do(ctx, taskQuest, req.State, payload)
	if err != nil {
		return nil, err
	}
	if env.Quest == nil || env.Quest.Title == "" {
		return nil, errors.Unavailable("oracle reply carries no quest")
	}
	quest := env.Quest
	normalizeQuest(quest, req.MaxFloor, c.ids.New)
	return quest, nil
}

func (c *httpClient) RefreshQuestProgress(ctx context.Context, gameState *entities.GameState, quest *entities.Quest, eventType string, increment float64) (*progress.QuestRefresh, error) {
	if quest == nil {
		return nil, errors.InvalidArgument("quest is required")
	}
	env, _, err := c.do(ctx, taskQuestRefresh, gameState, map[string]any{
		"quest_id":      quest.ID,
		"quest_title":   quest.Title,
		"progress":      quest.ProgressPercentage,
		"event_type":    eventType,
		"increment":     increment,
		"story_context": quest.StoryContext,
	})
	if err != nil {
		return nil, err
	}
	return env.QuestRefresh(), nil
}

// normalizeQuest fills the holes oracle quests tend to leave so the
// progress manager always has a plan to work against.
func normalizeQuest(q *entities.Quest, maxFloor int, newID func() string) {
	if q.ID == "" {
		q.ID = newID()
	}
	q.IsActive = true
	q.IsCompleted = false
	if q.ProgressPercentage < 0 {
		q.ProgressPercentage = 0
	}
	if maxFloor <= 0 {
		maxFloor = 1
	}
	if len(q.TargetFloors) == 0 {
		q.TargetFloors = []int{maxFloor}
	}
	for _, m := range q.SpecialMonsters {
		if m.ID == "" {
			m.ID = newID()
		}
	}
	for _, ev := range q.SpecialEvents {
		if ev.ID == "" {
			ev.ID = newID()
		}
	}
	if q.ProgressPlan == nil {
		q.ProgressPlan = &entities.ProgressPlan{
			CompletionPolicy: entities.PolicyHybrid,
			ProgressPerFloor: 80.0 / float64(maxFloor),
			Budget: map[string]float64{
				entities.BucketEvents:            30,
				entities.BucketQuestMonsters:     40,
				entities.BucketMapTransition:     80,
				entities.BucketExplorationBuffer: 10,
			},
		}
		if final := q.FinalObjective(); final != nil {
			q.ProgressPlan.FinalObjectiveID = final.ID
		}
	}
	if q.ProgressPlan.CompletionPolicy == "" {
		q.ProgressPlan.CompletionPolicy = entities.PolicyHybrid
	}
	if q.CompletionGuard == nil {
		q.CompletionGuard = &entities.CompletionGuard{
			RequireFinalFloor:             true,
			RequireAllMandatoryEvents:     true,
			MinProgressBeforeFinalBurst:   50,
			MaxSingleIncrementExceptFinal: 25,
		}
	}
}
