package engine

//go:generate mockgen -destination=mock/mock_service.go -package=mockengine -source=service.go

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/labyrinthia/engine/internal/clients/llm"
	"github.com/labyrinthia/engine/internal/dice"
	"github.com/labyrinthia/engine/internal/effects"
	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/locks"
	"github.com/labyrinthia/engine/internal/repositories/saves"
	"github.com/labyrinthia/engine/internal/services/choice"
	"github.com/labyrinthia/engine/internal/services/combat"
	"github.com/labyrinthia/engine/internal/services/mapgen"
	"github.com/labyrinthia/engine/internal/services/progress"
	"github.com/labyrinthia/engine/internal/services/spawn"
	"github.com/labyrinthia/engine/internal/services/state"
	"github.com/labyrinthia/engine/internal/services/trap"
	"github.com/labyrinthia/engine/internal/tasks"
	"github.com/labyrinthia/engine/internal/uuid"
)

const (
	defaultAutoSaveInterval = 60 * time.Second
	defaultSessionTimeout   = 30 * time.Minute
	defaultGateMaxP95       = 250 * time.Millisecond
	defaultGateMaxErrorRate = 0.10
	defaultMaxFloors        = 5

	// cleanupInterval paces the stale-session sweep; closeTimeout bounds
	// each forced close inside it.
	cleanupInterval = 10 * time.Minute
	closeTimeout    = 30 * time.Second

	// gameMinutesPerTurn advances the in-game clock per completed turn.
	gameMinutesPerTurn = 1.0
)

// ActionRequest is one player action submitted to the engine.
type ActionRequest struct {
	UserID string
	GameID string
	Action string
	Params map[string]any

	// IdempotencyKey makes retries of the same logical action safe and
	// doubles as the action trace id when supplied.
	IdempotencyKey string
}

// Service is the orchestration core. It owns the live-game registry,
// serializes actions per game, and drives every subsystem in a fixed
// order.
type Service interface {
	// CreateGame builds a fresh run: player, quest, first floor,
	// monsters, and the initial save.
	CreateGame(ctx context.Context, userID, playerName string) (*entities.GameState, error)

	// LoadGame returns a copy of the live game, loading it from the
	// repository on first access.
	LoadGame(ctx context.Context, userID, gameID string) (*entities.GameState, error)

	// ProcessPlayerAction runs one action under the game lock and
	// returns its result envelope. Game-logic failures land in the
	// envelope; only system faults return an error.
	ProcessPlayerAction(ctx context.Context, req *ActionRequest) (*entities.ActionResult, error)

	// CloseGame saves a live game and drops it from the registry.
	CloseGame(ctx context.Context, userID, gameID string) error

	// Shutdown closes every live game and stops the cleanup loop.
	Shutdown(ctx context.Context) error
}

// ServiceConfig holds configuration for the engine service.
type ServiceConfig struct {
	Logger *zap.Logger

	Saves    saves.Repository
	State    state.Service
	Combat   combat.Service
	Effects  *effects.Engine
	Maps     mapgen.Service
	Spawns   spawn.Service
	Progress progress.Service
	Choices  choice.Service
	Traps    trap.Service
	Oracle   llm.Client
	Locks    *locks.Manager
	Tasks    *tasks.Manager

	IDGenerator uuid.Generator
	Clock       state.TimeProvider

	// AutoSaveInterval and SessionTimeout default to 60s and 30m.
	AutoSaveInterval time.Duration
	SessionTimeout   time.Duration

	// AuthorityMode seeds new games. Defaults to server authority.
	AuthorityMode string

	// GateMaxP95 and GateMaxErrorRate bound the combat evaluator before
	// the release gate downgrades a game's authority mode. Defaults:
	// 250ms and 0.10.
	GateMaxP95       time.Duration
	GateMaxErrorRate float64

	// MaxFloors is the dungeon depth offered to new quests. Defaults
	// to 5.
	MaxFloors int
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// session is one live game in the registry. The state and replay cache
// are guarded by the per-game lock; lastAccess by the registry mutex.
type session struct {
	state      *entities.GameState
	lastAccess time.Time
	autoSave   *tasks.Task
	replays    *replayCache
}

type service struct {
	log      *zap.Logger
	saves    saves.Repository
	state    state.Service
	combat   combat.Service
	effects  *effects.Engine
	maps     mapgen.Service
	spawns   spawn.Service
	progress progress.Service
	choices  choice.Service
	traps    trap.Service
	oracle   llm.Client
	locks    *locks.Manager
	tasks    *tasks.Manager
	ids      uuid.Generator
	clock    state.TimeProvider

	autoSaveInterval time.Duration
	sessionTimeout   time.Duration
	authorityMode    string
	gateMaxP95       time.Duration
	gateMaxErrorRate float64
	maxFloors        int

	reg registry

	latencies latencyRing
	stop      chan struct{}
}

// NewService creates the engine service.
func NewService(cfg *ServiceConfig) Service {
	if cfg == nil {
		panic("config is required")
	}
	if cfg.Saves == nil {
		panic("save repository is required")
	}
	if cfg.State == nil {
		panic("state service is required")
	}
	if cfg.Combat == nil {
		panic("combat service is required")
	}
	if cfg.Effects == nil {
		panic("effect engine is required")
	}
	if cfg.Maps == nil {
		panic("map service is required")
	}
	if cfg.Spawns == nil {
		panic("spawn service is required")
	}
	if cfg.Progress == nil {
		panic("progress service is required")
	}
	if cfg.Choices == nil {
		panic("choice service is required")
	}
	if cfg.Traps == nil {
		panic("trap service is required")
	}
	if cfg.Oracle == nil {
		panic("oracle client is required")
	}
	if cfg.Locks == nil {
		panic("lock manager is required")
	}
	if cfg.Tasks == nil {
		panic("task manager is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ids := cfg.IDGenerator
	if ids == nil {
		ids = uuid.NewGoogleUUIDGenerator()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}

	svc := &service{
		log:      logger,
		saves:    cfg.Saves,
		state:    cfg.State,
		combat:   cfg.Combat,
		effects:  cfg.Effects,
		maps:     cfg.Maps,
		spawns:   cfg.Spawns,
		progress: cfg.Progress,
		choices:  cfg.Choices,
		traps:    cfg.Traps,
		oracle:   cfg.Oracle,
		locks:    cfg.Locks,
		tasks:    cfg.Tasks,
		ids:      ids,
		clock:    clock,

		autoSaveInterval: cfg.AutoSaveInterval,
		sessionTimeout:   cfg.SessionTimeout,
		authorityMode:    cfg.AuthorityMode,
		gateMaxP95:       cfg.GateMaxP95,
		gateMaxErrorRate: cfg.GateMaxErrorRate,
		maxFloors:        cfg.MaxFloors,

		reg:  registry{games: make(map[locks.Key]*session)},
		stop: make(chan struct{}),
	}
	if svc.autoSaveInterval <= 0 {
		svc.autoSaveInterval = defaultAutoSaveInterval
	}
	if svc.sessionTimeout <= 0 {
		svc.sessionTimeout = defaultSessionTimeout
	}
	if !entities.ValidAuthorityMode(svc.authorityMode) {
		svc.authorityMode = entities.AuthorityServer
	}
	if svc.gateMaxP95 <= 0 {
		svc.gateMaxP95 = defaultGateMaxP95
	}
	if svc.gateMaxErrorRate <= 0 {
		svc.gateMaxErrorRate = defaultGateMaxErrorRate
	}
	if svc.maxFloors <= 0 {
		svc.maxFloors = defaultMaxFloors
	}

	go svc.cleanupLoop()
	return svc
}

func (s *service) CreateGame(ctx context.Context, userID, playerName string) (*entities.GameState, error) {
	if userID == "" {
		return nil, errors.InvalidArgument("user id is required")
	}
	if playerName == "" {
		playerName = "Adventurer"
	}

	now := s.clock.Now()
	gameID := s.ids.New()

	gs := entities.NewGameState(gameID, userID, now)
	gs.CombatAuthorityMode = s.authorityMode
	gs.Player = s.newPlayer(playerName)

	// Quest first: the floor builder places its monsters and events.
	quest, err := s.generateQuest(ctx, gs, nil)
	if err != nil {
		s.log.Warn("initial quest generation failed, deferring",
			zap.String("game_id", gameID), zap.Error(err))
		gs.PendingNewQuestGeneration = true
	} else if _, err := s.state.AddQuest(gs, quest, "game_create"); err != nil {
		return nil, errors.Wrap(err, "add initial quest")
	}

	if err := s.buildFloor(ctx, gs, 1, "new_game"); err != nil {
		return nil, err
	}

	s.touchUserMetadata(ctx, userID, now)

	gs.LastSaved = now
	if err := s.saves.SaveGame(ctx, gs); err != nil {
		return nil, errors.Wrap(err, "initial save")
	}

	s.register(gs)
	s.log.Info("game created",
		zap.String("user_id", userID),
		zap.String("game_id", gameID),
		zap.String("player", playerName),
		zap.String("authority_mode", gs.CombatAuthorityMode))
	return gs.Clone(), nil
}

func (s *service) LoadGame(ctx context.Context, userID, gameID string) (*entities.GameState, error) {
	if userID == "" || gameID == "" {
		return nil, errors.InvalidArgument("user id and game id are required")
	}

	release, err := s.locks.Lock(ctx, userID, gameID, "load_game")
	if err != nil {
		return nil, err
	}
	defer release()

	key := locks.Key{UserID: userID, GameID: gameID}
	if sess := s.reg.touch(key, s.clock.Now()); sess != nil {
		return sess.state.Clone(), nil
	}

	gs, err := s.saves.LoadGame(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	gs.EnsureCombatDefaults(s.clock.Now())
	s.touchUserMetadata(ctx, userID, s.clock.Now())
	s.register(gs)
	s.log.Info("game loaded",
		zap.String("user_id", userID),
		zap.String("game_id", gameID),
		zap.Int("turn", gs.TurnCount))
	return gs.Clone(), nil
}

func (s *service) CloseGame(ctx context.Context, userID, gameID string) error {
	key := locks.Key{UserID: userID, GameID: gameID}
	sess := s.reg.remove(key)
	if sess == nil {
		return errors.NotFoundf("game %s is not live", gameID)
	}
	liveGames.Dec()

	if sess.autoSave != nil {
		sess.autoSave.Cancel()
		select {
		case <-sess.autoSave.Done():
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "auto-save cancel wait")
		}
	}

	// The session is already out of the registry; snapshot under the
	// game lock and write the copy.
	release, err := s.locks.Lock(ctx, userID, gameID, "close_game")
	if err != nil {
		return err
	}
	sess.state.LastSaved = s.clock.Now()
	snapshot := sess.state.Clone()
	release()

	if err := s.saves.SaveGame(ctx, snapshot); err != nil {
		return errors.Wrap(err, "final save")
	}
	s.locks.Remove(userID, gameID)
	s.log.Info("game closed",
		zap.String("user_id", userID),
		zap.String("game_id", gameID),
		zap.Int("turn", snapshot.TurnCount))
	return nil
}

func (s *service) Shutdown(ctx context.Context) error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}

	var eg errgroup.Group
	for _, key := range s.reg.keys() {
		key := key
		eg.Go(func() error {
			err := s.CloseGame(ctx, key.UserID, key.GameID)
			if err != nil && !errors.IsNotFound(err) {
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

// newPlayer builds the starting adventurer.
func (s *service) newPlayer(name string) *entities.Entity {
	p := entities.NewEntity(s.ids.New(), name, entities.KindPlayer)
	p.Class = "adventurer"
	p.Stats.HP = 30
	p.Stats.MaxHP = 30
	p.Stats.MP = 20
	p.Stats.MaxMP = 20
	p.SyncLegacyMirrors()
	return p
}

// generateQuest asks the oracle for a quest under an LLM slot.
func (s *service) generateQuest(ctx context.Context, gs *entities.GameState, previous *entities.Quest) (*entities.Quest, error) {
	releaseSlot, err := s.tasks.AcquireLLMSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer releaseSlot()

	quest, err := s.oracle.GenerateQuest(ctx, &llm.QuestRequest{
		State:         gs,
		PlayerLevel:   playerLevel(gs),
		MaxFloor:      s.maxFloors,
		PreviousQuest: previous,
	})
	if err != nil {
		return nil, err
	}
	quest.IsActive = true
	return quest, nil
}

// buildFloor generates the floor at depth, stands the player on its
// landing tile, and repopulates the monster roster.
func (s *service) buildFloor(ctx context.Context, gs *entities.GameState, depth int, source string) error {
	out, err := s.maps.GenerateMap(ctx, &mapgen.GenerateInput{
		State:       gs,
		UserID:      gs.UserID,
		Depth:       depth,
		MaxFloor:    s.maxFloors,
		Seed:        dice.SeedFromString(fmt.Sprintf("map|%s|%d", gs.ID, depth)),
		Source:      source,
		Quest:       gs.ActiveQuest(),
		PlayerLevel: playerLevel(gs),
	})
	if err != nil {
		return errors.Wrap(err, "generate floor")
	}
	gs.CurrentMap = out.Map

	arrival := arrivalTile(out.Map, source)
	if arrival == nil {
		return errors.Internalf("floor %d has no landing tile", depth)
	}
	s.placePlayer(gs, arrival.X, arrival.Y)

	if _, err := s.spawns.PopulateFloor(gs, out.Hints); err != nil {
		return errors.Wrap(err, "populate floor")
	}
	return nil
}

// arrivalTile picks where the player lands on a fresh floor: the stair
// mirroring the one they took, or an entrance tile when there is none.
func arrivalTile(m *entities.GameMap, source string) *entities.MapTile {
	mirror := entities.TerrainStairsUp
	if source == "transition_up" {
		mirror = entities.TerrainStairsDown
	}
	if t := m.FindTerrain(mirror); t != nil {
		return t
	}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if t := m.TileAt(x, y); t != nil && t.RoomType == entities.RoomEntrance && t.Walkable() {
				return t
			}
		}
	}
	return m.FindTerrain(entities.TerrainFloor)
}

// touchUserMetadata upserts the per-user record. Failures only log:
// metadata never blocks play.
func (s *service) touchUserMetadata(ctx context.Context, userID string, now time.Time) {
	meta, err := s.saves.LoadUserMetadata(ctx, userID)
	if err != nil || meta == nil {
		meta = &saves.UserMetadata{UserID: userID, CreatedAt: now}
	}
	meta.LastAccess = now
	if err := s.saves.SaveUserMetadata(ctx, meta); err != nil {
		s.log.Warn("user metadata save failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}

// register adds a game to the registry and starts its auto-save task.
func (s *service) register(gs *entities.GameState) {
	key := locks.Key{UserID: gs.UserID, GameID: gs.ID}
	sess := &session{
		state:      gs,
		lastAccess: s.clock.Now(),
		replays:    newReplayCache(replayCacheCap, replayTTL),
	}
	if !s.reg.add(key, sess) {
		return
	}
	liveGames.Inc()
	sess.autoSave = s.startAutoSave(key)
}

// startAutoSave schedules the periodic save for one game. The task runs
// until cancelled; individual save failures log and continue.
func (s *service) startAutoSave(key locks.Key) *tasks.Task {
	task, err := s.tasks.Submit(tasks.TypeAutoSave, "auto-save "+key.GameID, func(ctx context.Context) error {
		ticker := time.NewTicker(s.autoSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := s.saveGame(ctx, key); err != nil && !errors.IsCancelled(err) {
					s.log.Warn("auto-save failed",
						zap.String("game_id", key.GameID), zap.Error(err))
				}
			}
		}
	})
	if err != nil {
		s.log.Warn("auto-save task rejected",
			zap.String("game_id", key.GameID), zap.Error(err))
		return nil
	}
	return task
}

// saveGame snapshots the game under its lock and writes the snapshot
// through the io pool, so a slow disk never stalls a turn.
func (s *service) saveGame(ctx context.Context, key locks.Key) error {
	release, err := s.locks.Lock(ctx, key.UserID, key.GameID, "auto_save")
	if err != nil {
		return err
	}
	sess := s.reg.get(key)
	if sess == nil {
		release()
		return errors.NotFoundf("game %s is not live", key.GameID)
	}
	sess.state.LastSaved = s.clock.Now()
	snapshot := sess.state.Clone()
	release()

	write, err := s.tasks.Submit(tasks.TypeIOOperation, "save "+key.GameID, func(ctx context.Context) error {
		return s.saves.SaveGame(ctx, snapshot)
	})
	if err != nil {
		return err
	}
	select {
	case <-write.Done():
		return write.Err()
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "save wait")
	}
}

// cleanupLoop closes games idle past the session timeout.
func (s *service) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.closeStale()
		}
	}
}

func (s *service) closeStale() {
	cutoff := s.clock.Now().Add(-s.sessionTimeout)
	for _, key := range s.reg.staleKeys(cutoff) {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := s.CloseGame(ctx, key.UserID, key.GameID); err != nil && !errors.IsNotFound(err) {
			s.log.Warn("stale game close failed",
				zap.String("game_id", key.GameID), zap.Error(err))
		}
		cancel()
	}
	s.locks.CleanupUnusedLocks(s.sessionTimeout)
}

func playerLevel(gs *entities.GameState) int {
	if gs.Player != nil && gs.Player.Stats != nil {
		return gs.Player.Stats.Level
	}
	return 1
}
