package mapgen

//go:generate mockgen -destination=mock/mock_service.go -package=mockmapgen -source=service.go
//go:generate mockgen -destination=mock/mock_provider.go -package=mockmapgen -source=provider.go

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/services/state"
)

// Service selects a generation chain and produces dungeon floors.
type Service interface {
	// GenerateMap routes the request through the legacy or contract
	// chain per release configuration and returns the produced floor.
	GenerateMap(ctx context.Context, input *GenerateInput) (*GenerateOutput, error)
}

// ReleaseConfig is the rollout knob set for map generation.
type ReleaseConfig struct {
	Provider      string // local | llm
	Stage         string // debug | canary | stable
	CanaryPercent int
	CanarySeed    string
	FallbackToLLM bool
	ForceLegacy   bool
}

type service struct {
	log      *zap.Logger
	local    Provider
	contract ContractProvider
	state    state.Service
	alerts   *AlertMonitor
	release  ReleaseConfig
}

// ServiceConfig holds configuration for the orchestrator.
type ServiceConfig struct {
	Logger *zap.Logger
	// Local is the procedural provider behind the legacy chain. Required.
	Local Provider
	// Contract is the LLM-backed chain. Optional; nil pins legacy.
	Contract ContractProvider
	// StateService applies contract refinement patches. Optional.
	StateService state.Service
	// AlertMonitor can force the legacy chain on P1 alerts. Optional.
	AlertMonitor *AlertMonitor

	Release ReleaseConfig
}

// NewService creates the map generation orchestrator.
func NewService(cfg *ServiceConfig) Service {
	if cfg == nil {
		panic("config is required")
	}
	if cfg.Local == nil {
		panic("local provider is required")
	}
	svc := &service{
		log:      cfg.Logger,
		local:    cfg.Local,
		contract: cfg.Contract,
		state:    cfg.StateService,
		alerts:   cfg.AlertMonitor,
		release:  cfg.Release,
	}
	if svc.log == nil {
		svc.log = zap.NewNop()
	}
	if svc.release.Stage == "" {
		svc.release.Stage = state.StageStable
	}
	return svc
}

func (s *service) GenerateMap(ctx context.Context, input *GenerateInput) (*GenerateOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	metrics := s.metricsFor(input)
	metrics.Total++
	metrics.BumpStage(s.release.Stage)

	chain, reason := s.selectChain(input)
	s.log.Debug("map chain selected",
		zap.String("chain", chain),
		zap.String("reason", reason),
		zap.Int("depth", input.Depth),
		zap.String("source", input.Source))

	if chain == ChainLegacy || s.release.Provider == ProviderLocal || s.contract == nil {
		return s.generateLocal(ctx, input, metrics, false)
	}

	out, err := s.generateContract(ctx, input, metrics)
	if err != nil {
		metrics.RollbackUsed++
		metrics.BumpErrorCode(entities.ErrMapGenerationFailed)
		s.log.Warn("contract chain failed, rolling back to local",
			zap.Int("depth", input.Depth),
			zap.Error(err))
		return s.generateLocal(ctx, input, metrics, true)
	}
	s.finish(metrics, out, ProviderLLM)
	return out, nil
}

// selectChain applies force-legacy, blocking alerts, then release stage,
// in that dominance order.
func (s *service) selectChain(input *GenerateInput) (string, string) {
	if s.release.ForceLegacy {
		return ChainLegacy, "force_legacy"
	}
	if s.alerts != nil && input.State != nil {
		if a := s.alerts.BlockingAlert(input.State.GenerationMetrics); a != nil {
			return ChainLegacy, "p1_alert:" + a.Metric
		}
	}
	switch s.release.Stage {
	case state.StageCanary:
		bucket := canaryBucket(s.release.CanarySeed, input.UserID, input.Source)
		reason := fmt.Sprintf("canary_bucket_%d", bucket)
		if bucket < s.release.CanaryPercent {
			return ChainContractV2, reason
		}
		return ChainLegacy, reason
	case state.StageDebug:
		return ChainContractV2, "debug_stage"
	default:
		return ChainContractV2, "stable_stage"
	}
}

func (s *service) generateLocal(ctx context.Context, input *GenerateInput, metrics *entities.MapGenerationMetrics, rollback bool) (*GenerateOutput, error) {
	out, err := s.local.Generate(ctx, input)
	if err != nil {
		metrics.BumpErrorCode(entities.ErrLocalProviderFailed)
		if !rollback && s.release.FallbackToLLM && s.contract != nil {
			metrics.FallbackUsed++
			s.log.Warn("local provider failed, falling back to contract chain", zap.Error(err))
			llmOut, llmErr := s.generateContract(ctx, input, metrics)
			if llmErr != nil {
				metrics.Failed++
				return nil, errors.Wrap(llmErr, "map generation failed on both chains")
			}
			llmOut.Map.Generation.FallbackUsed = true
			s.finish(metrics, llmOut, ProviderLLM)
			return llmOut, nil
		}
		metrics.Failed++
		return nil, errors.Wrap(err, "local map generation failed")
	}
	if rollback {
		out.Map.Generation.RollbackUsed = true
	}
	s.finish(metrics, out, ProviderLocal)
	return out, nil
}

// generateContract runs the v2 chain: plan, structural validation, then
// refinement patches through the patch pipeline (post-check rollback
// included).
func (s *service) generateContract(ctx context.Context, input *GenerateInput, metrics *entities.MapGenerationMetrics) (*GenerateOutput, error) {
	plan, err := s.contract.GenerateMapPlan(ctx, input)
	if err != nil {
		return nil, err
	}
	if plan == nil || plan.Map == nil {
		return nil, errors.Internal("contract plan carries no map")
	}
	if err := s.validateContractMap(plan.Map, metrics); err != nil {
		return nil, err
	}

	if plan.Patches != nil && len(plan.Patches.Patches) > 0 {
		if s.state == nil || input.State == nil {
			return nil, errors.FailedPrecondition("contract refinement patches need a game state")
		}
		prev := input.State.CurrentMap
		input.State.CurrentMap = plan.Map
		res, err := s.state.ApplyPatchBatch(input.State, plan.Patches, "mapgen:contract_v2")
		input.State.CurrentMap = prev
		if err != nil {
			return nil, errors.Wrap(err, "contract refinement batch")
		}
		if !res.Success {
			return nil, errors.Internalf("contract refinement batch rolled back: %v", res.Diagnostics)
		}
	}

	plan.Map.Generation = &entities.GenerationMeta{
		Provider:     ProviderLLM,
		Chain:        ChainContractV2,
		Seed:         input.Seed,
		ContractHash: plan.ContractHash,
	}
	return &GenerateOutput{Map: plan.Map, Hints: plan.Hints}, nil
}

// validateContractMap enforces stairs legality and stairs reachability on
// LLM-produced floors before they are accepted.
func (s *service) validateContractMap(m *entities.GameMap, metrics *entities.MapGenerationMetrics) error {
	maxFloor := m.MaxFloor
	if maxFloor <= 0 {
		maxFloor = defaultFloors
	}
	up := m.FindTerrain(entities.TerrainStairsUp)
	down := m.FindTerrain(entities.TerrainStairsDown)

	switch {
	case m.Depth <= 1 && up != nil:
		metrics.StairsViolations++
		return errors.Internalf("contract map places stairs up on the surface floor")
	case m.Depth >= maxFloor && down != nil:
		metrics.StairsViolations++
		return errors.Internalf("contract map places stairs down on the bottom floor")
	case m.Depth > 1 && up == nil:
		metrics.StairsViolations++
		return errors.Internalf("contract map for depth %d is missing stairs up", m.Depth)
	case m.Depth < maxFloor && down == nil:
		metrics.StairsViolations++
		return errors.Internalf("contract map for depth %d is missing stairs down", m.Depth)
	}

	start := up
	if start == nil {
		start = m.FindTerrain(entities.TerrainFloor)
	}
	if start == nil {
		metrics.UnreachableReports++
		return errors.Internal("contract map has no walkable tiles")
	}
	if down != nil && !tileReachable(m, start, down) {
		metrics.UnreachableReports++
		return errors.Internalf("contract map leaves stairs down unreachable")
	}
	return nil
}

func tileReachable(m *entities.GameMap, start, target *entities.MapTile) bool {
	visited := map[string]bool{start.Key(): true}
	queue := []*entities.MapTile{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.X == target.X && cur.Y == target.Y {
			return true
		}
		for _, d := range [][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
			n := m.TileAt(cur.X+d[0], cur.Y+d[1])
			if n == nil || visited[n.Key()] || !n.Walkable() {
				continue
			}
			visited[n.Key()] = true
			queue = append(queue, n)
		}
	}
	return false
}

func (s *service) finish(metrics *entities.MapGenerationMetrics, out *GenerateOutput, provider string) {
	metrics.Success++
	metrics.BumpProvider(provider)
	if report := out.Map.Generation.LocalValidation; report != nil {
		metrics.Repairs += report.RepairedCorridors
		if !report.ConnectivityOK {
			metrics.UnreachableReports++
		}
		metrics.StairsViolations += report.StairsViolations
	}
}

func (s *service) metricsFor(input *GenerateInput) *entities.MapGenerationMetrics {
	if input.State != nil {
		return input.State.EnsureMetrics().EnsureMapGeneration()
	}
	return &entities.MapGenerationMetrics{}
}

// canaryBucket derives the stable 0-99 rollout bucket for a user.
func canaryBucket(seed, userID, source string) int {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", seed, userID, source)))
	return int(binary.BigEndian.Uint64(sum[:8]) % 100)
}
