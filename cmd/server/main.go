package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/clients/llm"
	"github.com/labyrinthia/engine/internal/config"
	"github.com/labyrinthia/engine/internal/effects"
	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/locks"
	"github.com/labyrinthia/engine/internal/repositories/saves"
	"github.com/labyrinthia/engine/internal/services/choice"
	"github.com/labyrinthia/engine/internal/services/combat"
	"github.com/labyrinthia/engine/internal/services/engine"
	"github.com/labyrinthia/engine/internal/services/mapgen"
	"github.com/labyrinthia/engine/internal/services/progress"
	"github.com/labyrinthia/engine/internal/services/spawn"
	"github.com/labyrinthia/engine/internal/services/state"
	"github.com/labyrinthia/engine/internal/services/trap"
	"github.com/labyrinthia/engine/internal/tasks"
)

const shutdownGrace = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	repo, redisClient, err := buildSaveStore(cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("closing redis", zap.Error(err))
			}
		}()
	}

	oracle, err := buildOracle(cfg, logger)
	if err != nil {
		return err
	}

	// Service graph. The spawn manager doubles as the state modifier's
	// spawn validator, so it comes first.
	spawnSvc := spawn.NewService(&spawn.ServiceConfig{Logger: logger.Named("spawn")})
	stateSvc := state.NewService(&state.ServiceConfig{
		Logger:               logger.Named("state"),
		SpawnValidator:       spawnSvc,
		ReleaseStage:         cfg.MapGen.ReleaseStage,
		BlockHighRiskPatches: cfg.MapGen.DisableHighRiskPatch,
	})
	effectEngine := effects.NewEngine(&effects.EngineConfig{Logger: logger.Named("effects")})
	trapSvc := trap.NewService(&trap.ServiceConfig{
		Logger:       logger.Named("traps"),
		StateService: stateSvc,
		Effects:      effectEngine,
		Narrator:     oracleNarrator{oracle: oracle},
	})
	choiceSvc := choice.NewService(&choice.ServiceConfig{
		Logger:       logger.Named("choices"),
		StateService: stateSvc,
		Effects:      effectEngine,
		Traps:        trapSvc,
	})
	progressSvc := progress.NewService(&progress.ServiceConfig{
		Logger:       logger.Named("progress"),
		StateService: stateSvc,
		Refresher:    oracle,
	})
	mapSvc := mapgen.NewService(&mapgen.ServiceConfig{
		Logger:       logger.Named("mapgen"),
		Local:        mapgen.NewLocalProvider(&mapgen.LocalProviderConfig{Logger: logger.Named("mapgen")}),
		Contract:     oracle,
		StateService: stateSvc,
		AlertMonitor: mapgen.NewAlertMonitor(cfg.AlertConfig()),
		Release:      cfg.ReleaseConfig(),
	})
	combatSvc := combat.NewService(&combat.ServiceConfig{Logger: logger.Named("combat")})
	taskMgr := tasks.NewManager(&tasks.ManagerConfig{
		Logger:           logger.Named("tasks"),
		MaxConcurrentLLM: int64(cfg.LLM.MaxConcurrent),
	})
	lockMgr := locks.NewManager(&locks.ManagerConfig{Logger: logger.Named("locks")})

	engineSvc := engine.NewService(&engine.ServiceConfig{
		Logger:           logger.Named("engine"),
		Saves:            repo,
		State:            stateSvc,
		Combat:           combatSvc,
		Effects:          effectEngine,
		Maps:             mapSvc,
		Spawns:           spawnSvc,
		Progress:         progressSvc,
		Choices:          choiceSvc,
		Traps:            trapSvc,
		Oracle:           oracle,
		Locks:            lockMgr,
		Tasks:            taskMgr,
		AutoSaveInterval: cfg.AutoSaveInterval,
		SessionTimeout:   cfg.GameSessionTimeout,
		AuthorityMode:    cfg.Combat.AuthorityMode,
		GateMaxP95:       cfg.Combat.GateMaxP95,
		GateMaxErrorRate: cfg.Combat.GateMaxErrorRate,
	})

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
		logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
	}

	logger.Info("engine up",
		zap.String("authority_mode", cfg.Combat.AuthorityMode),
		zap.String("map_provider", cfg.MapGen.Provider),
		zap.String("release_stage", cfg.MapGen.ReleaseStage),
		zap.Duration("auto_save_interval", cfg.AutoSaveInterval))

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sc
	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := engineSvc.Shutdown(ctx); err != nil {
		logger.Error("engine shutdown", zap.Error(err))
	}
	if err := taskMgr.Shutdown(ctx); err != nil {
		logger.Error("task manager shutdown", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown", zap.Error(err))
		}
	}
	return nil
}

// buildSaveStore picks redis when configured and reachable; the
// filesystem tree under cfg.SaveDir is the fallback either way.
func buildSaveStore(cfg *config.Config, logger *zap.Logger) (saves.Repository, *redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Info("using filesystem save store", zap.String("dir", cfg.SaveDir))
		return saves.NewFilesystem(&saves.FilesystemConfig{Root: cfg.SaveDir}), nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, falling back to filesystem saves", zap.Error(err))
		_ = client.Close()
		return saves.NewFilesystem(&saves.FilesystemConfig{Root: cfg.SaveDir}), nil, nil
	}

	logger.Info("using redis save store", zap.String("addr", opts.Addr))
	return saves.NewRedis(&saves.RedisConfig{Client: client}), client, nil
}

// buildOracle returns the HTTP story oracle when an endpoint is
// configured, the static one otherwise.
func buildOracle(cfg *config.Config, logger *zap.Logger) (llm.Client, error) {
	if cfg.LLM.BaseURL == "" {
		logger.Info("no oracle endpoint configured, using static content")
		return llm.NewStatic(nil), nil
	}
	client, err := llm.NewHTTP(&llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
		Logger:  logger.Named("oracle"),
	})
	if err != nil {
		return nil, fmt.Errorf("build oracle client: %w", err)
	}
	logger.Info("using http oracle",
		zap.String("base_url", cfg.LLM.BaseURL),
		zap.String("model", cfg.LLM.Model))
	return client, nil
}

// oracleNarrator feeds trap resolutions through the story oracle. The
// trap service falls back to local strings when the oracle errors.
type oracleNarrator struct {
	oracle llm.Client
}

func (n oracleNarrator) TrapNarrative(ctx context.Context, gameState *entities.GameState, result *trap.Result) (string, error) {
	req := &llm.NarrativeRequest{
		State:     gameState,
		Situation: "trap_triggered",
		Context: map[string]any{
			"outcome": result.Outcome,
			"damage":  result.Damage,
		},
	}
	if result.Trap != nil {
		req.Context["trap_name"] = result.Trap.Name
	}
	return n.oracle.GenerateNarrative(ctx, req)
}
