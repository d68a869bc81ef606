package saves

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
)

// Key layout: one string key per game, a per-user set of game IDs, a
// per-user metadata key, and a global user index set.
const (
	gameKeyPrefix  = "labyrinthia:game:"      // + {userID}:{gameID}
	userGamesKey   = "labyrinthia:usergames:" // + {userID}
	userMetaPrefix = "labyrinthia:usermeta:"  // + {userID}
	usersIndexKey  = "labyrinthia:users"

	// Matches the 30-day user cookie lifetime.
	saveTTL = 30 * 24 * time.Hour
)

type redisRepo struct {
	client redis.UniversalClient
}

// RedisConfig holds configuration for the redis repository.
type RedisConfig struct {
	Client redis.UniversalClient
}

// NewRedis creates a repository backed by redis with a 30-day TTL on
// every key it writes.
func NewRedis(cfg *RedisConfig) Repository {
	if cfg == nil || cfg.Client == nil {
		panic("redis client is required")
	}
	return &redisRepo{client: cfg.Client}
}

func (r *redisRepo) SaveGame(ctx context.Context, state *entities.GameState) error {
	if state == nil {
		return errors.InvalidArgument("state cannot be nil")
	}
	if state.UserID == "" || state.ID == "" {
		return errors.InvalidArgument("state user ID and game ID are required")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrapf(err, "failed to encode game '%s'", state.ID)
	}

	if err := r.client.Set(ctx, gameKey(state.UserID, state.ID), string(data), saveTTL).Err(); err != nil {
		return errors.Wrapf(err, "failed to save game '%s'", state.ID)
	}
	if err := r.client.SAdd(ctx, userGamesKey+state.UserID, state.ID).Err(); err != nil {
		return errors.Wrapf(err, "failed to index game '%s'", state.ID)
	}
	if err := r.client.Expire(ctx, userGamesKey+state.UserID, saveTTL).Err(); err != nil {
		return errors.Wrapf(err, "failed to refresh index TTL for user '%s'", state.UserID)
	}
	if err := r.client.SAdd(ctx, usersIndexKey, state.UserID).Err(); err != nil {
		return errors.Wrapf(err, "failed to index user '%s'", state.UserID)
	}
	return nil
}

func (r *redisRepo) LoadGame(ctx context.Context, userID, gameID string) (*entities.GameState, error) {
	if userID == "" || gameID == "" {
		return nil, errors.InvalidArgument("user ID and game ID are required")
	}

	data, err := r.client.Get(ctx, gameKey(userID, gameID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("game '%s' not found for user '%s'", gameID, userID)
		}
		return nil, errors.Wrapf(err, "failed to load game '%s'", gameID)
	}

	var state entities.GameState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, errors.Wrapf(err, "failed to decode game '%s'", gameID)
	}
	return &state, nil
}

func (r *redisRepo) ListGameIDs(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, errors.InvalidArgument("user ID is required")
	}

	ids, err := r.client.SMembers(ctx, userGamesKey+userID).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list games for user '%s'", userID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *redisRepo) DeleteGame(ctx context.Context, userID, gameID string) error {
	if userID == "" || gameID == "" {
		return errors.InvalidArgument("user ID and game ID are required")
	}

	if err := r.client.Del(ctx, gameKey(userID, gameID)).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete game '%s'", gameID)
	}
	if err := r.client.SRem(ctx, userGamesKey+userID, gameID).Err(); err != nil {
		return errors.Wrapf(err, "failed to unindex game '%s'", gameID)
	}
	return nil
}

func (r *redisRepo) SaveUserMetadata(ctx context.Context, meta *UserMetadata) error {
	if meta == nil || meta.UserID == "" {
		return errors.InvalidArgument("metadata with user ID is required")
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrapf(err, "failed to encode metadata for user '%s'", meta.UserID)
	}
	if err := r.client.Set(ctx, userMetaPrefix+meta.UserID, string(data), saveTTL).Err(); err != nil {
		return errors.Wrapf(err, "failed to save metadata for user '%s'", meta.UserID)
	}
	if err := r.client.SAdd(ctx, usersIndexKey, meta.UserID).Err(); err != nil {
		return errors.Wrapf(err, "failed to index user '%s'", meta.UserID)
	}
	return nil
}

func (r *redisRepo) LoadUserMetadata(ctx context.Context, userID string) (*UserMetadata, error) {
	if userID == "" {
		return nil, errors.InvalidArgument("user ID is required")
	}

	data, err := r.client.Get(ctx, userMetaPrefix+userID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("no metadata for user '%s'", userID)
		}
		return nil, errors.Wrapf(err, "failed to load metadata for user '%s'", userID)
	}

	var meta UserMetadata
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, errors.Wrapf(err, "failed to decode metadata for user '%s'", userID)
	}
	return &meta, nil
}

func (r *redisRepo) ListUsers(ctx context.Context) ([]string, error) {
	users, err := r.client.SMembers(ctx, usersIndexKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	sort.Strings(users)
	return users, nil
}

func gameKey(userID, gameID string) string {
	return gameKeyPrefix + userID + ":" + gameID
}
