package saves

import (
	"context"
	"sort"
	"sync"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
)

type inMemoryRepo struct {
	mu    sync.RWMutex
	games map[string]map[string]*entities.GameState // userID -> gameID -> state
	metas map[string]*UserMetadata
}

// NewInMemory creates a repository for tests and local development.
// States are cloned on the way in and out.
func NewInMemory() Repository {
	return &inMemoryRepo{
		games: make(map[string]map[string]*entities.GameState),
		metas: make(map[string]*UserMetadata),
	}
}

func (r *inMemoryRepo) SaveGame(_ context.Context, state *entities.GameState) error {
	if state == nil {
		return errors.InvalidArgument("state cannot be nil")
	}
	if state.UserID == "" || state.ID == "" {
		return errors.InvalidArgument("state user ID and game ID are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.games[state.UserID] == nil {
		r.games[state.UserID] = make(map[string]*entities.GameState)
	}
	r.games[state.UserID][state.ID] = state.Clone()
	return nil
}

func (r *inMemoryRepo) LoadGame(_ context.Context, userID, gameID string) (*entities.GameState, error) {
	if userID == "" || gameID == "" {
		return nil, errors.InvalidArgument("user ID and game ID are required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.games[userID][gameID]
	if !ok {
		return nil, errors.NotFoundf("game '%s' not found for user '%s'", gameID, userID)
	}
	return state.Clone(), nil
}

func (r *inMemoryRepo) ListGameIDs(_ context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, errors.InvalidArgument("user ID is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id := range r.games[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *inMemoryRepo) DeleteGame(_ context.Context, userID, gameID string) error {
	if userID == "" || gameID == "" {
		return errors.InvalidArgument("user ID and game ID are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games[userID], gameID)
	return nil
}

func (r *inMemoryRepo) SaveUserMetadata(_ context.Context, meta *UserMetadata) error {
	if meta == nil || meta.UserID == "" {
		return errors.InvalidArgument("metadata with user ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *meta
	r.metas[meta.UserID] = &copied
	return nil
}

func (r *inMemoryRepo) LoadUserMetadata(_ context.Context, userID string) (*UserMetadata, error) {
	if userID == "" {
		return nil, errors.InvalidArgument("user ID is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.metas[userID]
	if !ok {
		return nil, errors.NotFoundf("no metadata for user '%s'", userID)
	}
	copied := *meta
	return &copied, nil
}

func (r *inMemoryRepo) ListUsers(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.metas)+len(r.games))
	for userID := range r.metas {
		seen[userID] = true
	}
	for userID := range r.games {
		seen[userID] = true
	}

	users := make([]string, 0, len(seen))
	for userID := range seen {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users, nil
}
