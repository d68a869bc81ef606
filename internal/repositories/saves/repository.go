package saves

//go:generate mockgen -destination=mock/mock_repository.go -package=mocksaves -source=repository.go

import (
	"context"
	"time"

	"github.com/labyrinthia/engine/internal/entities"
)

// UserMetadata is the per-user header record stored beside the user's
// game files.
type UserMetadata struct {
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastAccess time.Time `json:"last_access"`
}

// Repository persists game states and user metadata. Implementations
// must tolerate repeated saves of the same game (last write wins) and
// treat deletes of absent games as a no-op.
type Repository interface {
	// SaveGame writes the full state snapshot.
	SaveGame(ctx context.Context, state *entities.GameState) error

	// LoadGame reads one game; not-found errors carry the not_found code.
	LoadGame(ctx context.Context, userID, gameID string) (*entities.GameState, error)

	// ListGameIDs returns the user's game IDs, sorted.
	ListGameIDs(ctx context.Context, userID string) ([]string, error)

	// DeleteGame removes one game.
	DeleteGame(ctx context.Context, userID, gameID string) error

	// SaveUserMetadata writes the user header record.
	SaveUserMetadata(ctx context.Context, meta *UserMetadata) error

	// LoadUserMetadata reads the user header record.
	LoadUserMetadata(ctx context.Context, userID string) (*UserMetadata, error)

	// ListUsers returns every known user ID, sorted.
	ListUsers(ctx context.Context) ([]string, error)
}
