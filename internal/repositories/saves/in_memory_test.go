package saves_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/repositories/saves"
)

func TestInMemoryRoundTripIsDetached(t *testing.T) {
	repo := saves.NewInMemory()
	ctx := context.Background()

	state := sampleState("user-1", "game-1")
	require.NoError(t, repo.SaveGame(ctx, state))

	// Mutating the original after save must not leak into the store.
	state.TurnCount = 999
	state.Player.Stats.HP = 1

	loaded, err := repo.LoadGame(ctx, "user-1", "game-1")
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.TurnCount)
	assert.Equal(t, 24, loaded.Player.Stats.HP)

	// Mutating a loaded copy must not corrupt the store either.
	loaded.TurnCount = 1000
	again, err := repo.LoadGame(ctx, "user-1", "game-1")
	require.NoError(t, err)
	assert.Equal(t, 7, again.TurnCount)
}

func TestInMemoryListAndDelete(t *testing.T) {
	repo := saves.NewInMemory()
	ctx := context.Background()

	require.NoError(t, repo.SaveGame(ctx, sampleState("user-1", "game-b")))
	require.NoError(t, repo.SaveGame(ctx, sampleState("user-1", "game-a")))

	ids, err := repo.ListGameIDs(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"game-a", "game-b"}, ids)

	require.NoError(t, repo.DeleteGame(ctx, "user-1", "game-a"))
	require.NoError(t, repo.DeleteGame(ctx, "user-1", "game-a"))

	_, err = repo.LoadGame(ctx, "user-1", "game-a")
	assert.True(t, errors.IsNotFound(err))
}

func TestInMemoryUsersAndMetadata(t *testing.T) {
	repo := saves.NewInMemory()
	ctx := context.Background()

	require.NoError(t, repo.SaveGame(ctx, sampleState("user-b", "game-1")))
	require.NoError(t, repo.SaveUserMetadata(ctx, &saves.UserMetadata{UserID: "user-a", CreatedAt: testNow()}))

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a", "user-b"}, users)

	meta, err := repo.LoadUserMetadata(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "user-a", meta.UserID)

	_, err = repo.LoadUserMetadata(ctx, "user-b")
	assert.True(t, errors.IsNotFound(err))
}
