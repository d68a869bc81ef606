package saves_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/repositories/saves"
)

func testNow() time.Time {
	return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
}

func sampleState(userID, gameID string) *entities.GameState {
	state := entities.NewGameState(gameID, userID, testNow())
	player := entities.NewEntity("hero-1", "Mira", entities.KindPlayer)
	player.Stats.HP = 24
	player.Stats.MaxHP = 30
	state.Player = player
	state.TurnCount = 7
	return state
}

func TestFilesystemSaveAndLoadRoundTrip(t *testing.T) {
	repo := saves.NewFilesystem(&saves.FilesystemConfig{Root: t.TempDir()})
	ctx := context.Background()

	state := sampleState("user-1", "game-1")
	require.NoError(t, repo.SaveGame(ctx, state))

	loaded, err := repo.LoadGame(ctx, "user-1", "game-1")
	require.NoError(t, err)
	assert.Equal(t, "game-1", loaded.ID)
	assert.Equal(t, "user-1", loaded.UserID)
	assert.Equal(t, 7, loaded.TurnCount)
	require.NotNil(t, loaded.Player)
	assert.Equal(t, 24, loaded.Player.Stats.HP)
}

func TestFilesystemLayoutAndPrettyJSON(t *testing.T) {
	root := t.TempDir()
	repo := saves.NewFilesystem(&saves.FilesystemConfig{Root: root})
	ctx := context.Background()

	require.NoError(t, repo.SaveGame(ctx, sampleState("user-1", "game-1")))
	require.NoError(t, repo.SaveUserMetadata(ctx, &saves.UserMetadata{
		UserID:     "user-1",
		CreatedAt:  testNow(),
		LastAccess: testNow(),
	}))

	gamePath := filepath.Join(root, "users", "user-1", "game-1.json")
	data, err := os.ReadFile(gamePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"id\": \"game-1\"", "game file should be pretty-printed")

	metaPath := filepath.Join(root, "users", "user-1", "user_metadata.json")
	_, err = os.Stat(metaPath)
	require.NoError(t, err)

	// No stray temp files left behind.
	dirEntries, err := os.ReadDir(filepath.Join(root, "users", "user-1"))
	require.NoError(t, err)
	for _, entry := range dirEntries {
		assert.NotContains(t, entry.Name(), ".tmp")
	}
}

func TestFilesystemSaveOverwrites(t *testing.T) {
	repo := saves.NewFilesystem(&saves.FilesystemConfig{Root: t.TempDir()})
	ctx := context.Background()

	state := sampleState("user-1", "game-1")
	require.NoError(t, repo.SaveGame(ctx, state))

	state.TurnCount = 42
	require.NoError(t, repo.SaveGame(ctx, state))

	loaded, err := repo.LoadGame(ctx, "user-1", "game-1")
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.TurnCount)
}

func TestFilesystemLoadMissingGame(t *testing.T) {
	repo := saves.NewFilesystem(&saves.FilesystemConfig{Root: t.TempDir()})

	_, err := repo.LoadGame(context.Background(), "user-1", "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestFilesystemListGameIDs(t *testing.T) {
	repo := saves.NewFilesystem(&saves.FilesystemConfig{Root: t.TempDir()})
	ctx := context.Background()

	ids, err := repo.ListGameIDs(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, repo.SaveGame(ctx, sampleState("user-1", "game-b")))
	require.NoError(t, repo.SaveGame(ctx, sampleState("user-1", "game-a")))
	require.NoError(t, repo.SaveUserMetadata(ctx, &saves.UserMetadata{UserID: "user-1", CreatedAt: testNow()}))

	ids, err = repo.ListGameIDs(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"game-a", "game-b"}, ids, "sorted, metadata excluded")
}

func TestFilesystemDeleteGameIsIdempotent(t *testing.T) {
	repo := saves.NewFilesystem(&saves.FilesystemConfig{Root: t.TempDir()})
	ctx := context.Background()

	require.NoError(t, repo.SaveGame(ctx, sampleState("user-1", "game-1")))
	require.NoError(t, repo.DeleteGame(ctx, "user-1", "game-1"))
	require.NoError(t, repo.DeleteGame(ctx, "user-1", "game-1"))

	_, err := repo.LoadGame(ctx, "user-1", "game-1")
	assert.True(t, errors.IsNotFound(err))
}

func TestFilesystemUserMetadataRoundTrip(t *testing.T) {
	repo := saves.NewFilesystem(&saves.FilesystemConfig{Root: t.TempDir()})
	ctx := context.Background()

	_, err := repo.LoadUserMetadata(ctx, "user-1")
	assert.True(t, errors.IsNotFound(err))

	meta := &saves.UserMetadata{UserID: "user-1", CreatedAt: testNow(), LastAccess: testNow().Add(time.Hour)}
	require.NoError(t, repo.SaveUserMetadata(ctx, meta))

	loaded, err := repo.LoadUserMetadata(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, meta.UserID, loaded.UserID)
	assert.True(t, meta.LastAccess.Equal(loaded.LastAccess))
}

func TestFilesystemListUsers(t *testing.T) {
	repo := saves.NewFilesystem(&saves.FilesystemConfig{Root: t.TempDir()})
	ctx := context.Background()

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, repo.SaveGame(ctx, sampleState("user-b", "game-1")))
	require.NoError(t, repo.SaveGame(ctx, sampleState("user-a", "game-1")))

	users, err = repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a", "user-b"}, users)
}

func TestFilesystemValidatesInput(t *testing.T) {
	repo := saves.NewFilesystem(&saves.FilesystemConfig{Root: t.TempDir()})
	ctx := context.Background()

	assert.Error(t, repo.SaveGame(ctx, nil))
	assert.Error(t, repo.SaveGame(ctx, &entities.GameState{}))
	_, err := repo.LoadGame(ctx, "", "game-1")
	assert.Error(t, err)
	_, err = repo.ListGameIDs(ctx, "")
	assert.Error(t, err)
	assert.Error(t, repo.SaveUserMetadata(ctx, nil))
}
