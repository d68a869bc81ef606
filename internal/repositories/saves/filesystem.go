package saves

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
)

const (
	userMetadataFile = "user_metadata.json"
	saveFileExt      = ".json"
	dirPerm          = 0o755
	filePerm         = 0o644

	// Writes retry once; the temp-file discipline makes a retry of the
	// same snapshot idempotent.
	writeAttempts = 2
)

type filesystemRepo struct {
	root string
}

// FilesystemConfig holds configuration for the filesystem repository.
type FilesystemConfig struct {
	// Root is the save directory; game files land under
	// {root}/users/{userID}/.
	Root string
}

// NewFilesystem creates a repository that persists pretty-printed JSON
// snapshots under a per-user directory tree.
func NewFilesystem(cfg *FilesystemConfig) Repository {
	if cfg == nil || cfg.Root == "" {
		panic("save root directory is required")
	}
	return &filesystemRepo{root: cfg.Root}
}

func (r *filesystemRepo) SaveGame(ctx context.Context, state *entities.GameState) error {
	if state == nil {
		return errors.InvalidArgument("state cannot be nil")
	}
	if state.UserID == "" || state.ID == "" {
		return errors.InvalidArgument("state user ID and game ID are required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode game '%s'", state.ID)
	}
	return r.writeUserFile(state.UserID, state.ID+saveFileExt, data)
}

func (r *filesystemRepo) LoadGame(ctx context.Context, userID, gameID string) (*entities.GameState, error) {
	if userID == "" || gameID == "" {
		return nil, errors.InvalidArgument("user ID and game ID are required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(r.userDir(userID), gameID+saveFileExt)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("game '%s' not found for user '%s'", gameID, userID)
		}
		return nil, errors.Wrapf(err, "failed to read game '%s'", gameID)
	}

	var state entities.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrapf(err, "failed to decode game '%s'", gameID)
	}
	return &state, nil
}

func (r *filesystemRepo) ListGameIDs(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, errors.InvalidArgument("user ID is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(r.userDir(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to list saves for user '%s'", userID)
	}

	var ids []string
	for _, entry := range dirEntries {
		name := entry.Name()
		if entry.IsDir() || name == userMetadataFile || !strings.HasSuffix(name, saveFileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, saveFileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *filesystemRepo) DeleteGame(ctx context.Context, userID, gameID string) error {
	if userID == "" || gameID == "" {
		return errors.InvalidArgument("user ID and game ID are required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(r.userDir(userID), gameID+saveFileExt)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete game '%s'", gameID)
	}
	return nil
}

func (r *filesystemRepo) SaveUserMetadata(ctx context.Context, meta *UserMetadata) error {
	if meta == nil || meta.UserID == "" {
		return errors.InvalidArgument("metadata with user ID is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode metadata for user '%s'", meta.UserID)
	}
	return r.writeUserFile(meta.UserID, userMetadataFile, data)
}

func (r *filesystemRepo) LoadUserMetadata(ctx context.Context, userID string) (*UserMetadata, error) {
	if userID == "" {
		return nil, errors.InvalidArgument("user ID is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(r.userDir(userID), userMetadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("no metadata for user '%s'", userID)
		}
		return nil, errors.Wrapf(err, "failed to read metadata for user '%s'", userID)
	}

	var meta UserMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "failed to decode metadata for user '%s'", userID)
	}
	return &meta, nil
}

func (r *filesystemRepo) ListUsers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(filepath.Join(r.root, "users"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list users")
	}

	var users []string
	for _, entry := range dirEntries {
		if entry.IsDir() {
			users = append(users, entry.Name())
		}
	}
	sort.Strings(users)
	return users, nil
}

func (r *filesystemRepo) userDir(userID string) string {
	return filepath.Join(r.root, "users", userID)
}

// writeUserFile writes atomically: temp file in the target directory,
// then rename over the destination.
func (r *filesystemRepo) writeUserFile(userID, name string, data []byte) error {
	dir := r.userDir(userID)
	path := filepath.Join(dir, name)

	var lastErr error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			lastErr = err
			continue
		}
		if err := writeFileAtomic(path, data); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return errors.Wrapf(lastErr, "failed to write '%s'", path)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".save-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
