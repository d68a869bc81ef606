package locks_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinthia/engine/internal/locks"
)

func TestLockSerializesAccess(t *testing.T) {
	m := locks.NewManager(nil)
	ctx := context.Background()

	release, err := m.Lock(ctx, "user-1", "game-1", "attack")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r2, err := m.Lock(ctx, "user-1", "game-1", "move")
		require.NoError(t, err)
		close(acquired)
		r2()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquisition succeeded while lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquisition never completed after release")
	}
}

func TestLockDifferentGamesDoNotContend(t *testing.T) {
	m := locks.NewManager(nil)
	ctx := context.Background()

	r1, err := m.Lock(ctx, "user-1", "game-1", "attack")
	require.NoError(t, err)
	defer r1()

	done := make(chan struct{})
	go func() {
		r2, err := m.Lock(ctx, "user-1", "game-2", "attack")
		require.NoError(t, err)
		r2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different game blocked")
	}
}

func TestLockDoubleReleaseIsSafe(t *testing.T) {
	m := locks.NewManager(nil)

	release, err := m.Lock(context.Background(), "user-1", "game-1", "rest")
	require.NoError(t, err)
	release()
	release()

	// The lock must be reacquirable after the double release.
	again, err := m.Lock(context.Background(), "user-1", "game-1", "rest")
	require.NoError(t, err)
	again()
}

func TestLockHonorsContextCancellation(t *testing.T) {
	m := locks.NewManager(nil)

	release, err := m.Lock(context.Background(), "user-1", "game-1", "attack")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = m.Lock(ctx, "user-1", "game-1", "move")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLockInfoTracksOperationAndCounts(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	m := locks.NewManager(&locks.ManagerConfig{Now: func() time.Time { return now }})

	_, ok := m.Info("user-1", "game-1")
	assert.False(t, ok)

	release, err := m.Lock(context.Background(), "user-1", "game-1", "use_item")
	require.NoError(t, err)

	info, ok := m.Info("user-1", "game-1")
	require.True(t, ok)
	assert.True(t, info.Held)
	assert.Equal(t, "use_item", info.CurrentOperation)
	assert.Equal(t, int64(1), info.AccessCount)
	assert.Equal(t, now, info.CurrentAcquiredAt)

	release()

	info, ok = m.Info("user-1", "game-1")
	require.True(t, ok)
	assert.False(t, info.Held)
	assert.Empty(t, info.CurrentOperation)

	release2, err := m.Lock(context.Background(), "user-1", "game-1", "attack")
	require.NoError(t, err)
	info, _ = m.Info("user-1", "game-1")
	assert.Equal(t, int64(2), info.AccessCount)
	release2()
}

func TestCleanupUnusedLocks(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	clock := &now
	m := locks.NewManager(&locks.ManagerConfig{Now: func() time.Time { return *clock }})

	release, err := m.Lock(context.Background(), "user-1", "game-idle", "move")
	require.NoError(t, err)
	release()

	heldRelease, err := m.Lock(context.Background(), "user-1", "game-held", "attack")
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())

	later := now.Add(time.Hour)
	clock = &later

	removed := m.CleanupUnusedLocks(30 * time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.Len())

	// The held lock survives cleanup even past the timeout.
	_, ok := m.Info("user-1", "game-held")
	assert.True(t, ok)
	_, ok = m.Info("user-1", "game-idle")
	assert.False(t, ok)

	heldRelease()
}

func TestLockConcurrentCountersStayConsistent(t *testing.T) {
	m := locks.NewManager(nil)
	ctx := context.Background()

	const workers = 8
	const iterations = 25

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				release, err := m.Lock(ctx, "user-1", "game-1", "move")
				require.NoError(t, err)
				counter++
				release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*iterations, counter)
	info, ok := m.Info("user-1", "game-1")
	require.True(t, ok)
	assert.Equal(t, int64(workers*iterations), info.AccessCount)
	assert.False(t, info.Held)
}
