package storage

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jwebster45206/robot-engine/pkg/engine"
	"github.com/jwebster45206/robot-engine/pkg/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s := NewRedisStorage("redis://"+mr.Addr(), time.Hour, testLogger())
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStorage_Ping(t *testing.T) {
	s, mr := setupRedis(t)
	ctx := context.Background()
	assert.NoError(t, s.Ping(ctx))

	mr.SetError("LOADING server is loading")
	assert.Error(t, s.Ping(ctx))
	mr.SetError("")
}

func TestRedisStorage_BareAddress(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s := NewRedisStorage(mr.Addr(), 0, testLogger())
	defer s.Close()
	assert.NoError(t, s.Ping(context.Background()))
}

func TestRedisStorage_SessionRoundTrip(t *testing.T) {
	s, mr := setupRedis(t)
	ctx := context.Background()

	rec := &SessionRecord{
		ID:         uuid.New(),
		Username:   "ada",
		LevelIndex: 2,
		LevelID:    3,
		Script:     "robot.moveRight()",
		Phase:      "completed",
		State: engine.RunState{
			LevelID:       3,
			PlayerPos:     level.Point{X: 2, Y: 2},
			Backpack:      []level.Entity{{ID: "key_num", Kind: level.KindKey, Collected: true}},
			Log:           []string{"Moved right to (2,2)."},
			ExecutedCount: 1,
		},
	}
	require.NoError(t, s.SaveSession(ctx, rec))
	assert.False(t, rec.UpdatedAt.IsZero())

	key := sessionKeyPrefix + rec.ID.String()
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	loaded, err := s.LoadSession(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, rec.Username, loaded.Username)
	assert.Equal(t, rec.State.PlayerPos, loaded.State.PlayerPos)
	assert.Equal(t, "key_num", loaded.State.Backpack[0].ID)
	assert.True(t, loaded.State.Backpack[0].Collected)

	require.NoError(t, s.DeleteSession(ctx, rec.ID))
	loaded, err = s.LoadSession(ctx, rec.ID)
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStorage_LoadCorruptSession(t *testing.T) {
	s, mr := setupRedis(t)
	id := uuid.New()
	require.NoError(t, mr.Set(sessionKeyPrefix+id.String(), "{not json"))

	_, err := s.LoadSession(context.Background(), id)
	assert.Error(t, err)
}

func TestRedisStorage_Progress(t *testing.T) {
	s, mr := setupRedis(t)
	ctx := context.Background()

	lvl, err := s.GetProgress(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, DefaultLevel, lvl)

	require.NoError(t, s.SetProgress(ctx, "Ada", 4))
	lvl, err = s.GetProgress(ctx, " ada ")
	require.NoError(t, err)
	assert.Equal(t, 4, lvl)
	assert.True(t, mr.Exists("progress:ada"))

	assert.Error(t, s.SetProgress(ctx, "", 2))
	assert.Error(t, s.SetProgress(ctx, "ada", 0))
	_, err = s.GetProgress(ctx, "  ")
	assert.Error(t, err)

	require.NoError(t, mr.Set("progress:bob", "lots"))
	lvl, err = s.GetProgress(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, DefaultLevel, lvl)
}

func TestRedisStorage_WaitForConnection(t *testing.T) {
	s, _ := setupRedis(t)
	assert.NoError(t, s.WaitForConnection(context.Background(), 3, 10*time.Millisecond))

	down := NewRedisStorage("localhost:1", time.Hour, testLogger())
	defer down.Close()
	assert.Error(t, down.WaitForConnection(context.Background(), 2, 10*time.Millisecond))
}
