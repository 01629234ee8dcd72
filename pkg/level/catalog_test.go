package level

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCatalog_Embedded(t *testing.T) {
	c, err := NewCatalog("", testLogger())
	require.NoError(t, err)
	require.Equal(t, 7, c.Len())

	for i, l := range c.All() {
		assert.Equal(t, i+1, l.ID, "levels are ordered by id")
		assert.NotEmpty(t, l.InitialScript)
	}

	l, err := c.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "Data Types", l.Title)

	_, err = c.Get(7)
	assert.True(t, errors.Is(err, ErrLevelOutOfRange))
	_, err = c.Get(-1)
	assert.True(t, errors.Is(err, ErrLevelOutOfRange))
}

func TestCatalog_GetReturnsCopies(t *testing.T) {
	c, err := NewCatalog("", testLogger())
	require.NoError(t, err)

	a, err := c.Get(2)
	require.NoError(t, err)
	a.Entities[0].Collected = true

	b, err := c.Get(2)
	require.NoError(t, err)
	assert.False(t, b.Entities[0].Collected)
}

func TestCatalog_DirectoryOverride(t *testing.T) {
	dir := t.TempDir()
	override := `
id: 1
title: Custom Start
initial_script: ""
start: {x: 1, y: 1}
grid:
  - "####"
  - "#.G#"
  - "####"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "level1.yaml"), []byte(override), 0o644))

	c, err := NewCatalog(dir, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 7, c.Len())

	l, err := c.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "Custom Start", l.Title)

	idx, ok := c.IndexOf(7)
	assert.True(t, ok)
	assert.Equal(t, 6, idx)
}

func TestCatalog_InvalidFileKeepsPreviousLevels(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCatalog(dir, testLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("id: 0\ngrid: []"), 0o644))
	assert.Error(t, c.Reload())
	assert.Equal(t, 7, c.Len())
}

func TestCatalog_Watch(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCatalog(dir, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 4)
	go func() {
		_ = c.Watch(ctx, func() { reloaded <- struct{}{} })
	}()

	extra := `
id: 8
title: Bonus
initial_script: ""
start: {x: 1, y: 1}
grid:
  - "####"
  - "#.G#"
  - "####"
`
	// give the watcher a moment to register the directory
	time.Sleep(50 * time.Millisecond)
	tmp := filepath.Join(dir, "level8.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(extra), 0o644))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, "level8.yaml")))

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("catalog was not reloaded")
	}
	assert.Equal(t, 8, c.Len())
}

func TestCatalog_WatchWithoutDir(t *testing.T) {
	c, err := NewCatalog("", testLogger())
	require.NoError(t, err)
	assert.Error(t, c.Watch(context.Background(), nil))
}
