package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only against a real database: DATABASE_URL=postgres://... go test ./internal/storage
func TestPostgresProgressStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewPostgresProgressStore(ctx, dsn, testLogger())
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	username := "test-" + time.Now().Format("150405.000000")
	level, err := store.GetProgress(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, DefaultLevel, level)

	require.NoError(t, store.SetProgress(ctx, username, 3))
	require.NoError(t, store.SetProgress(ctx, username, 5))
	level, err = store.GetProgress(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, 5, level)

	assert.Error(t, store.SetProgress(ctx, username, 0))

	_, err = store.db.ExecContext(ctx, `DELETE FROM progress WHERE username = $1`, username)
	assert.NoError(t, err)
}

func TestPostgresProgressStore_BadConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewPostgresProgressStore(ctx, "postgres://nobody@127.0.0.1:1/none?sslmode=disable", testLogger())
	assert.Error(t, err)
}
