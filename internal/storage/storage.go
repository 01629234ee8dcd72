package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/robot-engine/pkg/engine"
)

// DefaultLevel is the progress reported for users with nothing stored.
const DefaultLevel = 1

// SessionRecord is the persisted snapshot of a play session.
type SessionRecord struct {
	ID         uuid.UUID       `json:"id"`
	Username   string          `json:"username,omitempty"`
	LevelIndex int             `json:"level_index"`
	LevelID    int             `json:"level_id"`
	Script     string          `json:"script,omitempty"`
	Phase      string          `json:"phase"`
	State      engine.RunState `json:"state"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Storage persists session snapshots.
type Storage interface {
	Ping(ctx context.Context) error
	Close() error

	SaveSession(ctx context.Context, rec *SessionRecord) error
	// LoadSession returns nil, nil when the session does not exist.
	LoadSession(ctx context.Context, id uuid.UUID) (*SessionRecord, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

// ProgressStore remembers the highest level id each user has unlocked.
type ProgressStore interface {
	// GetProgress returns DefaultLevel for unknown users.
	GetProgress(ctx context.Context, username string) (int, error)
	SetProgress(ctx context.Context, username string, level int) error
}
