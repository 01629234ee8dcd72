package storage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MockStorage is an in-memory Storage and ProgressStore for tests.
type MockStorage struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]SessionRecord
	progress  map[string]int
	pingError error
	readError error
	saves     int
}

var (
	_ Storage       = (*MockStorage)(nil)
	_ ProgressStore = (*MockStorage)(nil)
)

func NewMockStorage() *MockStorage {
	return &MockStorage{
		sessions: make(map[uuid.UUID]SessionRecord),
		progress: make(map[string]int),
	}
}

// SetPingSuccess configures the mock to succeed on ping
func (m *MockStorage) SetPingSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = nil
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetProgressReadError makes GetProgress fail with err until cleared with nil.
func (m *MockStorage) SetProgressReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readError = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

// SaveCount reports how many times SaveSession succeeded.
func (m *MockStorage) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MockStorage) SaveSession(ctx context.Context, rec *SessionRecord) error {
	if rec == nil {
		return errors.New("session record cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[rec.ID] = *rec
	m.saves++
	return nil
}

func (m *MockStorage) LoadSession(ctx context.Context, id uuid.UUID) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MockStorage) DeleteSession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MockStorage) GetProgress(ctx context.Context, username string) (int, error) {
	key := strings.ToLower(strings.TrimSpace(username))
	if key == "" {
		return 0, errors.New("username is required")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.readError != nil {
		return 0, m.readError
	}
	if level, ok := m.progress[key]; ok {
		return level, nil
	}
	return DefaultLevel, nil
}

func (m *MockStorage) SetProgress(ctx context.Context, username string, level int) error {
	key := strings.ToLower(strings.TrimSpace(username))
	if key == "" {
		return errors.New("username is required")
	}
	if level < 1 {
		return errors.New("level must be at least 1")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[key] = level
	return nil
}
