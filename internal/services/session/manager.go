// Package session hosts play sessions: one engine controller per learner,
// wired to persistence and the event stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/robot-engine/internal/logger"
	"github.com/jwebster45206/robot-engine/internal/services/events"
	"github.com/jwebster45206/robot-engine/internal/storage"
	"github.com/jwebster45206/robot-engine/pkg/compiler"
	"github.com/jwebster45206/robot-engine/pkg/engine"
	"github.com/jwebster45206/robot-engine/pkg/level"
)

const (
	persistTimeout      = 2 * time.Second
	allCompletedMessage = "ALL LEVELS COMPLETED!"
	allCompletedFor     = 5 * time.Second
)

var ErrNoSession = errors.New("session not found")

type Options struct {
	Catalog  *level.Catalog
	Storage  storage.Storage
	Progress storage.ProgressStore
	// Events is optional; without it nothing is published.
	Events   *events.Broadcaster
	Compiler *compiler.Compiler

	StepDelay time.Duration
	HitPulse  time.Duration
	Logger    *slog.Logger
}

type Manager struct {
	opts   Options
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Compiler == nil {
		opts.Compiler = compiler.New(compiler.Options{})
	}
	return &Manager{
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a session. A negative levelIndex picks the level from the
// user's stored progress, or the first level.
func (m *Manager) Create(ctx context.Context, username string, levelIndex int) (*Session, error) {
	if levelIndex < 0 {
		levelIndex = m.savedIndex(ctx, username)
	}
	lvl, err := m.opts.Catalog.Get(levelIndex)
	if err != nil {
		return nil, err
	}

	s := m.newSession(uuid.New(), username, levelIndex)
	s.controller.ResetForLevel(lvl)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("Session created", "session_id", s.ID, "username", username, "level", lvl.ID)
	m.persist(s, s.controller.Snapshot())
	return s, nil
}

// savedIndex maps stored progress (a level id) to a catalog index.
func (m *Manager) savedIndex(ctx context.Context, username string) int {
	if username == "" || m.opts.Progress == nil {
		return 0
	}
	saved, err := m.opts.Progress.GetProgress(ctx, username)
	if err != nil {
		logger.WithError(m.logger, err).Warn("Failed to load progress, starting at first level", "username", username)
		return 0
	}
	idx, ok := m.opts.Catalog.IndexOf(saved)
	if !ok {
		// progress past the last level lands on the last one
		if saved > 1 && m.opts.Catalog.Len() > 0 {
			return m.opts.Catalog.Len() - 1
		}
		return 0
	}
	if idx > 0 {
		m.logger.Info("Cloud save found, warping", "username", username, "level", saved)
	}
	return idx
}

func (m *Manager) newSession(id uuid.UUID, username string, levelIndex int) *Session {
	s := &Session{ID: id, Username: username, levelIndex: levelIndex}
	log := logger.WithSession(m.logger, id.String())

	var notifier engine.Notifier
	if m.opts.Events != nil {
		notifier = events.NewSessionNotifier(m.opts.Events, id)
	}

	s.controller = engine.NewController(engine.Options{
		StepDelay: m.opts.StepDelay,
		HitPulse:  m.opts.HitPulse,
		Compiler:  m.opts.Compiler,
		Notifier:  notifier,
		Logger:    log,
		Hooks: engine.Hooks{
			OnLog: func(line string) {
				m.publish(func(ctx context.Context, b *events.Broadcaster) error {
					return b.PublishLog(ctx, id, line)
				})
			},
			OnPhase: func(p engine.Phase) {
				m.publish(func(ctx context.Context, b *events.Broadcaster) error {
					return b.PublishPhase(ctx, id, p.String())
				})
			},
			OnWin: func(levelID int) {
				m.handleWin(s, levelID)
			},
			OnFinish: func(state engine.RunState) {
				m.persist(s, state)
			},
		},
	})
	return s
}

func (m *Manager) handleWin(s *Session, levelID int) {
	next := levelID + 1
	log := logger.WithSession(m.logger, s.ID.String())
	log.Info("Level completed", "level", levelID, "username", s.Username)

	if s.Username != "" && m.opts.Progress != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		saved, err := m.opts.Progress.GetProgress(ctx, s.Username)
		switch {
		case err != nil:
			// without the stored level a write could lower it
			logger.WithError(log, err).Warn("Failed to read progress, not saving")
		case next > saved:
			if err := m.opts.Progress.SetProgress(ctx, s.Username, next); err != nil {
				logger.WithError(log, err).Error("Failed to save progress")
			}
		}
	}

	m.publish(func(ctx context.Context, b *events.Broadcaster) error {
		return b.PublishLevelWon(ctx, s.ID, levelID, next)
	})
}

func (m *Manager) publish(fn func(ctx context.Context, b *events.Broadcaster) error) {
	if m.opts.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	_ = fn(ctx, m.opts.Events)
}

func (m *Manager) persist(s *Session, state engine.RunState) {
	if m.opts.Storage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.opts.Storage.SaveSession(ctx, s.record(state)); err != nil {
		logger.WithError(m.logger, err).Error("Failed to persist session", "session_id", s.ID)
	}
}

// Get returns a live session. A session known only to storage is restored
// at its saved level and script; its run state starts fresh.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}
	if m.opts.Storage == nil {
		return nil, ErrNoSession
	}

	rec, err := m.opts.Storage.LoadSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if rec == nil {
		return nil, ErrNoSession
	}
	lvl, err := m.opts.Catalog.Get(rec.LevelIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	s = m.newSession(rec.ID, rec.Username, rec.LevelIndex)
	s.script = rec.Script
	s.controller.ResetForLevel(lvl)
	m.sessions[id] = s
	m.logger.Info("Session restored from storage", "session_id", id, "level", lvl.ID)
	return s, nil
}

// Run starts a full run in the background.
func (m *Manager) Run(ctx context.Context, id uuid.UUID, script string) (*Session, error) {
	return m.launch(ctx, id, engine.ModeRun, script)
}

// Continue executes the newly added actions of script in the background.
func (m *Manager) Continue(ctx context.Context, id uuid.UUID, script string) (*Session, error) {
	return m.launch(ctx, id, engine.ModeContinue, script)
}

func (m *Manager) launch(ctx context.Context, id uuid.UUID, mode engine.Mode, script string) (*Session, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// set first so the snapshot saved when the run finishes carries it
	prev := s.swapScript(script)
	if err := s.controller.Launch(mode, script); err != nil {
		s.swapScript(prev)
		return nil, err
	}
	return s, nil
}

// SetLevel switches the session to the level at index, discarding the run.
func (m *Manager) SetLevel(ctx context.Context, id uuid.UUID, index int) (*Session, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	lvl, err := m.opts.Catalog.Get(index)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.levelIndex = index
	s.script = ""
	s.mu.Unlock()

	s.controller.ResetForLevel(lvl)
	m.persist(s, s.controller.Snapshot())
	return s, nil
}

// NextLevel advances to the following level. At the last level it only
// notifies and reports false.
func (m *Manager) NextLevel(ctx context.Context, id uuid.UUID) (*Session, bool, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	next := s.LevelIndex() + 1
	if next >= m.opts.Catalog.Len() {
		if m.opts.Events != nil {
			events.NewSessionNotifier(m.opts.Events, id).Notify(allCompletedMessage, allCompletedFor)
		}
		return s, false, nil
	}
	s, err = m.SetLevel(ctx, id, next)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.controller.Close()
	}
	if m.opts.Storage != nil {
		if err := m.opts.Storage.DeleteSession(ctx, id); err != nil {
			return err
		}
	} else if !ok {
		return ErrNoSession
	}
	return nil
}

// Close stops every session's controller.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.controller.Close()
	}
}
