package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/robot-engine/internal/storage"
	"github.com/jwebster45206/robot-engine/pkg/engine"
)

// Session is one learner working through the levels.
type Session struct {
	ID       uuid.UUID
	Username string

	controller *engine.Controller

	mu         sync.Mutex
	levelIndex int
	script     string
}

// View is the JSON shape of a session returned by the API.
type View struct {
	ID          uuid.UUID       `json:"id"`
	Username    string          `json:"username,omitempty"`
	LevelIndex  int             `json:"level_index"`
	LevelID     int             `json:"level_id"`
	LevelTitle  string          `json:"level_title"`
	Phase       string          `json:"phase"`
	CanContinue bool            `json:"can_continue"`
	Script      string          `json:"script,omitempty"`
	State       engine.RunState `json:"state"`
}

func (s *Session) LevelIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levelIndex
}

func (s *Session) Script() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.script
}

func (s *Session) swapScript(script string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.script
	s.script = script
	return prev
}

func (s *Session) Controller() *engine.Controller {
	return s.controller
}

func (s *Session) View() View {
	s.mu.Lock()
	idx, script := s.levelIndex, s.script
	s.mu.Unlock()

	v := View{
		ID:          s.ID,
		Username:    s.Username,
		LevelIndex:  idx,
		Phase:       s.controller.Phase().String(),
		CanContinue: s.controller.CanContinue(),
		Script:      script,
		State:       s.controller.Snapshot(),
	}
	if lvl := s.controller.Level(); lvl != nil {
		v.LevelID = lvl.ID
		v.LevelTitle = lvl.Title
	}
	return v
}

func (s *Session) record(state engine.RunState) *storage.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &storage.SessionRecord{
		ID:         s.ID,
		Username:   s.Username,
		LevelIndex: s.levelIndex,
		LevelID:    state.LevelID,
		Script:     s.script,
		Phase:      s.controller.Phase().String(),
		State:      state,
	}
}
