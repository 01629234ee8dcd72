package engine

import (
	"fmt"

	"github.com/jwebster45206/robot-engine/pkg/action"
	"github.com/jwebster45206/robot-engine/pkg/level"
	"github.com/jwebster45206/robot-engine/pkg/value"
)

// RunState is the mutable world of one run session. It is owned by a single
// Controller; everything handed out is a copy.
type RunState struct {
	LevelID       int              `json:"level_id"`
	StartPos      level.Point      `json:"start_pos"`
	PlayerPos     level.Point      `json:"player_pos"`
	Facing        action.Direction `json:"facing"`
	Backpack      []level.Entity   `json:"backpack"`
	Entities      []level.Entity   `json:"entities"`
	Log           []string         `json:"log"`
	ExecutedCount int              `json:"executed_count"`
	Errored       bool             `json:"errored"`
	Running       bool             `json:"running"`
	Won           bool             `json:"won"`
}

// NewRunState builds a fresh state from a level template. The template is
// never aliased.
func NewRunState(l *level.LevelConfig) *RunState {
	return &RunState{
		LevelID:   l.ID,
		StartPos:  l.StartPos,
		PlayerPos: l.StartPos,
		Facing:    action.Front,
		Backpack:  []level.Entity{},
		Entities:  level.CloneEntities(l.Entities),
		Log:       []string{},
	}
}

// Snapshot deep copies the state.
func (s *RunState) Snapshot() RunState {
	c := *s
	c.Backpack = level.CloneEntities(s.Backpack)
	if c.Backpack == nil {
		c.Backpack = []level.Entity{}
	}
	c.Entities = level.CloneEntities(s.Entities)
	c.Log = append([]string{}, s.Log...)
	return c
}

func (s *RunState) logf(format string, args ...any) string {
	line := fmt.Sprintf(format, args...)
	s.Log = append(s.Log, line)
	return line
}

// entityAt returns the index of the first live entity at p matching keep.
func (s *RunState) entityAt(p level.Point, keep func(*level.Entity) bool) int {
	for i := range s.Entities {
		e := &s.Entities[i]
		if e.Live() && e.Pos() == p && (keep == nil || keep(e)) {
			return i
		}
	}
	return -1
}

// holds reports the first backpack item carrying a value of the given tag.
func (s *RunState) holds(tag value.TypeTag) (*level.Entity, bool) {
	for i := range s.Backpack {
		if s.Backpack[i].ValueTag() == tag {
			return &s.Backpack[i], true
		}
	}
	return nil, false
}
