package engine

import (
	"fmt"

	"github.com/jwebster45206/robot-engine/pkg/action"
	"github.com/jwebster45206/robot-engine/pkg/level"
	"github.com/jwebster45206/robot-engine/pkg/value"
)

const (
	noticeLocked     = "LOCKED"
	noticeEnemyAhead = "ENEMY AHEAD"
	noticeDied       = "OUCH! TRAP"
)

// Move resolves one step in dir. Entities in the target cell are checked
// before the tile itself.
func (s *RunState) Move(grid level.Grid, dir action.Direction) Outcome {
	s.Facing = dir
	dx, dy := dir.Delta()
	target := s.PlayerPos.Add(dx, dy)

	if !grid.InBounds(target) {
		return fail(Blocked, fmt.Sprintf("Blocked: %s is outside the map.", target))
	}

	// the door opens only once the robot actually enters its cell
	enter := func(o Outcome) Outcome { return o }

	if i := s.entityAt(target, func(e *level.Entity) bool { return e.Kind == level.KindDoor }); i >= 0 {
		door := &s.Entities[i]
		required := value.TagString
		if door.Required != nil {
			required = door.Required.Tag
		}
		key, unlocked := s.holds(required)
		if !unlocked {
			o := fail(LockedDoor, fmt.Sprintf("Door %s is locked. It needs a %s key.", door.ID, required))
			o.Notice = noticeLocked
			return o
		}
		enter = func(o Outcome) Outcome {
			door.Dead = true
			o.Notes = append(o.Notes, fmt.Sprintf("Unlocked %s with %s.", door.ID, key.ID))
			return o
		}
	}

	if i := s.entityAt(target, (*level.Entity).IsEnemy); i >= 0 {
		o := fail(EnemyAhead, fmt.Sprintf("%s blocks the way at %s. Defeat it first.", s.Entities[i].ID, target))
		o.Notice = noticeEnemyAhead
		return o
	}

	tile, _ := grid.At(target)
	switch tile {
	case level.Wall:
		return fail(Blocked, fmt.Sprintf("Blocked: wall at %s.", target))
	case level.Trap:
		s.PlayerPos = s.StartPos
		o := fail(Died, fmt.Sprintf("Stepped on a trap at %s! Back to %s.", target, s.StartPos))
		o.Notice = noticeDied
		return enter(o)
	case level.Goal:
		s.PlayerPos = target
		o := ok(fmt.Sprintf("Moved %s to %s. Goal reached!", dir, target))
		o.Goal = true
		return enter(o)
	}
	s.PlayerPos = target
	return enter(ok(fmt.Sprintf("Moved %s to %s.", dir, target)))
}
