package engine

import (
	"strings"

	"github.com/jwebster45206/robot-engine/pkg/compiler"
	"github.com/jwebster45206/robot-engine/pkg/level"
	"github.com/jwebster45206/robot-engine/pkg/value"
)

// Query resolves a selector against live entities. "#id" matches an exact id
// first and then a base id, so "#boss" still finds a boss that changed phase.
// A bare kind name matches the first live entity of that kind.
func (s *RunState) Query(selector string) (*compiler.EntityView, bool) {
	selector = strings.TrimSpace(selector)
	idx := -1
	if id, isID := strings.CutPrefix(selector, "#"); isID {
		if id == "" {
			return nil, false
		}
		idx = s.find(func(e *level.Entity) bool { return e.ID == id })
		if idx < 0 {
			idx = s.find(func(e *level.Entity) bool { return e.BaseID() == id })
		}
	} else if kind := level.Kind(strings.ToLower(selector)); kind.Valid() {
		idx = s.find(func(e *level.Entity) bool { return e.Kind == kind })
	}
	if idx < 0 {
		return nil, false
	}
	return s.view(&s.Entities[idx]), true
}

func (s *RunState) find(match func(*level.Entity) bool) int {
	for i := range s.Entities {
		if s.Entities[i].Live() && match(&s.Entities[i]) {
			return i
		}
	}
	return -1
}

func (s *RunState) view(e *level.Entity) *compiler.EntityView {
	v := &compiler.EntityView{
		ID:   e.ID,
		Kind: e.Kind,
		X:    e.X,
		Y:    e.Y,
		HP:   e.HP,
	}
	if e.IsEnemy() {
		v.Weakness = e.WeaknessTag()
	}
	if e.Kind == level.KindChest {
		v.Contents = []value.TypeTag{}
		for i := range s.Entities {
			item := &s.Entities[i]
			if item.IsItem() && item.Live() && item.Pos() == e.Pos() {
				v.Contents = append(v.Contents, item.ValueTag())
			}
		}
	}
	return v
}
