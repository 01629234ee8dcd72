package action

import (
	"fmt"

	"github.com/jwebster45206/robot-engine/pkg/value"
)

// Direction is relative to the grid, not a compass: Front grows the row index.
type Direction string

const (
	Front Direction = "front"
	Back  Direction = "back"
	Left  Direction = "left"
	Right Direction = "right"
)

// Delta returns the (dx, dy) step for the direction.
func (d Direction) Delta() (int, int) {
	switch d {
	case Front:
		return 0, 1
	case Back:
		return 0, -1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

type Kind string

const (
	KindMove   Kind = "move"
	KindPickup Kind = "pickup"
	KindAttack Kind = "attack"
)

// Action is one compiled instruction. Only the fields for its Kind are set.
type Action struct {
	Kind       Kind           `json:"kind"`
	Direction  Direction      `json:"direction,omitempty"`
	TypeFilter *value.TypeTag `json:"type_filter,omitempty"`
	TargetID   string         `json:"target_id,omitempty"`
}

func Move(d Direction) Action {
	return Action{Kind: KindMove, Direction: d}
}

// Pickup takes an optional filter; nil picks the first candidate.
func Pickup(filter *value.TypeTag) Action {
	return Action{Kind: KindPickup, TypeFilter: filter}
}

func Attack(targetID string) Action {
	return Action{Kind: KindAttack, TargetID: targetID}
}

func (a Action) String() string {
	switch a.Kind {
	case KindMove:
		return fmt.Sprintf("move(%s)", a.Direction)
	case KindPickup:
		if a.TypeFilter != nil {
			return fmt.Sprintf("pickUp(%s)", *a.TypeFilter)
		}
		return "pickUp()"
	case KindAttack:
		return fmt.Sprintf("attack(%s)", a.TargetID)
	}
	return "unknown"
}
